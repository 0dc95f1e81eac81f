package usersapi

import (
	"time"

	"poll-app/internal/domain/access"
)

type MeResponse struct {
	User      UserDTO      `json:"user"`
	Companies []CompanyDTO `json:"companies"`
}

/* ---------- USER ---------- */

type UserDTO struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

/* ---------- COMPANY ---------- */

type CompanyDTO struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Slug         string           `json:"slug"`
	Subscription *SubscriptionDTO `json:"subscription"`
	Access       access.Policy    `json:"access"`
}

type SubscriptionDTO struct {
	ID                string    `json:"id"`
	Status            string    `json:"status"`
	PlanID            string    `json:"planId"`
	PlanName          string    `json:"planName"`
	Gateway           string    `json:"gateway,omitempty"`
	StartsAt          time.Time `json:"startsAt"`
	CurrentPeriodEnd  time.Time `json:"currentPeriodEnd"`
	CancelAtPeriodEnd bool      `json:"cancelAtPeriodEnd"`
	PendingInvoiceID  *string   `json:"pendingInvoiceId,omitempty"`
}
