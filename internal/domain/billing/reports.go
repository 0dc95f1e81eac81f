package billing

import (
	"context"
	"fmt"
	"time"
)

const (
	defaultReportLimit = 50
	maxReportLimit     = 200
)

type SubscriptionFilter struct {
	Status  SubscriptionStatus
	Gateway Gateway
	Limit   int
	Offset  int
}

// ListSubscriptions pages through subscriptions, most recently created first.
func (s *Service) ListSubscriptions(ctx context.Context, f SubscriptionFilter) ([]Subscription, error) {
	q := s.db.WithContext(ctx).Model(&Subscription{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Gateway != "" {
		q = q.Where("gateway = ?", f.Gateway)
	}

	var rows []Subscription
	err := q.Order("created_at DESC").Order("id").
		Limit(reportLimit(f.Limit)).Offset(max(f.Offset, 0)).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return rows, nil
}

type PaymentFilter struct {
	Status  PaymentStatus
	Gateway Gateway
	Since   time.Time
	Limit   int
}

// ListPayments returns ledger rows across all subscriptions, latest due
// date first.
func (s *Service) ListPayments(ctx context.Context, f PaymentFilter) ([]Payment, error) {
	q := s.db.WithContext(ctx).Model(&Payment{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Gateway != "" {
		q = q.Where("gateway = ?", f.Gateway)
	}
	if !f.Since.IsZero() {
		q = q.Where("due_date >= ?", f.Since)
	}

	var rows []Payment
	if err := q.Order("due_date DESC").Limit(reportLimit(f.Limit)).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return rows, nil
}

// Stats is the admin dashboard summary. Revenue maps are keyed by currency
// and hold minor units of PAID payments.
type Stats struct {
	TotalSubscriptions    int64            `json:"totalSubscriptions"`
	SubscriptionsByStatus map[string]int64 `json:"subscriptionsByStatus"`
	SubscriptionsByPlan   map[string]int64 `json:"subscriptionsByPlan"`
	TotalRevenue          map[string]int64 `json:"totalRevenue"`
	RecentRevenue         map[string]int64 `json:"recentRevenue"`
	FailedPayments        int64            `json:"failedPayments"`
}

// Stats aggregates subscriptions and the ledger. Recent revenue counts
// payments due on or after the given time.
func (s *Service) Stats(ctx context.Context, since time.Time) (*Stats, error) {
	db := s.db.WithContext(ctx)
	stats := &Stats{
		SubscriptionsByStatus: map[string]int64{},
		SubscriptionsByPlan:   map[string]int64{},
		TotalRevenue:          map[string]int64{},
		RecentRevenue:         map[string]int64{},
	}

	type groupCount struct {
		Name  string
		Count int64
	}

	var byStatus []groupCount
	if err := db.Model(&Subscription{}).
		Select("status AS name, COUNT(*) AS count").
		Group("status").
		Scan(&byStatus).Error; err != nil {
		return nil, fmt.Errorf("count subscriptions by status: %w", err)
	}
	for _, c := range byStatus {
		stats.SubscriptionsByStatus[c.Name] = c.Count
		stats.TotalSubscriptions += c.Count
	}

	var byPlan []groupCount
	if err := db.Model(&Subscription{}).
		Select("plan_id AS name, COUNT(*) AS count").
		Group("plan_id").
		Scan(&byPlan).Error; err != nil {
		return nil, fmt.Errorf("count subscriptions by plan: %w", err)
	}
	for _, c := range byPlan {
		stats.SubscriptionsByPlan[c.Name] = c.Count
	}

	type currencySum struct {
		Currency string
		Total    int64
	}
	revenue := func(dst map[string]int64, from time.Time) error {
		q := db.Model(&Payment{}).
			Select("currency, COALESCE(SUM(amount), 0) AS total").
			Where("status = ?", PaymentPaid)
		if !from.IsZero() {
			q = q.Where("due_date >= ?", from)
		}
		var sums []currencySum
		if err := q.Group("currency").Scan(&sums).Error; err != nil {
			return err
		}
		for _, r := range sums {
			dst[r.Currency] = r.Total
		}
		return nil
	}
	if err := revenue(stats.TotalRevenue, time.Time{}); err != nil {
		return nil, fmt.Errorf("total revenue: %w", err)
	}
	if err := revenue(stats.RecentRevenue, since); err != nil {
		return nil, fmt.Errorf("recent revenue: %w", err)
	}

	if err := db.Model(&Payment{}).Where("status = ?", PaymentFailed).Count(&stats.FailedPayments).Error; err != nil {
		return nil, fmt.Errorf("count failed payments: %w", err)
	}
	return stats, nil
}

func reportLimit(n int) int {
	if n <= 0 {
		return defaultReportLimit
	}
	return min(n, maxReportLimit)
}
