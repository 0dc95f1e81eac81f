package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"poll-app/internal/domain/plans"
	"poll-app/internal/infra/events"
	"poll-app/internal/infra/metrics"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const maxUpdateAttempts = 3

var errVersionConflict = errors.New("version conflict")

// PlanResolver finds a plan by id, inserting it from the seed catalog when
// the store does not have it yet.
type PlanResolver interface {
	Resolve(ctx context.Context, id string) (*plans.Plan, error)
}

// Service owns subscriptions, the payment ledger and the audit log.
type Service struct {
	db        *gorm.DB
	plans     PlanResolver
	publisher events.Publisher
	log       logrus.FieldLogger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewService(db *gorm.DB, resolver PlanResolver, publisher events.Publisher, log logrus.FieldLogger, m *metrics.Metrics) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		db:        db,
		plans:     resolver,
		publisher: publisher,
		log:       log.WithField("component", "billing"),
		metrics:   m,
		now:       time.Now,
	}
}

type CreateSubscriptionInput struct {
	CompanyID             string
	CompanyName           string
	PlanID                string
	PaymentMethod         string
	Status                SubscriptionStatus
	Gateway               Gateway
	GatewaySubscriptionID string
	Actor                 Actor
}

// CreateSubscription writes a new subscription for the company and returns
// its id. Without an explicit status, plans with a trial start TRIALING and
// every other plan starts AWAITING_CONFIRMATION.
func (s *Service) CreateSubscription(ctx context.Context, in CreateSubscriptionInput) (string, error) {
	if strings.TrimSpace(in.CompanyID) == "" || strings.TrimSpace(in.PlanID) == "" {
		return "", fmt.Errorf("%w: companyId and planId are required", ErrInvalidInput)
	}
	if in.Status != "" && !in.Status.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, in.Status)
	}

	plan, err := s.plans.Resolve(ctx, in.PlanID)
	if err != nil {
		return "", fmt.Errorf("resolve plan: %w", err)
	}

	status := in.Status
	if status == "" {
		status = StatusAwaitingConfirmation
		if plan.HasTrial() {
			status = StatusTrialing
		}
	}

	actor := in.Actor
	if actor.ID == "" {
		actor = SystemActor
	}

	now := s.now()
	sub := Subscription{
		CompanyID:          in.CompanyID,
		CompanyName:        in.CompanyName,
		PlanID:             plan.ID,
		Status:             status,
		StartDate:          now,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.Add(plan.BillingPeriod.Duration()),
		PaymentMethod:      in.PaymentMethod,
		Gateway:            in.Gateway,
	}
	sub.PlanSnapshot = newSnapshotColumn(plan)
	if in.GatewaySubscriptionID != "" {
		gwID := in.GatewaySubscriptionID
		sub.GatewaySubscriptionID = &gwID
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&sub).Error; err != nil {
			return fmt.Errorf("create subscription: %w", err)
		}
		return appendAudit(tx, &SubscriptionAudit{
			SubscriptionID: sub.ID,
			ActorID:        actor.ID,
			ActorName:      actor.Name,
			ToPlan:         &plan.Slug,
			ToStatus:       &status,
			Notes:          "subscription created",
		})
	})
	if err != nil {
		return "", err
	}

	s.log.WithFields(logrus.Fields{
		"subscription_id": sub.ID,
		"company_id":      sub.CompanyID,
		"plan":            plan.Slug,
		"status":          status,
	}).Info("subscription created")
	s.metrics.ObserveTransition("NONE", string(status))
	s.publish(ctx, events.Event{
		Type:           events.SubscriptionCreated,
		SubscriptionID: sub.ID,
		CompanyID:      sub.CompanyID,
		ToStatus:       string(status),
		ToPlan:         plan.Slug,
		ActorID:        actor.ID,
	})

	return sub.ID, nil
}

// GetSubscriptionByCompany returns the company's most recently created
// subscription, or nil when it has none.
func (s *Service) GetSubscriptionByCompany(ctx context.Context, companyID string) (*Subscription, error) {
	var sub Subscription
	err := s.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("created_at DESC").
		Order("id DESC").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load subscription for company %s: %w", companyID, err)
	}
	return &sub, nil
}

func (s *Service) GetSubscription(ctx context.Context, id string) (*Subscription, error) {
	var sub Subscription
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSubscriptionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load subscription %s: %w", id, err)
	}
	return &sub, nil
}

// GetByGatewaySubscriptionID returns nil when no subscription is linked to
// the external id.
func (s *Service) GetByGatewaySubscriptionID(ctx context.Context, gateway Gateway, gatewaySubID string) (*Subscription, error) {
	if gatewaySubID == "" {
		return nil, nil
	}
	var sub Subscription
	err := s.db.WithContext(ctx).
		Where("gateway = ? AND gateway_subscription_id = ?", gateway, gatewaySubID).
		Order("created_at DESC").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load subscription by %s id %s: %w", gateway, gatewaySubID, err)
	}
	return &sub, nil
}

type StatusUpdate struct {
	Notes     string
	ActorID   string
	ActorName string
	InvoiceID string
}

// UpdateSubscriptionStatus overwrites the status and the pending invoice.
func (s *Service) UpdateSubscriptionStatus(ctx context.Context, id string, status SubscriptionStatus, upd StatusUpdate) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	var from SubscriptionStatus
	sub, err := s.mutate(ctx, id, func(cur *Subscription) (*change, error) {
		from = cur.Status
		fields := map[string]interface{}{
			"status":             status,
			"pending_invoice_id": nullable(upd.InvoiceID),
		}
		if upd.Notes != "" {
			fields["notes"] = upd.Notes
		}
		prev := cur.Status
		return &change{
			fields: fields,
			audit: &SubscriptionAudit{
				ActorID:    upd.ActorID,
				ActorName:  upd.ActorName,
				FromStatus: &prev,
				ToStatus:   &status,
				Notes:      upd.Notes,
			},
		}, nil
	})
	if err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"subscription_id": id,
		"from":            from,
		"to":              status,
	}).Info("subscription status updated")
	s.metrics.ObserveTransition(string(from), string(status))
	s.publish(ctx, events.Event{
		Type:           events.SubscriptionStatusChanged,
		SubscriptionID: id,
		CompanyID:      sub.CompanyID,
		FromStatus:     string(from),
		ToStatus:       string(status),
		ActorID:        upd.ActorID,
	})
	return nil
}

// SwitchSubscriptionPlan moves the subscription to another plan. The new
// billing period starts now and the subscription waits for payment again.
func (s *Service) SwitchSubscriptionPlan(ctx context.Context, id, planID, actorID, actorName string) error {
	if strings.TrimSpace(planID) == "" {
		return fmt.Errorf("%w: planId is required", ErrInvalidInput)
	}

	plan, err := s.plans.Resolve(ctx, planID)
	if err != nil {
		return fmt.Errorf("resolve plan: %w", err)
	}

	var fromPlan string
	var fromStatus SubscriptionStatus
	to := StatusAwaitingConfirmation
	sub, err := s.mutate(ctx, id, func(cur *Subscription) (*change, error) {
		fromPlan = cur.Snapshot().Slug
		fromStatus = cur.Status
		now := s.now()
		prevPlan, prevStatus := fromPlan, fromStatus
		return &change{
			fields: map[string]interface{}{
				"plan_id":              plan.ID,
				"plan_snapshot":        newSnapshotColumn(plan),
				"current_period_start": now,
				"current_period_end":   now.Add(plan.BillingPeriod.Duration()),
				"status":               to,
				"pending_invoice_id":   nil,
				"cancel_at_period_end": false,
			},
			audit: &SubscriptionAudit{
				ActorID:    actorID,
				ActorName:  actorName,
				FromPlan:   &prevPlan,
				ToPlan:     &plan.Slug,
				FromStatus: &prevStatus,
				ToStatus:   &to,
				Notes:      fmt.Sprintf("plan switched from %s to %s", prevPlan, plan.Slug),
			},
		}, nil
	})
	if err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"subscription_id": id,
		"from_plan":       fromPlan,
		"to_plan":         plan.Slug,
	}).Info("subscription plan switched")
	s.metrics.ObserveTransition(string(fromStatus), string(to))
	s.publish(ctx, events.Event{
		Type:           events.SubscriptionPlanSwitched,
		SubscriptionID: id,
		CompanyID:      sub.CompanyID,
		FromStatus:     string(fromStatus),
		ToStatus:       string(to),
		FromPlan:       fromPlan,
		ToPlan:         plan.Slug,
		ActorID:        actorID,
	})
	return nil
}

// UpdateSubscriptionPeriodAndCancellation mirrors the billing cycle kept by
// the gateway.
func (s *Service) UpdateSubscriptionPeriodAndCancellation(ctx context.Context, id string, periodStart, periodEnd time.Time, cancelAtPeriodEnd bool) error {
	sub, err := s.mutate(ctx, id, func(cur *Subscription) (*change, error) {
		actor := GatewayActor(cur.Gateway)
		if cur.Gateway == "" {
			actor = SystemActor
		}
		return &change{
			fields: map[string]interface{}{
				"current_period_start": periodStart,
				"current_period_end":   periodEnd,
				"cancel_at_period_end": cancelAtPeriodEnd,
			},
			audit: &SubscriptionAudit{
				ActorID:   actor.ID,
				ActorName: actor.Name,
				Notes: fmt.Sprintf("billing period %s to %s, cancel at period end: %t",
					periodStart.UTC().Format(time.RFC3339), periodEnd.UTC().Format(time.RFC3339), cancelAtPeriodEnd),
			},
		}, nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, events.Event{
		Type:           events.SubscriptionPeriodUpdated,
		SubscriptionID: id,
		CompanyID:      sub.CompanyID,
	})
	return nil
}

// LinkGatewaySubscription stores the gateway's own subscription id so later
// webhooks can find the subscription without company metadata.
func (s *Service) LinkGatewaySubscription(ctx context.Context, id string, gateway Gateway, gatewaySubID string) error {
	if gatewaySubID == "" {
		return fmt.Errorf("%w: gateway subscription id is required", ErrInvalidInput)
	}
	_, err := s.mutate(ctx, id, func(cur *Subscription) (*change, error) {
		if cur.Gateway == gateway && cur.GatewaySubscriptionID != nil && *cur.GatewaySubscriptionID == gatewaySubID {
			return nil, nil
		}
		actor := GatewayActor(gateway)
		return &change{
			fields: map[string]interface{}{
				"gateway":                 gateway,
				"gateway_subscription_id": gatewaySubID,
			},
			audit: &SubscriptionAudit{
				ActorID:   actor.ID,
				ActorName: actor.Name,
				Notes:     fmt.Sprintf("linked to %s subscription %s", gateway, gatewaySubID),
			},
		}, nil
	})
	return err
}

type change struct {
	fields map[string]interface{}
	audit  *SubscriptionAudit
}

// mutate runs a read, compute, conditional-write cycle on one subscription.
// The write only lands if the version read is still current; otherwise the
// cycle starts over, up to maxUpdateAttempts times. A nil change skips the
// write.
func (s *Service) mutate(ctx context.Context, id string, compute func(cur *Subscription) (*change, error)) (*Subscription, error) {
	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		cur, err := s.GetSubscription(ctx, id)
		if err != nil {
			return nil, err
		}

		ch, err := compute(cur)
		if err != nil {
			return nil, err
		}
		if ch == nil {
			return cur, nil
		}

		ch.fields["version"] = cur.Version + 1
		ch.fields["updated_at"] = s.now()

		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&Subscription{}).
				Where("id = ? AND version = ?", cur.ID, cur.Version).
				Updates(ch.fields)
			if res.Error != nil {
				return fmt.Errorf("update subscription %s: %w", cur.ID, res.Error)
			}
			if res.RowsAffected == 0 {
				return errVersionConflict
			}
			if ch.audit != nil {
				ch.audit.SubscriptionID = cur.ID
				return appendAudit(tx, ch.audit)
			}
			return nil
		})
		if errors.Is(err, errVersionConflict) {
			s.log.WithFields(logrus.Fields{
				"subscription_id": id,
				"attempt":         attempt,
			}).Debug("subscription version conflict, retrying")
			continue
		}
		if err != nil {
			return nil, err
		}
		return cur, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrConcurrentUpdate, id)
}

func (s *Service) publish(ctx context.Context, evt events.Event) {
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"event":           evt.Type,
			"subscription_id": evt.SubscriptionID,
		}).Warn("event publish failed")
	}
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
