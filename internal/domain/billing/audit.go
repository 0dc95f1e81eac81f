package billing

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

func appendAudit(tx *gorm.DB, a *SubscriptionAudit) error {
	if err := tx.Create(a).Error; err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

// ListAudit returns the audit trail of a subscription, newest first.
func (s *Service) ListAudit(ctx context.Context, subscriptionID string) ([]SubscriptionAudit, error) {
	var rows []SubscriptionAudit
	if err := s.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list audit for %s: %w", subscriptionID, err)
	}
	return rows, nil
}
