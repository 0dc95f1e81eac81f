package plans

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrPlanNotFound = errors.New("plan not found")

// Source tells callers whether a read came from the store or from the
// static seed list.
type Source string

const (
	SourceStore    Source = "store"
	SourceFallback Source = "fallback"
)

// Catalog reads plans from the store and degrades to the seed list when
// the store is unavailable.
type Catalog struct {
	db  *gorm.DB
	log logrus.FieldLogger
}

func NewCatalog(db *gorm.DB, log logrus.FieldLogger) *Catalog {
	return &Catalog{db: db, log: log.WithField("component", "plan_catalog")}
}

// EnsureSeeded merge-upserts the seed plans. Rows that already match the
// seed are left untouched, so repeated calls are no-ops.
func (c *Catalog) EnsureSeeded(ctx context.Context) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, seed := range DefaultPlans() {
			var existing Plan
			err := tx.Where("id = ?", seed.ID).First(&existing).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				if err := tx.Create(&seed).Error; err != nil {
					return fmt.Errorf("create plan %s: %w", seed.ID, err)
				}
				continue
			}
			if err != nil {
				return fmt.Errorf("load plan %s: %w", seed.ID, err)
			}

			merged := mergeSeed(existing, seed)
			if seedFieldsEqual(existing, merged) {
				continue
			}
			if err := tx.Model(&Plan{}).Where("id = ?", seed.ID).Updates(map[string]interface{}{
				"slug":           merged.Slug,
				"name":           merged.Name,
				"price":          merged.Price,
				"currency":       merged.Currency,
				"billing_period": merged.BillingPeriod,
				"trial_days":     merged.TrialDays,
				"limits":         merged.Limits,
				"features":       merged.Features,
				"active":         merged.Active,
				"sort_order":     merged.SortOrder,
				"metadata":       merged.Metadata,
			}).Error; err != nil {
				return fmt.Errorf("update plan %s: %w", seed.ID, err)
			}
		}
		return nil
	})
}

// List returns every plan ordered by sort order. When the store fails or
// holds no plans the seed list is returned with SourceFallback.
func (c *Catalog) List(ctx context.Context) ([]Plan, Source) {
	var out []Plan
	err := c.db.WithContext(ctx).Order("sort_order ASC").Order("id ASC").Find(&out).Error
	if err != nil {
		c.log.WithError(err).Warn("plan list failed, serving seed catalog")
		return DefaultPlans(), SourceFallback
	}
	if len(out) == 0 {
		return DefaultPlans(), SourceFallback
	}
	return out, SourceStore
}

// GetByID looks the plan up in the store, then in the seed list.
func (c *Catalog) GetByID(ctx context.Context, id string) (*Plan, Source, error) {
	return c.get(ctx, "id = ?", id, seedByID)
}

func (c *Catalog) GetBySlug(ctx context.Context, slug string) (*Plan, Source, error) {
	return c.get(ctx, "slug = ?", slug, seedBySlug)
}

// Resolve is GetByID with write-through: a plan found only in the seed list
// is inserted so later reads hit the store.
func (c *Catalog) Resolve(ctx context.Context, id string) (*Plan, error) {
	p, src, err := c.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if src == SourceFallback {
		if err := c.db.WithContext(ctx).Create(p).Error; err != nil {
			c.log.WithError(err).WithField("plan_id", id).Warn("plan write-through failed")
		}
	}
	return p, nil
}

// AnnotateMetadata merges keys into a stored plan's metadata. Seeding
// preserves keys it does not define, so annotations survive restarts.
func (c *Catalog) AnnotateMetadata(ctx context.Context, id string, kv map[string]interface{}) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p Plan
		if err := tx.Where("id = ?", id).First(&p).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", ErrPlanNotFound, id)
			}
			return err
		}
		md := make(datatypes.JSONMap, len(p.Metadata)+len(kv))
		for k, v := range p.Metadata {
			md[k] = v
		}
		for k, v := range kv {
			md[k] = v
		}
		return tx.Model(&Plan{}).Where("id = ?", id).Update("metadata", md).Error
	})
}

func (c *Catalog) get(ctx context.Context, query, key string, seed func(string) (Plan, bool)) (*Plan, Source, error) {
	var p Plan
	err := c.db.WithContext(ctx).Where(query, key).First(&p).Error
	if err == nil {
		return &p, SourceStore, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		c.log.WithError(err).WithField("key", key).Warn("plan lookup failed, trying seed catalog")
	}

	if s, ok := seed(key); ok {
		return &s, SourceFallback, nil
	}
	return nil, "", fmt.Errorf("%w: %s", ErrPlanNotFound, key)
}

func mergeSeed(existing, seed Plan) Plan {
	merged := seed
	merged.CreatedAt = existing.CreatedAt
	merged.UpdatedAt = existing.UpdatedAt

	if len(existing.Metadata) > 0 || len(seed.Metadata) > 0 {
		md := make(map[string]interface{}, len(existing.Metadata)+len(seed.Metadata))
		for k, v := range existing.Metadata {
			md[k] = v
		}
		for k, v := range seed.Metadata {
			md[k] = v
		}
		merged.Metadata = md
	}
	return merged
}

func seedFieldsEqual(a, b Plan) bool {
	return a.Slug == b.Slug &&
		a.Name == b.Name &&
		a.Price == b.Price &&
		a.Currency == b.Currency &&
		a.BillingPeriod == b.BillingPeriod &&
		a.TrialDays == b.TrialDays &&
		a.Limits.Data() == b.Limits.Data() &&
		slices.Equal(a.Features, b.Features) &&
		a.Active == b.Active &&
		a.SortOrder == b.SortOrder &&
		metadataEqual(a.Metadata, b.Metadata)
}

func metadataEqual(a, b map[string]interface{}) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}
