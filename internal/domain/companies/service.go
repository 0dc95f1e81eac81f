package companies

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrCompanyNotFound = errors.New("company not found")
	ErrNotOwner        = errors.New("caller does not own the company")
	ErrInvalidInput    = errors.New("invalid company input")
)

type Input struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Website     string `json:"website"`
	LogoURL     string `json:"logoUrl"`
}

type Service struct {
	db  *gorm.DB
	log logrus.FieldLogger
}

func NewService(db *gorm.DB, log logrus.FieldLogger) *Service {
	return &Service{db: db, log: log.WithField("component", "companies")}
}

func (s *Service) Create(ctx context.Context, ownerID string, in Input) (*Company, error) {
	name := strings.TrimSpace(in.Name)
	if ownerID == "" || name == "" {
		return nil, fmt.Errorf("%w: owner and name are required", ErrInvalidInput)
	}

	c := &Company{
		OwnerID:     ownerID,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Website:     strings.TrimSpace(in.Website),
		LogoURL:     strings.TrimSpace(in.LogoURL),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		slug, err := uniqueSlug(tx, MakeSlug(name), "")
		if err != nil {
			return err
		}
		c.Slug = slug
		return tx.Create(c).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create company: %w", err)
	}

	s.log.WithFields(logrus.Fields{"company_id": c.ID, "owner_id": ownerID}).Info("company created")
	return c, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Company, error) {
	var c Company
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrCompanyNotFound, id)
		}
		return nil, err
	}
	return &c, nil
}

// RoleAdmin is the JWT role that may manage any company.
const RoleAdmin = "admin"

// Authorize returns nil when the caller owns the company or holds the admin
// role. Admins skip the lookup.
func (s *Service) Authorize(ctx context.Context, companyID, userID, role string) error {
	if role == RoleAdmin {
		return nil
	}
	c, err := s.Get(ctx, companyID)
	if err != nil {
		return err
	}
	if userID == "" || c.OwnerID != userID {
		return ErrNotOwner
	}
	return nil
}

func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]Company, error) {
	var out []Company
	err := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at ASC").Find(&out).Error
	return out, err
}

// Update replaces the profile fields. Only the owner may update; a new name
// regenerates the slug.
func (s *Service) Update(ctx context.Context, id, callerID string, in Input) (*Company, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	var out Company
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&out).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", ErrCompanyNotFound, id)
			}
			return err
		}
		if out.OwnerID != callerID {
			return ErrNotOwner
		}

		fields := map[string]interface{}{
			"name":        name,
			"description": strings.TrimSpace(in.Description),
			"website":     strings.TrimSpace(in.Website),
			"logo_url":    strings.TrimSpace(in.LogoURL),
		}
		if name != out.Name {
			slug, err := uniqueSlug(tx, MakeSlug(name), out.ID)
			if err != nil {
				return err
			}
			fields["slug"] = slug
		}
		if err := tx.Model(&Company{}).Where("id = ?", id).Updates(fields).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).First(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
