package companies

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Company struct {
	ID          string `gorm:"primaryKey;size:36" json:"id"`
	OwnerID     string `gorm:"size:128;not null;index" json:"ownerId"`
	Name        string `gorm:"size:160;not null" json:"name"`
	Slug        string `gorm:"size:180;not null;uniqueIndex:idx_companies_slug" json:"slug"`
	Description string `gorm:"type:text" json:"description,omitempty"`
	Website     string `gorm:"size:255" json:"website,omitempty"`
	LogoURL     string `gorm:"size:255" json:"logoUrl,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (c *Company) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
