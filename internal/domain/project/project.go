package project

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusArchived Status = "ARCHIVED"
)

type Project struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OwnerUserID uuid.UUID `gorm:"type:uuid;not null;index" json:"ownerUserId"`
	Name        string    `gorm:"column:name;not null" json:"name"`
	BrandName   string    `gorm:"column:brand_name" json:"brandName,omitempty"`
	Domain      string    `gorm:"column:domain" json:"domain,omitempty"`
	Status      Status    `gorm:"column:status;type:text;not null;default:'ACTIVE'" json:"status"`
	CreatedAt   time.Time `gorm:"not null;default:now()" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"not null;default:now()" json:"updatedAt"`
}

func (Project) TableName() string { return "project" }

// Brand returns the brand to search for, falling back to the project name.
func (p *Project) Brand() string {
	if p.BrandName != "" {
		return p.BrandName
	}
	return p.Name
}
