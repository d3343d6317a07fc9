package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeBrand        Type = "BRAND"
	TypePerson       Type = "PERSON"
	TypeOrganization Type = "ORGANIZATION"
	TypeTopic        Type = "TOPIC"
	TypeProduct      Type = "PRODUCT"
	TypeLocation     Type = "LOCATION"
	TypeConcept      Type = "CONCEPT"
	TypeOther        Type = "OTHER"
)

var Types = []Type{TypeBrand, TypePerson, TypeOrganization, TypeTopic, TypeProduct, TypeLocation, TypeConcept, TypeOther}

// ParseType maps engine labels onto the enum; unknown values become OTHER.
func ParseType(s string) Type {
	t := Type(strings.ToUpper(strings.TrimSpace(s)))
	for _, v := range Types {
		if v == t {
			return t
		}
	}
	return TypeOther
}

// Entity is unique per (project_id, label, type). Frequency counts ContentEntity rows.
type Entity struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ProjectID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_entity_natural_key,priority:1" json:"projectId"`
	Label     string    `gorm:"column:label;not null;uniqueIndex:idx_entity_natural_key,priority:2" json:"label"`
	Type      Type      `gorm:"column:type;type:text;not null;uniqueIndex:idx_entity_natural_key,priority:3" json:"type"`
	Frequency int       `gorm:"column:frequency;not null;default:0" json:"frequency"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updatedAt"`
}

func (Entity) TableName() string { return "entity" }

type ContentEntity struct {
	ID            uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ContentItemID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_content_entity_pair,priority:1" json:"contentItemId"`
	EntityID      uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_content_entity_pair,priority:2" json:"entityId"`
	Salience      float64   `gorm:"column:salience;not null;default:0" json:"salience"`
	Context       string    `gorm:"column:context" json:"context,omitempty"`
	CreatedAt     time.Time `gorm:"not null;default:now()" json:"createdAt"`
}

func (ContentEntity) TableName() string { return "content_entity" }

// NormalizeLabel collapses whitespace so "Acme  Corp" and "Acme Corp" share a key.
func NormalizeLabel(label string) string {
	return strings.Join(strings.Fields(label), " ")
}
