package project

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ProjectScore holds one row per project and is only ever written whole.
type ProjectScore struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ProjectID    uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"projectId"`
	OverallScore int            `gorm:"column:overall_score;not null" json:"overallScore"`
	Coverage     int            `gorm:"column:coverage;not null" json:"coverage"`
	Depth        int            `gorm:"column:depth;not null" json:"depth"`
	Freshness    int            `gorm:"column:freshness;not null" json:"freshness"`
	Authority    int            `gorm:"column:authority;not null" json:"authority"`
	Coherence    int            `gorm:"column:coherence;not null" json:"coherence"`
	Suggestions  datatypes.JSON `gorm:"column:suggestions;type:jsonb" json:"suggestions"`
	ContentCount int            `gorm:"column:content_count;not null" json:"contentCount"`
	IsStale      bool           `gorm:"column:is_stale;not null;default:false" json:"isStale"`
	ComputedAt   time.Time      `gorm:"column:computed_at;not null" json:"computedAt"`
	UpdatedAt    time.Time      `gorm:"not null;default:now()" json:"updatedAt"`
}

func (ProjectScore) TableName() string { return "project_score" }

// Dimensions returns the dimension scores keyed by name.
func (s *ProjectScore) Dimensions() map[string]int {
	return map[string]int{
		"coverage":  s.Coverage,
		"depth":     s.Depth,
		"freshness": s.Freshness,
		"authority": s.Authority,
		"coherence": s.Coherence,
	}
}
