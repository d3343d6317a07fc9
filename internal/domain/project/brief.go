package project

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type BriefStatus string

const (
	BriefPending  BriefStatus = "PENDING"
	BriefAccepted BriefStatus = "ACCEPTED"
	BriefRejected BriefStatus = "REJECTED"
	BriefDone     BriefStatus = "DONE"
)

func ParseBriefStatus(s string) (BriefStatus, bool) {
	switch b := BriefStatus(s); b {
	case BriefPending, BriefAccepted, BriefRejected, BriefDone:
		return b, true
	}
	return "", false
}

type ContentBrief struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ProjectID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"projectId"`
	JobID          *uuid.UUID     `gorm:"type:uuid;column:job_id" json:"jobId,omitempty"`
	Title          string         `gorm:"column:title;not null" json:"title"`
	Dimension      string         `gorm:"column:dimension" json:"dimension,omitempty"`
	TargetPlatform string         `gorm:"column:target_platform" json:"targetPlatform,omitempty"`
	Status         BriefStatus    `gorm:"column:status;type:text;not null;default:'PENDING'" json:"status"`
	KeyPoints      datatypes.JSON `gorm:"column:key_points;type:jsonb" json:"keyPoints"`
	EntityLabels   datatypes.JSON `gorm:"column:entity_labels;type:jsonb" json:"entityLabels"`
	GeneratedAt    time.Time      `gorm:"column:generated_at;not null;default:now()" json:"generatedAt"`
	UpdatedAt      time.Time      `gorm:"not null;default:now()" json:"updatedAt"`
}

func (ContentBrief) TableName() string { return "content_brief" }

type SuggestionSource string

const (
	SuggestionFromEngine   SuggestionSource = "ENGINE"
	SuggestionFromTemplate SuggestionSource = "TEMPLATE"
)

type ContentSuggestion struct {
	ID        uuid.UUID        `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ProjectID uuid.UUID        `gorm:"type:uuid;not null;index" json:"projectId"`
	JobID     *uuid.UUID       `gorm:"type:uuid;column:job_id" json:"jobId,omitempty"`
	Dimension string           `gorm:"column:dimension" json:"dimension,omitempty"`
	Source    SuggestionSource `gorm:"column:source;type:text;not null" json:"source"`
	Text      string           `gorm:"column:text;not null" json:"text"`
	Rank      int              `gorm:"column:rank;not null;default:0" json:"rank"`
	CreatedAt time.Time        `gorm:"not null;default:now();index" json:"createdAt"`
}

func (ContentSuggestion) TableName() string { return "content_suggestion" }
