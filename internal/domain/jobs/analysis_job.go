package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s Status) Active() bool {
	return s == StatusPending || s == StatusRunning
}

// ErrorMessageMax bounds the stored error_message, in runes.
const ErrorMessageMax = 500

// TimeoutMessage is the error_message written by the stale-job sweep.
const TimeoutMessage = "timeout"

// NeverStartedMessage is written when a PENDING row outlives every re-enqueue.
const NeverStartedMessage = "never started: no worker picked up the job"

// AnalysisJob is the ledger row for one asynchronous pipeline invocation.
type AnalysisJob struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ProjectID       uuid.UUID      `gorm:"type:uuid;not null;index:idx_analysis_job_project_type_status,priority:1" json:"projectId"`
	UserID          uuid.UUID      `gorm:"type:uuid;not null;index" json:"userId"`
	JobType         JobType        `gorm:"column:job_type;type:text;not null;index:idx_analysis_job_project_type_status,priority:2" json:"jobType"`
	Queue           string         `gorm:"column:queue;type:text;not null" json:"queue"`
	Status          Status         `gorm:"column:status;type:text;not null;index:idx_analysis_job_project_type_status,priority:3" json:"status"`
	Stage           string         `gorm:"column:stage;not null;default:''" json:"stage,omitempty"`
	Progress        int            `gorm:"column:progress;not null;default:0" json:"progress"`
	Attempts        int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	Payload         datatypes.JSON `gorm:"column:payload;type:jsonb" json:"-"`
	ResultSummary   datatypes.JSON `gorm:"column:result_summary;type:jsonb" json:"resultSummary,omitempty"`
	ErrorMessage    string         `gorm:"column:error_message" json:"errorMessage,omitempty"`
	RestartedFromID *uuid.UUID     `gorm:"type:uuid;column:restarted_from_id" json:"restartedFromId,omitempty"`
	CreatedAt       time.Time      `gorm:"not null;default:now();index" json:"createdAt"`
	StartedAt       *time.Time     `gorm:"column:started_at" json:"startedAt,omitempty"`
	CompletedAt     *time.Time     `gorm:"column:completed_at" json:"completedAt,omitempty"`
	HeartbeatAt     *time.Time     `gorm:"column:heartbeat_at" json:"heartbeatAt,omitempty"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()" json:"updatedAt"`
}

func (AnalysisJob) TableName() string { return "analysis_job" }

// TruncateError trims msg to ErrorMessageMax runes.
func TruncateError(msg string) string {
	r := []rune(msg)
	if len(r) <= ErrorMessageMax {
		return msg
	}
	return string(r[:ErrorMessageMax-3]) + "..."
}
