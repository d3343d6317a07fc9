// Package realtime carries job lifecycle events to other processes.
package realtime

import (
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/visiblee-backend/internal/domain"
)

type EventKind string

const (
	EventJobCreated  EventKind = "job_created"
	EventJobProgress EventKind = "job_progress"
	EventJobFailed   EventKind = "job_failed"
	EventJobDone     EventKind = "job_done"
)

// JobEvent is the message published on the jobs channel for every ledger
// transition.
type JobEvent struct {
	Event        EventKind `json:"event"`
	JobID        uuid.UUID `json:"jobId"`
	ProjectID    uuid.UUID `json:"projectId"`
	UserID       uuid.UUID `json:"userId"`
	JobType      string    `json:"jobType"`
	Status       string    `json:"status"`
	Stage        string    `json:"stage,omitempty"`
	Progress     int       `json:"progress"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	At           time.Time `json:"at"`
}

// NewJobEvent snapshots job as an event of the given kind.
func NewJobEvent(kind EventKind, job *types.AnalysisJob) JobEvent {
	ev := JobEvent{Event: kind, At: time.Now().UTC()}
	if job == nil {
		return ev
	}
	ev.JobID = job.ID
	ev.ProjectID = job.ProjectID
	ev.UserID = job.UserID
	ev.JobType = string(job.JobType)
	ev.Status = string(job.Status)
	ev.Stage = job.Stage
	ev.Progress = job.Progress
	ev.ErrorMessage = job.ErrorMessage
	return ev
}
