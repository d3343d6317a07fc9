// Package queue hands ledger rows to a job backend. The ledger row is always
// written first; a queue only carries the encoded payload that points at it.
package queue

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/visiblee-backend/internal/domain/jobs"
)

// Message is one delivery request. Redelivery is empty for the first
// delivery; the sweep sets a fresh token per pass so the backend sees a new
// task even while an earlier one for the same job is still retained.
type Message struct {
	JobID      uuid.UUID
	JobType    jobs.JobType
	Body       []byte
	Redelivery string
}

// DeliveryID is the backend dedupe key.
func (m Message) DeliveryID() string {
	if m.Redelivery == "" {
		return m.JobID.String()
	}
	return m.JobID.String() + ":" + m.Redelivery
}

// ErrDuplicateDelivery is returned when a redelivery collides with a task the
// backend already holds. A first delivery that collides is not an error.
var ErrDuplicateDelivery = errors.New("delivery already exists")

// JobQueue enqueues deliveries. Enqueueing the same DeliveryID twice must not
// run the job twice; backends dedupe on it and the worker's claim covers the
// rest.
type JobQueue interface {
	Enqueue(ctx context.Context, msg Message) error
	Close() error
}

const taskPrefix = "job:"

// TaskType is the asynq task type for a job type, e.g. "job:compute_score".
func TaskType(t jobs.JobType) string {
	return taskPrefix + strings.ToLower(string(t))
}

// JobTypeFromTask reverses TaskType.
func JobTypeFromTask(taskType string) (jobs.JobType, bool) {
	if !strings.HasPrefix(taskType, taskPrefix) {
		return "", false
	}
	return jobs.ParseJobType(strings.TrimPrefix(taskType, taskPrefix))
}
