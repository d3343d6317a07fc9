package queue

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/api/serviceerror"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/visiblee-backend/internal/config"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
	"github.com/yungbote/visiblee-backend/internal/temporalx"
)

type workflowStarter interface {
	ExecuteWorkflow(ctx context.Context, options temporalsdkclient.StartWorkflowOptions, workflow interface{}, args ...interface{}) (temporalsdkclient.WorkflowRun, error)
}

// TemporalQueue starts one job_run workflow per ledger row.
type TemporalQueue struct {
	log *logger.Logger
	tc  workflowStarter
	cfg config.TemporalConfig
}

func NewTemporalQueue(log *logger.Logger, tc temporalsdkclient.Client, cfg config.TemporalConfig) *TemporalQueue {
	return &TemporalQueue{log: log.With("component", "TemporalQueue"), tc: tc, cfg: cfg}
}

func (q *TemporalQueue) Enqueue(ctx context.Context, msg Message) error {
	opts := temporalsdkclient.StartWorkflowOptions{
		ID:                                       temporalx.WorkflowID(msg.DeliveryID()),
		TaskQueue:                                temporalx.TaskQueue(q.cfg, msg.JobType.Queue()),
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}
	run, err := q.tc.ExecuteWorkflow(ctx, opts, temporalx.WorkflowName, msg.Body)
	if err != nil {
		var already *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &already) {
			if msg.Redelivery != "" {
				return fmt.Errorf("temporal start %s: %w", msg.DeliveryID(), ErrDuplicateDelivery)
			}
			q.log.Debug("workflow already started", "job_id", msg.JobID)
			return nil
		}
		return fmt.Errorf("temporal start %s: %w", msg.JobType, err)
	}
	q.log.Debug("workflow started", "job_id", msg.JobID, "run_id", run.GetRunID())
	return nil
}

// Close is a no-op; the Temporal client is shared with the worker.
func (q *TemporalQueue) Close() error { return nil }
