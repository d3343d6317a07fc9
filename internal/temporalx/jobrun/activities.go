package jobrun

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/yungbote/visiblee-backend/internal/data/repos"
	"github.com/yungbote/visiblee-backend/internal/jobs/payload"
	"github.com/yungbote/visiblee-backend/internal/jobs/worker"
	"github.com/yungbote/visiblee-backend/internal/platform/dbctx"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
)

type Activities struct {
	Log      *logger.Logger
	Jobs     repos.AnalysisJobRepo
	Executor *worker.Executor
}

// Run executes the payload through the shared executor, reporting liveness to
// Temporal on every ledger heartbeat.
func (a *Activities) Run(ctx context.Context, body []byte) (RunResult, error) {
	if a == nil || a.Jobs == nil || a.Executor == nil {
		return RunResult{}, fmt.Errorf("jobrun: activity not configured")
	}
	p, err := payload.Decode(body)
	if err != nil {
		return RunResult{}, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeInvalidPayload, err)
	}
	jobID := p.Base().JobLedgerID
	res := RunResult{JobID: jobID.String()}

	exec := a.Executor.WithBeat(func(ctx context.Context) { activity.RecordHeartbeat(ctx) })
	if err := exec.Execute(ctx, body); err != nil {
		if errors.Is(err, payload.ErrInvalid) {
			return res, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeInvalidPayload, err)
		}
		return res, err
	}

	job, err := a.Jobs.GetByID(dbctx.Of(ctx), jobID)
	if err != nil {
		// The run itself finished; a failed read only loses the summary.
		if a.Log != nil {
			a.Log.Warn("jobrun: reload after run failed", "job_id", jobID, "error", err)
		}
		return res, nil
	}
	if job != nil {
		res.Status = string(job.Status)
		res.Stage = job.Stage
		res.Progress = job.Progress
		res.ErrorMessage = job.ErrorMessage
	}
	return res, nil
}
