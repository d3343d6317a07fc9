// Package sweep reconciles the job ledger with the queue. Runs that stopped
// heartbeating are timed out, PENDING rows that never reached a worker are
// handed to the queue again under a fresh delivery ID, and PENDING rows older
// than the hard cap are failed.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yungbote/visiblee-backend/internal/config"
	"github.com/yungbote/visiblee-backend/internal/data/repos"
	types "github.com/yungbote/visiblee-backend/internal/domain"
	"github.com/yungbote/visiblee-backend/internal/jobs/payload"
	"github.com/yungbote/visiblee-backend/internal/jobs/queue"
	"github.com/yungbote/visiblee-backend/internal/observability"
	"github.com/yungbote/visiblee-backend/internal/platform/dbctx"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
	"github.com/yungbote/visiblee-backend/internal/services"
)

// TaskType is the asynq task that triggers one sweep.
const TaskType = "sweep:reconcile"

const orphanBatch = 200

type Report struct {
	TimedOut      int `json:"timedOut"`
	Abandoned     int `json:"abandoned"`
	Reenqueued    int `json:"reenqueued"`
	EnqueueErrors int `json:"enqueueErrors"`
}

type Sweeper struct {
	log         *logger.Logger
	repo        repos.AnalysisJobRepo
	queue       queue.JobQueue
	notify      services.JobNotifier
	metrics     *observability.Metrics
	staleAfter  time.Duration
	orphanAfter time.Duration
	pendingMax  time.Duration

	now func() time.Time
}

func New(baseLog *logger.Logger, repo repos.AnalysisJobRepo, q queue.JobQueue, notify services.JobNotifier, metrics *observability.Metrics, cfg config.JobsConfig) *Sweeper {
	staleAfter := cfg.StaleAfter.Duration
	if staleAfter <= 0 {
		staleAfter = 30 * time.Minute
	}
	orphanAfter := cfg.OrphanAfter.Duration
	if orphanAfter <= 0 {
		orphanAfter = 10 * time.Minute
	}
	pendingMax := cfg.PendingMaxAge.Duration
	if pendingMax <= orphanAfter {
		pendingMax = 12 * orphanAfter
	}
	return &Sweeper{
		log:         baseLog.With("component", "JobSweeper"),
		repo:        repo,
		queue:       q,
		notify:      notify,
		metrics:     metrics,
		staleAfter:  staleAfter,
		orphanAfter: orphanAfter,
		pendingMax:  pendingMax,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Run performs one reconciliation pass. Enqueue failures for single rows are
// counted and logged; only ledger errors abort the pass.
func (s *Sweeper) Run(ctx context.Context) (Report, error) {
	var rep Report
	now := s.now()
	dbc := dbctx.Of(ctx)

	timedOut, err := s.repo.FailStaleRunning(dbc, now.Add(-s.staleAfter), now)
	if err != nil {
		return rep, fmt.Errorf("fail stale runs: %w", err)
	}
	rep.TimedOut = len(timedOut)
	for _, job := range timedOut {
		s.log.Warn("job timed out", "job_id", job.ID, "job_type", job.JobType, "stage", job.Stage)
		if s.notify != nil {
			s.notify.JobFailed(ctx, job)
		}
	}
	s.metrics.AddSweep("timed_out", rep.TimedOut)

	abandoned, err := s.repo.FailStalePending(dbc, now.Add(-s.pendingMax), now)
	if err != nil {
		return rep, fmt.Errorf("fail stale pending: %w", err)
	}
	rep.Abandoned = len(abandoned)
	for _, job := range abandoned {
		s.log.Warn("job never started", "job_id", job.ID, "job_type", job.JobType, "created_at", job.CreatedAt)
		if s.notify != nil {
			s.notify.JobFailed(ctx, job)
		}
	}
	s.metrics.AddSweep("abandoned", rep.Abandoned)

	orphans, err := s.repo.ListOrphanedPending(dbc, now.Add(-s.orphanAfter), orphanBatch)
	if err != nil {
		return rep, fmt.Errorf("list orphaned jobs: %w", err)
	}
	redelivery := fmt.Sprintf("sweep-%d", now.UnixMilli())
	for _, job := range orphans {
		if err := s.reenqueue(ctx, job, redelivery); err != nil {
			rep.EnqueueErrors++
			s.log.Warn("re-enqueue failed", "job_id", job.ID, "job_type", job.JobType, "error", err)
			continue
		}
		rep.Reenqueued++
	}
	s.metrics.AddSweep("reenqueued", rep.Reenqueued)
	s.metrics.AddSweep("enqueue_error", rep.EnqueueErrors)

	if rep.TimedOut > 0 || rep.Abandoned > 0 || rep.Reenqueued > 0 || rep.EnqueueErrors > 0 {
		s.log.Info("sweep finished", "timed_out", rep.TimedOut, "abandoned", rep.Abandoned, "reenqueued", rep.Reenqueued, "enqueue_errors", rep.EnqueueErrors)
	}
	return rep, nil
}

func (s *Sweeper) reenqueue(ctx context.Context, job *types.AnalysisJob, redelivery string) error {
	body := []byte(job.Payload)
	if len(body) == 0 {
		// Rows written before payloads were stored on the ledger.
		var err error
		body, err = payload.Encode(payload.New(payload.Common{
			JobType:     job.JobType,
			ProjectID:   job.ProjectID,
			UserID:      job.UserID,
			JobLedgerID: job.ID,
		}))
		if err != nil {
			return err
		}
	}
	return s.queue.Enqueue(ctx, queue.Message{JobID: job.ID, JobType: job.JobType, Body: body, Redelivery: redelivery})
}

// RunEvery sweeps on a ticker until ctx ends. Used when no asynq scheduler
// runs, e.g. under the Temporal backend.
func (s *Sweeper) RunEvery(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.log.Warn("sweep failed", "error", err)
			}
		}
	}
}
