package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/visiblee-backend/internal/data/repos"
	"github.com/yungbote/visiblee-backend/internal/domain/jobs"
	"github.com/yungbote/visiblee-backend/internal/jobs/payload"
	"github.com/yungbote/visiblee-backend/internal/jobs/runtime"
	"github.com/yungbote/visiblee-backend/internal/platform/dbctx"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
	"github.com/yungbote/visiblee-backend/internal/services"
)

// BeatFunc is called alongside every ledger heartbeat. Temporal activities use
// it to report liveness to the server.
type BeatFunc func(ctx context.Context)

// Executor runs one queue delivery against the ledger.
//
// A delivery carries only the encoded payload; the ledger row named by its
// job_ledger_id is the source of truth. The executor claims the row
// (PENDING -> RUNNING), keeps its heartbeat fresh while the handler runs and
// makes sure the row ends terminal. Deliveries for rows that are missing or no
// longer PENDING are acknowledged without running anything, which makes
// duplicate deliveries and sweep re-enqueues harmless.
type Executor struct {
	log            *logger.Logger
	repo           repos.AnalysisJobRepo
	registry       *runtime.Registry
	notify         services.JobNotifier
	heartbeatEvery time.Duration
	beat           BeatFunc

	now func() time.Time
}

func NewExecutor(baseLog *logger.Logger, repo repos.AnalysisJobRepo, registry *runtime.Registry, notify services.JobNotifier, heartbeatEvery time.Duration) *Executor {
	if heartbeatEvery <= 0 {
		heartbeatEvery = 30 * time.Second
	}
	return &Executor{
		log:            baseLog.With("component", "JobExecutor"),
		repo:           repo,
		registry:       registry,
		notify:         notify,
		heartbeatEvery: heartbeatEvery,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// WithBeat returns a copy of e that also calls beat on every heartbeat tick.
func (e *Executor) WithBeat(beat BeatFunc) *Executor {
	cp := *e
	cp.beat = beat
	return &cp
}

// Execute handles one delivery. A nil return acknowledges it.
//
// Errors are returned only for failures before the claim (a bad payload or an
// unreachable ledger), so the queue may redeliver. A payload that fails
// validation wraps payload.ErrInvalid and should not be retried. Once the row is
// claimed every outcome, including a panic, is written to the ledger and the
// delivery is acknowledged.
func (e *Executor) Execute(ctx context.Context, raw []byte) error {
	p, err := payload.Decode(raw)
	if err != nil {
		return err
	}
	base := p.Base()
	log := e.log.With("job_id", base.JobLedgerID, "job_type", base.JobType)

	job, err := e.repo.GetByID(dbctx.Of(ctx), base.JobLedgerID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", base.JobLedgerID, err)
	}
	if job == nil {
		log.Warn("ledger row missing; dropping delivery")
		return nil
	}
	if job.JobType != base.JobType || job.ProjectID != base.ProjectID {
		log.Warn("payload does not match ledger row; dropping delivery",
			"ledger_job_type", job.JobType,
			"ledger_project_id", job.ProjectID,
		)
		return nil
	}
	if job.Status != jobs.StatusPending {
		log.Info("job not pending; skipping delivery", "status", job.Status)
		return nil
	}

	now := e.now()
	claimed, err := e.repo.Claim(dbctx.Of(ctx), job.ID, now)
	if err != nil {
		return fmt.Errorf("claim job %s: %w", job.ID, err)
	}
	if !claimed {
		log.Info("job claimed elsewhere; skipping delivery")
		return nil
	}
	job.Status = jobs.StatusRunning
	job.Stage = "started"
	job.StartedAt = &now
	job.HeartbeatAt = &now
	job.Attempts++

	jc := runtime.NewContext(ctx, job, p, e.repo, e.notify, e.log)
	if e.notify != nil {
		e.notify.JobProgress(jc.Ctx, job)
	}

	h, ok := e.registry.Get(job.JobType)
	if !ok {
		log.Warn("no handler registered for job_type")
		jc.Fail("dispatch", &missingHandlerError{JobType: job.JobType})
		return nil
	}

	stop := e.startHeartbeat(jc.Ctx, job.ID)
	defer stop()

	e.run(jc, h)
	return nil
}

func (e *Executor) run(jc *runtime.Context, h runtime.Handler) {
	defer func() {
		if r := recover(); r != nil {
			jc.Log.Error("job handler panic", "panic", r)
			jc.Fail("panic", errFromRecover(r))
		}
	}()
	started := time.Now()
	if err := h.Run(jc); err != nil {
		jc.Fail("run", err)
		return
	}
	if !jc.Terminal() {
		// Handlers normally finish with Succeed; a bare nil still ends the run.
		jc.Log.Warn("handler returned without finishing the job", "elapsed", time.Since(started))
		jc.Succeed(nil)
	}
}

func (e *Executor) startHeartbeat(ctx context.Context, id uuid.UUID) func() {
	hbCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		t := time.NewTicker(e.heartbeatEvery)
		defer t.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-t.C:
				if err := e.repo.Heartbeat(dbctx.Of(hbCtx), id, e.now()); err != nil && !errors.Is(err, context.Canceled) {
					e.log.Warn("heartbeat failed", "job_id", id, "error", err)
				}
				if e.beat != nil {
					e.beat(hbCtx)
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

type missingHandlerError struct{ JobType jobs.JobType }

func (e *missingHandlerError) Error() string {
	return "no handler registered for job_type=" + string(e.JobType)
}

func errFromRecover(v any) error { return &panicError{Val: v} }

type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }
