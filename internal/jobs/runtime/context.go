package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/yungbote/visiblee-backend/internal/data/repos"
	types "github.com/yungbote/visiblee-backend/internal/domain"
	"github.com/yungbote/visiblee-backend/internal/domain/jobs"
	"github.com/yungbote/visiblee-backend/internal/jobs/payload"
	"github.com/yungbote/visiblee-backend/internal/platform/apierr"
	"github.com/yungbote/visiblee-backend/internal/platform/ctxutil"
	"github.com/yungbote/visiblee-backend/internal/platform/dbctx"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
	"github.com/yungbote/visiblee-backend/internal/services"
)

/*
Context is the execution handle for one claimed job.

It wraps the request context, the in-memory ledger row, the decoded payload
and the notifier. Pipelines never write analysis_job directly; they report
through Progress, Fail and Succeed, which keep the row, the in-memory copy
and the event stream consistent.
*/
type Context struct {
	Ctx     context.Context
	Job     *types.AnalysisJob
	Payload payload.Payload
	Repo    repos.AnalysisJobRepo
	Notify  services.JobNotifier
	Log     *logger.Logger

	now func() time.Time
}

func NewContext(ctx context.Context, job *types.AnalysisJob, p payload.Payload, repo repos.AnalysisJobRepo, notify services.JobNotifier, log *logger.Logger) *Context {
	if log == nil {
		log = logger.Nop()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	c := &Context{
		Ctx:     ctx,
		Job:     job,
		Payload: p,
		Repo:    repo,
		Notify:  notify,
		now:     func() time.Time { return time.Now().UTC() },
	}
	c.applyTraceData()
	fields := append([]interface{}{"job_id", job.ID, "job_type", job.JobType, "project_id", job.ProjectID}, ctxutil.TraceFields(c.Ctx)...)
	c.Log = log.With(fields...)
	return c
}

func (c *Context) applyTraceData() {
	if c.Payload == nil {
		return
	}
	base := c.Payload.Base()
	traceID := strings.TrimSpace(base.TraceID)
	reqID := strings.TrimSpace(base.RequestID)
	if traceID == "" && reqID == "" {
		return
	}
	c.Ctx = ctxutil.WithTraceData(c.Ctx, &ctxutil.TraceData{TraceID: traceID, RequestID: reqID})
}

// DBC returns a repository context bound to this run.
func (c *Context) DBC() dbctx.Context {
	return dbctx.Of(c.Ctx)
}

// finalDBC survives cancellation of the run context so a worker shutting
// down can still record the outcome.
func (c *Context) finalDBC() dbctx.Context {
	return dbctx.Of(context.WithoutCancel(c.Ctx))
}

// Terminal reports whether Fail or Succeed already landed.
func (c *Context) Terminal() bool {
	return c.Job != nil && c.Job.Status.Terminal()
}

// Progress records a non-terminal stage update. Write failures are logged and
// otherwise ignored; the next update or the heartbeat will catch up.
func (c *Context) Progress(stage string, pct int) {
	if c == nil || c.Job == nil || c.Terminal() {
		return
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 99 {
		pct = 99
	}
	if c.Repo != nil {
		if err := c.Repo.UpdateProgress(c.DBC(), c.Job.ID, stage, pct); err != nil {
			c.Log.Warn("progress update failed", "stage", stage, "error", err)
			return
		}
	}
	now := c.now()
	c.Job.Stage = stage
	c.Job.Progress = pct
	c.Job.HeartbeatAt = &now
	c.Job.UpdatedAt = now
	if c.Notify != nil {
		c.Notify.JobProgress(c.Ctx, c.Job)
	}
}

// StageProgress maps a stage's done/total counter onto the [lo, hi] slice of
// the job's overall progress.
func (c *Context) StageProgress(stage string, lo, hi int) func(done, total int) {
	last := -1
	return func(done, total int) {
		if total <= 0 {
			return
		}
		pct := lo + (hi-lo)*done/total
		if pct == last {
			return
		}
		last = pct
		c.Progress(stage, pct)
	}
}

/*
Fail marks the run FAILED with a message derived from err.

The ledger update is conditional on the row still being active, so a job the
sweep already timed out is left alone and no event is emitted.
*/
func (c *Context) Fail(stage string, err error) {
	if c == nil || c.Job == nil || c.Terminal() {
		return
	}
	msg := jobs.TruncateError(FailureMessage(err))
	now := c.now()
	if c.Repo != nil {
		ok, uerr := c.Repo.Fail(c.finalDBC(), c.Job.ID, msg, now)
		if uerr != nil {
			c.Log.Error("marking job failed", "stage", stage, "error", uerr, "cause", msg)
			return
		}
		if !ok {
			c.Log.Warn("job already terminal; failure not recorded", "stage", stage, "cause", msg)
			return
		}
	}
	c.Job.Status = jobs.StatusFailed
	c.Job.Stage = stage
	c.Job.ErrorMessage = msg
	c.Job.CompletedAt = &now
	c.Job.UpdatedAt = now
	c.Log.Warn("job failed", "stage", stage, "error", msg)
	if c.Notify != nil {
		c.Notify.JobFailed(context.WithoutCancel(c.Ctx), c.Job)
	}
}

// Succeed completes the run with result as its summary.
func (c *Context) Succeed(result any) {
	if c == nil || c.Job == nil || c.Terminal() {
		return
	}
	var summary datatypes.JSON
	if result != nil {
		b, err := json.Marshal(result)
		if err != nil {
			c.Fail("finalize", err)
			return
		}
		summary = datatypes.JSON(b)
	}
	now := c.now()
	if c.Repo != nil {
		ok, err := c.Repo.Complete(c.finalDBC(), c.Job.ID, summary, now)
		if err != nil {
			c.Log.Error("marking job completed", "error", err)
			return
		}
		if !ok {
			c.Log.Warn("job no longer running; completion not recorded")
			return
		}
	}
	c.Job.Status = jobs.StatusCompleted
	c.Job.Stage = "done"
	c.Job.Progress = 100
	c.Job.ResultSummary = summary
	c.Job.CompletedAt = &now
	c.Job.UpdatedAt = now
	c.Log.Info("job completed")
	if c.Notify != nil {
		c.Notify.JobDone(context.WithoutCancel(c.Ctx), c.Job)
	}
}

// FailureMessage renders err for error_message. Taxonomy errors other than
// INTERNAL keep their code as a prefix so callers can branch on it.
func FailureMessage(err error) string {
	if err == nil {
		return "unknown error"
	}
	var ae *apierr.Error
	var coder apierr.Coder
	if errors.As(err, &ae) || errors.As(err, &coder) {
		if code := apierr.Code(err); code != "" && code != apierr.CodeInternal {
			return code + ": " + apierr.From(err).Error()
		}
	}
	return err.Error()
}
