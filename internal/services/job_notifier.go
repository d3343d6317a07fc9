package services

import (
	"context"
	"time"

	types "github.com/yungbote/visiblee-backend/internal/domain"
	"github.com/yungbote/visiblee-backend/internal/observability"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
	"github.com/yungbote/visiblee-backend/internal/realtime"
	"github.com/yungbote/visiblee-backend/internal/realtime/bus"
)

// JobNotifier fans ledger transitions out to the event bus and metrics. All
// methods are best-effort and never fail the caller.
type JobNotifier interface {
	JobCreated(ctx context.Context, job *types.AnalysisJob)
	JobProgress(ctx context.Context, job *types.AnalysisJob)
	JobFailed(ctx context.Context, job *types.AnalysisJob)
	JobDone(ctx context.Context, job *types.AnalysisJob)
}

type jobNotifier struct {
	log     *logger.Logger
	bus     bus.Bus
	metrics *observability.Metrics
}

// NewJobNotifier accepts a nil bus or nil metrics; the corresponding side
// effect is then skipped.
func NewJobNotifier(log *logger.Logger, b bus.Bus, metrics *observability.Metrics) JobNotifier {
	return &jobNotifier{log: log.With("service", "JobNotifier"), bus: b, metrics: metrics}
}

func (n *jobNotifier) JobCreated(ctx context.Context, job *types.AnalysisJob) {
	n.publish(ctx, realtime.EventJobCreated, job)
}

func (n *jobNotifier) JobProgress(ctx context.Context, job *types.AnalysisJob) {
	n.publish(ctx, realtime.EventJobProgress, job)
}

func (n *jobNotifier) JobFailed(ctx context.Context, job *types.AnalysisJob) {
	n.publish(ctx, realtime.EventJobFailed, job)
	n.observe(job)
}

func (n *jobNotifier) JobDone(ctx context.Context, job *types.AnalysisJob) {
	n.publish(ctx, realtime.EventJobDone, job)
	n.observe(job)
}

func (n *jobNotifier) observe(job *types.AnalysisJob) {
	if job == nil {
		return
	}
	var dur time.Duration
	if job.StartedAt != nil && job.CompletedAt != nil {
		dur = job.CompletedAt.Sub(*job.StartedAt)
	}
	n.metrics.ObserveJob(string(job.JobType), string(job.Status), dur)
}

func (n *jobNotifier) publish(ctx context.Context, kind realtime.EventKind, job *types.AnalysisJob) {
	if n.bus == nil || job == nil {
		return
	}
	if ctx == nil || ctx.Err() != nil {
		ctx = context.Background()
	}
	pubCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := n.bus.Publish(pubCtx, realtime.NewJobEvent(kind, job)); err != nil {
		n.log.Warn("job event publish failed", "job_id", job.ID, "event", kind, "error", err)
	}
}
