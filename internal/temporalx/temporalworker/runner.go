package temporalworker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/visiblee-backend/internal/config"
	"github.com/yungbote/visiblee-backend/internal/data/repos"
	"github.com/yungbote/visiblee-backend/internal/domain/jobs"
	jobworker "github.com/yungbote/visiblee-backend/internal/jobs/worker"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
	"github.com/yungbote/visiblee-backend/internal/temporalx"
	"github.com/yungbote/visiblee-backend/internal/temporalx/jobrun"
)

const (
	startMaxWait    = time.Minute
	startBackoff    = 250 * time.Millisecond
	startBackoffMax = 5 * time.Second
)

// Runner polls one Temporal task queue per logical job queue.
type Runner struct {
	log *logger.Logger
	tc  temporalsdkclient.Client
	cfg config.TemporalConfig

	concurrency int
	acts        *jobrun.Activities
}

func NewRunner(log *logger.Logger, tc temporalsdkclient.Client, cfg config.TemporalConfig, concurrency int, jobRepo repos.AnalysisJobRepo, exec *jobworker.Executor) (*Runner, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if jobRepo == nil || exec == nil {
		return nil, fmt.Errorf("temporal worker missing deps")
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runner{
		log:         log.With("component", "TemporalWorker"),
		tc:          tc,
		cfg:         cfg,
		concurrency: concurrency,
		acts:        &jobrun.Activities{Log: log, Jobs: jobRepo, Executor: exec},
	}, nil
}

// Start launches workers for every job queue and stops them when ctx ends.
func (r *Runner) Start(ctx context.Context) error {
	var started []worker.Worker
	for _, q := range []string{jobs.QueueAnalysis, jobs.QueueDiscovery} {
		w, err := r.startQueue(ctx, temporalx.TaskQueue(r.cfg, q))
		if err != nil {
			for _, s := range started {
				s.Stop()
			}
			return err
		}
		started = append(started, w)
	}
	go func() {
		<-ctx.Done()
		for _, w := range started {
			w.Stop()
		}
	}()
	return nil
}

func (r *Runner) startQueue(ctx context.Context, taskQueue string) (worker.Worker, error) {
	deadline := time.Now().Add(startMaxWait)
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		w := r.newWorker(taskQueue)
		startErr := w.Start()
		if startErr == nil {
			r.log.Info("Temporal worker started", "namespace", r.cfg.Namespace, "task_queue", taskQueue, "attempts", attempt)
			return w, nil
		}
		w.Stop()

		var nfe *serviceerror.NamespaceNotFound
		if errors.As(startErr, &nfe) && r.cfg.AutoRegisterNamespace {
			if err := temporalx.EnsureNamespace(ctx, r.log, r.cfg); err != nil {
				r.log.Warn("Temporal namespace ensure failed", "namespace", r.cfg.Namespace, "error", err)
			}
		}
		if time.Now().After(deadline) {
			if errors.As(startErr, &nfe) {
				return nil, fmt.Errorf("temporal namespace not found (namespace=%s): %w", r.cfg.Namespace, startErr)
			}
			return nil, startErr
		}
		r.log.Warn("Temporal worker failed to start; retrying", "task_queue", taskQueue, "attempt", attempt, "error", startErr)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(temporalx.Backoff(startBackoff, startBackoffMax, attempt)):
		}
	}
}

func (r *Runner) newWorker(taskQueue string) worker.Worker {
	w := worker.New(r.tc, taskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     r.concurrency,
		MaxConcurrentWorkflowTaskExecutionSize: r.concurrency,
	})
	w.RegisterWorkflowWithOptions(jobrun.Workflow, workflow.RegisterOptions{Name: temporalx.WorkflowName})
	w.RegisterActivityWithOptions(r.acts.Run, activity.RegisterOptions{Name: jobrun.ActivityRun})
	return w
}
