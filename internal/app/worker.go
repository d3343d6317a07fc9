package app

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/yungbote/visiblee-backend/internal/config"
	"github.com/yungbote/visiblee-backend/internal/jobs/queue"
	"github.com/yungbote/visiblee-backend/internal/jobs/sweep"
	jobworker "github.com/yungbote/visiblee-backend/internal/jobs/worker"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
	"github.com/yungbote/visiblee-backend/internal/temporalx/temporalworker"
)

func (a *App) sweeper() *sweep.Sweeper {
	return sweep.New(a.Log, a.Repos.Jobs, a.Services.Queue, a.Services.Notifier, a.Metrics, a.Cfg.Jobs)
}

// RunWorker consumes jobs from the configured backend until ctx ends. The
// stale-job sweep runs alongside it.
func (a *App) RunWorker(ctx context.Context) error {
	registry, err := a.pipelines()
	if err != nil {
		return err
	}
	exec := jobworker.NewExecutor(a.Log, a.Repos.Jobs, registry, a.Services.Notifier, a.Cfg.Jobs.HeartbeatEvery.Duration)
	sweeper := a.sweeper()

	if a.Metrics != nil {
		a.Metrics.StartServer(ctx, a.Log, a.Cfg.Metrics.Addr)
		a.Metrics.StartPostgresCollector(ctx, a.Log, a.DB)
		a.Metrics.StartJobQueueCollector(ctx, a.Log, a.Repos.Jobs)
		if a.Redis != nil {
			a.Metrics.StartRedisCollector(ctx, a.Log, a.Redis)
		}
	}

	if a.Cfg.Queue.Backend == config.QueueBackendTemporal {
		runner, err := temporalworker.NewRunner(a.Log, a.Clients.Temporal, a.Cfg.Temporal, a.Cfg.Queue.Concurrency, a.Repos.Jobs, exec)
		if err != nil {
			return fmt.Errorf("init temporal worker: %w", err)
		}
		if err := runner.Start(ctx); err != nil {
			return fmt.Errorf("start temporal worker: %w", err)
		}
		a.Log.Info("Temporal worker started", "types", registry.Types())
		sweeper.RunEvery(ctx, a.Cfg.Jobs.SweepInterval.Duration)
		return nil
	}

	redisOpt, err := queue.RedisConnOpt(a.Cfg.Redis)
	if err != nil {
		return fmt.Errorf("asynq redis options: %w", err)
	}
	srv := jobworker.NewAsynqServer(a.Log, redisOpt, a.Cfg.Queue, exec)
	srv.Handle(sweep.TaskType, sweeper)

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Logger: logger.AsynqAdapter{L: a.Log.With("component", "AsynqScheduler")},
	})
	if _, err := sweep.Schedule(scheduler, a.Cfg.Jobs.SweepInterval.Duration); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer scheduler.Shutdown()

	a.Log.Info("Asynq worker starting", "types", registry.Types(), "concurrency", a.Cfg.Queue.Concurrency)
	return srv.Run(ctx)
}

// SweepOnce runs a single stale-job sweep and returns what it did.
func (a *App) SweepOnce(ctx context.Context) (sweep.Report, error) {
	return a.sweeper().Run(ctx)
}
