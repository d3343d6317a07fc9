package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/yungbote/visiblee-backend/internal/config"
	"github.com/yungbote/visiblee-backend/internal/domain/jobs"
	"github.com/yungbote/visiblee-backend/internal/jobs/payload"
	"github.com/yungbote/visiblee-backend/internal/jobs/queue"
	"github.com/yungbote/visiblee-backend/internal/jobs/sweep"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
)

// Queue priorities for the asynq server. Sweeps share the server on their own
// low-weight queue.
var queuePriorities = map[string]int{
	jobs.QueueAnalysis:  6,
	jobs.QueueDiscovery: 3,
	sweep.Queue:         1,
}

// AsynqServer consumes job tasks and hands them to an Executor.
type AsynqServer struct {
	log  *logger.Logger
	srv  *asynq.Server
	mux  *asynq.ServeMux
	exec *Executor
}

func NewAsynqServer(log *logger.Logger, redisOpt asynq.RedisConnOpt, cfg config.QueueConfig, exec *Executor) *AsynqServer {
	l := log.With("component", "AsynqServer")
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:     cfg.Concurrency,
		Queues:          queuePriorities,
		ShutdownTimeout: 30 * time.Second,
		Logger:          logger.AsynqAdapter{L: l},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			l.Error("task failed", "type", task.Type(), "retry", retried, "max_retry", maxRetry, "error", err)
		}),
	})
	s := &AsynqServer{log: l, srv: srv, mux: asynq.NewServeMux(), exec: exec}
	for _, t := range append(append([]jobs.JobType{}, jobs.AnalysisTypes...), jobs.DiscoveryTypes...) {
		s.mux.HandleFunc(queue.TaskType(t), s.handleJob)
	}
	return s
}

// Handle registers an extra task type, e.g. the periodic sweep.
func (s *AsynqServer) Handle(pattern string, h asynq.Handler) {
	s.mux.Handle(pattern, h)
}

func (s *AsynqServer) handleJob(ctx context.Context, t *asynq.Task) error {
	return handleJobTask(ctx, s.exec, t)
}

func handleJobTask(ctx context.Context, exec *Executor, t *asynq.Task) error {
	err := exec.Execute(ctx, t.Payload())
	if err == nil {
		return nil
	}
	if errors.Is(err, payload.ErrInvalid) {
		return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
	}
	return err
}

// Run blocks until ctx ends, then shuts the server down.
func (s *AsynqServer) Run(ctx context.Context) error {
	if err := s.srv.Start(s.mux); err != nil {
		return fmt.Errorf("asynq server start: %w", err)
	}
	s.log.Info("asynq server started")
	<-ctx.Done()
	s.srv.Shutdown()
	s.log.Info("asynq server stopped")
	return nil
}
