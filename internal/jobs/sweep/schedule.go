package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Queue is the asynq queue sweep tasks run on.
const Queue = "maintenance"

// Schedule registers the periodic sweep. asynq.Unique keeps at most one
// pending sweep per interval when several schedulers run.
func Schedule(s *asynq.Scheduler, interval time.Duration) (string, error) {
	if interval <= 0 {
		interval = time.Minute
	}
	return s.Register(
		fmt.Sprintf("@every %s", interval),
		asynq.NewTask(TaskType, nil),
		asynq.Queue(Queue),
		asynq.Unique(interval),
		asynq.MaxRetry(0),
	)
}

// ProcessTask lets the sweeper serve TaskType on an asynq mux.
func (s *Sweeper) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	_, err := s.Run(ctx)
	return err
}
