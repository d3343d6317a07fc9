package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/yungbote/visiblee-backend/internal/config"
	"github.com/yungbote/visiblee-backend/internal/domain/jobs"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
	"github.com/yungbote/visiblee-backend/internal/platform/redisdb"
)

const taskRetention = 24 * time.Hour

// RedisConnOpt derives asynq connection options from the shared Redis config.
func RedisConnOpt(cfg config.RedisConfig) (asynq.RedisClientOpt, error) {
	o, err := redisdb.Options(cfg)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}
	return asynq.RedisClientOpt{
		Network:   o.Network,
		Addr:      o.Addr,
		Username:  o.Username,
		Password:  o.Password,
		DB:        o.DB,
		TLSConfig: o.TLSConfig,
	}, nil
}

type asynqEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

type AsynqQueue struct {
	log      *logger.Logger
	client   asynqEnqueuer
	maxRetry int
	timeouts map[string]time.Duration
}

func NewAsynqQueue(log *logger.Logger, redisOpt asynq.RedisConnOpt, cfg config.QueueConfig) *AsynqQueue {
	return newAsynqQueue(log, asynq.NewClient(redisOpt), cfg)
}

func newAsynqQueue(log *logger.Logger, client asynqEnqueuer, cfg config.QueueConfig) *AsynqQueue {
	return &AsynqQueue{
		log:      log.With("component", "AsynqQueue"),
		client:   client,
		maxRetry: cfg.MaxRetry,
		timeouts: map[string]time.Duration{
			jobs.QueueAnalysis:  cfg.AnalysisTimeout.Duration,
			jobs.QueueDiscovery: cfg.DiscoveryTimeout.Duration,
		},
	}
}

func (q *AsynqQueue) options(msg Message) []asynq.Option {
	queue := msg.JobType.Queue()
	opts := []asynq.Option{
		asynq.TaskID(msg.DeliveryID()),
		asynq.Queue(queue),
		asynq.MaxRetry(q.maxRetry),
		asynq.Retention(taskRetention),
	}
	if d := q.timeouts[queue]; d > 0 {
		opts = append(opts, asynq.Timeout(d))
	}
	return opts
}

func (q *AsynqQueue) Enqueue(ctx context.Context, msg Message) error {
	task := asynq.NewTask(TaskType(msg.JobType), msg.Body)
	info, err := q.client.EnqueueContext(ctx, task, q.options(msg)...)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			if msg.Redelivery != "" {
				return fmt.Errorf("asynq enqueue %s: %w", msg.DeliveryID(), ErrDuplicateDelivery)
			}
			q.log.Debug("task already enqueued", "job_id", msg.JobID)
			return nil
		}
		return fmt.Errorf("asynq enqueue %s: %w", msg.JobType, err)
	}
	q.log.Debug("task enqueued", "job_id", msg.JobID, "queue", info.Queue, "task_id", info.ID)
	return nil
}

func (q *AsynqQueue) Close() error { return q.client.Close() }
