package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/api/serviceerror"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/visiblee-backend/internal/config"
	"github.com/yungbote/visiblee-backend/internal/domain/jobs"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
)

func TestTaskTypeRoundTrip(t *testing.T) {
	for _, jt := range append(append([]jobs.JobType{}, jobs.AnalysisTypes...), jobs.DiscoveryTypes...) {
		got, ok := JobTypeFromTask(TaskType(jt))
		require.True(t, ok, jt)
		assert.Equal(t, jt, got)
	}
	assert.Equal(t, "job:generate_content_suggestions", TaskType(jobs.TypeGenerateContentSuggestions))

	_, ok := JobTypeFromTask("sweep:reconcile")
	assert.False(t, ok)
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
	// retained holds task IDs asynq still knows about (pending, archived or
	// completed within retention).
	retained map[string]bool
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.retained != nil {
		for _, o := range opts {
			if o.Type() != asynq.TaskIDOpt {
				continue
			}
			id := o.Value().(string)
			if f.retained[id] {
				return nil, asynq.ErrTaskIDConflict
			}
			f.retained[id] = true
		}
	}
	f.tasks = append(f.tasks, task)
	f.opts = append(f.opts, opts)
	return &asynq.TaskInfo{ID: "x", Queue: "analysis"}, nil
}

func (f *fakeEnqueuer) Close() error { return nil }

func testQueueConfig() config.QueueConfig {
	return config.QueueConfig{
		MaxRetry:         3,
		AnalysisTimeout:  config.Duration{Duration: 30 * time.Minute},
		DiscoveryTimeout: config.Duration{Duration: 15 * time.Minute},
	}
}

func TestAsynqQueueEnqueue(t *testing.T) {
	fe := &fakeEnqueuer{}
	q := newAsynqQueue(logger.Nop(), fe, testQueueConfig())
	id := uuid.New()

	require.NoError(t, q.Enqueue(context.Background(), Message{JobID: id, JobType: jobs.TypeCrawlSite, Body: []byte(`{}`)}))
	require.Len(t, fe.tasks, 1)
	assert.Equal(t, "job:crawl_site", fe.tasks[0].Type())
	assert.Equal(t, []byte(`{}`), fe.tasks[0].Payload())

	var sawID, sawQueue, sawTimeout bool
	for _, o := range fe.opts[0] {
		switch o.Type() {
		case asynq.TaskIDOpt:
			sawID = o.Value() == id.String()
		case asynq.QueueOpt:
			sawQueue = o.Value() == jobs.QueueDiscovery
		case asynq.TimeoutOpt:
			sawTimeout = o.Value() == 15*time.Minute
		}
	}
	assert.True(t, sawID, "task id")
	assert.True(t, sawQueue, "queue")
	assert.True(t, sawTimeout, "timeout")
}

func TestAsynqQueueTreatsDuplicateAsEnqueued(t *testing.T) {
	q := newAsynqQueue(logger.Nop(), &fakeEnqueuer{err: asynq.ErrTaskIDConflict}, testQueueConfig())
	assert.NoError(t, q.Enqueue(context.Background(), Message{JobID: uuid.New(), JobType: jobs.TypeComputeScore}))
}

func TestAsynqQueueRedeliversPastRetainedTask(t *testing.T) {
	fe := &fakeEnqueuer{retained: map[string]bool{}}
	q := newAsynqQueue(logger.Nop(), fe, testQueueConfig())
	ctx := context.Background()
	id := uuid.New()
	first := Message{JobID: id, JobType: jobs.TypeComputeScore}

	require.NoError(t, q.Enqueue(ctx, first))
	// The first task exhausted its retries and was archived; its ID stays.
	require.True(t, fe.retained[id.String()])
	require.NoError(t, q.Enqueue(ctx, first), "first delivery collision is a no-op")
	require.Len(t, fe.tasks, 1)

	for _, token := range []string{"sweep-1", "sweep-2", "sweep-3"} {
		redo := first
		redo.Redelivery = token
		require.NoError(t, q.Enqueue(ctx, redo), token)
	}
	require.Len(t, fe.tasks, 4)
	for _, want := range []string{id.String() + ":sweep-1", id.String() + ":sweep-2", id.String() + ":sweep-3"} {
		assert.True(t, fe.retained[want], want)
	}

	redo := first
	redo.Redelivery = "sweep-3"
	err := q.Enqueue(ctx, redo)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateDelivery)
}

func TestAsynqQueueWrapsErrors(t *testing.T) {
	boom := errors.New("redis down")
	q := newAsynqQueue(logger.Nop(), &fakeEnqueuer{err: boom}, testQueueConfig())
	err := q.Enqueue(context.Background(), Message{JobID: uuid.New(), JobType: jobs.TypeComputeScore})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

type fakeRun struct {
	temporalsdkclient.WorkflowRun
}

func (fakeRun) GetRunID() string { return "run-1" }

type fakeStarter struct {
	opts temporalsdkclient.StartWorkflowOptions
	args []interface{}
	err  error
}

func (f *fakeStarter) ExecuteWorkflow(_ context.Context, o temporalsdkclient.StartWorkflowOptions, _ interface{}, args ...interface{}) (temporalsdkclient.WorkflowRun, error) {
	f.opts, f.args = o, args
	if f.err != nil {
		return nil, f.err
	}
	return fakeRun{}, nil
}

func TestTemporalQueueStartsWorkflowPerJob(t *testing.T) {
	fs := &fakeStarter{}
	q := &TemporalQueue{log: logger.Nop(), tc: fs, cfg: config.TemporalConfig{TaskQueuePrefix: "visiblee"}}
	id := uuid.New()

	require.NoError(t, q.Enqueue(context.Background(), Message{JobID: id, JobType: jobs.TypeFullAnalysis, Body: []byte(`{"a":1}`)}))
	assert.Equal(t, "job-"+id.String(), fs.opts.ID)
	assert.Equal(t, "visiblee-analysis", fs.opts.TaskQueue)
	require.Len(t, fs.args, 1)
	assert.Equal(t, []byte(`{"a":1}`), fs.args[0])
}

func TestTemporalQueueTreatsAlreadyStartedAsEnqueued(t *testing.T) {
	fs := &fakeStarter{err: serviceerror.NewWorkflowExecutionAlreadyStarted("exists", "", "")}
	q := &TemporalQueue{log: logger.Nop(), tc: fs}
	assert.NoError(t, q.Enqueue(context.Background(), Message{JobID: uuid.New(), JobType: jobs.TypeCrawlSite}))

	err := q.Enqueue(context.Background(), Message{JobID: uuid.New(), JobType: jobs.TypeCrawlSite, Redelivery: "sweep-1"})
	assert.ErrorIs(t, err, ErrDuplicateDelivery)
}

func TestTemporalQueueRedeliveryGetsOwnWorkflowID(t *testing.T) {
	fs := &fakeStarter{}
	q := &TemporalQueue{log: logger.Nop(), tc: fs}
	id := uuid.New()

	require.NoError(t, q.Enqueue(context.Background(), Message{JobID: id, JobType: jobs.TypeCrawlSite, Redelivery: "sweep-9"}))
	assert.Equal(t, "job-"+id.String()+":sweep-9", fs.opts.ID)
}
