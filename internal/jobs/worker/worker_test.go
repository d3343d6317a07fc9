package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "github.com/yungbote/visiblee-backend/internal/domain"
	"github.com/yungbote/visiblee-backend/internal/domain/jobs"
	"github.com/yungbote/visiblee-backend/internal/jobs/jobstest"
	"github.com/yungbote/visiblee-backend/internal/jobs/payload"
	"github.com/yungbote/visiblee-backend/internal/jobs/runtime"
	"github.com/yungbote/visiblee-backend/internal/platform/apierr"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
)

type stubHandler struct {
	typ jobs.JobType
	run func(jc *runtime.Context) error
}

func (h stubHandler) Type() jobs.JobType            { return h.typ }
func (h stubHandler) Run(jc *runtime.Context) error { return h.run(jc) }

type fixture struct {
	repo   *jobstest.JobRepo
	notify *jobstest.Notifier
	reg    *runtime.Registry
	exec   *Executor
	job    *types.AnalysisJob
	body   []byte
}

func newFixture(t *testing.T, jobType jobs.JobType) *fixture {
	t.Helper()
	f := &fixture{
		repo:   jobstest.NewJobRepo(),
		notify: &jobstest.Notifier{},
		reg:    runtime.NewRegistry(),
	}
	f.exec = NewExecutor(logger.Nop(), f.repo, f.reg, f.notify, time.Hour)
	f.job = &types.AnalysisJob{
		ID:        uuid.New(),
		ProjectID: uuid.New(),
		UserID:    uuid.New(),
		JobType:   jobType,
		Status:    jobs.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	f.repo.Put(f.job)
	body, err := payload.Encode(payload.New(payload.Common{
		JobType:     f.job.JobType,
		ProjectID:   f.job.ProjectID,
		UserID:      f.job.UserID,
		JobLedgerID: f.job.ID,
	}))
	require.NoError(t, err)
	f.body = body
	return f
}

func (f *fixture) register(t *testing.T, run func(jc *runtime.Context) error) {
	t.Helper()
	require.NoError(t, f.reg.Register(stubHandler{typ: f.job.JobType, run: run}))
}

func TestExecuteRunsHandlerToCompletion(t *testing.T) {
	f := newFixture(t, jobs.TypeComputeScore)
	f.register(t, func(jc *runtime.Context) error {
		assert.Equal(t, jobs.StatusRunning, jc.Job.Status)
		jc.Progress("aggregate", 50)
		jc.Succeed(map[string]any{"overallScore": 42})
		return nil
	})

	require.NoError(t, f.exec.Execute(context.Background(), f.body))

	got := f.repo.Snapshot(f.job.ID)
	assert.Equal(t, jobs.StatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, 1, got.Attempts)
	assert.JSONEq(t, `{"overallScore":42}`, string(got.ResultSummary))
	assert.Equal(t, []string{"progress:RUNNING", "progress:RUNNING", "done:COMPLETED"}, f.notify.Kinds())
}

func TestExecuteRecordsHandlerError(t *testing.T) {
	f := newFixture(t, jobs.TypeClusterTopics)
	f.register(t, func(jc *runtime.Context) error {
		return apierr.InsufficientEmbeddings(3, jobs.MinEmbeddedForClustering)
	})

	require.NoError(t, f.exec.Execute(context.Background(), f.body))

	got := f.repo.Snapshot(f.job.ID)
	assert.Equal(t, jobs.StatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "INSUFFICIENT_EMBEDDINGS")
	require.NotNil(t, got.CompletedAt)
}

func TestExecuteRecoversPanics(t *testing.T) {
	f := newFixture(t, jobs.TypeExtractEntities)
	f.register(t, func(jc *runtime.Context) error { panic("boom") })

	require.NoError(t, f.exec.Execute(context.Background(), f.body))

	got := f.repo.Snapshot(f.job.ID)
	assert.Equal(t, jobs.StatusFailed, got.Status)
	assert.Equal(t, "panic: boom", got.ErrorMessage)
}

func TestExecuteCompletesWhenHandlerReturnsNil(t *testing.T) {
	f := newFixture(t, jobs.TypeGenerateBriefs)
	f.register(t, func(jc *runtime.Context) error { return nil })

	require.NoError(t, f.exec.Execute(context.Background(), f.body))
	assert.Equal(t, jobs.StatusCompleted, f.repo.Snapshot(f.job.ID).Status)
}

func TestExecuteFailsWithoutHandler(t *testing.T) {
	f := newFixture(t, jobs.TypeFetchContent)

	require.NoError(t, f.exec.Execute(context.Background(), f.body))

	got := f.repo.Snapshot(f.job.ID)
	assert.Equal(t, jobs.StatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "no handler registered")
}

func TestExecuteSkipsNonPendingRows(t *testing.T) {
	f := newFixture(t, jobs.TypeComputeScore)
	ran := false
	f.register(t, func(jc *runtime.Context) error { ran = true; return nil })

	done := *f.job
	done.Status = jobs.StatusCompleted
	f.repo.Put(&done)

	require.NoError(t, f.exec.Execute(context.Background(), f.body))
	assert.False(t, ran)
	assert.Empty(t, f.notify.Kinds())
}

func TestExecuteDuplicateDeliveryRunsOnce(t *testing.T) {
	f := newFixture(t, jobs.TypeComputeScore)
	runs := 0
	f.register(t, func(jc *runtime.Context) error {
		runs++
		jc.Succeed(nil)
		return nil
	})

	require.NoError(t, f.exec.Execute(context.Background(), f.body))
	require.NoError(t, f.exec.Execute(context.Background(), f.body))
	assert.Equal(t, 1, runs)
}

func TestExecuteAcksMissingRow(t *testing.T) {
	f := newFixture(t, jobs.TypeComputeScore)
	f.register(t, func(jc *runtime.Context) error { return nil })
	other := newFixture(t, jobs.TypeComputeScore)

	assert.NoError(t, f.exec.Execute(context.Background(), other.body))
}

func TestExecuteRejectsInvalidPayload(t *testing.T) {
	f := newFixture(t, jobs.TypeComputeScore)
	err := f.exec.Execute(context.Background(), []byte(`{"jobType":"NOPE"}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, payload.ErrInvalid)

	err = handleJobTask(context.Background(), f.exec, asynq.NewTask("job:nope", []byte(`not json`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestExecuteReturnsLedgerErrorsForRetry(t *testing.T) {
	f := newFixture(t, jobs.TypeComputeScore)
	f.repo.Err = errors.New("db down")
	assert.Error(t, f.exec.Execute(context.Background(), f.body))
}

func TestExecuteHeartbeatsWhileRunning(t *testing.T) {
	f := newFixture(t, jobs.TypeComputeScore)
	f.exec.heartbeatEvery = 5 * time.Millisecond
	var beats atomic.Int32
	exec := f.exec.WithBeat(func(context.Context) { beats.Add(1) })
	f.register(t, func(jc *runtime.Context) error {
		time.Sleep(40 * time.Millisecond)
		jc.Succeed(nil)
		return nil
	})

	require.NoError(t, exec.Execute(context.Background(), f.body))
	assert.Greater(t, f.repo.HeartbeatCount(f.job.ID), 0)
	assert.Greater(t, beats.Load(), int32(0))
}
