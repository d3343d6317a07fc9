package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "github.com/yungbote/visiblee-backend/internal/domain"
	"github.com/yungbote/visiblee-backend/internal/domain/jobs"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
	"github.com/yungbote/visiblee-backend/internal/realtime"
	"github.com/yungbote/visiblee-backend/internal/realtime/bus"
)

func TestJobNotifierPublishesLifecycle(t *testing.T) {
	b := bus.NewMemoryBus()
	n := NewJobNotifier(logger.Nop(), b, nil)

	start := time.Now().UTC()
	end := start.Add(time.Second)
	job := &types.AnalysisJob{
		ID:        uuid.New(),
		ProjectID: uuid.New(),
		UserID:    uuid.New(),
		JobType:   jobs.TypeComputeScore,
		Status:    jobs.StatusPending,
	}
	n.JobCreated(context.Background(), job)

	job.Status, job.Stage, job.Progress, job.StartedAt = jobs.StatusRunning, "aggregate", 40, &start
	n.JobProgress(context.Background(), job)

	job.Status, job.CompletedAt = jobs.StatusCompleted, &end
	n.JobDone(context.Background(), job)

	got := b.Published()
	require.Len(t, got, 3)
	assert.Equal(t, realtime.EventJobCreated, got[0].Event)
	assert.Equal(t, "PENDING", got[0].Status)
	assert.Equal(t, realtime.EventJobProgress, got[1].Event)
	assert.Equal(t, 40, got[1].Progress)
	assert.Equal(t, "aggregate", got[1].Stage)
	assert.Equal(t, realtime.EventJobDone, got[2].Event)
	assert.Equal(t, job.ProjectID, got[2].ProjectID)
	assert.Equal(t, "COMPUTE_SCORE", got[2].JobType)
}

func TestJobNotifierToleratesNilBus(t *testing.T) {
	n := NewJobNotifier(logger.Nop(), nil, nil)
	n.JobFailed(context.Background(), &types.AnalysisJob{ID: uuid.New()})
	n.JobDone(context.Background(), nil)
}
