package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/yungbote/visiblee-backend/internal/data/repos/testutil"
	"github.com/yungbote/visiblee-backend/internal/domain/jobs"
	"github.com/yungbote/visiblee-backend/internal/platform/dbctx"
)

func TestAnalysisJobLifecycle(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewAnalysisJobRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	owner := uuid.New()
	p := testutil.SeedProject(t, ctx, tx, owner)
	job := testutil.SeedJob(t, ctx, tx, p.ID, owner, jobs.TypeExtractEntities, jobs.StatusPending)

	active, err := repo.FindActive(dbc, p.ID, jobs.TypeExtractEntities)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, job.ID, active.ID)

	now := time.Now().UTC()
	ok, err := repo.Claim(dbc, job.ID, now)
	require.NoError(t, err)
	assert.True(t, ok)

	// a second claim of the same row is refused
	ok, err = repo.Claim(dbc, job.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Complete(dbc, job.ID, datatypes.JSON(`{"itemsProcessed":2}`), now)
	require.NoError(t, err)
	assert.True(t, ok)

	// terminal rows never move again
	ok, err = repo.Fail(dbc, job.ID, "late failure", now)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetByID(dbc, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusCompleted, got.Status)
	assert.NotNil(t, got.StartedAt)
	assert.Equal(t, 1, got.Attempts)

	active, err = repo.FindActive(dbc, p.ID, jobs.TypeExtractEntities)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestFailStaleRunning(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewAnalysisJobRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	owner := uuid.New()
	p := testutil.SeedProject(t, ctx, tx, owner)
	stale := testutil.SeedJob(t, ctx, tx, p.ID, owner, jobs.TypeClusterTopics, jobs.StatusRunning)
	fresh := testutil.SeedJob(t, ctx, tx, p.ID, owner, jobs.TypeComputeScore, jobs.StatusRunning)

	old := time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, tx.Model(stale).Updates(map[string]interface{}{"started_at": old, "heartbeat_at": old}).Error)

	failed, err := repo.FailStaleRunning(dbc, time.Now().UTC().Add(-30*time.Minute), time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, stale.ID, failed[0].ID)

	got, err := repo.GetByID(dbc, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusFailed, got.Status)
	assert.Equal(t, jobs.TimeoutMessage, got.ErrorMessage)

	got, err = repo.GetByID(dbc, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusRunning, got.Status)
}

func TestFailStalePending(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewAnalysisJobRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	owner := uuid.New()
	p := testutil.SeedProject(t, ctx, tx, owner)
	stuck := testutil.SeedJob(t, ctx, tx, p.ID, owner, jobs.TypeClusterTopics, jobs.StatusPending)
	young := testutil.SeedJob(t, ctx, tx, p.ID, owner, jobs.TypeComputeScore, jobs.StatusPending)
	running := testutil.SeedJob(t, ctx, tx, p.ID, owner, jobs.TypeExtractEntities, jobs.StatusRunning)

	old := time.Now().UTC().Add(-3 * time.Hour)
	require.NoError(t, tx.Model(stuck).Update("created_at", old).Error)
	require.NoError(t, tx.Model(running).Update("created_at", old).Error)

	failed, err := repo.FailStalePending(dbc, time.Now().UTC().Add(-2*time.Hour), time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, stuck.ID, failed[0].ID)

	got, err := repo.GetByID(dbc, stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusFailed, got.Status)
	assert.Equal(t, jobs.NeverStartedMessage, got.ErrorMessage)

	for _, id := range []uuid.UUID{young.ID, running.ID} {
		got, err = repo.GetByID(dbc, id)
		require.NoError(t, err)
		assert.True(t, got.Status.Active())
	}
}

func TestFailTruncatesMessage(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewAnalysisJobRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	owner := uuid.New()
	p := testutil.SeedProject(t, ctx, tx, owner)
	job := testutil.SeedJob(t, ctx, tx, p.ID, owner, jobs.TypeGenerateBriefs, jobs.StatusRunning)

	long := make([]byte, 2000)
	for i := range long {
		long[i] = 'x'
	}
	ok, err := repo.Fail(dbc, job.ID, string(long), time.Now().UTC())
	require.NoError(t, err)
	require.True(t, ok)

	got, err := repo.GetByID(dbc, job.ID)
	require.NoError(t, err)
	assert.Len(t, got.ErrorMessage, jobs.ErrorMessageMax)
}
