package extract_entities

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "github.com/yungbote/visiblee-backend/internal/domain"
	"github.com/yungbote/visiblee-backend/internal/domain/jobs"
	"github.com/yungbote/visiblee-backend/internal/engine"
	"github.com/yungbote/visiblee-backend/internal/jobs/jobstest"
	jobrt "github.com/yungbote/visiblee-backend/internal/jobs/runtime"
	"github.com/yungbote/visiblee-backend/internal/platform/apierr"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
)

type noEngine struct{}

func (noEngine) EmbedBatch(context.Context, []engine.EmbedItem) (*engine.EmbedBatchResponse, error) {
	panic("unexpected call")
}
func (noEngine) ExtractEntities(context.Context, []engine.ExtractItem) (*engine.ExtractEntitiesResponse, error) {
	panic("unexpected call")
}
func (noEngine) AnalyzeTopics(context.Context, []engine.TopicItem) (*engine.AnalyzeTopicsResponse, error) {
	panic("unexpected call")
}
func (noEngine) Suggestions(context.Context, engine.SuggestionsRequest) ([]string, error) {
	panic("unexpected call")
}

func TestNothingEligibleFailsWithCode(t *testing.T) {
	store := jobstest.NewStore()
	repo := jobstest.NewJobRepo()
	now := time.Now().UTC()
	job := &types.AnalysisJob{ID: uuid.New(), ProjectID: uuid.New(), JobType: jobs.TypeExtractEntities, Status: jobs.StatusRunning, StartedAt: &now, CreatedAt: now}
	repo.Put(job)
	jc := jobrt.NewContext(context.Background(), job, nil, repo, &jobstest.Notifier{}, logger.Nop())

	p := New(nil, logger.Nop(), store.Content(), store.Entities(), noEngine{}, nil, 1)
	require.Equal(t, jobs.TypeExtractEntities, p.Type())
	require.NoError(t, p.Run(jc))

	row := repo.Snapshot(job.ID)
	assert.Equal(t, jobs.StatusFailed, row.Status)
	assert.True(t, strings.HasPrefix(row.ErrorMessage, apierr.CodeNoEligibleContent+": "), row.ErrorMessage)
}
