package full_analysis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "github.com/yungbote/visiblee-backend/internal/domain"
	"github.com/yungbote/visiblee-backend/internal/domain/content"
	"github.com/yungbote/visiblee-backend/internal/domain/jobs"
	"github.com/yungbote/visiblee-backend/internal/engine"
	"github.com/yungbote/visiblee-backend/internal/jobs/jobstest"
	jobrt "github.com/yungbote/visiblee-backend/internal/jobs/runtime"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
)

type stubEngine struct {
	embedErr error
	topics   int
}

func (s *stubEngine) EmbedBatch(_ context.Context, items []engine.EmbedItem) (*engine.EmbedBatchResponse, error) {
	if s.embedErr != nil {
		return nil, s.embedErr
	}
	resp := &engine.EmbedBatchResponse{Dimensions: content.EmbeddingDimensions}
	for i, it := range items {
		vec := make([]float32, content.EmbeddingDimensions)
		vec[i%content.EmbeddingDimensions] = 1
		resp.Results = append(resp.Results, engine.EmbedResult{ID: it.ID, Embedding: vec})
	}
	return resp, nil
}

func (s *stubEngine) ExtractEntities(_ context.Context, items []engine.ExtractItem) (*engine.ExtractEntitiesResponse, error) {
	resp := &engine.ExtractEntitiesResponse{}
	for _, it := range items {
		resp.Results = append(resp.Results, engine.ExtractResult{ID: it.ID, Entities: []engine.ExtractedEntity{{Label: "Acme", Type: "BRAND", Salience: 0.8}}})
	}
	return resp, nil
}

func (s *stubEngine) AnalyzeTopics(_ context.Context, items []engine.TopicItem) (*engine.AnalyzeTopicsResponse, error) {
	s.topics++
	resp := &engine.AnalyzeTopicsResponse{ClustersFound: 1}
	for _, it := range items {
		resp.Assignments = append(resp.Assignments, engine.TopicAssignment{ID: it.ID, TopicLabel: "Razzi", Confidence: 0.9})
	}
	return resp, nil
}

func (s *stubEngine) Suggestions(context.Context, engine.SuggestionsRequest) ([]string, error) {
	return nil, errors.New("unused")
}

func setup(t *testing.T, items int) (*jobstest.Store, *jobstest.JobRepo, *jobrt.Context) {
	t.Helper()
	store := jobstest.NewStore()
	projectID := uuid.New()
	for i := 0; i < items; i++ {
		text := "Acme rockets"
		store.AddItem(&types.ContentItem{ProjectID: projectID, Title: "post", Status: content.StatusApproved, RawContent: &text})
	}
	repo := jobstest.NewJobRepo()
	now := time.Now().UTC()
	job := &types.AnalysisJob{ID: uuid.New(), ProjectID: projectID, JobType: jobs.TypeFullAnalysis, Status: jobs.StatusRunning, StartedAt: &now, CreatedAt: now}
	repo.Put(job)
	jc := jobrt.NewContext(context.Background(), job, nil, repo, &jobstest.Notifier{}, logger.Nop())
	return store, repo, jc
}

func newPipeline(store *jobstest.Store, eng *stubEngine) *Pipeline {
	return New(nil, logger.Nop(), store.Content(), store.Entities(), store.Scores(), eng, nil, 2)
}

func TestFullAnalysisSkipsClusteringBelowMinimum(t *testing.T) {
	eng := &stubEngine{}
	store, repo, jc := setup(t, 3)
	require.NoError(t, newPipeline(store, eng).Run(jc))

	row := repo.Snapshot(jc.Job.ID)
	require.Equal(t, jobs.StatusCompleted, row.Status)
	assert.Equal(t, 100, row.Progress)
	assert.Zero(t, eng.topics)

	var sum map[string]map[string]any
	require.NoError(t, json.Unmarshal(row.ResultSummary, &sum))
	assert.EqualValues(t, 3, sum["embeddings"]["itemsEmbedded"])
	assert.EqualValues(t, 3, sum["entities"]["itemsProcessed"])
	assert.Equal(t, true, sum["topics"]["skipped"])
	assert.EqualValues(t, 3, sum["score"]["contentCount"])
	require.NotNil(t, store.Score(jc.Job.ProjectID))
}

func TestFullAnalysisClustersWhenEnoughEmbedded(t *testing.T) {
	eng := &stubEngine{}
	store, repo, jc := setup(t, jobs.MinEmbeddedForClustering)
	require.NoError(t, newPipeline(store, eng).Run(jc))

	row := repo.Snapshot(jc.Job.ID)
	require.Equal(t, jobs.StatusCompleted, row.Status)
	assert.Equal(t, 1, eng.topics)
	var sum map[string]map[string]any
	require.NoError(t, json.Unmarshal(row.ResultSummary, &sum))
	assert.EqualValues(t, jobs.MinEmbeddedForClustering, sum["topics"]["itemsClustered"])
	assert.Equal(t, "engine", sum["topics"]["source"])
}

func TestFullAnalysisCountsEngineOutageAndStillScores(t *testing.T) {
	eng := &stubEngine{embedErr: &engine.Error{Code: "ENGINE_UNAVAILABLE", Message: "engine unreachable"}}
	store, repo, jc := setup(t, 2)
	require.NoError(t, newPipeline(store, eng).Run(jc))

	row := repo.Snapshot(jc.Job.ID)
	require.Equal(t, jobs.StatusCompleted, row.Status)
	var sum map[string]map[string]any
	require.NoError(t, json.Unmarshal(row.ResultSummary, &sum))
	assert.EqualValues(t, 1, sum["embeddings"]["batchesFailed"])
	assert.EqualValues(t, 2, sum["embeddings"]["itemsFailed"])
}

func TestFullAnalysisFailsOnWriteError(t *testing.T) {
	eng := &stubEngine{}
	store, repo, jc := setup(t, 2)
	store.FailWrites = errors.New("db down")
	require.NoError(t, newPipeline(store, eng).Run(jc))

	row := repo.Snapshot(jc.Job.ID)
	assert.Equal(t, jobs.StatusFailed, row.Status)
	assert.NotEmpty(t, row.ErrorMessage)
}
