package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "github.com/yungbote/visiblee-backend/internal/domain"
	"github.com/yungbote/visiblee-backend/internal/domain/content"
	"github.com/yungbote/visiblee-backend/internal/domain/entity"
	"github.com/yungbote/visiblee-backend/internal/engine"
	"github.com/yungbote/visiblee-backend/internal/jobs/jobstest"
	"github.com/yungbote/visiblee-backend/internal/platform/apierr"
	"github.com/yungbote/visiblee-backend/internal/platform/ctxutil"
	"github.com/yungbote/visiblee-backend/internal/platform/dbctx"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
)

type stubEngine struct {
	vec      []float32
	embedErr error
	chatErr  error
	tokens   []string
	lastChat *engine.ChatRequest
}

func (e *stubEngine) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	if e.embedErr != nil {
		return nil, e.embedErr
	}
	return e.vec, nil
}

func (e *stubEngine) ChatStream(_ context.Context, req engine.ChatRequest, onToken func(string) error) error {
	e.lastChat = &req
	for _, tok := range e.tokens {
		if err := onToken(tok); err != nil {
			return err
		}
	}
	return e.chatErr
}

func actorCtx(owner uuid.UUID) context.Context {
	return ctxutil.WithActor(context.Background(), &ctxutil.Actor{UserID: owner})
}

func addVectorItem(store *jobstest.Store, projectID uuid.UUID, title string, status content.Status, vec ...float32) *types.ContentItem {
	v := pgvector.NewVector(vec)
	raw := title
	return store.AddItem(&types.ContentItem{ProjectID: projectID, Title: title, Status: status, RawContent: &raw, Embedding: &v})
}

func TestSimilarityScore(t *testing.T) {
	assert.Equal(t, 100, SimilarityScore(0))
	assert.Equal(t, 75, SimilarityScore(0.25))
	assert.Equal(t, 31, SimilarityScore(0.69))
	assert.Equal(t, 0, SimilarityScore(1.4))
}

func TestSearchRanksApprovedItemsWithinThreshold(t *testing.T) {
	store := jobstest.NewStore()
	owner := uuid.New()
	p := store.AddProject(&types.Project{OwnerUserID: owner, Name: "Razzi"})
	near := addVectorItem(store, p.ID, "close", content.StatusApproved, 1, 0.1, 0)
	addVectorItem(store, p.ID, "orthogonal", content.StatusApproved, 0, 1, 0)
	addVectorItem(store, p.ID, "unreviewed", content.StatusDiscovered, 1, 0, 0)

	svc := NewSearchService(logger.Nop(), store.Projects(), store.Content(), &stubEngine{vec: []float32{1, 0, 0}})
	hits, err := svc.Search(actorCtx(owner), p.ID, "pricing", 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, near.ID, hits[0].ID)
	assert.GreaterOrEqual(t, hits[0].Score, 99)
}

func TestSearchWithNoMatchesIsEmpty(t *testing.T) {
	store := jobstest.NewStore()
	owner := uuid.New()
	p := store.AddProject(&types.Project{OwnerUserID: owner, Name: "Razzi"})
	addVectorItem(store, p.ID, "far", content.StatusApproved, 0, 0, 1)

	svc := NewSearchService(logger.Nop(), store.Projects(), store.Content(), &stubEngine{vec: []float32{1, 0, 0}})
	hits, err := svc.Search(actorCtx(owner), p.ID, "pricing", 10)
	require.NoError(t, err)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)
}

func TestSearchErrors(t *testing.T) {
	store := jobstest.NewStore()
	owner := uuid.New()
	p := store.AddProject(&types.Project{OwnerUserID: owner, Name: "Razzi"})
	down := &engine.Error{Code: apierr.CodeEngineUnavailable, Path: engine.PathEmbedQuery, Err: errors.New("dial tcp: refused")}

	svc := NewSearchService(logger.Nop(), store.Projects(), store.Content(), &stubEngine{embedErr: down})
	_, err := svc.Search(actorCtx(owner), p.ID, "  ", 10)
	assert.Equal(t, apierr.CodeValidation, apierr.Code(err))

	_, err = svc.Search(actorCtx(owner), p.ID, "pricing", 10)
	assert.Equal(t, apierr.CodeEngineUnavailable, apierr.Code(err))

	_, err = svc.Search(actorCtx(uuid.New()), p.ID, "pricing", 10)
	assert.Equal(t, apierr.CodeForbidden, apierr.Code(err))
}

func TestChatPrepareBuildsContext(t *testing.T) {
	store := jobstest.NewStore()
	owner := uuid.New()
	p := store.AddProject(&types.Project{OwnerUserID: owner, Name: "Razzi"})
	store.SetScore(&types.ProjectScore{ProjectID: p.ID, OverallScore: 42, Coverage: 11, Depth: 80, Freshness: 30, Authority: 90, Coherence: 65})
	guide := addVectorItem(store, p.ID, "Pricing guide", content.StatusApproved, 1, 0, 0)

	dbc := dbctx.Of(context.Background())
	acme, err := store.Entities().UpsertByNaturalKey(dbc, p.ID, "Acme", entity.TypeOrganization)
	require.NoError(t, err)
	topic, err := store.Entities().UpsertByNaturalKey(dbc, p.ID, "Pricing", entity.TypeTopic)
	require.NoError(t, err)
	for _, e := range []*types.Entity{acme, topic} {
		_, err := store.Entities().LinkContent(dbc, &types.ContentEntity{ContentItemID: guide.ID, EntityID: e.ID, Salience: 0.5}, false)
		require.NoError(t, err)
	}

	eng := &stubEngine{vec: []float32{1, 0, 0}}
	svc := NewChatService(logger.Nop(), store.Projects(), store.Scores(), store.Entities(), store.Content(), eng)

	req, err := svc.Prepare(actorCtx(owner), p.ID, ChatInput{
		Message: "How do we grow?",
		History: []engine.ChatMessage{{Role: "User", Content: "hi"}, {Role: "assistant", Content: ""}},
	})
	require.NoError(t, err)
	assert.Equal(t, "How do we grow?", req.Message)
	assert.Equal(t, []engine.ChatMessage{{Role: "user", Content: "hi"}}, req.History)

	cc := req.Context
	assert.Equal(t, "Razzi", cc.ProjectName)
	require.NotNil(t, cc.OverallScore)
	assert.Equal(t, 42.0, *cc.OverallScore)
	assert.Equal(t, map[string]float64{
		"copertura":  11,
		"profondita": 80,
		"freschezza": 30,
		"autorita":   90,
		"coerenza":   65,
	}, cc.Dimensions)
	assert.Len(t, cc.RecentGaps, 3)
	assert.Equal(t, []string{"Acme"}, cc.TopEntities)
	require.Len(t, cc.RelevantContent, 1)
	assert.Equal(t, "Pricing guide", cc.RelevantContent[0].Title)
	assert.Equal(t, 100, cc.RelevantContent[0].Score)
}

func TestChatPrepareSurvivesEmbeddingFailure(t *testing.T) {
	store := jobstest.NewStore()
	owner := uuid.New()
	p := store.AddProject(&types.Project{OwnerUserID: owner, Name: "Razzi"})
	eng := &stubEngine{embedErr: errors.New("timeout")}
	svc := NewChatService(logger.Nop(), store.Projects(), store.Scores(), store.Entities(), store.Content(), eng)

	req, err := svc.Prepare(actorCtx(owner), p.ID, ChatInput{Message: "hello"})
	require.NoError(t, err)
	assert.Nil(t, req.Context.OverallScore)
	assert.Empty(t, req.Context.RelevantContent)

	_, err = svc.Prepare(actorCtx(owner), p.ID, ChatInput{Message: "hello", History: []engine.ChatMessage{{Role: "system", Content: "x"}}})
	assert.Equal(t, apierr.CodeValidation, apierr.Code(err))
}

func TestChatStreamRelaysTokensAndErrors(t *testing.T) {
	store := jobstest.NewStore()
	eng := &stubEngine{tokens: []string{"Ciao", " mondo"}, chatErr: &engine.Error{Code: apierr.CodeEngineError, Message: "model overloaded"}}
	svc := NewChatService(logger.Nop(), store.Projects(), store.Scores(), store.Entities(), store.Content(), eng)

	var got []string
	err := svc.Stream(context.Background(), &engine.ChatRequest{Message: "hi"}, func(tok string) error {
		got = append(got, tok)
		return nil
	})
	assert.Equal(t, []string{"Ciao", " mondo"}, got)
	assert.Equal(t, apierr.CodeEngineError, apierr.Code(err))
}
