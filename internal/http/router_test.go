package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "github.com/yungbote/visiblee-backend/internal/domain"
	"github.com/yungbote/visiblee-backend/internal/domain/content"
	"github.com/yungbote/visiblee-backend/internal/engine"
	httpH "github.com/yungbote/visiblee-backend/internal/http/handlers"
	httpMW "github.com/yungbote/visiblee-backend/internal/http/middleware"
	"github.com/yungbote/visiblee-backend/internal/jobs/jobstest"
	"github.com/yungbote/visiblee-backend/internal/platform/apierr"
	"github.com/yungbote/visiblee-backend/internal/platform/dbctx"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
	"github.com/yungbote/visiblee-backend/internal/realtime"
	"github.com/yungbote/visiblee-backend/internal/services"
)

type fakeEngine struct {
	healthErr error
	tokens    []string
	chatErr   error
}

func (e *fakeEngine) Health(context.Context) (*engine.Health, error) {
	if e.healthErr != nil {
		return nil, e.healthErr
	}
	return &engine.Health{Status: "ok", Service: "visiblee-engine", Version: "1.0.0"}, nil
}

func (e *fakeEngine) EmbedQuery(context.Context, string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (e *fakeEngine) ChatStream(_ context.Context, _ engine.ChatRequest, onToken func(string) error) error {
	for _, t := range e.tokens {
		if err := onToken(t); err != nil {
			return err
		}
	}
	return e.chatErr
}

type apiFixture struct {
	router  *gin.Engine
	store   *jobstest.Store
	jobs    *jobstest.JobRepo
	queue   *jobstest.Queue
	eng     *fakeEngine
	owner   uuid.UUID
	project *types.Project
	token   string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.Nop()
	f := &apiFixture{
		store: jobstest.NewStore(),
		jobs:  jobstest.NewJobRepo(),
		queue: &jobstest.Queue{},
		eng:   &fakeEngine{},
		owner: uuid.New(),
	}
	f.project = f.store.AddProject(&types.Project{OwnerUserID: f.owner, Name: "Razzi", Domain: "razzi.example"})

	auth := services.NewAuthService(log, "test-secret", "")
	tok, err := auth.IssueToken(f.owner, time.Hour)
	require.NoError(t, err)
	f.token = tok

	projects, contentRepo, scores := f.store.Projects(), f.store.Content(), f.store.Scores()
	dispatcher := services.NewJobDispatcher(log, projects, contentRepo, scores, f.jobs, f.queue, &jobstest.Notifier{})
	f.router = NewRouter(RouterConfig{
		Log:             log,
		AuthMiddleware:  httpMW.NewAuthMiddleware(log, auth),
		HealthHandler:   httpH.NewHealthHandler(log, f.eng),
		AnalysisHandler: httpH.NewAnalysisHandler(log, dispatcher),
		JobHandler:      httpH.NewJobHandler(services.NewJobService(log, projects, f.jobs), dispatcher),
		ContentHandler:  httpH.NewContentHandler(services.NewContentService(log, projects, contentRepo, scores)),
		InsightHandler:  httpH.NewInsightHandler(services.NewInsightService(log, projects, scores, f.store.Briefs(), f.store.Suggestions())),
		SearchHandler:   httpH.NewSearchHandler(services.NewSearchService(log, projects, contentRepo, f.eng)),
		ChatHandler:     httpH.NewChatHandler(log, services.NewChatService(log, projects, scores, f.store.Entities(), contentRepo, f.eng)),
		RealtimeHandler: httpH.NewRealtimeHandler(log, realtime.NewHub(log)),
	})
	return f
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.token)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) projectPath(suffix string) string {
	return "/api/projects/" + f.project.ID.String() + suffix
}

type errorBody struct {
	Error struct {
		Message string         `json:"message"`
		Code    string         `json:"code"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthRoutes(t *testing.T) {
	f := newAPIFixture(t)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/engine/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	f.eng.healthErr = errors.New("dial tcp: refused")
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/engine/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	f := newAPIFixture(t)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, f.projectPath("/jobs"), nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDispatchAnalysisAcceptsKebabCase(t *testing.T) {
	f := newAPIFixture(t)
	raw := "body"
	f.store.AddItem(&types.ContentItem{ProjectID: f.project.ID, Title: "a", Status: content.StatusApproved, RawContent: &raw})

	rec := f.do(t, http.MethodPost, f.projectPath("/analysis/extract-entities"), nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	res := decode[services.DispatchResult](t, rec)
	assert.Equal(t, int64(1), res.Eligible)
	require.Len(t, f.queue.Sent(), 1)

	// Second dispatch while the first is pending.
	rec = f.do(t, http.MethodPost, f.projectPath("/analysis/EXTRACT_ENTITIES"), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, apierr.CodeJobAlreadyActive, body.Error.Code)
	assert.Equal(t, res.JobID.String(), body.Error.Details["activeJobId"])

	rec = f.do(t, http.MethodGet, "/api/jobs/"+res.JobID.String(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"PENDING"`)

	rec = f.do(t, http.MethodGet, f.projectPath("/jobs"), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), res.JobID.String())
}

func TestDispatchAnalysisRejections(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, f.projectPath("/analysis/crawl-site"), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, f.projectPath("/analysis/cluster-topics"), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, apierr.CodeInsufficientEmbeddings, body.Error.Code)
	assert.EqualValues(t, 0, body.Error.Details["eligible"])
	assert.EqualValues(t, 6, body.Error.Details["required"])

	rec = f.do(t, http.MethodPost, "/api/projects/not-a-uuid/analysis/compute-score", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/projects/"+uuid.NewString()+"/analysis/compute-score", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDiscoveryCrawlDefaultsToProjectDomain(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodPost, f.projectPath("/discovery/crawl"), map[string]any{"maxPages": 20})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, f.projectPath("/discovery/search"), map[string]any{"platforms": []string{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRestartRejectsPendingJob(t *testing.T) {
	f := newAPIFixture(t)
	raw := "body"
	f.store.AddItem(&types.ContentItem{ProjectID: f.project.ID, Title: "a", Status: content.StatusApproved, RawContent: &raw})
	rec := f.do(t, http.MethodPost, f.projectPath("/analysis/extract-entities"), nil)
	res := decode[services.DispatchResult](t, rec)

	rec = f.do(t, http.MethodPost, "/api/jobs/"+res.JobID.String()+"/restart", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, apierr.CodeJobNotRestartable, decode[errorBody](t, rec).Error.Code)
}

func TestContentRoutes(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, f.projectPath("/content"), map[string]any{"url": "https://razzi.example/a", "platform": "medium"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[struct {
		Item types.ContentItem `json:"item"`
	}](t, rec)

	rec = f.do(t, http.MethodPost, f.projectPath("/content"), map[string]any{"url": "https://razzi.example/a/"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, apierr.CodeDuplicateContent, decode[errorBody](t, rec).Error.Code)

	rec = f.do(t, http.MethodPost, f.projectPath("/content/status"), map[string]any{"ids": []uuid.UUID{created.Item.ID}, "status": "APPROVED"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"updated":1}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, f.projectPath("/content?status=approved&platform=MEDIUM"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	rec = f.do(t, http.MethodGet, f.projectPath("/content?status=pending"), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, f.projectPath("/content/stats"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":1`)
}

func TestScoreAndBriefRoutes(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, f.projectPath("/score"), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	f.store.SetScore(&types.ProjectScore{ProjectID: f.project.ID, OverallScore: 55, ComputedAt: time.Now().UTC()})
	rec = f.do(t, http.MethodGet, f.projectPath("/score"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"overallScore":55`)

	b := &types.ContentBrief{ProjectID: f.project.ID, Title: "Pricing explainer"}
	require.NoError(t, f.store.Briefs().CreateMany(dbcBackground(), []*types.ContentBrief{b}))

	rec = f.do(t, http.MethodPatch, "/api/briefs/"+b.ID.String(), map[string]any{"status": "DONE"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"DONE"`)

	rec = f.do(t, http.MethodGet, f.projectPath("/briefs"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Pricing explainer")

	rec = f.do(t, http.MethodDelete, "/api/briefs/"+b.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, f.projectPath("/suggestions"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"suggestions":[]}`, rec.Body.String())
}

func TestSearchRoute(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodPost, f.projectPath("/search"), map[string]any{"query": "pricing"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"data":[],"count":0}`, rec.Body.String())

	rec = f.do(t, http.MethodPost, f.projectPath("/search"), map[string]any{"query": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatStreamsTokensThenDone(t *testing.T) {
	f := newAPIFixture(t)
	f.eng.tokens = []string{"Ciao", "!"}

	rec := f.do(t, http.MethodPost, f.projectPath("/chat"), map[string]any{"message": "hello"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, `data: {"token":"Ciao"}`)
	assert.Contains(t, body, `data: {"token":"!"}`)
	assert.True(t, strings.HasSuffix(body, "data: [DONE]\n\n"))
	assert.NotContains(t, body, "event: error")
}

func TestChatReportsEngineErrorInStream(t *testing.T) {
	f := newAPIFixture(t)
	f.eng.tokens = []string{"Ciao"}
	f.eng.chatErr = &engine.Error{Code: apierr.CodeEngineError, Message: "model overloaded"}

	rec := f.do(t, http.MethodPost, f.projectPath("/chat"), map[string]any{"message": "hello"})
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "event: error\n")
	assert.Contains(t, body, `"code":"ENGINE_ERROR"`)
	assert.True(t, strings.HasSuffix(body, "data: [DONE]\n\n"))

	rec = f.do(t, http.MethodPost, f.projectPath("/chat"), map[string]any{"message": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func dbcBackground() dbctx.Context { return dbctx.Of(context.Background()) }
