package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "github.com/yungbote/visiblee-backend/internal/domain"
	"github.com/yungbote/visiblee-backend/internal/domain/content"
	"github.com/yungbote/visiblee-backend/internal/domain/jobs"
	"github.com/yungbote/visiblee-backend/internal/jobs/jobstest"
	"github.com/yungbote/visiblee-backend/internal/jobs/payload"
	"github.com/yungbote/visiblee-backend/internal/platform/apierr"
	"github.com/yungbote/visiblee-backend/internal/platform/ctxutil"
	"github.com/yungbote/visiblee-backend/internal/platform/dbctx"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
)

type dispatchFixture struct {
	store    *jobstest.Store
	jobs     *jobstest.JobRepo
	queue    *jobstest.Queue
	notifier *jobstest.Notifier
	d        JobDispatcher
	owner    uuid.UUID
	project  *types.Project
}

func newDispatchFixture(t *testing.T) *dispatchFixture {
	t.Helper()
	f := &dispatchFixture{
		store:    jobstest.NewStore(),
		jobs:     jobstest.NewJobRepo(),
		queue:    &jobstest.Queue{},
		notifier: &jobstest.Notifier{},
		owner:    uuid.New(),
	}
	f.project = f.store.AddProject(&types.Project{OwnerUserID: f.owner, Name: "Razzi", Domain: "razzi.example"})
	f.d = NewJobDispatcher(logger.Nop(), f.store.Projects(), f.store.Content(), f.store.Scores(), f.jobs, f.queue, f.notifier)
	return f
}

func (f *dispatchFixture) ctx() context.Context {
	return ctxutil.WithActor(context.Background(), &ctxutil.Actor{UserID: f.owner})
}

func (f *dispatchFixture) addItems(n int, mut func(*types.ContentItem)) {
	for i := 0; i < n; i++ {
		raw := "some text"
		it := &types.ContentItem{ProjectID: f.project.ID, Title: "item", RawContent: &raw}
		if mut != nil {
			mut(it)
		}
		f.store.AddItem(it)
	}
}

func embedded(it *types.ContentItem) {
	v := pgvector.NewVector([]float32{1, 0, 0})
	it.Embedding = &v
}

func approved(it *types.ContentItem) { it.Status = content.StatusApproved }

func TestDispatchCreatesPendingJobAndEnqueues(t *testing.T) {
	f := newDispatchFixture(t)
	f.addItems(3, approved)

	res, err := f.d.Dispatch(f.ctx(), f.project.ID, jobs.TypeExtractEntities, DispatchOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Eligible)

	row := f.jobs.Snapshot(res.JobID)
	require.NotNil(t, row)
	assert.Equal(t, jobs.StatusPending, row.Status)
	assert.Equal(t, f.owner, row.UserID)
	assert.Equal(t, jobs.QueueAnalysis, row.Queue)
	assert.NotEmpty(t, row.Payload)

	sent := f.queue.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, res.JobID, sent[0].JobID)

	p, err := payload.Decode(sent[0].Body)
	require.NoError(t, err)
	assert.Equal(t, res.JobID, p.Base().JobLedgerID)
	assert.Equal(t, f.project.ID, p.Base().ProjectID)
	assert.Equal(t, []string{"created:PENDING"}, f.notifier.Kinds())
}

func TestDispatchGuard(t *testing.T) {
	f := newDispatchFixture(t)
	f.addItems(1, approved)

	stranger := ctxutil.WithActor(context.Background(), &ctxutil.Actor{UserID: uuid.New()})
	_, err := f.d.Dispatch(stranger, f.project.ID, jobs.TypeComputeScore, DispatchOptions{})
	assert.Equal(t, apierr.CodeForbidden, apierr.Code(err))

	_, err = f.d.Dispatch(f.ctx(), uuid.New(), jobs.TypeComputeScore, DispatchOptions{})
	assert.Equal(t, apierr.CodeNotFound, apierr.Code(err))

	_, err = f.d.Dispatch(context.Background(), f.project.ID, jobs.TypeComputeScore, DispatchOptions{})
	assert.Equal(t, apierr.CodeForbidden, apierr.Code(err))
	assert.Empty(t, f.queue.Sent())
}

func TestDispatchEligibility(t *testing.T) {
	cases := []struct {
		name    string
		jobType jobs.JobType
		seed    func(f *dispatchFixture)
		code    string
	}{
		{"extract without approved text", jobs.TypeExtractEntities, func(f *dispatchFixture) { f.addItems(2, nil) }, apierr.CodeNoEligibleContent},
		{"embed with everything embedded", jobs.TypeGenerateEmbeddings, func(f *dispatchFixture) { f.addItems(2, embedded) }, apierr.CodeNoEligibleContent},
		{"cluster below minimum", jobs.TypeClusterTopics, func(f *dispatchFixture) { f.addItems(4, embedded) }, apierr.CodeInsufficientEmbeddings},
		{"score on empty project", jobs.TypeComputeScore, func(*dispatchFixture) {}, apierr.CodeInsufficientInput},
		{"full analysis on empty project", jobs.TypeFullAnalysis, func(*dispatchFixture) {}, apierr.CodeInsufficientInput},
		{"briefs without score", jobs.TypeGenerateBriefs, func(f *dispatchFixture) { f.addItems(1, nil) }, apierr.CodeInsufficientInput},
		{"suggestions without score", jobs.TypeGenerateContentSuggestions, func(*dispatchFixture) {}, apierr.CodeInsufficientInput},
		{"fetch with nothing to fetch", jobs.TypeFetchContent, func(f *dispatchFixture) { f.addItems(1, nil) }, apierr.CodeNoEligibleContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newDispatchFixture(t)
			tc.seed(f)
			_, err := f.d.Dispatch(f.ctx(), f.project.ID, tc.jobType, DispatchOptions{})
			require.Error(t, err)
			assert.Equal(t, tc.code, apierr.Code(err))
			assert.Empty(t, f.queue.Sent(), "no job may be enqueued")
			assert.Empty(t, f.notifier.Kinds(), "no ledger row may be created")
		})
	}
}

func TestDispatchClusterReportsEligibleCount(t *testing.T) {
	f := newDispatchFixture(t)
	f.addItems(4, embedded)

	_, err := f.d.Dispatch(f.ctx(), f.project.ID, jobs.TypeClusterTopics, DispatchOptions{})
	ae := apierr.From(err)
	require.NotNil(t, ae)
	assert.Equal(t, 422, ae.Status)
	assert.Equal(t, 4, ae.Details["eligible"])

	f.addItems(2, embedded)
	res, err := f.d.Dispatch(f.ctx(), f.project.ID, jobs.TypeClusterTopics, DispatchOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(6), res.Eligible)
}

func TestDispatchAdmissionControl(t *testing.T) {
	f := newDispatchFixture(t)
	f.addItems(2, approved)

	first, err := f.d.Dispatch(f.ctx(), f.project.ID, jobs.TypeExtractEntities, DispatchOptions{})
	require.NoError(t, err)

	_, err = f.d.Dispatch(f.ctx(), f.project.ID, jobs.TypeExtractEntities, DispatchOptions{})
	ae := apierr.From(err)
	require.NotNil(t, ae)
	assert.Equal(t, apierr.CodeJobAlreadyActive, ae.Code)
	assert.Equal(t, 409, ae.Status)
	assert.Equal(t, first.JobID.String(), ae.Details["activeJobId"])

	// A different type is admitted.
	_, err = f.d.Dispatch(f.ctx(), f.project.ID, jobs.TypeFullAnalysis, DispatchOptions{})
	require.NoError(t, err)

	// Once the first job finishes the type is free again.
	_, err = f.jobs.Fail(dbctx.Of(context.Background()), first.JobID, "boom", time.Now())
	require.NoError(t, err)
	_, err = f.d.Dispatch(f.ctx(), f.project.ID, jobs.TypeExtractEntities, DispatchOptions{})
	require.NoError(t, err)
}

func TestDispatchComputeScoreIsAdmissionExempt(t *testing.T) {
	f := newDispatchFixture(t)
	f.addItems(1, nil)

	for i := 0; i < 2; i++ {
		_, err := f.d.Dispatch(f.ctx(), f.project.ID, jobs.TypeComputeScore, DispatchOptions{})
		require.NoError(t, err)
	}
	assert.Len(t, f.queue.Sent(), 2)
}

func TestDispatchEnqueueFailureMarksRowFailed(t *testing.T) {
	f := newDispatchFixture(t)
	f.addItems(1, nil)
	f.queue.Err = errors.New("redis: connection refused")

	_, err := f.d.Dispatch(f.ctx(), f.project.ID, jobs.TypeComputeScore, DispatchOptions{})
	assert.Equal(t, apierr.CodeInternal, apierr.Code(err))

	rows, lerr := f.jobs.ListByProject(dbctx.Of(context.Background()), f.project.ID, 10)
	require.NoError(t, lerr)
	require.Len(t, rows, 1)
	assert.Equal(t, jobs.StatusFailed, rows[0].Status)
	assert.True(t, strings.HasPrefix(rows[0].ErrorMessage, "enqueue failed: "))
	assert.Equal(t, []string{"created:PENDING", "failed:FAILED"}, f.notifier.Kinds())
}

func TestDispatchCrawlSiteDefaultsToDomain(t *testing.T) {
	f := newDispatchFixture(t)

	res, err := f.d.Dispatch(f.ctx(), f.project.ID, jobs.TypeCrawlSite, DispatchOptions{MaxPages: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Eligible)

	p, err := payload.Decode(f.queue.Sent()[0].Body)
	require.NoError(t, err)
	crawl, ok := p.(*payload.CrawlSite)
	require.True(t, ok)
	assert.Equal(t, "https://razzi.example", crawl.URL)
	assert.Equal(t, 20, crawl.MaxPages)
	assert.Equal(t, jobs.QueueDiscovery, f.jobs.Snapshot(res.JobID).Queue)
}

func TestDispatchCrawlSiteValidation(t *testing.T) {
	f := newDispatchFixture(t)
	bare := f.store.AddProject(&types.Project{OwnerUserID: f.owner, Name: "No domain"})

	_, err := f.d.Dispatch(f.ctx(), bare.ID, jobs.TypeCrawlSite, DispatchOptions{})
	assert.Equal(t, apierr.CodeValidation, apierr.Code(err))

	_, err = f.d.Dispatch(f.ctx(), bare.ID, jobs.TypeCrawlSite, DispatchOptions{URL: "ftp://files.example"})
	assert.Equal(t, apierr.CodeValidation, apierr.Code(err))

	_, err = f.d.Dispatch(f.ctx(), bare.ID, jobs.TypeCrawlSite, DispatchOptions{URL: "https://x.example", MaxDepth: 50})
	assert.Equal(t, apierr.CodeValidation, apierr.Code(err), "payload schema bounds maxDepth")
	assert.Empty(t, f.queue.Sent())
}

func TestDispatchSearchPlatforms(t *testing.T) {
	f := newDispatchFixture(t)

	_, err := f.d.Dispatch(f.ctx(), f.project.ID, jobs.TypeSearchPlatforms, DispatchOptions{})
	assert.Equal(t, apierr.CodeValidation, apierr.Code(err))

	_, err = f.d.Dispatch(f.ctx(), f.project.ID, jobs.TypeSearchPlatforms, DispatchOptions{Platforms: []string{"myspace"}})
	assert.Equal(t, apierr.CodeValidation, apierr.Code(err))

	res, err := f.d.Dispatch(f.ctx(), f.project.ID, jobs.TypeSearchPlatforms, DispatchOptions{Platforms: []string{"reddit", "REDDIT", "medium"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Eligible)

	p, err := payload.Decode(f.queue.Sent()[0].Body)
	require.NoError(t, err)
	search := p.(*payload.SearchPlatforms)
	assert.Equal(t, "Razzi", search.Brand)
	assert.Equal(t, []string{"REDDIT", "MEDIUM"}, search.Platforms)
}

func TestDispatchFetchContentWithIDs(t *testing.T) {
	f := newDispatchFixture(t)
	u := "https://razzi.example/a"
	it := f.store.AddItem(&types.ContentItem{ProjectID: f.project.ID, Title: "a", URL: &u})

	res, err := f.d.Dispatch(f.ctx(), f.project.ID, jobs.TypeFetchContent, DispatchOptions{ContentItemIDs: []uuid.UUID{it.ID}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Eligible)

	p, err := payload.Decode(f.queue.Sent()[0].Body)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{it.ID}, p.(*payload.FetchContent).ContentItemIDs)
}

func TestRestartFailedJob(t *testing.T) {
	f := newDispatchFixture(t)

	first, err := f.d.Dispatch(f.ctx(), f.project.ID, jobs.TypeSearchPlatforms, DispatchOptions{Brand: "Razzi SpA", Platforms: []string{"NEWS"}})
	require.NoError(t, err)

	_, err = f.d.Restart(f.ctx(), first.JobID)
	assert.Equal(t, apierr.CodeJobNotRestartable, apierr.Code(err), "pending jobs cannot be restarted")

	_, err = f.jobs.Fail(dbctx.Of(context.Background()), first.JobID, "engine down", time.Now())
	require.NoError(t, err)

	again, err := f.d.Restart(f.ctx(), first.JobID)
	require.NoError(t, err)
	require.NotEqual(t, first.JobID, again.JobID)

	row := f.jobs.Snapshot(again.JobID)
	require.NotNil(t, row.RestartedFromID)
	assert.Equal(t, first.JobID, *row.RestartedFromID)

	sent := f.queue.Sent()
	p, err := payload.Decode(sent[len(sent)-1].Body)
	require.NoError(t, err)
	assert.Equal(t, "Razzi SpA", p.(*payload.SearchPlatforms).Brand)
}

func TestRestartHidesOtherUsersJobs(t *testing.T) {
	f := newDispatchFixture(t)
	f.addItems(1, nil)
	res, err := f.d.Dispatch(f.ctx(), f.project.ID, jobs.TypeComputeScore, DispatchOptions{})
	require.NoError(t, err)

	stranger := ctxutil.WithActor(context.Background(), &ctxutil.Actor{UserID: uuid.New()})
	_, err = f.d.Restart(stranger, res.JobID)
	assert.Equal(t, apierr.CodeNotFound, apierr.Code(err))

	_, err = f.d.Restart(f.ctx(), uuid.New())
	assert.Equal(t, apierr.CodeNotFound, apierr.Code(err))
}
