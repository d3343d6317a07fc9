package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/visiblee-backend/internal/data/repos"
	types "github.com/yungbote/visiblee-backend/internal/domain"
	"github.com/yungbote/visiblee-backend/internal/domain/content"
	"github.com/yungbote/visiblee-backend/internal/domain/jobs"
	"github.com/yungbote/visiblee-backend/internal/jobs/payload"
	"github.com/yungbote/visiblee-backend/internal/jobs/queue"
	"github.com/yungbote/visiblee-backend/internal/platform/apierr"
	"github.com/yungbote/visiblee-backend/internal/platform/ctxutil"
	"github.com/yungbote/visiblee-backend/internal/platform/dbctx"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
	"github.com/yungbote/visiblee-backend/internal/services/projectguard"
)

// DispatchOptions carries the per-type parameters of the discovery jobs.
// Analysis jobs ignore it.
type DispatchOptions struct {
	URL       string
	MaxDepth  int
	MaxPages  int
	RateLimit float64

	Brand                 string
	Platforms             []string
	MaxResultsPerPlatform int

	ContentItemIDs []uuid.UUID
}

type DispatchResult struct {
	JobID    uuid.UUID `json:"jobId"`
	Eligible int64     `json:"eligible"`
}

type JobDispatcher interface {
	// Dispatch runs the ownership guard, the eligibility check for jobType and
	// admission control, then records a PENDING ledger row and enqueues it.
	Dispatch(ctx context.Context, projectID uuid.UUID, jobType jobs.JobType, opts DispatchOptions) (*DispatchResult, error)
	// Restart re-dispatches a FAILED job with its original parameters.
	Restart(ctx context.Context, jobID uuid.UUID) (*DispatchResult, error)
}

type jobDispatcher struct {
	log      *logger.Logger
	projects repos.ProjectRepo
	content  repos.ContentItemRepo
	scores   repos.ProjectScoreRepo
	jobs     repos.AnalysisJobRepo
	queue    queue.JobQueue
	notify   JobNotifier
	now      func() time.Time
}

func NewJobDispatcher(
	log *logger.Logger,
	projects repos.ProjectRepo,
	contentRepo repos.ContentItemRepo,
	scores repos.ProjectScoreRepo,
	jobRepo repos.AnalysisJobRepo,
	q queue.JobQueue,
	notify JobNotifier,
) JobDispatcher {
	return &jobDispatcher{
		log:      log.With("service", "JobDispatcher"),
		projects: projects,
		content:  contentRepo,
		scores:   scores,
		jobs:     jobRepo,
		queue:    q,
		notify:   notify,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (d *jobDispatcher) Dispatch(ctx context.Context, projectID uuid.UUID, jobType jobs.JobType, opts DispatchOptions) (*DispatchResult, error) {
	return d.dispatch(ctx, projectID, jobType, opts, nil)
}

func (d *jobDispatcher) Restart(ctx context.Context, jobID uuid.UUID) (*DispatchResult, error) {
	dbc := dbctx.Of(ctx)
	prev, err := d.jobs.GetByID(dbc, jobID)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	if prev == nil {
		return nil, apierr.NotFound("job")
	}
	res, err := projectguard.Check(dbc, d.projects, prev.ProjectID, ctxutil.ActorID(ctx))
	if err != nil {
		return nil, apierr.Internal(err)
	}
	if res.Outcome != projectguard.Authorized {
		// A job in someone else's project does not exist for this caller.
		return nil, apierr.NotFound("job")
	}
	if prev.Status != jobs.StatusFailed {
		return nil, apierr.JobNotRestartable(string(prev.Status))
	}

	var opts DispatchOptions
	if len(prev.Payload) > 0 {
		p, err := payload.Decode(prev.Payload)
		if err != nil {
			d.log.Warn("stored payload unreadable; restarting with defaults", "job_id", prev.ID, "error", err)
		} else {
			opts = optionsFromPayload(p)
		}
	}
	prevID := prev.ID
	return d.dispatch(ctx, prev.ProjectID, prev.JobType, opts, &prevID)
}

func (d *jobDispatcher) dispatch(ctx context.Context, projectID uuid.UUID, jobType jobs.JobType, opts DispatchOptions, restartedFrom *uuid.UUID) (*DispatchResult, error) {
	if !jobType.Valid() {
		return nil, apierr.Validation("unknown job type %q", jobType)
	}
	userID := ctxutil.ActorID(ctx)
	dbc := dbctx.Of(ctx)

	res, err := projectguard.Check(dbc, d.projects, projectID, userID)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	if err := res.Err(); err != nil {
		return nil, err
	}
	proj := res.Project

	eligible, opts, err := d.eligibility(dbc, proj, jobType, opts)
	if err != nil {
		return nil, err
	}

	if !jobType.AdmissionExempt() {
		active, err := d.jobs.FindActive(dbc, projectID, jobType)
		if err != nil {
			return nil, apierr.Internal(err)
		}
		if active != nil {
			return nil, apierr.JobAlreadyActive(string(jobType), active.ID)
		}
	}

	job := &types.AnalysisJob{
		ID:              uuid.New(),
		ProjectID:       projectID,
		UserID:          userID,
		JobType:         jobType,
		Queue:           jobType.Queue(),
		RestartedFromID: restartedFrom,
	}
	common := payload.Common{
		JobType:     jobType,
		ProjectID:   projectID,
		UserID:      userID,
		JobLedgerID: job.ID,
	}
	if td := ctxutil.GetTraceData(ctx); td != nil {
		common.TraceID = td.TraceID
		common.RequestID = td.RequestID
	}
	body, err := payload.Encode(buildPayload(common, opts))
	if err != nil {
		return nil, apierr.Validation("%s", err.Error())
	}
	job.Payload = body

	if err := d.jobs.Create(dbc, job); err != nil {
		return nil, apierr.Internal(fmt.Errorf("create job: %w", err))
	}
	d.notify.JobCreated(ctx, job)

	if err := d.queue.Enqueue(ctx, queue.Message{JobID: job.ID, JobType: jobType, Body: body}); err != nil {
		msg := jobs.TruncateError("enqueue failed: " + err.Error())
		if _, ferr := d.jobs.Fail(dbc, job.ID, msg, d.now()); ferr != nil {
			d.log.Error("mark job failed after enqueue error", "job_id", job.ID, "error", ferr)
		} else {
			job.Status = jobs.StatusFailed
			job.ErrorMessage = msg
			d.notify.JobFailed(ctx, job)
		}
		d.log.Error("enqueue failed", "job_id", job.ID, "job_type", jobType, "error", err)
		return nil, apierr.Internal(err)
	}

	d.log.Info("job dispatched",
		"job_id", job.ID,
		"job_type", jobType,
		"project_id", projectID,
		"eligible", eligible,
	)
	return &DispatchResult{JobID: job.ID, Eligible: eligible}, nil
}

// eligibility returns the number of eligible inputs and the options with
// project defaults filled in.
func (d *jobDispatcher) eligibility(dbc dbctx.Context, proj *types.Project, jobType jobs.JobType, opts DispatchOptions) (int64, DispatchOptions, error) {
	switch jobType {
	case jobs.TypeExtractEntities:
		n, err := d.content.CountExtractable(dbc, proj.ID)
		if err != nil {
			return 0, opts, apierr.Internal(err)
		}
		if n == 0 {
			return 0, opts, apierr.NoEligibleContent("no approved content with text to analyze")
		}
		return n, opts, nil

	case jobs.TypeGenerateEmbeddings:
		n, err := d.content.CountEmbeddable(dbc, proj.ID)
		if err != nil {
			return 0, opts, apierr.Internal(err)
		}
		if n == 0 {
			return 0, opts, apierr.NoEligibleContent("no content with text is waiting for an embedding")
		}
		return n, opts, nil

	case jobs.TypeClusterTopics:
		n, err := d.content.CountEmbedded(dbc, proj.ID)
		if err != nil {
			return 0, opts, apierr.Internal(err)
		}
		if n < jobs.MinEmbeddedForClustering {
			return n, opts, apierr.InsufficientEmbeddings(int(n), jobs.MinEmbeddedForClustering)
		}
		return n, opts, nil

	case jobs.TypeComputeScore, jobs.TypeFullAnalysis:
		n, err := d.content.CountByProject(dbc, proj.ID)
		if err != nil {
			return 0, opts, apierr.Internal(err)
		}
		if n == 0 {
			return 0, opts, apierr.InsufficientInput("the project has no content yet")
		}
		return n, opts, nil

	case jobs.TypeGenerateBriefs, jobs.TypeGenerateContentSuggestions:
		score, err := d.scores.GetByProjectID(dbc, proj.ID)
		if err != nil {
			return 0, opts, apierr.Internal(err)
		}
		if score == nil {
			return 0, opts, apierr.InsufficientInput("compute the project score first")
		}
		return int64(score.ContentCount), opts, nil

	case jobs.TypeCrawlSite:
		start := strings.TrimSpace(opts.URL)
		if start == "" {
			start = strings.TrimSpace(proj.Domain)
		}
		if start == "" {
			return 0, opts, apierr.Validation("project has no domain and no url was given")
		}
		if !strings.Contains(start, "://") {
			start = "https://" + start
		}
		u, err := url.Parse(start)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return 0, opts, apierr.Validation("invalid url %q", start)
		}
		opts.URL = u.String()
		return 1, opts, nil

	case jobs.TypeSearchPlatforms:
		if strings.TrimSpace(opts.Brand) == "" {
			opts.Brand = proj.Brand()
		}
		if strings.TrimSpace(opts.Brand) == "" {
			return 0, opts, apierr.Validation("a brand is required")
		}
		platforms := make([]string, 0, len(opts.Platforms))
		seen := map[content.Platform]bool{}
		for _, raw := range opts.Platforms {
			p, ok := content.ParsePlatform(raw)
			if !ok {
				return 0, opts, apierr.Validation("unknown platform %q", raw)
			}
			if !seen[p] {
				seen[p] = true
				platforms = append(platforms, string(p))
			}
		}
		if len(platforms) == 0 {
			return 0, opts, apierr.Validation("at least one platform is required")
		}
		opts.Platforms = platforms
		return int64(len(platforms)), opts, nil

	case jobs.TypeFetchContent:
		n, err := d.content.CountFetchable(dbc, proj.ID, opts.ContentItemIDs)
		if err != nil {
			return 0, opts, apierr.Internal(err)
		}
		if n == 0 {
			return 0, opts, apierr.NoEligibleContent("no content with a url is waiting for its text")
		}
		return n, opts, nil
	}
	return 0, opts, apierr.Validation("unknown job type %q", jobType)
}

func buildPayload(c payload.Common, opts DispatchOptions) payload.Payload {
	switch p := payload.New(c).(type) {
	case *payload.CrawlSite:
		p.URL = opts.URL
		p.MaxDepth = opts.MaxDepth
		p.MaxPages = opts.MaxPages
		p.RateLimit = opts.RateLimit
		return p
	case *payload.SearchPlatforms:
		p.Brand = opts.Brand
		p.Platforms = opts.Platforms
		p.MaxResultsPerPlatform = opts.MaxResultsPerPlatform
		return p
	case *payload.FetchContent:
		p.ContentItemIDs = opts.ContentItemIDs
		return p
	default:
		return p
	}
}

func optionsFromPayload(p payload.Payload) DispatchOptions {
	switch v := p.(type) {
	case *payload.CrawlSite:
		return DispatchOptions{URL: v.URL, MaxDepth: v.MaxDepth, MaxPages: v.MaxPages, RateLimit: v.RateLimit}
	case *payload.SearchPlatforms:
		return DispatchOptions{Brand: v.Brand, Platforms: v.Platforms, MaxResultsPerPlatform: v.MaxResultsPerPlatform}
	case *payload.FetchContent:
		return DispatchOptions{ContentItemIDs: v.ContentItemIDs}
	}
	return DispatchOptions{}
}
