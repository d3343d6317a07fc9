package services

import (
	"github.com/google/uuid"

	"github.com/yungbote/visiblee-backend/internal/data/repos"
	types "github.com/yungbote/visiblee-backend/internal/domain"
	"github.com/yungbote/visiblee-backend/internal/platform/apierr"
	"github.com/yungbote/visiblee-backend/internal/platform/ctxutil"
	"github.com/yungbote/visiblee-backend/internal/platform/dbctx"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
	"github.com/yungbote/visiblee-backend/internal/services/projectguard"
)

const (
	defaultJobListLimit = 20
	maxJobListLimit     = 100
)

type JobService interface {
	GetByIDForRequestUser(dbc dbctx.Context, jobID uuid.UUID) (*types.AnalysisJob, error)
	ListForProject(dbc dbctx.Context, projectID uuid.UUID, limit int) ([]*types.AnalysisJob, error)
}

type jobService struct {
	log      *logger.Logger
	projects repos.ProjectRepo
	repo     repos.AnalysisJobRepo
}

func NewJobService(baseLog *logger.Logger, projects repos.ProjectRepo, repo repos.AnalysisJobRepo) JobService {
	return &jobService{
		log:      baseLog.With("service", "JobService"),
		projects: projects,
		repo:     repo,
	}
}

func (s *jobService) GetByIDForRequestUser(dbc dbctx.Context, jobID uuid.UUID) (*types.AnalysisJob, error) {
	job, err := s.repo.GetByID(dbc, jobID)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	if job == nil {
		return nil, apierr.NotFound("job")
	}
	res, err := projectguard.Check(dbc, s.projects, job.ProjectID, ctxutil.ActorID(dbc.Ctx))
	if err != nil {
		return nil, apierr.Internal(err)
	}
	if res.Outcome != projectguard.Authorized {
		return nil, apierr.NotFound("job")
	}
	return job, nil
}

func (s *jobService) ListForProject(dbc dbctx.Context, projectID uuid.UUID, limit int) ([]*types.AnalysisJob, error) {
	if _, err := projectguard.Require(dbc, s.projects, projectID, ctxutil.ActorID(dbc.Ctx)); err != nil {
		return nil, apierr.From(err)
	}
	if limit <= 0 {
		limit = defaultJobListLimit
	}
	limit = min(limit, maxJobListLimit)
	out, err := s.repo.ListByProject(dbc, projectID, limit)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	if out == nil {
		out = []*types.AnalysisJob{}
	}
	return out, nil
}
