package services

import (
	"github.com/google/uuid"

	"github.com/yungbote/visiblee-backend/internal/data/repos"
	types "github.com/yungbote/visiblee-backend/internal/domain"
	"github.com/yungbote/visiblee-backend/internal/domain/project"
	"github.com/yungbote/visiblee-backend/internal/platform/apierr"
	"github.com/yungbote/visiblee-backend/internal/platform/ctxutil"
	"github.com/yungbote/visiblee-backend/internal/platform/dbctx"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
	"github.com/yungbote/visiblee-backend/internal/services/projectguard"
)

const defaultInsightListLimit = 50

// InsightService reads what the analysis jobs produce: the score, the briefs
// and the suggestions.
type InsightService interface {
	Score(dbc dbctx.Context, projectID uuid.UUID) (*types.ProjectScore, error)
	ListBriefs(dbc dbctx.Context, projectID uuid.UUID, limit int) ([]*types.ContentBrief, error)
	UpdateBriefStatus(dbc dbctx.Context, briefID uuid.UUID, status string) (*types.ContentBrief, error)
	DeleteBrief(dbc dbctx.Context, briefID uuid.UUID) error
	ListSuggestions(dbc dbctx.Context, projectID uuid.UUID, limit int) ([]*types.ContentSuggestion, error)
}

type insightService struct {
	log         *logger.Logger
	projects    repos.ProjectRepo
	scores      repos.ProjectScoreRepo
	briefs      repos.ContentBriefRepo
	suggestions repos.ContentSuggestionRepo
}

func NewInsightService(
	baseLog *logger.Logger,
	projects repos.ProjectRepo,
	scores repos.ProjectScoreRepo,
	briefs repos.ContentBriefRepo,
	suggestions repos.ContentSuggestionRepo,
) InsightService {
	return &insightService{
		log:         baseLog.With("service", "InsightService"),
		projects:    projects,
		scores:      scores,
		briefs:      briefs,
		suggestions: suggestions,
	}
}

func (s *insightService) guard(dbc dbctx.Context, projectID uuid.UUID) error {
	if _, err := projectguard.Require(dbc, s.projects, projectID, ctxutil.ActorID(dbc.Ctx)); err != nil {
		return apierr.From(err)
	}
	return nil
}

func (s *insightService) Score(dbc dbctx.Context, projectID uuid.UUID) (*types.ProjectScore, error) {
	if err := s.guard(dbc, projectID); err != nil {
		return nil, err
	}
	score, err := s.scores.GetByProjectID(dbc, projectID)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	if score == nil {
		return nil, apierr.NotFound("score")
	}
	return score, nil
}

func (s *insightService) ListBriefs(dbc dbctx.Context, projectID uuid.UUID, limit int) ([]*types.ContentBrief, error) {
	if err := s.guard(dbc, projectID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultInsightListLimit
	}
	out, err := s.briefs.ListByProject(dbc, projectID, limit)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	if out == nil {
		out = []*types.ContentBrief{}
	}
	return out, nil
}

// loadBrief hides briefs of other users' projects behind NOT_FOUND.
func (s *insightService) loadBrief(dbc dbctx.Context, briefID uuid.UUID) (*types.ContentBrief, error) {
	b, err := s.briefs.GetByID(dbc, briefID)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	if b == nil {
		return nil, apierr.NotFound("brief")
	}
	res, err := projectguard.Check(dbc, s.projects, b.ProjectID, ctxutil.ActorID(dbc.Ctx))
	if err != nil {
		return nil, apierr.Internal(err)
	}
	if res.Outcome != projectguard.Authorized {
		return nil, apierr.NotFound("brief")
	}
	return b, nil
}

func (s *insightService) UpdateBriefStatus(dbc dbctx.Context, briefID uuid.UUID, status string) (*types.ContentBrief, error) {
	st, ok := project.ParseBriefStatus(status)
	if !ok {
		return nil, apierr.Validation("status must be one of PENDING, ACCEPTED, REJECTED, DONE")
	}
	b, err := s.loadBrief(dbc, briefID)
	if err != nil {
		return nil, err
	}
	if err := s.briefs.UpdateStatus(dbc, briefID, st); err != nil {
		return nil, apierr.Internal(err)
	}
	b.Status = st
	return b, nil
}

func (s *insightService) DeleteBrief(dbc dbctx.Context, briefID uuid.UUID) error {
	if _, err := s.loadBrief(dbc, briefID); err != nil {
		return err
	}
	if err := s.briefs.Delete(dbc, briefID); err != nil {
		return apierr.Internal(err)
	}
	return nil
}

func (s *insightService) ListSuggestions(dbc dbctx.Context, projectID uuid.UUID, limit int) ([]*types.ContentSuggestion, error) {
	if err := s.guard(dbc, projectID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultInsightListLimit
	}
	out, err := s.suggestions.ListByProject(dbc, projectID, limit)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	if out == nil {
		out = []*types.ContentSuggestion{}
	}
	return out, nil
}
