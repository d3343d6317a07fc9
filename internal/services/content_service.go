package services

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/visiblee-backend/internal/data/repos"
	contentrepo "github.com/yungbote/visiblee-backend/internal/data/repos/content"
	types "github.com/yungbote/visiblee-backend/internal/domain"
	"github.com/yungbote/visiblee-backend/internal/domain/content"
	"github.com/yungbote/visiblee-backend/internal/platform/apierr"
	"github.com/yungbote/visiblee-backend/internal/platform/ctxutil"
	"github.com/yungbote/visiblee-backend/internal/platform/dbctx"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
	"github.com/yungbote/visiblee-backend/internal/services/projectguard"
)

const (
	defaultContentListLimit = 50
	maxContentListLimit     = 200
	maxBulkStatusIDs        = 500
)

type AddContentInput struct {
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	Platform    string     `json:"platform"`
	ContentType string     `json:"contentType"`
	RawContent  string     `json:"rawContent"`
	Excerpt     string     `json:"excerpt"`
	PublishedAt *time.Time `json:"publishedAt"`
}

type ContentStats struct {
	Total      int64            `json:"total"`
	WithText   int64            `json:"withText"`
	Embedded   int64            `json:"embedded"`
	TotalWords int64            `json:"totalWords"`
	ByStatus   map[string]int64 `json:"byStatus"`
	ByPlatform map[string]int64 `json:"byPlatform"`
}

type ContentService interface {
	List(dbc dbctx.Context, projectID uuid.UUID, f contentrepo.ListFilter) ([]*types.ContentItem, error)
	Add(dbc dbctx.Context, projectID uuid.UUID, in AddContentInput) (*types.ContentItem, error)
	// SetStatus applies a review decision to many items. Items whose current
	// status cannot move to the target are skipped; the count of changed rows
	// is returned.
	SetStatus(dbc dbctx.Context, projectID uuid.UUID, ids []uuid.UUID, status string) (int64, error)
	Stats(dbc dbctx.Context, projectID uuid.UUID) (*ContentStats, error)
}

type contentService struct {
	log      *logger.Logger
	projects repos.ProjectRepo
	content  repos.ContentItemRepo
	scores   repos.ProjectScoreRepo
	now      func() time.Time
}

func NewContentService(baseLog *logger.Logger, projects repos.ProjectRepo, contentRepo repos.ContentItemRepo, scores repos.ProjectScoreRepo) ContentService {
	return &contentService{
		log:      baseLog.With("service", "ContentService"),
		projects: projects,
		content:  contentRepo,
		scores:   scores,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *contentService) guard(dbc dbctx.Context, projectID uuid.UUID) (*types.Project, error) {
	p, err := projectguard.Require(dbc, s.projects, projectID, ctxutil.ActorID(dbc.Ctx))
	if err != nil {
		return nil, apierr.From(err)
	}
	return p, nil
}

func (s *contentService) List(dbc dbctx.Context, projectID uuid.UUID, f contentrepo.ListFilter) ([]*types.ContentItem, error) {
	if _, err := s.guard(dbc, projectID); err != nil {
		return nil, err
	}
	if f.Limit <= 0 {
		f.Limit = defaultContentListLimit
	}
	f.Limit = min(f.Limit, maxContentListLimit)
	if f.Offset < 0 {
		f.Offset = 0
	}
	out, err := s.content.ListByProject(dbc, projectID, f)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	if out == nil {
		out = []*types.ContentItem{}
	}
	return out, nil
}

func (s *contentService) Add(dbc dbctx.Context, projectID uuid.UUID, in AddContentInput) (*types.ContentItem, error) {
	if _, err := s.guard(dbc, projectID); err != nil {
		return nil, err
	}
	url := strings.TrimSpace(in.URL)
	title := strings.TrimSpace(in.Title)
	raw := strings.TrimSpace(in.RawContent)
	if url == "" && raw == "" {
		return nil, apierr.Validation("either url or rawContent is required")
	}
	if title == "" {
		if url == "" {
			return nil, apierr.Validation("title is required when no url is given")
		}
		title = url
	}

	platform := content.PlatformWebsite
	if strings.TrimSpace(in.Platform) != "" {
		p, ok := content.ParsePlatform(in.Platform)
		if !ok {
			return nil, apierr.Validation("unknown platform %q", in.Platform)
		}
		platform = p
	}
	ctype := content.TypeArticle
	if strings.TrimSpace(in.ContentType) != "" {
		ctype = content.ContentType(strings.ToUpper(strings.TrimSpace(in.ContentType)))
	}

	now := s.now()
	hash := content.Hash(url, title, raw)
	item := &types.ContentItem{
		ProjectID:   projectID,
		Title:       title,
		Platform:    platform,
		ContentType: ctype,
		Status:      content.StatusDiscovered,
		Source:      content.SourceManual,
		PublishedAt: in.PublishedAt,
		ContentHash: &hash,
	}
	if url != "" {
		item.URL = &url
	}
	if raw != "" {
		words := len(strings.Fields(raw))
		item.RawContent = &raw
		item.WordCount = &words
		item.LastCrawledAt = &now
	}
	if ex := strings.TrimSpace(in.Excerpt); ex != "" {
		item.Excerpt = &ex
	}

	created, err := s.content.CreateIfAbsent(dbc, item)
	if err != nil {
		return nil, apierr.From(err)
	}
	if !created {
		return nil, apierr.DuplicateContent(nil)
	}
	s.markStale(dbc, projectID, now)
	return item, nil
}

func (s *contentService) SetStatus(dbc dbctx.Context, projectID uuid.UUID, ids []uuid.UUID, status string) (int64, error) {
	if _, err := s.guard(dbc, projectID); err != nil {
		return 0, err
	}
	to := content.Status(strings.ToUpper(strings.TrimSpace(status)))
	switch to {
	case content.StatusApproved, content.StatusRejected, content.StatusArchived:
	default:
		return 0, apierr.Validation("status must be APPROVED, REJECTED or ARCHIVED")
	}
	if len(ids) == 0 {
		return 0, apierr.Validation("ids must not be empty")
	}
	if len(ids) > maxBulkStatusIDs {
		return 0, apierr.Validation("at most %d ids per request", maxBulkStatusIDs)
	}
	n, err := s.content.UpdateStatus(dbc, projectID, ids, to)
	if err != nil {
		return 0, apierr.Internal(err)
	}
	if n > 0 {
		s.markStale(dbc, projectID, s.now())
	}
	return n, nil
}

func (s *contentService) Stats(dbc dbctx.Context, projectID uuid.UUID) (*ContentStats, error) {
	if _, err := s.guard(dbc, projectID); err != nil {
		return nil, err
	}
	rows, err := s.content.PlatformStats(dbc, projectID, s.now())
	if err != nil {
		return nil, apierr.Internal(err)
	}
	out := &ContentStats{ByStatus: map[string]int64{}, ByPlatform: map[string]int64{}}
	for _, r := range rows {
		out.Total += r.Items
		out.WithText += r.WithText
		out.Embedded += r.Embedded
		out.TotalWords += r.TotalWords
		out.ByStatus[r.Status] += r.Items
		out.ByPlatform[r.Platform] += r.Items
	}
	return out, nil
}

func (s *contentService) markStale(dbc dbctx.Context, projectID uuid.UUID, at time.Time) {
	if _, err := s.scores.MarkStale(dbc, projectID, at); err != nil {
		s.log.Warn("mark score stale failed", "project_id", projectID, "error", err)
	}
}
