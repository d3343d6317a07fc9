package services

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/visiblee-backend/internal/data/repos"
	contentrepo "github.com/yungbote/visiblee-backend/internal/data/repos/content"
	"github.com/yungbote/visiblee-backend/internal/platform/apierr"
	"github.com/yungbote/visiblee-backend/internal/platform/ctxutil"
	"github.com/yungbote/visiblee-backend/internal/platform/dbctx"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
	"github.com/yungbote/visiblee-backend/internal/services/projectguard"
)

const (
	// MaxSearchDistance is the cosine distance cut-off (similarity above 30%).
	MaxSearchDistance = 0.7

	defaultSearchLimit = 10
	maxSearchLimit     = 50
	maxQueryLength     = 1000
)

// QueryEmbedder turns a search query into a vector.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type SearchHit struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	URL         *string    `json:"url,omitempty"`
	Platform    string     `json:"platform"`
	Excerpt     *string    `json:"excerpt,omitempty"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	Score       int        `json:"score"`
}

type SearchService interface {
	Search(ctx context.Context, projectID uuid.UUID, query string, limit int) ([]SearchHit, error)
}

type searchService struct {
	log      *logger.Logger
	projects repos.ProjectRepo
	content  repos.ContentItemRepo
	embedder QueryEmbedder
}

func NewSearchService(baseLog *logger.Logger, projects repos.ProjectRepo, contentRepo repos.ContentItemRepo, embedder QueryEmbedder) SearchService {
	return &searchService{
		log:      baseLog.With("service", "SearchService"),
		projects: projects,
		content:  contentRepo,
		embedder: embedder,
	}
}

func (s *searchService) Search(ctx context.Context, projectID uuid.UUID, query string, limit int) ([]SearchHit, error) {
	dbc := dbctx.Of(ctx)
	if _, err := projectguard.Require(dbc, s.projects, projectID, ctxutil.ActorID(ctx)); err != nil {
		return nil, apierr.From(err)
	}
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, apierr.Validation("query is required")
	}
	if len([]rune(q)) > maxQueryLength {
		return nil, apierr.Validation("query is longer than %d characters", maxQueryLength)
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	limit = min(limit, maxSearchLimit)

	vec, err := s.embedder.EmbedQuery(ctx, q)
	if err != nil {
		s.log.Warn("query embedding failed", "project_id", projectID, "error", err)
		return nil, apierr.From(err)
	}
	return searchSimilar(dbc, s.content, projectID, vec, limit)
}

func searchSimilar(dbc dbctx.Context, repo repos.ContentItemRepo, projectID uuid.UUID, vec []float32, limit int) ([]SearchHit, error) {
	rows, err := repo.SearchSimilar(dbc, projectID, vec, MaxSearchDistance, limit)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	out := make([]SearchHit, 0, len(rows))
	for _, r := range rows {
		out = append(out, hitFrom(r))
	}
	return out, nil
}

func hitFrom(r contentrepo.SimilarItem) SearchHit {
	return SearchHit{
		ID:          r.ID,
		Title:       r.Title,
		URL:         r.URL,
		Platform:    r.Platform,
		Excerpt:     r.Excerpt,
		PublishedAt: r.PublishedAt,
		Score:       SimilarityScore(r.Distance),
	}
}

// SimilarityScore converts a cosine distance into a 0-100 score.
func SimilarityScore(distance float64) int {
	v := int(math.Round((1 - distance) * 100))
	return max(0, min(100, v))
}
