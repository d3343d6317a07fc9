// Package steps implements the discovery stages that bring content into a
// project: crawling its site, searching platforms for brand mentions and
// fetching the text of known URLs.
package steps

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/visiblee-backend/internal/data/repos"
	"github.com/yungbote/visiblee-backend/internal/domain/content"
	"github.com/yungbote/visiblee-backend/internal/engine"
	"github.com/yungbote/visiblee-backend/internal/pageparse"
	"github.com/yungbote/visiblee-backend/internal/platform/dbctx"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
)

// Engine is the slice of the inference client the discovery stages call.
type Engine interface {
	CrawlSite(ctx context.Context, req engine.CrawlSiteRequest) (*engine.CrawlSiteResponse, error)
	CrawlExtract(ctx context.Context, urls []string, concurrency int) (*engine.CrawlExtractResponse, error)
	SearchPlatform(ctx context.Context, req engine.SearchPlatformRequest) (*engine.SearchPlatformResponse, error)
}

// Fetcher downloads and parses pages locally.
type Fetcher interface {
	FetchMany(ctx context.Context, urls []string, concurrency int) []pageparse.Result
}

const (
	// ExtractBatchSize is the engine's per-request URL cap.
	ExtractBatchSize = 50

	defaultFetchConcurrency = 5
)

// contentTypeFor guesses the item's shape from where it was found.
func contentTypeFor(p content.Platform) content.ContentType {
	switch p {
	case content.PlatformYouTube:
		return content.TypeVideo
	case content.PlatformTwitter, content.PlatformLinkedIn:
		return content.TypePost
	case content.PlatformReddit, content.PlatformQuora:
		return content.TypeThread
	case content.PlatformWebsite:
		return content.TypePage
	default:
		return content.TypeArticle
	}
}

// siteURL turns a bare domain into a crawlable start URL.
func siteURL(domain string) string {
	d := strings.TrimSpace(domain)
	if d == "" {
		return ""
	}
	if strings.HasPrefix(d, "http://") || strings.HasPrefix(d, "https://") {
		return d
	}
	return "https://" + d
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func strOr(s *string, fallback string) string {
	if v := nonEmpty(s); v != nil {
		return *v
	}
	return fallback
}

func countWords(s string) int {
	return len(strings.Fields(s))
}

// markStale flags the project's score after a content write. A failure is
// logged, the write itself already happened.
func markStale(dbc dbctx.Context, scores repos.ProjectScoreRepo, log *logger.Logger, projectID uuid.UUID, at time.Time) {
	if scores == nil {
		return
	}
	if _, err := scores.MarkStale(dbc, projectID, at); err != nil {
		log.Warn("mark score stale failed", "project_id", projectID, "error", err)
	}
}
