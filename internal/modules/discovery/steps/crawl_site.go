package steps

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/visiblee-backend/internal/data/repos"
	types "github.com/yungbote/visiblee-backend/internal/domain"
	"github.com/yungbote/visiblee-backend/internal/domain/content"
	"github.com/yungbote/visiblee-backend/internal/engine"
	"github.com/yungbote/visiblee-backend/internal/platform/apierr"
	"github.com/yungbote/visiblee-backend/internal/platform/dbctx"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
)

type CrawlSiteDeps struct {
	Log      *logger.Logger
	Projects repos.ProjectRepo
	Content  repos.ContentItemRepo
	Scores   repos.ProjectScoreRepo
	Engine   Engine
}

type CrawlSiteInput struct {
	ProjectID uuid.UUID
	// URL overrides the project's domain.
	URL       string
	MaxDepth  int
	MaxPages  int
	RateLimit float64
	Now       time.Time
}

type CrawlSiteOutput struct {
	PagesCrawled int `json:"pagesCrawled"`
	ItemsCreated int `json:"itemsCreated"`
	Duplicates   int `json:"duplicates"`
	Errors       int `json:"errors"`
}

// CrawlSite crawls the project's site through the engine and stores every
// page as a DISCOVERED item. Pages already known by hash are counted as
// duplicates and left untouched.
func CrawlSite(ctx context.Context, deps CrawlSiteDeps, in CrawlSiteInput) (CrawlSiteOutput, error) {
	out := CrawlSiteOutput{}
	if deps.Log == nil || deps.Projects == nil || deps.Content == nil || deps.Engine == nil {
		return out, fmt.Errorf("crawl_site: missing deps")
	}
	if in.ProjectID == uuid.Nil {
		return out, fmt.Errorf("crawl_site: missing project_id")
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	dbc := dbctx.Of(ctx)
	start := strings.TrimSpace(in.URL)
	if start == "" {
		proj, err := deps.Projects.GetByID(dbc, in.ProjectID)
		if err != nil {
			return out, fmt.Errorf("crawl_site: load project: %w", err)
		}
		if proj != nil {
			start = siteURL(proj.Domain)
		}
	}
	if start == "" {
		return out, apierr.Validation("project has no domain and no url was given")
	}

	resp, err := deps.Engine.CrawlSite(ctx, engine.CrawlSiteRequest{
		URL:       start,
		MaxDepth:  in.MaxDepth,
		MaxPages:  in.MaxPages,
		RateLimit: in.RateLimit,
	})
	if err != nil {
		return out, fmt.Errorf("crawl_site: %w", err)
	}
	out.Errors = resp.ErrorCount

	for _, page := range resp.Pages {
		if page.Error != nil || strings.TrimSpace(page.URL) == "" {
			out.Errors++
			continue
		}
		out.PagesCrawled++
		created, err := deps.Content.CreateIfAbsent(dbc, crawledItem(in.ProjectID, page, now))
		if err != nil {
			return out, fmt.Errorf("crawl_site: store page: %w", err)
		}
		if created {
			out.ItemsCreated++
		} else {
			out.Duplicates++
		}
	}

	if out.ItemsCreated > 0 {
		markStale(dbc, deps.Scores, deps.Log, in.ProjectID, now)
	}
	deps.Log.Info("site crawled",
		"project_id", in.ProjectID,
		"url", start,
		"pages", out.PagesCrawled,
		"created", out.ItemsCreated,
		"duplicates", out.Duplicates,
		"errors", out.Errors,
	)
	return out, nil
}

func crawledItem(projectID uuid.UUID, page engine.Page, now time.Time) *types.ContentItem {
	url := strings.TrimSpace(page.URL)
	raw := nonEmpty(page.RawContent)
	words := page.WordCount
	if words == nil && raw != nil {
		n := countWords(*raw)
		words = &n
	}
	hash := content.Hash(url, "", "")
	item := &types.ContentItem{
		ProjectID:   projectID,
		URL:         &url,
		Title:       strOr(page.Title, url),
		Platform:    content.PlatformWebsite,
		ContentType: content.TypePage,
		Status:      content.StatusDiscovered,
		Source:      content.SourceCrawl,
		RawContent:  raw,
		WordCount:   words,
		Excerpt:     nonEmpty(page.Excerpt),
		PublishedAt: engine.ParseTime(page.PublishedAt),
		ContentHash: &hash,
	}
	if raw != nil {
		crawled := now
		item.LastCrawledAt = &crawled
	}
	return item
}
