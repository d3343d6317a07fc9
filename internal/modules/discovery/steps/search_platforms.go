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

type SearchPlatformsDeps struct {
	Log      *logger.Logger
	Projects repos.ProjectRepo
	Content  repos.ContentItemRepo
	Scores   repos.ProjectScoreRepo
	Engine   Engine
}

type SearchPlatformsInput struct {
	ProjectID uuid.UUID
	// Brand and Domain default to the project's.
	Brand                 string
	Domain                string
	Platforms             []string
	MaxResultsPerPlatform int
	Now                   time.Time
}

type SearchPlatformsOutput struct {
	ResultsFound int `json:"resultsFound"`
	ItemsCreated int `json:"itemsCreated"`
	Duplicates   int `json:"duplicates"`
	Errors       int `json:"errors"`
}

// SearchPlatforms looks for brand mentions on the requested platforms and
// records each hit as a DISCOVERED item on the platform it was found on.
func SearchPlatforms(ctx context.Context, deps SearchPlatformsDeps, in SearchPlatformsInput) (SearchPlatformsOutput, error) {
	out := SearchPlatformsOutput{}
	if deps.Log == nil || deps.Projects == nil || deps.Content == nil || deps.Engine == nil {
		return out, fmt.Errorf("search_platforms: missing deps")
	}
	if in.ProjectID == uuid.Nil {
		return out, fmt.Errorf("search_platforms: missing project_id")
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	platforms := make([]string, 0, len(in.Platforms))
	seen := map[content.Platform]bool{}
	for _, raw := range in.Platforms {
		p, ok := content.ParsePlatform(raw)
		if !ok {
			return out, apierr.Validation("unknown platform %q", raw)
		}
		if !seen[p] {
			seen[p] = true
			platforms = append(platforms, string(p))
		}
	}
	if len(platforms) == 0 {
		return out, apierr.Validation("at least one platform is required")
	}

	dbc := dbctx.Of(ctx)
	brand, domain := strings.TrimSpace(in.Brand), strings.TrimSpace(in.Domain)
	if brand == "" || domain == "" {
		proj, err := deps.Projects.GetByID(dbc, in.ProjectID)
		if err != nil {
			return out, fmt.Errorf("search_platforms: load project: %w", err)
		}
		if proj != nil {
			if brand == "" {
				brand = proj.Brand()
			}
			if domain == "" {
				domain = proj.Domain
			}
		}
	}
	if brand == "" {
		return out, apierr.Validation("a brand is required")
	}

	req := engine.SearchPlatformRequest{
		Brand:                 brand,
		Platforms:             platforms,
		MaxResultsPerPlatform: in.MaxResultsPerPlatform,
	}
	if domain != "" {
		req.Domain = &domain
	}
	resp, err := deps.Engine.SearchPlatform(ctx, req)
	if err != nil {
		return out, fmt.Errorf("search_platforms: %w", err)
	}
	out.Errors = len(resp.Errors)

	for _, r := range resp.Results {
		url := strings.TrimSpace(r.URL)
		if url == "" {
			out.Errors++
			continue
		}
		out.ResultsFound++
		platform, _ := content.ParsePlatform(r.Platform)
		hash := content.Hash(url, "", "")
		item := &types.ContentItem{
			ProjectID:   in.ProjectID,
			URL:         &url,
			Title:       strOr(&r.Title, url),
			Platform:    platform,
			ContentType: contentTypeFor(platform),
			Status:      content.StatusDiscovered,
			Source:      content.SourceSearch,
			Excerpt:     nonEmpty(r.Snippet),
			ContentHash: &hash,
		}
		created, err := deps.Content.CreateIfAbsent(dbc, item)
		if err != nil {
			return out, fmt.Errorf("search_platforms: store result: %w", err)
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
	deps.Log.Info("platform search finished",
		"project_id", in.ProjectID,
		"platforms", platforms,
		"results", out.ResultsFound,
		"created", out.ItemsCreated,
		"errors", out.Errors,
	)
	return out, nil
}
