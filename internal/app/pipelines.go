package app

import (
	"fmt"

	"github.com/yungbote/visiblee-backend/internal/jobs/pipeline/cluster_topics"
	"github.com/yungbote/visiblee-backend/internal/jobs/pipeline/compute_score"
	"github.com/yungbote/visiblee-backend/internal/jobs/pipeline/crawl_site"
	"github.com/yungbote/visiblee-backend/internal/jobs/pipeline/extract_entities"
	"github.com/yungbote/visiblee-backend/internal/jobs/pipeline/fetch_content"
	"github.com/yungbote/visiblee-backend/internal/jobs/pipeline/full_analysis"
	"github.com/yungbote/visiblee-backend/internal/jobs/pipeline/generate_briefs"
	"github.com/yungbote/visiblee-backend/internal/jobs/pipeline/generate_content_suggestions"
	"github.com/yungbote/visiblee-backend/internal/jobs/pipeline/generate_embeddings"
	"github.com/yungbote/visiblee-backend/internal/jobs/pipeline/search_platforms"
	"github.com/yungbote/visiblee-backend/internal/jobs/runtime"
)

// pipelines builds the registry of every job handler the worker serves.
func (a *App) pipelines() (*runtime.Registry, error) {
	r := a.Repos
	eng := a.Clients.Engine
	graph := a.Clients.Graph
	n := a.Cfg.Jobs.StageConcurrency

	reg := runtime.NewRegistry()
	for _, h := range []runtime.Handler{
		// Analysis
		extract_entities.New(a.DB, a.Log, r.Content, r.Entities, eng, graph, n),
		generate_embeddings.New(a.Log, r.Content, eng, n),
		cluster_topics.New(a.DB, a.Log, r.Content, r.Entities, eng, graph),
		compute_score.New(a.Log, r.Content, r.Entities, r.Scores),
		generate_briefs.New(a.Log, r.Content, r.Entities, r.Scores, r.Briefs),
		generate_content_suggestions.New(a.Log, r.Projects, r.Scores, r.Suggestions, eng),
		full_analysis.New(a.DB, a.Log, r.Content, r.Entities, r.Scores, eng, graph, n),
		// Discovery
		crawl_site.New(a.Log, r.Projects, r.Content, r.Scores, eng),
		search_platforms.New(a.Log, r.Projects, r.Content, r.Scores, eng),
		fetch_content.New(a.Log, r.Content, r.Scores, eng, a.Clients.Fetcher, n),
	} {
		if err := reg.Register(h); err != nil {
			return nil, fmt.Errorf("register %s: %w", h.Type(), err)
		}
	}
	return reg, nil
}
