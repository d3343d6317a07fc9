package steps

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/visiblee-backend/internal/data/repos"
	contentrepo "github.com/yungbote/visiblee-backend/internal/data/repos/content"
	types "github.com/yungbote/visiblee-backend/internal/domain"
	"github.com/yungbote/visiblee-backend/internal/engine"
	"github.com/yungbote/visiblee-backend/internal/pageparse"
	"github.com/yungbote/visiblee-backend/internal/platform/dbctx"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
)

const (
	FetchSourceEngine = "engine"
	FetchSourceLocal  = "local"
)

type FetchContentDeps struct {
	Log     *logger.Logger
	Content repos.ContentItemRepo
	Scores  repos.ProjectScoreRepo
	Engine  Engine
	// Fetcher is used when the engine cannot be reached.
	Fetcher Fetcher
}

type FetchContentInput struct {
	ProjectID uuid.UUID
	// ContentItemIDs narrows the run; empty means every item with a URL and
	// no text.
	ContentItemIDs []uuid.UUID
	Concurrency    int
	Progress       func(done, total int)
	Now            time.Time
}

type FetchContentOutput struct {
	ItemsFetched int    `json:"itemsFetched"`
	ItemsFailed  int    `json:"itemsFailed"`
	Source       string `json:"source"`

	Eligible int `json:"-"`
}

// fetchedPage is the common shape of an engine or local extraction.
type fetchedPage struct {
	title       string
	text        string
	words       int
	excerpt     string
	publishedAt *time.Time
	err         string
}

// FetchContent fills in raw text for items that only have a URL.
//
// URLs go to the engine in batches of ExtractBatchSize. Once the engine is
// found unreachable the remaining batches are fetched and parsed in-process.
// Per-URL failures are counted; a database error aborts the stage.
func FetchContent(ctx context.Context, deps FetchContentDeps, in FetchContentInput) (FetchContentOutput, error) {
	out := FetchContentOutput{}
	if deps.Log == nil || deps.Content == nil || deps.Engine == nil {
		return out, fmt.Errorf("fetch_content: missing deps")
	}
	if in.ProjectID == uuid.Nil {
		return out, fmt.Errorf("fetch_content: missing project_id")
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	conc := in.Concurrency
	if conc <= 0 {
		conc = defaultFetchConcurrency
	}

	dbc := dbctx.Of(ctx)
	items, err := deps.Content.ListFetchable(dbc, in.ProjectID, in.ContentItemIDs, 0)
	if err != nil {
		return out, fmt.Errorf("fetch_content: list items: %w", err)
	}
	out.Eligible = len(items)
	if len(items) == 0 {
		return out, nil
	}

	local := false
	out.Source = FetchSourceEngine
	for start := 0; start < len(items); start += ExtractBatchSize {
		end := min(start+ExtractBatchSize, len(items))
		batch := items[start:end]
		urls := make([]string, 0, len(batch))
		for _, it := range batch {
			urls = append(urls, strings.TrimSpace(*it.URL))
		}

		var pages map[string]fetchedPage
		if !local {
			pages, err = engineFetch(ctx, deps.Engine, urls, conc)
			if err != nil {
				if !engine.IsUnavailable(err) || deps.Fetcher == nil {
					out.ItemsFailed += len(batch)
					deps.Log.Warn("content extraction batch failed", "project_id", in.ProjectID, "size", len(batch), "error", err)
					if ctx.Err() != nil {
						return out, ctx.Err()
					}
					if in.Progress != nil {
						in.Progress(end, len(items))
					}
					continue
				}
				deps.Log.Warn("engine unreachable; fetching pages locally", "project_id", in.ProjectID, "error", err)
				local = true
				out.Source = FetchSourceLocal
			}
		}
		if local {
			pages = localFetch(ctx, deps.Fetcher, urls, conc)
		}

		for _, it := range batch {
			page, ok := pages[strings.TrimSpace(*it.URL)]
			if !ok || page.err != "" || strings.TrimSpace(page.text) == "" {
				out.ItemsFailed++
				if ok && page.err != "" {
					deps.Log.Debug("page fetch failed", "content_item_id", it.ID, "error", page.err)
				}
				continue
			}
			if err := deps.Content.SetFetched(dbc, it.ID, fetchedRow(it, page, now)); err != nil {
				return out, fmt.Errorf("fetch_content: store text: %w", err)
			}
			out.ItemsFetched++
		}
		if in.Progress != nil {
			in.Progress(end, len(items))
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}
	}

	if out.ItemsFetched > 0 {
		markStale(dbc, deps.Scores, deps.Log, in.ProjectID, now)
	}
	return out, nil
}

func fetchedRow(it *types.ContentItem, page fetchedPage, now time.Time) contentrepo.Fetched {
	words := page.words
	if words <= 0 {
		words = countWords(page.text)
	}
	f := contentrepo.Fetched{
		Title:       strings.TrimSpace(page.title),
		RawContent:  page.text,
		WordCount:   words,
		Excerpt:     page.excerpt,
		PublishedAt: page.publishedAt,
		CrawledAt:   now,
	}
	if f.PublishedAt == nil {
		f.PublishedAt = it.PublishedAt
	}
	return f
}

func engineFetch(ctx context.Context, eng Engine, urls []string, conc int) (map[string]fetchedPage, error) {
	resp, err := eng.CrawlExtract(ctx, urls, conc)
	if err != nil {
		return nil, err
	}
	out := make(map[string]fetchedPage, len(resp.Results))
	for _, r := range resp.Results {
		p := fetchedPage{
			title:       strOr(r.Title, ""),
			text:        strOr(r.RawContent, ""),
			excerpt:     strOr(r.Excerpt, ""),
			publishedAt: engine.ParseTime(r.PublishedAt),
		}
		if r.WordCount != nil {
			p.words = *r.WordCount
		}
		if r.Error != nil {
			p.err = *r.Error
		}
		out[strings.TrimSpace(r.URL)] = p
	}
	return out, nil
}

func localFetch(ctx context.Context, f Fetcher, urls []string, conc int) map[string]fetchedPage {
	out := make(map[string]fetchedPage, len(urls))
	for _, r := range f.FetchMany(ctx, urls, conc) {
		if r.Err != nil {
			out[r.URL] = fetchedPage{err: r.Err.Error()}
			continue
		}
		out[r.URL] = pageFromLocal(r.Page)
	}
	return out
}

func pageFromLocal(p *pageparse.Page) fetchedPage {
	if p == nil {
		return fetchedPage{err: "empty page"}
	}
	return fetchedPage{
		title:       p.Title,
		text:        p.Content,
		words:       p.WordCount,
		excerpt:     p.Excerpt,
		publishedAt: p.PublishedAt,
	}
}
