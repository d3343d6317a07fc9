package steps

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/visiblee-backend/internal/data/repos"
	types "github.com/yungbote/visiblee-backend/internal/domain"
	"github.com/yungbote/visiblee-backend/internal/domain/content"
	"github.com/yungbote/visiblee-backend/internal/engine"
	"github.com/yungbote/visiblee-backend/internal/platform/dbctx"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
)

type GenerateEmbeddingsDeps struct {
	Log     *logger.Logger
	Content repos.ContentItemRepo
	Engine  Engine
}

type GenerateEmbeddingsInput struct {
	ProjectID   uuid.UUID
	Concurrency int
	Progress    ProgressFunc
}

type GenerateEmbeddingsOutput struct {
	ItemsEmbedded int `json:"itemsEmbedded"`
	ItemsFailed   int `json:"itemsFailed"`
	BatchesFailed int `json:"batchesFailed"`

	Eligible int `json:"-"`
}

// GenerateEmbeddings fills the embedding column for items with text and no
// vector yet. Items whose batch or result fails keep a NULL embedding and are
// picked up by the next run.
func GenerateEmbeddings(ctx context.Context, deps GenerateEmbeddingsDeps, in GenerateEmbeddingsInput) (GenerateEmbeddingsOutput, error) {
	out := GenerateEmbeddingsOutput{}
	if deps.Log == nil || deps.Content == nil || deps.Engine == nil {
		return out, fmt.Errorf("generate_embeddings: missing deps")
	}
	if in.ProjectID == uuid.Nil {
		return out, fmt.Errorf("generate_embeddings: missing project_id")
	}

	items, err := deps.Content.ListEmbeddable(dbctx.Of(ctx), in.ProjectID, 0)
	if err != nil {
		return out, fmt.Errorf("generate_embeddings: list items: %w", err)
	}
	out.Eligible = len(items)
	if len(items) == 0 {
		return out, nil
	}

	var (
		mu   sync.Mutex
		done int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency(in.Concurrency))
	for bi, w := range batches(len(items), EmbedBatchSize) {
		batch := items[w[0]:w[1]]
		g.Go(func() error {
			embedded, failed, err := embedBatch(gctx, deps, batch)
			mu.Lock()
			defer mu.Unlock()
			done += len(batch)
			in.Progress.report(done, len(items))
			if err != nil {
				if gctx.Err() == nil && !isEngineError(err) {
					return err
				}
				out.BatchesFailed++
				out.ItemsFailed += len(batch)
				deps.Log.Warn("embedding batch failed", "project_id", in.ProjectID, "batch", bi, "size", len(batch), "error", err)
				return nil
			}
			out.ItemsEmbedded += embedded
			out.ItemsFailed += failed
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, fmt.Errorf("generate_embeddings: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}
	return out, nil
}

func embedBatch(ctx context.Context, deps GenerateEmbeddingsDeps, batch []*types.ContentItem) (int, int, error) {
	req := make([]engine.EmbedItem, 0, len(batch))
	known := make(map[string]uuid.UUID, len(batch))
	for _, it := range batch {
		req = append(req, engine.EmbedItem{
			ID:   it.ID.String(),
			Text: truncateRunes(deref(it.RawContent), embedTextRunes),
		})
		known[it.ID.String()] = it.ID
	}

	resp, err := deps.Engine.EmbedBatch(ctx, req)
	if err != nil {
		return 0, 0, &engineCallError{err: err}
	}

	embedded, failed := 0, 0
	seen := make(map[string]bool, len(batch))
	for _, r := range resp.Results {
		id, ok := known[r.ID]
		if !ok || seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		if r.Error != nil || len(r.Embedding) != content.EmbeddingDimensions {
			failed++
			continue
		}
		written, err := deps.Content.SetEmbedding(dbctx.Of(ctx), id, r.Embedding)
		if err != nil {
			return embedded, failed, err
		}
		// Already embedded by a concurrent delivery; nothing to count.
		if written {
			embedded++
		}
	}
	failed += len(batch) - len(seen)
	return embedded, failed, nil
}
