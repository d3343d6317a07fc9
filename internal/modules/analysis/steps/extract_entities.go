package steps

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/visiblee-backend/internal/data/graph"
	"github.com/yungbote/visiblee-backend/internal/data/repos"
	types "github.com/yungbote/visiblee-backend/internal/domain"
	"github.com/yungbote/visiblee-backend/internal/domain/entity"
	"github.com/yungbote/visiblee-backend/internal/engine"
	"github.com/yungbote/visiblee-backend/internal/platform/dbctx"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
	"github.com/yungbote/visiblee-backend/internal/platform/neo4jdb"
)

type ExtractEntitiesDeps struct {
	DB       *gorm.DB
	Log      *logger.Logger
	Content  repos.ContentItemRepo
	Entities repos.EntityRepo
	Engine   Engine
	// Graph is optional.
	Graph *neo4jdb.Client
}

type ExtractEntitiesInput struct {
	ProjectID   uuid.UUID
	Concurrency int
	Progress    ProgressFunc
}

type ExtractEntitiesOutput struct {
	ItemsProcessed int `json:"itemsProcessed"`
	EntitiesFound  int `json:"entitiesFound"`
	ItemsFailed    int `json:"itemsFailed"`
	BatchesFailed  int `json:"batchesFailed"`

	Eligible int `json:"-"`
}

// ExtractEntities sends APPROVED items with text to the engine in batches and
// links the returned entities.
//
// Engine failures are counted per batch or per item and never abort the stage.
// A database error does, after deadlock retries: the output is returned with
// the error so the caller can fail the job. Re-running over the same items
// adds no links and leaves frequencies unchanged.
func ExtractEntities(ctx context.Context, deps ExtractEntitiesDeps, in ExtractEntitiesInput) (ExtractEntitiesOutput, error) {
	out := ExtractEntitiesOutput{}
	if deps.Log == nil || deps.Content == nil || deps.Entities == nil || deps.Engine == nil {
		return out, fmt.Errorf("extract_entities: missing deps")
	}
	if in.ProjectID == uuid.Nil {
		return out, fmt.Errorf("extract_entities: missing project_id")
	}

	items, err := deps.Content.ListExtractable(dbctx.Of(ctx), in.ProjectID, 0)
	if err != nil {
		return out, fmt.Errorf("extract_entities: list items: %w", err)
	}
	out.Eligible = len(items)
	if len(items) == 0 {
		return out, nil
	}

	var (
		mu       sync.Mutex
		done     int
		entities = map[uuid.UUID]bool{}
		nodes    []graph.ItemNode
		mentions []graph.Mention
	)
	windows := batches(len(items), ExtractBatchSize)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency(in.Concurrency))
	for bi, w := range windows {
		batch := items[w[0]:w[1]]
		g.Go(func() error {
			res, err := extractBatch(gctx, deps, in.ProjectID, batch)
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
				deps.Log.Warn("entity extraction batch failed", "project_id", in.ProjectID, "batch", bi, "size", len(batch), "error", err)
				return nil
			}
			out.ItemsProcessed += res.processed
			out.ItemsFailed += res.failed
			for id := range res.entities {
				entities[id] = true
			}
			nodes = append(nodes, res.nodes...)
			mentions = append(mentions, res.mentions...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, fmt.Errorf("extract_entities: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}
	out.EntitiesFound = len(entities)

	if err := graph.UpsertEntityMentions(ctx, deps.Graph, deps.Log, in.ProjectID, nodes, mentions); err != nil {
		deps.Log.Warn("entity graph projection failed (continuing)", "project_id", in.ProjectID, "error", err)
	}
	return out, nil
}

type batchResult struct {
	processed int
	failed    int
	entities  map[uuid.UUID]bool
	nodes     []graph.ItemNode
	mentions  []graph.Mention
}

// engineCallError marks a failure of the engine call itself, as opposed to a
// write.
type engineCallError struct{ err error }

func (e *engineCallError) Error() string { return e.err.Error() }
func (e *engineCallError) Unwrap() error { return e.err }

func isEngineError(err error) bool {
	var ec *engineCallError
	return errors.As(err, &ec)
}

func extractBatch(ctx context.Context, deps ExtractEntitiesDeps, projectID uuid.UUID, batch []*types.ContentItem) (batchResult, error) {
	res := batchResult{entities: map[uuid.UUID]bool{}}
	req := make([]engine.ExtractItem, 0, len(batch))
	byID := make(map[string]*types.ContentItem, len(batch))
	for _, it := range batch {
		req = append(req, engine.ExtractItem{
			ID:    it.ID.String(),
			Title: it.Title,
			Text:  truncateRunes(deref(it.RawContent), extractTextRunes),
		})
		byID[it.ID.String()] = it
	}

	resp, err := deps.Engine.ExtractEntities(ctx, req)
	if err != nil {
		return res, &engineCallError{err: err}
	}

	seen := make(map[string]bool, len(batch))
	var extracted []uuid.UUID
	for _, r := range resp.Results {
		it, ok := byID[r.ID]
		if !ok || seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		if r.Error != nil {
			res.failed++
			deps.Log.Debug("entity extraction failed for item", "content_item_id", r.ID, "error", *r.Error)
			continue
		}
		mentions, err := linkItemEntities(ctx, deps, projectID, it.ID, r.Entities)
		if err != nil {
			return res, err
		}
		for _, m := range mentions {
			res.entities[m.EntityID] = true
		}
		res.mentions = append(res.mentions, mentions...)
		res.processed++
		extracted = append(extracted, it.ID)
		res.nodes = append(res.nodes, graph.ItemNode{ID: it.ID, Title: it.Title, Platform: string(it.Platform), URL: deref(it.URL)})
	}
	// Items the engine silently dropped count as failed.
	res.failed += len(batch) - len(seen)

	if err := deps.Content.MarkExtracted(dbctx.Of(ctx), extracted, time.Now().UTC()); err != nil {
		return res, err
	}
	return res, nil
}

type entityRef struct {
	label string
	typ   entity.Type
	ex    engine.ExtractedEntity
}

// lockOrder normalizes the extracted entities and sorts them by (type, label)
// so concurrent items lock entity rows in the same order.
func lockOrder(extracted []engine.ExtractedEntity) []entityRef {
	refs := make([]entityRef, 0, len(extracted))
	for _, ex := range extracted {
		label := entity.NormalizeLabel(ex.Label)
		if label == "" {
			continue
		}
		refs = append(refs, entityRef{label: label, typ: entity.ParseType(ex.Type), ex: ex})
	}
	sort.SliceStable(refs, func(i, j int) bool {
		if refs[i].typ != refs[j].typ {
			return refs[i].typ < refs[j].typ
		}
		return refs[i].label < refs[j].label
	})
	return refs
}

// linkItemEntities upserts and links one item's entities in a single
// transaction, retried on deadlock.
func linkItemEntities(ctx context.Context, deps ExtractEntitiesDeps, projectID, itemID uuid.UUID, extracted []engine.ExtractedEntity) ([]graph.Mention, error) {
	refs := lockOrder(extracted)
	var mentions []graph.Mention
	err := inTxRetry(ctx, deps.DB, func(dbc dbctx.Context) error {
		mentions = mentions[:0]
		for _, ref := range refs {
			e, err := deps.Entities.UpsertByNaturalKey(dbc, projectID, ref.label, ref.typ)
			if err != nil {
				return err
			}
			link := &types.ContentEntity{
				ContentItemID: itemID,
				EntityID:      e.ID,
				Salience:      clampUnit(ref.ex.Salience),
				Context:       truncateRunes(deref(ref.ex.Context), mentionContextLen),
			}
			if _, err := deps.Entities.LinkContent(dbc, link, false); err != nil {
				return err
			}
			mentions = append(mentions, graph.Mention{
				ItemID:   itemID,
				EntityID: e.ID,
				Label:    e.Label,
				Type:     string(e.Type),
				Salience: link.Salience,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return mentions, nil
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
