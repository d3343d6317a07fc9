package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/visiblee-backend/internal/cluster"
	"github.com/yungbote/visiblee-backend/internal/data/graph"
	"github.com/yungbote/visiblee-backend/internal/data/repos"
	types "github.com/yungbote/visiblee-backend/internal/domain"
	"github.com/yungbote/visiblee-backend/internal/domain/entity"
	"github.com/yungbote/visiblee-backend/internal/domain/jobs"
	"github.com/yungbote/visiblee-backend/internal/engine"
	"github.com/yungbote/visiblee-backend/internal/platform/apierr"
	"github.com/yungbote/visiblee-backend/internal/platform/dbctx"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
	"github.com/yungbote/visiblee-backend/internal/platform/neo4jdb"
)

const (
	ClusterSourceEngine = "engine"
	ClusterSourceLocal  = "local"
)

type ClusterTopicsDeps struct {
	DB       *gorm.DB
	Log      *logger.Logger
	Content  repos.ContentItemRepo
	Entities repos.EntityRepo
	Engine   Engine
	Graph    *neo4jdb.Client
}

type ClusterTopicsInput struct {
	ProjectID uuid.UUID
	Progress  ProgressFunc
}

type ClusterTopicsOutput struct {
	ItemsClustered int    `json:"itemsClustered"`
	TopicsFound    int    `json:"topicsFound"`
	Source         string `json:"source"`
}

type topicAssignment struct {
	itemID     uuid.UUID
	label      string
	confidence float64
}

// ClusterTopics groups embedded items into TOPIC entities.
//
// The embedded count is re-checked here because items may have been archived
// since dispatch; fewer than the minimum fails with INSUFFICIENT_INPUT. The
// engine is asked first; any engine failure falls back to local k-means. The
// previous clustering is replaced whole inside one transaction.
func ClusterTopics(ctx context.Context, deps ClusterTopicsDeps, in ClusterTopicsInput) (ClusterTopicsOutput, error) {
	out := ClusterTopicsOutput{}
	if deps.Log == nil || deps.Content == nil || deps.Entities == nil || deps.Engine == nil {
		return out, fmt.Errorf("cluster_topics: missing deps")
	}
	if in.ProjectID == uuid.Nil {
		return out, fmt.Errorf("cluster_topics: missing project_id")
	}

	items, err := deps.Content.ListEmbedded(dbctx.Of(ctx), in.ProjectID)
	if err != nil {
		return out, fmt.Errorf("cluster_topics: list embedded: %w", err)
	}
	if len(items) < jobs.MinEmbeddedForClustering {
		return out, apierr.InsufficientInput("clustering needs at least %d embedded items, found %d", jobs.MinEmbeddedForClustering, len(items))
	}
	in.Progress.report(0, 3)

	assignments, source, err := assignTopics(ctx, deps, items)
	if err != nil {
		return out, fmt.Errorf("cluster_topics: %w", err)
	}
	out.Source = source
	in.Progress.report(1, 3)

	byID := make(map[uuid.UUID]*types.ContentItem, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	var members []graph.TopicMember
	topics := map[uuid.UUID]bool{}
	err = inTx(ctx, deps.DB, func(dbc dbctx.Context) error {
		if err := deps.Entities.ResetTopicLinks(dbc, in.ProjectID); err != nil {
			return err
		}
		topicIDs := map[string]uuid.UUID{}
		for _, a := range assignments {
			if _, ok := byID[a.itemID]; !ok {
				continue
			}
			topicID, ok := topicIDs[a.label]
			if !ok {
				e, err := deps.Entities.UpsertByNaturalKey(dbc, in.ProjectID, a.label, entity.TypeTopic)
				if err != nil {
					return err
				}
				topicID = e.ID
				topicIDs[a.label] = topicID
			}
			if _, err := deps.Entities.LinkContent(dbc, &types.ContentEntity{
				ContentItemID: a.itemID,
				EntityID:      topicID,
				Salience:      a.confidence,
			}, true); err != nil {
				return err
			}
			topics[topicID] = true
			out.ItemsClustered++
			members = append(members, graph.TopicMember{ItemID: a.itemID, TopicID: topicID, Label: a.label, Confidence: a.confidence})
		}
		pruned, err := deps.Entities.PruneEmptyTopics(dbc, in.ProjectID)
		if err != nil {
			return err
		}
		if pruned > 0 {
			deps.Log.Debug("pruned empty topics", "project_id", in.ProjectID, "count", pruned)
		}
		return nil
	})
	if err != nil {
		return ClusterTopicsOutput{Source: source}, fmt.Errorf("cluster_topics: write topics: %w", err)
	}
	out.TopicsFound = len(topics)
	in.Progress.report(2, 3)

	nodes := make([]graph.ItemNode, 0, len(items))
	for _, it := range items {
		nodes = append(nodes, graph.ItemNode{ID: it.ID, Title: it.Title, Platform: string(it.Platform), URL: deref(it.URL)})
	}
	if err := graph.ReplaceTopics(ctx, deps.Graph, deps.Log, in.ProjectID, nodes, members); err != nil {
		deps.Log.Warn("topic graph projection failed (continuing)", "project_id", in.ProjectID, "error", err)
	}
	in.Progress.report(3, 3)
	return out, nil
}

func assignTopics(ctx context.Context, deps ClusterTopicsDeps, items []*types.ContentItem) ([]topicAssignment, string, error) {
	req := make([]engine.TopicItem, 0, len(items))
	for _, it := range items {
		req = append(req, engine.TopicItem{ID: it.ID.String(), Title: it.Title, Embedding: it.Embedding.Slice()})
	}
	resp, err := deps.Engine.AnalyzeTopics(ctx, req)
	switch {
	case err != nil:
		deps.Log.Warn("engine clustering failed; using local k-means", "error", err)
	case resp.Error != nil:
		deps.Log.Warn("engine clustering declined; using local k-means", "reason", *resp.Error)
	case len(resp.Assignments) == 0:
		deps.Log.Warn("engine returned no topic assignments; using local k-means")
	default:
		out := make([]topicAssignment, 0, len(resp.Assignments))
		for _, a := range resp.Assignments {
			id, perr := uuid.Parse(a.ID)
			if perr != nil {
				continue
			}
			label := strings.TrimSpace(a.TopicLabel)
			if label == "" {
				label = cluster.Label(a.ClusterIdx)
			}
			out = append(out, topicAssignment{itemID: id, label: label, confidence: clampUnit(a.Confidence)})
		}
		return out, ClusterSourceEngine, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	local := make([]cluster.Item, 0, len(items))
	for _, it := range items {
		local = append(local, cluster.Item{ID: it.ID.String(), Embedding: it.Embedding.Slice()})
	}
	res, err := cluster.Run(local)
	if err != nil {
		return nil, "", err
	}
	out := make([]topicAssignment, 0, len(res.Assignments))
	for _, a := range res.Assignments {
		id, perr := uuid.Parse(a.ID)
		if perr != nil {
			continue
		}
		label := a.Label
		if label == "" {
			label = cluster.Label(a.ClusterIdx)
		}
		out = append(out, topicAssignment{itemID: id, label: label, confidence: a.Confidence})
	}
	return out, ClusterSourceLocal, nil
}
