package graph

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/yungbote/visiblee-backend/internal/platform/logger"
	"github.com/yungbote/visiblee-backend/internal/platform/neo4jdb"
)

// ItemNode is the slice of a content item mirrored into the graph.
type ItemNode struct {
	ID       uuid.UUID
	Title    string
	Platform string
	URL      string
}

// Mention links an item to an extracted entity.
type Mention struct {
	ItemID   uuid.UUID
	EntityID uuid.UUID
	Label    string
	Type     string
	Salience float64
}

// TopicMember places an item in a topic produced by clustering.
type TopicMember struct {
	ItemID     uuid.UUID
	TopicID    uuid.UUID
	Label      string
	Confidence float64
}

var schemaStatements = []string{
	`CREATE CONSTRAINT project_id_unique IF NOT EXISTS FOR (p:Project) REQUIRE p.id IS UNIQUE`,
	`CREATE CONSTRAINT content_item_id_unique IF NOT EXISTS FOR (c:ContentItem) REQUIRE c.id IS UNIQUE`,
	`CREATE CONSTRAINT entity_id_unique IF NOT EXISTS FOR (e:Entity) REQUIRE e.id IS UNIQUE`,
	`CREATE CONSTRAINT topic_id_unique IF NOT EXISTS FOR (t:Topic) REQUIRE t.id IS UNIQUE`,
}

// UpsertEntityMentions mirrors extraction results as
// (Project)-[:HAS_CONTENT]->(ContentItem)-[:MENTIONS]->(Entity)<-[:HAS_ENTITY]-(Project).
//
// The projection is derived data: Postgres stays the source of truth and a nil
// client turns the call into a no-op.
func UpsertEntityMentions(ctx context.Context, client *neo4jdb.Client, log *logger.Logger, projectID uuid.UUID, items []ItemNode, mentions []Mention) error {
	if client == nil || client.Driver == nil || projectID == uuid.Nil {
		return nil
	}
	if len(items) == 0 && len(mentions) == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	itemNodes := itemParams(items, now)
	mentionRels := make([]map[string]any, 0, len(mentions))
	for _, m := range mentions {
		if m.ItemID == uuid.Nil || m.EntityID == uuid.Nil || strings.TrimSpace(m.Label) == "" {
			continue
		}
		mentionRels = append(mentionRels, map[string]any{
			"item_id":   m.ItemID.String(),
			"entity_id": m.EntityID.String(),
			"label":     strings.TrimSpace(m.Label),
			"type":      m.Type,
			"salience":  m.Salience,
			"synced_at": now,
		})
	}

	session := client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: client.Database,
	})
	defer session.Close(ctx)
	ensureSchema(ctx, session, log)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if err := run(ctx, tx, `
MERGE (p:Project {id: $project_id})
SET p.synced_at = $synced_at
`, map[string]any{"project_id": projectID.String(), "synced_at": now}); err != nil {
			return nil, err
		}
		if len(itemNodes) > 0 {
			if err := run(ctx, tx, `
MATCH (p:Project {id: $project_id})
UNWIND $items AS i
MERGE (c:ContentItem {id: i.id})
SET c += i
MERGE (p)-[h:HAS_CONTENT]->(c)
SET h.synced_at = i.synced_at
`, map[string]any{"project_id": projectID.String(), "items": itemNodes}); err != nil {
				return nil, err
			}
		}
		if len(mentionRels) > 0 {
			if err := run(ctx, tx, `
MATCH (p:Project {id: $project_id})
UNWIND $rels AS r
MATCH (c:ContentItem {id: r.item_id})
MERGE (e:Entity {id: r.entity_id})
SET e.label = r.label, e.type = r.type, e.project_id = $project_id, e.synced_at = r.synced_at
MERGE (p)-[he:HAS_ENTITY]->(e)
MERGE (c)-[m:MENTIONS]->(e)
SET m.salience = r.salience, m.synced_at = r.synced_at
`, map[string]any{"project_id": projectID.String(), "rels": mentionRels}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

// ReplaceTopics drops the project's IN_TOPIC edges and writes members as the
// new clustering.
func ReplaceTopics(ctx context.Context, client *neo4jdb.Client, log *logger.Logger, projectID uuid.UUID, items []ItemNode, members []TopicMember) error {
	if client == nil || client.Driver == nil || projectID == uuid.Nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	itemNodes := itemParams(items, now)
	memberRels := make([]map[string]any, 0, len(members))
	for _, m := range members {
		if m.ItemID == uuid.Nil || m.TopicID == uuid.Nil {
			continue
		}
		memberRels = append(memberRels, map[string]any{
			"item_id":    m.ItemID.String(),
			"topic_id":   m.TopicID.String(),
			"label":      m.Label,
			"confidence": m.Confidence,
			"synced_at":  now,
		})
	}

	session := client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: client.Database,
	})
	defer session.Close(ctx)
	ensureSchema(ctx, session, log)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if err := run(ctx, tx, `
MERGE (p:Project {id: $project_id})
SET p.synced_at = $synced_at
WITH p
OPTIONAL MATCH (p)-[:HAS_TOPIC]->(t:Topic)<-[r:IN_TOPIC]-(:ContentItem)
DELETE r
`, map[string]any{"project_id": projectID.String(), "synced_at": now}); err != nil {
			return nil, err
		}
		if len(itemNodes) > 0 {
			if err := run(ctx, tx, `
MATCH (p:Project {id: $project_id})
UNWIND $items AS i
MERGE (c:ContentItem {id: i.id})
SET c += i
MERGE (p)-[h:HAS_CONTENT]->(c)
SET h.synced_at = i.synced_at
`, map[string]any{"project_id": projectID.String(), "items": itemNodes}); err != nil {
				return nil, err
			}
		}
		if len(memberRels) > 0 {
			if err := run(ctx, tx, `
MATCH (p:Project {id: $project_id})
UNWIND $rels AS r
MATCH (c:ContentItem {id: r.item_id})
MERGE (t:Topic {id: r.topic_id})
SET t.label = r.label, t.project_id = $project_id, t.synced_at = r.synced_at
MERGE (p)-[:HAS_TOPIC]->(t)
MERGE (c)-[x:IN_TOPIC]->(t)
SET x.confidence = r.confidence, x.synced_at = r.synced_at
`, map[string]any{"project_id": projectID.String(), "rels": memberRels}); err != nil {
				return nil, err
			}
		}
		// Topics left without members are gone from Postgres too.
		return nil, run(ctx, tx, `
MATCH (p:Project {id: $project_id})-[:HAS_TOPIC]->(t:Topic)
WHERE NOT (t)<-[:IN_TOPIC]-(:ContentItem)
DETACH DELETE t
`, map[string]any{"project_id": projectID.String()})
	})
	return err
}

func itemParams(items []ItemNode, now string) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	seen := make(map[uuid.UUID]bool, len(items))
	for _, it := range items {
		if it.ID == uuid.Nil || seen[it.ID] {
			continue
		}
		seen[it.ID] = true
		out = append(out, map[string]any{
			"id":        it.ID.String(),
			"title":     it.Title,
			"platform":  it.Platform,
			"url":       it.URL,
			"synced_at": now,
		})
	}
	return out
}

// Best-effort schema init.
func ensureSchema(ctx context.Context, session neo4j.SessionWithContext, log *logger.Logger) {
	for _, q := range schemaStatements {
		res, err := session.Run(ctx, q, nil)
		if err != nil {
			if log != nil {
				log.Warn("neo4j schema init failed (continuing)", "error", err)
			}
			continue
		}
		_, _ = res.Consume(ctx)
	}
}

func run(ctx context.Context, tx neo4j.ManagedTransaction, cypher string, params map[string]any) error {
	res, err := tx.Run(ctx, cypher, params)
	if err != nil {
		return err
	}
	_, err = res.Consume(ctx)
	return err
}
