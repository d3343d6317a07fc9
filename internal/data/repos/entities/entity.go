package entities

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/visiblee-backend/internal/domain"
	"github.com/yungbote/visiblee-backend/internal/domain/entity"
	"github.com/yungbote/visiblee-backend/internal/platform/dbctx"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
)

// Stats summarises a project's entities for the coherence dimension.
type Stats struct {
	Entities          int64
	RecurringEntities int64
	TopicSizes        []int64
	ItemsInTopics     int64
}

// LinkedEntity is an entity with the salience of one of its content links.
type LinkedEntity struct {
	EntityID      uuid.UUID
	ContentItemID uuid.UUID
	Label         string
	Type          string
	Salience      float64
}

type EntityRepo interface {
	// UpsertByNaturalKey returns the entity keyed on (project_id, label, type),
	// inserting it with frequency 0 when absent.
	UpsertByNaturalKey(dbc dbctx.Context, projectID uuid.UUID, label string, typ entity.Type) (*types.Entity, error)
	// LinkContent inserts the (content_item_id, entity_id) association and bumps
	// the entity frequency only when the row is new. With refreshSalience an
	// existing link gets the new salience instead.
	LinkContent(dbc dbctx.Context, link *types.ContentEntity, refreshSalience bool) (bool, error)
	// ResetTopicLinks drops every TOPIC association of the project and zeroes
	// topic frequencies so a new clustering can be written whole.
	ResetTopicLinks(dbc dbctx.Context, projectID uuid.UUID) error
	PruneEmptyTopics(dbc dbctx.Context, projectID uuid.UUID) (int64, error)

	ListByProject(dbc dbctx.Context, projectID uuid.UUID, typ entity.Type, limit int) ([]*types.Entity, error)
	TopByFrequency(dbc dbctx.Context, projectID uuid.UUID, excludeTopics bool, limit int) ([]*types.Entity, error)
	ListUnderCovered(dbc dbctx.Context, projectID uuid.UUID, maxFrequency int, limit int) ([]*types.Entity, error)
	ListLinksForItems(dbc dbctx.Context, itemIDs []uuid.UUID) ([]LinkedEntity, error)
	Stats(dbc dbctx.Context, projectID uuid.UUID) (*Stats, error)
}

type entityRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEntityRepo(db *gorm.DB, baseLog *logger.Logger) EntityRepo {
	return &entityRepo{
		db:  db,
		log: baseLog.With("repo", "EntityRepo"),
	}
}

func (r *entityRepo) UpsertByNaturalKey(dbc dbctx.Context, projectID uuid.UUID, label string, typ entity.Type) (*types.Entity, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	label = entity.NormalizeLabel(label)
	if projectID == uuid.Nil || label == "" {
		return nil, errors.New("entity natural key requires project_id and label")
	}
	row := &types.Entity{
		ID:        uuid.New(),
		ProjectID: projectID,
		Label:     label,
		Type:      typ,
	}
	err := transaction.WithContext(dbc.Ctx).
		Clauses(
			clause.OnConflict{
				Columns:   []clause.Column{{Name: "project_id"}, {Name: "label"}, {Name: "type"}},
				DoUpdates: clause.Assignments(map[string]interface{}{"updated_at": gorm.Expr("now()")}),
			},
			clause.Returning{},
		).
		Create(row).Error
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (r *entityRepo) LinkContent(dbc dbctx.Context, link *types.ContentEntity, refreshSalience bool) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if link == nil || link.ContentItemID == uuid.Nil || link.EntityID == uuid.Nil {
		return false, errors.New("content link requires content_item_id and entity_id")
	}
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	created := false
	err := transaction.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "content_item_id"}, {Name: "entity_id"}},
			DoNothing: true,
		}).Create(link)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			created = true
			return tx.Model(&types.Entity{}).
				Where("id = ?", link.EntityID).
				UpdateColumn("frequency", gorm.Expr("frequency + 1")).Error
		}
		if refreshSalience {
			return tx.Model(&types.ContentEntity{}).
				Where("content_item_id = ? AND entity_id = ?", link.ContentItemID, link.EntityID).
				UpdateColumn("salience", link.Salience).Error
		}
		return nil
	})
	return created, err
}

func (r *entityRepo) ResetTopicLinks(dbc dbctx.Context, projectID uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		topicIDs := tx.Model(&types.Entity{}).
			Select("id").
			Where("project_id = ? AND type = ?", projectID, entity.TypeTopic)
		if err := tx.Where("entity_id IN (?)", topicIDs).Delete(&types.ContentEntity{}).Error; err != nil {
			return err
		}
		return tx.Model(&types.Entity{}).
			Where("project_id = ? AND type = ?", projectID, entity.TypeTopic).
			Updates(map[string]interface{}{"frequency": 0, "updated_at": time.Now().UTC()}).Error
	})
}

func (r *entityRepo) PruneEmptyTopics(dbc dbctx.Context, projectID uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Where("project_id = ? AND type = ? AND frequency = 0", projectID, entity.TypeTopic).
		Delete(&types.Entity{})
	return res.RowsAffected, res.Error
}

func (r *entityRepo) ListByProject(dbc dbctx.Context, projectID uuid.UUID, typ entity.Type, limit int) ([]*types.Entity, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := transaction.WithContext(dbc.Ctx).Where("project_id = ?", projectID)
	if typ != "" {
		q = q.Where("type = ?", typ)
	}
	var out []*types.Entity
	err := q.Order("frequency DESC, label ASC").Limit(limit).Find(&out).Error
	return out, err
}

func (r *entityRepo) TopByFrequency(dbc dbctx.Context, projectID uuid.UUID, excludeTopics bool, limit int) ([]*types.Entity, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 10
	}
	q := transaction.WithContext(dbc.Ctx).Where("project_id = ? AND frequency > 0", projectID)
	if excludeTopics {
		q = q.Where("type <> ?", entity.TypeTopic)
	}
	var out []*types.Entity
	err := q.Order("frequency DESC, label ASC").Limit(limit).Find(&out).Error
	return out, err
}

func (r *entityRepo) ListUnderCovered(dbc dbctx.Context, projectID uuid.UUID, maxFrequency int, limit int) ([]*types.Entity, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 10
	}
	var out []*types.Entity
	err := transaction.WithContext(dbc.Ctx).
		Where("project_id = ? AND frequency > 0 AND frequency <= ?", projectID, maxFrequency).
		Where("type IN ?", []entity.Type{entity.TypeTopic, entity.TypeConcept, entity.TypeProduct, entity.TypeBrand}).
		Order("frequency ASC, label ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *entityRepo) ListLinksForItems(dbc dbctx.Context, itemIDs []uuid.UUID) ([]LinkedEntity, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []LinkedEntity
	if len(itemIDs) == 0 {
		return out, nil
	}
	err := transaction.WithContext(dbc.Ctx).
		Table("content_entity AS ce").
		Select("ce.entity_id, ce.content_item_id, e.label, e.type, ce.salience").
		Joins("JOIN entity AS e ON e.id = ce.entity_id").
		Where("ce.content_item_id IN ?", itemIDs).
		Order("ce.salience DESC").
		Scan(&out).Error
	return out, err
}

func (r *entityRepo) Stats(dbc dbctx.Context, projectID uuid.UUID) (*Stats, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	db := transaction.WithContext(dbc.Ctx)
	out := &Stats{}

	var counts struct {
		Entities  int64
		Recurring int64
	}
	if err := db.Model(&types.Entity{}).
		Select("COUNT(*) AS entities, COUNT(*) FILTER (WHERE frequency >= 2) AS recurring").
		Where("project_id = ? AND type <> ? AND frequency > 0", projectID, entity.TypeTopic).
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	out.Entities = counts.Entities
	out.RecurringEntities = counts.Recurring

	if err := db.Model(&types.Entity{}).
		Where("project_id = ? AND type = ? AND frequency > 0", projectID, entity.TypeTopic).
		Order("frequency DESC").
		Pluck("frequency", &out.TopicSizes).Error; err != nil {
		return nil, err
	}

	if err := db.Table("content_entity AS ce").
		Joins("JOIN entity AS e ON e.id = ce.entity_id").
		Where("e.project_id = ? AND e.type = ?", projectID, entity.TypeTopic).
		Distinct("ce.content_item_id").
		Count(&out.ItemsInTopics).Error; err != nil {
		return nil, err
	}
	return out, nil
}
