package content

import (
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/visiblee-backend/internal/domain"
	"github.com/yungbote/visiblee-backend/internal/domain/content"
	"github.com/yungbote/visiblee-backend/internal/platform/dbctx"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
)

type ListFilter struct {
	Status   content.Status
	Platform content.Platform
	Limit    int
	Offset   int
}

// Fetched is the text extracted for an item by FETCH_CONTENT.
type Fetched struct {
	Title       string
	RawContent  string
	WordCount   int
	Excerpt     string
	PublishedAt *time.Time
	CrawledAt   time.Time
}

// SimilarItem is one vector search hit. Distance is cosine distance.
type SimilarItem struct {
	ID          uuid.UUID
	Title       string
	URL         *string
	Platform    string
	Excerpt     *string
	PublishedAt *time.Time
	Distance    float64
}

type ContentItemRepo interface {
	// CreateIfAbsent inserts keyed on (project_id, content_hash). created=false
	// means an item with that hash already exists; the existing row is untouched.
	CreateIfAbsent(dbc dbctx.Context, item *types.ContentItem) (bool, error)
	GetByIDs(dbc dbctx.Context, projectID uuid.UUID, ids []uuid.UUID) ([]*types.ContentItem, error)
	ListByProject(dbc dbctx.Context, projectID uuid.UUID, f ListFilter) ([]*types.ContentItem, error)

	ListExtractable(dbc dbctx.Context, projectID uuid.UUID, limit int) ([]*types.ContentItem, error)
	CountExtractable(dbc dbctx.Context, projectID uuid.UUID) (int64, error)
	ListEmbeddable(dbc dbctx.Context, projectID uuid.UUID, limit int) ([]*types.ContentItem, error)
	CountEmbeddable(dbc dbctx.Context, projectID uuid.UUID) (int64, error)
	ListEmbedded(dbc dbctx.Context, projectID uuid.UUID) ([]*types.ContentItem, error)
	CountEmbedded(dbc dbctx.Context, projectID uuid.UUID) (int64, error)
	ListFetchable(dbc dbctx.Context, projectID uuid.UUID, ids []uuid.UUID, limit int) ([]*types.ContentItem, error)
	CountFetchable(dbc dbctx.Context, projectID uuid.UUID, ids []uuid.UUID) (int64, error)
	CountByProject(dbc dbctx.Context, projectID uuid.UUID) (int64, error)

	SetEmbedding(dbc dbctx.Context, id uuid.UUID, vec []float32) (bool, error)
	SetFetched(dbc dbctx.Context, id uuid.UUID, f Fetched) error
	MarkExtracted(dbc dbctx.Context, ids []uuid.UUID, at time.Time) error
	UpdateStatus(dbc dbctx.Context, projectID uuid.UUID, ids []uuid.UUID, to content.Status) (int64, error)
	ArchiveByProject(dbc dbctx.Context, projectID uuid.UUID) (int64, error)

	SearchSimilar(dbc dbctx.Context, projectID uuid.UUID, vec []float32, maxDistance float64, limit int) ([]SimilarItem, error)
	PlatformStats(dbc dbctx.Context, projectID uuid.UUID, asOf time.Time) ([]PlatformStat, error)
}

type contentItemRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewContentItemRepo(db *gorm.DB, baseLog *logger.Logger) ContentItemRepo {
	return &contentItemRepo{
		db:  db,
		log: baseLog.With("repo", "ContentItemRepo"),
	}
}

func (r *contentItemRepo) CreateIfAbsent(dbc dbctx.Context, item *types.ContentItem) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if item == nil {
		return false, errors.New("content item is nil")
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.ContentHash == nil {
		h := content.Hash(deref(item.URL), item.Title, deref(item.RawContent))
		item.ContentHash = &h
	}
	res := transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "project_id"}, {Name: "content_hash"}},
			DoNothing: true,
		}).
		Create(item)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *contentItemRepo) GetByIDs(dbc dbctx.Context, projectID uuid.UUID, ids []uuid.UUID) ([]*types.ContentItem, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ContentItem
	if len(ids) == 0 {
		return out, nil
	}
	err := transaction.WithContext(dbc.Ctx).
		Where("project_id = ? AND id IN ?", projectID, ids).
		Find(&out).Error
	return out, err
}

func (r *contentItemRepo) ListByProject(dbc dbctx.Context, projectID uuid.UUID, f ListFilter) ([]*types.ContentItem, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := transaction.WithContext(dbc.Ctx).
		Omit("raw_content", "embedding").
		Where("project_id = ?", projectID)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Platform != "" {
		q = q.Where("platform = ?", f.Platform)
	}
	var out []*types.ContentItem
	err := q.Order("created_at DESC").Limit(limit).Offset(max(f.Offset, 0)).Find(&out).Error
	return out, err
}

func (r *contentItemRepo) extractable(tx *gorm.DB, projectID uuid.UUID) *gorm.DB {
	return tx.Model(&types.ContentItem{}).
		Where("project_id = ? AND status = ? AND raw_content IS NOT NULL AND raw_content <> ''", projectID, content.StatusApproved)
}

func (r *contentItemRepo) ListExtractable(dbc dbctx.Context, projectID uuid.UUID, limit int) ([]*types.ContentItem, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ContentItem
	q := r.extractable(transaction.WithContext(dbc.Ctx), projectID).
		Omit("embedding").
		Order("last_extracted_at ASC NULLS FIRST").
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

func (r *contentItemRepo) CountExtractable(dbc dbctx.Context, projectID uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	err := r.extractable(transaction.WithContext(dbc.Ctx), projectID).Count(&n).Error
	return n, err
}

func (r *contentItemRepo) embeddable(tx *gorm.DB, projectID uuid.UUID) *gorm.DB {
	return tx.Model(&types.ContentItem{}).
		Where("project_id = ? AND raw_content IS NOT NULL AND raw_content <> '' AND embedding IS NULL", projectID).
		Where("status <> ?", content.StatusArchived)
}

func (r *contentItemRepo) ListEmbeddable(dbc dbctx.Context, projectID uuid.UUID, limit int) ([]*types.ContentItem, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ContentItem
	q := r.embeddable(transaction.WithContext(dbc.Ctx), projectID).Omit("embedding").Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

func (r *contentItemRepo) CountEmbeddable(dbc dbctx.Context, projectID uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	err := r.embeddable(transaction.WithContext(dbc.Ctx), projectID).Count(&n).Error
	return n, err
}

func (r *contentItemRepo) embedded(tx *gorm.DB, projectID uuid.UUID) *gorm.DB {
	return tx.Model(&types.ContentItem{}).
		Where("project_id = ? AND embedding IS NOT NULL AND status <> ?", projectID, content.StatusArchived)
}

func (r *contentItemRepo) ListEmbedded(dbc dbctx.Context, projectID uuid.UUID) ([]*types.ContentItem, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ContentItem
	err := r.embedded(transaction.WithContext(dbc.Ctx), projectID).
		Omit("raw_content").
		Order("id ASC").
		Find(&out).Error
	return out, err
}

func (r *contentItemRepo) CountEmbedded(dbc dbctx.Context, projectID uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	err := r.embedded(transaction.WithContext(dbc.Ctx), projectID).Count(&n).Error
	return n, err
}

func (r *contentItemRepo) fetchable(tx *gorm.DB, projectID uuid.UUID, ids []uuid.UUID) *gorm.DB {
	q := tx.Model(&types.ContentItem{}).
		Where("project_id = ? AND url IS NOT NULL AND url <> '' AND raw_content IS NULL", projectID).
		Where("status IN ?", []content.Status{content.StatusDiscovered, content.StatusApproved})
	if len(ids) > 0 {
		q = q.Where("id IN ?", ids)
	}
	return q
}

func (r *contentItemRepo) ListFetchable(dbc dbctx.Context, projectID uuid.UUID, ids []uuid.UUID, limit int) ([]*types.ContentItem, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ContentItem
	q := r.fetchable(transaction.WithContext(dbc.Ctx), projectID, ids).Omit("embedding").Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

func (r *contentItemRepo) CountFetchable(dbc dbctx.Context, projectID uuid.UUID, ids []uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	err := r.fetchable(transaction.WithContext(dbc.Ctx), projectID, ids).Count(&n).Error
	return n, err
}

func (r *contentItemRepo) CountByProject(dbc dbctx.Context, projectID uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.ContentItem{}).
		Where("project_id = ?", projectID).
		Count(&n).Error
	return n, err
}

// SetEmbedding writes vec only while the column is still NULL, so a redelivered
// batch never rewrites an existing vector.
func (r *contentItemRepo) SetEmbedding(dbc dbctx.Context, id uuid.UUID, vec []float32) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(vec) != content.EmbeddingDimensions {
		return false, errors.New("embedding has wrong dimensionality")
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.ContentItem{}).
		Where("id = ? AND embedding IS NULL", id).
		Updates(map[string]interface{}{
			"embedding":  pgvector.NewVector(vec),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *contentItemRepo) SetFetched(dbc dbctx.Context, id uuid.UUID, f Fetched) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	updates := map[string]interface{}{
		"raw_content":     f.RawContent,
		"word_count":      f.WordCount,
		"excerpt":         f.Excerpt,
		"last_crawled_at": f.CrawledAt,
		"updated_at":      time.Now().UTC(),
	}
	if f.PublishedAt != nil {
		updates["published_at"] = *f.PublishedAt
	}
	if f.Title != "" {
		updates["title"] = gorm.Expr("CASE WHEN title = '' OR title = url THEN ? ELSE title END", f.Title)
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.ContentItem{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *contentItemRepo) MarkExtracted(dbc dbctx.Context, ids []uuid.UUID, at time.Time) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ids) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.ContentItem{}).
		Where("id IN ?", ids).
		UpdateColumn("last_extracted_at", at).Error
}

// UpdateStatus moves the given items to status `to`, skipping items whose current
// status does not allow that transition.
func (r *contentItemRepo) UpdateStatus(dbc dbctx.Context, projectID uuid.UUID, ids []uuid.UUID, to content.Status) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ids) == 0 {
		return 0, nil
	}
	from := make([]content.Status, 0, 3)
	for _, s := range []content.Status{content.StatusDiscovered, content.StatusApproved, content.StatusRejected, content.StatusArchived} {
		if s.CanTransition(to) {
			from = append(from, s)
		}
	}
	if len(from) == 0 {
		return 0, nil
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.ContentItem{}).
		Where("project_id = ? AND id IN ? AND status IN ?", projectID, ids, from).
		Updates(map[string]interface{}{"status": to, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

func (r *contentItemRepo) ArchiveByProject(dbc dbctx.Context, projectID uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.ContentItem{}).
		Where("project_id = ? AND status <> ?", projectID, content.StatusArchived).
		Updates(map[string]interface{}{"status": content.StatusArchived, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

func (r *contentItemRepo) SearchSimilar(dbc dbctx.Context, projectID uuid.UUID, vec []float32, maxDistance float64, limit int) ([]SimilarItem, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	query, args, err := similarityQuery(projectID, pgvector.NewVector(vec), maxDistance, limit)
	if err != nil {
		return nil, err
	}
	var out []SimilarItem
	if err := transaction.WithContext(dbc.Ctx).Raw(query, args...).Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// similarityQuery builds the cosine-distance lookup over APPROVED items.
func similarityQuery(projectID uuid.UUID, vec pgvector.Vector, maxDistance float64, limit int) (string, []interface{}, error) {
	if limit <= 0 {
		limit = 10
	}
	return sq.Select("id", "title", "url", "platform", "excerpt", "published_at").
		Column(sq.Expr("embedding <=> ?::vector AS distance", vec)).
		From("content_item").
		Where(sq.Eq{"project_id": projectID, "status": string(content.StatusApproved)}).
		Where("embedding IS NOT NULL").
		Where(sq.Expr("embedding <=> ?::vector < ?", vec, maxDistance)).
		OrderBy("distance ASC").
		Limit(uint64(limit)).
		ToSql()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
