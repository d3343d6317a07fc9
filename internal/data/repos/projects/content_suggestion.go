package projects

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/visiblee-backend/internal/domain"
	"github.com/yungbote/visiblee-backend/internal/platform/dbctx"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
)

type ContentSuggestionRepo interface {
	Create(dbc dbctx.Context, s *types.ContentSuggestion) error
	ListByProject(dbc dbctx.Context, projectID uuid.UUID, limit int) ([]*types.ContentSuggestion, error)
}

type contentSuggestionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewContentSuggestionRepo(db *gorm.DB, baseLog *logger.Logger) ContentSuggestionRepo {
	return &contentSuggestionRepo{db: db, log: baseLog.With("repo", "ContentSuggestionRepo")}
}

func (r *contentSuggestionRepo) Create(dbc dbctx.Context, s *types.ContentSuggestion) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return transaction.WithContext(dbc.Ctx).Create(s).Error
}

func (r *contentSuggestionRepo) ListByProject(dbc dbctx.Context, projectID uuid.UUID, limit int) ([]*types.ContentSuggestion, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []*types.ContentSuggestion
	err := transaction.WithContext(dbc.Ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC, rank ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
