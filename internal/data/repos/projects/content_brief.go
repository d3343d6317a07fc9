package projects

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/visiblee-backend/internal/domain"
	"github.com/yungbote/visiblee-backend/internal/domain/project"
	"github.com/yungbote/visiblee-backend/internal/platform/dbctx"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
)

type ContentBriefRepo interface {
	CreateMany(dbc dbctx.Context, briefs []*types.ContentBrief) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ContentBrief, error)
	ListByProject(dbc dbctx.Context, projectID uuid.UUID, limit int) ([]*types.ContentBrief, error)
	UpdateStatus(dbc dbctx.Context, id uuid.UUID, status project.BriefStatus) error
	Delete(dbc dbctx.Context, id uuid.UUID) error
}

type contentBriefRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewContentBriefRepo(db *gorm.DB, baseLog *logger.Logger) ContentBriefRepo {
	return &contentBriefRepo{db: db, log: baseLog.With("repo", "ContentBriefRepo")}
}

func (r *contentBriefRepo) CreateMany(dbc dbctx.Context, briefs []*types.ContentBrief) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(briefs) == 0 {
		return nil
	}
	for _, b := range briefs {
		if b.ID == uuid.Nil {
			b.ID = uuid.New()
		}
		if b.Status == "" {
			b.Status = project.BriefPending
		}
	}
	return transaction.WithContext(dbc.Ctx).Create(&briefs).Error
}

func (r *contentBriefRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ContentBrief, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var b types.ContentBrief
	err := transaction.WithContext(dbc.Ctx).Where("id = ?", id).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *contentBriefRepo) ListByProject(dbc dbctx.Context, projectID uuid.UUID, limit int) ([]*types.ContentBrief, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []*types.ContentBrief
	err := transaction.WithContext(dbc.Ctx).
		Where("project_id = ?", projectID).
		Order("generated_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *contentBriefRepo) UpdateStatus(dbc dbctx.Context, id uuid.UUID, status project.BriefStatus) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.ContentBrief{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now().UTC()}).Error
}

func (r *contentBriefRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Where("id = ?", id).Delete(&types.ContentBrief{}).Error
}
