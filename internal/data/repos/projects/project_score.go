package projects

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/visiblee-backend/internal/domain"
	"github.com/yungbote/visiblee-backend/internal/platform/dbctx"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
)

type ProjectScoreRepo interface {
	// UpsertByProjectID writes the whole row keyed on project_id and clears is_stale.
	UpsertByProjectID(dbc dbctx.Context, score *types.ProjectScore) error
	GetByProjectID(dbc dbctx.Context, projectID uuid.UUID) (*types.ProjectScore, error)
	// MarkStale flags the score when it was computed before changedAt.
	MarkStale(dbc dbctx.Context, projectID uuid.UUID, changedAt time.Time) (bool, error)
	// RefreshStale flags the score when any of the project's content was
	// updated after computed_at. Run after UpsertByProjectID so a write that
	// raced the stats read is not lost.
	RefreshStale(dbc dbctx.Context, projectID uuid.UUID) (bool, error)
}

type projectScoreRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProjectScoreRepo(db *gorm.DB, baseLog *logger.Logger) ProjectScoreRepo {
	return &projectScoreRepo{db: db, log: baseLog.With("repo", "ProjectScoreRepo")}
}

func (r *projectScoreRepo) UpsertByProjectID(dbc dbctx.Context, score *types.ProjectScore) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if score == nil || score.ProjectID == uuid.Nil {
		return errors.New("project score requires project_id")
	}
	if score.ID == uuid.Nil {
		score.ID = uuid.New()
	}
	score.IsStale = false
	score.UpdatedAt = time.Now().UTC()
	return transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "project_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"overall_score",
				"coverage",
				"depth",
				"freshness",
				"authority",
				"coherence",
				"suggestions",
				"content_count",
				"is_stale",
				"computed_at",
				"updated_at",
			}),
		}).
		Create(score).Error
}

func (r *projectScoreRepo) GetByProjectID(dbc dbctx.Context, projectID uuid.UUID) (*types.ProjectScore, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var s types.ProjectScore
	err := transaction.WithContext(dbc.Ctx).Where("project_id = ?", projectID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *projectScoreRepo) MarkStale(dbc dbctx.Context, projectID uuid.UUID, changedAt time.Time) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.ProjectScore{}).
		Where("project_id = ? AND is_stale = false AND computed_at < ?", projectID, changedAt).
		Updates(map[string]interface{}{"is_stale": true, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *projectScoreRepo) RefreshStale(dbc dbctx.Context, projectID uuid.UUID) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).Exec(`
UPDATE project_score SET is_stale = true, updated_at = ?
WHERE project_id = ? AND is_stale = false
  AND EXISTS (
    SELECT 1 FROM content_item ci
    WHERE ci.project_id = project_score.project_id AND ci.updated_at > project_score.computed_at
  )`, time.Now().UTC(), projectID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
