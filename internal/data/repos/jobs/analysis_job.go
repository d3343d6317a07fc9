package jobs

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/visiblee-backend/internal/domain"
	"github.com/yungbote/visiblee-backend/internal/domain/jobs"
	"github.com/yungbote/visiblee-backend/internal/platform/dbctx"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
)

// StatusCount is one (job_type, status) bucket of the ledger.
type StatusCount struct {
	JobType string
	Status  string
	Count   int64
}

// AnalysisJobRepo owns every status transition of the ledger. Each transition is
// a conditional UPDATE on the expected prior status; a false return means the row
// had already moved on.
type AnalysisJobRepo interface {
	Create(dbc dbctx.Context, job *types.AnalysisJob) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.AnalysisJob, error)
	ListByProject(dbc dbctx.Context, projectID uuid.UUID, limit int) ([]*types.AnalysisJob, error)
	FindActive(dbc dbctx.Context, projectID uuid.UUID, jobType jobs.JobType) (*types.AnalysisJob, error)
	Claim(dbc dbctx.Context, id uuid.UUID, now time.Time) (bool, error)
	UpdateProgress(dbc dbctx.Context, id uuid.UUID, stage string, progress int) error
	Heartbeat(dbc dbctx.Context, id uuid.UUID, now time.Time) error
	Complete(dbc dbctx.Context, id uuid.UUID, summary datatypes.JSON, now time.Time) (bool, error)
	Fail(dbc dbctx.Context, id uuid.UUID, message string, now time.Time) (bool, error)
	FailStaleRunning(dbc dbctx.Context, olderThan time.Time, now time.Time) ([]*types.AnalysisJob, error)
	ListOrphanedPending(dbc dbctx.Context, olderThan time.Time, limit int) ([]*types.AnalysisJob, error)
	FailStalePending(dbc dbctx.Context, olderThan time.Time, now time.Time) ([]*types.AnalysisJob, error)
	CountByStatus(dbc dbctx.Context) ([]StatusCount, error)
}

type analysisJobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAnalysisJobRepo(db *gorm.DB, baseLog *logger.Logger) AnalysisJobRepo {
	return &analysisJobRepo{
		db:  db,
		log: baseLog.With("repo", "AnalysisJobRepo"),
	}
}

func (r *analysisJobRepo) Create(dbc dbctx.Context, job *types.AnalysisJob) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if job == nil {
		return errors.New("analysis job is nil")
	}
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	job.Status = jobs.StatusPending
	if job.Queue == "" {
		job.Queue = job.JobType.Queue()
	}
	return transaction.WithContext(dbc.Ctx).Create(job).Error
}

func (r *analysisJobRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.AnalysisJob, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var job types.AnalysisJob
	err := transaction.WithContext(dbc.Ctx).Where("id = ?", id).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *analysisJobRepo) ListByProject(dbc dbctx.Context, projectID uuid.UUID, limit int) ([]*types.AnalysisJob, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []*types.AnalysisJob
	err := transaction.WithContext(dbc.Ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *analysisJobRepo) FindActive(dbc dbctx.Context, projectID uuid.UUID, jobType jobs.JobType) (*types.AnalysisJob, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var job types.AnalysisJob
	err := transaction.WithContext(dbc.Ctx).
		Where("project_id = ? AND job_type = ? AND status IN ?", projectID, jobType,
			[]jobs.Status{jobs.StatusPending, jobs.StatusRunning}).
		Order("created_at DESC").
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *analysisJobRepo) Claim(dbc dbctx.Context, id uuid.UUID, now time.Time) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.AnalysisJob{}).
		Where("id = ? AND status = ?", id, jobs.StatusPending).
		Updates(map[string]interface{}{
			"status":       jobs.StatusRunning,
			"started_at":   now,
			"heartbeat_at": now,
			"attempts":     gorm.Expr("attempts + 1"),
			"stage":        "started",
			"updated_at":   now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *analysisJobRepo) UpdateProgress(dbc dbctx.Context, id uuid.UUID, stage string, progress int) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.AnalysisJob{}).
		Where("id = ? AND status = ?", id, jobs.StatusRunning).
		Updates(map[string]interface{}{
			"stage":        stage,
			"progress":     progress,
			"heartbeat_at": time.Now().UTC(),
			"updated_at":   time.Now().UTC(),
		}).Error
}

func (r *analysisJobRepo) Heartbeat(dbc dbctx.Context, id uuid.UUID, now time.Time) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.AnalysisJob{}).
		Where("id = ? AND status = ?", id, jobs.StatusRunning).
		UpdateColumn("heartbeat_at", now).Error
}

func (r *analysisJobRepo) Complete(dbc dbctx.Context, id uuid.UUID, summary datatypes.JSON, now time.Time) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.AnalysisJob{}).
		Where("id = ? AND status = ?", id, jobs.StatusRunning).
		Updates(map[string]interface{}{
			"status":         jobs.StatusCompleted,
			"stage":          "done",
			"progress":       100,
			"result_summary": summary,
			"completed_at":   now,
			"updated_at":     now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *analysisJobRepo) Fail(dbc dbctx.Context, id uuid.UUID, message string, now time.Time) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.AnalysisJob{}).
		Where("id = ? AND status IN ?", id, []jobs.Status{jobs.StatusPending, jobs.StatusRunning}).
		Updates(map[string]interface{}{
			"status":        jobs.StatusFailed,
			"error_message": jobs.TruncateError(message),
			"completed_at":  now,
			"updated_at":    now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// FailStaleRunning marks RUNNING jobs whose last sign of life (heartbeat, else
// start) predates olderThan as FAILED with the timeout message.
func (r *analysisJobRepo) FailStaleRunning(dbc dbctx.Context, olderThan time.Time, now time.Time) ([]*types.AnalysisJob, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var failed []*types.AnalysisJob
	err := transaction.WithContext(dbc.Ctx).
		Model(&failed).
		Clauses(clause.Returning{}).
		Where("status = ? AND COALESCE(heartbeat_at, started_at, created_at) < ?", jobs.StatusRunning, olderThan).
		Updates(map[string]interface{}{
			"status":        jobs.StatusFailed,
			"error_message": jobs.TimeoutMessage,
			"completed_at":  now,
			"updated_at":    now,
		}).Error
	if err != nil {
		return nil, err
	}
	return failed, nil
}

// FailStalePending gives up on PENDING rows created before olderThan.
func (r *analysisJobRepo) FailStalePending(dbc dbctx.Context, olderThan time.Time, now time.Time) ([]*types.AnalysisJob, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var failed []*types.AnalysisJob
	err := transaction.WithContext(dbc.Ctx).
		Model(&failed).
		Clauses(clause.Returning{}).
		Where("status = ? AND created_at < ?", jobs.StatusPending, olderThan).
		Updates(map[string]interface{}{
			"status":        jobs.StatusFailed,
			"error_message": jobs.NeverStartedMessage,
			"completed_at":  now,
			"updated_at":    now,
		}).Error
	if err != nil {
		return nil, err
	}
	return failed, nil
}

func (r *analysisJobRepo) ListOrphanedPending(dbc dbctx.Context, olderThan time.Time, limit int) ([]*types.AnalysisJob, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 100
	}
	var out []*types.AnalysisJob
	err := transaction.WithContext(dbc.Ctx).
		Where("status = ? AND created_at < ?", jobs.StatusPending, olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *analysisJobRepo) CountByStatus(dbc dbctx.Context) ([]StatusCount, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []StatusCount
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.AnalysisJob{}).
		Select("job_type, status, COUNT(*) AS count").
		Where("status IN ?", []jobs.Status{jobs.StatusPending, jobs.StatusRunning}).
		Group("job_type, status").
		Scan(&rows).Error
	return rows, err
}
