// Package jobstest holds in-memory stand-ins for the job ledger, the queue and
// the notifier, shared by worker, sweep and service tests.
package jobstest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	jobrepo "github.com/yungbote/visiblee-backend/internal/data/repos/jobs"
	types "github.com/yungbote/visiblee-backend/internal/domain"
	"github.com/yungbote/visiblee-backend/internal/domain/jobs"
	"github.com/yungbote/visiblee-backend/internal/jobs/queue"
	"github.com/yungbote/visiblee-backend/internal/platform/dbctx"
)

// JobRepo mirrors the conditional transitions of the Postgres ledger.
type JobRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*types.AnalysisJob

	// Err, when set, is returned by every call.
	Err error
	// Heartbeats counts Heartbeat calls per job.
	Heartbeats map[uuid.UUID]int
}

func NewJobRepo() *JobRepo {
	return &JobRepo{
		rows:       make(map[uuid.UUID]*types.AnalysisJob),
		Heartbeats: make(map[uuid.UUID]int),
	}
}

// Put stores a copy of job as-is, bypassing Create's defaults.
func (r *JobRepo) Put(job *types.AnalysisJob) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *job
	r.rows[job.ID] = &cp
}

// Snapshot returns a copy of the stored row, or nil.
func (r *JobRepo) Snapshot(id uuid.UUID) *types.AnalysisJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil
	}
	cp := *row
	return &cp
}

func (r *JobRepo) Create(_ dbctx.Context, job *types.AnalysisJob) error {
	if r.Err != nil {
		return r.Err
	}
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	job.Status = jobs.StatusPending
	if job.Queue == "" {
		job.Queue = job.JobType.Queue()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	job.UpdatedAt = job.CreatedAt
	r.Put(job)
	return nil
}

func (r *JobRepo) GetByID(_ dbctx.Context, id uuid.UUID) (*types.AnalysisJob, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	return r.Snapshot(id), nil
}

func (r *JobRepo) ListByProject(_ dbctx.Context, projectID uuid.UUID, limit int) ([]*types.AnalysisJob, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.AnalysisJob
	for _, row := range r.rows {
		if row.ProjectID == projectID {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *JobRepo) FindActive(_ dbctx.Context, projectID uuid.UUID, jobType jobs.JobType) (*types.AnalysisJob, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *types.AnalysisJob
	for _, row := range r.rows {
		if row.ProjectID != projectID || row.JobType != jobType || !row.Status.Active() {
			continue
		}
		if best == nil || row.CreatedAt.After(best.CreatedAt) {
			best = row
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (r *JobRepo) Claim(_ dbctx.Context, id uuid.UUID, now time.Time) (bool, error) {
	if r.Err != nil {
		return false, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.Status != jobs.StatusPending {
		return false, nil
	}
	row.Status = jobs.StatusRunning
	row.StartedAt = &now
	row.HeartbeatAt = &now
	row.Attempts++
	row.Stage = "started"
	row.UpdatedAt = now
	return true, nil
}

func (r *JobRepo) UpdateProgress(_ dbctx.Context, id uuid.UUID, stage string, progress int) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.rows[id]; ok && row.Status == jobs.StatusRunning {
		row.Stage = stage
		row.Progress = progress
	}
	return nil
}

func (r *JobRepo) Heartbeat(_ dbctx.Context, id uuid.UUID, now time.Time) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Heartbeats[id]++
	if row, ok := r.rows[id]; ok && row.Status == jobs.StatusRunning {
		row.HeartbeatAt = &now
	}
	return nil
}

// HeartbeatCount reports how many heartbeats id received.
func (r *JobRepo) HeartbeatCount(id uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Heartbeats[id]
}

func (r *JobRepo) Complete(_ dbctx.Context, id uuid.UUID, summary datatypes.JSON, now time.Time) (bool, error) {
	if r.Err != nil {
		return false, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.Status != jobs.StatusRunning {
		return false, nil
	}
	row.Status = jobs.StatusCompleted
	row.Stage = "done"
	row.Progress = 100
	row.ResultSummary = summary
	row.CompletedAt = &now
	row.UpdatedAt = now
	return true, nil
}

func (r *JobRepo) Fail(_ dbctx.Context, id uuid.UUID, message string, now time.Time) (bool, error) {
	if r.Err != nil {
		return false, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || !row.Status.Active() {
		return false, nil
	}
	row.Status = jobs.StatusFailed
	row.ErrorMessage = jobs.TruncateError(message)
	row.CompletedAt = &now
	row.UpdatedAt = now
	return true, nil
}

func (r *JobRepo) FailStaleRunning(_ dbctx.Context, olderThan time.Time, now time.Time) ([]*types.AnalysisJob, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.AnalysisJob
	for _, row := range r.rows {
		if row.Status != jobs.StatusRunning {
			continue
		}
		last := row.CreatedAt
		if row.StartedAt != nil {
			last = *row.StartedAt
		}
		if row.HeartbeatAt != nil {
			last = *row.HeartbeatAt
		}
		if !last.Before(olderThan) {
			continue
		}
		row.Status = jobs.StatusFailed
		row.ErrorMessage = jobs.TimeoutMessage
		row.CompletedAt = &now
		row.UpdatedAt = now
		cp := *row
		out = append(out, &cp)
	}
	return out, nil
}

func (r *JobRepo) FailStalePending(_ dbctx.Context, olderThan time.Time, now time.Time) ([]*types.AnalysisJob, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.AnalysisJob
	for _, row := range r.rows {
		if row.Status != jobs.StatusPending || !row.CreatedAt.Before(olderThan) {
			continue
		}
		row.Status = jobs.StatusFailed
		row.ErrorMessage = jobs.NeverStartedMessage
		row.CompletedAt = &now
		row.UpdatedAt = now
		cp := *row
		out = append(out, &cp)
	}
	return out, nil
}

func (r *JobRepo) ListOrphanedPending(_ dbctx.Context, olderThan time.Time, limit int) ([]*types.AnalysisJob, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.AnalysisJob
	for _, row := range r.rows {
		if row.Status == jobs.StatusPending && row.CreatedAt.Before(olderThan) {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *JobRepo) CountByStatus(_ dbctx.Context) ([]jobrepo.StatusCount, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[[2]string]int64{}
	for _, row := range r.rows {
		if row.Status.Active() {
			counts[[2]string{string(row.JobType), string(row.Status)}]++
		}
	}
	out := make([]jobrepo.StatusCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, jobrepo.StatusCount{JobType: k[0], Status: k[1], Count: n})
	}
	return out, nil
}

// Notifier records every lifecycle call.
type Notifier struct {
	mu     sync.Mutex
	Events []string
}

func (n *Notifier) record(kind string, job *types.AnalysisJob) {
	if job == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Events = append(n.Events, kind+":"+string(job.Status))
}

func (n *Notifier) JobCreated(_ context.Context, job *types.AnalysisJob)  { n.record("created", job) }
func (n *Notifier) JobProgress(_ context.Context, job *types.AnalysisJob) { n.record("progress", job) }
func (n *Notifier) JobFailed(_ context.Context, job *types.AnalysisJob)   { n.record("failed", job) }
func (n *Notifier) JobDone(_ context.Context, job *types.AnalysisJob)     { n.record("done", job) }

// Kinds returns the recorded events in order.
func (n *Notifier) Kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.Events...)
}

// Queue records deliveries. With Retain set it dedupes on DeliveryID the way
// a backend that keeps finished and archived tasks does.
type Queue struct {
	mu     sync.Mutex
	Msgs   []queue.Message
	Err    error
	Retain bool
	held   map[string]bool
}

func (q *Queue) Enqueue(_ context.Context, msg queue.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.Err != nil {
		return q.Err
	}
	if q.Retain {
		if q.held == nil {
			q.held = map[string]bool{}
		}
		id := msg.DeliveryID()
		if q.held[id] {
			if msg.Redelivery != "" {
				return queue.ErrDuplicateDelivery
			}
			return nil
		}
		q.held[id] = true
	}
	q.Msgs = append(q.Msgs, msg)
	return nil
}

func (q *Queue) Close() error { return nil }

// Sent returns a copy of the enqueued messages.
func (q *Queue) Sent() []queue.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]queue.Message(nil), q.Msgs...)
}
