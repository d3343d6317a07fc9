package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/visiblee-backend/internal/config"
	jobrepo "github.com/yungbote/visiblee-backend/internal/data/repos/jobs"
	"github.com/yungbote/visiblee-backend/internal/platform/dbctx"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
)

type Metrics struct {
	apiRequests   *CounterVec
	apiLatency    *HistogramVec
	apiInflight   *GaugeVec
	jobOutcomes   *CounterVec
	jobDuration   *HistogramVec
	engineCalls   *CounterVec
	engineLatency *HistogramVec
	queueDepth    *GaugeVec
	sweepActions  *CounterVec
	pgStats       *GaugeVec
	redisUp       *GaugeVec

	families []family
	interval time.Duration
}

var (
	initOnce sync.Once
	instance *Metrics
)

// Current returns the process-wide registry, or nil when metrics are disabled.
func Current() *Metrics {
	return instance
}

// Init builds the process-wide registry once. Disabled metrics yield nil; every
// method on a nil *Metrics is a no-op.
func Init(cfg config.MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return nil
	}
	initOnce.Do(func() {
		instance = New()
	})
	return instance
}

// New returns a standalone registry. Tests use it directly.
func New() *Metrics {
	m := &Metrics{
		apiRequests: NewCounterVec("visiblee_api_requests_total", "API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec("visiblee_api_request_duration_seconds", "API request latency in seconds.",
			[]string{"method", "route"}, []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}),
		apiInflight: NewGaugeVec("visiblee_api_inflight_requests", "In-flight API requests.", nil),
		jobOutcomes: NewCounterVec("visiblee_jobs_total", "Terminal job outcomes by type.", []string{"job_type", "status"}),
		jobDuration: NewHistogramVec("visiblee_job_duration_seconds", "Job execution time from claim to terminal state.",
			[]string{"job_type", "status"}, []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800}),
		engineCalls: NewCounterVec("visiblee_engine_requests_total", "Inference engine calls by path/outcome.", []string{"path", "outcome"}),
		engineLatency: NewHistogramVec("visiblee_engine_request_duration_seconds", "Inference engine call latency in seconds.",
			[]string{"path"}, []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120, 300}),
		queueDepth:   NewGaugeVec("visiblee_job_ledger_active", "Active ledger rows by type/status.", []string{"job_type", "status"}),
		sweepActions: NewCounterVec("visiblee_sweep_actions_total", "Reconciliation sweep actions.", []string{"action"}),
		pgStats:      NewGaugeVec("visiblee_postgres_pool", "database/sql pool statistics.", []string{"stat"}),
		redisUp:      NewGaugeVec("visiblee_redis_up", "1 when the last Redis ping succeeded.", nil),
		interval:     10 * time.Second,
	}
	m.families = []family{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.jobOutcomes, m.jobDuration,
		m.engineCalls, m.engineLatency,
		m.queueDepth, m.sweepActions,
		m.pgStats, m.redisUp,
	}
	return m
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed && log != nil {
			log.Error("metrics server failed", "error", err, "addr", addr)
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, f := range m.families {
		if err := f.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route)
}

func (m *Metrics) APIInflight(delta float64) {
	if m == nil {
		return
	}
	m.apiInflight.Add(delta)
}

// ObserveJob records a terminal job outcome. dur is zero when the job never ran.
func (m *Metrics) ObserveJob(jobType, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.jobOutcomes.Inc(jobType, status)
	if dur > 0 {
		m.jobDuration.Observe(dur.Seconds(), jobType, status)
	}
}

// ObserveEngine matches engine.ObserveFunc.
func (m *Metrics) ObserveEngine(path, outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	m.engineCalls.Inc(path, outcome)
	m.engineLatency.Observe(dur.Seconds(), path)
}

func (m *Metrics) AddSweep(action string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sweepActions.Add(float64(n), action)
}

func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	m.every(ctx, func() {
		sqlDB, err := db.DB()
		if err != nil {
			if log != nil {
				log.Warn("metrics: postgres stats unavailable", "error", err)
			}
			return
		}
		stats := sqlDB.Stats()
		m.pgStats.Set(float64(stats.OpenConnections), "open_connections")
		m.pgStats.Set(float64(stats.InUse), "in_use")
		m.pgStats.Set(float64(stats.Idle), "idle")
		m.pgStats.Set(float64(stats.WaitCount), "wait_count")
		m.pgStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
	})
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb goredis.UniversalClient) {
	if m == nil || rdb == nil {
		return
	}
	m.every(ctx, func() {
		if err := rdb.Ping(ctx).Err(); err != nil {
			m.redisUp.Set(0)
			if log != nil {
				log.Warn("metrics: redis ping failed", "error", err)
			}
			return
		}
		m.redisUp.Set(1)
	})
}

// StartJobQueueCollector samples the active part of the ledger, which is the
// backlog both queue backends share.
func (m *Metrics) StartJobQueueCollector(ctx context.Context, log *logger.Logger, repo jobrepo.AnalysisJobRepo) {
	if m == nil || repo == nil {
		return
	}
	m.every(ctx, func() {
		rows, err := repo.CountByStatus(dbctx.Of(ctx))
		if err != nil {
			if log != nil {
				log.Warn("metrics: job ledger depth query failed", "error", err)
			}
			return
		}
		m.queueDepth.Reset()
		for _, row := range rows {
			m.queueDepth.Set(float64(row.Count), row.JobType, row.Status)
		}
	})
}

func (m *Metrics) every(ctx context.Context, fn func()) {
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
}
