package observability

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/visiblee-backend/internal/config"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/x", "200", time.Second)
	m.ObserveJob("COMPUTE_SCORE", "COMPLETED", time.Second)
	m.ObserveEngine("/api/embed/batch", "ok", time.Second)
	m.AddSweep("timeout", 2)
	m.APIInflight(1)
	require.NoError(t, m.WritePrometheus(&bytes.Buffer{}))

	rec := httptest.NewRecorder()
	m.WriteHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 503, rec.Code)

	assert.Nil(t, Init(config.MetricsConfig{Enabled: false}))
}

func TestMetricsExposition(t *testing.T) {
	m := New()
	m.ObserveJob("EXTRACT_ENTITIES", "COMPLETED", 3*time.Second)
	m.ObserveJob("EXTRACT_ENTITIES", "COMPLETED", 40*time.Second)
	m.ObserveJob("CLUSTER_TOPICS", "FAILED", 0)
	m.ObserveEngine("/api/embed/batch", "ENGINE_UNAVAILABLE", 2*time.Second)
	m.AddSweep("requeued", 3)
	m.AddSweep("timeout", 0)

	assert.Equal(t, 2.0, m.jobOutcomes.Value("EXTRACT_ENTITIES", "COMPLETED"))
	assert.Equal(t, uint64(2), m.jobDuration.Count("EXTRACT_ENTITIES", "COMPLETED"))
	assert.Equal(t, uint64(0), m.jobDuration.Count("CLUSTER_TOPICS", "FAILED"))
	assert.Equal(t, 3.0, m.sweepActions.Value("requeued"))
	assert.Equal(t, 0.0, m.sweepActions.Value("timeout"))

	var buf bytes.Buffer
	require.NoError(t, m.WritePrometheus(&buf))
	out := buf.String()
	assert.Contains(t, out, "# TYPE visiblee_jobs_total counter")
	assert.Contains(t, out, `visiblee_jobs_total{job_type="EXTRACT_ENTITIES",status="COMPLETED"} 2`)
	assert.Contains(t, out, `visiblee_job_duration_seconds_bucket{job_type="EXTRACT_ENTITIES",status="COMPLETED",le="5"} 1`)
	assert.Contains(t, out, `visiblee_job_duration_seconds_bucket{job_type="EXTRACT_ENTITIES",status="COMPLETED",le="+Inf"} 2`)
	assert.Contains(t, out, `visiblee_engine_requests_total{path="/api/embed/batch",outcome="ENGINE_UNAVAILABLE"} 1`)
}

func TestLabelEscaping(t *testing.T) {
	got := labelString([]string{"route", "status"}, []string{`/a"b`, ""})
	assert.Equal(t, `{route="/a\"b",status="unknown"}`, got)
	assert.Equal(t, `{le="1"}`, withLe("", "1"))
	assert.True(t, strings.HasSuffix(withLe(`{a="x"}`, "+Inf"), `,le="+Inf"}`))
}

func TestGaugeReset(t *testing.T) {
	g := NewGaugeVec("g", "h", []string{"k"})
	g.Set(4, "a")
	g.Add(1, "a")
	assert.Equal(t, 5.0, g.Value("a"))
	g.Reset()
	assert.Equal(t, 0.0, g.Value("a"))
}

func TestParseHeaders(t *testing.T) {
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, parseHeaders(" a=1, b=2 ,bad"))
	assert.Nil(t, parseHeaders(""))
}
