package jobs

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseJobType(t *testing.T) {
	got, ok := ParseJobType("extract-entities")
	assert.True(t, ok)
	assert.Equal(t, TypeExtractEntities, got)

	got, ok = ParseJobType("CLUSTER_TOPICS")
	assert.True(t, ok)
	assert.Equal(t, TypeClusterTopics, got)

	_, ok = ParseJobType("nope")
	assert.False(t, ok)
}

func TestQueueRouting(t *testing.T) {
	assert.Equal(t, QueueDiscovery, TypeCrawlSite.Queue())
	assert.Equal(t, QueueDiscovery, TypeFetchContent.Queue())
	assert.Equal(t, QueueAnalysis, TypeComputeScore.Queue())
	assert.Equal(t, QueueAnalysis, TypeFullAnalysis.Queue())
}

func TestAdmissionExempt(t *testing.T) {
	assert.True(t, TypeComputeScore.AdmissionExempt())
	assert.False(t, TypeExtractEntities.AdmissionExempt())
}

func TestStatus(t *testing.T) {
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusRunning.Active())
	assert.False(t, StatusCompleted.Active())
}

func TestTruncateError(t *testing.T) {
	short := "boom"
	assert.Equal(t, short, TruncateError(short))
	long := strings.Repeat("é", ErrorMessageMax+20)
	out := TruncateError(long)
	assert.Len(t, []rune(out), ErrorMessageMax)
	assert.True(t, strings.HasSuffix(out, "..."))
}
