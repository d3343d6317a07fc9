package jobs

import "strings"

type JobType string

const (
	TypeExtractEntities            JobType = "EXTRACT_ENTITIES"
	TypeGenerateEmbeddings         JobType = "GENERATE_EMBEDDINGS"
	TypeClusterTopics              JobType = "CLUSTER_TOPICS"
	TypeComputeScore               JobType = "COMPUTE_SCORE"
	TypeGenerateBriefs             JobType = "GENERATE_BRIEFS"
	TypeGenerateContentSuggestions JobType = "GENERATE_CONTENT_SUGGESTIONS"
	TypeFullAnalysis               JobType = "FULL_ANALYSIS"

	TypeCrawlSite       JobType = "CRAWL_SITE"
	TypeSearchPlatforms JobType = "SEARCH_PLATFORMS"
	TypeFetchContent    JobType = "FETCH_CONTENT"
)

const (
	QueueAnalysis  = "analysis"
	QueueDiscovery = "discovery"
)

// MinEmbeddedForClustering is the smallest embedded set CLUSTER_TOPICS accepts.
const MinEmbeddedForClustering = 6

var AnalysisTypes = []JobType{
	TypeExtractEntities,
	TypeGenerateEmbeddings,
	TypeClusterTopics,
	TypeComputeScore,
	TypeGenerateBriefs,
	TypeGenerateContentSuggestions,
	TypeFullAnalysis,
}

var DiscoveryTypes = []JobType{
	TypeCrawlSite,
	TypeSearchPlatforms,
	TypeFetchContent,
}

func (t JobType) Valid() bool {
	for _, v := range AnalysisTypes {
		if v == t {
			return true
		}
	}
	for _, v := range DiscoveryTypes {
		if v == t {
			return true
		}
	}
	return false
}

func (t JobType) Queue() string {
	for _, v := range DiscoveryTypes {
		if v == t {
			return QueueDiscovery
		}
	}
	return QueueAnalysis
}

// AdmissionExempt reports job types that may run concurrently with themselves.
// Scoring is a full overwrite, so the last writer wins.
func (t JobType) AdmissionExempt() bool {
	return t == TypeComputeScore
}

// ParseJobType accepts the enum form ("EXTRACT_ENTITIES") or the URL form
// ("extract-entities").
func ParseJobType(s string) (JobType, bool) {
	norm := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	t := JobType(norm)
	return t, t.Valid()
}
