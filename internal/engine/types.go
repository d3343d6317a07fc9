package engine

import (
	"strings"
	"time"
)

type EmbedItem struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type EmbedResult struct {
	ID        string    `json:"id"`
	Embedding []float32 `json:"embedding"`
	Error     *string   `json:"error,omitempty"`
}

type embedBatchRequest struct {
	Items []EmbedItem `json:"items"`
}

type EmbedBatchResponse struct {
	Results    []EmbedResult `json:"results"`
	Dimensions int           `json:"dimensions"`
}

type embedQueryRequest struct {
	Text string `json:"text"`
}

type embedQueryResponse struct {
	Embedding []float32 `json:"embedding"`
}

type ExtractItem struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

type ExtractedEntity struct {
	Label    string  `json:"label"`
	Type     string  `json:"type"`
	Salience float64 `json:"salience"`
	Context  *string `json:"context,omitempty"`
}

type ExtractResult struct {
	ID       string            `json:"id"`
	Entities []ExtractedEntity `json:"entities"`
	Error    *string           `json:"error,omitempty"`
}

type extractEntitiesRequest struct {
	Items []ExtractItem `json:"items"`
}

type ExtractEntitiesResponse struct {
	Results []ExtractResult `json:"results"`
}

type TopicItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Embedding []float32 `json:"embedding"`
}

type TopicAssignment struct {
	ID         string  `json:"id"`
	ClusterIdx int     `json:"cluster_idx"`
	TopicLabel string  `json:"topic_label"`
	Confidence float64 `json:"confidence"`
}

type analyzeTopicsRequest struct {
	Items []TopicItem `json:"items"`
}

// AnalyzeTopicsResponse may carry a soft Error with a 200 status, e.g. when
// the engine had too few items to cluster.
type AnalyzeTopicsResponse struct {
	Assignments   []TopicAssignment `json:"assignments"`
	ClustersFound int               `json:"clusters_found"`
	Error         *string           `json:"error,omitempty"`
}

type WeakDimension struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

type SuggestionsRequest struct {
	ProjectName    string             `json:"project_name"`
	Dimensions     map[string]float64 `json:"dimensions"`
	WeakDimensions []WeakDimension    `json:"weak_dimensions"`
}

type suggestionsResponse struct {
	Suggestions []string `json:"suggestions"`
}

type CrawlSiteRequest struct {
	URL       string  `json:"url"`
	MaxDepth  int     `json:"max_depth,omitempty"`
	MaxPages  int     `json:"max_pages,omitempty"`
	RateLimit float64 `json:"rate_limit,omitempty"`
}

type Page struct {
	URL         string  `json:"url"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	RawContent  *string `json:"raw_content,omitempty"`
	WordCount   *int    `json:"word_count,omitempty"`
	Excerpt     *string `json:"excerpt,omitempty"`
	PublishedAt *string `json:"published_at,omitempty"`
	Error       *string `json:"error,omitempty"`
}

type CrawlSiteResponse struct {
	Pages        []Page              `json:"pages"`
	CrawledCount int                 `json:"crawled_count"`
	ErrorCount   int                 `json:"error_count"`
	Errors       []map[string]string `json:"errors"`
}

type crawlExtractRequest struct {
	URLs        []string `json:"urls"`
	Concurrency int      `json:"concurrency,omitempty"`
}

type CrawlExtractResponse struct {
	Results []Page `json:"results"`
}

type SearchPlatformRequest struct {
	Brand                 string   `json:"brand"`
	Domain                *string  `json:"domain,omitempty"`
	Platforms             []string `json:"platforms"`
	MaxResultsPerPlatform int      `json:"max_results_per_platform,omitempty"`
}

type SearchResult struct {
	URL      string  `json:"url"`
	Title    string  `json:"title"`
	Snippet  *string `json:"snippet,omitempty"`
	Platform string  `json:"platform"`
}

type SearchPlatformResponse struct {
	Results    []SearchResult      `json:"results"`
	TotalFound int                 `json:"total_found"`
	Errors     []map[string]string `json:"errors"`
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type RelevantContent struct {
	Title   string  `json:"title"`
	Excerpt *string `json:"excerpt,omitempty"`
	Score   int     `json:"score"`
}

type ChatContext struct {
	ProjectName     string             `json:"project_name"`
	OverallScore    *float64           `json:"overall_score,omitempty"`
	Dimensions      map[string]float64 `json:"dimensions,omitempty"`
	TopEntities     []string           `json:"top_entities"`
	RecentGaps      []string           `json:"recent_gaps"`
	RelevantContent []RelevantContent  `json:"relevant_content"`
}

type ChatRequest struct {
	Message string        `json:"message"`
	History []ChatMessage `json:"history"`
	Context ChatContext   `json:"context"`
}

type Health struct {
	Status        string  `json:"status"`
	Service       string  `json:"service"`
	Version       string  `json:"version"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

var publishedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// ParseTime reads the loosely formatted dates the engine returns. Unparseable
// values yield nil.
func ParseTime(s *string) *time.Time {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			u := t.UTC()
			return &u
		}
	}
	return nil
}
