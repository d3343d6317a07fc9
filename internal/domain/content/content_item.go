package content

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

type Platform string

const (
	PlatformSubstack Platform = "SUBSTACK"
	PlatformMedium   Platform = "MEDIUM"
	PlatformLinkedIn Platform = "LINKEDIN"
	PlatformReddit   Platform = "REDDIT"
	PlatformYouTube  Platform = "YOUTUBE"
	PlatformTwitter  Platform = "TWITTER"
	PlatformQuora    Platform = "QUORA"
	PlatformNews     Platform = "NEWS"
	PlatformWebsite  Platform = "WEBSITE"
	PlatformOther    Platform = "OTHER"
)

var Platforms = []Platform{
	PlatformSubstack, PlatformMedium, PlatformLinkedIn, PlatformReddit, PlatformYouTube,
	PlatformTwitter, PlatformQuora, PlatformNews, PlatformWebsite, PlatformOther,
}

func ParsePlatform(s string) (Platform, bool) {
	p := Platform(strings.ToUpper(strings.TrimSpace(s)))
	for _, v := range Platforms {
		if v == p {
			return p, true
		}
	}
	return PlatformOther, false
}

type ContentType string

const (
	TypeArticle ContentType = "ARTICLE"
	TypePost    ContentType = "POST"
	TypeVideo   ContentType = "VIDEO"
	TypeThread  ContentType = "THREAD"
	TypePage    ContentType = "PAGE"
	TypeOther   ContentType = "OTHER"
)

type Status string

const (
	StatusDiscovered Status = "DISCOVERED"
	StatusApproved   Status = "APPROVED"
	StatusRejected   Status = "REJECTED"
	StatusArchived   Status = "ARCHIVED"
)

func ParseStatus(s string) (Status, bool) {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusDiscovered, StatusApproved, StatusRejected, StatusArchived:
		return st, true
	}
	return "", false
}

// CanTransition enforces DISCOVERED -> APPROVED/REJECTED -> ARCHIVED, plus
// re-review between APPROVED and REJECTED.
func (s Status) CanTransition(to Status) bool {
	switch s {
	case StatusDiscovered:
		return to == StatusApproved || to == StatusRejected || to == StatusArchived
	case StatusApproved:
		return to == StatusRejected || to == StatusArchived
	case StatusRejected:
		return to == StatusApproved || to == StatusArchived
	default:
		return false
	}
}

type Source string

const (
	SourceCrawl  Source = "CRAWL"
	SourceSearch Source = "SEARCH"
	SourceManual Source = "MANUAL"
	SourceImport Source = "IMPORT"
)

// EmbeddingDimensions matches the engine's sentence embedding model.
const EmbeddingDimensions = 384

type ContentItem struct {
	ID              uuid.UUID        `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ProjectID       uuid.UUID        `gorm:"type:uuid;not null;index;uniqueIndex:idx_content_item_project_hash,priority:1" json:"projectId"`
	URL             *string          `gorm:"column:url" json:"url,omitempty"`
	Title           string           `gorm:"column:title;not null" json:"title"`
	Platform        Platform         `gorm:"column:platform;type:text;not null;index" json:"platform"`
	ContentType     ContentType      `gorm:"column:content_type;type:text;not null" json:"contentType"`
	Status          Status           `gorm:"column:status;type:text;not null;index" json:"status"`
	Source          Source           `gorm:"column:source;type:text;not null" json:"source"`
	RawContent      *string          `gorm:"column:raw_content" json:"-"`
	WordCount       *int             `gorm:"column:word_count" json:"wordCount,omitempty"`
	Excerpt         *string          `gorm:"column:excerpt" json:"excerpt,omitempty"`
	PublishedAt     *time.Time       `gorm:"column:published_at" json:"publishedAt,omitempty"`
	ContentHash     *string          `gorm:"column:content_hash;uniqueIndex:idx_content_item_project_hash,priority:2" json:"contentHash,omitempty"`
	Embedding       *pgvector.Vector `gorm:"column:embedding;type:vector(384)" json:"-"`
	LastCrawledAt   *time.Time       `gorm:"column:last_crawled_at" json:"lastCrawledAt,omitempty"`
	LastExtractedAt *time.Time       `gorm:"column:last_extracted_at" json:"lastExtractedAt,omitempty"`
	CreatedAt       time.Time        `gorm:"not null;default:now();index" json:"createdAt"`
	UpdatedAt       time.Time        `gorm:"not null;default:now()" json:"updatedAt"`
}

func (ContentItem) TableName() string { return "content_item" }

func (c *ContentItem) HasText() bool {
	return c != nil && c.RawContent != nil && strings.TrimSpace(*c.RawContent) != ""
}

func (c *ContentItem) HasEmbedding() bool {
	return c != nil && c.Embedding != nil && len(c.Embedding.Slice()) > 0
}

// Hash derives the dedup key: the normalised URL when present, otherwise
// title and body.
func Hash(url, title, raw string) string {
	var basis string
	if u := strings.ToLower(strings.TrimSpace(url)); u != "" {
		basis = strings.TrimRight(u, "/")
	} else {
		basis = strings.ToLower(strings.Join(strings.Fields(title), " ")) + "\n" + strings.TrimSpace(raw)
	}
	sum := sha256.Sum256([]byte(basis))
	return hex.EncodeToString(sum[:])
}
