package testutil

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	types "github.com/yungbote/visiblee-backend/internal/domain"
	"github.com/yungbote/visiblee-backend/internal/domain/content"
	"github.com/yungbote/visiblee-backend/internal/domain/jobs"
	"github.com/yungbote/visiblee-backend/internal/domain/project"
)

func SeedProject(tb testing.TB, ctx context.Context, tx *gorm.DB, ownerID uuid.UUID) *types.Project {
	tb.Helper()
	p := &types.Project{
		ID:          uuid.New(),
		OwnerUserID: ownerID,
		Name:        "Acme",
		BrandName:   "Acme",
		Domain:      "acme.example",
		Status:      project.StatusActive,
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed project: %v", err)
	}
	return p
}

// ItemOpt customises a seeded content item.
type ItemOpt func(*types.ContentItem)

func WithStatus(s content.Status) ItemOpt {
	return func(c *types.ContentItem) { c.Status = s }
}

func WithText(text string) ItemOpt {
	return func(c *types.ContentItem) {
		c.RawContent = &text
		wc := len(text)
		c.WordCount = &wc
	}
}

func WithPlatform(p content.Platform) ItemOpt {
	return func(c *types.ContentItem) { c.Platform = p }
}

func WithPublished(t time.Time) ItemOpt {
	return func(c *types.ContentItem) { c.PublishedAt = &t }
}

func WithURL(u string) ItemOpt {
	return func(c *types.ContentItem) {
		c.URL = &u
		h := content.Hash(u, "", "")
		c.ContentHash = &h
	}
}

// WithEmbedding stores a unit vector pointing mostly along axis.
func WithEmbedding(axis int) ItemOpt {
	return func(c *types.ContentItem) {
		v := UnitVector(axis)
		vec := pgvector.NewVector(v)
		c.Embedding = &vec
	}
}

func UnitVector(axis int) []float32 {
	v := make([]float32, content.EmbeddingDimensions)
	v[axis%content.EmbeddingDimensions] = 1
	v[(axis+1)%content.EmbeddingDimensions] = float32(math.Sqrt(0.01))
	return v
}

func SeedContent(tb testing.TB, ctx context.Context, tx *gorm.DB, projectID uuid.UUID, opts ...ItemOpt) *types.ContentItem {
	tb.Helper()
	id := uuid.New()
	url := fmt.Sprintf("https://acme.example/%s", id)
	hash := content.Hash(url, "", "")
	c := &types.ContentItem{
		ID:          id,
		ProjectID:   projectID,
		URL:         &url,
		Title:       "item " + id.String()[:8],
		Platform:    content.PlatformWebsite,
		ContentType: content.TypeArticle,
		Status:      content.StatusDiscovered,
		Source:      content.SourceManual,
		ContentHash: &hash,
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed content item: %v", err)
	}
	return c
}

func SeedJob(tb testing.TB, ctx context.Context, tx *gorm.DB, projectID, userID uuid.UUID, jobType jobs.JobType, status jobs.Status) *types.AnalysisJob {
	tb.Helper()
	j := &types.AnalysisJob{
		ID:        uuid.New(),
		ProjectID: projectID,
		UserID:    userID,
		JobType:   jobType,
		Queue:     jobType.Queue(),
		Status:    status,
	}
	if status == jobs.StatusRunning {
		now := time.Now().UTC()
		j.StartedAt = &now
	}
	if err := tx.WithContext(ctx).Create(j).Error; err != nil {
		tb.Fatalf("seed job: %v", err)
	}
	return j
}

func PtrUUID(v uuid.UUID) *uuid.UUID { return &v }

func PtrTime(v time.Time) *time.Time { return &v }
