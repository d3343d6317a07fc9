package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/visiblee-backend/internal/data/repos"
	contentrepo "github.com/yungbote/visiblee-backend/internal/data/repos/content"
	entityrepo "github.com/yungbote/visiblee-backend/internal/data/repos/entities"
	types "github.com/yungbote/visiblee-backend/internal/domain"
	"github.com/yungbote/visiblee-backend/internal/domain/content"
	"github.com/yungbote/visiblee-backend/internal/platform/dbctx"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
	"github.com/yungbote/visiblee-backend/internal/scoring"
)

type ComputeScoreDeps struct {
	Log      *logger.Logger
	Content  repos.ContentItemRepo
	Entities repos.EntityRepo
	Scores   repos.ProjectScoreRepo
}

type ComputeScoreInput struct {
	ProjectID uuid.UUID
	// Now anchors the freshness buckets; zero means time.Now().
	Now time.Time
}

type ComputeScoreOutput struct {
	OverallScore int  `json:"overallScore"`
	ContentCount int  `json:"contentCount"`
	Stale        bool `json:"stale,omitempty"`

	Result scoring.Result `json:"-"`
}

// ComputeScore aggregates the project's content and entity statistics, scores
// them and overwrites the project's score row.
func ComputeScore(ctx context.Context, deps ComputeScoreDeps, in ComputeScoreInput) (ComputeScoreOutput, error) {
	out := ComputeScoreOutput{}
	if deps.Log == nil || deps.Content == nil || deps.Entities == nil || deps.Scores == nil {
		return out, fmt.Errorf("compute_score: missing deps")
	}
	if in.ProjectID == uuid.Nil {
		return out, fmt.Errorf("compute_score: missing project_id")
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	dbc := dbctx.Of(ctx)
	platforms, err := deps.Content.PlatformStats(dbc, in.ProjectID, now)
	if err != nil {
		return out, fmt.Errorf("compute_score: platform stats: %w", err)
	}
	ents, err := deps.Entities.Stats(dbc, in.ProjectID)
	if err != nil {
		return out, fmt.Errorf("compute_score: entity stats: %w", err)
	}

	stats := BuildStats(platforms, ents)
	res := scoring.Compute(stats)

	suggestions, err := json.Marshal(res.Suggestions)
	if err != nil {
		return out, fmt.Errorf("compute_score: encode suggestions: %w", err)
	}
	row := &types.ProjectScore{
		ProjectID:    in.ProjectID,
		OverallScore: res.Overall,
		Coverage:     res.Coverage,
		Depth:        res.Depth,
		Freshness:    res.Freshness,
		Authority:    res.Authority,
		Coherence:    res.Coherence,
		Suggestions:  datatypes.JSON(suggestions),
		ContentCount: stats.Items,
		ComputedAt:   now,
	}
	if err := deps.Scores.UpsertByProjectID(dbc, row); err != nil {
		return out, fmt.Errorf("compute_score: upsert score: %w", err)
	}
	// Content written after now may have been missed by the stats read and
	// its MarkStale overwritten by the upsert.
	stale, err := deps.Scores.RefreshStale(dbc, in.ProjectID)
	if err != nil {
		return out, fmt.Errorf("compute_score: refresh stale: %w", err)
	}
	out.Stale = stale

	out.OverallScore = res.Overall
	out.ContentCount = stats.Items
	out.Result = res
	deps.Log.Info("project scored", "project_id", in.ProjectID, "overall", res.Overall, "content_count", stats.Items, "stale", stale)
	return out, nil
}

// BuildStats folds the per-(platform, status) aggregates into scoring input.
// Only DISCOVERED and APPROVED items are scored; authority reads APPROVED only.
func BuildStats(platforms []contentrepo.PlatformStat, ents *entityrepo.Stats) scoring.Stats {
	s := scoring.Stats{
		PlatformItems:      map[content.Platform]int{},
		ApprovedByPlatform: map[content.Platform]int{},
	}
	for _, ps := range platforms {
		status := content.Status(ps.Status)
		if status != content.StatusDiscovered && status != content.StatusApproved {
			continue
		}
		p, _ := content.ParsePlatform(ps.Platform)
		s.Items += int(ps.Items)
		s.ItemsWithText += int(ps.WithText)
		s.WordCountItems += int(ps.WithWords)
		s.TotalWords += ps.TotalWords
		s.PlatformItems[p] += int(ps.Items)
		if status == content.StatusApproved {
			s.ApprovedByPlatform[p] += int(ps.Items)
		}
		s.Recent += int(ps.Recent)
		s.MidAge += int(ps.MidAge)
		s.Old += int(ps.Old)
	}
	if ents != nil {
		s.Entities = int(ents.Entities)
		s.RecurringEntities = int(ents.RecurringEntities)
		s.ItemsInTopics = int(ents.ItemsInTopics)
		for _, size := range ents.TopicSizes {
			s.TopicSizes = append(s.TopicSizes, int(size))
		}
	}
	return s
}
