package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/visiblee-backend/internal/data/repos"
	contentrepo "github.com/yungbote/visiblee-backend/internal/data/repos/content"
	types "github.com/yungbote/visiblee-backend/internal/domain"
	"github.com/yungbote/visiblee-backend/internal/domain/content"
	"github.com/yungbote/visiblee-backend/internal/platform/apierr"
	"github.com/yungbote/visiblee-backend/internal/platform/dbctx"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
	"github.com/yungbote/visiblee-backend/internal/scoring"
)

const (
	// Entities mentioned by at most this many items are under-covered.
	underCoveredMaxFrequency = 1
	underCoveredBriefs       = 5
	briefEntityLabels        = 5
)

type GenerateBriefsDeps struct {
	Log      *logger.Logger
	Content  repos.ContentItemRepo
	Entities repos.EntityRepo
	Scores   repos.ProjectScoreRepo
	Briefs   repos.ContentBriefRepo
}

type GenerateBriefsInput struct {
	ProjectID uuid.UUID
	JobID     uuid.UUID
	Now       time.Time
}

type GenerateBriefsOutput struct {
	BriefsCreated int `json:"briefsCreated"`
}

var dimensionTitles = map[string]string{
	scoring.DimCoverage:  "Espandi la presenza su %s",
	scoring.DimDepth:     "Scrivi una guida approfondita per %s",
	scoring.DimFreshness: "Aggiorna i contenuti pubblicati su %s",
	scoring.DimAuthority: "Ottieni copertura autorevole su %s",
	scoring.DimCoherence: "Costruisci un tema ricorrente su %s",
}

// GenerateBriefs appends one brief per dimension scoring below the improvement
// threshold, then one per under-covered entity. Existing briefs are never
// touched; running it twice yields two sets.
func GenerateBriefs(ctx context.Context, deps GenerateBriefsDeps, in GenerateBriefsInput) (GenerateBriefsOutput, error) {
	out := GenerateBriefsOutput{}
	if deps.Log == nil || deps.Content == nil || deps.Entities == nil || deps.Scores == nil || deps.Briefs == nil {
		return out, fmt.Errorf("generate_briefs: missing deps")
	}
	if in.ProjectID == uuid.Nil {
		return out, fmt.Errorf("generate_briefs: missing project_id")
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	dbc := dbctx.Of(ctx)
	score, err := deps.Scores.GetByProjectID(dbc, in.ProjectID)
	if err != nil {
		return out, fmt.Errorf("generate_briefs: load score: %w", err)
	}
	if score == nil {
		return out, apierr.InsufficientInput("project has no score yet; run COMPUTE_SCORE first")
	}
	platforms, err := deps.Content.PlatformStats(dbc, in.ProjectID, now)
	if err != nil {
		return out, fmt.Errorf("generate_briefs: platform stats: %w", err)
	}
	top, err := deps.Entities.TopByFrequency(dbc, in.ProjectID, true, briefEntityLabels)
	if err != nil {
		return out, fmt.Errorf("generate_briefs: top entities: %w", err)
	}
	topLabels := make([]string, 0, len(top))
	for _, e := range top {
		topLabels = append(topLabels, e.Label)
	}

	var jobID *uuid.UUID
	if in.JobID != uuid.Nil {
		id := in.JobID
		jobID = &id
	}
	counts := platformCounts(platforms)
	dims := score.Dimensions()

	var briefs []*types.ContentBrief
	for _, dim := range scoring.DimensionOrder {
		v := dims[dim]
		if v >= scoring.ImprovementBelow {
			continue
		}
		sev := scoring.SeverityImprovement
		if v < scoring.CriticalBelow {
			sev = scoring.SeverityCritical
		}
		platform := targetPlatform(dim, counts)
		briefs = append(briefs, &types.ContentBrief{
			ProjectID:      in.ProjectID,
			JobID:          jobID,
			Title:          fmt.Sprintf(dimensionTitles[dim], platformName(platform)),
			Dimension:      dim,
			TargetPlatform: string(platform),
			KeyPoints: jsonList(
				scoring.Template(dim, sev),
				fmt.Sprintf("Punteggio attuale %s: %d/100", dim, v),
			),
			EntityLabels: jsonList(topLabels...),
			GeneratedAt:  now,
		})
	}

	under, err := deps.Entities.ListUnderCovered(dbc, in.ProjectID, underCoveredMaxFrequency, underCoveredBriefs)
	if err != nil {
		return out, fmt.Errorf("generate_briefs: under-covered entities: %w", err)
	}
	best := strongestPlatform(counts)
	for _, e := range under {
		briefs = append(briefs, &types.ContentBrief{
			ProjectID:      in.ProjectID,
			JobID:          jobID,
			Title:          fmt.Sprintf("Approfondisci: %s", e.Label),
			Dimension:      scoring.DimCoherence,
			TargetPlatform: string(best),
			KeyPoints: jsonList(
				fmt.Sprintf("%s compare in un solo contenuto: dedicagli un articolo specifico.", e.Label),
				"Collega il nuovo contenuto ai temi principali del brand.",
			),
			EntityLabels: jsonList(e.Label),
			GeneratedAt:  now,
		})
	}

	if len(briefs) == 0 {
		return out, nil
	}
	if err := deps.Briefs.CreateMany(dbc, briefs); err != nil {
		return out, fmt.Errorf("generate_briefs: create: %w", err)
	}
	out.BriefsCreated = len(briefs)
	return out, nil
}

func platformCounts(stats []contentrepo.PlatformStat) map[content.Platform]int {
	out := map[content.Platform]int{}
	for _, ps := range stats {
		status := content.Status(ps.Status)
		if status != content.StatusDiscovered && status != content.StatusApproved {
			continue
		}
		p, _ := content.ParsePlatform(ps.Platform)
		out[p] += int(ps.Items)
	}
	return out
}

// targetPlatform picks where a brief for dim should be published.
func targetPlatform(dim string, counts map[content.Platform]int) content.Platform {
	switch dim {
	case scoring.DimCoverage:
		return weakestPlatform(counts)
	case scoring.DimAuthority:
		return content.PlatformNews
	case scoring.DimDepth:
		return content.PlatformSubstack
	default:
		return strongestPlatform(counts)
	}
}

// weakestPlatform is the canonical platform with the fewest items, ties broken
// by authority.
func weakestPlatform(counts map[content.Platform]int) content.Platform {
	candidates := canonicalByAuthority()
	best := candidates[0]
	for _, p := range candidates[1:] {
		if counts[p] < counts[best] {
			best = p
		}
	}
	return best
}

// strongestPlatform is the platform with the most items, defaulting to the
// project's website.
func strongestPlatform(counts map[content.Platform]int) content.Platform {
	best, n := content.PlatformWebsite, 0
	for _, p := range canonicalByAuthority() {
		if counts[p] > n {
			best, n = p, counts[p]
		}
	}
	return best
}

func canonicalByAuthority() []content.Platform {
	out := make([]content.Platform, 0, len(content.Platforms))
	for _, p := range content.Platforms {
		if p != content.PlatformOther {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return scoring.AuthorityWeights[out[i]] > scoring.AuthorityWeights[out[j]]
	})
	return out
}

var platformNames = map[content.Platform]string{
	content.PlatformSubstack: "Substack",
	content.PlatformMedium:   "Medium",
	content.PlatformLinkedIn: "LinkedIn",
	content.PlatformReddit:   "Reddit",
	content.PlatformYouTube:  "YouTube",
	content.PlatformTwitter:  "X/Twitter",
	content.PlatformQuora:    "Quora",
	content.PlatformNews:     "testate giornalistiche",
	content.PlatformWebsite:  "sito web",
	content.PlatformOther:    "altri canali",
}

func platformName(p content.Platform) string {
	if n, ok := platformNames[p]; ok {
		return n
	}
	return string(p)
}

func jsonList(vals ...string) datatypes.JSON {
	if vals == nil {
		vals = []string{}
	}
	b, _ := json.Marshal(vals)
	return datatypes.JSON(b)
}
