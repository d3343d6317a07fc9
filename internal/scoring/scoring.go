// Package scoring turns aggregated project statistics into the five-dimension
// AI readiness score. Everything here is pure: same Stats, same Result.
package scoring

import (
	"math"

	"github.com/yungbote/visiblee-backend/internal/domain/content"
)

const (
	DimCoverage  = "coverage"
	DimDepth     = "depth"
	DimFreshness = "freshness"
	DimAuthority = "authority"
	DimCoherence = "coherence"
)

// DimensionOrder is the fixed tie-break order for suggestions.
var DimensionOrder = []string{DimCoverage, DimDepth, DimFreshness, DimAuthority, DimCoherence}

var Weights = map[string]float64{
	DimCoverage:  0.25,
	DimDepth:     0.25,
	DimFreshness: 0.20,
	DimAuthority: 0.15,
	DimCoherence: 0.15,
}

var AuthorityWeights = map[content.Platform]float64{
	content.PlatformNews:     1.0,
	content.PlatformSubstack: 0.8,
	content.PlatformMedium:   0.75,
	content.PlatformLinkedIn: 0.7,
	content.PlatformYouTube:  0.7,
	content.PlatformWebsite:  0.65,
	content.PlatformQuora:    0.5,
	content.PlatformReddit:   0.45,
	content.PlatformOther:    0.4,
	content.PlatformTwitter:  0.3,
}

const (
	StrongPresence   = 3
	TargetWordCount  = 1500
	ThinTopicMembers = 3

	freshRecent = 1.0
	freshMid    = 0.5
	freshOld    = 0.15
)

// Stats is the aggregate the score is computed from. Items covers the scored
// population (DISCOVERED and APPROVED); ApprovedByPlatform feeds authority.
type Stats struct {
	Items          int
	ItemsWithText  int
	WordCountItems int
	TotalWords     int64

	PlatformItems      map[content.Platform]int
	ApprovedByPlatform map[content.Platform]int

	Recent int
	MidAge int
	Old    int

	Entities          int
	RecurringEntities int
	TopicSizes        []int
	ItemsInTopics     int
}

type Result struct {
	Overall     int
	Coverage    int
	Depth       int
	Freshness   int
	Authority   int
	Coherence   int
	Suggestions []Suggestion
}

func (r Result) Dimensions() map[string]int {
	return map[string]int{
		DimCoverage:  r.Coverage,
		DimDepth:     r.Depth,
		DimFreshness: r.Freshness,
		DimAuthority: r.Authority,
		DimCoherence: r.Coherence,
	}
}

func Compute(s Stats) Result {
	dims := map[string]float64{
		DimCoverage:  Coverage(s),
		DimDepth:     Depth(s),
		DimFreshness: Freshness(s),
		DimAuthority: Authority(s),
		DimCoherence: Coherence(s),
	}

	var overall float64
	rounded := make(map[string]int, len(dims))
	for _, name := range DimensionOrder {
		v := clamp(dims[name])
		overall += v * Weights[name]
		rounded[name] = roundScore(v)
	}

	res := Result{
		Overall:   roundScore(clamp(overall)),
		Coverage:  rounded[DimCoverage],
		Depth:     rounded[DimDepth],
		Freshness: rounded[DimFreshness],
		Authority: rounded[DimAuthority],
		Coherence: rounded[DimCoherence],
	}
	res.Suggestions = Suggest(res.Dimensions())
	return res
}

// Coverage counts canonical platforms (all but OTHER): a strong presence
// scores 1, one or two items score 0.5.
func Coverage(s Stats) float64 {
	var canonical, sum float64
	for _, p := range content.Platforms {
		if p == content.PlatformOther {
			continue
		}
		canonical++
		switch n := s.PlatformItems[p]; {
		case n >= StrongPresence:
			sum += 1
		case n > 0:
			sum += 0.5
		}
	}
	if canonical == 0 {
		return 0
	}
	return 100 * sum / canonical
}

func Depth(s Stats) float64 {
	if s.Items <= 0 {
		return 0
	}
	var avgWords float64
	if s.WordCountItems > 0 {
		avgWords = float64(s.TotalWords) / float64(s.WordCountItems)
	}
	textRatio := float64(s.ItemsWithText) / float64(s.Items)
	return 100 * (0.6*math.Min(1, avgWords/TargetWordCount) + 0.4*math.Min(1, textRatio))
}

// Freshness is 0 when nothing is dated.
func Freshness(s Stats) float64 {
	dated := s.Recent + s.MidAge + s.Old
	if dated <= 0 {
		return 0
	}
	w := freshRecent*float64(s.Recent) + freshMid*float64(s.MidAge) + freshOld*float64(s.Old)
	return 100 * w / float64(dated)
}

// Authority averages platform weights over approved items. Counts are folded
// per platform first and summed in Platforms order so the float sum never
// depends on map iteration. Unknown platforms count as OTHER.
func Authority(s Stats) float64 {
	counts := make(map[content.Platform]int, len(content.Platforms))
	for p, count := range s.ApprovedByPlatform {
		if count <= 0 {
			continue
		}
		if _, ok := AuthorityWeights[p]; !ok {
			p = content.PlatformOther
		}
		counts[p] += count
	}
	var n, sum float64
	for _, p := range content.Platforms {
		count := counts[p]
		if count == 0 {
			continue
		}
		n += float64(count)
		sum += AuthorityWeights[p] * float64(count)
	}
	if n == 0 {
		return 0
	}
	return 100 * sum / n
}

func Coherence(s Stats) float64 {
	var assigned, topicHealth, recurring float64
	if s.Items > 0 {
		assigned = math.Min(1, float64(s.ItemsInTopics)/float64(s.Items))
	}
	if len(s.TopicSizes) > 0 {
		thin := 0
		for _, size := range s.TopicSizes {
			if size < ThinTopicMembers {
				thin++
			}
		}
		topicHealth = 1 - float64(thin)/float64(len(s.TopicSizes))
	}
	if s.Entities > 0 {
		recurring = float64(s.RecurringEntities) / float64(s.Entities)
	}
	return 100 * (0.4*assigned + 0.3*topicHealth + 0.3*recurring)
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func roundScore(v float64) int {
	return int(math.Round(v))
}
