// Package compose blends content and engagement sub-scores into the total
// match score.
package compose

import (
	"math"

	"follicle-match/internal/models"
)

const (
	ContentWeight    = 0.6
	EngagementWeight = 0.4
	MaxReasons       = 5
)

type Weights struct {
	Content    float64
	Engagement float64
}

func DefaultWeights() Weights {
	return Weights{Content: ContentWeight, Engagement: EngagementWeight}
}

// normalized rescales the weights to sum to 1.
func (w Weights) normalized() Weights {
	sum := w.Content + w.Engagement
	if sum <= 0 {
		return DefaultWeights()
	}
	return Weights{Content: w.Content / sum, Engagement: w.Engagement / sum}
}

type Result struct {
	TotalScore float64
	Breakdown  models.ScoreBreakdown
}

// Compose returns the weighted sum clamped to [0,1]. Sub-scores are clamped
// before blending.
func Compose(content, engagement float64, w Weights) Result {
	w = w.normalized()
	content = clamp(content)
	engagement = clamp(engagement)
	return Result{
		TotalScore: clamp(w.Content*content + w.Engagement*engagement),
		Breakdown: models.ScoreBreakdown{
			ContentScore:    content,
			EngagementScore: engagement,
		},
	}
}

// Reasons lists engagement reasons first, then content reasons, without
// duplicates, truncated to max.
func Reasons(engagement, content []string, max int) []string {
	if max <= 0 {
		max = MaxReasons
	}
	out := make([]string, 0, max)
	seen := map[string]struct{}{}
	for _, list := range [][]string{engagement, content} {
		for _, r := range list {
			if len(out) == max {
				return out
			}
			if _, ok := seen[r]; ok || r == "" {
				continue
			}
			seen[r] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}

func clamp(v float64) float64 {
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	}
	return v
}
