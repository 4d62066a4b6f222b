// Package insights derives a health score, recommendations and trend reports
// from the analytics recorder's aggregates and recent log window.
package insights

import "github.com/blueberrycongee/tripmux/internal/analytics"

const maxHealthScore = 100

type penalty struct {
	above  float64
	points int
}

// Checked highest threshold first; only the first match applies.
var (
	errorRatePenalties = []penalty{{10, 30}, {5, 15}, {2, 5}}
	latencyPenalties   = []penalty{{10000, 25}, {5000, 15}, {3000, 5}}
)

const (
	lowCacheHitRate    = 20.0
	lowCachePenalty    = 10
	highCacheHitRate   = 60.0
	highCacheHitReward = 5
)

// ComputeHealthScore scores the subsystem from 0 (unhealthy) to 100.
func ComputeHealthScore(m analytics.Metrics, errs analytics.ErrorAnalysis) int {
	score := maxHealthScore
	score -= firstPenalty(errorRatePenalties, errs.ErrorRate)
	score -= firstPenalty(latencyPenalties, m.AverageResponseTime)

	switch {
	case m.CacheHitRate < lowCacheHitRate:
		score -= lowCachePenalty
	case m.CacheHitRate > highCacheHitRate:
		score += highCacheHitReward
	}
	return clampScore(score)
}

func firstPenalty(table []penalty, v float64) int {
	for _, p := range table {
		if v > p.above {
			return p.points
		}
	}
	return 0
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > maxHealthScore {
		return maxHealthScore
	}
	return score
}
