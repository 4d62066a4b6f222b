package insights

import (
	"fmt"

	"github.com/blueberrycongee/tripmux/internal/analytics"
	"github.com/blueberrycongee/tripmux/internal/queue"
	llmerrors "github.com/blueberrycongee/tripmux/pkg/errors"
)

// Thresholds at which a recommendation fires.
const (
	HighErrorRate          = 5.0    // percent
	SlowResponseMs         = 5000.0 // average response time
	LowCacheHitRate        = 30.0   // percent
	HighQueueWaitMs        = 2000.0 // average queue wait
	FrequentRateLimitCount = 5      // RateLimited failures

	// Cache advice needs a few requests before the hit rate means anything.
	minRequestsForCacheAdvice = 10
)

// PerformingWell is returned alone when no rule fires.
const PerformingWell = "AI service is performing well. No action needed."

// GenerateRecommendations evaluates the advisory rules in a fixed order.
// queueStats may be the zero value when no queue is attached.
func GenerateRecommendations(m analytics.Metrics, errs analytics.ErrorAnalysis, queueStats queue.Stats) []string {
	var recs []string

	if errs.ErrorRate > HighErrorRate {
		recs = append(recs, fmt.Sprintf(
			"High error rate (%.1f%%). Check upstream provider status and API credentials.", errs.ErrorRate))
	}
	if m.AverageResponseTime > SlowResponseMs {
		recs = append(recs, fmt.Sprintf(
			"Slow responses (%.0fms average). Consider shorter prompts or a faster model.", m.AverageResponseTime))
	}
	if m.TotalRequests >= minRequestsForCacheAdvice && m.CacheHitRate < LowCacheHitRate {
		recs = append(recs, fmt.Sprintf(
			"Low cache hit rate (%.1f%%). Consider longer cache TTLs or normalizing prompts.", m.CacheHitRate))
	}
	if m.QueueStats.AverageWaitTime > HighQueueWaitMs {
		recs = append(recs, fmt.Sprintf(
			"High queue wait time (%.0fms average, %d waiting now). Consider raising max_concurrent.",
			m.QueueStats.AverageWaitTime, queueStats.QueueLength))
	}
	if n := m.ErrorsByType[llmerrors.KindRateLimited]; n >= FrequentRateLimitCount {
		recs = append(recs, fmt.Sprintf(
			"Frequent rate limiting (%d requests). Enable client-side rate limiting or request a higher quota.", n))
	}

	if len(recs) == 0 {
		return []string{PerformingWell}
	}
	return recs
}
