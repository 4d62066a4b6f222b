package tripmux

import (
	"time"

	"github.com/blueberrycongee/tripmux/internal/analytics"
	"github.com/blueberrycongee/tripmux/internal/insights"
	"github.com/blueberrycongee/tripmux/internal/metrics"
	"github.com/blueberrycongee/tripmux/internal/observability"
)

// DefaultRecentLogsLimit is how many recent logs Snapshot returns when the
// caller does not ask for a specific number.
const DefaultRecentLogsLimit = 50

// Overview is the headline block of the metrics payload.
type Overview struct {
	TotalRequests       int64   `json:"totalRequests"`
	SuccessRate         float64 `json:"successRate"`
	AverageResponseTime float64 `json:"averageResponseTime"`
	CacheHitRate        float64 `json:"cacheHitRate"`
	CurrentQueueLength  int     `json:"currentQueueLength"`
	ActiveRequests      int     `json:"activeRequests"`
}

// Snapshot is the metrics endpoint payload.
type Snapshot struct {
	Overview            Overview            `json:"overview"`
	Metrics             Metrics             `json:"metrics"`
	ErrorAnalysis       ErrorAnalysis       `json:"errorAnalysis"`
	PerformanceAnalysis PerformanceAnalysis `json:"performanceAnalysis"`
	UsagePatterns       UsagePatterns       `json:"usagePatterns"`
	QueueStats          QueueStats          `json:"queueStats"`
	Insights            Insights            `json:"insights"`
	RecentLogs          []RequestLog        `json:"recentLogs"`
	GeneratedAt         time.Time           `json:"generatedAt"`
}

// Snapshot assembles the analytics, queue state and insights into one
// payload. recentLimit bounds RecentLogs; values <= 0 use
// DefaultRecentLogsLimit. User and trip identifiers are truncated and error
// messages redacted in every log the payload carries.
func (c *Client) Snapshot(recentLimit int) Snapshot {
	if recentLimit <= 0 {
		recentLimit = DefaultRecentLogsLimit
	}

	report := c.recorder.Report()
	m, errs, perf, usage, window := report.Metrics, report.ErrorAnalysis, report.PerformanceAnalysis, report.UsagePatterns, report.Logs
	qs := c.queue.Stats()

	derived := insights.Compute(m, errs, qs, window)
	metrics.SetHealthScore(derived.HealthScore)

	recent := window
	if len(recent) > recentLimit {
		recent = recent[len(recent)-recentLimit:]
	}

	errs.RecentErrors = c.sanitizeLogs(errs.RecentErrors)
	perf.SlowestRequests = c.sanitizeLogs(perf.SlowestRequests)

	return Snapshot{
		Overview: Overview{
			TotalRequests:       m.TotalRequests,
			SuccessRate:         m.SuccessRate(),
			AverageResponseTime: m.AverageResponseTime,
			CacheHitRate:        m.CacheHitRate,
			CurrentQueueLength:  qs.QueueLength,
			ActiveRequests:      qs.ActiveRequests,
		},
		Metrics:             m,
		ErrorAnalysis:       errs,
		PerformanceAnalysis: perf,
		UsagePatterns:       usage,
		QueueStats:          qs,
		Insights:            derived,
		RecentLogs:          c.sanitizeLogs(recent),
		GeneratedAt:         c.now(),
	}
}

func (c *Client) sanitizeLogs(logs []analytics.RequestLog) []analytics.RequestLog {
	out := make([]analytics.RequestLog, len(logs))
	for i, l := range logs {
		l.UserID = observability.TruncateIdentifier(l.UserID)
		l.TripID = observability.TruncateIdentifier(l.TripID)
		l.ErrorMessage = c.redactor.Redact(l.ErrorMessage)
		out[i] = l
	}
	return out
}
