// Package tripmux is the AI request orchestration layer of the trip planner.
// It sits between application callers and an upstream AI completion
// provider and adds a TTL response cache, a bounded-concurrency admission
// queue, classified-error retries with exponential backoff, and analytics
// that feed a health score, recommendations and trend reports.
//
// Basic usage:
//
//	client, err := tripmux.New(
//	    tripmux.WithProvider(p), // any tripmux.Provider
//	    tripmux.WithCacheTTL(15*time.Minute),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close(context.Background())
//
//	resp, err := client.Complete(ctx, &tripmux.Request{
//	    Operation: "itinerary",
//	    Prompt:    "Plan three days in Lisbon",
//	})
package tripmux

import (
	"github.com/blueberrycongee/tripmux/internal/analytics"
	"github.com/blueberrycongee/tripmux/internal/insights"
	"github.com/blueberrycongee/tripmux/internal/provider"
	"github.com/blueberrycongee/tripmux/internal/queue"
	"github.com/blueberrycongee/tripmux/pkg/errors"
)

// Version is the current version of tripmux.
const Version = "0.3.0"

type (
	// Provider is the upstream completion provider.
	Provider = provider.Provider

	// Usage contains token usage statistics for a response.
	Usage = provider.Usage

	// Error is the typed terminal failure returned by Complete.
	Error = errors.Error

	// ErrorKind is the closed set of failure classifications.
	ErrorKind = errors.Kind

	// RequestLog is one recorded request outcome.
	RequestLog = analytics.RequestLog

	// Metrics are the aggregate request metrics.
	Metrics = analytics.Metrics

	// ErrorAnalysis, PerformanceAnalysis and UsagePatterns are derived views
	// over the retained request window.
	ErrorAnalysis       = analytics.ErrorAnalysis
	PerformanceAnalysis = analytics.PerformanceAnalysis
	UsagePatterns       = analytics.UsagePatterns

	// QueueStats is a snapshot of the admission queue.
	QueueStats = queue.Stats

	// Insights holds the health score, recommendations and trends.
	Insights = insights.Insights
)
