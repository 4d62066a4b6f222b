// Package analytics records the outcome of every AI request in a bounded
// ring buffer and keeps aggregate metrics up to date as entries arrive.
package analytics

import (
	"maps"
	"time"

	llmerrors "github.com/blueberrycongee/tripmux/pkg/errors"
)

// RequestLog is one completed request. ID and Timestamp are assigned by the Recorder.
type RequestLog struct {
	ID             string         `json:"id"`
	Timestamp      time.Time      `json:"timestamp"`
	Operation      string         `json:"operation,omitempty"`
	UserID         string         `json:"userId,omitempty"`
	TripID         string         `json:"tripId,omitempty"`
	MessageLength  int            `json:"messageLength"`
	DurationMs     int64          `json:"durationMs"`
	Success        bool           `json:"success"`
	ErrorKind      llmerrors.Kind `json:"errorKind,omitempty"`
	ErrorMessage   string         `json:"errorMessage,omitempty"`
	CacheHit       bool           `json:"cacheHit"`
	Attempts       int            `json:"attempts,omitempty"`
	QueueWaitMs    *int64         `json:"queueWaitMs,omitempty"`
	QueueLength    *int           `json:"queueLength,omitempty"`
	ResponseLength *int           `json:"responseLength,omitempty"`
}

func (l RequestLog) clone() RequestLog {
	out := l
	if l.QueueWaitMs != nil {
		v := *l.QueueWaitMs
		out.QueueWaitMs = &v
	}
	if l.QueueLength != nil {
		v := *l.QueueLength
		out.QueueLength = &v
	}
	if l.ResponseLength != nil {
		v := *l.ResponseLength
		out.ResponseLength = &v
	}
	return out
}

// QueueMetrics aggregates queue wait observations.
type QueueMetrics struct {
	AverageWaitTime     float64 `json:"averageWaitTime"`
	MaxQueueLength      int     `json:"maxQueueLength"`
	TotalQueuedRequests int64   `json:"totalQueuedRequests"`
}

// Metrics are the aggregate counters maintained by the Recorder.
type Metrics struct {
	TotalRequests       int64                    `json:"totalRequests"`
	SuccessfulRequests  int64                    `json:"successfulRequests"`
	FailedRequests      int64                    `json:"failedRequests"`
	AverageResponseTime float64                  `json:"averageResponseTime"`
	CacheHitRate        float64                  `json:"cacheHitRate"`
	ErrorsByType        map[llmerrors.Kind]int64 `json:"errorsByType"`
	RequestsByHour      map[int]int64            `json:"requestsByHour"`
	QueueStats          QueueMetrics             `json:"queueStats"`
}

// SuccessRate returns the success percentage, 0 when nothing was recorded.
func (m Metrics) SuccessRate() float64 {
	if m.TotalRequests == 0 {
		return 0
	}
	return float64(m.SuccessfulRequests) / float64(m.TotalRequests) * 100
}

// ErrorRate returns the failure percentage, 0 when nothing was recorded.
func (m Metrics) ErrorRate() float64 {
	if m.TotalRequests == 0 {
		return 0
	}
	return float64(m.FailedRequests) / float64(m.TotalRequests) * 100
}

func (m Metrics) clone() Metrics {
	out := m
	out.ErrorsByType = maps.Clone(m.ErrorsByType)
	out.RequestsByHour = maps.Clone(m.RequestsByHour)
	if out.ErrorsByType == nil {
		out.ErrorsByType = map[llmerrors.Kind]int64{}
	}
	if out.RequestsByHour == nil {
		out.RequestsByHour = map[int]int64{}
	}
	return out
}

// ErrorCount is the number of failures of one kind.
type ErrorCount struct {
	Kind       llmerrors.Kind `json:"type"`
	Count      int64          `json:"count"`
	Percentage float64        `json:"percentage"`
}

// ErrorAnalysis summarizes failures.
type ErrorAnalysis struct {
	ErrorRate    float64      `json:"errorRate"`
	TopErrors    []ErrorCount `json:"topErrors"`
	RecentErrors []RequestLog `json:"recentErrors"`
}

// PerformanceAnalysis summarizes latency over the retained window.
type PerformanceAnalysis struct {
	P95ResponseTime      int64        `json:"p95ResponseTime"`
	SlowestRequests      []RequestLog `json:"slowestRequests"`
	CacheHitAverageTime  float64      `json:"cacheHitAverageTime"`
	CacheMissAverageTime float64      `json:"cacheMissAverageTime"`
}

// HourCount is the request volume for one hour of the day.
type HourCount struct {
	Hour     int   `json:"hour"`
	Requests int64 `json:"requests"`
}

// UsagePatterns summarizes when and how the service is used.
type UsagePatterns struct {
	PeakHours             []HourCount `json:"peakHours"`
	AverageMessageLength  float64     `json:"averageMessageLength"`
	AverageResponseLength float64     `json:"averageResponseLength"`
}
