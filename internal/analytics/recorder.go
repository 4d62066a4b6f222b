package analytics

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	llmerrors "github.com/blueberrycongee/tripmux/pkg/errors"
)

// DefaultCapacity is the number of request logs retained by default.
const DefaultCapacity = 1000

const (
	topErrorKinds   = 5
	recentErrorLogs = 10
	slowestRequests = 5
	peakHours       = 3
)

// Option customizes a Recorder.
type Option func(*Recorder)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		r.now = now
	}
}

// WithIDGenerator overrides how log ids are generated.
func WithIDGenerator(gen func() string) Option {
	return func(r *Recorder) {
		r.newID = gen
	}
}

// Recorder is an append-only, fixed-capacity request log plus aggregate
// metrics. All methods are safe for concurrent use.
type Recorder struct {
	mu sync.Mutex

	buf   []RequestLog
	start int // index of the oldest entry
	size  int

	// windowHits counts cache hits among retained entries. It is adjusted on
	// append and on eviction so it always matches the buffer contents.
	windowHits int

	metrics Metrics

	now   func() time.Time
	newID func() string
}

// NewRecorder creates a recorder retaining up to capacity entries.
// A non-positive capacity uses DefaultCapacity.
func NewRecorder(capacity int, opts ...Option) *Recorder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	r := &Recorder{
		buf:   make([]RequestLog, capacity),
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.metrics = emptyMetrics()
	return r
}

func emptyMetrics() Metrics {
	return Metrics{
		ErrorsByType:   make(map[llmerrors.Kind]int64),
		RequestsByHour: make(map[int]int64),
	}
}

// Capacity returns the ring buffer size.
func (r *Recorder) Capacity() int {
	return len(r.buf)
}

// LogRequest stamps entry with an id and timestamp, appends it, and updates
// the aggregate metrics. It returns the stored entry.
func (r *Recorder) LogRequest(entry RequestLog) RequestLog {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry = entry.clone()
	entry.ID = r.newID()
	entry.Timestamp = r.now()
	if !entry.Success && entry.ErrorKind == "" {
		entry.ErrorKind = llmerrors.KindUnknown
	}
	if entry.Success {
		entry.ErrorKind = ""
	}

	r.append(entry)

	m := &r.metrics
	m.TotalRequests++
	n := float64(m.TotalRequests)
	m.AverageResponseTime = (m.AverageResponseTime*(n-1) + float64(entry.DurationMs)) / n

	if entry.Success {
		m.SuccessfulRequests++
	} else {
		m.FailedRequests++
		m.ErrorsByType[entry.ErrorKind]++
	}

	m.CacheHitRate = float64(r.windowHits) / float64(r.size) * 100
	m.RequestsByHour[entry.Timestamp.UTC().Hour()]++

	if entry.QueueWaitMs != nil {
		q := &m.QueueStats
		q.TotalQueuedRequests++
		qn := float64(q.TotalQueuedRequests)
		q.AverageWaitTime = (q.AverageWaitTime*(qn-1) + float64(*entry.QueueWaitMs)) / qn
	}
	if entry.QueueLength != nil && *entry.QueueLength > m.QueueStats.MaxQueueLength {
		m.QueueStats.MaxQueueLength = *entry.QueueLength
	}

	return entry.clone()
}

// append writes entry at the tail, evicting the oldest entry when full.
// Caller holds r.mu.
func (r *Recorder) append(entry RequestLog) {
	capacity := len(r.buf)
	if r.size == capacity {
		if r.buf[r.start].CacheHit {
			r.windowHits--
		}
		r.buf[r.start] = entry
		r.start = (r.start + 1) % capacity
	} else {
		r.buf[(r.start+r.size)%capacity] = entry
		r.size++
	}
	if entry.CacheHit {
		r.windowHits++
	}
}

// window returns the retained entries oldest first. Caller holds r.mu.
// The returned entries share pointer fields with the buffer.
func (r *Recorder) window() []RequestLog {
	out := make([]RequestLog, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

func cloneLogs(logs []RequestLog) []RequestLog {
	out := make([]RequestLog, len(logs))
	for i, l := range logs {
		out[i] = l.clone()
	}
	return out
}

// Metrics returns a deep copy of the aggregate metrics.
func (r *Recorder) Metrics() Metrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metrics.clone()
}

// RecentLogs returns up to limit of the most recent entries, newest last.
// A non-positive limit returns the whole retained window.
func (r *Recorder) RecentLogs(limit int) []RequestLog {
	r.mu.Lock()
	defer r.mu.Unlock()

	logs := r.window()
	if limit > 0 && limit < len(logs) {
		logs = logs[len(logs)-limit:]
	}
	return cloneLogs(logs)
}

// ErrorAnalysis reports the error rate, the most frequent error kinds, and
// the latest failures.
func (r *Recorder) ErrorAnalysis() ErrorAnalysis {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errorAnalysis(r.window())
}

// Caller holds r.mu.
func (r *Recorder) errorAnalysis(logs []RequestLog) ErrorAnalysis {
	m := r.metrics
	analysis := ErrorAnalysis{
		ErrorRate:    m.ErrorRate(),
		TopErrors:    []ErrorCount{},
		RecentErrors: []RequestLog{},
	}

	for kind, count := range m.ErrorsByType {
		var pct float64
		if m.FailedRequests > 0 {
			pct = float64(count) / float64(m.FailedRequests) * 100
		}
		analysis.TopErrors = append(analysis.TopErrors, ErrorCount{Kind: kind, Count: count, Percentage: pct})
	}
	sort.Slice(analysis.TopErrors, func(i, j int) bool {
		a, b := analysis.TopErrors[i], analysis.TopErrors[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Kind < b.Kind
	})
	if len(analysis.TopErrors) > topErrorKinds {
		analysis.TopErrors = analysis.TopErrors[:topErrorKinds]
	}

	var failed []RequestLog
	for _, l := range logs {
		if !l.Success {
			failed = append(failed, l)
		}
	}
	if len(failed) > recentErrorLogs {
		failed = failed[len(failed)-recentErrorLogs:]
	}
	analysis.RecentErrors = append(analysis.RecentErrors, cloneLogs(failed)...)

	return analysis
}

// PerformanceAnalysis computes latency statistics over the retained window.
func (r *Recorder) PerformanceAnalysis() PerformanceAnalysis {
	r.mu.Lock()
	logs := r.window()
	r.mu.Unlock()
	return performanceAnalysis(logs)
}

func performanceAnalysis(logs []RequestLog) PerformanceAnalysis {
	analysis := PerformanceAnalysis{SlowestRequests: []RequestLog{}}
	if len(logs) == 0 {
		return analysis
	}

	durations := make([]int64, len(logs))
	for i, l := range logs {
		durations[i] = l.DurationMs
	}
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	idx := int(0.95 * float64(len(durations)))
	if idx >= len(durations) {
		idx = len(durations) - 1
	}
	analysis.P95ResponseTime = durations[idx]

	slowest := cloneLogs(logs)
	sort.SliceStable(slowest, func(i, j int) bool { return slowest[i].DurationMs > slowest[j].DurationMs })
	if len(slowest) > slowestRequests {
		slowest = slowest[:slowestRequests]
	}
	analysis.SlowestRequests = slowest

	var hitSum, missSum int64
	var hits, misses int
	for _, l := range logs {
		if l.CacheHit {
			hitSum += l.DurationMs
			hits++
		} else {
			missSum += l.DurationMs
			misses++
		}
	}
	if hits > 0 {
		analysis.CacheHitAverageTime = float64(hitSum) / float64(hits)
	}
	if misses > 0 {
		analysis.CacheMissAverageTime = float64(missSum) / float64(misses)
	}

	return analysis
}

// UsagePatterns reports the busiest hours of the day and mean message and
// response lengths over the retained window.
func (r *Recorder) UsagePatterns() UsagePatterns {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.usagePatterns(r.window())
}

// Caller holds r.mu.
func (r *Recorder) usagePatterns(logs []RequestLog) UsagePatterns {
	patterns := UsagePatterns{PeakHours: []HourCount{}}
	for hour, count := range r.metrics.RequestsByHour {
		patterns.PeakHours = append(patterns.PeakHours, HourCount{Hour: hour, Requests: count})
	}
	sort.Slice(patterns.PeakHours, func(i, j int) bool {
		a, b := patterns.PeakHours[i], patterns.PeakHours[j]
		if a.Requests != b.Requests {
			return a.Requests > b.Requests
		}
		return a.Hour < b.Hour
	})
	if len(patterns.PeakHours) > peakHours {
		patterns.PeakHours = patterns.PeakHours[:peakHours]
	}

	if len(logs) == 0 {
		return patterns
	}
	var msgSum, respSum, respCount int
	for _, l := range logs {
		msgSum += l.MessageLength
		if l.ResponseLength != nil {
			respSum += *l.ResponseLength
			respCount++
		}
	}
	patterns.AverageMessageLength = float64(msgSum) / float64(len(logs))
	if respCount > 0 {
		patterns.AverageResponseLength = float64(respSum) / float64(respCount)
	}
	return patterns
}

// Report is every analytics view taken from the same state of the recorder.
type Report struct {
	Metrics             Metrics
	ErrorAnalysis       ErrorAnalysis
	PerformanceAnalysis PerformanceAnalysis
	UsagePatterns       UsagePatterns
	// Logs is the whole retained window, oldest first.
	Logs []RequestLog
}

// Report returns all views under a single lock, so aggregates and the log
// window agree even while requests are being logged.
func (r *Recorder) Report() Report {
	r.mu.Lock()
	logs := r.window()
	rep := Report{
		Metrics:       r.metrics.clone(),
		ErrorAnalysis: r.errorAnalysis(logs),
		UsagePatterns: r.usagePatterns(logs),
		Logs:          cloneLogs(logs),
	}
	r.mu.Unlock()

	// The window copy no longer depends on the buffer.
	rep.PerformanceAnalysis = performanceAnalysis(rep.Logs)
	return rep
}

// Reset clears every log entry and metric.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	clear(r.buf)
	r.start = 0
	r.size = 0
	r.windowHits = 0
	r.metrics = emptyMetrics()
}
