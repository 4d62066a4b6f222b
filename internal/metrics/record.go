package metrics

import (
	"strings"
	"time"
)

func cacheLabel(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}

// RecordRequest records the terminal outcome of one request.
// An empty errorType on failure is reported as "unknown".
func RecordRequest(operation string, success, cacheHit bool, errorType string, latency time.Duration) {
	operation = sanitizeLabel(operation)
	status := "success"
	if success {
		errorType = "none"
	} else {
		status = "failure"
		if errorType == "" {
			errorType = "unknown"
		}
	}
	cache := cacheLabel(cacheHit)
	RequestsTotal.WithLabelValues(operation, status, errorType, cache).Inc()
	RequestLatency.WithLabelValues(operation, cache).Observe(latency.Seconds())
}

// RecordUpstream records a single provider attempt.
func RecordUpstream(provider, model string, latency time.Duration) {
	UpstreamLatency.WithLabelValues(provider, sanitizeLabel(model)).Observe(latency.Seconds())
}

// RecordRetry records a retry triggered by errorType.
func RecordRetry(provider, errorType string) {
	RetriesTotal.WithLabelValues(provider, errorType).Inc()
}

// RecordCacheLookup records a cache hit or miss for backend.
func RecordCacheLookup(backend string, hit bool) {
	if hit {
		CacheHits.WithLabelValues(backend).Inc()
		return
	}
	CacheMisses.WithLabelValues(backend).Inc()
}

// RecordCacheError records a failed cache operation ("get" or "set").
func RecordCacheError(backend, op string) {
	CacheErrors.WithLabelValues(backend, op).Inc()
}

// SetQueueStats publishes a queue snapshot.
func SetQueueStats(queueLength, active int) {
	QueueLength.Set(float64(queueLength))
	QueueActive.Set(float64(active))
}

// RecordQueueWait records the admission wait of one request.
func RecordQueueWait(wait time.Duration) {
	QueueWait.Observe(wait.Seconds())
}

// SetHealthScore publishes the latest health score.
func SetHealthScore(score int) {
	HealthScore.Set(float64(score))
}

const maxLabelLen = 64

// sanitizeLabel bounds free-form label values (model names, operations) so
// callers cannot blow up series cardinality with arbitrary strings.
func sanitizeLabel(v string) string {
	if i := strings.LastIndex(v, "/"); i >= 0 {
		v = v[i+1:]
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "unknown"
	}

	var b strings.Builder
	b.Grow(min(len(v), maxLabelLen))
	for _, r := range v {
		if (r >= 'a' && r <= 'z') ||
			(r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') ||
			r == '-' || r == '_' || r == '.' || r == ':' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
		if b.Len() >= maxLabelLen {
			break
		}
	}

	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "unknown"
	}
	return out
}
