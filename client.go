package tripmux

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/blueberrycongee/tripmux/internal/analytics"
	"github.com/blueberrycongee/tripmux/internal/cache"
	"github.com/blueberrycongee/tripmux/internal/metrics"
	"github.com/blueberrycongee/tripmux/internal/observability"
	"github.com/blueberrycongee/tripmux/internal/provider"
	"github.com/blueberrycongee/tripmux/internal/queue"
	"github.com/blueberrycongee/tripmux/internal/resilience"
	llmerrors "github.com/blueberrycongee/tripmux/pkg/errors"
)

var (
	// ErrInvalidRequest is returned for requests rejected before any work
	// is done. Such requests are not recorded in analytics.
	ErrInvalidRequest = stderrors.New("invalid request")
	// ErrClientClosed is returned by Complete after Close.
	ErrClientClosed = stderrors.New("client closed")
)

// DefaultOperation labels requests that do not name an operation.
const DefaultOperation = "completion"

// Request is one AI completion request.
type Request struct {
	// Operation names the caller feature, e.g. "itinerary" or "budget-advice".
	Operation   string   `json:"operation,omitempty"`
	Model       string   `json:"model,omitempty"`
	System      string   `json:"system,omitempty"`
	Prompt      string   `json:"prompt"`
	MaxTokens   int      `json:"maxTokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`

	// UserID and TripID are recorded with the outcome and truncated before
	// they leave through Snapshot.
	UserID string `json:"userId,omitempty"`
	TripID string `json:"tripId,omitempty"`

	// CacheKey replaces the generated fingerprint with a caller-chosen key.
	// It is never decoded from JSON, so remote callers cannot address
	// entries by name.
	CacheKey string `json:"-"`
	// CacheTTL overrides the client default for this response.
	CacheTTL time.Duration `json:"-"`
	// NoCache skips the cache lookup; NoStore skips storing the response.
	NoCache bool `json:"noCache,omitempty"`
	NoStore bool `json:"noStore,omitempty"`
}

// Response is the result of Complete.
type Response struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	FinishReason string `json:"finishReason,omitempty"`
	Usage        Usage  `json:"usage"`

	Cached      bool  `json:"cached"`
	Attempts    int   `json:"attempts"`
	DurationMs  int64 `json:"durationMs"`
	QueueWaitMs int64 `json:"queueWaitMs"`
}

// Client orchestrates AI completions: cache lookup, queued admission,
// retried upstream calls and outcome recording.
//
// Client is safe for concurrent use by multiple goroutines.
type Client struct {
	provider   Provider
	cache      cache.Cache
	cacheLabel string
	keys       *cache.KeyGenerator
	queue      *queue.Queue
	retry      *resilience.RetryPolicy
	limiter    *resilience.UpstreamLimiter
	recorder   *analytics.Recorder
	redactor   *observability.Redactor
	tracer     trace.Tracer
	logger     *slog.Logger
	config     *ClientConfig
	now        func() time.Time

	closed atomic.Bool
}

// New creates a client with the given options. WithProvider is required.
func New(opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Provider == nil {
		return nil, fmt.Errorf("tripmux: a provider is required")
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer(observability.TracerName)
	}

	c := &Client{
		provider:   cfg.Provider,
		cacheLabel: cfg.CacheTypeLabel,
		keys:       cache.NewKeyGenerator("completion"),
		queue:      queue.New(cfg.Queue, cfg.Logger),
		retry:      resilience.NewRetryPolicy(cfg.Retry),
		limiter:    resilience.NewUpstreamLimiter(cfg.RateLimit),
		recorder:   analytics.NewRecorder(cfg.AnalyticsCapacity, analytics.WithClock(cfg.now)),
		redactor:   cfg.Redactor,
		tracer:     cfg.Tracer,
		logger:     cfg.Logger,
		config:     cfg,
		now:        cfg.now,
	}

	if cfg.CacheEnabled {
		c.cache = cfg.Cache
		if c.cache == nil {
			memCfg := cache.DefaultMemoryConfig()
			if cfg.CacheTTL > 0 {
				memCfg.DefaultTTL = cfg.CacheTTL
			}
			c.cache = cache.NewMemoryCache(memCfg, cache.WithClock(cfg.now))
			c.cacheLabel = string(cache.TypeLocal)
		}
	}

	c.retry.OnRetry = func(attempt int, kind llmerrors.Kind, delay time.Duration, err error) {
		c.logger.Warn("retrying upstream call",
			"provider", c.provider.Name(),
			"attempt", attempt,
			"error_kind", kind,
			"delay_ms", delay.Milliseconds(),
			"error", c.redactor.Redact(err.Error()),
		)
		metrics.RecordRetry(c.provider.Name(), string(kind))
	}

	c.logger.Info("tripmux client initialized",
		"provider", c.provider.Name(),
		"cache_enabled", c.cache != nil,
		"cache_backend", c.cacheLabel,
		"max_concurrent", c.queue.Stats().MaxConcurrent,
		"analytics_capacity", c.recorder.Capacity(),
	)
	return c, nil
}

// Complete serves req from the cache when possible, otherwise queues an
// upstream call governed by the retry policy. Every outcome except an
// invalid request is recorded in analytics. Failures are returned as *Error.
func (c *Client) Complete(ctx context.Context, req *Request) (*Response, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if c.closed.Load() {
		return nil, ErrClientClosed
	}

	start := c.now()
	operation := req.Operation
	if operation == "" {
		operation = DefaultOperation
	}
	upstreamReq := c.upstreamRequest(req)
	key := c.cacheKey(req, operation, upstreamReq)

	ctx, span := observability.StartCompletionSpan(ctx, c.tracer, observability.CompletionSpanAttributes{
		Operation: operation,
		Provider:  c.provider.Name(),
		Model:     upstreamReq.Model,
		CacheKey:  key,
	})
	defer span.End()
	logger := observability.WithRequestID(ctx, c.logger)

	entry := analytics.RequestLog{
		Operation:     operation,
		UserID:        req.UserID,
		TripID:        req.TripID,
		MessageLength: utf8.RuneCountInString(req.Prompt),
	}

	if c.cache != nil && !req.NoCache {
		if cached, ok := c.lookup(ctx, logger, key); ok {
			span.SetAttributes(attribute.Bool("ai.cache.hit", true))
			resp := newResponse(cached)
			resp.Cached = true
			resp.DurationMs = c.now().Sub(start).Milliseconds()

			entry.Success = true
			entry.CacheHit = true
			entry.DurationMs = resp.DurationMs
			entry.ResponseLength = intPtr(utf8.RuneCountInString(resp.Content))
			c.record(entry, start)
			return resp, nil
		}
		span.SetAttributes(attribute.Bool("ai.cache.hit", false))
	}

	var attempts atomic.Int32
	handle, err := c.queue.Enqueue(ctx, operation, func(ctx context.Context) (any, error) {
		return c.callUpstream(ctx, upstreamReq, &attempts)
	})
	if err != nil {
		failure := &llmerrors.Error{
			Kind:    llmerrors.KindServiceUnavailable,
			Message: fmt.Sprintf("request not queued: %v", err),
			Err:     err,
		}
		return nil, c.fail(span, logger, entry, start, failure)
	}
	entry.QueueLength = intPtr(handle.QueueLength())

	result, err := handle.Wait(ctx)
	if err != nil && ctx.Err() != nil && c.queue.Remove(handle.ID()) {
		logger.Debug("removed abandoned request from queue", "operation", operation)
	}
	if handle.Admitted() {
		wait := handle.QueueWait()
		metrics.RecordQueueWait(wait)
		entry.QueueWaitMs = int64Ptr(wait.Milliseconds())
	}
	entry.Attempts = int(attempts.Load())

	if err != nil {
		failure := *llmerrors.Wrap(err)
		switch {
		case stderrors.Is(err, queue.ErrQueueClosed):
			failure.Kind = llmerrors.KindServiceUnavailable
		case stderrors.Is(err, queue.ErrTaskPanicked):
			failure.Kind = llmerrors.KindUnknown
		}
		if failure.Attempts == 0 {
			failure.Attempts = entry.Attempts
		}
		return nil, c.fail(span, logger, entry, start, &failure)
	}

	upstream, _ := result.(*provider.Response)
	resp := newResponse(upstream)
	resp.Attempts = entry.Attempts
	resp.DurationMs = c.now().Sub(start).Milliseconds()
	if entry.QueueWaitMs != nil {
		resp.QueueWaitMs = *entry.QueueWaitMs
	}

	if c.cache != nil && !req.NoStore {
		c.store(ctx, logger, key, upstream, req.CacheTTL)
	}

	entry.Success = true
	entry.DurationMs = resp.DurationMs
	entry.ResponseLength = intPtr(utf8.RuneCountInString(resp.Content))
	c.record(entry, start)
	return resp, nil
}

func validateRequest(req *Request) error {
	if req == nil {
		return fmt.Errorf("%w: request is nil", ErrInvalidRequest)
	}
	if req.Prompt == "" {
		return fmt.Errorf("%w: prompt is required", ErrInvalidRequest)
	}
	if req.MaxTokens < 0 {
		return fmt.Errorf("%w: maxTokens must not be negative", ErrInvalidRequest)
	}
	if req.CacheTTL < 0 {
		return fmt.Errorf("%w: cache ttl must not be negative", ErrInvalidRequest)
	}
	return nil
}

func (c *Client) upstreamRequest(req *Request) *provider.Request {
	out := &provider.Request{
		Model:       req.Model,
		System:      req.System,
		Prompt:      req.Prompt,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if out.Model == "" {
		out.Model = c.config.DefaultModel
	}
	if out.MaxTokens == 0 {
		out.MaxTokens = c.config.DefaultMaxTokens
	}
	if out.Temperature == nil && c.config.DefaultTemperature != nil {
		t := *c.config.DefaultTemperature
		out.Temperature = &t
	}
	return out
}

func (c *Client) cacheKey(req *Request, operation string, upstream *provider.Request) string {
	if req.CacheKey != "" {
		return c.keys.Scoped(c.config.CacheNamespace, req.CacheKey)
	}
	return c.keys.Generate(cache.KeyParams{
		Operation:   operation,
		Model:       upstream.Model,
		System:      upstream.System,
		Prompt:      upstream.Prompt,
		Temperature: upstream.Temperature,
		Namespace:   c.config.CacheNamespace,
	})
}

// callUpstream runs on the queue after admission.
func (c *Client) callUpstream(ctx context.Context, req *provider.Request, attempts *atomic.Int32) (*provider.Response, error) {
	var resp *provider.Response
	err := c.retry.Do(ctx, func(ctx context.Context, attempt int) error {
		attempts.Store(int32(attempt)) // #nosec G115 -- bounded by MaxAttempts.
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		ctx, span := observability.StartAttemptSpan(ctx, c.tracer, c.provider.Name(), attempt)
		defer span.End()

		start := time.Now()
		out, err := c.provider.Complete(ctx, req)
		metrics.RecordUpstream(c.provider.Name(), req.Model, time.Since(start))
		if err == nil && out == nil {
			err = llmerrors.New(llmerrors.KindUnknown, "provider returned an empty response")
		}
		if err != nil {
			observability.RecordError(span, err, string(llmerrors.ClassifyError(err)))
			return err
		}
		resp = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) lookup(ctx context.Context, logger *slog.Logger, key string) (*provider.Response, bool) {
	data, err := c.cache.Get(ctx, key)
	if err != nil {
		metrics.RecordCacheError(c.cacheLabel, "get")
		logger.Warn("cache lookup failed, treating as miss", "error", err)
		metrics.RecordCacheLookup(c.cacheLabel, false)
		return nil, false
	}
	if data == nil {
		metrics.RecordCacheLookup(c.cacheLabel, false)
		return nil, false
	}

	var resp provider.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		metrics.RecordCacheError(c.cacheLabel, "decode")
		logger.Warn("discarding undecodable cache entry", "error", err)
		_ = c.cache.Delete(ctx, key)
		metrics.RecordCacheLookup(c.cacheLabel, false)
		return nil, false
	}
	metrics.RecordCacheLookup(c.cacheLabel, true)
	return &resp, true
}

func (c *Client) store(ctx context.Context, logger *slog.Logger, key string, resp *provider.Response, ttl time.Duration) {
	data, err := json.Marshal(resp)
	if err != nil {
		logger.Warn("failed to encode response for cache", "error", err)
		return
	}
	if ttl <= 0 {
		ttl = c.config.CacheTTL
	}
	if err := c.cache.Set(ctx, key, data, ttl); err != nil {
		metrics.RecordCacheError(c.cacheLabel, "set")
		logger.Warn("failed to store response in cache", "error", err)
	}
}

func (c *Client) fail(span trace.Span, logger *slog.Logger, entry analytics.RequestLog, start time.Time, failure *llmerrors.Error) error {
	observability.RecordError(span, failure, string(failure.Kind))

	entry.Success = false
	entry.ErrorKind = failure.Kind
	entry.ErrorMessage = failure.Message
	entry.DurationMs = c.now().Sub(start).Milliseconds()
	if entry.Attempts == 0 {
		entry.Attempts = failure.Attempts
	}
	c.record(entry, start)

	logger.Warn("ai request failed",
		"operation", entry.Operation,
		"error_kind", failure.Kind,
		"attempts", entry.Attempts,
		"duration_ms", entry.DurationMs,
		"error", c.redactor.Redact(failure.Message),
	)
	return failure
}

func (c *Client) record(entry analytics.RequestLog, start time.Time) {
	c.recorder.LogRequest(entry)
	metrics.RecordRequest(entry.Operation, entry.Success, entry.CacheHit, string(entry.ErrorKind), c.now().Sub(start))
	stats := c.queue.Stats()
	metrics.SetQueueStats(stats.QueueLength, stats.ActiveRequests)
}

func newResponse(r *provider.Response) *Response {
	if r == nil {
		return &Response{}
	}
	return &Response{
		Content:      r.Content,
		Model:        r.Model,
		FinishReason: r.FinishReason,
		Usage:        r.Usage,
	}
}

// QueueStats returns a snapshot of the admission queue.
func (c *Client) QueueStats() queue.Stats {
	return c.queue.Stats()
}

// ResetAnalytics clears every recorded outcome and aggregate.
func (c *Client) ResetAnalytics() {
	c.recorder.Reset()
	c.logger.Info("analytics reset")
}

// RetryConfig returns the active retry configuration.
func (c *Client) RetryConfig() resilience.RetryConfig {
	return c.retry.Config()
}

// SetRetryConfig replaces the retry configuration, e.g. after a config reload.
func (c *Client) SetRetryConfig(cfg resilience.RetryConfig) {
	c.retry.SetConfig(cfg)
	applied := c.retry.Config()
	c.logger.Info("retry config updated",
		"max_attempts", applied.MaxAttempts,
		"base_delay", applied.BaseDelay,
		"max_delay", applied.MaxDelay,
	)
}

// Ping checks the cache backend. A client without a cache is always ready.
func (c *Client) Ping(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if c.cache == nil {
		return nil
	}
	return c.cache.Ping(ctx)
}

// Close stops accepting requests, fails still-queued ones, waits for
// admitted work until ctx ends, and releases the cache.
func (c *Client) Close(ctx context.Context) error {
	if c.closed.Swap(true) {
		return nil
	}
	err := c.queue.Close(ctx)
	if c.cache != nil {
		if cerr := c.cache.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }
