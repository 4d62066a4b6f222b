package api //nolint:revive // package name is intentional

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueberrycongee/tripmux"
	"github.com/blueberrycongee/tripmux/internal/provider"
	"github.com/blueberrycongee/tripmux/internal/resilience"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func newTestServer(t *testing.T, mock *provider.MockProvider, opts ...tripmux.Option) (*http.ServeMux, *tripmux.Client) {
	t.Helper()
	base := []tripmux.Option{
		tripmux.WithProvider(mock),
		tripmux.WithLogger(quietLogger()),
		tripmux.WithRetry(resilience.RetryConfig{BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, MaxAttempts: 2}),
	}
	client, err := tripmux.New(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close(context.Background()) })

	mux := http.NewServeMux()
	NewHandler(client, quietLogger(), nil).RegisterRoutes(mux)
	return mux, client
}

func do(t *testing.T, mux http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(method, target, reader))
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Error
}

func TestComplete_Success(t *testing.T) {
	mock := provider.NewMockProvider(provider.MockResult{
		Response: &provider.Response{Content: "Visit Sintra on day two.", Model: "gpt-test"},
	})
	mux, _ := newTestServer(t, mock)

	rr := do(t, mux, http.MethodPost, "/v1/ai/complete",
		`{"operation":"itinerary","prompt":"Plan Lisbon","userId":"user-123456789","cacheTtlMs":60000}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var resp tripmux.Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "Visit Sintra on day two.", resp.Content)
	assert.Equal(t, 1, resp.Attempts)
	assert.False(t, resp.Cached)

	reqs := mock.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Plan Lisbon", reqs[0].Prompt)
}

func TestComplete_IgnoresCacheKeyInBody(t *testing.T) {
	mock := provider.NewMockProvider(
		provider.MockResult{Response: &provider.Response{Content: "private trip summary"}},
		provider.MockResult{Response: &provider.Response{Content: "fresh answer"}},
	)
	mux, _ := newTestServer(t, mock)

	rr := do(t, mux, http.MethodPost, "/v1/ai/complete", `{"prompt":"Summarize trip 42","cacheKey":"trip-42"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = do(t, mux, http.MethodPost, "/v1/ai/complete", `{"prompt":"anything","cacheKey":"trip-42"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp tripmux.Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp.Cached)
	assert.Equal(t, "fresh answer", resp.Content)
	assert.Len(t, mock.Requests(), 2)
}

func TestComplete_InvalidBodies(t *testing.T) {
	mux, client := newTestServer(t, provider.NewMockProvider())

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"prompt":`},
		{"missing prompt", `{"operation":"itinerary"}`},
		{"negative ttl", `{"prompt":"x","cacheTtlMs":-5}`},
		{"negative max tokens", `{"prompt":"x","maxTokens":-1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, mux, http.MethodPost, "/v1/ai/complete", tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, typeInvalidRequest, decodeError(t, rr).Type)
		})
	}
	assert.Zero(t, client.Snapshot(0).Metrics.TotalRequests)
}

func TestComplete_BodyTooLarge(t *testing.T) {
	client, err := tripmux.New(tripmux.WithProvider(provider.NewMockProvider()), tripmux.WithLogger(quietLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close(context.Background()) })

	mux := http.NewServeMux()
	NewHandler(client, quietLogger(), &HandlerConfig{MaxBodySize: 16}).RegisterRoutes(mux)

	rr := do(t, mux, http.MethodPost, "/v1/ai/complete", `{"prompt":"this is far too long"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decodeError(t, rr).Message, "too large")
}

func TestComplete_UpstreamErrorsMapToStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    string
		status int
		code   string
	}{
		{"rate limited", "429 Too Many Requests", http.StatusTooManyRequests, "rate_limited"},
		{"unavailable", "503 Service Unavailable", http.StatusServiceUnavailable, "service_unavailable"},
		{"auth", "401 Invalid API key", http.StatusBadGateway, "auth_error"},
		{"unknown", "Something else", http.StatusInternalServerError, "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := provider.NewMockProvider(
				provider.MockResult{Err: errors.New(tt.err)},
				provider.MockResult{Err: errors.New(tt.err)},
			)
			mux, _ := newTestServer(t, mock)

			rr := do(t, mux, http.MethodPost, "/v1/ai/complete", `{"prompt":"hello"}`)
			assert.Equal(t, tt.status, rr.Code)
			detail := decodeError(t, rr)
			assert.Equal(t, tt.code, detail.Code)
			assert.Equal(t, typeUpstream, detail.Type)
		})
	}
}

func TestWriteError_RedactsSecretsAndHidesUnclassified(t *testing.T) {
	h := NewHandler(nil, quietLogger(), nil)

	rr := httptest.NewRecorder()
	h.writeError(rr, errors.New("LEAKME: db password=secret"))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "LEAKME")

	rr = httptest.NewRecorder()
	h.writeError(rr, &tripmux.Error{Kind: "auth_error", Message: "Invalid API key sk-abcdefghijklmnopqrstuvwxyz"})
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.NotContains(t, rr.Body.String(), "sk-abcdefghijklmnopqrstuvwxyz")
}

func TestMetrics_Payload(t *testing.T) {
	mux, _ := newTestServer(t, provider.NewMockProvider())
	for _, p := range []string{"a", "b", "c"} {
		rr := do(t, mux, http.MethodPost, "/v1/ai/complete", `{"prompt":"`+p+`","tripId":"trip-abcdefghijk"}`)
		require.Equal(t, http.StatusOK, rr.Code)
	}

	rr := do(t, mux, http.MethodGet, "/v1/ai/metrics?limit=2", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var payload map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	for _, key := range []string{"overview", "metrics", "errorAnalysis", "performanceAnalysis", "usagePatterns", "queueStats", "insights", "recentLogs"} {
		assert.Contains(t, payload, key)
	}

	var snap tripmux.Snapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	assert.EqualValues(t, 3, snap.Overview.TotalRequests)
	require.Len(t, snap.RecentLogs, 2)
	assert.Equal(t, "trip-abc...", snap.RecentLogs[0].TripID)
	assert.NotContains(t, rr.Body.String(), "trip-abcdefghijk")
}

func TestMetrics_InvalidLimit(t *testing.T) {
	mux, _ := newTestServer(t, provider.NewMockProvider())
	for _, q := range []string{"abc", "0", "-3"} {
		rr := do(t, mux, http.MethodGet, "/v1/ai/metrics?limit="+q, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code, q)
	}
}

func TestResetMetrics(t *testing.T) {
	mux, client := newTestServer(t, provider.NewMockProvider())
	require.Equal(t, http.StatusOK, do(t, mux, http.MethodPost, "/v1/ai/complete", `{"prompt":"x"}`).Code)

	rr := do(t, mux, http.MethodPost, "/v1/ai/metrics/reset", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Zero(t, client.Snapshot(0).Metrics.TotalRequests)

	rr = do(t, mux, http.MethodGet, "/v1/ai/metrics/reset", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestHealthProbes(t *testing.T) {
	mux, client := newTestServer(t, provider.NewMockProvider())

	assert.Equal(t, http.StatusOK, do(t, mux, http.MethodGet, "/health/live", "").Code)
	assert.Equal(t, http.StatusOK, do(t, mux, http.MethodGet, "/health/ready", "").Code)

	require.NoError(t, client.Close(context.Background()))
	assert.Equal(t, http.StatusOK, do(t, mux, http.MethodGet, "/health/live", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, mux, http.MethodGet, "/health/ready", "").Code)

	rr := do(t, mux, http.MethodPost, "/v1/ai/complete", `{"prompt":"x"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
