package provider

import (
	"context"
	"sync"
	"time"
)

// MockResult is one scripted outcome of MockProvider.
type MockResult struct {
	Response *Response
	Err      error
	Delay    time.Duration
}

// MockProvider replays scripted results in order, then falls back to
// echoing the prompt. It is safe for concurrent use.
type MockProvider struct {
	name string

	mu       sync.Mutex
	script   []MockResult
	calls    int
	requests []Request

	// Delay is applied to fallback responses.
	Delay time.Duration
}

// NewMockProvider creates a mock that returns results in order.
func NewMockProvider(results ...MockResult) *MockProvider {
	return &MockProvider{name: "mock", script: results}
}

// Name returns "mock".
func (m *MockProvider) Name() string { return m.name }

// Push appends scripted results.
func (m *MockProvider) Push(results ...MockResult) {
	m.mu.Lock()
	m.script = append(m.script, results...)
	m.mu.Unlock()
}

// Calls returns how many times Complete was invoked.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Requests returns copies of every request received.
func (m *MockProvider) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// Complete returns the next scripted result.
func (m *MockProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	m.mu.Lock()
	m.calls++
	m.requests = append(m.requests, *req)
	next := MockResult{
		Response: &Response{Content: "mock: " + req.Prompt, Model: req.Model, FinishReason: "stop"},
		Delay:    m.Delay,
	}
	if len(m.script) > 0 {
		next = m.script[0]
		m.script = m.script[1:]
	}
	m.mu.Unlock()

	if next.Delay > 0 {
		timer := time.NewTimer(next.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if next.Err != nil {
		return nil, next.Err
	}
	resp := *next.Response
	return &resp, nil
}
