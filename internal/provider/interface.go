// Package provider defines the upstream AI completion provider used by the
// orchestration layer. Providers surface failures as errors whose messages
// carry enough detail (HTTP status, "timeout", "network") to be classified.
package provider

import (
	"context"
)

// Provider performs a single completion call. It must not retry on its own;
// retries are governed by the caller's policy.
type Provider interface {
	// Name returns the provider identifier (e.g., "openai", "mock").
	Name() string

	// Complete sends req upstream and returns the response or an error.
	Complete(ctx context.Context, req *Request) (*Response, error)
}

// Request is a provider-neutral completion request.
type Request struct {
	Model       string   `json:"model,omitempty"`
	System      string   `json:"system,omitempty"`
	Prompt      string   `json:"prompt"`
	MaxTokens   int      `json:"maxTokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// Usage reports token consumption.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// Response is a provider-neutral completion result.
type Response struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	FinishReason string `json:"finishReason,omitempty"`
	Usage        Usage  `json:"usage"`
}
