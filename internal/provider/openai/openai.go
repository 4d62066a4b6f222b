// Package openai implements the OpenAI-compatible chat completions provider.
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/blueberrycongee/tripmux/internal/httputil"
	"github.com/blueberrycongee/tripmux/internal/provider"
	llmerrors "github.com/blueberrycongee/tripmux/pkg/errors"
)

const (
	// ProviderName is the identifier for this provider.
	ProviderName = "openai"

	// DefaultBaseURL is the default OpenAI API endpoint.
	DefaultBaseURL = "https://api.openai.com/v1"

	maxErrorBody = 64 << 10
)

// Config configures the provider.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string // used when a request leaves Model empty
	Timeout time.Duration
	Headers map[string]string
}

// Provider talks to any OpenAI-compatible /chat/completions endpoint.
type Provider struct {
	apiKey  string
	baseURL string
	model   string
	headers map[string]string
	client  *http.Client
}

// New creates a new provider. A nil client uses one with cfg.Timeout.
func New(cfg Config, client *http.Client) *Provider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Provider{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   cfg.Model,
		headers: cfg.Headers,
		client:  client,
	}
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return ProviderName
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (p *Provider) buildRequest(ctx context.Context, req *provider.Request) (*http.Request, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}
	body := chatRequest{
		Model:       model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.System != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.System})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: req.Prompt})

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	for k, v := range p.headers {
		httpReq.Header.Set(k, v)
	}
	return httpReq, nil
}

// Complete performs one chat completion call.
func (p *Provider) Complete(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	httpReq, err := p.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// A truncated error body is still good enough to classify.
		body, _ := httputil.ReadLimitedBody(resp.Body, maxErrorBody)
		return nil, MapError(resp.StatusCode, body)
	}

	body, err := httputil.ReadLimitedBody(resp.Body, httputil.DefaultMaxResponseBodyBytes)
	if errors.Is(err, httputil.ErrBodyTooLarge) {
		return nil, llmerrors.New(llmerrors.KindUnknown, "upstream response exceeds size limit")
	}
	if err != nil {
		return nil, transportError(err)
	}

	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, llmerrors.New(llmerrors.KindUnknown, "decode response: "+err.Error())
	}
	if len(out.Choices) == 0 {
		return nil, llmerrors.New(llmerrors.KindUnknown, "upstream returned no choices")
	}

	return &provider.Response{
		Content:      out.Choices[0].Message.Content,
		Model:        out.Model,
		FinishReason: out.Choices[0].FinishReason,
		Usage: provider.Usage{
			PromptTokens:     out.Usage.PromptTokens,
			CompletionTokens: out.Usage.CompletionTokens,
			TotalTokens:      out.Usage.TotalTokens,
		},
	}, nil
}

// MapError turns an error response into a classified error whose message
// starts with the HTTP status, e.g. "429 Too Many Requests: slow down".
func MapError(statusCode int, body []byte) error {
	message := strings.TrimSpace(string(body))
	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}
	if message == "" {
		message = "no details"
	}

	text := fmt.Sprintf("%d %s: %s", statusCode, http.StatusText(statusCode), message)
	kind := llmerrors.Classify(text)
	if statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden {
		kind = llmerrors.KindAuthError
	}
	return llmerrors.New(kind, text)
}

func transportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &llmerrors.Error{Kind: llmerrors.KindTimeout, Message: "request timeout", Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &llmerrors.Error{Kind: llmerrors.KindTimeout, Message: "request timeout: " + err.Error(), Err: err}
	}
	return &llmerrors.Error{Kind: llmerrors.KindNetworkError, Message: "network error: " + err.Error(), Err: err}
}
