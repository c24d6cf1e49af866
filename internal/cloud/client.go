// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultOpenRouterURL is the base URL for the OpenRouter API.
	DefaultOpenRouterURL = "https://openrouter.ai/api/v1"

	// DefaultTimeout bounds non-streaming requests.
	DefaultTimeout = 120 * time.Second

	// DefaultMaxRetries is the number of attempts for retryable failures.
	DefaultMaxRetries = 3

	// MaxResponseSize caps a non-streaming response body (10MB).
	MaxResponseSize = 10 * 1024 * 1024

	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 8 * time.Second
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotConfigured is returned when no API key has been set.
	ErrNotConfigured = errors.New("openrouter: API key not configured")

	// ErrAuthFailed is returned for 401 responses.
	ErrAuthFailed = errors.New("openrouter: authentication failed")

	// ErrRateLimited is returned for 429 responses.
	ErrRateLimited = errors.New("openrouter: rate limited")

	// ErrModelNotFound is returned when the requested model does not exist.
	ErrModelNotFound = errors.New("openrouter: model not found")

	// ErrInsufficientCredits is returned for 402 responses.
	ErrInsufficientCredits = errors.New("openrouter: insufficient credits")
)

// OpenRouterError is an API error that does not map to a sentinel.
type OpenRouterError struct {
	Code    string
	Message string
	Status  int
}

func (e *OpenRouterError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("openrouter error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("openrouter error %d: %s", e.Status, e.Message)
}

// apiErrorResponse is the error envelope used by the API, both in error
// responses and inside stream chunks.
type apiErrorResponse struct {
	Error *apiError `json:"error"`
}

type apiError struct {
	Code    json.RawMessage `json:"code"`
	Message string          `json:"message"`
}

// codeString renders a code that may arrive as a number or a string.
func (e *apiError) codeString() string {
	return strings.Trim(string(e.Code), `"`)
}

// =============================================================================
// WIRE TYPES
// =============================================================================

// ChatMessage is one message in a chat completion request or response.
type ChatMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Reasoning string `json:"reasoning,omitempty"`
}

// ReasoningConfig asks reasoning models to return their thinking.
type ReasoningConfig struct {
	Effort  string `json:"effort,omitempty"`
	Exclude bool   `json:"exclude"`
}

// ChatRequest is the body of a chat completions call.
type ChatRequest struct {
	Model     string           `json:"model"`
	Messages  []ChatMessage    `json:"messages"`
	Stream    bool             `json:"stream"`
	Reasoning *ReasoningConfig `json:"reasoning,omitempty"`
}

// ChatResponse represents a response from the chat completions endpoint.
type ChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// GetContent returns the content of the first choice, or empty string if none.
func (r *ChatResponse) GetContent() string {
	if len(r.Choices) > 0 {
		return r.Choices[0].Message.Content
	}
	return ""
}

// GetReasoning returns the reasoning of the first choice.
func (r *ChatResponse) GetReasoning() string {
	if len(r.Choices) > 0 {
		return r.Choices[0].Message.Reasoning
	}
	return ""
}

// ModelInfo represents information about an available model.
type ModelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContextSize int    `json:"context_length"`
}

type modelsResponse struct {
	Data []ModelInfo `json:"data"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Config holds the OpenRouter client settings.
type Config struct {
	BaseURL string
	APIKey  string

	// ReasoningEffort is passed through as reasoning.effort ("low",
	// "medium", "high"). Empty leaves the provider default.
	ReasoningEffort string

	// Timeout bounds non-streaming calls. Streams are bounded by the
	// caller's context only.
	Timeout time.Duration

	MaxRetries int
	SiteURL    string
	SiteName   string
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:    DefaultOpenRouterURL,
		Timeout:    DefaultTimeout,
		MaxRetries: DefaultMaxRetries,
		SiteName:   "parley",
	}
}

// OpenRouterClient talks to an OpenAI-compatible chat completions API.
type OpenRouterClient struct {
	apiKey          string
	baseURL         string
	reasoningEffort string
	maxRetries      int
	siteURL         string
	siteName        string

	httpClient   *http.Client
	streamClient *http.Client
}

// NewClient creates a client. Zero fields in cfg take their defaults. An
// empty API key still yields a client; its requests fail with
// ErrNotConfigured.
func NewClient(cfg Config) *OpenRouterClient {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     90 * time.Second,
	}
	return &OpenRouterClient{
		apiKey:          strings.TrimSpace(cfg.APIKey),
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		reasoningEffort: cfg.ReasoningEffort,
		maxRetries:      cfg.MaxRetries,
		siteURL:         cfg.SiteURL,
		siteName:        cfg.SiteName,
		httpClient:      &http.Client{Timeout: cfg.Timeout, Transport: transport},
		streamClient:    &http.Client{Transport: transport},
	}
}

// IsConfigured reports whether an API key is set.
func (c *OpenRouterClient) IsConfigured() bool {
	return c.apiKey != ""
}

// BaseURL returns the API base URL.
func (c *OpenRouterClient) BaseURL() string {
	return c.baseURL
}

// APIKeyMasked returns a display form of the key that never includes any
// part of it.
func (c *OpenRouterClient) APIKeyMasked() string {
	if c.apiKey == "" {
		return "[not set]"
	}
	h := sha256.Sum256([]byte(c.apiKey))
	return fmt.Sprintf("[REDACTED, length=%d, fingerprint=%s]", len(c.apiKey), hex.EncodeToString(h[:4]))
}

func (c *OpenRouterClient) newRequest(model string, messages []ChatMessage, stream bool) ChatRequest {
	req := ChatRequest{Model: model, Messages: messages, Stream: stream}
	if c.reasoningEffort != "" {
		req.Reasoning = &ReasoningConfig{Effort: c.reasoningEffort}
	}
	return req
}

// setHeaders sets the required headers for OpenRouter API requests.
func (c *OpenRouterClient) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "parley")

	if c.siteURL != "" {
		req.Header.Set("HTTP-Referer", c.siteURL)
	}
	if c.siteName != "" {
		req.Header.Set("X-Title", c.siteName)
	}
}

// =============================================================================
// CHAT
// =============================================================================

// Chat performs a non-streaming chat completion, retrying rate limits and
// server errors with exponential backoff.
func (c *OpenRouterClient) Chat(ctx context.Context, model string, messages []ChatMessage) (*ChatResponse, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	reqBody := c.newRequest(model, messages, false)

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.calculateBackoff(attempt)):
			}
		}

		response, err := c.doRequest(ctx, reqBody)
		if err != nil {
			if c.isRetryable(err) {
				lastErr = err
				continue
			}
			return nil, err
		}
		return response, nil
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *OpenRouterClient) doRequest(ctx context.Context, reqBody ChatRequest) (*ChatResponse, error) {
	resp, err := c.post(ctx, c.httpClient, reqBody)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	if err != nil {
		return nil, err
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &chatResp, nil
}

// post sends reqBody to the chat completions endpoint. Non-200 responses
// are consumed and converted to errors.
func (c *OpenRouterClient) post(ctx context.Context, client *http.Client, reqBody ChatRequest) (*http.Response, error) {
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)
	if reqBody.Stream {
		req.Header.Set("Accept", "text/event-stream")
		req.Header.Set("Cache-Control", "no-cache")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			if rl := parseRetryAfter(resp); rl != nil {
				return nil, rl
			}
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
		return nil, handleErrorResponse(resp.StatusCode, body)
	}
	return resp, nil
}

// readResponse reads the response body with a size limit.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) == MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// handleErrorResponse converts HTTP error responses to appropriate Go errors.
func handleErrorResponse(statusCode int, body []byte) error {
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != nil && apiErr.Error.Message != "" {
		switch statusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", ErrAuthFailed, apiErr.Error.Message)
		case http.StatusPaymentRequired:
			return fmt.Errorf("%w: %s", ErrInsufficientCredits, apiErr.Error.Message)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrModelNotFound, apiErr.Error.Message)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %s", ErrRateLimited, apiErr.Error.Message)
		default:
			return &OpenRouterError{
				Code:    apiErr.Error.codeString(),
				Message: apiErr.Error.Message,
				Status:  statusCode,
			}
		}
	}

	switch statusCode {
	case http.StatusUnauthorized:
		return ErrAuthFailed
	case http.StatusPaymentRequired:
		return ErrInsufficientCredits
	case http.StatusNotFound:
		return ErrModelNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return &OpenRouterError{
			Message: strings.TrimSpace(string(body)),
			Status:  statusCode,
		}
	}
}

// isRetryable reports whether err is worth another attempt. Cancellation
// never is.
func (c *OpenRouterClient) isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var orErr *OpenRouterError
	if errors.As(err, &orErr) {
		return orErr.Status >= 500 && orErr.Status < 600
	}
	return false
}

// calculateBackoff returns the delay to wait before the next retry.
func (c *OpenRouterClient) calculateBackoff(attempt int) time.Duration {
	delay := retryBaseDelay * time.Duration(1<<uint(attempt))
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}

// ListModels retrieves the list of available models.
func (c *OpenRouterClient) ListModels(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, handleErrorResponse(resp.StatusCode, body)
	}

	var models modelsResponse
	if err := json.Unmarshal(body, &models); err != nil {
		return nil, fmt.Errorf("failed to parse models: %w", err)
	}
	return models.Data, nil
}
