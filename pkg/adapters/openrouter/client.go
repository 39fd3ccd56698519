// Package openrouter provides a chat-completion client for the OpenRouter
// API. The wire format is OpenAI-compatible, so the client also works
// against any backend speaking that dialect (see WithBaseURL).
package openrouter

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/tasktree/internal/logging"
	"github.com/aretw0/tasktree/pkg/ports"
)

const defaultBaseURL = "https://openrouter.ai/api/v1"

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openrouter: status %d: %s", e.StatusCode, e.Message)
}

// Client implements ports.ChatClient against the OpenRouter chat-completions
// endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
	maxRetries int
	backoff    time.Duration
	pricing    *Pricing
}

type Option func(*Client)

// WithBaseURL points the client at a different OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger routes client logs to l. The default discards them.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithRetries sets how many times transient failures (429, 5xx, network
// errors) are retried. Default 2.
func WithRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithBackoff sets the base backoff between retries. Default 500ms.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

// WithPricing attaches a model price catalog used to derive call costs when
// the backend does not report them.
func WithPricing(p *Pricing) Option {
	return func(c *Client) { c.pricing = p }
}

// New creates a client. The api key may be empty when every request carries
// its own (see ports.ChatRequest.APIKey).
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		logger:     logging.NewNop(),
		maxRetries: 2,
		backoff:    500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete performs a blocking call and returns the full response.
func (c *Client) Complete(ctx context.Context, req ports.ChatRequest) (*ports.ChatResponse, error) {
	resp, err := c.post(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(body.Choices) == 0 {
		return nil, fmt.Errorf("response carried no choices")
	}

	out := &ports.ChatResponse{
		Content:      body.Choices[0].Message.Content,
		FinishReason: body.Choices[0].FinishReason,
	}
	c.fillUsage(out, req.Model, body.Usage)
	return out, nil
}

// Stream performs a streaming call, invoking fn per content chunk, and
// returns the accumulated response after the stream ends.
func (c *Client) Stream(ctx context.Context, req ports.ChatRequest, fn ports.StreamFunc) (*ports.ChatResponse, error) {
	resp, err := c.post(ctx, req, true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var (
		full      strings.Builder
		finish    string
		lastUsage *usage
	)
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		// SSE comments and keep-alives carry no data prefix.
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			break
		}
		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return nil, fmt.Errorf("failed to decode stream chunk: %w", err)
		}
		if chunk.Usage != nil {
			lastUsage = chunk.Usage
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		if choice.FinishReason != nil && *choice.FinishReason != "" {
			finish = *choice.FinishReason
		}
		if choice.Delta.Content == "" {
			continue
		}
		full.WriteString(choice.Delta.Content)
		if fn != nil {
			if err := fn(ports.ChatDelta{Content: choice.Delta.Content, FinishReason: finish}); err != nil {
				return nil, fmt.Errorf("stream aborted: %w", err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("stream read failed: %w", err)
	}

	out := &ports.ChatResponse{Content: full.String(), FinishReason: finish}
	c.fillUsage(out, req.Model, lastUsage)
	return out, nil
}

// post sends the request, retrying transient failures with exponential
// backoff. The caller owns the returned body.
func (c *Client) post(ctx context.Context, req ports.ChatRequest, stream bool) (*http.Response, error) {
	payload, err := json.Marshal(c.requestBody(req, stream))
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	key := req.APIKey
	if key == "" {
		key = c.apiKey
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if key != "" {
			httpReq.Header.Set("Authorization", "Bearer "+key)
		}

		resp, err := c.httpClient.Do(httpReq)
		if err == nil && resp.StatusCode < 300 {
			return resp, nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = apiError(resp)
		}
		if attempt >= c.maxRetries || !retryable(lastErr) {
			return nil, lastErr
		}
		c.logger.Warn("retrying chat call", "attempt", attempt+1, "error", lastErr)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoffFor(c.backoff, attempt+1)):
		}
	}
}

// requestBody assembles the wire payload: reserved fields first, then the
// caller's params, which never override them.
func (c *Client) requestBody(req ports.ChatRequest, stream bool) map[string]any {
	body := map[string]any{
		"model":    modelID(req.Model),
		"messages": req.Messages,
	}
	for k, v := range req.Params {
		switch k {
		case "model", "messages", "stream":
			continue
		}
		body[k] = v
	}
	if stream {
		body["stream"] = true
	}
	// Ask the backend to report cost alongside token usage.
	if _, ok := body["usage"]; !ok {
		body["usage"] = map[string]any{"include": true}
	}
	return body
}

func (c *Client) fillUsage(out *ports.ChatResponse, model string, u *usage) {
	if u == nil {
		return
	}
	out.Usage = ports.TokenUsage{
		Prompt:     u.PromptTokens,
		Completion: u.CompletionTokens,
		Total:      u.TotalTokens,
	}
	if out.Usage.Total == 0 {
		out.Usage.Total = u.PromptTokens + u.CompletionTokens
	}
	out.Cost = u.Cost
	if out.Cost == 0 && c.pricing != nil {
		if cost, ok := c.pricing.Cost(model, out.Usage); ok {
			out.Cost = cost
		}
	}
}

// modelID strips the routing prefix found in model names carried over from
// LiteLLM-style configs.
func modelID(model string) string {
	return strings.TrimPrefix(model, "openrouter/")
}

func apiError(resp *http.Response) error {
	defer resp.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	msg := strings.TrimSpace(string(data))
	if err := json.Unmarshal(data, &body); err == nil && body.Error.Message != "" {
		msg = body.Error.Message
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}

func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	// Network-level failures are worth another try.
	return true
}

// backoffFor grows exponentially with jitter so concurrent branches do not
// retry in lockstep.
func backoffFor(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	exp := base * time.Duration(1<<uint(attempt-1))
	return exp + time.Duration(rand.Int64N(int64(base)))
}

type chatResponse struct {
	Choices []struct {
		Message      ports.Message `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage *usage `json:"usage"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *usage `json:"usage"`
}

type usage struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	Cost             float64 `json:"cost"`
}
