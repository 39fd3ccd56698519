package ports

import "context"

// Message is one entry of a chat conversation sent to the LLM backend.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TokenUsage is the backend-reported token accounting for one call.
type TokenUsage struct {
	Prompt     int `json:"prompt_tokens"`
	Completion int `json:"completion_tokens"`
	Total      int `json:"total_tokens"`
}

// ChatRequest describes one LLM backend call.
type ChatRequest struct {
	Model    string
	Messages []Message
	APIKey   string

	// Params are passed through to the backend verbatim (temperature,
	// max_tokens, top_p, ...).
	Params map[string]any
}

// ChatDelta is one incremental chunk of a streamed response.
type ChatDelta struct {
	Content      string
	FinishReason string
}

// ChatResponse is the final outcome of a call, streamed or not.
type ChatResponse struct {
	Content      string
	FinishReason string
	Usage        TokenUsage

	// Cost is the backend-reported or catalog-derived cost in USD for this
	// call; zero when unknown.
	Cost float64
}

// StreamFunc receives incremental chunks during Stream. Returning an error
// aborts the stream and fails the call.
type StreamFunc func(ChatDelta) error

// ChatClient is the LLM backend collaborator. Implementations own their retry
// policy; a returned error means the call failed for good.
type ChatClient interface {
	// Complete performs a blocking call and returns the full response.
	Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// Stream performs a streaming call, invoking fn per chunk, and returns
	// the accumulated response after the stream ends.
	Stream(ctx context.Context, req ChatRequest, fn StreamFunc) (*ChatResponse, error)
}
