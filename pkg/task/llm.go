package task

import (
	"context"
	"strings"

	"github.com/aretw0/tasktree/pkg/ports"
)

// LLMSpec configures an LLM node.
type LLMSpec[B any] struct {
	// Model is the backend model identifier. Required.
	Model string

	// Messages builds the conversation from the blackboard. Exactly one of
	// Messages and MessageList must be set.
	Messages func(B) []ports.Message

	// MessageList is a fixed conversation.
	MessageList []ports.Message

	// Stream requests incremental delivery from the backend.
	Stream bool

	// OnDelta observes streamed chunks: full is the text accumulated so
	// far, delta the new chunk. It is called one final time with finished
	// true, an empty delta and the backend's finish reason. Requires
	// Stream.
	OnDelta func(b B, full, delta string, finished bool, reason string)

	// APIKey authenticates the request; APIKeyFunc derives it from the
	// blackboard instead. At most one may be set. The key never appears in
	// traces.
	APIKey     string
	APIKeyFunc func(B) string

	// Params are passed through to the backend (temperature, max_tokens,
	// ...).
	Params map[string]any

	// Client overrides the run's chat client (see WithChatClient).
	Client ports.ChatClient
}

type llmNode[B any] struct {
	info
	spec LLMSpec[B]
}

// LLM calls a chat-completion backend and succeeds with the response text
// as payload. Token usage, cost and the finish reason are recorded on the
// trace slot and rolled up run-wide; the API key is masked. A backend error
// is a domain failure carrying the error text, so selectors can route
// around a flaky model.
//
// Running without a client configured on the node or the run is a
// programming error.
func LLM[B any](name string, spec LLMSpec[B]) Node[B] {
	return &llmNode[B]{info: info{name: name, kind: "LLM"}, spec: spec}
}

func (n *llmNode[B]) validate() error {
	if n.spec.Model == "" {
		return buildErrf("missing model")
	}
	if (n.spec.Messages == nil) == (n.spec.MessageList == nil) {
		return buildErrf("needs exactly one of Messages and MessageList")
	}
	if n.spec.OnDelta != nil && !n.spec.Stream {
		return buildErrf("OnDelta requires Stream")
	}
	if n.spec.APIKey != "" && n.spec.APIKeyFunc != nil {
		return buildErrf("APIKey and APIKeyFunc are mutually exclusive")
	}
	return nil
}

func (n *llmNode[B]) Execute(ctx context.Context, tc *Context[B]) Result {
	client := n.spec.Client
	if client == nil {
		client = tc.run.cfg.chat
	}
	if client == nil {
		progErrf("llm %q: %w", n.name, ErrNoChatClient)
	}

	b := tc.Blackboard()
	msgs := n.spec.MessageList
	if n.spec.Messages != nil {
		msgs = n.spec.Messages(b)
	}
	apiKey := n.spec.APIKey
	if n.spec.APIKeyFunc != nil {
		apiKey = n.spec.APIKeyFunc(b)
	}

	tr := tc.Tracer()
	tr.SetAttr("model", n.spec.Model)
	tr.SetAttr("stream", n.spec.Stream)
	if apiKey != "" {
		tr.SetAttr("api_key", "***")
	}

	req := ports.ChatRequest{
		Model:    n.spec.Model,
		Messages: msgs,
		APIKey:   apiKey,
		Params:   n.spec.Params,
	}

	var (
		resp *ports.ChatResponse
		err  error
	)
	if n.spec.Stream {
		var full strings.Builder
		resp, err = client.Stream(ctx, req, func(d ports.ChatDelta) error {
			if d.Content != "" {
				full.WriteString(d.Content)
				if n.spec.OnDelta != nil {
					n.spec.OnDelta(b, full.String(), d.Content, false, d.FinishReason)
				}
			}
			return nil
		})
		if err == nil && n.spec.OnDelta != nil {
			n.spec.OnDelta(b, resp.Content, "", true, resp.FinishReason)
		}
	} else {
		resp, err = client.Complete(ctx, req)
	}
	if err != nil {
		tr.Logf("chat backend: %v", err)
		return Fail(err.Error())
	}

	u := resp.Usage
	tr.SetAttr("tokens", map[string]int{
		"prompt":     u.Prompt,
		"completion": u.Completion,
		"total":      u.Total,
	})
	tr.SetAttr("prompt_tokens", u.Prompt)
	tr.SetAttr("completion_tokens", u.Completion)
	tr.SetAttr("total_tokens", u.Total)
	if resp.FinishReason != "" {
		tr.SetAttr("finish_reason", resp.FinishReason)
	}
	if resp.Cost > 0 {
		tr.AddCost(resp.Cost)
	}
	tc.run.addUsage(u)
	return OK(resp.Content)
}
