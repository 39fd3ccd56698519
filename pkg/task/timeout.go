package task

import (
	"context"
	"errors"
	"time"
)

type timeoutNode[B any] struct {
	info
	timeout  time.Duration
	children []Node[B]
}

// Timeout runs its first child under a deadline. Cancellation is
// cooperative: the child observes it through its context, and the timeout
// resolves when the child returns. On expiry the optional second child runs
// as a fallback, under the surrounding context; without one the node fails
// with a nil payload. A child that returns OK keeps its result even when
// the deadline raced its completion.
func Timeout[B any](name string, d time.Duration, children ...Node[B]) Node[B] {
	return &timeoutNode[B]{info: info{name: name, kind: "Timeout"}, timeout: d, children: children}
}

func (n *timeoutNode[B]) validate() error {
	if n.timeout <= 0 {
		return buildErrf("timeout must be positive, got %s", n.timeout)
	}
	if len(n.children) < 1 || len(n.children) > 2 {
		return buildErrf("takes one child and an optional fallback, got %d children", len(n.children))
	}
	return nil
}

func (n *timeoutNode[B]) childNodes() []Node[B] { return n.children }

func (n *timeoutNode[B]) Execute(ctx context.Context, tc *Context[B]) Result {
	cctx, cancel := context.WithTimeout(ctx, n.timeout)
	r := tc.Invoke(cctx, n.children[0])
	// Read before cancel: afterwards cctx.Err is non-nil on every path.
	timedOut := errors.Is(cctx.Err(), context.DeadlineExceeded)
	cancel()

	if r.IsOK() {
		return r
	}
	// A FAIL only counts as a timeout when the deadline expired and the
	// surrounding context is still live.
	if !timedOut || ctx.Err() != nil {
		return r
	}
	tc.Tracer().Logf("timed out after %s", n.timeout)
	if len(n.children) > 1 {
		return tc.Invoke(ctx, n.children[1])
	}
	return Fail(nil)
}
