package task

import (
	"context"
	"time"
)

// RetrySpec configures a Retry node.
type RetrySpec struct {
	// MaxTries is the total number of attempts, at least 1.
	MaxTries int

	// Sleep holds the pauses between attempts: Sleep[0] before the second
	// attempt and so on, the last entry repeating for any further attempts.
	// Empty means no pause.
	Sleep []time.Duration
}

type retryNode[B any] struct {
	info
	spec  RetrySpec
	child Node[B]
}

// Retry re-runs child until it returns OK or the attempt budget is spent,
// pausing between attempts per the spec. Every attempt appears as its own
// trace child. On exhaustion the last attempt's FAIL is returned; pending
// sleeps are abandoned on cancellation.
func Retry[B any](name string, spec RetrySpec, child Node[B]) Node[B] {
	return &retryNode[B]{info: info{name: name, kind: "Retry"}, spec: spec, child: child}
}

func (n *retryNode[B]) validate() error {
	if n.spec.MaxTries < 1 {
		return buildErrf("MaxTries must be at least 1, got %d", n.spec.MaxTries)
	}
	for i, d := range n.spec.Sleep {
		if d < 0 {
			return buildErrf("negative sleep %s at index %d", d, i)
		}
	}
	if n.child == nil {
		return buildErrf("nil child")
	}
	return nil
}

func (n *retryNode[B]) childNodes() []Node[B] { return []Node[B]{n.child} }

func (n *retryNode[B]) Execute(ctx context.Context, tc *Context[B]) Result {
	last := Fail(nil)
	for attempt := 0; attempt < n.spec.MaxTries; attempt++ {
		if attempt > 0 {
			if d := n.sleepFor(attempt - 1); d > 0 {
				select {
				case <-ctx.Done():
					return last
				case <-time.After(d):
				}
			}
		}
		if ctx.Err() != nil {
			return last
		}
		r := tc.Invoke(ctx, n.child)
		if r.IsOK() {
			return r
		}
		last = r
	}
	return last
}

func (n *retryNode[B]) sleepFor(i int) time.Duration {
	if len(n.spec.Sleep) == 0 {
		return 0
	}
	if i >= len(n.spec.Sleep) {
		i = len(n.spec.Sleep) - 1
	}
	return n.spec.Sleep[i]
}
