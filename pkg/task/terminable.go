package task

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/aretw0/tasktree/pkg/ports"
)

// TerminableSpec configures a Terminable node.
type TerminableSpec[B any] struct {
	// Key maps the blackboard to the kill-switch key polled in the store.
	// The subtree is cancelled as soon as any value exists under the key.
	Key func(B) string

	// Interval is the polling cadence. 0 means 100ms.
	Interval time.Duration

	// Store overrides the run's key-value store (see WithKVStore).
	Store ports.KVStore
}

type terminableNode[B any] struct {
	info
	spec     TerminableSpec[B]
	children []Node[B]
}

// Terminable runs its first child while polling a key-value store for an
// external termination signal. When the signal appears the child's context
// is cancelled and, once the child returns, the optional second child runs
// as a fallback; without one the node fails with a nil payload. Poll errors
// are logged and ignored, so a flaky store never terminates a run by
// accident.
//
// Running without a store configured on the node or the run is a
// programming error.
func Terminable[B any](name string, spec TerminableSpec[B], children ...Node[B]) Node[B] {
	return &terminableNode[B]{info: info{name: name, kind: "Terminable"}, spec: spec, children: children}
}

func (n *terminableNode[B]) validate() error {
	if n.spec.Key == nil {
		return buildErrf("nil key function")
	}
	if n.spec.Interval < 0 {
		return buildErrf("negative interval %s", n.spec.Interval)
	}
	if len(n.children) < 1 || len(n.children) > 2 {
		return buildErrf("takes one child and an optional fallback, got %d children", len(n.children))
	}
	return nil
}

func (n *terminableNode[B]) childNodes() []Node[B] { return n.children }

func (n *terminableNode[B]) Execute(ctx context.Context, tc *Context[B]) Result {
	store := n.spec.Store
	if store == nil {
		store = tc.run.cfg.kv
	}
	if store == nil {
		progErrf("terminable %q: %w", n.name, ErrNoKVStore)
	}
	key := n.spec.Key(tc.Blackboard())
	interval := n.spec.Interval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var terminated atomic.Bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-cctx.Done():
				return
			case <-ticker.C:
				exists, err := store.Exists(cctx, key)
				if cctx.Err() != nil {
					return
				}
				if err != nil {
					tc.run.cfg.logger.Warn("termination poll failed", "key", key, "error", err)
					continue
				}
				if exists {
					terminated.Store(true)
					cancel()
					return
				}
			}
		}
	}()

	child := n.children[0]
	slot := tc.open(child)
	r := tc.runInSlot(cctx, child, slot)
	tc.run.hooks.taskFinish(slot, r)
	cancel()
	<-done

	if terminated.Load() && ctx.Err() == nil {
		tc.Tracer().Logf("terminated by signal %q", key)
		if len(n.children) > 1 {
			return tc.Invoke(ctx, n.children[1])
		}
		return Fail(nil)
	}
	return r
}
