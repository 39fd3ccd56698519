package task

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/aretw0/tasktree/pkg/ports"
)

// CacheSpec configures a Cacher node.
type CacheSpec[B any] struct {
	// Key maps the blackboard to the cache key.
	Key func(B) string

	// TTL bounds the entry's life in the store; 0 stores without expiry.
	TTL time.Duration

	// Validator produces a stamp stored alongside the entry; a hit requires
	// the stored stamp to equal the current one, so a changed input
	// invalidates the cache without touching the key. Nil means entries
	// never go stale.
	Validator func(B) string

	// Store overrides the run's key-value store (see WithKVStore).
	Store ports.KVStore
}

// cacheEntry is the stored wire form of a cached payload.
type cacheEntry struct {
	Stamp string `json:"stamp"`
	Data  any    `json:"data"`
}

type cacheNode[B any] struct {
	info
	spec  CacheSpec[B]
	child Node[B]
}

// Cache memoizes its child's OK payload in a key-value store. On a valid
// hit the child does not run and leaves no trace; on a miss the child runs
// and its payload is stored when it succeeds. FAIL results are never
// cached. Store errors are logged and degrade to a miss, so an unavailable
// store costs performance, not correctness.
//
// Running without a store configured on the node or the run is a
// programming error.
func Cache[B any](name string, spec CacheSpec[B], child Node[B]) Node[B] {
	return &cacheNode[B]{info: info{name: name, kind: "Cacher"}, spec: spec, child: child}
}

func (n *cacheNode[B]) validate() error {
	if n.spec.Key == nil {
		return buildErrf("nil key function")
	}
	if n.spec.TTL < 0 {
		return buildErrf("negative TTL %s", n.spec.TTL)
	}
	if n.child == nil {
		return buildErrf("nil child")
	}
	return nil
}

func (n *cacheNode[B]) childNodes() []Node[B] { return []Node[B]{n.child} }

func (n *cacheNode[B]) Execute(ctx context.Context, tc *Context[B]) Result {
	store := n.spec.Store
	if store == nil {
		store = tc.run.cfg.kv
	}
	if store == nil {
		progErrf("cacher %q: %w", n.name, ErrNoKVStore)
	}
	board := tc.Blackboard()
	key := n.spec.Key(board)
	stamp := ""
	if n.spec.Validator != nil {
		stamp = n.spec.Validator(board)
	}

	if data, ok := n.lookup(ctx, tc, store, key, stamp); ok {
		tc.Tracer().SetAttr("cache", "hit")
		return OK(data)
	}
	tc.Tracer().SetAttr("cache", "miss")

	r := tc.Invoke(ctx, n.child)
	if r.IsOK() {
		n.put(ctx, tc, store, key, stamp, r.Data)
	}
	return r
}

func (n *cacheNode[B]) lookup(ctx context.Context, tc *Context[B], store ports.KVStore, key, stamp string) (any, bool) {
	raw, found, err := store.Get(ctx, key)
	if err != nil {
		tc.run.cfg.logger.Warn("cache read failed", "key", key, "error", err)
		return nil, false
	}
	if !found {
		return nil, false
	}
	var entry cacheEntry
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&entry); err != nil {
		tc.run.cfg.logger.Warn("cache entry corrupt", "key", key, "error", err)
		return nil, false
	}
	if entry.Stamp != stamp {
		return nil, false
	}
	return normalizeNumbers(entry.Data), true
}

func (n *cacheNode[B]) put(ctx context.Context, tc *Context[B], store ports.KVStore, key, stamp string, payload any) {
	data, err := json.Marshal(cacheEntry{Stamp: stamp, Data: sanitizePayload(payload)})
	if err != nil {
		tc.run.cfg.logger.Warn("cache entry not serializable", "key", key, "error", err)
		return
	}
	if err := store.Set(ctx, key, string(data), n.spec.TTL); err != nil {
		tc.run.cfg.logger.Warn("cache write failed", "key", key, "error", err)
	}
}
