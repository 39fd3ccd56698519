// Package trace records the execution of a task tree as a tree of nodes.
//
// One Node is created per node invocation, keyed under its parent by a
// spawn-order id, so a finished (or in-flight) run can be rendered, persisted
// and inspected without re-executing anything. Nodes are safe for concurrent
// use: sibling invocations write to their own subtree, and registering a new
// child under a shared parent is guarded.
package trace

import (
	"fmt"
	"sync"
	"time"
)

// Result statuses on the wire.
const (
	StatusOK   = "OK"
	StatusFail = "FAIL"
)

// Result is the outcome recorded for a finished node. Data is opaque payload
// carried for consumers; it must be JSON-serializable.
type Result struct {
	Status string `json:"status"`
	Data   any    `json:"data"`
}

// Totals aggregates token usage across a whole run. It is stamped on the root
// node only; per-node counts live in node attributes.
type Totals struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
}

// Add accumulates u into t.
func (t *Totals) Add(u Totals) {
	t.Prompt += u.Prompt
	t.Completion += u.Completion
	t.Total += u.Total
}

// Node is one recorded invocation. All mutators and accessors are safe for
// concurrent use.
type Node struct {
	mu sync.Mutex

	name     string
	kind     string
	path     string
	startAt  time.Time
	endAt    time.Time
	finished bool
	cost     float64
	logs     []string
	attrs    map[string]any
	result   *Result
	children map[string]*Node
	order    []string
	totals   *Totals
}

// Timestamps are truncated to microseconds so the in-memory tree and its wire
// form carry identical precision.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// NewRoot creates the root node of a fresh trace tree.
func NewRoot() *Node {
	return &Node{
		name:     "ROOT",
		kind:     "ROOT",
		startAt:  now(),
		attrs:    map[string]any{},
		children: map[string]*Node{},
	}
}

// fullName is the human-readable label used inside child ids.
func fullName(name, kind string) string {
	if name == "" || name == kind {
		return kind
	}
	return fmt.Sprintf("%s(%s)", kind, name)
}

// NewChild registers and returns a new child slot under n. Ids are assigned in
// spawn order and zero-padded so lexical order equals spawn order regardless
// of completion order.
func (n *Node) NewChild(name, kind string) *Node {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := fmt.Sprintf("%03d:%s", len(n.order), fullName(name, kind))
	child := &Node{
		name:     name,
		kind:     kind,
		path:     n.path + "/" + id,
		startAt:  now(),
		attrs:    map[string]any{},
		children: map[string]*Node{},
	}
	if child.name == "" {
		child.name = kind
	}
	n.children[id] = child
	n.order = append(n.order, id)
	return child
}

// Logf appends a formatted line to the node's log sequence.
func (n *Node) Logf(format string, args ...any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.logs = append(n.logs, fmt.Sprintf(format, args...))
}

// SetAttr records a kind-specific attribute (model name, token counts, cache
// keys, ...).
func (n *Node) SetAttr(key string, value any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.attrs[key] = value
}

// AddCost accrues monetary cost to this node. Rollups across a subtree are a
// read-side computation; the engine stores local cost only.
func (n *Node) AddCost(c float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cost += c
}

// Finish stamps the end timestamp and result. A node is finished exactly once;
// later calls are ignored so a racing decorator cannot clobber the outcome.
func (n *Node) Finish(r Result) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.finished {
		return
	}
	n.endAt = now()
	if n.endAt.Before(n.startAt) {
		n.endAt = n.startAt
	}
	n.result = &r
	n.finished = true
}

// SetTotals stamps the run-wide token rollup. The driver calls this on the
// root node when the run completes.
func (n *Node) SetTotals(t Totals) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.totals = &t
}

// Name returns the node's human-readable name.
func (n *Node) Name() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.name
}

// Kind returns the node's kind tag ("Sequence", "LLM", ...).
func (n *Node) Kind() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.kind
}

// Path returns the unique, deterministic id of this node: the spawn-order ids
// from the root joined with "/".
func (n *Node) Path() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.path
}

// Finished reports whether the invocation has completed.
func (n *Node) Finished() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.finished
}

// StartAt returns the entry timestamp.
func (n *Node) StartAt() time.Time {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.startAt
}

// EndAt returns the exit timestamp, zero until finished.
func (n *Node) EndAt() time.Time {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.endAt
}

// Duration returns the recorded wall time, zero until finished.
func (n *Node) Duration() time.Duration {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.finished {
		return 0
	}
	return n.endAt.Sub(n.startAt)
}

// Cost returns the locally accrued cost.
func (n *Node) Cost() float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.cost
}

// Result returns the recorded outcome, nil until finished.
func (n *Node) Result() *Result {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.result == nil {
		return nil
	}
	r := *n.result
	return &r
}

// Totals returns the root token rollup, nil on non-root nodes and on runs that
// have not finished.
func (n *Node) Totals() *Totals {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.totals == nil {
		return nil
	}
	t := *n.totals
	return &t
}

// Logs returns a copy of the log lines in append order.
func (n *Node) Logs() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.logs))
	copy(out, n.logs)
	return out
}

// Attr returns a single attribute value.
func (n *Node) Attr(key string) (any, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	v, ok := n.attrs[key]
	return v, ok
}

// Attrs returns a copy of the attribute map.
func (n *Node) Attrs() map[string]any {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make(map[string]any, len(n.attrs))
	for k, v := range n.attrs {
		out[k] = v
	}
	return out
}

// Children returns the child nodes in spawn order.
func (n *Node) Children() []*Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*Node, 0, len(n.order))
	for _, id := range n.order {
		out = append(out, n.children[id])
	}
	return out
}

// ChildIDs returns the spawn-order ids of the children.
func (n *Node) ChildIDs() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.order))
	copy(out, n.order)
	return out
}

// Walk visits n and every descendant depth-first in spawn order. Returning
// false from fn skips that node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children() {
		c.Walk(fn)
	}
}
