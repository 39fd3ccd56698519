package task

import "github.com/aretw0/tasktree/pkg/trace"

// Tracer records onto the trace slot of the node currently executing. It is
// handed to TracedFunction bodies and available to custom nodes via
// Context.Tracer.
type Tracer struct {
	node *trace.Node
}

// Log appends a log line to the node's trace slot.
func (t *Tracer) Log(msg string) {
	t.node.Logf("%s", msg)
}

// Logf appends a formatted log line to the node's trace slot.
func (t *Tracer) Logf(format string, args ...any) {
	t.node.Logf(format, args...)
}

// SetAttr sets a structured attribute on the node's trace slot.
func (t *Tracer) SetAttr(key string, value any) {
	t.node.SetAttr(key, value)
}

// AddCost adds a monetary cost (USD) to the node's trace slot.
func (t *Tracer) AddCost(cost float64) {
	t.node.AddCost(cost)
}
