package task

import "github.com/aretw0/tasktree/pkg/trace"

// Hooks are optional lifecycle callbacks observed during a run. All fields
// are optional; nil callbacks are skipped. Callbacks run synchronously on
// the executing goroutine and must be safe for concurrent use when the tree
// contains Parallel or Gather nodes.
type Hooks struct {
	// OnNodeEnter fires after a node's trace slot is opened, before it
	// executes.
	OnNodeEnter func(node *trace.Node)

	// OnNodeLeave fires after a node finished, on every path including
	// panics and cancellation.
	OnNodeLeave func(node *trace.Node, res Result)

	// OnTaskFinish fires when a concurrently spawned child (Parallel,
	// Gather, Terminable) completes, after its OnNodeLeave.
	OnTaskFinish func(node *trace.Node, res Result)
}

func (h Hooks) nodeEnter(node *trace.Node) {
	if h.OnNodeEnter != nil {
		h.OnNodeEnter(node)
	}
}

func (h Hooks) nodeLeave(node *trace.Node, res Result) {
	if h.OnNodeLeave != nil {
		h.OnNodeLeave(node, res)
	}
}

func (h Hooks) taskFinish(node *trace.Node, res Result) {
	if h.OnTaskFinish != nil {
		h.OnTaskFinish(node, res)
	}
}

// MergeHooks combines multiple hook sets into one that fires them in order.
func MergeHooks(hooks ...Hooks) Hooks {
	return Hooks{
		OnNodeEnter: func(node *trace.Node) {
			for _, h := range hooks {
				h.nodeEnter(node)
			}
		},
		OnNodeLeave: func(node *trace.Node, res Result) {
			for _, h := range hooks {
				h.nodeLeave(node, res)
			}
		},
		OnTaskFinish: func(node *trace.Node, res Result) {
			for _, h := range hooks {
				h.taskFinish(node, res)
			}
		},
	}
}
