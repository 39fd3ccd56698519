package task

import "context"

// WhileSpec configures a While node. At least one of Cond and MaxLoops must
// be set; an unconditional, uncapped loop is rejected at build time.
type WhileSpec[B any] struct {
	// Cond is checked against the blackboard before every iteration; false
	// stops the loop. Nil means loop until the cap.
	Cond func(B) bool

	// MaxLoops caps the number of iterations; 0 means no cap.
	MaxLoops int
}

type whileNode[B any] struct {
	info
	spec  WhileSpec[B]
	child Node[B]
}

// While re-runs child as long as the condition holds and the child keeps
// succeeding. The loop result is the last successful iteration's result; a
// loop that never ran an iteration to success fails with a nil payload. A
// failing iteration stops the loop without failing it, so "work until done
// or stuck" trees read naturally:
//
//	task.While("refine", task.WhileSpec[*Board]{Cond: needsWork, MaxLoops: 5}, step)
func While[B any](name string, spec WhileSpec[B], child Node[B]) Node[B] {
	return &whileNode[B]{info: info{name: name, kind: "While"}, spec: spec, child: child}
}

func (n *whileNode[B]) validate() error {
	if n.spec.Cond == nil && n.spec.MaxLoops == 0 {
		return buildErrf("needs a condition or a loop cap")
	}
	if n.spec.MaxLoops < 0 {
		return buildErrf("negative MaxLoops %d", n.spec.MaxLoops)
	}
	if n.child == nil {
		return buildErrf("nil child")
	}
	return nil
}

func (n *whileNode[B]) childNodes() []Node[B] { return []Node[B]{n.child} }

func (n *whileNode[B]) Execute(ctx context.Context, tc *Context[B]) Result {
	var best *Result
	for loop := 0; n.spec.MaxLoops == 0 || loop < n.spec.MaxLoops; loop++ {
		if ctx.Err() != nil {
			break
		}
		if n.spec.Cond != nil && !n.spec.Cond(tc.Blackboard()) {
			break
		}
		r := tc.Invoke(ctx, n.child)
		if r.IsFail() {
			break
		}
		best = &r
	}
	if best != nil {
		return *best
	}
	return Fail(nil)
}
