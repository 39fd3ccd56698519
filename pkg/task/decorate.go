package task

import "context"

// forceNode rewrites the child's result: an optional status override and an
// optional payload recomputed from the blackboard.
type forceNode[B any] struct {
	info
	status  Status
	keep    bool
	payload func(B) any
	child   Node[B]
}

// ForceOK runs child and reports OK regardless of its outcome, keeping the
// child's payload.
func ForceOK[B any](name string, child Node[B]) Node[B] {
	return &forceNode[B]{info: info{name: name, kind: "ForceOK"}, status: StatusOK, child: child}
}

// ForceOKWith is ForceOK with the payload replaced by payload(blackboard),
// computed after the child ran.
func ForceOKWith[B any](name string, payload func(B) any, child Node[B]) Node[B] {
	return &forceNode[B]{info: info{name: name, kind: "ForceOK"}, status: StatusOK, payload: payload, child: child}
}

// ForceFail runs child and reports FAIL regardless of its outcome, keeping
// the child's payload.
func ForceFail[B any](name string, child Node[B]) Node[B] {
	return &forceNode[B]{info: info{name: name, kind: "ForceFail"}, status: StatusFail, child: child}
}

// ForceFailWith is ForceFail with the payload replaced by
// payload(blackboard), computed after the child ran.
func ForceFailWith[B any](name string, payload func(B) any, child Node[B]) Node[B] {
	return &forceNode[B]{info: info{name: name, kind: "ForceFail"}, status: StatusFail, payload: payload, child: child}
}

// Return keeps the child's status and replaces the payload with
// payload(blackboard). It is the usual way to surface a blackboard field as
// a subtree's result.
func Return[B any](name string, payload func(B) any, child Node[B]) Node[B] {
	return &forceNode[B]{info: info{name: name, kind: "Return"}, keep: true, payload: payload, child: child}
}

func (n *forceNode[B]) validate() error {
	if n.child == nil {
		return buildErrf("nil child")
	}
	if n.keep && n.payload == nil {
		return buildErrf("nil payload function")
	}
	return nil
}

func (n *forceNode[B]) childNodes() []Node[B] { return []Node[B]{n.child} }

func (n *forceNode[B]) Execute(ctx context.Context, tc *Context[B]) Result {
	r := tc.Invoke(ctx, n.child)
	status := n.status
	if n.keep {
		status = r.Status
	}
	data := r.Data
	if n.payload != nil {
		data = n.payload(tc.Blackboard())
	}
	return Result{Status: status, Data: data}
}

type invertNode[B any] struct {
	info
	child Node[B]
}

// Invert swaps the child's status and keeps its payload.
func Invert[B any](name string, child Node[B]) Node[B] {
	return &invertNode[B]{info: info{name: name, kind: "Invert"}, child: child}
}

func (n *invertNode[B]) validate() error {
	if n.child == nil {
		return buildErrf("nil child")
	}
	return nil
}

func (n *invertNode[B]) childNodes() []Node[B] { return []Node[B]{n.child} }

func (n *invertNode[B]) Execute(ctx context.Context, tc *Context[B]) Result {
	r := tc.Invoke(ctx, n.child)
	if r.IsOK() {
		return Fail(r.Data)
	}
	return OK(r.Data)
}

// WrapFunc is middleware around a single child invocation. It receives the
// blackboard and a next function that runs the child; it may skip next,
// call it once, or rewrite its Result. The context passed to next replaces
// the child's context, so wrappers can attach deadlines or values.
type WrapFunc[B any] func(ctx context.Context, b B, next func(context.Context) Result) Result

type wrapNode[B any] struct {
	info
	fn    WrapFunc[B]
	child Node[B]
}

// Wrap runs fn around child. It is the extension point for cross-cutting
// behavior (throttling, auth refresh, tracing spans) without writing a full
// Node implementation.
func Wrap[B any](name string, fn WrapFunc[B], child Node[B]) Node[B] {
	return &wrapNode[B]{info: info{name: name, kind: "Wrap"}, fn: fn, child: child}
}

func (n *wrapNode[B]) validate() error {
	if n.fn == nil {
		return buildErrf("nil wrap function")
	}
	if n.child == nil {
		return buildErrf("nil child")
	}
	return nil
}

func (n *wrapNode[B]) childNodes() []Node[B] { return []Node[B]{n.child} }

func (n *wrapNode[B]) Execute(ctx context.Context, tc *Context[B]) Result {
	next := func(cctx context.Context) Result {
		return tc.Invoke(cctx, n.child)
	}
	return n.fn(ctx, tc.Blackboard(), next)
}
