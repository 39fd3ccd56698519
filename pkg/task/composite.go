package task

import "context"

type sequenceNode[B any] struct {
	info
	children []Node[B]
}

// Sequence runs children in order and stops at the first FAIL. The sequence
// result is the last child's OK payload; on failure the FAIL carries the
// payload of the last child that succeeded, so downstream nodes still see
// the furthest progress made.
func Sequence[B any](name string, children ...Node[B]) Node[B] {
	return &sequenceNode[B]{info: info{name: name, kind: "Sequence"}, children: children}
}

func (n *sequenceNode[B]) childNodes() []Node[B] { return n.children }

func (n *sequenceNode[B]) Execute(ctx context.Context, tc *Context[B]) Result {
	last := OK(nil)
	for _, child := range n.children {
		if ctx.Err() != nil {
			return Fail(last.Data)
		}
		r := tc.Invoke(ctx, child)
		if r.IsFail() {
			return Fail(last.Data)
		}
		last = r
	}
	return last
}

type selectorNode[B any] struct {
	info
	children []Node[B]
}

// Selector runs children in order until one returns OK and propagates that
// result. When every child fails, the selector fails with the last child's
// payload.
func Selector[B any](name string, children ...Node[B]) Node[B] {
	return &selectorNode[B]{info: info{name: name, kind: "Selector"}, children: children}
}

func (n *selectorNode[B]) childNodes() []Node[B] { return n.children }

func (n *selectorNode[B]) Execute(ctx context.Context, tc *Context[B]) Result {
	last := Fail(nil)
	for _, child := range n.children {
		if ctx.Err() != nil {
			return last
		}
		r := tc.Invoke(ctx, child)
		if r.IsOK() {
			return r
		}
		last = r
	}
	return last
}

type ifNode[B any] struct {
	info
	cond func(B) bool
	then Node[B]
	els  Node[B]
}

// If evaluates cond against the blackboard and runs then only when it holds.
// A false condition skips the branch entirely, leaves no child trace and
// yields OK(nil).
func If[B any](name string, cond func(B) bool, then Node[B]) Node[B] {
	return &ifNode[B]{info: info{name: name, kind: "If"}, cond: cond, then: then}
}

// IfElse evaluates cond against the blackboard and runs exactly one of the
// two branches. The branch result is propagated unchanged.
func IfElse[B any](name string, cond func(B) bool, then, els Node[B]) Node[B] {
	return &ifNode[B]{info: info{name: name, kind: "If"}, cond: cond, then: then, els: els}
}

func (n *ifNode[B]) validate() error {
	if n.cond == nil {
		return buildErrf("nil condition")
	}
	if n.then == nil {
		return buildErrf("nil then branch")
	}
	return nil
}

func (n *ifNode[B]) childNodes() []Node[B] {
	children := []Node[B]{n.then}
	if n.els != nil {
		children = append(children, n.els)
	}
	return children
}

func (n *ifNode[B]) Execute(ctx context.Context, tc *Context[B]) Result {
	ok := n.cond(tc.Blackboard())
	tc.Tracer().Logf("condition=%t", ok)
	if ok {
		return tc.Invoke(ctx, n.then)
	}
	if n.els != nil {
		return tc.Invoke(ctx, n.els)
	}
	return OK(nil)
}
