package task

import "context"

type funcNode[B any] struct {
	info
	fn     func(ctx context.Context, b B) (any, error)
	traced func(ctx context.Context, b B, tr *Tracer) (any, error)
}

// Function wraps a plain function as a leaf node. A nil error maps to
// OK(value); an error is logged on the trace and maps to FAIL with a nil
// payload. Returning a Result value passes it through unchanged, which is
// how a function fails with a payload.
func Function[B any](name string, fn func(ctx context.Context, b B) (any, error)) Node[B] {
	return &funcNode[B]{info: info{name: name, kind: "Function"}, fn: fn}
}

// TracedFunction is Function with a recording handle, for leaves that log
// or attach attributes mid-flight.
func TracedFunction[B any](name string, fn func(ctx context.Context, b B, tr *Tracer) (any, error)) Node[B] {
	return &funcNode[B]{info: info{name: name, kind: "TracedFunction"}, traced: fn}
}

func (n *funcNode[B]) validate() error {
	if n.fn == nil && n.traced == nil {
		return buildErrf("nil function")
	}
	return nil
}

func (n *funcNode[B]) Execute(ctx context.Context, tc *Context[B]) Result {
	var (
		v   any
		err error
	)
	if n.traced != nil {
		v, err = n.traced(ctx, tc.Blackboard(), tc.Tracer())
	} else {
		v, err = n.fn(ctx, tc.Blackboard())
	}
	if err != nil {
		tc.Tracer().Logf("%v", err)
		return Fail(nil)
	}
	if r, ok := v.(Result); ok {
		return r
	}
	return OK(v)
}

type logNode[B any] struct {
	info
	msg string
	fn  func(B) string
}

// Log records a fixed message on the trace and succeeds.
func Log[B any](name, msg string) Node[B] {
	return &logNode[B]{info: info{name: name, kind: "Log"}, msg: msg}
}

// LogFunc records a message computed from the blackboard and succeeds.
func LogFunc[B any](name string, fn func(B) string) Node[B] {
	return &logNode[B]{info: info{name: name, kind: "Log"}, fn: fn}
}

func (n *logNode[B]) validate() error {
	if n.msg == "" && n.fn == nil {
		return buildErrf("nil message")
	}
	return nil
}

func (n *logNode[B]) Execute(ctx context.Context, tc *Context[B]) Result {
	msg := n.msg
	if n.fn != nil {
		msg = n.fn(tc.Blackboard())
	}
	tc.Tracer().Log(msg)
	return OK(nil)
}

type todoNode[B any] struct {
	info
}

// Todo marks an unimplemented part of a tree. It logs the gap and succeeds,
// so trees can be sketched top-down and still run end to end.
func Todo[B any](name string) Node[B] {
	return &todoNode[B]{info: info{name: name, kind: "Todo"}}
}

func (n *todoNode[B]) Execute(ctx context.Context, tc *Context[B]) Result {
	tc.Tracer().Logf("TODO: %s", n.name)
	return OK(nil)
}

type showBlackboardNode[B any] struct {
	info
}

// ShowBlackboard snapshots the blackboard into the trace as a rendered
// attribute and succeeds. A debugging aid for inspecting state mid-tree.
func ShowBlackboard[B any](name string) Node[B] {
	return &showBlackboardNode[B]{info: info{name: name, kind: "ShowBlackboard"}}
}

func (n *showBlackboardNode[B]) Execute(ctx context.Context, tc *Context[B]) Result {
	tc.Tracer().SetAttr("blackboard", stringify(tc.Blackboard()))
	return OK(nil)
}

type writeNode[B any] struct {
	info
	field    string
	value    any
	hasValue bool
	set      func(b B, v any)
}

// WriteBlackboard stores the previous sibling's payload into the named
// blackboard field and passes the payload through as its own OK result, so
// writes chain transparently inside a Sequence:
//
//	task.Sequence("fetch",
//	    fetchPage,
//	    task.WriteBlackboard[*Board]("keep", "Page"),
//	    parsePage,
//	)
func WriteBlackboard[B any](name, field string) Node[B] {
	return &writeNode[B]{info: info{name: name, kind: "WriteBlackboard"}, field: field}
}

// WriteBlackboardValue stores an explicit value instead of the previous
// sibling's payload.
func WriteBlackboardValue[B any](name, field string, value any) Node[B] {
	return &writeNode[B]{info: info{name: name, kind: "WriteBlackboard"}, field: field, value: value, hasValue: true}
}

// WriteBlackboardFunc hands the previous sibling's payload to a custom
// setter, for writes that need typing or composition beyond a single field.
func WriteBlackboardFunc[B any](name string, set func(b B, v any)) Node[B] {
	return &writeNode[B]{info: info{name: name, kind: "WriteBlackboard"}, set: set}
}

func (n *writeNode[B]) validate() error {
	if n.field == "" && n.set == nil {
		return buildErrf("needs a field name or a setter")
	}
	return nil
}

func (n *writeNode[B]) Execute(ctx context.Context, tc *Context[B]) Result {
	v := tc.Last().Data
	if n.hasValue {
		v = n.value
	}
	if n.set != nil {
		n.set(tc.Blackboard(), v)
		return OK(v)
	}
	if err := setField(tc.Blackboard(), n.field, v); err != nil {
		tc.Tracer().Logf("%v", err)
		return Fail(nil)
	}
	return OK(v)
}

type assertNode[B any] struct {
	info
	pred func(B) bool
}

// Assert checks a predicate against the blackboard: OK(true) when it holds,
// FAIL(false) when it does not.
func Assert[B any](name string, pred func(B) bool) Node[B] {
	return &assertNode[B]{info: info{name: name, kind: "Assert"}, pred: pred}
}

func (n *assertNode[B]) validate() error {
	if n.pred == nil {
		return buildErrf("nil predicate")
	}
	return nil
}

func (n *assertNode[B]) Execute(ctx context.Context, tc *Context[B]) Result {
	if n.pred(tc.Blackboard()) {
		return OK(true)
	}
	tc.Tracer().Log("assertion failed")
	return Fail(false)
}

type failureNode[B any] struct {
	info
}

// Failure always fails with a nil payload. Useful as a selector's last
// resort or to pin down error-path behavior in tests.
func Failure[B any](name string) Node[B] {
	return &failureNode[B]{info: info{name: name, kind: "Failure"}}
}

func (n *failureNode[B]) Execute(ctx context.Context, tc *Context[B]) Result {
	return Fail(nil)
}

// treeBridge adapts a built tree's root to a Tree-kind node. Gather uses it
// to give every branch a Tree slot in the trace.
type treeBridge[B any] struct {
	info
	root Node[B]
}

func (n *treeBridge[B]) Execute(ctx context.Context, tc *Context[B]) Result {
	return tc.Invoke(ctx, n.root)
}

type subtreeNode[B any] struct {
	info
	tree *Tree[B]
}

// Subtree embeds a built tree as a node, sharing the surrounding blackboard
// scope. An empty name defaults to the tree's name.
func Subtree[B any](name string, tree *Tree[B]) Node[B] {
	if name == "" && tree != nil {
		name = tree.name
	}
	return &subtreeNode[B]{info: info{name: name, kind: "Tree"}, tree: tree}
}

func (n *subtreeNode[B]) validate() error {
	if n.tree == nil {
		return buildErrf("nil subtree")
	}
	return nil
}

func (n *subtreeNode[B]) Execute(ctx context.Context, tc *Context[B]) Result {
	return tc.Invoke(ctx, n.tree.root)
}

type subtreeIntoNode[P, C any] struct {
	info
	tree  *Tree[C]
	build func(P) C
}

// SubtreeInto embeds a tree over a different blackboard type. The build
// function derives the child blackboard from the parent one; the subtree
// runs in a fresh scope and its result propagates unchanged. Copying state
// back up is the caller's business, typically by deriving a child
// blackboard that shares pointers with the parent.
func SubtreeInto[P, C any](name string, tree *Tree[C], build func(P) C) Node[P] {
	if name == "" && tree != nil {
		name = tree.name
	}
	return &subtreeIntoNode[P, C]{info: info{name: name, kind: "Tree"}, tree: tree, build: build}
}

func (n *subtreeIntoNode[P, C]) validate() error {
	if n.tree == nil {
		return buildErrf("nil subtree")
	}
	if n.build == nil {
		return buildErrf("nil blackboard builder")
	}
	return nil
}

func (n *subtreeIntoNode[P, C]) Execute(ctx context.Context, tc *Context[P]) Result {
	child := n.build(tc.Blackboard())
	bctx := &Context[C]{run: tc.run, cursor: tc.cursor}
	release := bctx.EnterScope(child)
	defer release()
	return bctx.Invoke(ctx, n.tree.root)
}
