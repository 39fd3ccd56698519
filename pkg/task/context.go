package task

import (
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"github.com/aretw0/tasktree/pkg/ports"
	"github.com/aretw0/tasktree/pkg/trace"
)

// runState is shared by every context of one run: the trace tree, run-wide
// collaborators and the token counters.
type runState struct {
	root  *trace.Node
	cfg   *runConfig
	hooks Hooks

	prompt     atomic.Int64
	completion atomic.Int64
	total      atomic.Int64

	randMu sync.Mutex
}

func (rs *runState) addUsage(u ports.TokenUsage) {
	rs.prompt.Add(int64(u.Prompt))
	rs.completion.Add(int64(u.Completion))
	rs.total.Add(int64(u.Total))
}

func (rs *runState) totals() trace.Totals {
	return trace.Totals{
		Prompt:     int(rs.prompt.Load()),
		Completion: int(rs.completion.Load()),
		Total:      int(rs.total.Load()),
	}
}

func (rs *runState) randIntN(n int) int {
	if rs.cfg.rng == nil {
		return rand.IntN(n)
	}
	rs.randMu.Lock()
	defer rs.randMu.Unlock()
	return rs.cfg.rng.IntN(n)
}

func (rs *runState) randFloat() float64 {
	if rs.cfg.rng == nil {
		return rand.Float64()
	}
	rs.randMu.Lock()
	defer rs.randMu.Unlock()
	return rs.cfg.rng.Float64()
}

// Context carries the per-invocation execution state: the blackboard scope
// stack, the trace cursor and the previous sibling's Result. One Context
// exists per top-level run; Subtree and Gather branches get fresh ones that
// share the run's trace tree and counters.
type Context[B any] struct {
	run    *runState
	boards []B
	cursor *trace.Node
	last   Result
}

func newContext[B any](cfg *runConfig) *Context[B] {
	rs := &runState{root: trace.NewRoot(), cfg: cfg, hooks: cfg.hooks}
	return &Context[B]{run: rs, cursor: rs.root}
}

// EnterScope pushes b onto the blackboard stack and returns the release
// function that pops it. Callers must arrange the release on every exit path,
// typically with defer; the engine does so for the run root, Subtree
// factories and Gather branches.
func (tc *Context[B]) EnterScope(b B) func() {
	tc.boards = append(tc.boards, b)
	var once sync.Once
	return func() {
		once.Do(func() {
			tc.boards = tc.boards[:len(tc.boards)-1]
		})
	}
}

// Blackboard returns the active blackboard (top of the scope stack).
func (tc *Context[B]) Blackboard() B {
	if len(tc.boards) == 0 {
		progErrf("no blackboard in scope")
	}
	return tc.boards[len(tc.boards)-1]
}

// Last returns the previous sibling's Result within the current composite
// scope, the zero OK Result when no sibling ran yet.
func (tc *Context[B]) Last() Result {
	return tc.last
}

// Tracer returns the recording handle for the node currently executing.
func (tc *Context[B]) Tracer() *Tracer {
	return &Tracer{node: tc.cursor}
}

// Invoke runs child as the next trace child of the current node and returns
// its Result. It opens the child's trace slot, stamps timestamps, absorbs
// panics into FAIL, fires hooks and threads the previous-sibling Result.
// Composites and decorators (built-in and custom) must go through Invoke for
// every child they run.
func (tc *Context[B]) Invoke(ctx context.Context, child Node[B]) Result {
	return tc.runInSlot(ctx, child, tc.open(child))
}

// open registers the child's trace slot under the current cursor. Slots are
// id-stamped in spawn order; concurrent composites open every slot before
// launching children so ids stay deterministic.
func (tc *Context[B]) open(child Node[B]) *trace.Node {
	i := child.Info()
	return tc.cursor.NewChild(i.Name, i.Kind)
}

// runInSlot executes child inside an already-opened trace slot. The slot is
// finalized on every exit path: normal return, panic, cancellation and
// programming-error unwind.
func (tc *Context[B]) runInSlot(ctx context.Context, child Node[B], node *trace.Node) (res Result) {
	i := child.Info()
	sub := &Context[B]{run: tc.run, boards: tc.boards, cursor: node, last: tc.last}
	tc.run.hooks.nodeEnter(node)

	finalized := false
	finish := func(r Result) {
		if finalized {
			return
		}
		finalized = true
		if ctx.Err() != nil {
			node.SetAttr("cancelled", true)
		}
		node.Finish(r.trace())
		tc.run.hooks.nodeLeave(node, r)
		tc.run.cfg.logger.Debug("node finished",
			"path", node.Path(),
			"kind", i.Kind,
			"status", r.Status.String(),
			"duration_ms", float64(node.Duration().Microseconds())/1000.0,
		)
	}

	defer func() {
		if r := recover(); r != nil {
			if pe, ok := r.(*progError); ok {
				node.Logf("programming error: %v", pe.err)
				finish(Fail(nil))
				panic(pe)
			}
			node.Logf("recovered panic: %v", r)
			res = Fail(nil)
			finish(res)
			tc.last = res
		}
	}()

	res = child.Execute(ctx, sub)
	finish(res)
	tc.last = res
	return res
}

// fork clones the context for a concurrent sibling: same run, same cursor,
// copied scope stack so sibling pushes never alias, and the pre-spawn
// previous Result.
func (tc *Context[B]) fork() *Context[B] {
	boards := make([]B, len(tc.boards))
	copy(boards, tc.boards)
	return &Context[B]{run: tc.run, boards: boards, cursor: tc.cursor, last: tc.last}
}
