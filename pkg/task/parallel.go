package task

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/aretw0/tasktree/pkg/trace"
)

type parallelNode[B any] struct {
	info
	limit    int
	limited  bool
	children []Node[B]
}

// Parallel runs all children concurrently and waits for every one of them;
// a child failing never interrupts its siblings. With all children OK the
// payload is the list of child payloads in spawn order; otherwise the node
// fails with the list of failing children's payloads.
//
// Each child runs on a forked context, so sibling subtree scopes never
// interfere. Trace slots are registered before spawning, keeping child ids
// deterministic regardless of scheduling.
func Parallel[B any](name string, children ...Node[B]) Node[B] {
	return &parallelNode[B]{info: info{name: name, kind: "Parallel"}, children: children}
}

// ParallelLimit is Parallel with at most limit children executing at once.
// Children above the limit wait for a slot in spawn order.
func ParallelLimit[B any](name string, limit int, children ...Node[B]) Node[B] {
	return &parallelNode[B]{
		info:     info{name: name, kind: "Parallel"},
		limit:    limit,
		limited:  true,
		children: children,
	}
}

func (n *parallelNode[B]) validate() error {
	if n.limited && n.limit < 1 {
		return buildErrf("limit must be at least 1, got %d", n.limit)
	}
	return nil
}

func (n *parallelNode[B]) childNodes() []Node[B] { return n.children }

func (n *parallelNode[B]) Execute(ctx context.Context, tc *Context[B]) Result {
	slots := make([]*trace.Node, len(n.children))
	for i, child := range n.children {
		slots[i] = tc.open(child)
	}

	results := make([]Result, len(n.children))
	g, gctx := errgroup.WithContext(ctx)
	if n.limited {
		g.SetLimit(n.limit)
	}
	for i, child := range n.children {
		fork := tc.fork()
		g.Go(func() error {
			return runSpawned(gctx, fork, child, slots[i], &results[i])
		})
	}
	if err := g.Wait(); err != nil {
		rethrowProgError(err)
	}
	return gatherResults(results)
}

// runSpawned executes one concurrently spawned child in its pre-registered
// slot. Programming errors cross the goroutine boundary as errors so the
// spawning node can rethrow them; sibling branches are cancelled through the
// group context, matching the doomed-run semantics of a programming error.
func runSpawned[B any](ctx context.Context, tc *Context[B], child Node[B], slot *trace.Node, out *Result) (err error) {
	defer func() {
		if r := recover(); r != nil {
			pe, ok := r.(*progError)
			if !ok {
				panic(r)
			}
			err = pe
		}
	}()
	r := tc.runInSlot(ctx, child, slot)
	*out = r
	tc.run.hooks.taskFinish(slot, r)
	return nil
}

// rethrowProgError resumes the programming-error unwind on the spawning
// goroutine after errgroup carried it across.
func rethrowProgError(err error) {
	var pe *progError
	if errors.As(err, &pe) {
		panic(pe)
	}
	panic(err)
}

func gatherResults(results []Result) Result {
	payloads := make([]any, 0, len(results))
	var failed []any
	for _, r := range results {
		payloads = append(payloads, r.Data)
		if r.IsFail() {
			failed = append(failed, r.Data)
		}
	}
	if len(failed) > 0 {
		return Fail(failed)
	}
	return OK(payloads)
}

// GatherSpec configures a Gather node.
type GatherSpec[P, C any] struct {
	// Branches maps the parent blackboard to the subtree and blackboard of
	// every branch to spawn. Both slices must have the same length; an
	// empty pair spawns nothing and gathers OK with an empty payload list.
	Branches func(parent P) (trees []*Tree[C], boards []C, err error)

	// Limit caps how many branches execute at once; 0 means unbounded.
	Limit int
}

type gatherNode[P, C any] struct {
	info
	spec GatherSpec[P, C]
}

// Gather fans out over dynamically built subtrees, each against its own
// child blackboard, and waits for all of them. The payload is the list of
// branch payloads in spawn order, present for failed branches too; the
// status is OK only when every branch succeeded.
//
// A factory error is a domain failure (FAIL, nil payload). Mismatched slice
// lengths from the factory are a programming error and abort the run.
func Gather[P, C any](name string, spec GatherSpec[P, C]) Node[P] {
	return &gatherNode[P, C]{info: info{name: name, kind: "Gather"}, spec: spec}
}

func (n *gatherNode[P, C]) validate() error {
	if n.spec.Branches == nil {
		return buildErrf("nil branch factory")
	}
	if n.spec.Limit < 0 {
		return buildErrf("negative limit %d", n.spec.Limit)
	}
	return nil
}

func (n *gatherNode[P, C]) Execute(ctx context.Context, tc *Context[P]) Result {
	trees, boards, err := n.spec.Branches(tc.Blackboard())
	if err != nil {
		tc.Tracer().Logf("branch factory: %v", err)
		return Fail(nil)
	}
	if len(trees) != len(boards) {
		progErrf("gather %q: %d subtrees for %d blackboards", n.name, len(trees), len(boards))
	}

	bridges := make([]*treeBridge[C], len(trees))
	slots := make([]*trace.Node, len(trees))
	for i, tree := range trees {
		if tree == nil {
			progErrf("gather %q: nil subtree at index %d", n.name, i)
		}
		bridges[i] = &treeBridge[C]{info: info{name: tree.name, kind: "Tree"}, root: tree.root}
		slots[i] = tc.cursor.NewChild(tree.name, "Tree")
	}

	results := make([]Result, len(trees))
	g, gctx := errgroup.WithContext(ctx)
	if n.spec.Limit > 0 {
		g.SetLimit(n.spec.Limit)
	}
	for i := range trees {
		bctx := &Context[C]{run: tc.run, cursor: tc.cursor}
		release := bctx.EnterScope(boards[i])
		g.Go(func() error {
			defer release()
			return runSpawned(gctx, bctx, bridges[i], slots[i], &results[i])
		})
	}
	if err := g.Wait(); err != nil {
		rethrowProgError(err)
	}

	payloads := make([]any, len(results))
	for i, r := range results {
		payloads[i] = r.Data
	}
	return Result{Status: mergeStatus(results), Data: payloads}
}

// mergeStatus folds branch statuses: OK only when every branch is OK.
func mergeStatus(results []Result) Status {
	for _, r := range results {
		if r.IsFail() {
			return StatusFail
		}
	}
	return StatusOK
}
