/*
Package task implements a composable task tree: a behavior-tree execution
engine with typed blackboard state, structured tracing and cooperative
cancellation.

A tree is built once from nodes and validated by NewTree; configuration
mistakes surface there, never mid-run. Execution threads a Result (OK or
FAIL with an opaque payload) through the tree: composites route on the
status, leaves produce payloads, and the blackboard carries shared state
that nodes read and write.

# Building Trees

Nodes are plain values parameterized by the blackboard type:

	type Board struct {
	    Query   string
	    Results []string
	}

	tree, err := task.NewTree("research",
	    task.Sequence("",
	        task.Function("search", search),
	        task.WriteBlackboard[*Board]("keep", "Results"),
	        task.If("found", task.Field[*Board]("Results"),
	            task.Function("summarize", summarize),
	        ),
	    ),
	)

# Running

Run executes the tree against a blackboard and returns a Report with the
root Result, the full trace tree and the run's token totals:

	report, err := tree.Run(ctx, &Board{Query: "go generics"},
	    task.WithLogger(logger),
	    task.WithKVStore(store),
	)

Collaborators (key-value store, chat backend) are injected per run or per
node; nothing is global. Trees are immutable and safe for concurrent runs.

# Results and Failure

FAIL is a routing signal, not an error: selectors try alternatives,
sequences stop, Retry tries again. Go errors appear in exactly two places:
tree construction (wrapped in ErrInvalidTree) and programming errors
surfaced by Run (missing collaborator, factory arity mismatch). Panics in
user callbacks fail the node and are recorded on its trace slot.

# Tracing

Every invocation gets a slot in the trace tree (see the trace package) with
timing, logs, attributes and the final result. Traces serialize to JSON and
round-trip losslessly, including for runs still in flight.
*/
package task
