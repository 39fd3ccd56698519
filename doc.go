/*
Package tasktree is an asynchronous behavior-tree engine for orchestrating
LLM calls, I/O and plain functions as a single declarative tree.

A tree is built once from leaves (functions, LLM calls, blackboard writes),
composites (Sequence, Selector, Parallel, Gather) and decorators (Retry,
Timeout, Cacher, Terminable, ...), then run many times against a typed
blackboard. Every run produces a Result (OK or FAIL plus a payload) and a
full execution trace: per-node timings, logs, attributes, token usage and
cost, serializable to JSON for the browser viewer.

# Concept

Control flow is data. Instead of hand-writing retry loops, fan-outs and
fallbacks around each LLM call, you describe them as nodes and let the
engine schedule, trace and cancel them. Failure is a value (Result), not an
error: a FAIL propagates through composites by their semantics (Sequence
stops, Selector moves on, Parallel waits for all), while real programming
errors surface as Go errors from Run.

# Key Features

  - Typed blackboard: the shared state is a user struct, scoped per subtree.
  - Deterministic traces: spawn-ordered child ids, byte-stable JSON.
  - Cooperative cancellation: context.Context everywhere, prompt unwinding.
  - Explicit collaborators: stores, chat backends, hooks and loggers are
    injected, never global.

# Usage

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/aretw0/tasktree"
		"github.com/aretw0/tasktree/pkg/task"
	)

	type Board struct {
		Topic  string
		Result string
	}

	func main() {
		root := task.Sequence[*Board]("research",
			task.Function("fetch", func(ctx context.Context, b *Board) (any, error) {
				return "notes on " + b.Topic, nil
			}),
			task.WriteBlackboard[*Board]("keep", "Result"),
		)
		tree, err := task.NewTree("research", root)
		if err != nil {
			log.Fatal(err)
		}

		eng := tasktree.New()
		report, err := tasktree.Run(context.Background(), eng, tree, &Board{Topic: "go"})
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(report.Result.Status, report.Result.Data)
	}

The pkg/task package documents the node catalog; pkg/adapters holds
ready-made collaborators (Redis and in-memory stores, an OpenRouter chat
client, a file trace store and an HTTP trace API).
*/
package tasktree
