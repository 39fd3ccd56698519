/*
Package observability bridges task-tree lifecycle hooks to Prometheus.

Metrics produces a hook set that counts node invocations by kind and status,
observes per-node wall time, tracks spawned concurrent tasks, and accumulates
LLM token usage and spend:

	metrics := observability.NewMetrics("")
	metrics.MustRegister(prometheus.DefaultRegisterer)

	report, err := tree.Run(ctx, board, task.WithHooks(metrics.Hooks()))

Hook callbacks run synchronously on the executing goroutine; the underlying
Prometheus collectors are safe under the engine's Parallel/Gather concurrency.
*/
package observability
