package observability_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/tasktree/pkg/observability"
	"github.com/aretw0/tasktree/pkg/task"
)

type board struct{}

func TestMetrics_CountsNodesAndTasks(t *testing.T) {
	metrics := observability.NewMetrics("test")
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	tree, err := task.NewTree("counted", task.Sequence("",
		task.Function("one", func(ctx context.Context, b *board) (any, error) { return 1, nil }),
		task.Parallel("fan",
			task.Function("two", func(ctx context.Context, b *board) (any, error) { return 2, nil }),
			task.Failure[*board]("three"),
		),
	))
	if err != nil {
		t.Fatalf("NewTree failed: %v", err)
	}

	report, err := tree.Run(context.Background(), &board{}, task.WithHooks(metrics.Hooks()))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !report.Result.IsFail() {
		t.Fatalf("expected failing run, got %+v", report.Result)
	}

	// One Sequence, one Parallel, two Functions, one Failure.
	assertCounter(t, reg, "test_nodes_total", map[string]string{"kind": "Function", "status": "OK"}, 2)
	assertCounter(t, reg, "test_nodes_total", map[string]string{"kind": "Failure", "status": "FAIL"}, 1)
	assertCounter(t, reg, "test_nodes_total", map[string]string{"kind": "Parallel", "status": "FAIL"}, 1)
	assertCounter(t, reg, "test_spawned_tasks_total", map[string]string{"status": "OK"}, 1)
	assertCounter(t, reg, "test_spawned_tasks_total", map[string]string{"status": "FAIL"}, 1)
}

func TestMetrics_CountsTokensAndCost(t *testing.T) {
	metrics := observability.NewMetrics("")
	reg := prometheus.NewRegistry()
	metrics.MustRegister(reg)

	tree, err := task.NewTree("spend", task.TracedFunction("call",
		func(ctx context.Context, b *board, tr *task.Tracer) (any, error) {
			tr.SetAttr("prompt_tokens", 7)
			tr.SetAttr("completion_tokens", 5)
			tr.AddCost(0.25)
			return "ok", nil
		},
	))
	if err != nil {
		t.Fatalf("NewTree failed: %v", err)
	}
	if _, err := tree.Run(context.Background(), &board{}, task.WithHooks(metrics.Hooks())); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	assertCounter(t, reg, "tasktree_llm_tokens_total", map[string]string{"direction": "prompt"}, 7)
	assertCounter(t, reg, "tasktree_llm_tokens_total", map[string]string{"direction": "completion"}, 5)
	assertCounter(t, reg, "tasktree_llm_cost_usd_total", nil, 0.25)
}

// assertCounter compares one labeled counter series against want.
func assertCounter(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string, want float64) {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			got := map[string]string{}
			for _, lp := range m.GetLabel() {
				got[lp.GetName()] = lp.GetValue()
			}
			match := true
			for k, v := range labels {
				if got[k] != v {
					match = false
					break
				}
			}
			if match {
				if m.GetCounter().GetValue() != want {
					t.Errorf("%s%v = %v, want %v", name, labels, m.GetCounter().GetValue(), want)
				}
				return
			}
		}
	}
	t.Errorf("counter %s%v not found", name, labels)
}
