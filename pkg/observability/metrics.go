package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/tasktree/pkg/task"
	"github.com/aretw0/tasktree/pkg/trace"
)

// Metrics exposes tree execution as Prometheus collectors. Attach the hook
// set it produces to a run (or the engine) and register the metrics with a
// registry; every node invocation then feeds the counters.
type Metrics struct {
	nodesTotal   *prometheus.CounterVec
	nodeDuration *prometheus.HistogramVec
	tasksTotal   *prometheus.CounterVec
	tokensTotal  *prometheus.CounterVec
	costTotal    prometheus.Counter
}

// NewMetrics builds the collector set. Namespace defaults to "tasktree" when
// empty.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "tasktree"
	}
	return &Metrics{
		nodesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "nodes_total",
				Help:      "Node invocations by kind and result status.",
			},
			[]string{"kind", "status"},
		),
		nodeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "node_duration_seconds",
				Help:      "Wall time of node invocations by kind.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		tasksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "spawned_tasks_total",
				Help:      "Concurrently spawned child tasks (Parallel, Gather, Terminable) by status.",
			},
			[]string{"status"},
		),
		tokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_tokens_total",
				Help:      "LLM tokens consumed, by direction.",
			},
			[]string{"direction"},
		),
		costTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_cost_usd_total",
				Help:      "Accumulated LLM spend in USD.",
			},
		),
	}
}

// Register registers every collector with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// MustRegister registers every collector with reg, panicking on conflicts.
func (m *Metrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(m.collectors()...)
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.nodesTotal, m.nodeDuration, m.tasksTotal, m.tokensTotal, m.costTotal,
	}
}

// Hooks returns the lifecycle hook set feeding these metrics. Combine with
// other hook sets via task.MergeHooks.
func (m *Metrics) Hooks() task.Hooks {
	return task.Hooks{
		OnNodeLeave: func(node *trace.Node, res task.Result) {
			kind := node.Kind()
			m.nodesTotal.WithLabelValues(kind, res.Status.String()).Inc()
			m.nodeDuration.WithLabelValues(kind).Observe(node.Duration().Seconds())
			if cost := node.Cost(); cost > 0 {
				m.costTotal.Add(cost)
			}
			m.countTokens(node)
		},
		OnTaskFinish: func(node *trace.Node, res task.Result) {
			m.tasksTotal.WithLabelValues(res.Status.String()).Inc()
		},
	}
}

func (m *Metrics) countTokens(node *trace.Node) {
	if v, ok := node.Attr("prompt_tokens"); ok {
		m.tokensTotal.WithLabelValues("prompt").Add(toFloat(v))
	}
	if v, ok := node.Attr("completion_tokens"); ok {
		m.tokensTotal.WithLabelValues("completion").Add(toFloat(v))
	}
}

// toFloat widens the numeric attribute values the engine records.
func toFloat(v any) float64 {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case float64:
		return t
	}
	return 0
}
