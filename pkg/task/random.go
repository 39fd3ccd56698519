package task

import "context"

type randomSelectorNode[B any] struct {
	info
	weights  []float64
	children []Node[B]
}

// RandomSelector is a Selector that tries its children in a randomized
// order. With an empty weights slice the order is a uniform shuffle;
// otherwise weights must match the children one-to-one and children are
// drawn without replacement, proportional to weight. A zero-weight child is
// never drawn while positively weighted children remain.
//
// The draw uses the run's randomness source (see WithRand), so orders are
// reproducible under a seeded source.
func RandomSelector[B any](name string, weights []float64, children ...Node[B]) Node[B] {
	return &randomSelectorNode[B]{
		info:     info{name: name, kind: "RandomSelector"},
		weights:  weights,
		children: children,
	}
}

func (n *randomSelectorNode[B]) validate() error {
	if len(n.children) == 0 {
		return buildErrf("needs at least one child")
	}
	if len(n.weights) > 0 && len(n.weights) != len(n.children) {
		return buildErrf("%d weights for %d children", len(n.weights), len(n.children))
	}
	for i, w := range n.weights {
		if w < 0 {
			return buildErrf("negative weight %g at index %d", w, i)
		}
	}
	return nil
}

func (n *randomSelectorNode[B]) childNodes() []Node[B] { return n.children }

func (n *randomSelectorNode[B]) Execute(ctx context.Context, tc *Context[B]) Result {
	order := weightedOrder(tc.run, len(n.children), n.weights)
	last := Fail(nil)
	for _, i := range order {
		if ctx.Err() != nil {
			return last
		}
		r := tc.Invoke(ctx, n.children[i])
		if r.IsOK() {
			return r
		}
		last = r
	}
	return last
}

// weightedOrder draws a try order over n indices. Empty weights mean a
// uniform Fisher-Yates shuffle; otherwise indices are drawn without
// replacement with probability proportional to weight, falling back to
// uniform among the remainder once all remaining weights are zero.
func weightedOrder(rs *runState, n int, weights []float64) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if len(weights) == 0 {
		for i := n - 1; i > 0; i-- {
			j := rs.randIntN(i + 1)
			order[i], order[j] = order[j], order[i]
		}
		return order
	}

	out := make([]int, 0, n)
	remaining := order
	for len(remaining) > 0 {
		total := 0.0
		for _, idx := range remaining {
			total += weights[idx]
		}
		pick := len(remaining) - 1
		if total <= 0 {
			pick = rs.randIntN(len(remaining))
		} else {
			x := rs.randFloat() * total
			for j, idx := range remaining {
				x -= weights[idx]
				if x < 0 {
					pick = j
					break
				}
			}
		}
		out = append(out, remaining[pick])
		remaining = append(remaining[:pick], remaining[pick+1:]...)
	}
	return out
}
