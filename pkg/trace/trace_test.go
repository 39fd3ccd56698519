package trace_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/tasktree/pkg/trace"
)

func TestNewChild_IDsCarryFullName(t *testing.T) {
	root := trace.NewRoot()

	root.NewChild("fetch", "Function")
	root.NewChild("", "Sequence")
	root.NewChild("Retry", "Retry")

	assert.Equal(t, []string{
		"000:Function(fetch)",
		"001:Sequence",
		"002:Retry",
	}, root.ChildIDs())

	// An anonymous child takes its kind as name.
	assert.Equal(t, "Sequence", root.Children()[1].Name())
}

func TestNewChild_PathsNestFromRoot(t *testing.T) {
	root := trace.NewRoot()
	a := root.NewChild("a", "Sequence")
	b := a.NewChild("b", "Function")

	assert.Equal(t, "", root.Path())
	assert.Equal(t, "/000:Sequence(a)", a.Path())
	assert.Equal(t, "/000:Sequence(a)/000:Function(b)", b.Path())
}

func TestNewChild_ConcurrentSpawnsGetUniqueIDs(t *testing.T) {
	root := trace.NewRoot()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			root.NewChild("worker", "Function")
		}()
	}
	wg.Wait()

	ids := root.ChildIDs()
	require.Len(t, ids, 50)
	seen := map[string]bool{}
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	// Zero-padded ids keep lexical order equal to spawn order.
	assert.Equal(t, "000:Function(worker)", ids[0])
	assert.Equal(t, "049:Function(worker)", ids[49])
}

func TestFinish_FirstResultWins(t *testing.T) {
	n := trace.NewRoot().NewChild("n", "Function")

	assert.False(t, n.Finished())
	assert.Nil(t, n.Result())

	n.Finish(trace.Result{Status: trace.StatusOK, Data: 1})
	n.Finish(trace.Result{Status: trace.StatusFail, Data: 2})

	assert.True(t, n.Finished())
	res := n.Result()
	require.NotNil(t, res)
	assert.Equal(t, trace.StatusOK, res.Status)
	assert.Equal(t, 1, res.Data)
	assert.GreaterOrEqual(t, n.Duration(), time.Duration(0))
	assert.False(t, n.EndAt().Before(n.StartAt()))
}

func TestNode_AttrsAndLogsAreCopies(t *testing.T) {
	n := trace.NewRoot()
	n.SetAttr("k", "v")
	n.Logf("line %d", 1)
	n.Logf("line %d", 2)

	attrs := n.Attrs()
	attrs["k"] = "mutated"
	v, ok := n.Attr("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	logs := n.Logs()
	logs[0] = "mutated"
	assert.Equal(t, []string{"line 1", "line 2"}, n.Logs())

	_, ok = n.Attr("absent")
	assert.False(t, ok)
}

func TestNode_CostAccrues(t *testing.T) {
	n := trace.NewRoot()
	n.AddCost(0.1)
	n.AddCost(0.2)
	assert.InDelta(t, 0.3, n.Cost(), 1e-9)
}

func TestNode_TotalsNilUntilSet(t *testing.T) {
	n := trace.NewRoot()
	assert.Nil(t, n.Totals())

	n.SetTotals(trace.Totals{Prompt: 1, Completion: 2, Total: 3})
	got := n.Totals()
	require.NotNil(t, got)
	assert.Equal(t, trace.Totals{Prompt: 1, Completion: 2, Total: 3}, *got)
}

func TestTotals_Add(t *testing.T) {
	var total trace.Totals
	total.Add(trace.Totals{Prompt: 1, Completion: 2, Total: 3})
	total.Add(trace.Totals{Prompt: 10, Completion: 20, Total: 30})
	assert.Equal(t, trace.Totals{Prompt: 11, Completion: 22, Total: 33}, total)
}

func TestWalk_DepthFirstSpawnOrder(t *testing.T) {
	root := trace.NewRoot()
	a := root.NewChild("a", "Sequence")
	a.NewChild("b", "Function")
	a.NewChild("c", "Function")
	root.NewChild("d", "Function")

	var names []string
	root.Walk(func(n *trace.Node) bool {
		names = append(names, n.Name())
		return true
	})
	assert.Equal(t, []string{"ROOT", "a", "b", "c", "d"}, names)

	// Returning false prunes the subtree.
	names = nil
	root.Walk(func(n *trace.Node) bool {
		names = append(names, n.Name())
		return n.Name() != "a"
	})
	assert.Equal(t, []string{"ROOT", "a", "d"}, names)
}

func TestWalk_FindByPath(t *testing.T) {
	root := trace.NewRoot()
	a := root.NewChild("a", "Sequence")
	want := a.NewChild("b", "Function")

	var found *trace.Node
	root.Walk(func(n *trace.Node) bool {
		if n.Path() == want.Path() {
			found = n
			return false
		}
		return true
	})
	require.NotNil(t, found)
	assert.Same(t, want, found)
}

func TestNode_LogfFormats(t *testing.T) {
	n := trace.NewRoot()
	n.Logf("attempt %d of %d failed: %v", 2, 3, fmt.Errorf("timeout"))
	require.Len(t, n.Logs(), 1)
	assert.Equal(t, "attempt 2 of 3 failed: timeout", n.Logs()[0])
}
