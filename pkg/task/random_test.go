package task_test

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/tasktree/pkg/task"
)

type randBoard struct{}

func failNamed(name string) task.Node[*randBoard] {
	return task.Function(name, func(ctx context.Context, b *randBoard) (any, error) {
		return task.Fail(name), nil
	})
}

func okNamed(name string) task.Node[*randBoard] {
	return ret[*randBoard](name, name)
}

func triedOrder(t *testing.T, report *task.Report) []string {
	t.Helper()
	sel := report.Trace.Children()[0]
	var names []string
	for _, c := range sel.Children() {
		names = append(names, c.Name())
	}
	return names
}

func TestRandomSelector_WeightsFavorHeaviestFirst(t *testing.T) {
	// Zero-weight children are never drawn while a positive weight remains,
	// so the only positive child always goes first.
	tree := mustTree(t, "rand", task.RandomSelector[*randBoard]("pick",
		[]float64{0, 0, 1},
		okNamed("a"), okNamed("b"), okNamed("c"),
	))

	for i := 0; i < 20; i++ {
		report := run(t, tree, &randBoard{})
		assert.True(t, report.Result.IsOK())
		assert.Equal(t, "c", report.Result.Data)
		assert.Equal(t, []string{"c"}, triedOrder(t, report))
	}
}

func TestRandomSelector_SeededOrderIsReproducible(t *testing.T) {
	tree := mustTree(t, "rand", task.RandomSelector[*randBoard]("pick", nil,
		failNamed("a"), failNamed("b"), failNamed("c"),
		failNamed("d"), failNamed("e"),
	))

	order := func(seed uint64) []string {
		rng := rand.New(rand.NewPCG(seed, 0))
		report, err := tree.Run(t.Context(), &randBoard{}, task.WithRand(rng))
		require.NoError(t, err)
		return triedOrder(t, report)
	}

	assert.Equal(t, order(42), order(42))
}

func TestRandomSelector_AllFailTriesEveryChild(t *testing.T) {
	tree := mustTree(t, "rand", task.RandomSelector[*randBoard]("pick", nil,
		failNamed("a"), failNamed("b"), failNamed("c"),
	))

	report := run(t, tree, &randBoard{})

	assert.True(t, report.Result.IsFail())
	assert.ElementsMatch(t, []string{"a", "b", "c"}, triedOrder(t, report))
}

func TestRandomSelector_FirstSuccessStopsTheDraw(t *testing.T) {
	tree := mustTree(t, "rand", task.RandomSelector[*randBoard]("pick",
		[]float64{1, 0, 0},
		okNamed("win"), failNamed("b"), failNamed("c"),
	))

	report := run(t, tree, &randBoard{})

	assert.True(t, report.Result.IsOK())
	assert.Equal(t, "win", report.Result.Data)
	assert.Equal(t, []string{"win"}, triedOrder(t, report))
}

func TestRandomSelector_Validation(t *testing.T) {
	t.Run("no children", func(t *testing.T) {
		_, err := task.NewTree("rand", task.RandomSelector[*randBoard]("pick", nil))
		require.ErrorIs(t, err, task.ErrInvalidTree)
	})

	t.Run("weight count mismatch", func(t *testing.T) {
		_, err := task.NewTree("rand", task.RandomSelector[*randBoard]("pick",
			[]float64{1, 2},
			okNamed("a"),
		))
		require.ErrorIs(t, err, task.ErrInvalidTree)
	})

	t.Run("negative weight", func(t *testing.T) {
		_, err := task.NewTree("rand", task.RandomSelector[*randBoard]("pick",
			[]float64{-0.5},
			okNamed("a"),
		))
		require.ErrorIs(t, err, task.ErrInvalidTree)
	})
}
