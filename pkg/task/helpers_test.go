package task_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aretw0/tasktree/pkg/task"
)

// mustTree builds a tree and fails the test on validation errors.
func mustTree[B any](t *testing.T, name string, root task.Node[B]) *task.Tree[B] {
	t.Helper()
	tree, err := task.NewTree(name, root)
	require.NoError(t, err)
	return tree
}

// run executes the tree and fails the test on programming errors.
func run[B any](t *testing.T, tree *task.Tree[B], board B, opts ...task.RunOption) *task.Report {
	t.Helper()
	report, err := tree.Run(context.Background(), board, opts...)
	require.NoError(t, err)
	return report
}

// ret builds a leaf that returns a fixed value.
func ret[B any](name string, v any) task.Node[B] {
	return task.Function(name, func(ctx context.Context, b B) (any, error) {
		return v, nil
	})
}
