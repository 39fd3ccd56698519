package task_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/tasktree/pkg/adapters/memory"
	"github.com/aretw0/tasktree/pkg/task"
)

type cacheBoard struct {
	Key       string
	Validator string
	Calls     int
}

func computeCounted(v any) task.Node[*cacheBoard] {
	return task.Function("compute", func(ctx context.Context, b *cacheBoard) (any, error) {
		b.Calls++
		return v, nil
	})
}

func TestCache_MissThenHit(t *testing.T) {
	store := memory.NewStore()
	tree := mustTree(t, "c", task.Cache("memo",
		task.CacheSpec[*cacheBoard]{
			Key: func(b *cacheBoard) string { return b.Key },
			TTL: time.Minute,
		},
		computeCounted("value"),
	))

	b := &cacheBoard{Key: "k"}
	first := run(t, tree, b, task.WithKVStore(store))
	assert.Equal(t, "value", first.Result.Data)
	assert.Equal(t, 1, b.Calls)

	second := run(t, tree, b, task.WithKVStore(store))
	assert.Equal(t, "value", second.Result.Data)
	assert.Equal(t, 1, b.Calls, "a hit must not run the child")

	// Trace shape: the miss shows the child, the hit does not.
	miss := first.Trace.Children()[0]
	assert.Len(t, miss.Children(), 1)
	attr, _ := miss.Attr("cache")
	assert.Equal(t, "miss", attr)

	hit := second.Trace.Children()[0]
	assert.Empty(t, hit.Children(), "a cache hit leaves no child trace")
	attr, _ = hit.Attr("cache")
	assert.Equal(t, "hit", attr)
}

func TestCache_ValidatorStampInvalidates(t *testing.T) {
	store := memory.NewStore()
	tree := mustTree(t, "c", task.Cache("memo",
		task.CacheSpec[*cacheBoard]{
			Key:       func(b *cacheBoard) string { return b.Key },
			TTL:       time.Minute,
			Validator: func(b *cacheBoard) string { return b.Validator },
		},
		computeCounted(1),
	))

	b := &cacheBoard{Key: "k", Validator: "v1"}
	run(t, tree, b, task.WithKVStore(store))
	assert.Equal(t, 1, b.Calls)

	run(t, tree, b, task.WithKVStore(store))
	assert.Equal(t, 1, b.Calls, "same stamp hits")

	b.Validator = "v2"
	run(t, tree, b, task.WithKVStore(store))
	assert.Equal(t, 2, b.Calls, "a changed stamp is a miss")
}

func TestCache_IntegerPayloadSurvivesRoundTrip(t *testing.T) {
	store := memory.NewStore()
	tree := mustTree(t, "c", task.Cache("memo",
		task.CacheSpec[*cacheBoard]{Key: func(b *cacheBoard) string { return b.Key }},
		computeCounted(map[string]any{"count": 7}),
	))

	b := &cacheBoard{Key: "k"}
	run(t, tree, b, task.WithKVStore(store))
	second := run(t, tree, b, task.WithKVStore(store))

	got, ok := second.Result.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, int64(7), got["count"], "numbers decode as integers, not float64")
}

func TestCache_FailureIsNotCached(t *testing.T) {
	store := memory.NewStore()
	tree := mustTree(t, "c", task.Cache("memo",
		task.CacheSpec[*cacheBoard]{Key: func(b *cacheBoard) string { return b.Key }},
		task.Function("compute", func(ctx context.Context, b *cacheBoard) (any, error) {
			b.Calls++
			if b.Calls == 1 {
				return task.Fail("first"), nil
			}
			return task.OK("second"), nil
		}),
	))

	b := &cacheBoard{Key: "k"}
	first := run(t, tree, b, task.WithKVStore(store))
	assert.True(t, first.Result.IsFail())

	second := run(t, tree, b, task.WithKVStore(store))
	assert.True(t, second.Result.IsOK())
	assert.Equal(t, "second", second.Result.Data)
	assert.Equal(t, 2, b.Calls, "the failure ran the child again")
}

func TestCache_NodeStoreOverridesRunStore(t *testing.T) {
	nodeStore := memory.NewStore()
	runStore := memory.NewStore()
	tree := mustTree(t, "c", task.Cache("memo",
		task.CacheSpec[*cacheBoard]{
			Key:   func(b *cacheBoard) string { return b.Key },
			Store: nodeStore,
		},
		computeCounted("v"),
	))

	b := &cacheBoard{Key: "k"}
	run(t, tree, b, task.WithKVStore(runStore))

	_, found, err := nodeStore.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, found, "the node-level store takes precedence")

	_, found, err = runStore.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCache_MissingStoreIsProgrammingError(t *testing.T) {
	tree := mustTree(t, "c", task.Cache("memo",
		task.CacheSpec[*cacheBoard]{Key: func(b *cacheBoard) string { return b.Key }},
		computeCounted("v"),
	))

	report, err := tree.Run(context.Background(), &cacheBoard{Key: "k"})
	require.ErrorIs(t, err, task.ErrNoKVStore)
	assert.True(t, report.Result.IsFail())
	assert.True(t, report.Trace.Finished())
}

func TestCache_TTLExpiresEntries(t *testing.T) {
	clock := time.Now()
	store := memory.NewStore(memory.WithClock(func() time.Time { return clock }))

	tree := mustTree(t, "c", task.Cache("memo",
		task.CacheSpec[*cacheBoard]{
			Key: func(b *cacheBoard) string { return b.Key },
			TTL: time.Second,
		},
		computeCounted("v"),
	))

	b := &cacheBoard{Key: "k"}
	run(t, tree, b, task.WithKVStore(store))
	assert.Equal(t, 1, b.Calls)

	clock = clock.Add(2 * time.Second)
	run(t, tree, b, task.WithKVStore(store))
	assert.Equal(t, 2, b.Calls, "an expired entry is a miss")
}
