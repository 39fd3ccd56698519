package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/tasktree/pkg/adapters/memory"
	"github.com/aretw0/tasktree/pkg/ports"
	porttests "github.com/aretw0/tasktree/pkg/ports/tests"
	"github.com/aretw0/tasktree/pkg/trace"
)

// Ensure the adapters implement their ports
var (
	_ ports.KVStore    = (*memory.Store)(nil)
	_ ports.TraceStore = (*memory.TraceStore)(nil)
)

func TestTraceStore_Contract(t *testing.T) {
	porttests.TraceStoreContractTest(t, memory.NewTraceStore())
}

func TestTraceStore_ListOrder(t *testing.T) {
	store := memory.NewTraceStore()
	ctx := context.Background()

	var want []string
	for i := 0; i < 3; i++ {
		root := trace.NewRoot()
		root.Finish(trace.Result{Status: trace.StatusOK})
		id, err := store.Save(ctx, root)
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		want = append(want, id)
	}

	ids, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(ids) != len(want) {
		t.Fatalf("got %d ids, want %d", len(ids), len(want))
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %s, want %s (save order)", i, ids[i], want[i])
		}
	}
}
