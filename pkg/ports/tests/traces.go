package tests

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/aretw0/tasktree/pkg/ports"
	"github.com/aretw0/tasktree/pkg/trace"
)

// TraceStoreContractTest verifies that an adapter complies with
// ports.TraceStore, including the byte-for-byte round-trip of stored trees.
func TraceStoreContractTest(t *testing.T, store ports.TraceStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("LoadMissing", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent")
		if !errors.Is(err, ports.ErrTraceNotFound) {
			t.Errorf("expected ErrTraceNotFound, got %v", err)
		}
	})

	t.Run("SaveAndLoad", func(t *testing.T) {
		root := sampleTrace()
		id, err := store.Save(ctx, root)
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if id == "" {
			t.Fatal("Save returned an empty id")
		}

		loaded, err := store.Load(ctx, id)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}

		want, err := trace.Encode(root)
		if err != nil {
			t.Fatalf("encoding original failed: %v", err)
		}
		got, err := trace.Encode(loaded)
		if err != nil {
			t.Fatalf("encoding loaded tree failed: %v", err)
		}
		if !bytes.Equal(want, got) {
			t.Errorf("round-trip mismatch:\nwant %s\ngot  %s", want, got)
		}
	})

	t.Run("List", func(t *testing.T) {
		first, err := store.Save(ctx, sampleTrace())
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		second, err := store.Save(ctx, sampleTrace())
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		ids, err := store.List(ctx)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		for _, want := range []string{first, second} {
			found := false
			for _, id := range ids {
				if id == want {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("expected id %s in listing %v", want, ids)
			}
		}
	})
}

func sampleTrace() *trace.Node {
	root := trace.NewRoot()
	root.SetAttr("tree", "sample")
	step := root.NewChild("step", "Function")
	step.Logf("working")
	step.Finish(trace.Result{Status: trace.StatusOK, Data: "done"})
	check := root.NewChild("check", "Assert")
	check.Finish(trace.Result{Status: trace.StatusFail, Data: false})
	root.SetTotals(trace.Totals{Prompt: 3, Completion: 5, Total: 8})
	root.Finish(trace.Result{Status: trace.StatusFail, Data: "done"})
	return root
}
