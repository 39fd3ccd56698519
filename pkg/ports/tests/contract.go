// Package tests carries reusable contract suites for ports implementations.
package tests

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/tasktree/pkg/ports"
)

// KVStoreContractTest verifies that an adapter complies with ports.KVStore.
// The advance callback must move the store's clock forward (wall sleep, fake
// clock, miniredis FastForward, ...) so TTL expiry can be asserted.
func KVStoreContractTest(t *testing.T, store ports.KVStore, advance func(d time.Duration)) {
	t.Helper()
	ctx := context.Background()

	t.Run("GetMissing", func(t *testing.T) {
		_, ok, err := store.Get(ctx, "kv-contract-missing")
		if err != nil {
			t.Fatalf("unexpected error getting missing key: %v", err)
		}
		if ok {
			t.Error("expected missing key to report ok=false")
		}
	})

	t.Run("SetGet", func(t *testing.T) {
		if err := store.Set(ctx, "kv-contract-a", "one", 0); err != nil {
			t.Fatalf("set failed: %v", err)
		}
		val, ok, err := store.Get(ctx, "kv-contract-a")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if !ok || val != "one" {
			t.Errorf("got (%q, %v), want (%q, true)", val, ok, "one")
		}
	})

	t.Run("Exists", func(t *testing.T) {
		if err := store.Set(ctx, "kv-contract-b", "x", 0); err != nil {
			t.Fatalf("set failed: %v", err)
		}
		ok, err := store.Exists(ctx, "kv-contract-b")
		if err != nil {
			t.Fatalf("exists failed: %v", err)
		}
		if !ok {
			t.Error("expected key to exist")
		}
		ok, err = store.Exists(ctx, "kv-contract-nope")
		if err != nil {
			t.Fatalf("exists failed: %v", err)
		}
		if ok {
			t.Error("expected key to be absent")
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		if err := store.Set(ctx, "kv-contract-c", "first", 0); err != nil {
			t.Fatalf("set failed: %v", err)
		}
		if err := store.Set(ctx, "kv-contract-c", "second", 0); err != nil {
			t.Fatalf("overwrite failed: %v", err)
		}
		val, _, err := store.Get(ctx, "kv-contract-c")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if val != "second" {
			t.Errorf("got %q, want %q", val, "second")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := store.Set(ctx, "kv-contract-d", "x", 0); err != nil {
			t.Fatalf("set failed: %v", err)
		}
		if err := store.Delete(ctx, "kv-contract-d"); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		_, ok, err := store.Get(ctx, "kv-contract-d")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if ok {
			t.Error("expected key to be gone after delete")
		}
		if err := store.Delete(ctx, "kv-contract-d"); err != nil {
			t.Errorf("deleting absent key should not error, got %v", err)
		}
	})

	t.Run("TTL", func(t *testing.T) {
		if advance == nil {
			t.Skip("no clock control for this store")
		}
		if err := store.Set(ctx, "kv-contract-ttl", "x", 50*time.Millisecond); err != nil {
			t.Fatalf("set failed: %v", err)
		}
		_, ok, err := store.Get(ctx, "kv-contract-ttl")
		if err != nil || !ok {
			t.Fatalf("expected key before expiry, got ok=%v err=%v", ok, err)
		}
		advance(100 * time.Millisecond)
		_, ok, err = store.Get(ctx, "kv-contract-ttl")
		if err != nil {
			t.Fatalf("get after expiry failed: %v", err)
		}
		if ok {
			t.Error("expected key to expire")
		}
	})
}
