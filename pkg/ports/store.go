package ports

import (
	"context"
	"errors"
	"time"

	"github.com/aretw0/tasktree/pkg/trace"
)

// ErrTraceNotFound is returned when a trace id cannot be found in the store.
var ErrTraceNotFound = errors.New("trace not found")

// KVStore is the external key-value collaborator used for cache entries and
// termination signals. The engine treats it as a black box with at-least
// get/set/exists semantics and assumes no transactional guarantees across
// calls.
type KVStore interface {
	// Get returns the value for key. The second return reports whether the
	// key existed.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key. A zero ttl means no expiration.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// TraceStore persists trace trees for the viewer and post-hoc inspection.
type TraceStore interface {
	// Save persists the tree rooted at root and returns its trace id.
	Save(ctx context.Context, root *trace.Node) (string, error)

	// Load retrieves a previously saved tree.
	// Returns ErrTraceNotFound if the id does not exist.
	Load(ctx context.Context, id string) (*trace.Node, error)

	// List returns the ids of all saved traces.
	List(ctx context.Context) ([]string, error)
}
