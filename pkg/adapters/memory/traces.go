package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/aretw0/tasktree/pkg/ports"
	"github.com/aretw0/tasktree/pkg/trace"
)

// TraceStore implements ports.TraceStore in memory. Trees are stored in
// their serialized form, so callers can never mutate a stored trace through
// a retained pointer.
type TraceStore struct {
	mu     sync.RWMutex
	traces map[string][]byte
	order  []string
}

// NewTraceStore creates a new in-memory trace store.
func NewTraceStore() *TraceStore {
	return &TraceStore{traces: make(map[string][]byte)}
}

// Save persists the trace tree and returns its generated id.
func (s *TraceStore) Save(ctx context.Context, root *trace.Node) (string, error) {
	if root == nil {
		return "", fmt.Errorf("root cannot be nil")
	}
	data, err := trace.Encode(root)
	if err != nil {
		return "", fmt.Errorf("failed to marshal trace: %w", err)
	}

	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.traces[id] = data
	s.order = append(s.order, id)
	return id, nil
}

// Load retrieves a previously saved trace tree.
func (s *TraceStore) Load(ctx context.Context, id string) (*trace.Node, error) {
	s.mu.RLock()
	data, ok := s.traces[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ports.ErrTraceNotFound
	}
	root, err := trace.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal trace: %w", err)
	}
	return root, nil
}

// List returns the ids of all stored traces in save order.
func (s *TraceStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, len(s.order))
	copy(ids, s.order)
	return ids, nil
}
