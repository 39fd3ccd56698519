// Package file provides a filesystem-backed trace store, one JSON file per
// run in a configured directory.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/aretw0/tasktree/pkg/ports"
	"github.com/aretw0/tasktree/pkg/trace"
)

// Store implements ports.TraceStore using the local filesystem.
type Store struct {
	BasePath string
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".tasktree/traces".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".tasktree", "traces")
	}
	return &Store{BasePath: basePath}
}

// Save persists the trace tree and returns its generated id.
// It writes to a temporary file first, syncs via fsync, and then renames it
// into place, so a crash never leaves a partial trace behind.
func (s *Store) Save(ctx context.Context, root *trace.Node) (string, error) {
	if root == nil {
		return "", fmt.Errorf("root cannot be nil")
	}
	if err := os.MkdirAll(s.BasePath, 0755); err != nil {
		return "", fmt.Errorf("failed to ensure trace directory: %w", err)
	}

	id := uuid.NewString()
	data, err := trace.Encode(root)
	if err != nil {
		return "", fmt.Errorf("failed to marshal trace: %w", err)
	}

	// Same directory as the destination so the rename stays on one
	// filesystem.
	tmpFile, err := os.CreateTemp(s.BasePath, "tmp-"+id+"-*.json")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return "", fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return "", fmt.Errorf("failed to fsync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(s.BasePath, id+".json")); err != nil {
		return "", fmt.Errorf("failed to rename temp file into place: %w", err)
	}
	return id, nil
}

// Load retrieves a previously saved trace tree.
func (s *Store) Load(ctx context.Context, id string) (*trace.Node, error) {
	// Ids are minted by Save; anything that is not a UUID cannot name a
	// stored trace and must not reach the filesystem.
	if _, err := uuid.Parse(id); err != nil {
		return nil, ports.ErrTraceNotFound
	}
	data, err := os.ReadFile(filepath.Join(s.BasePath, id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ports.ErrTraceNotFound
		}
		return nil, fmt.Errorf("failed to read trace file: %w", err)
	}
	root, err := trace.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal trace: %w", err)
	}
	return root, nil
}

// List returns the ids of all stored traces.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list traces: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".json" {
			name := entry.Name()
			ids = append(ids, name[:len(name)-len(".json")])
		}
	}
	return ids, nil
}
