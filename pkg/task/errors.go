package task

import (
	"errors"
	"fmt"
)

// ErrInvalidTree is wrapped by every configuration error NewTree reports.
// Configuration errors are detected at build time and never surface
// mid-execution.
var ErrInvalidTree = errors.New("invalid tree")

// ErrNoKVStore is reported when a Cacher/Terminable node runs without a
// key-value store configured on the node or the run.
var ErrNoKVStore = errors.New("no kv store configured")

// ErrNoChatClient is reported when an LLM node runs without a chat client
// configured on the node or the run.
var ErrNoChatClient = errors.New("no chat client configured")

func buildErrf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidTree, fmt.Sprintf(format, args...))
}

// progError marks an invocation-time programming error (missing collaborator,
// factory arity mismatch). It unwinds as a panic, every trace node on the way
// is still finalized, and the driver converts it into an error returned from
// Run. Domain failure never takes this path.
type progError struct {
	err error
}

func (p *progError) Error() string { return p.err.Error() }

func progErrf(format string, args ...any) {
	panic(&progError{err: fmt.Errorf(format, args...)})
}
