package tasktree

import (
	"context"
	"log/slog"
	"math/rand/v2"

	"github.com/aretw0/tasktree/internal/logging"
	"github.com/aretw0/tasktree/pkg/ports"
	"github.com/aretw0/tasktree/pkg/task"
)

// Engine bundles the collaborators shared by every run: the logger, the
// key-value store behind Cacher and Terminable, the chat backend behind LLM
// nodes, lifecycle hooks, and an optional trace store.
//
// There are no process-global defaults; everything an engine knows was
// injected through an Option. The zero-value collaborators are a discard
// logger and nothing else, so a bare New() engine runs any tree that does
// not need external services.
type Engine struct {
	logger *slog.Logger
	kv     ports.KVStore
	chat   ports.ChatClient
	traces ports.TraceStore
	hooks  task.Hooks
	rng    *rand.Rand
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithKVStore sets the key-value store handed to Cacher and Terminable nodes.
func WithKVStore(store ports.KVStore) Option {
	return func(e *Engine) {
		e.kv = store
	}
}

// WithChatClient sets the LLM backend handed to LLM nodes.
func WithChatClient(client ports.ChatClient) Option {
	return func(e *Engine) {
		e.chat = client
	}
}

// WithTraceStore enables trace persistence: after each run the finished
// trace tree is saved and the assigned id is reported on Report.TraceID.
func WithTraceStore(store ports.TraceStore) Option {
	return func(e *Engine) {
		e.traces = store
	}
}

// WithHooks registers engine-wide lifecycle hooks. A per-run
// task.WithHooks replaces them for that run; use task.MergeHooks to
// combine both.
func WithHooks(hooks task.Hooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithRand injects the randomness source used by RandomSelector nodes,
// making shuffles reproducible.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) {
		e.rng = r
	}
}

// New initializes an Engine with the given options.
func New(opts ...Option) *Engine {
	e := &Engine{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Logger returns the engine's logger.
func (e *Engine) Logger() *slog.Logger { return e.logger }

// TraceStore returns the configured trace store, or nil.
func (e *Engine) TraceStore() ports.TraceStore { return e.traces }

// runOptions renders the engine defaults as per-run options. They are
// applied ahead of the caller's own options, so per-run options win.
func (e *Engine) runOptions() []task.RunOption {
	opts := []task.RunOption{
		task.WithLogger(e.logger),
		task.WithHooks(e.hooks),
	}
	if e.kv != nil {
		opts = append(opts, task.WithKVStore(e.kv))
	}
	if e.chat != nil {
		opts = append(opts, task.WithChatClient(e.chat))
	}
	if e.rng != nil {
		opts = append(opts, task.WithRand(e.rng))
	}
	return opts
}

// Run executes tree against board with the engine's collaborators applied as
// run defaults. Per-run options override the engine's.
//
// When the engine has a trace store, the finished trace is saved even if the
// run was cancelled or failed with a programming error; the trace tree is
// finalized on every path, and a cancelled run's trace is exactly the one
// worth inspecting. A failed save is logged at Warn and never masks the
// run's own outcome.
//
// Run is a free function because it is generic over the blackboard type.
func Run[B any](ctx context.Context, e *Engine, tree *task.Tree[B], board B, opts ...task.RunOption) (*task.Report, error) {
	runOpts := append(e.runOptions(), opts...)
	report, err := tree.Run(ctx, board, runOpts...)
	if e.traces != nil && report != nil && report.Trace != nil {
		// The run's context may already be cancelled; persistence should
		// survive that.
		id, serr := e.traces.Save(context.WithoutCancel(ctx), report.Trace)
		if serr != nil {
			e.logger.Warn("trace save failed", "tree", tree.Name(), "error", serr)
		} else {
			report.TraceID = id
		}
	}
	return report, err
}
