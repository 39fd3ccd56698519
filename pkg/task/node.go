package task

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/aretw0/tasktree/internal/logging"
	"github.com/aretw0/tasktree/pkg/ports"
	"github.com/aretw0/tasktree/pkg/trace"
)

// Info identifies a node in traces and logs. Name defaults to the kind when
// left empty at construction.
type Info struct {
	Name string
	Kind string
}

// Node is the unit of execution. A Node is built once, is immutable, and may
// be invoked many times concurrently; all per-invocation state lives in the
// Context.
//
// Custom nodes implement this interface directly and drive their children
// through Context.Invoke so trace slots, hooks and result threading stay
// correct.
type Node[B any] interface {
	Info() Info
	Execute(ctx context.Context, tc *Context[B]) Result
}

// info is the embeddable identity carried by every built-in node.
type info struct {
	name string
	kind string
}

func (n info) Info() Info { return Info{Name: n.name, Kind: n.kind} }

// validator is implemented by nodes with construction-time constraints.
type validator interface {
	validate() error
}

// childLister exposes a node's children to the build-time validation walk.
type childLister[B any] interface {
	childNodes() []Node[B]
}

// Tree is a built, validated task tree. Trees are immutable and reentrant:
// the same tree can run many times, concurrently, against independent
// blackboards.
type Tree[B any] struct {
	name string
	root Node[B]
}

// NewTree validates the whole tree rooted at root and returns it. All
// configuration errors (wrong child counts, zero retry budgets, mismatched
// weights, ...) are reported here, wrapped in ErrInvalidTree; they never
// surface during a run.
func NewTree[B any](name string, root Node[B]) (*Tree[B], error) {
	if root == nil {
		return nil, buildErrf("%s: nil root node", name)
	}
	if err := validateNode(root); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &Tree[B]{name: name, root: root}, nil
}

func validateNode[B any](n Node[B]) error {
	if v, ok := n.(validator); ok {
		if err := v.validate(); err != nil {
			i := n.Info()
			return fmt.Errorf("%s %q: %w", i.Kind, i.Name, err)
		}
	}
	if c, ok := n.(childLister[B]); ok {
		for _, child := range c.childNodes() {
			if child == nil {
				i := n.Info()
				return buildErrf("%s %q: nil child", i.Kind, i.Name)
			}
			if err := validateNode(child); err != nil {
				return err
			}
		}
	}
	return nil
}

// Name returns the tree's name.
func (t *Tree[B]) Name() string { return t.name }

// Root returns the root node.
func (t *Tree[B]) Root() Node[B] { return t.root }

// Report bundles the side-channel outputs of a run: the full trace tree and
// the token rollup, alongside the root Result.
type Report struct {
	Result Result
	Trace  *trace.Node
	Tokens trace.Totals

	// TraceID is set when the run was saved to a trace store (see the
	// tasktree facade); empty otherwise.
	TraceID string
}

type runConfig struct {
	logger *slog.Logger
	kv     ports.KVStore
	chat   ports.ChatClient
	hooks  Hooks
	rng    *rand.Rand
}

// RunOption configures a single run.
type RunOption func(*runConfig)

// WithLogger routes engine logs to l. The default discards them.
func WithLogger(l *slog.Logger) RunOption {
	return func(c *runConfig) { c.logger = l }
}

// WithKVStore sets the default key-value store for Cacher/Terminable nodes.
func WithKVStore(s ports.KVStore) RunOption {
	return func(c *runConfig) { c.kv = s }
}

// WithChatClient sets the default LLM backend for LLM nodes.
func WithChatClient(c ports.ChatClient) RunOption {
	return func(cfg *runConfig) { cfg.chat = c }
}

// WithHooks installs lifecycle hooks for this run.
func WithHooks(h Hooks) RunOption {
	return func(c *runConfig) { c.hooks = h }
}

// WithRand injects the randomness source used by RandomSelector, making
// shuffles reproducible. The default is the shared process source.
func WithRand(r *rand.Rand) RunOption {
	return func(c *runConfig) { c.rng = r }
}

// Run executes the tree against board and returns the report. The returned
// error is non-nil only for programming errors (missing collaborator, Gather
// arity mismatch) and external cancellation; a domain failure is reported as
// Report.Result with StatusFail and a nil error.
//
// The trace tree is finalized on every path, including cancellation, so the
// report's Trace is always complete and serializable.
func (t *Tree[B]) Run(ctx context.Context, board B, opts ...RunOption) (*Report, error) {
	cfg := runConfig{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	tc := newContext[B](&cfg)
	root := tc.run.root
	root.SetAttr("tree", t.name)

	res, err := t.invokeRoot(ctx, tc, board)

	tokens := tc.run.totals()
	root.SetTotals(tokens)
	root.Finish(res.trace())

	report := &Report{Result: res, Trace: root, Tokens: tokens}
	if err != nil {
		return report, err
	}
	if cerr := ctx.Err(); cerr != nil {
		return report, cerr
	}
	return report, nil
}

func (t *Tree[B]) invokeRoot(ctx context.Context, tc *Context[B], board B) (res Result, err error) {
	release := tc.EnterScope(board)
	defer release()
	defer func() {
		if r := recover(); r != nil {
			pe, ok := r.(*progError)
			if !ok {
				panic(r)
			}
			res = Fail(nil)
			err = pe.err
		}
	}()
	res = tc.Invoke(ctx, t.root)
	return res, nil
}
