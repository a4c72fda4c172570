package graft

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/aretw0/graft/internal/runtime"
	"github.com/aretw0/graft/pkg/adapters/yaegi"
	"github.com/aretw0/graft/pkg/domain"
	"github.com/aretw0/graft/pkg/ports"
)

// Reloader is the high-level entry point for the graft library.
// It wraps the internal coordinator and provides a simplified API for
// consumers: load-or-get, force-reload, cache inspection, and clear.
type Reloader struct {
	coordinator    *runtime.Coordinator
	resolver       ports.SymbolResolver
	sweeps         []ports.SweepStrategy
	accept         func(any) bool
	acceptKind     string
	hooks          domain.Hooks
	logger         *slog.Logger
	resolveTimeout time.Duration
	Name           string
}

// Option defines a functional option for configuring the Reloader.
type Option func(*Reloader)

// WithResolver injects a custom SymbolResolver, bypassing the default
// source-interpreting resolver.
func WithResolver(r ports.SymbolResolver) Option {
	return func(rl *Reloader) {
		rl.resolver = r
	}
}

// WithSweep registers sweep strategies to run before each reload.
// It can be passed multiple times; strategies accumulate.
func WithSweep(strategies ...ports.SweepStrategy) Option {
	return func(rl *Reloader) {
		rl.sweeps = append(rl.sweeps, strategies...)
	}
}

// WithAccept sets the handle kind predicate. Loaded values that fail it are
// rejected with a type-mismatch error. kind names the expected type in error
// messages, e.g. "http.Handler".
func WithAccept(pred func(any) bool, kind string) Option {
	return func(rl *Reloader) {
		rl.accept = pred
		rl.acceptKind = kind
	}
}

// WithHooks registers observability hooks.
func WithHooks(hooks domain.Hooks) Option {
	return func(rl *Reloader) {
		rl.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the reloader.
func WithLogger(logger *slog.Logger) Option {
	return func(rl *Reloader) {
		rl.logger = logger
	}
}

// WithResolveTimeout bounds each resolver call. Zero (the default) means
// unbounded: a stuck resolution blocks the coordinator, matching the
// synchronous import semantics of dev-mode loading.
func WithResolveTimeout(d time.Duration) Option {
	return func(rl *Reloader) {
		rl.resolveTimeout = d
	}
}

// New initializes a new Reloader.
// By default, it resolves modules from Go source under root using an
// embedded interpreter. If WithResolver is provided, root can be empty and
// is only used as a descriptive label.
func New(root string, opts ...Option) (*Reloader, error) {
	rl := &Reloader{}

	// Apply options first to check if a resolver is provided
	for _, opt := range opts {
		opt(rl)
	}

	if rl.resolver == nil {
		if root == "" {
			return nil, fmt.Errorf("root is required when no custom resolver is provided")
		}

		absPath, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("invalid root: %w", err)
		}

		rl.Name = filepath.Base(absPath)

		resolver, err := yaegi.New(absPath, yaegi.WithLogger(rl.logger))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize source resolver: %w", err)
		}
		rl.resolver = resolver
	} else if root != "" {
		rl.Name = filepath.Base(root)
	}

	// Ensure logger is initialized (so we don't pass nil to the runtime,
	// which would overwrite its default)
	if rl.logger == nil {
		rl.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	if rl.Name != "" {
		rl.logger = rl.logger.With("app", rl.Name)
	}

	rl.coordinator = runtime.New(runtime.Config{
		Resolver:       rl.resolver,
		Sweeps:         rl.sweeps,
		Accept:         rl.accept,
		AcceptKind:     rl.acceptKind,
		Hooks:          rl.hooks,
		Logger:         rl.logger,
		ResolveTimeout: rl.resolveTimeout,
	})

	return rl, nil
}

// Load returns the application handle for target ("module.path:attribute"),
// resolving it on first use and reusing the cache afterwards. With force
// true, or when the cached target differs from the requested one, the full
// reload protocol runs: registry sweeps, namespace invalidation, generation
// bump, fresh resolution. The returned generation lets callers cheaply
// detect that a reload happened.
func (r *Reloader) Load(ctx context.Context, target string, force bool) (domain.Handle, uint64, error) {
	return r.coordinator.Load(ctx, target, force)
}

// Cached returns the currently cached handle without triggering any load.
func (r *Reloader) Cached() (domain.Handle, bool) {
	return r.coordinator.Cached()
}

// Generation returns the current reload generation.
func (r *Reloader) Generation() uint64 {
	return r.coordinator.Generation()
}

// Target returns the identity the cached handle was loaded from, if any.
func (r *Reloader) Target() (domain.Target, bool) {
	return r.coordinator.Target()
}

// LastError returns the most recent load failure, or nil.
func (r *Reloader) LastError() error {
	return r.coordinator.LastError()
}

// Clear empties the cache without touching the generation counter.
func (r *Reloader) Clear() {
	r.coordinator.Clear()
}

// Resolver returns the underlying SymbolResolver used by the reloader.
func (r *Reloader) Resolver() ports.SymbolResolver {
	return r.resolver
}
