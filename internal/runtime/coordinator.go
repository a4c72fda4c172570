package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/graft/internal/logging"
	"github.com/aretw0/graft/pkg/domain"
	"github.com/aretw0/graft/pkg/ports"
)

// Config carries the collaborators for a Coordinator. Resolver is required;
// everything else has a working zero value.
type Config struct {
	Resolver       ports.SymbolResolver
	Sweeps         []ports.SweepStrategy
	Accept         func(any) bool // Handle kind predicate; nil means "any non-nil value"
	AcceptKind     string         // Human name of the expected kind, for errors
	Hooks          domain.Hooks
	Logger         *slog.Logger
	ResolveTimeout time.Duration // 0 = unbounded
}

// Coordinator is the reload state machine. It holds at most one cached
// application handle plus the target it was built from, and a generation
// counter that collaborators use to cheaply detect "something changed".
//
// All state transitions happen under a single mutex per instance; the
// cache-hit path takes only a read lock.
type Coordinator struct {
	resolver       ports.SymbolResolver
	sweeps         []ports.SweepStrategy
	accept         func(any) bool
	acceptKind     string
	hooks          domain.Hooks
	logger         *slog.Logger
	sweepLog       *slog.Logger
	resolveTimeout time.Duration

	mu         sync.RWMutex
	handle     domain.Handle
	target     domain.Target
	hasHandle  bool
	generation uint64
	lastErr    error
}

// New creates a coordinator with the given collaborators.
func New(cfg Config) *Coordinator {
	accept, kind := cfg.Accept, cfg.AcceptKind
	if accept == nil {
		accept = func(v any) bool { return v != nil }
		kind = "a non-nil handle"
	}
	base := cfg.Logger
	if base == nil {
		base = logging.NewNop()
	}
	return &Coordinator{
		resolver:       cfg.Resolver,
		sweeps:         cfg.Sweeps,
		accept:         accept,
		acceptKind:     kind,
		hooks:          cfg.Hooks,
		logger:         logging.For(base, logging.ComponentReloader),
		sweepLog:       logging.For(base, logging.ComponentSweep),
		resolveTimeout: cfg.ResolveTimeout,
	}
}

// Load returns the application handle for rawTarget, resolving it if needed.
//
// When force is false and the requested target matches the cached one, the
// cached handle and current generation are returned with no side effects.
// Otherwise the reload protocol runs: sweep external registries (only when a
// previous handle exists), invalidate the target's namespace in the
// resolver, bump the generation, then resolve fresh. A failed reload leaves
// the cache empty; the next call resolves from scratch instead of trusting
// stale state.
func (c *Coordinator) Load(ctx context.Context, rawTarget string, force bool) (domain.Handle, uint64, error) {
	target, err := domain.ParseTarget(rawTarget)
	if err != nil {
		c.logger.Error("rejected malformed target", "target", rawTarget, "error", err)
		return nil, 0, err
	}

	c.mu.RLock()
	if !force && c.hasHandle && c.target == target {
		handle, generation := c.handle, c.generation
		c.mu.RUnlock()
		return handle, generation, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another caller may have completed the identical load while we waited
	// for the write lock.
	if !force && c.hasHandle && c.target == target {
		return c.handle, c.generation, nil
	}

	start := time.Now()

	// A plain first load resolves directly; the reload protocol only runs
	// when the caller forces it or a handle is already cached (including a
	// cached handle for a different target).
	reloaded := force || c.hasHandle
	if reloaded {
		if c.hasHandle {
			c.runSweeps(ctx)
		}
		evicted := c.resolver.Invalidate(target.Namespace())
		c.generation++
		c.handle = nil
		c.target = domain.Target{}
		c.hasHandle = false
		c.logger.Info("invalidated namespace",
			"namespace", target.Namespace(),
			"evicted", evicted,
			"generation", c.generation)
	}

	handle, err := c.resolveLocked(ctx, target)
	duration := time.Since(start)
	event := &domain.LoadEvent{
		Target:     target,
		Generation: c.generation,
		Forced:     force,
		Reloaded:   reloaded,
		Duration:   duration,
		Err:        err,
	}
	if err != nil {
		c.lastErr = err
		c.logger.Error("load failed",
			"target", target.String(),
			"generation", c.generation,
			"error", err)
		c.emitLoad(ctx, event)
		return nil, 0, err
	}

	c.handle = handle
	c.target = target
	c.hasHandle = true
	c.lastErr = nil
	c.logger.Info("application handle ready",
		"target", target.String(),
		"generation", c.generation,
		"reloaded", reloaded,
		"duration", duration)
	c.emitLoad(ctx, event)
	return handle, c.generation, nil
}

// resolveLocked runs resolve -> attribute fetch -> kind check. Callers hold
// the write lock.
func (c *Coordinator) resolveLocked(ctx context.Context, target domain.Target) (domain.Handle, error) {
	resolveCtx := ctx
	if c.resolveTimeout > 0 {
		var cancel context.CancelFunc
		resolveCtx, cancel = context.WithTimeout(ctx, c.resolveTimeout)
		defer cancel()
	}

	module, err := c.resolver.Resolve(resolveCtx, target.Module)
	if err != nil {
		var imp *domain.ImportError
		if !errors.As(err, &imp) {
			err = &domain.ImportError{Module: target.Module, Err: err}
		}
		return nil, err
	}

	value, err := module.Attribute(target.Attribute)
	if err != nil {
		return nil, err
	}

	if !c.accept(value) {
		return nil, &domain.TypeMismatchError{Attribute: target.Attribute, ExpectedKind: c.acceptKind}
	}
	return value, nil
}

// runSweeps invokes every sweep strategy. Each runs in its own boundary:
// errors and panics are logged and discarded, never escalated, because
// blocking a reload over advisory cleanup is worse than a stray cache entry.
func (c *Coordinator) runSweeps(ctx context.Context) {
	for _, strategy := range c.sweeps {
		start := time.Now()
		err := func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("sweep panicked: %v", r)
				}
			}()
			return strategy.Sweep(ctx)
		}()
		duration := time.Since(start)
		if err != nil {
			c.sweepLog.Warn("sweep failed, continuing", "strategy", strategy.Name(), "error", err)
		} else {
			c.sweepLog.Debug("sweep completed", "strategy", strategy.Name(), "duration", duration)
		}
		c.emitSweep(ctx, &domain.SweepEvent{Strategy: strategy.Name(), Duration: duration, Err: err})
	}
}

// Cached returns the cached handle without triggering any load.
func (c *Coordinator) Cached() (domain.Handle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handle, c.hasHandle
}

// Generation returns the current reload generation. It starts at 0 and
// increments once per reload, never on a cache hit or plain first load.
func (c *Coordinator) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// Target returns the target of the cached handle, if one is cached.
func (c *Coordinator) Target() (domain.Target, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.target, c.hasHandle
}

// LastError returns the most recent load failure, or nil after a successful
// load or a clear.
func (c *Coordinator) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Clear empties the cache. The generation counter is a session-scoped
// monotonic value and survives; a later load resolves fresh without
// counting as a reload. Idempotent.
func (c *Coordinator) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handle = nil
	c.target = domain.Target{}
	c.hasHandle = false
	c.lastErr = nil
	c.logger.Debug("cache cleared", "generation", c.generation)
}

func (c *Coordinator) emitLoad(ctx context.Context, event *domain.LoadEvent) {
	if c.hooks.OnLoad != nil {
		c.hooks.OnLoad(ctx, event)
	}
}

func (c *Coordinator) emitSweep(ctx context.Context, event *domain.SweepEvent) {
	if c.hooks.OnSweep != nil {
		c.hooks.OnSweep(ctx, event)
	}
}
