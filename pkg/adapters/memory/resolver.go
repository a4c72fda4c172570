package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/aretw0/graft/pkg/domain"
	"github.com/aretw0/graft/pkg/ports"
)

// ErrNotRegistered is the cause carried by import failures for unknown paths.
var ErrNotRegistered = errors.New("module not registered")

// Resolver implements ports.SymbolResolver over registered attribute maps.
// It is meant for tests and embedded scenarios where application handles are
// plain Go values. Safe for concurrent use.
//
// Resolved paths are tracked as "cached" until invalidated, and per-path
// resolve counts are exposed so callers can assert cache behavior.
type Resolver struct {
	mu       sync.RWMutex
	modules  map[string]map[string]any
	cached   map[string]bool
	resolves map[string]int
}

// NewResolver creates an empty in-memory resolver.
func NewResolver() *Resolver {
	return &Resolver{
		modules:  make(map[string]map[string]any),
		cached:   make(map[string]bool),
		resolves: make(map[string]int),
	}
}

// Register makes a module available under path, replacing any previous
// registration. The attribute map is copied.
func (r *Resolver) Register(path string, attrs map[string]any) {
	copied := make(map[string]any, len(attrs))
	for k, v := range attrs {
		copied[k] = v
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules[path] = copied
}

// Resolve returns the registered module for path.
func (r *Resolver) Resolve(ctx context.Context, path string) (ports.Module, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.resolves[path]++
	attrs, ok := r.modules[path]
	if !ok {
		return nil, &domain.ImportError{Module: path, Err: ErrNotRegistered}
	}
	r.cached[path] = true
	return &module{path: path, attrs: attrs}, nil
}

// Invalidate evicts every cached module matching prefix at a dot boundary
// and returns how many were evicted.
func (r *Resolver) Invalidate(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for path := range r.cached {
		if ports.NamespaceMatches(path, prefix) {
			delete(r.cached, path)
			evicted++
		}
	}
	return evicted
}

// Resolves returns how many times path has been resolved.
func (r *Resolver) Resolves(path string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolves[path]
}

type module struct {
	path  string
	attrs map[string]any
}

func (m *module) Path() string { return m.path }

func (m *module) Attribute(name string) (any, error) {
	value, ok := m.attrs[name]
	if !ok {
		return nil, &domain.AttributeNotFoundError{Module: m.path, Attribute: name}
	}
	return value, nil
}
