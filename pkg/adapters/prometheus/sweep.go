// Package prometheus provides a sweep strategy for Prometheus collector
// registries. Application code registered collectors during a load; across
// reloads those registrations linger in the registry, and the freshly
// loaded code collides with AlreadyRegisteredError. Routing registrations
// through the Sweeper makes them reversible.
package prometheus

import (
	"context"
	"fmt"
	"sync"

	backend "github.com/prometheus/client_golang/prometheus"
)

// Sweeper wraps a prometheus.Registerer, records every collector registered
// through it, and unregisters all of them on Sweep. It implements both
// prometheus.Registerer (hand it to application code) and
// ports.SweepStrategy (hand it to the reloader).
type Sweeper struct {
	registerer backend.Registerer

	mu         sync.Mutex
	collectors []backend.Collector
}

// Option defines a functional option for configuring the Sweeper.
type Option func(*Sweeper)

// WithRegisterer sets the backing registry. Defaults to
// prometheus.DefaultRegisterer.
func WithRegisterer(registerer backend.Registerer) Option {
	return func(s *Sweeper) {
		s.registerer = registerer
	}
}

// NewSweeper creates a sweeper over the default registerer unless
// WithRegisterer overrides it.
func NewSweeper(opts ...Option) *Sweeper {
	s := &Sweeper{
		registerer: backend.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register registers the collector with the backing registry and records it
// for the next sweep.
func (s *Sweeper) Register(c backend.Collector) error {
	if err := s.registerer.Register(c); err != nil {
		return err
	}
	s.mu.Lock()
	s.collectors = append(s.collectors, c)
	s.mu.Unlock()
	return nil
}

// MustRegister registers the collectors and panics on the first error,
// matching prometheus.Registerer semantics.
func (s *Sweeper) MustRegister(cs ...backend.Collector) {
	for _, c := range cs {
		if err := s.Register(c); err != nil {
			panic(err)
		}
	}
}

// Unregister removes the collector from the backing registry and from the
// sweep record.
func (s *Sweeper) Unregister(c backend.Collector) bool {
	ok := s.registerer.Unregister(c)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, recorded := range s.collectors {
		if recorded == c {
			s.collectors = append(s.collectors[:i], s.collectors[i+1:]...)
			break
		}
	}
	return ok
}

// Tracked returns how many collectors the next sweep would unregister.
func (s *Sweeper) Tracked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.collectors)
}

// Name identifies the strategy in logs and metrics.
func (s *Sweeper) Name() string { return "prometheus" }

// Sweep unregisters every recorded collector so the next load can register
// the same metric names without collisions.
func (s *Sweeper) Sweep(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	missing := 0
	for _, c := range s.collectors {
		if !s.registerer.Unregister(c) {
			missing++
		}
	}
	s.collectors = s.collectors[:0]

	if missing > 0 {
		return fmt.Errorf("%d collectors were already gone from the registry", missing)
	}
	return nil
}
