package prometheus_test

import (
	"context"
	"errors"
	"testing"

	sweep "github.com/aretw0/graft/pkg/adapters/prometheus"
	backend "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCounter() backend.Counter {
	return backend.NewCounter(backend.CounterOpts{
		Name: "app_requests_total",
		Help: "Requests handled by the interpreted application.",
	})
}

func TestSweeper_ClearsCollisions(t *testing.T) {
	registry := backend.NewRegistry()
	sweeper := sweep.NewSweeper(sweep.WithRegisterer(registry))
	ctx := context.Background()

	// Generation 0 of the app registers its metrics.
	require.NoError(t, sweeper.Register(newCounter()))
	assert.Equal(t, 1, sweeper.Tracked())

	// Without a sweep, generation 1 collides on the same metric name.
	err := registry.Register(newCounter())
	var already backend.AlreadyRegisteredError
	require.True(t, errors.As(err, &already), "error = %v", err)

	// After the sweep the name is free again.
	require.NoError(t, sweeper.Sweep(ctx))
	assert.Equal(t, 0, sweeper.Tracked())
	require.NoError(t, sweeper.Register(newCounter()))
}

func TestSweeper_MustRegisterPanicsOnCollision(t *testing.T) {
	registry := backend.NewRegistry()
	sweeper := sweep.NewSweeper(sweep.WithRegisterer(registry))
	sweeper.MustRegister(newCounter())

	assert.Panics(t, func() {
		sweeper.MustRegister(newCounter())
	})
}

func TestSweeper_UnregisterDropsTracking(t *testing.T) {
	registry := backend.NewRegistry()
	sweeper := sweep.NewSweeper(sweep.WithRegisterer(registry))

	counter := newCounter()
	require.NoError(t, sweeper.Register(counter))
	assert.True(t, sweeper.Unregister(counter))
	assert.Equal(t, 0, sweeper.Tracked())

	// Sweeping after a manual unregister has nothing left to do.
	require.NoError(t, sweeper.Sweep(context.Background()))
}

func TestSweeper_ReportsAlreadyGoneCollectors(t *testing.T) {
	registry := backend.NewRegistry()
	sweeper := sweep.NewSweeper(sweep.WithRegisterer(registry))

	counter := newCounter()
	require.NoError(t, sweeper.Register(counter))

	// Someone removed it behind the sweeper's back.
	registry.Unregister(counter)

	err := sweeper.Sweep(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 0, sweeper.Tracked(), "sweep resets tracking even on error")
}
