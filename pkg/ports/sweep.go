package ports

import "context"

// SweepStrategy purges one external global registry that would otherwise
// accumulate stale entries across reloads (duplicate collector registrations,
// leftover cache keys, and the like).
//
// Sweeping is advisory cleanup, not correctness-critical: the coordinator
// runs every registered strategy before invalidation, discards and logs any
// error, and recovers panics, so one faulty strategy can never block others
// or the reload itself.
type SweepStrategy interface {
	// Name identifies the strategy in logs and metrics.
	Name() string

	// Sweep purges the registry. Returned errors are swallowed by the caller.
	Sweep(ctx context.Context) error
}
