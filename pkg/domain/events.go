package domain

import (
	"context"
	"time"
)

// LoadEvent describes one trip through the resolution path. Cache hits do
// not produce events; plain first loads do, with Reloaded false.
type LoadEvent struct {
	Target     Target        `json:"target"`
	Generation uint64        `json:"generation"`
	Forced     bool          `json:"forced"`
	Reloaded   bool          `json:"reloaded"`
	Duration   time.Duration `json:"duration"`
	Err        error         `json:"-"`
}

// SweepEvent describes one sweep strategy invocation during a reload.
type SweepEvent struct {
	Strategy string        `json:"strategy"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"` // Includes recovered panics
}

// Hooks defines callbacks for coordinator observability.
// Nil callbacks are skipped. Callbacks run synchronously on the load path
// and must not call back into the coordinator.
type Hooks struct {
	OnLoad  func(context.Context, *LoadEvent)
	OnSweep func(context.Context, *SweepEvent)
}
