package graft

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/graft/pkg/domain"
)

var (
	defaultMu sync.Mutex
	defaultRl *Reloader
)

// Default returns the process-wide reloader, creating it on first use with
// the working directory as root. It exists for the common single-app dev
// loop; anything needing isolation (tests above all) should construct its
// own instance with New or swap this one via SetDefault.
func Default() *Reloader {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultRl == nil {
		rl, err := New(".")
		if err != nil {
			panic(fmt.Sprintf("graft: initializing default reloader: %v", err))
		}
		defaultRl = rl
	}
	return defaultRl
}

// SetDefault replaces the process-wide reloader.
func SetDefault(rl *Reloader) {
	if rl == nil {
		panic("graft: SetDefault called with nil reloader")
	}
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultRl = rl
}

// Load calls Load on the default reloader.
func Load(ctx context.Context, target string, force bool) (domain.Handle, uint64, error) {
	return Default().Load(ctx, target, force)
}

// Cached calls Cached on the default reloader.
func Cached() (domain.Handle, bool) {
	return Default().Cached()
}

// Generation calls Generation on the default reloader.
func Generation() uint64 {
	return Default().Generation()
}

// Clear calls Clear on the default reloader.
func Clear() {
	Default().Clear()
}
