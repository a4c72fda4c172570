package logging

import (
	"io"
	"log/slog"
	"os"
)

// Component tags every log line with the subsystem that emitted it, so the
// interleaved dev-loop output stays attributable.
type Component string

const (
	ComponentReloader Component = "reloader"
	ComponentResolver Component = "resolver"
	ComponentSweep    Component = "sweep"
	ComponentWatcher  Component = "watcher"
	ComponentServer   Component = "server"
	ComponentMCP      Component = "mcp"
	ComponentCLI      Component = "cli"
)

// New creates a configured application logger.
// It writes to Stderr (to separate from Stdout flow UI/JSON-RPC).
// It standardizes common keys (e.g., "error" -> "err").
func New(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Standardize 'error' key to 'err'
			if a.Key == "error" {
				a.Key = "err"
			}
			return a
		},
	}))
}

// NewNop returns a no-op logger.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// For returns a child logger tagged with the given component.
func For(logger *slog.Logger, component Component) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With("component", string(component))
}
