// Package watcher turns raw filesystem notifications into settled source
// change events. Editors fire bursts of writes for a single save; the
// watcher absorbs the burst and emits one event per file once the file has
// been quiet for the debounce window.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/aretw0/graft/internal/logging"
)

// Event describes a source file change that has settled past the debounce
// window.
type Event struct {
	Path string
	Op   string
}

type pendingChange struct {
	op string
	at time.Time
}

// Watcher monitors one or more directory trees for Go source changes.
// Directories created after Start are picked up automatically.
type Watcher struct {
	fsw      *fsnotify.Watcher
	logger   *slog.Logger
	roots    []string
	ignore   map[string]bool
	debounce time.Duration
	events   chan Event

	mu      sync.Mutex
	pending map[string]pendingChange
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long a file must stay quiet before its change is
// reported. The default is 250ms.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// WithIgnore replaces the set of directory names that are never watched.
// The default set is .git and vendor.
func WithIgnore(names ...string) Option {
	return func(w *Watcher) {
		w.ignore = make(map[string]bool, len(names))
		for _, name := range names {
			w.ignore[name] = true
		}
	}
}

// WithLogger sets the logger used for watch diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// New creates a Watcher over the given root directories. The watcher is
// inert until Start is called.
func New(paths []string, opts ...Option) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("watcher needs at least one path")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem watcher: %w", err)
	}

	w := &Watcher{
		fsw:      fsw,
		roots:    paths,
		ignore:   map[string]bool{".git": true, "vendor": true},
		debounce: 250 * time.Millisecond,
		events:   make(chan Event, 16),
		pending:  make(map[string]pendingChange),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = logging.For(w.logger, logging.ComponentWatcher)

	return w, nil
}

// Events returns the channel settled changes are delivered on. When the
// consumer falls behind, further events are dropped rather than blocking
// the watch loop.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start registers the root trees with the filesystem watcher and launches
// the event loop. Calling Start on a running watcher is a no-op.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	for _, root := range w.roots {
		if err := w.addRecursive(root); err != nil {
			return fmt.Errorf("watching %s: %w", root, err)
		}
	}

	w.running = true
	go w.run(ctx)
	return nil
}

// Stop shuts down the event loop and releases the filesystem watcher.
// It is safe to call Stop more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.fsw.Close(); err != nil {
		w.logger.Warn("failed to close filesystem watcher", "err", err)
	}
}

// Watched returns the directories currently registered with the watcher.
func (w *Watcher) Watched() []string {
	return w.fsw.WatchList()
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.ignore[d.Name()] {
			return fs.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return err
		}
		w.logger.Debug("watching directory", "path", path)
		return nil
	})
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	interval := w.debounce / 2
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("filesystem watch error", "err", err)
		case <-ticker.C:
			w.flush()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	var op string
	switch {
	case event.Op&fsnotify.Create != 0:
		op = "create"
	case event.Op&fsnotify.Write != 0:
		op = "write"
	case event.Op&fsnotify.Remove != 0:
		op = "remove"
	case event.Op&fsnotify.Rename != 0:
		op = "rename"
	default:
		return // chmod noise
	}

	// New directories join the watch set so their files are seen too.
	if op == "create" {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !w.ignore[filepath.Base(event.Name)] {
				if err := w.addRecursive(event.Name); err != nil {
					w.logger.Warn("failed to watch new directory", "path", event.Name, "err", err)
				}
			}
			return
		}
	}

	if !strings.HasSuffix(event.Name, ".go") {
		return
	}

	w.mu.Lock()
	w.pending[event.Name] = pendingChange{op: op, at: time.Now()}
	w.mu.Unlock()
	w.logger.Debug("change detected", "path", event.Name, "op", op)
}

// flush emits every pending change that has been quiet for the full
// debounce window.
func (w *Watcher) flush() {
	w.mu.Lock()
	now := time.Now()
	var settled []Event
	for path, change := range w.pending {
		if now.Sub(change.at) >= w.debounce {
			settled = append(settled, Event{Path: path, Op: change.op})
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, ev := range settled {
		select {
		case w.events <- ev:
		default:
			w.logger.Warn("dropping change event, consumer is behind", "path", ev.Path)
		}
	}
}
