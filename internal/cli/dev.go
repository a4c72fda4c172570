package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/graft"
	"github.com/aretw0/graft/internal/config"
	"github.com/aretw0/graft/internal/logging"
	"github.com/aretw0/graft/internal/presentation/tui"
	"github.com/aretw0/graft/internal/watcher"
	graftHTTP "github.com/aretw0/graft/pkg/adapters/http"
)

// Options carries the flag and argument values shared by the CLI commands.
// String fields override the manifest when non-empty; Debounce overrides it
// when positive.
type Options struct {
	ConfigPath string
	Target     string
	Root       string
	Addr       string
	Debounce   time.Duration
	NoServer   bool
	Debug      bool
}

// loadConfig resolves the manifest, applies command line overrides, and
// validates the result.
func loadConfig(opts Options) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.Target != "" {
		cfg.Target = opts.Target
	}
	if opts.Root != "" {
		cfg.Root = opts.Root
	}
	if opts.Addr != "" {
		cfg.Server.Addr = opts.Addr
	}
	if opts.Debounce > 0 {
		cfg.Watch.Debounce = config.Duration(opts.Debounce)
	}
	if opts.NoServer {
		cfg.Server.Disabled = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Target == "" {
		return nil, fmt.Errorf("no target configured: set one in %s or pass it as an argument", config.DefaultFile)
	}
	return cfg, nil
}

// RunDev executes graft in development mode: serve the target over HTTP and
// reload it whenever the watched source tree changes.
func RunDev(opts Options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	logger := createLogger(opts.Debug, cfg)
	cliLog := logging.For(logger, logging.ComponentCLI)
	tui.PrintBanner(graft.Version)

	rl, m, cleanup, err := assembleReloader(cfg, logger, !cfg.Server.Disabled)
	if err != nil {
		return err
	}
	defer cleanup()

	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	render := tui.NewRenderer()

	// First load. Failure is not fatal here: the whole point of the dev loop
	// is to wait for the fix and reload.
	if _, err := loadAndReport(sigCtx, rl, cfg.Target, false, render, cliLog); err != nil {
		printSystemMessage("Waiting for a fix...")
	}

	w, err := watcher.New(cfg.Watch.Paths,
		watcher.WithDebounce(cfg.Watch.Debounce.Std()),
		watcher.WithIgnore(cfg.Watch.Ignore...),
		watcher.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	if err := w.Start(sigCtx); err != nil {
		return err
	}
	defer w.Stop()

	var (
		srv          *graftHTTP.Server
		httpServer   *http.Server
		serverErrors chan error
	)
	if !cfg.Server.Disabled {
		srv = graftHTTP.New(cfg.Target, rl,
			graftHTTP.WithLogger(logger),
			graftHTTP.WithMetrics(m.Handler()),
		)
		httpServer = &http.Server{
			Addr:    cfg.Server.Addr,
			Handler: srv.Handler(),
		}

		serverErrors = make(chan error, 1)
		go func() {
			cliLog.Info("dev server listening", "addr", cfg.Server.Addr)
			serverErrors <- httpServer.ListenAndServe()
		}()
		printSystemMessage("Serving '%s' on %s", cfg.Target, cfg.Server.Addr)
	}

	printSystemMessage("Watching %v for changes...", cfg.Watch.Paths)

	for {
		select {
		case <-sigCtx.Done():
			fmt.Printf("\n")
			printSystemMessage("Shutting down...")
			if httpServer != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := httpServer.Shutdown(shutdownCtx); err != nil {
					cliLog.Warn("graceful shutdown did not complete", "err", err)
					_ = httpServer.Close()
				}
			}
			cliLog.Info("dev loop stopped", "signal", sigCtx.Signal())
			return nil

		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case ev, ok := <-w.Events():
			if !ok {
				return nil
			}
			printSystemMessage("Change detected in '%s'.", ev.Path)
			cliLog.Info("change detected, reloading", "path", ev.Path, "op", ev.Op)

			// Absorb the rest of the burst so one save-all triggers one reload.
			drainEvents(w)

			generation, err := loadAndReport(sigCtx, rl, cfg.Target, true, render, cliLog)
			if err == nil && srv != nil {
				srv.NotifyReload(generation)
			}
		}
	}
}

// loadAndReport drives one load through the coordinator and prints the
// rendered outcome.
func loadAndReport(ctx context.Context, rl *graft.Reloader, target string, force bool, render func(string) (string, error), logger *slog.Logger) (uint64, error) {
	start := time.Now()
	_, generation, err := rl.Load(ctx, target, force)
	took := time.Since(start)

	report := tui.ReloadReport(target, generation, took, err)
	if out, renderErr := render(report); renderErr == nil {
		fmt.Print(out)
	} else {
		fmt.Print(report)
	}

	if err != nil {
		logger.Error("load failed", "target", target, "err", err)
	} else {
		logger.Info("load complete", "target", target, "generation", generation, "took", took)
	}
	return generation, err
}

func drainEvents(w *watcher.Watcher) {
	for {
		select {
		case <-w.Events():
		default:
			return
		}
	}
}
