package cli

import (
	"context"
	"fmt"
	"time"
)

// RunCheck performs a one-shot load of the configured target and reports
// whether it resolves. It never starts a server or a watcher.
func RunCheck(opts Options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	logger := createLogger(opts.Debug, cfg)

	rl, _, cleanup, err := assembleReloader(cfg, logger, false)
	if err != nil {
		return err
	}
	defer cleanup()

	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	start := time.Now()
	if _, _, err := rl.Load(sigCtx, cfg.Target, false); err != nil {
		return fmt.Errorf("target %s failed to load: %w", cfg.Target, err)
	}

	printSystemMessage("Loaded '%s' in %s.", cfg.Target, time.Since(start).Round(time.Millisecond))
	return nil
}
