package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/graft/internal/logging"
	mcpserver "github.com/aretw0/graft/pkg/adapters/mcp"
)

// RunMCP exposes the reloader to agents over the Model Context Protocol.
func RunMCP(opts Options, transport string, port int) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	logger := createLogger(opts.Debug, cfg)
	cliLog := logging.For(logger, logging.ComponentCLI)

	rl, _, cleanup, err := assembleReloader(cfg, logger, false)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := mcpserver.NewServer(cfg.Target, rl, mcpserver.WithLogger(logger))

	switch transport {
	case "stdio":
		cliLog.Info("starting graft mcp server", "transport", "stdio", "target", cfg.Target)
		return srv.ServeStdio()
	case "sse":
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cliLog.Info("starting graft mcp server", "transport", "sse", "port", port, "target", cfg.Target)
		if err := srv.ServeSSE(ctx, port); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	default:
		return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
	}
}
