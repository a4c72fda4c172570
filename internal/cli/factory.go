package cli

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aretw0/graft"
	"github.com/aretw0/graft/internal/config"
	"github.com/aretw0/graft/internal/metrics"
	promsweep "github.com/aretw0/graft/pkg/adapters/prometheus"
	redissweep "github.com/aretw0/graft/pkg/adapters/redis"
	"github.com/aretw0/graft/pkg/domain"
	"github.com/aretw0/graft/pkg/ports"
)

// assembleReloader builds a reloader from the manifest with standard CLI
// conventions: metrics hooks are always attached, sweeps come from the
// manifest, and the accept predicate requires an http.Handler when the dev
// server is going to serve the handle.
//
// The returned cleanup releases sweep-owned connections and must be called
// once the reloader is retired.
func assembleReloader(cfg *config.Config, logger *slog.Logger, serveHTTP bool) (*graft.Reloader, *metrics.Metrics, func(), error) {
	m := metrics.New()

	opts := []graft.Option{
		graft.WithLogger(logger),
		graft.WithHooks(m.Hooks(domain.Hooks{})),
	}

	if d := cfg.Resolve.Timeout.Std(); d > 0 {
		opts = append(opts, graft.WithResolveTimeout(d))
	}

	if serveHTTP {
		opts = append(opts, graft.WithAccept(func(handle any) bool {
			_, ok := handle.(http.Handler)
			return ok
		}, "http.Handler"))
	}

	sweeps, cleanup, err := buildSweeps(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(sweeps) > 0 {
		opts = append(opts, graft.WithSweep(sweeps...))
	}

	rl, err := graft.New(cfg.Root, opts...)
	if err != nil {
		cleanup()
		return nil, nil, nil, fmt.Errorf("error initializing reloader: %w", err)
	}

	return rl, m, cleanup, nil
}

// buildSweeps instantiates the sweep strategies named in the manifest.
func buildSweeps(cfg *config.Config) ([]ports.SweepStrategy, func(), error) {
	var (
		sweeps  []ports.SweepStrategy
		closers []func() error
	)
	cleanup := func() {
		for _, close := range closers {
			_ = close()
		}
	}

	for _, entry := range cfg.Sweeps {
		switch entry.Kind {
		case "prometheus":
			sweeps = append(sweeps, promsweep.NewSweeper())
		case "redis":
			redisOpts, err := entry.RedisOptions()
			if err != nil {
				cleanup()
				return nil, nil, err
			}
			var adapterOpts []redissweep.Option
			if redisOpts.Prefix != "" {
				adapterOpts = append(adapterOpts, redissweep.WithPrefix(redisOpts.Prefix))
			}
			if redisOpts.ScanCount > 0 {
				adapterOpts = append(adapterOpts, redissweep.WithScanCount(redisOpts.ScanCount))
			}
			sweeper := redissweep.New(redisOpts.Addr, redisOpts.Password, redisOpts.DB, adapterOpts...)
			sweeps = append(sweeps, sweeper)
			closers = append(closers, sweeper.Close)
		default:
			cleanup()
			return nil, nil, fmt.Errorf("unknown sweep kind %q", entry.Kind)
		}
	}

	return sweeps, cleanup, nil
}
