// Package metrics holds graft's own Prometheus collectors. These describe
// the reloader itself, on a registry graft owns, kept apart from whatever
// registries the loaded application uses.
package metrics

import (
	"context"
	"net/http"

	"github.com/aretw0/graft/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the reloader collectors and their registry.
type Metrics struct {
	registry   *prometheus.Registry
	reloads    *prometheus.CounterVec
	duration   prometheus.Histogram
	generation prometheus.Gauge
	sweeps     *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		reloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graft_reloads_total",
				Help: "Total number of reload attempts by result",
			},
			[]string{"result"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name: "graft_reload_duration_seconds",
				Help: "Duration of reload attempts, sweep to resolve",
			},
		),
		generation: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "graft_generation",
				Help: "Current reload generation",
			},
		),
		sweeps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graft_sweeps_total",
				Help: "Total number of sweep strategy invocations by result",
			},
			[]string{"strategy", "result"},
		),
	}
	m.registry.MustRegister(m.reloads, m.duration, m.generation, m.sweeps)
	return m
}

// Registry returns the graft-owned registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Hooks returns coordinator hooks that record into the collectors and then
// chain to next.
func (m *Metrics) Hooks(next domain.Hooks) domain.Hooks {
	return domain.Hooks{
		OnLoad: func(ctx context.Context, e *domain.LoadEvent) {
			if e.Reloaded {
				m.reloads.WithLabelValues(result(e.Err)).Inc()
				m.duration.Observe(e.Duration.Seconds())
			}
			if e.Err == nil {
				m.generation.Set(float64(e.Generation))
			}
			if next.OnLoad != nil {
				next.OnLoad(ctx, e)
			}
		},
		OnSweep: func(ctx context.Context, e *domain.SweepEvent) {
			m.sweeps.WithLabelValues(e.Strategy, result(e.Err)).Inc()
			if next.OnSweep != nil {
				next.OnSweep(ctx, e)
			}
		},
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
