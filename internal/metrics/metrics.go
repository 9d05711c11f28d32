// Package metrics exposes engine activity as Prometheus metrics.
//
// A Collector is both an engine.Recorder (trace events) and an
// engine.TickObserver (per-tick summaries). It owns its registry so
// several engines in one process never collide.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/cadence/internal/engine"
	"github.com/roach88/cadence/internal/ir"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "cadence"

// Collector aggregates engine metrics.
type Collector struct {
	registry *prometheus.Registry

	ticks        prometheus.Counter
	tickDuration prometheus.Histogram
	traceEvents  *prometheus.CounterVec
	fetchResults *prometheus.CounterVec

	nodes   prometheus.Gauge
	active  prometheus.Gauge
	pending prometheus.Gauge
}

// New creates a Collector. An empty namespace uses DefaultNamespace.
func New(namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,

		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Total number of engine ticks",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Wall time spent inside one tick",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}),
		traceEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trace_events_total",
				Help:      "Lifecycle transitions by trace type",
			},
			[]string{"type"},
		),
		fetchResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_results_total",
				Help:      "Fetch results delivered to directives",
			},
			[]string{"outcome"},
		),

		nodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "nodes",
			Help:      "Nodes in the tree after the last tick",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_directives",
			Help:      "Directives in a busy status after the last tick",
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending",
			Help:      "1 while the engine has outstanding work",
		}),
	}

	registry.MustRegister(
		c.ticks,
		c.tickDuration,
		c.traceEvents,
		c.fetchResults,
		c.nodes,
		c.active,
		c.pending,
	)
	return c
}

// Record counts one trace event. Result events whose value is an
// {"error": ...} object count as failed fetches.
func (c *Collector) Record(ev ir.TraceEvent) {
	c.traceEvents.WithLabelValues(string(ev.Type)).Inc()
	if ev.Type != ir.TraceResult {
		return
	}
	outcome := "success"
	if obj, ok := ev.Value.(ir.Object); ok {
		if _, failed := obj["error"]; failed {
			outcome = "error"
		}
	}
	c.fetchResults.WithLabelValues(outcome).Inc()
}

// ObserveTick records a tick summary.
func (c *Collector) ObserveTick(stats engine.TickStats) {
	c.ticks.Inc()
	c.tickDuration.Observe(stats.Duration.Seconds())
	c.nodes.Set(float64(stats.Nodes))
	c.active.Set(float64(stats.Active))
	if stats.Pending {
		c.pending.Set(1)
	} else {
		c.pending.Set(0)
	}
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Serve exposes /metrics on addr until ctx ends. The listener is bound
// before Serve returns so callers see address errors immediately.
func (c *Collector) Serve(ctx context.Context, addr string, logger *slog.Logger) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()

	logger.Info("metrics listening", "addr", ln.Addr().String())
	return ln.Addr(), nil
}
