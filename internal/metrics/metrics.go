// Package metrics exposes cycle statistics in Prometheus format.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/amishk599/jobwatch/internal/detect"
)

const namespace = "jobwatch"

// Collector records detect cycle results. It implements detect.Recorder.
type Collector struct {
	registry *prometheus.Registry

	Cycles        *prometheus.CounterVec
	Listings      *prometheus.CounterVec
	SeenListings  *prometheus.GaugeVec
	CycleDuration *prometheus.HistogramVec
	PageErrors    *prometheus.CounterVec
}

// NewCollector creates a Collector on its own registry, together with the
// Go runtime and process collectors.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		Cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Detection cycles by source and status (ok, partial, failed).",
		}, []string{"source", "status"}),
		Listings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listings_total",
			Help:      "Fetched listings by source and outcome.",
		}, []string{"source", "outcome"}),
		SeenListings: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "seen_listings",
			Help:      "Size of each source's seen set after the last cycle.",
		}, []string{"source"}),
		CycleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one detection cycle.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"source"}),
		PageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_errors_total",
			Help:      "Page fetches that failed after retries.",
		}, []string{"source"}),
	}
	c.registry.MustRegister(
		c.Cycles, c.Listings, c.SeenListings, c.CycleDuration, c.PageErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// CycleDone implements detect.Recorder.
func (c *Collector) CycleDone(res *detect.CycleResult, err error) {
	src := res.Source
	c.Cycles.WithLabelValues(src, res.Status(err)).Inc()
	for _, o := range detect.Outcomes {
		if n := res.Counts[o]; n > 0 {
			c.Listings.WithLabelValues(src, string(o)).Add(float64(n))
		}
	}
	if n := len(res.PageErrors); n > 0 {
		c.PageErrors.WithLabelValues(src).Add(float64(n))
	}
	c.CycleDuration.WithLabelValues(src).Observe(res.Duration.Seconds())
	if err == nil {
		c.SeenListings.WithLabelValues(src).Set(float64(res.SeenAfter))
	}
}

// Handler serves the registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (c *Collector) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving metrics", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server on %s: %w", addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

var _ detect.Recorder = (*Collector)(nil)
