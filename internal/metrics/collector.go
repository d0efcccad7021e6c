package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector collects and exposes upload metrics
type Collector struct {
	registry     *prometheus.Registry
	actionsTotal *prometheus.CounterVec
	opsTotal     *prometheus.CounterVec
	bytesTotal   prometheus.Counter
	partDuration prometheus.Histogram
}

// New creates a collector with its own registry
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		actionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walupload_actions_total",
				Help: "Actions chosen by the planner",
			},
			[]string{"action"},
		),
		opsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walupload_operations_total",
				Help: "Operations appended to the upload log",
			},
			[]string{"op"},
		),
		bytesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "walupload_bytes_total",
				Help: "Bytes of uploaded parts",
			},
		),
		partDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "walupload_part_duration_seconds",
				Help:    "Time taken to upload a part, including failed attempts",
				Buckets: prometheus.DefBuckets,
			},
		),
	}

	c.registry.MustRegister(
		c.actionsTotal,
		c.opsTotal,
		c.bytesTotal,
		c.partDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// IncAction counts an action by name
func (c *Collector) IncAction(name string) {
	c.actionsTotal.WithLabelValues(name).Inc()
}

// IncOperation counts an appended operation by kind
func (c *Collector) IncOperation(kind string) {
	c.opsTotal.WithLabelValues(kind).Inc()
}

// AddBytes adds to total bytes uploaded
func (c *Collector) AddBytes(bytes int64) {
	c.bytesTotal.Add(float64(bytes))
}

// ObservePartDuration observes one part upload attempt
func (c *Collector) ObservePartDuration(duration time.Duration) {
	c.partDuration.Observe(duration.Seconds())
}

// Registry returns the registry the metrics are registered with
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's registry in the prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// StartServer serves /metrics on addr until ctx is done
func (c *Collector) StartServer(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
