package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics holds the crawler's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	PagesTotal   *prometheus.CounterVec
	RecordsTotal *prometheus.CounterVec
	ErrorsTotal  *prometheus.CounterVec
	RunDuration  *prometheus.HistogramVec
}

// New registers the collectors on a private registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		PagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ggcrawl_pages_fetched_total",
			Help: "The total number of pages fetched, by page kind",
		}, []string{"kind"}),
		RecordsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ggcrawl_records_exported_total",
			Help: "The total number of business records exported",
		}, []string{"category"}),
		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ggcrawl_errors_total",
			Help: "The total number of errors encountered",
		}, []string{"type"}), // e.g. 'fetch', 'parse', 'export'
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ggcrawl_run_duration_seconds",
			Help:    "Wall time of a category crawl",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		}, []string{"category", "status"}),
	}
}

// IncPages counts a fetched page of the given kind
func (m *Metrics) IncPages(kind string) {
	if m == nil {
		return
	}
	m.PagesTotal.WithLabelValues(kind).Inc()
}

// IncRecords counts an exported record
func (m *Metrics) IncRecords(category string) {
	if m == nil {
		return
	}
	m.RecordsTotal.WithLabelValues(category).Inc()
}

// IncErrors counts a failure by type (fetch, parse, pagination, export)
func (m *Metrics) IncErrors(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// ObserveRun records the duration of a finished run
func (m *Metrics) ObserveRun(category, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RunDuration.WithLabelValues(category, status).Observe(d.Seconds())
}

// Handler exposes /metrics and /healthz
func (m *Metrics) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// Serve runs the metrics endpoint on addr until ctx is cancelled
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down metrics server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server failed: %w", err)
	}
}
