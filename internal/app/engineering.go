package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gantryio/gantry/internal/adapter/metrics"
	"github.com/gantryio/gantry/internal/adapter/stats"
	"github.com/gantryio/gantry/internal/core/domain"
	"github.com/gantryio/gantry/internal/core/ports"
	"github.com/gantryio/gantry/internal/version"
	"github.com/gantryio/gantry/pkg/format"
)

// EngineeringServer is the operator-facing sidecar listener: prometheus
// metrics on /metrics and a JSON stats dump on /internal/stats. It never
// shares a port with proxied traffic.
type EngineeringServer struct {
	registry  *metrics.PrometheusRegistry
	collector *stats.Collector
	server    *http.Server
	logger    *slog.Logger
	started   time.Time
}

func NewEngineeringServer(address string, collector *stats.Collector, logger *slog.Logger) *EngineeringServer {
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	e := &EngineeringServer{
		registry:  metrics.NewPrometheusRegistry(promRegistry),
		collector: collector,
		logger:    logger,
		started:   time.Now(),
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/internal/stats", e.handleStats)
	mux.HandleFunc("/internal/version", e.handleVersion)

	e.server = &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return e
}

// Registry exposes the instrument registry the rest of the gateway records
// into.
func (e *EngineeringServer) Registry() ports.MetricsRegistry {
	return e.registry
}

func (e *EngineeringServer) Start() error {
	e.logger.Info("engineering server listening", "address", e.server.Addr)
	err := e.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (e *EngineeringServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.server.Shutdown(ctx); err != nil {
		e.logger.Warn("engineering server shutdown", "error", err)
	}
}

func (e *EngineeringServer) handleStats(w http.ResponseWriter, _ *http.Request) {
	payload := struct {
		Uptime   string                                `json:"uptime"`
		Requests stats.RequestSnapshot                 `json:"requests"`
		Servers  map[string]domain.ServerStatsSnapshot `json:"servers"`
	}{
		Uptime:   format.TimeDuration(time.Since(e.started)),
		Requests: e.collector.RequestSnapshot(),
		Servers:  e.collector.Snapshot(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		e.logger.Warn("stats encode failed", "error", err)
	}
}

func (e *EngineeringServer) handleVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"name":    version.Name,
		"version": version.Version,
	})
}
