package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"autotrade/internal/pkg/config"
	"autotrade/internal/usecase/notify"
)

// HealthResponse is the GET /health body.
type HealthResponse struct {
	Status string `json:"status"`
}

// ChannelHealthResponse is the GET /health/channels body.
type ChannelHealthResponse struct {
	Healthy  bool            `json:"healthy"`
	Channels []ChannelStatus `json:"channels"`
}

// ChannelStatus is one notification channel's entry in the health report.
type ChannelStatus struct {
	Name               string     `json:"name"`
	Enabled            bool       `json:"enabled"`
	CircuitBreakerOpen bool       `json:"circuit_breaker_open"`
	DisabledUntil      *time.Time `json:"disabled_until,omitempty"`
}

// startMetricsServer serves /metrics from the default registry plus any
// extra gatherers (the call admission registry rides in this way), a
// /health liveness probe, and /health/channels with notification breaker
// state. The server runs in the background and drains when ctx is
// canceled. METRICS_PORT overrides the default port 9090.
func startMetricsServer(ctx context.Context, logger *slog.Logger, notifyService notify.Service, extra ...prometheus.Gatherer) *http.Server {
	port := metricsPort(logger)

	gatherers := append(prometheus.Gatherers{prometheus.DefaultGatherer}, extra...)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/health/channels", channelHealthHandler(notifyService))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("metrics server starting", slog.Int("port", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", slog.Any("error", err))
		}
	}()

	go func() {
		<-ctx.Done()
		logger.Info("metrics server shutdown initiated")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", slog.Any("error", err))
		} else {
			logger.Info("metrics server stopped")
		}
	}()

	return server
}

// metricsPort resolves METRICS_PORT with a logged fallback to 9090 on a
// malformed or out-of-range value.
func metricsPort(logger *slog.Logger) int {
	result := config.LoadEnvInt("METRICS_PORT", 9090, func(v int) error {
		return config.ValidateIntRange(v, 1, 65535)
	})
	for _, warning := range result.Warnings {
		logger.Warn("METRICS_PORT fallback applied", slog.String("warning", warning))
	}
	return result.Value.(int)
}

// healthHandler handles GET /health, the liveness probe.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

// channelHealthHandler serves GET /health/channels. The report is healthy
// only while no enabled channel has an open circuit breaker; disabled
// channels appear in the listing but never fail the check. Before the
// notify service is wired the endpoint answers 503.
func channelHealthHandler(notifyService notify.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if notifyService == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "notification service not initialized",
			})
			return
		}

		channels, healthy := summarizeChannels(notifyService.GetChannelHealth())

		statusCode := http.StatusOK
		if !healthy {
			statusCode = http.StatusServiceUnavailable
		}
		writeJSON(w, statusCode, ChannelHealthResponse{Healthy: healthy, Channels: channels})
	}
}

func summarizeChannels(statuses []notify.ChannelHealthStatus) ([]ChannelStatus, bool) {
	channels := make([]ChannelStatus, 0, len(statuses))
	healthy := true
	for _, status := range statuses {
		channels = append(channels, ChannelStatus{
			Name:               status.Name,
			Enabled:            status.Enabled,
			CircuitBreakerOpen: status.CircuitBreakerOpen,
			DisabledUntil:      status.DisabledUntil,
		})
		if status.Enabled && status.CircuitBreakerOpen {
			healthy = false
		}
	}
	return channels, healthy
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}
