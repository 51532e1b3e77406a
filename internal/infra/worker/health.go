package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// HealthServer serves the worker's health check endpoints:
//
//   - /health: liveness probe, always 200 OK while the process runs
//   - /health/ready: readiness probe, 200 once SetReady(true) was
//     called and 503 before that or after SetReady(false)
//
// The worker marks itself ready after the database connection and the
// cron scheduler are up, and not ready again when shutdown begins, so
// uptime monitors see the difference between "starting" and "serving".
type HealthServer struct {
	addr    string
	logger  *slog.Logger
	isReady *atomic.Bool
	dbCheck func(context.Context) error
	server  *http.Server
}

// healthResponse is the JSON body of both health endpoints.
type healthResponse struct {
	Status string `json:"status"`
}

// dbCheckTimeout bounds the readiness database probe so a hung pool
// cannot stall the health endpoint past the prober's own deadline.
const dbCheckTimeout = 2 * time.Second

// NewHealthServer creates a health server listening on addr (":9091",
// "localhost:9091"). The server starts in the not-ready state; call
// Start to begin serving.
func NewHealthServer(addr string, logger *slog.Logger) *HealthServer {
	isReady := &atomic.Bool{}
	isReady.Store(false)

	return &HealthServer{
		addr:    addr,
		logger:  logger,
		isReady: isReady,
	}
}

// SetDBCheck installs a database probe that readiness additionally
// requires. The worker passes the circuit-breaker-guarded pool ping, so
// a down database flips /health/ready to 503 without stacking probe
// queries. Must be called before Start.
func (h *HealthServer) SetDBCheck(check func(context.Context) error) {
	h.dbCheck = check
}

// Start runs the health HTTP server until the context is cancelled,
// then shuts it down gracefully with a 5-second drain. It blocks, so
// callers run it in a goroutine. Returns http.ErrServerClosed on
// graceful shutdown and the underlying error on listen failure.
func (h *HealthServer) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleLiveness)
	mux.HandleFunc("/health/ready", h.handleReadiness)

	h.server = &http.Server{
		Addr:         h.addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		h.logger.Info("health server starting", slog.String("addr", h.addr))
		if err := h.server.ListenAndServe(); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		h.logger.Info("health server shutting down")
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			h.logger.Error("health server shutdown failed", slog.Any("error", err))
			return err
		}
		h.logger.Info("health server stopped")
		return http.ErrServerClosed

	case err := <-errChan:
		if err == http.ErrServerClosed {
			return err
		}
		h.logger.Error("health server failed", slog.Any("error", err))
		return err
	}
}

// SetReady sets the readiness state reported by /health/ready.
func (h *HealthServer) SetReady(ready bool) {
	h.isReady.Store(ready)
	h.logger.Info("health server readiness changed", slog.Bool("ready", ready))
}

// handleLiveness always answers 200 with {"status":"ok"}. A dead
// process simply does not answer, which is the signal restarts key on.
func (h *HealthServer) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(healthResponse{Status: "ok"}); err != nil {
		h.logger.Error("failed to encode liveness response", slog.Any("error", err))
	}
}

// handleReadiness answers 200 while the worker is ready and its
// database probe (when installed) passes, and 503 otherwise.
func (h *HealthServer) handleReadiness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if !h.isReady.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		if err := json.NewEncoder(w).Encode(healthResponse{Status: "not ready"}); err != nil {
			h.logger.Error("failed to encode not ready response", slog.Any("error", err))
		}
		return
	}

	if h.dbCheck != nil {
		ctx, cancel := context.WithTimeout(r.Context(), dbCheckTimeout)
		defer cancel()
		if err := h.dbCheck(ctx); err != nil {
			h.logger.Warn("readiness database probe failed", slog.Any("error", err))
			w.WriteHeader(http.StatusServiceUnavailable)
			if err := json.NewEncoder(w).Encode(healthResponse{Status: "database unavailable"}); err != nil {
				h.logger.Error("failed to encode not ready response", slog.Any("error", err))
			}
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(healthResponse{Status: "ok"}); err != nil {
		h.logger.Error("failed to encode readiness response", slog.Any("error", err))
	}
}
