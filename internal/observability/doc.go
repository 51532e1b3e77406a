// Package observability provides production-grade observability infrastructure
// including structured logging, Prometheus metrics, and OpenTelemetry tracing.
//
// This package centralizes observability concerns to enable:
//   - Job run tracing across log entries
//   - Structured logging with context propagation
//   - Prometheus metrics for monitoring
//   - Performance profiling and debugging
//
// Subpackages:
//   - logging: Structured logging utilities with slog
//   - metrics: Prometheus metrics registry and recorders
//   - slo: Service level objective tracking for collection jobs
//   - tracing: OpenTelemetry tracing integration
//
// Example usage:
//
//	import (
//	    "autotrade/internal/observability/logging"
//	    "autotrade/internal/observability/metrics"
//	)
//
//	func main() {
//	    logger := logging.NewLogger()
//	    logger.Info("worker started")
//
//	    metrics.RecordCandlesFetched("Bitstamp:BTC/USD@1m", 10)
//	}
package observability
