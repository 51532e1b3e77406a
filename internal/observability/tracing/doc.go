// Package tracing provides OpenTelemetry tracing integration.
//
// This package provides distributed tracing for the collection worker using
// OpenTelemetry. Each scheduled job run becomes a root span; the work done
// for individual markets or sources becomes child spans.
//
// Features:
//   - Job run tracing with outcome recording
//   - Per-market and per-source step spans
//   - Exporter wiring is left to the host process
//
// Example usage:
//
//	import "autotrade/internal/observability/tracing"
//
//	func runCollect(ctx context.Context) {
//	    ctx, span := tracing.StartJob(ctx, "collect")
//	    err := service.CollectAll(ctx)
//	    tracing.EndJob(span, err)
//	}
package tracing
