package callguard

import "time"

// NoOpMetrics implements the Metrics interface with no-op implementations.
//
// This implementation is useful for:
// - Testing environments where metrics are not needed
// - Disabling metrics collection (e.g., development mode)
// - Benchmarking admission performance without metrics overhead
//
// All methods are no-ops and have minimal performance impact.
type NoOpMetrics struct{}

// NewNoOpMetrics creates a new NoOpMetrics instance.
func NewNoOpMetrics() *NoOpMetrics {
	return &NoOpMetrics{}
}

// RecordAdmission is a no-op implementation.
func (m *NoOpMetrics) RecordAdmission(connection, field string, allowed bool) {
	// No-op
}

// RecordSettlement is a no-op implementation.
func (m *NoOpMetrics) RecordSettlement(connection, field, outcome string) {
	// No-op
}

// RecordEviction is a no-op implementation.
func (m *NoOpMetrics) RecordEviction(connection, field string, evicted int) {
	// No-op
}

// SetFieldWeight is a no-op implementation.
func (m *NoOpMetrics) SetFieldWeight(connection, field string, committed, reserved int64) {
	// No-op
}

// RecordGuardDuration is a no-op implementation.
func (m *NoOpMetrics) RecordGuardDuration(connection, field string, d time.Duration) {
	// No-op
}
