// Package callguard provides weighted, sliding-window call admission for
// outbound API connections.
//
// Each connection owns a set of named call fields. A field tracks the weight
// of calls committed inside a trailing time window plus the weight reserved
// by calls still in flight, and admits a new call only when the sum stays
// within the field's capacity. The Do envelope wraps an arbitrary fallible
// operation with the reserve/execute/settle protocol so that in-flight calls
// are accounted for before they land in history and reservations are always
// released, even when the operation panics.
//
// The package is transport-agnostic: HTTP clients, exchange bindings, and
// database connections all guard their outbound calls the same way. State is
// in-process and transient; nothing is shared across processes or persisted.
package callguard

import "time"

// Clock provides an abstraction for time operations to enable testing.
//
// This interface allows for dependency injection of time functions,
// making it easy to test window eviction with fake clocks.
type Clock interface {
	// Now returns the current time.
	//
	// Production implementations should return time.Now().
	// Test implementations can return fixed or controlled times.
	Now() time.Time
}

// SystemClock is a Clock implementation that uses the system time.
type SystemClock struct{}

// Now returns the current system time.
func (c *SystemClock) Now() time.Time {
	return time.Now()
}

// Metrics defines the interface for recording call admission metrics.
//
// Implementations can use Prometheus, StatsD, or custom metrics systems.
// The connection label is the owning connection's name; the field label is
// the call field consulted.
type Metrics interface {
	// RecordAdmission records the outcome of one admission check made by the
	// envelope (allowed or denied).
	RecordAdmission(connection, field string, allowed bool)

	// RecordSettlement records how a reservation was settled.
	//
	// outcome is "committed" (success or non-tolerated failure) or
	// "rolled_back" (tolerated failure or panic).
	RecordSettlement(connection, field, outcome string)

	// RecordEviction records that expired history entries were purged from a
	// field during a refresh pass.
	RecordEviction(connection, field string, evicted int)

	// SetFieldWeight records the committed and reserved weight of a field
	// after a state change.
	SetFieldWeight(connection, field string, committed, reserved int64)

	// RecordGuardDuration records the wall time one envelope invocation took,
	// including the wrapped operation.
	RecordGuardDuration(connection, field string, d time.Duration)
}
