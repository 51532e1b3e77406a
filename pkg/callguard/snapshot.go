package callguard

import (
	"fmt"
	"time"
)

// FieldSnapshot is a read-only view of one call field, taken under the
// limiter's lock after a lazy refresh. It exists for diagnostics and tests;
// holding one grants no admission.
type FieldSnapshot struct {
	// Name is the field's registered name.
	Name string

	// Interval is the sliding window length.
	Interval time.Duration

	// MaxWeight is the capacity for the window.
	MaxWeight int64

	// CurrentWeight is the committed weight inside the window.
	CurrentWeight int64

	// ReservedWeight is the weight held by calls still in flight.
	ReservedWeight int64

	// OldestAt is the timestamp of the oldest history entry; the zero value
	// means history is empty.
	OldestAt time.Time

	// Pending is the number of history entries inside the window.
	Pending int
}

// Remaining returns how much weight is still admissible right now.
func (s FieldSnapshot) Remaining() int64 {
	remaining := s.MaxWeight - s.CurrentWeight - s.ReservedWeight
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Idle reports whether the field has no committed or reserved weight.
func (s FieldSnapshot) Idle() bool {
	return s.CurrentWeight == 0 && s.ReservedWeight == 0
}

// String returns a human-readable representation of the snapshot.
func (s FieldSnapshot) String() string {
	return fmt.Sprintf(
		"FieldSnapshot{Name: %s, Window: %s, Weight: %d+%d/%d, Pending: %d}",
		s.Name,
		s.Interval,
		s.CurrentWeight,
		s.ReservedWeight,
		s.MaxWeight,
		s.Pending,
	)
}
