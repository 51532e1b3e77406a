package callguard

import (
	"fmt"
	"time"
)

// Config contains the construction-time settings of a Limiter.
type Config struct {
	// Name identifies the owning connection in errors, logs, and metrics.
	Name string

	// Clock provides time operations. Defaults to SystemClock.
	Clock Clock

	// Metrics receives admission and settlement events. Defaults to NoOpMetrics.
	Metrics Metrics
}

// ApplyDefaults fills unset fields with production defaults.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "connection"
	}
	if c.Clock == nil {
		c.Clock = &SystemClock{}
	}
	if c.Metrics == nil {
		c.Metrics = NewNoOpMetrics()
	}
}

// FieldLimit describes one call field's window and capacity, used for
// registering several fields at once.
type FieldLimit struct {
	// Interval is the sliding window length. Must be positive.
	Interval time.Duration

	// MaxWeight is the weight capacity for the window. Must be positive.
	MaxWeight int64
}

// Validate checks that the limit values are usable for registration.
func (f FieldLimit) Validate() error {
	if f.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", f.Interval)
	}
	if f.MaxWeight <= 0 {
		return fmt.Errorf("max weight must be positive, got %d", f.MaxWeight)
	}
	return nil
}
