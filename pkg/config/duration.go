package config

import (
	"fmt"
	"time"
)

// ValidatePositiveDuration validates that a duration is greater than zero.
//
// This is commonly used for timeout, interval, and window validation where a
// non-zero, positive value is required.
//
// Example:
//
//	if err := ValidatePositiveDuration(window); err != nil {
//	    return fmt.Errorf("invalid admission window: %w", err)
//	}
func ValidatePositiveDuration(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("duration must be positive, got %v", d)
	}
	return nil
}
