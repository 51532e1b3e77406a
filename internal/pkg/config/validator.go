// Package config provides reusable validation, environment loading, and
// metrics helpers for component configuration. Components load their
// settings through these helpers so that invalid values fall back to
// safe defaults instead of crashing the process at startup.
package config

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ValidateCronSchedule validates a standard five-field cron expression
// ("minute hour day month weekday") using the robfig/cron/v3 parser.
//
// Example:
//
//	err := ValidateCronSchedule("*/15 * * * *") // every 15 minutes
//	err := ValidateCronSchedule("0 7 * * *")    // daily at 07:00
//
// Validation tool: https://crontab.guru/
func ValidateCronSchedule(schedule string) error {
	if schedule == "" {
		return fmt.Errorf("invalid cron schedule: cannot be empty")
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	_, err := parser.Parse(schedule)
	if err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", schedule, err)
	}

	return nil
}

// ValidateTimezone validates an IANA timezone name ("UTC", "Asia/Tokyo",
// "America/New_York") by attempting to load it with time.LoadLocation.
//
// Loading depends on timezone data being present on the system, so this
// can fail for valid names in containers missing the tzdata package.
// UTC offsets like "+09:00" are not IANA names and are rejected.
func ValidateTimezone(timezone string) error {
	if timezone == "" {
		return fmt.Errorf("invalid timezone: cannot be empty")
	}

	_, err := time.LoadLocation(timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone '%s': %w", timezone, err)
	}

	return nil
}

// ValidateDuration validates that a duration lies within [min, max]
// (both inclusive). Error messages include the actual value and the
// violated bound so operators can correct the setting.
//
// Example:
//
//	// Job timeout between 1m and 4h
//	err := ValidateDuration(30*time.Minute, 1*time.Minute, 4*time.Hour)
func ValidateDuration(duration, min, max time.Duration) error {
	if min > max {
		return fmt.Errorf("invalid range: min (%v) cannot be greater than max (%v)", min, max)
	}

	if duration < min {
		return fmt.Errorf("duration %v is below minimum %v", duration, min)
	}

	if duration > max {
		return fmt.Errorf("duration %v exceeds maximum %v", duration, max)
	}

	return nil
}

// ValidateIntRange validates that an integer lies within [min, max]
// (both inclusive). Used for ports, concurrency limits, and counts.
//
// Example:
//
//	// Notification concurrency between 1 and 50
//	err := ValidateIntRange(10, 1, 50)
func ValidateIntRange(value, min, max int) error {
	if min > max {
		return fmt.Errorf("invalid range: min (%d) cannot be greater than max (%d)", min, max)
	}

	if value < min {
		return fmt.Errorf("value %d is below minimum %d", value, min)
	}

	if value > max {
		return fmt.Errorf("value %d exceeds maximum %d", value, max)
	}

	return nil
}

// ValidatePositiveDuration validates that a duration is strictly
// positive. Zero usually means "disabled" or "infinite" in callers,
// which is never what a timeout or interval setting intends.
func ValidatePositiveDuration(duration time.Duration) error {
	if duration <= 0 {
		return fmt.Errorf("duration must be positive, got %v", duration)
	}

	return nil
}
