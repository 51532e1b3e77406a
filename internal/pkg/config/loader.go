package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ConfigLoadResult is the outcome of loading one configuration value.
// Value holds the loaded or fallback value, Warnings carries one message
// per fallback applied, and FallbackApplied reports whether the default
// was substituted for an invalid environment value.
//
// Example:
//
//	result := LoadEnvDuration("WATCH_TIMEOUT", 30*time.Minute, ValidatePositiveDuration)
//	if result.FallbackApplied {
//	    for _, warning := range result.Warnings {
//	        logger.Warn(warning)
//	    }
//	}
//	timeout := result.Value.(time.Duration)
type ConfigLoadResult struct {
	Value           interface{}
	Warnings        []string
	FallbackApplied bool
}

func loaded(value interface{}) ConfigLoadResult {
	return ConfigLoadResult{Value: value}
}

func fellBack(defaultValue interface{}, warning string) ConfigLoadResult {
	return ConfigLoadResult{
		Value:           defaultValue,
		Warnings:        []string{warning},
		FallbackApplied: true,
	}
}

// LoadEnvString loads a string from an environment variable, returning
// the default when the variable is unset or empty. No validation is
// performed; use LoadEnvWithFallback when validation is needed.
func LoadEnvString(envKey, defaultValue string) string {
	if value := os.Getenv(envKey); value != "" {
		return value
	}
	return defaultValue
}

// LoadEnvWithFallback loads a string from an environment variable with
// validation and automatic fallback to the default on failure.
//
// An unset or empty variable yields the default silently. A set but
// invalid value yields the default plus a warning, with FallbackApplied
// set. This function never returns an error: configuration loading that
// aborts the process turns a typo into an outage.
//
// Warning format:
//
//	"Invalid {envKey}='{value}': {error}, falling back to default '{default}'"
func LoadEnvWithFallback(envKey, defaultValue string, validator func(string) error) ConfigLoadResult {
	value := os.Getenv(envKey)
	if value == "" {
		return loaded(defaultValue)
	}
	if validator != nil {
		if err := validator(value); err != nil {
			return fellBack(defaultValue, fmt.Sprintf(
				"Invalid %s='%s': %v, falling back to default '%s'",
				envKey, value, err, defaultValue))
		}
	}
	return loaded(value)
}

// LoadEnvDuration loads a duration from an environment variable with
// parsing, validation, and automatic fallback to the default on failure.
// The value must be a Go duration string ("30s", "5m", "1h30m"). Both
// parse errors and validation errors produce a warning and the default
// value, never an error.
func LoadEnvDuration(envKey string, defaultValue time.Duration, validator func(time.Duration) error) ConfigLoadResult {
	valueStr := os.Getenv(envKey)
	if valueStr == "" {
		return loaded(defaultValue)
	}

	parsed, err := time.ParseDuration(valueStr)
	if err != nil {
		return fellBack(defaultValue, fmt.Sprintf(
			"Invalid %s='%s': %v, falling back to default '%v'",
			envKey, valueStr, err, defaultValue))
	}
	if validator != nil {
		if err := validator(parsed); err != nil {
			return fellBack(defaultValue, fmt.Sprintf(
				"Invalid %s='%s': %v, falling back to default '%v'",
				envKey, valueStr, err, defaultValue))
		}
	}
	return loaded(parsed)
}

// LoadEnvInt loads an integer from an environment variable with parsing,
// validation, and automatic fallback to the default on failure. Parsing
// uses fmt.Sscanf, so leading whitespace is tolerated and trailing
// non-digit text is ignored.
func LoadEnvInt(envKey string, defaultValue int, validator func(int) error) ConfigLoadResult {
	valueStr := os.Getenv(envKey)
	if valueStr == "" {
		return loaded(defaultValue)
	}

	var parsed int
	if _, err := fmt.Sscanf(valueStr, "%d", &parsed); err != nil {
		return fellBack(defaultValue, fmt.Sprintf(
			"Invalid %s='%s': invalid integer format, falling back to default '%d'",
			envKey, valueStr, defaultValue))
	}
	if validator != nil {
		if err := validator(parsed); err != nil {
			return fellBack(defaultValue, fmt.Sprintf(
				"Invalid %s='%s': %v, falling back to default '%d'",
				envKey, valueStr, err, defaultValue))
		}
	}
	return loaded(parsed)
}

// LoadEnvBool loads a boolean from an environment variable with
// automatic fallback to the default on failure. Accepted spellings
// match strconv.ParseBool: "1", "t", "true" (any case) for true and
// "0", "f", "false" for false. Anything else produces a warning and
// the default value.
func LoadEnvBool(envKey string, defaultValue bool) ConfigLoadResult {
	valueStr := os.Getenv(envKey)
	if valueStr == "" {
		return loaded(defaultValue)
	}

	parsed, err := strconv.ParseBool(valueStr)
	if err != nil {
		return fellBack(defaultValue, fmt.Sprintf(
			"Invalid %s='%s': invalid boolean format, expected 'true' or 'false', falling back to default '%t'",
			envKey, valueStr, defaultValue))
	}
	return loaded(parsed)
}
