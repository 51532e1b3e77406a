package callguard

import (
	"errors"
	"fmt"
)

// Sentinel errors for admission and registration faults. Typed errors below
// carry the details; errors.Is against these sentinels classifies the kind.
var (
	// ErrInvalidConfig indicates a bad field registration or limiter setup.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidArgument indicates a malformed weight or field name at call time.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrQuotaExceeded indicates that admission was denied for a call.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrUnknownField indicates a call referenced a field that was never registered.
	ErrUnknownField = errors.New("unknown call field")
)

// ConfigError reports an invalid field registration.
type ConfigError struct {
	Field  string
	Reason string
}

// Error returns a formatted message for the registration fault.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("call field '%s': %s", e.Field, e.Reason)
}

// Is reports whether the target matches the invalid-configuration kind.
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// QuotaExceededError reports a denied admission check. The wrapped operation
// was never invoked and no reservation was created.
type QuotaExceededError struct {
	Connection string
	Field      string
	Weight     int64
	Capacity   int64
	InUse      int64 // committed + reserved weight at the time of denial
}

// Error renders the denial in the connection's terms.
func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("connection [%s] call [%s] weight limit exceeded", e.Connection, e.Field)
}

// Is reports whether the target matches the quota-exceeded kind.
func (e *QuotaExceededError) Is(target error) bool {
	return target == ErrQuotaExceeded
}

// UnknownFieldError reports a call against a field name that was never
// registered. This is a call-site fault, so it matches ErrInvalidArgument as
// well as ErrUnknownField.
type UnknownFieldError struct {
	Connection string
	Field      string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("connection [%s] has no call field [%s]", e.Connection, e.Field)
}

func (e *UnknownFieldError) Is(target error) bool {
	return target == ErrUnknownField || target == ErrInvalidArgument
}

// InvalidWeightError reports a negative call weight.
type InvalidWeightError struct {
	Field  string
	Weight int64
}

func (e *InvalidWeightError) Error() string {
	return fmt.Sprintf("invalid call weight %d for field '%s'", e.Weight, e.Field)
}

func (e *InvalidWeightError) Is(target error) bool {
	return target == ErrInvalidArgument
}
