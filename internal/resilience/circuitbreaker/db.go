// Package circuitbreaker provides circuit breaker implementations for database operations.
// This file implements the gate the worker's readiness probe pings the pool through.
package circuitbreaker

import (
	"context"
	"database/sql"
	"time"

	"github.com/sony/gobreaker"
)

// DBCircuitBreaker guards database health probes with a circuit
// breaker. While the breaker is open, probes fail immediately with
// gobreaker.ErrOpenState instead of stacking timed-out pings behind an
// unreachable database.
type DBCircuitBreaker struct {
	cb *CircuitBreaker
	db *sql.DB
}

// DBConfig returns the breaker settings for database probes: trip after
// 5 consecutive failures, let 3 probes through half-open after 30
// seconds.
func DBConfig() Config {
	return Config{
		Name:             "database",
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 1.0,
		MinRequests:      5,
	}
}

// NewDBCircuitBreaker wraps the pool with the default probe breaker.
func NewDBCircuitBreaker(db *sql.DB) *DBCircuitBreaker {
	return NewDBCircuitBreakerWithConfig(db, DBConfig())
}

// NewDBCircuitBreakerWithConfig wraps the pool with custom breaker
// settings.
func NewDBCircuitBreakerWithConfig(db *sql.DB, cfg Config) *DBCircuitBreaker {
	return &DBCircuitBreaker{
		cb: New(cfg),
		db: db,
	}
}

// PingContext verifies the database connection through the breaker.
// The caller bounds the probe with its context deadline; a timed-out
// ping counts as a breaker failure like any other.
func (dcb *DBCircuitBreaker) PingContext(ctx context.Context) error {
	_, err := dcb.cb.Execute(func() (interface{}, error) {
		return nil, dcb.db.PingContext(ctx)
	})
	return err
}

// State returns the current breaker state.
func (dcb *DBCircuitBreaker) State() gobreaker.State {
	return dcb.cb.State()
}

// IsOpen reports whether probes are currently rejected.
func (dcb *DBCircuitBreaker) IsOpen() bool {
	return dcb.cb.IsOpen()
}

// DB returns the underlying pool for operations that should not run
// through the probe breaker.
func (dcb *DBCircuitBreaker) DB() *sql.DB {
	return dcb.db
}
