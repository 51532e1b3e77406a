// Package connection provides the shared base of all outbound connections in
// the toolkit: market data feeds, exchange bindings, and databases.
//
// A Connection couples three things: a callguard.Limiter holding the
// connection's weighted call fields, a tolerated-error set seeded with the
// transport fault kinds from this package, and the credential material the
// concrete transport needs. Every outbound call goes through the Call
// envelope so admission, reservation, and settlement follow the same rules
// regardless of transport.
package connection

import (
	"context"
	"sync/atomic"

	"autotrade/pkg/callguard"
)

// Config holds the construction-time settings of a Connection.
type Config struct {
	// Name identifies the connection in errors, logs, and metrics.
	Name string

	// CallLimits declares the connection's call fields. May be empty for
	// connections without quota enforcement.
	CallLimits map[string]callguard.FieldLimit

	// Keys holds credential material by role, e.g. "public" and "private".
	Keys map[string]string

	// Clock overrides the limiter's clock. Defaults to the system clock.
	Clock callguard.Clock

	// Metrics receives the limiter's admission events. Defaults to noop.
	Metrics callguard.Metrics
}

// Connection is the embeddable base of every outbound connection.
type Connection struct {
	name      string
	limiter   *callguard.Limiter
	tolerated *callguard.ToleratedSet
	keys      map[string]string
	closed    atomic.Bool
}

// New creates a Connection with its call fields registered and its tolerated
// set seeded with ErrConnection.
func New(cfg Config) (*Connection, error) {
	if cfg.Name == "" {
		return nil, &callguard.ConfigError{Field: "name", Reason: "connection name must not be empty"}
	}

	limiter := callguard.New(callguard.Config{
		Name:    cfg.Name,
		Clock:   cfg.Clock,
		Metrics: cfg.Metrics,
	})
	if err := limiter.RegisterFields(cfg.CallLimits); err != nil {
		return nil, err
	}

	keys := make(map[string]string, len(cfg.Keys))
	for role, key := range cfg.Keys {
		keys[role] = key
	}

	return &Connection{
		name:      cfg.Name,
		limiter:   limiter,
		tolerated: callguard.NewToleratedSet(ErrConnection),
		keys:      keys,
	}, nil
}

// Name returns the connection's name.
func (c *Connection) Name() string {
	return c.name
}

// Limiter exposes the connection's call fields for registration and
// diagnostics.
func (c *Connection) Limiter() *callguard.Limiter {
	return c.limiter
}

// Tolerated exposes the connection's tolerated-error set. ErrConnection is
// the seeded default and cannot be removed.
func (c *Connection) Tolerated() *callguard.ToleratedSet {
	return c.tolerated
}

// Key returns the credential stored under the given role.
func (c *Connection) Key(role string) (string, bool) {
	key, ok := c.keys[role]
	return key, ok
}

// IsAdmissible reports whether a call of the given weight would currently be
// admitted on the named field.
func (c *Connection) IsAdmissible(field string, weight int64) (bool, error) {
	return c.limiter.IsAdmissible(field, weight)
}

// Close marks the connection closed. Calls after Close fail with ErrClosed.
// Closing twice is a no-op. Concrete transports wrap this to release their
// own resources.
func (c *Connection) Close() error {
	c.closed.Store(true)
	return nil
}

// Closed reports whether Close was called.
func (c *Connection) Closed() bool {
	return c.closed.Load()
}

// Call wraps op with the connection's admission envelope: reserve on the
// named field, run op without the lock, then settle by the tolerated-set
// classification. An empty field name or zero weight runs op without quota
// accounting, except that a non-empty field name must be registered.
func Call[T any](ctx context.Context, c *Connection, field string, weight int64, op func(context.Context) (T, error)) (T, error) {
	if c.closed.Load() {
		var zero T
		return zero, &ClosedError{Connection: c.name}
	}
	return callguard.Do(ctx, c.limiter, field, weight, c.tolerated.Tolerates, op)
}
