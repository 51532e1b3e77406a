package callguard

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Limiter owns the call fields of one connection and answers admission
// checks against them.
//
// All field state is guarded by a single mutex. The envelope holds the lock
// for the admission-plus-reserve step and again for settlement, but never
// while the wrapped operation runs, so calls on the same field do not
// serialize on network latency.
type Limiter struct {
	name    string
	clock   Clock
	metrics Metrics

	mu     sync.Mutex
	fields map[string]*callField
}

// New creates a Limiter with no registered fields.
func New(cfg Config) *Limiter {
	cfg.ApplyDefaults()
	return &Limiter{
		name:    cfg.Name,
		clock:   cfg.Clock,
		metrics: cfg.Metrics,
		fields:  make(map[string]*callField),
	}
}

// Name returns the owning connection's name.
func (l *Limiter) Name() string {
	return l.name
}

// RegisterField adds a new call field.
//
// The name must be non-empty and not yet registered; interval and maxWeight
// must both be positive. Violations return a *ConfigError. Fields are never
// removed once registered.
func (l *Limiter) RegisterField(name string, interval time.Duration, maxWeight int64) error {
	if name == "" {
		return &ConfigError{Field: name, Reason: "field name must not be empty"}
	}
	if err := (FieldLimit{Interval: interval, MaxWeight: maxWeight}).Validate(); err != nil {
		return &ConfigError{Field: name, Reason: err.Error()}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.fields[name]; exists {
		return &ConfigError{Field: name, Reason: "field already registered"}
	}
	l.fields[name] = newCallField(interval, maxWeight)
	return nil
}

// RegisterFields registers several fields at once, mirroring the map form
// collaborators use at construction time. Names are processed in sorted order
// so a failure is deterministic; fields registered before the failure remain.
func (l *Limiter) RegisterFields(limits map[string]FieldLimit) error {
	names := make([]string, 0, len(limits))
	for name := range limits {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		limit := limits[name]
		if err := l.RegisterField(name, limit.Interval, limit.MaxWeight); err != nil {
			return err
		}
	}
	return nil
}

// IsAdmissible reports whether a call of the given weight would be admitted
// right now, without reserving anything.
//
// An empty field name is always admissible (the call carries no quota).
// An unregistered field name is an error regardless of weight; a negative
// weight is an error; zero weight on a registered field is always admissible.
// Collaborators that want to pre-check before committing use this; the
// envelope performs the same check atomically with its reservation.
func (l *Limiter) IsAdmissible(fieldName string, weight int64) (bool, error) {
	if fieldName == "" {
		return true, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := l.lookup(fieldName, weight)
	if err != nil {
		return false, err
	}
	if weight == 0 {
		return true, nil
	}

	l.refreshLocked(fieldName, f)
	return f.admissible(weight), nil
}

// HasField reports whether a field name is registered.
func (l *Limiter) HasField(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, ok := l.fields[name]
	return ok
}

// Fields returns the registered field names in sorted order.
func (l *Limiter) Fields() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	names := make([]string, 0, len(l.fields))
	for name := range l.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a point-in-time view of one field for diagnostics. The
// lookup refreshes the field lazily but has no other side effect.
func (l *Limiter) Snapshot(name string) (FieldSnapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, ok := l.fields[name]
	if !ok {
		return FieldSnapshot{}, &UnknownFieldError{Connection: l.name, Field: name}
	}
	l.refreshLocked(name, f)

	return FieldSnapshot{
		Name:           name,
		Interval:       f.interval,
		MaxWeight:      f.maxWeight,
		CurrentWeight:  f.currentWeight,
		ReservedWeight: f.reservedWeight,
		OldestAt:       f.oldest,
		Pending:        len(f.history),
	}, nil
}

// lookup resolves a field under the lock and validates the weight sign.
func (l *Limiter) lookup(fieldName string, weight int64) (*callField, error) {
	f, ok := l.fields[fieldName]
	if !ok {
		return nil, &UnknownFieldError{Connection: l.name, Field: fieldName}
	}
	if weight < 0 {
		return nil, &InvalidWeightError{Field: fieldName, Weight: weight}
	}
	return f, nil
}

// refreshLocked runs a lazy eviction pass and records the outcome. Caller
// holds the mutex.
func (l *Limiter) refreshLocked(name string, f *callField) {
	if evicted := f.refresh(l.clock.Now()); evicted > 0 {
		l.metrics.RecordEviction(l.name, name, evicted)
		l.metrics.SetFieldWeight(l.name, name, f.currentWeight, f.reservedWeight)
	}
}

// admitAndReserve performs the admission check and, when it passes, adds the
// weight to the field's reservation in the same critical section. This is the
// atomic step that keeps N concurrent under-capacity calls from jointly
// overshooting the capacity.
func (l *Limiter) admitAndReserve(fieldName string, weight int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := l.lookup(fieldName, weight)
	if err != nil {
		return err
	}

	l.refreshLocked(fieldName, f)
	if !f.admissible(weight) {
		l.metrics.RecordAdmission(l.name, fieldName, false)
		return &QuotaExceededError{
			Connection: l.name,
			Field:      fieldName,
			Weight:     weight,
			Capacity:   f.maxWeight,
			InUse:      f.currentWeight + f.reservedWeight,
		}
	}

	f.reservedWeight += weight
	l.metrics.RecordAdmission(l.name, fieldName, true)
	l.metrics.SetFieldWeight(l.name, fieldName, f.currentWeight, f.reservedWeight)
	return nil
}

// commit settles a reservation into history: the call plausibly reached the
// remote service, so its weight counts against the window from now on.
func (l *Limiter) commit(fieldName string, weight int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, ok := l.fields[fieldName]
	if !ok {
		return
	}

	stamp := l.clock.Now()
	if f.lastStamp.After(stamp) {
		// Clock went backwards; reuse the last stamp so history stays ordered
		// and the entry cannot expire early.
		slog.Warn("clock skew detected during settlement",
			slog.String("connection", l.name),
			slog.String("field", fieldName),
			slog.Time("now", stamp),
			slog.Time("last_stamp", f.lastStamp),
		)
		stamp = f.lastStamp
	}
	f.lastStamp = stamp

	f.history = append(f.history, callEvent{at: stamp, weight: weight})
	f.currentWeight += weight
	if f.oldest.IsZero() {
		f.oldest = stamp
	}
	f.reservedWeight -= weight

	l.metrics.RecordSettlement(l.name, fieldName, "committed")
	l.metrics.SetFieldWeight(l.name, fieldName, f.currentWeight, f.reservedWeight)
}

// rollback releases a reservation without recording history: the call is
// known never to have consumed the remote resource.
func (l *Limiter) rollback(fieldName string, weight int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, ok := l.fields[fieldName]
	if !ok {
		return
	}

	f.reservedWeight -= weight

	l.metrics.RecordSettlement(l.name, fieldName, "rolled_back")
	l.metrics.SetFieldWeight(l.name, fieldName, f.currentWeight, f.reservedWeight)
}
