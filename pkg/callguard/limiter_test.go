package callguard

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// MockClock implements Clock interface for testing
type MockClock struct {
	mu  sync.RWMutex
	now time.Time
}

func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t}
}

func (m *MockClock) Now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now
}

func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

func (m *MockClock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		wantName string
	}{
		{
			name: "with full config",
			config: Config{
				Name:    "binance",
				Clock:   NewMockClock(time.Now()),
				Metrics: NewNoOpMetrics(),
			},
			wantName: "binance",
		},
		{
			name:     "with empty config should use defaults",
			config:   Config{},
			wantName: "connection",
		},
		{
			name: "with nil clock should use system clock",
			config: Config{
				Name: "cryptocompare",
			},
			wantName: "cryptocompare",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(tt.config)
			if l == nil {
				t.Fatal("New() returned nil")
			}
			if l.Name() != tt.wantName {
				t.Errorf("Name() = %v, want %v", l.Name(), tt.wantName)
			}
			if l.clock == nil {
				t.Error("clock should not be nil")
			}
			if l.metrics == nil {
				t.Error("metrics should not be nil")
			}
			if l.fields == nil {
				t.Error("fields map should not be nil")
			}
		})
	}
}

func TestLimiter_RegisterField(t *testing.T) {
	tests := []struct {
		name      string
		fieldName string
		interval  time.Duration
		maxWeight int64
		wantErr   bool
	}{
		{
			name:      "valid field",
			fieldName: "default",
			interval:  60 * time.Second,
			maxWeight: 10,
			wantErr:   false,
		},
		{
			name:      "empty field name",
			fieldName: "",
			interval:  60 * time.Second,
			maxWeight: 10,
			wantErr:   true,
		},
		{
			name:      "zero interval",
			fieldName: "orders",
			interval:  0,
			maxWeight: 10,
			wantErr:   true,
		},
		{
			name:      "negative interval",
			fieldName: "orders",
			interval:  -1 * time.Second,
			maxWeight: 10,
			wantErr:   true,
		},
		{
			name:      "zero max weight",
			fieldName: "orders",
			interval:  60 * time.Second,
			maxWeight: 0,
			wantErr:   true,
		},
		{
			name:      "negative max weight",
			fieldName: "orders",
			interval:  60 * time.Second,
			maxWeight: -5,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(Config{Name: "test"})

			err := l.RegisterField(tt.fieldName, tt.interval, tt.maxWeight)
			if (err != nil) != tt.wantErr {
				t.Fatalf("RegisterField() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("RegisterField() error = %v, want ErrInvalidConfig kind", err)
				}
				if l.HasField(tt.fieldName) {
					t.Errorf("HasField(%q) = true after failed registration", tt.fieldName)
				}
				return
			}
			if !l.HasField(tt.fieldName) {
				t.Errorf("HasField(%q) = false after registration", tt.fieldName)
			}
		})
	}
}

func TestLimiter_RegisterField_Duplicate(t *testing.T) {
	l := New(Config{Name: "test"})

	if err := l.RegisterField("default", 60*time.Second, 10); err != nil {
		t.Fatalf("RegisterField() error = %v", err)
	}

	err := l.RegisterField("default", 30*time.Second, 20)
	if err == nil {
		t.Fatal("RegisterField() with duplicate name should return error")
	}
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("RegisterField() error = %v, want ErrInvalidConfig kind", err)
	}

	// The original registration must survive unchanged.
	snap, err := l.Snapshot("default")
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if snap.Interval != 60*time.Second {
		t.Errorf("Interval = %v, want %v", snap.Interval, 60*time.Second)
	}
	if snap.MaxWeight != 10 {
		t.Errorf("MaxWeight = %v, want 10", snap.MaxWeight)
	}
}

func TestLimiter_RegisterFields(t *testing.T) {
	l := New(Config{Name: "test"})

	err := l.RegisterFields(map[string]FieldLimit{
		"default": {Interval: 60 * time.Second, MaxWeight: 10},
		"orders":  {Interval: 10 * time.Second, MaxWeight: 5},
	})
	if err != nil {
		t.Fatalf("RegisterFields() error = %v", err)
	}

	got := l.Fields()
	want := []string{"default", "orders"}
	if len(got) != len(want) {
		t.Fatalf("Fields() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Fields()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestLimiter_RegisterFields_PartialFailure(t *testing.T) {
	l := New(Config{Name: "test"})

	// Names are processed in sorted order, so "alpha" registers before "beta"
	// fails validation.
	err := l.RegisterFields(map[string]FieldLimit{
		"alpha": {Interval: 60 * time.Second, MaxWeight: 10},
		"beta":  {Interval: 0, MaxWeight: 10},
	})
	if err == nil {
		t.Fatal("RegisterFields() with invalid limit should return error")
	}
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("RegisterFields() error = %v, want ErrInvalidConfig kind", err)
	}
	if !l.HasField("alpha") {
		t.Error("HasField(alpha) = false, fields before the failure should remain")
	}
	if l.HasField("beta") {
		t.Error("HasField(beta) = true, invalid field should not register")
	}
}

func TestLimiter_IsAdmissible(t *testing.T) {
	tests := []struct {
		name      string
		fieldName string
		weight    int64
		want      bool
		wantErr   error
	}{
		{
			name:      "empty field name is always admissible",
			fieldName: "",
			weight:    100,
			want:      true,
		},
		{
			name:      "unregistered field",
			fieldName: "missing",
			weight:    1,
			wantErr:   ErrUnknownField,
		},
		{
			name:      "unregistered field with zero weight",
			fieldName: "missing",
			weight:    0,
			wantErr:   ErrUnknownField,
		},
		{
			name:      "negative weight",
			fieldName: "default",
			weight:    -1,
			wantErr:   ErrInvalidArgument,
		},
		{
			name:      "zero weight on registered field",
			fieldName: "default",
			weight:    0,
			want:      true,
		},
		{
			name:      "weight within capacity",
			fieldName: "default",
			weight:    5,
			want:      true,
		},
		{
			name:      "weight exactly at capacity",
			fieldName: "default",
			weight:    10,
			want:      true,
		},
		{
			name:      "weight above capacity",
			fieldName: "default",
			weight:    11,
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(Config{Name: "test", Clock: NewMockClock(time.Now())})
			if err := l.RegisterField("default", 60*time.Second, 10); err != nil {
				t.Fatalf("RegisterField() error = %v", err)
			}

			got, err := l.IsAdmissible(tt.fieldName, tt.weight)
			if tt.wantErr != nil {
				if err == nil {
					t.Fatalf("IsAdmissible() error = nil, want %v kind", tt.wantErr)
				}
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("IsAdmissible() error = %v, want %v kind", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("IsAdmissible() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("IsAdmissible() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLimiter_IsAdmissible_CountsReservedWeight(t *testing.T) {
	clock := NewMockClock(time.Now())
	l := New(Config{Name: "test", Clock: clock})
	if err := l.RegisterField("default", 60*time.Second, 10); err != nil {
		t.Fatalf("RegisterField() error = %v", err)
	}

	if err := l.admitAndReserve("default", 6); err != nil {
		t.Fatalf("admitAndReserve() error = %v", err)
	}

	// 6 reserved + 5 requested exceeds the capacity of 10.
	ok, err := l.IsAdmissible("default", 5)
	if err != nil {
		t.Fatalf("IsAdmissible() error = %v", err)
	}
	if ok {
		t.Error("IsAdmissible(5) = true with 6 reserved, want false")
	}

	ok, err = l.IsAdmissible("default", 4)
	if err != nil {
		t.Fatalf("IsAdmissible() error = %v", err)
	}
	if !ok {
		t.Error("IsAdmissible(4) = false with 6 reserved, want true")
	}
}

func TestLimiter_WindowEviction(t *testing.T) {
	now := time.Now()
	clock := NewMockClock(now)
	l := New(Config{Name: "test", Clock: clock})
	if err := l.RegisterField("default", 60*time.Second, 10); err != nil {
		t.Fatalf("RegisterField() error = %v", err)
	}

	// Commit weight 10 at t=0, filling the window.
	if err := l.admitAndReserve("default", 10); err != nil {
		t.Fatalf("admitAndReserve() error = %v", err)
	}
	l.commit("default", 10)

	ok, err := l.IsAdmissible("default", 1)
	if err != nil {
		t.Fatalf("IsAdmissible() error = %v", err)
	}
	if ok {
		t.Error("IsAdmissible(1) = true with window full, want false")
	}

	// Just inside the window: the entry must still count.
	clock.Advance(59 * time.Second)
	ok, err = l.IsAdmissible("default", 1)
	if err != nil {
		t.Fatalf("IsAdmissible() error = %v", err)
	}
	if ok {
		t.Error("IsAdmissible(1) = true at t=59s, want false")
	}

	// At exactly t=interval the entry has aged out.
	clock.Advance(1 * time.Second)
	ok, err = l.IsAdmissible("default", 10)
	if err != nil {
		t.Fatalf("IsAdmissible() error = %v", err)
	}
	if !ok {
		t.Error("IsAdmissible(10) = false at t=60s, want true after eviction")
	}

	snap, err := l.Snapshot("default")
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if snap.CurrentWeight != 0 {
		t.Errorf("CurrentWeight = %v, want 0 after eviction", snap.CurrentWeight)
	}
	if snap.Pending != 0 {
		t.Errorf("Pending = %v, want 0 after eviction", snap.Pending)
	}
	if !snap.OldestAt.IsZero() {
		t.Errorf("OldestAt = %v, want zero after history drained", snap.OldestAt)
	}
}

func TestLimiter_WindowEviction_PartialExpiry(t *testing.T) {
	now := time.Now()
	clock := NewMockClock(now)
	l := New(Config{Name: "test", Clock: clock})
	if err := l.RegisterField("default", 60*time.Second, 10); err != nil {
		t.Fatalf("RegisterField() error = %v", err)
	}

	// Commit weight 4 at t=0 and weight 3 at t=30s.
	if err := l.admitAndReserve("default", 4); err != nil {
		t.Fatalf("admitAndReserve() error = %v", err)
	}
	l.commit("default", 4)

	clock.Advance(30 * time.Second)
	if err := l.admitAndReserve("default", 3); err != nil {
		t.Fatalf("admitAndReserve() error = %v", err)
	}
	l.commit("default", 3)

	// At t=60s only the first entry ages out; the second survives.
	clock.Advance(30 * time.Second)
	snap, err := l.Snapshot("default")
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if snap.CurrentWeight != 3 {
		t.Errorf("CurrentWeight = %v, want 3 after partial eviction", snap.CurrentWeight)
	}
	if snap.Pending != 1 {
		t.Errorf("Pending = %v, want 1 after partial eviction", snap.Pending)
	}
	if !snap.OldestAt.Equal(now.Add(30 * time.Second)) {
		t.Errorf("OldestAt = %v, want %v", snap.OldestAt, now.Add(30*time.Second))
	}
}

func TestLimiter_EvictionIdempotence(t *testing.T) {
	now := time.Now()
	clock := NewMockClock(now)
	l := New(Config{Name: "test", Clock: clock})
	if err := l.RegisterField("default", 60*time.Second, 10); err != nil {
		t.Fatalf("RegisterField() error = %v", err)
	}

	if err := l.admitAndReserve("default", 5); err != nil {
		t.Fatalf("admitAndReserve() error = %v", err)
	}
	l.commit("default", 5)

	clock.Advance(90 * time.Second)

	// Repeated refreshes at the same instant must not change state.
	first, err := l.Snapshot("default")
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := l.Snapshot("default")
		if err != nil {
			t.Fatalf("Snapshot() error = %v", err)
		}
		if again != first {
			t.Errorf("Snapshot() after repeat refresh = %v, want %v", again, first)
		}
	}
	if first.CurrentWeight != 0 || first.Pending != 0 {
		t.Errorf("Snapshot() = %v, want drained field", first)
	}
}

func TestLimiter_ClockSkewDuringCommit(t *testing.T) {
	now := time.Now()
	clock := NewMockClock(now)
	l := New(Config{Name: "test", Clock: clock})
	if err := l.RegisterField("default", 60*time.Second, 10); err != nil {
		t.Fatalf("RegisterField() error = %v", err)
	}

	if err := l.admitAndReserve("default", 2); err != nil {
		t.Fatalf("admitAndReserve() error = %v", err)
	}
	l.commit("default", 2)

	// Clock steps backwards between commits. The second entry must reuse the
	// last stamp so history stays ordered and cannot expire early.
	clock.Set(now.Add(-10 * time.Second))
	if err := l.admitAndReserve("default", 3); err != nil {
		t.Fatalf("admitAndReserve() error = %v", err)
	}
	l.commit("default", 3)

	snap, err := l.Snapshot("default")
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if snap.Pending != 2 {
		t.Fatalf("Pending = %v, want 2", snap.Pending)
	}
	if !snap.OldestAt.Equal(now) {
		t.Errorf("OldestAt = %v, want %v (skewed stamp clamped)", snap.OldestAt, now)
	}

	// Both entries age out together at now+60s, not before.
	clock.Set(now.Add(59 * time.Second))
	snap, err = l.Snapshot("default")
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if snap.CurrentWeight != 5 {
		t.Errorf("CurrentWeight = %v at t=59s, want 5", snap.CurrentWeight)
	}

	clock.Set(now.Add(60 * time.Second))
	snap, err = l.Snapshot("default")
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if snap.CurrentWeight != 0 {
		t.Errorf("CurrentWeight = %v at t=60s, want 0", snap.CurrentWeight)
	}
}

func TestLimiter_AdmitAndReserve_Denied(t *testing.T) {
	clock := NewMockClock(time.Now())
	l := New(Config{Name: "binance", Clock: clock})
	if err := l.RegisterField("default", 60*time.Second, 10); err != nil {
		t.Fatalf("RegisterField() error = %v", err)
	}

	if err := l.admitAndReserve("default", 8); err != nil {
		t.Fatalf("admitAndReserve() error = %v", err)
	}

	err := l.admitAndReserve("default", 3)
	if err == nil {
		t.Fatal("admitAndReserve() over capacity should return error")
	}
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("admitAndReserve() error = %v, want ErrQuotaExceeded kind", err)
	}

	var quotaErr *QuotaExceededError
	if !errors.As(err, &quotaErr) {
		t.Fatalf("admitAndReserve() error type = %T, want *QuotaExceededError", err)
	}
	if quotaErr.Connection != "binance" {
		t.Errorf("Connection = %v, want binance", quotaErr.Connection)
	}
	if quotaErr.Field != "default" {
		t.Errorf("Field = %v, want default", quotaErr.Field)
	}
	if quotaErr.InUse != 8 {
		t.Errorf("InUse = %v, want 8", quotaErr.InUse)
	}
	want := "connection [binance] call [default] weight limit exceeded"
	if quotaErr.Error() != want {
		t.Errorf("Error() = %q, want %q", quotaErr.Error(), want)
	}

	// A denial must not leave any reservation behind.
	snap, serr := l.Snapshot("default")
	if serr != nil {
		t.Fatalf("Snapshot() error = %v", serr)
	}
	if snap.ReservedWeight != 8 {
		t.Errorf("ReservedWeight = %v, want 8 (denied call reserved nothing)", snap.ReservedWeight)
	}
}

func TestLimiter_ReservationAccounting(t *testing.T) {
	clock := NewMockClock(time.Now())
	l := New(Config{Name: "test", Clock: clock})
	if err := l.RegisterField("default", 60*time.Second, 10); err != nil {
		t.Fatalf("RegisterField() error = %v", err)
	}

	if err := l.admitAndReserve("default", 4); err != nil {
		t.Fatalf("admitAndReserve() error = %v", err)
	}
	if err := l.admitAndReserve("default", 3); err != nil {
		t.Fatalf("admitAndReserve() error = %v", err)
	}

	snap, err := l.Snapshot("default")
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if snap.ReservedWeight != 7 {
		t.Errorf("ReservedWeight = %v, want 7", snap.ReservedWeight)
	}

	// One call settles by commit, the other by rollback.
	l.commit("default", 4)
	l.rollback("default", 3)

	snap, err = l.Snapshot("default")
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if snap.ReservedWeight != 0 {
		t.Errorf("ReservedWeight = %v, want 0 after settlement", snap.ReservedWeight)
	}
	if snap.CurrentWeight != 4 {
		t.Errorf("CurrentWeight = %v, want 4 (only the commit counts)", snap.CurrentWeight)
	}
	if snap.Pending != 1 {
		t.Errorf("Pending = %v, want 1", snap.Pending)
	}
}

func TestLimiter_Snapshot(t *testing.T) {
	now := time.Now()
	clock := NewMockClock(now)
	l := New(Config{Name: "test", Clock: clock})
	if err := l.RegisterField("default", 60*time.Second, 10); err != nil {
		t.Fatalf("RegisterField() error = %v", err)
	}

	snap, err := l.Snapshot("default")
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if !snap.Idle() {
		t.Errorf("Idle() = false on fresh field, snapshot %v", snap)
	}
	if snap.Remaining() != 10 {
		t.Errorf("Remaining() = %v, want 10", snap.Remaining())
	}

	if err := l.admitAndReserve("default", 3); err != nil {
		t.Fatalf("admitAndReserve() error = %v", err)
	}
	l.commit("default", 3)
	if err := l.admitAndReserve("default", 2); err != nil {
		t.Fatalf("admitAndReserve() error = %v", err)
	}

	snap, err = l.Snapshot("default")
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if snap.Name != "default" {
		t.Errorf("Name = %v, want default", snap.Name)
	}
	if snap.CurrentWeight != 3 {
		t.Errorf("CurrentWeight = %v, want 3", snap.CurrentWeight)
	}
	if snap.ReservedWeight != 2 {
		t.Errorf("ReservedWeight = %v, want 2", snap.ReservedWeight)
	}
	if snap.Remaining() != 5 {
		t.Errorf("Remaining() = %v, want 5", snap.Remaining())
	}
	if snap.Idle() {
		t.Error("Idle() = true with weight in flight")
	}
	if !snap.OldestAt.Equal(now) {
		t.Errorf("OldestAt = %v, want %v", snap.OldestAt, now)
	}

	wantStr := "FieldSnapshot{Name: default, Window: 1m0s, Weight: 3+2/10, Pending: 1}"
	if snap.String() != wantStr {
		t.Errorf("String() = %q, want %q", snap.String(), wantStr)
	}
}

func TestLimiter_Snapshot_UnknownField(t *testing.T) {
	l := New(Config{Name: "test"})

	_, err := l.Snapshot("missing")
	if err == nil {
		t.Fatal("Snapshot() on unknown field should return error")
	}
	if !errors.Is(err, ErrUnknownField) {
		t.Errorf("Snapshot() error = %v, want ErrUnknownField kind", err)
	}
}

func TestLimiter_FieldIsolation(t *testing.T) {
	clock := NewMockClock(time.Now())
	l := New(Config{Name: "test", Clock: clock})
	err := l.RegisterFields(map[string]FieldLimit{
		"default": {Interval: 60 * time.Second, MaxWeight: 10},
		"orders":  {Interval: 10 * time.Second, MaxWeight: 5},
	})
	if err != nil {
		t.Fatalf("RegisterFields() error = %v", err)
	}

	// Fill "default" completely; "orders" must be unaffected.
	if err := l.admitAndReserve("default", 10); err != nil {
		t.Fatalf("admitAndReserve() error = %v", err)
	}
	l.commit("default", 10)

	ok, err := l.IsAdmissible("orders", 5)
	if err != nil {
		t.Fatalf("IsAdmissible() error = %v", err)
	}
	if !ok {
		t.Error("IsAdmissible(orders, 5) = false, fields must not share weight")
	}

	ok, err = l.IsAdmissible("default", 1)
	if err != nil {
		t.Fatalf("IsAdmissible() error = %v", err)
	}
	if ok {
		t.Error("IsAdmissible(default, 1) = true with window full, want false")
	}
}

func TestLimiter_ConcurrentAccess(t *testing.T) {
	clock := NewMockClock(time.Now())
	l := New(Config{Name: "test", Clock: clock})
	if err := l.RegisterField("default", 60*time.Second, 1000000); err != nil {
		t.Fatalf("RegisterField() error = %v", err)
	}

	var wg sync.WaitGroup
	numGoroutines := 10
	callsPerGoroutine := 100

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				if err := l.admitAndReserve("default", 1); err != nil {
					t.Errorf("admitAndReserve() error = %v", err)
					continue
				}
				l.commit("default", 1)
			}
		}()
	}

	wg.Wait()

	snap, err := l.Snapshot("default")
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	wantWeight := int64(numGoroutines * callsPerGoroutine)
	if snap.CurrentWeight != wantWeight {
		t.Errorf("CurrentWeight = %v, want %v", snap.CurrentWeight, wantWeight)
	}
	if snap.ReservedWeight != 0 {
		t.Errorf("ReservedWeight = %v, want 0 after all calls settled", snap.ReservedWeight)
	}
}
