package callguard

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

var (
	errBase     = errors.New("connection error")
	errTimeout  = errors.New("request timed out")
	errAuth     = errors.New("authentication failed")
	errUnlisted = errors.New("exchange maintenance")
)

func TestNewToleratedSet(t *testing.T) {
	tests := []struct {
		name      string
		defaults  []error
		wantKinds int
	}{
		{
			name:      "single default",
			defaults:  []error{errBase},
			wantKinds: 1,
		},
		{
			name:      "multiple defaults",
			defaults:  []error{errBase, errTimeout},
			wantKinds: 2,
		},
		{
			name:      "no defaults",
			defaults:  nil,
			wantKinds: 0,
		},
		{
			name:      "nil defaults are ignored",
			defaults:  []error{errBase, nil, errTimeout},
			wantKinds: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewToleratedSet(tt.defaults...)
			if s == nil {
				t.Fatal("NewToleratedSet() returned nil")
			}
			if got := len(s.Kinds()); got != tt.wantKinds {
				t.Errorf("len(Kinds()) = %v, want %v", got, tt.wantKinds)
			}
		})
	}
}

func TestToleratedSet_Add(t *testing.T) {
	s := NewToleratedSet(errBase)

	if err := s.Add(errTimeout); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if !s.Tolerates(errTimeout) {
		t.Error("Tolerates(errTimeout) = false after Add")
	}

	// Adding the same kind twice is a no-op.
	if err := s.Add(errTimeout); err != nil {
		t.Fatalf("Add() duplicate error = %v", err)
	}
	if got := len(s.Kinds()); got != 2 {
		t.Errorf("len(Kinds()) = %v after duplicate Add, want 2", got)
	}

	err := s.Add(nil)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Add(nil) error = %v, want ErrInvalidArgument", err)
	}
}

func TestToleratedSet_Remove(t *testing.T) {
	s := NewToleratedSet(errBase)
	if err := s.Add(errTimeout); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if err := s.Remove(errTimeout); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if s.Tolerates(errTimeout) {
		t.Error("Tolerates(errTimeout) = true after Remove")
	}

	// Seeded defaults are not removable.
	err := s.Remove(errBase)
	if err == nil {
		t.Fatal("Remove() of seeded default should return error")
	}
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Remove() error = %v, want ErrInvalidConfig kind", err)
	}
	if !s.Tolerates(errBase) {
		t.Error("Tolerates(errBase) = false, default must survive failed Remove")
	}

	// Removing a kind that was never added is a no-op.
	if err := s.Remove(errAuth); err != nil {
		t.Errorf("Remove() of absent kind error = %v, want nil", err)
	}

	err = s.Remove(nil)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Remove(nil) error = %v, want ErrInvalidArgument", err)
	}
}

func TestToleratedSet_Tolerates(t *testing.T) {
	s := NewToleratedSet(errBase)
	if err := s.Add(errTimeout); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
		{
			name: "direct default match",
			err:  errBase,
			want: true,
		},
		{
			name: "direct added match",
			err:  errTimeout,
			want: true,
		},
		{
			name: "wrapped default",
			err:  fmt.Errorf("fetch klines: %w", errBase),
			want: true,
		},
		{
			name: "deeply wrapped",
			err:  fmt.Errorf("retry 3: %w", fmt.Errorf("fetch klines: %w", errTimeout)),
			want: true,
		},
		{
			name: "unlisted error",
			err:  errUnlisted,
			want: false,
		},
		{
			name: "wrapped unlisted error",
			err:  fmt.Errorf("fetch klines: %w", errUnlisted),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Tolerates(tt.err); got != tt.want {
				t.Errorf("Tolerates(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestToleratedSet_KindsReturnsCopy(t *testing.T) {
	s := NewToleratedSet(errBase)

	kinds := s.Kinds()
	kinds[0] = errUnlisted

	if !s.Tolerates(errBase) {
		t.Error("mutating the Kinds() slice must not affect the set")
	}
	if s.Tolerates(errUnlisted) {
		t.Error("mutating the Kinds() slice must not add kinds")
	}
}

func TestToleratedSet_ConcurrentAccess(t *testing.T) {
	s := NewToleratedSet(errBase)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			kind := fmt.Errorf("kind-%d", id)
			for j := 0; j < 100; j++ {
				if err := s.Add(kind); err != nil {
					t.Errorf("Add() error = %v", err)
				}
				s.Tolerates(errBase)
				s.Kinds()
			}
		}(i)
	}
	wg.Wait()

	if !s.Tolerates(errBase) {
		t.Error("Tolerates(errBase) = false after concurrent access")
	}
	if got := len(s.Kinds()); got != 11 {
		t.Errorf("len(Kinds()) = %v, want 11", got)
	}
}
