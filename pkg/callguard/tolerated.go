package callguard

import (
	"errors"
	"sync"
)

// ToleratedSet classifies operation errors for settlement: a tolerated error
// rolls the reservation back, anything else commits.
//
// Each connection owns its set; there is no shared global state. The set is
// seeded with the connection's default kinds at construction, and callers may
// add narrower kinds (or their own sentinels) later. Seeded defaults cannot
// be removed.
type ToleratedSet struct {
	mu       sync.RWMutex
	kinds    []error
	defaults map[error]bool
}

// NewToleratedSet creates a set seeded with the given default kinds.
// Nil defaults are ignored.
func NewToleratedSet(defaults ...error) *ToleratedSet {
	s := &ToleratedSet{defaults: make(map[error]bool)}
	for _, kind := range defaults {
		if kind == nil {
			continue
		}
		s.kinds = append(s.kinds, kind)
		s.defaults[kind] = true
	}
	return s
}

// Add registers an additional tolerated kind. A nil kind is rejected with
// ErrInvalidArgument. Adding a kind twice is a no-op.
func (s *ToleratedSet) Add(kind error) error {
	if kind == nil {
		return ErrInvalidArgument
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.kinds {
		if existing == kind {
			return nil
		}
	}
	s.kinds = append(s.kinds, kind)
	return nil
}

// Remove withdraws a previously added kind. A nil kind is rejected with
// ErrInvalidArgument; removing a seeded default is a configuration error;
// removing a kind that was never added is a no-op.
func (s *ToleratedSet) Remove(kind error) error {
	if kind == nil {
		return ErrInvalidArgument
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.defaults[kind] {
		return &ConfigError{Field: kind.Error(), Reason: "default tolerated kind cannot be removed"}
	}
	for i, existing := range s.kinds {
		if existing == kind {
			s.kinds = append(s.kinds[:i], s.kinds[i+1:]...)
			return nil
		}
	}
	return nil
}

// Tolerates reports whether err matches any kind in the set, following
// wrapped error chains.
func (s *ToleratedSet) Tolerates(err error) bool {
	if err == nil {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, kind := range s.kinds {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// Kinds returns a copy of the current tolerated kinds, defaults first.
func (s *ToleratedSet) Kinds() []error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]error, len(s.kinds))
	copy(out, s.kinds)
	return out
}
