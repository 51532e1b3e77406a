package callguard

import "time"

// callEvent is one committed call in a field's history.
type callEvent struct {
	at     time.Time
	weight int64
}

// callField is the bookkeeping for one named quota. All access goes through
// the owning Limiter's mutex.
type callField struct {
	interval  time.Duration
	maxWeight int64

	// history holds committed events in ascending timestamp order. Commits
	// append, eviction pops from the front.
	history        []callEvent
	currentWeight  int64
	reservedWeight int64

	// oldest caches the head timestamp of history. The zero value is the
	// "unset" sentinel meaning history is empty.
	oldest time.Time

	// lastStamp is the most recent commit timestamp, used to keep history
	// ordered when the clock steps backwards.
	lastStamp time.Time
}

func newCallField(interval time.Duration, maxWeight int64) *callField {
	return &callField{interval: interval, maxWeight: maxWeight}
}

// stale reports whether the cached oldest entry may have expired at now, i.e.
// whether an eviction pass could remove anything. An unset oldest with a
// non-empty history cannot occur under correct operation but is treated as
// stale so a refresh repairs it.
func (f *callField) stale(now time.Time) bool {
	if f.oldest.IsZero() {
		return len(f.history) > 0
	}
	return !f.oldest.After(now.Add(-f.interval))
}

// evictExpired pops every history entry with a timestamp at or before
// now - interval, subtracting its weight, then re-caches the surviving head
// timestamp (or the unset sentinel when history drained). Returns the number
// of entries removed.
func (f *callField) evictExpired(now time.Time) int {
	cutoff := now.Add(-f.interval)
	evicted := 0
	for len(f.history) > 0 && !f.history[0].at.After(cutoff) {
		f.currentWeight -= f.history[0].weight
		f.history = f.history[1:]
		evicted++
	}
	if len(f.history) == 0 {
		f.history = nil
		f.oldest = time.Time{}
	} else {
		f.oldest = f.history[0].at
	}
	return evicted
}

// refresh runs an eviction pass only when the cached oldest entry may have
// expired.
func (f *callField) refresh(now time.Time) int {
	if !f.stale(now) {
		return 0
	}
	return f.evictExpired(now)
}

// admissible reports whether a call of the given weight fits under the
// capacity, counting both committed and reserved weight. The caller must have
// refreshed the field first.
func (f *callField) admissible(weight int64) bool {
	return f.currentWeight+f.reservedWeight+weight <= f.maxWeight
}
