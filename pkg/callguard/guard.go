package callguard

import (
	"context"
	"time"
)

// Do wraps a fallible operation with the reserve/execute/settle protocol of
// one call field.
//
// Flow:
//  1. An empty fieldName runs op directly; the call carries no quota.
//  2. A non-empty fieldName must be registered (unknown fields are an
//     InvalidArgument error even at weight zero) and the weight must not be
//     negative. Weight zero then runs op directly without a reservation.
//  3. Admission and reservation happen in one critical section. A denial
//     returns *QuotaExceededError immediately; op is never invoked and
//     nothing was reserved. There is no queueing or waiting for capacity.
//  4. op runs without the limiter lock held.
//  5. Settlement, in a second critical section:
//     - op error matched by tolerated: the reservation is rolled back, no
//       history entry is made, and the error is returned unchanged. Tolerated
//       means the call provably never consumed the remote resource.
//     - success, or any other error: the weight is committed to history at
//       the current time and the reservation released, then the result or
//       error is returned unchanged. A call that plausibly reached the remote
//       service counts against the quota even when it failed there.
//
// The reservation is released exactly once on every exit path. If op panics,
// a deferred rollback releases it and the panic continues unwinding. A nil
// tolerated predicate treats every error as non-tolerated. Context
// cancellation surfaced as an error from op settles like any other error;
// classify it via the predicate if a cancelled call should not count.
func Do[T any](
	ctx context.Context,
	l *Limiter,
	fieldName string,
	weight int64,
	tolerated func(error) bool,
	op func(context.Context) (T, error),
) (T, error) {
	var zero T

	if fieldName == "" {
		return op(ctx)
	}

	start := time.Now()
	defer func() {
		l.metrics.RecordGuardDuration(l.name, fieldName, time.Since(start))
	}()

	// Validate the field before the zero-weight shortcut so that unknown
	// fields fail regardless of weight.
	l.mu.Lock()
	_, err := l.lookup(fieldName, weight)
	l.mu.Unlock()
	if err != nil {
		return zero, err
	}

	if weight == 0 {
		return op(ctx)
	}

	if err := l.admitAndReserve(fieldName, weight); err != nil {
		return zero, err
	}

	settled := false
	defer func() {
		if !settled {
			l.rollback(fieldName, weight)
		}
	}()

	out, opErr := op(ctx)

	if opErr != nil && tolerated != nil && tolerated(opErr) {
		settled = true
		l.rollback(fieldName, weight)
		return zero, opErr
	}

	settled = true
	l.commit(fieldName, weight)
	return out, opErr
}
