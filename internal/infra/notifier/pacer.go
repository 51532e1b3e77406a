package notifier

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces webhook sends to a channel's published request budget
// using a token bucket. It only covers this process; a 429 from the
// remote side is still handled by the senders' retry loops.
//
// The pacer is deliberately not a callguard field: webhook budgets are
// simple sustained rates with no per-call weights, and a blocking wait
// is the behavior we want here, not a synchronous admission verdict.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer creates a pacer sustaining perSecond requests with the given
// burst capacity. Each channel constructs its own from the service's
// published limit (Discord webhooks: 30 req/min; Slack incoming
// webhooks: about 1 req/s).
func NewPacer(perSecond float64, burst int) *Pacer {
	return &Pacer{
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Wait blocks until the bucket releases a token or ctx ends, and
// reports how long the caller was held. A zero hold means the send was
// within budget. The error is the context's own error when the wait is
// interrupted or cannot complete before the deadline.
func (p *Pacer) Wait(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	err := p.limiter.Wait(ctx)
	return time.Since(start), err
}

// Limit returns the sustained per-second budget.
func (p *Pacer) Limit() float64 {
	return float64(p.limiter.Limit())
}

// Burst returns the burst capacity.
func (p *Pacer) Burst() int {
	return p.limiter.Burst()
}
