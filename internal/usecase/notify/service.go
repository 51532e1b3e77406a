package notify

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"autotrade/internal/infra/notifier"

	"github.com/google/uuid"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const requestIDKey contextKey = "request_id"

const (
	// circuitBreakerThreshold is the consecutive-failure count that disables
	// a channel; circuitBreakerTimeout is how long it stays disabled.
	circuitBreakerThreshold = 5
	circuitBreakerTimeout   = 5 * time.Minute

	workerPoolTimeout   = 5 * time.Second  // max wait for a delivery slot
	notificationTimeout = 30 * time.Second // per-delivery deadline
)

// Service fans toolkit notifications out to the configured delivery
// channels. Dispatch never blocks the caller: a stuck webhook must not stall
// the collector or the digest scheduler, so deliveries run in background
// goroutines and failures surface through logs and metrics only.
type Service interface {
	// Dispatch sends msg to every enabled channel and returns immediately.
	// The error result exists for interface symmetry; it is always nil.
	// The caller's ctx is consulted only for an inherited request_id, not
	// for cancellation, since deliveries outlive the calling request.
	Dispatch(ctx context.Context, msg *notifier.Message) error

	// GetChannelHealth reports per-channel circuit breaker state for the
	// health endpoint. Safe for concurrent use.
	GetChannelHealth() []ChannelHealthStatus

	// Shutdown cancels in-flight deliveries and waits for their goroutines
	// until ctx expires.
	Shutdown(ctx context.Context) error
}

// ChannelHealthStatus is one channel's entry in the health report.
type ChannelHealthStatus struct {
	Name               string
	Enabled            bool
	CircuitBreakerOpen bool
	// DisabledUntil is when the breaker re-admits traffic; nil while closed.
	DisabledUntil *time.Time
}

type service struct {
	channels       []Channel
	workerPool     chan struct{} // semaphore bounding concurrent deliveries
	channelHealth  map[string]*channelHealth
	healthMu       sync.RWMutex // protects the channelHealth map
	wg             sync.WaitGroup
	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
}

// channelHealth is the breaker state for one channel. The deliberately simple
// cool-down model (N consecutive failures disable the channel until a known
// deadline) exists because the health endpoint must report that deadline.
type channelHealth struct {
	consecutiveFailures int
	disabledUntil       time.Time
	mu                  sync.Mutex
}

// NewService builds a notification service over the given channels with at
// most maxConcurrent deliveries in flight.
func NewService(channels []Channel, maxConcurrent int) Service {
	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())

	svc := &service{
		channels:       channels,
		workerPool:     make(chan struct{}, maxConcurrent),
		channelHealth:  make(map[string]*channelHealth),
		shutdownCtx:    shutdownCtx,
		shutdownCancel: shutdownCancel,
	}
	for _, ch := range channels {
		svc.channelHealth[ch.Name()] = &channelHealth{}
	}
	return svc
}

// Dispatch implements Service.Dispatch.
func (s *service) Dispatch(ctx context.Context, msg *notifier.Message) error {
	if msg == nil || msg.Title == "" {
		slog.Warn("Invalid notification input",
			slog.Bool("nil_message", msg == nil))
		return nil
	}

	// Inherit the caller's request_id when present so channel logs correlate
	// with the triggering operation.
	requestID, ok := ctx.Value(requestIDKey).(string)
	if !ok || requestID == "" {
		requestID = uuid.New().String()
	}

	enabled := make([]Channel, 0, len(s.channels))
	for _, ch := range s.channels {
		if ch.IsEnabled() {
			enabled = append(enabled, ch)
		}
	}
	SetChannelsEnabled(float64(len(enabled)))

	if len(enabled) == 0 {
		slog.Debug("No notification channels enabled",
			slog.String("request_id", requestID),
			slog.String("title", msg.Title))
		return nil
	}

	slog.Info("Dispatching notification",
		slog.String("request_id", requestID),
		slog.String("title", msg.Title),
		slog.String("url", msg.URL),
		slog.Int("enabled_channels", len(enabled)))

	for _, ch := range enabled {
		s.wg.Add(1)
		go s.notifyChannel(requestID, ch, msg)
	}
	return nil
}

// notifyChannel delivers msg to one channel. Runs in its own goroutine; all
// failure modes end here, in logs and metrics.
func (s *service) notifyChannel(requestID string, channel Channel, msg *notifier.Message) {
	defer s.wg.Done()

	IncrementActiveGoroutines()
	defer DecrementActiveGoroutines()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic in notification channel",
				slog.String("request_id", requestID),
				slog.String("channel", channel.Name()),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()

	// A full pool means deliveries are already backed up; drop rather than
	// queue unboundedly.
	select {
	case s.workerPool <- struct{}{}:
		defer func() { <-s.workerPool }()
	case <-time.After(workerPoolTimeout):
		slog.Warn("Notification dropped: worker pool full",
			slog.String("request_id", requestID),
			slog.String("channel", channel.Name()))
		RecordDropped(channel.Name(), "pool_full")
		return
	}

	health := s.getChannelHealth(channel.Name())
	health.mu.Lock()
	if time.Now().Before(health.disabledUntil) {
		disabledUntil := health.disabledUntil
		health.mu.Unlock()
		slog.Warn("Channel temporarily disabled due to circuit breaker",
			slog.String("request_id", requestID),
			slog.String("channel", channel.Name()),
			slog.Time("disabled_until", disabledUntil))
		RecordDropped(channel.Name(), "circuit_open")
		return
	}
	health.mu.Unlock()

	// Derive from the shutdown context so Shutdown can cancel in-flight sends.
	ctx, cancel := context.WithTimeout(s.shutdownCtx, notificationTimeout)
	defer cancel()
	ctx = context.WithValue(ctx, requestIDKey, requestID)

	startTime := time.Now()
	RecordDispatch(channel.Name())

	err := channel.Send(ctx, msg)
	duration := time.Since(startTime)

	health.mu.Lock()
	if err != nil {
		health.consecutiveFailures++
		if health.consecutiveFailures >= circuitBreakerThreshold {
			health.disabledUntil = time.Now().Add(circuitBreakerTimeout)
			slog.Error("Circuit breaker opened for channel",
				slog.String("request_id", requestID),
				slog.String("channel", channel.Name()),
				slog.Int("consecutive_failures", health.consecutiveFailures))
			RecordCircuitBreakerOpen(channel.Name())
		}
	} else {
		health.consecutiveFailures = 0
	}
	health.mu.Unlock()

	if err != nil {
		RecordFailure(channel.Name(), duration)
		slog.Warn("Channel notification failed",
			slog.String("request_id", requestID),
			slog.String("channel", channel.Name()),
			slog.String("title", msg.Title),
			slog.String("url", msg.URL),
			slog.Duration("send_duration", duration),
			slog.Any("error", err))
		return
	}
	RecordSuccess(channel.Name(), duration)
	slog.Info("Channel notification sent successfully",
		slog.String("request_id", requestID),
		slog.String("channel", channel.Name()),
		slog.String("title", msg.Title),
		slog.Duration("send_duration", duration))
}

func (s *service) getChannelHealth(channelName string) *channelHealth {
	s.healthMu.RLock()
	defer s.healthMu.RUnlock()
	return s.channelHealth[channelName]
}

// GetChannelHealth implements Service.GetChannelHealth.
func (s *service) GetChannelHealth() []ChannelHealthStatus {
	s.healthMu.RLock()
	defer s.healthMu.RUnlock()

	statuses := make([]ChannelHealthStatus, 0, len(s.channels))
	for _, ch := range s.channels {
		health := s.channelHealth[ch.Name()]

		health.mu.Lock()
		var disabledUntil *time.Time
		open := time.Now().Before(health.disabledUntil)
		if open {
			d := health.disabledUntil
			disabledUntil = &d
		}
		health.mu.Unlock()

		statuses = append(statuses, ChannelHealthStatus{
			Name:               ch.Name(),
			Enabled:            ch.IsEnabled(),
			CircuitBreakerOpen: open,
			DisabledUntil:      disabledUntil,
		})
	}
	return statuses
}

// Shutdown implements Service.Shutdown.
func (s *service) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down notification service")
	s.shutdownCancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Notification service shutdown complete")
		return nil
	case <-ctx.Done():
		slog.Warn("Notification service shutdown timeout")
		return ctx.Err()
	}
}
