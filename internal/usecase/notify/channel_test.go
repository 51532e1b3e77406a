package notify

import (
	"context"
	"sync"
	"time"

	"autotrade/internal/infra/notifier"
)

var _ Channel = (*mockChannel)(nil)

// mockChannel is the shared Channel fixture for the dispatch tests. It
// mirrors the contract of the real senders: disabled channels and invalid
// messages short-circuit, sendDelay simulates a slow webhook while honoring
// ctx, and panicOnSend exercises the dispatcher's recover path.
type mockChannel struct {
	name        string
	enabled     bool
	sendError   error
	sendDelay   time.Duration
	panicOnSend bool
	sendCalled  int
	lastMessage *notifier.Message
	mu          sync.Mutex
}

func (m *mockChannel) Name() string {
	return m.name
}

func (m *mockChannel) IsEnabled() bool {
	return m.enabled
}

func (m *mockChannel) Send(ctx context.Context, msg *notifier.Message) error {
	m.mu.Lock()
	m.sendCalled++
	m.lastMessage = msg
	shouldPanic := m.panicOnSend
	m.mu.Unlock()

	if shouldPanic {
		panic("mock panic in Send()")
	}

	if !m.enabled {
		return ErrChannelDisabled
	}
	if msg == nil || msg.Title == "" {
		return ErrInvalidMessage
	}

	if m.sendDelay > 0 {
		select {
		case <-time.After(m.sendDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.mu.Lock()
	err := m.sendError
	m.mu.Unlock()
	return err
}

func (m *mockChannel) getSendCalledCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sendCalled
}

func (m *mockChannel) getLastMessage() *notifier.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastMessage
}

func (m *mockChannel) setSendError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendError = err
}

func testMessage() *notifier.Message {
	return &notifier.Message{
		Title:     "BTC: Exchange lists new market",
		Body:      "Matched symbols: BTC",
		URL:       "https://example.com/news/1",
		Footer:    "CoinDesk",
		Timestamp: time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC),
	}
}
