package notifier

import (
	"context"
	"testing"
	"time"
)

func TestNoOpNotifier_Notify(t *testing.T) {
	t.Run("TC-1: should return nil without error", func(t *testing.T) {
		notifier := NewNoOpNotifier()

		err := notifier.Notify(context.Background(), alertMessage())

		if err != nil {
			t.Errorf("expected nil error, got %v", err)
		}
	})

	t.Run("TC-2: should work with nil message", func(t *testing.T) {
		notifier := NewNoOpNotifier()

		if err := notifier.Notify(context.Background(), nil); err != nil {
			t.Errorf("expected nil error with nil message, got %v", err)
		}
	})

	t.Run("TC-3: should work with canceled context", func(t *testing.T) {
		notifier := NewNoOpNotifier()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := notifier.Notify(ctx, alertMessage()); err != nil {
			t.Errorf("expected nil error even with canceled context, got %v", err)
		}
	})

	t.Run("TC-4: should complete immediately", func(t *testing.T) {
		notifier := NewNoOpNotifier()

		start := time.Now()
		err := notifier.Notify(context.Background(), alertMessage())
		elapsed := time.Since(start)

		if err != nil {
			t.Errorf("expected nil error, got %v", err)
		}
		if elapsed > time.Millisecond {
			t.Errorf("expected no-op to complete immediately, but took %v", elapsed)
		}
	})
}

func TestNewNoOpNotifier(t *testing.T) {
	t.Run("should create a new NoOpNotifier instance", func(t *testing.T) {
		notifier := NewNoOpNotifier()

		if notifier == nil {
			t.Fatal("expected non-nil notifier")
		}
	})
}
