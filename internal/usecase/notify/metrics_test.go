package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordDispatch(t *testing.T) {
	for _, channel := range []string{"discord", "slack"} {
		t.Run(channel, func(t *testing.T) {
			initial := testutil.ToFloat64(notificationDispatchedTotal.WithLabelValues(channel))

			RecordDispatch(channel)

			after := testutil.ToFloat64(notificationDispatchedTotal.WithLabelValues(channel))
			if after != initial+1 {
				t.Errorf("RecordDispatch() counter = %v, want %v", after, initial+1)
			}
		})
	}
}

func TestRecordSuccess(t *testing.T) {
	initial := testutil.ToFloat64(notificationSentTotal.WithLabelValues("discord", "success"))

	RecordSuccess("discord", 100*time.Millisecond)

	after := testutil.ToFloat64(notificationSentTotal.WithLabelValues("discord", "success"))
	if after != initial+1 {
		t.Errorf("RecordSuccess() success counter = %v, want %v", after, initial+1)
	}
	// The duration histogram is recorded alongside; ToFloat64 cannot read
	// histograms, so the counter increment stands in for both.
}

func TestRecordFailure(t *testing.T) {
	initial := testutil.ToFloat64(notificationSentTotal.WithLabelValues("slack", "failure"))

	RecordFailure("slack", 2*time.Second)

	after := testutil.ToFloat64(notificationSentTotal.WithLabelValues("slack", "failure"))
	if after != initial+1 {
		t.Errorf("RecordFailure() failure counter = %v, want %v", after, initial+1)
	}
}

func TestRecordDropped(t *testing.T) {
	tests := []struct {
		name    string
		channel string
		reason  string
	}{
		{"pool full", "discord", "pool_full"},
		{"circuit open", "slack", "circuit_open"},
		{"channel disabled", "discord", "disabled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			initial := testutil.ToFloat64(notificationDroppedTotal.WithLabelValues(tt.channel, tt.reason))

			RecordDropped(tt.channel, tt.reason)

			after := testutil.ToFloat64(notificationDroppedTotal.WithLabelValues(tt.channel, tt.reason))
			if after != initial+1 {
				t.Errorf("RecordDropped() counter = %v, want %v", after, initial+1)
			}
		})
	}
}

func TestRecordCircuitBreakerOpen(t *testing.T) {
	initial := testutil.ToFloat64(circuitBreakerOpenTotal.WithLabelValues("discord"))

	RecordCircuitBreakerOpen("discord")

	after := testutil.ToFloat64(circuitBreakerOpenTotal.WithLabelValues("discord"))
	if after != initial+1 {
		t.Errorf("RecordCircuitBreakerOpen() counter = %v, want %v", after, initial+1)
	}
}

func TestActiveGoroutinesGauge(t *testing.T) {
	initial := testutil.ToFloat64(activeNotifications)

	IncrementActiveGoroutines()
	if got := testutil.ToFloat64(activeNotifications); got != initial+1 {
		t.Errorf("after increment gauge = %v, want %v", got, initial+1)
	}

	DecrementActiveGoroutines()
	if got := testutil.ToFloat64(activeNotifications); got != initial {
		t.Errorf("after decrement gauge = %v, want %v", got, initial)
	}
}

func TestSetChannelsEnabled(t *testing.T) {
	for _, count := range []float64{0, 1, 2} {
		SetChannelsEnabled(count)
		if got := testutil.ToFloat64(channelsEnabled); got != count {
			t.Errorf("SetChannelsEnabled(%v) gauge = %v", count, got)
		}
	}
}

func TestConcurrentMetricsRecording(t *testing.T) {
	const goroutines = 10
	const recordsPer = 100

	start := testutil.ToFloat64(notificationDispatchedTotal.WithLabelValues("concurrent"))

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < recordsPer; j++ {
				RecordDispatch("concurrent")
				RecordSuccess("concurrent", 100*time.Millisecond)
				RecordFailure("concurrent", 200*time.Millisecond)
				RecordDropped("concurrent", "pool_full")
			}
		}()
	}
	wg.Wait()

	got := testutil.ToFloat64(notificationDispatchedTotal.WithLabelValues("concurrent"))
	if want := start + float64(goroutines*recordsPer); got != want {
		t.Errorf("concurrent dispatch count = %v, want %v", got, want)
	}
}
