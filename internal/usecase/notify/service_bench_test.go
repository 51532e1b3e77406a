package notify

import (
	"context"
	"sync"
	"testing"
)

// BenchmarkDispatch_SingleChannel measures throughput of single notification to one channel
func BenchmarkDispatch_SingleChannel(b *testing.B) {
	channel := &mockChannel{
		name:    "discord",
		enabled: true,
	}
	svc := NewService([]Channel{channel}, 10)

	msg := testMessage()
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = svc.Dispatch(ctx, msg)
	}

	b.StopTimer()
	_ = svc.Shutdown(context.Background())
}

// BenchmarkDispatch_MultipleChannels measures throughput with 3 channels enabled
func BenchmarkDispatch_MultipleChannels(b *testing.B) {
	channels := []Channel{
		&mockChannel{name: "discord", enabled: true},
		&mockChannel{name: "slack", enabled: true},
		&mockChannel{name: "email", enabled: true},
	}
	svc := NewService(channels, 10)

	msg := testMessage()
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = svc.Dispatch(ctx, msg)
	}

	b.StopTimer()
	_ = svc.Shutdown(context.Background())
}

// BenchmarkDispatch_Parallel measures throughput under concurrent callers
func BenchmarkDispatch_Parallel(b *testing.B) {
	channel := &mockChannel{
		name:    "discord",
		enabled: true,
	}
	svc := NewService([]Channel{channel}, 50)

	msg := testMessage()

	b.ReportAllocs()
	b.ResetTimer()

	var wg sync.WaitGroup
	b.RunParallel(func(pb *testing.PB) {
		wg.Add(1)
		defer wg.Done()
		for pb.Next() {
			_ = svc.Dispatch(context.Background(), msg)
		}
	})
	wg.Wait()

	b.StopTimer()
	_ = svc.Shutdown(context.Background())
}
