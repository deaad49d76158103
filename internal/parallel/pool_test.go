package parallel

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestExecutionStats(t *testing.T) {
	stats := NewExecutionStats()

	if got := stats.Snapshot().tasksSubmitted; got != 0 {
		t.Errorf("expected 0 tasks submitted initially, got %d", got)
	}

	stats.RecordTaskSubmitted()
	if got := stats.Snapshot().tasksSubmitted; got != 1 {
		t.Errorf("expected 1 task submitted, got %d", got)
	}

	stats.RecordTaskCompleted(100 * time.Millisecond)
	if got := stats.Snapshot().tasksCompleted; got != 1 {
		t.Errorf("expected 1 task completed, got %d", got)
	}

	stats.RecordTaskFailed(context.DeadlineExceeded)
	if got := stats.Snapshot().tasksFailed; got != 1 {
		t.Errorf("expected 1 task failed, got %d", got)
	}

	stats.RecordWorkerCount(5)
	if got := stats.Snapshot().maxWorkerCount; got != 5 {
		t.Errorf("expected peak worker count 5, got %d", got)
	}

	stats.RecordQueueDepth(10)
	if got := stats.Snapshot().maxQueueDepth; got != 10 {
		t.Errorf("expected peak queue depth 10, got %d", got)
	}

	stats.Finalize()
	if !stats.Snapshot().finalized {
		t.Error("expected stats to be finalized")
	}
}

func TestWorkerPoolWithStats(t *testing.T) {
	pool := NewDynamicWorkerPoolWithConfig(4, 1, DynamicConfig{
		ScaleUpThreshold:   2,
		ScaleDownThreshold: 1,
		ScaleCheckInterval: 10 * time.Millisecond,
		ScaleCooldown:      5 * time.Millisecond,
	})

	stats := pool.GetStats()
	if stats == nil {
		t.Fatal("expected non-nil stats")
	}

	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	sum := 0
	for i := 1; i <= 5; i++ {
		wg.Add(1)
		i := i
		task := func() {
			defer wg.Done()
			mu.Lock()
			sum += i
			mu.Unlock()
		}
		if err := pool.Submit(ctx, task); err != nil {
			t.Errorf("failed to submit task: %v", err)
		}
	}
	wg.Wait()
	pool.Shutdown()

	if sum != 15 {
		t.Errorf("expected sum 15, got %d", sum)
	}
	final := stats.Snapshot()
	if final.tasksSubmitted != 5 {
		t.Errorf("expected 5 tasks submitted, got %d", final.tasksSubmitted)
	}
	if final.tasksCompleted != 5 {
		t.Errorf("expected 5 tasks completed, got %d", final.tasksCompleted)
	}
}

func TestWorkerPoolSubmitAfterShutdown(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Shutdown()

	if err := pool.Submit(context.Background(), func() {}); err != ErrPoolShutdown {
		t.Errorf("expected ErrPoolShutdown, got %v", err)
	}
}

func BenchmarkWorkerPool(b *testing.B) {
	pool := NewDynamicWorkerPool(4, 1)
	defer pool.Shutdown()

	ctx := context.Background()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			task := func() {
				time.Sleep(time.Millisecond)
			}
			pool.Submit(ctx, task)
		}
	})
}
