package tasks

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolRunsSubmittedTasks(t *testing.T) {
	pool := NewPool(2, 8, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = pool.Run(ctx) }()

	var executed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		ok := pool.Submit(func(context.Context) {
			defer wg.Done()
			executed.Add(1)
		})
		if !ok {
			t.Fatalf("submit %d rejected", i)
		}
	}
	wg.Wait()

	if executed.Load() != 5 {
		t.Fatalf("expected 5 executions, got %d", executed.Load())
	}
}

func TestSubmitDropsWhenQueueSaturated(t *testing.T) {
	// No Run call: nothing drains the queue.
	pool := NewPool(1, 2, nil)

	if !pool.Submit(func(context.Context) {}) {
		t.Fatalf("first submit should be accepted")
	}
	if !pool.Submit(func(context.Context) {}) {
		t.Fatalf("second submit should be accepted")
	}
	if pool.Submit(func(context.Context) {}) {
		t.Fatalf("expected saturated queue to drop submission")
	}
}

func TestSubmitRejectsNilTask(t *testing.T) {
	pool := NewPool(1, 2, nil)
	if pool.Submit(nil) {
		t.Fatalf("nil task should be rejected")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	pool := NewPool(1, 2, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("pool did not stop after cancel")
	}

	if pool.Submit(func(context.Context) {}) {
		t.Fatalf("stopped pool should reject submissions")
	}
}
