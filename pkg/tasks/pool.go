package tasks

import (
	"context"
	"sync"

	"github.com/angelmondragon/packfinderz-mobile/pkg/logger"
)

// Task is one unit of detached background work.
type Task func(ctx context.Context)

// Pool runs tasks on a fixed set of workers behind a bounded queue. A full
// queue drops the submission: every producer in this codebase re-derives its
// work from durable cache state, so a dropped task is picked up by the next
// sync pass instead of blocking the caller.
type Pool struct {
	queue   chan Task
	workers int
	logger  *logger.Logger

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewPool sizes the pool. Zero or negative values fall back to sane minimums.
func NewPool(workers, queueSize int, logg *logger.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 16
	}
	return &Pool{
		queue:   make(chan Task, queueSize),
		workers: workers,
		logger:  logg,
	}
}

// Submit enqueues a task without blocking. Returns false when the queue is
// saturated or the pool has stopped.
func (p *Pool) Submit(task Task) bool {
	if task == nil {
		return false
	}
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return false
	}
	p.mu.Unlock()

	select {
	case p.queue <- task:
		return true
	default:
		if p.logger != nil {
			p.logger.Warn(context.Background(), "task queue saturated, dropping push")
		}
		return false
	}
}

// Run starts the workers and blocks until the context is canceled. In-flight
// tasks finish before Run returns.
func (p *Pool) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return nil
	}
	p.started = true
	p.mu.Unlock()

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case task := <-p.queue:
					task(ctx)
				}
			}
		}()
	}

	<-ctx.Done()

	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()

	wg.Wait()
	return ctx.Err()
}
