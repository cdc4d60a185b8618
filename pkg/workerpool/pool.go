package workerpool

import (
	"context"
	"errors"
	"sync"

	"github.com/gammazero/workerpool"
)

// MaxWorkersPerProvider caps the number of concurrent outbound calls a
// single provider can receive from this process, whatever the configured
// pool size says. Providers enforce their own rate limits; exceeding
// this only converts useful work into 429 responses.
const MaxWorkersPerProvider = 10

// ErrPoolStopped is returned by Submit once shutdown has begun.
var ErrPoolStopped = errors.New("worker pool is stopped")

// Pool is a process-wide bounded worker pool. All outbound provider
// calls from every in-flight request are funneled through one instance,
// so the bound holds across requests, not just within one.
type Pool struct {
	wp *workerpool.WorkerPool

	mu      sync.Mutex
	stopped bool
}

// New creates a pool running at most size tasks concurrently. The size
// is clamped to MaxWorkersPerProvider * providerCount.
func New(size, providerCount uint) *Pool {
	if providerCount == 0 {
		providerCount = 1
	}

	limit := MaxWorkersPerProvider * providerCount
	if size == 0 || size > limit {
		size = limit
	}

	return &Pool{
		wp: workerpool.New(int(size)),
	}
}

// Size returns the maximum number of concurrently executing tasks.
func (p *Pool) Size() int {
	return p.wp.Size()
}

// WaitingTasks returns the number of tasks queued behind busy workers.
func (p *Pool) WaitingTasks() int {
	return p.wp.WaitingQueueSize()
}

// Submit enqueues a task for execution. Tasks beyond the concurrency
// bound wait in an unbounded queue. Submit never blocks; it fails only
// once shutdown has begun.
func (p *Pool) Submit(task func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return ErrPoolStopped
	}

	p.wp.Submit(task)

	return nil
}

// Shutdown stops accepting new tasks and waits for in-flight and queued
// tasks to finish, or for the context deadline to elapse, whichever
// comes first.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()

		return nil
	}
	p.stopped = true
	p.mu.Unlock()

	done := make(chan struct{})

	go func() {
		p.wp.StopWait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
