// Package worker provides a small generic worker pool with a bounded
// queue. It is used to fan out independent, possibly slow jobs such as
// device instantiation while keeping the goroutine count fixed.
package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrNotStarted is returned by Submit before Start has been called.
	ErrNotStarted = errors.New("worker pool not started")
	// ErrStopped is returned by Submit after Stop.
	ErrStopped = errors.New("worker pool stopped")
	// ErrQueueFull is returned when the bounded queue cannot accept
	// another job without blocking.
	ErrQueueFull = errors.New("worker pool queue full")
	// ErrStopTimeout is returned when workers fail to drain in time.
	ErrStopTimeout = errors.New("worker pool stop timed out")
)

// Pool runs a fixed number of goroutines over a bounded job queue.
// Submitted jobs are handed to the handler supplied at construction.
type Pool[T any] struct {
	workers int
	handler func(context.Context, T) error

	jobs chan T
	wg   sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool

	processed atomic.Int64
	failed    atomic.Int64
}

// NewPool creates a pool of the given size with a bounded queue.
// Non-positive sizes fall back to a single worker and a single slot.
func NewPool[T any](workers, queueSize int, handler func(context.Context, T) error) *Pool[T] {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Pool[T]{
		workers: workers,
		handler: handler,
		jobs:    make(chan T, queueSize),
	}
}

// Start launches the workers. A pool can be started once.
func (p *Pool[T]) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(ctx)
	}
}

// Submit offers a job to the queue without blocking.
func (p *Pool[T]) Submit(job T) error {
	p.mu.Lock()
	started, stopped := p.started, p.stopped
	p.mu.Unlock()

	if !started {
		return ErrNotStarted
	}
	if stopped {
		return ErrStopped
	}

	select {
	case p.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop closes the queue and waits for the workers to drain it. Jobs
// already queued are still processed. Returns ErrStopTimeout if the
// drain takes longer than the given timeout.
func (p *Pool[T]) Stop(timeout time.Duration) error {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		return ErrStopTimeout
	}
}

// Processed reports how many jobs have run, including failed ones.
func (p *Pool[T]) Processed() int64 { return p.processed.Load() }

// Failed reports how many jobs returned an error.
func (p *Pool[T]) Failed() int64 { return p.failed.Load() }

func (p *Pool[T]) run(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			if err := p.handler(ctx, job); err != nil {
				p.failed.Add(1)
			}
			p.processed.Add(1)
		}
	}
}
