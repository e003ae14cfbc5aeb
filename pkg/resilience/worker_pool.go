package resilience

import (
	"context"
	"errors"
	"sync"
)

var ErrWorkerPoolClosed = errors.New("worker pool is closed")

// WorkerPool runs submitted jobs on a fixed number of goroutines.
type WorkerPool struct {
	jobs   chan func()
	mu     sync.RWMutex
	closed bool
	once   sync.Once
	wg     sync.WaitGroup
}

func NewWorkerPool(workers, queueSize int) *WorkerPool {
	workers = max(workers, 1)
	if queueSize <= 0 {
		queueSize = workers
	}

	p := &WorkerPool{jobs: make(chan func(), queueSize)}
	p.wg.Add(workers)
	for range workers {
		go p.work()
	}
	return p
}

func (p *WorkerPool) work() {
	defer p.wg.Done()
	for job := range p.jobs {
		job()
	}
}

// Submit queues job, blocking while the queue is full.
func (p *WorkerPool) Submit(ctx context.Context, job func()) error {
	if job == nil {
		return nil
	}

	// The read lock keeps Close from closing the channel under a blocked send.
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrWorkerPoolClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.jobs <- job:
		return nil
	}
}

// Close stops accepting jobs. Queued jobs still run.
func (p *WorkerPool) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.jobs)
		p.mu.Unlock()
	})
}

// Wait blocks until every worker has drained the queue and exited. Call Close first.
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}
