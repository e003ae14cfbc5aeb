package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anthanhphan/go-file-relay/internal/api/port"
	"github.com/anthanhphan/go-file-relay/pkg/resilience"
	"github.com/anthanhphan/gosdk/logger"
)

// Janitor periodically removes partial writes left behind by crashed or
// abandoned uploads.
type Janitor struct {
	sweeper  port.PartialSweeper
	interval time.Duration
	maxAge   time.Duration

	pool    *resilience.WorkerPool
	busy    atomic.Bool
	stop    chan struct{}
	stopped sync.Once
}

func NewJanitor(sweeper port.PartialSweeper, interval, maxAge time.Duration) *Janitor {
	return &Janitor{
		sweeper:  sweeper,
		interval: interval,
		maxAge:   maxAge,
		pool:     resilience.NewWorkerPool(1, 1),
		stop:     make(chan struct{}),
	}
}

// Start runs sweeps until ctx is done or Stop is called.
func (j *Janitor) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.schedule(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-j.stop:
			return
		case <-ticker.C:
			j.schedule(ctx)
		}
	}
}

// Stop ends the loop and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	j.stopped.Do(func() {
		close(j.stop)
		j.pool.Close()
		j.pool.Wait()
	})
}

// schedule queues a sweep unless one is still running.
func (j *Janitor) schedule(ctx context.Context) {
	if !j.busy.CompareAndSwap(false, true) {
		logger.Debugw("Partial sweep still running, skipping tick")
		return
	}
	err := j.pool.Submit(ctx, func() {
		defer j.busy.Store(false)
		_, _, _ = j.Sweep(ctx)
	})
	if err != nil {
		j.busy.Store(false)
	}
}

// Sweep runs one pass and logs what it reclaimed.
func (j *Janitor) Sweep(ctx context.Context) (int, int64, error) {
	files, bytes, err := j.sweeper.SweepPartials(ctx, j.maxAge)
	if err != nil {
		logger.Warnw("Partial sweep failed", "error", err.Error(), "removed", files)
		return files, bytes, err
	}
	if files > 0 {
		logger.Infow("Removed stale partial uploads", "files", files, "bytes", bytes)
	}
	return files, bytes, nil
}
