// Package workerpool bounds how many store calls live connections run at once.
package workerpool

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"messenger-core/internal/observability"
)

// Pool is a counting semaphore around store work.
type Pool struct {
	sem  *semaphore.Weighted
	size int64
}

// New creates a pool allowing size concurrent jobs.
func New(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: int64(size)}
}

// Do runs fn once a slot is free. It returns ctx.Err() if the caller gives up
// while waiting.
func (p *Pool) Do(ctx context.Context, fn func(context.Context) error) error {
	start := time.Now()
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	observability.ObserveStoreWait(time.Since(start))
	return fn(ctx)
}

// Size returns the configured concurrency.
func (p *Pool) Size() int {
	return int(p.size)
}
