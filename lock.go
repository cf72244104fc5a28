package idemkey

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
)

// Locker is the mutual-exclusion gate guarding the retrieve-or-decide step
// against the response store, so that two concurrent requests with the same
// key cannot both observe a miss. It is owned by the Enforcer instance and
// injectable for tests.
type Locker interface {
	// Acquire blocks until the lock is held or the attempt times out.
	Acquire(ctx context.Context) error
	Release()
}

// storeLock is the default Locker: a single process-wide semaphore of
// weight one. It is deliberately not sharded per key, correctness wins over
// throughput under contention.
type storeLock struct {
	sem     *semaphore.Weighted
	timeout time.Duration
}

func newStoreLock(timeout time.Duration) *storeLock {
	return &storeLock{
		sem:     semaphore.NewWeighted(1),
		timeout: timeout,
	}
}

func (l *storeLock) Acquire(ctx context.Context) error {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	return l.sem.Acquire(ctx, 1)
}

func (l *storeLock) Release() {
	l.sem.Release(1)
}
