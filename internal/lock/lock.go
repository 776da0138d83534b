// Package lock provides the single exclusive write lock that serializes every
// mutation of registration records.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/bis-events/gatepass/internal/apperr"
)

// DefaultTimeout is how long a writer waits for the lock before giving up.
const DefaultTimeout = 10 * time.Second

// ErrTimeout is returned when the lock could not be acquired in time. It is
// safe to retry the whole operation.
var ErrTimeout = apperr.E(apperr.LockTimeout, "server busy, please retry")

// Locker runs fn while holding the write lock. The lock is released when fn
// returns, errors or panics.
type Locker interface {
	WithLock(ctx context.Context, fn func(ctx context.Context) error) error
}

// Local is an in-process Locker.
type Local struct {
	sem     chan struct{}
	timeout time.Duration
}

// NewLocal creates an in-process lock with the given acquisition timeout.
func NewLocal(timeout time.Duration) *Local {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Local{sem: make(chan struct{}, 1), timeout: timeout}
}

// WithLock acquires the lock, waiting at most the configured timeout.
func (l *Local) WithLock(ctx context.Context, fn func(ctx context.Context) error) error {
	timer := time.NewTimer(l.timeout)
	defer timer.Stop()
	select {
	case l.sem <- struct{}{}:
	case <-timer.C:
		return ErrTimeout
	case <-ctx.Done():
		return fmt.Errorf("acquire write lock: %w", ctx.Err())
	}
	defer func() { <-l.sem }()
	return fn(ctx)
}
