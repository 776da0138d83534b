package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bis-events/gatepass/internal/apperr"
)

func lockers(t *testing.T, timeout time.Duration) map[string]Locker {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return map[string]Locker{
		"local": NewLocal(timeout),
		"redis": NewRedis(client, timeout, time.Minute, nil),
	}
}

func TestLockSerializesWriters(t *testing.T) {
	for name, l := range lockers(t, 5*time.Second) {
		t.Run(name, func(t *testing.T) {
			var inside, maxInside int32
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					err := l.WithLock(context.Background(), func(ctx context.Context) error {
						n := atomic.AddInt32(&inside, 1)
						for {
							m := atomic.LoadInt32(&maxInside)
							if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
								break
							}
						}
						time.Sleep(2 * time.Millisecond)
						atomic.AddInt32(&inside, -1)
						return nil
					})
					assert.NoError(t, err)
				}()
			}
			wg.Wait()
			assert.Equal(t, int32(1), maxInside)
		})
	}
}

func TestLockTimeout(t *testing.T) {
	for name, l := range lockers(t, 50*time.Millisecond) {
		t.Run(name, func(t *testing.T) {
			held := make(chan struct{})
			release := make(chan struct{})
			go func() {
				_ = l.WithLock(context.Background(), func(ctx context.Context) error {
					close(held)
					<-release
					return nil
				})
			}()
			<-held
			err := l.WithLock(context.Background(), func(ctx context.Context) error { return nil })
			close(release)
			assert.ErrorIs(t, err, ErrTimeout)
			assert.True(t, apperr.IsKind(err, apperr.LockTimeout))
		})
	}
}

func TestLockReleasedOnErrorAndPanic(t *testing.T) {
	for name, l := range lockers(t, 200*time.Millisecond) {
		t.Run(name, func(t *testing.T) {
			boom := errors.New("boom")
			err := l.WithLock(context.Background(), func(ctx context.Context) error { return boom })
			assert.ErrorIs(t, err, boom)

			func() {
				defer func() { _ = recover() }()
				_ = l.WithLock(context.Background(), func(ctx context.Context) error { panic("handler bug") })
			}()

			err = l.WithLock(context.Background(), func(ctx context.Context) error { return nil })
			require.NoError(t, err)
		})
	}
}
