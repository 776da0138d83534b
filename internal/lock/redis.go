package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// DefaultKey is the Redis key holding the write lease.
	DefaultKey = "gatepass:write-lock"
	// DefaultLease bounds how long a crashed holder can keep the lock.
	DefaultLease = 30 * time.Second

	pollInterval = 25 * time.Millisecond
)

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Redis is a Locker shared by every process pointed at the same Redis
// (server, observer, import tool).
type Redis struct {
	client  *redis.Client
	key     string
	lease   time.Duration
	timeout time.Duration
	logger  *zap.Logger
}

// NewRedis creates a Redis-backed write lock.
func NewRedis(client *redis.Client, timeout, lease time.Duration, logger *zap.Logger) *Redis {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if lease <= 0 {
		lease = DefaultLease
	}
	return &Redis{client: client, key: DefaultKey, lease: lease, timeout: timeout, logger: logger}
}

// WithLock polls SET NX until the lease is won or the timeout elapses.
func (r *Redis) WithLock(ctx context.Context, fn func(ctx context.Context) error) error {
	token := uuid.NewString()
	deadline := time.Now().Add(r.timeout)
	for {
		ok, err := r.client.SetNX(ctx, r.key, token, r.lease).Result()
		if err != nil {
			return fmt.Errorf("acquire write lock: %w", err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			r.logger.Warn("write lock timeout", zap.Duration("waited", r.timeout))
			return ErrTimeout
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("acquire write lock: %w", ctx.Err())
		case <-time.After(pollInterval):
		}
	}
	defer func() {
		// Release even if the request context is already cancelled.
		relCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(relCtx, r.client, []string{r.key}, token).Err(); err != nil && err != redis.Nil {
			r.logger.Error("release write lock failed", zap.Error(err))
		}
	}()
	return fn(ctx)
}
