package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Lease grants time-bounded exclusive ownership of a name.
// Acquire returns ErrLeaseHeld when someone else owns it; the returned
// release func gives it back early.
type Lease interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (release func(context.Context) error, err error)
}

// LocalLease is a Lease scoped to one process.
type LocalLease struct {
	mu      sync.Mutex
	holders map[string]localHolder
	now     func() time.Time
}

type localHolder struct {
	token   string
	expires time.Time
}

// NewLocalLease creates a LocalLease.
func NewLocalLease() *LocalLease {
	return &LocalLease{holders: make(map[string]localHolder), now: time.Now}
}

// Acquire takes the lease if it is free or expired.
func (l *LocalLease) Acquire(_ context.Context, name string, ttl time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if h, ok := l.holders[name]; ok && now.Before(h.expires) {
		return nil, ErrLeaseHeld
	}
	token := uuid.NewString()
	l.holders[name] = localHolder{token: token, expires: now.Add(ttl)}

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if h, ok := l.holders[name]; ok && h.token == token {
			delete(l.holders, name)
		}
		return nil
	}, nil
}

// releaseScript deletes the key only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLease is a Lease shared by every instance using the same Redis.
type RedisLease struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisLease creates a RedisLease. Keys are stored as prefix+name.
func NewRedisLease(client redis.UniversalClient, prefix string) *RedisLease {
	return &RedisLease{client: client, prefix: prefix}
}

// Acquire sets the key with NX and a TTL.
func (r *RedisLease) Acquire(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, error) {
	key := r.prefix + name
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lease %s: %w", name, err)
	}
	if !ok {
		return nil, ErrLeaseHeld
	}

	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, r.client, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("failed to release lease %s: %w", name, err)
		}
		return nil
	}, nil
}
