package relay

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

// Limiter is a fixed-window rate limiter keyed by principal.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type noLimit struct{}

func (noLimit) Allow(context.Context, string) (bool, error) { return true, nil }

// NoLimit disables rate limiting.
func NoLimit() Limiter { return noLimit{} }

type window struct {
	index int64
	count int
}

// MemoryLimiter counts requests in process. It suits a single relay.
type MemoryLimiter struct {
	clock  clockwork.Clock
	limit  int
	window time.Duration

	mu     sync.Mutex
	counts map[string]window
}

func NewMemoryLimiter(clock clockwork.Clock, limit int, w time.Duration) *MemoryLimiter {
	return &MemoryLimiter{clock: clock, limit: limit, window: w, counts: map[string]window{}}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	idx := l.clock.Now().UnixNano() / int64(l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.counts[key]
	if w.index != idx {
		w = window{index: idx}
	}
	w.count++
	l.counts[key] = w

	// Drop stale windows so idle principals do not accumulate.
	if len(l.counts) > 4096 {
		for k, v := range l.counts {
			if v.index != idx {
				delete(l.counts, k)
			}
		}
	}
	return w.count <= l.limit, nil
}

// RedisLimiter shares counters between relay replicas.
type RedisLimiter struct {
	client *redis.Client
	clock  clockwork.Clock
	limit  int
	window time.Duration
	prefix string
}

func NewRedisLimiter(ctx context.Context, addr string, clock clockwork.Clock, limit int, w time.Duration) (*RedisLimiter, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisLimiter{client: client, clock: clock, limit: limit, window: w, prefix: "eng:relay:rl:"}, nil
}

func (l *RedisLimiter) key(key string) string {
	idx := l.clock.Now().UnixNano() / int64(l.window)
	return l.prefix + key + ":" + strconv.FormatInt(idx, 10)
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := l.key(key)
	pipe := l.client.Pipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, 2*l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit: %w", err)
	}
	return incr.Val() <= int64(l.limit), nil
}

func (l *RedisLimiter) Close() error {
	return l.client.Close()
}
