package businessflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/amirphl/Kitsune/utils"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// StatsCache stores computed statistics for a short time
type StatsCache interface {
	Get(ctx context.Context, key string, dest any) bool
	Set(ctx context.Context, key string, value any)
}

// NewStatsCache returns a redis-backed cache, or a no-op cache when rc is nil or ttl is zero
func NewStatsCache(rc *redis.Client, prefix string, ttl time.Duration) StatsCache {
	if rc == nil || ttl <= 0 {
		return noopStatsCache{}
	}
	return &redisStatsCache{rc: rc, prefix: prefix, ttl: ttl}
}

type redisStatsCache struct {
	rc     *redis.Client
	prefix string
	ttl    time.Duration
}

func redisKey(prefix string, parts ...string) string {
	return prefix + strings.Join(parts, ":")
}

func (c *redisStatsCache) Get(ctx context.Context, key string, dest any) bool {
	bs, err := c.rc.Get(ctx, redisKey(c.prefix, utils.StatsCacheKeyPrefix, key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logEvent("warn", "stats_cache_get_failed", map[string]any{"key": key, "error": err.Error()})
		}
		statsCacheRequestsTotal.WithLabelValues("miss").Inc()
		return false
	}
	if err := json.Unmarshal(bs, dest); err != nil {
		statsCacheRequestsTotal.WithLabelValues("miss").Inc()
		return false
	}
	statsCacheRequestsTotal.WithLabelValues("hit").Inc()
	return true
}

func (c *redisStatsCache) Set(ctx context.Context, key string, value any) {
	bs, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.rc.Set(ctx, redisKey(c.prefix, utils.StatsCacheKeyPrefix, key), bs, c.ttl).Err(); err != nil {
		logEvent("warn", "stats_cache_set_failed", map[string]any{"key": key, "error": err.Error()})
	}
}

type noopStatsCache struct{}

func (noopStatsCache) Get(context.Context, string, any) bool { return false }

func (noopStatsCache) Set(context.Context, string, any) {}

// Locker serializes long maintenance jobs across instances
type Locker interface {
	// TryLock returns ok=false without blocking when the lock is held elsewhere
	TryLock(ctx context.Context, name string) (unlock func(), ok bool, err error)
}

// NewLocker uses redis SETNX when rc is set and a process-local mutex otherwise
func NewLocker(rc *redis.Client, prefix string, ttl time.Duration) Locker {
	if rc == nil {
		return &localLocker{held: make(map[string]*sync.Mutex)}
	}
	return &redisLocker{rc: rc, prefix: prefix, ttl: ttl}
}

// releaseScript deletes the lock only while it still carries the holder's token,
// so a holder whose lease expired cannot free a lock someone else now owns.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// lockClient is the part of the redis client the locker talks to
type lockClient interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
}

type redisLocker struct {
	rc     lockClient
	prefix string
	ttl    time.Duration
}

func (l *redisLocker) TryLock(ctx context.Context, name string) (func(), bool, error) {
	key := redisKey(l.prefix, utils.RecomputeLockKeyPrefix, name)
	token := uuid.NewString()
	ok, err := l.rc.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return func() {
		// the caller's context may already be done
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		released, err := releaseScript.Run(ctx, l.rc, []string{key}, token).Int64()
		if err != nil {
			logEvent("warn", "lock_release_failed", map[string]any{"key": key, "error": err.Error()})
			return
		}
		if released == 0 {
			logEvent("warn", "lock_lease_lost", map[string]any{"key": key})
		}
	}, true, nil
}

type localLocker struct {
	mu   sync.Mutex
	held map[string]*sync.Mutex
}

func (l *localLocker) TryLock(_ context.Context, name string) (func(), bool, error) {
	l.mu.Lock()
	m, ok := l.held[name]
	if !ok {
		m = &sync.Mutex{}
		l.held[name] = m
	}
	l.mu.Unlock()

	if !m.TryLock() {
		return nil, false, nil
	}
	return m.Unlock, true, nil
}
