package businessflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/Kitsune/utils"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noScriptError struct{}

func (noScriptError) Error() string { return "NOSCRIPT No matching script" }

func (noScriptError) RedisError() {}

// memoryLockClient keeps keys in a map and understands the release script by its hash
type memoryLockClient struct {
	redis.Scripter
	mu      sync.Mutex
	keys    map[string]string
	evalSha int
	eval    int
}

func newMemoryLockClient() *memoryLockClient {
	return &memoryLockClient{keys: make(map[string]string)}
}

func (m *memoryLockClient) SetNX(ctx context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	cmd := redis.NewBoolCmd(ctx)
	if _, held := m.keys[key]; held {
		cmd.SetVal(false)
		return cmd
	}
	m.keys[key] = value.(string)
	cmd.SetVal(true)
	return cmd
}

// EvalSha answers NOSCRIPT once so the EVAL fallback gets exercised too
func (m *memoryLockClient) EvalSha(ctx context.Context, sha string, keys []string, args ...any) *redis.Cmd {
	m.mu.Lock()
	m.evalSha++
	first := m.evalSha == 1
	m.mu.Unlock()
	if first || sha != releaseScript.Hash() {
		cmd := redis.NewCmd(ctx)
		cmd.SetErr(noScriptError{})
		return cmd
	}
	return m.compareAndDelete(ctx, keys[0], args[0].(string))
}

func (m *memoryLockClient) Eval(ctx context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	m.mu.Lock()
	m.eval++
	m.mu.Unlock()
	return m.compareAndDelete(ctx, keys[0], args[0].(string))
}

func (m *memoryLockClient) compareAndDelete(ctx context.Context, key, token string) *redis.Cmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	cmd := redis.NewCmd(ctx)
	if m.keys[key] == token {
		delete(m.keys, key)
		cmd.SetVal(int64(1))
		return cmd
	}
	cmd.SetVal(int64(0))
	return cmd
}

func (m *memoryLockClient) expire(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
}

func (m *memoryLockClient) holder(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.keys[key]
	return v, ok
}

func TestRedisLockerReleasesOnlyItsOwnLease(t *testing.T) {
	ctx := context.Background()
	client := newMemoryLockClient()
	first := &redisLocker{rc: client, prefix: "kitsune:", ttl: time.Minute}
	second := &redisLocker{rc: client, prefix: "kitsune:", ttl: time.Minute}
	key := redisKey("kitsune:", utils.RecomputeLockKeyPrefix, recomputeLockName)

	unlockFirst, ok, err := first.TryLock(ctx, recomputeLockName)
	require.NoError(t, err)
	require.True(t, ok)
	firstToken, held := client.holder(key)
	require.True(t, held)
	assert.NotEmpty(t, firstToken)

	_, ok, err = second.TryLock(ctx, recomputeLockName)
	require.NoError(t, err)
	assert.False(t, ok, "lock is held")

	// the first holder outlives its lease and someone else takes the lock
	client.expire(key)
	unlockSecond, ok, err := second.TryLock(ctx, recomputeLockName)
	require.NoError(t, err)
	require.True(t, ok)
	secondToken, _ := client.holder(key)
	assert.NotEqual(t, firstToken, secondToken)

	unlockFirst()
	current, held := client.holder(key)
	assert.True(t, held, "a stale holder must not free the lock")
	assert.Equal(t, secondToken, current)

	unlockSecond()
	_, held = client.holder(key)
	assert.False(t, held)
	assert.Equal(t, 1, client.eval, "NOSCRIPT falls back to EVAL")
}

func TestLocalLockerIsExclusivePerName(t *testing.T) {
	locker := NewLocker(nil, "", 0)
	ctx := context.Background()

	unlock, ok, err := locker.TryLock(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, _ = locker.TryLock(ctx, "a")
	assert.False(t, ok)
	_, ok, _ = locker.TryLock(ctx, "b")
	assert.True(t, ok, "names lock independently")

	unlock()
	_, ok, _ = locker.TryLock(ctx, "a")
	assert.True(t, ok)
}
