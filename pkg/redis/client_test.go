package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/commerce-core/pkg/config"
)

// memStore emulates the commands and the two scripts the client sends.
type memStore struct {
	data    map[string]string
	ttls    map[string]time.Duration
	evalErr error
}

func newMemStore() *memStore {
	return &memStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memStore) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *memStore) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd {
	if _, ok := m.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	m.ttls[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (m *memStore) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := m.data[k]; ok {
			n++
		}
		delete(m.data, k)
		delete(m.ttls, k)
	}
	return redis.NewIntResult(n, nil)
}

func (m *memStore) Eval(_ context.Context, script string, keys []string, args ...any) *redis.Cmd {
	if m.evalErr != nil {
		return redis.NewCmdResult(nil, m.evalErr)
	}
	k := keys[0]
	switch script {
	case incrExpireScript:
		var n int64
		fmt.Sscan(m.data[k], &n)
		n++
		m.data[k] = fmt.Sprint(n)
		if ms := args[0].(int64); n == 1 && ms > 0 {
			m.ttls[k] = time.Duration(ms) * time.Millisecond
		}
		return redis.NewCmdResult(n, nil)
	case deleteIfValueScript:
		if v, ok := m.data[k]; ok && v == args[0] {
			delete(m.data, k)
			return redis.NewCmdResult(int64(1), nil)
		}
		return redis.NewCmdResult(int64(0), nil)
	}
	return redis.NewCmdResult(nil, fmt.Errorf("unexpected script"))
}

func TestIncrWithTTLStartsWindowOnce(t *testing.T) {
	mem := newMemStore()
	client := &Client{store: mem}
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		n, err := client.IncrWithTTL(ctx, "rl:checkout", 1500*time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}
	assert.Equal(t, 1500*time.Millisecond, mem.ttls["rl:checkout"])

	mem.ttls["rl:checkout"] = time.Second
	_, err := client.IncrWithTTL(ctx, "rl:checkout", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Second, mem.ttls["rl:checkout"], "later increments keep the running window")
}

func TestIncrWithTTLWrapsScriptError(t *testing.T) {
	mem := newMemStore()
	mem.evalErr = fmt.Errorf("NOSCRIPT")
	client := &Client{store: mem}

	_, err := client.IncrWithTTL(context.Background(), "rl:x", time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incr rl:x")
}

func TestLeaseKeyLifecycle(t *testing.T) {
	mem := newMemStore()
	client := &Client{store: mem}
	ctx := context.Background()
	key := client.LockKey("prod:outbox-retention")

	ok, err := client.SetNX(ctx, key, "worker-a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = client.SetNX(ctx, key, "worker-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	deleted, err := client.DeleteIfValue(ctx, key, "worker-b")
	require.NoError(t, err)
	assert.False(t, deleted, "only the holder may release")

	owner, err := client.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "worker-a", owner)

	deleted, err = client.DeleteIfValue(ctx, key, "worker-a")
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = client.Get(ctx, key)
	assert.ErrorIs(t, err, redis.Nil)
}

func TestDelSkipsEmptyKeyList(t *testing.T) {
	client := &Client{store: newMemStore()}
	assert.NoError(t, client.Del(context.Background()))
}

func TestZeroClient(t *testing.T) {
	client := &Client{}
	ctx := context.Background()

	assert.ErrorIs(t, client.Ping(ctx), errNotInitialized)
	_, err := client.IncrWithTTL(ctx, "k", time.Second)
	assert.ErrorIs(t, err, errNotInitialized)
	_, err = client.DeleteIfValue(ctx, "k", "v")
	assert.ErrorIs(t, err, errNotInitialized)
	assert.NoError(t, client.Close())
}

func TestKeys(t *testing.T) {
	client := &Client{}
	assert.Equal(t, "cc:idempotency:checkout:abc", client.IdempotencyKey("checkout", "abc"))
	assert.Equal(t, "cc:idempotency:checkout", client.IdempotencyKey("checkout", " "))
	assert.Equal(t, "cc:lock:prod:expire-intents", client.LockKey("prod:expire-intents"))
}

func TestOptionsFromConfig(t *testing.T) {
	_, err := optionsFromConfig(config.RedisConfig{})
	require.Error(t, err)

	opts, err := optionsFromConfig(config.RedisConfig{
		URL:         "redis://localhost:6379/2",
		PoolSize:    7,
		DialTimeout: 3 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 7, opts.PoolSize)
	assert.Equal(t, 3*time.Second, opts.DialTimeout)

	opts, err = optionsFromConfig(config.RedisConfig{Address: "cache:6380", DB: 4, Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 4, opts.DB)
	assert.Equal(t, "pw", opts.Password)
}
