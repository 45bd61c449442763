package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestMemoryStore_PerKey(t *testing.T) {
	c := &clock{t: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(c.now)
	policy := Policy{RPM: 60, Burst: 1}
	ctx := context.Background()

	require.NoError(t, Check(ctx, store, "10.0.0.1", policy))
	err := Check(ctx, store, "10.0.0.1", policy)
	require.ErrorIs(t, err, ErrLimited)
	require.NoError(t, Check(ctx, store, "10.0.0.2", policy))

	c.t = c.t.Add(time.Second)
	require.NoError(t, Check(ctx, store, "10.0.0.1", policy))
}

type failingStore struct{}

func (failingStore) Allow(context.Context, string, Policy, int) (bool, error) {
	return false, errors.New("connection refused")
}

func TestCheck_Errors(t *testing.T) {
	ctx := context.Background()
	require.Error(t, Check(ctx, nil, "k", Policy{}))

	err := Check(ctx, failingStore{}, "k", Policy{})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrLimited))
}

func TestPolicyDefaults(t *testing.T) {
	p := Policy{}
	assert.InDelta(t, 1.0/60, p.perSecond(), 1e-9)
	assert.Equal(t, 1, p.burst())
}

func TestMemoryStore_Burst(t *testing.T) {
	c := &clock{t: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(c.now)
	policy := Policy{RPM: 60, Burst: 2}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := store.Allow(ctx, "client", policy, 1)
		require.NoError(t, err)
		assert.True(t, ok, "request %d within burst", i)
	}
	ok, err := store.Allow(ctx, "client", policy, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	// Refill never exceeds the burst.
	c.t = c.t.Add(time.Hour)
	ok, _ = store.Allow(ctx, "client", policy, 2)
	assert.True(t, ok)
	ok, _ = store.Allow(ctx, "client", policy, 1)
	assert.False(t, ok)
}

func TestMemoryStore_Prune(t *testing.T) {
	c := &clock{t: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(c.now)
	ctx := context.Background()

	_, _ = store.Allow(ctx, "old", Policy{}, 1)
	c.t = c.t.Add(5 * time.Minute)
	_, _ = store.Allow(ctx, "new", Policy{}, 1)

	assert.Equal(t, 1, store.Prune(3*time.Minute))
	assert.Equal(t, 0, store.Prune(-time.Second))
}

// TestRedisStore_Integration requires a running Redis.
// We skip if connection fails.
func TestRedisStore_Integration(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skip("Skipping Redis integration test: redis not available")
	}
	defer func() { _ = rdb.Close() }()

	store := NewRedisStore(rdb)
	key := "test-" + uuid.NewString()
	policy := Policy{RPM: 60, Burst: 1}

	allowed, err := store.Allow(ctx, key, policy, 1)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = store.Allow(ctx, key, policy, 1)
	require.NoError(t, err)
	assert.False(t, allowed)
}
