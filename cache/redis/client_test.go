package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err, "failed to start miniredis")
	t.Cleanup(mr.Close)

	c, err := NewCache(Config{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisKV(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	_, err := c.Get(ctx, "session:p1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, c.Set(ctx, "session:p1", "state", time.Minute))
	v, err := c.Get(ctx, "session:p1")
	require.NoError(t, err)
	assert.Equal(t, "state", v)

	mr.FastForward(2 * time.Minute)
	exists, err := c.Exists(ctx, "session:p1")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.ErrorIs(t, c.Expire(ctx, "session:p1", time.Minute), ErrNotFound)
}

func TestRedisSetAndList(t *testing.T) {
	c, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.SAdd(ctx, "room:1", "p1", "p2"))
	require.NoError(t, c.SRem(ctx, "room:1", "p1"))
	members, err := c.SMembers(ctx, "room:1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p2"}, members)

	require.NoError(t, c.LPush(ctx, "chat:1", "c", "b", "a"))
	require.NoError(t, c.LTrim(ctx, "chat:1", 0, 1))
	items, err := c.LRange(ctx, "chat:1", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, items)
}

func TestRedisPubSub(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	ps, err := NewPubSub(Config{Addr: mr.Addr()})
	require.NoError(t, err)
	defer ps.Close()

	ctx := context.Background()
	ch, cancel, err := ps.Subscribe(ctx, "chat:location:1")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, ps.Publish(ctx, "chat:location:1", "hi"))
	select {
	case msg := <-ch:
		assert.Equal(t, "hi", msg.Payload)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}
