package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCache_SelectsBackend(t *testing.T) {
	ctx := context.Background()

	localC, err := NewCache(CacheConfig{})
	require.NoError(t, err)
	defer localC.Close()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	redisC, err := NewCache(CacheConfig{RedisAddr: mr.Addr()})
	require.NoError(t, err)
	defer redisC.Close()

	for name, c := range map[string]Cache{"local": localC, "redis": redisC} {
		t.Run(name, func(t *testing.T) {
			_, err := c.Get(ctx, "missing")
			assert.True(t, IsNotFound(err))

			require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
			v, err := c.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, "v", v)
		})
	}
}

func TestLocalPubSubAdapter(t *testing.T) {
	ps, err := NewPubSub(CacheConfig{LocalPubSubBuf: 4})
	require.NoError(t, err)
	ctx := context.Background()

	ch, cancel, err := ps.Subscribe(ctx, "chat:location:1")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, ps.Publish(ctx, "chat:location:1", "hi"))
	select {
	case msg := <-ch:
		assert.Equal(t, "chat:location:1", msg.Channel)
		assert.Equal(t, "hi", msg.Payload)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for message")
	}
}
