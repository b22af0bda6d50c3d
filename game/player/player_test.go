package player

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/ryanroundhouse/punk-mud-sub000/cache/local"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newPresence(t *testing.T) *Presence {
	c, err := local.NewCache(local.Config{GCInterval: time.Minute})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return NewPresence(c)
}

func readPacket(t *testing.T, s *PlayerSession) Packet {
	t.Helper()
	select {
	case data := <-s.SendChan:
		var pkt Packet
		require.NoError(t, json.Unmarshal(data, &pkt))
		return pkt
	case <-time.After(100 * time.Millisecond):
		t.Fatal("no packet")
	}
	return Packet{}
}

func TestSendToPlayer_WrapsStrings(t *testing.T) {
	sm := NewSessionManager(nil, zap.NewNop())
	s := NewPlayerSession("p1", "Neo", nil, zap.NewNop())
	sm.Register(s)

	sm.SendToPlayer("p1", ChannelInfo, "hello")
	pkt := readPacket(t, s)
	assert.Equal(t, ChannelInfo, pkt.Type)
	var msg TextMessage
	require.NoError(t, json.Unmarshal(pkt.Payload, &msg))
	assert.Equal(t, "hello", msg.Message)

	sm.SendToPlayer("p1", ChannelPlayerStatus, StatusPayload{CurrentHitpoints: 3, Hitpoints: 10})
	pkt = readPacket(t, s)
	var st StatusPayload
	require.NoError(t, json.Unmarshal(pkt.Payload, &st))
	assert.Equal(t, 3, st.CurrentHitpoints)

	// offline player is a no-op
	sm.SendToPlayer("ghost", ChannelInfo, "x")
}

func TestBroadcastToLocation_UsesPresence(t *testing.T) {
	ctx := context.Background()
	pr := newPresence(t)
	sm := NewSessionManager(pr, zap.NewNop())

	a := NewPlayerSession("a", "A", nil, zap.NewNop())
	b := NewPlayerSession("b", "B", nil, zap.NewNop())
	c := NewPlayerSession("c", "C", nil, zap.NewNop())
	for _, s := range []*PlayerSession{a, b, c} {
		sm.Register(s)
	}
	require.NoError(t, pr.Move(ctx, "a", "", "room-1"))
	require.NoError(t, pr.Move(ctx, "b", "", "room-1"))
	require.NoError(t, pr.Move(ctx, "c", "", "room-2"))

	sm.BroadcastToLocation(ctx, "room-1", "B waves", "a")

	pkt := readPacket(t, b)
	assert.Equal(t, ChannelSystem, pkt.Type)
	assert.Len(t, a.SendChan, 0)
	assert.Len(t, c.SendChan, 0)

	require.NoError(t, pr.Move(ctx, "b", "room-1", "room-2"))
	members, err := pr.Members(ctx, "room-2")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b", "c"}, members)
}

func TestRegister_DisplacesOldSession(t *testing.T) {
	sm := NewSessionManager(nil, zap.NewNop())
	old := NewPlayerSession("p1", "Neo", nil, zap.NewNop())
	sm.Register(old)
	fresh := NewPlayerSession("p1", "Neo", nil, zap.NewNop())
	sm.Register(fresh)

	assert.True(t, old.IsClosed())
	// unregistering the displaced session must not drop the new one
	sm.Unregister(old)
	assert.Same(t, fresh, sm.Get("p1"))
	assert.Same(t, fresh, sm.GetByName("neo"))
	sm.Unregister(fresh)
	assert.Equal(t, 0, sm.Count())
}

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("p1")
			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, km.Len())
}

func TestKeyedMutex_DifferentKeysIndependent(t *testing.T) {
	km := NewKeyedMutex()
	unlockA := km.Lock("a")
	done := make(chan struct{})
	go func() {
		unlock := km.Lock("b")
		unlock()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b blocked by a")
	}
	unlockA()
}
