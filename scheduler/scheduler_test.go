package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestAddTicker_Fires(t *testing.T) {
	s := New(zap.NewNop())
	defer s.Stop()

	var count int32
	s.AddTicker("tick", 20*time.Millisecond, func(context.Context) {
		atomic.AddInt32(&count, 1)
	})

	time.Sleep(120 * time.Millisecond)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&count), int32(3))
}

func TestAddTicker_Replaces(t *testing.T) {
	s := New(zap.NewNop())
	defer s.Stop()

	var count1, count2 int32
	s.AddTicker("task", 20*time.Millisecond, func(context.Context) { atomic.AddInt32(&count1, 1) })
	time.Sleep(30 * time.Millisecond)
	s.AddTicker("task", 20*time.Millisecond, func(context.Context) { atomic.AddInt32(&count2, 1) })
	time.Sleep(80 * time.Millisecond)

	snap1 := atomic.LoadInt32(&count1)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, snap1, atomic.LoadInt32(&count1), "old ticker must stop after replacement")
	assert.Positive(t, atomic.LoadInt32(&count2))
	assert.Equal(t, []string{"task"}, s.ListTickers())
}

func TestRemove_Ticker(t *testing.T) {
	s := New(zap.NewNop())
	defer s.Stop()

	var count int32
	s.AddTicker("task", 20*time.Millisecond, func(context.Context) { atomic.AddInt32(&count, 1) })
	time.Sleep(50 * time.Millisecond)
	s.Remove("task")
	snap := atomic.LoadInt32(&count)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, snap, atomic.LoadInt32(&count))
	assert.Empty(t, s.ListTickers())
}

func TestPanicRecovered(t *testing.T) {
	s := New(zap.NewNop())
	defer s.Stop()

	var count int32
	s.AddTicker("boom", 20*time.Millisecond, func(context.Context) {
		atomic.AddInt32(&count, 1)
		panic("boom")
	})
	time.Sleep(90 * time.Millisecond)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&count), int32(2), "ticker keeps running after a panic")
}

func TestStop_CancelsTaskContext(t *testing.T) {
	s := New(zap.NewNop())

	done := make(chan struct{})
	var once int32
	s.AddTicker("wait", 10*time.Millisecond, func(ctx context.Context) {
		if atomic.CompareAndSwapInt32(&once, 0, 1) {
			go func() {
				<-ctx.Done()
				close(done)
			}()
		}
	})
	time.Sleep(30 * time.Millisecond)
	s.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task context not cancelled on Stop")
	}
}

func TestStop_RemovesAllTasks(t *testing.T) {
	s := New(zap.NewNop())

	var count int32
	s.AddTicker("a", 10*time.Millisecond, func(context.Context) { atomic.AddInt32(&count, 1) })
	s.AddTicker("b", 10*time.Millisecond, func(context.Context) { atomic.AddInt32(&count, 1) })
	assert.ElementsMatch(t, []string{"a", "b"}, s.ListTickers())

	s.Stop()
	assert.Empty(t, s.ListTickers())
	time.Sleep(20 * time.Millisecond)
	snap := atomic.LoadInt32(&count)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, snap, atomic.LoadInt32(&count))
}
