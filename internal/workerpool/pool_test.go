package workerpool

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_RunsTasks(t *testing.T) {
	p := New(4, 16)

	var count atomic.Int64
	for i := 0; i < 10; i++ {
		require.True(t, p.TrySubmit(fmt.Sprintf("key-%d", i), func() { count.Add(1) }))
	}

	p.Shutdown()
	assert.Equal(t, int64(10), count.Load())
}

func TestPool_SameKeyKeepsOrder(t *testing.T) {
	p := New(8, 1000)

	var mu sync.Mutex
	got := map[string][]int{}

	keys := []string{"alice:bob", "bob:alice", "carol:bob"}
	for i := 0; i < 300; i++ {
		key := keys[i%len(keys)]
		n := i
		require.True(t, p.TrySubmit(key, func() {
			mu.Lock()
			got[key] = append(got[key], n)
			mu.Unlock()
		}))
	}
	p.Shutdown()

	for _, key := range keys {
		seq := got[key]
		require.Len(t, seq, 100)
		for i := 1; i < len(seq); i++ {
			assert.Less(t, seq[i-1], seq[i], "tasks for %s ran out of order", key)
		}
	}
}

func TestPool_TrySubmitFullQueue(t *testing.T) {
	p := New(1, 1)

	block := make(chan struct{})
	started := make(chan struct{})
	require.True(t, p.TrySubmit("k", func() {
		close(started)
		<-block
	}))
	<-started

	// Worker is busy, one slot in the queue
	assert.True(t, p.TrySubmit("k", func() {}))
	assert.False(t, p.TrySubmit("k", func() {}), "queue is full")

	close(block)
	p.Shutdown()
}

func TestPool_RecoversFromPanic(t *testing.T) {
	p := New(1, 4)

	var ran atomic.Bool
	require.True(t, p.TrySubmit("k", func() { panic("boom") }))
	require.True(t, p.TrySubmit("k", func() { ran.Store(true) }))

	p.Shutdown()
	assert.True(t, ran.Load(), "worker should survive a panicking task")
}

func TestPool_SubmitAfterShutdown(t *testing.T) {
	p := New(2, 4)
	p.Shutdown()
	p.Shutdown()

	assert.False(t, p.TrySubmit("k", func() {}))
}
