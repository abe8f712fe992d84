package pending

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rendezvous-dev/rendezvous-go-coordinator/internal/message"
)

func TestEnqueueDrain_FIFO(t *testing.T) {
	req := require.New(t)
	store := NewStore()

	for i := 0; i < 5; i++ {
		store.Enqueue("bob", message.New("alice", fmt.Sprintf("msg-%d", i)))
	}
	req.Equal(5, store.Depth("bob"))

	drained := store.Drain("bob")
	req.Len(drained, 5)
	for i, msg := range drained {
		req.Equal(fmt.Sprintf("msg-%d", i), msg.Content, "insertion order must be preserved")
	}

	// The queue entry is gone after a drain.
	req.Equal(0, store.Depth("bob"))
	req.Empty(store.Drain("bob"))
}

func TestDrain_IsOneShot(t *testing.T) {
	req := require.New(t)
	store := NewStore()
	store.Enqueue("bob", message.New("alice", "only once"))

	first := store.Drain("bob")
	second := store.Drain("bob")
	req.Len(first, 1)
	req.Empty(second, "a message must never be handed out twice")
}

func TestDiscard(t *testing.T) {
	req := require.New(t)
	store := NewStore()
	store.Enqueue("bob", message.New("alice", "a"))
	store.Enqueue("bob", message.New("alice", "b"))

	req.Equal(2, store.Discard("bob"))
	req.Equal(0, store.Depth("bob"))
	req.Equal(0, store.Discard("bob"))
}

func TestPruneExpired(t *testing.T) {
	req := require.New(t)
	store := NewStore()
	window := 30 * time.Second
	now := time.Now()

	stale := message.Message{Sender: "alice", Content: "old", CreatedAt: now.Add(-window - time.Second)}
	fresh := message.Message{Sender: "alice", Content: "new", CreatedAt: now}
	store.Enqueue("bob", stale)
	store.Enqueue("bob", fresh)
	store.Enqueue("carol", stale)

	dropped := store.PruneExpired(window, now)
	req.Equal(2, dropped)

	// bob keeps the fresh message, carol's empty queue is deleted.
	req.Equal(1, store.Depth("bob"))
	req.Equal("new", store.Drain("bob")[0].Content)
	req.Equal(0, store.Depth("carol"))
	req.Equal(0, store.Size())
}

func TestConcurrentEnqueueAndDrain(t *testing.T) {
	req := require.New(t)
	store := NewStore()

	const writers = 8
	const perWriter = 100

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				store.Enqueue("bob", message.New("alice", "x"))
			}
		}()
	}

	var drained int
	var dmu sync.Mutex
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			batch := store.Drain("bob")
			dmu.Lock()
			drained += len(batch)
			dmu.Unlock()
		}
	}()
	wg.Wait()

	// Whatever was not picked up mid-race is still queued; nothing is lost or
	// duplicated.
	req.Equal(writers*perWriter, drained+store.Depth("bob"))
}
