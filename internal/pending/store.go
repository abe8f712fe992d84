// Package pending holds messages destined for participants that are
// currently offline, one FIFO queue per participant id.
package pending

import (
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/rendezvous-dev/rendezvous-go-coordinator/internal/message"
)

type Store struct {
	mu     sync.Mutex
	queues map[string][]message.Message
}

func NewStore() *Store {
	return &Store{
		queues: make(map[string][]message.Message),
	}
}

// Enqueue appends the message to id's queue, creating the queue on first use.
func (s *Store) Enqueue(id string, msg message.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[id] = append(s.queues[id], msg)
}

// Drain removes and returns id's queue in insertion order. The removal is
// atomic with respect to concurrent enqueues for the same id: a message lands
// either in the returned slice or in a fresh queue, never both.
func (s *Store) Drain(id string) []message.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	queue := s.queues[id]
	delete(s.queues, id)
	return queue
}

// Discard drops id's queue without returning it. Used when the identity
// itself goes away (deregister, expired reconnect).
func (s *Store) Discard(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	dropped := len(s.queues[id])
	delete(s.queues, id)
	return dropped
}

// Depth reports how many messages are queued for id.
func (s *Store) Depth(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues[id])
}

// Size reports the total number of queued messages across all ids.
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, queue := range s.queues {
		total += len(queue)
	}
	return total
}

// PruneExpired drops every queued message that has outlived the grace window
// and deletes queues that end up empty. The drain path applies the same age
// predicate, so pruning never removes a message a drain would have delivered.
// Returns the number of dropped messages.
func (s *Store) PruneExpired(window time.Duration, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for id, queue := range s.queues {
		kept := lo.Filter(queue, func(msg message.Message, _ int) bool {
			return !msg.Expired(window, now)
		})
		dropped += len(queue) - len(kept)
		if len(kept) == 0 {
			delete(s.queues, id)
		} else {
			s.queues[id] = kept
		}
	}
	return dropped
}
