// Package fanout delivers one message to every known participant: straight to
// the transport of everyone online, into the pending queue of everyone
// offline.
package fanout

import (
	"time"

	"github.com/rendezvous-dev/rendezvous-go-coordinator/internal/logger"
	"github.com/rendezvous-dev/rendezvous-go-coordinator/internal/message"
	"github.com/rendezvous-dev/rendezvous-go-coordinator/internal/metrics"
	"github.com/rendezvous-dev/rendezvous-go-coordinator/internal/participant"
	"github.com/rendezvous-dev/rendezvous-go-coordinator/internal/pending"
	"github.com/rendezvous-dev/rendezvous-go-coordinator/internal/protocol"
)

// Journal records delivery outcomes for offline inspection. Implementations
// must not block; a nil Journal disables journaling.
type Journal interface {
	Delivered(recipient string, msg message.Message)
	Queued(recipient string, msg message.Message)
	Expired(recipient string, msg message.Message)
}

type Engine struct {
	directory *participant.Directory
	pending   *pending.Store
	journal   Journal
}

func NewEngine(directory *participant.Directory, store *pending.Store, journal Journal) *Engine {
	return &Engine{
		directory: directory,
		pending:   store,
		journal:   journal,
	}
}

// Broadcast fans the message out to the current directory snapshot. The
// sender receives no echo. A write failure on one recipient is logged and
// skipped, it never blocks delivery to the rest. Offline recipients get the
// message enqueued for a later reconnect drain.
func (e *Engine) Broadcast(msg message.Message) {
	for _, rec := range e.directory.Snapshot() {
		if rec.ID == msg.Sender {
			continue
		}

		online, tr := rec.DeliveryState()
		if !online || tr == nil {
			e.pending.Enqueue(rec.ID, msg)
			metrics.MessagesQueued.Inc()
			if e.journal != nil {
				e.journal.Queued(rec.ID, msg)
			}
			continue
		}

		if err := tr.WriteLine(protocol.Msg(msg.Sender, msg.Content)); err != nil {
			logger.WarnF("Fail to deliver message from %s to %s, details: %v", msg.Sender, rec.ID, err)
			metrics.TransportWriteFailures.Inc()
			continue
		}
		metrics.MessagesDelivered.Inc()
		if e.journal != nil {
			e.journal.Delivered(rec.ID, msg)
		}
	}
}

// Drain empties id's pending queue onto the freshly bound transport in FIFO
// order. Messages past the grace window are discarded silently. Returns how
// many messages were delivered and how many dropped.
func (e *Engine) Drain(id string, tr participant.Transport, window time.Duration, now time.Time) (delivered, dropped int) {
	for _, msg := range e.pending.Drain(id) {
		if msg.Expired(window, now) {
			dropped++
			metrics.MessagesExpired.Inc()
			if e.journal != nil {
				e.journal.Expired(id, msg)
			}
			continue
		}
		if err := tr.WriteLine(protocol.Msg(msg.Sender, msg.Content)); err != nil {
			logger.WarnF("Fail to deliver pending message from %s to %s, details: %v", msg.Sender, id, err)
			metrics.TransportWriteFailures.Inc()
			continue
		}
		delivered++
		metrics.MessagesDelivered.Inc()
		if e.journal != nil {
			e.journal.Delivered(id, msg)
		}
	}
	if delivered > 0 || dropped > 0 {
		logger.DebugF("Drained pending queue for %s: %d delivered, %d expired", id, delivered, dropped)
	}
	return delivered, dropped
}
