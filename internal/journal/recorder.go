package journal

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rendezvous-dev/rendezvous-go-coordinator/internal/event"
	"github.com/rendezvous-dev/rendezvous-go-coordinator/internal/logger"
	"github.com/rendezvous-dev/rendezvous-go-coordinator/internal/message"
)

const (
	KindDelivered = "delivered"
	KindQueued    = "queued"
	KindExpired   = "expired"
)

// Entry is one journaled fan-out outcome.
type Entry struct {
	ID        string    `bson:"_id"`
	Kind      string    `bson:"kind"`
	Sender    string    `bson:"sender"`
	Recipient string    `bson:"recipient"`
	Content   string    `bson:"content"`
	CreatedAt time.Time `bson:"created_at"`
	LoggedAt  time.Time `bson:"logged_at"`
}

// Recorder buffers entries through a channel and inserts them from a
// background worker, so the fan-out path never waits on the database. When
// the buffer is full entries are dropped, the journal is best-effort.
type Recorder struct {
	ch chan Entry
	wg sync.WaitGroup
}

func NewRecorder() *Recorder {
	r := &Recorder{
		ch: make(chan Entry, 1024),
	}
	r.wg.Add(1)
	go r.startWorker()
	event.NewCleaner().Add(r)
	return r
}

func (r *Recorder) startWorker() {
	defer r.wg.Done()
	for entry := range r.ch {
		ctx, cancel := context.WithTimeout(context.Background(), OperationTimeout)
		_, err := Deliveries.InsertOne(ctx, entry)
		cancel()
		if err != nil {
			logger.WarnF("Fail to journal %s entry for %s, details: %v", entry.Kind, entry.Recipient, err)
		}
	}
}

func (r *Recorder) record(kind, recipient string, msg message.Message) {
	entry := Entry{
		ID:        uuid.NewString(),
		Kind:      kind,
		Sender:    msg.Sender,
		Recipient: recipient,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
		LoggedAt:  time.Now(),
	}
	select {
	case r.ch <- entry:
	default:
		logger.Debug("Journal buffer full, entry dropped")
	}
}

func (r *Recorder) Delivered(recipient string, msg message.Message) {
	r.record(KindDelivered, recipient, msg)
}

func (r *Recorder) Queued(recipient string, msg message.Message) {
	r.record(KindQueued, recipient, msg)
}

func (r *Recorder) Expired(recipient string, msg message.Message) {
	r.record(KindExpired, recipient, msg)
}

// Invoke drains the buffer during ordered shutdown.
func (r *Recorder) Invoke(ctx context.Context) error {
	close(r.ch)
	r.wg.Wait()
	return nil
}
