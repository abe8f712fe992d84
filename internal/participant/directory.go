package participant

import (
	"errors"
	"sync"
	"time"

	"github.com/rendezvous-dev/rendezvous-go-coordinator/internal/logger"
)

var (
	ErrAlreadyRegistered = errors.New("participant ID already registered")
	ErrNotRegistered     = errors.New("participant ID not found")
	ErrReconnectExpired  = errors.New("reconnection time exceeded")
)

// Directory is the concurrent map from participant id to Record.
//
// The RWMutex guards only map membership; field mutations on a record go
// through the record's own lock, so steady traffic on different ids does not
// contend. Compound check-then-act sequences (register, reconnect, remove)
// run under the write lock so that two racing callers for the same id can
// never both pass the precondition check.
type Directory struct {
	mu      sync.RWMutex
	records map[string]*Record
}

func NewDirectory() *Directory {
	return &Directory{
		records: make(map[string]*Record),
	}
}

// Register creates the record for id, bound to the given transport, and marks
// it online. Exactly one of two racing Registers for the same id wins.
func (d *Directory) Register(id, address string, tr Transport) (*Record, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.records[id]; exists {
		return nil, ErrAlreadyRegistered
	}
	rec := newRecord(id, address, tr)
	d.records[id] = rec
	return rec, nil
}

func (d *Directory) Lookup(id string) (*Record, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.records[id]
	return rec, ok
}

// SetOnline rebinds the record's transport and marks it online.
func (d *Directory) SetOnline(id string, tr Transport) error {
	d.mu.RLock()
	rec, ok := d.records[id]
	d.mu.RUnlock()
	if !ok {
		return ErrNotRegistered
	}
	rec.setOnline(tr)
	return nil
}

// SetOffline marks the record offline and stamps the disconnect time.
func (d *Directory) SetOffline(id string, when time.Time) error {
	d.mu.RLock()
	rec, ok := d.records[id]
	d.mu.RUnlock()
	if !ok {
		return ErrNotRegistered
	}
	rec.setOffline(when)
	return nil
}

// SetOfflineIfBound marks the record offline only while it is still bound to
// the given transport. A session tearing down after its id reconnected
// elsewhere must not knock the rebound record offline.
func (d *Directory) SetOfflineIfBound(id string, tr Transport, when time.Time) bool {
	d.mu.RLock()
	rec, ok := d.records[id]
	d.mu.RUnlock()
	if !ok {
		return false
	}
	return rec.setOfflineIfBound(tr, when)
}

func (d *Directory) Remove(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.records[id]; !ok {
		return ErrNotRegistered
	}
	delete(d.records, id)
	return nil
}

// Reconnect runs the expiry check and its consequence as one atomic unit:
// within the grace window it rebinds the transport and marks the record
// online, past the window it removes the record and reports expiry. Of two
// concurrent reconnects for an expired id, one observes the expiry and the
// other finds the id gone.
func (d *Directory) Reconnect(id string, tr Transport, window time.Duration, now time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.records[id]
	if !ok {
		return ErrNotRegistered
	}

	if rec.expiredAt(window, now) {
		delete(d.records, id)
		logger.InfoF("Participant %s removed due to expired reconnection", id)
		return ErrReconnectExpired
	}

	rec.setOnline(tr)
	return nil
}

// Snapshot returns the current set of records. The slice is a point-in-time
// copy; the records themselves stay live and are read via DeliveryState.
func (d *Directory) Snapshot() []*Record {
	d.mu.RLock()
	defer d.mu.RUnlock()
	records := make([]*Record, 0, len(d.records))
	for _, rec := range d.records {
		records = append(records, rec)
	}
	return records
}

func (d *Directory) Size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.records)
}
