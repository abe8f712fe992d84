// Package participant holds the session records and the directory that is the
// single source of truth for who is currently reachable.
package participant

import (
	"sync"
	"time"
)

// Transport is the opaque write handle bound to a participant's current
// connection. It is replaced on every successful reconnect.
type Transport interface {
	WriteLine(line string) error
	RemoteAddr() string
}

// Record is the stored presence state for one registered participant. ID and
// Address are fixed at registration; the liveness fields are mutated only
// through Directory operations, under the record's own lock.
type Record struct {
	ID      string
	Address string

	mu                 sync.Mutex
	transport          Transport
	online             bool
	lastDisconnectedAt time.Time
}

func newRecord(id, address string, tr Transport) *Record {
	return &Record{
		ID:        id,
		Address:   address,
		transport: tr,
		online:    true,
	}
}

// DeliveryState reports a consistent (online, transport) pair for the
// fan-out path.
func (r *Record) DeliveryState() (bool, Transport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.online, r.transport
}

func (r *Record) Online() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.online
}

func (r *Record) LastDisconnectedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastDisconnectedAt
}

func (r *Record) setOnline(tr Transport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.online = true
	r.transport = tr
}

func (r *Record) setOffline(when time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.online = false
	r.lastDisconnectedAt = when
}

func (r *Record) setOfflineIfBound(tr Transport, when time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.transport != tr {
		return false
	}
	r.online = false
	r.lastDisconnectedAt = when
	return true
}

// expiredAt reports whether the grace window has elapsed. Meaningful only for
// an offline record.
func (r *Record) expiredAt(window time.Duration, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.online && now.Sub(r.lastDisconnectedAt) > window
}
