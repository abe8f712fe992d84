package participant

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	addr  string
	lines []string
}

func (f *fakeTransport) WriteLine(line string) error {
	f.lines = append(f.lines, line)
	return nil
}

func (f *fakeTransport) RemoteAddr() string { return f.addr }

func TestRegister_Lookup_Remove(t *testing.T) {
	req := require.New(t)
	dir := NewDirectory()
	tr := &fakeTransport{addr: "10.0.0.1:4242"}

	rec, err := dir.Register("alice", tr.addr, tr)
	req.NoError(err)
	req.True(rec.Online())
	req.Equal("alice", rec.ID)
	req.Equal("10.0.0.1:4242", rec.Address)

	_, err = dir.Register("alice", tr.addr, tr)
	req.ErrorIs(err, ErrAlreadyRegistered)

	got, ok := dir.Lookup("alice")
	req.True(ok)
	req.Same(rec, got)

	req.NoError(dir.Remove("alice"))
	req.ErrorIs(dir.Remove("alice"), ErrNotRegistered)
	_, ok = dir.Lookup("alice")
	req.False(ok)
}

func TestRegister_ConcurrentRace_SingleWinner(t *testing.T) {
	req := require.New(t)
	dir := NewDirectory()
	id := uuid.NewString()

	const racers = 64
	var wins, losses atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := dir.Register(id, "addr", &fakeTransport{})
			if err == nil {
				wins.Add(1)
			} else {
				losses.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	req.EqualValues(1, wins.Load())
	req.EqualValues(racers-1, losses.Load())
	req.Equal(1, dir.Size())
}

func TestReconnect_WithinWindow_RebindsTransport(t *testing.T) {
	req := require.New(t)
	dir := NewDirectory()
	window := 30 * time.Second

	first := &fakeTransport{addr: "a"}
	rec, err := dir.Register("bob", first.addr, first)
	req.NoError(err)

	disconnectedAt := time.Now()
	req.NoError(dir.SetOffline("bob", disconnectedAt))
	req.False(rec.Online())
	req.Equal(disconnectedAt, rec.LastDisconnectedAt())

	second := &fakeTransport{addr: "b"}
	req.NoError(dir.Reconnect("bob", second, window, disconnectedAt.Add(window)))

	online, tr := rec.DeliveryState()
	req.True(online)
	req.Same(second, tr.(*fakeTransport), "reconnect must rebind, not recreate")
	req.Equal(1, dir.Size())
}

func TestReconnect_AfterWindow_RemovesRecord(t *testing.T) {
	req := require.New(t)
	dir := NewDirectory()
	window := 30 * time.Second

	_, err := dir.Register("carol", "addr", &fakeTransport{})
	req.NoError(err)

	disconnectedAt := time.Now()
	req.NoError(dir.SetOffline("carol", disconnectedAt))

	late := disconnectedAt.Add(window + time.Second)
	err = dir.Reconnect("carol", &fakeTransport{}, window, late)
	req.ErrorIs(err, ErrReconnectExpired)

	// The record is gone, a second attempt no longer finds the id.
	err = dir.Reconnect("carol", &fakeTransport{}, window, late)
	req.ErrorIs(err, ErrNotRegistered)
}

func TestReconnect_WhileOnline_KeepsIdentity(t *testing.T) {
	req := require.New(t)
	dir := NewDirectory()

	first := &fakeTransport{}
	rec, err := dir.Register("dave", "addr", first)
	req.NoError(err)

	// A reconnect without an intervening disconnect just rebinds.
	second := &fakeTransport{}
	req.NoError(dir.Reconnect("dave", second, time.Second, time.Now().Add(time.Hour)))
	online, tr := rec.DeliveryState()
	req.True(online)
	req.Same(second, tr.(*fakeTransport))
}

func TestSetOnline_SetOffline_UnknownID(t *testing.T) {
	req := require.New(t)
	dir := NewDirectory()
	req.ErrorIs(dir.SetOnline("ghost", &fakeTransport{}), ErrNotRegistered)
	req.ErrorIs(dir.SetOffline("ghost", time.Now()), ErrNotRegistered)
}

func TestSetOfflineIfBound(t *testing.T) {
	req := require.New(t)
	dir := NewDirectory()

	old := &fakeTransport{}
	rec, err := dir.Register("erin", "addr", old)
	req.NoError(err)

	// The id reconnects on a new transport; the old connection's teardown
	// must not flip the rebound record offline.
	fresh := &fakeTransport{}
	req.NoError(dir.SetOnline("erin", fresh))
	req.False(dir.SetOfflineIfBound("erin", old, time.Now()))
	req.True(rec.Online())

	req.True(dir.SetOfflineIfBound("erin", fresh, time.Now()))
	req.False(rec.Online())

	req.False(dir.SetOfflineIfBound("ghost", old, time.Now()))
}

func TestSnapshot_IsPointInTime(t *testing.T) {
	req := require.New(t)
	dir := NewDirectory()
	for _, id := range []string{"a", "b", "c"} {
		_, err := dir.Register(id, "addr", &fakeTransport{})
		req.NoError(err)
	}

	snap := dir.Snapshot()
	req.Len(snap, 3)

	req.NoError(dir.Remove("a"))
	req.Len(snap, 3, "an existing snapshot must not shrink")
	req.Equal(2, dir.Size())
}
