package message

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExpired(t *testing.T) {
	req := require.New(t)
	window := 30 * time.Second
	msg := New("alice", "hello")

	req.False(msg.Expired(window, msg.CreatedAt))
	req.False(msg.Expired(window, msg.CreatedAt.Add(window)), "a message exactly at the bound is still valid")
	req.True(msg.Expired(window, msg.CreatedAt.Add(window+time.Nanosecond)))
}
