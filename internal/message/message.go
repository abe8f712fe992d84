package message

import "time"

// Message is one relayed text payload. The timestamp is used only for
// grace-window expiry checks, never for delivery ordering.
type Message struct {
	Sender    string
	Content   string
	CreatedAt time.Time
}

func New(sender, content string) Message {
	return Message{
		Sender:    sender,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// Expired reports whether the message has outlived the grace window at the
// given instant. A message exactly at the bound is still deliverable.
func (m Message) Expired(window time.Duration, now time.Time) bool {
	return now.Sub(m.CreatedAt) > window
}
