package domain

import (
	"time"
)

// Message is a single direct message between two users. Image holds the
// asset-store URL of an attached picture, if any.
type Message struct {
	MessageID  string    `json:"message_id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Text       string    `json:"text,omitempty"`
	Image      string    `json:"image,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// IsBetween reports whether the message belongs to the conversation
// between users a and b, in either direction.
func (m *Message) IsBetween(a, b string) bool {
	return (m.SenderID == a && m.ReceiverID == b) ||
		(m.SenderID == b && m.ReceiverID == a)
}
