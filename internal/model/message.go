package model

import "strings"

// Status tracks a message's delivery lifecycle on this client.
type Status string

const (
	StatusPending  Status = "pending"
	StatusSent     Status = "sent"
	StatusFailed   Status = "failed"
	StatusReceived Status = "received"
)

// TempIDPrefix marks client-assigned ids for not-yet-confirmed sends.
const TempIDPrefix = "temp-"

// Message is one timeline entry. ID is backend-assigned for confirmed
// messages, or a temp- id for optimistic local sends.
type Message struct {
	ID         string
	ChatID     string
	SenderID   string
	SenderName string
	FromMe     bool
	Timestamp  int64 // unix millis
	Content    Content
	QuotedID   string
	Status     Status
}

// Pending reports whether the message is an unconfirmed optimistic send.
func (m *Message) Pending() bool {
	return m.Status == StatusPending || strings.HasPrefix(m.ID, TempIDPrefix)
}
