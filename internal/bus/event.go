package bus

import (
	"time"

	"github.com/matheus3301/wppview/internal/model"
)

// Event kinds published on the bus. Inbound backend events use the "wa."
// namespace; core-emitted notifications use "directory.", "timeline.",
// "message." and "session.".
const (
	KindNewMessage    = "wa.message"
	KindAvatarUpdated = "wa.avatar_updated"
	KindChatRefresh   = "wa.chat_refresh"
	KindStatusChanged = "session.status_changed"

	KindDirectoryUpdated = "directory.updated"
	KindTimelineUpdated  = "timeline.updated"
	KindSendFailed       = "message.send_failed"
	KindSendAck          = "message.send_ack"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// NewMessage is the payload for KindNewMessage.
type NewMessage struct {
	ChatID  string
	Message model.Message
}

// AvatarUpdated is the payload for KindAvatarUpdated.
type AvatarUpdated struct {
	ChatID string
}

// TimelineUpdated is the payload for KindTimelineUpdated.
type TimelineUpdated struct {
	ChatID string
}

// SendResult is the payload for KindSendFailed and KindSendAck.
type SendResult struct {
	ChatID      string
	TempID      string
	ConfirmedID string
	Err         string
}
