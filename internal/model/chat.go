package model

// ChatKind distinguishes direct and group conversations.
type ChatKind string

const (
	ChatDirect ChatKind = "direct"
	ChatGroup  ChatKind = "group"
)

// ChatSummary is one chat list entry.
type ChatSummary struct {
	ID            string
	Name          string
	Preview       string
	Kind          ChatKind
	AvatarPath    string
	LastMessageAt int64 // unix millis
	UnreadCount   int
	LastSender    string // sender label for group previews
}
