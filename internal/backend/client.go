// Package backend defines the call surface of the external messaging
// daemon. The daemon owns protocol, persistence and media transfer; this
// client only consumes its RPC methods and pushed events.
package backend

import (
	"context"
	"errors"

	"github.com/matheus3301/wppview/internal/model"
)

// ErrUnavailable is returned when the backend link is down. Callers treat
// it as a transient failure: state is left untouched and the operation is
// retriable.
var ErrUnavailable = errors.New("backend unavailable")

// SendPayload describes one outgoing message.
type SendPayload struct {
	Type       string `json:"type"` // text, image, video, audio, document
	Text       string `json:"text,omitempty"`
	Base64Data string `json:"base64Data,omitempty"`
	MimeType   string `json:"mimeType,omitempty"`
	FileName   string `json:"fileName,omitempty"`
	QuotedID   string `json:"quotedMessageId,omitempty"`
}

// ChatDTO is the wire shape of one chat list entry.
type ChatDTO struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Preview       string `json:"latestMessage"`
	IsGroup       bool   `json:"isGroup"`
	AvatarPath    string `json:"avatarPath,omitempty"`
	LastMessageAt int64  `json:"lastMessageAt"`
	UnreadCount   int    `json:"unreadCount"`
	LastSender    string `json:"lastSender,omitempty"`
}

// Summary converts a wire chat entry to the directory model.
func (d ChatDTO) Summary() model.ChatSummary {
	kind := model.ChatDirect
	if d.IsGroup {
		kind = model.ChatGroup
	}
	name := d.Name
	if name == "" {
		name = d.ID
	}
	return model.ChatSummary{
		ID:            d.ID,
		Name:          name,
		Preview:       d.Preview,
		Kind:          kind,
		AvatarPath:    d.AvatarPath,
		LastMessageAt: d.LastMessageAt,
		UnreadCount:   d.UnreadCount,
		LastSender:    d.LastSender,
	}
}

// Client is the backend daemon call surface consumed by the sync core.
type Client interface {
	// FetchMessagesPaged returns up to pageSize messages strictly older
	// than beforeUnixMS (the newest page when beforeUnixMS is zero),
	// ordered ascending by timestamp.
	FetchMessagesPaged(ctx context.Context, chatID string, pageSize int, beforeUnixMS int64) ([]model.Message, error)

	// SendMessage submits an outgoing message and returns the confirmed
	// message id assigned by the backend.
	SendMessage(ctx context.Context, chatID string, payload SendPayload) (string, error)

	// FetchChatList returns the full directory snapshot.
	FetchChatList(ctx context.Context) ([]ChatDTO, error)

	// DownloadMedia fetches the decrypted media payload for a message.
	DownloadMedia(ctx context.Context, chatID, messageID string) ([]byte, error)

	// CachedMediaPath returns the backend-side cache path for a message's
	// media, or "" when it has not been downloaded yet.
	CachedMediaPath(ctx context.Context, messageID string) (string, error)
}
