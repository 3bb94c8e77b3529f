// Package ipc speaks the backend daemon's control protocol: newline
// delimited JSON frames over a per-session unix socket. Requests carry a
// client-assigned id that the matching response echoes; frames without an
// id are server pushes.
package ipc

import (
	"encoding/json"
	"fmt"

	"github.com/matheus3301/wppview/internal/model"
)

// Request methods understood by the backend.
const (
	MethodChatList    = "chat.list"
	MethodMessagePage = "message.page"
	MethodMessageSend = "message.send"
	MethodMediaFetch  = "media.fetch"
	MethodMediaPath   = "media.path"
	MethodStatusGet   = "status.get"
)

// Push event names sent by the backend.
const (
	PushNewMessage    = "message.new"
	PushAvatarUpdated = "chat.avatar"
	PushChatRefresh   = "chat.refresh"
	PushStatus        = "status"
)

type request struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// frame is the union of response and push shapes read off the socket.
type frame struct {
	ID     uint64          `json:"id,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
	Event  string          `json:"event,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

type pageParams struct {
	ChatID   string `json:"chatId"`
	PageSize int    `json:"pageSize"`
	BeforeMS int64  `json:"beforeMs,omitempty"`
}

type sendParams struct {
	ChatID  string          `json:"chatId"`
	Payload json.RawMessage `json:"payload"`
}

type sendResult struct {
	MessageID string `json:"messageId"`
}

type mediaParams struct {
	ChatID    string `json:"chatId,omitempty"`
	MessageID string `json:"messageId"`
}

type mediaResult struct {
	Base64Data string `json:"base64Data,omitempty"`
	Path       string `json:"path,omitempty"`
}

type statusResult struct {
	State string `json:"state"`
}

type avatarPush struct {
	ChatID string `json:"chatId"`
}

// MessageDTO is the wire shape of one message, live or paged.
type MessageDTO struct {
	ID         string `json:"id"`
	ChatID     string `json:"chatId"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName,omitempty"`
	FromMe     bool   `json:"fromMe"`
	Timestamp  int64  `json:"timestamp"`
	Type       string `json:"type"`
	Text       string `json:"text,omitempty"`
	Caption    string `json:"caption,omitempty"`
	MimeType   string `json:"mimeType,omitempty"`
	FileName   string `json:"fileName,omitempty"`
	VoiceNote  bool   `json:"voiceNote,omitempty"`
	Seconds    int    `json:"seconds,omitempty"`
	QuotedID   string `json:"quotedMessageId,omitempty"`
	TargetID   string `json:"targetMessageId,omitempty"`
	Emoji      string `json:"emoji,omitempty"`
	Status     string `json:"status,omitempty"`
}

// Decode converts a wire message to the timeline model. Types this client
// does not render decode to UnsupportedContent so the timeline still shows
// a placeholder in the right position.
func (d MessageDTO) Decode() model.Message {
	st := model.Status(d.Status)
	if st == "" {
		if d.FromMe {
			st = model.StatusSent
		} else {
			st = model.StatusReceived
		}
	}
	return model.Message{
		ID:         d.ID,
		ChatID:     d.ChatID,
		SenderID:   d.SenderID,
		SenderName: d.SenderName,
		FromMe:     d.FromMe,
		Timestamp:  d.Timestamp,
		Content:    d.content(),
		QuotedID:   d.QuotedID,
		Status:     st,
	}
}

func (d MessageDTO) content() model.Content {
	switch d.Type {
	case "text", "":
		return model.TextContent{Body: d.Text}
	case "image":
		return model.ImageContent{Caption: d.Caption, MimeType: d.MimeType}
	case "video":
		return model.VideoContent{Caption: d.Caption, MimeType: d.MimeType}
	case "audio":
		return model.AudioContent{MimeType: d.MimeType, Seconds: d.Seconds, VoiceNote: d.VoiceNote}
	case "document":
		return model.DocumentContent{FileName: d.FileName, Caption: d.Caption, MimeType: d.MimeType}
	case "sticker":
		return model.StickerContent{MimeType: d.MimeType}
	case "reaction":
		return model.ReactionContent{TargetID: d.TargetID, Emoji: d.Emoji}
	default:
		return model.UnsupportedContent{Reason: fmt.Sprintf("unsupported type %q", d.Type)}
	}
}
