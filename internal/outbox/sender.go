// Package outbox implements the optimistic send path: a pending timeline
// entry is inserted immediately, the backend call happens out-of-band, and
// failures mark the entry failed without removing it.
package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/wppview/internal/backend"
	"github.com/matheus3301/wppview/internal/bus"
	"github.com/matheus3301/wppview/internal/cache"
	"github.com/matheus3301/wppview/internal/model"
	"github.com/matheus3301/wppview/internal/timeline"
	"go.uber.org/zap"
)

// MessageSender is the slice of the backend surface the sender needs.
type MessageSender interface {
	SendMessage(ctx context.Context, chatID string, payload backend.SendPayload) (string, error)
}

// Sender inserts optimistic pending messages and issues backend sends.
type Sender struct {
	timeline  *timeline.Store
	backend   MessageSender
	sentMedia *cache.SentMedia
	bus       *bus.Bus
	logger    *zap.Logger

	mu       sync.Mutex
	payloads map[string]pendingSend // temp id -> original payload, kept for retry
	selfName string
}

type pendingSend struct {
	chatID  string
	payload backend.SendPayload
}

// NewSender creates an outbox sender.
func NewSender(tl *timeline.Store, be MessageSender, sm *cache.SentMedia, b *bus.Bus, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{
		timeline:  tl,
		backend:   be,
		sentMedia: sm,
		bus:       b,
		logger:    logger,
		payloads:  make(map[string]pendingSend),
	}
}

// SetSelfName sets the sender label stamped on optimistic entries.
func (s *Sender) SetSelfName(name string) {
	s.mu.Lock()
	s.selfName = name
	s.mu.Unlock()
}

// Send synthesizes a pending message for the payload, appends it to the
// chat's timeline and issues the backend send asynchronously. It returns
// the temporary id immediately; the UI never blocks on delivery.
func (s *Sender) Send(ctx context.Context, chatID string, payload backend.SendPayload) string {
	tempID := NewTempID()
	pending := s.buildPending(tempID, chatID, payload)

	s.mu.Lock()
	s.payloads[tempID] = pendingSend{chatID: chatID, payload: payload}
	s.mu.Unlock()

	s.timeline.AddPending(chatID, pending)
	go s.dispatch(ctx, chatID, tempID, payload)
	return tempID
}

// Retry re-issues the identical payload for a failed send. The entry goes
// back to pending so a later self-sent echo can reconcile it.
func (s *Sender) Retry(ctx context.Context, chatID, tempID string) error {
	s.mu.Lock()
	ps, ok := s.payloads[tempID]
	s.mu.Unlock()
	if !ok || ps.chatID != chatID {
		return fmt.Errorf("no retriable send %q for chat %q", tempID, chatID)
	}

	pending := s.buildPending(tempID, chatID, ps.payload)
	if !s.timeline.ReconcilePending(chatID, tempID, pending) {
		// Entry was marked failed; put it back to pending in place.
		s.timeline.AppendOrReplaceLive(chatID, pending)
	}
	go s.dispatch(ctx, chatID, tempID, ps.payload)
	return nil
}

func (s *Sender) dispatch(ctx context.Context, chatID, tempID string, payload backend.SendPayload) {
	confirmedID, err := s.backend.SendMessage(ctx, chatID, payload)
	if err != nil {
		s.logger.Error("send failed", zap.String("chat", chatID), zap.String("temp_id", tempID), zap.Error(err))
		s.timeline.MarkFailed(chatID, tempID)
		s.publish(bus.KindSendFailed, bus.SendResult{ChatID: chatID, TempID: tempID, Err: err.Error()})
		return
	}

	// The pending entry itself is reconciled by the sync engine when the
	// backend echoes the message. Here we only seed the sent-media cache so
	// a media bubble keeps rendering its local copy under the confirmed id.
	if payload.Base64Data != "" && s.sentMedia != nil {
		s.sentMedia.Put(confirmedID, payload.Base64Data)
	}

	s.mu.Lock()
	delete(s.payloads, tempID)
	s.mu.Unlock()

	s.logger.Info("send accepted", zap.String("chat", chatID), zap.String("temp_id", tempID), zap.String("msg_id", confirmedID))
	s.publish(bus.KindSendAck, bus.SendResult{ChatID: chatID, TempID: tempID, ConfirmedID: confirmedID})
}

func (s *Sender) buildPending(tempID, chatID string, payload backend.SendPayload) model.Message {
	s.mu.Lock()
	selfName := s.selfName
	s.mu.Unlock()

	return model.Message{
		ID:         tempID,
		ChatID:     chatID,
		SenderName: selfName,
		FromMe:     true,
		Timestamp:  time.Now().UnixMilli(),
		Content:    contentFor(payload),
		QuotedID:   payload.QuotedID,
		Status:     model.StatusPending,
	}
}

func (s *Sender) publish(kind string, payload bus.SendResult) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}

func contentFor(p backend.SendPayload) model.Content {
	switch p.Type {
	case "text", "":
		return model.TextContent{Body: p.Text}
	case "image":
		return model.ImageContent{Caption: p.Text, MimeType: p.MimeType, Data: p.Base64Data}
	case "video":
		return model.VideoContent{Caption: p.Text, MimeType: p.MimeType, Data: p.Base64Data}
	case "audio":
		return model.AudioContent{MimeType: p.MimeType, Data: p.Base64Data}
	case "document":
		return model.DocumentContent{FileName: p.FileName, Caption: p.Text, MimeType: p.MimeType, Data: p.Base64Data}
	default:
		return model.UnsupportedContent{Reason: "unknown send type " + p.Type}
	}
}

// NewTempID returns a client-assigned id for an optimistic send, unique
// within the chat until reconciled.
func NewTempID() string {
	return fmt.Sprintf("%s%d-%s", model.TempIDPrefix, time.Now().UnixMilli(), uuid.New().String()[:8])
}
