// Package sync translates backend-pushed events into directory and
// timeline mutations. It is the single subscription point for "wa.*"
// events; same-kind events are applied in arrival order.
package sync

import (
	"context"
	"time"

	"github.com/matheus3301/wppview/internal/backend"
	"github.com/matheus3301/wppview/internal/bus"
	"github.com/matheus3301/wppview/internal/directory"
	"github.com/matheus3301/wppview/internal/model"
	"github.com/matheus3301/wppview/internal/timeline"
	"go.uber.org/zap"
)

// ChatLister is the slice of the backend surface the engine needs for
// directory refreshes.
type ChatLister interface {
	FetchChatList(ctx context.Context) ([]backend.ChatDTO, error)
}

// Engine fans backend events out to the chat directory and the message
// timelines, reconciling optimistic sends along the way.
type Engine struct {
	dir         *directory.Directory
	timeline    *timeline.Store
	lister      ChatLister
	bus         *bus.Bus
	logger      *zap.Logger
	retainLimit int
	cancel      context.CancelFunc
}

// NewEngine creates a sync engine. retainLimit caps how many messages a
// non-open chat's timeline keeps after live appends.
func NewEngine(dir *directory.Directory, tl *timeline.Store, lister ChatLister, b *bus.Bus, logger *zap.Logger, retainLimit int) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retainLimit <= 0 {
		retainLimit = 200
	}
	return &Engine{
		dir:         dir,
		timeline:    tl,
		lister:      lister,
		bus:         b,
		logger:      logger,
		retainLimit: retainLimit,
	}
}

// Start subscribes to inbound backend events on the bus. The subscription
// is released when Stop is called or ctx is cancelled.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	ch, unsub := e.bus.Subscribe("wa.", 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				e.handleEvent(ctx, evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

// RefreshChatList fetches the full directory snapshot and replaces the
// registry. A fetch failure leaves the current directory untouched.
func (e *Engine) RefreshChatList(ctx context.Context) error {
	dtos, err := e.lister.FetchChatList(ctx)
	if err != nil {
		e.logger.Warn("chat list refresh failed", zap.Error(err))
		return err
	}

	chats := make([]model.ChatSummary, 0, len(dtos))
	for _, d := range dtos {
		chats = append(chats, d.Summary())
	}
	e.dir.ReplaceAll(chats)
	e.notifyDirectory()
	e.logger.Info("chat list refreshed", zap.Int("chats", len(chats)))
	return nil
}

func (e *Engine) handleEvent(ctx context.Context, evt bus.Event) {
	switch evt.Kind {
	case bus.KindNewMessage:
		nm, ok := evt.Payload.(bus.NewMessage)
		if !ok {
			return
		}
		e.ingestMessage(ctx, nm.ChatID, nm.Message)
	case bus.KindAvatarUpdated:
		au, ok := evt.Payload.(bus.AvatarUpdated)
		if !ok {
			return
		}
		e.refreshAvatar(ctx, au.ChatID)
	case bus.KindChatRefresh:
		_ = e.RefreshChatList(ctx)
	}
}

// ingestMessage applies one live message. A self-sent echo for a chat with
// pending entries reconciles the oldest pending entry (FIFO — no stronger
// correlation exists before confirmation); everything else is a genuine
// live update, possibly from another linked device.
func (e *Engine) ingestMessage(ctx context.Context, chatID string, msg model.Message) {
	if msg.FromMe {
		if tempID, ok := e.timeline.OldestPending(chatID); ok {
			confirmed := msg
			confirmed.Status = model.StatusSent
			if e.timeline.ReconcilePending(chatID, tempID, confirmed) {
				e.logger.Debug("pending send reconciled",
					zap.String("chat", chatID),
					zap.String("temp_id", tempID),
					zap.String("msg_id", msg.ID))
				e.touchDirectory(ctx, chatID, msg)
				return
			}
		}
	}

	e.timeline.AppendOrReplaceLive(chatID, msg)
	if chatID != e.dir.Selected() {
		e.timeline.Trim(chatID, e.retainLimit)
	}
	e.touchDirectory(ctx, chatID, msg)
}

func (e *Engine) touchDirectory(ctx context.Context, chatID string, msg model.Message) {
	senderLabel := msg.SenderName
	if msg.FromMe {
		senderLabel = "You"
	}

	if refresh := e.dir.UpsertActivity(chatID, model.Preview(msg.Content), msg.Timestamp, senderLabel); refresh {
		// Unknown chat: the directory cannot synthesize an entry, fetch a
		// full snapshot instead.
		_ = e.RefreshChatList(ctx)
		return
	}
	e.notifyDirectory()
}

// refreshAvatar patches a single chat's avatar without reordering the
// directory.
func (e *Engine) refreshAvatar(ctx context.Context, chatID string) {
	dtos, err := e.lister.FetchChatList(ctx)
	if err != nil {
		e.logger.Warn("avatar refresh failed", zap.String("chat", chatID), zap.Error(err))
		return
	}
	for _, d := range dtos {
		if d.ID != chatID {
			continue
		}
		avatar := d.AvatarPath
		name := d.Name
		e.dir.UpdateFields(chatID, directory.Fields{Name: &name, AvatarPath: &avatar})
		e.notifyDirectory()
		return
	}
}

func (e *Engine) notifyDirectory() {
	if e.bus == nil {
		return
	}
	e.bus.Publish(bus.Event{Kind: bus.KindDirectoryUpdated, Timestamp: time.Now()})
}
