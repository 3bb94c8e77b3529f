// Package timeline maintains per-chat ordered message sequences with
// backward pagination, live updates, optimistic pending entries and
// bounded retention.
package timeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/matheus3301/wppview/internal/bus"
	"github.com/matheus3301/wppview/internal/model"
	"go.uber.org/zap"
)

// Fetcher is the slice of the backend surface the timeline needs.
type Fetcher interface {
	FetchMessagesPaged(ctx context.Context, chatID string, pageSize int, beforeUnixMS int64) ([]model.Message, error)
}

// Cursor is the per-chat pagination state.
type Cursor struct {
	HasMore      bool
	LoadingMore  bool
	OldestLoaded int64 // unix millis of the oldest retained message
}

type sequence struct {
	msgs     []model.Message
	cursor   Cursor
	browsing bool // user is scrolled into older history; trimming is gated off
}

// Store holds one ordered message sequence per chat. All mutation goes
// through its methods; concurrent readers get snapshots.
type Store struct {
	mu      sync.Mutex
	fetcher Fetcher
	bus     *bus.Bus
	logger  *zap.Logger
	chats   map[string]*sequence
}

// NewStore creates a timeline store backed by the given fetcher.
func NewStore(f Fetcher, b *bus.Bus, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		fetcher: f,
		bus:     b,
		logger:  logger,
		chats:   make(map[string]*sequence),
	}
}

// LoadInitialPage fetches the newest pageSize messages and replaces the
// chat's stored sequence. Destructive: any pending entries are discarded,
// which is acceptable only immediately after opening a chat. A fetch error
// leaves prior state untouched.
func (s *Store) LoadInitialPage(ctx context.Context, chatID string, pageSize int) error {
	page, err := s.fetcher.FetchMessagesPaged(ctx, chatID, pageSize, 0)
	if err != nil {
		s.logger.Warn("initial page load failed", zap.String("chat", chatID), zap.Error(err))
		return fmt.Errorf("load initial page: %w", err)
	}

	s.mu.Lock()
	seq := s.ensure(chatID)
	seq.msgs = append(seq.msgs[:0:0], page...)
	seq.cursor = Cursor{HasMore: len(page) >= pageSize}
	if len(page) > 0 {
		seq.cursor.OldestLoaded = page[0].Timestamp
	}
	seq.browsing = false
	s.mu.Unlock()

	s.notify(chatID)
	return nil
}

// LoadOlderPage fetches messages strictly older than the current oldest
// loaded timestamp and prepends them. Guarded by the per-chat in-flight
// flag: a second call while one is in flight is a no-op, as is a call when
// no older history may exist. Returns how many messages were prepended.
func (s *Store) LoadOlderPage(ctx context.Context, chatID string, pageSize int) (int, error) {
	s.mu.Lock()
	seq, ok := s.chats[chatID]
	if !ok || !seq.cursor.HasMore || seq.cursor.LoadingMore {
		s.mu.Unlock()
		return 0, nil
	}
	seq.cursor.LoadingMore = true
	before := seq.cursor.OldestLoaded
	s.mu.Unlock()

	page, err := s.fetcher.FetchMessagesPaged(ctx, chatID, pageSize, before)

	s.mu.Lock()
	seq.cursor.LoadingMore = false
	if err != nil {
		s.mu.Unlock()
		s.logger.Warn("older page load failed", zap.String("chat", chatID), zap.Error(err))
		return 0, fmt.Errorf("load older page: %w", err)
	}

	seq.cursor.HasMore = len(page) >= pageSize
	if len(page) > 0 {
		seq.cursor.OldestLoaded = page[0].Timestamp
		seq.msgs = append(append(make([]model.Message, 0, len(page)+len(seq.msgs)), page...), seq.msgs...)
	}
	s.mu.Unlock()

	if len(page) > 0 {
		s.notify(chatID)
	}
	return len(page), nil
}

// AppendOrReplaceLive applies a live message. A confirmed id already in the
// sequence is replaced in place, preserving its position (edits and status
// updates); anything else is appended at the tail. Live messages are
// assumed newer than all loaded history.
func (s *Store) AppendOrReplaceLive(chatID string, msg model.Message) {
	s.mu.Lock()
	seq := s.ensure(chatID)
	replaced := false
	for i := range seq.msgs {
		if seq.msgs[i].ID == msg.ID {
			seq.msgs[i] = msg
			replaced = true
			break
		}
	}
	if !replaced {
		seq.msgs = append(seq.msgs, msg)
		if len(seq.msgs) == 1 {
			seq.cursor.OldestLoaded = msg.Timestamp
		}
	}
	s.mu.Unlock()

	s.notify(chatID)
}

// AddPending appends an optimistic, client-only entry at the tail.
func (s *Store) AddPending(chatID string, msg model.Message) {
	msg.Status = model.StatusPending

	s.mu.Lock()
	seq := s.ensure(chatID)
	seq.msgs = append(seq.msgs, msg)
	s.mu.Unlock()

	s.notify(chatID)
}

// OldestPending returns the temp id of the chat's oldest still-pending
// entry. Failed sends no longer count as pending.
func (s *Store) OldestPending(chatID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq, ok := s.chats[chatID]
	if !ok {
		return "", false
	}
	for i := range seq.msgs {
		if seq.msgs[i].Status == model.StatusPending {
			return seq.msgs[i].ID, true
		}
	}
	return "", false
}

// ReconcilePending replaces the pending entry identified by tempID with its
// confirmed counterpart at the same position. Returns false when no such
// pending entry exists.
func (s *Store) ReconcilePending(chatID, tempID string, confirmed model.Message) bool {
	if confirmed.Status == "" {
		confirmed.Status = model.StatusSent
	}

	s.mu.Lock()
	seq, ok := s.chats[chatID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	matched := false
	for i := range seq.msgs {
		if seq.msgs[i].ID == tempID {
			seq.msgs[i] = confirmed
			matched = true
			break
		}
	}
	s.mu.Unlock()

	if matched {
		s.notify(chatID)
	}
	return matched
}

// MarkFailed tags a pending entry as failed. The entry is retained so the
// UI can surface a failed-send indicator; it is never silently removed.
func (s *Store) MarkFailed(chatID, tempID string) {
	s.mu.Lock()
	seq, ok := s.chats[chatID]
	if ok {
		for i := range seq.msgs {
			if seq.msgs[i].ID == tempID {
				seq.msgs[i].Status = model.StatusFailed
				break
			}
		}
	}
	s.mu.Unlock()

	if ok {
		s.notify(chatID)
	}
}

// Trim drops the oldest entries so at most keepCount remain. It is a no-op
// while the user is browsing older history, so an in-progress backward
// read is never disrupted. Trimmed history remains fetchable, so HasMore
// is raised again.
func (s *Store) Trim(chatID string, keepCount int) {
	s.mu.Lock()
	seq, ok := s.chats[chatID]
	if !ok || seq.browsing || keepCount <= 0 || len(seq.msgs) <= keepCount {
		s.mu.Unlock()
		return
	}
	seq.msgs = append(seq.msgs[:0:0], seq.msgs[len(seq.msgs)-keepCount:]...)
	seq.cursor.OldestLoaded = seq.msgs[0].Timestamp
	seq.cursor.HasMore = true
	s.mu.Unlock()

	s.notify(chatID)
}

// SetBrowsing records whether the viewport for a chat is scrolled into
// older history. Trimming is suppressed while it is.
func (s *Store) SetBrowsing(chatID string, browsing bool) {
	s.mu.Lock()
	if seq, ok := s.chats[chatID]; ok {
		seq.browsing = browsing
	}
	s.mu.Unlock()
}

// Messages returns a snapshot of the chat's sequence in timeline order.
func (s *Store) Messages(chatID string) []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq, ok := s.chats[chatID]
	if !ok {
		return nil
	}
	return append(seq.msgs[:0:0], seq.msgs...)
}

// Cursor returns the chat's pagination state.
func (s *Store) Cursor(chatID string) Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq, ok := s.chats[chatID]
	if !ok {
		return Cursor{}
	}
	return seq.cursor
}

func (s *Store) ensure(chatID string) *sequence {
	seq, ok := s.chats[chatID]
	if !ok {
		seq = &sequence{}
		s.chats[chatID] = seq
	}
	return seq
}

func (s *Store) notify(chatID string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(bus.Event{
		Kind:      bus.KindTimelineUpdated,
		Timestamp: time.Now(),
		Payload:   bus.TimelineUpdated{ChatID: chatID},
	})
}
