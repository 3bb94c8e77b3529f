// Package directory maintains the ordered, searchable chat registry.
package directory

import (
	"strings"
	"sync"

	"github.com/matheus3301/wppview/internal/model"
)

// Fields is a partial patch for a chat entry. Nil pointers leave the
// corresponding field untouched. Patching never reorders the list.
type Fields struct {
	Name       *string
	Preview    *string
	AvatarPath *string
}

// Directory is the authoritative ordered registry of conversations.
// The id map and the order list are kept separately so single-entry
// updates stay O(1) while rendering order remains explicit.
type Directory struct {
	mu       sync.RWMutex
	byID     map[string]*model.ChatSummary
	order    []string
	selected string
}

// New creates an empty directory.
func New() *Directory {
	return &Directory{
		byID: make(map[string]*model.ChatSummary),
	}
}

// ReplaceAll rebuilds the registry from a bulk snapshot. Entries keep the
// snapshot's order. Empty input yields an empty directory.
func (d *Directory) ReplaceAll(chats []model.ChatSummary) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.byID = make(map[string]*model.ChatSummary, len(chats))
	d.order = d.order[:0]
	for i := range chats {
		c := chats[i]
		if _, dup := d.byID[c.ID]; dup {
			continue
		}
		d.byID[c.ID] = &c
		d.order = append(d.order, c.ID)
	}
}

// UpsertActivity records new activity on a chat: preview, timestamp and
// sender label are updated and the chat moves to the front of the order
// list. Activity on a non-selected chat bumps its unread counter.
//
// Returns true when the chat is unknown, signalling that the caller needs a
// full refresh — the directory cannot synthesize an entry without name and
// avatar data it does not have.
func (d *Directory) UpsertActivity(chatID, preview string, timestamp int64, senderLabel string) (refreshNeeded bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.byID[chatID]
	if !ok {
		return true
	}

	c.Preview = preview
	c.LastMessageAt = timestamp
	c.LastSender = senderLabel
	if chatID != d.selected {
		c.UnreadCount++
	}
	d.moveToFront(chatID)
	return false
}

// UpdateFields patches a subset of fields without reordering. Unknown ids
// are ignored.
func (d *Directory) UpdateFields(chatID string, f Fields) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.byID[chatID]
	if !ok {
		return
	}
	if f.Name != nil {
		c.Name = *f.Name
	}
	if f.Preview != nil {
		c.Preview = *f.Preview
	}
	if f.AvatarPath != nil {
		c.AvatarPath = *f.AvatarPath
	}
}

// Select marks a chat as open and zeroes its unread counter in the same
// critical section. Selecting an unknown id only records the selection.
func (d *Directory) Select(chatID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.selected = chatID
	if c, ok := d.byID[chatID]; ok {
		c.UnreadCount = 0
	}
}

// ClearSelection closes the currently open chat.
func (d *Directory) ClearSelection() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.selected = ""
}

// Selected returns the currently open chat id, or "".
func (d *Directory) Selected() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.selected
}

// Get returns a copy of one entry.
func (d *Directory) Get(chatID string) (model.ChatSummary, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	c, ok := d.byID[chatID]
	if !ok {
		return model.ChatSummary{}, false
	}
	return *c, true
}

// Chats returns a snapshot of all entries in display order.
func (d *Directory) Chats() []model.ChatSummary {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snapshot("")
}

// Filter returns the ordered subsequence of entries whose display name
// contains term, case-insensitively. An empty term returns everything.
func (d *Directory) Filter(term string) []model.ChatSummary {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snapshot(strings.ToLower(term))
}

// Len returns the number of registered chats.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.order)
}

func (d *Directory) snapshot(lowerTerm string) []model.ChatSummary {
	out := make([]model.ChatSummary, 0, len(d.order))
	for _, id := range d.order {
		c, ok := d.byID[id]
		if !ok {
			continue
		}
		if lowerTerm != "" && !strings.Contains(strings.ToLower(c.Name), lowerTerm) {
			continue
		}
		out = append(out, *c)
	}
	return out
}

func (d *Directory) moveToFront(chatID string) {
	for i, id := range d.order {
		if id == chatID {
			copy(d.order[1:i+1], d.order[:i])
			d.order[0] = chatID
			return
		}
	}
	d.order = append([]string{chatID}, d.order...)
}
