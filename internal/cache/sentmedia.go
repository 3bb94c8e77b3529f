package cache

import (
	"sync"
	"time"
)

// SentMedia is a short-lived in-memory cache of locally-held media for
// just-sent messages, keyed by confirmed message id. It bridges the gap
// between send confirmation and the backend copy becoming downloadable, so
// a media bubble keeps rendering the local preview without flicker.
type SentMedia struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]sentEntry
}

type sentEntry struct {
	data    string // base64 payload as handed to SendMessage
	expires time.Time
}

// NewSentMedia creates a cache whose entries expire after ttl.
func NewSentMedia(ttl time.Duration) *SentMedia {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SentMedia{
		ttl:     ttl,
		entries: make(map[string]sentEntry),
	}
}

// Put records the local payload under the confirmed message id.
func (c *SentMedia) Put(msgID, base64Data string) {
	now := time.Now()
	c.mu.Lock()
	c.sweep(now)
	c.entries[msgID] = sentEntry{data: base64Data, expires: now.Add(c.ttl)}
	c.mu.Unlock()
}

// Get returns the cached payload for a message id, if still fresh.
func (c *SentMedia) Get(msgID string) (string, bool) {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[msgID]
	if !ok || now.After(e.expires) {
		delete(c.entries, msgID)
		return "", false
	}
	return e.data, true
}

// Len returns the number of live entries.
func (c *SentMedia) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweep(time.Now())
	return len(c.entries)
}

// sweep removes expired entries. Caller holds the lock.
func (c *SentMedia) sweep(now time.Time) {
	for id, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, id)
		}
	}
}
