package outbox

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/wppview/internal/backend"
	"github.com/matheus3301/wppview/internal/bus"
	"github.com/matheus3301/wppview/internal/cache"
	"github.com/matheus3301/wppview/internal/model"
	"github.com/matheus3301/wppview/internal/timeline"
)

type fakeBackend struct {
	mu     sync.Mutex
	nextID string
	err    error
	calls  []backend.SendPayload
}

func (f *fakeBackend) SendMessage(_ context.Context, _ string, p backend.SendPayload) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, p)
	if f.err != nil {
		return "", f.err
	}
	return f.nextID, nil
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newSender(be *fakeBackend) (*Sender, *timeline.Store, *cache.SentMedia, *bus.Bus) {
	b := bus.New()
	tl := timeline.NewStore(nil, b, nil)
	sm := cache.NewSentMedia(time.Minute)
	return NewSender(tl, be, sm, b, nil), tl, sm, b
}

func waitFor(t *testing.T, ch <-chan bus.Event, kind string) bus.Event {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case evt := <-ch:
			if evt.Kind == kind {
				return evt
			}
		case <-deadline:
			t.Fatalf("timeout waiting for %s", kind)
		}
	}
}

func TestSendCreatesPendingEntry(t *testing.T) {
	be := &fakeBackend{nextID: "srv-1"}
	s, tl, _, b := newSender(be)

	ch, unsub := b.Subscribe("message.", 16)
	defer unsub()

	tempID := s.Send(context.Background(), "x@s", backend.SendPayload{Type: "text", Text: "hi"})

	if !strings.HasPrefix(tempID, model.TempIDPrefix) {
		t.Fatalf("temp id = %q, want %q prefix", tempID, model.TempIDPrefix)
	}

	msgs := tl.Messages("x@s")
	if len(msgs) != 1 {
		t.Fatalf("got %d entries, want 1", len(msgs))
	}
	m := msgs[0]
	if m.ID != tempID || m.Status != model.StatusPending || !m.FromMe {
		t.Errorf("pending entry = %+v", m)
	}
	if body := m.Content.(model.TextContent).Body; body != "hi" {
		t.Errorf("body = %q, want hi", body)
	}

	evt := waitFor(t, ch, bus.KindSendAck)
	res := evt.Payload.(bus.SendResult)
	if res.TempID != tempID || res.ConfirmedID != "srv-1" {
		t.Errorf("ack = %+v", res)
	}

	// The pending entry stays pending until the backend echo reconciles it.
	msgs = tl.Messages("x@s")
	if len(msgs) != 1 || msgs[0].Status != model.StatusPending {
		t.Errorf("entry after ack = %+v", msgs)
	}
}

func TestSendFailureMarksFailed(t *testing.T) {
	be := &fakeBackend{err: errors.New("backend down")}
	s, tl, _, b := newSender(be)

	ch, unsub := b.Subscribe("message.", 16)
	defer unsub()

	tempID := s.Send(context.Background(), "x@s", backend.SendPayload{Type: "text", Text: "hi"})

	evt := waitFor(t, ch, bus.KindSendFailed)
	res := evt.Payload.(bus.SendResult)
	if res.TempID != tempID || res.Err == "" {
		t.Errorf("failure payload = %+v", res)
	}

	msgs := tl.Messages("x@s")
	if len(msgs) != 1 || msgs[0].Status != model.StatusFailed {
		t.Fatalf("entry = %+v, want retained failed entry", msgs)
	}
}

func TestRetryReissuesSamePayload(t *testing.T) {
	be := &fakeBackend{err: errors.New("backend down")}
	s, tl, _, b := newSender(be)

	ch, unsub := b.Subscribe("message.", 16)
	defer unsub()

	payload := backend.SendPayload{Type: "text", Text: "try again"}
	tempID := s.Send(context.Background(), "x@s", payload)
	waitFor(t, ch, bus.KindSendFailed)

	be.mu.Lock()
	be.err = nil
	be.nextID = "srv-2"
	be.mu.Unlock()

	if err := s.Retry(context.Background(), "x@s", tempID); err != nil {
		t.Fatal(err)
	}
	waitFor(t, ch, bus.KindSendAck)

	be.mu.Lock()
	defer be.mu.Unlock()
	if len(be.calls) != 2 {
		t.Fatalf("backend calls = %d, want 2", len(be.calls))
	}
	if be.calls[1] != payload {
		t.Errorf("retry payload = %+v, want %+v", be.calls[1], payload)
	}

	// Entry went back to pending so the echo can reconcile it.
	msgs := tl.Messages("x@s")
	if len(msgs) != 1 || msgs[0].Status != model.StatusPending {
		t.Errorf("entry after retry = %+v", msgs)
	}
}

func TestRetryUnknownTempID(t *testing.T) {
	s, _, _, _ := newSender(&fakeBackend{})
	if err := s.Retry(context.Background(), "x@s", "temp-nope"); err == nil {
		t.Error("expected error for unknown temp id")
	}
}

func TestSendSeedsSentMediaCache(t *testing.T) {
	be := &fakeBackend{nextID: "srv-media"}
	s, _, sm, b := newSender(be)

	ch, unsub := b.Subscribe("message.", 16)
	defer unsub()

	s.Send(context.Background(), "x@s", backend.SendPayload{
		Type: "image", Text: "look", Base64Data: "aGVsbG8=", MimeType: "image/png",
	})
	waitFor(t, ch, bus.KindSendAck)

	data, ok := sm.Get("srv-media")
	if !ok || data != "aGVsbG8=" {
		t.Errorf("sent media cache = %q,%v", data, ok)
	}
}

func TestNewTempIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewTempID()
		if seen[id] {
			t.Fatalf("duplicate temp id %q", id)
		}
		seen[id] = true
	}
}
