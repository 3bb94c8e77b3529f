package sync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/wppview/internal/backend"
	"github.com/matheus3301/wppview/internal/bus"
	"github.com/matheus3301/wppview/internal/directory"
	"github.com/matheus3301/wppview/internal/model"
	"github.com/matheus3301/wppview/internal/timeline"
)

type fakeLister struct {
	mu    sync.Mutex
	dtos  []backend.ChatDTO
	err   error
	calls int
}

func (f *fakeLister) FetchChatList(context.Context) ([]backend.ChatDTO, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.dtos, nil
}

func (f *fakeLister) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newEngine(lister *fakeLister) (*Engine, *directory.Directory, *timeline.Store, *bus.Bus) {
	b := bus.New()
	dir := directory.New()
	tl := timeline.NewStore(nil, b, nil)
	e := NewEngine(dir, tl, lister, b, nil, 200)
	return e, dir, tl, b
}

func liveMsg(chatID, id string, ts int64, fromMe bool, body string) model.Message {
	status := model.StatusReceived
	if fromMe {
		status = model.StatusSent
	}
	return model.Message{
		ID: id, ChatID: chatID, FromMe: fromMe, Timestamp: ts,
		SenderName: "Alice", Content: model.TextContent{Body: body}, Status: status,
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timeout: " + what)
}

func TestRefreshChatList(t *testing.T) {
	lister := &fakeLister{dtos: []backend.ChatDTO{
		{ID: "a@s", Name: "Alice", LastMessageAt: 2000},
		{ID: "b@g", Name: "Crew", IsGroup: true, LastMessageAt: 1000},
	}}
	e, dir, _, _ := newEngine(lister)

	if err := e.RefreshChatList(context.Background()); err != nil {
		t.Fatal(err)
	}

	chats := dir.Chats()
	if len(chats) != 2 || chats[0].ID != "a@s" || chats[1].Kind != model.ChatGroup {
		t.Errorf("chats = %+v", chats)
	}
}

func TestRefreshFailureLeavesDirectoryUntouched(t *testing.T) {
	lister := &fakeLister{dtos: []backend.ChatDTO{{ID: "a@s", Name: "Alice"}}}
	e, dir, _, _ := newEngine(lister)
	if err := e.RefreshChatList(context.Background()); err != nil {
		t.Fatal(err)
	}

	lister.mu.Lock()
	lister.err = errors.New("link down")
	lister.mu.Unlock()

	if err := e.RefreshChatList(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if dir.Len() != 1 {
		t.Errorf("directory changed on failed refresh: len = %d", dir.Len())
	}
}

func TestLiveMessageUpdatesTimelineAndDirectory(t *testing.T) {
	lister := &fakeLister{dtos: []backend.ChatDTO{
		{ID: "a@s", Name: "Alice"},
		{ID: "b@s", Name: "Bob"},
	}}
	e, dir, tl, b := newEngine(lister)
	if err := e.RefreshChatList(context.Background()); err != nil {
		t.Fatal(err)
	}

	e.Start(context.Background())
	defer e.Stop()

	b.Publish(bus.Event{
		Kind:      bus.KindNewMessage,
		Timestamp: time.Now(),
		Payload:   bus.NewMessage{ChatID: "b@s", Message: liveMsg("b@s", "m1", 5000, false, "hello")},
	})

	eventually(t, "timeline updated", func() bool { return len(tl.Messages("b@s")) == 1 })

	chats := dir.Chats()
	if chats[0].ID != "b@s" {
		t.Errorf("activity did not move chat to top: %v", chats[0].ID)
	}
	if chats[0].Preview != "hello" || chats[0].UnreadCount != 1 {
		t.Errorf("directory entry = %+v", chats[0])
	}
}

func TestSelfEchoReconcilesOldestPending(t *testing.T) {
	lister := &fakeLister{dtos: []backend.ChatDTO{{ID: "x@s", Name: "Xa"}}}
	e, _, tl, b := newEngine(lister)
	if err := e.RefreshChatList(context.Background()); err != nil {
		t.Fatal(err)
	}

	tl.AddPending("x@s", model.Message{
		ID: "temp-1-aa", ChatID: "x@s", FromMe: true, Timestamp: 1000,
		Content: model.TextContent{Body: "hi"},
	})

	e.Start(context.Background())
	defer e.Stop()

	b.Publish(bus.Event{
		Kind:      bus.KindNewMessage,
		Timestamp: time.Now(),
		Payload:   bus.NewMessage{ChatID: "x@s", Message: liveMsg("x@s", "srv-1", 1001, true, "hi")},
	})

	eventually(t, "pending reconciled", func() bool {
		msgs := tl.Messages("x@s")
		return len(msgs) == 1 && msgs[0].ID == "srv-1"
	})

	msgs := tl.Messages("x@s")
	if msgs[0].Status != model.StatusSent {
		t.Errorf("status = %q, want sent", msgs[0].Status)
	}
	if _, ok := tl.OldestPending("x@s"); ok {
		t.Error("pending entry survived the echo")
	}
}

func TestSelfMessageWithoutPendingIsAppended(t *testing.T) {
	// A self-sent message with no pending entries came from another linked
	// device and must appear as a normal live message.
	lister := &fakeLister{dtos: []backend.ChatDTO{{ID: "x@s", Name: "Xa"}}}
	e, _, tl, b := newEngine(lister)
	if err := e.RefreshChatList(context.Background()); err != nil {
		t.Fatal(err)
	}

	e.Start(context.Background())
	defer e.Stop()

	b.Publish(bus.Event{
		Kind:      bus.KindNewMessage,
		Timestamp: time.Now(),
		Payload:   bus.NewMessage{ChatID: "x@s", Message: liveMsg("x@s", "srv-7", 2000, true, "from my laptop")},
	})

	eventually(t, "message appended", func() bool { return len(tl.Messages("x@s")) == 1 })

	if msgs := tl.Messages("x@s"); msgs[0].ID != "srv-7" {
		t.Errorf("entry = %+v", msgs[0])
	}
}

func TestUnknownChatTriggersFullRefresh(t *testing.T) {
	lister := &fakeLister{dtos: []backend.ChatDTO{{ID: "a@s", Name: "Alice"}}}
	e, dir, _, b := newEngine(lister)
	if err := e.RefreshChatList(context.Background()); err != nil {
		t.Fatal(err)
	}
	baseline := lister.callCount()

	// The next refresh will include the new chat.
	lister.mu.Lock()
	lister.dtos = append(lister.dtos, backend.ChatDTO{ID: "new@s", Name: "Newcomer"})
	lister.mu.Unlock()

	e.Start(context.Background())
	defer e.Stop()

	b.Publish(bus.Event{
		Kind:      bus.KindNewMessage,
		Timestamp: time.Now(),
		Payload:   bus.NewMessage{ChatID: "new@s", Message: liveMsg("new@s", "m1", 3000, false, "hi")},
	})

	eventually(t, "full refresh", func() bool { return dir.Len() == 2 })
	if lister.callCount() != baseline+1 {
		t.Errorf("refresh calls = %d, want %d", lister.callCount(), baseline+1)
	}
}

func TestAvatarUpdatedPatchesWithoutReorder(t *testing.T) {
	lister := &fakeLister{dtos: []backend.ChatDTO{
		{ID: "a@s", Name: "Alice"},
		{ID: "b@s", Name: "Bob"},
	}}
	e, dir, _, b := newEngine(lister)
	if err := e.RefreshChatList(context.Background()); err != nil {
		t.Fatal(err)
	}

	lister.mu.Lock()
	lister.dtos[1].AvatarPath = "/tmp/bob.jpg"
	lister.mu.Unlock()

	e.Start(context.Background())
	defer e.Stop()

	b.Publish(bus.Event{
		Kind:      bus.KindAvatarUpdated,
		Timestamp: time.Now(),
		Payload:   bus.AvatarUpdated{ChatID: "b@s"},
	})

	eventually(t, "avatar patched", func() bool {
		c, _ := dir.Get("b@s")
		return c.AvatarPath == "/tmp/bob.jpg"
	})

	if chats := dir.Chats(); chats[0].ID != "a@s" {
		t.Errorf("avatar patch reordered directory: %v", chats[0].ID)
	}
}

func TestChatRefreshEvent(t *testing.T) {
	lister := &fakeLister{dtos: []backend.ChatDTO{{ID: "a@s", Name: "Alice"}}}
	e, dir, _, b := newEngine(lister)

	e.Start(context.Background())
	defer e.Stop()

	b.Publish(bus.Event{Kind: bus.KindChatRefresh, Timestamp: time.Now()})

	eventually(t, "directory loaded", func() bool { return dir.Len() == 1 })
}
