package directory

import (
	"testing"

	"github.com/matheus3301/wppview/internal/model"
)

func seeded() *Directory {
	d := New()
	d.ReplaceAll([]model.ChatSummary{
		{ID: "a@s", Name: "Alice", LastMessageAt: 3000},
		{ID: "b@s", Name: "Bob", LastMessageAt: 2000},
		{ID: "c@g", Name: "Crew", Kind: model.ChatGroup, LastMessageAt: 1000},
	})
	return d
}

func order(d *Directory) []string {
	chats := d.Chats()
	ids := make([]string, len(chats))
	for i, c := range chats {
		ids[i] = c.ID
	}
	return ids
}

func TestReplaceAll(t *testing.T) {
	d := seeded()
	if d.Len() != 3 {
		t.Fatalf("len = %d, want 3", d.Len())
	}

	d.ReplaceAll(nil)
	if d.Len() != 0 {
		t.Errorf("len after empty replace = %d, want 0", d.Len())
	}
}

func TestUpsertActivityMovesToTop(t *testing.T) {
	d := seeded()

	if refresh := d.UpsertActivity("b@s", "hey", 4000, ""); refresh {
		t.Fatal("refresh signalled for a known chat")
	}

	got := order(d)
	want := []string{"b@s", "a@s", "c@g"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}

	b, _ := d.Get("b@s")
	if b.Preview != "hey" || b.LastMessageAt != 4000 {
		t.Errorf("entry not updated: %+v", b)
	}
}

func TestUpsertActivityUnknownChatSignalsRefresh(t *testing.T) {
	d := seeded()
	if refresh := d.UpsertActivity("nobody@s", "hi", 1, ""); !refresh {
		t.Error("expected refresh signal for unknown chat")
	}
	if d.Len() != 3 {
		t.Errorf("unknown chat must not be synthesized, len = %d", d.Len())
	}
}

func TestUnreadCounting(t *testing.T) {
	d := seeded()

	d.UpsertActivity("a@s", "one", 4000, "")
	d.UpsertActivity("a@s", "two", 5000, "")
	a, _ := d.Get("a@s")
	if a.UnreadCount != 2 {
		t.Fatalf("unread = %d, want 2", a.UnreadCount)
	}

	// Selecting resets the counter atomically.
	d.Select("a@s")
	a, _ = d.Get("a@s")
	if a.UnreadCount != 0 {
		t.Errorf("unread after select = %d, want 0", a.UnreadCount)
	}

	// Activity on the selected chat does not count as unread.
	d.UpsertActivity("a@s", "three", 6000, "")
	a, _ = d.Get("a@s")
	if a.UnreadCount != 0 {
		t.Errorf("unread on selected chat = %d, want 0", a.UnreadCount)
	}
}

func TestUpdateFieldsDoesNotReorder(t *testing.T) {
	d := seeded()
	avatar := "/tmp/c.jpg"
	d.UpdateFields("c@g", Fields{AvatarPath: &avatar})

	got := order(d)
	if got[0] != "a@s" || got[2] != "c@g" {
		t.Errorf("order changed by UpdateFields: %v", got)
	}
	c, _ := d.Get("c@g")
	if c.AvatarPath != avatar {
		t.Errorf("avatar = %q, want %q", c.AvatarPath, avatar)
	}

	// Unknown id is a no-op, not a panic.
	d.UpdateFields("nobody@s", Fields{AvatarPath: &avatar})
}

func TestFilter(t *testing.T) {
	d := seeded()

	got := d.Filter("CR")
	if len(got) != 1 || got[0].ID != "c@g" {
		t.Fatalf("filter = %v, want [c@g]", got)
	}

	if n := len(d.Filter("")); n != 3 {
		t.Errorf("empty filter = %d entries, want 3", n)
	}

	// Filtering preserves relative order.
	d.UpsertActivity("b@s", "x", 9000, "")
	all := d.Filter("b")
	if len(all) != 1 || all[0].ID != "b@s" {
		t.Errorf("filter after reorder = %v", all)
	}
}
