package views

import (
	"fmt"
	"time"

	"github.com/rivo/tview"

	"github.com/matheus3301/wppview/internal/model"
)

// ChatList is the main chat directory view (K9s-inspired table).
type ChatList struct {
	*tview.Table
	chats      []model.ChatSummary
	selectedFn func() (int, int)
}

// NewChatList creates a new chat list table.
func NewChatList() *ChatList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true).SetTitle(" Chats ")

	cl := &ChatList{Table: table}
	cl.selectedFn = table.GetSelection
	return cl
}

// Update refreshes the chat list with a directory snapshot.
func (cl *ChatList) Update(chats []model.ChatSummary) {
	cl.chats = chats
	cl.Clear()

	cl.SetCell(0, 0, tview.NewTableCell(" Name").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	cl.SetCell(0, 1, tview.NewTableCell(" Last Message").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	cl.SetCell(0, 2, tview.NewTableCell(" Time").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))

	for i, chat := range chats {
		row := i + 1
		name := chat.Name
		if chat.Kind == model.ChatGroup {
			name = "# " + name
		}
		if chat.UnreadCount > 0 {
			name = fmt.Sprintf("* %s (%d)", name, chat.UnreadCount)
		}

		preview := chat.Preview
		if chat.LastSender != "" {
			preview = chat.LastSender + ": " + preview
		}

		cl.SetCell(row, 0, tview.NewTableCell(" "+sanitizeForTerminal(name)).SetMaxWidth(30).SetExpansion(1))
		cl.SetCell(row, 1, tview.NewTableCell(" "+sanitizeForTerminal(preview)).SetMaxWidth(40).SetExpansion(2))
		cl.SetCell(row, 2, tview.NewTableCell(" "+formatTimestamp(chat.LastMessageAt)).SetMaxWidth(12))
	}
}

// SelectedChat returns the id of the currently selected chat.
func (cl *ChatList) SelectedChat() string {
	row, _ := cl.selectedFn()
	idx := row - 1 // account for header
	if idx >= 0 && idx < len(cl.chats) {
		return cl.chats[idx].ID
	}
	return ""
}

func formatTimestamp(ms int64) string {
	if ms == 0 {
		return ""
	}
	t := time.UnixMilli(ms)
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}
