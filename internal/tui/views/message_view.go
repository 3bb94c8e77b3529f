package views

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"

	"github.com/matheus3301/wppview/internal/model"
)

// MessageView displays the loaded timeline slice for a single chat.
type MessageView struct {
	*tview.TextView
	chatName  string
	lineCount int
}

// NewMessageView creates a new message view.
func NewMessageView() *MessageView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true).SetTitle(" Messages ")

	return &MessageView{TextView: tv}
}

// SetChatName updates the title with the chat name.
func (mv *MessageView) SetChatName(name string) {
	mv.chatName = name
	mv.SetTitle(fmt.Sprintf(" %s ", sanitizeForTerminal(name)))
}

// LineCount returns the number of text lines written by the last Update.
// Word wrap can only increase the rendered height, so this is a lower
// bound; it is stable across renders of the same slice, which is what the
// prepend anchoring math needs.
func (mv *MessageView) LineCount() int {
	return mv.lineCount
}

// Update re-renders the view from a timeline snapshot, oldest first.
func (mv *MessageView) Update(msgs []model.Message) {
	mv.Clear()
	mv.lineCount = 0

	var b strings.Builder
	for i := range msgs {
		mv.lineCount += writeMessage(&b, msgs, i)
	}
	_, _ = fmt.Fprint(mv, b.String())
}

// writeMessage renders one message block and returns its line count.
func writeMessage(b *strings.Builder, msgs []model.Message, i int) int {
	m := msgs[i]
	lines := 3 // header, body, blank

	sender := m.SenderName
	if sender == "" {
		sender = m.SenderID
	}
	if m.FromMe {
		sender = "You"
	}

	marker := ""
	switch m.Status {
	case model.StatusPending:
		marker = " [::d]…[-:-:-]"
	case model.StatusFailed:
		marker = " [red]✗ failed — press r to retry[-]"
	}

	fmt.Fprintf(b, "[::b]%s[-:-:-] [::d]%s[-:-:-]%s\n",
		sanitizeForTerminal(sender), formatTimestamp(m.Timestamp), marker)

	if m.QuotedID != "" {
		fmt.Fprintf(b, "  [::d]┃ %s[-:-:-]\n", sanitizeForTerminal(quotedSnippet(msgs, m.QuotedID)))
		lines++
	}

	fmt.Fprintf(b, "%s\n\n", sanitizeForTerminal(bodyText(m)))
	return lines
}

// quotedSnippet resolves a quoted message id against the loaded slice. The
// quoted message may have been trimmed or never loaded, in which case a
// generic label is all we can show.
func quotedSnippet(msgs []model.Message, quotedID string) string {
	for i := range msgs {
		if msgs[i].ID == quotedID {
			snippet := model.Preview(msgs[i].Content)
			if len(snippet) > 60 {
				snippet = snippet[:60] + "…"
			}
			return snippet
		}
	}
	return "(quoted message)"
}

func bodyText(m model.Message) string {
	if t, ok := m.Content.(model.TextContent); ok {
		return t.Body
	}
	return model.Preview(m.Content)
}
