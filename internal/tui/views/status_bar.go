package views

import (
	"fmt"
	"time"

	"github.com/rivo/tview"
)

// StatusBar displays session name, backend link state and flash messages.
type StatusBar struct {
	*tview.TextView
	session string
	link    string
	flash   string
}

// NewStatusBar creates a new status bar.
func NewStatusBar() *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{TextView: tv}
}

// SetSession updates the session name display.
func (sb *StatusBar) SetSession(name string) {
	sb.session = name
	sb.render()
}

// SetLinkState updates the backend link state display.
func (sb *StatusBar) SetLinkState(state string) {
	sb.link = state
	sb.render()
}

// SetFlash sets a temporary message.
func (sb *StatusBar) SetFlash(msg string) {
	sb.flash = msg
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()

	linkColor := "green"
	switch sb.link {
	case "READY":
		linkColor = "green"
	case "DEGRADED", "RECONNECTING", "AUTH_REQUIRED":
		linkColor = "yellow"
	case "ERROR":
		linkColor = "red"
	default:
		linkColor = "gray"
	}

	clock := time.Now().Format("15:04")

	line := fmt.Sprintf(" [::b]%s[-:-:-] | [%s]%s[-] | %s", sb.session, linkColor, sb.link, clock)
	if sb.flash != "" {
		line += fmt.Sprintf(" | [yellow]%s[-]", sb.flash)
	}

	_, _ = fmt.Fprint(sb, line)
}
