// Package tui is the terminal shell over the sync core. It owns no state
// of its own: every keypress maps to a core operation, and every render is
// driven by a bus notification.
package tui

import (
	"context"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"github.com/matheus3301/wppview/internal/backend"
	"github.com/matheus3301/wppview/internal/bus"
	"github.com/matheus3301/wppview/internal/cache"
	"github.com/matheus3301/wppview/internal/directory"
	"github.com/matheus3301/wppview/internal/model"
	"github.com/matheus3301/wppview/internal/outbox"
	"github.com/matheus3301/wppview/internal/status"
	"github.com/matheus3301/wppview/internal/timeline"
	"github.com/matheus3301/wppview/internal/tui/keys"
	"github.com/matheus3301/wppview/internal/tui/views"
	"github.com/matheus3301/wppview/internal/viewport"
)

// scrollSlack tolerates partial rows when deciding top/bottom position.
const scrollSlack = 2

// Deps carries everything the shell renders and drives.
type Deps struct {
	Directory *directory.Directory
	Timeline  *timeline.Store
	Sender    *outbox.Sender
	Resolver  *cache.Resolver
	Machine   *status.Machine
	Bus       *bus.Bus
	Logger    *zap.Logger

	SessionName string
	PageSize    int
	RetainLimit int
}

// App is the main TUI application shell.
type App struct {
	deps Deps

	app       *tview.Application
	pages     *tview.Pages
	registry  *keys.Registry
	statusBar *views.StatusBar
	chatList  *views.ChatList
	filter    *tview.InputField
	msgView   *views.MessageView
	composer  *views.Composer
	flash     *views.Flash

	ctx    context.Context
	cancel context.CancelFunc

	// oldestID tracks the first loaded message of the open chat so a
	// timeline update can be classified as prepend vs append.
	oldestID string
}

// NewApp creates the TUI application.
func NewApp(deps Deps) *App {
	ctx, cancel := context.WithCancel(context.Background())
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	a := &App{
		deps:      deps,
		app:       tview.NewApplication(),
		pages:     tview.NewPages(),
		registry:  keys.NewRegistry(),
		statusBar: views.NewStatusBar(),
		chatList:  views.NewChatList(),
		msgView:   views.NewMessageView(),
		composer:  views.NewComposer(),
		flash:     &views.Flash{},
		ctx:       ctx,
		cancel:    cancel,
	}

	a.filter = tview.NewInputField().SetLabel(" / ").SetFieldWidth(0)

	a.statusBar.SetSession(deps.SessionName)
	a.statusBar.SetLinkState(string(deps.Machine.Current()))
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal("quit", &keys.Action{
		Rune: 'q', Key: tcell.KeyRune,
		Description: "q:quit", Visible: true,
		Handler: func() { a.app.Stop() },
	})
	a.registry.AddView("chats", "filter", &keys.Action{
		Rune: '/', Key: tcell.KeyRune,
		Description: "/:filter", Visible: true,
		Handler: func() { a.app.SetFocus(a.filter) },
	})
	a.registry.AddView("chat", "retry", &keys.Action{
		Rune: 'r', Key: tcell.KeyRune,
		Description: "r:retry", Visible: true,
		Handler: func() { a.retryLastFailed() },
	})
	a.registry.AddView("chat", "media", &keys.Action{
		Rune: 'o', Key: tcell.KeyRune,
		Description: "o:media", Visible: true,
		Handler: func() { a.openLastMedia() },
	})
	a.registry.AddView("chat", "bottom", &keys.Action{
		Rune: 'G', Key: tcell.KeyRune,
		Description: "G:newest", Visible: true,
		Handler: func() { a.jumpToNewest() },
	})
}

func (a *App) setupCallbacks() {
	a.chatList.SetSelectedFunc(func(row, col int) {
		if id := a.chatList.SelectedChat(); id != "" {
			a.openChat(id)
		}
	})

	a.filter.SetChangedFunc(func(term string) {
		a.chatList.Update(a.deps.Directory.Filter(term))
	})
	a.filter.SetDoneFunc(func(key tcell.Key) {
		a.app.SetFocus(a.chatList)
	})

	a.composer.SetOnSend(func(text string) {
		chatID := a.deps.Directory.Selected()
		if chatID == "" {
			return
		}
		a.deps.Sender.Send(a.ctx, chatID, backend.SendPayload{Type: "text", Text: text})
	})
}

func (a *App) setupLayout() {
	chatsFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.filter, 1, 0, false).
		AddItem(a.chatList, 0, 1, true)

	chatFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.msgView, 0, 1, false).
		AddItem(a.composer, 1, 0, false)

	a.pages.AddPage("chats", chatsFlex, true, true)
	a.pages.AddPage("chat", chatFlex, true, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(root, true)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		currentPage, _ := a.pages.GetFrontPage()

		if event.Key() == tcell.KeyEscape {
			switch currentPage {
			case "chat":
				a.closeChat()
				return nil
			case "chats":
				if a.app.GetFocus() == a.filter {
					a.filter.SetText("")
					a.chatList.Update(a.deps.Directory.Chats())
					a.app.SetFocus(a.chatList)
					return nil
				}
			}
		}

		// Let text input widgets handle all keys normally.
		focused := a.app.GetFocus()
		if _, ok := focused.(*tview.InputField); ok {
			return event
		}

		// 'i' focuses the composer (only when not already in an input field).
		if currentPage == "chat" && event.Key() == tcell.KeyRune && event.Rune() == 'i' {
			a.app.SetFocus(a.composer.InputField)
			return nil
		}

		if a.registry.HandleEvent(currentPage, event) {
			return nil
		}

		if currentPage == "chat" {
			a.afterScrollKey(event)
		}
		return event
	})
}

// afterScrollKey re-evaluates the viewport position once the scroll key has
// been delivered, flips the browsing flag and triggers backward pagination
// when the user hits the top of loaded history.
func (a *App) afterScrollKey(event *tcell.EventKey) {
	switch event.Key() {
	case tcell.KeyUp, tcell.KeyPgUp, tcell.KeyDown, tcell.KeyPgDn, tcell.KeyHome, tcell.KeyEnd:
	case tcell.KeyRune:
		switch event.Rune() {
		case 'k', 'j', 'g':
		default:
			return
		}
	default:
		return
	}

	chatID := a.deps.Directory.Selected()
	if chatID == "" {
		return
	}

	// Runs after tview applied the scroll, on the next queued update.
	go a.app.QueueUpdateDraw(func() {
		offset, _ := a.msgView.GetScrollOffset()
		_, _, _, height := a.msgView.GetInnerRect()

		atBottom := viewport.AtBottom(offset, height, a.msgView.LineCount(), scrollSlack)
		a.deps.Timeline.SetBrowsing(chatID, !atBottom)
		if atBottom {
			a.deps.Timeline.Trim(chatID, a.deps.RetainLimit)
		}

		if viewport.AtTop(offset, scrollSlack) && a.deps.Timeline.Cursor(chatID).HasMore {
			go func() {
				if _, err := a.deps.Timeline.LoadOlderPage(a.ctx, chatID, a.deps.PageSize); err != nil {
					a.flash.Set("History load failed: "+err.Error(), 5*time.Second)
				}
			}()
		}
	})
}

func (a *App) openChat(chatID string) {
	a.deps.Directory.Select(chatID)

	go func() {
		if err := a.deps.Timeline.LoadInitialPage(a.ctx, chatID, a.deps.PageSize); err != nil {
			a.flash.Set("Load failed: "+err.Error(), 5*time.Second)
			a.deps.Directory.ClearSelection()
			return
		}
		name := chatID
		if c, ok := a.deps.Directory.Get(chatID); ok && c.Name != "" {
			name = c.Name
		}
		a.app.QueueUpdateDraw(func() {
			a.msgView.SetChatName(name)
			a.renderTimeline(chatID, true)
			a.pages.SwitchToPage("chat")
			a.app.SetFocus(a.msgView)
		})
	}()
}

func (a *App) closeChat() {
	chatID := a.deps.Directory.Selected()
	if chatID != "" {
		a.deps.Timeline.SetBrowsing(chatID, false)
		a.deps.Timeline.Trim(chatID, a.deps.RetainLimit)
	}
	a.deps.Directory.ClearSelection()
	a.oldestID = ""
	a.pages.SwitchToPage("chats")
	a.chatList.Update(a.deps.Directory.Filter(a.filter.GetText()))
	a.app.SetFocus(a.chatList)
}

func (a *App) jumpToNewest() {
	chatID := a.deps.Directory.Selected()
	if chatID == "" {
		return
	}
	a.msgView.ScrollToEnd()
	a.deps.Timeline.SetBrowsing(chatID, false)
	a.deps.Timeline.Trim(chatID, a.deps.RetainLimit)
}

// retryLastFailed re-issues the most recent failed send in the open chat.
func (a *App) retryLastFailed() {
	chatID := a.deps.Directory.Selected()
	if chatID == "" {
		return
	}
	msgs := a.deps.Timeline.Messages(chatID)
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Status == model.StatusFailed {
			if err := a.deps.Sender.Retry(a.ctx, chatID, msgs[i].ID); err != nil {
				a.flash.Set("Retry failed: "+err.Error(), 5*time.Second)
			}
			return
		}
	}
}

// openLastMedia resolves the newest media message in the open chat to a
// local file and surfaces its path, so the user can open it externally.
func (a *App) openLastMedia() {
	chatID := a.deps.Directory.Selected()
	if chatID == "" || a.deps.Resolver == nil {
		return
	}
	msgs := a.deps.Timeline.Messages(chatID)
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		mime, ok := mediaMime(m.Content)
		if !ok || m.Pending() {
			continue
		}
		go func() {
			ctx, cancel := context.WithTimeout(a.ctx, 60*time.Second)
			defer cancel()
			path, err := a.deps.Resolver.Resolve(ctx, chatID, m.ID, mime)
			if err != nil {
				a.flash.Set("Media fetch failed: "+err.Error(), 5*time.Second)
				return
			}
			a.flash.Set("Media saved: "+path, 10*time.Second)
		}()
		return
	}
	a.flash.Set("No media in loaded history", 3*time.Second)
}

func mediaMime(c model.Content) (string, bool) {
	switch v := c.(type) {
	case model.ImageContent:
		return v.MimeType, true
	case model.VideoContent:
		return v.MimeType, true
	case model.AudioContent:
		return v.MimeType, true
	case model.DocumentContent:
		return v.MimeType, true
	case model.StickerContent:
		return v.MimeType, true
	default:
		return "", false
	}
}

// renderTimeline re-renders the open chat. On a prepend the previous scroll
// anchor is preserved; otherwise the view sticks to the bottom unless the
// user is browsing history.
func (a *App) renderTimeline(chatID string, forceBottom bool) {
	msgs := a.deps.Timeline.Messages(chatID)

	newOldest := ""
	if len(msgs) > 0 {
		newOldest = msgs[0].ID
	}
	prepended := a.oldestID != "" && newOldest != "" && newOldest != a.oldestID

	oldOffset, _ := a.msgView.GetScrollOffset()
	oldLines := a.msgView.LineCount()
	_, _, _, height := a.msgView.GetInnerRect()
	wasAtBottom := viewport.AtBottom(oldOffset, height, oldLines, scrollSlack)

	a.msgView.Update(msgs)
	a.oldestID = newOldest

	switch {
	case forceBottom || (wasAtBottom && !prepended):
		a.msgView.ScrollToEnd()
	case prepended:
		a.msgView.ScrollTo(viewport.ComputeScrollAdjustment(oldLines, a.msgView.LineCount(), oldOffset), 0)
	default:
		a.msgView.ScrollTo(oldOffset, 0)
	}
}

// Run starts the TUI application and its bus-driven refresh loop.
func (a *App) Run() error {
	events, unsub := a.deps.Bus.Subscribe("", 256)

	go func() {
		defer unsub()
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case evt := <-events:
				a.handleEvent(evt)
			case <-ticker.C:
				a.app.QueueUpdateDraw(func() {
					a.statusBar.SetFlash(a.flash.Get())
				})
			case <-a.ctx.Done():
				return
			}
		}
	}()

	a.app.QueueUpdateDraw(func() {
		a.chatList.Update(a.deps.Directory.Chats())
	})

	return a.app.Run()
}

func (a *App) handleEvent(evt bus.Event) {
	switch evt.Kind {
	case bus.KindDirectoryUpdated:
		a.app.QueueUpdateDraw(func() {
			if page, _ := a.pages.GetFrontPage(); page == "chats" {
				a.chatList.Update(a.deps.Directory.Filter(a.filter.GetText()))
			}
		})
	case bus.KindTimelineUpdated:
		payload, ok := evt.Payload.(bus.TimelineUpdated)
		if !ok || payload.ChatID != a.deps.Directory.Selected() {
			return
		}
		a.app.QueueUpdateDraw(func() {
			if page, _ := a.pages.GetFrontPage(); page == "chat" {
				a.renderTimeline(payload.ChatID, false)
			}
		})
	case bus.KindSendFailed:
		if payload, ok := evt.Payload.(bus.SendResult); ok {
			a.flash.Set("Send failed: "+payload.Err, 5*time.Second)
		}
	case bus.KindStatusChanged:
		change, ok := evt.Payload.(status.StatusChange)
		if !ok {
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.statusBar.SetLinkState(string(change.To))
		})
	}
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
