// Package tui is the terminal monitor for a relay daemon.
package tui

import (
	"context"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/wprelay/internal/api"
	"github.com/matheus3301/wprelay/internal/logring"
	"github.com/matheus3301/wprelay/internal/status"
	"github.com/matheus3301/wprelay/internal/tui/keys"
	"github.com/matheus3301/wprelay/internal/tui/model"
	"github.com/matheus3301/wprelay/internal/tui/ui"
	"github.com/matheus3301/wprelay/internal/tui/views"
	"github.com/rivo/tview"
)

const (
	// actionTimeout covers a full sync with retries and fallback.
	actionTimeout = 3 * time.Minute
	retryDelay    = 2 * time.Second
	promptHeight  = 3
	headerHeight  = 7
)

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	client   *api.Client
	vm       *model.ViewModel
	registry *keys.Registry
	flash    *ui.FlashModel

	root     *tview.Flex
	pages    *tview.Pages
	panel    *ui.StatusPanel
	menu     *ui.Menu
	logo     *ui.Logo
	flashBar *ui.FlashBar
	prompt   *ui.Prompt
	logView  *views.LogView
	qrView   *views.QRView

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(c *api.Client, sessionName string) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:      tview.NewApplication(),
		client:   c,
		vm:       model.NewViewModel(sessionName),
		registry: keys.NewRegistry(),
		flash:    ui.NewFlashModel(),
		pages:    tview.NewPages(),
		panel:    ui.NewStatusPanel(theme),
		menu:     ui.NewMenu(theme, headerHeight-1),
		logo:     ui.NewLogo(theme),
		flashBar: ui.NewFlashBar(theme),
		prompt:   ui.NewPrompt(theme),
		logView:  views.NewLogView(theme),
		qrView:   views.NewQRView(theme),
		ctx:      ctx,
		cancel:   cancel,
	}

	a.setupBindings()
	a.setupLayout()
	a.render()
	return a
}

func (a *App) setupBindings() {
	a.registry.Add('s', "Start", func() { a.run(Command{Name: "start"}) })
	a.registry.Add('x', "Stop", func() { a.run(Command{Name: "stop"}) })
	a.registry.Add('y', "Sync chats", func() { a.run(Command{Name: "sync"}) })
	a.registry.Add('l', "Logout", a.confirmLogout)
	a.registry.Add('b', "Show window", func() { a.run(Command{Name: "show"}) })
	a.registry.Add('c', "Clear log", a.logView.Reset)
	a.registry.Add(':', "Command", a.showPrompt)
	a.registry.Add('q', "Quit", a.Stop)

	a.prompt.SetOnSubmit(func(text string) {
		a.hidePrompt()
		a.run(ParseCommand(text))
	})
	a.prompt.SetOnCancel(a.hidePrompt)
}

func (a *App) setupLayout() {
	var hints []ui.MenuHint
	for _, h := range a.registry.Hints() {
		hints = append(hints, ui.MenuHint{Key: h.Key, Description: h.Description})
	}
	a.menu.Update(hints)

	header := tview.NewFlex().
		AddItem(a.panel, 0, 2, false).
		AddItem(a.menu, 0, 2, false).
		AddItem(a.logo, 18, 0, false)

	a.pages.AddPage("logs", a.logView, true, true)
	a.pages.AddPage("qr", a.qrView, true, false)

	a.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, headerHeight, 0, false).
		AddItem(a.prompt, 0, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.flashBar, 1, 0, false)

	a.app.SetRoot(a.root, true)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		// Let the prompt and modals handle their own keys.
		switch a.app.GetFocus().(type) {
		case *tview.InputField, *tview.Button:
			return event
		}

		if event.Key() == tcell.KeyEscape {
			if page, _ := a.pages.GetFrontPage(); page == "qr" {
				a.pages.SwitchToPage("logs")
				return nil
			}
		}
		if a.registry.HandleEvent(event) {
			return nil
		}
		return event
	})
}

func (a *App) showPrompt() {
	a.root.ResizeItem(a.prompt, promptHeight, 0)
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	a.root.ResizeItem(a.prompt, 0, 0)
	a.app.SetFocus(a.pages)
}

func (a *App) confirmLogout() {
	modal := tview.NewModal().
		SetText("Log out and unlink this device?").
		AddButtons([]string{"Logout", "Cancel"}).
		SetDoneFunc(func(_ int, label string) {
			a.pages.RemovePage("confirm")
			a.app.SetFocus(a.pages)
			if label == "Logout" {
				a.run(Command{Name: "logout"})
			}
		})
	a.pages.AddPage("confirm", modal, true, true)
	a.app.SetFocus(modal)
}

// run executes cmd off the UI goroutine and flashes the outcome.
func (a *App) run(cmd Command) {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, actionTimeout)
		defer cancel()
		msg, err := Execute(ctx, a.client, cmd)
		if err != nil {
			a.flash.Err(err)
		} else {
			a.flash.Info(msg)
		}
		a.app.QueueUpdateDraw(a.render)
	}()
}

func (a *App) render() {
	rows := a.vm.Rows()
	out := make([]ui.StatusRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, ui.StatusRow{Label: r.Label, Value: r.Value, Tone: r.Tone})
	}
	a.panel.Update(out)
	a.logo.SetVersion(a.vm.Snapshot().Version)
	a.flashBar.Update(a.flash.Current())
}

func (a *App) onSnapshot(snap status.Snapshot) {
	if a.vm.SetSnapshot(snap) {
		go a.showPairingCode()
	}
	a.app.QueueUpdateDraw(func() {
		if page, _ := a.pages.GetFrontPage(); page == "qr" && !a.vm.WaitingQR() {
			a.pages.SwitchToPage("logs")
		}
		a.render()
	})
}

// showPairingCode fetches the raw code behind the snapshot's QR image.
func (a *App) showPairingCode() {
	ctx, cancel := context.WithTimeout(a.ctx, 5*time.Second)
	defer cancel()
	code, err := a.client.PairingCode(ctx)
	if err != nil {
		a.flash.Err(err)
		return
	}
	if code == "" {
		return
	}
	a.app.QueueUpdateDraw(func() {
		if !a.vm.WaitingQR() {
			return
		}
		a.qrView.ShowQR(code)
		a.pages.SwitchToPage("qr")
	})
}

// watchStatus follows the daemon's status stream, reconnecting until the
// app stops.
func (a *App) watchStatus() {
	for a.ctx.Err() == nil {
		err := a.client.WatchStatus(a.ctx, func(snap status.Snapshot) error {
			a.onSnapshot(snap)
			return nil
		})
		if a.ctx.Err() != nil {
			return
		}
		a.vm.SetDisconnected()
		if err != nil {
			a.flash.Warn("status stream lost: " + err.Error())
		}
		a.app.QueueUpdateDraw(a.render)
		a.sleep(retryDelay)
	}
}

// watchLogs follows the log stream. Each reconnect replays the buffer, so
// the view is reset first.
func (a *App) watchLogs() {
	for a.ctx.Err() == nil {
		first := true
		_ = a.client.WatchLogs(a.ctx, func(l logring.Line) error {
			reset := first
			first = false
			a.app.QueueUpdateDraw(func() {
				if reset {
					a.logView.Reset()
				}
				a.logView.Append(l)
			})
			return nil
		})
		a.sleep(retryDelay)
	}
}

// tick refreshes uptimes and expires flash messages.
func (a *App) tick() {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			a.app.QueueUpdateDraw(a.render)
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) sleep(d time.Duration) {
	select {
	case <-time.After(d):
	case <-a.ctx.Done():
	}
}

// Run starts the TUI application.
func (a *App) Run() error {
	go a.watchStatus()
	go a.watchLogs()
	go a.tick()
	defer a.cancel()
	return a.app.Run()
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
