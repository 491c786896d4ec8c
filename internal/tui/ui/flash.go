package ui

import (
	"fmt"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// FlashLevel is the severity of a flash message.
type FlashLevel int

const (
	FlashInfo FlashLevel = iota
	FlashWarn
	FlashErr
)

// ttl is how long a message of the level stays up.
func (l FlashLevel) ttl() time.Duration {
	switch l {
	case FlashWarn:
		return 8 * time.Second
	case FlashErr:
		return 10 * time.Second
	default:
		return 5 * time.Second
	}
}

// FlashMessage is one notification.
type FlashMessage struct {
	Text    string
	Level   FlashLevel
	Expires time.Time
}

// FlashModel holds the latest notification until it expires.
type FlashModel struct {
	mu      sync.RWMutex
	current FlashMessage
	now     func() time.Time
}

// NewFlashModel creates an empty flash model.
func NewFlashModel() *FlashModel {
	return &FlashModel{now: time.Now}
}

func (f *FlashModel) Info(msg string) { f.set(msg, FlashInfo) }
func (f *FlashModel) Warn(msg string) { f.set(msg, FlashWarn) }
func (f *FlashModel) Err(err error)   { f.set(err.Error(), FlashErr) }

func (f *FlashModel) set(msg string, level FlashLevel) {
	f.mu.Lock()
	f.current = FlashMessage{Text: msg, Level: level, Expires: f.now().Add(level.ttl())}
	f.mu.Unlock()
}

// Current returns the live message, or nil once it expired.
func (f *FlashModel) Current() *FlashMessage {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.current.Text == "" || f.now().After(f.current.Expires) {
		return nil
	}
	m := f.current
	return &m
}

// FlashBar is the bottom line showing the current flash message.
type FlashBar struct {
	*tview.TextView
	colors map[FlashLevel]tcell.Color
}

// NewFlashBar creates a flash bar colored by theme.
func NewFlashBar(theme *Theme) *FlashBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)

	return &FlashBar{
		TextView: tv,
		colors: map[FlashLevel]tcell.Color{
			FlashInfo: theme.FlashInfoColor,
			FlashWarn: theme.FlashWarnColor,
			FlashErr:  theme.FlashErrColor,
		},
	}
}

// Update shows msg, or clears the bar when msg is nil.
func (fb *FlashBar) Update(msg *FlashMessage) {
	fb.Clear()
	if msg == nil {
		return
	}
	prefix := ""
	if msg.Level == FlashErr {
		prefix = "error: "
	}
	_, _ = fmt.Fprintf(fb, " [%s]%s%s[-]", colorName(fb.colors[msg.Level]), prefix, tview.Escape(msg.Text))
}
