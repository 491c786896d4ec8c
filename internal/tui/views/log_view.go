package views

import (
	"fmt"

	"github.com/matheus3301/wprelay/internal/logring"
	"github.com/matheus3301/wprelay/internal/tui/ui"
	"github.com/rivo/tview"
)

// maxLogLines bounds the text kept in the log view.
const maxLogLines = 1000

// LogView shows the relay log stream.
type LogView struct {
	*tview.TextView
	lines int
}

// NewLogView creates a new log view.
func NewLogView(theme *ui.Theme) *LogView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetMaxLines(maxLogLines)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Relay Log ")
	tv.SetTitleColor(theme.TitleColor)

	return &LogView{TextView: tv}
}

// Append writes one line and keeps the view scrolled to the end.
func (v *LogView) Append(l logring.Line) {
	_, _ = fmt.Fprintf(v, "[gray]%s[-] %s\n", l.Time.Local().Format("15:04:05"), tview.Escape(sanitizeForTerminal(l.Text)))
	v.lines++
	v.ScrollToEnd()
	v.SetTitle(fmt.Sprintf(" Relay Log [%d] ", v.lines))
}

// Reset clears the view.
func (v *LogView) Reset() {
	v.Clear()
	v.lines = 0
	v.SetTitle(" Relay Log ")
}
