package ui

import (
	"fmt"

	"github.com/rivo/tview"
)

// StatusRow is one labelled line of the status panel.
type StatusRow struct {
	Label string
	Value string
	// Tone picks the value color: "ok", "pending", "off" or "" for the default.
	Tone string
}

// StatusPanel displays the relay session state in the header.
type StatusPanel struct {
	*tview.TextView
	theme *Theme
}

// NewStatusPanel creates a new status panel.
func NewStatusPanel(theme *Theme) *StatusPanel {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 1, 1)

	return &StatusPanel{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders rows with aligned labels.
func (sp *StatusPanel) Update(rows []StatusRow) {
	sp.Clear()

	width := 0
	for _, r := range rows {
		width = max(width, len(r.Label))
	}
	fgColor := colorName(sp.theme.FgColor)
	for _, r := range rows {
		_, _ = fmt.Fprintf(sp, "[%s::b]%-*s[-:-:-] [%s]%s[-]\n",
			fgColor, width+1, r.Label+":", sp.toneColor(r.Tone), tview.Escape(r.Value))
	}
}

func (sp *StatusPanel) toneColor(tone string) string {
	switch tone {
	case "ok":
		return colorName(sp.theme.RunningColor)
	case "pending":
		return colorName(sp.theme.PendingColor)
	case "off":
		return colorName(sp.theme.StoppedColor)
	default:
		return colorName(sp.theme.CounterColor)
	}
}
