package ui

import (
	"fmt"

	"github.com/rivo/tview"
)

// Logo shows the monitor banner and the daemon version.
type Logo struct {
	*tview.TextView
	title, fg string
	version   string
}

// NewLogo creates a new logo component.
func NewLogo(theme *Theme) *Logo {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(1, 0, 1, 0)

	l := &Logo{
		TextView: tv,
		title:    colorName(theme.TitleColor),
		fg:       colorName(theme.FgColor),
	}
	l.render()
	return l
}

// SetVersion shows the daemon version under the banner.
func (l *Logo) SetVersion(v string) {
	if v == l.version {
		return
	}
	l.version = v
	l.render()
}

func (l *Logo) render() {
	l.Clear()
	_, _ = fmt.Fprintf(l,
		"[%[1]s::b] ╦ ╦╔═╗╦═╗[-:-:-]\n"+
			"[%[1]s::b] ║║║╠═╝╠╦╝[-:-:-]\n"+
			"[%[1]s::b] ╚╩╝╩  ╩╚═[-:-:-]\n"+
			"[%[2]s]relay monitor[-:-:-]",
		l.title, l.fg,
	)
	if l.version != "" {
		_, _ = fmt.Fprintf(l, "\n[%s]daemon %s[-:-:-]", l.fg, tview.Escape(l.version))
	}
}
