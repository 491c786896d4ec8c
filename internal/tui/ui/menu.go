package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
)

// MenuHint describes a keyboard shortcut for display in the menu.
type MenuHint struct {
	Key         string
	Description string
}

// Menu lists key hints in columns of a fixed height.
type Menu struct {
	*tview.TextView
	keyColor string
	rows     int
}

// NewMenu creates a menu that fills columns of rows lines.
func NewMenu(theme *Theme, rows int) *Menu {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 2, 0)

	return &Menu{
		TextView: tv,
		keyColor: colorName(theme.MenuKeyColor),
		rows:     max(rows, 1),
	}
}

// Update renders hints column by column.
func (m *Menu) Update(hints []MenuHint) {
	m.Clear()
	_, _ = fmt.Fprint(m, m.layout(hints))
}

func (m *Menu) layout(hints []MenuHint) string {
	cells := make([]string, len(hints))
	widths := make([]int, (len(hints)+m.rows-1)/m.rows)
	for i, h := range hints {
		cells[i] = fmt.Sprintf("<%s> %s", h.Key, h.Description)
		col := i / m.rows
		widths[col] = max(widths[col], len(cells[i]))
	}

	var sb strings.Builder
	for row := 0; row < m.rows && row < len(hints); row++ {
		for col := range widths {
			i := col*m.rows + row
			if i >= len(hints) {
				break
			}
			key := "<" + tview.Escape(hints[i].Key) + ">"
			pad := widths[col] - len(cells[i]) + 3
			fmt.Fprintf(&sb, "[%s::b]%s[-:-:-] %s%s", m.keyColor, key, hints[i].Description, strings.Repeat(" ", pad))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
