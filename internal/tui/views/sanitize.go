// Package views holds the monitor's panes.
package views

import (
	"strings"
	"unicode"
)

// sanitizeForTerminal drops runes tcell renders with the wrong width or
// that would move the cursor: emoji skin tone modifiers, joiners, variation
// selectors and control characters other than tab.
func sanitizeForTerminal(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t':
			return r
		case r >= 0x1F3FB && r <= 0x1F3FF,
			unicode.Is(unicode.Join_Control, r),
			unicode.Is(unicode.Variation_Selector, r),
			unicode.IsControl(r):
			return -1
		}
		return r
	}, s)
}
