package views

import (
	"fmt"

	"github.com/matheus3301/wprelay/internal/qr"
	"github.com/matheus3301/wprelay/internal/tui/ui"
	"github.com/rivo/tview"
)

// QRView displays the pairing code while the session waits for a scan.
type QRView struct {
	*tview.TextView
}

// NewQRView creates a new pairing view.
func NewQRView(theme *ui.Theme) *QRView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Link Device ")
	tv.SetTitleColor(theme.TitleColor)

	return &QRView{TextView: tv}
}

// ShowQR renders code as a scannable block.
func (v *QRView) ShowQR(code string) {
	v.Clear()
	block, err := qr.Terminal(code)
	if err != nil {
		_, _ = fmt.Fprintf(v, "\n\n(%s)", tview.Escape(err.Error()))
		return
	}
	_, _ = fmt.Fprintf(v, "\n  Scan this QR code with WhatsApp:\n\n%s\n  [::d]Waiting for the scan... <esc> hides this view", block)
}
