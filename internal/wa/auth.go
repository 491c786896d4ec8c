package wa

import (
	"context"
	"fmt"

	"github.com/matheus3301/wprelay/internal/relay"
	"go.mau.fi/whatsmeow"
)

// startPairing opens the QR channel. It must run before Connect.
func (c *Client) startPairing(ctx context.Context, client *whatsmeow.Client) error {
	qrCtx, cancel := context.WithCancel(ctx)
	ch, err := client.GetQRChannel(qrCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("get QR channel: %w", err)
	}
	c.mu.Lock()
	c.stopQR = cancel
	c.mu.Unlock()

	go c.watchQR(ch)
	return nil
}

// watchQR forwards pairing codes until pairing ends.
func (c *Client) watchQR(ch <-chan whatsmeow.QRChannelItem) {
	for item := range ch {
		switch item.Event {
		case "code":
			c.mu.Lock()
			c.lastQR = item.Code
			c.mu.Unlock()
			c.emit(relay.QR{Code: item.Code})
		case "success":
			c.clearQR()
			return
		case "timeout":
			c.clearQR()
			c.emit(relay.AuthFailure{Message: "QR code timeout"})
			return
		default:
			if item.Error != nil {
				c.clearQR()
				c.emit(relay.AuthFailure{Message: item.Error.Error()})
				return
			}
			c.logger.Debug("unhandled QR channel event", zapEvent(item.Event))
		}
	}
}

func (c *Client) clearQR() {
	c.mu.Lock()
	c.lastQR = ""
	c.mu.Unlock()
}

// pendingQR returns the last unscanned pairing code.
func (c *Client) pendingQR() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastQR
}
