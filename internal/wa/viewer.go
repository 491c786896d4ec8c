package wa

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/matheus3301/wprelay/internal/qr"
	"github.com/matheus3301/wprelay/internal/relay"
)

// QRImage is the file the pending pairing code is written to.
const QRImage = "qr.png"

// ShowWindow opens the pending pairing code in an image viewer.
func (c *Client) ShowWindow(context.Context) error {
	code := c.pendingQR()
	if code == "" {
		return fmt.Errorf("no pairing code pending: %w", relay.ErrNoWindow)
	}
	png, err := qr.PNG(code)
	if err != nil {
		return fmt.Errorf("render QR code: %w", err)
	}
	path := filepath.Join(c.opts.DataDir, QRImage)
	if err := os.WriteFile(path, png, 0o600); err != nil {
		return fmt.Errorf("write QR image: %w", err)
	}

	name, args := opener(c.opts.ViewerPath, runtime.GOOS)
	// The viewer outlives the request that opened it.
	cmd := exec.Command(name, append(args, path)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start viewer %s: %w", name, err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// opener returns the command that opens a file on goos.
func opener(viewer, goos string) (string, []string) {
	if viewer != "" {
		return viewer, nil
	}
	switch goos {
	case "darwin":
		return "open", nil
	case "windows":
		return "cmd", []string{"/c", "start", ""}
	default:
		return "xdg-open", nil
	}
}
