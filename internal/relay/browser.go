package relay

import (
	"context"
	"fmt"
)

// ShowBrowserWindow brings the session window to the foreground. It fails
// with ErrHeadless for headless sessions and ErrNoWindow when the client
// has no window.
func (m *Manager) ShowBrowserWindow(ctx context.Context) error {
	if m.cfg.Headless {
		return ErrHeadless
	}
	m.mu.Lock()
	client := m.client
	m.mu.Unlock()
	if client == nil {
		return ErrNoWindow
	}
	shower, ok := client.(WindowShower)
	if !ok {
		return ErrNoWindow
	}
	if err := shower.ShowWindow(ctx); err != nil {
		return fmt.Errorf("show session window: %w", err)
	}
	return nil
}
