package relay

import (
	"context"
	"time"

	"github.com/matheus3301/wprelay/internal/status"
	"go.uber.org/zap"
)

type listing struct {
	chats []Chat
	path  status.SyncPath
}

// listChats obtains the chat list for mode. Auto mode retries the primary
// listing and demotes to the fallback once every attempt failed.
func (m *Manager) listChats(ctx context.Context, client Client, mode Mode) (listing, error) {
	switch mode {
	case ModeFallback:
		m.logger.Info("sync mode is fallback; skipping primary chat listing")
		chats, err := fallbackChats(ctx, client)
		return listing{chats: chats, path: status.PathFallback}, err
	case ModePrimary:
		chats, err := m.primaryChats(ctx, client)
		return listing{chats: chats, path: status.PathPrimary}, err
	}

	attempts := m.cfg.RetryAttempts
	var primaryErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		chats, err := m.primaryChats(ctx, client)
		if err == nil {
			return listing{chats: chats, path: status.PathPrimary}, nil
		}
		primaryErr = err
		if ctx.Err() != nil {
			return listing{path: status.PathPrimary}, ctx.Err()
		}
		if attempt == attempts {
			break
		}
		m.logger.Debug("primary chat listing failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("attempts", attempts),
			zap.Int64("delay_ms", m.cfg.RetryDelay.Milliseconds()),
			zap.Error(err))
		if err := sleep(ctx, m.cfg.RetryDelay); err != nil {
			return listing{path: status.PathPrimary}, err
		}
	}

	m.mu.Lock()
	first := !m.loggedFallback
	m.loggedFallback = true
	m.mu.Unlock()
	if first {
		m.logger.Info("primary chat listing unavailable; using fallback sync.")
	}
	m.logger.Debug("primary chat listing fallback details", zap.Error(primaryErr))

	chats, err := fallbackChats(ctx, client)
	return listing{chats: chats, path: status.PathFallback}, err
}

// primaryChats makes one primary listing call bounded by the attempt timeout.
func (m *Manager) primaryChats(ctx context.Context, client Client) ([]Chat, error) {
	if m.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.AttemptTimeout)
		defer cancel()
	}
	chats, err := client.GetChats(ctx)
	m.metrics.PrimaryAttempt(err)
	return chats, err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
