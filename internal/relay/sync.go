package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matheus3301/wprelay/internal/metrics"
	"github.com/matheus3301/wprelay/internal/normalize"
	"github.com/matheus3301/wprelay/internal/status"
	"go.uber.org/zap"
)

// SyncOptions control one chat sync.
type SyncOptions struct {
	// Mode overrides the configured mode when it names one.
	Mode Mode
}

// EnsureOptions control a single chat resync.
type EnsureOptions struct {
	// Limit caps the number of fetched messages. Zero uses the configured
	// message limit.
	Limit int
}

// SyncChats lists chats and writes their metadata to the store. While a sync
// is in flight further calls return the current snapshot without starting
// new work. Listing failures are recorded in the snapshot; only
// ErrNotRunning is returned.
func (m *Manager) SyncChats(ctx context.Context, opts SyncOptions) (status.Snapshot, error) {
	snap, err := m.syncChats(ctx, opts, false)
	if errors.Is(err, ErrNotRunning) {
		return snap, err
	}
	return snap, nil
}

// syncChats runs one sync and returns the listing error, if any. A quiet
// sync leaves lastError alone and logs failures at debug level.
func (m *Manager) syncChats(ctx context.Context, opts SyncOptions, quiet bool) (status.Snapshot, error) {
	mode := ResolveMode(opts.Mode, m.cfg.Mode)

	m.mu.Lock()
	if m.client == nil || m.machine.Current() != status.Running {
		m.mu.Unlock()
		return m.Status(), ErrNotRunning
	}
	if m.syncing {
		m.mu.Unlock()
		return m.Status(), nil
	}
	client, sctx, epoch := m.client, m.ctx, m.epoch
	m.syncing = true
	m.updateLocked(epoch, func(s *status.Snapshot) { s.SyncingChats = true })
	m.mu.Unlock()

	ctx, cancel := scoped(ctx, sctx)
	defer cancel()

	started := time.Now()
	res, err := m.listChats(ctx, client, mode)
	var persist time.Duration
	if err == nil {
		persist = m.persistChats(ctx, res.chats)
	}
	elapsed := time.Since(started)

	return m.finishSync(epoch, res, err, elapsed, persist, quiet)
}

// persistChats writes chat metadata one chat at a time in list order.
func (m *Manager) persistChats(ctx context.Context, chats []Chat) time.Duration {
	var total time.Duration
	for _, chat := range chats {
		if ctx.Err() != nil {
			break
		}
		started := time.Now()
		if err := m.resolver.PersistChatMeta(ctx, chat); err != nil {
			m.logger.Warn("failed to persist chat metadata", zap.Error(err))
		}
		total += time.Since(started)
	}
	return total
}

func (m *Manager) finishSync(epoch uint64, res listing, syncErr error, elapsed, persist time.Duration, quiet bool) (status.Snapshot, error) {
	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		m.logger.Debug("discarding sync result of a stopped session")
		return m.Status(), syncErr
	}
	m.syncing = false

	var previous status.SyncPath
	m.updateLocked(epoch, func(s *status.Snapshot) {
		s.SyncingChats = false
		if syncErr != nil {
			if !quiet {
				s.SetError(syncErr.Error())
			}
			return
		}
		previous = s.SyncPath
		now := time.Now()
		elapsedMs, persistMs := elapsed.Milliseconds(), persist.Milliseconds()
		s.ChatCount = len(res.chats)
		s.ChatsSyncedAt = &now
		s.SyncPath = res.path
		s.LastSyncDurationMs = &elapsedMs
		s.LastSyncPersistDurationMs = &persistMs
		s.LastError = nil
	})
	snap := m.machine.Snapshot()
	m.mu.Unlock()

	if syncErr != nil {
		m.metrics.ObserveSync(res.path, metrics.ResultFailure, elapsed, 0)
		if quiet {
			m.logger.Debug("chat sync failed", zap.Error(syncErr))
		} else {
			m.logger.Error("failed to sync chats", zap.Error(syncErr))
		}
		return snap, syncErr
	}

	m.metrics.ObserveSync(res.path, metrics.ResultSuccess, elapsed, len(res.chats))
	if previous != status.PathNone && previous != res.path {
		m.log(fmt.Sprintf("Sync path transition detected: %s -> %s.", previous, res.path))
	}
	m.log(fmt.Sprintf("Synced %d chats via %s in %dms (meta persist %dms).",
		len(res.chats), res.path, elapsed.Milliseconds(), persist.Milliseconds()))
	return snap, nil
}

// EnsureChatSynced refetches the history of one chat and replaces its
// stored entries.
func (m *Manager) EnsureChatSynced(ctx context.Context, chatID string, opts EnsureOptions) ([]normalize.Entry, error) {
	client, sctx, _, ok := m.running()
	if !ok {
		return nil, ErrNotRunning
	}
	ctx, cancel := scoped(ctx, sctx)
	defer cancel()

	limit := opts.Limit
	if limit <= 0 {
		limit = m.cfg.MessageLimit
	}

	chat, err := client.GetChatByID(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("get chat %s: %w", chatID, err)
	}
	if chat == nil {
		return nil, fmt.Errorf("chat %s: %w", chatID, ErrChatNotFound)
	}
	if err := m.resolver.PersistChatMeta(ctx, chat); err != nil {
		m.logger.Warn("failed to persist chat metadata", zap.Error(err))
	}

	label, ok := chat.Raw().First("name")
	if !ok {
		label = chatID
	}
	fetcher, ok := chat.(MessageFetcher)
	if !ok {
		return nil, fmt.Errorf("chat %s: %w", chatID, ErrNoMessages)
	}

	m.log(fmt.Sprintf("Fetching %d messages for %s…", limit, label))
	raws, err := fetcher.FetchMessages(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch messages for %s: %w", chatID, err)
	}

	entries := make([]normalize.Entry, 0, len(raws))
	for _, raw := range raws {
		entries = append(entries, m.resolver.Entry(raw))
	}
	normalize.SortEntries(entries)

	err = m.store.ReplaceEntries(ctx, chatID, entries, normalize.ChatHints(chat.Raw()))
	m.metrics.EntryIngested("resync", len(entries), err)
	if err != nil {
		return nil, fmt.Errorf("replace entries for %s: %w", chatID, err)
	}
	m.log(fmt.Sprintf("Saved %d messages for %s.", len(entries), label))
	return entries, nil
}
