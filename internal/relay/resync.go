package relay

import (
	"fmt"
	"time"

	"github.com/matheus3301/wprelay/internal/status"
	"go.uber.org/zap"
)

// scheduleStartupResync arms the deferred primary resync when the first
// sync of an auto-mode session landed on the fallback path. At most one
// is armed per session.
func (m *Manager) scheduleStartupResync(epoch uint64, snap status.Snapshot) {
	if m.cfg.Mode != ModeAuto || snap.SyncPath != status.PathFallback {
		return
	}

	m.mu.Lock()
	if m.epoch != epoch || m.resyncArmed || m.resyncTimer != nil {
		m.mu.Unlock()
		return
	}
	m.resyncArmed = true
	delay := m.cfg.ResyncDelay
	m.resyncTimer = time.AfterFunc(delay, func() { m.runDeferredResync(epoch) })
	m.mu.Unlock()

	m.metrics.DeferredResync()
	m.log(fmt.Sprintf("Scheduling deferred primary chat sync in %dms after fallback startup sync.", delay.Milliseconds()))
}

func (m *Manager) runDeferredResync(epoch uint64) {
	m.mu.Lock()
	if m.epoch != epoch || m.client == nil {
		m.mu.Unlock()
		return
	}
	m.resyncTimer = nil
	sctx := m.ctx
	m.mu.Unlock()

	m.log("Running deferred primary chat sync.")
	if _, err := m.syncChats(sctx, SyncOptions{Mode: ModePrimary}, true); err != nil {
		m.logger.Debug("deferred primary sync failed", zap.Error(err))
	}
}

// cancelResyncLocked disarms the deferred resync. m.mu must be held.
func (m *Manager) cancelResyncLocked() {
	if m.resyncTimer != nil {
		m.resyncTimer.Stop()
		m.resyncTimer = nil
	}
	m.resyncArmed = false
}

// ResyncPending reports whether a deferred primary resync is armed.
func (m *Manager) ResyncPending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resyncTimer != nil
}
