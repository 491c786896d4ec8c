package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/matheus3301/wprelay/internal/qr"
	"github.com/matheus3301/wprelay/internal/status"
	"go.uber.org/zap"
)

const defaultAuthFailure = "Authentication failed."

// handlerFor returns the event handler of the session started at epoch.
// Events from ended sessions are dropped.
func (m *Manager) handlerFor(epoch uint64) EventHandler {
	return func(evt any) {
		m.mu.Lock()
		current := m.epoch == epoch
		m.mu.Unlock()
		if !current {
			return
		}

		switch e := evt.(type) {
		case QR:
			m.handleQR(epoch, e.Code)
		case Authenticated:
			m.log("Authenticated with the linked device.")
		case AuthFailure:
			m.handleAuthFailure(epoch, e.Message)
		case Ready:
			go m.handleReady(epoch)
		case ChangeState:
			m.log("Client state changed: " + e.State)
		case LoadingScreen:
			m.log(strings.TrimSpace(fmt.Sprintf("Loading… %d%% %s", e.Percent, e.Text)))
		case Disconnected:
			m.log("Relay disconnected: " + e.Reason)
			go m.handleDisconnect(epoch)
		case Message:
			m.handleMessage(epoch, e)
		case Fatal:
			m.handleFatal(epoch, e.Err)
		default:
			m.logger.Debug("ignoring client event", zap.String("type", fmt.Sprintf("%T", evt)))
		}
	}
}

func (m *Manager) handleQR(epoch uint64, code string) {
	m.log("Relay requests a QR code scan.")

	url, err := qr.DataURL(code)
	if err != nil {
		m.logger.Error("failed to render QR code", zap.Error(err))
		m.update(epoch, func(s *status.Snapshot) { s.SetError(err.Error()) })
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.machine.Current() == status.Running {
		m.logger.Debug("ignoring QR code for a running session")
		return
	}
	if m.updateLocked(epoch, func(s *status.Snapshot) {
		s.Status = status.WaitingQR
		s.LastQR = &url
	}) {
		m.qrCode = code
	}
}

func (m *Manager) handleAuthFailure(epoch uint64, msg string) {
	if msg == "" {
		msg = defaultAuthFailure
	}
	m.update(epoch, func(s *status.Snapshot) { s.SetError(msg) })
	m.log("Authentication failed: " + msg)
}

func (m *Manager) handleFatal(epoch uint64, err error) {
	if err == nil {
		return
	}
	m.logger.Error("relay client error", zap.Error(err))
	m.update(epoch, func(s *status.Snapshot) { s.SetError(err.Error()) })
}

func (m *Manager) handleDisconnect(epoch uint64) {
	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return
	}
	s := m.detachLocked()
	m.mu.Unlock()

	m.release(context.Background(), s)
}

func (m *Manager) handleMessage(epoch uint64, msg Message) {
	m.mu.Lock()
	w := m.worker
	m.mu.Unlock()
	if w == nil || !w.Submit(msg.Raw) {
		m.logger.Debug("dropping message for stopped session", zap.Uint64("epoch", epoch))
	}
}

// handleReady marks the session running, loads contacts, runs the first
// sync and arms the deferred primary resync when that sync fell back.
func (m *Manager) handleReady(epoch uint64) {
	m.mu.Lock()
	if m.epoch != epoch || m.client == nil {
		m.mu.Unlock()
		return
	}
	client, sctx := m.client, m.ctx
	m.mu.Unlock()

	now := time.Now()
	account := client.Account()
	if !m.update(epoch, func(s *status.Snapshot) {
		s.Status = status.Running
		s.ReadyAt = &now
		s.LastQR = nil
		s.Account = account
	}) {
		return
	}
	m.mu.Lock()
	m.qrCode = ""
	m.mu.Unlock()
	m.log("Relay is ready.")

	if n := m.resolver.RefreshContacts(sctx, contactLister{client}); n > 0 {
		m.log(fmt.Sprintf("Loaded %d contacts from the linked device.", n))
	}

	snap, err := m.syncChats(sctx, SyncOptions{}, false)
	if errors.Is(err, ErrNotRunning) {
		m.logger.Debug("startup chat sync did not run", zap.Error(err))
		return
	}
	m.scheduleStartupResync(epoch, snap)
}
