// Package relay drives a linked-device session and mirrors its chats into
// the store.
package relay

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/matheus3301/wprelay/internal/bus"
	"github.com/matheus3301/wprelay/internal/ingest"
	"github.com/matheus3301/wprelay/internal/metrics"
	"github.com/matheus3301/wprelay/internal/normalize"
	"github.com/matheus3301/wprelay/internal/resolver"
	"github.com/matheus3301/wprelay/internal/status"
	"go.uber.org/zap"
)

// SessionSubdir is the directory under the session dir holding client state.
const SessionSubdir = "relay-session"

// Store persists normalized chats and entries.
type Store interface {
	UpsertChatMeta(ctx context.Context, chatID string, patch normalize.ChatPatch) error
	AppendMessage(ctx context.Context, chatID string, entry normalize.Entry, hints normalize.Hints) error
	ReplaceEntries(ctx context.Context, chatID string, entries []normalize.Entry, hints normalize.Hints) error
}

// Manager owns the relay session: the client, its state snapshot and the
// chat sync. Observers follow it through bus.KindStatus and bus.KindLog.
type Manager struct {
	cfg      Config
	factory  ClientFactory
	store    Store
	bus      *bus.Bus
	logger   *zap.Logger
	metrics  *metrics.Metrics
	machine  *status.Machine
	resolver *resolver.Resolver

	mu sync.Mutex
	// epoch changes whenever a session ends. Work started under an older
	// epoch must not touch the snapshot.
	epoch          uint64
	client         Client
	worker         *ingest.Worker
	ctx            context.Context
	cancel         context.CancelFunc
	syncing        bool
	qrCode         string
	resyncTimer    *time.Timer
	resyncArmed    bool
	loggedFallback bool
}

// NewManager creates a stopped manager.
func NewManager(cfg Config, factory ClientFactory, store Store, b *bus.Bus, logger *zap.Logger, mt *metrics.Metrics) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if b == nil {
		b = bus.New()
	}
	cfg = cfg.withDefaults()
	mgr := &Manager{
		cfg:      cfg,
		factory:  factory,
		store:    store,
		bus:      b,
		logger:   logger,
		metrics:  mt,
		machine:  status.NewMachine(b, cfg.Version),
		resolver: resolver.New(store, cfg.Location, logger),
	}
	mt.SetState(status.Stopped)
	return mgr
}

// Config returns the effective configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// Bus returns the bus status and log events are published on.
func (m *Manager) Bus() *bus.Bus {
	return m.bus
}

// Status returns the current snapshot.
func (m *Manager) Status() status.Snapshot {
	return m.machine.Snapshot()
}

// QRCode returns the pending pairing code, or "".
func (m *Manager) QRCode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.qrCode
}

// Start creates and initializes a client unless a session already exists.
// If the client cannot be created or initialized the session is torn down,
// the error is recorded and returned.
func (m *Manager) Start(ctx context.Context) (status.Snapshot, error) {
	m.mu.Lock()
	if m.client != nil || m.machine.Current() != status.Stopped {
		m.mu.Unlock()
		m.logger.Warn("relay already running")
		return m.Status(), nil
	}
	m.epoch++
	epoch := m.epoch
	m.ctx, m.cancel = context.WithCancel(context.WithoutCancel(ctx))
	sctx := m.ctx
	now := time.Now()
	m.updateLocked(epoch, func(s *status.Snapshot) {
		s.Status = status.Starting
		s.StartedAt = &now
		s.ReadyAt = nil
		s.LastError = nil
	})
	m.mu.Unlock()

	m.log("Starting relay…")

	client, err := m.factory(ClientOptions{
		DataDir:    filepath.Join(m.cfg.SessionDir, SessionSubdir),
		Headless:   m.cfg.Headless,
		ViewerPath: m.cfg.ViewerPath,
		Logger:     m.logger.Named("client"),
	}, m.handlerFor(epoch))
	if err != nil {
		return m.failStart(ctx, epoch, fmt.Errorf("create relay client: %w", err))
	}

	worker := ingest.NewWorker(m.store, m.resolver, m.bus, m.logger, m.metrics)
	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		m.destroy(ctx, client)
		return m.Status(), fmt.Errorf("relay stopped while starting: %w", ErrNotRunning)
	}
	m.client = client
	m.worker = worker
	worker.Start(sctx)
	m.mu.Unlock()

	if err := client.Initialize(sctx); err != nil {
		return m.failStart(ctx, epoch, fmt.Errorf("initialize relay client: %w", err))
	}
	return m.Status(), nil
}

func (m *Manager) failStart(ctx context.Context, epoch uint64, err error) (status.Snapshot, error) {
	m.logger.Error("failed to start relay", zap.Error(err))

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return m.Status(), err
	}
	s := m.detachLocked()
	_, _ = m.machine.Update(func(snap *status.Snapshot) { snap.SetError(err.Error()) })
	m.mu.Unlock()

	m.release(ctx, s)
	return m.Status(), err
}

// Stop ends the session. It is a no-op when nothing is running.
func (m *Manager) Stop(ctx context.Context) (status.Snapshot, error) {
	m.mu.Lock()
	if m.client == nil && m.machine.Current() == status.Stopped {
		m.mu.Unlock()
		m.logger.Info("relay is not running")
		return m.Status(), nil
	}
	s := m.detachLocked()
	m.mu.Unlock()

	m.log("Stopping relay…")
	m.release(ctx, s)
	return m.Status(), nil
}

// Logout unlinks the device when possible and stops the session.
func (m *Manager) Logout(ctx context.Context) (status.Snapshot, error) {
	m.mu.Lock()
	client := m.client
	m.mu.Unlock()

	if client != nil {
		m.log("Logging out of the linked device…")
		if err := client.Logout(ctx); err != nil {
			m.logger.Warn("relay logout failed", zap.Error(err))
		}
	}
	return m.Stop(ctx)
}

// session is what a stopped session leaves behind to be released.
type session struct {
	client Client
	worker *ingest.Worker
	cancel context.CancelFunc
}

// detachLocked ends the current epoch and resets all session state.
// m.mu must be held.
func (m *Manager) detachLocked() session {
	s := session{client: m.client, worker: m.worker, cancel: m.cancel}
	m.epoch++
	m.client = nil
	m.worker = nil
	m.ctx, m.cancel = nil, nil
	m.syncing = false
	m.qrCode = ""
	m.cancelResyncLocked()
	m.resolver.Reset()
	snap := m.machine.Reset()
	m.metrics.SetState(snap.Status)
	return s
}

func (m *Manager) release(ctx context.Context, s session) {
	if s.cancel != nil {
		s.cancel()
	}
	if s.worker != nil {
		s.worker.Stop()
	}
	if s.client != nil {
		m.destroy(ctx, s.client)
	}
}

func (m *Manager) destroy(ctx context.Context, c Client) {
	if err := c.Destroy(context.WithoutCancel(ctx)); err != nil {
		m.logger.Warn("failed to destroy relay client", zap.Error(err))
	}
}

// running returns the client, context and epoch of a ready session.
func (m *Manager) running() (Client, context.Context, uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil || m.machine.Current() != status.Running {
		return nil, nil, 0, false
	}
	return m.client, m.ctx, m.epoch, true
}

// update applies fn to the snapshot if epoch is still current.
func (m *Manager) update(epoch uint64, fn func(*status.Snapshot)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateLocked(epoch, fn)
}

func (m *Manager) updateLocked(epoch uint64, fn func(*status.Snapshot)) bool {
	if epoch != m.epoch {
		return false
	}
	snap, err := m.machine.Update(fn)
	if err != nil {
		m.logger.Debug("state update rejected", zap.Error(err))
		return false
	}
	m.metrics.SetState(snap.Status)
	return true
}

// log writes a progress line to the logger and the log channel.
func (m *Manager) log(text string) {
	m.logger.Info(text)
	m.bus.Emit(bus.KindLog, text)
}

// scoped derives a context cancelled by either ctx or the session context.
func scoped(ctx, sctx context.Context) (context.Context, context.CancelFunc) {
	out, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(sctx, cancel)
	return out, func() {
		stop()
		cancel()
	}
}
