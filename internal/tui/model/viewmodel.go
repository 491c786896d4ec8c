// Package model holds the monitor's view of the relay session.
package model

import (
	"fmt"
	"sync"
	"time"

	"github.com/matheus3301/wprelay/internal/status"
)

// Row is one labelled status line.
type Row struct {
	Label string
	Value string
	Tone  string
}

// ViewModel caches the latest status snapshot pushed by the daemon.
type ViewModel struct {
	mu sync.RWMutex

	session   string
	snap      status.Snapshot
	connected bool
	now       func() time.Time
}

// NewViewModel creates a view model for the named session.
func NewViewModel(session string) *ViewModel {
	return &ViewModel{session: session, now: time.Now}
}

// SetSnapshot stores snap and marks the daemon as connected.
// It reports whether a new QR code arrived.
func (vm *ViewModel) SetSnapshot(snap status.Snapshot) (newQR bool) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	newQR = snap.LastQR != nil && (vm.snap.LastQR == nil || *vm.snap.LastQR != *snap.LastQR)
	vm.snap = snap
	vm.connected = true
	return newQR
}

// SetDisconnected marks the status stream as lost.
func (vm *ViewModel) SetDisconnected() {
	vm.mu.Lock()
	vm.connected = false
	vm.mu.Unlock()
}

// Snapshot returns the latest snapshot.
func (vm *ViewModel) Snapshot() status.Snapshot {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.snap
}

// WaitingQR reports whether the session waits for a pairing scan.
func (vm *ViewModel) WaitingQR() bool {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.snap.Status == status.WaitingQR && vm.snap.LastQR != nil
}

// Rows formats the snapshot for the status panel.
func (vm *ViewModel) Rows() []Row {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	s := vm.snap

	state := string(s.Status)
	if !vm.connected {
		state = "disconnected"
	}
	rows := []Row{
		{Label: "Session", Value: vm.session},
		{Label: "Status", Value: state, Tone: stateTone(s.Status, vm.connected)},
		{Label: "Account", Value: account(s.Account)},
		{Label: "Chats", Value: vm.chats(s)},
		{Label: "Uptime", Value: vm.uptime(s.StartedAt)},
	}
	if msg := s.ErrorText(); msg != "" {
		rows = append(rows, Row{Label: "Error", Value: msg, Tone: "pending"})
	}
	return rows
}

func (vm *ViewModel) chats(s status.Snapshot) string {
	if s.SyncingChats {
		return fmt.Sprintf("%d (syncing)", s.ChatCount)
	}
	if s.ChatsSyncedAt == nil {
		return "-"
	}
	out := fmt.Sprintf("%d via %s, %s ago", s.ChatCount, s.SyncPath, formatDuration(vm.now().Sub(*s.ChatsSyncedAt)))
	if s.LastSyncDurationMs != nil {
		out += fmt.Sprintf(" (%dms)", *s.LastSyncDurationMs)
	}
	return out
}

func (vm *ViewModel) uptime(started *time.Time) string {
	if started == nil {
		return "-"
	}
	return formatDuration(vm.now().Sub(*started))
}

func stateTone(s status.State, connected bool) string {
	if !connected {
		return "off"
	}
	switch s {
	case status.Running:
		return "ok"
	case status.Starting, status.WaitingQR:
		return "pending"
	default:
		return "off"
	}
}

func account(a *status.Account) string {
	if a == nil {
		return "-"
	}
	if a.PushName == "" {
		return a.WID
	}
	return fmt.Sprintf("%s (%s)", a.PushName, a.WID)
}

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	if m > 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%ds", int(d.Seconds()))
}
