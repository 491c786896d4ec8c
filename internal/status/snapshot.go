package status

import (
	"slices"
	"time"
)

// SyncPath records which chat listing path served the last sync.
type SyncPath string

const (
	PathNone     SyncPath = ""
	PathPrimary  SyncPath = "primary"
	PathFallback SyncPath = "fallback"
)

// MarshalJSON encodes PathNone as null.
func (p SyncPath) MarshalJSON() ([]byte, error) {
	if p == PathNone {
		return []byte("null"), nil
	}
	return []byte(`"` + string(p) + `"`), nil
}

// Account describes the linked account once the session is ready.
type Account struct {
	WID      string `json:"wid"`
	PushName string `json:"pushName"`
	Platform string `json:"platform"`
}

// Snapshot is the full relay session state as seen by observers.
type Snapshot struct {
	Status                    State      `json:"status"`
	StartedAt                 *time.Time `json:"startedAt"`
	ReadyAt                   *time.Time `json:"readyAt"`
	LastError                 *string    `json:"lastError"`
	LastQR                    *string    `json:"lastQr"`
	Account                   *Account   `json:"account"`
	ChatsSyncedAt             *time.Time `json:"chatsSyncedAt"`
	ChatCount                 int        `json:"chatCount"`
	SyncPath                  SyncPath   `json:"syncPath"`
	SyncingChats              bool       `json:"syncingChats"`
	LastSyncDurationMs        *int64     `json:"lastSyncDurationMs"`
	LastSyncPersistDurationMs *int64     `json:"lastSyncPersistDurationMs"`
	Version                   string     `json:"version"`
}

// SetError records msg as the last error. An empty msg clears it.
func (s *Snapshot) SetError(msg string) {
	if msg == "" {
		s.LastError = nil
		return
	}
	s.LastError = &msg
}

// ErrorText returns the last error or "".
func (s Snapshot) ErrorText() string {
	if s.LastError == nil {
		return ""
	}
	return *s.LastError
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.StartedAt = clonePtr(s.StartedAt)
	out.ReadyAt = clonePtr(s.ReadyAt)
	out.LastError = clonePtr(s.LastError)
	out.LastQR = clonePtr(s.LastQR)
	out.ChatsSyncedAt = clonePtr(s.ChatsSyncedAt)
	out.LastSyncDurationMs = clonePtr(s.LastSyncDurationMs)
	out.LastSyncPersistDurationMs = clonePtr(s.LastSyncPersistDurationMs)
	if s.Account != nil {
		a := *s.Account
		out.Account = &a
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// States lists every relay state in lifecycle order.
func States() []State {
	return slices.Clone(allStates)
}

var allStates = []State{Stopped, Starting, WaitingQR, Running}
