package status

import (
	"fmt"
	"slices"
	"sync"

	"github.com/matheus3301/wprelay/internal/bus"
)

// State represents the relay session state.
type State string

const (
	Stopped   State = "stopped"
	Starting  State = "starting"
	WaitingQR State = "waiting_qr"
	Running   State = "running"
)

// validTransitions defines allowed state transitions. Every state may stop;
// a running session never goes back to waiting for a QR scan.
var validTransitions = map[State][]State{
	Stopped:   {Starting},
	Starting:  {WaitingQR, Running, Stopped},
	WaitingQR: {WaitingQR, Running, Stopped},
	Running:   {Stopped},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to State) bool {
	if from == to && from != WaitingQR {
		return true
	}
	return slices.Contains(validTransitions[from], to)
}

// Machine owns the relay session snapshot. All mutations go through Update,
// which enforces state transitions and publishes the new snapshot.
type Machine struct {
	mu      sync.RWMutex
	snap    Snapshot
	version string
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Stopped state.
func NewMachine(b *bus.Bus, version string) *Machine {
	return &Machine{
		snap:    Snapshot{Status: Stopped, Version: version},
		version: version,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap.Status
}

// Snapshot returns a copy of the current snapshot.
func (m *Machine) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap.clone()
}

// Update applies fn to a copy of the snapshot and commits it. If fn changes
// the status to a state not reachable from the current one, nothing is
// committed and an error is returned. The committed snapshot is published.
func (m *Machine) Update(fn func(s *Snapshot)) (Snapshot, error) {
	m.mu.Lock()
	next := m.snap.clone()
	fn(&next)
	if !CanTransition(m.snap.Status, next.Status) {
		from := m.snap.Status
		m.mu.Unlock()
		return m.Snapshot(), fmt.Errorf("invalid transition from %s to %s", from, next.Status)
	}
	next.Version = m.version
	m.snap = next
	out := next.clone()
	m.mu.Unlock()

	m.publish(out)
	return out, nil
}

// Transition moves to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	_, err := m.Update(func(s *Snapshot) { s.Status = to })
	return err
}

// Reset discards the snapshot and returns to Stopped.
func (m *Machine) Reset() Snapshot {
	m.mu.Lock()
	m.snap = Snapshot{Status: Stopped, Version: m.version}
	out := m.snap.clone()
	m.mu.Unlock()

	m.publish(out)
	return out
}

func (m *Machine) publish(s Snapshot) {
	if m.bus != nil {
		m.bus.Emit(bus.KindStatus, s)
	}
}
