// Package keys maps key events to monitor actions.
package keys

import "github.com/gdamore/tcell/v2"

// Action represents a keybinding action.
type Action struct {
	Key         tcell.Key
	Rune        rune
	Label       string
	Description string
	Handler     func()
}

// Matches returns true if the event matches this action.
func (a *Action) Matches(ev *tcell.EventKey) bool {
	if a.Key != tcell.KeyRune {
		return ev.Key() == a.Key
	}
	return ev.Key() == tcell.KeyRune && ev.Rune() == a.Rune
}

// Hint is the menu text for one action.
type Hint struct {
	Key         string
	Description string
}

// Registry holds keybindings in registration order.
type Registry struct {
	actions []*Action
}

// NewRegistry creates a new keybinding registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers a rune binding.
func (r *Registry) Add(ch rune, description string, handler func()) {
	r.actions = append(r.actions, &Action{
		Key:         tcell.KeyRune,
		Rune:        ch,
		Label:       string(ch),
		Description: description,
		Handler:     handler,
	})
}

// AddKey registers a special key binding.
func (r *Registry) AddKey(key tcell.Key, label, description string, handler func()) {
	r.actions = append(r.actions, &Action{
		Key:         key,
		Label:       label,
		Description: description,
		Handler:     handler,
	})
}

// Hints returns the menu hints in registration order.
func (r *Registry) Hints() []Hint {
	hints := make([]Hint, 0, len(r.actions))
	for _, a := range r.actions {
		hints = append(hints, Hint{Key: a.Label, Description: a.Description})
	}
	return hints
}

// HandleEvent runs the first matching action.
// Returns true if a handler matched.
func (r *Registry) HandleEvent(ev *tcell.EventKey) bool {
	for _, a := range r.actions {
		if a.Matches(ev) {
			a.Handler()
			return true
		}
	}
	return false
}
