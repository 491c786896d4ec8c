package relay

import (
	"strings"
	"time"
)

// Mode selects how chats are listed.
type Mode string

const (
	// ModeAuto tries the primary listing and falls back after retries.
	ModeAuto Mode = "auto"
	// ModePrimary uses only the primary listing.
	ModePrimary Mode = "primary"
	// ModeFallback uses only the evaluation listing.
	ModeFallback Mode = "fallback"
)

// ParseMode parses a mode name, ignoring case and surrounding space.
func ParseMode(s string) (Mode, bool) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeAuto, ModePrimary, ModeFallback:
		return m, true
	default:
		return "", false
	}
}

// ResolveMode returns requested when it names a mode, def otherwise.
func ResolveMode(requested Mode, def Mode) Mode {
	if m, ok := ParseMode(string(requested)); ok {
		return m
	}
	return def
}

// Config controls a Manager.
type Config struct {
	Mode           Mode
	RetryAttempts  int
	RetryDelay     time.Duration
	AttemptTimeout time.Duration
	ResyncDelay    time.Duration
	MessageLimit   int
	Headless       bool
	ViewerPath     string
	// SessionDir is the relay session directory. Client state lives in its
	// relay-session subdirectory.
	SessionDir string
	// Location formats entry timestamp labels.
	Location *time.Location
	Version  string
}

// DefaultConfig returns the built-in relay settings.
func DefaultConfig() Config {
	return Config{
		Mode:           ModeAuto,
		RetryAttempts:  2,
		RetryDelay:     250 * time.Millisecond,
		AttemptTimeout: 30 * time.Second,
		ResyncDelay:    15 * time.Second,
		MessageLimit:   2500,
		Headless:       true,
		Location:       time.Local,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	c.Mode = ResolveMode(c.Mode, def.Mode)
	if c.RetryAttempts < 1 {
		c.RetryAttempts = 1
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	}
	if c.ResyncDelay < 0 {
		c.ResyncDelay = 0
	}
	if c.MessageLimit <= 0 {
		c.MessageLimit = def.MessageLimit
	}
	if c.Location == nil {
		c.Location = def.Location
	}
	return c
}
