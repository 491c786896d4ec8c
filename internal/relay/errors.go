package relay

import "errors"

var (
	// ErrNotRunning is returned by operations that need a ready session.
	ErrNotRunning = errors.New("relay is not running")
	// ErrChatNotFound is returned when the session does not know a chat.
	ErrChatNotFound = errors.New("chat not found")
	// ErrHeadless is returned when showing the window of a headless session.
	ErrHeadless = errors.New("relay is running in headless mode; set WPRELAY_HEADLESS=false to enable the session window")
	// ErrNoWindow is returned when the client has no window to show.
	ErrNoWindow = errors.New("relay session window is not available")
	// ErrNoMessages is returned when a chat cannot load its history.
	ErrNoMessages = errors.New("chat cannot fetch messages")
)

// FallbackError reports that the evaluation path could not list chats.
type FallbackError struct {
	Reason string
	Err    error
}

func (e *FallbackError) Error() string {
	return "Fallback chat sync unavailable: " + e.Reason
}

func (e *FallbackError) Unwrap() error {
	return e.Err
}
