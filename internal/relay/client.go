package relay

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/matheus3301/wprelay/internal/normalize"
	"github.com/matheus3301/wprelay/internal/status"
	"go.uber.org/zap"
)

// Client is a linked-device session driven by the relay.
type Client interface {
	// Initialize connects the session. Lifecycle events are delivered to the
	// handler given to the factory, possibly before Initialize returns.
	Initialize(ctx context.Context) error
	Destroy(ctx context.Context) error
	Logout(ctx context.Context) error

	// GetChats is the primary chat listing.
	GetChats(ctx context.Context) ([]Chat, error)
	// GetChatByID returns nil and no error for unknown chats.
	GetChatByID(ctx context.Context, id string) (Chat, error)
	// Evaluate runs a read-only script against the session's internal
	// object model.
	Evaluate(ctx context.Context, script string) (*EvalResult, error)

	Account() *status.Account
}

// Chat is a raw chat handle.
type Chat interface {
	Raw() normalize.Raw
}

// MessageFetcher is implemented by chats that can load their history.
type MessageFetcher interface {
	FetchMessages(ctx context.Context, limit int) ([]normalize.Raw, error)
}

// ParticipantFetcher is implemented by chats that load participants lazily.
type ParticipantFetcher interface {
	FetchParticipants(ctx context.Context) ([]normalize.Raw, error)
}

// WindowShower is implemented by clients that can bring their session
// window to the foreground.
type WindowShower interface {
	ShowWindow(ctx context.Context) error
}

// EvalResult is the outcome of Evaluate. Rows are JSON objects.
type EvalResult struct {
	OK    bool              `json:"ok"`
	Rows  []json.RawMessage `json:"rows"`
	Error string            `json:"error,omitempty"`
}

// ClientOptions configure a new client.
type ClientOptions struct {
	// DataDir holds the client's persistent session state.
	DataDir    string
	Headless   bool
	ViewerPath string
	Logger     *zap.Logger
}

// EventHandler receives client lifecycle events.
type EventHandler func(evt any)

// ClientFactory builds a client that reports events to handler.
type ClientFactory func(opts ClientOptions, handler EventHandler) (Client, error)

// Client events.
type (
	// QR carries a pairing code to scan.
	QR struct{ Code string }
	// Authenticated is sent once pairing or resume succeeds.
	Authenticated struct{}
	// AuthFailure is sent when credentials are rejected.
	AuthFailure struct{ Message string }
	// Ready is sent when the session can list chats.
	Ready struct{}
	// Disconnected is sent when the session is gone for good.
	Disconnected struct{ Reason string }
	// ChangeState reports a connection state change.
	ChangeState struct{ State string }
	// LoadingScreen reports initial sync progress.
	LoadingScreen struct {
		Percent int
		Text    string
	}
	// Message carries a live message.
	Message struct{ Raw normalize.Raw }
	// Fatal reports a client error that does not end the session.
	Fatal struct{ Err error }
)
