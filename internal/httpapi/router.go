// Package httpapi serves the relay over HTTP: session control, the live log
// stream and read access to stored chats.
package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/matheus3301/wprelay/internal/api"
	"github.com/matheus3301/wprelay/internal/logring"
	"github.com/matheus3301/wprelay/internal/normalize"
	"github.com/matheus3301/wprelay/internal/store"
	"go.uber.org/zap"
)

// ChatStore is the read side of the chat store.
type ChatStore interface {
	ListChats(ctx context.Context) ([]store.Chat, error)
	GetChat(ctx context.Context, chatID string) (*store.Chat, error)
	ListEntries(ctx context.Context, chatID string, limit int) ([]normalize.Entry, error)
	ClearAll(ctx context.Context) error
}

// Deps are the collaborators of the router. Metrics may be nil.
type Deps struct {
	Relay   api.Controller
	Store   ChatStore
	Logs    *logring.Ring
	Metrics http.Handler
	Logger  *zap.Logger
}

type handler struct {
	relay  api.Controller
	store  ChatStore
	logs   *logring.Ring
	logger *zap.Logger
}

// NewRouter builds the HTTP routes.
func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	h := &handler{relay: d.Relay, store: d.Store, logs: d.Logs, logger: d.Logger}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(d.Logger))

	r.Route("/relay", func(r chi.Router) {
		r.Get("/status", h.status)
		r.Get("/qr", h.qrImage)
		r.Post("/start", h.start)
		r.Post("/stop", h.stop)
		r.Post("/logout", h.logout)
		r.Post("/sync", h.syncChats)
		r.Post("/chats/{chatID}/sync", h.syncChat)
		r.Post("/show-browser", h.showBrowser)
		r.Get("/logs/stream", h.streamLogs)
		r.Post("/logs/clear", h.clearLogs)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.health)
		r.Get("/chats", h.listChats)
		r.Get("/chats/{chatID}/entries", h.chatEntries)
		r.Get("/chats/{chatID}/messages", h.chatEntries)
		r.Post("/chats/clear", h.clearChats)
	})

	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}
	return r
}
