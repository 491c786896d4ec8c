package httpapi

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/matheus3301/wprelay/internal/relay"
	"go.uber.org/zap"
)

type errorBody struct {
	Error string `json:"error"`
}

func (h *handler) respond(w http.ResponseWriter, code int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(data); err != nil {
		h.logger.Debug("failed to write response", zap.Error(err))
	}
}

// fail writes err as {"error": msg}. fallback is used for errors without
// a message.
func (h *handler) fail(w http.ResponseWriter, err error, fallback string) {
	msg := err.Error()
	if msg == "" {
		msg = fallback
	}
	h.respond(w, errorStatus(err), errorBody{Error: msg})
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, relay.ErrChatNotFound):
		return http.StatusNotFound
	case errors.Is(err, relay.ErrNotRunning),
		errors.Is(err, relay.ErrHeadless),
		errors.Is(err, relay.ErrNoWindow),
		errors.Is(err, relay.ErrNoMessages):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
