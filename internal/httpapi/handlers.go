package httpapi

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/matheus3301/wprelay/internal/normalize"
	"github.com/matheus3301/wprelay/internal/qr"
	"github.com/matheus3301/wprelay/internal/relay"
	"github.com/matheus3301/wprelay/internal/store"
)

type okBody struct {
	OK bool `json:"ok"`
}

func (h *handler) status(w http.ResponseWriter, _ *http.Request) {
	h.respond(w, http.StatusOK, h.relay.Status())
}

func (h *handler) start(w http.ResponseWriter, r *http.Request) {
	snap, err := h.relay.Start(r.Context())
	if err != nil {
		h.fail(w, err, "Unable to start relay")
		return
	}
	h.respond(w, http.StatusOK, snap)
}

func (h *handler) stop(w http.ResponseWriter, r *http.Request) {
	snap, err := h.relay.Stop(r.Context())
	if err != nil {
		h.fail(w, err, "Unable to stop relay")
		return
	}
	h.respond(w, http.StatusOK, snap)
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	snap, err := h.relay.Logout(r.Context())
	if err != nil {
		h.fail(w, err, "Unable to logout relay session")
		return
	}
	h.respond(w, http.StatusOK, snap)
}

// syncChats accepts the mode as ?mode= or a {"mode": ...} body.
func (h *handler) syncChats(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("mode")
	if mode == "" && r.Body != nil {
		var body struct {
			Mode string `json:"mode"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			h.respond(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
			return
		}
		mode = body.Mode
	}

	snap, err := h.relay.SyncChats(r.Context(), relay.SyncOptions{Mode: relay.Mode(mode)})
	if err != nil {
		h.fail(w, err, "Unable to sync chats")
		return
	}
	h.respond(w, http.StatusOK, snap)
}

func (h *handler) syncChat(w http.ResponseWriter, r *http.Request) {
	chatID, ok := h.chatID(w, r)
	if !ok {
		return
	}
	limit, ok := h.limit(w, r, 0)
	if !ok {
		return
	}

	entries, err := h.relay.EnsureChatSynced(r.Context(), chatID, relay.EnsureOptions{Limit: limit})
	if err != nil {
		h.fail(w, err, "Unable to sync chat")
		return
	}
	h.respond(w, http.StatusOK, struct {
		ChatID string `json:"chatId"`
		Count  int    `json:"count"`
	}{chatID, len(entries)})
}

func (h *handler) showBrowser(w http.ResponseWriter, r *http.Request) {
	if err := h.relay.ShowBrowserWindow(r.Context()); err != nil {
		h.fail(w, err, "Unable to show relay browser")
		return
	}
	h.respond(w, http.StatusOK, okBody{OK: true})
}

// qrImage serves the pending pairing code as a PNG.
func (h *handler) qrImage(w http.ResponseWriter, _ *http.Request) {
	code := h.relay.QRCode()
	if code == "" {
		h.respond(w, http.StatusNotFound, errorBody{Error: "No pending QR code"})
		return
	}
	png, err := qr.PNG(code)
	if err != nil {
		h.fail(w, err, "Unable to render QR code")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

func (h *handler) clearLogs(w http.ResponseWriter, _ *http.Request) {
	h.logs.Clear()
	h.respond(w, http.StatusOK, okBody{OK: true})
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	h.respond(w, http.StatusOK, struct {
		OK        bool   `json:"ok"`
		Timestamp string `json:"timestamp"`
	}{true, normalize.FormatTime(time.Now())})
}

func (h *handler) listChats(w http.ResponseWriter, r *http.Request) {
	chats, err := h.store.ListChats(r.Context())
	if err != nil {
		h.fail(w, err, "Unable to list chats")
		return
	}
	if chats == nil {
		chats = []store.Chat{}
	}
	h.respond(w, http.StatusOK, struct {
		Chats []store.Chat `json:"chats"`
	}{chats})
}

func (h *handler) chatEntries(w http.ResponseWriter, r *http.Request) {
	chatID, ok := h.chatID(w, r)
	if !ok {
		return
	}
	limit, ok := h.limit(w, r, store.DefaultEntryLimit)
	if !ok {
		return
	}

	meta, err := h.store.GetChat(r.Context(), chatID)
	if err != nil {
		h.fail(w, err, "Unable to load chat")
		return
	}
	if meta == nil {
		h.respond(w, http.StatusNotFound, errorBody{Error: "Chat not found"})
		return
	}
	entries, err := h.store.ListEntries(r.Context(), chatID, limit)
	if err != nil {
		h.fail(w, err, "Unable to load entries")
		return
	}
	label := meta.Name
	if label == "" {
		label = chatID
	}
	h.respond(w, http.StatusOK, struct {
		ChatID  string            `json:"chatId"`
		Label   string            `json:"label"`
		Entries []normalize.Entry `json:"entries"`
	}{chatID, label, entries})
}

func (h *handler) clearChats(w http.ResponseWriter, r *http.Request) {
	if err := h.store.ClearAll(r.Context()); err != nil {
		h.fail(w, err, "Unable to clear chats")
		return
	}
	h.respond(w, http.StatusOK, okBody{OK: true})
}

func (h *handler) chatID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := url.PathUnescape(chi.URLParam(r, "chatID"))
	id = strings.TrimSpace(id)
	if err != nil || id == "" {
		h.respond(w, http.StatusBadRequest, errorBody{Error: "invalid chat id"})
		return "", false
	}
	return id, true
}

// limit reads ?limit=. Missing, zero or negative values give def.
func (h *handler) limit(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		h.respond(w, http.StatusBadRequest, errorBody{Error: "invalid limit"})
		return 0, false
	}
	if n <= 0 {
		return def, true
	}
	return n, true
}
