package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/matheus3301/wprelay/internal/logring"
	"go.uber.org/zap"
)

// keepAlive is the interval between SSE comment pings.
const keepAlive = 25 * time.Second

// streamLogs replays the buffered log lines as server-sent events and then
// follows new lines until the client goes away.
func (h *handler) streamLogs(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	backlog, lines, stop := h.logs.Follow(64)
	defer stop()

	for _, l := range backlog {
		if err := writeEvent(w, l); err != nil {
			return
		}
	}
	if err := rc.Flush(); err != nil {
		h.logger.Debug("log stream cannot flush", zap.Error(err))
		return
	}

	ping := time.NewTicker(keepAlive)
	defer ping.Stop()
	for {
		select {
		case l := <-lines:
			if err := writeEvent(w, l); err != nil {
				return
			}
		case <-ping.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// writeEvent frames one line as an event. Each line of a multi-line text
// gets its own data field.
func writeEvent(w io.Writer, l logring.Line) error {
	var b strings.Builder
	if l.ID != "" {
		fmt.Fprintf(&b, "id: %s\n", l.ID)
	}
	for line := range strings.SplitSeq(lineBreaks.Replace(l.Text), "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")
	_, err := io.WriteString(w, b.String())
	return err
}
