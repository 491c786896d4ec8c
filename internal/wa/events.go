package wa

import (
	"fmt"

	"github.com/matheus3301/wprelay/internal/relay"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
)

func zapEvent(name string) zap.Field {
	return zap.String("event", name)
}

// handle translates whatsmeow events into relay client events.
func (c *Client) handle(rawEvt any) {
	switch evt := rawEvt.(type) {
	case *events.PairSuccess:
		c.mu.Lock()
		c.authed = true
		c.mu.Unlock()
		c.emit(relay.Authenticated{})
	case *events.PairError:
		c.emit(relay.AuthFailure{Message: evt.Error.Error()})
	case *events.Connected:
		c.handleConnected()
	case *events.Disconnected:
		c.emit(relay.ChangeState{State: "DISCONNECTED"})
	case *events.KeepAliveTimeout:
		c.emit(relay.ChangeState{State: "TIMEOUT"})
	case *events.KeepAliveRestored:
		c.emit(relay.ChangeState{State: "CONNECTED"})
	case *events.LoggedOut:
		c.emit(relay.Disconnected{Reason: evt.Reason.String()})
	case *events.StreamReplaced:
		c.emit(relay.Disconnected{Reason: "CONFLICT"})
	case *events.ClientOutdated:
		c.emit(relay.Fatal{Err: fmt.Errorf("client outdated")})
	case *events.TemporaryBan:
		c.emit(relay.Fatal{Err: fmt.Errorf("temporary ban: %s", evt.String())})
	case *events.ConnectFailure:
		c.emit(relay.Fatal{Err: fmt.Errorf("connect failure: %s %s", evt.Reason, evt.Message)})
	case *events.HistorySync:
		c.handleHistorySync(evt)
	case *events.Message:
		c.handleMessage(evt)
	}
}

// handleConnected reports authentication and readiness on the first
// connection. Later reconnects are only state changes.
func (c *Client) handleConnected() {
	c.mu.Lock()
	first := !c.ready
	c.ready = true
	authed := c.authed
	c.authed = true
	c.mu.Unlock()

	if !first {
		c.emit(relay.ChangeState{State: "CONNECTED"})
		return
	}
	if !authed {
		c.emit(relay.Authenticated{})
	}
	c.emit(relay.Ready{})
}

func (c *Client) handleMessage(evt *events.Message) {
	if evt.Info.Chat.Server == types.BroadcastServer {
		return
	}
	raw := messageShape(evt.Info, evt.Message, c.ownJID(), nil)
	chatID := evt.Info.Chat.ToNonAD().String()
	if !c.journal.add(chatID, evt.Info.ID, evt.Info.Timestamp, raw) {
		return
	}
	c.emit(relay.Message{Raw: raw})
}

func (c *Client) handleHistorySync(evt *events.HistorySync) {
	data := evt.Data
	if data == nil {
		return
	}

	own := c.ownJID()
	count := 0
	for _, conv := range data.GetConversations() {
		chat, err := types.ParseJID(conv.GetID())
		if err != nil {
			c.logger.Debug("skipping history conversation", zap.String("jid", conv.GetID()), zap.Error(err))
			continue
		}
		chat = chat.ToNonAD()
		if chat.Server == types.BroadcastServer {
			continue
		}
		name := conv.GetName()
		if name == "" {
			name = conv.GetDisplayName()
		}
		c.journal.touch(chat.String(), name, int(conv.GetUnreadCount()))

		for _, hm := range conv.GetMessages() {
			web := hm.GetMessage()
			if web == nil || web.GetMessage() == nil {
				continue
			}
			info := historyInfo(chat, web)
			if c.journal.add(chat.String(), info.ID, info.Timestamp, messageShape(info, web.GetMessage(), own, historyAck(web))) {
				count++
			}
		}
	}

	c.emit(relay.LoadingScreen{
		Percent: int(data.GetProgress()),
		Text:    fmt.Sprintf("History sync: %d messages", count),
	})
}
