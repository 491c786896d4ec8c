package normalize

import (
	"strings"

	"github.com/tidwall/gjson"
)

var transportSuffixes = []string{"@c.us", "@g.us", "@s.whatsapp.net", "@lid"}

// StripSuffix removes a trailing transport suffix from an identifier.
func StripSuffix(id string) string {
	for _, suffix := range transportSuffixes {
		if strings.HasSuffix(id, suffix) {
			return strings.TrimSuffix(id, suffix)
		}
	}
	return id
}

// jid reads an identifier that is either a plain string or an object
// carrying _serialized or id.
func jid(r gjson.Result) string {
	if !truthy(r) {
		return ""
	}
	if r.IsObject() {
		if s := r.Get("_serialized"); truthy(s) {
			return text(s)
		}
		if s := r.Get("id"); truthy(s) {
			return text(s)
		}
		return ""
	}
	return text(r)
}

// ID returns the identifier of a raw chat, contact or participant.
func ID(raw Raw) string {
	return jid(raw.Get("id"))
}

// MessageChatID returns the conversation a raw message belongs to: the
// recipient for own messages, the origin otherwise.
func MessageChatID(raw Raw) string {
	if truthy(raw.Get("fromMe")) {
		if to := jid(raw.Get("to")); to != "" {
			return to
		}
	}
	if from := jid(raw.Get("from")); from != "" {
		return from
	}
	return jid(raw.Get("id.remote"))
}
