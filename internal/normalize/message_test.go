package normalize

import (
	"bytes"
	"reflect"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

// mapCache is a Cache backed by a plain map that records writes.
type mapCache struct {
	labels map[string]string
	writes []string
}

func newMapCache() *mapCache {
	return &mapCache{labels: make(map[string]string)}
}

func (c *mapCache) Label(id string) (string, bool) {
	l, ok := c.labels[id]
	return l, ok
}

func (c *mapCache) Remember(id, label string) {
	c.labels[id] = label
	c.writes = append(c.writes, id)
}

func str(e *string) string {
	if e == nil {
		return "<nil>"
	}
	return *e
}

func TestMessageIdempotent(t *testing.T) {
	raw := Raw(`{
		"id": {"_serialized": "false_123@c.us_ABC", "id": "ABC"},
		"body": "  hello there  ",
		"type": "chat",
		"timestamp": 1700000000,
		"from": "123@c.us",
		"to": "999@c.us",
		"ack": 2,
		"isForwarded": true,
		"forwardingScore": 3,
		"quotedMsgId": "Q1",
		"pollOptions": ["a", {"name": "b"}]
	}`)
	cache := newMapCache()

	first := Message(raw, cache, time.UTC)
	second := Message(raw, cache, time.UTC)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("entries differ:\n%+v\n%+v", first, second)
	}
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if !bytes.Equal(a, b) {
		t.Errorf("encoded entries differ:\n%s\n%s", a, b)
	}
}

func TestMessageFields(t *testing.T) {
	raw := Raw(`{
		"id": {"_serialized": "true_999@c.us_XYZ"},
		"body": "hi",
		"type": "chat",
		"timestamp": 1700000000,
		"fromMe": true,
		"from": "123@c.us",
		"to": "999@c.us",
		"ack": 3,
		"quotedMsgId": "Q9"
	}`)
	e := Message(raw, nil, time.UTC)

	if str(e.Timestamp) != "2023-11-14T22:13:20.000Z" {
		t.Errorf("timestamp = %s", str(e.Timestamp))
	}
	if str(e.TimestampText) != "14/11/2023, 22:13" {
		t.Errorf("timestamp_text = %s", str(e.TimestampText))
	}
	if str(e.Sender) != SelfLabel || !e.FromMe {
		t.Errorf("sender = %s fromMe = %v, want You/true", str(e.Sender), e.FromMe)
	}
	if str(e.SenderJID) != "123@c.us" {
		t.Errorf("sender_jid = %s", str(e.SenderJID))
	}
	if e.Message != "hi" || e.Type != TypeMessage {
		t.Errorf("message = %q type = %q", e.Message, e.Type)
	}
	if str(e.MessageID) != "true_999@c.us_XYZ" {
		t.Errorf("message_id = %s", str(e.MessageID))
	}
	if str(e.QuotedMessageID) != "Q9" {
		t.Errorf("quoted_message_id = %s", str(e.QuotedMessageID))
	}
	if e.Ack == nil || *e.Ack != 3 {
		t.Errorf("ack = %v, want 3", e.Ack)
	}
	if e.ForwardingScore != nil || e.IsForwarded {
		t.Errorf("forwarding = %v/%v, want nil/false", e.ForwardingScore, e.IsForwarded)
	}
	if e.HasPoll || e.PollTitle != nil || e.PollOptions != nil {
		t.Errorf("unexpected poll: %+v", e)
	}
	if e.SystemSubtype != nil {
		t.Errorf("system_subtype = %s, want nil", str(e.SystemSubtype))
	}
}

func TestTimestamp(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"seconds", `{"timestamp": 1700000000}`, "2023-11-14T22:13:20.000Z"},
		{"milliseconds", `{"timestamp": 1700000000123}`, "2023-11-14T22:13:20.123Z"},
		{"threshold is seconds", `{"timestamp": 10000000000}`, "2286-11-20T17:46:40.000Z"},
		{"above threshold is ms", `{"timestamp": 10000000001}`, "1970-04-26T17:46:40.001Z"},
		{"t fallback", `{"t": 1700000000}`, "2023-11-14T22:13:20.000Z"},
		{"nested t", `{"_data": {"t": 1700000000}}`, "2023-11-14T22:13:20.000Z"},
		{"zero skipped", `{"timestamp": 0, "t": 1700000000}`, "2023-11-14T22:13:20.000Z"},
		{"numeric string", `{"timestamp": "1700000000"}`, "2023-11-14T22:13:20.000Z"},
		{"garbage string", `{"timestamp": "soon"}`, "<nil>"},
		{"object", `{"timestamp": {"low": 1}}`, "<nil>"},
		{"missing", `{}`, "<nil>"},
		{"out of range", `{"timestamp": 9e18}`, "<nil>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := str(Timestamp(Raw(tt.raw))); got != tt.want {
				t.Errorf("Timestamp(%s) = %s, want %s", tt.raw, got, tt.want)
			}
		})
	}
}

func TestTimestampTextUsesLocation(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)
	e := Message(Raw(`{"timestamp": 1700000000}`), nil, loc)
	if got := str(e.TimestampText); got != "14/11/2023, 19:13" {
		t.Errorf("timestamp_text = %s, want 14/11/2023, 19:13", got)
	}
	if e := Message(Raw(`{}`), nil, loc); e.TimestampText != nil {
		t.Errorf("timestamp_text = %s, want nil", str(e.TimestampText))
	}
}

func TestMessageText(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"body", `{"body": "b", "caption": "c"}`, "b"},
		{"blank body falls to caption", `{"body": "   ", "caption": " c "}`, "c"},
		{"description", `{"description": "d"}`, "d"},
		{"nested body", `{"_data": {"body": "nb"}}`, "nb"},
		{"nested caption", `{"_data": {"caption": "nc"}}`, "nc"},
		{"canonical url", `{"_data": {"canonicalUrl": "https://x"}}`, "https://x"},
		{"nested text", `{"_data": {"text": "t"}}`, "t"},
		{"non-string body ignored", `{"body": 5, "caption": "c"}`, "c"},
		{"image", `{"type": "image"}`, "<image omitted>"},
		{"video", `{"type": "video"}`, "<video omitted>"},
		{"audio", `{"type": "audio"}`, "<audio omitted>"},
		{"voice note", `{"type": "ptt"}`, "<voice note>"},
		{"sticker", `{"type": "sticker"}`, "<sticker>"},
		{"document with mime", `{"type": "document", "_data": {"mimetype": "application/pdf"}}`, "<document: application/pdf>"},
		{"document", `{"type": "document"}`, "<document: file>"},
		{"ciphertext", `{"type": "ciphertext"}`, "<encrypted message>"},
		{"revoked", `{"type": "revoked"}`, "<message deleted>"},
		{"other type", `{"type": "location"}`, "<location>"},
		{"chat without text", `{"type": "chat"}`, ""},
		{"caption beats placeholder", `{"type": "image", "caption": "look"}`, "look"},
		{"empty", `{}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Message(Raw(tt.raw), nil, time.UTC)
			if e.Message != tt.want {
				t.Errorf("message = %q, want %q", e.Message, tt.want)
			}
		})
	}
}

func TestMessageType(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		subtype string
	}{
		{"chat", `{"type": "chat"}`, TypeMessage, "<nil>"},
		{"notification", `{"type": "notification"}`, TypeSystem, "<nil>"},
		{"gp2", `{"type": "gp2", "subtype": "add"}`, TypeSystem, "add"},
		{"nested type", `{"_data": {"type": "gp2"}}`, TypeSystem, "<nil>"},
		{"subtype case-insensitive", `{"type": "chat", "subtype": "Leave"}`, TypeSystem, "leave"},
		{"nested subtype", `{"_data": {"subtype": "invite"}}`, TypeSystem, "invite"},
		{"event type", `{"_data": {"eventType": "membership_approval_request"}}`, TypeSystem, "membership_approval_request"},
		{"numeric subtype skipped", `{"subtype": 7, "_data": {"subtype": "remove"}}`, TypeSystem, "remove"},
		{"unknown subtype", `{"type": "chat", "subtype": "url"}`, TypeMessage, "url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Message(Raw(tt.raw), nil, time.UTC)
			if e.Type != tt.want {
				t.Errorf("type = %q, want %q", e.Type, tt.want)
			}
			if got := str(e.SystemSubtype); got != tt.subtype {
				t.Errorf("system_subtype = %s, want %s", got, tt.subtype)
			}
		})
	}
}

func TestSenderResolution(t *testing.T) {
	t.Run("notify name", func(t *testing.T) {
		e := Message(Raw(`{"from": "1@c.us", "_data": {"notifyName": "Ann", "pushname": "A"}}`), nil, time.UTC)
		if str(e.Sender) != "Ann" {
			t.Errorf("sender = %s, want Ann", str(e.Sender))
		}
	})

	t.Run("nested sender", func(t *testing.T) {
		e := Message(Raw(`{"from": "1@c.us", "_data": {"sender": {"name": "Bea"}}}`), nil, time.UTC)
		if str(e.Sender) != "Bea" {
			t.Errorf("sender = %s, want Bea", str(e.Sender))
		}
	})

	t.Run("cache hit by author", func(t *testing.T) {
		cache := newMapCache()
		cache.labels["555"] = "Carl"
		e := Message(Raw(`{"author": "555@c.us", "from": "group@g.us"}`), cache, time.UTC)
		if str(e.Sender) != "Carl" {
			t.Errorf("sender = %s, want Carl", str(e.Sender))
		}
		if str(e.SenderJID) != "555@c.us" {
			t.Errorf("sender_jid = %s, want 555@c.us", str(e.SenderJID))
		}
		if len(cache.writes) != 0 {
			t.Errorf("cache writes = %v, want none", cache.writes)
		}
	})

	t.Run("miss remembers stripped id", func(t *testing.T) {
		cache := newMapCache()
		e := Message(Raw(`{"from": "777@s.whatsapp.net"}`), cache, time.UTC)
		if str(e.Sender) != "777" {
			t.Errorf("sender = %s, want 777", str(e.Sender))
		}
		if cache.labels["777"] != "777" {
			t.Errorf("cache = %v, want 777 remembered", cache.labels)
		}
	})

	t.Run("participant id", func(t *testing.T) {
		e := Message(Raw(`{"id": {"participant": {"_serialized": "888@lid"}}}`), nil, time.UTC)
		if str(e.Sender) != "888" || str(e.SenderJID) != "888@lid" {
			t.Errorf("sender = %s jid = %s", str(e.Sender), str(e.SenderJID))
		}
	})

	t.Run("no author", func(t *testing.T) {
		e := Message(Raw(`{"body": "x"}`), nil, time.UTC)
		if e.Sender != nil || e.SenderJID != nil {
			t.Errorf("sender = %s jid = %s, want nil", str(e.Sender), str(e.SenderJID))
		}
	})
}

func TestPollExtraction(t *testing.T) {
	t.Run("options and title", func(t *testing.T) {
		raw := Raw(`{
			"type": "poll_creation",
			"pollName": "Lunch?",
			"pollOptions": [" pizza ", {"name": "sushi"}, {"optionName": {"defaultText": "tacos"}}, null, {"other": 1}]
		}`)
		e := Message(raw, nil, time.UTC)
		if !e.HasPoll {
			t.Error("has_poll = false")
		}
		if str(e.PollTitle) != "Lunch?" {
			t.Errorf("poll_title = %s", str(e.PollTitle))
		}
		want := []string{"pizza", "sushi", "tacos"}
		if !reflect.DeepEqual(e.PollOptions, want) {
			t.Errorf("poll_options = %v, want %v", e.PollOptions, want)
		}
	})

	t.Run("nested sources", func(t *testing.T) {
		raw := Raw(`{
			"pollUpdates": {"pollCreationMessageKeyData": {"name": "Q", "options": [{"localizedText": "yes"}]}},
			"_data": {"pollCreationMessageKeyData": {"options": [{"optionNameMessage": {"text": "no"}}]}}
		}`)
		e := Message(raw, nil, time.UTC)
		if str(e.PollTitle) != "Q" {
			t.Errorf("poll_title = %s, want Q", str(e.PollTitle))
		}
		if !reflect.DeepEqual(e.PollOptions, []string{"yes", "no"}) {
			t.Errorf("poll_options = %v", e.PollOptions)
		}
	})

	t.Run("type alone", func(t *testing.T) {
		e := Message(Raw(`{"type": "poll_creation", "body": "poll: x"}`), nil, time.UTC)
		if !e.HasPoll || e.PollOptions != nil || e.PollTitle != nil {
			t.Errorf("entry = %+v", e)
		}
		if e.Message != "poll: x" {
			t.Errorf("message = %q", e.Message)
		}
	})

	t.Run("poll updates alone", func(t *testing.T) {
		e := Message(Raw(`{"pollUpdates": {}}`), nil, time.UTC)
		if !e.HasPoll {
			t.Error("has_poll = false")
		}
	})
}

func TestIdentifierCoercion(t *testing.T) {
	e := Message(Raw(`{"id": {"id": "ONLY"}, "ack": "2", "forwardingScore": 4.0}`), nil, time.UTC)
	if str(e.MessageID) != "ONLY" {
		t.Errorf("message_id = %s, want ONLY", str(e.MessageID))
	}
	if e.Ack != nil {
		t.Errorf("ack = %d, want nil for string", *e.Ack)
	}
	if e.ForwardingScore == nil || *e.ForwardingScore != 4 {
		t.Errorf("forwarding_score = %v, want 4", e.ForwardingScore)
	}
}

func TestEntryJSONNulls(t *testing.T) {
	e := Message(Raw(`{}`), nil, time.UTC)
	data, err := json.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"timestamp", "sender", "poll_options", "ack", "system_subtype"} {
		v, ok := m[k]
		if !ok || v != nil {
			t.Errorf("%s = %v (present %v), want null", k, v, ok)
		}
	}
}

func TestStripSuffix(t *testing.T) {
	for in, want := range map[string]string{
		"1@c.us":           "1",
		"g@g.us":           "g",
		"2@s.whatsapp.net": "2",
		"3@lid":            "3",
		"4@broadcast":      "4@broadcast",
		"":                 "",
		"status@c.us@c.us": "status@c.us",
	} {
		if got := StripSuffix(in); got != want {
			t.Errorf("StripSuffix(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMessageChatID(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`{"from": "a@c.us", "to": "me@c.us"}`, "a@c.us"},
		{`{"fromMe": true, "from": "me@c.us", "to": "b@c.us"}`, "b@c.us"},
		{`{"id": {"remote": {"_serialized": "g@g.us"}}}`, "g@g.us"},
	}
	for _, tt := range tests {
		if got := MessageChatID(Raw(tt.raw)); got != tt.want {
			t.Errorf("MessageChatID(%s) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
