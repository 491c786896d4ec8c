package normalize

import (
	"math"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Entry types.
const (
	TypeMessage = "message"
	TypeSystem  = "system"
)

// SelfLabel is the sender label of messages authored by the linked account.
const SelfLabel = "You"

// Timestamps above this value are already milliseconds.
const msThreshold = 10_000_000_000

// maxDateMs is the largest representable instant, in either direction.
const maxDateMs = 8.64e15

const (
	isoLayout   = "2006-01-02T15:04:05.000Z"
	labelLayout = "02/01/2006, 15:04"
)

var systemTypes = map[string]bool{
	"notification": true,
	"gp2":          true,
}

var systemSubtypes = map[string]bool{
	"system":                       true,
	"add":                          true,
	"invite":                       true,
	"remove":                       true,
	"leave":                        true,
	"linked_group_join":            true,
	"v4_add_invite_join":           true,
	"membership_approval_request":  true,
	"membership_approval":          true,
	"description":                  true,
	"subject":                      true,
	"announce":                     true,
	"icon":                         true,
	"create":                       true,
	"limit_sharing_system_message": true,
	"member_add_mode":              true,
	"restrict":                     true,
	"admin":                        true,
}

// Entry is the canonical form of one message.
type Entry struct {
	Timestamp       *string  `json:"timestamp"`
	TimestampText   *string  `json:"timestamp_text"`
	Sender          *string  `json:"sender"`
	SenderJID       *string  `json:"sender_jid"`
	Message         string   `json:"message"`
	Type            string   `json:"type"`
	HasPoll         bool     `json:"has_poll"`
	PollTitle       *string  `json:"poll_title"`
	PollOptions     []string `json:"poll_options"`
	FromMe          bool     `json:"from_me"`
	MessageID       *string  `json:"message_id"`
	QuotedMessageID *string  `json:"quoted_message_id"`
	Ack             *int     `json:"ack"`
	IsForwarded     bool     `json:"is_forwarded"`
	ForwardingScore *int     `json:"forwarding_score"`
	SystemSubtype   *string  `json:"system_subtype"`
}

// Time parses the entry timestamp. ok is false for entries without one.
func (e Entry) Time() (time.Time, bool) {
	if e.Timestamp == nil {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, *e.Timestamp)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

var (
	timestampSources = []string{"timestamp", "t", "_data.t"}

	textSources = []probe{
		trimmed("body"),
		trimmed("caption"),
		trimmed("description"),
		trimmed("_data.body"),
		trimmed("_data.caption"),
		trimmed("_data.canonicalUrl"),
		trimmed("_data.text"),
	}

	typeSources = []probe{field("type"), field("_data.type")}

	subtypeSources = []string{"subtype", "_data.subtype", "_data.eventType"}

	senderNameSources = []probe{
		field("_data.notifyName"),
		field("_data.pushname"),
		field("_data.sender.shortName"),
		field("_data.sender.name"),
		field("_data.name"),
	}

	authorSources = []probe{jidAt("author"), jidAt("from"), jidAt("id.participant")}

	messageIDSources = []probe{field("id._serialized"), field("id.id")}
)

// Message normalizes one raw message. Labels missing from cache are
// remembered as their stripped identifier. loc controls timestamp_text and
// defaults to the local zone.
func Message(raw Raw, cache Cache, loc *time.Location) Entry {
	ts := Timestamp(raw)
	subtype := systemSubtype(raw)
	poll := extractPoll(raw)

	content, ok := firstOf(raw, textSources...)
	if !ok {
		content = describeMedia(raw)
	}

	e := Entry{
		Timestamp:       ts,
		TimestampText:   timestampLabel(ts, loc),
		Sender:          senderLabel(raw, cache),
		SenderJID:       optional(firstOf(raw, authorSources...)),
		Message:         content,
		Type:            entryType(raw, subtype),
		HasPoll:         poll.has,
		PollTitle:       poll.title,
		PollOptions:     poll.options,
		FromMe:          truthy(raw.Get("fromMe")),
		MessageID:       optional(firstOf(raw, messageIDSources...)),
		QuotedMessageID: optional(firstOf(raw, field("quotedMsgId"))),
		Ack:             integer(raw.Get("ack")),
		IsForwarded:     truthy(raw.Get("isForwarded")),
		ForwardingScore: integer(raw.Get("forwardingScore")),
		SystemSubtype:   subtype,
	}
	return e
}

// Timestamp returns the ISO-8601 UTC time of a raw message, reading epoch
// seconds or milliseconds from the first truthy source.
func Timestamp(raw Raw) *string {
	var src gjson.Result
	for _, path := range timestampSources {
		if r := raw.Get(path); truthy(r) {
			src = r
			break
		}
	}
	v, ok := number(src)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	ms := v
	if v <= msThreshold {
		ms = v * 1000
	}
	return isoMillis(ms)
}

// FormatTime renders t the way entry timestamps are stored.
func FormatTime(t time.Time) string {
	return t.UTC().Format(isoLayout)
}

func isoMillis(ms float64) *string {
	ms = math.Trunc(ms)
	if math.Abs(ms) > maxDateMs {
		return nil
	}
	s := time.UnixMilli(int64(ms)).UTC().Format(isoLayout)
	return &s
}

func timestampLabel(ts *string, loc *time.Location) *string {
	if ts == nil {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, *ts)
	if err != nil {
		return nil
	}
	if loc == nil {
		loc = time.Local
	}
	s := t.In(loc).Format(labelLayout)
	return &s
}

func systemSubtype(raw Raw) *string {
	for _, path := range subtypeSources {
		r := raw.Get(path)
		if !truthy(r) || r.Type == gjson.Number {
			continue
		}
		if s := strings.ToLower(text(r)); s != "" {
			return &s
		}
	}
	return nil
}

func entryType(raw Raw, subtype *string) string {
	if typ, ok := firstOf(raw, typeSources...); ok && systemTypes[typ] {
		return TypeSystem
	}
	if subtype != nil && systemSubtypes[*subtype] {
		return TypeSystem
	}
	return TypeMessage
}

func senderLabel(raw Raw, cache Cache) *string {
	if truthy(raw.Get("fromMe")) {
		s := SelfLabel
		return &s
	}
	if name, ok := firstOf(raw, senderNameSources...); ok {
		return &name
	}
	author, ok := firstOf(raw, authorSources...)
	if !ok {
		return nil
	}
	key := StripSuffix(author)
	if cache != nil {
		if label, ok := cache.Label(key); ok {
			return &label
		}
		cache.Remember(key, key)
	}
	return &key
}

// integer reads a JSON number without coercing other types.
func integer(r gjson.Result) *int {
	if r.Type != gjson.Number || math.IsNaN(r.Num) || math.IsInf(r.Num, 0) {
		return nil
	}
	n := int(r.Num)
	return &n
}

func optional(s string, ok bool) *string {
	if !ok {
		return nil
	}
	return &s
}
