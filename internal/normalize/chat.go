package normalize

import (
	"math"

	"github.com/tidwall/gjson"
)

// Participant is one labelled member of a chat.
type Participant struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// ChatPatch is the metadata merged into a stored chat. A nil UnreadCount or
// LastMessageAt means the source did not report it.
type ChatPatch struct {
	Name          string        `json:"name"`
	IsGroup       bool          `json:"isGroup"`
	UnreadCount   *int          `json:"unreadCount"`
	LastMessageAt *string       `json:"lastMessageAt"`
	Participants  []Participant `json:"participants"`
}

// Hints carry optional chat metadata alongside appended or replaced entries.
type Hints struct {
	Name        *string `json:"name,omitempty"`
	IsGroup     *bool   `json:"isGroup,omitempty"`
	UnreadCount *int    `json:"unreadCount,omitempty"`
}

var (
	chatNameSources = []probe{
		field("name"),
		field("formattedTitle"),
		field("pushname"),
		field("contact.name"),
		field("contact.pushname"),
	}

	participantLabelSources = []probe{
		field("name"),
		field("pushname"),
		field("shortName"),
		field("notifyName"),
	}
)

// Participants returns the participant objects embedded in a raw chat.
func Participants(raw Raw) []Raw {
	arr := raw.Get("participants")
	if !arr.IsArray() {
		return nil
	}
	var out []Raw
	arr.ForEach(func(_, p gjson.Result) bool {
		out = append(out, Raw(p.Raw))
		return true
	})
	return out
}

// ChatName returns the display name of a raw chat, falling back to its
// stripped identifier.
func ChatName(raw Raw) string {
	if name, ok := firstOf(raw, chatNameSources...); ok {
		return name
	}
	return StripSuffix(ID(raw))
}

// ChatHints returns the hints stored with a full resync of a raw chat.
func ChatHints(raw Raw) Hints {
	name, ok := firstOf(raw, field("name"), field("formattedTitle"))
	if !ok {
		name = StripSuffix(ID(raw))
	}
	isGroup := truthy(raw.Get("isGroup"))
	unread := unreadCount(raw)
	return Hints{Name: &name, IsGroup: &isGroup, UnreadCount: &unread}
}

// ChatMeta builds the metadata patch of a raw chat. participants overrides
// the embedded list when the caller fetched them separately. Participant
// labels are resolved through cache and remembered there. ok is false for
// chats without an identifier.
func ChatMeta(raw Raw, participants []Raw, cache Cache) (chatID string, patch ChatPatch, ok bool) {
	chatID = ID(raw)
	if chatID == "" {
		return "", ChatPatch{}, false
	}

	patch = ChatPatch{
		Name:          ChatName(raw),
		IsGroup:       truthy(raw.Get("isGroup")),
		UnreadCount:   reportedUnread(raw),
		LastMessageAt: lastMessageAt(raw),
		Participants:  []Participant{},
	}

	for _, p := range participants {
		id := ID(p)
		if id == "" {
			continue
		}
		key := StripSuffix(id)
		label, found := firstOf(p, participantLabelSources...)
		if !found && cache != nil {
			label, found = cache.Label(key)
		}
		if !found || label == "" {
			label = key
		}
		if label == "" {
			continue
		}
		if cache != nil {
			cache.Remember(key, label)
		}
		patch.Participants = append(patch.Participants, Participant{ID: id, Label: label})
	}
	return chatID, patch, true
}

func lastMessageAt(raw Raw) *string {
	r := raw.Get("timestamp")
	if !truthy(r) {
		return nil
	}
	v, ok := number(r)
	if !ok {
		return nil
	}
	return isoMillis(v * 1000)
}

func reportedUnread(raw Raw) *int {
	v, ok := number(raw.Get("unreadCount"))
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	n := int(v)
	return &n
}

func unreadCount(raw Raw) int {
	v, ok := number(raw.Get("unreadCount"))
	if !ok || math.IsNaN(v) {
		return 0
	}
	return int(v)
}
