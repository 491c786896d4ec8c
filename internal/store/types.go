package store

import "github.com/matheus3301/wprelay/internal/normalize"

// DefaultEntryLimit is the number of entries ListEntries returns when no
// limit is given by the caller.
const DefaultEntryLimit = 500

// Chat is a stored chat record.
type Chat struct {
	ID            string                  `json:"id"`
	Name          string                  `json:"name"`
	IsGroup       bool                    `json:"isGroup"`
	UnreadCount   int                     `json:"unreadCount"`
	LastMessageAt *string                 `json:"lastMessageAt"`
	MessageCount  int                     `json:"messageCount"`
	Participants  []normalize.Participant `json:"participants"`
}

// newChat is the record a chat starts from before its first patch.
func newChat(id, name string, isGroup bool) *Chat {
	if name == "" {
		name = id
	}
	return &Chat{ID: id, Name: name, IsGroup: isGroup, Participants: []normalize.Participant{}}
}

func (c *Chat) applyHints(h normalize.Hints, requireName bool) {
	if h.Name != nil && (*h.Name != "" || !requireName) {
		c.Name = *h.Name
	}
	if h.IsGroup != nil {
		c.IsGroup = *h.IsGroup
	}
	if h.UnreadCount != nil {
		c.UnreadCount = *h.UnreadCount
	}
}
