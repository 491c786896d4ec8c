package relay

import (
	"context"
	"errors"
	"fmt"

	"github.com/matheus3301/wprelay/internal/normalize"
)

// ChatsScript lists chats from the session's internal store. Rows carry
// id, name, timestamp, isGroup and unreadCount. The device store keeps no
// activity time or unread count, so those are NULL.
const ChatsScript = `
SELECT jid AS id,
       MAX(name) AS name,
       NULL AS timestamp,
       jid LIKE '%@g.us' AS isGroup,
       NULL AS unreadCount
FROM (
	SELECT their_jid AS jid,
	       COALESCE(NULLIF(full_name, ''), NULLIF(push_name, ''), NULLIF(business_name, ''), NULLIF(first_name, '')) AS name
	FROM whatsmeow_contacts WHERE our_jid = @our
	UNION ALL
	SELECT chat_jid AS jid, NULL AS name
	FROM whatsmeow_chat_settings WHERE our_jid = @our
)
WHERE jid NOT LIKE '%@broadcast'
GROUP BY jid`

// ContactsScript lists contacts from the session's internal store.
const ContactsScript = `
SELECT their_jid AS id,
       full_name AS name,
       push_name AS pushname,
       first_name AS shortName,
       business_name AS formattedName,
       NULL AS displayName
FROM whatsmeow_contacts WHERE our_jid = @our`

// rowChat is a chat listed by the fallback path.
type rowChat normalize.Raw

func (c rowChat) Raw() normalize.Raw { return normalize.Raw(c) }

func fallbackChats(ctx context.Context, client Client) ([]Chat, error) {
	rows, err := evaluate(ctx, client, ChatsScript, "chat listing")
	if err != nil {
		return nil, &FallbackError{Reason: err.Error(), Err: err}
	}
	chats := make([]Chat, 0, len(rows))
	for _, row := range rows {
		chats = append(chats, rowChat(row))
	}
	return chats, nil
}

// contactLister reads contacts through the evaluation path.
type contactLister struct {
	client Client
}

func (l contactLister) ListContacts(ctx context.Context) ([]normalize.Raw, error) {
	rows, err := evaluate(ctx, l.client, ContactsScript, "contact listing")
	if err != nil {
		return nil, fmt.Errorf("contact listing unavailable: %w", err)
	}
	return rows, nil
}

func evaluate(ctx context.Context, client Client, script, what string) ([]normalize.Raw, error) {
	res, err := client.Evaluate(ctx, script)
	if err != nil {
		return nil, err
	}
	if res == nil || !res.OK {
		reason := what + " returned invalid payload"
		if res != nil && res.Error != "" {
			reason = res.Error
		}
		return nil, errors.New(reason)
	}
	out := make([]normalize.Raw, 0, len(res.Rows))
	for _, row := range res.Rows {
		out = append(out, normalize.Raw(row))
	}
	return out, nil
}
