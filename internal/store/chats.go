package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/matheus3301/wprelay/internal/normalize"
)

const chatColumns = `id, name, is_group, unread_count, last_message_at, message_count, participants`

type rowScanner interface {
	Scan(dest ...any) error
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// UpsertChatMeta merges patch into the stored chat, creating it when
// missing. Unread count, last activity and participants are only replaced
// when the patch carries them.
func (db *DB) UpsertChatMeta(ctx context.Context, chatID string, patch normalize.ChatPatch) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		c, err := getChat(ctx, tx, chatID)
		if err != nil {
			return err
		}
		if c == nil {
			c = newChat(chatID, patch.Name, patch.IsGroup)
		}
		if patch.Name != "" {
			c.Name = patch.Name
		}
		c.IsGroup = patch.IsGroup
		if patch.UnreadCount != nil {
			c.UnreadCount = *patch.UnreadCount
		}
		if patch.LastMessageAt != nil {
			c.LastMessageAt = patch.LastMessageAt
		}
		if patch.Participants != nil {
			c.Participants = patch.Participants
		}
		return putChat(ctx, tx, c)
	})
}

// ListChats returns all chats, most recent activity first. Chats without
// activity come last.
func (db *DB) ListChats(ctx context.Context) ([]Chat, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+chatColumns+`
		FROM chats
		ORDER BY last_message_at IS NULL, last_message_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	chats := []Chat{}
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, *c)
	}
	return chats, rows.Err()
}

// GetChat returns a single chat, or nil when it is unknown.
func (db *DB) GetChat(ctx context.Context, chatID string) (*Chat, error) {
	return getChat(ctx, db.DB, chatID)
}

// ClearAll removes every chat and entry.
func (db *DB) ClearAll(ctx context.Context) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM entries`); err != nil {
			return fmt.Errorf("clear entries: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM chats`); err != nil {
			return fmt.Errorf("clear chats: %w", err)
		}
		return nil
	})
}

func getChat(ctx context.Context, q queryer, chatID string) (*Chat, error) {
	c, err := scanChat(q.QueryRowContext(ctx, `SELECT `+chatColumns+` FROM chats WHERE id = ?`, chatID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func scanChat(row rowScanner) (*Chat, error) {
	var (
		c            Chat
		lastMessage  sql.NullString
		participants string
	)
	if err := row.Scan(&c.ID, &c.Name, &c.IsGroup, &c.UnreadCount, &lastMessage, &c.MessageCount, &participants); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan chat: %w", err)
	}
	if lastMessage.Valid {
		c.LastMessageAt = &lastMessage.String
	}
	if err := json.Unmarshal([]byte(participants), &c.Participants); err != nil {
		return nil, fmt.Errorf("decode participants of %s: %w", c.ID, err)
	}
	if c.Participants == nil {
		c.Participants = []normalize.Participant{}
	}
	return &c, nil
}

func putChat(ctx context.Context, q queryer, c *Chat) error {
	participants, err := json.Marshal(c.Participants)
	if err != nil {
		return fmt.Errorf("encode participants of %s: %w", c.ID, err)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO chats (id, name, is_group, unread_count, last_message_at, message_count, participants, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			is_group = excluded.is_group,
			unread_count = excluded.unread_count,
			last_message_at = excluded.last_message_at,
			message_count = excluded.message_count,
			participants = excluded.participants,
			updated_at = excluded.updated_at`,
		c.ID, c.Name, c.IsGroup, c.UnreadCount, nullable(c.LastMessageAt), c.MessageCount, string(participants), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save chat %s: %w", c.ID, err)
	}
	return nil
}

func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
