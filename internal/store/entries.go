package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/matheus3301/wprelay/internal/normalize"
)

// AppendMessage adds entry after the chat's existing entries and bumps the
// chat's activity time and count. An entry whose message id is already
// stored replaces the stored copy in place.
func (db *DB) AppendMessage(ctx context.Context, chatID string, entry normalize.Entry, hints normalize.Hints) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		var seq int64
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(seq), 0) + 1 FROM entries WHERE chat_id = ?`, chatID).Scan(&seq); err != nil {
			return fmt.Errorf("next entry seq: %w", err)
		}
		if err := insertEntry(ctx, tx, chatID, seq, entry); err != nil {
			return err
		}
		count, err := countEntries(ctx, tx, chatID)
		if err != nil {
			return err
		}

		c, err := getChat(ctx, tx, chatID)
		if err != nil {
			return err
		}
		if c == nil {
			c = newChat(chatID, deref(hints.Name), hints.IsGroup != nil && *hints.IsGroup)
		}
		last := normalize.FormatTime(time.Now())
		if entry.Timestamp != nil && *entry.Timestamp != "" {
			last = *entry.Timestamp
		}
		c.LastMessageAt = &last
		c.MessageCount = count
		c.applyHints(hints, true)
		return putChat(ctx, tx, c)
	})
}

// ReplaceEntries swaps the chat's entries for entries, in order.
func (db *DB) ReplaceEntries(ctx context.Context, chatID string, entries []normalize.Entry, hints normalize.Hints) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE chat_id = ?`, chatID); err != nil {
			return fmt.Errorf("clear entries of %s: %w", chatID, err)
		}
		for i, entry := range entries {
			if err := insertEntry(ctx, tx, chatID, int64(i+1), entry); err != nil {
				return err
			}
		}
		count, err := countEntries(ctx, tx, chatID)
		if err != nil {
			return err
		}

		c, err := getChat(ctx, tx, chatID)
		if err != nil {
			return err
		}
		if c == nil {
			c = newChat(chatID, deref(hints.Name), hints.IsGroup != nil && *hints.IsGroup)
		}
		c.LastMessageAt = nil
		if n := len(entries); n > 0 && entries[n-1].Timestamp != nil && *entries[n-1].Timestamp != "" {
			c.LastMessageAt = entries[n-1].Timestamp
		}
		c.MessageCount = count
		c.applyHints(hints, false)
		return putChat(ctx, tx, c)
	})
}

// ListEntries returns the last limit entries of a chat in stored order.
// A limit of zero or less returns every entry.
func (db *DB) ListEntries(ctx context.Context, chatID string, limit int) ([]normalize.Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.QueryContext(ctx, `
		SELECT data FROM (
			SELECT data, seq FROM entries WHERE chat_id = ? ORDER BY seq DESC LIMIT ?
		) ORDER BY seq`, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("list entries of %s: %w", chatID, err)
	}
	defer func() { _ = rows.Close() }()

	entries := []normalize.Entry{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		var e normalize.Entry
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decode entry of %s: %w", chatID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func insertEntry(ctx context.Context, tx *sql.Tx, chatID string, seq int64, e normalize.Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO entries (chat_id, seq, message_id, timestamp, data)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chat_id, message_id) DO UPDATE SET
			timestamp = excluded.timestamp,
			data = excluded.data`,
		chatID, seq, nullable(e.MessageID), nullable(e.Timestamp), string(data))
	if err != nil {
		return fmt.Errorf("insert entry into %s: %w", chatID, err)
	}
	return nil
}

func countEntries(ctx context.Context, tx *sql.Tx, chatID string) (int, error) {
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries WHERE chat_id = ?`, chatID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries of %s: %w", chatID, err)
	}
	return n, nil
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
