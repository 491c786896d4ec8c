// Package resolver keeps the per-session contact label cache and writes
// normalized chat metadata through the store.
package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/matheus3301/wprelay/internal/normalize"
	"go.uber.org/zap"
)

// Chat is a raw chat handle.
type Chat interface {
	Raw() normalize.Raw
}

// ParticipantFetcher is implemented by chats that load participants lazily.
type ParticipantFetcher interface {
	FetchParticipants(ctx context.Context) ([]normalize.Raw, error)
}

// ContactLister lists the raw contacts known to the live session.
type ContactLister interface {
	ListContacts(ctx context.Context) ([]normalize.Raw, error)
}

// MetaWriter persists chat metadata.
type MetaWriter interface {
	UpsertChatMeta(ctx context.Context, chatID string, patch normalize.ChatPatch) error
}

var contactLabelSources = []string{"name", "pushname", "shortName", "formattedName", "displayName"}

// Resolver resolves display labels for one relay session.
type Resolver struct {
	cache  *contactCache
	store  MetaWriter
	loc    *time.Location
	logger *zap.Logger
}

// New creates a resolver writing chat metadata to store. loc is used for
// entry timestamp labels.
func New(store MetaWriter, loc *time.Location, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		cache:  newContactCache(),
		store:  store,
		loc:    loc,
		logger: logger,
	}
}

// RefreshContacts merges the session's contact listing into the cache and
// returns how many contacts were mapped. Listing errors are logged.
func (r *Resolver) RefreshContacts(ctx context.Context, src ContactLister) int {
	contacts, err := src.ListContacts(ctx)
	if err != nil {
		r.logger.Warn("failed to load contacts", zap.Error(err))
		return 0
	}

	mapped := 0
	for _, c := range contacts {
		id := normalize.ID(c)
		if id == "" {
			continue
		}
		label, ok := c.First(contactLabelSources...)
		if !ok {
			label = normalize.StripSuffix(id)
		}
		if label == "" {
			continue
		}
		r.cache.Remember(id, label)
		mapped++
	}
	return mapped
}

// ChatMeta builds the metadata patch for chat, fetching participants when
// the raw chat carries none. A failed fetch yields no participants.
func (r *Resolver) ChatMeta(ctx context.Context, chat Chat) (string, normalize.ChatPatch, bool) {
	raw := chat.Raw()
	participants := normalize.Participants(raw)
	if len(participants) == 0 {
		if f, ok := chat.(ParticipantFetcher); ok {
			fetched, err := f.FetchParticipants(ctx)
			if err != nil {
				r.logger.Warn("failed to fetch participants",
					zap.String("chat", normalize.ID(raw)), zap.Error(err))
				fetched = nil
			}
			participants = fetched
		}
	}
	return normalize.ChatMeta(raw, participants, r.cache)
}

// PersistChatMeta writes the metadata patch of chat to the store.
func (r *Resolver) PersistChatMeta(ctx context.Context, chat Chat) error {
	chatID, patch, ok := r.ChatMeta(ctx, chat)
	if !ok {
		return nil
	}
	if err := r.store.UpsertChatMeta(ctx, chatID, patch); err != nil {
		return fmt.Errorf("upsert chat meta %s: %w", chatID, err)
	}
	return nil
}

// Entry normalizes a raw message using the session's contact labels.
func (r *Resolver) Entry(raw normalize.Raw) normalize.Entry {
	return normalize.Message(raw, r.cache, r.loc)
}

// Label returns the cached label for id.
func (r *Resolver) Label(id string) (string, bool) {
	return r.cache.Label(id)
}

// Len returns the number of cached labels.
func (r *Resolver) Len() int {
	return r.cache.len()
}

// Reset forgets every cached label.
func (r *Resolver) Reset() {
	r.cache.clear()
}
