package wa

import (
	"sort"
	"sync"
	"time"

	"github.com/matheus3301/wprelay/internal/normalize"
)

// JournalLimit caps the messages kept per chat.
const JournalLimit = 5000

// journal keeps recent raw messages per chat. whatsmeow does not store
// message history, so this is what chat history fetches read from.
type journal struct {
	mu      sync.Mutex
	limit   int
	threads map[string]*thread
}

type thread struct {
	name     string
	unread   int
	last     time.Time
	messages []journalEntry
	seen     map[string]struct{}
}

type journalEntry struct {
	id  string
	at  time.Time
	raw normalize.Raw
}

// threadInfo is a point-in-time view of one chat in the journal.
type threadInfo struct {
	id     string
	name   string
	unread int
	last   time.Time
}

func newJournal(limit int) *journal {
	if limit <= 0 {
		limit = JournalLimit
	}
	return &journal{limit: limit, threads: make(map[string]*thread)}
}

func (j *journal) thread(chatID string) *thread {
	t, ok := j.threads[chatID]
	if !ok {
		t = &thread{seen: make(map[string]struct{})}
		j.threads[chatID] = t
	}
	return t
}

// touch records chat metadata. Empty names keep the known one.
func (j *journal) touch(chatID, name string, unread int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	t := j.thread(chatID)
	if name != "" {
		t.name = name
	}
	t.unread = unread
}

// add records a message once per id, keeping the newest limit messages.
func (j *journal) add(chatID, msgID string, at time.Time, raw normalize.Raw) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	t := j.thread(chatID)
	if msgID != "" {
		if _, dup := t.seen[msgID]; dup {
			return false
		}
		t.seen[msgID] = struct{}{}
	}
	t.messages = append(t.messages, journalEntry{id: msgID, at: at, raw: raw})
	if at.After(t.last) {
		t.last = at
	}
	if len(t.messages) > j.limit {
		sort.SliceStable(t.messages, func(a, b int) bool { return t.messages[a].at.Before(t.messages[b].at) })
		drop := len(t.messages) - j.limit
		for _, e := range t.messages[:drop] {
			delete(t.seen, e.id)
		}
		t.messages = append([]journalEntry(nil), t.messages[drop:]...)
	}
	return true
}

// recent returns up to limit of the chat's newest messages, oldest first.
func (j *journal) recent(chatID string, limit int) []normalize.Raw {
	j.mu.Lock()
	defer j.mu.Unlock()
	t, ok := j.threads[chatID]
	if !ok {
		return nil
	}
	entries := append([]journalEntry(nil), t.messages...)
	sort.SliceStable(entries, func(a, b int) bool { return entries[a].at.Before(entries[b].at) })
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	out := make([]normalize.Raw, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.raw)
	}
	return out
}

func (j *journal) has(chatID string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	_, ok := j.threads[chatID]
	return ok
}

func (j *journal) info(chatID string) (threadInfo, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	t, ok := j.threads[chatID]
	if !ok {
		return threadInfo{}, false
	}
	return threadInfo{id: chatID, name: t.name, unread: t.unread, last: t.last}, true
}

// list returns every known chat, most recent activity first.
func (j *journal) list() []threadInfo {
	j.mu.Lock()
	out := make([]threadInfo, 0, len(j.threads))
	for id, t := range j.threads {
		out = append(out, threadInfo{id: id, name: t.name, unread: t.unread, last: t.last})
	}
	j.mu.Unlock()
	sort.Slice(out, func(a, b int) bool {
		if !out[a].last.Equal(out[b].last) {
			return out[a].last.After(out[b].last)
		}
		return out[a].id < out[b].id
	})
	return out
}
