package normalize

import (
	"testing"
)

func entryAt(ts, msg string) Entry {
	e := Entry{Message: msg}
	if ts != "" {
		e.Timestamp = &ts
	}
	return e
}

func TestSortEntries(t *testing.T) {
	entries := []Entry{
		entryAt("2024-01-02T00:00:00.000Z", "c"),
		entryAt("", "null-1"),
		entryAt("2024-01-01T00:00:00.000Z", "a"),
		entryAt("2024-01-02T00:00:00.000Z", "d"),
		entryAt("", "null-2"),
		entryAt("2024-01-01T12:00:00.000Z", "b"),
	}
	SortEntries(entries)

	want := []string{"null-1", "null-2", "a", "b", "c", "d"}
	for i, w := range want {
		if entries[i].Message != w {
			t.Errorf("entries[%d] = %q, want %q", i, entries[i].Message, w)
		}
	}
}
