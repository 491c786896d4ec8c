package normalize

import (
	"math"
	"slices"
)

// SortEntries orders entries by ascending timestamp. Entries without a
// timestamp come first; ties keep their order.
func SortEntries(entries []Entry) {
	slices.SortStableFunc(entries, func(a, b Entry) int {
		ka, kb := sortKey(a), sortKey(b)
		switch {
		case ka < kb:
			return -1
		case ka > kb:
			return 1
		default:
			return 0
		}
	})
}

func sortKey(e Entry) int64 {
	t, ok := e.Time()
	if !ok {
		return math.MinInt64
	}
	return t.UnixMilli()
}
