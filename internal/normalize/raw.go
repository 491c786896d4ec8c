// Package normalize turns raw client message and chat shapes into the
// canonical entry and chat metadata records stored by the relay.
//
// Raw shapes are JSON documents. Every output field is read through an
// ordered list of probes where the first present value wins.
package normalize

import (
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Raw is a raw message, chat, participant or contact object as JSON.
type Raw []byte

// Get returns the value at a gjson path.
func (r Raw) Get(path string) gjson.Result {
	return gjson.GetBytes(r, path)
}

// Cache resolves display labels by suffix-stripped identifier.
type Cache interface {
	Label(id string) (string, bool)
	Remember(id, label string)
}

// probe extracts one candidate value from a raw object.
type probe func(Raw) (string, bool)

// firstOf returns the first value any probe yields.
func firstOf(raw Raw, probes ...probe) (string, bool) {
	for _, p := range probes {
		if v, ok := p(raw); ok {
			return v, true
		}
	}
	return "", false
}

// field yields the value at path when it is truthy and has a text form.
func field(path string) probe {
	return func(raw Raw) (string, bool) {
		r := raw.Get(path)
		if !truthy(r) {
			return "", false
		}
		s := text(r)
		return s, s != ""
	}
}

// trimmed yields the value at path only when it is a string that is not blank.
func trimmed(path string) probe {
	return func(raw Raw) (string, bool) {
		r := raw.Get(path)
		if r.Type != gjson.String {
			return "", false
		}
		s := strings.TrimSpace(r.Str)
		return s, s != ""
	}
}

// jidAt yields the identifier found at path.
func jidAt(path string) probe {
	return func(raw Raw) (string, bool) {
		id := jid(raw.Get(path))
		return id, id != ""
	}
}

func truthy(r gjson.Result) bool {
	switch r.Type {
	case gjson.True, gjson.JSON:
		return true
	case gjson.String:
		return r.Str != ""
	case gjson.Number:
		return r.Num != 0 && !math.IsNaN(r.Num)
	default:
		return false
	}
}

// text renders a scalar. Objects and arrays have no text form.
func text(r gjson.Result) string {
	switch r.Type {
	case gjson.String:
		return r.Str
	case gjson.Number:
		return strconv.FormatFloat(r.Num, 'f', -1, 64)
	case gjson.True:
		return "true"
	default:
		return ""
	}
}

// number coerces a scalar to a float. Strings are parsed; anything else fails.
func number(r gjson.Result) (float64, bool) {
	switch r.Type {
	case gjson.Number:
		return r.Num, true
	case gjson.True:
		return 1, true
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// First returns the text of the first truthy value found at paths.
func (r Raw) First(paths ...string) (string, bool) {
	for _, path := range paths {
		if v, ok := field(path)(r); ok {
			return v, true
		}
	}
	return "", false
}
