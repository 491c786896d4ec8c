package session

import "fmt"

// MaxNameLen is the longest accepted session name.
const MaxNameLen = 64

// reserved names collide with entries of the base directory or read as
// flags when passed to relayd.
var reserved = map[string]bool{
	"sessions": true,
	"logs":     true,
}

// ValidateName checks that name is usable as a session directory name:
// 1..64 of [a-z0-9_-], not starting with '-', and not reserved.
func ValidateName(name string) error {
	if name == "" || len(name) > MaxNameLen {
		return fmt.Errorf("invalid session name %q: length must be 1..%d", name, MaxNameLen)
	}
	if name[0] == '-' {
		return fmt.Errorf("invalid session name %q: must not start with '-'", name)
	}
	for _, c := range name {
		if !isNameRune(c) {
			return fmt.Errorf("invalid session name %q: %q not allowed, use [a-z0-9_-]", name, c)
		}
	}
	if reserved[name] {
		return fmt.Errorf("invalid session name %q: reserved", name)
	}
	return nil
}

func isNameRune(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' || c == '-'
}
