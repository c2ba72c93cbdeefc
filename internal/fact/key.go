package fact

import (
	"fmt"
	"strings"
)

// keyPrefix is the leading component of every canonical storage key.
const keyPrefix = "fact"

// Key identifies a single knowledge record by (ecosystem, tool, version).
// Keys are comparable values: equality is component-wise and they can be
// used directly as map keys.
//
// All three components are case-sensitive, must be non-empty, and must not
// contain an ASCII colon (the canonical encoding uses ':' as a separator,
// and key components double as filesystem path components in the file
// backend).
type Key struct {
	Ecosystem string
	Tool      string
	Version   string
}

// NewKey validates the components and returns a Key.
// Returns ErrKeyMalformed if any component is empty or contains a colon.
func NewKey(ecosystem, tool, version string) (Key, error) {
	for _, part := range []string{ecosystem, tool, version} {
		if part == "" {
			return Key{}, fmt.Errorf("%w: empty component", ErrKeyMalformed)
		}
		if strings.ContainsRune(part, ':') {
			return Key{}, fmt.Errorf("%w: component %q contains ':'", ErrKeyMalformed, part)
		}
	}
	return Key{Ecosystem: ecosystem, Tool: tool, Version: version}, nil
}

// String returns the canonical storage encoding "fact:<ecosystem>:<tool>:<version>".
// This is the exact byte sequence used as the primary key in the badger
// backend.
func (k Key) String() string {
	return keyPrefix + ":" + k.Ecosystem + ":" + k.Tool + ":" + k.Version
}

// ParseKey parses a canonical storage encoding back into a Key.
// The input must split on ':' into exactly four parts with the first being
// "fact"; anything else fails with ErrKeyMalformed.
func ParseKey(s string) (Key, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 4 || parts[0] != keyPrefix {
		return Key{}, fmt.Errorf("%w: %q", ErrKeyMalformed, s)
	}
	return NewKey(parts[1], parts[2], parts[3])
}
