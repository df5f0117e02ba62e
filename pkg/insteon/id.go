package insteon

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
)

// ID is a 3-byte Insteon device address.
type ID [3]byte

// NullID is the unset address.
var NullID = ID{}

// ParseID parses an address such as "1A.2B.3C", "1a:2b:3c" or "1A2B3C".
func ParseID(s string) (ID, error) {
	clean := strings.NewReplacer(".", "", ":", "", " ", "").Replace(s)
	if len(clean) != 6 {
		return NullID, fmt.Errorf("invalid insteon id %q", s)
	}
	b, err := hex.DecodeString(clean)
	if err != nil {
		return NullID, fmt.Errorf("invalid insteon id %q: %w", s, err)
	}
	var id ID
	copy(id[:], b)
	return id, nil
}

// MustParseID is ParseID for constants and tests; it panics on bad input.
func MustParseID(s string) ID {
	id, err := ParseID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String formats the address as "1A.2B.3C".
func (id ID) String() string {
	return fmt.Sprintf("%02X.%02X.%02X", id[0], id[1], id[2])
}

// IsNull reports whether the address is unset.
func (id ID) IsNull() bool {
	return id == NullID
}

// Compare orders addresses by their big-endian value.
func (id ID) Compare(other ID) int {
	return bytes.Compare(id[:], other[:])
}

// Less reports whether id sorts before other.
func (id ID) Less(other ID) bool {
	return id.Compare(other) < 0
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := ParseID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
