package protocol

import (
	"strings"
	"unicode"
)

// MaxRoomIDLength bounds the size of a room identifier in bytes.
const MaxRoomIDLength = 128

// RoomID is an opaque, case-sensitive room identifier.
type RoomID string

// ParseRoomID validates a raw room identifier taken from a URL path or a flag.
func ParseRoomID(raw string) (RoomID, error) {
	if raw == "" {
		return "", ErrEmptyRoomID
	}
	if len(raw) > MaxRoomIDLength {
		return "", ErrInvalidRoomID
	}
	if strings.ContainsRune(raw, '/') || strings.IndexFunc(raw, unicode.IsControl) >= 0 {
		return "", ErrInvalidRoomID
	}
	return RoomID(raw), nil
}

// Validate reports whether id would be accepted by ParseRoomID.
func (id RoomID) Validate() error {
	_, err := ParseRoomID(string(id))
	return err
}

func (id RoomID) String() string {
	return string(id)
}
