package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyRoomID      = errors.New("room id is empty")
	ErrInvalidRoomID    = errors.New("room id is malformed")
	ErrInvalidSoundName = errors.New("sound name is malformed")
	ErrUnknownCodec     = errors.New("unknown codec")
	ErrUnknownFrame     = errors.New("unknown frame type")
)

// OpError records the operation and room that failed.
type OpError struct {
	Op   string
	Room RoomID
	Err  error
}

func (e *OpError) Error() string {
	if e.Room != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Room, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *OpError {
	return &OpError{Op: op, Err: err}
}

func NewRoomError(op string, room RoomID, err error) *OpError {
	return &OpError{Op: op, Room: room, Err: err}
}

// IsValidation reports whether err is a validation failure that should be
// surfaced to the caller rather than retried.
func IsValidation(err error) bool {
	return errors.Is(err, ErrEmptyRoomID) ||
		errors.Is(err, ErrInvalidRoomID) ||
		errors.Is(err, ErrInvalidSoundName) ||
		errors.Is(err, ErrUnknownCodec)
}
