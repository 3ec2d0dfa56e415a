package protocol

import (
	"time"

	"github.com/google/uuid"
)

// Frame types sent from host to listener.
const (
	FrameWelcome = "welcome"
	FrameClick   = "click"
	FrameError   = "error"
)

// Frame is the wire representation of every host-to-listener message.
type Frame struct {
	Type      string `json:"type" msgpack:"type"`
	ID        string `json:"id,omitempty" msgpack:"id,omitempty"`
	Room      RoomID `json:"room,omitempty" msgpack:"room,omitempty"`
	Sound     string `json:"sound,omitempty" msgpack:"sound,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty" msgpack:"timestamp,omitempty"` // unix millis
	Session   string `json:"session,omitempty" msgpack:"session,omitempty"`
	Error     string `json:"error,omitempty" msgpack:"error,omitempty"`

	// PingPeriod is the host's keepalive interval in millis, set on welcome.
	PingPeriod int64 `json:"ping_period,omitempty" msgpack:"ping_period,omitempty"`
}

// ClickEvent is constructed at ingress and consumed by fan-out. It is never
// persisted.
type ClickEvent struct {
	ID        string
	Room      RoomID
	Sound     SoundReference
	Timestamp time.Time
}

// NewClickEvent stamps a fresh event for room.
func NewClickEvent(room RoomID, sound SoundReference) *ClickEvent {
	return &ClickEvent{
		ID:        uuid.NewString(),
		Room:      room,
		Sound:     sound,
		Timestamp: time.Now(),
	}
}

// Frame converts the event into its wire form.
func (e *ClickEvent) Frame() *Frame {
	return &Frame{
		Type:      FrameClick,
		ID:        e.ID,
		Room:      e.Room,
		Sound:     e.Sound.Name,
		Timestamp: e.Timestamp.UnixMilli(),
	}
}

// ClickEventFromFrame rebuilds a click event on the listener side.
func ClickEventFromFrame(f *Frame) (*ClickEvent, error) {
	if f.Type != FrameClick {
		return nil, ErrUnknownFrame
	}
	ev := &ClickEvent{
		ID:    f.ID,
		Room:  f.Room,
		Sound: NamedSound(f.Sound),
	}
	if f.Timestamp > 0 {
		ev.Timestamp = time.UnixMilli(f.Timestamp)
	}
	return ev, nil
}

// WelcomeFrame is the first frame a session writes after attaching. It
// advertises how often the host pings so the listener can size its read
// deadline.
func WelcomeFrame(room RoomID, session string, pingPeriod time.Duration) *Frame {
	return &Frame{
		Type:       FrameWelcome,
		Room:       room,
		Session:    session,
		Timestamp:  time.Now().UnixMilli(),
		PingPeriod: pingPeriod.Milliseconds(),
	}
}

// AdvertisedPingPeriod returns the keepalive interval carried by a welcome
// frame, or zero when the host did not send one.
func (f *Frame) AdvertisedPingPeriod() time.Duration {
	if f.Type != FrameWelcome || f.PingPeriod <= 0 {
		return 0
	}
	return time.Duration(f.PingPeriod) * time.Millisecond
}
