package hub

import (
	"errors"
	"log/slog"
	"runtime"
	"sync"

	"github.com/clickrtraining/clickrtraining/internal/protocol"
)

var ErrRegistryClosed = errors.New("registry is shut down")

// Registry maps room ids to rooms. Rooms are created on first attach and
// removed as soon as their last member detaches.
//
// The registry lock only guards the map; membership changes and fan-out take
// the per-room lock, so operations on different rooms do not contend.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[protocol.RoomID]*Room
	closed bool

	opts   Options
	logger *slog.Logger
}

// NewRegistry creates an empty registry. A nil logger discards output.
func NewRegistry(opts Options, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		rooms:  make(map[protocol.RoomID]*Room),
		opts:   opts.withDefaults(),
		logger: logger,
	}
}

// Attach registers a new session in room, creating the room if needed.
func (r *Registry) Attach(id protocol.RoomID) (*Session, error) {
	if err := id.Validate(); err != nil {
		return nil, protocol.NewRoomError("attach", id, err)
	}

	s := newSession(id, r)
	for {
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return nil, protocol.NewRoomError("attach", id, ErrRegistryClosed)
		}
		room, ok := r.rooms[id]
		if !ok {
			r.rooms[id] = newRoom(id, s)
			r.mu.Unlock()
			r.logger.Info("Room created", "room", id, "session", s.ID)
			return s, nil
		}
		r.mu.Unlock()

		if room.add(s) {
			r.logger.Debug("Session attached", "room", id, "session", s.ID)
			return s, nil
		}
		// The room was retired by a concurrent detach and is about to leave
		// the map; retry against the fresh state.
		runtime.Gosched()
	}
}

// Detach removes s from its room. Detaching an already removed session is a
// no-op.
func (r *Registry) Detach(id protocol.RoomID, s *Session) {
	r.mu.RLock()
	room, ok := r.rooms[id]
	r.mu.RUnlock()
	if !ok {
		return
	}

	removed, empty := room.remove(s)
	if !removed {
		return
	}
	r.logger.Debug("Session detached", "room", id, "session", s.ID)

	if empty {
		r.mu.Lock()
		if r.rooms[id] == room {
			delete(r.rooms, id)
		}
		r.mu.Unlock()
		r.logger.Info("Room deleted", "room", id)
	}
}

// Broadcast delivers ev to every member of its room. A room with no members is
// not an error; the click is simply dropped.
func (r *Registry) Broadcast(id protocol.RoomID, ev *protocol.ClickEvent) int {
	r.mu.RLock()
	room, ok := r.rooms[id]
	r.mu.RUnlock()
	if !ok {
		r.logger.Debug("Click dropped, room is empty", "room", id, "event", ev.ID)
		return 0
	}

	n := room.broadcast(ev)
	r.logger.Debug("Click broadcast", "room", id, "event", ev.ID, "sound", ev.Sound.String(), "members", n)
	return n
}

// Room looks up a room by id.
func (r *Registry) Room(id protocol.RoomID) (*Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[id]
	return room, ok
}

// RoomCount returns the number of live rooms.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// MemberCount returns the number of sessions attached to id.
func (r *Registry) MemberCount(id protocol.RoomID) int {
	room, ok := r.Room(id)
	if !ok {
		return 0
	}
	return room.Len()
}

// Options returns the session options in effect.
func (r *Registry) Options() Options {
	return r.opts
}

// Shutdown refuses further attaches and closes every live session. Sessions
// detach themselves as their connections wind down.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	r.closed = true
	rooms := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	r.mu.Unlock()

	for _, room := range rooms {
		for _, s := range room.Sessions() {
			s.Close()
		}
	}
	r.logger.Info("Registry shut down", "rooms", len(rooms))
}
