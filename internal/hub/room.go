package hub

import (
	"sync"

	"github.com/clickrtraining/clickrtraining/internal/protocol"
)

// Room is a named set of attached listener sessions. It owns fan-out to its
// members.
type Room struct {
	ID protocol.RoomID

	mu      sync.Mutex
	members map[*Session]struct{}

	// retired is set when the last member leaves. A retired room is about to be
	// removed from the registry and accepts no new members.
	retired bool
}

func newRoom(id protocol.RoomID, first *Session) *Room {
	return &Room{
		ID:      id,
		members: map[*Session]struct{}{first: {}},
	}
}

// add inserts s unless the room has been retired.
func (r *Room) add(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.retired {
		return false
	}
	r.members[s] = struct{}{}
	return true
}

// remove deletes s and retires the room when it becomes empty.
func (r *Room) remove(s *Session) (removed, empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[s]; !ok {
		return false, len(r.members) == 0
	}
	delete(r.members, s)
	if len(r.members) == 0 {
		r.retired = true
	}
	return true, r.retired
}

// broadcast enqueues ev for every member. The lock is held across the whole
// fan-out so concurrent broadcasts reach all members in the same order.
func (r *Room) broadcast(ev *protocol.ClickEvent) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for s := range r.members {
		s.enqueue(ev)
	}
	return len(r.members)
}

// Len returns the current member count.
func (r *Room) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// Sessions returns a snapshot of the current members.
func (r *Room) Sessions() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.members))
	for s := range r.members {
		out = append(out, s)
	}
	return out
}
