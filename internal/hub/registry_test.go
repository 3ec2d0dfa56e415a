package hub

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/clickrtraining/clickrtraining/internal/protocol"
)

func newTestRegistry() *Registry {
	return NewRegistry(Options{QueueSize: 8}, nil)
}

// received drains every click queued for s.
func received(s *Session) []*protocol.ClickEvent {
	return s.outbound.Drain()
}

func TestRegistry_AttachCreatesRoomAndDetachRemovesIt(t *testing.T) {
	r := newTestRegistry()

	s, err := r.Attach("kitchen")
	require.NoError(t, err)
	require.Equal(t, StateAttaching, s.State())
	require.Equal(t, 1, r.RoomCount())
	require.Equal(t, 1, r.MemberCount("kitchen"))

	r.Detach("kitchen", s)
	require.Equal(t, 0, r.RoomCount())
	_, ok := r.Room("kitchen")
	require.False(t, ok)
}

func TestRegistry_AttachRejectsMalformedRoom(t *testing.T) {
	r := newTestRegistry()

	_, err := r.Attach("")
	require.ErrorIs(t, err, protocol.ErrEmptyRoomID)
	require.Equal(t, 0, r.RoomCount())
}

func TestRegistry_KitchenScenario(t *testing.T) {
	r := newTestRegistry()

	a, err := r.Attach("kitchen")
	require.NoError(t, err)
	b, err := r.Attach("kitchen")
	require.NoError(t, err)

	require.Equal(t, 2, r.Broadcast("kitchen", protocol.NewClickEvent("kitchen", protocol.DefaultSound())))

	gotA, gotB := received(a), received(b)
	require.Len(t, gotA, 1)
	require.Len(t, gotB, 1)
	require.True(t, gotA[0].Sound.IsDefault())
	require.Equal(t, gotA[0].ID, gotB[0].ID)

	r.Detach("kitchen", a)
	require.Equal(t, 1, r.Broadcast("kitchen", protocol.NewClickEvent("kitchen", protocol.DefaultSound())))
	require.Empty(t, received(a))
	require.Len(t, received(b), 1)
}

func TestRegistry_BroadcastToEmptyRoomIsDropped(t *testing.T) {
	r := newTestRegistry()

	require.NotPanics(t, func() {
		n := r.Broadcast("yard", protocol.NewClickEvent("yard", protocol.NamedSound("sit")))
		require.Zero(t, n)
	})
	require.Equal(t, 0, r.RoomCount())
}

func TestRegistry_DetachIsIdempotent(t *testing.T) {
	r := newTestRegistry()

	a, err := r.Attach("kitchen")
	require.NoError(t, err)
	b, err := r.Attach("kitchen")
	require.NoError(t, err)

	r.Detach("kitchen", a)
	r.Detach("kitchen", a)
	require.Equal(t, 1, r.MemberCount("kitchen"))

	b.Close()
	b.Close()
	r.Detach("kitchen", b)
	require.Equal(t, 0, r.RoomCount())
	require.Equal(t, StateDetached, b.State())
}

func TestRegistry_DetachFromRecreatedRoomIsNoop(t *testing.T) {
	r := newTestRegistry()

	old, err := r.Attach("kitchen")
	require.NoError(t, err)
	r.Detach("kitchen", old)

	fresh, err := r.Attach("kitchen")
	require.NoError(t, err)

	r.Detach("kitchen", old)
	require.Equal(t, 1, r.MemberCount("kitchen"))
	require.Equal(t, StateAttaching, fresh.State())
}

func TestRegistry_RoomsAreIndependent(t *testing.T) {
	r := newTestRegistry()

	k, err := r.Attach("kitchen")
	require.NoError(t, err)
	y, err := r.Attach("yard")
	require.NoError(t, err)

	r.Broadcast("kitchen", protocol.NewClickEvent("kitchen", protocol.DefaultSound()))
	require.Len(t, received(k), 1)
	require.Empty(t, received(y))
}

func TestRegistry_DeliversInBroadcastOrder(t *testing.T) {
	r := newTestRegistry()

	var sessions []*Session
	for i := 0; i < 3; i++ {
		s, err := r.Attach("kitchen")
		require.NoError(t, err)
		sessions = append(sessions, s)
	}

	var ids []string
	for i := 0; i < 5; i++ {
		ev := protocol.NewClickEvent("kitchen", protocol.NamedSound(fmt.Sprintf("cue-%d", i)))
		ids = append(ids, ev.ID)
		r.Broadcast("kitchen", ev)
	}

	for _, s := range sessions {
		var got []string
		for _, ev := range received(s) {
			got = append(got, ev.ID)
		}
		require.Equal(t, ids, got)
	}
}

func TestRegistry_SaturatedSessionDropsOldest(t *testing.T) {
	r := NewRegistry(Options{QueueSize: 4}, nil)
	s, err := r.Attach("kitchen")
	require.NoError(t, err)

	var ids []string
	for i := 0; i < 20; i++ {
		ev := protocol.NewClickEvent("kitchen", protocol.DefaultSound())
		ids = append(ids, ev.ID)
		r.Broadcast("kitchen", ev)
	}

	require.Equal(t, 4, s.Pending())
	require.Equal(t, uint64(16), s.Dropped())

	got := received(s)
	require.Len(t, got, 4)
	for i, ev := range got {
		require.Equal(t, ids[16+i], ev.ID)
	}
}

func TestRegistry_ShutdownClosesSessionsAndRefusesAttach(t *testing.T) {
	r := newTestRegistry()
	a, err := r.Attach("kitchen")
	require.NoError(t, err)
	b, err := r.Attach("yard")
	require.NoError(t, err)

	r.Shutdown()

	require.Equal(t, StateDetached, a.State())
	require.Equal(t, StateDetached, b.State())
	require.Equal(t, 0, r.RoomCount())

	_, err = r.Attach("kitchen")
	require.ErrorIs(t, err, ErrRegistryClosed)
}

func TestRegistry_ConcurrentAttachDetachBroadcast(t *testing.T) {
	r := newTestRegistry()
	rooms := []protocol.RoomID{"a", "b", "c"}

	var wg sync.WaitGroup
	for w := 0; w < 12; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			room := rooms[w%len(rooms)]
			for i := 0; i < 200; i++ {
				s, err := r.Attach(room)
				if err != nil {
					t.Error(err)
					return
				}
				r.Broadcast(room, protocol.NewClickEvent(room, protocol.DefaultSound()))
				r.Detach(room, s)
			}
		}(w)
	}
	wg.Wait()

	require.Equal(t, 0, r.RoomCount())
}

// A room exists in the registry iff it has at least one member, across any
// sequence of attach, detach and broadcast operations.
func TestRegistry_RoomExistsIffMembers_PropertyBased(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		r := newTestRegistry()
		rooms := []protocol.RoomID{"kitchen", "yard", "Yard"}
		attached := map[protocol.RoomID][]*Session{}
		var detached []*Session

		rt.Repeat(map[string]func(*rapid.T){
			"attach": func(rt *rapid.T) {
				room := rapid.SampledFrom(rooms).Draw(rt, "room")
				s, err := r.Attach(room)
				require.NoError(rt, err)
				attached[room] = append(attached[room], s)
			},
			"detach": func(rt *rapid.T) {
				room := rapid.SampledFrom(rooms).Draw(rt, "room")
				members := attached[room]
				if len(members) == 0 {
					rt.Skip("no members")
				}
				i := rapid.IntRange(0, len(members)-1).Draw(rt, "member")
				s := members[i]
				attached[room] = append(members[:i:i], members[i+1:]...)
				detached = append(detached, s)
				r.Detach(room, s)
			},
			"detachAgain": func(rt *rapid.T) {
				if len(detached) == 0 {
					rt.Skip("nothing detached yet")
				}
				s := rapid.SampledFrom(detached).Draw(rt, "session")
				r.Detach(s.Room, s)
			},
			"broadcast": func(rt *rapid.T) {
				room := rapid.SampledFrom(rooms).Draw(rt, "room")
				n := r.Broadcast(room, protocol.NewClickEvent(room, protocol.DefaultSound()))
				require.Equal(rt, len(attached[room]), n)
			},
			"": func(rt *rapid.T) {
				live := 0
				for _, room := range rooms {
					want := len(attached[room])
					_, exists := r.Room(room)
					require.Equal(rt, want > 0, exists, "room %s", room)
					require.Equal(rt, want, r.MemberCount(room))
					if want > 0 {
						live++
					}
				}
				require.Equal(rt, live, r.RoomCount())
			},
		})
	})
}
