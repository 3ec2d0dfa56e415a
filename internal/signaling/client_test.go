package signaling

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clickrtraining/clickrtraining/internal/hub"
	"github.com/clickrtraining/clickrtraining/internal/playback"
	"github.com/clickrtraining/clickrtraining/internal/protocol"
	"github.com/clickrtraining/clickrtraining/internal/server"
)

type recordingSink struct {
	mu   sync.Mutex
	reqs []playback.Request
}

func (s *recordingSink) Submit(req playback.Request) {
	s.mu.Lock()
	s.reqs = append(s.reqs, req)
	s.mu.Unlock()
}

func (s *recordingSink) Sounds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.reqs))
	for i, r := range s.reqs {
		out[i] = r.Sound.String()
	}
	return out
}

type stateLog struct {
	mu     sync.Mutex
	states []State
	errs   []error
}

func (l *stateLog) record(s State, err error) {
	l.mu.Lock()
	l.states = append(l.states, s)
	l.errs = append(l.errs, err)
	l.mu.Unlock()
}

func (l *stateLog) count(s State) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, st := range l.states {
		if st == s {
			n++
		}
	}
	return n
}

func (l *stateLog) snapshot() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]State(nil), l.states...)
}

func newHost(t *testing.T) (*hub.Registry, *httptest.Server) {
	t.Helper()
	registry := hub.NewRegistry(hub.Options{}, nil)
	ts := httptest.NewServer(server.New(registry, nil).Handler())
	t.Cleanup(func() {
		registry.Shutdown()
		ts.Close()
	})
	return registry, ts
}

func attachURL(ts *httptest.Server, room, query string) string {
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/" + room
	if query != "" {
		u += "?" + query
	}
	return u
}

type runningClient struct {
	client *Client
	sink   *recordingSink
	states *stateLog
	cancel context.CancelFunc
	done   chan error
}

func startClient(t *testing.T, opts Options) *runningClient {
	t.Helper()
	rc := &runningClient{
		sink:   &recordingSink{},
		states: &stateLog{},
		done:   make(chan error, 1),
	}
	opts.OnState = rc.states.record
	rc.client = NewClient(opts, NewHandler(rc.sink, 0.8, nil))

	ctx, cancel := context.WithCancel(context.Background())
	rc.cancel = cancel
	stopped := make(chan struct{})
	go func() {
		rc.done <- rc.client.Run(ctx)
		close(stopped)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
	return rc
}

func waitMembers(t *testing.T, r *hub.Registry, room protocol.RoomID, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return r.MemberCount(room) == n }, 3*time.Second, 5*time.Millisecond)
}

func TestClient_StreamsClicks(t *testing.T) {
	registry, ts := newHost(t)
	rc := startClient(t, Options{URL: attachURL(ts, "kitchen", "")})
	waitMembers(t, registry, "kitchen", 1)

	registry.Broadcast("kitchen", protocol.NewClickEvent("kitchen", protocol.DefaultSound()))
	registry.Broadcast("kitchen", protocol.NewClickEvent("kitchen", protocol.NamedSound("bell")))

	require.Eventually(t, func() bool { return len(rc.sink.Sounds()) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"default", "bell"}, rc.sink.Sounds())
	assert.Equal(t, 0.8, rc.sink.reqs[0].Volume)
	assert.Equal(t, StateStreaming, rc.client.State())
	assert.Equal(t, []State{StateConnecting, StateStreaming}, rc.states.snapshot())
}

func TestClient_MsgPack(t *testing.T) {
	registry, ts := newHost(t)
	rc := startClient(t, Options{URL: attachURL(ts, "kitchen", "codec=msgpack")})
	waitMembers(t, registry, "kitchen", 1)

	registry.Broadcast("kitchen", protocol.NewClickEvent("kitchen", protocol.NamedSound("whistle")))
	require.Eventually(t, func() bool { return len(rc.sink.Sounds()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"whistle"}, rc.sink.Sounds())
}

func TestClient_ReconnectsWithoutReplay(t *testing.T) {
	registry, ts := newHost(t)
	rc := startClient(t, Options{
		URL:        attachURL(ts, "yard", ""),
		MinBackoff: 300 * time.Millisecond,
		MaxBackoff: time.Second,
	})
	waitMembers(t, registry, "yard", 1)

	room, ok := registry.Room("yard")
	require.True(t, ok)
	for _, s := range room.Sessions() {
		s.Close()
	}
	waitMembers(t, registry, "yard", 0)

	// Nobody is attached now, so this click is gone for good.
	require.Zero(t, registry.Broadcast("yard", protocol.NewClickEvent("yard", protocol.NamedSound("during"))))

	waitMembers(t, registry, "yard", 1)
	registry.Broadcast("yard", protocol.NewClickEvent("yard", protocol.NamedSound("after")))

	require.Eventually(t, func() bool { return len(rc.sink.Sounds()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"after"}, rc.sink.Sounds())
	assert.EqualValues(t, 2, rc.client.Connects())
	assert.Equal(t, 2, rc.states.count(StateStreaming))
	assert.Equal(t, 1, rc.states.count(StateRetrying))
}

func TestClient_RetriesUnreachableHost(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := attachURL(ts, "kitchen", "")
	ts.Close()

	rc := startClient(t, Options{URL: url, MinBackoff: 10 * time.Millisecond, MaxBackoff: 20 * time.Millisecond})
	require.Eventually(t, func() bool { return rc.states.count(StateRetrying) >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, rc.client.Connects())

	rc.cancel()
	select {
	case err := <-rc.done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, StateClosed, rc.client.State())
}

func TestClient_SilentHostIsDead(t *testing.T) {
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(ts.Close)

	rc := startClient(t, Options{
		URL:        attachURL(ts, "kitchen", ""),
		PongWait:   100 * time.Millisecond,
		MinBackoff: time.Second,
	})
	require.Eventually(t, func() bool { return rc.states.count(StateRetrying) == 1 }, 2*time.Second, 5*time.Millisecond)

	rc.states.mu.Lock()
	lastErr := rc.states.errs[len(rc.states.errs)-1]
	rc.states.mu.Unlock()
	require.Error(t, lastErr)
	assert.Contains(t, lastErr.Error(), "timeout")
}

func TestReadWindow(t *testing.T) {
	assert.Equal(t, 91*time.Second, readWindow(DefaultPongWait, 54*time.Second))
	assert.Equal(t, DefaultPongWait, readWindow(DefaultPongWait, 10*time.Second))
	assert.Equal(t, 172*time.Second, readWindow(DefaultPongWait, 108*time.Second))

	// A host with a long pong wait pings less often than DefaultPongWait.
	ping := hub.NewRegistry(hub.Options{PongWait: 2 * time.Minute}, nil).Options().PingPeriod
	require.Greater(t, ping, DefaultPongWait)
	assert.Greater(t, readWindow(DefaultPongWait, ping), ping)
}

func TestClient_FollowsAdvertisedPingPeriod(t *testing.T) {
	const ping = 300 * time.Millisecond
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if err := conn.WriteJSON(protocol.WelcomeFrame("kitchen", "s1", ping)); err != nil {
			return
		}
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
		ticker := time.NewTicker(ping)
		defer ticker.Stop()
		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(ts.Close)

	rc := startClient(t, Options{
		URL:        attachURL(ts, "kitchen", ""),
		PongWait:   100 * time.Millisecond,
		MinBackoff: time.Second,
	})
	require.Eventually(t, func() bool { return rc.client.State() == StateStreaming }, 2*time.Second, 5*time.Millisecond)

	// Several ping intervals, each longer than the configured PongWait.
	time.Sleep(4 * ping)
	assert.Equal(t, StateStreaming, rc.client.State())
	assert.Zero(t, rc.states.count(StateRetrying))
	assert.EqualValues(t, 1, rc.client.Connects())
}

func TestClient_CancelDetachesFromHost(t *testing.T) {
	registry, ts := newHost(t)
	rc := startClient(t, Options{URL: attachURL(ts, "kitchen", "")})
	waitMembers(t, registry, "kitchen", 1)

	rc.cancel()
	select {
	case err := <-rc.done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	waitMembers(t, registry, "kitchen", 0)
	assert.Equal(t, StateClosed, rc.client.State())
	assert.Zero(t, registry.RoomCount())
}
