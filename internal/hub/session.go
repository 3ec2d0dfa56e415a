package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/atomic"

	"github.com/clickrtraining/clickrtraining/internal/protocol"
	"github.com/clickrtraining/clickrtraining/internal/queue"
)

var ErrSessionDetached = errors.New("session already detached")

// State is the lifecycle of a listener session.
type State int32

const (
	StateAttaching State = iota
	StateActive
	StateDetached
)

func (s State) String() string {
	switch s {
	case StateAttaching:
		return "attaching"
	case StateActive:
		return "active"
	case StateDetached:
		return "detached"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Conn is the part of *websocket.Conn a session needs.
type Conn interface {
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	RemoteAddr() net.Addr
	Close() error
}

// Session is the host-side representative of one listener connection inside
// one room. It is owned by its room while attached.
type Session struct {
	ID   string
	Room protocol.RoomID

	registry *Registry
	outbound *queue.Ring[*protocol.ClickEvent]
	state    atomic.Int32
	once     sync.Once
	logger   *slog.Logger
}

func newSession(room protocol.RoomID, r *Registry) *Session {
	id := uuid.NewString()
	return &Session{
		ID:       id,
		Room:     room,
		registry: r,
		outbound: queue.NewRing[*protocol.ClickEvent](r.opts.QueueSize),
		logger:   r.logger.With("room", room, "session", id),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Pending returns the number of queued, undelivered clicks.
func (s *Session) Pending() int {
	return s.outbound.Len()
}

// Dropped returns how many clicks were discarded because the listener fell behind.
func (s *Session) Dropped() uint64 {
	return s.outbound.Dropped()
}

func (s *Session) enqueue(ev *protocol.ClickEvent) {
	if s.outbound.Push(ev) {
		s.logger.Debug("Session queue full, dropped oldest click")
	}
}

// Close ends the session from the host side. It is safe to call at any time
// and from any goroutine.
func (s *Session) Close() {
	s.detach()
}

// detach unregisters the session exactly once, whatever ended it.
func (s *Session) detach() {
	s.once.Do(func() {
		s.state.Store(int32(StateDetached))
		s.outbound.Close()
		s.registry.Detach(s.Room, s)
	})
}

// Serve pumps queued clicks to conn until the listener goes away, ctx is
// cancelled, or the session is closed. The session is detached when Serve
// returns. A nil error means the session ended normally.
func (s *Session) Serve(ctx context.Context, conn Conn, codec protocol.Codec) error {
	if !s.state.CompareAndSwap(int32(StateAttaching), int32(StateActive)) {
		conn.Close()
		return ErrSessionDetached
	}
	defer s.detach()

	opts := s.registry.opts
	if err := s.write(conn, codec, protocol.WelcomeFrame(s.Room, s.ID, opts.PingPeriod), opts.WriteWait); err != nil {
		conn.Close()
		return fmt.Errorf("write welcome: %w", err)
	}
	s.logger.Debug("Session active", "remote", conn.RemoteAddr())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.writePump(conn, codec, opts)
	}()

	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-stop:
		}
	}()

	err := s.readPump(conn, opts)
	close(stop)
	s.detach()
	wg.Wait()

	if err != nil {
		s.logger.Debug("Session ended", "reason", err)
	}
	return err
}

// readPump only exists to observe liveness: listeners send nothing but pongs
// and close frames.
func (s *Session) readPump(conn Conn, opts Options) error {
	defer conn.Close()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(opts.PongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if s.State() == StateDetached {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	}
}

// writePump is the only writer on conn once the session is active.
func (s *Session) writePump(conn Conn, codec protocol.Codec, opts Options) {
	ticker := time.NewTicker(opts.PingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case <-s.outbound.Ready():
			for {
				ev, ok := s.outbound.TryPop()
				if !ok {
					break
				}
				if err := s.write(conn, codec, ev.Frame(), opts.WriteWait); err != nil {
					s.logger.Debug("Write failed", "error", err)
					return
				}
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(opts.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-s.outbound.Done():
			conn.SetWriteDeadline(time.Now().Add(opts.WriteWait))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		}
	}
}

func (s *Session) write(conn Conn, codec protocol.Codec, f *protocol.Frame, wait time.Duration) error {
	data, err := codec.Marshal(f)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(wait))
	return conn.WriteMessage(codec.MessageType(), data)
}
