// Package signaling keeps a listener attached to its room on the host and
// turns incoming frames into playback requests.
package signaling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/atomic"

	"github.com/clickrtraining/clickrtraining/internal/protocol"
)

const (
	writeWait        = 10 * time.Second
	handshakeTimeout = 10 * time.Second
	maxMessageSize   = 64 * 1024

	// DefaultPongWait is how long the listener tolerates silence until the
	// host advertises its ping interval. The host pings every 54s by default.
	DefaultPongWait   = 75 * time.Second
	DefaultMinBackoff = 500 * time.Millisecond
	DefaultMaxBackoff = 30 * time.Second
)

// State is the connection lifecycle as seen by the listener.
type State int32

const (
	StateConnecting State = iota
	StateStreaming
	StateRetrying
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateRetrying:
		return "retrying"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// FrameHandler consumes decoded frames.
type FrameHandler interface {
	HandleFrame(f *protocol.Frame)
}

// Options configures a Client.
type Options struct {
	// URL is the room's attach endpoint, see protocol.AttachURL.
	URL        string
	MinBackoff time.Duration
	MaxBackoff time.Duration
	PongWait   time.Duration

	// Dial opens the TCP connection. Nil uses a plain net.Dialer.
	Dial func(ctx context.Context, network, addr string) (net.Conn, error)

	// OnState is called from Run's goroutine on every transition. err is the
	// reason for entering StateRetrying and nil otherwise.
	OnState func(state State, err error)

	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.MinBackoff <= 0 {
		o.MinBackoff = DefaultMinBackoff
	}
	if o.MaxBackoff < o.MinBackoff {
		o.MaxBackoff = max(DefaultMaxBackoff, o.MinBackoff)
	}
	if o.PongWait <= 0 {
		o.PongWait = DefaultPongWait
	}
	if o.Dial == nil {
		var d net.Dialer
		o.Dial = d.DialContext
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// Client holds one listener attachment and re-establishes it after any
// failure until its context ends.
type Client struct {
	opts     Options
	handler  FrameHandler
	dialer   *websocket.Dialer
	state    atomic.Int32
	connects atomic.Uint64
}

// NewClient creates a client that feeds frames to handler.
func NewClient(opts Options, handler FrameHandler) *Client {
	opts = opts.withDefaults()
	return &Client{
		opts:    opts,
		handler: handler,
		dialer: &websocket.Dialer{
			NetDialContext:   opts.Dial,
			HandshakeTimeout: handshakeTimeout,
			Proxy:            http.ProxyFromEnvironment,
		},
	}
}

// State reports the current lifecycle state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// Connects counts successful attachments.
func (c *Client) Connects() uint64 {
	return c.connects.Load()
}

func (c *Client) setState(s State, err error) {
	c.state.Store(int32(s))
	if c.opts.OnState != nil {
		c.opts.OnState(s, err)
	}
}

// Run connects and streams until ctx is cancelled, retrying with
// exponential backoff. It returns nil once ctx ends.
func (c *Client) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.MinBackoff
	b.MaxInterval = c.opts.MaxBackoff
	b.MaxElapsedTime = 0
	b.Reset()

	c.setState(StateConnecting, nil)
	for {
		conn, err := c.dial(ctx)
		if err == nil {
			c.connects.Inc()
			b.Reset()
			c.setState(StateStreaming, nil)
			c.opts.Logger.Info("Connected to room", "url", c.opts.URL)
			err = c.stream(ctx, conn)
		}
		if ctx.Err() != nil {
			c.setState(StateClosed, nil)
			return nil
		}

		delay := b.NextBackOff()
		c.setState(StateRetrying, err)
		c.opts.Logger.Warn("Connection lost, retrying", "in", delay, "error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.setState(StateClosed, nil)
			return nil
		case <-timer.C:
		}
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, resp, err := c.dialer.DialContext(ctx, c.opts.URL, nil)
	if err != nil {
		if errors.Is(err, websocket.ErrBadHandshake) && resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", c.opts.URL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", c.opts.URL, err)
	}
	return conn, nil
}

// stream reads frames until the connection fails or ctx ends. Pings from the
// host are answered with pongs; any traffic proves the host alive.
func (c *Client) stream(ctx context.Context, conn *websocket.Conn) error {
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		conn.Close()
	})
	defer stop()

	wait := c.opts.PongWait
	extend := func() {
		_ = conn.SetReadDeadline(time.Now().Add(wait))
	}

	conn.SetReadLimit(maxMessageSize)
	extend()
	conn.SetPingHandler(func(data string) error {
		extend()
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
		var ne net.Error
		if errors.Is(err, websocket.ErrCloseSent) || (errors.As(err, &ne) && ne.Timeout()) {
			return nil
		}
		return err
	})

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		extend()

		codec, ok := protocol.CodecForMessageType(mt)
		if !ok {
			continue
		}
		var f protocol.Frame
		if err := codec.Unmarshal(data, &f); err != nil {
			c.opts.Logger.Warn("Dropping undecodable frame", "codec", codec.Name(), "error", err)
			continue
		}
		if ping := f.AdvertisedPingPeriod(); ping > 0 {
			wait = readWindow(c.opts.PongWait, ping)
			extend()
			c.opts.Logger.Debug("Host keepalive", "ping_period", ping, "read_window", wait)
		}
		c.handler.HandleFrame(&f)
	}
}

// readWindow is the read deadline used once the host has advertised its ping
// interval: one and a half intervals plus write slack, never below pongWait.
func readWindow(pongWait, ping time.Duration) time.Duration {
	return max(pongWait, ping+ping/2+writeWait)
}
