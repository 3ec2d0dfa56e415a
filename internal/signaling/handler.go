package signaling

import (
	"log/slog"
	"time"

	"go.uber.org/atomic"

	"github.com/clickrtraining/clickrtraining/internal/playback"
	"github.com/clickrtraining/clickrtraining/internal/protocol"
)

// Sink accepts playback requests without blocking.
type Sink interface {
	Submit(req playback.Request)
}

// Handler routes frames by type: clicks become playback requests, the rest
// is logged.
type Handler struct {
	sink    Sink
	volume  float64
	logger  *slog.Logger
	onClick func(ev *protocol.ClickEvent)

	clicks  atomic.Uint64
	ignored atomic.Uint64
}

// NewHandler submits every click to sink at volume. A nil logger discards
// output.
func NewHandler(sink Sink, volume float64, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{sink: sink, volume: volume, logger: logger}
}

// OnClick registers fn to observe every click after it was submitted. Call
// it before the client runs.
func (h *Handler) OnClick(fn func(ev *protocol.ClickEvent)) {
	h.onClick = fn
}

func (h *Handler) HandleFrame(f *protocol.Frame) {
	switch f.Type {
	case protocol.FrameWelcome:
		h.logger.Info("Attached to room", "room", f.Room, "session", f.Session)

	case protocol.FrameClick:
		ev, err := protocol.ClickEventFromFrame(f)
		if err != nil {
			h.ignored.Inc()
			return
		}
		h.clicks.Inc()
		h.sink.Submit(playback.Request{
			Sound:    ev.Sound,
			Volume:   h.volume,
			Received: time.Now(),
		})
		h.logger.Debug("Click received", "room", ev.Room, "sound", ev.Sound, "event", ev.ID)
		if h.onClick != nil {
			h.onClick(ev)
		}

	case protocol.FrameError:
		h.logger.Warn("Host reported an error", "error", f.Error)

	default:
		h.ignored.Inc()
		h.logger.Debug("Ignoring unknown frame", "type", f.Type)
	}
}

// Clicks counts click frames handed to the sink.
func (h *Handler) Clicks() uint64 {
	return h.clicks.Load()
}

// Ignored counts frames that were not understood.
func (h *Handler) Ignored() uint64 {
	return h.ignored.Load()
}
