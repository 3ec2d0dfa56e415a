package hub

import "time"

const (
	// DefaultWriteWait is the time allowed to write a frame to the listener.
	DefaultWriteWait = 10 * time.Second

	// DefaultPongWait is the time allowed to read the next pong from the listener.
	DefaultPongWait = 60 * time.Second

	// DefaultQueueSize is the number of undelivered clicks kept per session.
	DefaultQueueSize = 16

	// maxMessageSize is the largest frame accepted from a listener. Listeners
	// only ever send control frames.
	maxMessageSize = 4 * 1024
)

// Options tunes every session created by a Registry.
type Options struct {
	WriteWait time.Duration
	PongWait  time.Duration
	// PingPeriod must be less than PongWait. Zero derives 9/10 of PongWait.
	PingPeriod time.Duration
	QueueSize  int
}

func (o Options) withDefaults() Options {
	if o.WriteWait <= 0 {
		o.WriteWait = DefaultWriteWait
	}
	if o.PongWait <= 0 {
		o.PongWait = DefaultPongWait
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = (o.PongWait * 9) / 10
	}
	if o.QueueSize <= 0 {
		o.QueueSize = DefaultQueueSize
	}
	return o
}
