// Package playback turns click events into sound on the listener machine.
package playback

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.uber.org/atomic"

	"github.com/clickrtraining/clickrtraining/internal/protocol"
	"github.com/clickrtraining/clickrtraining/internal/queue"
)

// DefaultQueueSize is the number of pending requests kept while a sound is
// playing.
const DefaultQueueSize = 4

// Request asks for one sound to be played.
type Request struct {
	Sound    protocol.SoundReference
	Volume   float64
	Received time.Time
}

// Resolver maps a sound reference to a playable file.
type Resolver interface {
	Resolve(protocol.SoundReference) (string, error)
}

// Stats counts what the scheduler did with submitted requests.
type Stats struct {
	Played    uint64
	Failed    uint64
	Coalesced uint64
	Dropped   uint64
}

// Scheduler plays requests one at a time. Requests that pile up while a
// sound is playing collapse into the most recent one.
type Scheduler struct {
	queue    *queue.Ring[Request]
	resolver Resolver
	player   Player
	logger   *slog.Logger

	played    atomic.Uint64
	failed    atomic.Uint64
	coalesced atomic.Uint64
}

// NewScheduler creates a scheduler. queueSize below 1 uses DefaultQueueSize.
func NewScheduler(resolver Resolver, player Player, queueSize int, logger *slog.Logger) *Scheduler {
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{
		queue:    queue.NewRing[Request](queueSize),
		resolver: resolver,
		player:   player,
		logger:   logger,
	}
}

// Submit enqueues req without blocking.
func (s *Scheduler) Submit(req Request) {
	if s.queue.Push(req) {
		s.logger.Debug("Playback queue full, dropped oldest request")
	}
}

// Run plays queued requests until ctx is cancelled. An in-flight sound is
// stopped on cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.queue.Close()

	for {
		req, err := s.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		for {
			next, ok := s.queue.TryPop()
			if !ok {
				break
			}
			s.coalesced.Inc()
			req = next
		}

		s.play(ctx, req)
	}
}

func (s *Scheduler) play(ctx context.Context, req Request) {
	path, err := s.resolver.Resolve(req.Sound)
	if err != nil {
		s.failed.Inc()
		s.logger.Warn("Cannot resolve sound", "sound", req.Sound, "error", err)
		return
	}

	start := time.Now()
	if err := s.player.Play(ctx, path, req.Volume); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.failed.Inc()
		s.logger.Warn("Playback failed", "sound", req.Sound, "path", path, "error", err)
		return
	}
	s.played.Inc()
	s.logger.Debug("Played sound",
		"sound", req.Sound,
		"latency", start.Sub(req.Received),
		"duration", time.Since(start),
	)
}

// Stats returns a snapshot of the counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Played:    s.played.Load(),
		Failed:    s.failed.Load(),
		Coalesced: s.coalesced.Load(),
		Dropped:   s.queue.Dropped(),
	}
}
