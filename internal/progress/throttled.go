package progress

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/pace/internal/metrics"
)

// ErrSinkClosed is the panic value (wrapped) raised when an event is sent to
// a ThrottledSink after Close. It means a producer outlived the sink.
var ErrSinkClosed = errors.New("progress sink closed")

// Config controls a ThrottledSink.
//   - Interval: longest time a burst is coalesced before the next frame (default 100ms).
//   - BufferSize: capacity of the event channel; producers block when it is full (default 100).
//   - Logger: optional structured logger.
type Config struct {
	Interval   time.Duration
	BufferSize int
	Logger     *zap.Logger
}

const (
	defaultInterval   = 100 * time.Millisecond
	defaultBufferSize = 100
)

type message struct {
	target StageID
	ev     Event
}

// ThrottledSink is an Updater that owns a Tracker on a dedicated goroutine.
// It renders immediately on the first event after an idle period, then
// coalesces further events for up to Interval before rendering again.
type ThrottledSink struct {
	cfg       Config
	renderers []Renderer
	events    chan message
	doneCh    chan struct{}
	logger    *zap.Logger

	mu     sync.RWMutex
	closed bool

	// Owned by the run goroutine.
	tracker *Tracker
	applied int
	frames  int
}

// NewThrottledSink starts the consumer goroutine and returns the sink. The
// first frame (of an empty tree) is rendered right away.
func NewThrottledSink(cfg Config, renderers ...Renderer) *ThrottledSink {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	s := &ThrottledSink{
		cfg:       cfg,
		renderers: append([]Renderer(nil), renderers...),
		events:    make(chan message, cfg.BufferSize),
		doneCh:    make(chan struct{}),
		logger:    logger,
		tracker:   NewTracker(),
	}
	go s.run()
	return s
}

// StartThrottled starts a ThrottledSink drawing to renderers and opens the
// first stage on it. The caller ends the stage and then closes the sink.
func StartThrottled(cfg Config, total int, name string, renderers ...Renderer) (*Reporter, *ThrottledSink) {
	sink := NewThrottledSink(cfg, renderers...)
	return Start(sink, total, name), sink
}

// Update queues an event for the consumer, blocking while the buffer is
// full. Calling Update after Close panics with ErrSinkClosed.
func (s *ThrottledSink) Update(target StageID, ev Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		panic(fmt.Errorf("%w: %s for stage %d", ErrSinkClosed, ev, target))
	}
	s.events <- message{target: target, ev: ev}
}

// Close stops accepting events and waits for the consumer to drain the buffer
// and exit. It is safe to call more than once.
func (s *ThrottledSink) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	s.mu.Unlock()
	<-s.doneCh
}

// Done is closed once the consumer goroutine has exited.
func (s *ThrottledSink) Done() <-chan struct{} {
	return s.doneCh
}

func (s *ThrottledSink) run() {
	defer close(s.doneCh)
	s.logger.Debug("progress sink started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Int("buffer_size", s.cfg.BufferSize),
	)
	defer func() {
		s.logger.Debug("progress sink stopped",
			zap.Int("events_applied", s.applied),
			zap.Int("frames_rendered", s.frames),
			zap.Int("stages", s.tracker.Len()),
		)
	}()

	timer := time.NewTimer(s.cfg.Interval)
	stopTimer(timer)
	for {
		s.render()

		msg, ok := <-s.events
		if !ok {
			return
		}
		s.apply(msg)
		windowStart := time.Now()
		batch := 1

		if !s.coalesce(timer, windowStart, &batch) {
			metrics.ObserveWindow(batch)
			return
		}
		metrics.ObserveWindow(batch)
	}
}

// coalesce applies events until the window since windowStart has elapsed. It
// returns false if the event channel was closed.
func (s *ThrottledSink) coalesce(timer *time.Timer, windowStart time.Time, batch *int) bool {
	for {
		remaining := s.cfg.Interval - time.Since(windowStart)
		if remaining <= 0 {
			return true
		}
		timer.Reset(remaining)
		select {
		case msg, ok := <-s.events:
			stopTimer(timer)
			if !ok {
				return false
			}
			s.apply(msg)
			*batch++
		case <-timer.C:
			return true
		}
	}
}

func (s *ThrottledSink) apply(msg message) {
	s.applied++
	metrics.ObserveEvent(string(msg.ev.Kind))
	if !s.tracker.Apply(msg.target, msg.ev) {
		metrics.ObserveIgnored()
		s.logger.Debug("ignoring event for unknown stage",
			zap.Stringer("target", msg.target),
			zap.Stringer("event", msg.ev),
		)
	}
}

func (s *ThrottledSink) render() {
	start := time.Now()
	for _, r := range s.renderers {
		if r == nil {
			continue
		}
		if err := r.Render(s.tracker); err != nil {
			s.logger.Warn("progress render failed", zap.Error(err))
		}
	}
	s.frames++
	metrics.ObserveFrame(time.Since(start))
}

func stopTimer(timer *time.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
}
