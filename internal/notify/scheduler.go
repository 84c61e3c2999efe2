// Package notify serialises realtime and simulated activity events into a single display slot.
package notify

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"example.com/activityfeed/internal/domain"
	"example.com/activityfeed/internal/observability"
	"example.com/activityfeed/internal/platform/schedule"
)

// Sink is the presentation collaborator owning the visible notification.
type Sink interface {
	// Available reports whether the display surface currently exists.
	Available() bool
	Render(ev domain.ActivityEvent)
	Clear()
}

// State describes the display slot.
type State string

const (
	StateIdle     State = "idle"
	StateShowing  State = "showing"
	StateDraining State = "draining"
	StateStopped  State = "stopped"
)

// Source identifies the producer of a displayed event.
type Source string

const (
	SourceRealtime  Source = "realtime"
	SourceSimulated Source = "simulated"
)

// Discard reasons reported in metrics and logs.
const (
	reasonShowing    = "showing"
	reasonDraining   = "draining"
	reasonInvalid    = "invalid"
	reasonSinkAbsent = "sink_unavailable"
	reasonStopped    = "stopped"
)

// Snapshot is a point-in-time view of the scheduler.
type Snapshot struct {
	State    State                 `json:"state"`
	Current  *domain.ActivityEvent `json:"current,omitempty"`
	Source   Source                `json:"source,omitempty"`
	QueueLen int                   `json:"queue_length"`
}

// Scheduler owns the display slot. Enqueue, Tick and timer expiry run to completion under a
// single lock, so at most one event is visible at any instant.
type Scheduler struct {
	mu sync.Mutex

	sink            Sink
	clock           clockwork.Clock
	logger          zerolog.Logger
	displayDuration time.Duration
	interQueueGap   time.Duration

	queue    Queue
	current  *domain.ActivityEvent
	source   Source
	draining bool
	stopped  bool

	timer      *schedule.Task
	generation uint64
}

// Option configures the scheduler.
type Option func(*Scheduler)

// WithClock overrides the clock driving display timers.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Scheduler) {
		s.clock = clock
	}
}

// WithLogger overrides the scheduler logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithDisplayDuration sets how long each notification stays visible.
func WithDisplayDuration(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.displayDuration = d
		}
	}
}

// WithInterQueueGap sets the pause between consecutive queued notifications.
func WithInterQueueGap(d time.Duration) Option {
	return func(s *Scheduler) {
		if d >= 0 {
			s.interQueueGap = d
		}
	}
}

// NewScheduler constructs an idle Scheduler rendering into sink.
func NewScheduler(sink Sink, opts ...Option) *Scheduler {
	s := &Scheduler{
		sink:            sink,
		clock:           clockwork.NewRealClock(),
		logger:          zerolog.Nop(),
		displayDuration: 6 * time.Second,
		interQueueGap:   time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enqueue appends a realtime event to the queue and shows it immediately when the slot is idle.
// It reports whether the event was accepted.
func (s *Scheduler) Enqueue(ev domain.ActivityEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		s.discard(SourceRealtime, reasonStopped, ev)
		return false
	}
	if err := ev.Validate(); err != nil {
		s.discard(SourceRealtime, reasonInvalid, ev)
		return false
	}

	s.queue.Push(ev)
	queueDepthGauge.Set(float64(s.queue.Len()))

	if s.idle() {
		s.dequeueAndShow()
	}
	return true
}

// Tick offers a simulated event. It is shown only when the slot is idle and no realtime event
// is waiting; otherwise it is dropped. It reports whether the event was shown.
func (s *Scheduler) Tick(ev domain.ActivityEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.stopped:
		s.discard(SourceSimulated, reasonStopped, ev)
		return false
	case ev.Validate() != nil:
		s.discard(SourceSimulated, reasonInvalid, ev)
		return false
	case s.current != nil:
		s.discard(SourceSimulated, reasonShowing, ev)
		return false
	case s.draining:
		// Draining is entered only with queued events, and an idle slot never holds any, so
		// this is the case where a tick yields to the queue.
		s.discard(SourceSimulated, reasonDraining, ev)
		return false
	}

	return s.show(ev, SourceSimulated)
}

// Stop cancels pending timers and drops queued events. No sink call happens after Stop returns.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.stopped = true
	s.generation++
	s.timer.Cancel()
	s.timer = nil
	s.current = nil
	s.draining = false
	if dropped := s.queue.Clear(); dropped > 0 {
		discardedCounter.WithLabelValues(string(SourceRealtime), reasonStopped).Add(float64(dropped))
	}
	queueDepthGauge.Set(0)
	s.logger.Info().Msg("display scheduler stopped")
}

// Snapshot returns the current slot state.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{QueueLen: s.queue.Len()}
	switch {
	case s.stopped:
		snap.State = StateStopped
	case s.current != nil:
		snap.State = StateShowing
		current := *s.current
		snap.Current = &current
		snap.Source = s.source
	case s.draining:
		snap.State = StateDraining
	default:
		snap.State = StateIdle
	}
	return snap
}

func (s *Scheduler) sinkAvailable() bool {
	return s.sink != nil && s.sink.Available()
}

func (s *Scheduler) idle() bool {
	return s.current == nil && !s.draining
}

// dequeueAndShow pops queued events until one is shown or the queue is empty.
func (s *Scheduler) dequeueAndShow() {
	for {
		ev, ok := s.queue.Pop()
		queueDepthGauge.Set(float64(s.queue.Len()))
		if !ok {
			return
		}
		if s.show(ev, SourceRealtime) {
			return
		}
	}
}

func (s *Scheduler) show(ev domain.ActivityEvent, source Source) bool {
	if !s.sinkAvailable() {
		s.discard(source, reasonSinkAbsent, ev)
		return false
	}

	s.current = &ev
	s.source = source
	s.generation++
	gen := s.generation
	s.timer = schedule.After(s.clock, s.displayDuration, func() { s.expire(gen) })

	s.sink.Render(ev)
	shownCounter.WithLabelValues(string(source)).Inc()
	observability.RecordNotificationShown(s.clock.Now())
	s.logger.Debug().
		Str("source", string(source)).
		Str("action_type", string(ev.ActionType)).
		Str("activity_id", ev.ID).
		Msg("notification shown")
	return true
}

func (s *Scheduler) expire(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped || gen != s.generation {
		return
	}

	s.current = nil
	s.source = ""
	s.timer = nil
	if s.queue.Len() > 0 {
		s.draining = true
		s.generation++
		next := s.generation
		s.timer = schedule.After(s.clock, s.interQueueGap, func() { s.drain(next) })
	}

	if s.sinkAvailable() {
		s.sink.Clear()
	}
}

func (s *Scheduler) drain(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped || gen != s.generation {
		return
	}
	s.draining = false
	s.timer = nil
	s.dequeueAndShow()
}

func (s *Scheduler) discard(source Source, reason string, ev domain.ActivityEvent) {
	discardedCounter.WithLabelValues(string(source), reason).Inc()
	s.logger.Debug().
		Str("source", string(source)).
		Str("reason", reason).
		Str("action_type", string(ev.ActionType)).
		Msg("notification discarded")
}
