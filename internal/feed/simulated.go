package feed

import (
	"sync"

	"example.com/activityfeed/internal/domain"
	"example.com/activityfeed/internal/platform/schedule"
)

// SimulatedFeed replays a fixed event sequence on a timer, wrapping around indefinitely.
type SimulatedFeed struct {
	settings

	mu         sync.Mutex
	events     []domain.ActivityEvent
	cursor     int
	onTick     func(domain.ActivityEvent)
	task       *schedule.Task
	generation uint64
	running    bool
}

// NewSimulatedFeed constructs a stopped feed over events.
func NewSimulatedFeed(events []domain.ActivityEvent, opts ...Option) *SimulatedFeed {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	return &SimulatedFeed{
		settings: s,
		events:   append([]domain.ActivityEvent(nil), events...),
	}
}

// Start fires onTick after the initial delay and then on every interval. Calling Start on a
// running feed restarts its timer; the cursor carries over.
func (f *SimulatedFeed) Start(onTick func(domain.ActivityEvent)) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.task.Cancel()
	f.onTick = onTick
	f.running = true
	f.generation++
	gen := f.generation
	f.task = schedule.Every(f.clock, f.initialDelay, f.interval, func() { f.fire(gen) })
	f.logger.Info().
		Int("events", len(f.events)).
		Dur("initial_delay", f.initialDelay).
		Dur("interval", f.interval).
		Msg("simulated feed started")
}

// Stop cancels the timer. No onTick call is in progress or starts after Stop returns.
func (f *SimulatedFeed) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.running {
		return
	}
	f.running = false
	f.generation++
	f.task.Cancel()
	f.task = nil
	f.logger.Info().Msg("simulated feed stopped")
}

// Running reports whether the feed is started.
func (f *SimulatedFeed) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *SimulatedFeed) fire(gen uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.running || gen != f.generation || len(f.events) == 0 || f.onTick == nil {
		return
	}
	ev := f.events[f.cursor]
	f.cursor = (f.cursor + 1) % len(f.events)
	simulatedTicks.Inc()
	f.onTick(ev)
}
