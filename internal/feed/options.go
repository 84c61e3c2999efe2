// Package feed produces activity events for the display scheduler: a simulated replay of the
// seed list and a forwarder for realtime push records.
package feed

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

type settings struct {
	clock        clockwork.Clock
	logger       zerolog.Logger
	initialDelay time.Duration
	interval     time.Duration
	sessionID    string
}

func defaultSettings() settings {
	return settings{
		clock:        clockwork.NewRealClock(),
		logger:       zerolog.Nop(),
		initialDelay: 8 * time.Second,
		interval:     30 * time.Second,
	}
}

// Option configures a feed.
type Option func(*settings)

// WithClock overrides the clock driving simulated ticks.
func WithClock(clock clockwork.Clock) Option {
	return func(s *settings) {
		s.clock = clock
	}
}

// WithLogger overrides the feed logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithInitialDelay sets the delay before the first simulated tick.
func WithInitialDelay(d time.Duration) Option {
	return func(s *settings) {
		if d >= 0 {
			s.initialDelay = d
		}
	}
}

// WithInterval sets the period between simulated ticks.
func WithInterval(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithSessionFilter makes the realtime feed drop records stamped with sessionID.
func WithSessionFilter(sessionID string) Option {
	return func(s *settings) {
		s.sessionID = sessionID
	}
}
