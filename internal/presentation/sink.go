package presentation

import (
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"example.com/activityfeed/internal/domain"
)

// Surface displays composed notifications.
type Surface interface {
	Available() bool
	Show(n Notification)
	Hide()
}

// Sink adapts a Surface to the display scheduler.
type Sink struct {
	surface Surface
	clock   clockwork.Clock
}

// NewSink constructs a Sink composing notifications against clock.
func NewSink(surface Surface, clock clockwork.Clock) *Sink {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Sink{surface: surface, clock: clock}
}

// Available reports whether the surface exists.
func (s *Sink) Available() bool {
	return s.surface != nil && s.surface.Available()
}

// Render composes ev and shows it.
func (s *Sink) Render(ev domain.ActivityEvent) {
	if !s.Available() {
		return
	}
	s.surface.Show(Compose(ev, s.clock.Now()))
}

// Clear hides the visible notification.
func (s *Sink) Clear() {
	if !s.Available() {
		return
	}
	s.surface.Hide()
}

// LogSurface writes notifications to a logger. It is always available.
type LogSurface struct {
	logger zerolog.Logger
}

// NewLogSurface constructs a LogSurface.
func NewLogSurface(logger zerolog.Logger) *LogSurface {
	return &LogSurface{logger: logger}
}

func (l *LogSurface) Available() bool { return true }

func (l *LogSurface) Show(n Notification) {
	l.logger.Info().
		Str("icon", n.Icon).
		Str("time_ago", n.TimeAgo).
		Str("activity_id", n.ID).
		Msg(n.Message)
}

func (l *LogSurface) Hide() {
	l.logger.Debug().Msg("notification hidden")
}
