// Package activitystore loads the seed list that drives simulated notifications.
package activitystore

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"example.com/activityfeed/internal/domain"
)

var seedFallbackCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "activity_notifier",
	Subsystem: "seed",
	Name:      "fallback_total",
	Help:      "Seed loads served from the built-in list, labeled by cause.",
}, []string{"cause"})

func init() {
	prometheus.MustRegister(seedFallbackCounter)
}

// Reader fetches the most recent activity log records, newest first.
type Reader interface {
	FetchRecent(ctx context.Context, limit int) ([]domain.RawRecord, error)
}

// Option configures the Store.
type Option func(*Store)

// WithLogger overrides the store logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithNow overrides the clock used to date fallback events.
func WithNow(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Store loads seed events from the activity log, falling back to a built-in list.
type Store struct {
	reader Reader
	logger zerolog.Logger
	now    func() time.Time
}

// New constructs a Store. A nil reader always yields the built-in list.
func New(reader Reader, opts ...Option) *Store {
	s := &Store{reader: reader, logger: zerolog.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadSeed returns up to limit recent events, newest first. It never fails: read errors,
// unusable records and empty results are answered with the built-in list.
func (s *Store) LoadSeed(ctx context.Context, limit int) []domain.ActivityEvent {
	if s.reader == nil {
		return s.fallback("no_reader", nil)
	}
	if limit <= 0 {
		return s.fallback("no_limit", nil)
	}

	records, err := s.reader.FetchRecent(ctx, limit)
	if err != nil {
		return s.fallback("fetch_error", err)
	}

	events := make([]domain.ActivityEvent, 0, len(records))
	for _, rec := range records {
		ev, err := domain.DecodeRecord(rec)
		if err != nil {
			s.logger.Debug().Err(err).Str("activity_id", rec.ID).Msg("skipping malformed seed record")
			continue
		}
		events = append(events, ev)
		if len(events) == limit {
			break
		}
	}
	if len(events) == 0 {
		return s.fallback("empty", nil)
	}

	s.logger.Info().Int("events", len(events)).Msg("seed loaded from activity log")
	return events
}

func (s *Store) fallback(cause string, err error) []domain.ActivityEvent {
	seedFallbackCounter.WithLabelValues(cause).Inc()
	s.logger.Warn().Err(err).Str("cause", cause).Msg("using built-in activity seed")
	return Fallback(s.now())
}

type fallbackEntry struct {
	action   domain.ActionType
	actor    string
	subject  string
	location string
	ago      time.Duration
}

var fallbackEntries = []fallbackEntry{
	{domain.ActionReservation, "Anna K.", "Roadster GT", "Lisbon", 3 * time.Minute},
	{domain.ActionInquiry, "Marcus", "Trail Runner 4x4", "Porto", 11 * time.Minute},
	{domain.ActionDelivery, "Sofia", "City Cruiser", "Braga", 42 * time.Minute},
	{domain.ActionShare, "Tiago", "Roadster GT", "Coimbra", 2 * time.Hour},
	{domain.ActionReservation, "Inês", "Coastline Convertible", "Faro", 5 * time.Hour},
	{domain.ActionInquiry, "", "", "", 26 * time.Hour},
}

// Fallback returns the built-in seed list dated relative to now. It covers every known action type.
func Fallback(now time.Time) []domain.ActivityEvent {
	events := make([]domain.ActivityEvent, 0, len(fallbackEntries))
	for i, entry := range fallbackEntries {
		events = append(events, domain.ActivityEvent{
			ID:          fmt.Sprintf("seed-%d", i+1),
			ActionType:  entry.action,
			ActorName:   entry.actor,
			SubjectName: entry.subject,
			Location:    entry.location,
			OccurredAt:  now.Add(-entry.ago).UTC(),
		})
	}
	return events
}
