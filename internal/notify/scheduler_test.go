package notify

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"example.com/activityfeed/internal/domain"
)

const (
	display = 500 * time.Millisecond
	gap     = 100 * time.Millisecond
	waitFor = time.Second
	pollAt  = 5 * time.Millisecond
	quiet   = 50 * time.Millisecond
)

type recordingSink struct {
	mu         sync.Mutex
	calls      []string
	visible    bool
	violations int
	absent     atomic.Bool
}

func (s *recordingSink) Available() bool { return !s.absent.Load() }

func (s *recordingSink) Render(ev domain.ActivityEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.visible {
		s.violations++
	}
	s.visible = true
	s.calls = append(s.calls, "render:"+ev.ID)
}

func (s *recordingSink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible = false
	s.calls = append(s.calls, "clear")
}

func (s *recordingSink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *recordingSink) waitCalls(t *testing.T, want ...string) {
	t.Helper()
	require.Eventually(t, func() bool {
		got := s.snapshot()
		if len(got) != len(want) {
			return false
		}
		for i := range got {
			if got[i] != want[i] {
				return false
			}
		}
		return true
	}, waitFor, pollAt, "sink calls: %v", s.snapshot())
}

func (s *recordingSink) stayAt(t *testing.T, n int) {
	t.Helper()
	require.Never(t, func() bool { return len(s.snapshot()) != n }, quiet, pollAt)
}

func event(id string) domain.ActivityEvent {
	return domain.ActivityEvent{
		ID:         id,
		ActionType: domain.ActionReservation,
		OccurredAt: time.Date(2025, time.October, 27, 20, 0, 0, 0, time.UTC),
	}
}

func newTestScheduler(sink Sink) (*Scheduler, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClock()
	return NewScheduler(sink, WithClock(clock), WithDisplayDuration(display), WithInterQueueGap(gap)), clock
}

func TestEnqueueShowsImmediatelyWhenIdle(t *testing.T) {
	sink := &recordingSink{}
	s, clock := newTestScheduler(sink)

	require.True(t, s.Enqueue(event("A")))
	require.Equal(t, []string{"render:A"}, sink.snapshot())

	snap := s.Snapshot()
	require.Equal(t, StateShowing, snap.State)
	require.Equal(t, SourceRealtime, snap.Source)
	require.Equal(t, "A", snap.Current.ID)

	clock.Advance(display)
	sink.waitCalls(t, "render:A", "clear")
	require.Equal(t, StateIdle, s.Snapshot().State)
}

func TestQueuedEventsShownInArrivalOrderWithGap(t *testing.T) {
	sink := &recordingSink{}
	s, clock := newTestScheduler(sink)

	s.Enqueue(event("A"))
	s.Enqueue(event("B"))
	s.Enqueue(event("C"))
	require.Equal(t, 2, s.Snapshot().QueueLen)

	clock.Advance(display)
	sink.waitCalls(t, "render:A", "clear")
	require.Equal(t, StateDraining, s.Snapshot().State)

	clock.Advance(gap - time.Millisecond)
	sink.stayAt(t, 2)
	clock.Advance(time.Millisecond)
	sink.waitCalls(t, "render:A", "clear", "render:B")

	clock.Advance(display)
	sink.waitCalls(t, "render:A", "clear", "render:B", "clear")
	clock.Advance(gap)
	sink.waitCalls(t, "render:A", "clear", "render:B", "clear", "render:C")

	clock.Advance(display)
	sink.waitCalls(t, "render:A", "clear", "render:B", "clear", "render:C", "clear")
	require.Equal(t, StateIdle, s.Snapshot().State)
	require.Zero(t, sink.violations)
}

func TestTickShownDirectlyWhenIdle(t *testing.T) {
	sink := &recordingSink{}
	s, clock := newTestScheduler(sink)
	before := testutil.ToFloat64(shownCounter.WithLabelValues(string(SourceSimulated)))

	require.True(t, s.Tick(event("S1")))
	require.Equal(t, SourceSimulated, s.Snapshot().Source)
	require.Zero(t, s.Snapshot().QueueLen, "simulated ticks are never queued")

	clock.Advance(display)
	sink.waitCalls(t, "render:S1", "clear")

	require.True(t, s.Tick(event("S2")))
	sink.waitCalls(t, "render:S1", "clear", "render:S2")
	require.Equal(t, before+2, testutil.ToFloat64(shownCounter.WithLabelValues(string(SourceSimulated))))
}

func TestTickDiscardedWhileShowing(t *testing.T) {
	sink := &recordingSink{}
	s, clock := newTestScheduler(sink)
	before := testutil.ToFloat64(discardedCounter.WithLabelValues(string(SourceSimulated), reasonShowing))

	require.True(t, s.Tick(event("S1")))
	require.False(t, s.Tick(event("S2")))
	require.Zero(t, s.Snapshot().QueueLen)
	require.Equal(t, before+1, testutil.ToFloat64(discardedCounter.WithLabelValues(string(SourceSimulated), reasonShowing)))

	clock.Advance(display)
	sink.waitCalls(t, "render:S1", "clear")
	clock.Advance(10 * display)
	sink.stayAt(t, 2)
}

func TestQueuedEventTakesPriorityOverTick(t *testing.T) {
	sink := &recordingSink{}
	s, clock := newTestScheduler(sink)

	s.Enqueue(event("A"))
	s.Enqueue(event("B"))

	clock.Advance(display)
	sink.waitCalls(t, "render:A", "clear")

	yielded := discardedCounter.WithLabelValues(string(SourceSimulated), reasonDraining)
	before := testutil.ToFloat64(yielded)
	snap := s.Snapshot()
	require.Equal(t, StateDraining, snap.State)
	require.Equal(t, 1, snap.QueueLen)
	require.False(t, s.Tick(event("S")), "tick must yield to the pending queue")
	require.Equal(t, 1, s.Snapshot().QueueLen)
	require.Equal(t, before+1, testutil.ToFloat64(yielded))

	clock.Advance(gap)
	sink.waitCalls(t, "render:A", "clear", "render:B")

	clock.Advance(display)
	sink.waitCalls(t, "render:A", "clear", "render:B", "clear")
	clock.Advance(time.Hour)
	sink.stayAt(t, 4)
}

func TestEnqueueDuringShowingWaitsForSlot(t *testing.T) {
	sink := &recordingSink{}
	s, clock := newTestScheduler(sink)

	require.True(t, s.Tick(event("S")))
	require.True(t, s.Enqueue(event("A")))
	require.Equal(t, []string{"render:S"}, sink.snapshot())

	clock.Advance(display)
	sink.waitCalls(t, "render:S", "clear")
	clock.Advance(gap)
	sink.waitCalls(t, "render:S", "clear", "render:A")
}

func TestStopSilencesPendingTimers(t *testing.T) {
	sink := &recordingSink{}
	s, clock := newTestScheduler(sink)

	s.Enqueue(event("A"))
	s.Enqueue(event("B"))
	s.Stop()
	s.Stop()

	clock.Advance(time.Hour)
	sink.stayAt(t, 1)

	require.False(t, s.Enqueue(event("C")))
	require.False(t, s.Tick(event("D")))
	sink.stayAt(t, 1)

	snap := s.Snapshot()
	require.Equal(t, StateStopped, snap.State)
	require.Zero(t, snap.QueueLen)
}

func TestStopDuringDrainGap(t *testing.T) {
	sink := &recordingSink{}
	s, clock := newTestScheduler(sink)

	s.Enqueue(event("A"))
	s.Enqueue(event("B"))
	clock.Advance(display)
	sink.waitCalls(t, "render:A", "clear")

	s.Stop()
	clock.Advance(gap)
	sink.stayAt(t, 2)
}

func TestUnavailableSinkNeverRenders(t *testing.T) {
	sink := &recordingSink{}
	sink.absent.Store(true)
	s, _ := newTestScheduler(sink)

	require.True(t, s.Enqueue(event("A")))
	require.False(t, s.Tick(event("S")))
	require.Empty(t, sink.snapshot())

	snap := s.Snapshot()
	require.Equal(t, StateIdle, snap.State)
	require.Zero(t, snap.QueueLen)

	sink.absent.Store(false)
	require.True(t, s.Tick(event("S2")))
	require.Equal(t, []string{"render:S2"}, sink.snapshot())
}

func TestSinkVanishingBeforeExpirySkipsClear(t *testing.T) {
	sink := &recordingSink{}
	s, clock := newTestScheduler(sink)

	s.Tick(event("S"))
	sink.absent.Store(true)
	clock.Advance(display)
	require.Eventually(t, func() bool { return s.Snapshot().State == StateIdle }, waitFor, pollAt)
	require.Equal(t, []string{"render:S"}, sink.snapshot())
}

func TestInvalidEventNeverReachesQueue(t *testing.T) {
	sink := &recordingSink{}
	s, _ := newTestScheduler(sink)

	s.Tick(event("S"))
	missingTime := event("X")
	missingTime.OccurredAt = time.Time{}

	require.False(t, s.Enqueue(missingTime))
	require.Zero(t, s.Snapshot().QueueLen)

	missingAction := event("Y")
	missingAction.ActionType = ""
	require.False(t, s.Enqueue(missingAction))
	require.Zero(t, s.Snapshot().QueueLen)
}

func TestAtMostOneVisibleUnderMixedTraffic(t *testing.T) {
	sink := &recordingSink{}
	s, clock := newTestScheduler(sink)

	for i := 0; i < 20; i++ {
		id := string(rune('a' + i))
		if i%3 == 0 {
			s.Enqueue(event("q" + id))
		} else {
			s.Tick(event("t" + id))
		}
		clock.Advance(130 * time.Millisecond)
		time.Sleep(2 * time.Millisecond)
	}
	s.Stop()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Zero(t, sink.violations)
	require.NotEmpty(t, sink.calls)
}
