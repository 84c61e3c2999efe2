package feed

import (
	"context"
	"sync"

	"example.com/activityfeed/internal/domain"
	"example.com/activityfeed/internal/realtime"
)

// RealtimeFeed forwards records from a push channel as validated activity events.
// A failed or dropped subscription leaves the feed degraded; it is not retried.
type RealtimeFeed struct {
	settings

	channel realtime.Channel
	topic   string

	mu       sync.Mutex
	degraded bool
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	stream realtime.Stream
	done   chan struct{}

	mu     sync.Mutex
	closed bool
	once   sync.Once
}

// NewRealtimeFeed constructs a feed reading topic from channel.
func NewRealtimeFeed(channel realtime.Channel, topic string, opts ...Option) *RealtimeFeed {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	if channel == nil {
		channel = realtime.Unavailable{Reason: "no channel configured"}
	}
	return &RealtimeFeed{settings: s, channel: channel, topic: topic}
}

// Subscribe opens the push channel and forwards each valid record to onEvent from a single
// goroutine. It never fails; when the channel cannot be opened the feed becomes degraded and the
// returned handle is already finished.
func (f *RealtimeFeed) Subscribe(ctx context.Context, onEvent func(domain.ActivityEvent)) *Subscription {
	sub := &Subscription{done: make(chan struct{})}

	stream, err := f.channel.Subscribe(ctx, f.topic)
	if err != nil {
		f.markDegraded("subscribe failed", err)
		close(sub.done)
		return sub
	}

	f.mu.Lock()
	f.degraded = false
	f.mu.Unlock()
	degradedGauge.Set(0)
	f.logger.Info().Str("topic", f.topic).Msg("realtime feed subscribed")

	sub.stream = stream
	go f.forward(sub, onEvent)
	return sub
}

// Unsubscribe releases the subscription. It is idempotent, accepts a nil or failed handle,
// and guarantees no onEvent call is running or starts after it returns.
func (f *RealtimeFeed) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	sub.once.Do(func() {
		sub.mu.Lock()
		sub.closed = true
		sub.mu.Unlock()

		if sub.stream != nil {
			if err := sub.stream.Close(); err != nil {
				f.logger.Warn().Err(err).Msg("realtime stream close failed")
			}
		}
	})
	<-sub.done
}

// Degraded reports whether only simulated events can currently be shown.
func (f *RealtimeFeed) Degraded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.degraded
}

func (f *RealtimeFeed) forward(sub *Subscription, onEvent func(domain.ActivityEvent)) {
	defer close(sub.done)

	for rec := range sub.stream.Records() {
		ev, err := domain.DecodeRecord(rec)
		if err != nil {
			realtimeDropped.WithLabelValues("invalid").Inc()
			f.logger.Debug().Err(err).Str("activity_id", rec.ID).Msg("dropping invalid realtime record")
			continue
		}
		if f.sessionID != "" && ev.SessionID == f.sessionID {
			realtimeDropped.WithLabelValues("own_session").Inc()
			continue
		}

		sub.mu.Lock()
		if sub.closed {
			sub.mu.Unlock()
			return
		}
		realtimeReceived.Inc()
		onEvent(ev)
		sub.mu.Unlock()
	}

	sub.mu.Lock()
	closed := sub.closed
	sub.mu.Unlock()
	if !closed {
		f.markDegraded("stream dropped", sub.stream.Err())
	}
}

func (f *RealtimeFeed) markDegraded(reason string, err error) {
	f.mu.Lock()
	f.degraded = true
	f.mu.Unlock()
	degradedGauge.Set(1)
	f.logger.Warn().Err(err).Str("topic", f.topic).Str("reason", reason).Msg("realtime feed degraded, continuing with simulated events only")
}
