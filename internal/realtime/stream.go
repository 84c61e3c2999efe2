// Package realtime abstracts push channels delivering newly inserted activity log records.
package realtime

import (
	"context"
	"errors"
	"sync"

	"example.com/activityfeed/internal/domain"
)

// ErrUnavailable is returned by channels that cannot be subscribed in this deployment.
var ErrUnavailable = errors.New("realtime channel unavailable")

// Channel opens subscriptions on a push channel.
type Channel interface {
	Subscribe(ctx context.Context, topic string) (Stream, error)
}

// Stream is a live subscription. Records is closed when the subscription ends; Err then reports
// why it ended, and is nil after a Close initiated by the subscriber.
type Stream interface {
	Records() <-chan domain.RawRecord
	Err() error
	Close() error
}

// Emit hands a record to the subscriber. It returns false once the stream is closing.
type Emit func(domain.RawRecord) bool

// RunFunc pumps records into emit until ctx is cancelled or the source fails.
type RunFunc func(ctx context.Context, emit Emit) error

type pumpStream struct {
	records chan domain.RawRecord
	done    chan struct{}
	cancel  context.CancelFunc
	release func() error

	err       error
	closeOnce sync.Once
	closeErr  error
}

// NewStream runs run in its own goroutine and exposes its output as a Stream. release is invoked
// once, after run has returned, when the stream is closed.
func NewStream(ctx context.Context, run RunFunc, release func() error) Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &pumpStream{
		records: make(chan domain.RawRecord),
		done:    make(chan struct{}),
		cancel:  cancel,
		release: release,
	}

	emit := func(rec domain.RawRecord) bool {
		select {
		case s.records <- rec:
			return true
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		defer close(s.done)
		defer close(s.records)
		if err := run(ctx, emit); err != nil && ctx.Err() == nil {
			s.err = err
		}
	}()
	return s
}

func (s *pumpStream) Records() <-chan domain.RawRecord {
	return s.records
}

func (s *pumpStream) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

func (s *pumpStream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
		if s.release != nil {
			s.closeErr = s.release()
		}
	})
	return s.closeErr
}

// Unavailable is a Channel whose subscriptions always fail.
type Unavailable struct {
	Reason string
}

// Subscribe implements Channel.
func (u Unavailable) Subscribe(context.Context, string) (Stream, error) {
	if u.Reason == "" {
		return nil, ErrUnavailable
	}
	return nil, errors.Join(ErrUnavailable, errors.New(u.Reason))
}
