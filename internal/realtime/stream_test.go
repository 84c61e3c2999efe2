package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/activityfeed/internal/domain"
)

func TestStreamDeliversRecordsUntilSourceFails(t *testing.T) {
	boom := errors.New("connection reset")
	stream := NewStream(context.Background(), func(ctx context.Context, emit Emit) error {
		emit(domain.RawRecord{ID: "1"})
		emit(domain.RawRecord{ID: "2"})
		return boom
	}, nil)

	var ids []string
	for rec := range stream.Records() {
		ids = append(ids, rec.ID)
	}
	require.Equal(t, []string{"1", "2"}, ids)
	require.ErrorIs(t, stream.Err(), boom)
	require.NoError(t, stream.Close())
}

func TestStreamCloseStopsPumpAndReleasesOnce(t *testing.T) {
	released := 0
	stream := NewStream(context.Background(), func(ctx context.Context, emit Emit) error {
		for {
			if !emit(domain.RawRecord{ID: "x"}) {
				return ctx.Err()
			}
		}
	}, func() error {
		released++
		return nil
	})

	<-stream.Records()
	require.Nil(t, stream.Err())
	require.NoError(t, stream.Close())
	require.NoError(t, stream.Close())
	require.Equal(t, 1, released)
	require.NoError(t, stream.Err(), "subscriber-initiated close is not an error")

	select {
	case _, ok := <-stream.Records():
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("records channel not closed")
	}
}

func TestUnavailableChannel(t *testing.T) {
	_, err := Unavailable{}.Subscribe(context.Background(), "activity_log")
	require.ErrorIs(t, err, ErrUnavailable)

	_, err = Unavailable{Reason: "driver disabled"}.Subscribe(context.Background(), "activity_log")
	require.ErrorIs(t, err, ErrUnavailable)
	require.ErrorContains(t, err, "driver disabled")
}
