package outbox

import (
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

func TestProducerWriterSettings(t *testing.T) {
	p := NewKafkaProducer([]string{"kafka:9092"})
	w := p.newWriter("activity_log")

	require.Equal(t, "activity_log", w.Topic)
	require.IsType(t, &kafka.Hash{}, w.Balancer)
	require.Equal(t, kafka.RequireOne, w.RequiredAcks)
	require.Equal(t, defaultBatchTimeout, w.BatchTimeout)
	require.Equal(t, defaultWriteTimeout, w.WriteTimeout)

	tuned := NewKafkaProducer([]string{"kafka:9092"}, WithBatchTimeout(time.Millisecond), WithWriteTimeout(0))
	w = tuned.newWriter("activity_log")
	require.Equal(t, time.Millisecond, w.BatchTimeout)
	require.Equal(t, defaultWriteTimeout, w.WriteTimeout)
}

func TestProducerReusesWriterPerTopic(t *testing.T) {
	p := NewKafkaProducer([]string{"kafka:9092"})
	first := p.writerForTopic("activity_log")
	require.Same(t, first, p.writerForTopic("activity_log"))
	require.NotSame(t, first, p.writerForTopic("audit"))

	require.NoError(t, p.Close())
	require.Empty(t, p.writers)
}
