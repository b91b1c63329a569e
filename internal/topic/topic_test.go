package topic

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type spanRef struct {
	TraceID string `json:"trace_id"`
	SpanID  string `json:"span_id"`
}

func TestStreamTopicRedeliversOnlyAfterVisibilityTimeout(t *testing.T) {
	backend := NewMemoryBackend(DefaultChannelCapacity)
	registry := NewRegistry(backend)
	st, err := RegisterStream[spanRef](registry, "spans.pending", 0)
	require.NoError(t, err)

	visTopic := st.WithCodec(JSONCodec[spanRef]{})
	visTopic.visibility = 20 * time.Millisecond

	ctx := context.Background()
	id, err := visTopic.Publish(ctx, spanRef{TraceID: "t1", SpanID: "s1"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	sub := visTopic.Subscribe("worker-a")
	first, err := sub.Read(ctx, 10)
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Equal(t, "t1", first[0].Value.TraceID)

	// Still within the visibility window: must not be redelivered.
	again, err := sub.Read(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, again)

	time.Sleep(30 * time.Millisecond)

	redelivered, err := sub.Read(ctx, 10)
	require.NoError(t, err)
	require.Len(t, redelivered, 1)
	require.Equal(t, 2, redelivered[0].DeliveryCount)
}

func TestStreamTopicAckedMessageNeverRedelivers(t *testing.T) {
	backend := NewMemoryBackend(DefaultChannelCapacity)
	registry := NewRegistry(backend)
	st, err := RegisterStream[spanRef](registry, "spans.acked", 0)
	require.NoError(t, err)
	st.visibility = 10 * time.Millisecond

	ctx := context.Background()
	_, err = st.Publish(ctx, spanRef{TraceID: "t2", SpanID: "s2"})
	require.NoError(t, err)

	sub := st.Subscribe("worker-b")
	msgs, err := sub.Read(ctx, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	require.NoError(t, sub.Ack(ctx, msgs[0].ID))

	time.Sleep(20 * time.Millisecond)

	msgs, err = sub.Read(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, msgs)
}

func TestStreamTopicTypeMismatchOnRegistry(t *testing.T) {
	backend := NewMemoryBackend(DefaultChannelCapacity)
	registry := NewRegistry(backend)
	_, err := RegisterStream[spanRef](registry, "shared", 0)
	require.NoError(t, err)

	_, err = RegisterStream[string](registry, "shared", 0)
	require.ErrorIs(t, err, ErrTypeMismatch)
}

func TestStreamPublishRespectsBufferCapacity(t *testing.T) {
	backend := NewMemoryBackend(2)
	registry := NewRegistry(backend)
	st, err := RegisterStream[spanRef](registry, "bounded", 0)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = st.Publish(ctx, spanRef{TraceID: "a"})
	require.NoError(t, err)
	_, err = st.Publish(ctx, spanRef{TraceID: "b"})
	require.NoError(t, err)
	_, err = st.Publish(ctx, spanRef{TraceID: "c"})
	require.ErrorIs(t, err, ErrBufferFull)
}

func TestBroadcastTopicLagSkipsToOldestRetained(t *testing.T) {
	registry := NewRegistry(nil)
	bt, err := RegisterBroadcast[int](registry, "events", 2)
	require.NoError(t, err)

	sub := bt.Subscribe()

	bt.Publish(1)
	bt.Publish(2)
	bt.Publish(3) // overflows the capacity-2 buffer before sub reads anything

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err = sub.Recv(ctx)
	var lagged *LaggedError
	require.ErrorAs(t, err, &lagged)
	require.Equal(t, 1, lagged.Skipped)

	v, err := sub.Recv(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, v)

	v, err = sub.Recv(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, v)
}

func TestBroadcastTopicBlocksUntilPublish(t *testing.T) {
	registry := NewRegistry(nil)
	bt, err := RegisterBroadcast[int](registry, "live", 4)
	require.NoError(t, err)
	sub := bt.Subscribe()

	done := make(chan int, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		v, err := sub.Recv(ctx)
		require.NoError(t, err)
		done <- v
	}()

	time.Sleep(10 * time.Millisecond)
	bt.Publish(42)

	select {
	case v := <-done:
		require.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("Recv did not unblock after Publish")
	}
}

func TestRegistryCloseIsIdempotentAndSafe(t *testing.T) {
	backend := NewMemoryBackend(DefaultChannelCapacity)
	registry := NewRegistry(backend)
	_, err := RegisterStream[spanRef](registry, "closing", 0)
	require.NoError(t, err)
	_, err = RegisterBroadcast[int](registry, "closing-broadcast", 4)
	require.NoError(t, err)

	registry.Close(context.Background())
	registry.Close(context.Background())
}
