package topic

import (
	"context"
	"time"
)

const defaultVisibilityTimeout = 30 * time.Second

// StreamTopic is the typed, at-least-once façade over a Backend: every
// message is delivered to exactly one consumer at a time and stays
// invisible to others until acked or its visibility timeout elapses, at
// which point it becomes eligible for redelivery (spec.md §4.2).
type StreamTopic[T any] struct {
	name       string
	backend    Backend
	visibility time.Duration
	codec      Codec[T]
}

func newStreamTopic[T any](name string, backend Backend, visibilityTimeoutSeconds int) *StreamTopic[T] {
	vis := defaultVisibilityTimeout
	if visibilityTimeoutSeconds > 0 {
		vis = time.Duration(visibilityTimeoutSeconds) * time.Second
	}
	return &StreamTopic[T]{name: name, backend: backend, visibility: vis, codec: JSONCodec[T]{}}
}

// WithCodec swaps the topic's encoding, e.g. to ByteCodec when T is
// already []byte and a JSON round trip would be wasted work.
func (s *StreamTopic[T]) WithCodec(c Codec[T]) *StreamTopic[T] {
	s.codec = c
	return s
}

// Publish encodes value and appends it to the topic, returning the
// backend-assigned message id.
func (s *StreamTopic[T]) Publish(ctx context.Context, value T) (string, error) {
	payload, err := s.codec.Encode(value)
	if err != nil {
		return "", err
	}
	return s.backend.Publish(ctx, s.name, payload)
}

// Ack permanently removes id so it is never redelivered.
func (s *StreamTopic[T]) Ack(ctx context.Context, id string) error {
	return s.backend.Ack(ctx, s.name, id)
}

// Stats reports the topic's pending/in-flight depth.
func (s *StreamTopic[T]) Stats(ctx context.Context) (StreamStats, error) {
	return s.backend.Stats(ctx, s.name)
}

// StreamEnvelope pairs a decoded value with the id its Ack call needs.
type StreamEnvelope[T any] struct {
	ID            string
	Value         T
	DeliveryCount int
}

// Subscribe returns a subscription reading as consumer, which should be
// a stable identifier for the calling process/worker so redelivery after
// a crash is attributed correctly.
func (s *StreamTopic[T]) Subscribe(consumer string) *StreamSubscription[T] {
	return &StreamSubscription[T]{topic: s, consumer: consumer}
}

// StreamSubscription reads and acks messages from a StreamTopic as one
// named consumer.
type StreamSubscription[T any] struct {
	topic    *StreamTopic[T]
	consumer string
}

// Read fetches up to max undelivered-or-expired messages, marking each
// in-flight for the subscription's visibility timeout. Decode failures
// are skipped rather than returned, since a single malformed payload
// must not stall the rest of the batch; callers that need to observe
// decode errors should use a Codec that never fails (e.g. ByteCodec).
func (s *StreamSubscription[T]) Read(ctx context.Context, max int) ([]StreamEnvelope[T], error) {
	msgs, err := s.topic.backend.Read(ctx, s.topic.name, s.consumer, max, s.topic.visibility)
	if err != nil {
		return nil, err
	}
	out := make([]StreamEnvelope[T], 0, len(msgs))
	for _, m := range msgs {
		v, err := s.topic.codec.Decode(m.Payload)
		if err != nil {
			continue
		}
		out = append(out, StreamEnvelope[T]{ID: m.ID, Value: v, DeliveryCount: m.DeliveryCount})
	}
	return out, nil
}

// Ack permanently removes id.
func (s *StreamSubscription[T]) Ack(ctx context.Context, id string) error {
	return s.topic.backend.Ack(ctx, s.topic.name, id)
}

func (s *StreamTopic[T]) close() {}
