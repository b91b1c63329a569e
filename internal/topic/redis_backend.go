package topic

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend maps stream topics 1:1 onto Redis Streams with consumer
// groups: Publish is XADD, Read is XREADGROUP, Ack is XACK, and messages
// that outlive their visibility timeout are reclaimed with XAUTOCLAIM on
// the next Read (spec.md §4.2 "distributed backend maps 1:1 onto Redis
// Streams with consumer groups").
type RedisBackend struct {
	client *redis.Client
	group  string
}

const redisStreamField = "payload"

// NewRedisBackend wraps an existing go-redis client. group names the
// consumer group every StreamTopic reader joins; all readers in a
// deployment should share the same group so messages are load-balanced
// rather than duplicated.
func NewRedisBackend(client *redis.Client, group string) *RedisBackend {
	if group == "" {
		group = "sideseat"
	}
	return &RedisBackend{client: client, group: group}
}

func (r *RedisBackend) ensureGroup(ctx context.Context, topic string) error {
	err := r.client.XGroupCreateMkStream(ctx, topic, r.group, "0").Err()
	if err != nil && !errors.Is(err, redis.Nil) && !isBusyGroupErr(err) {
		return err
	}
	return nil
}

func isBusyGroupErr(err error) bool {
	return err != nil && len(err.Error()) >= 8 && err.Error()[:8] == "BUSYGROU"
}

func (r *RedisBackend) Publish(ctx context.Context, topic string, payload []byte) (string, error) {
	id, err := r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: topic,
		Values: map[string]any{redisStreamField: payload},
	}).Result()
	if err != nil {
		if errors.Is(err, redis.ErrClosed) {
			return "", ErrClosed
		}
		return "", err
	}
	return id, nil
}

func (r *RedisBackend) Read(ctx context.Context, topic, consumer string, max int, visibility time.Duration) ([]StreamMessage, error) {
	if err := r.ensureGroup(ctx, topic); err != nil {
		return nil, err
	}

	// First reclaim anything whose visibility timeout has elapsed.
	claimed, _, err := r.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   topic,
		Group:    r.group,
		Consumer: consumer,
		MinIdle:  visibility,
		Start:    "0-0",
		Count:    int64(max),
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	out := toStreamMessages(claimed)
	if len(out) >= max {
		return out[:max], nil
	}

	res, err := r.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    r.group,
		Consumer: consumer,
		Streams:  []string{topic, ">"},
		Count:    int64(max - len(out)),
		Block:    0,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	for _, s := range res {
		out = append(out, toStreamMessages(s.Messages)...)
	}
	return out, nil
}

func toStreamMessages(msgs []redis.XMessage) []StreamMessage {
	out := make([]StreamMessage, 0, len(msgs))
	for _, m := range msgs {
		payload, _ := m.Values[redisStreamField].(string)
		out = append(out, StreamMessage{ID: m.ID, Payload: []byte(payload), DeliveryCount: 1})
	}
	return out
}

func (r *RedisBackend) Ack(ctx context.Context, topic string, id string) error {
	return r.client.XAck(ctx, topic, r.group, id).Err()
}

func (r *RedisBackend) Stats(ctx context.Context, topic string) (StreamStats, error) {
	pending, err := r.client.XPending(ctx, topic, r.group).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return StreamStats{}, nil
		}
		return StreamStats{}, err
	}
	return StreamStats{InFlight: int(pending.Count)}, nil
}
