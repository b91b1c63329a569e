package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// incrScript atomically increments key by ARGV[1] and, only when the
// increment created the key (i.e. its value now equals the delta and
// ttl is positive), sets an expiration. This mirrors INCRBY followed by
// a conditional EXPIRE NX without the race between the two commands.
const incrScript = `
local v = redis.call("INCRBY", KEYS[1], ARGV[1])
if tonumber(ARGV[2]) > 0 and v == tonumber(ARGV[1]) then
	redis.call("EXPIRE", KEYS[1], ARGV[2])
end
return v
`

// RedisService is a Service backed by Redis, used in multi-replica
// deployments where authorization and counter state must be shared.
type RedisService struct {
	client redis.UniversalClient
}

// NewRedisService wraps an existing Redis client.
func NewRedisService(client redis.UniversalClient) *RedisService {
	return &RedisService{client: client}
}

func (r *RedisService) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return val, nil
}

func (r *RedisService) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisService) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisService) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	return n > 0, err
}

func (r *RedisService) Incr(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	ttlSeconds := int64(0)
	if ttl > 0 {
		ttlSeconds = int64(ttl.Seconds())
		if ttlSeconds <= 0 {
			ttlSeconds = 1
		}
	}
	res, err := r.client.Eval(ctx, incrScript, []string{key}, delta, ttlSeconds).Result()
	if err != nil {
		return 0, err
	}
	n, ok := res.(int64)
	if !ok {
		return 0, errors.New("cache: unexpected incr script result type")
	}
	return n, nil
}

func (r *RedisService) GetCounter(ctx context.Context, key string) (int64, error) {
	n, err := r.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return n, nil
}

func (r *RedisService) TTL(ctx context.Context, key string) (time.Duration, error) {
	exists, err := r.Exists(ctx, key)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, ErrNotFound
	}
	d, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, nil
	}
	return d, nil
}

// DeletePattern scans for keys matching pattern in batches and removes
// them with UNLINK, which reclaims memory asynchronously in the Redis
// server and keeps a large invalidation from blocking other clients.
func (r *RedisService) DeletePattern(ctx context.Context, pattern string) (int, error) {
	var total int
	iter := r.client.Scan(ctx, 0, pattern, 200).Iterator()
	batch := make([]string, 0, 200)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := r.client.Unlink(ctx, batch...).Err(); err != nil {
			return err
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= 200 {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return total, err
	}
	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}

func (r *RedisService) HealthCheck(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		log.Debug().Err(err).Msg("cache_redis_health_check_failed")
		return err
	}
	return nil
}

func (r *RedisService) Close() error {
	return r.client.Close()
}
