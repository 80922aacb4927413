package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"gatekeeper/internal/models"

	"github.com/redis/go-redis/v9"
)

// recordScript resets, increments and reads the window hash in one atomic
// step. ARGV: now (µs), window (µs), ttl (ms).
var recordScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local start = tonumber(redis.call('HGET', KEYS[1], 'start'))
local count
if start == nil or now - start > window then
	start = now
	count = 1
	redis.call('HSET', KEYS[1], 'count', count, 'start', ARGV[1])
else
	count = redis.call('HINCRBY', KEYS[1], 'count', 1)
end
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return {count, start}
`)

// RedisStore keeps each window in a Redis hash with a TTL of twice the
// window, so Redis itself evicts idle keys.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to cfg.Addr and verifies the connection.
func NewRedisStore(ctx context.Context, cfg models.RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("address is required for Redis storage")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisStore{client: client, prefix: cfg.KeyPrefix}, nil
}

func (rs *RedisStore) redisKey(key string) string {
	return rs.prefix + key
}

func (rs *RedisStore) Record(ctx context.Context, key string, now time.Time, window time.Duration) (Window, error) {
	ttl := 2 * window.Milliseconds()
	if ttl <= 0 {
		ttl = 1
	}
	res, err := recordScript.Run(ctx, rs.client, []string{rs.redisKey(key)},
		toMicros(now), window.Microseconds(), ttl).Int64Slice()
	if err != nil {
		return Window{}, fmt.Errorf("failed to record request for %s: %w", key, err)
	}
	if len(res) != 2 {
		return Window{}, fmt.Errorf("unexpected script result for %s: %v", key, res)
	}
	return Window{Count: res[0], Start: fromMicros(res[1])}, nil
}

func (rs *RedisStore) Get(ctx context.Context, key string) (Window, error) {
	fields, err := rs.client.HGetAll(ctx, rs.redisKey(key)).Result()
	if err != nil {
		return Window{}, fmt.Errorf("failed to get window for %s: %w", key, err)
	}
	if len(fields) == 0 {
		return Window{}, ErrNotFound
	}

	count, err := strconv.ParseInt(fields["count"], 10, 64)
	if err != nil {
		return Window{}, fmt.Errorf("invalid count for %s: %w", key, err)
	}
	start, err := strconv.ParseInt(fields["start"], 10, 64)
	if err != nil {
		return Window{}, fmt.Errorf("invalid window start for %s: %w", key, err)
	}
	return Window{Count: count, Start: fromMicros(start)}, nil
}

func (rs *RedisStore) Reset(ctx context.Context, key string) error {
	if err := rs.client.Del(ctx, rs.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to reset window for %s: %w", key, err)
	}
	return nil
}

// PurgeExpired is a no-op; keys expire through their TTL.
func (rs *RedisStore) PurgeExpired(ctx context.Context, now time.Time, window time.Duration) (int, error) {
	return 0, nil
}

func (rs *RedisStore) Ping(ctx context.Context) error {
	return rs.client.Ping(ctx).Err()
}

func (rs *RedisStore) Close() error {
	return rs.client.Close()
}
