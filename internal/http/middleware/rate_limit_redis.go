package middleware

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// KEYS[1] sorted set of admitted request times (ms).
// ARGV: now_ms, window_ms, limit, member.
// Returns {1, 0} when admitted, {0, oldest_ms} when refused.
var redisSlidingWindowScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", now - window)
local count = redis.call("ZCARD", KEYS[1])
if count < limit then
  redis.call("ZADD", KEYS[1], ARGV[1], ARGV[4])
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
  return {1, 0}
end
local oldest = redis.call("ZRANGE", KEYS[1], 0, 0, "WITHSCORES")
return {0, tonumber(oldest[2])}
`)

type RedisSlidingWindowLimiter struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisSlidingWindowLimiter(client redis.UniversalClient, prefix string) *RedisSlidingWindowLimiter {
	if prefix == "" {
		prefix = "rl"
	}
	return &RedisSlidingWindowLimiter{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

func (l *RedisSlidingWindowLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	if l.client == nil {
		return false, window, fmt.Errorf("redis client is nil")
	}
	if key == "" {
		key = "unknown"
	}
	windowMS := window.Milliseconds()
	if windowMS <= 0 {
		windowMS = 1000
	}
	nowMS := l.now().UnixMilli()
	storeKey := fmt.Sprintf("%s:%s", l.prefix, key)
	member := strconv.FormatInt(nowMS, 10) + "-" + uuid.NewString()

	raw, err := redisSlidingWindowScript.Run(ctx, l.client, []string{storeKey}, nowMS, windowMS, limit, member).Result()
	if err != nil {
		return false, window, err
	}
	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return false, window, fmt.Errorf("unexpected redis script response type")
	}
	admitted, err := parseRedisInt64(values[0])
	if err != nil {
		return false, window, err
	}
	if admitted == 1 {
		return true, 0, nil
	}
	oldestMS, err := parseRedisInt64(values[1])
	if err != nil {
		return false, window, err
	}
	retryMS := oldestMS + windowMS - nowMS
	if retryMS <= 0 {
		retryMS = 1
	}
	return false, time.Duration(retryMS) * time.Millisecond, nil
}

func parseRedisInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("redis integer overflows int64: %d", n)
		}
		return int64(n), nil
	case int:
		return int64(n), nil
	case string:
		return 0, fmt.Errorf("unexpected string redis response: %s", n)
	default:
		return 0, fmt.Errorf("unexpected redis response type %T", v)
	}
}
