package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisSessionSetScript = redis.NewScript(`
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
redis.call("SADD", KEYS[2], KEYS[1])
local ttl = redis.call("PTTL", KEYS[2])
if ttl < tonumber(ARGV[2]) then
  redis.call("PEXPIRE", KEYS[2], ARGV[2])
end
return 1
`)

type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "session"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Get(ctx context.Context, sid, key string) (string, bool, error) {
	if sid == "" {
		return "", false, ErrNoSession
	}
	v, err := s.client.Get(ctx, s.valueKey(sid, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("session get: %w", err)
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, sid, key, value string, ttl time.Duration) error {
	if sid == "" {
		return ErrNoSession
	}
	ttlMS := ttl.Milliseconds()
	if ttlMS <= 0 {
		ttlMS = 1
	}
	err := redisSessionSetScript.Run(ctx, s.client,
		[]string{s.valueKey(sid, key), s.indexKey(sid)},
		value, ttlMS,
	).Err()
	if err != nil {
		return fmt.Errorf("session set: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, sid string, keys ...string) error {
	if sid == "" {
		return ErrNoSession
	}
	if len(keys) == 0 {
		return nil
	}
	storeKeys := make([]string, 0, len(keys))
	members := make([]any, 0, len(keys))
	for _, key := range keys {
		k := s.valueKey(sid, key)
		storeKeys = append(storeKeys, k)
		members = append(members, k)
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, storeKeys...)
	pipe.SRem(ctx, s.indexKey(sid), members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("session delete: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, sid string) error {
	if sid == "" {
		return ErrNoSession
	}
	index := s.indexKey(sid)
	members, err := s.client.SMembers(ctx, index).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("session clear: %w", err)
	}
	if err := s.client.Del(ctx, append(members, index)...).Err(); err != nil {
		return fmt.Errorf("session clear: %w", err)
	}
	return nil
}

func (s *RedisStore) valueKey(sid, key string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, sid, key)
}

func (s *RedisStore) indexKey(sid string) string {
	return fmt.Sprintf("%s:%s:_keys", s.prefix, sid)
}
