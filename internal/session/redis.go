package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps values in redis under an optional key prefix.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore wraps client. Every Set refreshes the key TTL when ttl > 0.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

// NewRedisClient connects to addr and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.prefix+key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// SetIfAbsent stores value with SETNX. When the key is taken it returns the
// stored value instead.
func (s *RedisStore) SetIfAbsent(ctx context.Context, key, value string) (string, bool, error) {
	// The held key can expire between SETNX and GET; retry a few times.
	for attempt := 0; attempt < 3; attempt++ {
		ok, err := s.client.SetNX(ctx, s.prefix+key, value, s.ttl).Result()
		if err != nil {
			return "", false, fmt.Errorf("redis setnx: %w", err)
		}
		if ok {
			return value, true, nil
		}
		cur, found, err := s.Get(ctx, key)
		if err != nil {
			return "", false, err
		}
		if found {
			return cur, false, nil
		}
	}
	return "", false, errors.New("redis setnx: key kept expiring")
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
