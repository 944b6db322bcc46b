package kvstore

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore implements Store with github.com/go-redis/redis/v8, grounded
// on the Get/Set-with-TTL shape in
// absmach-magistrala/lora/redis/routemap.go and
// absmach-magistrala/internal/clients/redis/producer.go.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an already-configured *redis.Client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Dial parses a redis:// URL and opens a client, mirroring the
// absmach-magistrala cmd/*/main.go pattern of building clients from a URL
// config field.
func Dial(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return NewRedisStore(redis.NewClient(opts)), nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// HSet implements Store. Redis hashes don't carry a per-field TTL, so the
// whole hash's expiry is (re)armed on every segment write — matching
// spec §3's "store segment ... set key TTL=300s" applied per arrival.
func (s *RedisStore) HSet(ctx context.Context, key, field, value string, ttl time.Duration) error {
	if err := s.client.HSet(ctx, key, field, value).Err(); err != nil {
		return err
	}
	return s.client.Expire(ctx, key, ttl).Err()
}

// HVals implements Store.
func (s *RedisStore) HVals(ctx context.Context, key string) ([]string, error) {
	return s.client.HVals(ctx, key).Result()
}

// Del implements Store.
func (s *RedisStore) Del(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// Close releases the underlying client connection (spec §5 "Supervisor
// teardown ... closes shared resources").
func (s *RedisStore) Close() error {
	return s.client.Close()
}
