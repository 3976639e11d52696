// Package redis backs ephemeral.Store with a Redis instance, the shared
// TTL store when the server runs on more than one node.
package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"collabdoc-server/ephemeral"
)

type store struct {
	client *redis.Client
}

func NewStore(addr, password string, db int) (ephemeral.Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, err
	}
	return &store{client: client}, nil
}

// NewStoreFromClient wraps an existing client so the broadcaster and the
// TTL store can share one connection pool.
func NewStoreFromClient(client *redis.Client) ephemeral.Store {
	return &store{client: client}
}

func (s *store) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *store) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *store) SetAdd(ctx context.Context, key, member string, ttl time.Duration) error {
	pipe := s.client.Pipeline()
	pipe.SAdd(ctx, key, member)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *store) SetRemove(ctx context.Context, key, member string) error {
	return s.client.SRem(ctx, key, member).Err()
}

func (s *store) SetMembers(ctx context.Context, key string) ([]string, error) {
	members, err := s.client.SMembers(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	return members, err
}

func (s *store) HashSet(ctx context.Context, key, field, value string, ttl time.Duration) error {
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, field, value)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *store) HashDelete(ctx context.Context, key, field string) error {
	return s.client.HDel(ctx, key, field).Err()
}

func (s *store) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	fields, err := s.client.HGetAll(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	return fields, err
}

func (s *store) Close() error {
	return s.client.Close()
}
