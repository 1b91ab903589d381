package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"casino-miniapp/internal/models"
)

// RedisStore keeps the account record in Redis, for clients that share a
// profile across machines.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisStore(ctx context.Context, addr, password string, db int, profile string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	key := StorageKey
	if profile != "" {
		key = fmt.Sprintf("%s:%s", StorageKey, profile)
	}

	return &RedisStore{client: client, key: key, ttl: 30 * 24 * time.Hour}, nil
}

func (s *RedisStore) Load(ctx context.Context) (*models.Account, error) {
	data, err := s.client.Get(ctx, s.key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var account models.Account
	if err := json.Unmarshal([]byte(data), &account); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &account, nil
}

func (s *RedisStore) Save(ctx context.Context, account models.Account) error {
	data, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return s.client.Set(ctx, s.key, data, s.ttl).Err()
}

func (s *RedisStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
