package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"tg-vaultbot/internal/config"
	"tg-vaultbot/internal/models"
)

const conversationKeyPrefix = "vaultbot:conversation:"

// RedisConversationStore keeps conversation states in Redis so they survive
// restarts and can be shared between bot replicas. Entries expire via key TTL.
type RedisConversationStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

func NewRedisConversationStore(client *redis.Client, ttl time.Duration) *RedisConversationStore {
	return &RedisConversationStore{client: client, ttl: ttl}
}

func (s *RedisConversationStore) key(key models.ConversationKey) string {
	return conversationKeyPrefix + key.String()
}

func (s *RedisConversationStore) Get(ctx context.Context, key models.ConversationKey) (models.ConversationState, error) {
	value, err := s.client.Get(ctx, s.key(key)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.StateIdle, nil
		}
		return models.StateIdle, fmt.Errorf("get conversation %s: %w", key, err)
	}
	return models.ConversationState(value), nil
}

func (s *RedisConversationStore) Set(ctx context.Context, key models.ConversationKey, state models.ConversationState) error {
	if !state.Active() {
		return s.Clear(ctx, key)
	}
	if err := s.client.Set(ctx, s.key(key), int(state), s.ttl).Err(); err != nil {
		return fmt.Errorf("set conversation %s: %w", key, err)
	}
	return nil
}

func (s *RedisConversationStore) Clear(ctx context.Context, key models.ConversationKey) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("clear conversation %s: %w", key, err)
	}
	return nil
}
