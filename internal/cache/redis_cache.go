package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"mesapos/backend/internal/domain"
)

const suggestionNamespace = "suggestion:"

// RedisSuggestionCache stores suggestion responses as JSON under
// prefix + "suggestion:" so it can share a Redis database with the
// rediskv ledger keys.
type RedisSuggestionCache struct {
	client *redis.Client
	prefix string
}

func NewRedisSuggestionCache(addr string, password string, db int, prefix string) *RedisSuggestionCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisSuggestionCache{client: client, prefix: prefix + suggestionNamespace}
}

func (c *RedisSuggestionCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisSuggestionCache) Close() error {
	return c.client.Close()
}

func (c *RedisSuggestionCache) key(key string) string {
	return c.prefix + key
}

// Get treats an undecodable entry as a miss and drops it.
func (c *RedisSuggestionCache) Get(ctx context.Context, key string) (*domain.SuggestionResponse, bool, error) {
	val, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get suggestion: %w", err)
	}

	var resp domain.SuggestionResponse
	if err := json.Unmarshal(val, &resp); err != nil {
		_ = c.client.Del(ctx, c.key(key)).Err()
		return nil, false, nil
	}
	return &resp, true, nil
}

func (c *RedisSuggestionCache) Set(ctx context.Context, key string, value *domain.SuggestionResponse, ttl time.Duration) error {
	if value == nil || ttl <= 0 {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode suggestion: %w", err)
	}
	if err := c.client.Set(ctx, c.key(key), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set suggestion: %w", err)
	}
	return nil
}
