package cache

import (
	"context"
	"sync"
	"time"

	"mesapos/backend/internal/domain"
)

type SuggestionCache interface {
	Get(ctx context.Context, key string) (*domain.SuggestionResponse, bool, error)
	Set(ctx context.Context, key string, value *domain.SuggestionResponse, ttl time.Duration) error
}

type NoopSuggestionCache struct{}

func (NoopSuggestionCache) Get(_ context.Context, _ string) (*domain.SuggestionResponse, bool, error) {
	return nil, false, nil
}

func (NoopSuggestionCache) Set(_ context.Context, _ string, _ *domain.SuggestionResponse, _ time.Duration) error {
	return nil
}

// MemorySuggestionCache is a process-local cache for terminals without Redis.
// When full it drops expired entries first, then everything.
type MemorySuggestionCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	limit   int
	now     func() time.Time
}

type memoryEntry struct {
	value     domain.SuggestionResponse
	expiresAt time.Time
}

func NewMemorySuggestionCache(limit int) *MemorySuggestionCache {
	if limit < 1 {
		limit = 256
	}
	return &MemorySuggestionCache{entries: make(map[string]memoryEntry), limit: limit, now: time.Now}
}

func (c *MemorySuggestionCache) Get(_ context.Context, key string) (*domain.SuggestionResponse, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false, nil
	}
	value := entry.value
	return &value, true, nil
}

func (c *MemorySuggestionCache) Set(_ context.Context, key string, value *domain.SuggestionResponse, ttl time.Duration) error {
	if value == nil || ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.limit {
		for k, entry := range c.entries {
			if !now.Before(entry.expiresAt) {
				delete(c.entries, k)
			}
		}
		if len(c.entries) >= c.limit {
			clear(c.entries)
		}
	}
	c.entries[key] = memoryEntry{value: *value, expiresAt: now.Add(ttl)}
	return nil
}
