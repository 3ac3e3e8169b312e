package cache

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"mesapos/backend/internal/domain"
)

func TestRedisSuggestionCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("MESAPOS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set MESAPOS_TEST_REDIS_ADDR to run redis integration test")
	}

	ctx := context.Background()
	c := NewRedisSuggestionCache(addr, "", 0, "mesapos-it:")
	t.Cleanup(func() { _ = c.Close() })
	if err := c.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	key := fmt.Sprintf("%d", time.Now().UnixNano())
	if _, ok, err := c.Get(ctx, key); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	want := &domain.SuggestionResponse{
		Suggestion: &domain.Suggestion{Name: "Refresco", ReasonCode: "often_ordered_together", Confidence: 0.8},
		UIPolicy:   domain.UIPolicy{Show: true, CooldownSeconds: 45},
	}
	if err := c.Set(ctx, key, want, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got.Suggestion == nil || got.Suggestion.Name != "Refresco" || !got.UIPolicy.Show {
		t.Fatalf("unexpected cached value %+v", got)
	}
}
