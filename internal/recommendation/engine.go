// Package recommendation suggests one more item for an open ticket, learned
// from which items past tickets carried together.
package recommendation

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"mesapos/backend/internal/analytics"
	"mesapos/backend/internal/cache"
	"mesapos/backend/internal/domain"
)

const (
	ReasonOrderedTogether = "often_ordered_together"
	ReasonPopular         = "popular_choice"
	ReasonTimeSlot        = "time_slot_match"
)

type Engine struct {
	cache         cache.SuggestionCache
	cacheTTL      time.Duration
	minConfidence float64
}

func NewEngine(cacheStore cache.SuggestionCache, cacheTTL time.Duration) *Engine {
	if cacheStore == nil {
		cacheStore = cache.NoopSuggestionCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}

	return &Engine{
		cache:         cacheStore,
		cacheTTL:      cacheTTL,
		minConfidence: 0.35,
	}
}

// itemStats is what history says about one item, keyed by normalized name.
type itemStats struct {
	name    string
	price   float64
	lastAt  int64
	tickets int
}

type history struct {
	tickets int
	items   map[string]*itemStats
	// together[a][b] counts tickets carrying both a and b.
	together map[string]map[string]int
	latest   int64
}

func buildHistory(records []domain.SaleRecord) history {
	h := history{items: map[string]*itemStats{}, together: map[string]map[string]int{}}
	for _, record := range records {
		keys := make([]string, 0, len(record.Items))
		seen := make(map[string]struct{}, len(record.Items))
		for _, item := range record.Items {
			key := normalize(item.Name)
			if key == "" || item.Quantity < 1 {
				continue
			}
			stats, ok := h.items[key]
			if !ok {
				stats = &itemStats{}
				h.items[key] = stats
			}
			if record.Timestamp >= stats.lastAt {
				stats.name = strings.TrimSpace(item.Name)
				stats.price = item.Price
				stats.lastAt = record.Timestamp
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			keys = append(keys, key)
			stats.tickets++
		}
		if len(keys) == 0 {
			continue
		}
		h.tickets++
		if record.Timestamp > h.latest {
			h.latest = record.Timestamp
		}
		for _, a := range keys {
			for _, b := range keys {
				if a == b {
					continue
				}
				if h.together[a] == nil {
					h.together[a] = map[string]int{}
				}
				h.together[a][b]++
			}
		}
	}
	return h
}

// Suggest picks the best item to offer next given the ticket so far and the
// sales history. now is the local time of the request.
func (e *Engine) Suggest(
	ctx context.Context,
	req domain.SuggestionRequest,
	records []domain.SaleRecord,
	now time.Time,
) domain.SuggestionResponse {
	startedAt := time.Now()

	cart := normalizeCart(req.Items)
	if len(cart) == 0 {
		return domain.SuggestionResponse{
			UIPolicy:  domain.UIPolicy{Show: false, CooldownSeconds: 30},
			LatencyMS: time.Since(startedAt).Milliseconds(),
		}
	}

	if req.Timestamp != nil {
		now = req.Timestamp.In(now.Location())
	}
	hour := now.Hour()

	h := buildHistory(records)
	cacheKey := buildCacheKey(cart, req.PromptCount, hour, len(records), h.latest)
	if cached, ok, err := e.cache.Get(ctx, cacheKey); err == nil && ok {
		cached.LatencyMS = time.Since(startedAt).Milliseconds()
		return *cached
	}

	inCart := make(map[string]struct{}, len(cart))
	for _, key := range cart {
		inCart[key] = struct{}{}
	}

	candidates := make([]string, 0, len(h.items))
	for key := range h.items {
		if _, ok := inCart[key]; !ok {
			candidates = append(candidates, key)
		}
	}
	sort.Strings(candidates)

	var best *domain.Suggestion
	bestScore := 0.0
	promptFatigue := clamp(float64(req.PromptCount)/4.0, 0, 1)

	for _, key := range candidates {
		stats := h.items[key]

		pairAffinity := 0.0
		for _, have := range cart {
			base := h.items[have]
			if base == nil || base.tickets == 0 {
				continue
			}
			pairAffinity = math.Max(pairAffinity, float64(h.together[have][key])/float64(base.tickets))
		}
		popularity := clamp(float64(stats.tickets)/float64(max(1, h.tickets)), 0, 1)
		category := analytics.Classify(stats.name)
		timeRelevance := categoryHourRelevance(category, hour)

		score :=
			0.55*pairAffinity +
				0.25*popularity +
				0.15*timeRelevance -
				0.05*promptFatigue

		confidence := clamp(score, 0, 1)
		if confidence < e.minConfidence || confidence <= bestScore {
			continue
		}

		bestScore = confidence
		best = &domain.Suggestion{
			Name:       stats.name,
			Category:   category,
			Price:      stats.price,
			ReasonCode: deriveReason(pairAffinity, popularity, timeRelevance),
			Confidence: round2(confidence),
		}
	}

	resp := domain.SuggestionResponse{
		UIPolicy: domain.UIPolicy{Show: false, CooldownSeconds: 45},
	}
	if best != nil {
		cooldown := 45
		if req.PromptCount > 2 {
			cooldown = 90
		}
		resp.Suggestion = best
		resp.UIPolicy = domain.UIPolicy{Show: true, CooldownSeconds: cooldown}
	}

	resp.LatencyMS = time.Since(startedAt).Milliseconds()
	_ = e.cache.Set(ctx, cacheKey, &resp, e.cacheTTL)
	return resp
}

func normalize(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// normalizeCart returns the distinct normalized names, sorted.
func normalizeCart(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	result := make([]string, 0, len(items))
	for _, item := range items {
		key := normalize(item)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, key)
	}
	sort.Strings(result)
	return result
}

func deriveReason(pairAffinity float64, popularity float64, timeRelevance float64) string {
	type reasonWeight struct {
		code  string
		value float64
	}

	reasons := []reasonWeight{
		{code: ReasonOrderedTogether, value: pairAffinity},
		{code: ReasonPopular, value: popularity},
		{code: ReasonTimeSlot, value: timeRelevance * 0.5},
	}

	sort.SliceStable(reasons, func(i, j int) bool {
		return reasons[i].value > reasons[j].value
	})
	return reasons[0].code
}

func categoryHourRelevance(category string, hour int) float64 {
	switch category {
	case analytics.CategoryBebidas:
		if hour >= 12 && hour <= 21 {
			return 0.95
		}
		return 0.70
	case analytics.CategoryConsome:
		if hour >= 6 && hour <= 12 {
			return 0.90
		}
	case analytics.CategoryTacos:
		if hour >= 13 || hour <= 1 {
			return 0.85
		}
	case analytics.CategoryKilos:
		if hour >= 11 && hour <= 16 {
			return 0.80
		}
	}
	return 0.55
}

// buildCacheKey covers everything the answer depends on, including a
// fingerprint of the history so new sales miss the cache. Caches add their
// own namespace.
func buildCacheKey(cart []string, promptCount int, hour int, records int, latest int64) string {
	parts := make([]string, 0, len(cart)+4)
	parts = append(parts, cart...)
	parts = append(parts, fmt.Sprintf("p:%d", promptCount))
	parts = append(parts, fmt.Sprintf("h:%d", hour))
	parts = append(parts, fmt.Sprintf("n:%d:%d", records, latest))

	hash := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(hash[:])
}

func clamp(val float64, minVal float64, maxVal float64) float64 {
	if val < minVal {
		return minVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}

func round2(val float64) float64 {
	return math.Round(val*100) / 100
}
