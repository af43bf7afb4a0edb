package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "predictions"

// PredictionCache fronts the aggregate prediction reads. Keys are scoped per store.
type PredictionCache struct {
	store Store
	ttl   time.Duration
	group singleflight.Group
}

// NewPredictionCache wraps a store; a zero ttl means one minute
func NewPredictionCache(store Store, ttl time.Duration) *PredictionCache {
	if store == nil {
		store = NewNoopStore()
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &PredictionCache{store: store, ttl: ttl}
}

func storePrefix(storeID string) string {
	return fmt.Sprintf("%s:%s:", keyPrefix, storeID)
}

func ProductKey(storeID, productID string) string {
	return storePrefix(storeID) + "product:" + productID
}

func QuickInsightsKey(storeID string) string {
	return storePrefix(storeID) + "quick_insights"
}

func CategoryKey(storeID, category string) string {
	return storePrefix(storeID) + "category:" + strings.ToLower(strings.TrimSpace(category))
}

func DashboardKey(storeID string) string {
	return storePrefix(storeID) + "dashboard"
}

func AllPredictionsKey(storeID string) string {
	return storePrefix(storeID) + "all"
}

func batchPrefix(storeID string) string {
	return storePrefix(storeID) + "batch:"
}

// BatchKey hashes a product id set so any ordering maps to the same entry
func BatchKey(storeID string, productIDs []string) string {
	ids := append([]string(nil), productIDs...)
	sort.Strings(ids)
	sum := sha1.Sum([]byte(strings.Join(ids, ",")))
	return batchPrefix(storeID) + hex.EncodeToString(sum[:])
}

// GetOrSet returns the cached value for key or computes, stores and returns it.
// Concurrent misses on one key share a single computation, which is detached from
// the cancellation of whichever caller started it. Each caller still returns early
// when its own ctx is done. Cache failures are logged and never fail the read.
func GetOrSet[T any](ctx context.Context, c *PredictionCache, key string, compute func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	if payload, ok, err := c.store.Get(ctx, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache read failed")
	} else if ok {
		var cached T
		decodeErr := json.Unmarshal(payload, &cached)
		if decodeErr == nil {
			return cached, nil
		}
		log.Warn().Err(decodeErr).Str("key", key).Msg("cache decode failed")
	}

	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		value, err := compute(shared)
		if err != nil {
			return nil, err
		}

		payload, err := json.Marshal(value)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("cache encode failed")
			return value, nil
		}
		if err := c.store.Set(shared, key, payload, c.ttl); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("cache write failed")
		}
		return value, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// InvalidateProduct drops every key a prediction write can make stale
func (c *PredictionCache) InvalidateProduct(ctx context.Context, storeID, productID, category string) {
	keys := []string{
		ProductKey(storeID, productID),
		QuickInsightsKey(storeID),
		DashboardKey(storeID),
		AllPredictionsKey(storeID),
	}
	if strings.TrimSpace(category) != "" {
		keys = append(keys, CategoryKey(storeID, category))
	}

	if err := c.store.Delete(ctx, keys...); err != nil {
		log.Warn().Err(err).Str("store_id", storeID).Str("product_id", productID).Msg("cache invalidation failed")
	}
	if err := c.store.DeletePrefix(ctx, batchPrefix(storeID)); err != nil {
		log.Warn().Err(err).Str("store_id", storeID).Msg("batch cache invalidation failed")
	}
}

// InvalidateStore drops every key of one store
func (c *PredictionCache) InvalidateStore(ctx context.Context, storeID string) error {
	return c.store.DeletePrefix(ctx, storePrefix(storeID))
}

// Flush drops every prediction key of every store
func (c *PredictionCache) Flush(ctx context.Context) error {
	return c.store.DeletePrefix(ctx, keyPrefix+":")
}
