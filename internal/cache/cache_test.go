package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type payload struct {
	Count int    `json:"count"`
	Name  string `json:"name"`
}

func TestMemoryStoreExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newMemoryStore(func() time.Time { return now })
	ctx := context.Background()

	_ = s.Set(ctx, "k", []byte("v"), time.Minute)
	if v, ok, _ := s.Get(ctx, "k"); !ok || string(v) != "v" {
		t.Fatalf("expected hit, got %q/%v", v, ok)
	}

	now = now.Add(61 * time.Second)
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Error("expected entry to expire after ttl")
	}

	s.sweep()
	if s.Len() != 0 {
		t.Errorf("expected sweep to drop expired entries, got %d", s.Len())
	}
}

func TestMemoryStoreDeletePrefix(t *testing.T) {
	s := newMemoryStore(time.Now)
	ctx := context.Background()
	_ = s.Set(ctx, "predictions:s1:a", []byte("1"), time.Minute)
	_ = s.Set(ctx, "predictions:s1:b", []byte("1"), time.Minute)
	_ = s.Set(ctx, "predictions:s2:a", []byte("1"), time.Minute)

	_ = s.DeletePrefix(ctx, "predictions:s1:")
	if s.Len() != 1 {
		t.Errorf("expected only the other store's key to remain, got %d", s.Len())
	}
}

func TestGetOrSetComputesOnce(t *testing.T) {
	c := NewPredictionCache(newMemoryStore(time.Now), time.Minute)
	ctx := context.Background()
	var calls int32

	compute := func(context.Context) (payload, error) {
		atomic.AddInt32(&calls, 1)
		return payload{Count: 3, Name: "milk"}, nil
	}

	first, err := GetOrSet(ctx, c, QuickInsightsKey("s1"), compute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, _ := GetOrSet(ctx, c, QuickInsightsKey("s1"), compute)

	if calls != 1 {
		t.Errorf("expected a single computation, got %d", calls)
	}
	if first != second || second.Name != "milk" {
		t.Errorf("expected cached value to round trip, got %+v and %+v", first, second)
	}
}

func TestGetOrSetConcurrentMisses(t *testing.T) {
	c := NewPredictionCache(newMemoryStore(time.Now), time.Minute)
	ctx := context.Background()
	var calls int32
	release := make(chan struct{})

	compute := func(context.Context) (payload, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return payload{Count: 1}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = GetOrSet(ctx, c, DashboardKey("s1"), compute)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls != 1 {
		t.Errorf("expected concurrent misses to share one computation, got %d", calls)
	}
}

func TestGetOrSetWaiterSurvivesFirstCallerCancel(t *testing.T) {
	c := NewPredictionCache(newMemoryStore(time.Now), time.Minute)
	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	compute := func(ctx context.Context) (payload, error) {
		atomic.AddInt32(&calls, 1)
		once.Do(func() { close(started) })
		<-release
		if err := ctx.Err(); err != nil {
			return payload{}, err
		}
		return payload{Count: 3}, nil
	}

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := GetOrSet(firstCtx, c, DashboardKey("s1"), compute)
		firstErr <- err
	}()
	<-started

	type result struct {
		value payload
		err   error
	}
	second := make(chan result, 1)
	go func() {
		v, err := GetOrSet(context.Background(), c, DashboardKey("s1"), compute)
		second <- result{v, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Errorf("expected the cancelled caller to get its own error, got %v", err)
	}
	close(release)

	got := <-second
	if got.err != nil || got.value.Count != 3 {
		t.Errorf("expected the waiting caller to get 3, got %+v/%v", got.value, got.err)
	}
	if calls != 1 {
		t.Errorf("expected a single computation, got %d", calls)
	}

	if _, err := GetOrSet(firstCtx, c, DashboardKey("s1"), compute); !errors.Is(err, context.Canceled) {
		t.Errorf("expected an already cancelled context to be rejected, got %v", err)
	}
}

func TestGetOrSetDoesNotCacheErrors(t *testing.T) {
	c := NewPredictionCache(newMemoryStore(time.Now), time.Minute)
	ctx := context.Background()
	boom := errors.New("boom")

	if _, err := GetOrSet(ctx, c, "k", func(context.Context) (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected compute error, got %v", err)
	}
	v, err := GetOrSet(ctx, c, "k", func(context.Context) (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Errorf("expected recompute to 7, got %d/%v", v, err)
	}
}

func TestInvalidateProduct(t *testing.T) {
	store := newMemoryStore(time.Now)
	c := NewPredictionCache(store, time.Minute)
	ctx := context.Background()

	keys := []string{
		ProductKey("s1", "p1"),
		ProductKey("s1", "p2"),
		QuickInsightsKey("s1"),
		DashboardKey("s1"),
		AllPredictionsKey("s1"),
		CategoryKey("s1", "Dairy"),
		CategoryKey("s1", "bakery"),
		BatchKey("s1", []string{"p2", "p1"}),
		DashboardKey("s2"),
	}
	for _, k := range keys {
		_ = store.Set(ctx, k, []byte("1"), time.Minute)
	}

	c.InvalidateProduct(ctx, "s1", "p1", "dairy")

	for _, k := range []string{ProductKey("s1", "p2"), CategoryKey("s1", "bakery"), DashboardKey("s2")} {
		if _, ok, _ := store.Get(ctx, k); !ok {
			t.Errorf("expected %s to survive invalidation", k)
		}
	}
	if store.Len() != 3 {
		t.Errorf("expected 3 surviving keys, got %d", store.Len())
	}
}

func TestBatchKeyIgnoresOrder(t *testing.T) {
	if BatchKey("s1", []string{"a", "b"}) != BatchKey("s1", []string{"b", "a"}) {
		t.Error("expected batch key to be order independent")
	}
}

func TestFlush(t *testing.T) {
	store := newMemoryStore(time.Now)
	c := NewPredictionCache(store, time.Minute)
	ctx := context.Background()
	_ = store.Set(ctx, DashboardKey("s1"), []byte("1"), time.Minute)
	_ = store.Set(ctx, DashboardKey("s2"), []byte("1"), time.Minute)
	_ = store.Set(ctx, "other:key", []byte("1"), time.Minute)

	if err := c.Flush(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.Len() != 1 {
		t.Errorf("expected only foreign keys to survive flush, got %d", store.Len())
	}
}
