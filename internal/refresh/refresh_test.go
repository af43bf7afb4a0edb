package refresh

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/andresuchdata/shelfwise/internal/domain"
	"github.com/andresuchdata/shelfwise/internal/repository/memory"
)

type fakeInitializer struct {
	mu       sync.Mutex
	calls    map[string]int
	failures map[string]int // number of leading failures per store
}

func newFakeInitializer() *fakeInitializer {
	return &fakeInitializer{calls: map[string]int{}, failures: map[string]int{}}
}

func (f *fakeInitializer) InitializeAllPredictions(_ context.Context, storeID string) (domain.InitializationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[storeID]++
	if f.calls[storeID] <= f.failures[storeID] {
		return domain.InitializationResult{}, errors.New("database unavailable")
	}
	return domain.InitializationResult{Total: 2, Succeeded: 2}, nil
}

func (f *fakeInitializer) count(storeID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[storeID]
}

func testConfig() Config {
	return Config{Interval: 10 * time.Millisecond, WorkerCount: 2, RetryAttempts: 3, RetryBackoff: time.Millisecond}
}

func TestProcessStoresRetriesThenSucceeds(t *testing.T) {
	init := newFakeInitializer()
	init.failures["s2"] = 2

	runs := NewWorker(init, testConfig()).ProcessStores(context.Background(), []string{"s1", "s2"})

	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].Status != StatusCompleted || runs[0].Attempts != 1 {
		t.Errorf("expected s1 completed on first attempt, got %+v", runs[0])
	}
	if runs[1].Status != StatusCompleted || runs[1].Attempts != 3 {
		t.Errorf("expected s2 completed on third attempt, got %+v", runs[1])
	}
	if runs[1].Result.Succeeded != 2 || runs[1].CompletedAt == nil {
		t.Errorf("expected result recorded, got %+v", runs[1])
	}
}

func TestProcessStoresGivesUp(t *testing.T) {
	init := newFakeInitializer()
	init.failures["s1"] = 10

	runs := NewWorker(init, testConfig()).ProcessStores(context.Background(), []string{"s1", "s2"})

	if runs[0].Status != StatusFailed || runs[0].ErrorMessage != "database unavailable" {
		t.Errorf("expected s1 failed, got %+v", runs[0])
	}
	if init.count("s1") != 3 {
		t.Errorf("expected 3 attempts, got %d", init.count("s1"))
	}
	if runs[1].Status != StatusCompleted {
		t.Errorf("expected s2 to complete despite s1, got %+v", runs[1])
	}
}

func TestRunOnceListsStores(t *testing.T) {
	db := memory.New()
	db.AddStore(domain.Store{ID: "a"})
	db.AddStore(domain.Store{ID: "b"})
	init := newFakeInitializer()

	o := NewOrchestrator(db.Repositories().Stores, init, testConfig())
	runs, err := o.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 2 || runs[0].StoreID != "a" || runs[1].StoreID != "b" {
		t.Errorf("expected runs for a and b, got %+v", runs)
	}

	runs, _ = o.RunOnce(context.Background(), "b")
	if len(runs) != 1 || init.count("b") != 2 {
		t.Errorf("expected only b to be refreshed again, got %+v", runs)
	}
}

func TestStartTicksUntilCancelled(t *testing.T) {
	db := memory.New()
	db.AddStore(domain.Store{ID: "a"})
	init := newFakeInitializer()
	o := NewOrchestrator(db.Repositories().Stores, init, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		o.Start(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for init.count("a") < 2 {
		select {
		case <-deadline:
			t.Fatalf("expected at least two scheduled refreshes, got %d", init.count("a"))
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
