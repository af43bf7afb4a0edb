package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Worker refreshes stores through a bounded pool
type Worker struct {
	init   Initializer
	config Config
}

// NewWorker creates a new refresh worker
func NewWorker(init Initializer, config Config) *Worker {
	return &Worker{init: init, config: config}
}

// ProcessStores refreshes every store and reports one Run per store, in input order.
// A store that keeps failing is marked failed; the others still run.
func (w *Worker) ProcessStores(ctx context.Context, storeIDs []string) []Run {
	workerCount := w.config.WorkerCount
	if workerCount < 1 {
		workerCount = 1
	}

	runs := make([]Run, len(storeIDs))
	for i, id := range storeIDs {
		runs[i] = Run{StoreID: id, Status: StatusPending}
	}

	jobChan := make(chan int, len(storeIDs))
	var wg sync.WaitGroup

	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for idx := range jobChan {
				w.processStore(ctx, &runs[idx])
				if runs[idx].Status == StatusFailed {
					log.Warn().
						Int("worker", workerID).
						Str("store_id", runs[idx].StoreID).
						Str("error", runs[idx].ErrorMessage).
						Msg("store refresh failed")
				}
			}
		}(i)
	}

enqueue:
	for i := range storeIDs {
		select {
		case <-ctx.Done():
			break enqueue
		case jobChan <- i:
		}
	}
	close(jobChan)
	wg.Wait()

	return runs
}

func (w *Worker) processStore(ctx context.Context, run *Run) {
	run.Status = StatusProcessing
	run.StartedAt = time.Now()

	attempts := w.config.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for run.Attempts < attempts {
		run.Attempts++
		res, err := w.init.InitializeAllPredictions(ctx, run.StoreID)
		if err == nil {
			run.Result = res
			run.Status = StatusCompleted
			now := time.Now()
			run.CompletedAt = &now
			return
		}
		lastErr = err

		if run.Attempts == attempts || ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
		case <-time.After(w.config.RetryBackoff):
		}
	}

	run.Status = StatusFailed
	run.ErrorMessage = lastErr.Error()
	now := time.Now()
	run.CompletedAt = &now
}
