package refresh

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/shelfwise/internal/repository"
	"github.com/rs/zerolog/log"
)

// Orchestrator periodically rebuilds the predictions of every store so that
// products without recent sales still age correctly.
type Orchestrator struct {
	stores repository.StoreRepository
	cfg    Config
	worker *Worker
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(stores repository.StoreRepository, init Initializer, cfg Config) *Orchestrator {
	return &Orchestrator{
		stores: stores,
		cfg:    cfg,
		worker: NewWorker(init, cfg),
	}
}

// RunOnce refreshes every known store, or only the given ones when storeIDs is not empty
func (o *Orchestrator) RunOnce(ctx context.Context, storeIDs ...string) ([]Run, error) {
	if len(storeIDs) == 0 {
		stores, err := o.stores.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list stores: %w", err)
		}
		for _, s := range stores {
			storeIDs = append(storeIDs, s.ID)
		}
	}

	start := time.Now()
	runs := o.worker.ProcessStores(ctx, storeIDs)

	failed := 0
	for _, r := range runs {
		if r.Status != StatusCompleted {
			failed++
		}
	}
	log.Info().
		Int("stores", len(runs)).
		Int("failed", failed).
		Dur("took", time.Since(start)).
		Msg("prediction refresh finished")

	return runs, nil
}

// Start runs a refresh on every tick until ctx is cancelled
func (o *Orchestrator) Start(ctx context.Context) {
	interval := o.cfg.Interval
	if interval <= 0 {
		interval = DefaultConfig().Interval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Msg("starting prediction refresh scheduler")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("stopping prediction refresh scheduler")
			return
		case <-ticker.C:
			if _, err := o.RunOnce(ctx); err != nil {
				log.Error().Err(err).Msg("scheduled refresh failed")
			}
		}
	}
}
