package service

import (
	"time"

	"github.com/andresuchdata/shelfwise/internal/config"
)

// PredictionOptions tunes the recomputation strategy
type PredictionOptions struct {
	WindowDays          int
	MovingAveragePeriod int
	// FreshnessWindow is how recent a prediction must be for a sale to take the incremental path
	FreshnessWindow time.Duration
	// VelocityDecay weighs the previous velocity in the incremental blend
	VelocityDecay    float64
	MinDataPoints    int
	BatchConcurrency int
	Now              func() time.Time
}

// DefaultPredictionOptions mirrors the configuration defaults
func DefaultPredictionOptions() PredictionOptions {
	return PredictionOptions{
		WindowDays:          30,
		MovingAveragePeriod: 7,
		FreshnessWindow:     5 * time.Second,
		VelocityDecay:       0.9,
		MinDataPoints:       7,
		BatchConcurrency:    8,
		Now:                 time.Now,
	}
}

// PredictionOptionsFromConfig maps the PREDICTION_* settings
func PredictionOptionsFromConfig(cfg config.PredictionConfig) PredictionOptions {
	opts := DefaultPredictionOptions()
	if cfg.WindowDays > 0 {
		opts.WindowDays = cfg.WindowDays
	}
	if cfg.MovingAveragePeriod > 0 {
		opts.MovingAveragePeriod = cfg.MovingAveragePeriod
	}
	if cfg.FreshnessWindow >= 0 {
		opts.FreshnessWindow = cfg.FreshnessWindow
	}
	if cfg.VelocityDecay > 0 && cfg.VelocityDecay < 1 {
		opts.VelocityDecay = cfg.VelocityDecay
	}
	if cfg.MinDataPoints > 0 {
		opts.MinDataPoints = cfg.MinDataPoints
	}
	if cfg.BatchConcurrency > 0 {
		opts.BatchConcurrency = cfg.BatchConcurrency
	}
	return opts
}

func (o PredictionOptions) withDefaults() PredictionOptions {
	def := DefaultPredictionOptions()
	if o.WindowDays <= 0 {
		o.WindowDays = def.WindowDays
	}
	if o.MovingAveragePeriod <= 0 {
		o.MovingAveragePeriod = def.MovingAveragePeriod
	}
	if o.VelocityDecay <= 0 || o.VelocityDecay >= 1 {
		o.VelocityDecay = def.VelocityDecay
	}
	if o.MinDataPoints <= 0 {
		o.MinDataPoints = def.MinDataPoints
	}
	if o.BatchConcurrency <= 0 {
		o.BatchConcurrency = def.BatchConcurrency
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}
