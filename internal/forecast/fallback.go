package forecast

import (
	"context"
	"fmt"
	"math"

	"github.com/andresuchdata/shelfwise/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Fallback tries the learned model and delegates to the statistical strategy
// whenever the model is disabled, lacks data, errors or answers garbage.
type Fallback struct {
	primary    Provider
	secondary  Provider
	enabled    bool
	minRecords int
}

// NewFallback wires a learned provider in front of a statistical one
func NewFallback(primary, secondary Provider, enabled bool, minRecords int) *Fallback {
	if minRecords <= 0 {
		minRecords = 14
	}
	return &Fallback{
		primary:    primary,
		secondary:  secondary,
		enabled:    enabled && primary != nil,
		minRecords: minRecords,
	}
}

func (f *Fallback) Name() string {
	if f.enabled {
		return f.primary.Name()
	}
	return f.secondary.Name()
}

func (f *Fallback) Forecast(ctx context.Context, req Request) (Result, error) {
	if !f.enabled || req.DataPoints < f.minRecords {
		return f.secondary.Forecast(ctx, req)
	}

	res, err := f.primary.Forecast(ctx, req)
	if err == nil {
		err = validResult(res)
	}
	if err != nil {
		log.Warn().Err(err).
			Str("product_id", req.ProductID).
			Str("model", f.primary.Name()).
			Msg("learned forecast unavailable, using statistical model")
		return f.secondary.Forecast(ctx, req)
	}

	if res.Confidence == "" {
		res.Confidence = metrics.Confidence(req.DataPoints)
	}
	res.Next7Days = math.Round(res.Next7Days)
	res.Next14Days = math.Round(res.Next14Days)
	res.Next30Days = math.Round(res.Next30Days)
	res.ModelType = f.primary.Name()
	return res, nil
}

func validResult(r Result) error {
	for _, v := range []float64{r.Next7Days, r.Next14Days, r.Next30Days} {
		if !metrics.IsFinite(v) || v < 0 {
			return fmt.Errorf("invalid forecast value %v", v)
		}
	}
	return nil
}
