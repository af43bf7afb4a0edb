package forecast

import (
	"context"
	"math"

	"github.com/andresuchdata/shelfwise/internal/domain"
	"github.com/andresuchdata/shelfwise/internal/metrics"
)

// Strategy names recorded on every forecast
const (
	ModelStatistical = "statistical"
	ModelLearned     = "learned"
)

// Request is the sales history a provider forecasts from
type Request struct {
	ProductID string
	// Daily is the dense per-day demand series of the window, oldest first
	Daily []float64
	// DataPoints is the number of sale records behind Daily
	DataPoints int
}

// Result is a 7/14/30 day demand projection
type Result struct {
	Next7Days        float64
	Next14Days       float64
	Next30Days       float64
	Confidence       string
	ModelType        string
	DailyPredictions []float64
}

// Domain converts the result to the persisted forecast shape
func (r Result) Domain() domain.Forecast {
	return domain.Forecast{
		Next7Days:  r.Next7Days,
		Next14Days: r.Next14Days,
		Next30Days: r.Next30Days,
		Confidence: r.Confidence,
		ModelType:  r.ModelType,
	}
}

// Provider produces a demand forecast for one product
type Provider interface {
	Forecast(ctx context.Context, req Request) (Result, error)
	Name() string
}

// FromRate scales a per-day demand rate over the three horizons, rounded to whole units
func FromRate(rate float64, confidence string) Result {
	return Result{
		Next7Days:  math.Round(rate * 7),
		Next14Days: math.Round(rate * 14),
		Next30Days: math.Round(rate * 30),
		Confidence: confidence,
		ModelType:  ModelStatistical,
	}
}

// Statistical forecasts off the moving average of the daily series
type Statistical struct {
	period int
}

// NewStatistical creates the default strategy
func NewStatistical(period int) *Statistical {
	if period <= 0 {
		period = 7
	}
	return &Statistical{period: period}
}

func (s *Statistical) Name() string { return ModelStatistical }

func (s *Statistical) Forecast(_ context.Context, req Request) (Result, error) {
	ma := metrics.MovingAverage(req.Daily, s.period)
	res := FromRate(ma, metrics.Confidence(req.DataPoints))
	res.DailyPredictions = make([]float64, 7)
	for i := range res.DailyPredictions {
		res.DailyPredictions[i] = metrics.Round(ma, 2)
	}
	return res, nil
}
