package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/andresuchdata/shelfwise/internal/cache"
	"github.com/andresuchdata/shelfwise/internal/domain"
	"github.com/andresuchdata/shelfwise/internal/metrics"
	"github.com/shopspring/decimal"
)

const (
	quickInsightsLimit = 10
	performersLimit    = 5
	stockoutSoonDays   = 7.0
)

// GetPredictiveAnalytics returns the product prediction with the sales history it was derived from.
// A product without a prediction gets one computed on the spot.
func (s *PredictionService) GetPredictiveAnalytics(ctx context.Context, storeID, productID string) (*domain.PredictiveAnalytics, error) {
	if err := requireStore(storeID); err != nil {
		return nil, err
	}

	return cache.GetOrSet(ctx, s.cache, cache.ProductKey(storeID, productID), func(ctx context.Context) (*domain.PredictiveAnalytics, error) {
		product, err := s.repos.Products.FindByID(ctx, storeID, productID)
		if err != nil {
			return nil, fmt.Errorf("load product %s: %w", productID, err)
		}

		pred, err := s.repos.Predictions.FindByProductID(ctx, storeID, productID)
		if errors.Is(err, domain.ErrNotFound) {
			pred, err = s.fullSave(ctx, product, nil)
		}
		if err != nil {
			return nil, err
		}

		now := s.opts.Now()
		sales, err := s.repos.Sales.FindByProductSince(ctx, storeID, productID, metrics.WindowStart(now, s.opts.WindowDays))
		if err != nil {
			return nil, fmt.Errorf("load sales for %s: %w", productID, err)
		}

		return &domain.PredictiveAnalytics{
			Prediction:    *pred,
			TotalQuantity: product.TotalQuantity,
			SalesHistory:  metrics.DailyHistory(sales),
		}, nil
	})
}

// GetQuickInsights lists the urgent products of a store, riskiest first
func (s *PredictionService) GetQuickInsights(ctx context.Context, storeID string) (*domain.QuickInsights, error) {
	if err := requireStore(storeID); err != nil {
		return nil, err
	}

	return cache.GetOrSet(ctx, s.cache, cache.QuickInsightsKey(storeID), func(ctx context.Context) (*domain.QuickInsights, error) {
		preds, err := s.repos.Predictions.FindByStore(ctx, storeID)
		if err != nil {
			return nil, fmt.Errorf("load predictions: %w", err)
		}

		urgent := make([]domain.Prediction, 0)
		lastUpdate := s.opts.Now()
		latest := false
		for _, p := range preds {
			if !latest || p.CalculatedAt.After(lastUpdate) {
				lastUpdate = p.CalculatedAt
				latest = true
			}
			if isUrgent(p) {
				urgent = append(urgent, p)
			}
		}

		sort.SliceStable(urgent, func(i, j int) bool {
			return urgent[i].Metrics.RiskScore > urgent[j].Metrics.RiskScore
		})

		items := make([]domain.CriticalItem, 0, quickInsightsLimit)
		for i, p := range urgent {
			if i == quickInsightsLimit {
				break
			}
			item := domain.CriticalItem{
				ProductID:         p.ProductID,
				ProductName:       p.ProductName,
				Category:          p.CategoryName(),
				RiskScore:         p.Metrics.RiskScore,
				DaysUntilStockout: p.Metrics.DaysUntilStockout,
				Velocity:          p.Metrics.Velocity,
			}
			if len(p.Recommendations) > 0 {
				item.TopAction = p.Recommendations[0].Action
			}
			items = append(items, item)
		}

		return &domain.QuickInsights{
			UrgentCount:   len(urgent),
			CriticalItems: items,
			LastUpdate:    lastUpdate,
		}, nil
	})
}

func isUrgent(p domain.Prediction) bool {
	return p.Metrics.RiskScore >= urgentRiskScore || p.Metrics.DaysUntilStockout <= stockoutSoonDays
}

// GetCategoryInsights rolls up one category with its best and worst sellers
func (s *PredictionService) GetCategoryInsights(ctx context.Context, storeID, category string) (*domain.CategoryInsights, error) {
	if err := requireStore(storeID); err != nil {
		return nil, err
	}
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, domain.NewValidationError("category", "is required")
	}

	return cache.GetOrSet(ctx, s.cache, cache.CategoryKey(storeID, category), func(ctx context.Context) (*domain.CategoryInsights, error) {
		preds, err := s.repos.Predictions.FindByCategory(ctx, storeID, category)
		if err != nil {
			return nil, fmt.Errorf("load category predictions: %w", err)
		}

		summary := domain.CategorySummary{Category: category, TotalProducts: len(preds), RevenueLast30Days: decimal.Zero}
		if len(preds) > 0 {
			summary.Category = preds[0].CategoryName()
		}
		var sumVelocity, sumRisk float64
		productIDs := make([]string, 0, len(preds))
		for _, p := range preds {
			productIDs = append(productIDs, p.ProductID)
			sumVelocity += p.Metrics.Velocity
			sumRisk += p.Metrics.RiskScore
			summary.TotalSalesLast30Days += p.Metrics.SalesLast30Days
			summary.ForecastNext30Days += p.Forecast.Next30Days
			if p.Metrics.RiskScore >= urgentRiskScore {
				summary.HighRiskCount++
			}
		}
		if len(preds) > 0 {
			summary.AverageVelocity = metrics.Round(sumVelocity/float64(len(preds)), 2)
			summary.AverageRiskScore = metrics.Round(sumRisk/float64(len(preds)), 2)

			revenue, err := s.repos.Sales.RevenueByProductSince(ctx, storeID, productIDs, metrics.WindowStart(s.opts.Now(), s.opts.WindowDays))
			if err != nil {
				return nil, fmt.Errorf("load category revenue: %w", err)
			}
			amounts := make([]decimal.Decimal, 0, len(revenue))
			for _, id := range productIDs {
				if amount, ok := revenue[id]; ok {
					amounts = append(amounts, amount)
				}
			}
			summary.RevenueLast30Days = decimal.Sum(decimal.Zero, amounts...)
		}

		byVelocity := make([]domain.Prediction, len(preds))
		copy(byVelocity, preds)
		sort.SliceStable(byVelocity, func(i, j int) bool {
			return byVelocity[i].Metrics.Velocity > byVelocity[j].Metrics.Velocity
		})

		top := make([]domain.ProductPerformance, 0, performersLimit)
		for i := 0; i < len(byVelocity) && i < performersLimit; i++ {
			top = append(top, performance(byVelocity[i]))
		}
		bottom := make([]domain.ProductPerformance, 0, performersLimit)
		for i := len(byVelocity) - 1; i >= 0 && len(bottom) < performersLimit; i-- {
			bottom = append(bottom, performance(byVelocity[i]))
		}

		return &domain.CategoryInsights{
			Summary:          summary,
			TopPerformers:    top,
			BottomPerformers: bottom,
		}, nil
	})
}

func performance(p domain.Prediction) domain.ProductPerformance {
	return domain.ProductPerformance{
		ProductID:       p.ProductID,
		ProductName:     p.ProductName,
		Velocity:        p.Metrics.Velocity,
		SalesLast30Days: p.Metrics.SalesLast30Days,
		RiskScore:       p.Metrics.RiskScore,
		Trend:           p.Metrics.Trend,
	}
}

// GetDashboard aggregates every prediction of a store
func (s *PredictionService) GetDashboard(ctx context.Context, storeID string) (*domain.Dashboard, error) {
	if err := requireStore(storeID); err != nil {
		return nil, err
	}

	return cache.GetOrSet(ctx, s.cache, cache.DashboardKey(storeID), func(ctx context.Context) (*domain.Dashboard, error) {
		total, err := s.repos.Products.Count(ctx, storeID)
		if err != nil {
			return nil, fmt.Errorf("count products: %w", err)
		}
		preds, err := s.repos.Predictions.FindByStore(ctx, storeID)
		if err != nil {
			return nil, fmt.Errorf("load predictions: %w", err)
		}

		d := &domain.Dashboard{
			TotalProducts:   total,
			TrackedProducts: len(preds),
			TrendBreakdown: map[string]int{
				domain.TrendIncreasing: 0,
				domain.TrendStable:     0,
				domain.TrendDecreasing: 0,
			},
			ConfidenceBreakdown: map[string]int{
				domain.ConfidenceHigh:   0,
				domain.ConfidenceMedium: 0,
				domain.ConfidenceLow:    0,
			},
			GeneratedAt: s.opts.Now(),
		}

		var sumRisk float64
		for _, p := range preds {
			sumRisk += p.Metrics.RiskScore
			if p.Metrics.RiskScore >= urgentRiskScore {
				d.HighRiskCount++
			}
			if p.Metrics.DaysUntilStockout <= stockoutSoonDays {
				d.StockoutSoonCount++
			}
			if p.DataPoints < s.opts.MinDataPoints {
				d.LowDataProducts++
			}
			d.ForecastNext7Days += p.Forecast.Next7Days
			d.ForecastNext30Days += p.Forecast.Next30Days
			if p.Metrics.Trend != "" {
				d.TrendBreakdown[p.Metrics.Trend]++
			}
			if p.Forecast.Confidence != "" {
				d.ConfidenceBreakdown[p.Forecast.Confidence]++
			}
		}
		if len(preds) > 0 {
			d.AverageRiskScore = metrics.Round(sumRisk/float64(len(preds)), 2)
		}

		return d, nil
	})
}

// GetAllPredictions lists every prediction of a store
func (s *PredictionService) GetAllPredictions(ctx context.Context, storeID string) ([]domain.Prediction, error) {
	if err := requireStore(storeID); err != nil {
		return nil, err
	}

	return cache.GetOrSet(ctx, s.cache, cache.AllPredictionsKey(storeID), func(ctx context.Context) ([]domain.Prediction, error) {
		preds, err := s.repos.Predictions.FindByStore(ctx, storeID)
		if err != nil {
			return nil, fmt.Errorf("load predictions: %w", err)
		}
		return preds, nil
	})
}

// GetBatchPredictions returns the stored predictions of the given products, skipping unknown ids
func (s *PredictionService) GetBatchPredictions(ctx context.Context, storeID string, productIDs []string) ([]domain.Prediction, error) {
	if err := requireStore(storeID); err != nil {
		return nil, err
	}
	if len(productIDs) == 0 {
		return []domain.Prediction{}, nil
	}

	return cache.GetOrSet(ctx, s.cache, cache.BatchKey(storeID, productIDs), func(ctx context.Context) ([]domain.Prediction, error) {
		preds, err := s.repos.Predictions.FindByProductIDs(ctx, storeID, productIDs)
		if err != nil {
			return nil, fmt.Errorf("load predictions: %w", err)
		}
		return preds, nil
	})
}
