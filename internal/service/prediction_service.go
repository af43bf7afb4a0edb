package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/andresuchdata/shelfwise/internal/cache"
	"github.com/andresuchdata/shelfwise/internal/domain"
	"github.com/andresuchdata/shelfwise/internal/forecast"
	"github.com/andresuchdata/shelfwise/internal/metrics"
	"github.com/andresuchdata/shelfwise/internal/notification"
	"github.com/andresuchdata/shelfwise/internal/realtime"
	"github.com/andresuchdata/shelfwise/internal/recommendation"
	"github.com/andresuchdata/shelfwise/internal/repository"
	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const urgentRiskScore = 70.0

// SaleUpdate is the part of a recorded sale the incremental path needs
type SaleUpdate struct {
	QuantitySold int
}

// PredictionService keeps per-product predictions fresh and serves the aggregate reads
type PredictionService struct {
	repos       repository.Repositories
	calc        *metrics.Calculator
	forecaster  forecast.Provider
	recommender *recommendation.Engine
	gate        *notification.Gate
	cache       *cache.PredictionCache
	publisher   realtime.Publisher
	opts        PredictionOptions
}

// NewPredictionService wires the orchestrator. Nil collaborators get safe defaults:
// statistical forecasts, a no-op cache and an in-process hub.
func NewPredictionService(
	repos repository.Repositories,
	forecaster forecast.Provider,
	gate *notification.Gate,
	cacheImpl *cache.PredictionCache,
	publisher realtime.Publisher,
	opts PredictionOptions,
) *PredictionService {
	opts = opts.withDefaults()
	if forecaster == nil {
		forecaster = forecast.NewStatistical(opts.MovingAveragePeriod)
	}
	if gate == nil {
		gate = notification.NewGate(repos.Notifications, 0, opts.Now)
	}
	if cacheImpl == nil {
		cacheImpl = cache.NewPredictionCache(cache.NewNoopStore(), 0)
	}
	if publisher == nil {
		publisher = realtime.NewHub()
	}

	return &PredictionService{
		repos:       repos,
		calc:        metrics.NewCalculator(opts.WindowDays, opts.MovingAveragePeriod),
		forecaster:  forecaster,
		recommender: recommendation.NewEngine(),
		gate:        gate,
		cache:       cacheImpl,
		publisher:   publisher,
		opts:        opts,
	}
}

func requireStore(storeID string) error {
	if strings.TrimSpace(storeID) == "" {
		return domain.ErrMissingTenant
	}
	return nil
}

// SavePredictionToDatabase runs the full pipeline with low-confidence fallback and persists the result
func (s *PredictionService) SavePredictionToDatabase(ctx context.Context, storeID, productID string) (*domain.Prediction, error) {
	if err := requireStore(storeID); err != nil {
		return nil, err
	}

	product, err := s.repos.Products.FindByID(ctx, storeID, productID)
	if err != nil {
		return nil, fmt.Errorf("load product %s: %w", productID, err)
	}

	existing, err := s.repos.Predictions.FindByProductID(ctx, storeID, productID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("load prediction %s: %w", productID, err)
	}

	return s.fullSave(ctx, product, existing)
}

// UpdatePredictionAfterSale refreshes a prediction after a sale. A prediction computed
// within the freshness window is patched incrementally, anything older is recomputed.
func (s *PredictionService) UpdatePredictionAfterSale(ctx context.Context, storeID, productID string, sale SaleUpdate) (*domain.Prediction, error) {
	if err := requireStore(storeID); err != nil {
		return nil, err
	}
	if sale.QuantitySold < 0 {
		return nil, domain.NewValidationError("quantity_sold", "must not be negative, got %d", sale.QuantitySold)
	}

	product, err := s.repos.Products.FindByID(ctx, storeID, productID)
	if err != nil {
		return nil, fmt.Errorf("load product %s: %w", productID, err)
	}

	existing, err := s.repos.Predictions.FindByProductID(ctx, storeID, productID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return s.fullSave(ctx, product, nil)
	case err != nil:
		return nil, fmt.Errorf("load prediction %s: %w", productID, err)
	}

	age := s.opts.Now().Sub(existing.CalculatedAt)
	if age >= 0 && age < s.opts.FreshnessWindow {
		return s.incrementalSave(ctx, product, existing, sale)
	}
	return s.fullSave(ctx, product, existing)
}

func (s *PredictionService) fullSave(ctx context.Context, product *domain.Product, existing *domain.Prediction) (*domain.Prediction, error) {
	pred, err := s.compute(ctx, product)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		pred.ID = existing.ID
	}

	s.applyLowConfidence(ctx, product, pred)
	pred.Recommendations = s.recommend(product, pred)

	return s.persist(ctx, product, pred)
}

// compute is the canonical full pipeline: window sales, metrics, forecast
func (s *PredictionService) compute(ctx context.Context, product *domain.Product) (*domain.Prediction, error) {
	now := s.opts.Now()

	sales, err := s.repos.Sales.FindByProductSince(ctx, product.StoreID, product.ID, metrics.WindowStart(now, s.opts.WindowDays))
	if err != nil {
		return nil, fmt.Errorf("load sales for %s: %w", product.ID, err)
	}

	snap := s.calc.Calculate(product, sales, now)

	fc, err := s.forecaster.Forecast(ctx, forecast.Request{
		ProductID:  product.ID,
		Daily:      snap.Daily,
		DataPoints: snap.DataPoints,
	})
	if err != nil {
		return nil, fmt.Errorf("forecast %s: %w", product.ID, err)
	}

	return &domain.Prediction{
		ID:          uuid.NewString(),
		StoreID:     product.StoreID,
		ProductID:   product.ID,
		ProductName: product.Name,
		Category:    product.Category,
		Metrics: domain.Metrics{
			Velocity:          snap.Velocity,
			MovingAverage:     snap.MovingAverage,
			Trend:             snap.Trend,
			RiskScore:         snap.RiskScore,
			DaysUntilStockout: snap.DaysUntilStockout,
			SalesLast30Days:   snap.SalesInWindow,
		},
		Forecast:     fc.Domain(),
		DataPoints:   snap.DataPoints,
		CalculatedAt: now,
	}, nil
}

func (s *PredictionService) incrementalSave(ctx context.Context, product *domain.Product, existing *domain.Prediction, sale SaleUpdate) (*domain.Prediction, error) {
	now := s.opts.Now()
	pred := *existing
	m := pred.Metrics

	m.SalesLast30Days += float64(sale.QuantitySold)
	pred.DataPoints++

	m.Velocity = metrics.Round(s.opts.VelocityDecay*m.Velocity+(1-s.opts.VelocityDecay)*float64(sale.QuantitySold), 2)
	m.DaysUntilStockout = metrics.DaysUntilStockout(product.TotalQuantity, m.Velocity)
	m.RiskScore = metrics.ExpiryRisk(product, m.Velocity, now)

	rate := m.MovingAverage
	if rate == 0 {
		rate = m.Velocity
	}
	fc := forecast.FromRate(rate, metrics.Confidence(pred.DataPoints)).Domain()

	pred.Metrics = m
	pred.Forecast = fc
	pred.ProductName = product.Name
	pred.Category = product.Category
	pred.CalculatedAt = now
	pred.Recommendations = s.recommend(product, &pred)

	log.Debug().
		Str("store_id", product.StoreID).
		Str("product_id", product.ID).
		Float64("velocity", m.Velocity).
		Msg("incremental prediction update")

	return s.persist(ctx, product, &pred)
}

// applyLowConfidence borrows same-category demand when the product has too little history
func (s *PredictionService) applyLowConfidence(ctx context.Context, product *domain.Product, pred *domain.Prediction) {
	if pred.DataPoints >= s.opts.MinDataPoints {
		if pred.Forecast.Confidence == domain.ConfidenceLow {
			pred.Warning = strPtr(fmt.Sprintf("Forecast confidence is low despite %d sales in the last %d days; demand looks irregular", pred.DataPoints, s.opts.WindowDays))
		}
		return
	}

	category := product.CategoryName()
	if category != "" {
		peers, err := s.repos.Predictions.FindByCategory(ctx, product.StoreID, category)
		if err != nil {
			log.Warn().Err(err).Str("store_id", product.StoreID).Str("category", category).Msg("category fallback lookup failed")
		}

		var sumVelocity, sumRisk float64
		n := 0
		for _, p := range peers {
			if p.ProductID == product.ID || p.DataPoints < s.opts.MinDataPoints {
				continue
			}
			sumVelocity += p.Metrics.Velocity
			sumRisk += p.Metrics.RiskScore
			n++
		}

		if n > 0 {
			avgVelocity := metrics.Round(sumVelocity/float64(n), 2)
			avgRisk := metrics.Round(sumRisk/float64(n), 2)

			pred.Metrics.Velocity = avgVelocity
			pred.Metrics.MovingAverage = avgVelocity
			scaled := forecast.FromRate(avgVelocity, pred.Forecast.Confidence)
			pred.Forecast.Next7Days = scaled.Next7Days
			pred.Forecast.Next14Days = scaled.Next14Days
			pred.Forecast.Next30Days = scaled.Next30Days

			pred.Metadata = &domain.PredictionMetadata{
				UsedCategoryFallback:    true,
				FallbackCategory:        category,
				CategoryAverageVelocity: &avgVelocity,
				CategoryAverageRisk:     &avgRisk,
				CategorySampleSize:      n,
			}
			pred.Warning = strPtr(fmt.Sprintf("Only %d sales recorded; using the %s category average of %.2f units/day across %d products", pred.DataPoints, category, avgVelocity, n))
			return
		}
	}

	pred.Warning = strPtr(fmt.Sprintf("Only %d sales recorded in the last %d days; predictions will improve as more sales come in", pred.DataPoints, s.opts.WindowDays))
}

func (s *PredictionService) recommend(product *domain.Product, pred *domain.Prediction) domain.Recommendations {
	return s.recommender.Generate(recommendation.Input{
		Metrics:       pred.Metrics,
		Forecast:      pred.Forecast,
		TotalQuantity: product.TotalQuantity,
	})
}

// persist gates, writes, invalidates and fans out a prediction
func (s *PredictionService) persist(ctx context.Context, product *domain.Product, pred *domain.Prediction) (*domain.Prediction, error) {
	if err := sanitize(pred); err != nil {
		log.Error().Stack().Err(err).
			Str("store_id", pred.StoreID).
			Str("product_id", pred.ProductID).
			Msg("refusing to save prediction")
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("save prediction %s: %w", pred.ProductID, err)
	}

	if err := s.repos.Predictions.Upsert(ctx, pred); err != nil {
		return nil, fmt.Errorf("save prediction %s: %w", pred.ProductID, err)
	}

	s.cache.InvalidateProduct(ctx, pred.StoreID, pred.ProductID, pred.CategoryName())

	n, err := s.gate.Evaluate(ctx, product, pred)
	if err != nil {
		log.Warn().Err(err).Str("product_id", pred.ProductID).Msg("notification check failed")
	}

	s.publish(ctx, pred, n)

	return pred, nil
}

func (s *PredictionService) publish(ctx context.Context, pred *domain.Prediction, n *domain.Notification) {
	emit := func(topic, eventType string, payload interface{}) {
		evt, err := realtime.NewEvent(eventType, payload)
		if err == nil {
			err = s.publisher.Publish(ctx, topic, evt)
		}
		if err != nil {
			log.Warn().Err(err).Str("topic", topic).Msg("realtime publish failed")
		}
	}

	emit(realtime.ProductTopic(pred.StoreID, pred.ProductID), realtime.EventPredictionUpdated, pred)
	emit(realtime.DashboardTopic(pred.StoreID), realtime.EventDashboardUpdated, map[string]string{"product_id": pred.ProductID})

	if n != nil || pred.Metrics.RiskScore >= urgentRiskScore {
		payload := map[string]interface{}{
			"product_id":   pred.ProductID,
			"product_name": pred.ProductName,
			"risk_score":   pred.Metrics.RiskScore,
		}
		if n != nil {
			payload["notification"] = n
		}
		emit(realtime.AlertsTopic(pred.StoreID), realtime.EventUrgentAlert, payload)
	}
}

// sanitize rejects any non-finite number before it reaches storage
func sanitize(p *domain.Prediction) error {
	fields := []struct {
		name  string
		value float64
	}{
		{"metrics.velocity", p.Metrics.Velocity},
		{"metrics.moving_average", p.Metrics.MovingAverage},
		{"metrics.risk_score", p.Metrics.RiskScore},
		{"metrics.days_until_stockout", p.Metrics.DaysUntilStockout},
		{"metrics.sales_last_30_days", p.Metrics.SalesLast30Days},
		{"forecast.next_7_days", p.Forecast.Next7Days},
		{"forecast.next_14_days", p.Forecast.Next14Days},
		{"forecast.next_30_days", p.Forecast.Next30Days},
	}
	for _, f := range fields {
		if !metrics.IsFinite(f.value) {
			return pkgerrors.Wrapf(domain.ErrDataQuality, "product %s: %s is %v", p.ProductID, f.name, f.value)
		}
	}
	for _, r := range p.Recommendations {
		if r.DaysToStockout != nil && !metrics.IsFinite(*r.DaysToStockout) {
			return pkgerrors.Wrapf(domain.ErrDataQuality, "product %s: recommendation %s days_to_stockout is %v", p.ProductID, r.Action, *r.DaysToStockout)
		}
	}
	return nil
}

// BatchUpdatePredictions recomputes every product concurrently and returns only the successes
func (s *PredictionService) BatchUpdatePredictions(ctx context.Context, storeID string, productIDs []string) []domain.Prediction {
	results := make([]*domain.Prediction, len(productIDs))

	var g errgroup.Group
	g.SetLimit(s.opts.BatchConcurrency)

	for i, id := range productIDs {
		i, id := i, id
		g.Go(func() error {
			pred, err := s.SavePredictionToDatabase(ctx, storeID, id)
			if err != nil {
				log.Warn().Err(err).Str("store_id", storeID).Str("product_id", id).Msg("batch prediction update failed")
				return nil
			}
			results[i] = pred
			return nil
		})
	}
	_ = g.Wait()

	out := make([]domain.Prediction, 0, len(results))
	for _, p := range results {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out
}

// InitializeAllPredictions recomputes every product of a store, best effort
func (s *PredictionService) InitializeAllPredictions(ctx context.Context, storeID string) (domain.InitializationResult, error) {
	if err := requireStore(storeID); err != nil {
		return domain.InitializationResult{}, err
	}

	products, err := s.repos.Products.Find(ctx, storeID, repository.ProductFilter{})
	if err != nil {
		return domain.InitializationResult{}, fmt.Errorf("list products: %w", err)
	}

	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}

	saved := s.BatchUpdatePredictions(ctx, storeID, ids)
	res := domain.InitializationResult{
		Total:     len(ids),
		Succeeded: len(saved),
		Failed:    len(ids) - len(saved),
	}

	log.Info().
		Str("store_id", storeID).
		Int("total", res.Total).
		Int("succeeded", res.Succeeded).
		Int("failed", res.Failed).
		Msg("predictions initialized")

	return res, nil
}

// DeletePrediction removes the prediction of a deleted product
func (s *PredictionService) DeletePrediction(ctx context.Context, storeID, productID string) error {
	if err := requireStore(storeID); err != nil {
		return err
	}

	var category string
	if existing, err := s.repos.Predictions.FindByProductID(ctx, storeID, productID); err == nil {
		category = existing.CategoryName()
	}

	if err := s.repos.Predictions.DeleteByProductID(ctx, storeID, productID); err != nil {
		return fmt.Errorf("delete prediction %s: %w", productID, err)
	}
	s.cache.InvalidateProduct(ctx, storeID, productID, category)
	return nil
}

// FlushCache drops the cached reads of one store, or of every store when storeID is empty
func (s *PredictionService) FlushCache(ctx context.Context, storeID string) error {
	if strings.TrimSpace(storeID) == "" {
		return s.cache.Flush(ctx)
	}
	return s.cache.InvalidateStore(ctx, storeID)
}

func strPtr(v string) *string {
	return &v
}
