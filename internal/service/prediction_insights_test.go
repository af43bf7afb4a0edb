package service

import (
	"context"
	"testing"
	"time"

	"github.com/andresuchdata/shelfwise/internal/domain"
	"github.com/shopspring/decimal"
)

func TestQuickInsightsOnEmptyStore(t *testing.T) {
	f := newFixture(t, nil)

	got, err := f.svc.GetQuickInsights(context.Background(), testStore)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.UrgentCount != 0 || got.CriticalItems == nil || len(got.CriticalItems) != 0 {
		t.Errorf("expected empty but non-nil critical items, got %+v", got)
	}
	if !got.LastUpdate.Equal(f.clock.Now()) {
		t.Errorf("expected last update to default to now, got %v", got.LastUpdate)
	}
}

func TestQuickInsightsOrdersByRisk(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	preds := f.db.Repositories().Predictions
	_ = preds.Upsert(ctx, &domain.Prediction{ID: "1", StoreID: testStore, ProductID: "calm", Metrics: domain.Metrics{RiskScore: 10, DaysUntilStockout: 200}})
	_ = preds.Upsert(ctx, &domain.Prediction{ID: "2", StoreID: testStore, ProductID: "hot", Metrics: domain.Metrics{RiskScore: 90, DaysUntilStockout: 40}})
	_ = preds.Upsert(ctx, &domain.Prediction{ID: "3", StoreID: testStore, ProductID: "empty", Metrics: domain.Metrics{RiskScore: 20, DaysUntilStockout: 2},
		Recommendations: domain.Recommendations{{Action: "restock_soon"}}})

	got, err := f.svc.GetQuickInsights(ctx, testStore)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.UrgentCount != 2 || len(got.CriticalItems) != 2 {
		t.Fatalf("expected 2 urgent items, got %+v", got)
	}
	if got.CriticalItems[0].ProductID != "hot" || got.CriticalItems[1].TopAction != "restock_soon" {
		t.Errorf("unexpected order %+v", got.CriticalItems)
	}
}

func TestDashboardIsInvalidatedBySave(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.addProduct("p1", "", false, stock(10))
	f.addProduct("p2", "", false, stock(10))

	before, err := f.svc.GetDashboard(ctx, testStore)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if before.TotalProducts != 2 || before.TrackedProducts != 0 {
		t.Fatalf("expected 2 products and none tracked, got %+v", before)
	}

	if _, err := f.svc.SavePredictionToDatabase(ctx, testStore, "p1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	after, err := f.svc.GetDashboard(ctx, testStore)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if after.TrackedProducts != 1 || after.LowDataProducts != 1 {
		t.Errorf("expected refreshed dashboard with 1 tracked low data product, got %+v", after)
	}
	if after.ConfidenceBreakdown[domain.ConfidenceLow] != 1 {
		t.Errorf("expected one low confidence prediction, got %v", after.ConfidenceBreakdown)
	}
}

func TestDashboardIsServedFromCache(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.addProduct("p1", "", false, stock(10))

	first, _ := f.svc.GetDashboard(ctx, testStore)

	// writes that bypass the service leave the cached copy in place
	f.addProduct("p2", "", false, stock(10))
	f.clock.Advance(time.Second)

	second, _ := f.svc.GetDashboard(ctx, testStore)
	if second.TotalProducts != first.TotalProducts {
		t.Errorf("expected cached total %d, got %d", first.TotalProducts, second.TotalProducts)
	}

	if err := f.svc.FlushCache(ctx, testStore); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	third, _ := f.svc.GetDashboard(ctx, testStore)
	if third.TotalProducts != 2 {
		t.Errorf("expected 2 products after flush, got %d", third.TotalProducts)
	}
}

func TestCategoryInsights(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	dairy := "dairy"
	preds := f.db.Repositories().Predictions
	for i, v := range []float64{1, 4, 2} {
		_ = preds.Upsert(ctx, &domain.Prediction{
			ID: string(rune('a' + i)), StoreID: testStore, ProductID: string(rune('a' + i)), Category: &dairy,
			Metrics: domain.Metrics{Velocity: v, RiskScore: 30 * v, SalesLast30Days: 30 * v},
		})
	}

	got, err := f.svc.GetCategoryInsights(ctx, testStore, "dairy")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Summary.TotalProducts != 3 || got.Summary.AverageVelocity != 2.33 || got.Summary.HighRiskCount != 1 {
		t.Errorf("unexpected summary %+v", got.Summary)
	}
	if got.TopPerformers[0].ProductID != "b" || got.BottomPerformers[0].ProductID != "a" {
		t.Errorf("unexpected performers %+v / %+v", got.TopPerformers, got.BottomPerformers)
	}

	if _, err := f.svc.GetCategoryInsights(ctx, testStore, ""); !domain.IsValidation(err) {
		t.Errorf("expected validation error for blank category, got %v", err)
	}
}

func TestCategoryInsightsIgnoresCase(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	dairy := "Dairy"
	_ = f.db.Repositories().Predictions.Upsert(ctx, &domain.Prediction{
		ID: "1", StoreID: testStore, ProductID: "milk", Category: &dairy,
		Metrics: domain.Metrics{Velocity: 2},
	})

	for _, name := range []string{"dairy", "Dairy", " DAIRY "} {
		got, err := f.svc.GetCategoryInsights(ctx, testStore, name)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", name, err)
		}
		if got.Summary.TotalProducts != 1 || got.Summary.Category != "Dairy" {
			t.Errorf("expected 1 product in Dairy for %q, got %+v", name, got.Summary)
		}
	}
}

func TestCategoryInsightsRevenue(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	dairy := "dairy"
	preds := f.db.Repositories().Predictions
	for _, id := range []string{"milk", "butter"} {
		_ = preds.Upsert(ctx, &domain.Prediction{ID: id, StoreID: testStore, ProductID: id, Category: &dairy})
	}

	now := f.clock.Now()
	sales := []struct {
		product string
		amount  string
		ago     int
	}{
		{"milk", "12.50", 1},
		{"milk", "7.25", 2},
		{"butter", "3.10", 5},
		{"milk", "100.00", 45},
		{"bread", "50.00", 1},
	}
	for i, sale := range sales {
		f.db.AddSale(domain.Sale{
			ID:           string(rune('a' + i)),
			StoreID:      testStore,
			ProductID:    sale.product,
			QuantitySold: 1,
			TotalAmount:  decimal.RequireFromString(sale.amount),
			SaleDate:     now.AddDate(0, 0, -sale.ago),
		})
	}

	got, err := f.svc.GetCategoryInsights(ctx, testStore, "dairy")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := decimal.RequireFromString("22.85"); !got.Summary.RevenueLast30Days.Equal(want) {
		t.Errorf("expected revenue %s, got %s", want, got.Summary.RevenueLast30Days)
	}

	empty, err := f.svc.GetCategoryInsights(ctx, testStore, "bakery")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !empty.Summary.RevenueLast30Days.IsZero() {
		t.Errorf("expected zero revenue for an empty category, got %s", empty.Summary.RevenueLast30Days)
	}
}

func TestPredictiveAnalyticsComputesMissingPrediction(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.addProduct("p1", "", false, stock(10))
	f.addSale("p1", 2, 48*time.Hour)
	f.addSale("p1", 3, 47*time.Hour)

	got, err := f.svc.GetPredictiveAnalytics(ctx, testStore, "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.TotalQuantity != 10 || got.DataPoints != 2 {
		t.Errorf("expected quantity 10 over 2 sales, got %d/%d", got.TotalQuantity, got.DataPoints)
	}
	if len(got.SalesHistory) != 1 || got.SalesHistory[0].Quantity != 5 {
		t.Errorf("expected one day with 5 units, got %+v", got.SalesHistory)
	}
	f.stored(t, "p1")
}

func TestBatchPredictionsSkipsUnknown(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.addProduct("p1", "", false, stock(10))
	_, _ = f.svc.SavePredictionToDatabase(ctx, testStore, "p1")

	got, err := f.svc.GetBatchPredictions(ctx, testStore, []string{"p1", "ghost"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ProductID != "p1" {
		t.Errorf("expected only p1, got %+v", got)
	}
}
