package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/andresuchdata/shelfwise/internal/cache"
	"github.com/andresuchdata/shelfwise/internal/domain"
	"github.com/andresuchdata/shelfwise/internal/forecast"
	"github.com/andresuchdata/shelfwise/internal/notification"
	"github.com/andresuchdata/shelfwise/internal/realtime"
	"github.com/andresuchdata/shelfwise/internal/repository/memory"
)

const testStore = "store-1"

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time { return c.t }

func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	svc   *PredictionService
	db    *memory.DB
	clock *testClock
	hub   *realtime.Hub
	store *cache.MemoryStore
}

func newFixture(t *testing.T, forecaster forecast.Provider) *fixture {
	t.Helper()
	db := memory.New()
	clock := &testClock{t: time.Date(2025, 4, 10, 10, 0, 0, 0, time.UTC)}
	hub := realtime.NewHub()
	store := cache.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })

	opts := DefaultPredictionOptions()
	opts.Now = clock.Now

	repos := db.Repositories()
	svc := NewPredictionService(
		repos,
		forecaster,
		notification.NewGate(repos.Notifications, 24*time.Hour, clock.Now),
		cache.NewPredictionCache(store, time.Minute),
		hub,
		opts,
	)
	return &fixture{svc: svc, db: db, clock: clock, hub: hub, store: store}
}

func (f *fixture) addProduct(id, category string, perishable bool, batches ...domain.Batch) {
	p := domain.Product{ID: id, StoreID: testStore, Name: "Product " + id, IsPerishable: perishable, Batches: batches}
	if category != "" {
		c := category
		p.Category = &c
	}
	f.db.AddProduct(p)
}

func (f *fixture) addSale(productID string, qty int, ago time.Duration) {
	f.db.AddSale(domain.Sale{
		ID:           productID + "-" + f.clock.Now().Add(-ago).String(),
		StoreID:      testStore,
		ProductID:    productID,
		QuantitySold: qty,
		SaleDate:     f.clock.Now().Add(-ago),
	})
}

func (f *fixture) stored(t *testing.T, productID string) *domain.Prediction {
	t.Helper()
	p, err := f.db.Repositories().Predictions.FindByProductID(context.Background(), testStore, productID)
	if err != nil {
		t.Fatalf("expected stored prediction for %s, got %v", productID, err)
	}
	return p
}

func stock(qty int) domain.Batch {
	return domain.Batch{BatchNumber: "B", Quantity: qty}
}

type nanForecaster struct{}

func (nanForecaster) Name() string { return "nan" }

func (nanForecaster) Forecast(context.Context, forecast.Request) (forecast.Result, error) {
	return forecast.Result{Next7Days: math.NaN(), Next14Days: 1, Next30Days: math.Inf(1), Confidence: domain.ConfidenceLow}, nil
}

func TestFirstSaleWithoutHistoryGetsGenericWarning(t *testing.T) {
	f := newFixture(t, nil)
	f.addProduct("p1", "dairy", false, stock(20))
	f.addSale("p1", 3, 0)

	pred, err := f.svc.UpdatePredictionAfterSale(context.Background(), testStore, "p1", SaleUpdate{QuantitySold: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pred.DataPoints != 1 {
		t.Errorf("expected 1 data point, got %d", pred.DataPoints)
	}
	if pred.Warning == nil || !strings.Contains(*pred.Warning, "Only 1 sales recorded") {
		t.Errorf("expected generic low data warning, got %v", pred.Warning)
	}
	if pred.Metadata != nil {
		t.Errorf("expected no fallback metadata, got %+v", pred.Metadata)
	}
	if pred.Forecast.Confidence != domain.ConfidenceLow {
		t.Errorf("expected low confidence, got %s", pred.Forecast.Confidence)
	}
	f.stored(t, "p1")
}

func TestCategoryFallbackUsesPeerAverages(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.addProduct("p-new", "dairy", false, stock(20))
	f.addSale("p-new", 2, time.Hour)

	dairy := "dairy"
	peers := f.db.Repositories().Predictions
	_ = peers.Upsert(ctx, &domain.Prediction{ID: "a", StoreID: testStore, ProductID: "p-a", Category: &dairy, DataPoints: 10, Metrics: domain.Metrics{Velocity: 3, RiskScore: 20}})
	_ = peers.Upsert(ctx, &domain.Prediction{ID: "b", StoreID: testStore, ProductID: "p-b", Category: &dairy, DataPoints: 12, Metrics: domain.Metrics{Velocity: 5, RiskScore: 40}})
	_ = peers.Upsert(ctx, &domain.Prediction{ID: "c", StoreID: testStore, ProductID: "p-c", Category: &dairy, DataPoints: 2, Metrics: domain.Metrics{Velocity: 90}})

	pred, err := f.svc.SavePredictionToDatabase(ctx, testStore, "p-new")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pred.Metadata == nil || !pred.Metadata.UsedCategoryFallback {
		t.Fatalf("expected category fallback, got %+v", pred.Metadata)
	}
	if pred.Metadata.CategorySampleSize != 2 || *pred.Metadata.CategoryAverageRisk != 30 {
		t.Errorf("expected 2 peers averaging risk 30, got %+v", pred.Metadata)
	}
	if pred.Metrics.Velocity != 4 || pred.Metrics.MovingAverage != 4 {
		t.Errorf("expected velocity and moving average 4, got %v/%v", pred.Metrics.Velocity, pred.Metrics.MovingAverage)
	}
	if pred.Forecast.Next7Days != 28 || pred.Forecast.Next14Days != 56 || pred.Forecast.Next30Days != 120 {
		t.Errorf("expected 28/56/120, got %v/%v/%v", pred.Forecast.Next7Days, pred.Forecast.Next14Days, pred.Forecast.Next30Days)
	}
	if pred.Warning == nil || !strings.Contains(*pred.Warning, "dairy category average of 4.00") {
		t.Errorf("expected warning naming the category average, got %v", pred.Warning)
	}
}

func TestIncrementalPathWithinFreshnessWindow(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.addProduct("p1", "", false, stock(50))
	f.addSale("p1", 10, 0)

	first, err := f.svc.UpdatePredictionAfterSale(ctx, testStore, "p1", SaleUpdate{QuantitySold: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Metrics.Velocity != 0.33 {
		t.Fatalf("expected full path velocity 0.33, got %v", first.Metrics.Velocity)
	}

	f.clock.Advance(3 * time.Second)
	f.addSale("p1", 5, 0)
	second, err := f.svc.UpdatePredictionAfterSale(ctx, testStore, "p1", SaleUpdate{QuantitySold: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 0.9*0.33 + 0.1*5
	if second.Metrics.Velocity != 0.8 {
		t.Errorf("expected blended velocity 0.8, got %v", second.Metrics.Velocity)
	}
	if second.DataPoints != 2 || second.Metrics.SalesLast30Days != 15 {
		t.Errorf("expected 2 data points and 15 units, got %d/%v", second.DataPoints, second.Metrics.SalesLast30Days)
	}
	if second.Metrics.DaysUntilStockout != 62.5 {
		t.Errorf("expected 50/0.8=62.5 days to stockout, got %v", second.Metrics.DaysUntilStockout)
	}
	if second.ID != first.ID {
		t.Errorf("expected prediction id to be kept, got %s and %s", first.ID, second.ID)
	}
	if !second.CalculatedAt.Equal(f.clock.Now()) {
		t.Errorf("expected calculated at to be stamped now")
	}

	f.clock.Advance(6 * time.Second)
	third, _ := f.svc.UpdatePredictionAfterSale(ctx, testStore, "p1", SaleUpdate{QuantitySold: 0})
	if third.Metrics.Velocity != 0.5 || third.DataPoints != 2 {
		t.Errorf("expected full recompute to converge to 15/30=0.5 over 2 sales, got %v/%d", third.Metrics.Velocity, third.DataPoints)
	}
}

func TestFullRecomputeIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	expiry := f.clock.Now().AddDate(0, 0, 9)
	f.addProduct("p1", "bakery", true, domain.Batch{BatchNumber: "B1", Quantity: 40, ExpiryDate: &expiry})
	for i := 0; i < 20; i++ {
		f.addSale("p1", 1+i%4, time.Duration(i)*24*time.Hour)
	}

	first, err := f.svc.SavePredictionToDatabase(ctx, testStore, "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := f.svc.SavePredictionToDatabase(ctx, testStore, "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.Metrics != second.Metrics || first.Forecast != second.Forecast {
		t.Errorf("expected identical results, got %+v/%+v and %+v/%+v", first.Metrics, first.Forecast, second.Metrics, second.Forecast)
	}
	if first.Forecast.Confidence != domain.ConfidenceHigh {
		t.Errorf("expected high confidence from 20 sales, got %s", first.Forecast.Confidence)
	}
	if first.Warning != nil {
		t.Errorf("expected no warning, got %s", *first.Warning)
	}
}

func TestNonFiniteForecastIsNeverPersisted(t *testing.T) {
	f := newFixture(t, nanForecaster{})
	ctx := context.Background()
	f.addProduct("p1", "", false, stock(10))
	f.addSale("p1", 1, 0)

	pred, err := f.svc.SavePredictionToDatabase(ctx, testStore, "p1")
	if pred != nil || !errors.Is(err, domain.ErrDataQuality) {
		t.Fatalf("expected data quality failure, got %v / %v", pred, err)
	}
	if _, err := f.db.Repositories().Predictions.FindByProductID(ctx, testStore, "p1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected nothing stored, got %v", err)
	}
}

func TestNonFiniteForecastKeepsPreviousPrediction(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.addProduct("p1", "", false, stock(10))
	f.addSale("p1", 3, 0)

	before, _ := f.svc.SavePredictionToDatabase(ctx, testStore, "p1")

	f.svc.forecaster = nanForecaster{}
	f.clock.Advance(time.Minute)
	if _, err := f.svc.UpdatePredictionAfterSale(ctx, testStore, "p1", SaleUpdate{QuantitySold: 1}); !errors.Is(err, domain.ErrDataQuality) {
		t.Fatalf("expected data quality failure, got %v", err)
	}

	after := f.stored(t, "p1")
	if !after.CalculatedAt.Equal(before.CalculatedAt) || after.Forecast != before.Forecast {
		t.Errorf("expected stored prediction to be untouched")
	}
}

func TestCancelledContextWritesNothing(t *testing.T) {
	f := newFixture(t, nil)
	f.addProduct("p1", "", false, stock(10))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.svc.SavePredictionToDatabase(ctx, testStore, "p1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation error, got %v", err)
	}
	if _, err := f.db.Repositories().Predictions.FindByProductID(context.Background(), testStore, "p1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected nothing stored, got %v", err)
	}
}

func TestMissingTenantIsRejected(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.svc.SavePredictionToDatabase(context.Background(), "", "p1"); !errors.Is(err, domain.ErrMissingTenant) {
		t.Errorf("expected missing tenant error, got %v", err)
	}
	if _, err := f.svc.GetQuickInsights(context.Background(), " "); !errors.Is(err, domain.ErrMissingTenant) {
		t.Errorf("expected missing tenant error, got %v", err)
	}
}

func TestUnknownProductIsNotFound(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.svc.UpdatePredictionAfterSale(context.Background(), testStore, "ghost", SaleUpdate{QuantitySold: 1}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestBatchUpdateReturnsOnlySuccesses(t *testing.T) {
	f := newFixture(t, nil)
	f.addProduct("p1", "", false, stock(10))
	f.addProduct("p2", "", false, stock(10))

	got := f.svc.BatchUpdatePredictions(context.Background(), testStore, []string{"p1", "ghost", "p2"})
	if len(got) != 2 || got[0].ProductID != "p1" || got[1].ProductID != "p2" {
		t.Errorf("expected p1 and p2 in order, got %+v", got)
	}
}

func TestInitializeAllPredictionsCounts(t *testing.T) {
	f := newFixture(t, nil)
	f.addProduct("p1", "", false, stock(10))
	f.addProduct("p2", "", false, stock(10))
	f.addProduct("p3", "", false, stock(10))

	res, err := f.svc.InitializeAllPredictions(context.Background(), testStore)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Total != 3 || res.Succeeded != 3 || res.Failed != 0 {
		t.Errorf("expected 3/3/0, got %+v", res)
	}

	f.db.FailUpserts = errors.New("disk full")
	res, _ = f.svc.InitializeAllPredictions(context.Background(), testStore)
	if res.Total != 3 || res.Succeeded != 0 || res.Failed != 3 {
		t.Errorf("expected 3/0/3, got %+v", res)
	}
}

func TestTwoQualifyingSalesProduceOneNotification(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	expiry := f.clock.Now().AddDate(0, 0, 2)
	f.addProduct("p1", "", true, domain.Batch{BatchNumber: "B1", Quantity: 100, ExpiryDate: &expiry})
	f.addSale("p1", 1, 0)

	alerts, cancel := f.hub.Subscribe(realtime.AlertsTopic(testStore))
	defer cancel()

	first, err := f.svc.UpdatePredictionAfterSale(ctx, testStore, "p1", SaleUpdate{QuantitySold: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Metrics.RiskScore < 70 {
		t.Fatalf("expected a critical risk score, got %v", first.Metrics.RiskScore)
	}

	f.clock.Advance(time.Hour)
	f.addSale("p1", 1, 0)
	if _, err := f.svc.UpdatePredictionAfterSale(ctx, testStore, "p1", SaleUpdate{QuantitySold: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	notes := f.db.Notifications(testStore)
	if len(notes) != 1 || notes[0].Type != domain.NotificationCriticalRisk {
		t.Errorf("expected exactly one critical risk notification, got %+v", notes)
	}

	select {
	case evt := <-alerts:
		if evt.Type != realtime.EventUrgentAlert {
			t.Errorf("expected urgent alert event, got %s", evt.Type)
		}
	default:
		t.Error("expected an urgent alert broadcast")
	}
}

func TestSavePublishesPredictionUpdate(t *testing.T) {
	f := newFixture(t, nil)
	f.addProduct("p1", "", false, stock(10))

	events, cancel := f.hub.Subscribe(realtime.ProductTopic(testStore, "p1"))
	defer cancel()

	if _, err := f.svc.SavePredictionToDatabase(context.Background(), testStore, "p1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case evt := <-events:
		if evt.Type != realtime.EventPredictionUpdated {
			t.Errorf("expected prediction update, got %s", evt.Type)
		}
	default:
		t.Error("expected a prediction update event")
	}
}

func TestDeletePrediction(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.addProduct("p1", "", false, stock(10))
	_, _ = f.svc.SavePredictionToDatabase(ctx, testStore, "p1")

	if err := f.svc.DeletePrediction(ctx, testStore, "p1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.db.Repositories().Predictions.FindByProductID(ctx, testStore, "p1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected prediction to be gone, got %v", err)
	}
}
