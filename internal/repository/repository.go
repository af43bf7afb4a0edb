package repository

import (
	"context"
	"time"

	"github.com/andresuchdata/shelfwise/internal/domain"
	"github.com/shopspring/decimal"
)

// Every method is scoped to a store. Implementations return domain.ErrMissingTenant
// for an empty store id and domain.ErrNotFound for single-row misses.

// ProductFilter narrows a product listing. Nil fields do not filter.
type ProductFilter struct {
	Category   *string
	Perishable *bool
	IDs        []string
}

type ProductRepository interface {
	FindByID(ctx context.Context, storeID, productID string) (*domain.Product, error)
	Find(ctx context.Context, storeID string, filter ProductFilter) ([]domain.Product, error)
	Count(ctx context.Context, storeID string) (int, error)
	UpdateThresholds(ctx context.Context, storeID, productID string, override *domain.ThresholdOverride) error
}

type SaleRepository interface {
	// FindByProductSince returns sales with sale_date >= since ordered by date ascending
	FindByProductSince(ctx context.Context, storeID, productID string, since time.Time) ([]domain.Sale, error)
	// SumQuantityByProductSince totals units sold per product since the given time
	SumQuantityByProductSince(ctx context.Context, storeID string, since time.Time) (map[string]int, error)
	// RevenueByProductSince totals sale amounts per product for the given products since the given time
	RevenueByProductSince(ctx context.Context, storeID string, productIDs []string, since time.Time) (map[string]decimal.Decimal, error)
}

type PredictionRepository interface {
	FindByProductID(ctx context.Context, storeID, productID string) (*domain.Prediction, error)
	FindByStore(ctx context.Context, storeID string) ([]domain.Prediction, error)
	FindByProductIDs(ctx context.Context, storeID string, productIDs []string) ([]domain.Prediction, error)
	FindByCategory(ctx context.Context, storeID, category string) ([]domain.Prediction, error)
	// Upsert writes the whole prediction row, keyed by product id
	Upsert(ctx context.Context, p *domain.Prediction) error
	DeleteByProductID(ctx context.Context, storeID, productID string) error
}

type AlertSettingsRepository interface {
	Get(ctx context.Context, storeID string) (*domain.AlertSettings, error)
	Save(ctx context.Context, s *domain.AlertSettings) error
}

type CategoryRepository interface {
	FindByStore(ctx context.Context, storeID string) ([]domain.Category, error)
	FindByName(ctx context.Context, storeID, name string) (*domain.Category, error)
	UpsertThresholds(ctx context.Context, storeID, name string, override *domain.ThresholdOverride) error
}

type NotificationRepository interface {
	ExistsSince(ctx context.Context, storeID, productID, notificationType string, since time.Time) (bool, error)
	Create(ctx context.Context, n *domain.Notification) error
	ListByStore(ctx context.Context, storeID string, limit int) ([]domain.Notification, error)
}

type StoreRepository interface {
	List(ctx context.Context) ([]domain.Store, error)
}

// Repositories bundles every collaborator the engine reads and writes
type Repositories struct {
	Products      ProductRepository
	Sales         SaleRepository
	Predictions   PredictionRepository
	Settings      AlertSettingsRepository
	Categories    CategoryRepository
	Notifications NotificationRepository
	Stores        StoreRepository
}
