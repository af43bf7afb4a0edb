package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/andresuchdata/shelfwise/internal/domain"
	"github.com/andresuchdata/shelfwise/internal/repository"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

func requireStore(storeID string) error {
	if strings.TrimSpace(storeID) == "" {
		return domain.ErrMissingTenant
	}
	return nil
}

const productColumns = `
	id, store_id, name, category, is_perishable, total_quantity,
	batches, custom_alert_thresholds, created_at, updated_at`

type productRepository struct {
	db *DB
}

func NewProductRepository(db *DB) *productRepository {
	return &productRepository{db: db}
}

func (r *productRepository) FindByID(ctx context.Context, storeID, productID string) (*domain.Product, error) {
	if err := requireStore(storeID); err != nil {
		return nil, err
	}

	query := `SELECT` + productColumns + `
		FROM products
		WHERE store_id = $1 AND id = $2`

	var p domain.Product
	if err := sqlx.GetContext(ctx, r.db, &p, query, storeID, productID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &p, nil
}

func (r *productRepository) Find(ctx context.Context, storeID string, filter repository.ProductFilter) ([]domain.Product, error) {
	if err := requireStore(storeID); err != nil {
		return nil, err
	}

	where, args := buildProductFilterClause(filter, "", 2)
	query := `SELECT` + productColumns + `
		FROM products
		WHERE store_id = $1` + where + `
		ORDER BY id`

	products := make([]domain.Product, 0)
	if err := sqlx.SelectContext(ctx, r.db, &products, query, append([]interface{}{storeID}, args...)...); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

func (r *productRepository) Count(ctx context.Context, storeID string) (int, error) {
	if err := requireStore(storeID); err != nil {
		return 0, err
	}

	var n int
	if err := sqlx.GetContext(ctx, r.db, &n, `SELECT COUNT(*) FROM products WHERE store_id = $1`, storeID); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return n, nil
}

func (r *productRepository) UpdateThresholds(ctx context.Context, storeID, productID string, override *domain.ThresholdOverride) error {
	if err := requireStore(storeID); err != nil {
		return err
	}

	query := `
		UPDATE products
		SET custom_alert_thresholds = $3, updated_at = $4
		WHERE store_id = $1 AND id = $2`

	res, err := r.db.ExecContext(ctx, query, storeID, productID, override, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update product thresholds: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type categoryRepository struct {
	db *DB
}

func NewCategoryRepository(db *DB) *categoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) FindByStore(ctx context.Context, storeID string) ([]domain.Category, error) {
	if err := requireStore(storeID); err != nil {
		return nil, err
	}

	query := `
		SELECT store_id, name, custom_alert_thresholds, updated_at
		FROM categories
		WHERE store_id = $1
		ORDER BY name`

	categories := make([]domain.Category, 0)
	if err := sqlx.SelectContext(ctx, r.db, &categories, query, storeID); err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

func (r *categoryRepository) FindByName(ctx context.Context, storeID, name string) (*domain.Category, error) {
	if err := requireStore(storeID); err != nil {
		return nil, err
	}

	query := `
		SELECT store_id, name, custom_alert_thresholds, updated_at
		FROM categories
		WHERE store_id = $1 AND name = $2`

	var c domain.Category
	if err := sqlx.GetContext(ctx, r.db, &c, query, storeID, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return &c, nil
}

func (r *categoryRepository) UpsertThresholds(ctx context.Context, storeID, name string, override *domain.ThresholdOverride) error {
	if err := requireStore(storeID); err != nil {
		return err
	}

	query := `
		INSERT INTO categories (store_id, name, custom_alert_thresholds, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (store_id, name)
		DO UPDATE SET
			custom_alert_thresholds = EXCLUDED.custom_alert_thresholds,
			updated_at = NOW()`

	if _, err := r.db.ExecContext(ctx, query, storeID, name, override); err != nil {
		return fmt.Errorf("failed to upsert category thresholds: %w", err)
	}
	return nil
}

type storeRepository struct {
	db *DB
}

func NewStoreRepository(db *DB) *storeRepository {
	return &storeRepository{db: db}
}

func (r *storeRepository) List(ctx context.Context) ([]domain.Store, error) {
	query := `
		SELECT id, name, created_at, updated_at
		FROM stores
		ORDER BY id`

	stores := make([]domain.Store, 0)
	if err := sqlx.SelectContext(ctx, r.db, &stores, query); err != nil {
		return nil, fmt.Errorf("failed to list stores: %w", err)
	}
	return stores, nil
}

type saleRepository struct {
	db *DB
}

func NewSaleRepository(db *DB) *saleRepository {
	return &saleRepository{db: db}
}

func (r *saleRepository) FindByProductSince(ctx context.Context, storeID, productID string, since time.Time) ([]domain.Sale, error) {
	if err := requireStore(storeID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, store_id, product_id, product_name, category, quantity_sold,
			price_at_sale, total_amount, sale_date
		FROM sales
		WHERE store_id = $1 AND product_id = $2 AND sale_date >= $3
		ORDER BY sale_date ASC`

	sales := make([]domain.Sale, 0)
	if err := sqlx.SelectContext(ctx, r.db, &sales, query, storeID, productID, since); err != nil {
		return nil, fmt.Errorf("failed to list sales: %w", err)
	}
	return sales, nil
}

func (r *saleRepository) SumQuantityByProductSince(ctx context.Context, storeID string, since time.Time) (map[string]int, error) {
	if err := requireStore(storeID); err != nil {
		return nil, err
	}

	query := `
		SELECT product_id, COALESCE(SUM(quantity_sold), 0) AS units
		FROM sales
		WHERE store_id = $1 AND sale_date >= $2
		GROUP BY product_id`

	var rows []struct {
		ProductID string `db:"product_id"`
		Units     int    `db:"units"`
	}
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, storeID, since); err != nil {
		return nil, fmt.Errorf("failed to sum sales: %w", err)
	}

	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.ProductID] = row.Units
	}
	return out, nil
}

func (r *saleRepository) RevenueByProductSince(ctx context.Context, storeID string, productIDs []string, since time.Time) (map[string]decimal.Decimal, error) {
	if err := requireStore(storeID); err != nil {
		return nil, err
	}
	out := make(map[string]decimal.Decimal, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}

	clause, args := inClause("product_id", productIDs, 3)
	query := `
		SELECT product_id, COALESCE(SUM(total_amount), 0) AS revenue
		FROM sales
		WHERE store_id = $1 AND sale_date >= $2 AND ` + clause + `
		GROUP BY product_id`

	var rows []struct {
		ProductID string          `db:"product_id"`
		Revenue   decimal.Decimal `db:"revenue"`
	}
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, append([]interface{}{storeID, since}, args...)...); err != nil {
		return nil, fmt.Errorf("failed to sum revenue: %w", err)
	}

	for _, row := range rows {
		out[row.ProductID] = row.Revenue
	}
	return out, nil
}
