package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/andresuchdata/shelfwise/internal/domain"
	"github.com/jmoiron/sqlx"
)

const predictionColumns = `
	id, store_id, product_id, product_name, category, metrics, forecast,
	recommendations, data_points, calculated_at, warning, metadata`

type predictionRepository struct {
	db *DB
}

func NewPredictionRepository(db *DB) *predictionRepository {
	return &predictionRepository{db: db}
}

func (r *predictionRepository) FindByProductID(ctx context.Context, storeID, productID string) (*domain.Prediction, error) {
	if err := requireStore(storeID); err != nil {
		return nil, err
	}

	query := `SELECT` + predictionColumns + `
		FROM predictions
		WHERE store_id = $1 AND product_id = $2`

	var p domain.Prediction
	if err := sqlx.GetContext(ctx, r.db, &p, query, storeID, productID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}
	return &p, nil
}

func (r *predictionRepository) FindByStore(ctx context.Context, storeID string) ([]domain.Prediction, error) {
	return r.selectWhere(ctx, storeID, "")
}

func (r *predictionRepository) FindByCategory(ctx context.Context, storeID, category string) ([]domain.Prediction, error) {
	return r.selectWhere(ctx, storeID, " AND LOWER(TRIM(category)) = LOWER(TRIM($2))", category)
}

func (r *predictionRepository) FindByProductIDs(ctx context.Context, storeID string, productIDs []string) ([]domain.Prediction, error) {
	if len(productIDs) == 0 {
		return []domain.Prediction{}, nil
	}
	clause, args := inClause("product_id", productIDs, 2)
	return r.selectWhere(ctx, storeID, " AND "+clause, args...)
}

func (r *predictionRepository) selectWhere(ctx context.Context, storeID, where string, args ...interface{}) ([]domain.Prediction, error) {
	if err := requireStore(storeID); err != nil {
		return nil, err
	}

	query := `SELECT` + predictionColumns + `
		FROM predictions
		WHERE store_id = $1` + where + `
		ORDER BY product_id`

	preds := make([]domain.Prediction, 0)
	if err := sqlx.SelectContext(ctx, r.db, &preds, query, append([]interface{}{storeID}, args...)...); err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}
	return preds, nil
}

// Upsert replaces the whole row. The prediction id of an existing row is kept.
func (r *predictionRepository) Upsert(ctx context.Context, p *domain.Prediction) error {
	if err := requireStore(p.StoreID); err != nil {
		return err
	}

	query := `
		INSERT INTO predictions (` + predictionColumns + `)
		VALUES (
			:id, :store_id, :product_id, :product_name, :category, :metrics, :forecast,
			:recommendations, :data_points, :calculated_at, :warning, :metadata
		)
		ON CONFLICT (store_id, product_id)
		DO UPDATE SET
			product_name = EXCLUDED.product_name,
			category = EXCLUDED.category,
			metrics = EXCLUDED.metrics,
			forecast = EXCLUDED.forecast,
			recommendations = EXCLUDED.recommendations,
			data_points = EXCLUDED.data_points,
			calculated_at = EXCLUDED.calculated_at,
			warning = EXCLUDED.warning,
			metadata = EXCLUDED.metadata`

	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, query, p); err != nil {
			return fmt.Errorf("failed to upsert prediction: %w", err)
		}
		return nil
	})
}

func (r *predictionRepository) DeleteByProductID(ctx context.Context, storeID, productID string) error {
	if err := requireStore(storeID); err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM predictions WHERE store_id = $1 AND product_id = $2`, storeID, productID); err != nil {
		return fmt.Errorf("failed to delete prediction: %w", err)
	}
	return nil
}

type alertSettingsRepository struct {
	db *DB
}

func NewAlertSettingsRepository(db *DB) *alertSettingsRepository {
	return &alertSettingsRepository{db: db}
}

type settingsRow struct {
	StoreID string `db:"store_id"`
	domain.Thresholds
	UpdatedAt time.Time `db:"updated_at"`
}

func (r *alertSettingsRepository) Get(ctx context.Context, storeID string) (*domain.AlertSettings, error) {
	if err := requireStore(storeID); err != nil {
		return nil, err
	}

	query := `
		SELECT store_id, critical, high_urgency, early_warning, updated_at
		FROM alert_settings
		WHERE store_id = $1`

	var row settingsRow
	if err := sqlx.GetContext(ctx, r.db, &row, query, storeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get alert settings: %w", err)
	}

	return &domain.AlertSettings{
		StoreID:    row.StoreID,
		Thresholds: row.Thresholds,
		UpdatedAt:  row.UpdatedAt,
	}, nil
}

func (r *alertSettingsRepository) Save(ctx context.Context, s *domain.AlertSettings) error {
	if err := requireStore(s.StoreID); err != nil {
		return err
	}

	query := `
		INSERT INTO alert_settings (store_id, critical, high_urgency, early_warning, updated_at)
		VALUES (:store_id, :critical, :high_urgency, :early_warning, :updated_at)
		ON CONFLICT (store_id)
		DO UPDATE SET
			critical = EXCLUDED.critical,
			high_urgency = EXCLUDED.high_urgency,
			early_warning = EXCLUDED.early_warning,
			updated_at = EXCLUDED.updated_at`

	row := settingsRow{StoreID: s.StoreID, Thresholds: s.Thresholds, UpdatedAt: s.UpdatedAt}
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to save alert settings: %w", err)
	}
	return nil
}

type notificationRepository struct {
	db *DB
}

func NewNotificationRepository(db *DB) *notificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) ExistsSince(ctx context.Context, storeID, productID, notificationType string, since time.Time) (bool, error) {
	if err := requireStore(storeID); err != nil {
		return false, err
	}

	query := `
		SELECT EXISTS (
			SELECT 1 FROM notifications
			WHERE store_id = $1 AND product_id = $2 AND type = $3 AND created_at >= $4
		)`

	var exists bool
	if err := sqlx.GetContext(ctx, r.db, &exists, query, storeID, productID, notificationType, since); err != nil {
		return false, fmt.Errorf("failed to check notifications: %w", err)
	}
	return exists, nil
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	if err := requireStore(n.StoreID); err != nil {
		return err
	}

	query := `
		INSERT INTO notifications (
			id, store_id, product_id, type, title, message, priority, action, metadata, created_at
		) VALUES (
			:id, :store_id, :product_id, :type, :title, :message, :priority, :action, :metadata, :created_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, n); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *notificationRepository) ListByStore(ctx context.Context, storeID string, limit int) ([]domain.Notification, error) {
	if err := requireStore(storeID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, store_id, product_id, type, title, message, priority, action, metadata, created_at
		FROM notifications
		WHERE store_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	out := make([]domain.Notification, 0)
	if err := sqlx.SelectContext(ctx, r.db, &out, query, storeID, limit); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return out, nil
}
