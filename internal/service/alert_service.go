package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/andresuchdata/shelfwise/internal/alert"
	"github.com/andresuchdata/shelfwise/internal/domain"
	"github.com/andresuchdata/shelfwise/internal/repository"
	"github.com/rs/zerolog/log"
)

const defaultNotificationLimit = 50

// AlertService serves alert scans, threshold settings and the notification feed
type AlertService struct {
	repos  repository.Repositories
	engine *alert.Engine
	now    func() time.Time
}

func NewAlertService(repos repository.Repositories, now func() time.Time) *AlertService {
	if now == nil {
		now = time.Now
	}
	return &AlertService{
		repos:  repos,
		engine: alert.NewEngine(now),
		now:    now,
	}
}

// GetSettings returns the store thresholds, creating the defaults on first use
func (s *AlertService) GetSettings(ctx context.Context, storeID string) (*domain.AlertSettings, error) {
	if err := requireStore(storeID); err != nil {
		return nil, err
	}

	settings, err := s.repos.Settings.Get(ctx, storeID)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("load alert settings: %w", err)
	}

	settings = &domain.AlertSettings{
		StoreID:    storeID,
		Thresholds: domain.DefaultThresholds(),
		UpdatedAt:  s.now(),
	}
	if err := s.repos.Settings.Save(ctx, settings); err != nil {
		return nil, fmt.Errorf("create default alert settings: %w", err)
	}

	log.Info().Str("store_id", storeID).Msg("created default alert settings")
	return settings, nil
}

// UpdateSettings validates and replaces the store thresholds
func (s *AlertService) UpdateSettings(ctx context.Context, storeID string, thresholds domain.Thresholds) (*domain.AlertSettings, error) {
	if err := requireStore(storeID); err != nil {
		return nil, err
	}
	if err := alert.ValidateThresholds(thresholds); err != nil {
		return nil, err
	}

	settings := &domain.AlertSettings{
		StoreID:    storeID,
		Thresholds: thresholds,
		UpdatedAt:  s.now(),
	}
	if err := s.repos.Settings.Save(ctx, settings); err != nil {
		return nil, fmt.Errorf("save alert settings: %w", err)
	}
	return settings, nil
}

// UpdateCategoryThresholds sets or clears (nil) a category override
func (s *AlertService) UpdateCategoryThresholds(ctx context.Context, storeID, category string, override *domain.ThresholdOverride) error {
	category = strings.TrimSpace(category)
	if category == "" {
		return domain.NewValidationError("category", "is required")
	}
	if err := s.validateOverride(ctx, storeID, override); err != nil {
		return err
	}

	if err := s.repos.Categories.UpsertThresholds(ctx, storeID, category, override); err != nil {
		return fmt.Errorf("save category thresholds: %w", err)
	}
	return nil
}

// UpdateProductThresholds sets or clears (nil) a product override
func (s *AlertService) UpdateProductThresholds(ctx context.Context, storeID, productID string, override *domain.ThresholdOverride) error {
	if err := s.validateOverride(ctx, storeID, override); err != nil {
		return err
	}

	if err := s.repos.Products.UpdateThresholds(ctx, storeID, productID, override); err != nil {
		return fmt.Errorf("save product thresholds: %w", err)
	}
	return nil
}

func (s *AlertService) validateOverride(ctx context.Context, storeID string, override *domain.ThresholdOverride) error {
	settings, err := s.GetSettings(ctx, storeID)
	if err != nil {
		return err
	}
	if override == nil {
		return nil
	}
	return alert.ValidateOverride(*override, settings.Thresholds)
}

// GetAlerts scans current inventory. Nothing is persisted.
func (s *AlertService) GetAlerts(ctx context.Context, storeID string, q domain.AlertQuery) (*domain.AlertReport, error) {
	if raw := strings.TrimSpace(q.Level); raw != "" && !strings.EqualFold(raw, "all") {
		level, ok := domain.ParseAlertLevel(raw)
		if !ok {
			return nil, domain.NewValidationError("level", "unknown alert level %q", raw)
		}
		q.Level = level
	} else {
		q.Level = ""
	}

	settings, err := s.GetSettings(ctx, storeID)
	if err != nil {
		return nil, err
	}

	products, err := s.repos.Products.Find(ctx, storeID, repository.ProductFilter{})
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}

	categories, err := s.repos.Categories.FindByStore(ctx, storeID)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	byName := make(map[string]*domain.Category, len(categories))
	for i := range categories {
		byName[categories[i].Name] = &categories[i]
	}

	sold, err := s.repos.Sales.SumQuantityByProductSince(ctx, storeID, s.now().AddDate(0, 0, -30))
	if err != nil {
		return nil, fmt.Errorf("load sales totals: %w", err)
	}

	report := s.engine.Scan(alert.Inventory{
		Products:   products,
		Categories: byName,
		UnitsSold:  sold,
		Settings:   settings.Thresholds,
	}, q)

	return &report, nil
}

// ListNotifications returns the newest notifications of a store
func (s *AlertService) ListNotifications(ctx context.Context, storeID string, limit int) ([]domain.Notification, error) {
	if err := requireStore(storeID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultNotificationLimit
	}

	out, err := s.repos.Notifications.ListByStore(ctx, storeID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return out, nil
}
