package notification

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/andresuchdata/shelfwise/internal/domain"
	"github.com/andresuchdata/shelfwise/internal/metrics"
	"github.com/andresuchdata/shelfwise/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	riskThreshold    = 70.0
	stockoutMaxDays  = 3.0
	criticalDiscount = 30
	restockCoverDays = 14
	defaultCooldown  = 24 * time.Hour
)

const (
	actionApplyDiscount = "apply_discount"
	actionRestock       = "restock"
)

// Gate creates at most one critical-risk or stockout notification per product
// and type inside the cool-down window.
type Gate struct {
	repo     repository.NotificationRepository
	cooldown time.Duration
	now      func() time.Time
}

// NewGate creates a notification gate; a zero cooldown means 24h
func NewGate(repo repository.NotificationRepository, cooldown time.Duration, now func() time.Time) *Gate {
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	if now == nil {
		now = time.Now
	}
	return &Gate{repo: repo, cooldown: cooldown, now: now}
}

// Evaluate checks a fresh prediction and stores a notification when one is due.
// It returns nil when nothing fired.
func (g *Gate) Evaluate(ctx context.Context, product *domain.Product, pred *domain.Prediction) (*domain.Notification, error) {
	if product == nil || pred == nil {
		return nil, nil
	}

	storeID := pred.StoreID
	if storeID == "" {
		storeID = product.StoreID
	}
	if storeID == "" {
		log.Warn().Str("product_id", pred.ProductID).Msg("skipping notification for product without store")
		return nil, nil
	}

	now := g.now()
	m := pred.Metrics

	var n *domain.Notification
	switch {
	case m.RiskScore >= riskThreshold:
		n = g.criticalRisk(product, pred, now)
	case m.DaysUntilStockout > 0 && m.DaysUntilStockout <= stockoutMaxDays:
		n = g.stockoutWarning(product, pred)
	default:
		return nil, nil
	}
	n.StoreID = storeID

	exists, err := g.repo.ExistsSince(ctx, storeID, pred.ProductID, n.Type, now.Add(-g.cooldown))
	if err != nil {
		return nil, fmt.Errorf("check recent %s notification: %w", n.Type, err)
	}
	if exists {
		return nil, nil
	}

	n.ID = uuid.NewString()
	n.ProductID = pred.ProductID
	n.CreatedAt = now
	if err := g.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("create %s notification: %w", n.Type, err)
	}

	log.Info().
		Str("store_id", storeID).
		Str("product_id", pred.ProductID).
		Str("type", n.Type).
		Msg("notification created")

	return n, nil
}

func (g *Gate) criticalRisk(product *domain.Product, pred *domain.Prediction, now time.Time) *domain.Notification {
	discount := criticalDiscount
	meta := metadataFor(pred)
	if expiry, ok := product.EarliestExpiry(); ok {
		days := metrics.DaysBetween(now, expiry)
		meta.DaysToExpiry = &days
	}

	return &domain.Notification{
		Type:     domain.NotificationCriticalRisk,
		Title:    fmt.Sprintf("Critical expiry risk: %s", product.Name),
		Message:  fmt.Sprintf("%s has a risk score of %.0f. Apply a %d%% discount to clear stock before it expires.", product.Name, pred.Metrics.RiskScore, discount),
		Priority: domain.PriorityCritical,
		Action: domain.NotificationAction{
			Type:     actionApplyDiscount,
			Discount: &discount,
			Label:    fmt.Sprintf("Apply %d%% discount", discount),
		},
		Metadata: meta,
	}
}

func (g *Gate) stockoutWarning(product *domain.Product, pred *domain.Prediction) *domain.Notification {
	qty := int(math.Ceil(pred.Metrics.Velocity * restockCoverDays))

	return &domain.Notification{
		Type:     domain.NotificationStockoutWarning,
		Title:    fmt.Sprintf("Stockout soon: %s", product.Name),
		Message:  fmt.Sprintf("%s will run out in %.1f days. Restock %d units to cover two weeks of demand.", product.Name, pred.Metrics.DaysUntilStockout, qty),
		Priority: domain.PriorityHigh,
		Action: domain.NotificationAction{
			Type:     actionRestock,
			Quantity: &qty,
			Label:    fmt.Sprintf("Restock %d units", qty),
		},
		Metadata: metadataFor(pred),
	}
}

func metadataFor(pred *domain.Prediction) domain.NotificationMetadata {
	return domain.NotificationMetadata{
		RiskScore:         pred.Metrics.RiskScore,
		DaysUntilStockout: pred.Metrics.DaysUntilStockout,
		Velocity:          pred.Metrics.Velocity,
	}
}
