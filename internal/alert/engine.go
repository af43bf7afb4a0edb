package alert

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/andresuchdata/shelfwise/internal/domain"
	"github.com/andresuchdata/shelfwise/internal/metrics"
)

const (
	slowMovingMinStock    = 5
	slowMovingMaxVelocity = 0.5
	slowMovingMinDays     = 30
	slowMovingWindowDays  = 30
)

var levelActions = map[string][]string{
	domain.LevelExpired:    {"Remove from shelf immediately", "Record as waste", "Review order quantities for this product"},
	domain.LevelCritical:   {"Apply a 30-50% markdown", "Move to front of shelf", "Bundle with fast-moving items"},
	domain.LevelHigh:       {"Apply a 15-25% markdown", "Feature in current promotions"},
	domain.LevelEarly:      {"Monitor sell-through", "Adjust the next reorder quantity"},
	domain.LevelSlowMoving: {"Promote the product", "Apply a markdown", "Review pricing"},
}

// Inventory is the current stock state an alert scan runs over
type Inventory struct {
	Products   []domain.Product
	Categories map[string]*domain.Category
	// UnitsSold holds units sold per product over the last 30 days
	UnitsSold map[string]int
	Settings  domain.Thresholds
}

// Engine derives expiry and slow-moving alerts from inventory. It holds no state.
type Engine struct {
	now func() time.Time
}

// NewEngine creates an alert engine; a nil clock uses time.Now
func NewEngine(now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{now: now}
}

// Scan builds the filtered, sorted alert report
func (e *Engine) Scan(inv Inventory, q domain.AlertQuery) domain.AlertReport {
	now := e.now()

	alerts := make([]domain.Alert, 0)
	for i := range inv.Products {
		p := &inv.Products[i]
		if p.IsPerishable {
			alerts = append(alerts, e.expiryAlerts(p, inv, now)...)
			continue
		}
		if a, ok := e.slowMovingAlert(p, inv, now); ok {
			alerts = append(alerts, a)
		}
	}

	alerts = Filter(alerts, q)
	Sort(alerts, q.SortBy)

	return domain.AlertReport{
		Alerts:      alerts,
		Summary:     Summarize(alerts),
		Thresholds:  inv.Settings,
		GeneratedAt: now,
	}
}

func (e *Engine) expiryAlerts(p *domain.Product, inv Inventory, now time.Time) []domain.Alert {
	if len(p.Batches) == 0 {
		return nil
	}

	resolved := Resolve(p, inv.Categories[p.CategoryName()], inv.Settings)

	var out []domain.Alert
	for _, b := range p.Batches {
		if !b.HasExpiry() || b.Quantity <= 0 {
			continue
		}

		daysLeft := metrics.DaysBetween(now, *b.ExpiryDate)
		level, ok := Classify(daysLeft, resolved.Thresholds)
		if !ok {
			continue
		}

		expiry := *b.ExpiryDate
		dl := daysLeft
		out = append(out, domain.Alert{
			ProductID:          p.ID,
			ProductName:        p.Name,
			Category:           p.CategoryName(),
			BatchNumber:        b.BatchNumber,
			Level:              level,
			Priority:           domain.AlertPriority(level),
			Color:              domain.AlertColor(level),
			DaysLeft:           &dl,
			ExpiryDate:         &expiry,
			Quantity:           b.Quantity,
			Message:            expiryMessage(p.Name, b, daysLeft),
			RecommendedActions: actionsFor(level),
			Thresholds:         resolved,
		})
	}
	return out
}

func (e *Engine) slowMovingAlert(p *domain.Product, inv Inventory, now time.Time) (domain.Alert, bool) {
	if p.TotalQuantity <= slowMovingMinStock {
		return domain.Alert{}, false
	}

	received, ok := p.OldestReceived()
	if !ok {
		return domain.Alert{}, false
	}
	daysInStock := int(now.Sub(received).Hours() / 24)
	if daysInStock < slowMovingMinDays {
		return domain.Alert{}, false
	}

	velocity := metrics.Round(float64(inv.UnitsSold[p.ID])/slowMovingWindowDays, 2)
	if velocity >= slowMovingMaxVelocity {
		return domain.Alert{}, false
	}

	return domain.Alert{
		ProductID:          p.ID,
		ProductName:        p.Name,
		Category:           p.CategoryName(),
		Level:              domain.LevelSlowMoving,
		Priority:           domain.AlertPriority(domain.LevelSlowMoving),
		Color:              domain.AlertColor(domain.LevelSlowMoving),
		Quantity:           p.TotalQuantity,
		Message:            fmt.Sprintf("%s sells %.2f units/day with %d units held for %d days", p.Name, velocity, p.TotalQuantity, daysInStock),
		RecommendedActions: actionsFor(domain.LevelSlowMoving),
		Thresholds:         Resolve(p, inv.Categories[p.CategoryName()], inv.Settings),
		Velocity:           &velocity,
		DaysInStock:        &daysInStock,
	}, true
}

// Classify maps days left onto an alert level. Expired always wins; beyond
// the early warning window nothing is raised.
func Classify(daysLeft int, t domain.Thresholds) (string, bool) {
	switch {
	case daysLeft < 0:
		return domain.LevelExpired, true
	case daysLeft <= t.Critical:
		return domain.LevelCritical, true
	case daysLeft <= t.HighUrgency:
		return domain.LevelHigh, true
	case daysLeft <= t.EarlyWarning:
		return domain.LevelEarly, true
	default:
		return "", false
	}
}

// Filter keeps alerts matching the optional level and category
func Filter(alerts []domain.Alert, q domain.AlertQuery) []domain.Alert {
	level, hasLevel := "", false
	if strings.TrimSpace(q.Level) != "" {
		level, hasLevel = domain.ParseAlertLevel(q.Level)
		if !hasLevel {
			return []domain.Alert{}
		}
	}
	category := strings.TrimSpace(q.Category)

	out := make([]domain.Alert, 0, len(alerts))
	for _, a := range alerts {
		if hasLevel && a.Level != level {
			continue
		}
		if category != "" && !strings.EqualFold(a.Category, category) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Sort orders alerts in place. Alerts without a day count sort after dated ones
// in day based orderings.
func Sort(alerts []domain.Alert, sortBy string) {
	switch domain.ParseSortMode(sortBy) {
	case domain.SortByDaysLeft:
		sort.SliceStable(alerts, func(i, j int) bool {
			if c := compareDays(alerts[i], alerts[j]); c != 0 {
				return c < 0
			}
			return alerts[i].Priority > alerts[j].Priority
		})
	case domain.SortByQuantity:
		sort.SliceStable(alerts, func(i, j int) bool {
			return alerts[i].Quantity > alerts[j].Quantity
		})
	default:
		sort.SliceStable(alerts, func(i, j int) bool {
			if alerts[i].Priority != alerts[j].Priority {
				return alerts[i].Priority > alerts[j].Priority
			}
			return compareDays(alerts[i], alerts[j]) < 0
		})
	}
}

func compareDays(a, b domain.Alert) int {
	switch {
	case a.DaysLeft == nil && b.DaysLeft == nil:
		return 0
	case a.DaysLeft == nil:
		return 1
	case b.DaysLeft == nil:
		return -1
	case *a.DaysLeft < *b.DaysLeft:
		return -1
	case *a.DaysLeft > *b.DaysLeft:
		return 1
	default:
		return 0
	}
}

// Summarize counts alerts per level
func Summarize(alerts []domain.Alert) domain.AlertSummary {
	s := domain.AlertSummary{Total: len(alerts)}
	for _, a := range alerts {
		switch a.Level {
		case domain.LevelExpired:
			s.Expired++
		case domain.LevelCritical:
			s.Critical++
		case domain.LevelHigh:
			s.High++
		case domain.LevelEarly:
			s.Early++
		case domain.LevelSlowMoving:
			s.SlowMoving++
		}
		s.AffectedUnits += a.Quantity
		if a.Priority >= 3 {
			s.Urgent++
		}
	}
	return s
}

func actionsFor(level string) []string {
	src := levelActions[level]
	out := make([]string, len(src))
	copy(out, src)
	return out
}

func expiryMessage(name string, b domain.Batch, daysLeft int) string {
	switch {
	case daysLeft < 0:
		return fmt.Sprintf("%s batch %s expired %d days ago (%d units)", name, b.BatchNumber, -daysLeft, b.Quantity)
	case daysLeft == 0:
		return fmt.Sprintf("%s batch %s expires today (%d units)", name, b.BatchNumber, b.Quantity)
	default:
		return fmt.Sprintf("%s batch %s expires in %d days (%d units)", name, b.BatchNumber, daysLeft, b.Quantity)
	}
}
