package recommendation

import (
	"fmt"
	"math"

	"github.com/andresuchdata/shelfwise/internal/domain"
	"github.com/andresuchdata/shelfwise/internal/metrics"
)

// Recommendation actions
const (
	ActionUrgentMarkdown   = "urgent_markdown"
	ActionModerateMarkdown = "moderate_markdown"
	ActionReduceOrder      = "reduce_order"
	ActionRestockSoon      = "restock_soon"
	ActionOverstocked      = "overstocked"
)

const (
	urgentRisk    = 70.0
	moderateRisk  = 50.0
	slowVelocity  = 0.5
	fastVelocity  = 5.0
	minSlowStock  = 5
	restockDays   = 3.0
	overstockRate = 0.3
)

// Input is everything the rules look at
type Input struct {
	Metrics       domain.Metrics
	Forecast      domain.Forecast
	TotalQuantity int
}

// Engine evaluates the recommendation rules in order. Rules are independent,
// so a product can receive several recommendations.
type Engine struct{}

// NewEngine creates a recommendation engine
func NewEngine() *Engine {
	return &Engine{}
}

// Generate returns the recommendations that apply, in rule order
func (e *Engine) Generate(in Input) domain.Recommendations {
	recs := domain.Recommendations{}
	risk := in.Metrics.RiskScore
	velocity := in.Metrics.Velocity
	qty := float64(in.TotalQuantity)

	daysToSell := metrics.NoStockoutDays
	if velocity > 0 {
		daysToSell = metrics.Round(qty/velocity, 1)
	}

	if risk >= urgentRisk {
		discount := urgentDiscount(risk)
		recs = append(recs, domain.Recommendation{
			Action:            ActionUrgentMarkdown,
			Priority:          domain.PriorityCritical,
			Message:           fmt.Sprintf("Risk score %.0f: mark down %d%% now, current stock needs %.1f days to sell", risk, discount, daysToSell),
			Icon:              "alert-octagon",
			SuggestedDiscount: &discount,
		})
	}

	if risk >= moderateRisk && risk < urgentRisk {
		discount := 20
		recs = append(recs, domain.Recommendation{
			Action:            ActionModerateMarkdown,
			Priority:          domain.PriorityHigh,
			Message:           fmt.Sprintf("Risk score %.0f: consider a %d%% markdown, %.1f days to sell current stock", risk, discount, daysToSell),
			Icon:              "tag",
			SuggestedDiscount: &discount,
		})
	}

	if velocity < slowVelocity && in.TotalQuantity > minSlowStock {
		recs = append(recs, domain.Recommendation{
			Action:   ActionReduceOrder,
			Priority: domain.PriorityMedium,
			Message:  fmt.Sprintf("Selling %.2f units/day with %d in stock: reduce the next order", velocity, in.TotalQuantity),
			Icon:     "trending-down",
		})
	}

	if velocity > fastVelocity && qty < velocity*restockDays {
		days := in.Metrics.DaysUntilStockout
		recs = append(recs, domain.Recommendation{
			Action:         ActionRestockSoon,
			Priority:       domain.PriorityHigh,
			Message:        fmt.Sprintf("Selling %.1f units/day, %d left will run out in %.1f days: restock soon", velocity, in.TotalQuantity, days),
			Icon:           "package",
			DaysToStockout: &days,
		})
	}

	if in.TotalQuantity > 0 && in.Forecast.Next30Days < qty*overstockRate {
		recs = append(recs, domain.Recommendation{
			Action:   ActionOverstocked,
			Priority: domain.PriorityMedium,
			Message:  fmt.Sprintf("Forecast of %.0f units over 30 days covers under 30%% of %d in stock", in.Forecast.Next30Days, in.TotalQuantity),
			Icon:     "layers",
		})
	}

	return recs
}

// urgentDiscount scales 30% at risk 70 up to 50% at risk 100
func urgentDiscount(risk float64) int {
	d := 30 + (math.Min(risk, 100)-urgentRisk)/(100-urgentRisk)*20
	return int(math.Round(d))
}
