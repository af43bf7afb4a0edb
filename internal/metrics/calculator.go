package metrics

import (
	"math"
	"time"

	"github.com/andresuchdata/shelfwise/internal/domain"
)

const (
	// NoStockoutDays stands in for "never" when nothing is selling
	NoStockoutDays = 999.0

	trendThreshold = 0.10
)

// Snapshot is the full metric set derived from a sales window
type Snapshot struct {
	Velocity          float64
	MovingAverage     float64
	Trend             string
	RiskScore         float64
	DaysUntilStockout float64
	SalesInWindow     float64
	DataPoints        int
	Daily             []float64
}

// Calculator derives demand and expiry risk metrics from sales and batches
type Calculator struct {
	windowDays int
	maPeriod   int
}

// NewCalculator creates a calculator for a trailing window and moving average period
func NewCalculator(windowDays, maPeriod int) *Calculator {
	if windowDays <= 0 {
		windowDays = 30
	}
	if maPeriod <= 0 {
		maPeriod = 7
	}
	return &Calculator{windowDays: windowDays, maPeriod: maPeriod}
}

// WindowDays returns the trailing window size
func (c *Calculator) WindowDays() int { return c.windowDays }

// MovingAveragePeriod returns the moving average period
func (c *Calculator) MovingAveragePeriod() int { return c.maPeriod }

// Calculate computes every metric for a product from sales inside the window ending at now
func (c *Calculator) Calculate(product *domain.Product, sales []domain.Sale, now time.Time) Snapshot {
	snap := Snapshot{}

	// 1. Window filter and volume
	windowSales := SalesInWindow(sales, c.windowDays, now)
	snap.DataPoints = len(windowSales)
	for _, s := range windowSales {
		snap.SalesInWindow += float64(s.QuantitySold)
	}

	// 2. Velocity over the window
	snap.Velocity = roundFloat(Velocity(windowSales, c.windowDays), 2)

	// 3. Dense daily series, oldest first
	snap.Daily = DailyQuantities(windowSales, c.windowDays, now)

	// 4. Moving average and trend
	snap.MovingAverage = roundFloat(MovingAverage(snap.Daily, c.maPeriod), 2)
	snap.Trend = Trend(snap.Daily)

	// 5. Expiry risk and stockout horizon
	snap.RiskScore = ExpiryRisk(product, snap.Velocity, now)
	snap.DaysUntilStockout = DaysUntilStockout(product.TotalQuantity, snap.Velocity)

	return snap
}

// Velocity is units sold per day over the window
func Velocity(sales []domain.Sale, windowDays int) float64 {
	if windowDays <= 0 || len(sales) == 0 {
		return 0
	}
	total := 0
	for _, s := range sales {
		total += s.QuantitySold
	}
	return float64(total) / float64(windowDays)
}

// MovingAverage is the mean of the last period values, or of all values when fewer exist
func MovingAverage(values []float64, period int) float64 {
	if len(values) == 0 {
		return 0
	}
	if period <= 0 || period > len(values) {
		period = len(values)
	}
	tail := values[len(values)-period:]
	return mean(tail)
}

// Trend compares the first half of the series against the second half
func Trend(values []float64) string {
	if len(values) < 2 {
		return domain.TrendStable
	}

	half := len(values) / 2
	first := mean(values[:half])
	second := mean(values[half:])

	if first == 0 {
		if second > 0 {
			return domain.TrendIncreasing
		}
		return domain.TrendStable
	}

	change := (second - first) / first
	switch {
	case change > trendThreshold:
		return domain.TrendIncreasing
	case change < -trendThreshold:
		return domain.TrendDecreasing
	default:
		return domain.TrendStable
	}
}

// DaysUntilStockout divides stock by velocity, NoStockoutDays when nothing sells
func DaysUntilStockout(totalQuantity int, velocity float64) float64 {
	if velocity <= 0 {
		return NoStockoutDays
	}
	return roundFloat(float64(totalQuantity)/velocity, 1)
}

// ExpiryRisk scores 0..100 how likely the product expires before it sells.
// Products without any dated batch score 0.
func ExpiryRisk(product *domain.Product, velocity float64, now time.Time) float64 {
	if product == nil {
		return 0
	}
	earliest, ok := product.EarliestExpiry()
	if !ok {
		return 0
	}

	daysUntilExpiry := DaysBetween(now, earliest)
	total := float64(product.TotalQuantity)
	score := 0.0

	// 1. Time to earliest expiry (40 pts)
	switch {
	case daysUntilExpiry < 0:
		score += 40
	case daysUntilExpiry <= 3:
		score += 35
	case daysUntilExpiry <= 7:
		score += 25
	case daysUntilExpiry <= 14:
		score += 15
	case daysUntilExpiry <= 30:
		score += 5
	}

	// 2. Sell-through against the expiry window (30 pts)
	daysToSellOut := NoStockoutDays
	if velocity > 0 {
		daysToSellOut = total / velocity
	}
	window := float64(daysUntilExpiry)
	switch {
	case daysToSellOut > window:
		score += 30
	case daysToSellOut >= window*0.8:
		score += 20
	case daysToSellOut >= window*0.5:
		score += 10
	}

	// 3. Stock in excess of one week of demand (30 pts)
	excess := total - velocity*7
	switch {
	case excess > total*0.5:
		score += 30
	case excess > total*0.3:
		score += 20
	case excess > 0:
		score += 10
	}

	return clamp(score, 0, 100)
}

// DaysBetween returns ceil((to-from)/day), negative when to is in the past
func DaysBetween(from, to time.Time) int {
	return int(math.Ceil(to.Sub(from).Hours() / 24))
}

// Confidence labels a forecast by the number of sales backing it
func Confidence(dataPoints int) string {
	switch {
	case dataPoints >= 14:
		return domain.ConfidenceHigh
	case dataPoints >= 7:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}
