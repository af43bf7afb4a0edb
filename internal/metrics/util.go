package metrics

import (
	"math"
	"sort"
	"time"

	"github.com/andresuchdata/shelfwise/internal/domain"
)

const dayLayout = "2006-01-02"

// roundFloat rounds v to the given number of decimal places.
func roundFloat(v float64, decimals int) float64 {
	if decimals <= 0 {
		return math.Round(v)
	}

	factor := math.Pow(10, float64(decimals))
	return math.Round(v*factor) / factor
}

// Round exposes roundFloat to the other engine packages.
func Round(v float64, decimals int) float64 {
	return roundFloat(v, decimals)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// WindowStart returns midnight of the oldest of the windowDays calendar days ending today,
// the same days DailyQuantities buckets
func WindowStart(now time.Time, windowDays int) time.Time {
	return truncateDay(now).AddDate(0, 0, -(windowDays - 1))
}

// SalesInWindow keeps sales dated inside [WindowStart, now]
func SalesInWindow(sales []domain.Sale, windowDays int, now time.Time) []domain.Sale {
	start := WindowStart(now, windowDays)
	out := make([]domain.Sale, 0, len(sales))
	for _, s := range sales {
		if s.SaleDate.Before(start) || s.SaleDate.After(now) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// DailyQuantities buckets sales into one value per calendar day of the window, oldest first.
// Days without sales are zero.
func DailyQuantities(sales []domain.Sale, windowDays int, now time.Time) []float64 {
	if windowDays <= 0 {
		return nil
	}
	index := make(map[string]int, windowDays)
	series := make([]float64, windowDays)
	today := truncateDay(now)
	for i := 0; i < windowDays; i++ {
		day := today.AddDate(0, 0, -(windowDays - 1 - i))
		index[day.Format(dayLayout)] = i
	}
	for _, s := range sales {
		if i, ok := index[truncateDay(s.SaleDate.In(now.Location())).Format(dayLayout)]; ok {
			series[i] += float64(s.QuantitySold)
		}
	}
	return series
}

// DailyHistory groups sales into sparse per-day totals, sorted by date ascending
func DailyHistory(sales []domain.Sale) []domain.DailySales {
	totals := make(map[string]int)
	for _, s := range sales {
		totals[s.SaleDate.UTC().Format(dayLayout)] += s.QuantitySold
	}
	out := make([]domain.DailySales, 0, len(totals))
	for day, qty := range totals {
		out = append(out, domain.DailySales{Date: day, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// IsFinite reports whether v is neither NaN nor infinite
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
