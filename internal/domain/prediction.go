package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trend labels
const (
	TrendIncreasing = "increasing"
	TrendStable     = "stable"
	TrendDecreasing = "decreasing"
)

// Confidence labels
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Recommendation priorities
const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityMedium   = "medium"
	PriorityLow      = "low"
)

// Metrics holds the computed demand and risk figures for a product
type Metrics struct {
	Velocity          float64 `json:"velocity"`
	MovingAverage     float64 `json:"moving_average"`
	Trend             string  `json:"trend"`
	RiskScore         float64 `json:"risk_score"`
	DaysUntilStockout float64 `json:"days_until_stockout"`
	SalesLast30Days   float64 `json:"sales_last_30_days"`
}

// Forecast is the demand projection. Horizons are whole units kept as floats
// so non-finite results survive until the sanitization gate sees them.
type Forecast struct {
	Next7Days  float64 `json:"next_7_days"`
	Next14Days float64 `json:"next_14_days"`
	Next30Days float64 `json:"next_30_days"`
	Confidence string  `json:"confidence"`
	ModelType  string  `json:"model_type,omitempty"`
}

// Recommendation is one prioritized, human readable action
type Recommendation struct {
	Action            string   `json:"action"`
	Priority          string   `json:"priority"`
	Message           string   `json:"message"`
	Icon              string   `json:"icon"`
	SuggestedDiscount *int     `json:"suggested_discount,omitempty"`
	DaysToStockout    *float64 `json:"days_to_stockout,omitempty"`
}

// PredictionMetadata is only persisted when at least one field is set
type PredictionMetadata struct {
	UsedCategoryFallback    bool     `json:"used_category_fallback,omitempty"`
	FallbackCategory        string   `json:"fallback_category,omitempty"`
	CategoryAverageVelocity *float64 `json:"category_average_velocity,omitempty"`
	CategoryAverageRisk     *float64 `json:"category_average_risk,omitempty"`
	CategorySampleSize      int      `json:"category_sample_size,omitempty"`
}

// Prediction is the persisted per-product result, unique by ProductID
type Prediction struct {
	ID              string              `json:"id" db:"id"`
	StoreID         string              `json:"store_id" db:"store_id"`
	ProductID       string              `json:"product_id" db:"product_id"`
	ProductName     string              `json:"product_name" db:"product_name"`
	Category        *string             `json:"category,omitempty" db:"category"`
	Metrics         Metrics             `json:"metrics" db:"metrics"`
	Forecast        Forecast            `json:"forecast" db:"forecast"`
	Recommendations Recommendations     `json:"recommendations" db:"recommendations"`
	DataPoints      int                 `json:"data_points" db:"data_points"`
	CalculatedAt    time.Time           `json:"calculated_at" db:"calculated_at"`
	Warning         *string             `json:"warning,omitempty" db:"warning"`
	Metadata        *PredictionMetadata `json:"metadata,omitempty" db:"metadata"`
}

// CategoryName returns the category snapshot or an empty string
func (p *Prediction) CategoryName() string {
	if p.Category == nil {
		return ""
	}
	return *p.Category
}

// PredictiveAnalytics is the Prediction payload plus the sales history it was derived from
type PredictiveAnalytics struct {
	Prediction
	TotalQuantity int          `json:"total_quantity"`
	SalesHistory  []DailySales `json:"sales_history"`
}

// CriticalItem is one row of the quick insights list
type CriticalItem struct {
	ProductID         string  `json:"product_id"`
	ProductName       string  `json:"product_name"`
	Category          string  `json:"category,omitempty"`
	RiskScore         float64 `json:"risk_score"`
	DaysUntilStockout float64 `json:"days_until_stockout"`
	Velocity          float64 `json:"velocity"`
	TopAction         string  `json:"top_action,omitempty"`
}

// QuickInsights summarizes the urgent products of a store
type QuickInsights struct {
	UrgentCount   int            `json:"urgent_count"`
	CriticalItems []CriticalItem `json:"critical_items"`
	LastUpdate    time.Time      `json:"last_update"`
}

// CategorySummary aggregates predictions of one category
type CategorySummary struct {
	Category             string  `json:"category"`
	TotalProducts        int     `json:"total_products"`
	AverageVelocity      float64 `json:"average_velocity"`
	AverageRiskScore     float64 `json:"average_risk_score"`
	TotalSalesLast30Days float64 `json:"total_sales_last_30_days"`
	ForecastNext30Days   float64 `json:"forecast_next_30_days"`
	HighRiskCount        int     `json:"high_risk_count"`
	// RevenueLast30Days sums sale amounts of the category's products over the window
	RevenueLast30Days decimal.Decimal `json:"revenue_last_30_days"`
}

// ProductPerformance ranks a product inside its category
type ProductPerformance struct {
	ProductID       string  `json:"product_id"`
	ProductName     string  `json:"product_name"`
	Velocity        float64 `json:"velocity"`
	SalesLast30Days float64 `json:"sales_last_30_days"`
	RiskScore       float64 `json:"risk_score"`
	Trend           string  `json:"trend"`
}

// CategoryInsights is the category rollup with best and worst sellers
type CategoryInsights struct {
	Summary          CategorySummary      `json:"summary"`
	TopPerformers    []ProductPerformance `json:"top_performers"`
	BottomPerformers []ProductPerformance `json:"bottom_performers"`
}

// Dashboard is the store wide aggregate
type Dashboard struct {
	TotalProducts       int            `json:"total_products"`
	TrackedProducts     int            `json:"tracked_products"`
	AverageRiskScore    float64        `json:"average_risk_score"`
	HighRiskCount       int            `json:"high_risk_count"`
	StockoutSoonCount   int            `json:"stockout_soon_count"`
	ForecastNext7Days   float64        `json:"forecast_next_7_days"`
	ForecastNext30Days  float64        `json:"forecast_next_30_days"`
	TrendBreakdown      map[string]int `json:"trend_breakdown"`
	ConfidenceBreakdown map[string]int `json:"confidence_breakdown"`
	LowDataProducts     int            `json:"low_data_products"`
	GeneratedAt         time.Time      `json:"generated_at"`
}

// InitializationResult counts a best-effort bulk recompute
type InitializationResult struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}
