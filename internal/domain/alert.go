package domain

import "time"

// Alert levels
const (
	LevelExpired    = "expired"
	LevelCritical   = "critical"
	LevelHigh       = "high"
	LevelEarly      = "early"
	LevelSlowMoving = "slow_moving"
)

// Threshold sources
const (
	ThresholdSourceProduct  = "product"
	ThresholdSourceCategory = "category"
	ThresholdSourceGlobal   = "global"
)

// Alert sort modes
const (
	SortByUrgency  = "urgency"
	SortByDaysLeft = "days_left"
	SortByQuantity = "quantity"
)

// Thresholds are alert day limits. Invariant: Critical < HighUrgency < EarlyWarning.
type Thresholds struct {
	Critical     int `json:"critical" db:"critical"`
	HighUrgency  int `json:"high_urgency" db:"high_urgency"`
	EarlyWarning int `json:"early_warning" db:"early_warning"`
}

// DefaultThresholds is what a store gets when it has no settings yet
func DefaultThresholds() Thresholds {
	return Thresholds{Critical: 7, HighUrgency: 14, EarlyWarning: 30}
}

// ThresholdOverride is a category or product level replacement. Nil fields
// fall back to the store defaults.
type ThresholdOverride struct {
	Enabled      bool `json:"enabled"`
	Critical     *int `json:"critical,omitempty"`
	HighUrgency  *int `json:"high_urgency,omitempty"`
	EarlyWarning *int `json:"early_warning,omitempty"`
}

// AlertSettings are the per store defaults
type AlertSettings struct {
	StoreID    string     `json:"store_id" db:"store_id"`
	Thresholds Thresholds `json:"thresholds"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}

// ResolvedThresholds is the effective threshold set for one product
type ResolvedThresholds struct {
	Thresholds
	IsCustom bool   `json:"is_custom"`
	Source   string `json:"source"`
}

// Alert is derived on every request and never persisted
type Alert struct {
	ProductID          string             `json:"product_id"`
	ProductName        string             `json:"product_name"`
	Category           string             `json:"category,omitempty"`
	BatchNumber        string             `json:"batch_number,omitempty"`
	Level              string             `json:"level"`
	Priority           int                `json:"priority"`
	Color              string             `json:"color"`
	DaysLeft           *int               `json:"days_left,omitempty"`
	ExpiryDate         *time.Time         `json:"expiry_date,omitempty"`
	Quantity           int                `json:"quantity"`
	Message            string             `json:"message"`
	RecommendedActions []string           `json:"recommended_actions"`
	Thresholds         ResolvedThresholds `json:"thresholds"`
	Velocity           *float64           `json:"velocity,omitempty"`
	DaysInStock        *int               `json:"days_in_stock,omitempty"`
}

// AlertQuery filters and orders the alert list
type AlertQuery struct {
	Level    string `json:"level,omitempty"`
	Category string `json:"category,omitempty"`
	SortBy   string `json:"sort_by,omitempty"`
}

// AlertSummary counts alerts per level
type AlertSummary struct {
	Total         int `json:"total"`
	Expired       int `json:"expired"`
	Critical      int `json:"critical"`
	High          int `json:"high"`
	Early         int `json:"early"`
	SlowMoving    int `json:"slow_moving"`
	AffectedUnits int `json:"affected_units"`
	Urgent        int `json:"urgent"`
}

// AlertReport is the response of an alert scan
type AlertReport struct {
	Alerts      []Alert      `json:"alerts"`
	Summary     AlertSummary `json:"summary"`
	Thresholds  Thresholds   `json:"thresholds"`
	GeneratedAt time.Time    `json:"generated_at"`
}
