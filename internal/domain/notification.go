package domain

import "time"

// Notification types
const (
	NotificationCriticalRisk    = "critical_risk"
	NotificationStockoutWarning = "stockout_warning"
)

// NotificationAction is the actionable payload a client can execute
type NotificationAction struct {
	Type     string `json:"type"`
	Discount *int   `json:"discount,omitempty"`
	Quantity *int   `json:"quantity,omitempty"`
	Label    string `json:"label,omitempty"`
}

// NotificationMetadata carries the figures that triggered the notification
type NotificationMetadata struct {
	RiskScore         float64 `json:"risk_score"`
	DaysToExpiry      *int    `json:"days_to_expiry,omitempty"`
	DaysUntilStockout float64 `json:"days_until_stockout"`
	Velocity          float64 `json:"velocity"`
}

// Notification is write once
type Notification struct {
	ID        string               `json:"id" db:"id"`
	StoreID   string               `json:"store_id" db:"store_id"`
	ProductID string               `json:"product_id" db:"product_id"`
	Type      string               `json:"type" db:"type"`
	Title     string               `json:"title" db:"title"`
	Message   string               `json:"message" db:"message"`
	Priority  string               `json:"priority" db:"priority"`
	Action    NotificationAction   `json:"action" db:"action"`
	Metadata  NotificationMetadata `json:"metadata" db:"metadata"`
	CreatedAt time.Time            `json:"created_at" db:"created_at"`
}
