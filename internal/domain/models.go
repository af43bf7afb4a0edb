// internal/domain/models.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Store is the tenant every product, sale and setting belongs to
type Store struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Batch is a received lot of a product. Batches are kept in FEFO order.
type Batch struct {
	BatchNumber  string          `json:"batch_number"`
	Quantity     int             `json:"quantity"`
	ExpiryDate   *time.Time      `json:"expiry_date,omitempty"`
	ReceivedDate time.Time       `json:"received_date"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
}

// HasExpiry reports whether the batch carries a real expiry date
func (b Batch) HasExpiry() bool {
	return b.ExpiryDate != nil && !b.ExpiryDate.IsZero()
}

// Product represents a catalog item with its stock batches
type Product struct {
	ID                    string             `json:"id" db:"id"`
	StoreID               string             `json:"store_id" db:"store_id"`
	Name                  string             `json:"name" db:"name"`
	Category              *string            `json:"category,omitempty" db:"category"`
	IsPerishable          bool               `json:"is_perishable" db:"is_perishable"`
	TotalQuantity         int                `json:"total_quantity" db:"total_quantity"`
	Batches               Batches            `json:"batches" db:"batches"`
	CustomAlertThresholds *ThresholdOverride `json:"custom_alert_thresholds,omitempty" db:"custom_alert_thresholds"`
	CreatedAt             time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at" db:"updated_at"`
}

// CategoryName returns the category or an empty string when unset
func (p *Product) CategoryName() string {
	if p.Category == nil {
		return ""
	}
	return *p.Category
}

// RecalculateTotal sums batch quantities into TotalQuantity
func (p *Product) RecalculateTotal() {
	total := 0
	for _, b := range p.Batches {
		total += b.Quantity
	}
	p.TotalQuantity = total
}

// EarliestExpiry returns the soonest expiry date among batches that still hold stock
func (p *Product) EarliestExpiry() (time.Time, bool) {
	var (
		earliest time.Time
		found    bool
	)
	for _, b := range p.Batches {
		if b.Quantity <= 0 || !b.HasExpiry() {
			continue
		}
		if !found || b.ExpiryDate.Before(earliest) {
			earliest = *b.ExpiryDate
			found = true
		}
	}
	return earliest, found
}

// OldestReceived returns the earliest received date among batches
func (p *Product) OldestReceived() (time.Time, bool) {
	var (
		oldest time.Time
		found  bool
	)
	for _, b := range p.Batches {
		if b.ReceivedDate.IsZero() {
			continue
		}
		if !found || b.ReceivedDate.Before(oldest) {
			oldest = b.ReceivedDate
			found = true
		}
	}
	return oldest, found
}

// Category carries optional threshold overrides for every product in it
type Category struct {
	StoreID               string             `json:"store_id" db:"store_id"`
	Name                  string             `json:"name" db:"name"`
	CustomAlertThresholds *ThresholdOverride `json:"custom_alert_thresholds,omitempty" db:"custom_alert_thresholds"`
	UpdatedAt             time.Time          `json:"updated_at" db:"updated_at"`
}

// Sale is an immutable ledger entry
type Sale struct {
	ID           string          `json:"id" db:"id"`
	StoreID      string          `json:"store_id" db:"store_id"`
	ProductID    string          `json:"product_id" db:"product_id"`
	ProductName  string          `json:"product_name" db:"product_name"`
	Category     *string         `json:"category,omitempty" db:"category"`
	QuantitySold int             `json:"quantity_sold" db:"quantity_sold"`
	PriceAtSale  decimal.Decimal `json:"price_at_sale" db:"price_at_sale"`
	TotalAmount  decimal.Decimal `json:"total_amount" db:"total_amount"`
	SaleDate     time.Time       `json:"sale_date" db:"sale_date"`
}

// DailySales is one bucket of the sales history echo
type DailySales struct {
	Date     string `json:"date"`
	Quantity int    `json:"quantity"`
}
