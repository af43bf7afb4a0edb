package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Batches is stored as a JSONB array on the product row
type Batches []Batch

// Recommendations is stored as a JSONB array on the prediction row
type Recommendations []Recommendation

func scanJSON(src interface{}, dst interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", src)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func valueJSON(v interface{}) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (b Batches) Value() (driver.Value, error) {
	if b == nil {
		return []byte("[]"), nil
	}
	return valueJSON([]Batch(b))
}

func (b *Batches) Scan(src interface{}) error { return scanJSON(src, (*[]Batch)(b)) }

func (r Recommendations) Value() (driver.Value, error) {
	if r == nil {
		return []byte("[]"), nil
	}
	return valueJSON([]Recommendation(r))
}

func (r *Recommendations) Scan(src interface{}) error { return scanJSON(src, (*[]Recommendation)(r)) }

func (m Metrics) Value() (driver.Value, error) { return valueJSON(m) }
func (m *Metrics) Scan(src interface{}) error { return scanJSON(src, m) }
func (f Forecast) Value() (driver.Value, error) { return valueJSON(f) }
func (f *Forecast) Scan(src interface{}) error { return scanJSON(src, f) }
func (t ThresholdOverride) Value() (driver.Value, error) { return valueJSON(t) }
func (t *ThresholdOverride) Scan(src interface{}) error { return scanJSON(src, t) }
func (m PredictionMetadata) Value() (driver.Value, error) { return valueJSON(m) }
func (m *PredictionMetadata) Scan(src interface{}) error { return scanJSON(src, m) }
func (a NotificationAction) Value() (driver.Value, error) { return valueJSON(a) }
func (a *NotificationAction) Scan(src interface{}) error { return scanJSON(src, a) }
func (m NotificationMetadata) Value() (driver.Value, error) { return valueJSON(m) }
func (m *NotificationMetadata) Scan(src interface{}) error { return scanJSON(src, m) }
