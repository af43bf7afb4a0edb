package alert

import (
	"github.com/andresuchdata/shelfwise/internal/domain"
)

// Resolve picks the effective thresholds for a product:
// product override, then category override, then the store defaults.
// Missing override fields fall back to the store defaults.
func Resolve(product *domain.Product, category *domain.Category, global domain.Thresholds) domain.ResolvedThresholds {
	if product != nil && product.CustomAlertThresholds != nil && product.CustomAlertThresholds.Enabled {
		return domain.ResolvedThresholds{
			Thresholds: merge(*product.CustomAlertThresholds, global),
			IsCustom:   true,
			Source:     domain.ThresholdSourceProduct,
		}
	}

	if category != nil && category.CustomAlertThresholds != nil && category.CustomAlertThresholds.Enabled {
		return domain.ResolvedThresholds{
			Thresholds: merge(*category.CustomAlertThresholds, global),
			IsCustom:   true,
			Source:     domain.ThresholdSourceCategory,
		}
	}

	return domain.ResolvedThresholds{
		Thresholds: global,
		IsCustom:   false,
		Source:     domain.ThresholdSourceGlobal,
	}
}

func merge(o domain.ThresholdOverride, global domain.Thresholds) domain.Thresholds {
	out := global
	if o.Critical != nil {
		out.Critical = *o.Critical
	}
	if o.HighUrgency != nil {
		out.HighUrgency = *o.HighUrgency
	}
	if o.EarlyWarning != nil {
		out.EarlyWarning = *o.EarlyWarning
	}
	return out
}

// ValidateThresholds enforces 0 <= critical < highUrgency < earlyWarning.
// A critical window of 0 flags only batches expiring today.
func ValidateThresholds(t domain.Thresholds) error {
	if t.Critical < 0 {
		return domain.NewValidationError("critical", "must not be negative, got %d", t.Critical)
	}
	if t.Critical >= t.HighUrgency {
		return domain.NewValidationError("critical", "must be less than high_urgency (%d >= %d)", t.Critical, t.HighUrgency)
	}
	if t.HighUrgency >= t.EarlyWarning {
		return domain.NewValidationError("high_urgency", "must be less than early_warning (%d >= %d)", t.HighUrgency, t.EarlyWarning)
	}
	return nil
}

// ValidateOverride checks the thresholds an override would produce once merged with the store defaults.
// Disabled overrides are stored as-is.
func ValidateOverride(o domain.ThresholdOverride, global domain.Thresholds) error {
	if !o.Enabled {
		return nil
	}
	return ValidateThresholds(merge(o, global))
}
