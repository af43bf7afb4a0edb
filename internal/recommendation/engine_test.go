package recommendation

import (
	"strings"
	"testing"

	"github.com/andresuchdata/shelfwise/internal/domain"
)

func actions(recs domain.Recommendations) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Action)
	}
	return out
}

func TestGenerateRules(t *testing.T) {
	cases := []struct {
		name string
		in   Input
		want []string
	}{
		{
			name: "urgent markdown with overstock",
			in: Input{
				Metrics:       domain.Metrics{RiskScore: 85, Velocity: 1, DaysUntilStockout: 40},
				Forecast:      domain.Forecast{Next30Days: 10},
				TotalQuantity: 40,
			},
			want: []string{ActionUrgentMarkdown, ActionOverstocked},
		},
		{
			name: "moderate markdown",
			in: Input{
				Metrics:       domain.Metrics{RiskScore: 50, Velocity: 2},
				Forecast:      domain.Forecast{Next30Days: 60},
				TotalQuantity: 20,
			},
			want: []string{ActionModerateMarkdown},
		},
		{
			name: "slow seller",
			in: Input{
				Metrics:       domain.Metrics{Velocity: 0.2},
				Forecast:      domain.Forecast{Next30Days: 6},
				TotalQuantity: 10,
			},
			want: []string{ActionReduceOrder},
		},
		{
			name: "restock fast seller",
			in: Input{
				Metrics:       domain.Metrics{Velocity: 10, DaysUntilStockout: 0.5},
				Forecast:      domain.Forecast{Next30Days: 300},
				TotalQuantity: 5,
			},
			want: []string{ActionRestockSoon},
		},
		{
			name: "nothing to do",
			in: Input{
				Metrics:       domain.Metrics{Velocity: 2},
				Forecast:      domain.Forecast{Next30Days: 60},
				TotalQuantity: 20,
			},
			want: []string{},
		},
		{
			name: "empty stock is never overstocked",
			in:   Input{Metrics: domain.Metrics{}, Forecast: domain.Forecast{}, TotalQuantity: 0},
			want: []string{},
		},
	}

	engine := NewEngine()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := actions(engine.Generate(tc.in))
			if strings.Join(got, ",") != strings.Join(tc.want, ",") {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestUrgentDiscountRange(t *testing.T) {
	if d := urgentDiscount(70); d != 30 {
		t.Errorf("expected 30%% at risk 70, got %d", d)
	}
	if d := urgentDiscount(100); d != 50 {
		t.Errorf("expected 50%% at risk 100, got %d", d)
	}
}

func TestRestockCarriesDaysToStockout(t *testing.T) {
	recs := NewEngine().Generate(Input{
		Metrics:       domain.Metrics{Velocity: 8, DaysUntilStockout: 1.5},
		Forecast:      domain.Forecast{Next30Days: 240},
		TotalQuantity: 12,
	})
	if len(recs) != 1 || recs[0].DaysToStockout == nil || *recs[0].DaysToStockout != 1.5 {
		t.Fatalf("expected restock with 1.5 days to stockout, got %+v", recs)
	}
	if !strings.Contains(recs[0].Message, "1.5 days") {
		t.Errorf("expected message to embed days to stockout, got %q", recs[0].Message)
	}
}
