package rules

import "github.com/opensource-finance/talon/internal/domain"

func ptr(v float64) *float64 { return &v }

// DefaultRules returns the overlay rules seeded when the rule store is
// empty. Operators normally manage rules through the API; these cover
// the gaps the built-in detector leaves deliberately, at review or
// monitor severity only.
func DefaultRules() []*domain.RuleConfig {
	return []*domain.RuleConfig{
		{
			ID:          "overlay-return-rate",
			Name:        "Elevated overall return rate",
			Description: "Flags profiles whose blended return rate is far above platform norms, regardless of category mix.",
			Version:     "1.0.0",
			Expression:  "return_rate",
			Bands: []domain.RuleBand{
				{LowerLimit: ptr(0.0), UpperLimit: ptr(0.25), Action: domain.ActionNone, Message: "Return rate within norms"},
				{LowerLimit: ptr(0.25), UpperLimit: ptr(0.40), Action: domain.ActionMonitor, Message: "Return rate above platform norms"},
				{LowerLimit: ptr(0.40), UpperLimit: nil, Action: domain.ActionReview, Message: "Return rate far above platform norms"},
			},
			Enabled: true,
		},
		{
			ID:          "overlay-stale-activity",
			Name:        "Stale activity before credit request",
			Description: "An established account asking for credit after months of silence deserves a second look.",
			Version:     "1.0.0",
			Expression:  "total_transactions >= 3 && days_since_last_txn > 120",
			Bands: []domain.RuleBand{
				{LowerLimit: ptr(1.0), UpperLimit: nil, Action: domain.ActionReview, Message: "No purchase activity in over 120 days"},
			},
			Enabled: true,
		},
		{
			ID:          "overlay-narrow-payment-mix",
			Name:        "Single payment mode on sizable history",
			Description: "Many transactions through exactly one payment mode is unusual for genuine shoppers.",
			Version:     "1.0.0",
			Expression:  "total_transactions >= 20 && payment_mode_count == 1",
			Bands: []domain.RuleBand{
				{LowerLimit: ptr(1.0), UpperLimit: nil, Action: domain.ActionMonitor, Message: "All purchases through a single payment mode"},
			},
			Enabled: true,
		},
	}
}
