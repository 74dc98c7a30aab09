package domain

import (
	"time"
)

// Tier is the underwriting outcome band.
type Tier string

const (
	TierPreApproved   Tier = "pre-approved"
	TierApproved      Tier = "approved"
	TierConditional   Tier = "conditional"
	TierRejected      Tier = "rejected"
	TierFraudRejected Tier = "fraud-rejected"
)

// FraudAction is the overall action recommended by fraud detection.
// Severity order: auto-reject > review > none. Monitor-only flags are
// recorded but never escalate the action.
type FraudAction string

const (
	ActionNone       FraudAction = "none"
	ActionReview     FraudAction = "review"
	ActionAutoReject FraudAction = "auto-reject"
	ActionMonitor    FraudAction = "monitor"
)

// Severity returns the escalation rank of an action. Monitor ranks
// below none for the overall-action computation on purpose: a
// monitor-only result must report action "none".
func (a FraudAction) Severity() int {
	switch a {
	case ActionAutoReject:
		return 3
	case ActionReview:
		return 2
	case ActionNone:
		return 1
	default: // monitor
		return 0
	}
}

// FactorResult is the output of a single behavioral factor calculator.
type FactorResult struct {
	Score   float64  `json:"score"`  // 0-100
	Weight  float64  `json:"weight"` // fixed per factor; all five sum to 1.0
	Reasons []string `json:"reasons"`
}

// FraudResult is the output of fraud-flag detection.
type FraudResult struct {
	Flagged bool        `json:"flagged"`
	Flags   []string    `json:"flags"` // "[ACTION] message", in rule order
	Action  FraudAction `json:"action"`
}

// FactorSet holds the five factor results by name.
type FactorSet struct {
	PurchaseConsistency FactorResult `json:"purchaseConsistency"`
	DealEngagement      FactorResult `json:"dealEngagement"`
	FinancialTrajectory FactorResult `json:"financialTrajectory"`
	RiskSignals         FactorResult `json:"riskSignals"`
	AccountMaturity     FactorResult `json:"accountMaturity"`
}

// All returns the factors in weight order for iteration.
func (f *FactorSet) All() []FactorResult {
	return []FactorResult{
		f.PurchaseConsistency,
		f.DealEngagement,
		f.FinancialTrajectory,
		f.RiskSignals,
		f.AccountMaturity,
	}
}

// ScoreResult is the complete creditworthiness decision for one user.
type ScoreResult struct {
	Score          int         `json:"score"` // 0-1000
	Tier           Tier        `json:"tier"`
	CreditLimit    int         `json:"creditLimit"` // INR, 0 if not eligible
	RateTier       int         `json:"rateTier"`    // 0-3
	DataConfidence float64     `json:"dataConfidence"`
	Factors        FactorSet   `json:"factors"`
	FraudFlags     FraudResult `json:"fraudFlags"`
}

// Decision is a persisted scoring outcome with audit metadata. The
// core never writes these; the serving layer records one per request.
type Decision struct {
	ID        string       `json:"id"`
	UserID    string       `json:"userId"`
	Result    *ScoreResult `json:"result"`
	TraceID   string       `json:"traceId,omitempty"`
	ScoredAt  time.Time    `json:"scoredAt"`
	ProcessMs int64        `json:"processMs"`
}
