// Package scoring implements the BNPL credit scoring pipeline: fraud
// detection, five weighted behavioral factors, a data-sparsity
// confidence dampener, and the mapping from composite score to credit
// tier, limit, and rate tier.
package scoring

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/opensource-finance/talon/internal/domain"
)

// Engine scores user profiles. It is stateless apart from its
// calibration tables and safe for concurrent use. Scoring is pure:
// the same profile, transactions, and reference time always produce
// the same result, and nothing is cached between calls.
type Engine struct {
	cal    Calibration
	logger *slog.Logger
}

// NewEngine creates a scoring engine. A nil logger falls back to the
// process default.
func NewEngine(cal Calibration, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{cal: cal, logger: logger}
}

// Score runs the full pipeline against a profile at the given
// reference time.
//
//  1. Fraud detection runs first; an auto-reject short-circuits the
//     factor pipeline entirely.
//  2. Profiles with fewer than 3 transactions are rejected outright
//     rather than trusting the dampener with a near-zero-data user.
//  3. The five factors are scored independently on 0-100.
//  4. Each factor is dampened toward 50 by the confidence measure.
//  5. The weighted sum scales to 0-1000, then a decline modifier
//     shaves up to half off for strongly negative GMV trends.
//  6. The final score maps to tier, credit limit, and rate tier.
func (e *Engine) Score(profile *domain.UserProfile, transactions []*domain.Transaction, now time.Time) *domain.ScoreResult {
	start := time.Now()

	fraud := e.CheckFraud(profile, transactions, now)

	if fraud.Action == domain.ActionAutoReject {
		result := shortCircuited(fraud, domain.TierFraudRejected, "Skipped: fraud auto-reject")
		e.logScore(profile.UserID, result, start)
		return result
	}

	if profile.TotalTransactions < minimumTransactions {
		reason := fmt.Sprintf("Insufficient data: only %d transaction(s) recorded", profile.TotalTransactions)
		result := shortCircuited(fraud, domain.TierRejected, reason)
		e.logScore(profile.UserID, result, start)
		return result
	}

	userTxns := transactionsFor(profile.UserID, transactions)

	factors := domain.FactorSet{
		PurchaseConsistency: e.purchaseConsistency(profile, now),
		DealEngagement:      e.dealEngagement(profile, userTxns),
		FinancialTrajectory: e.financialTrajectory(profile),
		RiskSignals:         e.riskSignals(profile, userTxns),
		AccountMaturity:     e.accountMaturity(profile, now),
	}

	confidence := computeConfidence(profile)

	weightedSum := dampen(factors.PurchaseConsistency.Score, confidence)*WeightConsistency +
		dampen(factors.DealEngagement.Score, confidence)*WeightEngagement +
		dampen(factors.FinancialTrajectory.Score, confidence)*WeightTrajectory +
		dampen(factors.RiskSignals.Score, confidence)*WeightRiskSignals +
		dampen(factors.AccountMaturity.Score, confidence)*WeightMaturity

	finalScore := round(weightedSum * 10)

	// Decline modifier. A strongly negative GMV slope is a risk the
	// static factor scores understate, so it cuts the composite by up
	// to half.
	normSlope := normalizedSlope(profile.GMVTrend12M)
	if normSlope < -0.03 {
		penalty := 1.0 + normSlope*5
		if penalty < 0.50 {
			penalty = 0.50
		}
		finalScore = round(finalScore * penalty)
		factors.PurchaseConsistency.Reasons = append(factors.PurchaseConsistency.Reasons,
			fmt.Sprintf("Decline penalty applied: ×%.2f", penalty))
	}

	finalScore = clamp(finalScore, 0, 1000)

	tier, limit, rateTier := mapDecision(int(finalScore), fraud)

	result := &domain.ScoreResult{
		Score:          int(finalScore),
		Tier:           tier,
		CreditLimit:    limit,
		RateTier:       rateTier,
		DataConfidence: round(confidence*100) / 100,
		Factors:        factors,
		FraudFlags:     fraud,
	}
	e.logScore(profile.UserID, result, start)
	return result
}

// Calibration returns the engine's calibration tables.
func (e *Engine) Calibration() Calibration {
	return e.cal
}

func (e *Engine) logScore(userID string, result *domain.ScoreResult, start time.Time) {
	e.logger.Debug("profile scored",
		"user_id", userID,
		"score", result.Score,
		"tier", result.Tier,
		"credit_limit", result.CreditLimit,
		"confidence", result.DataConfidence,
		"fraud_action", result.FraudFlags.Action,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// shortCircuited builds the result for a pipeline that stopped before
// factor calculation. All factors carry zero scores with the stop
// reason, but keep their nominal weights so audit output stays
// uniform.
func shortCircuited(fraud domain.FraudResult, tier domain.Tier, reason string) *domain.ScoreResult {
	empty := func(weight float64) domain.FactorResult {
		return domain.FactorResult{Score: 0, Weight: weight, Reasons: []string{reason}}
	}
	return &domain.ScoreResult{
		Score:          0,
		Tier:           tier,
		CreditLimit:    0,
		RateTier:       0,
		DataConfidence: 0,
		Factors: domain.FactorSet{
			PurchaseConsistency: empty(WeightConsistency),
			DealEngagement:      empty(WeightEngagement),
			FinancialTrajectory: empty(WeightTrajectory),
			RiskSignals:         empty(WeightRiskSignals),
			AccountMaturity:     empty(WeightMaturity),
		},
		FraudFlags: fraud,
	}
}

// normalizedSlope is the OLS slope of the non-zero GMV trend divided
// by its mean, so the decline thresholds are scale-free.
func normalizedSlope(trend []float64) float64 {
	active := nonZero(trend)
	if len(active) < 2 {
		return 0
	}
	m := mean(active)
	if m <= 0 {
		return 0
	}
	return olsSlope(active) / m
}

// interpolate maps score linearly from [minScore, maxScore] onto
// [minVal, maxVal], clamping outside the range and rounding to a
// whole rupee.
func interpolate(score, minScore, maxScore int, minVal, maxVal float64) int {
	t := clamp(float64(score-minScore)/float64(maxScore-minScore), 0, 1)
	return int(round(minVal + t*(maxVal-minVal)))
}

// mapDecision converts a final score and fraud outcome into tier,
// credit limit, and rate tier. An auto-reject forces fraud-rejected
// regardless of score; review and monitor do not affect the tier.
func mapDecision(score int, fraud domain.FraudResult) (domain.Tier, int, int) {
	if fraud.Action == domain.ActionAutoReject {
		return domain.TierFraudRejected, 0, 0
	}
	switch {
	case score >= 800:
		return domain.TierPreApproved, interpolate(score, 800, 1000, 50000, 100000), 1
	case score >= 600:
		return domain.TierApproved, interpolate(score, 600, 799, 15000, 50000), 2
	case score >= 400:
		return domain.TierConditional, interpolate(score, 400, 599, 5000, 15000), 3
	default:
		return domain.TierRejected, 0, 0
	}
}

// CalculateCreditScore scores a profile with the default calibration.
// Convenience wrapper for callers that do not hold an Engine.
func CalculateCreditScore(profile *domain.UserProfile, transactions []*domain.Transaction, now time.Time) *domain.ScoreResult {
	return NewEngine(DefaultCalibration(), nil).Score(profile, transactions, now)
}

// CheckFraudFlags runs only fraud detection with the default
// calibration.
func CheckFraudFlags(profile *domain.UserProfile, transactions []*domain.Transaction, now time.Time) domain.FraudResult {
	return NewEngine(DefaultCalibration(), nil).CheckFraud(profile, transactions, now)
}
