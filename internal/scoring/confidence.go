package scoring

import (
	"math"

	"github.com/opensource-finance/talon/internal/domain"
)

// computeConfidence measures how much history backs a profile, on a
// 0-1 scale. Confidence reaches 1.0 at 200 transactions AND 12 active
// months; below that, the geometric mean of both square-rooted axes
// keeps either one from being gamed alone (500 transactions crammed
// into a single month still reads as thin temporal history).
func computeConfidence(profile *domain.UserProfile) float64 {
	txnFactor := math.Sqrt(math.Min(float64(profile.TotalTransactions), 200) / 200)
	monthFactor := math.Sqrt(math.Min(float64(profile.ActiveMonths), 12) / 12)
	return math.Min(1.0, txnFactor*monthFactor)
}

// dampen compresses a raw factor score toward the neutral 50 in
// proportion to confidence. Sparse-history users should not receive
// extreme scores in either direction: falsely high approves a
// fraudster with five lucky transactions, falsely low rejects a
// genuine new user. At confidence 1.0 the score passes through
// unchanged; at 0 everything collapses to 50.
func dampen(raw, confidence float64) float64 {
	return 50 + (raw-50)*confidence
}
