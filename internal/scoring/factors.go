package scoring

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/opensource-finance/talon/internal/domain"
)

// Factor calculators. Each scores one behavioral dimension on a 0-100
// scale and reports the sub-factor arithmetic in Reasons so a served
// decision can be audited without re-running the engine. They operate
// on the raw factor scale; the confidence dampener and weighting are
// applied by Score, not here.

// purchaseConsistency is the highest-weighted factor. Spending
// regularity is a stronger proxy for financial conscientiousness than
// total spend volume: a user spending ₹3,000/month for 12 months is a
// better credit bet than one who spends ₹36,000 in a single burst.
//
// Sub-factors: active-months ratio (40%), coefficient of variation of
// monthly spend (40%), and recency with a 30-day exponential half-life
// (20%).
func (e *Engine) purchaseConsistency(profile *domain.UserProfile, now time.Time) domain.FactorResult {
	var reasons []string
	totalMonths := monthsBetween(profile.RegisteredAt(), now)
	if totalMonths < 1 {
		totalMonths = 1
	}

	ratio := math.Min(1, float64(profile.ActiveMonths)/float64(totalMonths))
	scoreA := clamp(ratio*100, 0, 100)
	reasons = append(reasons, fmt.Sprintf("Active months ratio: %d/%d = %.0f%%", profile.ActiveMonths, totalMonths, ratio*100))

	active := nonZero(profile.GMVTrend12M)
	var scoreB float64
	if len(active) < 2 {
		// A single active month has no variation to measure.
		scoreB = 100
		reasons = append(reasons, "CV: single data point, defaulting to 100")
	} else {
		cv := coefficientOfVariation(active)
		scoreB = clamp((1-cv)*100, 0, 100)
		reasons = append(reasons, fmt.Sprintf("CV of monthly spend: %.2f → score %.0f", cv, scoreB))
	}

	daysSince := daysBetween(profile.LastTransactionAt(), now)
	scoreC := 100 * math.Exp(-float64(daysSince)/30)
	reasons = append(reasons, fmt.Sprintf("Days since last txn: %d → recency score %.0f", daysSince, scoreC))

	score := 0.40*scoreA + 0.40*scoreB + 0.20*scoreC
	return domain.FactorResult{Score: round(score), Weight: WeightConsistency, Reasons: reasons}
}

// dealEngagement scores how the user engages with coupons, categories,
// and merchants. Coupon usage follows a bell curve: the 40-60% band is
// the sweet spot (disciplined but not desperate), while >80% signals
// extreme price sensitivity. Category mix rewards shopping across both
// essential and discretionary categories; merchant loyalty rewards
// repeat purchases over impulsive browsing.
func (e *Engine) dealEngagement(profile *domain.UserProfile, userTxns []*domain.Transaction) domain.FactorResult {
	var reasons []string

	scoreA := e.cal.couponScore(profile.DealRedemptionRate)
	reasons = append(reasons, fmt.Sprintf("Coupon usage rate: %.0f%% → score %.0f", profile.DealRedemptionRate*100, scoreA))

	catGMV := make(map[string]float64)
	for _, t := range userTxns {
		catGMV[t.MerchantCategory] += t.Amount
	}

	essential := map[string]bool{domain.CategoryFood: true, domain.CategoryHealth: true}
	discretionary := map[string]bool{domain.CategoryFashion: true, domain.CategoryTravel: true, domain.CategoryElectronics: true}
	var hasEssential, hasDiscretionary bool
	for cat := range catGMV {
		if essential[cat] {
			hasEssential = true
		}
		if discretionary[cat] {
			hasDiscretionary = true
		}
	}
	numCats := len(catGMV)

	var scoreB float64
	switch {
	case numCats >= 3 && hasEssential && hasDiscretionary:
		if numCats >= 5 {
			scoreB = 100
		} else {
			scoreB = 85
		}
	case numCats >= 2 && hasEssential && hasDiscretionary:
		scoreB = 80
	case numCats >= 2 && hasEssential:
		scoreB = 55
	case numCats >= 2 && hasDiscretionary:
		scoreB = 40
	case numCats == 1:
		scoreB = 35
	default:
		scoreB = 50
	}

	// Narrowing check: a broad historical mix that has recently
	// collapsed to one or two categories can indicate financial
	// stress, so the diversity score is walked back.
	if numCats >= 3 {
		recent := userTxns[len(userTxns)-int(math.Ceil(float64(len(userTxns))*0.3)):]
		recentCats := make(map[string]bool)
		for _, t := range recent {
			recentCats[t.MerchantCategory] = true
		}
		if len(recentCats) <= 2 && numCats >= 4 {
			scoreB = math.Max(35, scoreB-20)
			reasons = append(reasons, fmt.Sprintf("Category narrowing: %d historical → %d recent categories", numCats, len(recentCats)))
		}
	}
	reasons = append(reasons, fmt.Sprintf("Categories: %d (essential: %t, discretionary: %t) → score %.0f", numCats, hasEssential, hasDiscretionary, scoreB))

	merchantCount := make(map[string]int)
	for _, t := range userTxns {
		merchantCount[t.MerchantName]++
	}
	counts := make([]int, 0, len(merchantCount))
	for _, c := range merchantCount {
		counts = append(counts, c)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(counts)))
	top3 := 0
	for i, c := range counts {
		if i >= 3 {
			break
		}
		top3 += c
	}
	var repeatRate float64
	if len(userTxns) > 0 {
		repeatRate = float64(top3) / float64(len(userTxns))
	}
	scoreC := math.Min(100, repeatRate*120)
	reasons = append(reasons, fmt.Sprintf("Merchant loyalty (top-3 repeat rate): %.0f%% → score %.0f", repeatRate*100, scoreC))

	score := 0.40*scoreA + 0.40*scoreB + 0.20*scoreC
	return domain.FactorResult{Score: round(score), Weight: WeightEngagement, Reasons: reasons}
}

// financialTrajectory scores the direction of the monthly GMV trend.
// Direction matters more than position: a user trending up from
// ₹2K/month is a better credit bet than one declining from ₹10K/month.
// A flat, low-volatility trend is the gold standard; flat but erratic
// scores poorly, and a negative slope draws an exponential penalty.
func (e *Engine) financialTrajectory(profile *domain.UserProfile) domain.FactorResult {
	var reasons []string
	active := nonZero(profile.GMVTrend12M)

	if len(active) <= 1 {
		reasons = append(reasons, "Insufficient data: ≤1 non-zero month → score 10")
		return domain.FactorResult{Score: 10, Weight: WeightTrajectory, Reasons: reasons}
	}

	slope := olsSlope(active)
	m := mean(active)
	cv := coefficientOfVariation(active)
	var normSlope float64
	if m > 0 {
		normSlope = slope / m
	}

	var score float64
	switch {
	case normSlope > 0.03:
		score = 85
		reasons = append(reasons, fmt.Sprintf("Upward trend: normalized slope %.3f/mo → growth", normSlope))
	case normSlope >= -0.02 && cv < 0.15:
		if m < 2500 {
			score = 60
			reasons = append(reasons, fmt.Sprintf("Flat-low: stable but avg ₹%.0f/mo is modest → score 60", m))
		} else {
			score = 100
			reasons = append(reasons, fmt.Sprintf("Stable trajectory: low CV (%.2f), consistent spend → score 100", cv))
		}
	case normSlope >= -0.02:
		score = 50
		reasons = append(reasons, fmt.Sprintf("Erratic: CV %.2f with no clear trend → score 50", cv))
	default:
		score = math.Max(5, round(30+70*math.Exp(normSlope*6)))
		reasons = append(reasons, fmt.Sprintf("Declining: normalized slope %.3f/mo → score %.0f", normSlope, score))
	}

	return domain.FactorResult{Score: score, Weight: WeightTrajectory, Reasons: reasons}
}

// riskSignals captures behavioral red flags a traditional bureau never
// sees: refund rates benchmarked per category (15% returns in Fashion
// is normal, in Food it is alarming), payment-mode risk (heavy COD use
// proxies for exclusion from digital payments), and concentration of
// lifetime GMV in a couple of large transactions.
func (e *Engine) riskSignals(profile *domain.UserProfile, userTxns []*domain.Transaction) domain.FactorResult {
	var reasons []string

	catGMV := make(map[string]float64)
	catReturns := make(map[string]float64)
	var totalGMV float64
	for _, t := range userTxns {
		catGMV[t.MerchantCategory] += t.Amount
		totalGMV += t.Amount
		if t.ReturnFlag {
			catReturns[t.MerchantCategory] += t.RefundAmount
		}
	}

	scoreA := 100.0
	if totalGMV > 0 {
		var weighted, weightSum float64
		for cat, gmv := range catGMV {
			var returnRate float64
			if gmv > 0 {
				returnRate = catReturns[cat] / gmv
			}
			bench := e.cal.returnBenchmark(cat)
			var catScore float64
			switch {
			case returnRate <= bench.Normal:
				catScore = 100
			case returnRate <= bench.Warning:
				catScore = 60
			default:
				catScore = 20
			}
			weighted += catScore * gmv
			weightSum += gmv
		}
		if weightSum > 0 {
			scoreA = weighted / weightSum
		}
	}
	reasons = append(reasons, fmt.Sprintf("Return rate analysis: overall %.1f%% → score %.0f", profile.ReturnRate*100, scoreA))

	var scoreB float64
	for mode, pct := range profile.PaymentModeDistribution {
		scoreB += pct * e.cal.paymentRisk(mode)
	}
	reasons = append(reasons, fmt.Sprintf("Payment mode risk score: %.0f", scoreB))

	amounts := make([]float64, 0, len(userTxns))
	for _, t := range userTxns {
		amounts = append(amounts, t.Amount)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(amounts)))
	var top2 float64
	for i, a := range amounts {
		if i >= 2 {
			break
		}
		top2 += a
	}
	var topPct float64
	if totalGMV > 0 {
		topPct = top2 / totalGMV
	}
	var scoreC float64
	switch {
	case topPct > 0.50:
		scoreC = 30
	case topPct > 0.30:
		scoreC = 60
	default:
		scoreC = 100
	}
	reasons = append(reasons, fmt.Sprintf("Top-2 txn concentration: %.1f%% → score %.0f", topPct*100, scoreC))

	score := 0.40*scoreA + 0.40*scoreB + 0.20*scoreC
	return domain.FactorResult{Score: round(score), Weight: WeightRiskSignals, Reasons: reasons}
}

// accountMaturity rewards the combination of account age and activity
// density. Bracket scoring sets a hard floor: fewer than 15 lifetime
// transactions scores 5/100 outright, since there is not enough data
// for a confident decision. Above the floor, transaction count scores
// on a log scale (the 200th transaction adds less signal than the
// 20th) blended with the active-month ratio.
func (e *Engine) accountMaturity(profile *domain.UserProfile, now time.Time) domain.FactorResult {
	var reasons []string
	totalMonths := monthsBetween(profile.RegisteredAt(), now)
	if totalMonths < 1 {
		totalMonths = 1
	}
	txns := profile.TotalTransactions
	activeMonths := profile.ActiveMonths

	var bracket float64
	switch {
	case txns >= 50 && activeMonths >= 6:
		bracket = 100
	case txns >= 25 && activeMonths >= 3:
		bracket = 80
	case txns >= 15 && activeMonths >= 2:
		bracket = 55
	case txns < 15:
		reasons = append(reasons, fmt.Sprintf("Not eligible: only %d transactions", txns))
		return domain.FactorResult{Score: 5, Weight: WeightMaturity, Reasons: reasons}
	default:
		bracket = 35
	}
	reasons = append(reasons, fmt.Sprintf("Maturity bracket: %d txns, %d active months → %.0f", txns, activeMonths, bracket))

	txnScore := math.Min(100, math.Log2(math.Max(1, float64(txns)))*15)
	reasons = append(reasons, fmt.Sprintf("Transaction count score: %.0f", txnScore))

	activeRatio := math.Min(1, float64(activeMonths)/float64(totalMonths))
	activeScore := activeRatio * 100
	reasons = append(reasons, fmt.Sprintf("Active ratio: %d/%d = %.0f%%", activeMonths, totalMonths, activeRatio*100))

	score := 0.50*bracket + 0.30*txnScore + 0.20*activeScore
	return domain.FactorResult{Score: round(score), Weight: WeightMaturity, Reasons: reasons}
}
