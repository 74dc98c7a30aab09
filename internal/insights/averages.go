// Package insights derives platform-level aggregates from scored
// profiles, for dashboards and peer-comparison narratives.
package insights

import (
	"math"
	"time"

	"github.com/opensource-finance/talon/internal/domain"
	"github.com/opensource-finance/talon/internal/scoring"
)

// FactorAverages holds the mean raw score of each behavioral factor.
type FactorAverages struct {
	PurchaseConsistency int `json:"purchaseConsistency"`
	DealEngagement      int `json:"dealEngagement"`
	FinancialTrajectory int `json:"financialTrajectory"`
	RiskSignals         int `json:"riskSignals"`
	AccountMaturity     int `json:"accountMaturity"`
}

// PlatformAverages summarises the scored population. Fraud-rejected
// profiles are excluded so a handful of bad actors cannot drag the
// peer baseline down.
type PlatformAverages struct {
	AvgMonthlySpend       int            `json:"avgMonthlySpend"`
	AvgDealRedemptionRate float64        `json:"avgDealRedemptionRate"`
	AvgReturnRate         float64        `json:"avgReturnRate"`
	AvgTotalTransactions  int            `json:"avgTotalTransactions"`
	AvgCategoriesCount    float64        `json:"avgCategoriesCount"`
	AvgFactorScores       FactorAverages `json:"avgFactorScores"`
	UserCount             int            `json:"userCount"`
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round1(v float64) float64 { return math.Round(v*10) / 10 }

// ComputePlatformAverages scores every profile through the engine and
// averages the survivors.
func ComputePlatformAverages(engine *scoring.Engine, profiles []*domain.UserProfile, transactions []*domain.Transaction, now time.Time) PlatformAverages {
	type scored struct {
		profile *domain.UserProfile
		result  *domain.ScoreResult
	}

	kept := make([]scored, 0, len(profiles))
	for _, p := range profiles {
		result := engine.Score(p, transactions, now)
		if result.Tier == domain.TierFraudRejected {
			continue
		}
		kept = append(kept, scored{profile: p, result: result})
	}

	if len(kept) == 0 {
		return PlatformAverages{}
	}
	n := float64(len(kept))

	var spend, redemption, returns, txns, cats float64
	var consistency, engagement, trajectory, risk, maturity float64
	for _, s := range kept {
		spend += s.profile.AvgMonthlySpend
		redemption += s.profile.DealRedemptionRate
		returns += s.profile.ReturnRate
		txns += float64(s.profile.TotalTransactions)
		cats += float64(len(s.profile.CategoriesShopped))

		consistency += s.result.Factors.PurchaseConsistency.Score
		engagement += s.result.Factors.DealEngagement.Score
		trajectory += s.result.Factors.FinancialTrajectory.Score
		risk += s.result.Factors.RiskSignals.Score
		maturity += s.result.Factors.AccountMaturity.Score
	}

	return PlatformAverages{
		AvgMonthlySpend:       int(math.Round(spend / n)),
		AvgDealRedemptionRate: round2(redemption / n),
		AvgReturnRate:         round2(returns / n),
		AvgTotalTransactions:  int(math.Round(txns / n)),
		AvgCategoriesCount:    round1(cats / n),
		AvgFactorScores: FactorAverages{
			PurchaseConsistency: int(math.Round(consistency / n)),
			DealEngagement:      int(math.Round(engagement / n)),
			FinancialTrajectory: int(math.Round(trajectory / n)),
			RiskSignals:         int(math.Round(risk / n)),
			AccountMaturity:     int(math.Round(maturity / n)),
		},
		UserCount: len(kept),
	}
}
