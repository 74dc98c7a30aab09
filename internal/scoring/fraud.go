package scoring

import (
	"fmt"
	"strings"
	"time"

	"github.com/opensource-finance/talon/internal/domain"
)

// fraudFlag is one triggered rule before formatting.
type fraudFlag struct {
	message string
	action  domain.FraudAction
}

// CheckFraud evaluates the built-in fraud rules against a profile and
// its transactions. Rules are independent: each contributes at most one
// flag, flags accumulate, and the overall action is the highest
// severity seen. Monitor-only flags set Flagged but leave the action at
// "none".
func (e *Engine) CheckFraud(profile *domain.UserProfile, transactions []*domain.Transaction, now time.Time) domain.FraudResult {
	th := e.cal.Fraud
	var flags []fraudFlag

	regDate := profile.RegisteredAt()
	ageDays := daysBetween(regDate, now)
	userTxns := transactionsFor(profile.UserID, transactions)

	// Rule 1: new-account BNPL. Boundary is inclusive on the pass
	// side: exactly MinAccountAgeDays old passes.
	if ageDays < th.MinAccountAgeDays {
		flags = append(flags, fraudFlag{
			message: fmt.Sprintf("New account (%d days old) - too new for BNPL", ageDays),
			action:  domain.ActionAutoReject,
		})
	}

	// Rule 2: spend velocity spike within the first hours after
	// registration.
	var earlySum float64
	for _, t := range userTxns {
		h := hoursBetween(regDate, t.OccurredAt())
		if h >= 0 && h <= th.VelocitySpikeHours {
			earlySum += t.Amount
		}
	}
	if earlySum > th.VelocitySpikeAmount {
		flags = append(flags, fraudFlag{
			message: fmt.Sprintf("Velocity spike: ₹%.0f spent in first %.0fhrs", earlySum, th.VelocitySpikeHours),
			action:  domain.ActionReview,
		})
	}

	// Rule 3: category jump. A dominant category plus a high-value
	// transaction somewhere else suggests a tested-then-abused account.
	if len(userTxns) > 0 {
		catGMV := make(map[string]float64)
		var totalGMV float64
		for _, t := range userTxns {
			catGMV[t.MerchantCategory] += t.Amount
			totalGMV += t.Amount
		}
		if totalGMV > 0 {
			avgAmount := totalGMV / float64(len(userTxns))
			var dominantCat string
			var dominantPct float64
			for cat, gmv := range catGMV {
				if pct := gmv / totalGMV; pct > dominantPct {
					dominantPct = pct
					dominantCat = cat
				}
			}
			if dominantPct > th.CategoryDominancePct {
				outliers := 0
				for _, t := range userTxns {
					if t.MerchantCategory != dominantCat && t.Amount > avgAmount*th.OutlierMultiple {
						outliers++
					}
				}
				if outliers > 0 {
					flags = append(flags, fraudFlag{
						message: fmt.Sprintf("Category jump: %.0f%% in %s, high-value txn in other category", dominantPct*100, dominantCat),
						action:  domain.ActionReview,
					})
				}
			}
		}
	}

	// Rule 4: single-pattern combo on a young account.
	if ageDays < th.SinglePatternAgeDays {
		modes := make(map[string]struct{})
		cats := make(map[string]struct{})
		for _, t := range userTxns {
			modes[t.PaymentMode] = struct{}{}
			cats[t.MerchantCategory] = struct{}{}
		}
		if len(modes) == 1 && len(cats) == 1 && profile.DealRedemptionRate == 0 {
			var mode, cat string
			for m := range modes {
				mode = m
			}
			for c := range cats {
				cat = c
			}
			flags = append(flags, fraudFlag{
				message: fmt.Sprintf("Single-pattern combo: <%d days, single payment mode (%s), single category (%s), no coupons", th.SinglePatternAgeDays, mode, cat),
				action:  domain.ActionAutoReject,
			})
		}
	}

	// Rule 5: electronics concentration on a thin account. Monitor
	// only - worth watching, not worth blocking on its own.
	if len(userTxns) > 0 && profile.TotalTransactions < th.ElectronicsMaxTxns {
		var elecGMV, totalGMV float64
		for _, t := range userTxns {
			totalGMV += t.Amount
			if t.MerchantCategory == domain.CategoryElectronics {
				elecGMV += t.Amount
			}
		}
		if totalGMV > 0 && elecGMV/totalGMV > th.ElectronicsSharePct {
			flags = append(flags, fraudFlag{
				message: fmt.Sprintf("Electronics concentration: %.0f%% GMV in Electronics with only %d txns", elecGMV/totalGMV*100, profile.TotalTransactions),
				action:  domain.ActionMonitor,
			})
		}
	}

	// Rule 6: dormant account. Old account, zero history, suddenly
	// wants credit - a different risk profile from a new account.
	if ageDays > th.DormantAccountAgeDays && profile.TotalTransactions == 0 {
		flags = append(flags, fraudFlag{
			message: fmt.Sprintf("Dormant account: registered %d days ago with 0 transactions - insufficient purchase history for BNPL", ageDays),
			action:  domain.ActionReview,
		})
	}

	return aggregateFlags(flags)
}

// aggregateFlags formats flags and derives the overall action.
func aggregateFlags(flags []fraudFlag) domain.FraudResult {
	result := domain.FraudResult{
		Flagged: len(flags) > 0,
		Action:  domain.ActionNone,
	}
	for _, f := range flags {
		result.Flags = append(result.Flags, fmt.Sprintf("[%s] %s", strings.ToUpper(string(f.action)), f.message))
		if f.action.Severity() > result.Action.Severity() {
			result.Action = f.action
		}
	}
	return result
}

// transactionsFor filters the supplied list down to one user's
// transactions, preserving order.
func transactionsFor(userID string, transactions []*domain.Transaction) []*domain.Transaction {
	out := make([]*domain.Transaction, 0, len(transactions))
	for _, t := range transactions {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out
}
