// Package fixtures generates deterministic persona profiles and
// transaction histories for seeding, tests, and load tooling. Monthly
// GMV targets are authoritative: transaction amounts are distributed
// so every month sums exactly to its target.
package fixtures

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/opensource-finance/talon/internal/domain"
)

// monthPlan fixes one month of activity: how many transactions and
// exactly how much GMV they carry together.
type monthPlan struct {
	year  int
	month time.Month
	count int
	gmv   int
}

// modeWeight is one entry of a payment mode distribution.
type modeWeight struct {
	mode   string
	weight float64
}

// generator produces transaction batches from a seeded RNG, so the
// same seed always yields the same fixture set.
type generator struct {
	rng *rand.Rand
	now time.Time
	seq int
}

func newGenerator(seed int64, now time.Time) *generator {
	return &generator{rng: rand.New(rand.NewSource(seed)), now: now}
}

func (g *generator) intBetween(lo, hi int) int {
	return lo + g.rng.Intn(hi-lo+1)
}

func (g *generator) pick(items []string) string {
	return items[g.rng.Intn(len(items))]
}

func (g *generator) pickMode(modes []modeWeight) string {
	r := g.rng.Float64()
	cum := 0.0
	for _, mw := range modes {
		cum += mw.weight
		if r < cum {
			return mw.mode
		}
	}
	return modes[len(modes)-1].mode
}

// distributeGMV splits target rupees across the categories, weighted
// by categoryWeight with noise, keeping every amount at least 50 and
// the sum exactly target.
func (g *generator) distributeGMV(target int, cats []string) []int {
	if len(cats) == 0 {
		return nil
	}
	if len(cats) == 1 {
		return []int{target}
	}

	weights := make([]float64, len(cats))
	var totalWeight float64
	for i, c := range cats {
		w, ok := categoryWeight[c]
		if !ok {
			w = 1
		}
		weights[i] = w
		totalWeight += w
	}

	amounts := make([]int, len(cats))
	for i := range cats {
		amounts[i] = int(math.Max(50, math.Round(weights[i]/totalWeight*float64(target))))
	}

	remaining := target
	for i := 0; i < len(amounts)-1; i++ {
		slack := remaining - 50*(len(amounts)-i-1)
		swing := int(math.Round(float64(amounts[i]) * (g.rng.Float64()*0.30 - 0.15)))
		amt := amounts[i] + swing
		if amt < 50 {
			amt = 50
		}
		if amt > slack {
			amt = slack
		}
		amounts[i] = amt
		remaining -= amt
	}
	amounts[len(amounts)-1] = remaining
	return amounts
}

// allocateCats samples n categories proportional to the remaining
// per-category transaction budget.
func (g *generator) allocateCats(n int, budget map[string]int) []string {
	remaining := make(map[string]int, len(budget))
	for c, v := range budget {
		remaining[c] = v
	}

	result := make([]string, 0, n)
	for i := 0; i < n; i++ {
		cats := make([]string, 0, len(remaining))
		total := 0
		for c, v := range remaining {
			if v > 0 {
				cats = append(cats, c)
				total += v
			}
		}
		if len(cats) == 0 {
			break
		}
		sort.Strings(cats)

		r := g.rng.Float64() * float64(total)
		cum := 0.0
		chosen := cats[len(cats)-1]
		for _, c := range cats {
			cum += float64(remaining[c])
			if r < cum {
				chosen = c
				break
			}
		}
		result = append(result, chosen)
		remaining[chosen]--
	}
	return result
}

// couponIndexes builds an evenly spaced index set so coupon usage
// spreads across the whole history instead of clustering.
func couponIndexes(total, target int) map[int]bool {
	set := make(map[int]bool, target)
	if target <= 0 {
		return set
	}
	if target == 1 {
		set[0] = true
		return set
	}
	for i := 0; i < target; i++ {
		set[int(math.Round(float64(i)*float64(total-1)/float64(target-1)))] = true
	}
	return set
}

// personaSpec drives one persona's transaction batch.
type personaSpec struct {
	userID         string
	plan           []monthPlan
	categoryBudget map[string]int
	coupons        int
	returns        int
	returnCategory string // returns land on this category's transactions first
	payModes       []modeWeight
	merchantPrefs  map[string][]string
}

// generate builds the transaction batch for one persona spec.
func (g *generator) generate(spec personaSpec) []*domain.Transaction {
	budget := make(map[string]int, len(spec.categoryBudget))
	for c, v := range spec.categoryBudget {
		budget[c] = v
	}

	var batch []*domain.Transaction
	for _, mp := range spec.plan {
		cats := g.allocateCats(mp.count, budget)
		amounts := g.distributeGMV(mp.gmv, cats)

		stamps := make([]string, len(cats))
		for i := range cats {
			hi := daysIn(mp.year, mp.month)
			if mp.year == g.now.Year() && mp.month == g.now.Month() && g.now.Day() < hi {
				hi = g.now.Day()
			}
			day := g.intBetween(1, hi)
			ts := time.Date(mp.year, mp.month, day, g.intBetween(8, 23), g.intBetween(0, 59), g.intBetween(0, 59), 0, ist)
			stamps[i] = ts.Format(time.RFC3339)
		}
		sort.Strings(stamps)

		for i, cat := range cats {
			catalog := merchants[cat]
			if pref, ok := spec.merchantPrefs[cat]; ok {
				catalog = pref
			}
			batch = append(batch, &domain.Transaction{
				UserID:           spec.userID,
				MerchantName:     g.pick(catalog),
				MerchantCategory: cat,
				Subcategory:      g.pick(subcategories[cat]),
				Amount:           float64(amounts[i]),
				PaymentMode:      g.pickMode(spec.payModes),
				Timestamp:        stamps[i],
				DeviceType:       g.pick(devices),
			})
		}
	}

	coupons := couponIndexes(len(batch), spec.coupons)
	for idx, t := range batch {
		if coupons[idx] {
			t.CouponUsed = true
			t.CouponDiscountPct = float64(g.intBetween(10, 25))
		}
	}

	g.assignReturns(batch, spec.returns, spec.returnCategory)

	for _, t := range batch {
		g.seq++
		t.ID = fmt.Sprintf("txn_%05d", g.seq)
	}
	return batch
}

// assignReturns marks n transactions as returned with a 90% refund,
// preferring the given category so per-category return rates stay
// within that category's benchmark shape.
func (g *generator) assignReturns(batch []*domain.Transaction, n int, category string) {
	if n <= 0 {
		return
	}
	marked := 0
	for _, t := range batch {
		if marked >= n {
			return
		}
		if t.MerchantCategory == category {
			t.ReturnFlag = true
			t.RefundAmount = math.Round(t.Amount * 0.9)
			marked++
		}
	}
	for _, t := range batch {
		if marked >= n {
			return
		}
		if !t.ReturnFlag {
			t.ReturnFlag = true
			t.RefundAmount = math.Round(t.Amount * 0.9)
			marked++
		}
	}
}

var ist = time.FixedZone("IST", 5*3600+1800)

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
