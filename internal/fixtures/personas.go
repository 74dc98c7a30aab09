package fixtures

import (
	"fmt"
	"time"

	"github.com/opensource-finance/talon/internal/domain"
)

// Persona bundles one reference applicant: the profile snapshot, the
// full transaction history behind it, and the tier the applicant is
// expected to land in. The expected tier is what seed verification and
// the load tool compare against.
type Persona struct {
	Profile      *domain.UserProfile
	Transactions []*domain.Transaction
	ExpectedTier domain.Tier
}

// Personas builds the five reference applicants, anchored to now so
// account ages and activity windows stay stable no matter when the
// fixtures are generated. The same seed yields byte-identical output.
func Personas(seed int64, now time.Time) []Persona {
	g := newGenerator(seed, now)
	return []Persona{
		growthPersona(g, now),
		steadyPersona(g, now),
		thinFilePersona(g, now),
		decliningPersona(g, now),
		ghostPersona(g, now),
	}
}

// Dataset flattens the personas into seed-ready slices.
func Dataset(seed int64, now time.Time) ([]*domain.UserProfile, []*domain.Transaction) {
	personas := Personas(seed, now)
	profiles := make([]*domain.UserProfile, 0, len(personas))
	var txns []*domain.Transaction
	for _, p := range personas {
		profiles = append(profiles, p.Profile)
		txns = append(txns, p.Transactions...)
	}
	return profiles, txns
}

// growthPersona is a 19-month account with a steady upward GMV trend,
// broad category mix, and healthy coupon discipline. Lands pre-approved.
func growthPersona(g *generator, now time.Time) Persona {
	counts := []int{9, 9, 10, 10, 9, 10, 9, 12, 12, 12, 13, 12, 13, 12, 12, 12, 13, 13, 12}
	gmv := []int{4000, 4000, 4200, 4300, 4200, 4400, 3900, 3800, 4100, 4200, 4400, 4300, 4600, 4700, 4900, 5000, 5200, 5400, 5600}
	trend := []float64{3800, 4100, 4200, 4400, 4300, 4600, 4700, 4900, 5000, 5200, 5400, 5600}

	txns := g.generate(personaSpec{
		userID: "user_growth",
		plan:   monthPlans(now, 0, counts, gmv),
		categoryBudget: map[string]int{
			domain.CategoryFashion:     75,
			domain.CategoryTravel:      54,
			domain.CategoryFood:        43,
			domain.CategoryElectronics: 32,
			domain.CategoryHealth:      10,
		},
		coupons:        118,
		returns:        4,
		returnCategory: domain.CategoryFashion,
		payModes: []modeWeight{
			{domain.PaymentCreditCard, 0.60},
			{domain.PaymentUPI, 0.30},
			{domain.PaymentDebitCard, 0.10},
		},
		merchantPrefs: map[string][]string{
			domain.CategoryFashion: {"Myntra", "Myntra", "Ajio"},
			domain.CategoryTravel:  {"MakeMyTrip", "MakeMyTrip", "GoIbibo"},
			domain.CategoryFood:    {"Zomato", "Zomato", "Swiggy"},
		},
	})

	return Persona{
		Profile: &domain.UserProfile{
			UserID:            "user_growth",
			Name:              "Priya Sharma",
			Email:             "priya.sharma@example.in",
			Phone:             "+91-9812045673",
			RegistrationDate:  now.In(ist).AddDate(0, -19, 0).Format(time.RFC3339),
			TotalTransactions: 214,
			TotalGMV:          85200,
			ActiveMonths:      12,
			AvgMonthlySpend:   4484,
			CategoriesShopped: []string{
				domain.CategoryFashion, domain.CategoryTravel, domain.CategoryFood,
				domain.CategoryElectronics, domain.CategoryHealth,
			},
			DealRedemptionRate: 0.55,
			ReturnRate:         0.019,
			PaymentModeDistribution: map[string]float64{
				domain.PaymentCreditCard: 0.60,
				domain.PaymentUPI:        0.30,
				domain.PaymentDebitCard:  0.10,
			},
			FavoriteMerchants:   []string{"Myntra", "MakeMyTrip", "Zomato"},
			LastTransactionDate: now.In(ist).Add(-48 * time.Hour).Format(time.RFC3339),
			GMVTrend12M:         trend,
		},
		Transactions: txns,
		ExpectedTier: domain.TierPreApproved,
	}
}

// steadyPersona is a 13-month account with flat, modest monthly spend
// and a repeat-merchant habit. Lands approved.
func steadyPersona(g *generator, now time.Time) Persona {
	counts := []int{6, 7, 6, 7, 7, 6, 7, 7, 6, 6, 7, 8}
	gmv := []int{2100, 2300, 2000, 2200, 2400, 2100, 2200, 2500, 2300, 2100, 2400, 2200}

	txns := g.generate(personaSpec{
		userID: "user_steady",
		plan:   monthPlans(now, 0, counts, gmv),
		categoryBudget: map[string]int{
			domain.CategoryFood:    40,
			domain.CategoryFashion: 28,
			domain.CategoryHealth:  12,
		},
		coupons:        52,
		returns:        4,
		returnCategory: domain.CategoryFashion,
		payModes: []modeWeight{
			{domain.PaymentUPI, 0.70},
			{domain.PaymentDebitCard, 0.20},
			{domain.PaymentCOD, 0.10},
		},
		merchantPrefs: map[string][]string{
			domain.CategoryFood:    {"Zomato", "Zomato", "Swiggy", "BigBasket"},
			domain.CategoryFashion: {"Myntra", "Myntra", "Ajio"},
		},
	})

	return Persona{
		Profile: &domain.UserProfile{
			UserID:            "user_steady",
			Name:              "Rahul Verma",
			Email:             "rahul.verma@example.in",
			Phone:             "+91-9934012784",
			RegistrationDate:  now.In(ist).AddDate(0, -13, 0).Format(time.RFC3339),
			TotalTransactions: 80,
			TotalGMV:          26800,
			ActiveMonths:      12,
			AvgMonthlySpend:   2062,
			CategoriesShopped: []string{
				domain.CategoryFood, domain.CategoryFashion, domain.CategoryHealth,
			},
			DealRedemptionRate: 0.65,
			ReturnRate:         0.05,
			PaymentModeDistribution: map[string]float64{
				domain.PaymentUPI:       0.70,
				domain.PaymentDebitCard: 0.20,
				domain.PaymentCOD:       0.10,
			},
			FavoriteMerchants:   []string{"Zomato", "Myntra", "Swiggy"},
			LastTransactionDate: now.In(ist).Add(-72 * time.Hour).Format(time.RFC3339),
			GMVTrend12M:         floats(gmv),
		},
		Transactions: txns,
		ExpectedTier: domain.TierApproved,
	}
}

// thinFilePersona is a 3-month account ramping up fast but with too
// little history to score confidently. Lands conditional on the
// strength of the dampener alone.
func thinFilePersona(g *generator, now time.Time) Persona {
	counts := []int{5, 8, 12}
	gmv := []int{1500, 3000, 4500}

	txns := g.generate(personaSpec{
		userID: "user_thinfile",
		plan:   monthPlans(now, 0, counts, gmv),
		categoryBudget: map[string]int{
			domain.CategoryTravel: 20,
			domain.CategoryFood:   5,
		},
		coupons: 11,
		payModes: []modeWeight{
			{domain.PaymentCreditCard, 0.50},
			{domain.PaymentUPI, 0.50},
		},
		merchantPrefs: map[string][]string{
			domain.CategoryTravel: {"MakeMyTrip", "MakeMyTrip", "OYO"},
		},
	})

	return Persona{
		Profile: &domain.UserProfile{
			UserID:            "user_thinfile",
			Name:              "Ananya Iyer",
			Email:             "ananya.iyer@example.in",
			Phone:             "+91-8870256491",
			RegistrationDate:  now.In(ist).AddDate(0, -3, 0).Format(time.RFC3339),
			TotalTransactions: 25,
			TotalGMV:          9000,
			ActiveMonths:      3,
			AvgMonthlySpend:   3000,
			CategoriesShopped: []string{
				domain.CategoryTravel, domain.CategoryFood,
			},
			DealRedemptionRate: 0.44,
			ReturnRate:         0,
			PaymentModeDistribution: map[string]float64{
				domain.PaymentCreditCard: 0.50,
				domain.PaymentUPI:        0.50,
			},
			FavoriteMerchants:   []string{"MakeMyTrip", "Zomato"},
			LastTransactionDate: now.In(ist).Add(-96 * time.Hour).Format(time.RFC3339),
			GMVTrend12M:         []float64{0, 0, 0, 0, 0, 0, 0, 0, 0, 1500, 3000, 4500},
		},
		Transactions: txns,
		ExpectedTier: domain.TierConditional,
	}
}

// decliningPersona is a 14-month account whose spend collapsed over the
// trend window while payment behavior shifted toward cash on delivery.
// Lands rejected once the decline penalty bites.
func decliningPersona(g *generator, now time.Time) Persona {
	trend := []float64{7200, 6800, 6000, 5200, 4500, 3800, 3000, 2200, 1800, 1200, 1000, 1000}

	// The healthy era: two warm-up months plus the first eight trend
	// months, spread across three categories on card-heavy payments.
	early := g.generate(personaSpec{
		userID: "user_declining",
		plan: monthPlans(now, 4,
			[]int{5, 4, 6, 5, 5, 4, 4, 4, 4, 4},
			[]int{2500, 2000, 7200, 6800, 6000, 5200, 4500, 3800, 3000, 2200}),
		categoryBudget: map[string]int{
			domain.CategoryFashion:     18,
			domain.CategoryElectronics: 14,
			domain.CategoryFood:        13,
		},
		coupons:        38,
		returns:        7,
		returnCategory: domain.CategoryFashion,
		payModes: []modeWeight{
			{domain.PaymentCreditCard, 0.27},
			{domain.PaymentUPI, 0.40},
			{domain.PaymentCOD, 0.33},
		},
		merchantPrefs: map[string][]string{
			domain.CategoryElectronics: {"Croma", "Croma", "Reliance Digital"},
		},
	})

	// The collapse: the last four months shrink to essentials paid
	// mostly in cash.
	late := g.generate(personaSpec{
		userID: "user_declining",
		plan: monthPlans(now, 0,
			[]int{4, 4, 4, 3},
			[]int{1800, 1200, 1000, 1000}),
		categoryBudget: map[string]int{
			domain.CategoryFood:   13,
			domain.CategoryHealth: 2,
		},
		coupons: 13,
		payModes: []modeWeight{
			{domain.PaymentCOD, 0.60},
			{domain.PaymentUPI, 0.40},
		},
	})

	return Persona{
		Profile: &domain.UserProfile{
			UserID:            "user_declining",
			Name:              "Vikram Singh",
			Email:             "vikram.singh@example.in",
			Phone:             "+91-9023417856",
			RegistrationDate:  now.In(ist).AddDate(0, -14, 0).Format(time.RFC3339),
			TotalTransactions: 60,
			TotalGMV:          48200,
			ActiveMonths:      14,
			AvgMonthlySpend:   3443,
			CategoriesShopped: []string{
				domain.CategoryFashion, domain.CategoryElectronics,
				domain.CategoryFood, domain.CategoryHealth,
			},
			DealRedemptionRate: 0.85,
			ReturnRate:         0.117,
			PaymentModeDistribution: map[string]float64{
				domain.PaymentCreditCard: 0.20,
				domain.PaymentUPI:        0.40,
				domain.PaymentCOD:        0.40,
			},
			FavoriteMerchants:   []string{"Myntra", "Croma", "Zomato"},
			LastTransactionDate: now.In(ist).Add(-120 * time.Hour).Format(time.RFC3339),
			GMVTrend12M:         trend,
		},
		Transactions: append(early, late...),
		ExpectedTier: domain.TierRejected,
	}
}

// ghostPersona is a days-old account with two large cash-on-delivery
// electronics orders and nothing else. Tripwires fire before any
// factor is computed.
func ghostPersona(g *generator, now time.Time) Persona {
	registered := now.In(ist).Add(-96 * time.Hour)

	txns := []*domain.Transaction{
		{
			UserID:           "user_ghost",
			MerchantName:     "Croma",
			MerchantCategory: domain.CategoryElectronics,
			Subcategory:      "Laptop",
			Amount:           45000,
			PaymentMode:      domain.PaymentCOD,
			Timestamp:        registered.Add(10 * time.Hour).Format(time.RFC3339),
			DeviceType:       "mobile",
		},
		{
			UserID:           "user_ghost",
			MerchantName:     "Reliance Digital",
			MerchantCategory: domain.CategoryElectronics,
			Subcategory:      "Home Appliances",
			Amount:           40000,
			PaymentMode:      domain.PaymentCOD,
			Timestamp:        registered.Add(40 * time.Hour).Format(time.RFC3339),
			DeviceType:       "mobile",
		},
	}
	for _, t := range txns {
		g.seq++
		t.ID = fmt.Sprintf("txn_%05d", g.seq)
	}

	return Persona{
		Profile: &domain.UserProfile{
			UserID:            "user_ghost",
			Name:              "Ghost User",
			Email:             "newuser2026@example.in",
			Phone:             "+91-7012938465",
			RegistrationDate:  registered.Format(time.RFC3339),
			TotalTransactions: 2,
			TotalGMV:          85000,
			ActiveMonths:      1,
			AvgMonthlySpend:   85000,
			CategoriesShopped: []string{domain.CategoryElectronics},
			PaymentModeDistribution: map[string]float64{
				domain.PaymentCOD: 1.0,
			},
			FavoriteMerchants:   []string{"Croma"},
			LastTransactionDate: registered.Add(40 * time.Hour).Format(time.RFC3339),
			GMVTrend12M:         []float64{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 85000},
		},
		Transactions: txns,
		ExpectedTier: domain.TierFraudRejected,
	}
}

// monthPlans zips chronological count and GMV series into month plans,
// with the last entry landing endMonthsAgo calendar months before now.
func monthPlans(now time.Time, endMonthsAgo int, counts, gmv []int) []monthPlan {
	if len(counts) != len(gmv) {
		panic("fixtures: counts and gmv length mismatch")
	}
	plans := make([]monthPlan, len(counts))
	for i := range counts {
		t := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).
			AddDate(0, -(endMonthsAgo + len(counts) - 1 - i), 0)
		plans[i] = monthPlan{year: t.Year(), month: t.Month(), count: counts[i], gmv: gmv[i]}
	}
	return plans
}

func floats(values []int) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out
}
