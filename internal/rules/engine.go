// Package rules provides the CEL-based risk-flag overlay engine.
// Operators define rules as CEL expressions over profile aggregates;
// each rule's numeric result maps through bands to a flag severity.
// The overlay runs beside the built-in fraud detector and its flags
// are merged into the served fraud result, so threshold tweaks ship
// without a redeploy.
package rules

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/opensource-finance/talon/internal/domain"
)

// Engine is the CEL rule evaluation engine.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule
	maxWorkers    int
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.RuleConfig
	Program cel.Program
}

// NewEngine creates a rule evaluation engine.
func NewEngine(maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	// CEL environment exposing profile aggregates. Expressions see
	// the same numbers the factor calculators see, never raw
	// transactions.
	env, err := cel.NewEnv(
		cel.Variable("profile", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("account_age_days", cel.IntType),
		cel.Variable("total_transactions", cel.IntType),
		cel.Variable("active_months", cel.IntType),
		cel.Variable("total_gmv", cel.DoubleType),
		cel.Variable("avg_monthly_spend", cel.DoubleType),
		cel.Variable("deal_redemption_rate", cel.DoubleType),
		cel.Variable("return_rate", cel.DoubleType),
		cel.Variable("category_count", cel.IntType),
		cel.Variable("payment_mode_count", cel.IntType),
		cel.Variable("days_since_last_txn", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
		maxWorkers:    maxWorkers,
	}, nil
}

// ValidateRule compiles and validates a rule without mutating loaded engine rules.
func (e *Engine) ValidateRule(cfg *domain.RuleConfig) error {
	if cfg == nil {
		return fmt.Errorf("rule config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(cfg *domain.RuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	e.compiledRules[cfg.ID] = compiled

	return nil
}

// LoadRules compiles and loads multiple rules.
func (e *Engine) LoadRules(configs []*domain.RuleConfig) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// activation builds the CEL variable set from a profile at a
// reference time.
func activation(profile *domain.UserProfile, now time.Time) map[string]any {
	ageDays := int64(0)
	if reg := profile.RegisteredAt(); !reg.IsZero() {
		ageDays = int64(now.Sub(reg).Hours() / 24)
	}
	daysSinceLast := int64(0)
	if last := profile.LastTransactionAt(); !last.IsZero() {
		daysSinceLast = int64(now.Sub(last).Hours() / 24)
	}

	return map[string]any{
		"profile": map[string]any{
			"user_id":            profile.UserID,
			"total_transactions": profile.TotalTransactions,
			"total_gmv":          profile.TotalGMV,
			"active_months":      profile.ActiveMonths,
			"return_rate":        profile.ReturnRate,
		},
		"account_age_days":     ageDays,
		"total_transactions":   int64(profile.TotalTransactions),
		"active_months":        int64(profile.ActiveMonths),
		"total_gmv":            profile.TotalGMV,
		"avg_monthly_spend":    profile.AvgMonthlySpend,
		"deal_redemption_rate": profile.DealRedemptionRate,
		"return_rate":          profile.ReturnRate,
		"category_count":       int64(len(profile.CategoriesShopped)),
		"payment_mode_count":   int64(len(profile.PaymentModeDistribution)),
		"days_since_last_txn":  daysSinceLast,
	}
}

// EvaluateAll evaluates all loaded rules against a profile in parallel.
func (e *Engine) EvaluateAll(ctx context.Context, profile *domain.UserProfile, now time.Time) ([]domain.RuleResult, error) {
	e.mu.RLock()
	rules := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, rule := range e.compiledRules {
		rules = append(rules, rule)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil, nil
	}

	vars := activation(profile, now)

	// Parallel evaluation using worker pool pattern
	results := make([]domain.RuleResult, len(rules))
	var wg sync.WaitGroup

	// Limit concurrency with semaphore
	sem := make(chan struct{}, e.maxWorkers)

	for i, rule := range rules {
		wg.Add(1)
		go func(idx int, r *CompiledRule) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			results[idx] = e.evaluateRule(r, profile.UserID, vars)
		}(i, rule)
	}

	wg.Wait()

	return results, nil
}

// evaluateRule evaluates a single rule and returns the result.
func (e *Engine) evaluateRule(rule *CompiledRule, userID string, vars map[string]any) domain.RuleResult {
	result := domain.RuleResult{
		RuleID: rule.Config.ID,
		UserID: userID,
		Action: domain.ActionNone,
	}

	out, _, err := rule.Program.Eval(vars)
	if err != nil {
		result.Err = fmt.Sprintf("evaluation error: %v", err)
		return result
	}

	result.Score = toScore(out)

	action, message, matched := matchBand(result.Score, rule.Config.Bands)
	result.Action = action
	result.Message = message
	result.Triggered = matched && action != domain.ActionNone

	return result
}

// toScore converts a CEL value to a numeric score.
func toScore(val ref.Val) float64 {
	switch v := val.(type) {
	case types.Bool:
		if v {
			return 1.0
		}
		return 0.0
	case types.Double:
		return float64(v)
	case types.Int:
		return float64(v)
	default:
		return 0.0
	}
}

// matchBand finds the matching band for a score.
// Bands are evaluated in order: lower inclusive, upper exclusive,
// a nil upper meaning unbounded.
func matchBand(score float64, bands []domain.RuleBand) (domain.FraudAction, string, bool) {
	for _, band := range bands {
		lower := 0.0
		if band.LowerLimit != nil {
			lower = *band.LowerLimit
		}
		if score < lower {
			continue
		}
		if band.UpperLimit == nil || score < *band.UpperLimit {
			return band.Action, band.Message, true
		}
	}

	return domain.ActionNone, "no matching band", false
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// ReloadRules clears all existing rules and loads new ones.
// This enables hot-reloading of rules from the database.
func (e *Engine) ReloadRules(configs []*domain.RuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*CompiledRule)

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		newRules[cfg.ID] = compiled
	}

	e.compiledRules = newRules

	return nil
}

// GetLoadedRules returns the currently loaded rule configurations.
func (e *Engine) GetLoadedRules() []*domain.RuleConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.RuleConfig, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		rules = append(rules, compiled.Config)
	}
	return rules
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}

func (e *Engine) compileRule(cfg *domain.RuleConfig) (*CompiledRule, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	outputType := ast.OutputType()
	if outputType != cel.BoolType && outputType != cel.DoubleType && outputType != cel.IntType {
		return nil, fmt.Errorf("rule %s: expression must return bool, int, or double, got %s", cfg.ID, outputType)
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &CompiledRule{
		Config:  cfg,
		Program: program,
	}, nil
}
