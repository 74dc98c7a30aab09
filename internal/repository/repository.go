// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/talon/internal/domain"
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveProfile upserts a profile snapshot keyed by user ID.
func (r *SQLRepository) SaveProfile(ctx context.Context, profile *domain.UserProfile) error {
	if profile == nil || profile.UserID == "" {
		return fmt.Errorf("%w: user_id is required", domain.ErrInvalidInput)
	}

	categories, _ := json.Marshal(profile.CategoriesShopped)
	paymentModes, _ := json.Marshal(profile.PaymentModeDistribution)
	merchants, _ := json.Marshal(profile.FavoriteMerchants)
	trend, _ := json.Marshal(profile.GMVTrend12M)

	now := time.Now().UTC()

	query := `
		INSERT INTO profiles (
			user_id, name, email, phone, registration_date,
			total_transactions, total_gmv, active_months, avg_monthly_spend,
			categories_shopped, deal_redemption_rate, return_rate,
			payment_mode_distribution, favorite_merchants,
			last_transaction_date, gmv_trend_12m, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			phone = excluded.phone,
			registration_date = excluded.registration_date,
			total_transactions = excluded.total_transactions,
			total_gmv = excluded.total_gmv,
			active_months = excluded.active_months,
			avg_monthly_spend = excluded.avg_monthly_spend,
			categories_shopped = excluded.categories_shopped,
			deal_redemption_rate = excluded.deal_redemption_rate,
			return_rate = excluded.return_rate,
			payment_mode_distribution = excluded.payment_mode_distribution,
			favorite_merchants = excluded.favorite_merchants,
			last_transaction_date = excluded.last_transaction_date,
			gmv_trend_12m = excluded.gmv_trend_12m,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		profile.UserID, profile.Name, profile.Email, profile.Phone, profile.RegistrationDate,
		profile.TotalTransactions, profile.TotalGMV, profile.ActiveMonths, profile.AvgMonthlySpend,
		string(categories), profile.DealRedemptionRate, profile.ReturnRate,
		string(paymentModes), string(merchants),
		profile.LastTransactionDate, string(trend),
		now, now,
	)
	return err
}

// GetProfile retrieves a profile snapshot by user ID.
func (r *SQLRepository) GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", domain.ErrInvalidInput)
	}

	query := `
		SELECT user_id, name, email, phone, registration_date,
			   total_transactions, total_gmv, active_months, avg_monthly_spend,
			   categories_shopped, deal_redemption_rate, return_rate,
			   payment_mode_distribution, favorite_merchants,
			   last_transaction_date, gmv_trend_12m
		FROM profiles
		WHERE user_id = ?
	`

	row := r.db.QueryRowContext(ctx, r.rebind(query), userID)
	profile, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return profile, err
}

// ListProfiles retrieves every profile, ordered by user ID.
func (r *SQLRepository) ListProfiles(ctx context.Context) ([]*domain.UserProfile, error) {
	query := `
		SELECT user_id, name, email, phone, registration_date,
			   total_transactions, total_gmv, active_months, avg_monthly_spend,
			   categories_shopped, deal_redemption_rate, return_rate,
			   payment_mode_distribution, favorite_merchants,
			   last_transaction_date, gmv_trend_12m
		FROM profiles
		ORDER BY user_id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []*domain.UserProfile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}
	return profiles, rows.Err()
}

// scanner abstracts sql.Row and sql.Rows for shared scan logic.
type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(s scanner) (*domain.UserProfile, error) {
	var p domain.UserProfile
	var categories, paymentModes, merchants, trend sql.NullString

	err := s.Scan(
		&p.UserID, &p.Name, &p.Email, &p.Phone, &p.RegistrationDate,
		&p.TotalTransactions, &p.TotalGMV, &p.ActiveMonths, &p.AvgMonthlySpend,
		&categories, &p.DealRedemptionRate, &p.ReturnRate,
		&paymentModes, &merchants,
		&p.LastTransactionDate, &trend,
	)
	if err != nil {
		return nil, err
	}

	if categories.Valid && categories.String != "" {
		json.Unmarshal([]byte(categories.String), &p.CategoriesShopped)
	}
	if paymentModes.Valid && paymentModes.String != "" {
		json.Unmarshal([]byte(paymentModes.String), &p.PaymentModeDistribution)
	}
	if merchants.Valid && merchants.String != "" {
		json.Unmarshal([]byte(merchants.String), &p.FavoriteMerchants)
	}
	if trend.Valid && trend.String != "" {
		json.Unmarshal([]byte(trend.String), &p.GMVTrend12M)
	}
	return &p, nil
}

// SaveTransactions stores a batch of transactions in a single
// database transaction. Existing IDs are skipped so seeding is
// idempotent.
func (r *SQLRepository) SaveTransactions(ctx context.Context, txns []*domain.Transaction) error {
	if len(txns) == 0 {
		return nil
	}

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer dbTx.Rollback()

	query := `
		INSERT INTO transactions (
			id, user_id, merchant_name, merchant_category, subcategory,
			amount, coupon_used, coupon_discount_pct, payment_mode,
			return_flag, refund_amount, timestamp, device_type
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`

	stmt, err := dbTx.PrepareContext(ctx, r.rebind(query))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range txns {
		if t.ID == "" || t.UserID == "" {
			return fmt.Errorf("%w: transaction id and user_id are required", domain.ErrInvalidInput)
		}
		_, err := stmt.ExecContext(ctx,
			t.ID, t.UserID, t.MerchantName, t.MerchantCategory, t.Subcategory,
			t.Amount, boolToInt(t.CouponUsed), t.CouponDiscountPct, t.PaymentMode,
			boolToInt(t.ReturnFlag), t.RefundAmount, t.Timestamp, t.DeviceType,
		)
		if err != nil {
			return err
		}
	}

	return dbTx.Commit()
}

// GetTransactionsByUser retrieves a user's transactions in
// chronological order, the order the scorer expects.
func (r *SQLRepository) GetTransactionsByUser(ctx context.Context, userID string) ([]*domain.Transaction, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", domain.ErrInvalidInput)
	}

	query := `
		SELECT id, user_id, merchant_name, merchant_category, subcategory,
			   amount, coupon_used, coupon_discount_pct, payment_mode,
			   return_flag, refund_amount, timestamp, device_type
		FROM transactions
		WHERE user_id = ?
		ORDER BY timestamp ASC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []*domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		var couponUsed, returnFlag int
		var subcategory, deviceType sql.NullString

		if err := rows.Scan(
			&t.ID, &t.UserID, &t.MerchantName, &t.MerchantCategory, &subcategory,
			&t.Amount, &couponUsed, &t.CouponDiscountPct, &t.PaymentMode,
			&returnFlag, &t.RefundAmount, &t.Timestamp, &deviceType,
		); err != nil {
			return nil, err
		}

		t.Subcategory = subcategory.String
		t.DeviceType = deviceType.String
		t.CouponUsed = couponUsed == 1
		t.ReturnFlag = returnFlag == 1
		txns = append(txns, &t)
	}
	return txns, rows.Err()
}

// CountTransactions returns the total number of stored transactions.
func (r *SQLRepository) CountTransactions(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&count)
	return count, err
}

// SaveDecision records a scoring decision for audit.
func (r *SQLRepository) SaveDecision(ctx context.Context, decision *domain.Decision) error {
	if decision == nil || decision.ID == "" {
		return fmt.Errorf("%w: decision id is required", domain.ErrInvalidInput)
	}

	result, err := json.Marshal(decision.Result)
	if err != nil {
		return fmt.Errorf("failed to encode decision result: %w", err)
	}

	query := `
		INSERT INTO decisions (id, user_id, result, trace_id, scored_at, process_ms)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		decision.ID, decision.UserID, string(result),
		decision.TraceID, decision.ScoredAt, decision.ProcessMs,
	)
	return err
}

// GetDecision retrieves a decision by ID.
func (r *SQLRepository) GetDecision(ctx context.Context, decisionID string) (*domain.Decision, error) {
	if decisionID == "" {
		return nil, fmt.Errorf("%w: decision id is required", domain.ErrInvalidInput)
	}

	query := `
		SELECT id, user_id, result, trace_id, scored_at, process_ms
		FROM decisions
		WHERE id = ?
	`

	var d domain.Decision
	var result string
	var traceID sql.NullString

	err := r.db.QueryRowContext(ctx, r.rebind(query), decisionID).Scan(
		&d.ID, &d.UserID, &result, &traceID, &d.ScoredAt, &d.ProcessMs,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	d.TraceID = traceID.String
	if err := json.Unmarshal([]byte(result), &d.Result); err != nil {
		return nil, fmt.Errorf("failed to parse decision result: %w", err)
	}
	return &d, nil
}

// ListDecisionsByUser retrieves a user's decisions, newest first.
func (r *SQLRepository) ListDecisionsByUser(ctx context.Context, userID string) ([]*domain.Decision, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", domain.ErrInvalidInput)
	}

	query := `
		SELECT id, user_id, result, trace_id, scored_at, process_ms
		FROM decisions
		WHERE user_id = ?
		ORDER BY scored_at DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []*domain.Decision
	for rows.Next() {
		var d domain.Decision
		var result string
		var traceID sql.NullString

		if err := rows.Scan(&d.ID, &d.UserID, &result, &traceID, &d.ScoredAt, &d.ProcessMs); err != nil {
			return nil, err
		}

		d.TraceID = traceID.String
		if err := json.Unmarshal([]byte(result), &d.Result); err != nil {
			return nil, fmt.Errorf("failed to parse decision result for %s: %w", d.ID, err)
		}
		decisions = append(decisions, &d)
	}
	return decisions, rows.Err()
}

// SaveRuleConfig stores an overlay rule configuration.
func (r *SQLRepository) SaveRuleConfig(ctx context.Context, rule *domain.RuleConfig) error {
	if rule == nil || rule.ID == "" {
		return fmt.Errorf("%w: rule id is required", domain.ErrInvalidInput)
	}

	bands, _ := json.Marshal(rule.Bands)

	version := rule.Version
	if version == "" {
		version = "1.0"
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO rule_configs (
			id, name, description, version, expression, bands, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, version) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			bands = excluded.bands,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, rule.Description, version,
		rule.Expression, string(bands), boolToInt(rule.Enabled),
		now, now,
	)
	return err
}

// GetRuleConfig retrieves the latest enabled version of a rule.
func (r *SQLRepository) GetRuleConfig(ctx context.Context, ruleID string) (*domain.RuleConfig, error) {
	if ruleID == "" {
		return nil, fmt.Errorf("%w: rule id is required", domain.ErrInvalidInput)
	}

	query := `
		SELECT id, name, description, version, expression, bands, enabled
		FROM rule_configs
		WHERE id = ? AND enabled = 1
		ORDER BY version DESC
		LIMIT 1
	`

	var cfg domain.RuleConfig
	var bands string
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), ruleID).Scan(
		&cfg.ID, &cfg.Name, &cfg.Description, &cfg.Version,
		&cfg.Expression, &bands, &enabled,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	cfg.Enabled = enabled == 1
	json.Unmarshal([]byte(bands), &cfg.Bands)
	return &cfg, nil
}

// ListRuleConfigs retrieves all enabled overlay rules.
func (r *SQLRepository) ListRuleConfigs(ctx context.Context) ([]*domain.RuleConfig, error) {
	query := `
		SELECT id, name, description, version, expression, bands, enabled
		FROM rule_configs
		WHERE enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*domain.RuleConfig
	for rows.Next() {
		var cfg domain.RuleConfig
		var bands string
		var enabled int

		if err := rows.Scan(
			&cfg.ID, &cfg.Name, &cfg.Description, &cfg.Version,
			&cfg.Expression, &bands, &enabled,
		); err != nil {
			return nil, err
		}

		cfg.Enabled = enabled == 1
		json.Unmarshal([]byte(bands), &cfg.Bands)
		configs = append(configs, &cfg)
	}
	return configs, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
