package repository

// Schema definitions for the Talon database.
// Compatible with both SQLite and PostgreSQL.

const schemaProfiles = `
CREATE TABLE IF NOT EXISTS profiles (
    user_id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    email TEXT,
    phone TEXT,
    registration_date TEXT NOT NULL,
    total_transactions INTEGER NOT NULL DEFAULT 0,
    total_gmv REAL NOT NULL DEFAULT 0,
    active_months INTEGER NOT NULL DEFAULT 0,
    avg_monthly_spend REAL NOT NULL DEFAULT 0,
    categories_shopped TEXT,
    deal_redemption_rate REAL NOT NULL DEFAULT 0,
    return_rate REAL NOT NULL DEFAULT 0,
    payment_mode_distribution TEXT,
    favorite_merchants TEXT,
    last_transaction_date TEXT,
    gmv_trend_12m TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

const schemaTransactions = `
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    merchant_name TEXT NOT NULL,
    merchant_category TEXT NOT NULL,
    subcategory TEXT,
    amount REAL NOT NULL,
    coupon_used INTEGER NOT NULL DEFAULT 0,
    coupon_discount_pct REAL NOT NULL DEFAULT 0,
    payment_mode TEXT NOT NULL,
    return_flag INTEGER NOT NULL DEFAULT 0,
    refund_amount REAL NOT NULL DEFAULT 0,
    timestamp TEXT NOT NULL,
    device_type TEXT
);

CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id);
CREATE INDEX IF NOT EXISTS idx_transactions_user_ts ON transactions(user_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_transactions_category ON transactions(merchant_category);
`

const schemaDecisions = `
CREATE TABLE IF NOT EXISTS decisions (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    result TEXT NOT NULL,
    trace_id TEXT,
    scored_at TIMESTAMP NOT NULL,
    process_ms INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_decisions_user ON decisions(user_id);
CREATE INDEX IF NOT EXISTS idx_decisions_scored_at ON decisions(scored_at);
`

const schemaRuleConfigs = `
CREATE TABLE IF NOT EXISTS rule_configs (
    id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    bands TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, version)
);

CREATE INDEX IF NOT EXISTS idx_rule_configs_enabled ON rule_configs(enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaProfiles,
		schemaTransactions,
		schemaDecisions,
		schemaRuleConfigs,
	}
}
