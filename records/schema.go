package records

// Timestamps are unix nanoseconds. Amounts are canonical decimal strings.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY NOT NULL,
		wallet_address TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);`,

	`CREATE TABLE IF NOT EXISTS farmers (
		id TEXT PRIMARY KEY NOT NULL,
		collector_id TEXT NOT NULL,
		name TEXT NOT NULL,
		age INTEGER NOT NULL,
		domicile TEXT NOT NULL DEFAULT '',
		token_id TEXT,
		created_at INTEGER NOT NULL,
		CONSTRAINT chk_age CHECK (age >= 0)
	);`,

	`CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY NOT NULL,
		farmer_id TEXT NOT NULL,
		name TEXT NOT NULL,
		commodity TEXT NOT NULL DEFAULT '',
		token_id TEXT,
		refundable INTEGER NOT NULL DEFAULT 0,
		closed INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);`,

	`CREATE TABLE IF NOT EXISTS submissions (
		id TEXT PRIMARY KEY NOT NULL,
		kind TEXT NOT NULL,
		subject_id TEXT NOT NULL,
		status TEXT NOT NULL,
		commodity TEXT NOT NULL DEFAULT '',
		value_project TEXT NOT NULL DEFAULT '',
		max_crowd_funding TEXT NOT NULL DEFAULT '',
		metadata_cid TEXT NOT NULL DEFAULT '',
		submitted_by TEXT NOT NULL,
		approved_by TEXT,
		rejection_reason TEXT,
		blockchain_tx_id TEXT,
		minted_token_id TEXT,
		deleted INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		CONSTRAINT chk_kind CHECK (kind IN ('FARMER', 'PROJECT')),
		CONSTRAINT chk_status CHECK (status IN ('SUBMITTED', 'APPROVED', 'MINTED', 'REJECTED'))
	);`,

	`CREATE UNIQUE INDEX IF NOT EXISTS idx_submissions_subject
		ON submissions (kind, subject_id) WHERE deleted = 0;`,

	`CREATE TABLE IF NOT EXISTS blockchain_transactions (
		id TEXT PRIMARY KEY NOT NULL,
		chain_id INTEGER NOT NULL,
		hash TEXT,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		from_address TEXT NOT NULL,
		to_address TEXT,
		block_number INTEGER NOT NULL DEFAULT 0,
		gas_used INTEGER NOT NULL DEFAULT 0,
		gas_price TEXT,
		event_data TEXT,
		error_message TEXT,
		created_at INTEGER NOT NULL,
		CONSTRAINT chk_status CHECK (status IN ('CONFIRMED', 'FAILED'))
	);`,

	`CREATE INDEX IF NOT EXISTS idx_blockchain_transactions_hash
		ON blockchain_transactions (hash);`,

	`CREATE TABLE IF NOT EXISTS investments (
		id TEXT PRIMARY KEY NOT NULL,
		user_id TEXT NOT NULL,
		project_id TEXT NOT NULL,
		chain_id INTEGER NOT NULL,
		amount TEXT NOT NULL,
		status TEXT NOT NULL,
		receipt_token_id TEXT,
		tx_hash TEXT,
		block_number INTEGER NOT NULL DEFAULT 0,
		deleted INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		CONSTRAINT chk_status CHECK (status IN ('CREATED', 'CONFIRMED'))
	);`,

	`CREATE INDEX IF NOT EXISTS idx_investments_user
		ON investments (user_id, project_id) WHERE deleted = 0;`,

	`CREATE TABLE IF NOT EXISTS claims (
		id TEXT PRIMARY KEY NOT NULL,
		kind TEXT NOT NULL,
		user_id TEXT NOT NULL,
		project_id TEXT NOT NULL,
		chain_id INTEGER NOT NULL,
		amount TEXT,
		status TEXT NOT NULL,
		tx_hash TEXT,
		block_number INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		CONSTRAINT chk_kind CHECK (kind IN ('PROFIT', 'REFUND')),
		CONSTRAINT chk_status CHECK (status IN ('CREATED', 'CONFIRMED'))
	);`,

	`CREATE TABLE IF NOT EXISTS profit_pools (
		project_id TEXT PRIMARY KEY NOT NULL,
		total_profit TEXT NOT NULL,
		claimed_total TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);`,

	`CREATE TABLE IF NOT EXISTS portfolios (
		user_id TEXT PRIMARY KEY NOT NULL,
		total_invested TEXT NOT NULL,
		active_investments INTEGER NOT NULL,
		project_count INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);`,

	`CREATE TABLE IF NOT EXISTS chain_contract_configs (
		id TEXT PRIMARY KEY NOT NULL,
		name TEXT NOT NULL,
		chain_id INTEGER NOT NULL,
		address TEXT NOT NULL,
		abi TEXT NOT NULL,
		rpc_url TEXT,
		deleted INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);`,

	`CREATE INDEX IF NOT EXISTS idx_chain_contract_configs_lookup
		ON chain_contract_configs (name, chain_id, created_at);`,
}
