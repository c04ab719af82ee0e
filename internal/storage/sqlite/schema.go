package sqlite

// initSchema инициализирует схему БД
func (s *SQLiteStorage) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS review_items (
		id TEXT PRIMARY KEY,
		transaction_id TEXT NOT NULL,
		organization_id TEXT NOT NULL,
		branch_id TEXT NOT NULL DEFAULT '',
		transaction_json TEXT NOT NULL,
		assessment_json TEXT NOT NULL,
		reason_code TEXT NOT NULL,
		reason_details TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		priority TEXT NOT NULL,
		assigned_to TEXT NOT NULL DEFAULT '',
		reviewed_by TEXT NOT NULL DEFAULT '',
		due_date TEXT NOT NULL,
		decision_json TEXT,
		second_approval_required INTEGER NOT NULL DEFAULT 0,
		second_approved_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		resolved_at TEXT,
		version INTEGER NOT NULL DEFAULT 1
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_review_open_transaction
		ON review_items(transaction_id) WHERE status NOT IN ('APPROVED', 'REJECTED');
	CREATE INDEX IF NOT EXISTS idx_review_org_status ON review_items(organization_id, status);
	CREATE INDEX IF NOT EXISTS idx_review_assigned ON review_items(assigned_to);

	CREATE TABLE IF NOT EXISTS review_audit (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT UNIQUE NOT NULL,
		review_id TEXT NOT NULL REFERENCES review_items(id),
		action TEXT NOT NULL,
		actor TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		details TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_audit_review ON review_audit(review_id, seq);

	CREATE TABLE IF NOT EXISTS policy_configs (
		organization_id TEXT NOT NULL,
		branch_id TEXT NOT NULL DEFAULT '',
		country TEXT NOT NULL,
		config_json TEXT NOT NULL,
		version INTEGER NOT NULL,
		updated_by TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (organization_id, branch_id, country)
	);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL,
		organization_id TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_users_org ON users(organization_id);

	CREATE TABLE IF NOT EXISTS ledger_transactions (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		counterparty_id TEXT NOT NULL DEFAULT '',
		counterparty_tax_id TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		payload_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ledger_org_date ON ledger_transactions(organization_id, date);
	CREATE INDEX IF NOT EXISTS idx_ledger_counterparty ON ledger_transactions(counterparty_id, date);
	CREATE INDEX IF NOT EXISTS idx_ledger_tax_id ON ledger_transactions(organization_id, counterparty_tax_id);
	CREATE INDEX IF NOT EXISTS idx_ledger_created_by ON ledger_transactions(created_by, date);
	`

	_, err := s.DB.Exec(query)
	return err
}
