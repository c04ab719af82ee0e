package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"risk-review-system/internal/models"
	"risk-review-system/internal/storage"
	"risk-review-system/internal/xerrors"
)

const openStatuses = `status NOT IN ('APPROVED', 'REJECTED')`

const priorityOrder = `CASE priority WHEN 'critical' THEN 3 WHEN 'high' THEN 2 WHEN 'medium' THEN 1 ELSE 0 END`

// GetReviewItem получает элемент вместе с журналом аудита
func (s *SQLiteStorage) GetReviewItem(ctx context.Context, id string) (*models.ReviewQueueItem, error) {
	query := `SELECT ` + reviewColumns + ` FROM review_items WHERE id = ?`
	return s.getReviewItem(ctx, "review item", id, query, id)
}

// GetOpenReviewItemByTransaction получает открытый элемент по операции
func (s *SQLiteStorage) GetOpenReviewItemByTransaction(ctx context.Context, transactionID string) (*models.ReviewQueueItem, error) {
	query := `SELECT ` + reviewColumns + ` FROM review_items WHERE transaction_id = ? AND ` + openStatuses
	return s.getReviewItem(ctx, "open review item", transactionID, query, transactionID)
}

func (s *SQLiteStorage) getReviewItem(ctx context.Context, entity, key, query string, args ...any) (*models.ReviewQueueItem, error) {
	item, err := scanReviewItem(s.DB.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, xerrors.NotFound(entity, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get review item: %w", err)
	}
	if err := s.loadAudit(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// ListOpenReviewItems открытые элементы организации, приоритет по убыванию, старые первыми
func (s *SQLiteStorage) ListOpenReviewItems(ctx context.Context, organizationID string, filters models.ReviewFilters) ([]*models.ReviewQueueItem, error) {
	var (
		where = []string{"organization_id = ?", openStatuses}
		args  = []any{organizationID}
	)
	if filters.AssignedTo != "" {
		where = append(where, "assigned_to = ?")
		args = append(args, filters.AssignedTo)
	}
	if filters.Priority != "" {
		where = append(where, "priority = ?")
		args = append(args, string(filters.Priority))
	}
	if filters.BranchID != "" {
		where = append(where, "branch_id = ?")
		args = append(args, filters.BranchID)
	}

	query := `SELECT ` + reviewColumns + ` FROM review_items WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY ` + priorityOrder + ` DESC, created_at ASC, id ASC`
	if filters.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filters.Limit)
	}
	return s.listReviewItems(ctx, query, args...)
}

// ListReviewItems все элементы организации (пустой organizationID - все)
func (s *SQLiteStorage) ListReviewItems(ctx context.Context, organizationID string) ([]*models.ReviewQueueItem, error) {
	if organizationID == "" {
		return s.listReviewItems(ctx, `SELECT `+reviewColumns+` FROM review_items ORDER BY created_at ASC, id ASC`)
	}
	return s.listReviewItems(ctx,
		`SELECT `+reviewColumns+` FROM review_items WHERE organization_id = ? ORDER BY created_at ASC, id ASC`,
		organizationID)
}

func (s *SQLiteStorage) listReviewItems(ctx context.Context, query string, args ...any) ([]*models.ReviewQueueItem, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list review items: %w", err)
	}

	items := make([]*models.ReviewQueueItem, 0)
	for rows.Next() {
		item, err := scanReviewItem(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// соединение одно, журнал читается после закрытия выборки
	rows.Close()

	for _, item := range items {
		if err := s.loadAudit(ctx, item); err != nil {
			return nil, err
		}
	}
	return items, nil
}

func (s *SQLiteStorage) loadAudit(ctx context.Context, item *models.ReviewQueueItem) error {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, action, actor, timestamp, details FROM review_audit WHERE review_id = ? ORDER BY seq ASC`,
		item.ID)
	if err != nil {
		return fmt.Errorf("failed to load audit log: %w", err)
	}
	defer rows.Close()

	log := make([]models.AuditEntry, 0)
	for rows.Next() {
		var (
			e  models.AuditEntry
			ts string
		)
		if err := rows.Scan(&e.ID, &e.Action, &e.Actor, &ts, &e.Details); err != nil {
			return err
		}
		if e.Timestamp, err = parseTime(ts); err != nil {
			return err
		}
		log = append(log, e)
	}
	item.AuditLog = log
	return rows.Err()
}

// CountOpenAssignments число открытых элементов на каждого назначенного проверяющего
func (s *SQLiteStorage) CountOpenAssignments(ctx context.Context, organizationID string) (map[string]int, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT assigned_to, COUNT(*) FROM review_items
		WHERE organization_id = ? AND assigned_to != '' AND `+openStatuses+`
		GROUP BY assigned_to
	`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to count assignments: %w", err)
	}
	defer rows.Close()

	load := make(map[string]int)
	for rows.Next() {
		var (
			user  string
			count int
		)
		if err := rows.Scan(&user, &count); err != nil {
			return nil, err
		}
		load[user] = count
	}
	return load, rows.Err()
}

// GetPolicyConfig получает конфигурацию области
func (s *SQLiteStorage) GetPolicyConfig(ctx context.Context, scope models.PolicyScope) (*models.PolicyConfig, error) {
	var (
		raw     string
		version int
	)
	err := s.DB.QueryRowContext(ctx, `
		SELECT config_json, version FROM policy_configs
		WHERE organization_id = ? AND branch_id = ? AND country = ?
	`, scope.OrganizationID, scope.BranchID, scope.Country).Scan(&raw, &version)
	if err == sql.ErrNoRows {
		return nil, xerrors.NotFound("policy config", scope.OrganizationID+"/"+scope.Country)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get policy config: %w", err)
	}

	var cfg models.PolicyConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode policy config: %w", err)
	}
	cfg.Version = version
	return &cfg, nil
}

// GetUser получает пользователя справочника
func (s *SQLiteStorage) GetUser(ctx context.Context, id string) (*models.User, error) {
	var (
		u      models.User
		active int
	)
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, name, role, organization_id, is_active FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Name, &u.Role, &u.OrganizationID, &active)
	if err == sql.ErrNoRows {
		return nil, xerrors.NotFound("user", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.IsActive = active == 1
	return &u, nil
}

// ListReviewers активные пользователи организации с ролью проверяющего
func (s *SQLiteStorage) ListReviewers(ctx context.Context, organizationID string) ([]*models.User, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, name, role, organization_id FROM users
		WHERE organization_id = ? AND is_active = 1 AND role IN (?, ?, ?)
		ORDER BY id ASC
	`, organizationID, string(models.RoleAdmin), string(models.RoleSeniorAccountant), string(models.RoleAccountant))
	if err != nil {
		return nil, fmt.Errorf("failed to list reviewers: %w", err)
	}
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		u := &models.User{IsActive: true}
		if err := rows.Scan(&u.ID, &u.Name, &u.Role, &u.OrganizationID); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ListTransactions операции зеркала учетной книги по фильтру, по возрастанию даты
func (s *SQLiteStorage) ListTransactions(ctx context.Context, q storage.HistoryQuery) ([]*models.Transaction, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		where = append(where, cond)
		args = append(args, arg)
	}
	add("organization_id = ?", q.OrganizationID)
	if q.Type != "" {
		add("type = ?", string(q.Type))
	}
	if q.Category != "" {
		add("category = ?", q.Category)
	}
	if q.CounterpartyID != "" {
		add("counterparty_id = ?", q.CounterpartyID)
	}
	if q.CreatedBy != "" {
		add("created_by = ?", q.CreatedBy)
	}
	if !q.From.IsZero() {
		add("date >= ?", formatTime(q.From))
	}
	if !q.To.IsZero() {
		add("date <= ?", formatTime(q.To))
	}
	if q.ExcludeID != "" {
		add("id != ?", q.ExcludeID)
	}

	// последние Limit операций, затем по возрастанию даты
	query := `SELECT payload_json, date FROM ledger_transactions WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY date DESC, id DESC`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}
	query = `SELECT payload_json FROM (` + query + `) ORDER BY date ASC`

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger transactions: %w", err)
	}
	defer rows.Close()

	txs := make([]*models.Transaction, 0)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var t models.Transaction
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			return nil, fmt.Errorf("failed to decode ledger transaction: %w", err)
		}
		txs = append(txs, &t)
	}
	return txs, rows.Err()
}

// CounterpartyActivity число операций по каждому контрагенту и типу с данным налоговым идентификатором
func (s *SQLiteStorage) CounterpartyActivity(ctx context.Context, organizationID, taxID string) ([]storage.CounterpartyActivity, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT counterparty_id, counterparty_tax_id, type, COUNT(*) FROM ledger_transactions
		WHERE organization_id = ? AND counterparty_tax_id = ?
		GROUP BY counterparty_id, counterparty_tax_id, type
		ORDER BY counterparty_id ASC, type ASC
	`, organizationID, taxID)
	if err != nil {
		return nil, fmt.Errorf("failed to query counterparty activity: %w", err)
	}
	defer rows.Close()

	out := make([]storage.CounterpartyActivity, 0)
	for rows.Next() {
		var a storage.CounterpartyActivity
		if err := rows.Scan(&a.CounterpartyID, &a.TaxID, &a.Type, &a.Count); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
