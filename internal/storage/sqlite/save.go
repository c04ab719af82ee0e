package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"risk-review-system/internal/models"
	"risk-review-system/internal/xerrors"
)

// CreateReviewItem сохраняет новый элемент вместе с начальным журналом аудита
func (s *SQLiteStorage) CreateReviewItem(ctx context.Context, item *models.ReviewQueueItem) error {
	args, err := reviewArgs(item)
	if err != nil {
		return err
	}

	query := `INSERT INTO review_items (` + reviewColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	return s.withRetry(func() error {
		return s.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				if isUniqueViolation(err) {
					return xerrors.Conflict("review item", item.TransactionID, "open review item already exists for transaction")
				}
				return err
			}
			return insertAudit(ctx, tx, item.ID, item.AuditLog...)
		})
	})
}

// AppendAudit добавляет запись аудита без смены состояния
func (s *SQLiteStorage) AppendAudit(ctx context.Context, itemID string, entry models.AuditEntry) error {
	return s.withRetry(func() error {
		return s.inTx(ctx, func(tx *sql.Tx) error {
			var exists int
			err := tx.QueryRowContext(ctx, `SELECT 1 FROM review_items WHERE id = ?`, itemID).Scan(&exists)
			if err == sql.ErrNoRows {
				return xerrors.NotFound("review item", itemID)
			}
			if err != nil {
				return err
			}
			return insertAudit(ctx, tx, itemID, entry)
		})
	})
}

func insertAudit(ctx context.Context, tx *sql.Tx, itemID string, entries ...models.AuditEntry) error {
	query := `INSERT INTO review_audit (id, review_id, action, actor, timestamp, details) VALUES (?, ?, ?, ?, ?, ?)`
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, query,
			e.ID, itemID, string(e.Action), e.Actor, formatTime(e.Timestamp), e.Details,
		); err != nil {
			return fmt.Errorf("failed to insert audit entry: %w", err)
		}
	}
	return nil
}

// CreatePolicyConfig сохраняет новую конфигурацию области
func (s *SQLiteStorage) CreatePolicyConfig(ctx context.Context, cfg *models.PolicyConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode policy config: %w", err)
	}

	query := `
		INSERT INTO policy_configs (organization_id, branch_id, country, config_json, version, updated_by, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	return s.withRetry(func() error {
		_, err := s.DB.ExecContext(ctx, query,
			cfg.Scope.OrganizationID, cfg.Scope.BranchID, cfg.Scope.Country,
			string(raw), cfg.Version, cfg.UpdatedBy, formatTime(cfg.UpdatedAt),
		)
		if isUniqueViolation(err) {
			return xerrors.Conflict("policy config", cfg.Scope.OrganizationID, "config already exists for scope")
		}
		return err
	})
}

// SaveUser создает или обновляет пользователя
func (s *SQLiteStorage) SaveUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, name, role, organization_id, is_active) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			role = excluded.role,
			organization_id = excluded.organization_id,
			is_active = excluded.is_active
	`
	return s.withRetry(func() error {
		_, err := s.DB.ExecContext(ctx, query,
			user.ID, user.Name, string(user.Role), user.OrganizationID, boolToInt(user.IsActive),
		)
		return err
	})
}

// SaveLedgerTransaction добавляет операцию в зеркало учетной книги, повтор игнорируется
func (s *SQLiteStorage) SaveLedgerTransaction(ctx context.Context, t *models.Transaction) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode transaction: %w", err)
	}

	query := `
		INSERT OR IGNORE INTO ledger_transactions (
			id, organization_id, type, category, counterparty_id, counterparty_tax_id, created_by, date, payload_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	return s.withRetry(func() error {
		_, err := s.DB.ExecContext(ctx, query,
			t.ID, t.OrganizationID, string(t.Type), t.Category,
			t.CounterpartyID(), t.CounterpartyTaxID(), t.CreatedBy, formatTime(t.Date), string(raw),
		)
		return err
	})
}

// inTx выполняет fn в транзакции, откатывая ее при ошибке
func (s *SQLiteStorage) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
