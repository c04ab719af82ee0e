package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"risk-review-system/internal/models"
	"risk-review-system/internal/xerrors"
)

// UpdateReviewItem сохраняет состояние элемента при совпадении версии и добавляет записи аудита
// в той же транзакции. При успехе item.Version увеличивается.
func (s *SQLiteStorage) UpdateReviewItem(ctx context.Context, item *models.ReviewQueueItem, expectedVersion int, entries ...models.AuditEntry) error {
	var decision sql.NullString
	if item.ReviewDecision != nil {
		raw, err := json.Marshal(item.ReviewDecision)
		if err != nil {
			return fmt.Errorf("failed to encode review decision: %w", err)
		}
		decision = sql.NullString{String: string(raw), Valid: true}
	}

	query := `
		UPDATE review_items
		SET status = ?,
		    priority = ?,
		    assigned_to = ?,
		    reviewed_by = ?,
		    decision_json = ?,
		    second_approval_required = ?,
		    second_approved_by = ?,
		    updated_at = ?,
		    resolved_at = ?,
		    version = version + 1
		WHERE id = ? AND version = ?
	`

	err := s.withRetry(func() error {
		return s.inTx(ctx, func(tx *sql.Tx) error {
			res, err := tx.ExecContext(ctx, query,
				string(item.Status), string(item.Priority), item.AssignedTo, item.ReviewedBy, decision,
				boolToInt(item.SecondApprovalRequired), item.SecondApprovedBy,
				formatTime(item.UpdatedAt), formatNullTime(item.ResolvedAt),
				item.ID, expectedVersion,
			)
			if err != nil {
				return err
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if affected == 0 {
				return versionMismatch(ctx, tx, "review_items", "review item", item.ID, expectedVersion)
			}
			return insertAudit(ctx, tx, item.ID, entries...)
		})
	})
	if err != nil {
		return err
	}

	item.Version = expectedVersion + 1
	return nil
}

// UpdatePolicyConfig сохраняет конфигурацию при совпадении версии
func (s *SQLiteStorage) UpdatePolicyConfig(ctx context.Context, cfg *models.PolicyConfig, expectedVersion int) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode policy config: %w", err)
	}

	query := `
		UPDATE policy_configs
		SET config_json = ?, version = ?, updated_by = ?, updated_at = ?
		WHERE organization_id = ? AND branch_id = ? AND country = ? AND version = ?
	`
	return s.withRetry(func() error {
		res, err := s.DB.ExecContext(ctx, query,
			string(raw), cfg.Version, cfg.UpdatedBy, formatTime(cfg.UpdatedAt),
			cfg.Scope.OrganizationID, cfg.Scope.BranchID, cfg.Scope.Country, expectedVersion,
		)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return xerrors.Conflict("policy config", cfg.Scope.OrganizationID,
				"version %d is stale or config does not exist", expectedVersion)
		}
		return nil
	})
}

// versionMismatch различает отсутствующую запись и устаревшую версию
func versionMismatch(ctx context.Context, tx *sql.Tx, table, entity, id string, expected int) error {
	var current int
	err := tx.QueryRowContext(ctx, `SELECT version FROM `+table+` WHERE id = ?`, id).Scan(&current)
	if err == sql.ErrNoRows {
		return xerrors.NotFound(entity, id)
	}
	if err != nil {
		return err
	}
	return xerrors.Conflict(entity, id, "expected version %d, current %d", expected, current)
}
