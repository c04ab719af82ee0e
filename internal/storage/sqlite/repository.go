package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"risk-review-system/internal/models"
	"risk-review-system/internal/storage"
)

var (
	_ storage.ReviewRepository       = (*SQLiteStorage)(nil)
	_ storage.PolicyConfigRepository = (*SQLiteStorage)(nil)
	_ storage.UserRepository         = (*SQLiteStorage)(nil)
	_ storage.HistoryRepository      = (*SQLiteStorage)(nil)
)

// timeLayout фиксированной ширины, строки сортируются как время
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

const reviewColumns = `id, transaction_id, organization_id, branch_id, transaction_json, assessment_json,
	reason_code, reason_details, status, priority, assigned_to, reviewed_by, due_date, decision_json,
	second_approval_required, second_approved_by, created_at, updated_at, resolved_at, version`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanReviewItem читает строку review_items без журнала аудита
func scanReviewItem(row rowScanner) (*models.ReviewQueueItem, error) {
	var (
		item                          models.ReviewQueueItem
		txJSON, assessmentJSON        string
		dueDate, createdAt, updatedAt string
		decisionJSON, resolvedAt      sql.NullString
		secondApproval                int
	)
	err := row.Scan(
		&item.ID, &item.TransactionID, &item.OrganizationID, &item.BranchID, &txJSON, &assessmentJSON,
		&item.ReviewReason.Code, &item.ReviewReason.Details, &item.Status, &item.Priority,
		&item.AssignedTo, &item.ReviewedBy, &dueDate, &decisionJSON,
		&secondApproval, &item.SecondApprovedBy, &createdAt, &updatedAt, &resolvedAt, &item.Version,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(txJSON), &item.Transaction); err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}
	if err := json.Unmarshal([]byte(assessmentJSON), &item.RiskAssessment); err != nil {
		return nil, fmt.Errorf("failed to decode risk assessment: %w", err)
	}
	if decisionJSON.Valid {
		var d models.ReviewDecision
		if err := json.Unmarshal([]byte(decisionJSON.String), &d); err != nil {
			return nil, fmt.Errorf("failed to decode review decision: %w", err)
		}
		item.ReviewDecision = &d
	}

	if item.DueDate, err = parseTime(dueDate); err != nil {
		return nil, err
	}
	if item.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if item.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if resolvedAt.Valid {
		at, err := parseTime(resolvedAt.String)
		if err != nil {
			return nil, err
		}
		item.ResolvedAt = &at
	}
	item.SecondApprovalRequired = secondApproval == 1
	item.AuditLog = []models.AuditEntry{}
	return &item, nil
}

// reviewArgs значения колонок в порядке reviewColumns
func reviewArgs(item *models.ReviewQueueItem) ([]any, error) {
	txJSON, err := json.Marshal(item.Transaction)
	if err != nil {
		return nil, fmt.Errorf("failed to encode transaction: %w", err)
	}
	assessmentJSON, err := json.Marshal(item.RiskAssessment)
	if err != nil {
		return nil, fmt.Errorf("failed to encode risk assessment: %w", err)
	}
	var decision sql.NullString
	if item.ReviewDecision != nil {
		raw, err := json.Marshal(item.ReviewDecision)
		if err != nil {
			return nil, fmt.Errorf("failed to encode review decision: %w", err)
		}
		decision = sql.NullString{String: string(raw), Valid: true}
	}

	return []any{
		item.ID, item.TransactionID, item.OrganizationID, item.BranchID, string(txJSON), string(assessmentJSON),
		string(item.ReviewReason.Code), item.ReviewReason.Details, string(item.Status), string(item.Priority),
		item.AssignedTo, item.ReviewedBy, formatTime(item.DueDate), decision,
		boolToInt(item.SecondApprovalRequired), item.SecondApprovedBy,
		formatTime(item.CreatedAt), formatTime(item.UpdatedAt), formatNullTime(item.ResolvedAt), item.Version,
	}, nil
}
