package models

import "time"

// ReviewStatus состояние элемента очереди проверки
type ReviewStatus string

const (
	ReviewStatusPending   ReviewStatus = "PENDING"
	ReviewStatusInReview  ReviewStatus = "IN_REVIEW"
	ReviewStatusApproved  ReviewStatus = "APPROVED"
	ReviewStatusRejected  ReviewStatus = "REJECTED"
	ReviewStatusEscalated ReviewStatus = "ESCALATED"
)

// IsTerminal финальные состояния, из которых переходов нет
func (s ReviewStatus) IsTerminal() bool {
	return s == ReviewStatusApproved || s == ReviewStatusRejected
}

// IsDecidable состояния, из которых допустимо approve/reject
func (s ReviewStatus) IsDecidable() bool {
	return s == ReviewStatusPending || s == ReviewStatusInReview
}

// ReviewStatuses все состояния в порядке жизненного цикла
func ReviewStatuses() []ReviewStatus {
	return []ReviewStatus{
		ReviewStatusPending, ReviewStatusInReview, ReviewStatusEscalated,
		ReviewStatusApproved, ReviewStatusRejected,
	}
}

// Priority приоритет элемента очереди
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Rank числовой ранг приоритета для сортировки (больше - важнее)
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	}
	return 0
}

// IsValid проверяет, что приоритет входит в допустимый набор
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Priorities все приоритеты от высшего к низшему
func Priorities() []Priority {
	return []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}
}

// AuditAction действие в журнале аудита
type AuditAction string

const (
	AuditCreated        AuditAction = "CREATED"
	AuditAssigned       AuditAction = "ASSIGNED"
	AuditApproved       AuditAction = "APPROVED"
	AuditRejected       AuditAction = "REJECTED"
	AuditEscalated      AuditAction = "ESCALATED"
	AuditSecondApproved AuditAction = "SECOND_APPROVED"
	AuditSecondRejected AuditAction = "SECOND_REJECTED"
	AuditCommented      AuditAction = "COMMENTED"
	AuditReevaluated    AuditAction = "REEVALUATED"
)

// AuditEntry запись журнала аудита, только добавляется
type AuditEntry struct {
	ID        string      `json:"id"`
	Action    AuditAction `json:"action"`
	Actor     string      `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Details   string      `json:"details,omitempty"`
}

// ReviewReason причина постановки в очередь
type ReviewReason struct {
	Code    ReasonCode `json:"code"`
	Details string     `json:"details"`
}

// ReviewDecision решение проверяющего
type ReviewDecision struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason"`
	Comments string `json:"comments,omitempty"`
}

// ReviewQueueItem элемент очереди ручной проверки
type ReviewQueueItem struct {
	ID                     string          `json:"id"`
	TransactionID          string          `json:"transaction_id"`
	OrganizationID         string          `json:"organization_id"`
	BranchID               string          `json:"branch_id,omitempty"`
	Transaction            Transaction     `json:"transaction"`
	RiskAssessment         RiskAssessment  `json:"risk_assessment"`
	ReviewReason           ReviewReason    `json:"review_reason"`
	Status                 ReviewStatus    `json:"status"`
	Priority               Priority        `json:"priority"`
	AssignedTo             string          `json:"assigned_to,omitempty"`
	ReviewedBy             string          `json:"reviewed_by,omitempty"`
	DueDate                time.Time       `json:"due_date"`
	ReviewDecision         *ReviewDecision `json:"review_decision,omitempty"`
	SecondApprovalRequired bool            `json:"second_approval_required"`
	SecondApprovedBy       string          `json:"second_approved_by,omitempty"`
	AuditLog               []AuditEntry    `json:"audit_log"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
	ResolvedAt             *time.Time      `json:"resolved_at,omitempty"`
	Version                int             `json:"version"`
	SLABreached            bool            `json:"sla_breached"`
}

// IsOverdue вычисляет нарушение SLA на момент now
func (i *ReviewQueueItem) IsOverdue(now time.Time) bool {
	return !i.Status.IsTerminal() && now.After(i.DueDate)
}

// ReviewFilters фильтры выборки открытых элементов
type ReviewFilters struct {
	AssignedTo string   `json:"assigned_to,omitempty"`
	Priority   Priority `json:"priority,omitempty"`
	BranchID   string   `json:"branch_id,omitempty"`
	Limit      int      `json:"limit,omitempty"`
}

// ReviewStats агрегированная статистика очереди
type ReviewStats struct {
	OrganizationID   string               `json:"organization_id"`
	ByStatus         map[ReviewStatus]int `json:"by_status"`
	ByPriority       map[Priority]int     `json:"by_priority"`
	Decided          int                  `json:"decided"`
	AvgReviewLatency time.Duration        `json:"avg_review_latency_ns"`
	RebuiltAt        *time.Time           `json:"rebuilt_at,omitempty"`
}
