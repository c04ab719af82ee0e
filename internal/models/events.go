package models

import "time"

// LedgerTransactionEvent событие создания операции в учетной книге (входящий топик)
type LedgerTransactionEvent struct {
	EventID     string       `json:"event_id"`
	EventType   string       `json:"event_type"`
	Transaction *Transaction `json:"transaction"`
	Timestamp   time.Time    `json:"timestamp"`
}

// ReviewEventType тип события для внешней доставки уведомлений
type ReviewEventType string

const (
	EventReviewEnqueued          ReviewEventType = "review_enqueued"
	EventReviewAssigned          ReviewEventType = "review_assigned"
	EventReviewApproved          ReviewEventType = "review_approved"
	EventReviewRejected          ReviewEventType = "review_rejected"
	EventReviewEscalated         ReviewEventType = "review_escalated"
	EventTransactionAutoApproved ReviewEventType = "transaction_auto_approved"
)

// ReviewEvent событие очереди проверки (исходящий топик)
type ReviewEvent struct {
	EventID        string          `json:"event_id"`
	EventType      ReviewEventType `json:"event_type"`
	ReviewID       string          `json:"review_id,omitempty"`
	TransactionID  string          `json:"transaction_id"`
	OrganizationID string          `json:"organization_id"`
	Status         ReviewStatus    `json:"status,omitempty"`
	Priority       Priority        `json:"priority,omitempty"`
	Actor          string          `json:"actor,omitempty"`
	ReasonCode     ReasonCode      `json:"reason_code,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}
