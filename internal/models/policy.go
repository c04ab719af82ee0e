package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role роль пользователя из справочника пользователей (закрытый набор)
type Role string

const (
	RoleAdmin            Role = "admin"
	RoleExecutive        Role = "executive"
	RoleSeniorAccountant Role = "senior_accountant"
	RoleAccountant       Role = "accountant"
	RoleAssistant        Role = "assistant"
)

// IsValid проверяет, что роль входит в закрытый набор
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleExecutive, RoleSeniorAccountant, RoleAccountant, RoleAssistant:
		return true
	}
	return false
}

// IsReviewer роли, которым может быть назначена проверка
func (r Role) IsReviewer() bool {
	return r == RoleAdmin || r == RoleSeniorAccountant || r == RoleAccountant
}

// ReasonCode причина решения политики
type ReasonCode string

const (
	ReasonAutoProcessingDisabled ReasonCode = "AUTO_PROCESSING_DISABLED"
	ReasonMandatoryReview        ReasonCode = "MANDATORY_REVIEW"
	ReasonExceedsAmountThreshold ReasonCode = "EXCEEDS_AMOUNT_THRESHOLD"
	ReasonHighRiskScore          ReasonCode = "HIGH_RISK_SCORE"
	ReasonHighFraudConfidence    ReasonCode = "HIGH_FRAUD_CONFIDENCE"
	ReasonRoleRestriction        ReasonCode = "ROLE_RESTRICTION"
	ReasonError                  ReasonCode = "ERROR"
	ReasonAutoApproved           ReasonCode = "AUTO_APPROVED"
)

// MandatoryCase бизнес-правило, требующее ручной проверки независимо от балла
type MandatoryCase string

const (
	CaseNewCounterparty    MandatoryCase = "NEW_COUNTERPARTY"
	CaseHighRiskCountry    MandatoryCase = "HIGH_RISK_COUNTRY"
	CaseExecutiveExpense   MandatoryCase = "EXECUTIVE_EXPENSE"
	CaseIntercompany       MandatoryCase = "INTERCOMPANY"
	CaseForeignCurrency    MandatoryCase = "FOREIGN_CURRENCY"
	CaseManualJournalEntry MandatoryCase = "MANUAL_JOURNAL_ENTRY"
)

// Decision решение движка политик
type Decision struct {
	RequiresReview bool            `json:"requires_review"`
	ReasonCode     ReasonCode      `json:"reason_code"`
	Details        string          `json:"details"`
	MandatoryCases []MandatoryCase `json:"mandatory_cases,omitempty"`
	ActingRole     Role            `json:"acting_role,omitempty"`
}

// PolicyScope ключ конфигурации (организация, филиал, страна)
type PolicyScope struct {
	OrganizationID string `json:"organization_id"`
	BranchID       string `json:"branch_id,omitempty"`
	Country        string `json:"country"`
}

// AutoProcessing настройки автоматической обработки
type AutoProcessing struct {
	Enabled bool `json:"enabled"`
}

// RolePolicy ограничения роли
type RolePolicy struct {
	CanAutoProcess         bool                       `json:"can_auto_process"`
	MaxAmount              map[string]decimal.Decimal `json:"max_amount"`
	RequiresSecondApproval bool                       `json:"requires_second_approval"`
}

// CeilingFor возвращает потолок роли по валюте (ноль, если не задан)
func (p RolePolicy) CeilingFor(currency string) decimal.Decimal {
	return p.MaxAmount[currency]
}

// MandatoryReviewFlags флаги обязательной проверки
type MandatoryReviewFlags struct {
	NewCounterparty    bool `json:"new_counterparty"`
	HighRiskCountry    bool `json:"high_risk_country"`
	ExecutiveExpense   bool `json:"executive_expense"`
	Intercompany       bool `json:"intercompany"`
	ForeignCurrency    bool `json:"foreign_currency"`
	ManualJournalEntry bool `json:"manual_journal_entry"`
}

// PolicyConfig конфигурация политики для области (организация, филиал, страна)
type PolicyConfig struct {
	Scope              PolicyScope                `json:"scope"`
	AutoProcessing     AutoProcessing             `json:"auto_processing"`
	MaxAmount          map[string]decimal.Decimal `json:"max_amount"`
	MaxRiskScore       int                        `json:"max_risk_score"`
	MaxFraudConfidence int                        `json:"max_fraud_confidence"`
	RolePolicies       map[Role]RolePolicy        `json:"role_policies"`
	MandatoryReview    MandatoryReviewFlags       `json:"mandatory_review"`
	HighRiskCountries  []string                   `json:"high_risk_countries"`
	IntercompanyTaxIDs []string                   `json:"intercompany_tax_ids"`
	BaseCurrency       string                     `json:"base_currency"`
	SLAHours           int                        `json:"sla_hours"`
	AutoAssign         bool                       `json:"auto_assign"`
	Version            int                        `json:"version"`
	UpdatedBy          string                     `json:"updated_by"`
	UpdatedAt          time.Time                  `json:"updated_at"`
}

// RolePolicyUpdate частичное обновление политики роли
type RolePolicyUpdate struct {
	CanAutoProcess         *bool                      `json:"can_auto_process,omitempty"`
	MaxAmount              map[string]decimal.Decimal `json:"max_amount,omitempty"`
	RequiresSecondApproval *bool                      `json:"requires_second_approval,omitempty"`
}

// MandatoryReviewUpdate частичное обновление флагов обязательной проверки
type MandatoryReviewUpdate struct {
	NewCounterparty    *bool `json:"new_counterparty,omitempty"`
	HighRiskCountry    *bool `json:"high_risk_country,omitempty"`
	ExecutiveExpense   *bool `json:"executive_expense,omitempty"`
	Intercompany       *bool `json:"intercompany,omitempty"`
	ForeignCurrency    *bool `json:"foreign_currency,omitempty"`
	ManualJournalEntry *bool `json:"manual_journal_entry,omitempty"`
}

// PolicyConfigUpdate частичное обновление конфигурации: меняются только переданные поля
type PolicyConfigUpdate struct {
	AutoProcessingEnabled *bool                      `json:"auto_processing_enabled,omitempty"`
	MaxAmount             map[string]decimal.Decimal `json:"max_amount,omitempty"`
	MaxRiskScore          *int                       `json:"max_risk_score,omitempty"`
	MaxFraudConfidence    *int                       `json:"max_fraud_confidence,omitempty"`
	RolePolicies          map[Role]RolePolicyUpdate  `json:"role_policies,omitempty"`
	MandatoryReview       *MandatoryReviewUpdate     `json:"mandatory_review,omitempty"`
	HighRiskCountries     []string                   `json:"high_risk_countries,omitempty"`
	IntercompanyTaxIDs    []string                   `json:"intercompany_tax_ids,omitempty"`
	BaseCurrency          *string                    `json:"base_currency,omitempty"`
	SLAHours              *int                       `json:"sla_hours,omitempty"`
	AutoAssign            *bool                      `json:"auto_assign,omitempty"`
}

// User запись справочника пользователей
type User struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Role           Role   `json:"role"`
	OrganizationID string `json:"organization_id"`
	IsActive       bool   `json:"is_active"`
}
