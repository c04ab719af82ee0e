package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType тип операции в учетной книге
type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "income"
	TransactionTypeExpense TransactionType = "expense"
	TransactionTypeJournal TransactionType = "journal"
)

// IsValid проверяет, что тип операции входит в допустимый набор
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeIncome, TransactionTypeExpense, TransactionTypeJournal:
		return true
	}
	return false
}

// Counterparty представляет контрагента по операции
type Counterparty struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	TaxID   string `json:"tax_id"`
	Country string `json:"country"`
	IsNew   bool   `json:"is_new"`
}

// Transaction представляет операцию внешней учетной книги (счет, платеж, авансовый отчет)
type Transaction struct {
	ID             string          `json:"id" binding:"required"`
	Type           TransactionType `json:"type" binding:"required"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency" binding:"required"`
	Date           time.Time       `json:"date"`
	Description    string          `json:"description"`
	Counterparty   *Counterparty   `json:"counterparty,omitempty"`
	CreatedBy      string          `json:"created_by" binding:"required"`
	Category       string          `json:"category"`
	OrganizationID string          `json:"organization_id,omitempty"`
	BranchID       string          `json:"branch_id,omitempty"`
	Country        string          `json:"country,omitempty"`
}

// CounterpartyID возвращает идентификатор контрагента или пустую строку
func (t *Transaction) CounterpartyID() string {
	if t.Counterparty == nil {
		return ""
	}
	return t.Counterparty.ID
}

// CounterpartyTaxID возвращает налоговый идентификатор контрагента или пустую строку
func (t *Transaction) CounterpartyTaxID() string {
	if t.Counterparty == nil {
		return ""
	}
	return t.Counterparty.TaxID
}

// PolicyScope область конфигурации политики; без страны берется defaultCountry
func (t *Transaction) PolicyScope(defaultCountry string) PolicyScope {
	country := t.Country
	if country == "" {
		country = defaultCountry
	}
	return PolicyScope{
		OrganizationID: t.OrganizationID,
		BranchID:       t.BranchID,
		Country:        strings.ToUpper(country),
	}
}

// AmountFloat возвращает сумму в виде float64 для статистических расчетов
func (t *Transaction) AmountFloat() float64 {
	return t.Amount.InexactFloat64()
}

// Evaluation объединяет результат скоринга и решение политики по одной операции
type Evaluation struct {
	Transaction    *Transaction     `json:"transaction"`
	RiskAssessment *RiskAssessment  `json:"risk_assessment"`
	Decision       *Decision        `json:"decision"`
	Narrative      *NarrativeResult `json:"narrative,omitempty"`
	ReviewItem     *ReviewQueueItem `json:"review_item,omitempty"`
}

// NarrativeResult вторичный сигнал от внешнего сервиса анализа описаний
type NarrativeResult struct {
	IsValid         bool           `json:"is_valid"`
	Completeness    float64        `json:"completeness"`
	Risks           NarrativeRisks `json:"risks"`
	Recommendations []string       `json:"recommendations"`
}

// NarrativeRisks уровень риска по оценке сервиса анализа описаний
type NarrativeRisks struct {
	Level string `json:"level"`
}
