package policy

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"risk-review-system/internal/models"
)

// IntercompanyCategory категория внутригрупповых операций
const IntercompanyCategory = "intercompany"

// Engine движок политик: решает, нужна ли ручная проверка
type Engine struct {
	logger *zap.Logger
}

func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// ErrorDecision решение при внутренней ошибке: всегда на проверку
func ErrorDecision(details string) models.Decision {
	return models.Decision{
		RequiresReview: true,
		ReasonCode:     models.ReasonError,
		Details:        details,
	}
}

// Decide применяет проверки по порядку до первого срабатывания.
// Любая внутренняя ошибка дает решение ERROR с обязательной проверкой.
func (e *Engine) Decide(tx *models.Transaction, assessment *models.RiskAssessment, cfg *models.PolicyConfig, role models.Role) (decision models.Decision) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("policy evaluation panic", zap.Any("panic", r))
			decision = ErrorDecision(fmt.Sprintf("policy evaluation failed: %v", r))
		}
	}()

	switch {
	case tx == nil:
		return ErrorDecision("transaction is missing")
	case assessment == nil:
		return ErrorDecision("risk assessment is missing")
	case cfg == nil:
		return ErrorDecision("policy configuration is missing")
	case !role.IsValid():
		return ErrorDecision(fmt.Sprintf("unknown role %q", role))
	}

	decision = e.decide(tx, assessment, cfg, role)
	decision.ActingRole = role
	return decision
}

func (e *Engine) decide(tx *models.Transaction, assessment *models.RiskAssessment, cfg *models.PolicyConfig, role models.Role) models.Decision {
	// 1. Автоматическая обработка выключена
	if !cfg.AutoProcessing.Enabled {
		return review(models.ReasonAutoProcessingDisabled, "automatic processing is disabled for this scope")
	}

	// 2. Обязательная проверка по бизнес-правилам
	if cases := MandatoryCases(tx, cfg, role); len(cases) > 0 {
		names := make([]string, len(cases))
		for i, c := range cases {
			names[i] = string(c)
		}
		d := review(models.ReasonMandatoryReview, "mandatory review: "+strings.Join(names, ", "))
		d.MandatoryCases = cases
		return d
	}

	// 3. Лимит суммы по валюте (отсутствующий лимит равен нулю)
	limit := cfg.MaxAmount[tx.Currency]
	if tx.Amount.GreaterThan(limit) {
		return review(models.ReasonExceedsAmountThreshold,
			fmt.Sprintf("amount %s %s exceeds limit %s", tx.Amount.String(), tx.Currency, limit.String()))
	}

	// 4. Балл риска
	if assessment.CompositeScore > cfg.MaxRiskScore {
		return review(models.ReasonHighRiskScore,
			fmt.Sprintf("risk score %d exceeds %d", assessment.CompositeScore, cfg.MaxRiskScore))
	}

	// 5. Уверенность в мошенничестве
	if assessment.FraudConfidence > cfg.MaxFraudConfidence {
		return review(models.ReasonHighFraudConfidence,
			fmt.Sprintf("fraud confidence %d exceeds %d", assessment.FraudConfidence, cfg.MaxFraudConfidence))
	}

	// 6. Ограничения роли
	rp, ok := cfg.RolePolicies[role]
	if !ok {
		return review(models.ReasonRoleRestriction, fmt.Sprintf("no policy configured for role %s", role))
	}
	if !rp.CanAutoProcess {
		return review(models.ReasonRoleRestriction, fmt.Sprintf("role %s cannot auto-process", role))
	}
	if ceiling := rp.CeilingFor(tx.Currency); tx.Amount.GreaterThan(ceiling) {
		return review(models.ReasonRoleRestriction,
			fmt.Sprintf("amount %s %s exceeds %s ceiling %s", tx.Amount.String(), tx.Currency, role, ceiling.String()))
	}

	return models.Decision{
		RequiresReview: false,
		ReasonCode:     models.ReasonAutoApproved,
		Details:        "all policy checks passed",
	}
}

// MandatoryCases вычисляет все сработавшие правила обязательной проверки
func MandatoryCases(tx *models.Transaction, cfg *models.PolicyConfig, role models.Role) []models.MandatoryCase {
	flags := cfg.MandatoryReview
	var cases []models.MandatoryCase

	if flags.NewCounterparty && tx.Counterparty != nil && tx.Counterparty.IsNew {
		cases = append(cases, models.CaseNewCounterparty)
	}
	if flags.HighRiskCountry && tx.Counterparty != nil && containsFold(cfg.HighRiskCountries, tx.Counterparty.Country) {
		cases = append(cases, models.CaseHighRiskCountry)
	}
	if flags.ExecutiveExpense && role == models.RoleExecutive && tx.Type == models.TransactionTypeExpense {
		cases = append(cases, models.CaseExecutiveExpense)
	}
	if flags.Intercompany && isIntercompany(tx, cfg) {
		cases = append(cases, models.CaseIntercompany)
	}
	if flags.ForeignCurrency && cfg.BaseCurrency != "" && !strings.EqualFold(tx.Currency, cfg.BaseCurrency) {
		cases = append(cases, models.CaseForeignCurrency)
	}
	if flags.ManualJournalEntry && tx.Type == models.TransactionTypeJournal {
		cases = append(cases, models.CaseManualJournalEntry)
	}
	return cases
}

func isIntercompany(tx *models.Transaction, cfg *models.PolicyConfig) bool {
	if strings.EqualFold(tx.Category, IntercompanyCategory) {
		return true
	}
	taxID := tx.CounterpartyTaxID()
	return taxID != "" && containsFold(cfg.IntercompanyTaxIDs, taxID)
}

func containsFold(list []string, v string) bool {
	if v == "" {
		return false
	}
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}

func review(code models.ReasonCode, details string) models.Decision {
	return models.Decision{RequiresReview: true, ReasonCode: code, Details: details}
}
