package policy

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"risk-review-system/internal/models"
)

// Значения по умолчанию для новой конфигурации
const (
	DefaultMaxRiskScore       = 40
	DefaultMaxFraudConfidence = 30
	DefaultSLAHours           = 24
)

// DefaultHighRiskCountries офшорные юрисдикции
var DefaultHighRiskCountries = []string{"VG", "KY", "BS", "PA", "SC", "MU"}

var baseCurrencies = map[string]string{
	"MX": "MXN",
	"US": "USD",
	"CA": "CAD",
	"CO": "COP",
	"ES": "EUR",
}

// BaseCurrencyFor базовая валюта страны, USD для неизвестных
func BaseCurrencyFor(country string) string {
	if c, ok := baseCurrencies[strings.ToUpper(country)]; ok {
		return c
	}
	return "USD"
}

func ceilings(usd int64) map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"USD": decimal.NewFromInt(usd),
		"MXN": decimal.NewFromInt(usd * 20),
	}
}

// DefaultRolePolicies консервативные ограничения ролей
func DefaultRolePolicies() map[models.Role]models.RolePolicy {
	return map[models.Role]models.RolePolicy{
		models.RoleAdmin:            {CanAutoProcess: true, MaxAmount: ceilings(100000)},
		models.RoleExecutive:        {CanAutoProcess: true, MaxAmount: ceilings(50000)},
		models.RoleSeniorAccountant: {CanAutoProcess: true, MaxAmount: ceilings(25000), RequiresSecondApproval: true},
		models.RoleAccountant:       {CanAutoProcess: true, MaxAmount: ceilings(10000), RequiresSecondApproval: true},
		models.RoleAssistant:        {CanAutoProcess: false, MaxAmount: ceilings(0), RequiresSecondApproval: true},
	}
}

// DefaultConfig конфигурация, создаваемая при первом обращении к области
func DefaultConfig(scope models.PolicyScope, now time.Time) *models.PolicyConfig {
	return &models.PolicyConfig{
		Scope:              scope,
		AutoProcessing:     models.AutoProcessing{Enabled: true},
		MaxAmount:          ceilings(10000),
		MaxRiskScore:       DefaultMaxRiskScore,
		MaxFraudConfidence: DefaultMaxFraudConfidence,
		RolePolicies:       DefaultRolePolicies(),
		MandatoryReview: models.MandatoryReviewFlags{
			NewCounterparty:    true,
			HighRiskCountry:    true,
			ExecutiveExpense:   true,
			Intercompany:       true,
			ForeignCurrency:    false,
			ManualJournalEntry: true,
		},
		HighRiskCountries:  append([]string(nil), DefaultHighRiskCountries...),
		IntercompanyTaxIDs: []string{},
		BaseCurrency:       BaseCurrencyFor(scope.Country),
		SLAHours:           DefaultSLAHours,
		AutoAssign:         true,
		Version:            1,
		UpdatedBy:          "system",
		UpdatedAt:          now,
	}
}
