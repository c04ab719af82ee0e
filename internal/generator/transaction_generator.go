package generator

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"risk-review-system/internal/models"
)

// Уровни риска генерируемых операций
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

type TransactionGenerator struct {
	mu             sync.Mutex
	rand           *rand.Rand
	organizationID string
	creators       []string
	now            func() time.Time
}

// NewTransactionGenerator генератор демонстрационных операций организации от имени creators
func NewTransactionGenerator(organizationID string, creators []string) *TransactionGenerator {
	return NewSeededGenerator(time.Now().UnixNano(), organizationID, creators)
}

// NewSeededGenerator детерминированный генератор для тестов
func NewSeededGenerator(seed int64, organizationID string, creators []string) *TransactionGenerator {
	if len(creators) == 0 {
		creators = []string{"demo-user"}
	}
	return &TransactionGenerator{
		rand:           rand.New(rand.NewSource(seed)),
		organizationID: organizationID,
		creators:       creators,
		now:            time.Now,
	}
}

// GenerateTransaction генерирует операцию с заданным уровнем риска, неизвестный уровень считается low
func (g *TransactionGenerator) GenerateTransaction(riskLevel string) *models.Transaction {
	g.mu.Lock()
	defer g.mu.Unlock()

	tx := &models.Transaction{
		ID:             "TXN-AUTO-" + ulid.Make().String(),
		Type:           models.TransactionTypeExpense,
		Currency:       "USD",
		CreatedBy:      g.creators[g.rand.Intn(len(g.creators))],
		OrganizationID: g.organizationID,
		Category:       g.pick(categories),
		Counterparty:   g.knownCounterparty(),
	}
	tx.Description = fmt.Sprintf("%s: %s", tx.Category, g.pick(narratives))

	switch riskLevel {
	case RiskMedium:
		g.generateMediumRisk(tx)
	case RiskHigh:
		g.generateHighRisk(tx)
	default:
		g.generateLowRisk(tx)
	}
	return tx
}

// generateLowRisk небольшая сумма, рабочее время, известный контрагент
func (g *TransactionGenerator) generateLowRisk(tx *models.Transaction) {
	tx.Amount = g.amount(50, 5000)
	tx.Date = g.at(9 + g.rand.Intn(9))
	if g.rand.Intn(4) == 0 {
		tx.Type = models.TransactionTypeIncome
	}
}

// generateMediumRisk одно отклонение: крупная сумма, ночное время или новый контрагент
func (g *TransactionGenerator) generateMediumRisk(tx *models.Transaction) {
	switch g.rand.Intn(3) {
	case 0:
		tx.Amount = g.amount(10001, 25000)
		tx.Date = g.at(9 + g.rand.Intn(9))
	case 1:
		tx.Amount = g.amount(1000, 9000)
		tx.Date = g.at(22 + g.rand.Intn(2))
	case 2:
		tx.Amount = g.amount(2000, 9000)
		tx.Date = g.at(9 + g.rand.Intn(9))
		tx.Counterparty.IsNew = true
		tx.Counterparty.ID = "cp-new-" + ulid.Make().String()
	}
}

// generateHighRisk сочетание отклонений: офшор, ночь, очень крупная сумма или ручная проводка
func (g *TransactionGenerator) generateHighRisk(tx *models.Transaction) {
	switch g.rand.Intn(3) {
	case 0:
		tx.Amount = g.amount(30000, 60000)
		tx.Date = g.at(g.rand.Intn(5))
		tx.Counterparty = g.offshoreCounterparty()
	case 1:
		tx.Type = models.TransactionTypeJournal
		tx.Amount = g.amount(25001, 50000)
		tx.Date = g.at(g.rand.Intn(5))
		tx.Counterparty = nil
		tx.Description = "manual adjustment"
	case 2:
		tx.Amount = g.amount(50001, 120000)
		tx.Date = g.at(23)
		tx.Counterparty = g.offshoreCounterparty()
		tx.Counterparty.IsNew = true
	}
}

func (g *TransactionGenerator) knownCounterparty() *models.Counterparty {
	n := g.rand.Intn(len(vendors))
	return &models.Counterparty{
		ID:      fmt.Sprintf("cp-%03d", n),
		Name:    vendors[n],
		TaxID:   fmt.Sprintf("TAX-%06d", 100000+n),
		Country: g.pick(safeCountries),
	}
}

func (g *TransactionGenerator) offshoreCounterparty() *models.Counterparty {
	n := g.rand.Intn(1000)
	return &models.Counterparty{
		ID:      fmt.Sprintf("cp-off-%03d", n),
		Name:    g.pick(offshoreNames),
		TaxID:   fmt.Sprintf("OFF-%06d", n),
		Country: g.pick(offshoreCountries),
	}
}

// at сегодняшняя дата с заданным часом в UTC
func (g *TransactionGenerator) at(hour int) time.Time {
	now := g.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), hour%24, g.rand.Intn(60), 0, 0, time.UTC)
}

// amount случайная сумма в диапазоне, два знака после запятой
func (g *TransactionGenerator) amount(min, max float64) decimal.Decimal {
	return decimal.NewFromFloat(min + g.rand.Float64()*(max-min)).Round(2)
}

func (g *TransactionGenerator) pick(values []string) string {
	return values[g.rand.Intn(len(values))]
}

var (
	categories        = []string{"supplies", "consulting", "travel", "software", "utilities", "rent"}
	narratives        = []string{"monthly invoice", "service fee", "annual license", "reimbursement", "order payment"}
	vendors           = []string{"Paper Co", "Acme LLC", "Northwind", "Globex", "Initech", "Umbrella Supplies"}
	safeCountries     = []string{"US", "CA", "MX", "GB", "DE", "ES"}
	offshoreCountries = []string{"VG", "KY", "BS", "PA", "SC", "MU"}
	offshoreNames     = []string{"Harbor Holdings Ltd", "Blue Reef Trading", "Island Capital SA", "Coral Ventures"}
)
