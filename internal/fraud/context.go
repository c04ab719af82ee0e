package fraud

import (
	"time"

	"risk-review-system/internal/models"
)

// Direction направление отношений с контрагентом
type Direction string

const (
	DirectionVendor   Direction = "vendor"
	DirectionCustomer Direction = "customer"
	DirectionNone     Direction = ""
)

// DirectionOf возвращает направление операции: расход - поставщик, доход - клиент
func DirectionOf(t models.TransactionType) Direction {
	switch t {
	case models.TransactionTypeExpense:
		return DirectionVendor
	case models.TransactionTypeIncome:
		return DirectionCustomer
	}
	return DirectionNone
}

// Opposite противоположное направление
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionVendor:
		return DirectionCustomer
	case DirectionCustomer:
		return DirectionVendor
	}
	return DirectionNone
}

// Profile скользящий профиль пользователя или контрагента
type Profile struct {
	AvgAmount        float64               `json:"avg_amount"`
	MaxAmount        float64               `json:"max_amount"`
	TypicalHours     map[int]bool          `json:"typical_hours"`
	TypicalDays      map[time.Weekday]bool `json:"typical_days"`
	TransactionCount int                   `json:"transaction_count"`
}

// MinProfileHistory минимальное число операций, после которого профиль не считается новым
const MinProfileHistory = 5

// IsNew профиль с недостаточной историей
func (p *Profile) IsNew() bool {
	return p == nil || p.TransactionCount < MinProfileHistory
}

// BuildProfile строит профиль по набору операций
func BuildProfile(txs []*models.Transaction) *Profile {
	p := &Profile{
		TypicalHours: make(map[int]bool),
		TypicalDays:  make(map[time.Weekday]bool),
	}
	if len(txs) == 0 {
		return p
	}

	var sum float64
	for _, tx := range txs {
		amount := tx.AmountFloat()
		sum += amount
		if amount > p.MaxAmount {
			p.MaxAmount = amount
		}
		p.TypicalHours[tx.Date.Hour()] = true
		p.TypicalDays[tx.Date.Weekday()] = true
	}
	p.TransactionCount = len(txs)
	p.AvgAmount = sum / float64(len(txs))
	return p
}

// CounterpartyRecord активность контрагента с тем же налоговым идентификатором
type CounterpartyRecord struct {
	CounterpartyID   string    `json:"counterparty_id"`
	TaxID            string    `json:"tax_id"`
	Direction        Direction `json:"direction"`
	TransactionCount int       `json:"transaction_count"`
}

// HistoricalContext неизменяемый снимок истории, который читают детекторы
type HistoricalContext struct {
	// операции того же типа и категории за 90 дней
	SimilarTransactions []*models.Transaction
	// операции с тем же контрагентом в окне поиска дубликатов
	CounterpartyTransactions []*models.Transaction
	// операции того же автора в окне быстрой серии
	ActorTransactions []*models.Transaction

	UserProfile         *Profile
	CounterpartyProfile *Profile

	// записи контрагентов с тем же налоговым идентификатором
	RelatedCounterparties []CounterpartyRecord
}

// EmptyContext контекст без истории
func EmptyContext() *HistoricalContext {
	return &HistoricalContext{}
}
