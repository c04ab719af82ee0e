package fraud

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"risk-review-system/internal/models"
)

var baseDate = time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC) // понедельник, рабочее время

func newTx(id string, amount int64, at time.Time) *models.Transaction {
	return &models.Transaction{
		ID:          id,
		Type:        models.TransactionTypeExpense,
		Amount:      decimal.NewFromInt(amount),
		Currency:    "USD",
		Date:        at,
		Description: "Office supplies for Q1",
		Counterparty: &models.Counterparty{
			ID:      "CP-001",
			Name:    "Acme Supplies",
			TaxID:   "TAX-001",
			Country: "US",
		},
		CreatedBy: "user-1",
		Category:  "services",
	}
}

func codes(findings []models.Finding) []string {
	out := make([]string, 0, len(findings))
	for _, f := range findings {
		out = append(out, f.Code)
	}
	return out
}

func similarHistory() []*models.Transaction {
	amounts := []int64{100, 110, 90, 100, 105, 95}
	history := make([]*models.Transaction, 0, len(amounts))
	for i, a := range amounts {
		history = append(history, newTx("H-"+string(rune('A'+i)), a, baseDate.AddDate(0, 0, -(i+1)*7)))
	}
	return history
}

func TestRuleDetector_CleanTransaction(t *testing.T) {
	d := NewRuleDetector(DefaultRuleConfig())

	result, err := d.Score(newTx("TXN-001", 1000, baseDate), EmptyContext())
	require.NoError(t, err)

	assert.Equal(t, 0, result.Score)
	assert.Empty(t, result.Findings)
	assert.Equal(t, models.LayerRules, d.Layer())
}

func TestRuleDetector_Duplicate(t *testing.T) {
	d := NewRuleDetector(DefaultRuleConfig())
	tx := newTx("TXN-002", 1000, baseDate)

	// Сумма в пределах 2%
	hctx := &HistoricalContext{
		CounterpartyTransactions: []*models.Transaction{newTx("H-1", 1010, baseDate.AddDate(0, 0, -5))},
	}
	result, err := d.Score(tx, hctx)
	require.NoError(t, err)
	assert.Contains(t, codes(result.Findings), CodeDuplicate)
	assert.Equal(t, DuplicateScore, result.Score)
	assert.Equal(t, models.SeverityHigh, result.Findings[0].Severity)

	// Сумма за пределами допуска
	hctx.CounterpartyTransactions = []*models.Transaction{newTx("H-2", 1030, baseDate.AddDate(0, 0, -5))}
	result, err = d.Score(tx, hctx)
	require.NoError(t, err)
	assert.NotContains(t, codes(result.Findings), CodeDuplicate)

	// За пределами окна
	hctx.CounterpartyTransactions = []*models.Transaction{newTx("H-3", 1000, baseDate.AddDate(0, 0, -31))}
	result, err = d.Score(tx, hctx)
	require.NoError(t, err)
	assert.NotContains(t, codes(result.Findings), CodeDuplicate)
}

func TestRuleDetector_UnusualAmount(t *testing.T) {
	d := NewRuleDetector(DefaultRuleConfig())
	hctx := &HistoricalContext{SimilarTransactions: similarHistory()}

	// z около 3.4 - средняя серьезность
	result, err := d.Score(newTx("TXN-003", 122, baseDate), hctx)
	require.NoError(t, err)
	require.Contains(t, codes(result.Findings), CodeUnusualAmount)
	assert.Equal(t, models.SeverityMedium, result.Findings[0].Severity)
	assert.Equal(t, UnusualAmountScore, result.Score)

	// z больше удвоенного порога - высокая
	result, err = d.Score(newTx("TXN-004", 1000, baseDate), hctx)
	require.NoError(t, err)
	require.Contains(t, codes(result.Findings), CodeUnusualAmount)
	assert.Equal(t, models.SeverityHigh, result.Findings[0].Severity)
}

func TestRuleDetector_UnusualAmount_NotEnoughSamples(t *testing.T) {
	d := NewRuleDetector(DefaultRuleConfig())

	hctx := &HistoricalContext{SimilarTransactions: []*models.Transaction{newTx("H-1", 100, baseDate.AddDate(0, 0, -3))}}
	result, err := d.Score(newTx("TXN-005", 100000, baseDate), hctx)
	require.NoError(t, err)
	assert.NotContains(t, codes(result.Findings), CodeUnusualAmount)

	// Нулевое отклонение
	hctx.SimilarTransactions = append(hctx.SimilarTransactions, newTx("H-2", 100, baseDate.AddDate(0, 0, -4)))
	result, err = d.Score(newTx("TXN-005", 100000, baseDate), hctx)
	require.NoError(t, err)
	assert.NotContains(t, codes(result.Findings), CodeUnusualAmount)
}

func TestRuleDetector_RapidSuccession(t *testing.T) {
	d := NewRuleDetector(DefaultRuleConfig())
	tx := newTx("TXN-006", 500, baseDate)

	var actor []*models.Transaction
	for i := 1; i <= 4; i++ {
		h := newTx("R-"+string(rune('0'+i)), 500, baseDate.Add(-time.Duration(i*10)*time.Minute))
		h.Counterparty = nil
		actor = append(actor, h)
	}

	result, err := d.Score(tx, &HistoricalContext{ActorTransactions: actor})
	require.NoError(t, err)
	assert.Contains(t, codes(result.Findings), CodeRapid)
	assert.Equal(t, RapidScore, result.Score)

	// Четыре операции вместе с текущей - ниже порога
	result, err = d.Score(tx, &HistoricalContext{ActorTransactions: actor[:3]})
	require.NoError(t, err)
	assert.NotContains(t, codes(result.Findings), CodeRapid)

	// Другой автор не считается
	for _, h := range actor {
		h.CreatedBy = "user-2"
	}
	result, err = d.Score(tx, &HistoricalContext{ActorTransactions: actor})
	require.NoError(t, err)
	assert.NotContains(t, codes(result.Findings), CodeRapid)
}

func TestRuleDetector_OffHours(t *testing.T) {
	d := NewRuleDetector(DefaultRuleConfig())

	cases := []struct {
		hour     int
		offHours bool
	}{
		{22, true},
		{23, true},
		{0, true},
		{5, true},
		{6, false},
		{14, false},
		{21, false},
	}

	for _, tc := range cases {
		at := time.Date(2024, 1, 15, tc.hour, 0, 0, 0, time.UTC)
		result, err := d.Score(newTx("TXN-007", 500, at), EmptyContext())
		require.NoError(t, err)
		if tc.offHours {
			assert.Contains(t, codes(result.Findings), CodeOffHours, "hour %d", tc.hour)
			assert.Equal(t, OffHoursScore, result.Score)
		} else {
			assert.NotContains(t, codes(result.Findings), CodeOffHours, "hour %d", tc.hour)
		}
	}
}

func TestRuleDetector_SplitTransaction(t *testing.T) {
	d := NewRuleDetector(DefaultRuleConfig())
	tx := newTx("TXN-008", 6000, baseDate)

	hctx := &HistoricalContext{
		CounterpartyTransactions: []*models.Transaction{newTx("S-1", 5000, baseDate.Add(-20*time.Hour))},
	}
	result, err := d.Score(tx, hctx)
	require.NoError(t, err)
	assert.Contains(t, codes(result.Findings), CodeSplit)
	assert.Equal(t, SplitScore, result.Score)

	// Одна из связанных сумм сама выше порога
	hctx.CounterpartyTransactions = append(hctx.CounterpartyTransactions, newTx("S-2", 12000, baseDate.Add(-10*time.Hour)))
	result, err = d.Score(tx, hctx)
	require.NoError(t, err)
	assert.NotContains(t, codes(result.Findings), CodeSplit)

	// Другая категория не связана
	other := newTx("S-3", 5000, baseDate.Add(-20*time.Hour))
	other.Category = "travel"
	result, err = d.Score(tx, &HistoricalContext{CounterpartyTransactions: []*models.Transaction{other}})
	require.NoError(t, err)
	assert.NotContains(t, codes(result.Findings), CodeSplit)
}

func TestRuleDetector_ScoreCapped(t *testing.T) {
	d := NewRuleDetector(DefaultRuleConfig())
	at := time.Date(2024, 1, 15, 23, 0, 0, 0, time.UTC)
	tx := newTx("TXN-009", 6000, at)

	var actor []*models.Transaction
	for i := 1; i <= 4; i++ {
		actor = append(actor, newTx("A-"+string(rune('0'+i)), 50, at.Add(-time.Duration(i*5)*time.Minute)))
	}
	similar := similarHistory()
	for _, h := range similar {
		h.Counterparty = &models.Counterparty{ID: "CP-OTHER"}
	}

	hctx := &HistoricalContext{
		CounterpartyTransactions: []*models.Transaction{newTx("D-1", 6050, at.Add(-20*time.Hour))},
		SimilarTransactions:      similar,
		ActorTransactions:        actor,
	}

	result, err := d.Score(tx, hctx)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{CodeDuplicate, CodeUnusualAmount, CodeRapid, CodeOffHours, CodeSplit}, codes(result.Findings))
	assert.Equal(t, 100, result.Score)
}

func TestRuleConfig_IsOffHours_SameStartEnd(t *testing.T) {
	cfg := DefaultRuleConfig()
	cfg.OffHoursStart, cfg.OffHoursEnd = 0, 0
	assert.False(t, cfg.IsOffHours(3))

	cfg.OffHoursStart, cfg.OffHoursEnd = 1, 4
	assert.True(t, cfg.IsOffHours(3))
	assert.False(t, cfg.IsOffHours(4))
}
