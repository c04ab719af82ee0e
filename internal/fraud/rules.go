package fraud

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"risk-review-system/internal/models"
)

// Вклад правил в балл слоя
const (
	DuplicateScore     = 40
	UnusualAmountScore = 30
	RapidScore         = 25
	OffHoursScore      = 15
	SplitScore         = 35
)

// Коды срабатываний слоя правил
const (
	CodeDuplicate     = "duplicate_transaction"
	CodeUnusualAmount = "unusual_amount"
	CodeRapid         = "rapid_succession"
	CodeOffHours      = "off_hours"
	CodeSplit         = "split_transaction"
)

// RuleConfig параметры правил
type RuleConfig struct {
	DuplicateWindow    time.Duration
	DuplicateTolerance decimal.Decimal // доля, 0.02 = 2%
	ZScoreThreshold    float64
	RapidCount         int
	RapidWindow        time.Duration
	OffHoursStart      int
	OffHoursEnd        int
	SplitWindow        time.Duration
	ApprovalThreshold  decimal.Decimal
}

// DefaultRuleConfig параметры по умолчанию
func DefaultRuleConfig() RuleConfig {
	return RuleConfig{
		DuplicateWindow:    30 * 24 * time.Hour,
		DuplicateTolerance: decimal.NewFromFloat(0.02),
		ZScoreThreshold:    3,
		RapidCount:         5,
		RapidWindow:        60 * time.Minute,
		OffHoursStart:      22,
		OffHoursEnd:        6,
		SplitWindow:        48 * time.Hour,
		ApprovalThreshold:  decimal.NewFromInt(10000),
	}
}

// IsOffHours проверяет попадание часа в нерабочее окно (окно может переходить через полночь)
func (c RuleConfig) IsOffHours(hour int) bool {
	if c.OffHoursStart == c.OffHoursEnd {
		return false
	}
	if c.OffHoursStart > c.OffHoursEnd {
		return hour >= c.OffHoursStart || hour < c.OffHoursEnd
	}
	return hour >= c.OffHoursStart && hour < c.OffHoursEnd
}

// RuleDetector детерминированные правила по истории операций
type RuleDetector struct {
	cfg RuleConfig
}

func NewRuleDetector(cfg RuleConfig) *RuleDetector {
	return &RuleDetector{cfg: cfg}
}

func (d *RuleDetector) Layer() models.Layer { return models.LayerRules }

// Score выполняет все правила и суммирует их вклад
func (d *RuleDetector) Score(tx *models.Transaction, hctx *HistoricalContext) (*PartialScore, error) {
	result := &PartialScore{}

	// 1. Дубликат: тот же тип и контрагент, сумма в пределах допуска
	if dup := d.findDuplicate(tx, hctx.CounterpartyTransactions); dup != nil {
		result.add(models.Finding{
			Layer:    models.LayerRules,
			Code:     CodeDuplicate,
			Severity: models.SeverityHigh,
			Message:  fmt.Sprintf("possible duplicate of %s", dup.ID),
			Score:    DuplicateScore,
		})
	}

	// 2. Нетипичная сумма относительно похожих операций
	if z, ok := d.zScore(tx, hctx.SimilarTransactions); ok && math.Abs(z) > d.cfg.ZScoreThreshold {
		severity := models.SeverityMedium
		if math.Abs(z) > 2*d.cfg.ZScoreThreshold {
			severity = models.SeverityHigh
		}
		result.add(models.Finding{
			Layer:    models.LayerRules,
			Code:     CodeUnusualAmount,
			Severity: severity,
			Message:  fmt.Sprintf("amount z-score %.2f", z),
			Score:    UnusualAmountScore,
		})
	}

	// 3. Быстрая серия операций одного автора
	if count := d.rapidCount(tx, hctx.ActorTransactions); count >= d.cfg.RapidCount {
		result.add(models.Finding{
			Layer:    models.LayerRules,
			Code:     CodeRapid,
			Severity: models.SeverityHigh,
			Message:  fmt.Sprintf("%d transactions by %s within %s", count, tx.CreatedBy, d.cfg.RapidWindow),
			Score:    RapidScore,
		})
	}

	// 4. Нерабочее время
	if d.cfg.IsOffHours(tx.Date.Hour()) {
		result.add(models.Finding{
			Layer:    models.LayerRules,
			Code:     CodeOffHours,
			Severity: models.SeverityLow,
			Message:  fmt.Sprintf("created at %02d:00 outside business hours", tx.Date.Hour()),
			Score:    OffHoursScore,
		})
	}

	// 5. Дробление суммы ниже порога согласования
	if total, n, ok := d.split(tx, hctx.CounterpartyTransactions); ok {
		result.add(models.Finding{
			Layer:    models.LayerRules,
			Code:     CodeSplit,
			Severity: models.SeverityHigh,
			Message:  fmt.Sprintf("%d related transactions total %s above threshold %s", n, total.String(), d.cfg.ApprovalThreshold.String()),
			Score:    SplitScore,
		})
	}

	return result.capped(), nil
}

func (d *RuleDetector) findDuplicate(tx *models.Transaction, history []*models.Transaction) *models.Transaction {
	if tx.Counterparty == nil {
		return nil
	}
	tolerance := tx.Amount.Mul(d.cfg.DuplicateTolerance).Abs()
	for _, h := range history {
		if h.ID == tx.ID || h.Type != tx.Type || h.CounterpartyID() != tx.CounterpartyID() {
			continue
		}
		if absDuration(tx.Date.Sub(h.Date)) > d.cfg.DuplicateWindow {
			continue
		}
		if h.Amount.Sub(tx.Amount).Abs().LessThanOrEqual(tolerance) {
			return h
		}
	}
	return nil
}

func (d *RuleDetector) zScore(tx *models.Transaction, history []*models.Transaction) (float64, bool) {
	var amounts []float64
	for _, h := range history {
		if h.ID == tx.ID || h.Type != tx.Type || h.Category != tx.Category {
			continue
		}
		amounts = append(amounts, h.AmountFloat())
	}
	if len(amounts) < 2 {
		return 0, false
	}

	var sum float64
	for _, a := range amounts {
		sum += a
	}
	mean := sum / float64(len(amounts))

	var sq float64
	for _, a := range amounts {
		sq += (a - mean) * (a - mean)
	}
	stddev := math.Sqrt(sq / float64(len(amounts)))
	if stddev == 0 {
		return 0, false
	}
	return (tx.AmountFloat() - mean) / stddev, true
}

// rapidCount считает операции автора в окне, заканчивающемся временем операции, включая ее саму
func (d *RuleDetector) rapidCount(tx *models.Transaction, history []*models.Transaction) int {
	count := 1
	from := tx.Date.Add(-d.cfg.RapidWindow)
	for _, h := range history {
		if h.ID == tx.ID || h.CreatedBy != tx.CreatedBy {
			continue
		}
		if h.Date.After(from) && !h.Date.After(tx.Date) {
			count++
		}
	}
	return count
}

func (d *RuleDetector) split(tx *models.Transaction, history []*models.Transaction) (decimal.Decimal, int, bool) {
	threshold := d.cfg.ApprovalThreshold
	if tx.Counterparty == nil || !tx.Amount.LessThan(threshold) {
		return decimal.Zero, 0, false
	}

	total := tx.Amount
	n := 1
	for _, h := range history {
		if h.ID == tx.ID || h.CounterpartyID() != tx.CounterpartyID() || h.Category != tx.Category {
			continue
		}
		if absDuration(tx.Date.Sub(h.Date)) > d.cfg.SplitWindow {
			continue
		}
		if !h.Amount.LessThan(threshold) {
			return decimal.Zero, 0, false
		}
		total = total.Add(h.Amount)
		n++
	}
	if n < 2 || !total.GreaterThan(threshold) {
		return decimal.Zero, 0, false
	}
	return total, n, true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
