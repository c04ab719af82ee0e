package fraud

import (
	"fmt"
	"math"

	"risk-review-system/internal/models"
)

const (
	CodeUserAmountDeviation         = "user_amount_deviation"
	CodeUserUnusualHour             = "user_unusual_hour"
	CodeCounterpartyAmountDeviation = "counterparty_amount_deviation"
	CodeCounterpartyUnusualHour     = "counterparty_unusual_hour"
	CodeInsufficientHistory         = "insufficient_history"
)

// AmountDeviationLimit относительное отклонение суммы от среднего профиля
const AmountDeviationLimit = 2.0

// BehavioralDetector сравнивает операцию с профилями автора и контрагента
type BehavioralDetector struct{}

func NewBehavioralDetector() *BehavioralDetector {
	return &BehavioralDetector{}
}

func (d *BehavioralDetector) Layer() models.Layer { return models.LayerBehavioral }

type profileWeights struct {
	subject     string
	amountCode  string
	amountScore int
	amountSev   models.Severity
	hourCode    string
	hourScore   int
	hourSev     models.Severity
}

var (
	userWeights = profileWeights{
		subject:     "user",
		amountCode:  CodeUserAmountDeviation,
		amountScore: 40,
		amountSev:   models.SeverityHigh,
		hourCode:    CodeUserUnusualHour,
		hourScore:   20,
		hourSev:     models.SeverityMedium,
	}
	counterpartyWeights = profileWeights{
		subject:     "counterparty",
		amountCode:  CodeCounterpartyAmountDeviation,
		amountScore: 30,
		amountSev:   models.SeverityMedium,
		hourCode:    CodeCounterpartyUnusualHour,
		hourScore:   10,
		hourSev:     models.SeverityLow,
	}
)

func (d *BehavioralDetector) Score(tx *models.Transaction, hctx *HistoricalContext) (*PartialScore, error) {
	result := &PartialScore{}

	d.scoreProfile(result, tx, hctx.UserProfile, userWeights)
	if tx.Counterparty != nil {
		d.scoreProfile(result, tx, hctx.CounterpartyProfile, counterpartyWeights)
	}

	return result.capped(), nil
}

func (d *BehavioralDetector) scoreProfile(result *PartialScore, tx *models.Transaction, p *Profile, w profileWeights) {
	if p.IsNew() {
		count := 0
		if p != nil {
			count = p.TransactionCount
		}
		result.add(models.Finding{
			Layer:    models.LayerBehavioral,
			Code:     CodeInsufficientHistory,
			Severity: models.SeverityLow,
			Message:  fmt.Sprintf("%s profile has %d transactions", w.subject, count),
			Score:    10,
		})
		return
	}

	if p.AvgAmount > 0 {
		deviation := math.Abs(tx.AmountFloat()-p.AvgAmount) / p.AvgAmount
		if deviation > AmountDeviationLimit {
			result.add(models.Finding{
				Layer:    models.LayerBehavioral,
				Code:     w.amountCode,
				Severity: w.amountSev,
				Message:  fmt.Sprintf("amount deviates %.1fx from %s average %.2f", deviation, w.subject, p.AvgAmount),
				Score:    w.amountScore,
			})
		}
	}

	if len(p.TypicalHours) > 0 && !p.TypicalHours[tx.Date.Hour()] {
		result.add(models.Finding{
			Layer:    models.LayerBehavioral,
			Code:     w.hourCode,
			Severity: w.hourSev,
			Message:  fmt.Sprintf("hour %d is atypical for %s", tx.Date.Hour(), w.subject),
			Score:    w.hourScore,
		})
	}
}
