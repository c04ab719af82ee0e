package workflow

import (
	"github.com/shopspring/decimal"

	"risk-review-system/internal/models"
)

type priorityThreshold struct {
	priority models.Priority
	score    int
	amount   decimal.Decimal
}

// пороги проверяются от высшего приоритета к низшему
var priorityThresholds = []priorityThreshold{
	{models.PriorityCritical, 80, decimal.NewFromInt(50000)},
	{models.PriorityHigh, 60, decimal.NewFromInt(25000)},
	{models.PriorityMedium, 40, decimal.NewFromInt(10000)},
}

// PriorityFor вычисляет приоритет по уверенности в мошенничестве, баллу риска и сумме
func PriorityFor(amount decimal.Decimal, riskScore, fraudConfidence int) models.Priority {
	for _, th := range priorityThresholds {
		if fraudConfidence > th.score || riskScore > th.score || amount.GreaterThan(th.amount) {
			return th.priority
		}
	}
	return models.PriorityLow
}
