package fraud

import (
	"fmt"

	"risk-review-system/internal/models"
)

// CodeCircularFlow встречные отношения поставщик/клиент с общим налоговым идентификатором
const CodeCircularFlow = "circular_flow"

// NetworkDetector ищет круговые потоки между связанными контрагентами
type NetworkDetector struct{}

func NewNetworkDetector() *NetworkDetector {
	return &NetworkDetector{}
}

func (d *NetworkDetector) Layer() models.Layer { return models.LayerNetwork }

func (d *NetworkDetector) Score(tx *models.Transaction, hctx *HistoricalContext) (*PartialScore, error) {
	result := &PartialScore{}

	taxID := tx.CounterpartyTaxID()
	direction := DirectionOf(tx.Type)
	if taxID == "" || direction == DirectionNone {
		return result, nil
	}

	opposite := direction.Opposite()
	for _, rec := range hctx.RelatedCounterparties {
		if rec.TaxID != taxID || rec.Direction != opposite || rec.TransactionCount == 0 {
			continue
		}
		result.add(models.Finding{
			Layer:    models.LayerNetwork,
			Code:     CodeCircularFlow,
			Severity: models.SeverityCritical,
			Message: fmt.Sprintf("tax id %s acts as %s (%s, %d transactions) and %s",
				taxID, opposite, rec.CounterpartyID, rec.TransactionCount, direction),
			Score: 100,
		})
		break
	}

	return result.capped(), nil
}
