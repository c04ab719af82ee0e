package fraud

import (
	"risk-review-system/internal/models"
)

// PartialScore результат одного детектора
type PartialScore struct {
	Score    int
	Findings []models.Finding
}

// add добавляет срабатывание и его вклад
func (p *PartialScore) add(f models.Finding) {
	p.Score += f.Score
	p.Findings = append(p.Findings, f)
}

// capped ограничивает балл диапазоном 0-100
func (p *PartialScore) capped() *PartialScore {
	p.Score = clamp(p.Score)
	return p
}

// Detector слой оценки риска. Реализации не должны менять операцию или контекст.
type Detector interface {
	Layer() models.Layer
	Score(tx *models.Transaction, hctx *HistoricalContext) (*PartialScore, error)
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
