package fraud

import (
	"fmt"
	"math"
	"time"

	"risk-review-system/internal/models"
)

// CodeStatisticalAnomaly код срабатывания статистического слоя
const CodeStatisticalAnomaly = "statistical_anomaly"

// Пороги срабатывания статистического слоя
const (
	StatisticalMediumThreshold = 50
	StatisticalHighThreshold   = 75
)

// FeatureVector признаки операции для модели
type FeatureVector struct {
	Amount            float64
	Hour              int
	DayOfWeek         time.Weekday
	IsWeekend         bool
	IsOffHours        bool
	HasCounterparty   bool
	DescriptionLength int
	Category          string
	Direction         Direction
}

// Scorer модель аномальности, возвращает балл 0-100
type Scorer interface {
	Score(fv FeatureVector) (float64, error)
}

// HeuristicScorer модель по умолчанию на простых эвристиках
type HeuristicScorer struct {
	LargeAmount float64
}

func NewHeuristicScorer(largeAmount float64) *HeuristicScorer {
	return &HeuristicScorer{LargeAmount: largeAmount}
}

func (s *HeuristicScorer) Score(fv FeatureVector) (float64, error) {
	score := 0.0

	switch {
	case s.LargeAmount > 0 && fv.Amount > 5*s.LargeAmount:
		score += 50
	case s.LargeAmount > 0 && fv.Amount > s.LargeAmount:
		score += 30
	}
	if fv.IsOffHours {
		score += 20
	}
	if fv.IsWeekend {
		score += 10
	}
	if !fv.HasCounterparty {
		score += 15
	}
	if fv.DescriptionLength < 10 {
		score += 15
	}
	if fv.Direction == DirectionNone {
		score += 10
	}

	return math.Min(score, 100), nil
}

// StatisticalDetector строит вектор признаков и делегирует оценку модели
type StatisticalDetector struct {
	scorer Scorer
	rules  RuleConfig
}

func NewStatisticalDetector(scorer Scorer, rules RuleConfig) *StatisticalDetector {
	return &StatisticalDetector{scorer: scorer, rules: rules}
}

func (d *StatisticalDetector) Layer() models.Layer { return models.LayerStatistical }

// Features извлекает признаки операции
func (d *StatisticalDetector) Features(tx *models.Transaction) FeatureVector {
	day := tx.Date.Weekday()
	return FeatureVector{
		Amount:            tx.AmountFloat(),
		Hour:              tx.Date.Hour(),
		DayOfWeek:         day,
		IsWeekend:         day == time.Saturday || day == time.Sunday,
		IsOffHours:        d.rules.IsOffHours(tx.Date.Hour()),
		HasCounterparty:   tx.Counterparty != nil,
		DescriptionLength: len([]rune(tx.Description)),
		Category:          tx.Category,
		Direction:         DirectionOf(tx.Type),
	}
}

func (d *StatisticalDetector) Score(tx *models.Transaction, _ *HistoricalContext) (*PartialScore, error) {
	raw, err := d.scorer.Score(d.Features(tx))
	if err != nil {
		return nil, fmt.Errorf("scorer failed: %w", err)
	}
	if math.IsNaN(raw) {
		return nil, fmt.Errorf("scorer returned NaN")
	}

	score := clamp(int(math.Round(raw)))
	result := &PartialScore{Score: score}

	var severity models.Severity
	switch {
	case score >= StatisticalHighThreshold:
		severity = models.SeverityHigh
	case score >= StatisticalMediumThreshold:
		severity = models.SeverityMedium
	}
	if severity != "" {
		result.Findings = append(result.Findings, models.Finding{
			Layer:    models.LayerStatistical,
			Code:     CodeStatisticalAnomaly,
			Severity: severity,
			Message:  fmt.Sprintf("anomaly score %d", score),
			Score:    score,
		})
	}
	return result, nil
}
