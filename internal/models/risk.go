package models

import "time"

// Layer слой детектора риск-движка
type Layer string

const (
	LayerRules       Layer = "rules"
	LayerStatistical Layer = "statistical"
	LayerBehavioral  Layer = "behavioral"
	LayerNetwork     Layer = "network"
)

// Layers возвращает слои в порядке вычисления
func Layers() []Layer {
	return []Layer{LayerRules, LayerStatistical, LayerBehavioral, LayerNetwork}
}

// Severity уровень серьезности риска
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SeverityForScore переводит составной балл в уровень серьезности
func SeverityForScore(score int) Severity {
	switch {
	case score > 80:
		return SeverityCritical
	case score > 60:
		return SeverityHigh
	case score > 40:
		return SeverityMedium
	}
	return SeverityLow
}

// Finding отдельное срабатывание детектора
type Finding struct {
	Layer    Layer    `json:"layer"`
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Score    int      `json:"score"`
}

// LayerScore результат одного слоя
type LayerScore struct {
	Score     int       `json:"score"`
	Available bool      `json:"available"`
	Findings  []Finding `json:"findings"`
}

// RiskAssessment результат оценки риска по операции, после создания не изменяется
type RiskAssessment struct {
	TransactionID   string               `json:"transaction_id"`
	Layers          map[Layer]LayerScore `json:"layers"`
	CompositeScore  int                  `json:"composite_score"`
	Severity        Severity             `json:"severity"`
	IsFraud         bool                 `json:"is_fraud"`
	FraudConfidence int                  `json:"fraud_confidence"`
	EvaluatedAt     time.Time            `json:"evaluated_at"`
}

// Findings возвращает все срабатывания всех слоев в порядке слоев
func (r *RiskAssessment) Findings() []Finding {
	var findings []Finding
	for _, layer := range Layers() {
		findings = append(findings, r.Layers[layer].Findings...)
	}
	return findings
}

// FindingCodes возвращает коды срабатываний
func (r *RiskAssessment) FindingCodes() []string {
	findings := r.Findings()
	codes := make([]string, 0, len(findings))
	for _, f := range findings {
		codes = append(codes, f.Code)
	}
	return codes
}
