package fraud

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"risk-review-system/internal/models"
	"risk-review-system/internal/xerrors"
)

// CodeLayerUnavailable слой не смог вычислить балл и дал нейтральный вклад
const CodeLayerUnavailable = "layer_unavailable"

// FraudThreshold составной балл, выше которого операция считается мошеннической
const FraudThreshold = 60

// Weights веса слоев в составном балле
var Weights = map[models.Layer]float64{
	models.LayerRules:       0.30,
	models.LayerStatistical: 0.30,
	models.LayerBehavioral:  0.25,
	models.LayerNetwork:     0.15,
}

// Engine многослойный скоринг операций
type Engine struct {
	detectors []Detector
	logger    *zap.Logger
	now       func() time.Time
}

// Option настройка движка
type Option func(*engineOptions)

type engineOptions struct {
	rules     RuleConfig
	scorer    Scorer
	detectors []Detector
	logger    *zap.Logger
	now       func() time.Time
}

// WithScorer подменяет модель статистического слоя
func WithScorer(s Scorer) Option {
	return func(o *engineOptions) { o.scorer = s }
}

// WithRuleConfig задает параметры правил
func WithRuleConfig(cfg RuleConfig) Option {
	return func(o *engineOptions) { o.rules = cfg }
}

// WithDetectors заменяет набор детекторов целиком
func WithDetectors(detectors ...Detector) Option {
	return func(o *engineOptions) { o.detectors = detectors }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *engineOptions) { o.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(o *engineOptions) { o.now = now }
}

// NewEngine создает движок с четырьмя слоями по умолчанию
func NewEngine(opts ...Option) *Engine {
	o := &engineOptions{
		rules:  DefaultRuleConfig(),
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.scorer == nil {
		o.scorer = NewHeuristicScorer(o.rules.ApprovalThreshold.InexactFloat64())
	}
	if o.detectors == nil {
		o.detectors = []Detector{
			NewRuleDetector(o.rules),
			NewStatisticalDetector(o.scorer, o.rules),
			NewBehavioralDetector(),
			NewNetworkDetector(),
		}
	}
	return &Engine{detectors: o.detectors, logger: o.logger, now: o.now}
}

// Validate проверяет операцию до запуска детекторов
func Validate(tx *models.Transaction) error {
	switch {
	case tx == nil:
		return xerrors.Validation("transaction", "is required")
	case tx.ID == "":
		return xerrors.Validation("id", "is required")
	case !tx.Amount.IsPositive():
		return xerrors.Validation("amount", "must be positive")
	case !tx.Type.IsValid():
		return xerrors.Validation("type", fmt.Sprintf("unknown type %q", tx.Type))
	case tx.Currency == "":
		return xerrors.Validation("currency", "is required")
	case tx.Date.IsZero():
		return xerrors.Validation("date", "is required")
	}
	return nil
}

// Evaluate вычисляет оценку риска. Ошибка возвращается только для некорректной операции,
// отказ отдельного слоя дает нулевой вклад и срабатывание layer_unavailable.
func (e *Engine) Evaluate(tx *models.Transaction, hctx *HistoricalContext) (*models.RiskAssessment, error) {
	if err := Validate(tx); err != nil {
		return nil, err
	}
	if hctx == nil {
		hctx = EmptyContext()
	}

	layers := make(map[models.Layer]models.LayerScore, len(models.Layers()))
	for _, layer := range models.Layers() {
		layers[layer] = models.LayerScore{Available: true}
	}

	for _, d := range e.detectors {
		partial, err := e.runDetector(d, tx, hctx)
		if err != nil {
			e.logger.Warn("risk layer unavailable",
				zap.String("layer", string(d.Layer())),
				zap.String("transaction_id", tx.ID),
				zap.Error(err),
			)
			layers[d.Layer()] = models.LayerScore{
				Score:     0,
				Available: false,
				Findings: []models.Finding{{
					Layer:    d.Layer(),
					Code:     CodeLayerUnavailable,
					Severity: models.SeverityLow,
					Message:  err.Error(),
				}},
			}
			continue
		}
		layers[d.Layer()] = models.LayerScore{
			Score:     clamp(partial.Score),
			Available: true,
			Findings:  partial.Findings,
		}
	}

	assessment := &models.RiskAssessment{
		TransactionID: tx.ID,
		Layers:        layers,
		EvaluatedAt:   e.now(),
	}
	assessment.CompositeScore = Composite(layers)
	assessment.Severity = models.SeverityForScore(assessment.CompositeScore)
	assessment.IsFraud = assessment.CompositeScore > FraudThreshold
	assessment.FraudConfidence = FraudConfidence(assessment.Findings())

	return assessment, nil
}

// runDetector вызывает детектор, перехватывая панику
func (e *Engine) runDetector(d Detector, tx *models.Transaction, hctx *HistoricalContext) (partial *PartialScore, err error) {
	defer func() {
		if r := recover(); r != nil {
			partial = nil
			err = fmt.Errorf("detector panic: %v", r)
		}
	}()
	partial, err = d.Score(tx, hctx)
	if err == nil && partial == nil {
		err = fmt.Errorf("detector returned no score")
	}
	return partial, err
}

// Composite взвешенная сумма баллов слоев, округленная до целого в диапазоне 0-100
func Composite(layers map[models.Layer]models.LayerScore) int {
	var sum float64
	for _, layer := range models.Layers() {
		sum += Weights[layer] * float64(layers[layer].Score)
	}
	return clamp(int(math.Round(sum)))
}

// FraudConfidence плотность серьезных срабатываний, без служебных кодов
func FraudConfidence(findings []models.Finding) int {
	total := 0
	for _, f := range findings {
		if f.Code == CodeLayerUnavailable || f.Code == CodeInsufficientHistory {
			continue
		}
		switch f.Severity {
		case models.SeverityCritical:
			total += 35
		case models.SeverityHigh:
			total += 20
		case models.SeverityMedium:
			total += 8
		case models.SeverityLow:
			total += 2
		}
	}
	if total > 100 {
		return 100
	}
	return total
}
