package scoring

import (
	"context"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"risk-review-system/internal/generator"
	"risk-review-system/internal/kafka"
	"risk-review-system/internal/logger"
	"risk-review-system/internal/models"
)

// TransactionSource источник демонстрационных операций
type TransactionSource interface {
	GenerateTransaction(riskLevel string) *models.Transaction
}

// Feeder публикует сгенерированные операции в топик учетной книги.
// Распределение уровней риска: 70% low, 20% medium, 10% high.
type Feeder struct {
	source   TransactionSource
	producer kafka.Producer
	interval time.Duration
	pick     func() float64
	logger   *zap.Logger
	now      func() time.Time
}

func NewFeeder(source TransactionSource, producer kafka.Producer, interval time.Duration, log *zap.Logger) *Feeder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Feeder{
		source:   source,
		producer: producer,
		interval: interval,
		pick:     rand.Float64,
		logger:   log,
		now:      time.Now,
	}
}

// Run публикует по одной операции за интервал до отмены контекста
func (f *Feeder) Run(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.PublishOne(ctx); err != nil {
				f.logger.Warn("ledger feed publish failed", zap.Error(err))
			}
		}
	}
}

// PublishOne генерирует и публикует одну операцию
func (f *Feeder) PublishOne(ctx context.Context) error {
	level := riskLevel(f.pick())
	event := &models.LedgerTransactionEvent{
		EventID:     "evt_" + ulid.Make().String(),
		EventType:   "ledger_transaction_created",
		Transaction: f.source.GenerateTransaction(level),
		Timestamp:   f.now().UTC(),
	}
	if err := f.producer.PublishLedgerTransaction(ctx, event); err != nil {
		return err
	}

	logger.LogEvent(logger.EventKafkaPublished, serviceName, "feeder", map[string]interface{}{
		"event_id":       event.EventID,
		"transaction_id": event.Transaction.ID,
		"risk_level":     level,
	})
	return nil
}

func riskLevel(p float64) string {
	switch {
	case p < 0.7:
		return generator.RiskLow
	case p < 0.9:
		return generator.RiskMedium
	default:
		return generator.RiskHigh
	}
}
