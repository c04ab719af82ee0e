package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"risk-review-system/config"
	"risk-review-system/internal/models"
)

type ProducerImpl struct {
	producer    sarama.SyncProducer
	reviewTopic string
	ledgerTopic string
	logger      *zap.Logger
}

func NewProducer(cfg *config.Config, logger *zap.Logger) (Producer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(cfg.Kafka.Brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	p := NewProducerFromSync(producer, cfg.Kafka.ReviewEventsTopic, cfg.Kafka.LedgerTopic, logger)
	p.logger.Info("Kafka producer created", zap.Strings("brokers", cfg.Kafka.Brokers))
	return p, nil
}

// NewProducerFromSync оборачивает готовый sarama.SyncProducer
func NewProducerFromSync(producer sarama.SyncProducer, reviewTopic, ledgerTopic string, logger *zap.Logger) *ProducerImpl {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProducerImpl{
		producer:    producer,
		reviewTopic: reviewTopic,
		ledgerTopic: ledgerTopic,
		logger:      logger,
	}
}

func (p *ProducerImpl) PublishReviewEvent(ctx context.Context, event *models.ReviewEvent) error {
	key := event.ReviewID
	if key == "" {
		key = event.TransactionID
	}
	return p.send(ctx, p.reviewTopic, key, event)
}

func (p *ProducerImpl) PublishLedgerTransaction(ctx context.Context, event *models.LedgerTransactionEvent) error {
	key := ""
	if event.Transaction != nil {
		key = event.Transaction.ID
	}
	return p.send(ctx, p.ledgerTopic, key, event)
}

func (p *ProducerImpl) send(ctx context.Context, topic, key string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic:     topic,
		Value:     sarama.ByteEncoder(data),
		Timestamp: time.Now(),
	}
	if key != "" {
		msg.Key = sarama.StringEncoder(key)
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send message to %s: %w", topic, err)
	}

	p.logger.Debug("message sent",
		zap.String("topic", topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}

func (p *ProducerImpl) Close() error {
	return p.producer.Close()
}
