package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"risk-review-system/config"
	"risk-review-system/internal/models"
)

type ConsumerImpl struct {
	consumer sarama.ConsumerGroup
	topic    string
	handler  LedgerHandler
	logger   *zap.Logger
}

func NewConsumer(cfg *config.Config, handler LedgerHandler, logger *zap.Logger) (Consumer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	config.Consumer.Return.Errors = true
	config.Version = sarama.V2_8_0_0

	consumer, err := sarama.NewConsumerGroup(cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}

	logger.Info("Kafka consumer created",
		zap.String("topic", cfg.Kafka.LedgerTopic),
		zap.String("group", cfg.Kafka.ConsumerGroup),
	)
	return &ConsumerImpl{
		consumer: consumer,
		topic:    cfg.Kafka.LedgerTopic,
		handler:  handler,
		logger:   logger,
	}, nil
}

func (c *ConsumerImpl) Start(ctx context.Context) error {
	topics := []string{c.topic}
	handler := &consumerGroupHandler{handler: c.handler, logger: c.logger}

	wg := &sync.WaitGroup{}
	wg.Add(1)

	go func() {
		defer wg.Done()
		for {
			if err := c.consumer.Consume(ctx, topics, handler); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				c.logger.Error("error from consumer", zap.Error(err))
				return
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	go func() {
		for {
			select {
			case err, ok := <-c.consumer.Errors():
				if !ok {
					return
				}
				c.logger.Warn("consumer error", zap.Error(err))
			case <-ctx.Done():
				return
			}
		}
	}()

	<-ctx.Done()
	c.logger.Info("consumer context cancelled, shutting down")
	wg.Wait()
	return c.consumer.Close()
}

func (c *ConsumerImpl) Close() error {
	return c.consumer.Close()
}

// Повторы обработки сообщения до отказа от сессии
const (
	handleAttempts = 3
	retryBackoff   = 500 * time.Millisecond
)

type consumerGroupHandler struct {
	handler LedgerHandler
	logger  *zap.Logger
	backoff time.Duration
}

func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok || message == nil {
				return nil
			}
			if err := h.handle(session.Context(), message.Value); err != nil {
				// сообщение не подтверждается и будет доставлено повторно после перезапуска сессии
				return err
			}
			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}

// handle обрабатывает одно сообщение. Нераспознанные сообщения пропускаются,
// ошибки обработчика повторяются и возвращаются после исчерпания попыток.
func (h *consumerGroupHandler) handle(ctx context.Context, value []byte) error {
	event, err := DecodeLedgerEvent(value)
	if err != nil {
		h.logger.Warn("skipping malformed ledger message", zap.Error(err))
		return nil
	}

	backoff := h.backoff
	if backoff <= 0 {
		backoff = retryBackoff
	}
	for attempt := 1; ; attempt++ {
		err = h.handler(ctx, event)
		if err == nil {
			return nil
		}
		h.logger.Error("error handling ledger transaction",
			zap.String("event_id", event.EventID),
			zap.String("transaction_id", event.Transaction.ID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt >= handleAttempts {
			return fmt.Errorf("ledger event %s: %w", event.EventID, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff * time.Duration(attempt)):
		}
	}
}

// DecodeLedgerEvent разбирает JSON события учетной книги
func DecodeLedgerEvent(value []byte) (*models.LedgerTransactionEvent, error) {
	var event models.LedgerTransactionEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ledger event: %w", err)
	}
	if event.Transaction == nil {
		return nil, fmt.Errorf("ledger event %s has no transaction", event.EventID)
	}
	return &event, nil
}
