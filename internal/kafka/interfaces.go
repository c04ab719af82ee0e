package kafka

import (
	"context"

	"risk-review-system/internal/models"
)

// Producer определяет интерфейс для отправки сообщений в Kafka
type Producer interface {
	// PublishReviewEvent событие очереди проверки для доставки уведомлений
	PublishReviewEvent(ctx context.Context, event *models.ReviewEvent) error

	// PublishLedgerTransaction операция учетной книги (генератор и повторная загрузка)
	PublishLedgerTransaction(ctx context.Context, event *models.LedgerTransactionEvent) error

	Close() error
}

// Consumer читает операции учетной книги
type Consumer interface {
	Start(ctx context.Context) error
	Close() error
}

// LedgerHandler обработчик операции учетной книги
type LedgerHandler func(ctx context.Context, event *models.LedgerTransactionEvent) error
