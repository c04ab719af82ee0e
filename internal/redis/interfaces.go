package redis

import (
	"context"
	"time"

	"risk-review-system/internal/models"
)

// ClientInterface определяет интерфейс для работы с Redis.
// Реализуется типом Client.
type ClientInterface interface {
	// SaveAssessment кэширует оценку риска
	SaveAssessment(ctx context.Context, assessment *models.RiskAssessment) error

	// GetAssessment получает оценку из кэша (nil при промахе)
	GetAssessment(ctx context.Context, transactionID string) (*models.RiskAssessment, error)

	// HighRiskCountries общий список высокорисковых юрисдикций
	HighRiskCountries(ctx context.Context) ([]string, error)

	// IncrementDecision увеличивает дневной счетчик решений
	IncrementDecision(ctx context.Context, organizationID string, reason models.ReasonCode, at time.Time) error

	// DecisionCounts дневные счетчики решений
	DecisionCounts(ctx context.Context, organizationID string, day time.Time) (map[models.ReasonCode]int64, error)

	// Close закрывает соединение с Redis
	Close() error
}

// Убеждаемся, что Client реализует ClientInterface
var _ ClientInterface = (*Client)(nil)
