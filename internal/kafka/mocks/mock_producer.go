package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"risk-review-system/internal/kafka"
	"risk-review-system/internal/models"
)

// MockProducer является моком для kafka.Producer интерфейса
type MockProducer struct {
	mock.Mock
}

// PublishReviewEvent мок для PublishReviewEvent
func (m *MockProducer) PublishReviewEvent(ctx context.Context, event *models.ReviewEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// PublishLedgerTransaction мок для PublishLedgerTransaction
func (m *MockProducer) PublishLedgerTransaction(ctx context.Context, event *models.LedgerTransactionEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// Close мок для Close
func (m *MockProducer) Close() error {
	args := m.Called()
	return args.Error(0)
}

var _ kafka.Producer = (*MockProducer)(nil)
