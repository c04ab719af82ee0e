package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"risk-review-system/internal/models"
	"risk-review-system/internal/services"
)

// MockEvaluator является моком для services.Evaluator интерфейса
type MockEvaluator struct {
	mock.Mock
}

func (m *MockEvaluator) EvaluateTransaction(ctx context.Context, tx *models.Transaction) (*models.Evaluation, error) {
	args := m.Called(ctx, tx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Evaluation), args.Error(1)
}

func (m *MockEvaluator) ProcessTransaction(ctx context.Context, tx *models.Transaction) (*models.Evaluation, error) {
	args := m.Called(ctx, tx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Evaluation), args.Error(1)
}

func (m *MockEvaluator) Backfill(ctx context.Context, txs []*models.Transaction) ([]services.BackfillResult, error) {
	args := m.Called(ctx, txs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]services.BackfillResult), args.Error(1)
}

func (m *MockEvaluator) CachedAssessment(ctx context.Context, transactionID string) (*models.RiskAssessment, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RiskAssessment), args.Error(1)
}

func (m *MockEvaluator) DecisionCounts(ctx context.Context, organizationID string, day time.Time) (map[models.ReasonCode]int64, error) {
	args := m.Called(ctx, organizationID, day)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[models.ReasonCode]int64), args.Error(1)
}

var _ services.Evaluator = (*MockEvaluator)(nil)
