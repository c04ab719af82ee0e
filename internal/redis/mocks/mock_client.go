package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"risk-review-system/internal/models"
	"risk-review-system/internal/redis"
)

// MockClientInterface является моком для redis.ClientInterface интерфейса
type MockClientInterface struct {
	mock.Mock
}

// SaveAssessment мок для SaveAssessment
func (m *MockClientInterface) SaveAssessment(ctx context.Context, assessment *models.RiskAssessment) error {
	args := m.Called(ctx, assessment)
	return args.Error(0)
}

// GetAssessment мок для GetAssessment
func (m *MockClientInterface) GetAssessment(ctx context.Context, transactionID string) (*models.RiskAssessment, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RiskAssessment), args.Error(1)
}

// HighRiskCountries мок для HighRiskCountries
func (m *MockClientInterface) HighRiskCountries(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// IncrementDecision мок для IncrementDecision
func (m *MockClientInterface) IncrementDecision(ctx context.Context, organizationID string, reason models.ReasonCode, at time.Time) error {
	args := m.Called(ctx, organizationID, reason, at)
	return args.Error(0)
}

// DecisionCounts мок для DecisionCounts
func (m *MockClientInterface) DecisionCounts(ctx context.Context, organizationID string, day time.Time) (map[models.ReasonCode]int64, error) {
	args := m.Called(ctx, organizationID, day)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[models.ReasonCode]int64), args.Error(1)
}

// Close мок для Close
func (m *MockClientInterface) Close() error {
	args := m.Called()
	return args.Error(0)
}

var _ redis.ClientInterface = (*MockClientInterface)(nil)
