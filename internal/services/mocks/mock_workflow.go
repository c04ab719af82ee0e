package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"risk-review-system/internal/models"
	"risk-review-system/internal/services"
)

// MockReviewWorkflow является моком для services.ReviewWorkflow интерфейса
type MockReviewWorkflow struct {
	mock.Mock
}

func (m *MockReviewWorkflow) item(args mock.Arguments) (*models.ReviewQueueItem, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReviewQueueItem), args.Error(1)
}

func (m *MockReviewWorkflow) items(args mock.Arguments) ([]*models.ReviewQueueItem, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ReviewQueueItem), args.Error(1)
}

func (m *MockReviewWorkflow) Get(ctx context.Context, itemID string) (*models.ReviewQueueItem, error) {
	return m.item(m.Called(ctx, itemID))
}

func (m *MockReviewWorkflow) ListPending(ctx context.Context, organizationID string, filters models.ReviewFilters) ([]*models.ReviewQueueItem, error) {
	return m.items(m.Called(ctx, organizationID, filters))
}

func (m *MockReviewWorkflow) Assign(ctx context.Context, itemID, reviewerID, actorID string) (*models.ReviewQueueItem, error) {
	return m.item(m.Called(ctx, itemID, reviewerID, actorID))
}

func (m *MockReviewWorkflow) AutoAssign(ctx context.Context, itemID string) (*models.ReviewQueueItem, error) {
	return m.item(m.Called(ctx, itemID))
}

func (m *MockReviewWorkflow) Approve(ctx context.Context, itemID, reviewerID string, decision models.ReviewDecision) (*models.ReviewQueueItem, error) {
	return m.item(m.Called(ctx, itemID, reviewerID, decision))
}

func (m *MockReviewWorkflow) Reject(ctx context.Context, itemID, reviewerID string, decision models.ReviewDecision) (*models.ReviewQueueItem, error) {
	return m.item(m.Called(ctx, itemID, reviewerID, decision))
}

func (m *MockReviewWorkflow) EscalateSecondApproval(ctx context.Context, itemID, approverID string) (*models.ReviewQueueItem, error) {
	return m.item(m.Called(ctx, itemID, approverID))
}

func (m *MockReviewWorkflow) AddComment(ctx context.Context, itemID, actorID, text string) (*models.ReviewQueueItem, error) {
	return m.item(m.Called(ctx, itemID, actorID, text))
}

func (m *MockReviewWorkflow) SLABreaches(ctx context.Context, organizationID string) ([]*models.ReviewQueueItem, error) {
	return m.items(m.Called(ctx, organizationID))
}

func (m *MockReviewWorkflow) StatsSnapshot(organizationID string) models.ReviewStats {
	return m.Called(organizationID).Get(0).(models.ReviewStats)
}

func (m *MockReviewWorkflow) RebuildStats(ctx context.Context, organizationID string) (models.ReviewStats, error) {
	args := m.Called(ctx, organizationID)
	return args.Get(0).(models.ReviewStats), args.Error(1)
}

// MockPolicyAdmin является моком для services.PolicyAdmin интерфейса
type MockPolicyAdmin struct {
	mock.Mock
}

func (m *MockPolicyAdmin) Get(ctx context.Context, scope models.PolicyScope) (*models.PolicyConfig, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PolicyConfig), args.Error(1)
}

func (m *MockPolicyAdmin) Update(ctx context.Context, scope models.PolicyScope, update models.PolicyConfigUpdate, actorID string) (*models.PolicyConfig, error) {
	args := m.Called(ctx, scope, update, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PolicyConfig), args.Error(1)
}

var (
	_ services.ReviewWorkflow = (*MockReviewWorkflow)(nil)
	_ services.PolicyAdmin    = (*MockPolicyAdmin)(nil)
	_ services.UserAdmin      = (*MockUserAdmin)(nil)
)

// MockUserAdmin является моком для services.UserAdmin интерфейса
type MockUserAdmin struct {
	mock.Mock
}

func (m *MockUserAdmin) GetUser(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserAdmin) SaveUser(ctx context.Context, user *models.User) (*models.User, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
