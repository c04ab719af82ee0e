package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"risk-review-system/internal/models"
	"risk-review-system/internal/storage"
)

// MockReviewRepository является моком для storage.ReviewRepository интерфейса
type MockReviewRepository struct {
	mock.Mock
}

// CreateReviewItem мок для CreateReviewItem
func (m *MockReviewRepository) CreateReviewItem(ctx context.Context, item *models.ReviewQueueItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

// GetReviewItem мок для GetReviewItem
func (m *MockReviewRepository) GetReviewItem(ctx context.Context, id string) (*models.ReviewQueueItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReviewQueueItem), args.Error(1)
}

// GetOpenReviewItemByTransaction мок для GetOpenReviewItemByTransaction
func (m *MockReviewRepository) GetOpenReviewItemByTransaction(ctx context.Context, transactionID string) (*models.ReviewQueueItem, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReviewQueueItem), args.Error(1)
}

// UpdateReviewItem мок для UpdateReviewItem
func (m *MockReviewRepository) UpdateReviewItem(ctx context.Context, item *models.ReviewQueueItem, expectedVersion int, entries ...models.AuditEntry) error {
	args := m.Called(ctx, item, expectedVersion, entries)
	return args.Error(0)
}

// AppendAudit мок для AppendAudit
func (m *MockReviewRepository) AppendAudit(ctx context.Context, itemID string, entry models.AuditEntry) error {
	args := m.Called(ctx, itemID, entry)
	return args.Error(0)
}

// ListOpenReviewItems мок для ListOpenReviewItems
func (m *MockReviewRepository) ListOpenReviewItems(ctx context.Context, organizationID string, filters models.ReviewFilters) ([]*models.ReviewQueueItem, error) {
	args := m.Called(ctx, organizationID, filters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ReviewQueueItem), args.Error(1)
}

// ListReviewItems мок для ListReviewItems
func (m *MockReviewRepository) ListReviewItems(ctx context.Context, organizationID string) ([]*models.ReviewQueueItem, error) {
	args := m.Called(ctx, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ReviewQueueItem), args.Error(1)
}

// CountOpenAssignments мок для CountOpenAssignments
func (m *MockReviewRepository) CountOpenAssignments(ctx context.Context, organizationID string) (map[string]int, error) {
	args := m.Called(ctx, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int), args.Error(1)
}

// MockPolicyConfigRepository является моком для storage.PolicyConfigRepository интерфейса
type MockPolicyConfigRepository struct {
	mock.Mock
}

// GetPolicyConfig мок для GetPolicyConfig
func (m *MockPolicyConfigRepository) GetPolicyConfig(ctx context.Context, scope models.PolicyScope) (*models.PolicyConfig, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PolicyConfig), args.Error(1)
}

// CreatePolicyConfig мок для CreatePolicyConfig
func (m *MockPolicyConfigRepository) CreatePolicyConfig(ctx context.Context, cfg *models.PolicyConfig) error {
	args := m.Called(ctx, cfg)
	return args.Error(0)
}

// UpdatePolicyConfig мок для UpdatePolicyConfig
func (m *MockPolicyConfigRepository) UpdatePolicyConfig(ctx context.Context, cfg *models.PolicyConfig, expectedVersion int) error {
	args := m.Called(ctx, cfg, expectedVersion)
	return args.Error(0)
}

// MockUserRepository является моком для storage.UserRepository интерфейса
type MockUserRepository struct {
	mock.Mock
}

// GetUser мок для GetUser
func (m *MockUserRepository) GetUser(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

// ListReviewers мок для ListReviewers
func (m *MockUserRepository) ListReviewers(ctx context.Context, organizationID string) ([]*models.User, error) {
	args := m.Called(ctx, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}

// SaveUser мок для SaveUser
func (m *MockUserRepository) SaveUser(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// MockHistoryRepository является моком для storage.HistoryRepository интерфейса
type MockHistoryRepository struct {
	mock.Mock
}

// SaveLedgerTransaction мок для SaveLedgerTransaction
func (m *MockHistoryRepository) SaveLedgerTransaction(ctx context.Context, tx *models.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

// ListTransactions мок для ListTransactions
func (m *MockHistoryRepository) ListTransactions(ctx context.Context, q storage.HistoryQuery) ([]*models.Transaction, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Transaction), args.Error(1)
}

// CounterpartyActivity мок для CounterpartyActivity
func (m *MockHistoryRepository) CounterpartyActivity(ctx context.Context, organizationID, taxID string) ([]storage.CounterpartyActivity, error) {
	args := m.Called(ctx, organizationID, taxID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.CounterpartyActivity), args.Error(1)
}

var (
	_ storage.ReviewRepository       = (*MockReviewRepository)(nil)
	_ storage.PolicyConfigRepository = (*MockPolicyConfigRepository)(nil)
	_ storage.UserRepository         = (*MockUserRepository)(nil)
	_ storage.HistoryRepository      = (*MockHistoryRepository)(nil)
)
