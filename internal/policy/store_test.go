package policy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"risk-review-system/internal/models"
	"risk-review-system/internal/storage/mocks"
	"risk-review-system/internal/xerrors"
)

type staticCountries struct {
	list []string
	err  error
}

func (s staticCountries) HighRiskCountries(context.Context) ([]string, error) { return s.list, s.err }

func newTestStore(repo *mocks.MockPolicyConfigRepository, countries CountrySource) *Store {
	s := NewStore(repo, countries, nil)
	s.now = func() time.Time { return testNow }
	return s
}

func TestStore_Get_CreatesDefaults(t *testing.T) {
	repo := new(mocks.MockPolicyConfigRepository)
	ctx := context.Background()
	scope := models.PolicyScope{OrganizationID: "org-1", Country: "mx"}
	stored := models.PolicyScope{OrganizationID: "org-1", Country: "MX"}

	repo.On("GetPolicyConfig", ctx, stored).Return(nil, xerrors.NotFound("policy config", "org-1")).Once()
	repo.On("CreatePolicyConfig", ctx, mock.MatchedBy(func(cfg *models.PolicyConfig) bool {
		return cfg.Scope == stored && cfg.Version == 1 && cfg.BaseCurrency == "MXN"
	})).Return(nil).Once()

	cfg, err := newTestStore(repo, nil).Get(ctx, scope)
	require.NoError(t, err)

	assert.Equal(t, stored, cfg.Scope)
	assert.Equal(t, testNow, cfg.UpdatedAt)
	repo.AssertExpectations(t)
}

func TestStore_Get_ConcurrentCreate(t *testing.T) {
	repo := new(mocks.MockPolicyConfigRepository)
	ctx := context.Background()
	scope := usScope()
	existing := DefaultConfig(scope, testNow)
	existing.Version = 3

	repo.On("GetPolicyConfig", ctx, scope).Return(nil, xerrors.NotFound("policy config", "org-1")).Once()
	repo.On("CreatePolicyConfig", ctx, mock.Anything).Return(xerrors.Conflict("policy config", "org-1", "exists")).Once()
	repo.On("GetPolicyConfig", ctx, scope).Return(existing, nil).Once()

	cfg, err := newTestStore(repo, nil).Get(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Version)
	repo.AssertExpectations(t)
}

func TestStore_Get_OverlaysCountries(t *testing.T) {
	repo := new(mocks.MockPolicyConfigRepository)
	ctx := context.Background()
	repo.On("GetPolicyConfig", ctx, usScope()).Return(DefaultConfig(usScope(), testNow), nil).Once()
	repo.On("GetPolicyConfig", ctx, usScope()).Return(DefaultConfig(usScope(), testNow), nil).Once()

	cfg, err := newTestStore(repo, staticCountries{list: []string{"ir", "KY"}}).Get(ctx, usScope())
	require.NoError(t, err)
	assert.Contains(t, cfg.HighRiskCountries, "IR")
	assert.Len(t, cfg.HighRiskCountries, len(DefaultHighRiskCountries)+1)

	// Недоступный источник не ломает чтение
	cfg, err = newTestStore(repo, staticCountries{err: errors.New("redis down")}).Get(ctx, usScope())
	require.NoError(t, err)
	assert.Equal(t, DefaultHighRiskCountries, cfg.HighRiskCountries)
}

func TestStore_Update_PartialMerge(t *testing.T) {
	repo := new(mocks.MockPolicyConfigRepository)
	ctx := context.Background()
	current := DefaultConfig(usScope(), testNow)

	repo.On("GetPolicyConfig", ctx, usScope()).Return(current, nil)
	repo.On("UpdatePolicyConfig", ctx, mock.AnythingOfType("*models.PolicyConfig"), 1).Return(nil)

	score := 55
	canAuto := false
	update := models.PolicyConfigUpdate{
		MaxRiskScore: &score,
		MaxAmount:    map[string]decimal.Decimal{"eur": decimal.NewFromInt(7000)},
		RolePolicies: map[models.Role]models.RolePolicyUpdate{
			models.RoleAccountant: {CanAutoProcess: &canAuto, MaxAmount: map[string]decimal.Decimal{"USD": decimal.NewFromInt(2000)}},
		},
	}

	cfg, err := newTestStore(repo, nil).Update(ctx, usScope(), update, "admin-1")
	require.NoError(t, err)

	assert.Equal(t, 55, cfg.MaxRiskScore)
	assert.Equal(t, DefaultMaxFraudConfidence, cfg.MaxFraudConfidence)
	assert.True(t, cfg.MaxAmount["EUR"].Equal(decimal.NewFromInt(7000)))
	assert.True(t, cfg.MaxAmount["USD"].Equal(decimal.NewFromInt(10000)))

	accountant := cfg.RolePolicies[models.RoleAccountant]
	assert.False(t, accountant.CanAutoProcess)
	assert.True(t, accountant.RequiresSecondApproval)
	assert.True(t, accountant.MaxAmount["USD"].Equal(decimal.NewFromInt(2000)))
	assert.True(t, accountant.MaxAmount["MXN"].Equal(decimal.NewFromInt(200000)))

	assert.Equal(t, 2, cfg.Version)
	assert.Equal(t, "admin-1", cfg.UpdatedBy)
	assert.Equal(t, testNow, cfg.UpdatedAt)
	repo.AssertExpectations(t)
}

func TestStore_Update_Validation(t *testing.T) {
	repo := new(mocks.MockPolicyConfigRepository)
	store := newTestStore(repo, nil)
	ctx := context.Background()

	negative := -1
	over := 101
	zero := 0
	cases := map[string]models.PolicyConfigUpdate{
		"negative ceiling":      {MaxAmount: map[string]decimal.Decimal{"USD": decimal.NewFromInt(-1)}},
		"risk score over 100":   {MaxRiskScore: &over},
		"negative confidence":   {MaxFraudConfidence: &negative},
		"zero sla":              {SLAHours: &zero},
		"unknown role":          {RolePolicies: map[models.Role]models.RolePolicyUpdate{"intern": {}}},
		"negative role ceiling": {RolePolicies: map[models.Role]models.RolePolicyUpdate{models.RoleAdmin: {MaxAmount: map[string]decimal.Decimal{"USD": decimal.NewFromInt(-5)}}}},
	}

	for name, update := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := store.Update(ctx, usScope(), update, "admin-1")
			assert.ErrorIs(t, err, xerrors.ErrValidation)
		})
	}

	_, err := store.Update(ctx, usScope(), models.PolicyConfigUpdate{}, "")
	assert.ErrorIs(t, err, xerrors.ErrValidation)

	_, err = store.Get(ctx, models.PolicyScope{Country: "US"})
	assert.ErrorIs(t, err, xerrors.ErrValidation)

	repo.AssertNotCalled(t, "UpdatePolicyConfig", mock.Anything, mock.Anything, mock.Anything)
}

func TestStore_Update_Conflict(t *testing.T) {
	repo := new(mocks.MockPolicyConfigRepository)
	ctx := context.Background()

	repo.On("GetPolicyConfig", ctx, usScope()).Return(DefaultConfig(usScope(), testNow), nil)
	repo.On("UpdatePolicyConfig", ctx, mock.Anything, 1).Return(xerrors.Conflict("policy config", "org-1", "version mismatch"))

	enabled := false
	_, err := newTestStore(repo, nil).Update(ctx, usScope(), models.PolicyConfigUpdate{AutoProcessingEnabled: &enabled}, "admin-1")
	assert.ErrorIs(t, err, xerrors.ErrConflict)
}
