package policy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"risk-review-system/internal/models"
	"risk-review-system/internal/storage"
	"risk-review-system/internal/xerrors"
)

// CountrySource внешний источник высокорисковых стран (набор в Redis)
type CountrySource interface {
	HighRiskCountries(ctx context.Context) ([]string, error)
}

// Store хранилище конфигураций политик с ленивым созданием значений по умолчанию
type Store struct {
	repo      storage.PolicyConfigRepository
	countries CountrySource
	logger    *zap.Logger
	now       func() time.Time
}

func NewStore(repo storage.PolicyConfigRepository, countries CountrySource, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{repo: repo, countries: countries, logger: logger, now: time.Now}
}

// Get возвращает конфигурацию области, создавая ее со значениями по умолчанию.
// Список высокорисковых стран дополняется внешним набором, если он доступен.
func (s *Store) Get(ctx context.Context, scope models.PolicyScope) (*models.PolicyConfig, error) {
	cfg, err := s.load(ctx, scope)
	if err != nil {
		return nil, err
	}
	s.overlayCountries(ctx, cfg)
	return cfg, nil
}

// Update применяет частичное обновление от имени actorID
func (s *Store) Update(ctx context.Context, scope models.PolicyScope, update models.PolicyConfigUpdate, actorID string) (*models.PolicyConfig, error) {
	if actorID == "" {
		return nil, xerrors.Validation("actor_id", "is required")
	}
	if err := ValidateUpdate(update); err != nil {
		return nil, err
	}

	cfg, err := s.load(ctx, scope)
	if err != nil {
		return nil, err
	}

	expected := cfg.Version
	Merge(cfg, update)
	cfg.Version = expected + 1
	cfg.UpdatedBy = actorID
	cfg.UpdatedAt = s.now()

	if err := s.repo.UpdatePolicyConfig(ctx, cfg, expected); err != nil {
		return nil, fmt.Errorf("failed to update policy config: %w", err)
	}

	s.logger.Info("policy config updated",
		zap.String("organization_id", scope.OrganizationID),
		zap.String("branch_id", scope.BranchID),
		zap.String("country", scope.Country),
		zap.String("actor", actorID),
		zap.Int("version", cfg.Version),
	)

	s.overlayCountries(ctx, cfg)
	return cfg, nil
}

func (s *Store) load(ctx context.Context, scope models.PolicyScope) (*models.PolicyConfig, error) {
	if err := ValidateScope(scope); err != nil {
		return nil, err
	}
	scope.Country = strings.ToUpper(scope.Country)

	cfg, err := s.repo.GetPolicyConfig(ctx, scope)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, xerrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to get policy config: %w", err)
	}

	cfg = DefaultConfig(scope, s.now())
	if err := s.repo.CreatePolicyConfig(ctx, cfg); err != nil {
		// конфигурацию создал конкурентный запрос
		if errors.Is(err, xerrors.ErrConflict) {
			return s.repo.GetPolicyConfig(ctx, scope)
		}
		return nil, fmt.Errorf("failed to create default policy config: %w", err)
	}

	s.logger.Info("default policy config created",
		zap.String("organization_id", scope.OrganizationID),
		zap.String("country", scope.Country),
	)
	return cfg, nil
}

func (s *Store) overlayCountries(ctx context.Context, cfg *models.PolicyConfig) {
	if s.countries == nil {
		return
	}
	extra, err := s.countries.HighRiskCountries(ctx)
	if err != nil {
		s.logger.Warn("high risk country set unavailable", zap.Error(err))
		return
	}
	for _, c := range extra {
		if !containsFold(cfg.HighRiskCountries, c) {
			cfg.HighRiskCountries = append(cfg.HighRiskCountries, strings.ToUpper(c))
		}
	}
}

// ValidateScope проверяет ключ конфигурации
func ValidateScope(scope models.PolicyScope) error {
	if scope.OrganizationID == "" {
		return xerrors.Validation("organization_id", "is required")
	}
	if scope.Country == "" {
		return xerrors.Validation("country", "is required")
	}
	return nil
}

// ValidateUpdate отклоняет отрицательные лимиты, баллы вне 0-100 и неположительный SLA
func ValidateUpdate(u models.PolicyConfigUpdate) error {
	if err := validateCeilings("max_amount", u.MaxAmount); err != nil {
		return err
	}
	if u.MaxRiskScore != nil && (*u.MaxRiskScore < 0 || *u.MaxRiskScore > 100) {
		return xerrors.Validation("max_risk_score", "must be within 0-100")
	}
	if u.MaxFraudConfidence != nil && (*u.MaxFraudConfidence < 0 || *u.MaxFraudConfidence > 100) {
		return xerrors.Validation("max_fraud_confidence", "must be within 0-100")
	}
	if u.SLAHours != nil && *u.SLAHours <= 0 {
		return xerrors.Validation("sla_hours", "must be positive")
	}
	if u.BaseCurrency != nil && strings.TrimSpace(*u.BaseCurrency) == "" {
		return xerrors.Validation("base_currency", "must not be empty")
	}
	for role, rp := range u.RolePolicies {
		if !role.IsValid() {
			return xerrors.Validation("role_policies", fmt.Sprintf("unknown role %q", role))
		}
		if err := validateCeilings("role_policies."+string(role)+".max_amount", rp.MaxAmount); err != nil {
			return err
		}
	}
	return nil
}

func validateCeilings(field string, m map[string]decimal.Decimal) error {
	for currency, v := range m {
		if currency == "" {
			return xerrors.Validation(field, "currency is required")
		}
		if v.IsNegative() {
			return xerrors.Validation(field, fmt.Sprintf("ceiling for %s must not be negative", currency))
		}
	}
	return nil
}

// Merge применяет к конфигурации только переданные поля, словари объединяются по ключам
func Merge(cfg *models.PolicyConfig, u models.PolicyConfigUpdate) {
	if u.AutoProcessingEnabled != nil {
		cfg.AutoProcessing.Enabled = *u.AutoProcessingEnabled
	}
	if len(u.MaxAmount) > 0 {
		if cfg.MaxAmount == nil {
			cfg.MaxAmount = make(map[string]decimal.Decimal)
		}
		for currency, v := range u.MaxAmount {
			cfg.MaxAmount[strings.ToUpper(currency)] = v
		}
	}
	if u.MaxRiskScore != nil {
		cfg.MaxRiskScore = *u.MaxRiskScore
	}
	if u.MaxFraudConfidence != nil {
		cfg.MaxFraudConfidence = *u.MaxFraudConfidence
	}
	if len(u.RolePolicies) > 0 {
		if cfg.RolePolicies == nil {
			cfg.RolePolicies = make(map[models.Role]models.RolePolicy)
		}
		for role, ru := range u.RolePolicies {
			rp := cfg.RolePolicies[role]
			if ru.CanAutoProcess != nil {
				rp.CanAutoProcess = *ru.CanAutoProcess
			}
			if ru.RequiresSecondApproval != nil {
				rp.RequiresSecondApproval = *ru.RequiresSecondApproval
			}
			if len(ru.MaxAmount) > 0 {
				merged := make(map[string]decimal.Decimal, len(rp.MaxAmount)+len(ru.MaxAmount))
				for k, v := range rp.MaxAmount {
					merged[k] = v
				}
				for k, v := range ru.MaxAmount {
					merged[strings.ToUpper(k)] = v
				}
				rp.MaxAmount = merged
			}
			cfg.RolePolicies[role] = rp
		}
	}
	if m := u.MandatoryReview; m != nil {
		mergeFlag(&cfg.MandatoryReview.NewCounterparty, m.NewCounterparty)
		mergeFlag(&cfg.MandatoryReview.HighRiskCountry, m.HighRiskCountry)
		mergeFlag(&cfg.MandatoryReview.ExecutiveExpense, m.ExecutiveExpense)
		mergeFlag(&cfg.MandatoryReview.Intercompany, m.Intercompany)
		mergeFlag(&cfg.MandatoryReview.ForeignCurrency, m.ForeignCurrency)
		mergeFlag(&cfg.MandatoryReview.ManualJournalEntry, m.ManualJournalEntry)
	}
	if u.HighRiskCountries != nil {
		cfg.HighRiskCountries = upperAll(u.HighRiskCountries)
	}
	if u.IntercompanyTaxIDs != nil {
		cfg.IntercompanyTaxIDs = append([]string(nil), u.IntercompanyTaxIDs...)
	}
	if u.BaseCurrency != nil {
		cfg.BaseCurrency = strings.ToUpper(*u.BaseCurrency)
	}
	if u.SLAHours != nil {
		cfg.SLAHours = *u.SLAHours
	}
	if u.AutoAssign != nil {
		cfg.AutoAssign = *u.AutoAssign
	}
}

func mergeFlag(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func upperAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToUpper(s))
	}
	return out
}
