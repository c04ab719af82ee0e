package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"risk-review-system/internal/fraud"
	"risk-review-system/internal/logger"
	"risk-review-system/internal/models"
	"risk-review-system/internal/narrative"
	"risk-review-system/internal/policy"
	"risk-review-system/internal/storage"
	"risk-review-system/internal/xerrors"
)

// DefaultUnresolvedOrganization организация по умолчанию для операций без известного автора
const DefaultUnresolvedOrganization = "unresolved"

// EvaluationService конвейер: история -> скоринг -> политика -> очередь
type EvaluationService struct {
	scorer  Scorer
	history HistoryBuilder
	decider Decider
	configs PolicyConfigs
	users   storage.UserRepository

	queue     ReviewQueue
	ledger    storage.HistoryRepository
	cache     AssessmentCache
	narrative narrative.Analyzer
	publisher EventPublisher
	recorder  Recorder

	logger         *zap.Logger
	serviceName    string
	defaultCountry string
	unresolvedOrg  string
	workers        int
	now            func() time.Time
}

// Option настройка EvaluationService
type Option func(*EvaluationService)

func WithQueue(q ReviewQueue) Option { return func(s *EvaluationService) { s.queue = q } }

// WithLedgerMirror сохранение обработанных операций в зеркало учетной книги
func WithLedgerMirror(repo storage.HistoryRepository) Option {
	return func(s *EvaluationService) { s.ledger = repo }
}

func WithCache(c AssessmentCache) Option { return func(s *EvaluationService) { s.cache = c } }

func WithNarrative(a narrative.Analyzer) Option { return func(s *EvaluationService) { s.narrative = a } }

func WithPublisher(p EventPublisher) Option { return func(s *EvaluationService) { s.publisher = p } }

func WithRecorder(r Recorder) Option { return func(s *EvaluationService) { s.recorder = r } }

func WithLogger(l *zap.Logger) Option { return func(s *EvaluationService) { s.logger = l } }

func WithServiceName(name string) Option { return func(s *EvaluationService) { s.serviceName = name } }

func WithClock(now func() time.Time) Option { return func(s *EvaluationService) { s.now = now } }

func WithDefaultCountry(country string) Option {
	return func(s *EvaluationService) { s.defaultCountry = strings.ToUpper(country) }
}

// WithUnresolvedOrganization организация очереди для операций, автор которых не найден в справочнике
func WithUnresolvedOrganization(orgID string) Option {
	return func(s *EvaluationService) {
		if orgID != "" {
			s.unresolvedOrg = orgID
		}
	}
}

// WithWorkers размер пула для Backfill
func WithWorkers(n int) Option {
	return func(s *EvaluationService) {
		if n > 0 {
			s.workers = n
		}
	}
}

func NewEvaluationService(scorer Scorer, history HistoryBuilder, decider Decider, configs PolicyConfigs, users storage.UserRepository, opts ...Option) *EvaluationService {
	s := &EvaluationService{
		scorer:         scorer,
		history:        history,
		decider:        decider,
		configs:        configs,
		users:          users,
		logger:         zap.NewNop(),
		serviceName:    "risk-review-service",
		defaultCountry: "US",
		unresolvedOrg:  DefaultUnresolvedOrganization,
		workers:        4,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EvaluateTransaction оценивает операцию и принимает решение. Входная операция не изменяется.
// Ошибка возвращается только для некорректной операции.
func (s *EvaluationService) EvaluateTransaction(ctx context.Context, in *models.Transaction) (*models.Evaluation, error) {
	if err := fraud.Validate(in); err != nil {
		return nil, err
	}
	started := s.now()

	tx := *in
	role, err := s.resolveActor(ctx, &tx)
	if err != nil && tx.OrganizationID == "" {
		tx.OrganizationID = s.unresolvedOrg
	}

	assessment, evalErr := s.scorer.Evaluate(&tx, s.history.Build(ctx, &tx))
	if evalErr != nil {
		return nil, evalErr
	}

	var decision models.Decision
	if err != nil {
		decision = policy.ErrorDecision(err.Error())
	} else {
		decision = s.decide(ctx, &tx, assessment, role)
	}

	eval := &models.Evaluation{
		Transaction:    &tx,
		RiskAssessment: assessment,
		Decision:       &decision,
	}
	s.attachNarrative(ctx, eval)

	if s.recorder != nil {
		s.recorder.RecordEvaluation(s.now().Sub(started), assessment, &decision)
	}
	s.logger.Info("transaction evaluated",
		zap.String("transaction_id", tx.ID),
		zap.Int("composite_score", assessment.CompositeScore),
		zap.String("severity", string(assessment.Severity)),
		zap.Bool("requires_review", decision.RequiresReview),
		zap.String("reason_code", string(decision.ReasonCode)),
	)
	logger.LogEvent(logger.EventTransactionEvaluated, s.serviceName, "scoring", map[string]interface{}{
		"transaction_id":  tx.ID,
		"composite_score": assessment.CompositeScore,
		"reason_code":     string(decision.ReasonCode),
	})
	return eval, nil
}

// resolveActor находит роль автора; организация берется из справочника, если не указана
func (s *EvaluationService) resolveActor(ctx context.Context, tx *models.Transaction) (models.Role, error) {
	if tx.CreatedBy == "" {
		return "", fmt.Errorf("transaction creator is unknown")
	}
	user, err := s.users.GetUser(ctx, tx.CreatedBy)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return "", fmt.Errorf("user %s is not in the directory", tx.CreatedBy)
		}
		s.logger.Error("user directory lookup failed", zap.String("user_id", tx.CreatedBy), zap.Error(err))
		return "", fmt.Errorf("user directory is unavailable")
	}
	if tx.OrganizationID == "" {
		tx.OrganizationID = user.OrganizationID
	}
	if tx.OrganizationID != user.OrganizationID {
		return "", fmt.Errorf("user %s does not belong to organization %s", user.ID, tx.OrganizationID)
	}
	return user.Role, nil
}

func (s *EvaluationService) decide(ctx context.Context, tx *models.Transaction, assessment *models.RiskAssessment, role models.Role) models.Decision {
	cfg, err := s.configs.Get(ctx, tx.PolicyScope(s.defaultCountry))
	if err != nil {
		s.logger.Error("policy configuration unavailable",
			zap.String("transaction_id", tx.ID),
			zap.String("organization_id", tx.OrganizationID),
			zap.Error(err),
		)
		return policy.ErrorDecision(fmt.Sprintf("policy configuration unavailable: %v", err))
	}
	return s.decider.Decide(tx, assessment, cfg, role)
}

// attachNarrative добавляет вторичный сигнал; на решение не влияет
func (s *EvaluationService) attachNarrative(ctx context.Context, eval *models.Evaluation) {
	if s.narrative == nil || strings.TrimSpace(eval.Transaction.Description) == "" {
		return
	}
	result, err := s.narrative.Analyze(ctx, eval.Transaction)
	if err != nil {
		if s.recorder != nil {
			s.recorder.NarrativeFailed()
		}
		s.logger.Warn("narrative analysis skipped",
			zap.String("transaction_id", eval.Transaction.ID),
			zap.Error(err),
		)
		return
	}
	eval.Narrative = result
}

// ProcessTransaction оценивает операцию, ставит в очередь или публикует авто-одобрение.
// Сбои кэша, зеркала и публикации только логируются.
func (s *EvaluationService) ProcessTransaction(ctx context.Context, tx *models.Transaction) (*models.Evaluation, error) {
	eval, err := s.EvaluateTransaction(ctx, tx)
	if err != nil {
		return nil, err
	}

	if eval.Decision.RequiresReview {
		if s.queue == nil {
			return nil, fmt.Errorf("review queue is not configured")
		}
		item, err := s.queue.Enqueue(ctx, eval.Transaction, eval.RiskAssessment, *eval.Decision)
		if err != nil {
			return nil, fmt.Errorf("failed to enqueue transaction %s: %w", tx.ID, err)
		}
		eval.ReviewItem = item
	} else {
		s.publishAutoApproved(ctx, eval)
	}

	s.remember(ctx, eval)
	return eval, nil
}

func (s *EvaluationService) publishAutoApproved(ctx context.Context, eval *models.Evaluation) {
	logger.LogEvent(logger.EventTransactionAutoPassed, s.serviceName, "scoring", map[string]interface{}{
		"transaction_id": eval.Transaction.ID,
	})
	if s.publisher == nil {
		return
	}
	event := &models.ReviewEvent{
		EventID:        uuid.NewString(),
		EventType:      models.EventTransactionAutoApproved,
		TransactionID:  eval.Transaction.ID,
		OrganizationID: eval.Transaction.OrganizationID,
		ReasonCode:     eval.Decision.ReasonCode,
		Actor:          eval.Transaction.CreatedBy,
		Timestamp:      s.now().UTC(),
	}
	if err := s.publisher.PublishReviewEvent(ctx, event); err != nil {
		s.logger.Warn("failed to publish auto-approval event",
			zap.String("transaction_id", eval.Transaction.ID),
			zap.Error(err),
		)
	}
}

// remember кэширует оценку, считает решение и пишет операцию в зеркало
func (s *EvaluationService) remember(ctx context.Context, eval *models.Evaluation) {
	tx := eval.Transaction
	if s.cache != nil {
		if err := s.cache.SaveAssessment(ctx, eval.RiskAssessment); err != nil {
			s.logger.Warn("failed to cache assessment", zap.String("transaction_id", tx.ID), zap.Error(err))
		} else {
			logger.LogEvent(logger.EventAssessmentCached, s.serviceName, "redis", map[string]interface{}{
				"transaction_id": tx.ID,
			})
		}
		if tx.OrganizationID != "" {
			if err := s.cache.IncrementDecision(ctx, tx.OrganizationID, eval.Decision.ReasonCode, s.now()); err != nil {
				s.logger.Warn("failed to count decision", zap.String("transaction_id", tx.ID), zap.Error(err))
			}
		}
	}
	if s.ledger != nil {
		if err := s.ledger.SaveLedgerTransaction(ctx, tx); err != nil {
			s.logger.Warn("failed to mirror ledger transaction", zap.String("transaction_id", tx.ID), zap.Error(err))
		}
	}
}

// CachedAssessment оценка из кэша; NotFoundError, если ее нет
func (s *EvaluationService) CachedAssessment(ctx context.Context, transactionID string) (*models.RiskAssessment, error) {
	if s.cache == nil {
		return nil, xerrors.DependencyUnavailable("assessment-cache", fmt.Errorf("cache is not configured"))
	}
	assessment, err := s.cache.GetAssessment(ctx, transactionID)
	if err != nil {
		return nil, xerrors.DependencyUnavailable("assessment-cache", err)
	}
	if assessment == nil {
		return nil, xerrors.NotFound("risk assessment", transactionID)
	}
	return assessment, nil
}

func (s *EvaluationService) DecisionCounts(ctx context.Context, organizationID string, day time.Time) (map[models.ReasonCode]int64, error) {
	if organizationID == "" {
		return nil, xerrors.Validation("organization_id", "is required")
	}
	if s.cache == nil {
		return nil, xerrors.DependencyUnavailable("assessment-cache", fmt.Errorf("cache is not configured"))
	}
	counts, err := s.cache.DecisionCounts(ctx, organizationID, day)
	if err != nil {
		return nil, xerrors.DependencyUnavailable("assessment-cache", err)
	}
	return counts, nil
}

// HandleLedgerEvent обработчик сообщений учетной книги для kafka.Consumer.
// Некорректные операции пропускаются, чтобы не блокировать партицию; ошибки очереди возвращаются.
func (s *EvaluationService) HandleLedgerEvent(ctx context.Context, event *models.LedgerTransactionEvent) error {
	if err := fraud.Validate(event.Transaction); err != nil {
		s.logger.Warn("skipping invalid ledger transaction",
			zap.String("event_id", event.EventID),
			zap.Error(err),
		)
		return nil
	}
	logger.LogEvent(logger.EventLedgerReceived, s.serviceName, "kafka", map[string]interface{}{
		"event_id":       event.EventID,
		"transaction_id": event.Transaction.ID,
	})
	_, err := s.ProcessTransaction(ctx, event.Transaction)
	return err
}

var _ Evaluator = (*EvaluationService)(nil)
