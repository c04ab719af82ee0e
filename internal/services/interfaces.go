package services

import (
	"context"
	"time"

	"risk-review-system/internal/fraud"
	"risk-review-system/internal/models"
)

// Scorer многослойный скоринг (fraud.Engine)
type Scorer interface {
	Evaluate(tx *models.Transaction, hctx *fraud.HistoricalContext) (*models.RiskAssessment, error)
}

// HistoryBuilder снимок истории для детекторов (history.Builder)
type HistoryBuilder interface {
	Build(ctx context.Context, tx *models.Transaction) *fraud.HistoricalContext
}

// Decider движок политик (policy.Engine)
type Decider interface {
	Decide(tx *models.Transaction, assessment *models.RiskAssessment, cfg *models.PolicyConfig, role models.Role) models.Decision
}

// PolicyConfigs источник конфигурации политик (policy.Store)
type PolicyConfigs interface {
	Get(ctx context.Context, scope models.PolicyScope) (*models.PolicyConfig, error)
}

// ReviewQueue очередь ручной проверки (workflow.Manager)
type ReviewQueue interface {
	Enqueue(ctx context.Context, tx *models.Transaction, assessment *models.RiskAssessment, decision models.Decision) (*models.ReviewQueueItem, error)
}

// AssessmentCache кэш оценок и счетчики решений (redis.Client)
type AssessmentCache interface {
	SaveAssessment(ctx context.Context, assessment *models.RiskAssessment) error
	GetAssessment(ctx context.Context, transactionID string) (*models.RiskAssessment, error)
	IncrementDecision(ctx context.Context, organizationID string, reason models.ReasonCode, at time.Time) error
	DecisionCounts(ctx context.Context, organizationID string, day time.Time) (map[models.ReasonCode]int64, error)
}

// EventPublisher публикация событий для внешней доставки уведомлений
type EventPublisher interface {
	PublishReviewEvent(ctx context.Context, event *models.ReviewEvent) error
}

// Recorder метрики оценки
type Recorder interface {
	RecordEvaluation(duration time.Duration, assessment *models.RiskAssessment, decision *models.Decision)
	NarrativeFailed()
}

// Evaluator операции оценки для транспортного слоя
type Evaluator interface {
	// EvaluateTransaction оценивает операцию без побочных эффектов
	EvaluateTransaction(ctx context.Context, tx *models.Transaction) (*models.Evaluation, error)

	// ProcessTransaction оценивает операцию и ставит в очередь при необходимости
	ProcessTransaction(ctx context.Context, tx *models.Transaction) (*models.Evaluation, error)

	// Backfill обрабатывает пачку независимых операций пулом воркеров
	Backfill(ctx context.Context, txs []*models.Transaction) ([]BackfillResult, error)

	// CachedAssessment последняя сохраненная оценка операции
	CachedAssessment(ctx context.Context, transactionID string) (*models.RiskAssessment, error)

	// DecisionCounts дневные счетчики решений организации
	DecisionCounts(ctx context.Context, organizationID string, day time.Time) (map[models.ReasonCode]int64, error)
}

// ReviewWorkflow операции очереди проверки (workflow.Manager)
type ReviewWorkflow interface {
	Get(ctx context.Context, itemID string) (*models.ReviewQueueItem, error)
	ListPending(ctx context.Context, organizationID string, filters models.ReviewFilters) ([]*models.ReviewQueueItem, error)
	Assign(ctx context.Context, itemID, reviewerID, actorID string) (*models.ReviewQueueItem, error)
	AutoAssign(ctx context.Context, itemID string) (*models.ReviewQueueItem, error)
	Approve(ctx context.Context, itemID, reviewerID string, decision models.ReviewDecision) (*models.ReviewQueueItem, error)
	Reject(ctx context.Context, itemID, reviewerID string, decision models.ReviewDecision) (*models.ReviewQueueItem, error)
	EscalateSecondApproval(ctx context.Context, itemID, approverID string) (*models.ReviewQueueItem, error)
	AddComment(ctx context.Context, itemID, actorID, text string) (*models.ReviewQueueItem, error)
	SLABreaches(ctx context.Context, organizationID string) ([]*models.ReviewQueueItem, error)
	StatsSnapshot(organizationID string) models.ReviewStats
	RebuildStats(ctx context.Context, organizationID string) (models.ReviewStats, error)
}

// PolicyAdmin чтение и частичное обновление конфигурации (policy.Store)
type PolicyAdmin interface {
	Get(ctx context.Context, scope models.PolicyScope) (*models.PolicyConfig, error)
	Update(ctx context.Context, scope models.PolicyScope, update models.PolicyConfigUpdate, actorID string) (*models.PolicyConfig, error)
}

// UserAdmin чтение и запись справочника пользователей (UserDirectory)
type UserAdmin interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	SaveUser(ctx context.Context, user *models.User) (*models.User, error)
}
