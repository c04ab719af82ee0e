package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"risk-review-system/internal/models"
	"risk-review-system/internal/storage"
	"risk-review-system/internal/xerrors"
)

// SystemActor автор автоматических действий
const SystemActor = "system"

// Лимиты выборки очереди
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

var half = decimal.NewFromFloat(0.5)

// ConfigProvider источник конфигурации политик (policy.Store)
type ConfigProvider interface {
	Get(ctx context.Context, scope models.PolicyScope) (*models.PolicyConfig, error)
}

// EventPublisher публикация событий очереди для внешней доставки уведомлений
type EventPublisher interface {
	PublishReviewEvent(ctx context.Context, event *models.ReviewEvent) error
}

// Recorder метрики очереди
type Recorder interface {
	ReviewEnqueued(priority models.Priority)
	ReviewTransition(status models.ReviewStatus)
	ReviewLatency(latency time.Duration)
	SLABreaches(organizationID string, count int)
}

// Manager очередь ручной проверки и машина состояний
type Manager struct {
	reviews        storage.ReviewRepository
	users          storage.UserRepository
	configs        ConfigProvider
	publisher      EventPublisher
	recorder       Recorder
	stats          *Stats
	logger         *zap.Logger
	now            func() time.Time
	defaultCountry string
}

// Option настройка Manager
type Option func(*Manager)

func WithPublisher(p EventPublisher) Option { return func(m *Manager) { m.publisher = p } }

func WithRecorder(r Recorder) Option { return func(m *Manager) { m.recorder = r } }

func WithLogger(l *zap.Logger) Option { return func(m *Manager) { m.logger = l } }

func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

func WithStats(s *Stats) Option { return func(m *Manager) { m.stats = s } }

// WithDefaultCountry страна конфигурации для операций без страны
func WithDefaultCountry(country string) Option {
	return func(m *Manager) { m.defaultCountry = strings.ToUpper(country) }
}

func NewManager(reviews storage.ReviewRepository, users storage.UserRepository, configs ConfigProvider, opts ...Option) *Manager {
	m := &Manager{
		reviews:        reviews,
		users:          users,
		configs:        configs,
		stats:          NewStats(),
		logger:         zap.NewNop(),
		now:            time.Now,
		defaultCountry: "US",
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Stats кэш статистики
func (m *Manager) Stats() *Stats { return m.stats }

func (m *Manager) timestamp() time.Time { return m.now().UTC() }

func (m *Manager) audit(action models.AuditAction, actor, details string, at time.Time) models.AuditEntry {
	return models.AuditEntry{
		ID:        ulid.Make().String(),
		Action:    action,
		Actor:     actor,
		Timestamp: at,
		Details:   details,
	}
}

func (m *Manager) scopeOf(tx *models.Transaction) models.PolicyScope {
	return tx.PolicyScope(m.defaultCountry)
}

// Enqueue ставит операцию в очередь. Если по операции уже есть открытый элемент,
// возвращает его и добавляет запись REEVALUATED.
func (m *Manager) Enqueue(ctx context.Context, tx *models.Transaction, assessment *models.RiskAssessment, decision models.Decision) (*models.ReviewQueueItem, error) {
	if tx == nil || tx.ID == "" {
		return nil, xerrors.Validation("transaction", "is required")
	}
	if assessment == nil {
		return nil, xerrors.Validation("risk_assessment", "is required")
	}
	if tx.OrganizationID == "" {
		return nil, xerrors.Validation("organization_id", "is required")
	}

	if existing, err := m.reviews.GetOpenReviewItemByTransaction(ctx, tx.ID); err == nil {
		return m.reevaluate(ctx, existing, assessment, decision)
	} else if !errors.Is(err, xerrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up open review item: %w", err)
	}

	cfg, err := m.configs.Get(ctx, m.scopeOf(tx))
	if err != nil {
		return nil, fmt.Errorf("failed to load policy config: %w", err)
	}

	now := m.timestamp()
	item := &models.ReviewQueueItem{
		ID:             uuid.New().String(),
		TransactionID:  tx.ID,
		OrganizationID: tx.OrganizationID,
		BranchID:       tx.BranchID,
		Transaction:    *tx,
		RiskAssessment: *assessment,
		ReviewReason:   models.ReviewReason{Code: decision.ReasonCode, Details: decision.Details},
		Status:         models.ReviewStatusPending,
		Priority:       PriorityFor(tx.Amount, assessment.CompositeScore, assessment.FraudConfidence),
		DueDate:        now.Add(time.Duration(cfg.SLAHours) * time.Hour),
		CreatedAt:      now,
		UpdatedAt:      now,
		Version:        1,
	}
	item.AuditLog = []models.AuditEntry{
		m.audit(models.AuditCreated, SystemActor, fmt.Sprintf("%s: %s", decision.ReasonCode, decision.Details), now),
	}

	if err := m.reviews.CreateReviewItem(ctx, item); err != nil {
		if errors.Is(err, xerrors.ErrConflict) {
			// открытый элемент создан конкурентным запросом
			existing, getErr := m.reviews.GetOpenReviewItemByTransaction(ctx, tx.ID)
			if getErr != nil {
				return nil, fmt.Errorf("failed to load concurrently created review item: %w", getErr)
			}
			return m.reevaluate(ctx, existing, assessment, decision)
		}
		return nil, fmt.Errorf("failed to create review item: %w", err)
	}

	m.stats.OnCreated(item.OrganizationID, item.Priority)
	if m.recorder != nil {
		m.recorder.ReviewEnqueued(item.Priority)
	}
	m.logger.Info("review item enqueued",
		zap.String("review_id", item.ID),
		zap.String("transaction_id", item.TransactionID),
		zap.String("priority", string(item.Priority)),
		zap.String("reason", string(decision.ReasonCode)),
	)
	m.publish(ctx, models.EventReviewEnqueued, item, SystemActor)

	if cfg.AutoAssign {
		assigned, err := m.AutoAssign(ctx, item.ID)
		if err != nil {
			m.logger.Warn("auto-assignment skipped", zap.String("review_id", item.ID), zap.Error(err))
			return item, nil
		}
		return assigned, nil
	}
	return item, nil
}

func (m *Manager) reevaluate(ctx context.Context, item *models.ReviewQueueItem, assessment *models.RiskAssessment, decision models.Decision) (*models.ReviewQueueItem, error) {
	entry := m.audit(models.AuditReevaluated, SystemActor,
		fmt.Sprintf("score %d, confidence %d, %s", assessment.CompositeScore, assessment.FraudConfidence, decision.ReasonCode),
		m.timestamp())
	if err := m.reviews.AppendAudit(ctx, item.ID, entry); err != nil {
		return nil, fmt.Errorf("failed to append audit entry: %w", err)
	}
	item.AuditLog = append(item.AuditLog, entry)
	m.markSLA(item)
	return item, nil
}

// Assign назначает проверяющего вручную
func (m *Manager) Assign(ctx context.Context, itemID, reviewerID, actorID string) (*models.ReviewQueueItem, error) {
	if reviewerID == "" {
		return nil, xerrors.Validation("reviewer_id", "is required")
	}
	if actorID == "" {
		actorID = SystemActor
	}

	item, err := m.reviews.GetReviewItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if !item.Status.IsDecidable() {
		return nil, xerrors.Conflict("review item", item.ID, "cannot assign in status %s", item.Status)
	}

	reviewer, err := m.users.GetUser(ctx, reviewerID)
	if err != nil {
		return nil, err
	}
	if err := checkReviewer(reviewer, item); err != nil {
		return nil, err
	}

	return m.assign(ctx, item, reviewer.ID, actorID)
}

// AutoAssign назначает активного проверяющего организации с наименьшим числом открытых
// назначений, при равенстве - с меньшим идентификатором
func (m *Manager) AutoAssign(ctx context.Context, itemID string) (*models.ReviewQueueItem, error) {
	item, err := m.reviews.GetReviewItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.Status != models.ReviewStatusPending {
		return nil, xerrors.Conflict("review item", item.ID, "cannot auto-assign in status %s", item.Status)
	}

	candidates, err := m.users.ListReviewers(ctx, item.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviewers: %w", err)
	}
	load, err := m.reviews.CountOpenAssignments(ctx, item.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to count assignments: %w", err)
	}

	var eligible []*models.User
	for _, u := range candidates {
		if checkReviewer(u, item) == nil {
			eligible = append(eligible, u)
		}
	}
	if len(eligible) == 0 {
		return nil, xerrors.NotFound("available reviewer", item.OrganizationID)
	}

	sort.Slice(eligible, func(i, j int) bool {
		li, lj := load[eligible[i].ID], load[eligible[j].ID]
		if li != lj {
			return li < lj
		}
		return eligible[i].ID < eligible[j].ID
	})

	return m.assign(ctx, item, eligible[0].ID, SystemActor)
}

func (m *Manager) assign(ctx context.Context, item *models.ReviewQueueItem, reviewerID, actorID string) (*models.ReviewQueueItem, error) {
	now := m.timestamp()
	from := item.Status
	expected := item.Version

	item.AssignedTo = reviewerID
	item.Status = models.ReviewStatusInReview
	item.UpdatedAt = now
	entry := m.audit(models.AuditAssigned, actorID, "assigned to "+reviewerID, now)

	if err := m.reviews.UpdateReviewItem(ctx, item, expected, entry); err != nil {
		return nil, err
	}
	item.AuditLog = append(item.AuditLog, entry)

	m.transitioned(item, from, 0)
	m.publish(ctx, models.EventReviewAssigned, item, actorID)
	m.markSLA(item)
	return item, nil
}

// Approve одобрение элемента. Если роль проверяющего требует второго одобрения и сумма
// выше половины потолка роли, элемент переходит в ESCALATED.
func (m *Manager) Approve(ctx context.Context, itemID, reviewerID string, decision models.ReviewDecision) (*models.ReviewQueueItem, error) {
	decision.Approved = true
	return m.decide(ctx, itemID, reviewerID, decision)
}

// Reject отклонение элемента. Эскалированный элемент может отклонить только
// допустимый второй проверяющий.
func (m *Manager) Reject(ctx context.Context, itemID, reviewerID string, decision models.ReviewDecision) (*models.ReviewQueueItem, error) {
	decision.Approved = false
	return m.decide(ctx, itemID, reviewerID, decision)
}

func (m *Manager) decide(ctx context.Context, itemID, reviewerID string, decision models.ReviewDecision) (*models.ReviewQueueItem, error) {
	if reviewerID == "" {
		return nil, xerrors.Validation("reviewer_id", "is required")
	}

	item, err := m.reviews.GetReviewItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	escalated := item.Status == models.ReviewStatusEscalated
	switch {
	case escalated && decision.Approved:
		return nil, xerrors.Conflict("review item", item.ID, "escalated item requires second approval")
	case escalated && reviewerID == item.ReviewedBy:
		return nil, xerrors.PolicyViolation(reviewerID, "second approver must differ from first reviewer")
	case !escalated && !item.Status.IsDecidable():
		return nil, xerrors.Conflict("review item", item.ID, "cannot decide in status %s", item.Status)
	}

	reviewer, err := m.users.GetUser(ctx, reviewerID)
	if err != nil {
		return nil, err
	}
	if err := checkReviewer(reviewer, item); err != nil {
		return nil, err
	}

	rp, err := m.rolePolicy(ctx, item, reviewer.Role)
	if err != nil {
		return nil, err
	}
	if escalated && rp.RequiresSecondApproval {
		return nil, xerrors.PolicyViolation(reviewer.ID, "role %s cannot decide an escalated item", reviewer.Role)
	}
	ceiling := rp.CeilingFor(item.Transaction.Currency)
	if item.Transaction.Amount.GreaterThan(ceiling) {
		return nil, xerrors.PolicyViolation(reviewer.ID, "amount %s %s exceeds %s ceiling %s",
			item.Transaction.Amount.String(), item.Transaction.Currency, reviewer.Role, ceiling.String())
	}

	now := m.timestamp()
	from := item.Status
	expected := item.Version

	if !escalated {
		item.ReviewedBy = reviewer.ID
	}
	item.ReviewDecision = &decision
	item.UpdatedAt = now

	var (
		entry models.AuditEntry
		event models.ReviewEventType
	)
	switch {
	case escalated:
		item.Status = models.ReviewStatusRejected
		item.ResolvedAt = &now
		entry = m.audit(models.AuditSecondRejected, reviewer.ID, decision.Reason, now)
		event = models.EventReviewRejected
	case !decision.Approved:
		item.Status = models.ReviewStatusRejected
		item.ResolvedAt = &now
		entry = m.audit(models.AuditRejected, reviewer.ID, decision.Reason, now)
		event = models.EventReviewRejected
	case rp.RequiresSecondApproval && item.Transaction.Amount.GreaterThan(ceiling.Mul(half)):
		item.Status = models.ReviewStatusEscalated
		item.SecondApprovalRequired = true
		entry = m.audit(models.AuditEscalated, reviewer.ID,
			fmt.Sprintf("second approval required above %s %s", ceiling.Mul(half).String(), item.Transaction.Currency), now)
		event = models.EventReviewEscalated
	default:
		item.Status = models.ReviewStatusApproved
		item.ResolvedAt = &now
		entry = m.audit(models.AuditApproved, reviewer.ID, decision.Reason, now)
		event = models.EventReviewApproved
	}

	if err := m.reviews.UpdateReviewItem(ctx, item, expected, entry); err != nil {
		return nil, err
	}
	item.AuditLog = append(item.AuditLog, entry)

	m.transitioned(item, from, now.Sub(item.CreatedAt))
	m.logger.Info("review decided",
		zap.String("review_id", item.ID),
		zap.String("reviewer", reviewer.ID),
		zap.String("status", string(item.Status)),
	)
	m.publish(ctx, event, item, reviewer.ID)
	m.markSLA(item)
	return item, nil
}

// EscalateSecondApproval второе одобрение эскалированного элемента
func (m *Manager) EscalateSecondApproval(ctx context.Context, itemID, approverID string) (*models.ReviewQueueItem, error) {
	if approverID == "" {
		return nil, xerrors.Validation("approver_id", "is required")
	}

	item, err := m.reviews.GetReviewItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.Status != models.ReviewStatusEscalated {
		return nil, xerrors.Conflict("review item", item.ID, "second approval requires status %s, got %s",
			models.ReviewStatusEscalated, item.Status)
	}
	if approverID == item.ReviewedBy {
		return nil, xerrors.PolicyViolation(approverID, "second approver must differ from first reviewer")
	}

	approver, err := m.users.GetUser(ctx, approverID)
	if err != nil {
		return nil, err
	}
	if err := checkReviewer(approver, item); err != nil {
		return nil, err
	}

	rp, err := m.rolePolicy(ctx, item, approver.Role)
	if err != nil {
		return nil, err
	}
	if rp.RequiresSecondApproval {
		return nil, xerrors.PolicyViolation(approver.ID, "role %s cannot give second approval", approver.Role)
	}
	if ceiling := rp.CeilingFor(item.Transaction.Currency); item.Transaction.Amount.GreaterThan(ceiling) {
		return nil, xerrors.PolicyViolation(approver.ID, "amount exceeds %s ceiling %s", approver.Role, ceiling.String())
	}

	now := m.timestamp()
	from := item.Status
	expected := item.Version

	item.Status = models.ReviewStatusApproved
	item.SecondApprovedBy = approver.ID
	item.ResolvedAt = &now
	item.UpdatedAt = now
	entry := m.audit(models.AuditSecondApproved, approver.ID, "second approval granted", now)

	if err := m.reviews.UpdateReviewItem(ctx, item, expected, entry); err != nil {
		return nil, err
	}
	item.AuditLog = append(item.AuditLog, entry)

	m.transitioned(item, from, now.Sub(item.CreatedAt))
	m.publish(ctx, models.EventReviewApproved, item, approver.ID)
	m.markSLA(item)
	return item, nil
}

// AddComment добавляет комментарий, допустимо и для финальных элементов
func (m *Manager) AddComment(ctx context.Context, itemID, actorID, text string) (*models.ReviewQueueItem, error) {
	if actorID == "" {
		return nil, xerrors.Validation("actor_id", "is required")
	}
	if strings.TrimSpace(text) == "" {
		return nil, xerrors.Validation("comment", "must not be empty")
	}

	item, err := m.reviews.GetReviewItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	entry := m.audit(models.AuditCommented, actorID, text, m.timestamp())
	if err := m.reviews.AppendAudit(ctx, item.ID, entry); err != nil {
		return nil, fmt.Errorf("failed to append comment: %w", err)
	}
	item.AuditLog = append(item.AuditLog, entry)
	m.markSLA(item)
	return item, nil
}

// Get элемент очереди с вычисленным признаком нарушения SLA
func (m *Manager) Get(ctx context.Context, itemID string) (*models.ReviewQueueItem, error) {
	item, err := m.reviews.GetReviewItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	m.markSLA(item)
	return item, nil
}

// ListPending открытые элементы организации в порядке обработки
func (m *Manager) ListPending(ctx context.Context, organizationID string, filters models.ReviewFilters) ([]*models.ReviewQueueItem, error) {
	if organizationID == "" {
		return nil, xerrors.Validation("organization_id", "is required")
	}
	if filters.Priority != "" && !filters.Priority.IsValid() {
		return nil, xerrors.Validation("priority", fmt.Sprintf("unknown priority %q", filters.Priority))
	}
	if filters.Limit <= 0 {
		filters.Limit = DefaultListLimit
	}
	if filters.Limit > MaxListLimit {
		filters.Limit = MaxListLimit
	}

	items, err := m.reviews.ListOpenReviewItems(ctx, organizationID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list review items: %w", err)
	}
	for _, item := range items {
		m.markSLA(item)
	}
	return items, nil
}

// SLABreaches открытые элементы с истекшим сроком. Нарушение не меняет состояние.
func (m *Manager) SLABreaches(ctx context.Context, organizationID string) ([]*models.ReviewQueueItem, error) {
	if organizationID == "" {
		return nil, xerrors.Validation("organization_id", "is required")
	}
	items, err := m.reviews.ListOpenReviewItems(ctx, organizationID, models.ReviewFilters{})
	if err != nil {
		return nil, fmt.Errorf("failed to list review items: %w", err)
	}

	now := m.timestamp()
	breached := make([]*models.ReviewQueueItem, 0)
	for _, item := range items {
		if item.IsOverdue(now) {
			item.SLABreached = true
			breached = append(breached, item)
		}
	}

	if m.recorder != nil {
		m.recorder.SLABreaches(organizationID, len(breached))
	}
	if len(breached) > 0 {
		m.logger.Warn("review SLA breached",
			zap.String("organization_id", organizationID),
			zap.Int("count", len(breached)),
		)
	}
	return breached, nil
}

// StatsSnapshot текущая статистика организации
func (m *Manager) StatsSnapshot(organizationID string) models.ReviewStats {
	return m.stats.Snapshot(organizationID)
}

// RebuildStats пересчитывает статистику по сохраненным элементам
func (m *Manager) RebuildStats(ctx context.Context, organizationID string) (models.ReviewStats, error) {
	if organizationID == "" {
		return models.ReviewStats{}, xerrors.Validation("organization_id", "is required")
	}
	items, err := m.reviews.ListReviewItems(ctx, organizationID)
	if err != nil {
		return models.ReviewStats{}, fmt.Errorf("failed to list review items: %w", err)
	}
	return m.stats.Rebuild(organizationID, items, m.timestamp()), nil
}

func (m *Manager) rolePolicy(ctx context.Context, item *models.ReviewQueueItem, role models.Role) (models.RolePolicy, error) {
	cfg, err := m.configs.Get(ctx, m.scopeOf(&item.Transaction))
	if err != nil {
		return models.RolePolicy{}, fmt.Errorf("failed to load policy config: %w", err)
	}
	rp, ok := cfg.RolePolicies[role]
	if !ok {
		return models.RolePolicy{}, xerrors.PolicyViolation(string(role), "no policy configured for role %s", role)
	}
	return rp, nil
}

func (m *Manager) transitioned(item *models.ReviewQueueItem, from models.ReviewStatus, latency time.Duration) {
	m.stats.OnTransition(item.OrganizationID, from, item.Status, latency)
	if m.recorder != nil {
		m.recorder.ReviewTransition(item.Status)
		if item.Status.IsTerminal() {
			m.recorder.ReviewLatency(latency)
		}
	}
}

func (m *Manager) markSLA(item *models.ReviewQueueItem) {
	item.SLABreached = item.IsOverdue(m.timestamp())
}

func (m *Manager) publish(ctx context.Context, eventType models.ReviewEventType, item *models.ReviewQueueItem, actor string) {
	if m.publisher == nil {
		return
	}
	event := &models.ReviewEvent{
		EventID:        uuid.New().String(),
		EventType:      eventType,
		ReviewID:       item.ID,
		TransactionID:  item.TransactionID,
		OrganizationID: item.OrganizationID,
		Status:         item.Status,
		Priority:       item.Priority,
		Actor:          actor,
		ReasonCode:     item.ReviewReason.Code,
		Timestamp:      m.timestamp(),
	}
	if err := m.publisher.PublishReviewEvent(ctx, event); err != nil {
		m.logger.Warn("failed to publish review event",
			zap.String("event_type", string(eventType)),
			zap.String("review_id", item.ID),
			zap.Error(err),
		)
	}
}

// checkReviewer проверяет право пользователя работать с элементом
func checkReviewer(u *models.User, item *models.ReviewQueueItem) error {
	switch {
	case u == nil:
		return xerrors.PolicyViolation("", "reviewer is unknown")
	case !u.IsActive:
		return xerrors.PolicyViolation(u.ID, "reviewer is not active")
	case u.OrganizationID != item.OrganizationID:
		return xerrors.PolicyViolation(u.ID, "reviewer belongs to another organization")
	case !u.Role.IsReviewer():
		return xerrors.PolicyViolation(u.ID, "role %s cannot review", u.Role)
	case u.ID == item.Transaction.CreatedBy:
		return xerrors.PolicyViolation(u.ID, "self-approval is not allowed")
	}
	return nil
}
