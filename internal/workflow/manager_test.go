package workflow

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"risk-review-system/internal/models"
	"risk-review-system/internal/policy"
	"risk-review-system/internal/xerrors"
)

// memReviews хранилище очереди в памяти с проверкой версии
type memReviews struct {
	mu    sync.Mutex
	items map[string]*models.ReviewQueueItem
}

// sortQueue порядок выдачи очереди: приоритет по убыванию, затем старые первыми
func sortQueue(items []*models.ReviewQueueItem) {
	sort.SliceStable(items, func(i, j int) bool {
		ri, rj := items[i].Priority.Rank(), items[j].Priority.Rank()
		if ri != rj {
			return ri > rj
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
}

func newMemReviews() *memReviews {
	return &memReviews{items: make(map[string]*models.ReviewQueueItem)}
}

func clone(item *models.ReviewQueueItem) *models.ReviewQueueItem {
	c := *item
	c.AuditLog = append([]models.AuditEntry(nil), item.AuditLog...)
	if item.ResolvedAt != nil {
		at := *item.ResolvedAt
		c.ResolvedAt = &at
	}
	if item.ReviewDecision != nil {
		d := *item.ReviewDecision
		c.ReviewDecision = &d
	}
	return &c
}

func (r *memReviews) CreateReviewItem(_ context.Context, item *models.ReviewQueueItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.TransactionID == item.TransactionID && !existing.Status.IsTerminal() {
			return xerrors.Conflict("review item", item.TransactionID, "open item exists")
		}
	}
	r.items[item.ID] = clone(item)
	return nil
}

func (r *memReviews) GetReviewItem(_ context.Context, id string) (*models.ReviewQueueItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return nil, xerrors.NotFound("review item", id)
	}
	return clone(item), nil
}

func (r *memReviews) GetOpenReviewItemByTransaction(_ context.Context, transactionID string) (*models.ReviewQueueItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.items {
		if item.TransactionID == transactionID && !item.Status.IsTerminal() {
			return clone(item), nil
		}
	}
	return nil, xerrors.NotFound("review item", transactionID)
}

func (r *memReviews) UpdateReviewItem(_ context.Context, item *models.ReviewQueueItem, expectedVersion int, entries ...models.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[item.ID]
	if !ok {
		return xerrors.NotFound("review item", item.ID)
	}
	if stored.Version != expectedVersion {
		return xerrors.Conflict("review item", item.ID, "version mismatch")
	}
	next := clone(item)
	next.AuditLog = append(append([]models.AuditEntry(nil), stored.AuditLog...), entries...)
	next.Version = expectedVersion + 1
	r.items[item.ID] = next
	item.Version = next.Version
	return nil
}

func (r *memReviews) AppendAudit(_ context.Context, itemID string, entry models.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[itemID]
	if !ok {
		return xerrors.NotFound("review item", itemID)
	}
	stored.AuditLog = append(stored.AuditLog, entry)
	return nil
}

func (r *memReviews) ListOpenReviewItems(_ context.Context, organizationID string, filters models.ReviewFilters) ([]*models.ReviewQueueItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ReviewQueueItem
	for _, item := range r.items {
		if item.OrganizationID != organizationID || item.Status.IsTerminal() {
			continue
		}
		if filters.Priority != "" && item.Priority != filters.Priority {
			continue
		}
		if filters.AssignedTo != "" && item.AssignedTo != filters.AssignedTo {
			continue
		}
		out = append(out, clone(item))
	}
	sortQueue(out)
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, nil
}

func (r *memReviews) ListReviewItems(_ context.Context, organizationID string) ([]*models.ReviewQueueItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ReviewQueueItem
	for _, item := range r.items {
		if organizationID == "" || item.OrganizationID == organizationID {
			out = append(out, clone(item))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memReviews) CountOpenAssignments(_ context.Context, organizationID string) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	load := make(map[string]int)
	for _, item := range r.items {
		if item.OrganizationID == organizationID && item.AssignedTo != "" && !item.Status.IsTerminal() {
			load[item.AssignedTo]++
		}
	}
	return load, nil
}

type memUsers map[string]*models.User

func (u memUsers) GetUser(_ context.Context, id string) (*models.User, error) {
	user, ok := u[id]
	if !ok {
		return nil, xerrors.NotFound("user", id)
	}
	return user, nil
}

func (u memUsers) ListReviewers(_ context.Context, organizationID string) ([]*models.User, error) {
	var out []*models.User
	for _, user := range u {
		if user.OrganizationID == organizationID && user.IsActive && user.Role.IsReviewer() {
			out = append(out, user)
		}
	}
	return out, nil
}

func (u memUsers) SaveUser(_ context.Context, user *models.User) error {
	u[user.ID] = user
	return nil
}

type staticConfigs struct {
	cfg *models.PolicyConfig
}

func (s staticConfigs) Get(context.Context, models.PolicyScope) (*models.PolicyConfig, error) {
	return s.cfg, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.ReviewEventType
	err    error
}

func (p *recordingPublisher) PublishReviewEvent(_ context.Context, event *models.ReviewEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event.EventType)
	return p.err
}

type countingRecorder struct {
	enqueued    int
	transitions []models.ReviewStatus
	latencies   []time.Duration
	breaches    map[string]int
}

func (r *countingRecorder) ReviewEnqueued(models.Priority) { r.enqueued++ }

func (r *countingRecorder) ReviewTransition(s models.ReviewStatus) {
	r.transitions = append(r.transitions, s)
}

func (r *countingRecorder) ReviewLatency(d time.Duration) { r.latencies = append(r.latencies, d) }

func (r *countingRecorder) SLABreaches(org string, n int) {
	if r.breaches == nil {
		r.breaches = make(map[string]int)
	}
	r.breaches[org] = n
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

var start = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	manager   *Manager
	reviews   *memReviews
	users     memUsers
	cfg       *models.PolicyConfig
	clock     *testClock
	publisher *recordingPublisher
	recorder  *countingRecorder
}

func newFixture(t *testing.T, autoAssign bool) *fixture {
	t.Helper()
	cfg := policy.DefaultConfig(models.PolicyScope{OrganizationID: "org-1", Country: "US"}, start)
	cfg.AutoAssign = autoAssign

	f := &fixture{
		reviews: newMemReviews(),
		users: memUsers{
			"creator":    {ID: "creator", Role: models.RoleAccountant, OrganizationID: "org-1", IsActive: true},
			"acc-1":      {ID: "acc-1", Role: models.RoleAccountant, OrganizationID: "org-1", IsActive: true},
			"acc-2":      {ID: "acc-2", Role: models.RoleAccountant, OrganizationID: "org-1", IsActive: true},
			"senior-1":   {ID: "senior-1", Role: models.RoleSeniorAccountant, OrganizationID: "org-1", IsActive: true},
			"admin-1":    {ID: "admin-1", Role: models.RoleAdmin, OrganizationID: "org-1", IsActive: true},
			"inactive":   {ID: "inactive", Role: models.RoleAdmin, OrganizationID: "org-1", IsActive: false},
			"assistant":  {ID: "assistant", Role: models.RoleAssistant, OrganizationID: "org-1", IsActive: true},
			"other-org":  {ID: "other-org", Role: models.RoleAdmin, OrganizationID: "org-2", IsActive: true},
			"executive1": {ID: "executive1", Role: models.RoleExecutive, OrganizationID: "org-1", IsActive: true},
		},
		cfg:       cfg,
		clock:     &testClock{t: start},
		publisher: &recordingPublisher{},
		recorder:  &countingRecorder{},
	}
	f.manager = NewManager(f.reviews, f.users, staticConfigs{cfg: cfg},
		WithClock(f.clock.Now),
		WithPublisher(f.publisher),
		WithRecorder(f.recorder),
	)
	return f
}

func reviewTx(id string, amount int64) *models.Transaction {
	return &models.Transaction{
		ID:             id,
		Type:           models.TransactionTypeExpense,
		Amount:         decimal.NewFromInt(amount),
		Currency:       "USD",
		Date:           start,
		CreatedBy:      "creator",
		OrganizationID: "org-1",
		Country:        "US",
	}
}

func riskOf(id string, score, confidence int) *models.RiskAssessment {
	return &models.RiskAssessment{TransactionID: id, CompositeScore: score, FraudConfidence: confidence}
}

func reviewDecision(reason models.ReasonCode) models.Decision {
	return models.Decision{RequiresReview: true, ReasonCode: reason, Details: "test"}
}

func (f *fixture) enqueue(t *testing.T, id string, amount int64, score, confidence int) *models.ReviewQueueItem {
	t.Helper()
	item, err := f.manager.Enqueue(context.Background(), reviewTx(id, amount), riskOf(id, score, confidence), reviewDecision(models.ReasonHighRiskScore))
	require.NoError(t, err)
	return item
}

func TestEnqueue_Priority(t *testing.T) {
	f := newFixture(t, false)

	amountDriven := f.enqueue(t, "TXN-A", 60000, 10, 10)
	fraudDriven := f.enqueue(t, "TXN-B", 5000, 10, 90)

	assert.Equal(t, models.PriorityCritical, amountDriven.Priority)
	assert.Equal(t, models.PriorityCritical, fraudDriven.Priority)
	assert.Equal(t, models.ReviewStatusPending, amountDriven.Status)
	assert.Equal(t, start.Add(24*time.Hour), amountDriven.DueDate)
	assert.Equal(t, models.ReasonHighRiskScore, amountDriven.ReviewReason.Code)
	require.Len(t, amountDriven.AuditLog, 1)
	assert.Equal(t, models.AuditCreated, amountDriven.AuditLog[0].Action)
	assert.Equal(t, SystemActor, amountDriven.AuditLog[0].Actor)

	assert.Equal(t, 2, f.recorder.enqueued)
	assert.Equal(t, []models.ReviewEventType{models.EventReviewEnqueued, models.EventReviewEnqueued}, f.publisher.events)
	assert.Equal(t, 2, f.manager.StatsSnapshot("org-1").ByStatus[models.ReviewStatusPending])
}

func TestEnqueue_Validation(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.manager.Enqueue(ctx, nil, riskOf("x", 0, 0), reviewDecision(models.ReasonError))
	assert.ErrorIs(t, err, xerrors.ErrValidation)

	_, err = f.manager.Enqueue(ctx, reviewTx("TXN-1", 10), nil, reviewDecision(models.ReasonError))
	assert.ErrorIs(t, err, xerrors.ErrValidation)

	tx := reviewTx("TXN-1", 10)
	tx.OrganizationID = ""
	_, err = f.manager.Enqueue(ctx, tx, riskOf("TXN-1", 0, 0), reviewDecision(models.ReasonError))
	assert.ErrorIs(t, err, xerrors.ErrValidation)
}

func TestEnqueue_ReevaluatesOpenItem(t *testing.T) {
	f := newFixture(t, false)

	first := f.enqueue(t, "TXN-1", 1000, 50, 10)
	second := f.enqueue(t, "TXN-1", 1000, 70, 20)

	assert.Equal(t, first.ID, second.ID)
	all, err := f.reviews.ListReviewItems(context.Background(), "org-1")
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Len(t, all[0].AuditLog, 2)
	assert.Equal(t, models.AuditReevaluated, all[0].AuditLog[1].Action)
	assert.Equal(t, 1, f.recorder.enqueued)
}

func TestEnqueue_NewItemAfterTerminal(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	first := f.enqueue(t, "TXN-1", 1000, 50, 10)
	_, err := f.manager.Reject(ctx, first.ID, "admin-1", models.ReviewDecision{Reason: "duplicate"})
	require.NoError(t, err)

	second := f.enqueue(t, "TXN-1", 1000, 50, 10)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, models.ReviewStatusPending, second.Status)
}

func TestEnqueue_AutoAssignsLeastLoaded(t *testing.T) {
	f := newFixture(t, true)

	// нагрузка: acc-1 и acc-2 получают по одному элементу, admin-1 первым по id
	first := f.enqueue(t, "TXN-1", 100, 50, 0)
	second := f.enqueue(t, "TXN-2", 100, 50, 0)
	third := f.enqueue(t, "TXN-3", 100, 50, 0)
	fourth := f.enqueue(t, "TXN-4", 100, 50, 0)

	assert.Equal(t, "acc-1", first.AssignedTo)
	assert.Equal(t, "acc-2", second.AssignedTo)
	assert.Equal(t, "admin-1", third.AssignedTo)
	assert.Equal(t, "senior-1", fourth.AssignedTo)
	assert.Equal(t, models.ReviewStatusInReview, fourth.Status)
	assert.Equal(t, models.AuditAssigned, fourth.AuditLog[len(fourth.AuditLog)-1].Action)
}

func TestAutoAssign_NoReviewer(t *testing.T) {
	f := newFixture(t, false)
	for id, u := range f.users {
		if u.Role.IsReviewer() && id != "creator" {
			delete(f.users, id)
		}
	}
	item := f.enqueue(t, "TXN-1", 100, 50, 0)

	_, err := f.manager.AutoAssign(context.Background(), item.ID)
	assert.ErrorIs(t, err, xerrors.ErrNotFound)

	stored, err := f.manager.Get(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusPending, stored.Status)
}

func TestAssign(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	item := f.enqueue(t, "TXN-1", 100, 50, 0)

	assigned, err := f.manager.Assign(ctx, item.ID, "acc-1", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusInReview, assigned.Status)
	assert.Equal(t, "acc-1", assigned.AssignedTo)

	// переназначение допустимо, пока элемент открыт
	reassigned, err := f.manager.Assign(ctx, item.ID, "acc-2", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, "acc-2", reassigned.AssignedTo)

	_, err = f.manager.Assign(ctx, item.ID, "creator", "admin-1")
	assert.ErrorIs(t, err, xerrors.ErrPolicyViolation)

	_, err = f.manager.Assign(ctx, item.ID, "assistant", "admin-1")
	assert.ErrorIs(t, err, xerrors.ErrPolicyViolation)
}

func TestApprove(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	item := f.enqueue(t, "TXN-1", 3000, 50, 0)

	f.clock.Advance(30 * time.Minute)
	approved, err := f.manager.Approve(ctx, item.ID, "acc-1", models.ReviewDecision{Reason: "documents verified"})
	require.NoError(t, err)

	assert.Equal(t, models.ReviewStatusApproved, approved.Status)
	assert.Equal(t, "acc-1", approved.ReviewedBy)
	require.NotNil(t, approved.ReviewDecision)
	assert.True(t, approved.ReviewDecision.Approved)
	require.NotNil(t, approved.ResolvedAt)
	assert.Equal(t, start.Add(30*time.Minute), *approved.ResolvedAt)
	assert.Equal(t, 2, approved.Version)

	last := approved.AuditLog[len(approved.AuditLog)-1]
	assert.Equal(t, models.AuditApproved, last.Action)
	assert.Equal(t, "acc-1", last.Actor)
	assert.Equal(t, *approved.ResolvedAt, last.Timestamp)

	assert.Equal(t, []time.Duration{30 * time.Minute}, f.recorder.latencies)
	assert.Contains(t, f.publisher.events, models.EventReviewApproved)

	st := f.manager.StatsSnapshot("org-1")
	assert.Equal(t, 1, st.Decided)
	assert.Equal(t, 30*time.Minute, st.AvgReviewLatency)
}

func TestApprove_ReviewerChecks(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	item := f.enqueue(t, "TXN-1", 15000, 50, 0)

	for _, reviewer := range []string{"creator", "inactive", "assistant", "other-org", "executive1", "acc-1"} {
		t.Run(reviewer, func(t *testing.T) {
			_, err := f.manager.Approve(ctx, item.ID, reviewer, models.ReviewDecision{Reason: "ok"})
			assert.ErrorIs(t, err, xerrors.ErrPolicyViolation)
		})
	}

	_, err := f.manager.Approve(ctx, item.ID, "nobody", models.ReviewDecision{})
	assert.ErrorIs(t, err, xerrors.ErrNotFound)

	_, err = f.manager.Approve(ctx, "missing", "admin-1", models.ReviewDecision{})
	assert.ErrorIs(t, err, xerrors.ErrNotFound)

	stored, err := f.manager.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusPending, stored.Status)
	assert.Len(t, stored.AuditLog, 1)
}

func TestApprove_ConcurrentDecisions(t *testing.T) {
	f := newFixture(t, false)
	item := f.enqueue(t, "TXN-1", 1000, 50, 0)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		errs    []error
	)
	for _, reviewer := range []string{"admin-1", "senior-1"} {
		wg.Add(1)
		go func(reviewer string) {
			defer wg.Done()
			_, err := f.manager.Approve(context.Background(), item.ID, reviewer, models.ReviewDecision{Reason: "ok"})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				success++
				return
			}
			errs = append(errs, err)
		}(reviewer)
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], xerrors.ErrConflict)

	stored, err := f.manager.Get(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusApproved, stored.Status)
	assert.Len(t, stored.AuditLog, 2)
}

func TestTerminalItemRejectsTransitions(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	item := f.enqueue(t, "TXN-1", 1000, 50, 0)

	_, err := f.manager.Approve(ctx, item.ID, "admin-1", models.ReviewDecision{Reason: "ok"})
	require.NoError(t, err)

	_, err = f.manager.Reject(ctx, item.ID, "senior-1", models.ReviewDecision{Reason: "changed mind"})
	assert.ErrorIs(t, err, xerrors.ErrConflict)
	_, err = f.manager.Assign(ctx, item.ID, "acc-1", "admin-1")
	assert.ErrorIs(t, err, xerrors.ErrConflict)
	_, err = f.manager.EscalateSecondApproval(ctx, item.ID, "senior-1")
	assert.ErrorIs(t, err, xerrors.ErrConflict)

	stored, err := f.manager.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusApproved, stored.Status)
	assert.Equal(t, "admin-1", stored.ReviewedBy)
	assert.Len(t, stored.AuditLog, 2)

	// комментарий к закрытому элементу допустим
	commented, err := f.manager.AddComment(ctx, item.ID, "senior-1", "checked afterwards")
	require.NoError(t, err)
	assert.Equal(t, models.AuditCommented, commented.AuditLog[len(commented.AuditLog)-1].Action)

	_, err = f.manager.AddComment(ctx, item.ID, "senior-1", "  ")
	assert.ErrorIs(t, err, xerrors.ErrValidation)
}

func TestApprove_EscalatesForSecondApproval(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	// 6000 > половины потолка бухгалтера 10000
	item := f.enqueue(t, "TXN-1", 6000, 50, 0)

	escalated, err := f.manager.Approve(ctx, item.ID, "acc-1", models.ReviewDecision{Reason: "ok"})
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusEscalated, escalated.Status)
	assert.True(t, escalated.SecondApprovalRequired)
	assert.Nil(t, escalated.ResolvedAt)
	assert.Equal(t, models.AuditEscalated, escalated.AuditLog[len(escalated.AuditLog)-1].Action)
	assert.Empty(t, f.recorder.latencies)

	_, err = f.manager.Approve(ctx, item.ID, "admin-1", models.ReviewDecision{Reason: "ok"})
	assert.ErrorIs(t, err, xerrors.ErrConflict)

	_, err = f.manager.EscalateSecondApproval(ctx, item.ID, "acc-1")
	assert.ErrorIs(t, err, xerrors.ErrPolicyViolation)
	_, err = f.manager.EscalateSecondApproval(ctx, item.ID, "acc-2")
	assert.ErrorIs(t, err, xerrors.ErrPolicyViolation)
	_, err = f.manager.EscalateSecondApproval(ctx, item.ID, "creator")
	assert.ErrorIs(t, err, xerrors.ErrPolicyViolation)

	f.clock.Advance(time.Hour)
	approved, err := f.manager.EscalateSecondApproval(ctx, item.ID, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusApproved, approved.Status)
	assert.Equal(t, "acc-1", approved.ReviewedBy)
	assert.Equal(t, "admin-1", approved.SecondApprovedBy)
	assert.Equal(t, models.AuditSecondApproved, approved.AuditLog[len(approved.AuditLog)-1].Action)
	assert.Equal(t, []time.Duration{time.Hour}, f.recorder.latencies)

	st := f.manager.StatsSnapshot("org-1")
	assert.Equal(t, 1, st.ByStatus[models.ReviewStatusApproved])
	assert.Equal(t, 0, st.ByStatus[models.ReviewStatusEscalated])
}

func TestReject_EscalatedItem(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	item := f.enqueue(t, "TXN-1", 6000, 50, 0)

	_, err := f.manager.Approve(ctx, item.ID, "acc-1", models.ReviewDecision{Reason: "ok"})
	require.NoError(t, err)

	_, err = f.manager.Reject(ctx, item.ID, "acc-1", models.ReviewDecision{Reason: "second thoughts"})
	assert.ErrorIs(t, err, xerrors.ErrPolicyViolation, "first reviewer cannot close their own escalation")
	_, err = f.manager.Reject(ctx, item.ID, "senior-1", models.ReviewDecision{Reason: "no"})
	assert.ErrorIs(t, err, xerrors.ErrPolicyViolation, "role requiring second approval cannot decide")
	_, err = f.manager.Reject(ctx, item.ID, "creator", models.ReviewDecision{Reason: "no"})
	assert.ErrorIs(t, err, xerrors.ErrPolicyViolation)

	f.clock.Advance(2 * time.Hour)
	rejected, err := f.manager.Reject(ctx, item.ID, "admin-1", models.ReviewDecision{Reason: "invoice does not match"})
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusRejected, rejected.Status)
	assert.Equal(t, "acc-1", rejected.ReviewedBy)
	assert.Empty(t, rejected.SecondApprovedBy)
	require.NotNil(t, rejected.ResolvedAt)

	last := rejected.AuditLog[len(rejected.AuditLog)-1]
	assert.Equal(t, models.AuditSecondRejected, last.Action)
	assert.Equal(t, "admin-1", last.Actor)
	assert.Equal(t, []time.Duration{2 * time.Hour}, f.recorder.latencies)

	st := f.manager.StatsSnapshot("org-1")
	assert.Equal(t, 1, st.ByStatus[models.ReviewStatusRejected])
	assert.Equal(t, 0, st.ByStatus[models.ReviewStatusEscalated])

	_, err = f.manager.EscalateSecondApproval(ctx, item.ID, "admin-1")
	assert.ErrorIs(t, err, xerrors.ErrConflict)
}

func TestApprove_BelowHalfCeilingSkipsEscalation(t *testing.T) {
	f := newFixture(t, false)
	item := f.enqueue(t, "TXN-1", 5000, 50, 0)

	approved, err := f.manager.Approve(context.Background(), item.ID, "acc-1", models.ReviewDecision{Reason: "ok"})
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusApproved, approved.Status)
	assert.False(t, approved.SecondApprovalRequired)
}

func TestListPending(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	f.enqueue(t, "TXN-LOW", 100, 0, 0)
	f.clock.Advance(time.Minute)
	f.enqueue(t, "TXN-CRIT", 100, 0, 90)
	f.clock.Advance(time.Minute)
	f.enqueue(t, "TXN-HIGH", 30000, 0, 0)

	items, err := f.manager.ListPending(ctx, "org-1", models.ReviewFilters{})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "TXN-CRIT", items[0].TransactionID)
	assert.Equal(t, "TXN-HIGH", items[1].TransactionID)
	assert.Equal(t, "TXN-LOW", items[2].TransactionID)

	items, err = f.manager.ListPending(ctx, "org-1", models.ReviewFilters{Priority: models.PriorityHigh})
	require.NoError(t, err)
	assert.Len(t, items, 1)

	_, err = f.manager.ListPending(ctx, "org-1", models.ReviewFilters{Priority: "urgent"})
	assert.ErrorIs(t, err, xerrors.ErrValidation)
	_, err = f.manager.ListPending(ctx, "", models.ReviewFilters{})
	assert.ErrorIs(t, err, xerrors.ErrValidation)
}

func TestSLABreaches(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	overdue := f.enqueue(t, "TXN-1", 100, 50, 0)
	f.clock.Advance(20 * time.Hour)
	f.enqueue(t, "TXN-2", 100, 50, 0)
	f.clock.Advance(5 * time.Hour)

	breached, err := f.manager.SLABreaches(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, breached, 1)
	assert.Equal(t, overdue.ID, breached[0].ID)
	assert.True(t, breached[0].SLABreached)
	assert.Equal(t, 1, f.recorder.breaches["org-1"])

	// нарушение SLA не блокирует решение и не меняет состояние
	stored, err := f.manager.Get(ctx, overdue.ID)
	require.NoError(t, err)
	assert.True(t, stored.SLABreached)
	assert.Equal(t, models.ReviewStatusPending, stored.Status)

	approved, err := f.manager.Approve(ctx, overdue.ID, "admin-1", models.ReviewDecision{Reason: "late"})
	require.NoError(t, err)
	assert.False(t, approved.SLABreached)
}

func TestPublisherFailureDoesNotFail(t *testing.T) {
	f := newFixture(t, false)
	f.publisher.err = errors.New("broker down")

	item := f.enqueue(t, "TXN-1", 100, 50, 0)
	_, err := f.manager.Approve(context.Background(), item.ID, "admin-1", models.ReviewDecision{Reason: "ok"})
	assert.NoError(t, err)
}

func TestRebuildStats_MatchesIncremental(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	a := f.enqueue(t, "TXN-A", 100, 50, 0)
	f.clock.Advance(10 * time.Minute)
	b := f.enqueue(t, "TXN-B", 30000, 50, 0)
	f.clock.Advance(10 * time.Minute)
	c := f.enqueue(t, "TXN-C", 6000, 50, 0)
	f.clock.Advance(10 * time.Minute)
	f.enqueue(t, "TXN-D", 100, 90, 90)

	f.clock.Advance(time.Hour)
	_, err := f.manager.Reject(ctx, b.ID, "admin-1", models.ReviewDecision{Reason: "fraud"})
	require.NoError(t, err)
	f.clock.Advance(15 * time.Minute)
	_, err = f.manager.Approve(ctx, a.ID, "senior-1", models.ReviewDecision{Reason: "ok"})
	require.NoError(t, err)
	f.clock.Advance(5 * time.Minute)
	_, err = f.manager.Approve(ctx, c.ID, "acc-1", models.ReviewDecision{Reason: "ok"})
	require.NoError(t, err)
	f.clock.Advance(time.Hour)
	_, err = f.manager.EscalateSecondApproval(ctx, c.ID, "admin-1")
	require.NoError(t, err)

	incremental := f.manager.StatsSnapshot("org-1")

	fresh := NewManager(f.reviews, f.users, staticConfigs{cfg: f.cfg}, WithClock(f.clock.Now))
	rebuilt, err := fresh.RebuildStats(ctx, "org-1")
	require.NoError(t, err)

	assert.Equal(t, 3, rebuilt.Decided)
	assert.Equal(t, incremental.Decided, rebuilt.Decided)
	assert.Equal(t, incremental.AvgReviewLatency, rebuilt.AvgReviewLatency)
	assert.Equal(t, incremental.ByPriority, rebuilt.ByPriority)
	for _, status := range models.ReviewStatuses() {
		assert.Equal(t, incremental.ByStatus[status], rebuilt.ByStatus[status], status)
	}
	assert.NotNil(t, rebuilt.RebuiltAt)
}

func TestManager_WithStatsSharesCache(t *testing.T) {
	stats := NewStats()
	m := NewManager(newMemReviews(), memUsers{}, staticConfigs{}, WithStats(stats), WithDefaultCountry("mx"))

	assert.Same(t, stats, m.Stats())
	assert.Equal(t, "MX", m.scopeOf(&models.Transaction{}).Country)
}
