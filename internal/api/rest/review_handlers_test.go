package rest

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"risk-review-system/internal/models"
	"risk-review-system/internal/xerrors"
)

func TestHandlers_ListReviews(t *testing.T) {
	env := setupTestRouter(t)
	items := []*models.ReviewQueueItem{
		{ID: "rev-1", Priority: models.PriorityCritical, Status: models.ReviewStatusPending},
		{ID: "rev-2", Priority: models.PriorityHigh, Status: models.ReviewStatusInReview},
	}
	filters := models.ReviewFilters{AssignedTo: "acc-1", Priority: models.PriorityHigh, BranchID: "b-1", Limit: 20}
	env.reviews.On("ListPending", mock.Anything, "org-1", filters).Return(items, nil)

	w := env.do(http.MethodGet, "/api/v1/reviews?organization_id=org-1&assigned_to=acc-1&priority=high&branch_id=b-1&limit=20", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Items []models.ReviewQueueItem `json:"items"`
		Count int                      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, "rev-1", resp.Items[0].ID)

	w = env.do(http.MethodGet, "/api/v1/reviews?organization_id=org-1&limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlers_AssignReview(t *testing.T) {
	env := setupTestRouter(t)
	env.reviews.On("Assign", mock.Anything, "rev-1", "acc-2", "senior-1").
		Return(&models.ReviewQueueItem{ID: "rev-1", AssignedTo: "acc-2", Status: models.ReviewStatusInReview}, nil)

	w := env.do(http.MethodPost, "/api/v1/reviews/rev-1/assign", AssignRequest{ReviewerID: "acc-2", ActorID: "senior-1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"assigned_to":"acc-2"`)

	w = env.do(http.MethodPost, "/api/v1/reviews/rev-1/assign", map[string]string{"reviewer_id": "acc-2"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlers_AutoAssignReview(t *testing.T) {
	env := setupTestRouter(t)
	env.reviews.On("AutoAssign", mock.Anything, "rev-1").Return(nil, xerrors.NotFound("available reviewer", "org-1"))

	w := env.do(http.MethodPost, "/api/v1/reviews/rev-1/auto-assign", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlers_ApproveReject(t *testing.T) {
	env := setupTestRouter(t)
	approve := models.ReviewDecision{Approved: true, Reason: "invoice verified", Comments: "ok"}
	reject := models.ReviewDecision{Approved: false, Reason: "duplicate invoice"}

	env.reviews.On("Approve", mock.Anything, "rev-1", "acc-2", approve).
		Return(&models.ReviewQueueItem{ID: "rev-1", Status: models.ReviewStatusEscalated}, nil)
	env.reviews.On("Reject", mock.Anything, "rev-2", "acc-2", reject).
		Return(&models.ReviewQueueItem{ID: "rev-2", Status: models.ReviewStatusRejected}, nil)
	env.reviews.On("Approve", mock.Anything, "rev-3", "acc-2", mock.Anything).
		Return(nil, xerrors.Conflict("review item", "rev-3", "status APPROVED is final"))

	w := env.do(http.MethodPost, "/api/v1/reviews/rev-1/approve", DecisionRequest{ReviewerID: "acc-2", Reason: "invoice verified", Comments: "ok"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ESCALATED"`)

	w = env.do(http.MethodPost, "/api/v1/reviews/rev-2/reject", DecisionRequest{ReviewerID: "acc-2", Reason: "duplicate invoice"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"REJECTED"`)

	w = env.do(http.MethodPost, "/api/v1/reviews/rev-3/approve", DecisionRequest{ReviewerID: "acc-2", Reason: "late"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(http.MethodPost, "/api/v1/reviews/rev-1/approve", DecisionRequest{ReviewerID: "acc-2"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "reason is required")

	env.reviews.AssertExpectations(t)
}

func TestHandlers_SecondApproval(t *testing.T) {
	env := setupTestRouter(t)
	env.reviews.On("EscalateSecondApproval", mock.Anything, "rev-1", "acc-1").
		Return(nil, xerrors.PolicyViolation("acc-1", "second approver must differ from first reviewer"))
	env.reviews.On("EscalateSecondApproval", mock.Anything, "rev-1", "admin-1").
		Return(&models.ReviewQueueItem{ID: "rev-1", Status: models.ReviewStatusApproved, SecondApprovedBy: "admin-1"}, nil)

	w := env.do(http.MethodPost, "/api/v1/reviews/rev-1/second-approval", SecondApprovalRequest{ApproverID: "acc-1"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(http.MethodPost, "/api/v1/reviews/rev-1/second-approval", SecondApprovalRequest{ApproverID: "admin-1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"second_approved_by":"admin-1"`)
}

func TestHandlers_AddComment(t *testing.T) {
	env := setupTestRouter(t)
	env.reviews.On("AddComment", mock.Anything, "rev-1", "acc-1", "requested the contract").
		Return(&models.ReviewQueueItem{ID: "rev-1", AuditLog: []models.AuditEntry{{Action: models.AuditCommented}}}, nil)

	w := env.do(http.MethodPost, "/api/v1/reviews/rev-1/comments", CommentRequest{ActorID: "acc-1", Text: "requested the contract"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "COMMENTED")
}

func TestHandlers_ListSLABreaches(t *testing.T) {
	env := setupTestRouter(t)
	env.reviews.On("SLABreaches", mock.Anything, "org-1").
		Return([]*models.ReviewQueueItem{{ID: "rev-9", SLABreached: true}}, nil)
	env.reviews.On("SLABreaches", mock.Anything, "").
		Return(nil, xerrors.Validation("organization_id", "is required"))

	w := env.do(http.MethodGet, "/api/v1/reviews/sla-breaches?organization_id=org-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sla_breached":true`)

	w = env.do(http.MethodGet, "/api/v1/reviews/sla-breaches", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlers_ReviewStats(t *testing.T) {
	env := setupTestRouter(t)
	stats := models.ReviewStats{
		OrganizationID: "org-1",
		ByStatus:       map[models.ReviewStatus]int{models.ReviewStatusApproved: 2},
		ByPriority:     map[models.Priority]int{models.PriorityLow: 2},
		Decided:        2,
	}
	env.reviews.On("StatsSnapshot", "org-1").Return(stats)
	env.reviews.On("RebuildStats", mock.Anything, "org-1").Return(stats, nil)

	w := env.do(http.MethodGet, "/api/v1/stats/reviews?organization_id=org-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"decided":2`)

	w = env.do(http.MethodGet, "/api/v1/stats/reviews", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/api/v1/stats/reviews/rebuild?organization_id=org-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"APPROVED":2`)
}
