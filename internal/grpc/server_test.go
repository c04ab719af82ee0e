package grpc

import (
	"context"
	"net"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"risk-review-system/internal/models"
	servicemocks "risk-review-system/internal/services/mocks"
	"risk-review-system/internal/xerrors"
)

type grpcEnv struct {
	client    *RiskReviewServiceClient
	conn      *grpc.ClientConn
	evaluator *servicemocks.MockEvaluator
	reviews   *servicemocks.MockReviewWorkflow
}

func startTestServer(t *testing.T) *grpcEnv {
	t.Helper()

	env := &grpcEnv{
		evaluator: new(servicemocks.MockEvaluator),
		reviews:   new(servicemocks.MockReviewWorkflow),
	}
	srv := NewServer(env.evaluator, env.reviews, nil, 0)

	lis := bufconn.Listen(1024 * 1024)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	env.conn = conn
	env.client = NewRiskReviewServiceClient(conn)
	return env
}

func mustStruct(t *testing.T, m map[string]interface{}) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func grpcTx() map[string]interface{} {
	return map[string]interface{}{
		"id":         "TXN-001",
		"type":       "expense",
		"amount":     "1500.50",
		"currency":   "USD",
		"date":       "2024-03-12T11:00:00Z",
		"created_by": "acc-1",
	}
}

func TestServer_EvaluateTransaction(t *testing.T) {
	env := startTestServer(t)
	eval := &models.Evaluation{
		RiskAssessment: &models.RiskAssessment{TransactionID: "TXN-001", CompositeScore: 42},
		Decision:       &models.Decision{RequiresReview: false, ReasonCode: models.ReasonAutoApproved},
	}
	env.evaluator.On("EvaluateTransaction", mock.Anything, mock.MatchedBy(func(tx *models.Transaction) bool {
		return tx.ID == "TXN-001" && tx.Amount.Equal(decimal.RequireFromString("1500.50"))
	})).Return(eval, nil)

	resp, err := env.client.EvaluateTransaction(context.Background(), mustStruct(t, map[string]interface{}{
		"transaction": grpcTx(),
	}))
	require.NoError(t, err)

	out := resp.AsMap()
	assessment := out["risk_assessment"].(map[string]interface{})
	assert.Equal(t, float64(42), assessment["composite_score"])
	decision := out["decision"].(map[string]interface{})
	assert.Equal(t, "AUTO_APPROVED", decision["reason_code"])
	env.evaluator.AssertExpectations(t)
	env.evaluator.AssertNotCalled(t, "ProcessTransaction", mock.Anything, mock.Anything)
}

func TestServer_EvaluateTransaction_Process(t *testing.T) {
	env := startTestServer(t)
	env.evaluator.On("ProcessTransaction", mock.Anything, mock.Anything).Return(&models.Evaluation{
		Decision:   &models.Decision{RequiresReview: true, ReasonCode: models.ReasonHighRiskScore},
		ReviewItem: &models.ReviewQueueItem{ID: "rev-1", Status: models.ReviewStatusPending},
	}, nil)

	resp, err := env.client.EvaluateTransaction(context.Background(), mustStruct(t, map[string]interface{}{
		"transaction": grpcTx(),
		"process":     true,
	}))
	require.NoError(t, err)
	item := resp.AsMap()["review_item"].(map[string]interface{})
	assert.Equal(t, "rev-1", item["id"])
}

func TestServer_EvaluateTransaction_MissingTransaction(t *testing.T) {
	env := startTestServer(t)

	_, err := env.client.EvaluateTransaction(context.Background(), mustStruct(t, map[string]interface{}{}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = env.client.EvaluateTransaction(context.Background(), mustStruct(t, map[string]interface{}{
		"transaction": map[string]interface{}{"amount": true},
	}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestServer_ErrorCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code codes.Code
	}{
		{"validation", xerrors.Validation("id", "is required"), codes.InvalidArgument},
		{"not found", xerrors.NotFound("review item", "rev-1"), codes.NotFound},
		{"conflict", xerrors.Conflict("review item", "rev-1", "stale version"), codes.FailedPrecondition},
		{"policy", xerrors.PolicyViolation("acc-1", "self approval"), codes.PermissionDenied},
		{"dependency", xerrors.DependencyUnavailable("review-store", assert.AnError), codes.Unavailable},
		{"internal", assert.AnError, codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := startTestServer(t)
			env.reviews.On("Get", mock.Anything, "rev-1").Return(nil, tt.err)

			_, err := env.client.GetReview(context.Background(), mustStruct(t, map[string]interface{}{"id": "rev-1"}))
			st, ok := status.FromError(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, st.Code())
			if tt.code == codes.Internal {
				assert.Equal(t, "internal error", st.Message())
			}
		})
	}
}

func TestServer_ListPendingReviews(t *testing.T) {
	env := startTestServer(t)
	filters := models.ReviewFilters{Priority: models.PriorityCritical, Limit: 10}
	env.reviews.On("ListPending", mock.Anything, "org-1", filters).Return([]*models.ReviewQueueItem{
		{ID: "rev-1", Priority: models.PriorityCritical},
		{ID: "rev-2", Priority: models.PriorityCritical},
	}, nil)

	resp, err := env.client.ListPendingReviews(context.Background(), mustStruct(t, map[string]interface{}{
		"organization_id": "org-1",
		"priority":        "critical",
		"limit":           10,
	}))
	require.NoError(t, err)

	out := resp.AsMap()
	assert.Equal(t, float64(2), out["count"])
	items := out["items"].([]interface{})
	require.Len(t, items, 2)
	assert.Equal(t, "rev-2", items[1].(map[string]interface{})["id"])
}

func TestServer_GetReview(t *testing.T) {
	env := startTestServer(t)
	env.reviews.On("Get", mock.Anything, "rev-1").Return(&models.ReviewQueueItem{
		ID:       "rev-1",
		Status:   models.ReviewStatusEscalated,
		AuditLog: []models.AuditEntry{{Action: models.AuditApproved, Actor: "acc-2"}},
	}, nil)

	resp, err := env.client.GetReview(context.Background(), mustStruct(t, map[string]interface{}{"id": "rev-1"}))
	require.NoError(t, err)
	out := resp.AsMap()
	assert.Equal(t, "ESCALATED", out["status"])
	assert.Len(t, out["audit_log"], 1)

	_, err = env.client.GetReview(context.Background(), mustStruct(t, map[string]interface{}{}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestServer_Health(t *testing.T) {
	env := startTestServer(t)

	resp, err := healthpb.NewHealthClient(env.conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}
