package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"risk-review-system/internal/models"
	"risk-review-system/internal/services"
	"risk-review-system/internal/xerrors"
)

// Server gRPC-поверхность оценки и очереди проверки
type Server struct {
	evaluator services.Evaluator
	reviews   services.ReviewWorkflow
	logger    *zap.Logger
	port      int

	server *grpc.Server
	health *health.Server
}

func NewServer(evaluator services.Evaluator, reviews services.ReviewWorkflow, log *zap.Logger, port int) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		evaluator: evaluator,
		reviews:   reviews,
		logger:    log,
		port:      port,
		health:    health.NewServer(),
	}

	s.server = grpc.NewServer(
		grpc.MaxRecvMsgSize(4*1024*1024),
		grpc.ChainUnaryInterceptor(s.recoverInterceptor, s.loggingInterceptor),
	)
	RegisterRiskReviewServiceServer(s.server, s)
	healthpb.RegisterHealthServer(s.server, s.health)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	return s
}

// Start слушает TCP-порт и блокируется до остановки сервера
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.logger.Info("gRPC server listening", zap.Int("port", s.port))
	return s.Serve(lis)
}

// Serve обслуживает уже открытый listener
func (s *Server) Serve(lis net.Listener) error {
	if err := s.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Stop переводит health в NOT_SERVING и дожидается активных вызовов
func (s *Server) Stop() {
	s.logger.Info("Stopping gRPC server")
	s.health.Shutdown()
	s.server.GracefulStop()
}

type evaluateRequest struct {
	Transaction *models.Transaction `json:"transaction"`
	Process     bool                `json:"process"`
}

type listRequest struct {
	OrganizationID string          `json:"organization_id"`
	AssignedTo     string          `json:"assigned_to"`
	Priority       models.Priority `json:"priority"`
	BranchID       string          `json:"branch_id"`
	Limit          int             `json:"limit"`
}

type getReviewRequest struct {
	ID string `json:"id"`
}

// EvaluateTransaction оценивает операцию; с process=true ставит ее в очередь при необходимости
func (s *Server) EvaluateTransaction(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req evaluateRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	if req.Transaction == nil {
		return nil, status.Error(codes.InvalidArgument, "transaction is required")
	}

	var (
		eval *models.Evaluation
		err  error
	)
	if req.Process {
		eval, err = s.evaluator.ProcessTransaction(ctx, req.Transaction)
	} else {
		eval, err = s.evaluator.EvaluateTransaction(ctx, req.Transaction)
	}
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(eval)
}

// ListPendingReviews открытые элементы очереди организации
func (s *Server) ListPendingReviews(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req listRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	items, err := s.reviews.ListPending(ctx, req.OrganizationID, models.ReviewFilters{
		AssignedTo: req.AssignedTo,
		Priority:   req.Priority,
		BranchID:   req.BranchID,
		Limit:      req.Limit,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(map[string]interface{}{"items": items, "count": len(items)})
}

// GetReview элемент очереди с журналом аудита
func (s *Server) GetReview(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req getReviewRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	if req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	item, err := s.reviews.Get(ctx, req.ID)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(item)
}

func (s *Server) loggingInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	started := time.Now()
	resp, err := handler(ctx, req)

	fields := []zap.Field{
		zap.String("method", info.FullMethod),
		zap.String("code", status.Code(err).String()),
		zap.Duration("latency", time.Since(started)),
	}
	if status.Code(err) == codes.Internal {
		s.logger.Warn("grpc request", append(fields, zap.Error(err))...)
	} else {
		s.logger.Debug("grpc request", fields...)
	}
	return resp, err
}

func (s *Server) recoverInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("grpc handler panic", zap.String("method", info.FullMethod), zap.Any("panic", r))
			err = status.Error(codes.Internal, "internal error")
		}
	}()
	return handler(ctx, req)
}

// toStatus переводит типизированную ошибку в gRPC-код; детали внутренних ошибок не раскрываются
func toStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, xerrors.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, xerrors.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, xerrors.ErrConflict):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, xerrors.ErrPolicyViolation):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, xerrors.ErrDependencyUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, "internal error")
}

func decode(in *structpb.Struct, dst interface{}) error {
	raw, err := protojson.Marshal(in)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "malformed request: %v", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return status.Errorf(codes.InvalidArgument, "malformed request: %v", err)
	}
	return nil
}

func encode(v interface{}) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

var _ RiskReviewServiceServer = (*Server)(nil)
