package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName полное имя gRPC-сервиса
const ServiceName = "riskreview.v1.RiskReviewService"

// RiskReviewServiceServer контракт сервиса; сообщения передаются как google.protobuf.Struct
type RiskReviewServiceServer interface {
	EvaluateTransaction(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListPendingReviews(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetReview(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterRiskReviewServiceServer регистрирует реализацию на сервере
func RegisterRiskReviewServiceServer(s grpc.ServiceRegistrar, srv RiskReviewServiceServer) {
	s.RegisterService(&RiskReviewServiceDesc, srv)
}

func unaryHandler(method string, call func(RiskReviewServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(RiskReviewServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + ServiceName + "/" + method,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(RiskReviewServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// RiskReviewServiceDesc описание сервиса для grpc.Server
var RiskReviewServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RiskReviewServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "EvaluateTransaction",
			Handler: unaryHandler("EvaluateTransaction", func(s RiskReviewServiceServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return s.EvaluateTransaction(ctx, in)
			}),
		},
		{
			MethodName: "ListPendingReviews",
			Handler: unaryHandler("ListPendingReviews", func(s RiskReviewServiceServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return s.ListPendingReviews(ctx, in)
			}),
		},
		{
			MethodName: "GetReview",
			Handler: unaryHandler("GetReview", func(s RiskReviewServiceServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return s.GetReview(ctx, in)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "riskreview/v1/risk_review.proto",
}

// RiskReviewServiceClient клиент сервиса
type RiskReviewServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewRiskReviewServiceClient(cc grpc.ClientConnInterface) *RiskReviewServiceClient {
	return &RiskReviewServiceClient{cc: cc}
}

func (c *RiskReviewServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *RiskReviewServiceClient) EvaluateTransaction(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "EvaluateTransaction", in, opts...)
}

func (c *RiskReviewServiceClient) ListPendingReviews(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ListPendingReviews", in, opts...)
}

func (c *RiskReviewServiceClient) GetReview(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetReview", in, opts...)
}
