package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/viralforge/roadworks/internal/application"
	"github.com/viralforge/roadworks/internal/domain"
)

const serviceName = "roadworks.auth.v1.AuthInternalService"

// AuthInternalService is served to sibling services that need to check a bearer token
// or the mirror state without going through HTTP.
type AuthInternalService interface {
	ValidateToken(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSyncStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

type sessionAuthenticator interface {
	Authenticate(ctx context.Context, token string) (domain.AuthContext, error)
	SyncStatus(ctx context.Context) application.SyncStatus
}

type AuthInternalServer struct {
	service sessionAuthenticator
}

func NewAuthInternalServer(service sessionAuthenticator) *AuthInternalServer {
	return &AuthInternalServer{service: service}
}

func Register(server grpc.ServiceRegistrar, svc AuthInternalService) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*AuthInternalService)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "ValidateToken",
				Handler: unaryHandler("ValidateToken", func() *structpb.Struct { return &structpb.Struct{} },
					svc.ValidateToken),
			},
			{
				MethodName: "GetSyncStatus",
				Handler: unaryHandler("GetSyncStatus", func() *emptypb.Empty { return &emptypb.Empty{} },
					svc.GetSyncStatus),
			},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "roadworks/auth/v1/auth_internal.proto",
	}, svc)
}

// ValidateToken runs the full session check, not only the signature.
func (s *AuthInternalServer) ValidateToken(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	token := req.GetFields()["token"].GetStringValue()
	if token == "" {
		return nil, status.Error(codes.InvalidArgument, "missing token")
	}

	auth, err := s.service.Authenticate(ctx, token)
	if err != nil {
		return nil, toStatus(err)
	}

	resp, err := structpb.NewStruct(map[string]any{
		"valid":      true,
		"user_id":    float64(auth.UserID),
		"email":      auth.Email,
		"role":       string(auth.Role),
		"session_id": float64(auth.SessionID),
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func (s *AuthInternalServer) GetSyncStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st := s.service.SyncStatus(ctx)
	resp, err := structpb.NewStruct(map[string]any{
		"configured": st.Configured,
		"online":     st.Online,
		"message":    st.Message,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func toStatus(err error) error {
	msg := domain.UserMessage(err, "internal error")
	switch {
	case errors.Is(err, domain.ErrInvalidToken),
		errors.Is(err, domain.ErrExpiredToken),
		errors.Is(err, domain.ErrSessionInvalid):
		return status.Error(codes.Unauthenticated, msg)
	case errors.Is(err, domain.ErrAccountLocked):
		return status.Error(codes.PermissionDenied, msg)
	default:
		return status.Error(codes.Internal, msg)
	}
}

func unaryHandler[Req any](
	method string,
	newReq func() Req,
	call func(context.Context, Req) (*structpb.Struct, error),
) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := newReq()
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + serviceName + "/" + method,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(Req)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return call(ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}
