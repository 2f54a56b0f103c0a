package grpc

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/viralforge/roadworks/internal/application"
	"github.com/viralforge/roadworks/internal/domain"
)

type fakeAuthenticator struct{}

func (fakeAuthenticator) Authenticate(_ context.Context, token string) (domain.AuthContext, error) {
	switch token {
	case "good":
		return domain.AuthContext{UserID: 9, Email: "m@example.com", Role: domain.RoleManager, SessionID: 4}, nil
	case "revoked":
		return domain.AuthContext{}, domain.NewError(domain.ErrSessionInvalid, "Session invalide ou expirée")
	default:
		return domain.AuthContext{}, domain.NewError(domain.ErrInvalidToken, "Token invalide")
	}
}

func (fakeAuthenticator) SyncStatus(context.Context) application.SyncStatus {
	return application.SyncStatus{Configured: true, Online: false, Message: "offline"}
}

func dialTestServer(t *testing.T) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	Register(srv, NewAuthInternalServer(fakeAuthenticator{}))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestValidateToken(t *testing.T) {
	t.Parallel()
	conn := dialTestServer(t)
	ctx := context.Background()

	req, err := structpb.NewStruct(map[string]any{"token": "good"})
	require.NoError(t, err)
	resp := &structpb.Struct{}
	require.NoError(t, conn.Invoke(ctx, "/"+serviceName+"/ValidateToken", req, resp))
	require.True(t, resp.GetFields()["valid"].GetBoolValue())
	require.Equal(t, float64(9), resp.GetFields()["user_id"].GetNumberValue())
	require.Equal(t, "MANAGER", resp.GetFields()["role"].GetStringValue())

	req, _ = structpb.NewStruct(map[string]any{"token": "revoked"})
	err = conn.Invoke(ctx, "/"+serviceName+"/ValidateToken", req, &structpb.Struct{})
	require.Equal(t, codes.Unauthenticated, status.Code(err))
	require.Equal(t, "Session invalide ou expirée", status.Convert(err).Message())

	err = conn.Invoke(ctx, "/"+serviceName+"/ValidateToken", &structpb.Struct{}, &structpb.Struct{})
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGetSyncStatus(t *testing.T) {
	t.Parallel()
	conn := dialTestServer(t)

	resp := &structpb.Struct{}
	require.NoError(t, conn.Invoke(context.Background(), "/"+serviceName+"/GetSyncStatus", &emptypb.Empty{}, resp))
	require.True(t, resp.GetFields()["configured"].GetBoolValue())
	require.False(t, resp.GetFields()["online"].GetBoolValue())
}
