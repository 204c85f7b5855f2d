package grpcapi_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/service"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/session"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/store/memory"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/types"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/grpcapi"
)

type client struct {
	conn *grpc.ClientConn
}

func newClient(t *testing.T) *client {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)
	auth := session.NewAuthority(session.NewStaticDirectory(session.Operator{
		Username:     "sup",
		PasswordHash: string(hash),
		Grants: session.NewGrants(map[string][]string{
			"entries": {"*"}, "badges": {"*"}, "alerts": {"*"},
		}),
	}), nil)

	st := memory.New()
	require.NoError(t, st.SaveBlacklistEntry(context.Background(), types.BlacklistEntry{
		ID: "bl-1", Kind: types.SubjectPerson, Key: "V9", Reason: "incident",
		Active: true, From: time.Now().Add(-time.Hour),
	}))
	cp := service.New(service.Config{Store: st, Authority: auth})

	lis := bufconn.Listen(1 << 20)
	srv := grpcapi.NewServer(grpcapi.Dependencies{Checkpoint: cp, Session: auth})
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Stop(ctx)
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &client{conn: conn}
}

func (c *client) call(t *testing.T, name string, fields map[string]any) (*structpb.Struct, error) {
	t.Helper()
	in, err := structpb.NewStruct(fields)
	require.NoError(t, err)
	out := new(structpb.Struct)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.conn.Invoke(ctx, grpcapi.FullMethod(name), in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func str(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

func TestHealth_Serving(t *testing.T) {
	c := newClient(t)
	resp, err := healthpb.NewHealthClient(c.conn).Check(context.Background(),
		&healthpb.HealthCheckRequest{Service: grpcapi.ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestVisit_OverGRPC(t *testing.T) {
	c := newClient(t)

	_, err := c.call(t, "SubmitEntry", map[string]any{"identity_key": "V1"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	assert.Equal(t, service.CodeNoSession, grpcapi.ErrorCode(err))

	sess, err := c.call(t, "Login", map[string]any{"username": "sup", "password": "pw"})
	require.NoError(t, err)
	assert.Equal(t, "sup", str(sess, "operator"))

	_, err = c.call(t, "RegisterBadge", map[string]any{"code": "b1"})
	require.NoError(t, err)

	rec, err := c.call(t, "SubmitEntry", map[string]any{
		"identity_key": "V1", "name": "Ann", "category": "visitor", "host_ref": "h-1",
	})
	require.NoError(t, err)
	id := str(rec, "id")
	require.NotEmpty(t, id)

	rec, err = c.call(t, "IssueBadge", map[string]any{"entry_id": id, "badge_code": "B1"})
	require.NoError(t, err)
	assert.Equal(t, string(types.StateInPremises), str(rec, "state"))

	res, err := c.call(t, "SubmitExit", map[string]any{"entry_id": id, "presented_badge": "B1"})
	require.NoError(t, err)
	assert.Equal(t, string(types.StateExited), str(res.GetFields()["record"].GetStructValue(), "state"))
	_, hasAlert := res.GetFields()["alert"]
	assert.False(t, hasAlert)

	b, err := c.call(t, "GetBadge", map[string]any{"code": "B1"})
	require.NoError(t, err)
	assert.Equal(t, string(types.BadgeAvailable), str(b, "state"))

	list, err := c.call(t, "ListEntries", map[string]any{"state": "exited"})
	require.NoError(t, err)
	assert.Len(t, list.GetFields()["entries"].GetListValue().GetValues(), 1)
}

func TestSubmitEntry_BlacklistedCarriesReasons(t *testing.T) {
	c := newClient(t)
	_, err := c.call(t, "Login", map[string]any{"username": "sup", "password": "pw"})
	require.NoError(t, err)

	_, err = c.call(t, "SubmitEntry", map[string]any{
		"identity_key": "V9", "name": "Bob", "category": "visitor", "host_ref": "h-1",
	})
	require.Error(t, err)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
	assert.Equal(t, service.CodeBlocked, grpcapi.ErrorCode(err))

	st, _ := status.FromError(err)
	require.NotEmpty(t, st.Details())
	detail, ok := st.Details()[0].(*structpb.Struct)
	require.True(t, ok)
	reasons := detail.GetFields()["reasons"].GetListValue().GetValues()
	require.NotEmpty(t, reasons)
	assert.Equal(t, string(types.ReasonBlacklisted), str(reasons[0].GetStructValue(), "code"))
}

func TestDecode_UnknownFieldIsInvalidArgument(t *testing.T) {
	c := newClient(t)
	_, err := c.call(t, "Login", map[string]any{"user": "sup"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}
