package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/mushi-tcg/mushi-server-go/internal/game"
	"github.com/mushi-tcg/mushi-server-go/internal/lobby"
	"github.com/mushi-tcg/mushi-server-go/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type grpcEnv struct {
	*testEnv
	server *MatchServer
	client *MatchClient
	conn   *grpc.ClientConn
}

func newGRPCEnv(t *testing.T) *grpcEnv {
	t.Helper()
	env := newTestEnv(t)
	logger := zaptest.NewLogger(t)

	ms := NewMatchServer(env.lobby, logger)
	env.notifier.Add(ms)

	lis := bufconn.Listen(1 << 20)
	srv := NewGRPCServer(env.cfg.Server.GRPC, ms, logger)
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

	return &grpcEnv{testEnv: env, server: ms, client: NewMatchClient(conn), conn: conn}
}

func (e *grpcEnv) connect(t *testing.T, ctx context.Context) string {
	t.Helper()
	resp, err := e.client.Connect(ctx, &ConnectRequest{})
	require.NoError(t, err)
	require.NotEmpty(t, resp.SessionID)
	return resp.SessionID
}

func TestGRPCHealth(t *testing.T) {
	env := newGRPCEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := healthpb.NewHealthClient(env.conn).Check(ctx, &healthpb.HealthCheckRequest{Service: MatchServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestGRPCSessionRequired(t *testing.T) {
	env := newGRPCEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := env.client.CreateGame(ctx, &CreateGameRequest{Username: "alice"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = env.client.CreateGame(ctx, &CreateGameRequest{SessionID: "missing", Username: "alice"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = env.client.Disconnect(ctx, &DisconnectRequest{SessionID: "missing"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestGRPCMatchFlow(t *testing.T) {
	env := newGRPCEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	alice := env.connect(t, ctx)
	bob := env.connect(t, ctx)
	assert.Equal(t, 2, env.server.SessionCount())

	events, err := env.client.Subscribe(ctx, &SubscribeRequest{SessionID: bob})
	require.NoError(t, err)

	created, err := env.client.CreateGame(ctx, &CreateGameRequest{SessionID: alice, Username: "alice"})
	require.NoError(t, err)
	require.True(t, created.Success, created.Error)
	require.NotNil(t, created.GameState)
	assert.Equal(t, alice, created.PlayerID)

	bad, err := env.client.JoinGame(ctx, &JoinGameRequest{SessionID: bob, GameID: "12", Username: "bob"})
	require.NoError(t, err)
	assert.False(t, bad.Success)
	assert.Equal(t, lobby.CodeInvalidRequest, bad.Error.Code)

	joined, err := env.client.JoinGame(ctx, &JoinGameRequest{SessionID: bob, GameID: created.GameID, Username: "bob"})
	require.NoError(t, err)
	require.True(t, joined.Success, joined.Error)
	assert.Len(t, joined.GameState.Players, 2)

	msg, err := events.Recv()
	require.NoError(t, err)
	assert.Equal(t, lobby.TypeGameJoined, msg.Type)

	for _, id := range []string{alice, bob} {
		resp, err := env.client.Ready(ctx, &ReadyRequest{SessionID: id, GameID: created.GameID})
		require.NoError(t, err)
		require.True(t, resp.Success, resp.Error)
	}

	state, err := env.client.GetState(ctx, &GetStateRequest{SessionID: alice, GameID: created.GameID})
	require.NoError(t, err)
	require.True(t, state.Success)
	assert.True(t, state.GameState.Started)
	assert.Len(t, state.GameState.Players[0].Territory, 6)

	active := alice
	if state.GameState.CurrentPlayerIndex != 0 {
		active = bob
	}
	resp, err := env.client.Act(ctx, &ActRequest{SessionID: active, GameID: created.GameID, Action: lobby.ActionRequest{Type: "SURRENDER"}})
	require.NoError(t, err)
	require.True(t, resp.Success, resp.Error)

	for {
		msg, err := events.Recv()
		require.NoError(t, err)
		if msg.Type == lobby.TypeGameOver {
			over := decodePayloadAs[lobby.GameOverPayload](t, msg.Payload)
			assert.Equal(t, string(game.ReasonSurrender), over.Reason)
			break
		}
	}

	list, err := env.client.ListMatches(ctx, &ListMatchesRequest{})
	require.NoError(t, err)
	assert.Empty(t, list.Matches)
}

func TestGRPCSubscriberLossForfeits(t *testing.T) {
	env := newGRPCEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	alice := env.connect(t, ctx)
	bob := env.connect(t, ctx)

	created, err := env.client.CreateGame(ctx, &CreateGameRequest{SessionID: alice, Username: "alice"})
	require.NoError(t, err)
	_, err = env.client.JoinGame(ctx, &JoinGameRequest{SessionID: bob, GameID: created.GameID, Username: "bob"})
	require.NoError(t, err)
	for _, id := range []string{alice, bob} {
		_, err := env.client.Ready(ctx, &ReadyRequest{SessionID: id, GameID: created.GameID})
		require.NoError(t, err)
	}

	subCtx, stop := context.WithCancel(ctx)
	events, err := env.client.Subscribe(subCtx, &SubscribeRequest{SessionID: bob})
	require.NoError(t, err)
	_, err = events.Recv()
	require.NoError(t, err)

	// A second subscriber is rejected on its first read.
	second, err := env.client.Subscribe(ctx, &SubscribeRequest{SessionID: bob})
	require.NoError(t, err)
	_, err = second.Recv()
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	stop()

	var results []repository.MatchResult
	assert.Eventually(t, func() bool {
		results, _ = env.store.RecentResults(ctx, 1)
		return len(results) == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.Len(t, results, 1)
	assert.Equal(t, 1, env.server.SessionCount())
	assert.Equal(t, string(game.ReasonForfeit), results[0].Reason)
	assert.Equal(t, "alice", results[0].Winner)
}
