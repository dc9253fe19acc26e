package server

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mushi-tcg/mushi-server-go/internal/game"
	"github.com/mushi-tcg/mushi-server-go/internal/lobby"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dialWS(t *testing.T, ctx context.Context, srv *httptest.Server) *wsClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) send(ctx context.Context, msgType string, payload any) {
	c.t.Helper()
	require.NoError(c.t, wsjson.Write(ctx, c.conn, lobby.NewMessage(msgType, payload)))
}

// await reads until a message of the given type arrives.
func (c *wsClient) await(ctx context.Context, msgType string) json.RawMessage {
	c.t.Helper()
	for {
		var msg lobby.Message
		require.NoError(c.t, wsjson.Read(ctx, c.conn, &msg))
		if msg.Type == msgType {
			return msg.Payload
		}
	}
}

func decodePayloadAs[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestWebSocketMatchFlow(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.http)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	alice := dialWS(t, ctx, srv)
	bob := dialWS(t, ctx, srv)

	alice.send(ctx, lobby.TypeCreateGame, lobby.CreateGamePayload{Username: "alice"})
	created := decodePayloadAs[lobby.GameCreatedPayload](t, alice.await(ctx, lobby.TypeGameCreated))
	require.Len(t, created.GameID, 4)
	assert.NotEmpty(t, created.PlayerID)

	bob.send(ctx, lobby.TypeJoinGame, lobby.JoinGamePayload{GameID: created.GameID, Username: "bob"})
	joined := decodePayloadAs[lobby.GameCreatedPayload](t, bob.await(ctx, lobby.TypeGameJoined))
	assert.Equal(t, created.GameID, joined.GameID)
	assert.Len(t, joined.GameState.Players, 2)

	assert.Eventually(t, func() bool { return env.http.Hub().Len() == 2 }, time.Second, 10*time.Millisecond)

	alice.send(ctx, lobby.TypeReady, lobby.ReadyPayload{GameID: created.GameID})
	bob.send(ctx, lobby.TypeReady, lobby.ReadyPayload{GameID: created.GameID})

	var started game.View
	for !started.Started {
		started = decodePayloadAs[lobby.GameStatePayload](t, alice.await(ctx, lobby.TypeGameState)).GameState
	}
	assert.Len(t, started.Players[0].Hand, 4)

	// Whoever is not active gets NOT_YOUR_TURN back.
	idle, active := bob, alice
	if started.CurrentPlayerIndex != 0 {
		idle, active = alice, bob
	}
	idle.send(ctx, lobby.TypeAction, lobby.ActionPayload{GameID: created.GameID, Action: lobby.ActionRequest{Type: "END_TURN"}})
	errPayload := decodePayloadAs[lobby.ErrorPayload](t, idle.await(ctx, lobby.TypeError))
	assert.Equal(t, string(game.ErrNotYourTurn), errPayload.Code)

	active.send(ctx, lobby.TypeAction, lobby.ActionPayload{GameID: created.GameID, Action: lobby.ActionRequest{Type: "SURRENDER"}})
	over := decodePayloadAs[lobby.GameOverPayload](t, idle.await(ctx, lobby.TypeGameOver))
	assert.Equal(t, string(game.ReasonSurrender), over.Reason)
	assert.True(t, over.GameState.Ended)
}

func TestWebSocketRejectsBadMessages(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.http)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c := dialWS(t, ctx, srv)

	require.NoError(t, c.conn.Write(ctx, websocket.MessageText, []byte("{not json")))
	payload := decodePayloadAs[lobby.ErrorPayload](t, c.await(ctx, lobby.TypeError))
	assert.Equal(t, lobby.CodeInvalidRequest, payload.Code)

	c.send(ctx, "teleport", map[string]string{})
	payload = decodePayloadAs[lobby.ErrorPayload](t, c.await(ctx, lobby.TypeError))
	assert.Equal(t, lobby.CodeInvalidRequest, payload.Code)

	c.send(ctx, lobby.TypeJoinGame, lobby.JoinGamePayload{GameID: "9999", Username: "carol"})
	payload = decodePayloadAs[lobby.ErrorPayload](t, c.await(ctx, lobby.TypeError))
	assert.Equal(t, lobby.CodeGameNotFound, payload.Code)
}

func TestWebSocketDisconnectAbandonsMatch(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.http)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := dialWS(t, ctx, srv)
	c.send(ctx, lobby.TypeCreateGame, lobby.CreateGamePayload{Username: "alice"})
	created := decodePayloadAs[lobby.GameCreatedPayload](t, c.await(ctx, lobby.TypeGameCreated))

	require.NoError(t, c.conn.Close(websocket.StatusNormalClosure, "bye"))

	assert.Eventually(t, func() bool {
		_, ok := env.lobby.Registry().Get(created.GameID)
		return !ok && env.http.Hub().Len() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestOriginAllowed(t *testing.T) {
	assert.True(t, originAllowed(nil, ""))
	assert.True(t, originAllowed([]string{"*"}, "http://any"))
	assert.True(t, originAllowed([]string{"http://a"}, "http://a"))
	assert.False(t, originAllowed([]string{"http://a"}, "http://b"))
	assert.False(t, originAllowed(nil, "http://a"))
}
