// Command botclient plays a match over the websocket API with a simple
// greedy strategy. Run two of them, or one against a browser client.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mushi-tcg/mushi-server-go/internal/game"
	"github.com/mushi-tcg/mushi-server-go/internal/lobby"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

var (
	serverURL = flag.String("url", "ws://localhost:3001/ws", "websocket endpoint")
	username  = flag.String("name", "mushibot", "player name")
	gameID    = flag.String("game", "", "match id to join; empty creates a new match")
	savedDeck = flag.String("deck", "", "saved deck name to play with")
	timeout   = flag.Duration("timeout", 30*time.Minute, "give up after this long")
)

func main() {
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx, stop := context.WithTimeout(ctx, *timeout)
	defer stop()

	if err := run(ctx, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("bot stopped", zap.Error(err))
	}
}

type bot struct {
	conn     *websocket.Conn
	logger   *zap.Logger
	strategy *strategy
	gameID   string
	view     game.View
	pending  *lobby.ActionRequest
}

func run(ctx context.Context, logger *zap.Logger) error {
	conn, _, err := websocket.Dial(ctx, *serverURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", *serverURL, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")
	conn.SetReadLimit(1 << 20)

	b := &bot{conn: conn, logger: logger, strategy: newStrategy()}
	deck := lobby.DeckRequest{SavedDeck: *savedDeck}

	if *gameID == "" {
		err = b.send(ctx, lobby.TypeCreateGame, lobby.CreateGamePayload{Username: *username, DeckRequest: deck})
	} else {
		err = b.send(ctx, lobby.TypeJoinGame, lobby.JoinGamePayload{GameID: *gameID, Username: *username, DeckRequest: deck})
	}
	if err != nil {
		return err
	}

	for {
		var msg lobby.Message
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			return err
		}
		done, err := b.handle(ctx, msg)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

func (b *bot) send(ctx context.Context, msgType string, payload any) error {
	return wsjson.Write(ctx, b.conn, lobby.NewMessage(msgType, payload))
}

func (b *bot) handle(ctx context.Context, msg lobby.Message) (bool, error) {
	switch msg.Type {
	case lobby.TypeGameCreated, lobby.TypeGameJoined:
		var p lobby.GameCreatedPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return false, err
		}
		b.gameID = p.GameID
		b.logger.Info("seated", zap.String("match_id", p.GameID), zap.String("player_id", p.PlayerID))
		return false, b.send(ctx, lobby.TypeReady, lobby.ReadyPayload{GameID: p.GameID})

	case lobby.TypeGameState:
		var p lobby.GameStatePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return false, err
		}
		b.pending = nil
		b.view = p.GameState
		action, ok := b.strategy.next(b.view)
		if !ok {
			return false, nil
		}
		return false, b.act(ctx, action)

	case lobby.TypeError:
		var p lobby.ErrorPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return false, err
		}
		b.logger.Warn("server rejected request", zap.String("code", p.Code), zap.String("message", p.Message))
		if b.pending == nil {
			// Seating failed; nothing more to do.
			return true, errors.New(p.Message)
		}
		rejected := *b.pending
		b.pending = nil
		if rejected.Type == string(game.ActionEndTurn) {
			return false, nil
		}
		// No state follows a rejection, so pick again from the last one.
		b.strategy.reject(rejected)
		action, ok := b.strategy.next(b.view)
		if !ok {
			return false, nil
		}
		return false, b.act(ctx, action)

	case lobby.TypeGameOver:
		var p lobby.GameOverPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return false, err
		}
		b.logger.Info("match over",
			zap.String("match_id", b.gameID),
			zap.String("winner", p.Winner),
			zap.String("reason", p.Reason),
			zap.Int("turns", p.GameState.Turn),
		)
		return true, nil
	}
	return false, nil
}

func (b *bot) act(ctx context.Context, action lobby.ActionRequest) error {
	b.pending = &action
	b.logger.Debug("acting",
		zap.String("type", action.Type),
		zap.String("card_id", action.CardID),
		zap.String("target_id", action.TargetID),
	)
	return b.send(ctx, lobby.TypeAction, lobby.ActionPayload{GameID: b.gameID, Action: action})
}
