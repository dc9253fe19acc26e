package lobby

import (
	"encoding/json"
	"sync"

	"github.com/mushi-tcg/mushi-server-go/internal/game"
)

// Message types exchanged with clients.
const (
	TypeCreateGame  = "createGame"
	TypeJoinGame    = "joinGame"
	TypeReady       = "ready"
	TypeAction      = "action"
	TypeGameCreated = "gameCreated"
	TypeGameJoined  = "gameJoined"
	TypeGameState   = "gameState"
	TypeGameOver    = "gameOver"
	TypeError       = "error"
)

// Message is the envelope for every realtime message.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage encodes payload into an envelope.
func NewMessage(msgType string, payload any) Message {
	msg := Message{Type: msgType}
	if payload != nil {
		// Payloads are plain structs; encoding cannot fail.
		msg.Payload, _ = json.Marshal(payload)
	}
	return msg
}

// DeckRequest selects the deck a player brings. Card ids win over a saved
// deck name; with neither a random legal deck is dealt.
type DeckRequest struct {
	CardIDs   []string `json:"deck,omitempty"`
	SavedDeck string   `json:"savedDeck,omitempty"`
}

// CreateGamePayload is sent by a client opening a match.
type CreateGamePayload struct {
	Username string `json:"username"`
	DeckRequest
}

// JoinGamePayload is sent by a client joining an open match.
type JoinGamePayload struct {
	GameID   string `json:"gameId"`
	Username string `json:"username"`
	DeckRequest
}

// ReadyPayload marks the sender ready.
type ReadyPayload struct {
	GameID string `json:"gameId"`
}

// ActionRequest is the client's move. The player id comes from the
// connection, never from the payload.
type ActionRequest struct {
	Type           string `json:"type"`
	CardID         string `json:"cardId,omitempty"`
	TargetID       string `json:"targetId,omitempty"`
	TechniqueIndex *int   `json:"techniqueIndex,omitempty"`
}

// ActionPayload carries a move for a match.
type ActionPayload struct {
	GameID string        `json:"gameId"`
	Action ActionRequest `json:"action"`
}

// GameCreatedPayload answers createGame and joinGame.
type GameCreatedPayload struct {
	GameID    string    `json:"gameId"`
	PlayerID  string    `json:"playerId"`
	GameState game.View `json:"gameState"`
}

// GameStatePayload is the per-player projection after every change.
type GameStatePayload struct {
	GameState game.View `json:"gameState"`
}

// GameOverPayload is sent once when a match ends.
type GameOverPayload struct {
	GameState game.View     `json:"gameState"`
	Winner    string        `json:"winner,omitempty"`
	Reason    string        `json:"reason"`
	Summary   *game.Summary `json:"summary,omitempty"`
}

// ErrorPayload reports a failed request to the sender only.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Notifier delivers messages to a connected client. Unknown connection ids
// are ignored.
type Notifier interface {
	Send(connID string, msg Message)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(connID string, msg Message)

func (f NotifierFunc) Send(connID string, msg Message) { f(connID, msg) }

// MultiNotifier fans a message out to several transports. Connection ids are
// unique across transports, so at most one of them delivers it.
type MultiNotifier struct {
	mu      sync.RWMutex
	targets []Notifier
}

// Add registers another transport.
func (m *MultiNotifier) Add(n Notifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.targets = append(m.targets, n)
}

func (m *MultiNotifier) Send(connID string, msg Message) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, n := range m.targets {
		n.Send(connID, msg)
	}
}
