package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mushi-tcg/mushi-server-go/internal/config"
	"github.com/mushi-tcg/mushi-server-go/internal/lobby"
	"go.uber.org/zap"
)

const (
	sendBuffer = 256
	writeWait  = 10 * time.Second
)

// Client is one websocket connection. Its id doubles as the player id.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks websocket clients and delivers lobby messages to them.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	lobby    *lobby.Service
	upgrader websocket.Upgrader
	cfg      config.WebSocketConfig
	logger   *zap.Logger
}

// NewHub creates a hub. Register it with the lobby's notifier before serving.
func NewHub(svc *lobby.Service, cfg config.WebSocketConfig, logger *zap.Logger) *Hub {
	h := &Hub{
		clients: make(map[string]*Client),
		lobby:   svc,
		cfg:     cfg,
		logger:  logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin:     func(r *http.Request) bool { return originAllowed(cfg.AllowedOrigins, r.Header.Get("Origin")) },
	}
	return h
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return true
	}
	for _, o := range allowed {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()

	if h.logger != nil {
		h.logger.Info("websocket client connected", zap.String("player_id", c.id), zap.Int("clients", n))
	}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if h.logger != nil {
		h.logger.Info("websocket client disconnected", zap.String("player_id", c.id), zap.Int("clients", n))
	}
}

// Send implements lobby.Notifier. A client whose buffer is full misses the
// message; the next state update supersedes it.
func (h *Hub) Send(connID string, msg lobby.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.clients[connID]
	if !ok {
		return
	}
	select {
	case c.send <- data:
	default:
		if h.logger != nil {
			h.logger.Warn("dropping message for slow client",
				zap.String("player_id", connID),
				zap.String("type", msg.Type),
			)
		}
	}
}

// CloseAll disconnects every client.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for _, c := range h.clients {
		conns = append(conns, c.conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
	}
}

// ServeWS upgrades the request and runs the client until it disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.logger != nil {
			h.logger.Debug("websocket upgrade failed", zap.Error(err))
		}
		return
	}

	client := &Client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	h.register(client)

	go client.writePump(h.cfg.PingInterval)
	client.readPump(context.WithoutCancel(r.Context()), h)
}

func (c *Client) readPump(ctx context.Context, h *Hub) {
	defer func() {
		h.lobby.Disconnect(ctx, c.id)
		h.unregister(c)
		c.conn.Close()
	}()

	if h.cfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(h.cfg.MaxMessageSize)
	}
	if h.cfg.PingInterval > 0 {
		pongWait := 2 * h.cfg.PingInterval
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.conn.SetPongHandler(func(string) error {
			return c.conn.SetReadDeadline(time.Now().Add(pongWait))
		})
	}

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && h.logger != nil {
				h.logger.Debug("websocket read error", zap.String("player_id", c.id), zap.Error(err))
			}
			return
		}

		var msg lobby.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			h.Send(c.id, lobby.NewMessage(lobby.TypeError, lobby.ErrorPayload{
				Code:    lobby.CodeInvalidRequest,
				Message: "invalid message",
			}))
			continue
		}
		if err := h.handleMessage(ctx, c.id, msg); err != nil {
			h.Send(c.id, lobby.NewMessage(lobby.TypeError, lobby.ErrorFor(err)))
		}
	}
}

func (c *Client) writePump(pingInterval time.Duration) {
	var tick <-chan time.Time
	if pingInterval > 0 {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}
	defer c.conn.Close()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-tick:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func decodePayload(msg lobby.Message, v any) error {
	if len(msg.Payload) == 0 {
		return &lobby.ValidationError{Field: "payload", Message: "payload is required"}
	}
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return &lobby.ValidationError{Field: "payload", Message: "malformed " + msg.Type + " payload"}
	}
	return nil
}

func (h *Hub) handleMessage(ctx context.Context, connID string, msg lobby.Message) error {
	if h.logger != nil {
		h.logger.Debug("websocket message", zap.String("player_id", connID), zap.String("type", msg.Type))
	}

	switch msg.Type {
	case lobby.TypeCreateGame:
		var p lobby.CreateGamePayload
		if err := decodePayload(msg, &p); err != nil {
			return err
		}
		_, err := h.lobby.CreateGame(ctx, connID, p.Username, p.DeckRequest)
		return err

	case lobby.TypeJoinGame:
		var p lobby.JoinGamePayload
		if err := decodePayload(msg, &p); err != nil {
			return err
		}
		_, err := h.lobby.JoinGame(ctx, connID, p.GameID, p.Username, p.DeckRequest)
		return err

	case lobby.TypeReady:
		var p lobby.ReadyPayload
		if err := decodePayload(msg, &p); err != nil {
			return err
		}
		return h.lobby.Ready(connID, p.GameID)

	case lobby.TypeAction:
		var p lobby.ActionPayload
		if err := decodePayload(msg, &p); err != nil {
			return err
		}
		return h.lobby.Act(ctx, connID, p.GameID, p.Action)

	default:
		return &lobby.ValidationError{Field: "type", Message: "unknown message type " + msg.Type}
	}
}
