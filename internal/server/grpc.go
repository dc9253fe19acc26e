package server

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mushi-tcg/mushi-server-go/internal/config"
	"github.com/mushi-tcg/mushi-server-go/internal/game"
	"github.com/mushi-tcg/mushi-server-go/internal/lobby"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// grpcSession is one gRPC client. Its id doubles as the player id; events
// queue until the client subscribes.
type grpcSession struct {
	id         string
	host       string
	createdAt  time.Time
	events     chan lobby.Message
	done       chan struct{}
	subscribed bool
}

// MatchServer implements MatchServiceServer on top of the lobby.
type MatchServer struct {
	lobby  *lobby.Service
	logger *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*grpcSession
}

// NewMatchServer creates the gRPC match service. It is also the lobby
// notifier for gRPC sessions.
func NewMatchServer(svc *lobby.Service, logger *zap.Logger) *MatchServer {
	return &MatchServer{
		lobby:    svc,
		logger:   logger,
		sessions: make(map[string]*grpcSession),
	}
}

// NewGRPCServer builds a grpc.Server carrying the match service, health
// checks and reflection.
func NewGRPCServer(cfg config.GRPCConfig, srv MatchServiceServer, logger *zap.Logger) *grpc.Server {
	opts := []grpc.ServerOption{
		grpc.UnaryInterceptor(ChainUnaryInterceptors(
			RecoveryInterceptor(logger),
			LoggingInterceptor(logger),
		)),
		grpc.StreamInterceptor(StreamRecoveryInterceptor(logger)),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    30 * time.Second,
			Timeout: 10 * time.Second,
		}),
	}
	if cfg.MaxConcurrentStreams > 0 {
		opts = append(opts, grpc.MaxConcurrentStreams(uint32(cfg.MaxConcurrentStreams)))
	}

	s := grpc.NewServer(opts...)
	RegisterMatchServiceServer(s, srv)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(MatchServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)

	reflection.Register(s)
	return s
}

// Send implements lobby.Notifier.
func (s *MatchServer) Send(connID string, msg lobby.Message) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[connID]
	if !ok {
		return
	}
	select {
	case sess.events <- msg:
	default:
		s.logger.Warn("dropping event for slow gRPC session",
			zap.String("session_id", connID),
			zap.String("type", msg.Type),
		)
	}
}

// SessionCount returns the number of open gRPC sessions.
func (s *MatchServer) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *MatchServer) session(id string) (*grpcSession, error) {
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "session id is required")
	}
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, status.Errorf(codes.NotFound, "session %s not found", id)
	}
	return sess, nil
}

func (s *MatchServer) closeSession(ctx context.Context, id string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
		close(sess.done)
	}
	s.mu.Unlock()

	if ok {
		s.lobby.Disconnect(ctx, id)
	}
	return ok
}

func failure(err error) *GameResponse {
	payload := lobby.ErrorFor(err)
	return &GameResponse{Success: false, Error: &payload}
}

func (s *MatchServer) Connect(ctx context.Context, req *ConnectRequest) (*ConnectResponse, error) {
	sess := &grpcSession{
		id:        uuid.NewString(),
		host:      extractHostFromContext(ctx),
		createdAt: time.Now(),
		events:    make(chan lobby.Message, sendBuffer),
		done:      make(chan struct{}),
	}

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	s.logger.Info("gRPC session connected",
		zap.String("session_id", sess.id),
		zap.String("host", sess.host),
	)
	return &ConnectResponse{SessionID: sess.id}, nil
}

func (s *MatchServer) gameResponse(m *game.Match, playerID string) (*GameResponse, error) {
	view, err := s.lobby.State(playerID, m.ID())
	if err != nil {
		return failure(err), nil
	}
	return &GameResponse{Success: true, GameID: m.ID(), PlayerID: playerID, GameState: &view}, nil
}

func (s *MatchServer) CreateGame(ctx context.Context, req *CreateGameRequest) (*GameResponse, error) {
	sess, err := s.session(req.SessionID)
	if err != nil {
		return nil, err
	}
	m, err := s.lobby.CreateGame(ctx, sess.id, req.Username, lobby.DeckRequest{CardIDs: req.Deck, SavedDeck: req.SavedDeck})
	if err != nil {
		return failure(err), nil
	}
	return s.gameResponse(m, sess.id)
}

func (s *MatchServer) JoinGame(ctx context.Context, req *JoinGameRequest) (*GameResponse, error) {
	sess, err := s.session(req.SessionID)
	if err != nil {
		return nil, err
	}
	m, err := s.lobby.JoinGame(ctx, sess.id, req.GameID, req.Username, lobby.DeckRequest{CardIDs: req.Deck, SavedDeck: req.SavedDeck})
	if err != nil {
		return failure(err), nil
	}
	return s.gameResponse(m, sess.id)
}

func (s *MatchServer) Ready(ctx context.Context, req *ReadyRequest) (*GameResponse, error) {
	sess, err := s.session(req.SessionID)
	if err != nil {
		return nil, err
	}
	if err := s.lobby.Ready(sess.id, req.GameID); err != nil {
		return failure(err), nil
	}
	return &GameResponse{Success: true, GameID: req.GameID, PlayerID: sess.id}, nil
}

func (s *MatchServer) Act(ctx context.Context, req *ActRequest) (*GameResponse, error) {
	sess, err := s.session(req.SessionID)
	if err != nil {
		return nil, err
	}
	if err := s.lobby.Act(ctx, sess.id, req.GameID, req.Action); err != nil {
		return failure(err), nil
	}
	return &GameResponse{Success: true, GameID: req.GameID, PlayerID: sess.id}, nil
}

func (s *MatchServer) GetState(ctx context.Context, req *GetStateRequest) (*GameResponse, error) {
	sess, err := s.session(req.SessionID)
	if err != nil {
		return nil, err
	}
	view, err := s.lobby.State(sess.id, req.GameID)
	if err != nil {
		return failure(err), nil
	}
	return &GameResponse{Success: true, GameID: req.GameID, PlayerID: sess.id, GameState: &view}, nil
}

func (s *MatchServer) ListMatches(ctx context.Context, req *ListMatchesRequest) (*ListMatchesResponse, error) {
	return &ListMatchesResponse{Matches: s.lobby.Matches()}, nil
}

func (s *MatchServer) Disconnect(ctx context.Context, req *DisconnectRequest) (*DisconnectResponse, error) {
	if req.SessionID == "" {
		return nil, status.Error(codes.InvalidArgument, "session id is required")
	}
	if !s.closeSession(ctx, req.SessionID) {
		return nil, status.Errorf(codes.NotFound, "session %s not found", req.SessionID)
	}
	s.logger.Info("gRPC session disconnected", zap.String("session_id", req.SessionID))
	return &DisconnectResponse{}, nil
}

// Subscribe streams lobby messages for a session until the client goes away.
// Losing the stream counts as a disconnect.
func (s *MatchServer) Subscribe(req *SubscribeRequest, stream grpc.ServerStreamingServer[lobby.Message]) error {
	sess, err := s.session(req.SessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if sess.subscribed {
		s.mu.Unlock()
		return status.Error(codes.FailedPrecondition, "session already subscribed")
	}
	sess.subscribed = true
	s.mu.Unlock()

	ctx := stream.Context()
	defer func() {
		if s.closeSession(context.WithoutCancel(ctx), sess.id) {
			s.logger.Info("gRPC subscriber left", zap.String("session_id", sess.id))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sess.done:
			return nil
		case msg := <-sess.events:
			if err := stream.Send(&msg); err != nil {
				return err
			}
		}
	}
}

func extractHostFromContext(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != net.Addr(nil) {
		if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
			return host
		}
		return p.Addr.String()
	}
	return "unknown"
}
