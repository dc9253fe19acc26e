// Package lobby turns client requests into match operations and pushes the
// resulting state to the players. Transports call it with their own
// connection ids.
package lobby

import (
	"context"
	"errors"
	"math/rand/v2"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/mushi-tcg/mushi-server-go/internal/catalog"
	"github.com/mushi-tcg/mushi-server-go/internal/config"
	"github.com/mushi-tcg/mushi-server-go/internal/deck"
	"github.com/mushi-tcg/mushi-server-go/internal/game"
	"github.com/mushi-tcg/mushi-server-go/internal/repository"
	"go.uber.org/zap"
)

const (
	minUsername = 2
	maxUsername = 20

	persistTimeout = 10 * time.Second
)

var matchIDPattern = regexp.MustCompile(`^\d{4}$`)

// Option configures a Service.
type Option func(*Service)

// WithDecks enables joining with a saved deck.
func WithDecks(decks *deck.Service) Option {
	return func(s *Service) { s.decks = decks }
}

// WithResults stores a result for every finished match.
func WithResults(results repository.ResultStore) Option {
	return func(s *Service) { s.results = results }
}

// WithReplays records every match and saves the replay when it ends.
// The recorder must also be attached to the registry.
func WithReplays(recorder *game.ReplayRecorder) Option {
	return func(s *Service) { s.replays = recorder }
}

// WithNotifier sets where messages go.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// Service is the lobby: match creation, seating, readiness, play and
// teardown.
type Service struct {
	registry *game.Registry
	catalog  *catalog.Catalog
	cfg      config.MatchConfig
	decks    *deck.Service
	results  repository.ResultStore
	replays  *game.ReplayRecorder
	notifier Notifier
	logger   *zap.Logger

	rngMu sync.Mutex
	rng   *rand.Rand

	mu       sync.Mutex
	finished map[string]bool
	timers   map[string]*time.Timer
}

// NewService creates a lobby over an existing registry and catalog.
func NewService(registry *game.Registry, cat *catalog.Catalog, cfg config.MatchConfig, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		registry: registry,
		catalog:  cat,
		cfg:      cfg,
		logger:   logger,
		finished: make(map[string]bool),
		timers:   make(map[string]*time.Timer),
	}
	if cfg.Seed != 0 {
		s.rng = rand.New(rand.NewPCG(cfg.Seed, cfg.Seed+1))
	} else {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = NotifierFunc(func(string, Message) {})
	}
	return s
}

// Registry exposes the underlying registry.
func (s *Service) Registry() *game.Registry { return s.registry }

// Catalog exposes the card catalog.
func (s *Service) Catalog() *catalog.Catalog { return s.catalog }

// ValidateUsername checks the 2..20 character rule after trimming.
func ValidateUsername(username string) (string, error) {
	name := strings.TrimSpace(username)
	if name == "" {
		return "", invalid("username", "username is required")
	}
	n := utf8.RuneCountInString(name)
	if n < minUsername {
		return "", invalid("username", "must be at least %d characters", minUsername)
	}
	if n > maxUsername {
		return "", invalid("username", "must be at most %d characters", maxUsername)
	}
	return name, nil
}

// ValidateMatchID checks the 4-digit match code format.
func ValidateMatchID(matchID string) error {
	if strings.TrimSpace(matchID) == "" {
		return invalid("gameId", "game id is required")
	}
	if !matchIDPattern.MatchString(matchID) {
		return invalid("gameId", "game id must be 4 digits")
	}
	return nil
}

// ValidateAction checks the payload fields each action type needs and
// builds the game action for playerID.
func ValidateAction(playerID string, req ActionRequest) (game.Action, error) {
	actionType := game.ParseActionType(req.Type)
	if !actionType.Known() {
		return game.Action{}, invalid("type", "unknown action type %q", req.Type)
	}
	if playerID == "" {
		return game.Action{}, invalid("playerId", "player id is required")
	}
	switch actionType {
	case game.ActionPlayCard, game.ActionSetFood, game.ActionAttack:
		if req.CardID == "" {
			return game.Action{}, invalid("cardId", "card id is required for %s", actionType)
		}
	case game.ActionUseTechnique:
		if req.CardID == "" {
			return game.Action{}, invalid("cardId", "card id is required for %s", actionType)
		}
		if req.TechniqueIndex == nil {
			return game.Action{}, invalid("techniqueIndex", "technique index is required for %s", actionType)
		}
	}
	if req.TechniqueIndex != nil && *req.TechniqueIndex < 0 {
		return game.Action{}, invalid("techniqueIndex", "technique index must not be negative")
	}
	return game.Action{
		PlayerID:       playerID,
		Type:           actionType,
		CardID:         req.CardID,
		TargetID:       req.TargetID,
		TechniqueIndex: req.TechniqueIndex,
	}, nil
}

func (s *Service) resolveDeck(ctx context.Context, username string, req DeckRequest) ([]catalog.Card, error) {
	switch {
	case len(req.CardIDs) > 0:
		return s.catalog.ResolveDeck(req.CardIDs)
	case req.SavedDeck != "":
		if s.decks == nil {
			return nil, ErrNoDeckStore
		}
		ids, err := s.decks.LoadIDs(ctx, username, req.SavedDeck)
		if err != nil {
			return nil, err
		}
		return s.catalog.ResolveDeck(ids)
	default:
		return s.RandomDeck()
	}
}

// RandomDeck deals a random legal deck from the catalog.
func (s *Service) RandomDeck() ([]catalog.Card, error) {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.catalog.GenerateLegalDeck(s.rng, s.cfg.RandomDeckAttempts)
}

func (s *Service) viewFor(m *game.Match, playerID string) game.View {
	return m.ViewFor(playerID, game.ViewOptions{RedactHidden: s.cfg.RedactHiddenZones})
}

// CreateGame opens a match and seats the creator.
func (s *Service) CreateGame(ctx context.Context, connID, username string, req DeckRequest) (*game.Match, error) {
	name, err := ValidateUsername(username)
	if err != nil {
		return nil, err
	}
	if _, seated := s.registry.FindByActor(connID); seated {
		return nil, ErrAlreadyInMatch
	}
	cards, err := s.resolveDeck(ctx, name, req)
	if err != nil {
		return nil, err
	}

	m, err := s.registry.CreateMatch()
	if err != nil {
		return nil, err
	}
	if !s.registry.AddPlayer(m.ID(), connID, name, cards) {
		s.registry.End(m.ID())
		return nil, ErrAlreadyInMatch
	}
	if s.replays != nil {
		s.replays.StartRecording(m.ID())
	}

	s.notifier.Send(connID, NewMessage(TypeGameCreated, GameCreatedPayload{
		GameID:    m.ID(),
		PlayerID:  connID,
		GameState: s.viewFor(m, connID),
	}))
	if s.logger != nil {
		s.logger.Info("game created",
			zap.String("match_id", m.ID()),
			zap.String("player_id", connID),
			zap.String("username", name),
		)
	}
	return m, nil
}

// JoinGame seats a second player in an open match.
func (s *Service) JoinGame(ctx context.Context, connID, matchID, username string, req DeckRequest) (*game.Match, error) {
	name, err := ValidateUsername(username)
	if err != nil {
		return nil, err
	}
	if err := ValidateMatchID(matchID); err != nil {
		return nil, err
	}
	m, ok := s.registry.Get(matchID)
	if !ok {
		return nil, ErrMatchNotFound
	}
	if m.Started() {
		return nil, ErrMatchStarted
	}
	if len(m.PlayerIDs()) >= game.MaxPlayers {
		return nil, ErrMatchFull
	}
	if current, seated := s.registry.FindByActor(connID); seated && current.ID() != matchID {
		return nil, ErrAlreadyInMatch
	}

	cards, err := s.resolveDeck(ctx, name, req)
	if err != nil {
		return nil, err
	}
	if !s.registry.AddPlayer(matchID, connID, name, cards) {
		// Lost a race for the last seat, or the match started meanwhile.
		if m.Started() {
			return nil, ErrMatchStarted
		}
		return nil, ErrMatchFull
	}

	s.notifier.Send(connID, NewMessage(TypeGameJoined, GameCreatedPayload{
		GameID:    matchID,
		PlayerID:  connID,
		GameState: s.viewFor(m, connID),
	}))
	s.broadcastState(m)

	if s.logger != nil {
		s.logger.Info("game joined",
			zap.String("match_id", matchID),
			zap.String("player_id", connID),
			zap.String("username", name),
		)
	}
	return m, nil
}

func (s *Service) seated(connID, matchID string) (*game.Match, error) {
	if err := ValidateMatchID(matchID); err != nil {
		return nil, err
	}
	m, ok := s.registry.Get(matchID)
	if !ok {
		return nil, ErrMatchNotFound
	}
	if !m.HasPlayer(connID) {
		return nil, ErrNotInMatch
	}
	return m, nil
}

// Ready marks the player ready and starts the match once both are.
func (s *Service) Ready(connID, matchID string) error {
	m, err := s.seated(connID, matchID)
	if err != nil {
		return err
	}
	if m.Started() {
		return ErrMatchStarted
	}

	bothReady, _ := m.SetReady(connID, true)
	s.broadcastState(m)
	if !bothReady {
		if s.logger != nil {
			s.logger.Debug("player ready", zap.String("match_id", matchID), zap.String("player_id", connID))
		}
		return nil
	}

	if !s.registry.Start(matchID) {
		return ErrMatchStarted
	}
	s.broadcastState(m)
	return nil
}

// Act applies a move for the connection's player. Rule violations come back
// as *game.ActionError and change nothing.
func (s *Service) Act(ctx context.Context, connID, matchID string, req ActionRequest) error {
	m, err := s.seated(connID, matchID)
	if err != nil {
		return err
	}
	action, err := ValidateAction(connID, req)
	if err != nil {
		return err
	}
	if err := m.ProcessAction(action); err != nil {
		return err
	}

	s.broadcastState(m)
	if m.Ended() {
		s.finish(ctx, m)
	}
	return nil
}

// State returns the player's current projection of a match.
func (s *Service) State(connID, matchID string) (game.View, error) {
	m, err := s.seated(connID, matchID)
	if err != nil {
		return game.View{}, err
	}
	return s.viewFor(m, connID), nil
}

// Disconnect handles a lost connection. A match that never started is
// dropped; a running match is forfeited to the opponent.
func (s *Service) Disconnect(ctx context.Context, connID string) {
	m, ok := s.registry.FindByActor(connID)
	if !ok {
		return
	}
	if s.logger != nil {
		s.logger.Info("player disconnected", zap.String("match_id", m.ID()), zap.String("player_id", connID))
	}

	if !m.Started() {
		others := m.PlayerIDs()
		s.registry.End(m.ID())
		if s.replays != nil {
			s.replays.ClearReplay(m.ID())
		}
		for _, id := range others {
			if id == connID {
				continue
			}
			s.notifier.Send(id, NewMessage(TypeGameOver, GameOverPayload{
				GameState: game.View{ID: m.ID(), Ended: true},
				Reason:    string(game.ReasonAbandoned),
			}))
		}
		return
	}

	opponent, _ := m.Opponent(connID)
	if m.ForceEnd(opponent, game.ReasonForfeit) {
		s.finish(ctx, m)
	}
}

// ForceEnd terminates a match from outside play. winnerSeat -1 ends it
// without a winner.
func (s *Service) ForceEnd(ctx context.Context, matchID string, winnerSeat int, reason game.EndReason) error {
	m, ok := s.registry.Get(matchID)
	if !ok {
		return ErrMatchNotFound
	}
	if reason == "" {
		reason = game.ReasonAdmin
	}

	if !m.Started() {
		players := m.PlayerIDs()
		s.registry.End(matchID)
		if s.replays != nil {
			s.replays.ClearReplay(matchID)
		}
		for _, id := range players {
			s.notifier.Send(id, NewMessage(TypeGameOver, GameOverPayload{
				GameState: game.View{ID: matchID, Ended: true},
				Reason:    string(reason),
			}))
		}
		return nil
	}

	winnerID := ""
	if players := m.PlayerIDs(); winnerSeat >= 0 && winnerSeat < len(players) {
		winnerID = players[winnerSeat]
	}
	if !m.ForceEnd(winnerID, reason) {
		return ErrMatchEnded
	}
	s.finish(ctx, m)
	return nil
}

// Matches lists open matches.
func (s *Service) Matches() []game.MatchInfo {
	return s.registry.Snapshot()
}

// RecentResults returns stored results, newest first.
func (s *Service) RecentResults(ctx context.Context, limit int) ([]repository.MatchResult, error) {
	if s.results == nil {
		return []repository.MatchResult{}, nil
	}
	return s.results.RecentResults(ctx, limit)
}

// Close stops pending removals and drops their matches right away.
func (s *Service) Close() {
	s.mu.Lock()
	pending := make([]string, 0, len(s.timers))
	for id, t := range s.timers {
		if t.Stop() {
			pending = append(pending, id)
		}
	}
	s.timers = make(map[string]*time.Timer)
	s.mu.Unlock()

	for _, id := range pending {
		s.remove(id)
	}
}

func (s *Service) broadcastState(m *game.Match) {
	for _, id := range m.PlayerIDs() {
		s.notifier.Send(id, NewMessage(TypeGameState, GameStatePayload{GameState: s.viewFor(m, id)}))
	}
}

// finish runs once per match: game-over broadcast, persistence and the
// delayed removal from the registry.
func (s *Service) finish(ctx context.Context, m *game.Match) {
	s.mu.Lock()
	if s.finished[m.ID()] {
		s.mu.Unlock()
		return
	}
	s.finished[m.ID()] = true
	s.mu.Unlock()

	summary := m.Summary()
	for _, id := range m.PlayerIDs() {
		s.notifier.Send(id, NewMessage(TypeGameOver, GameOverPayload{
			GameState: s.viewFor(m, id),
			Winner:    summary.Winner,
			Reason:    string(summary.Reason),
			Summary:   &summary,
		}))
	}

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	s.persist(persistCtx, m, summary)
	s.scheduleRemoval(m.ID())
}

func (s *Service) persist(ctx context.Context, m *game.Match, summary game.Summary) {
	if s.results != nil {
		result := repository.MatchResult{
			MatchID:   summary.MatchID,
			WinnerID:  summary.WinnerID,
			Winner:    summary.Winner,
			Reason:    string(summary.Reason),
			Turns:     summary.Turns,
			Actions:   summary.Actions,
			StartedAt: summary.StartedAt,
			EndedAt:   summary.EndedAt,
		}
		for _, p := range summary.Players {
			result.Players = append(result.Players, p.Username)
		}
		if checksum, err := m.Snapshot().ComputeChecksum(); err == nil {
			result.Checksum = checksum.Hash
		}
		if err := s.results.SaveResult(ctx, result); err != nil && s.logger != nil {
			s.logger.Error("failed to save match result", zap.String("match_id", m.ID()), zap.Error(err))
		}
	}

	if s.replays != nil && s.replays.IsRecording(m.ID()) {
		s.replays.StopRecording(m.ID())
		if err := s.replays.SaveReplay(m.ID()); err != nil && !errors.Is(err, game.ErrReplayNotFound) && s.logger != nil {
			s.logger.Error("failed to save replay", zap.String("match_id", m.ID()), zap.Error(err))
		}
	}
}

func (s *Service) scheduleRemoval(matchID string) {
	if s.cfg.EndDelay <= 0 {
		s.remove(matchID)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers[matchID] = time.AfterFunc(s.cfg.EndDelay, func() { s.remove(matchID) })
}

func (s *Service) remove(matchID string) {
	s.registry.End(matchID)

	s.mu.Lock()
	delete(s.timers, matchID)
	delete(s.finished, matchID)
	s.mu.Unlock()
}
