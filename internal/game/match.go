package game

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/mushi-tcg/mushi-server-go/internal/catalog"
	"github.com/mushi-tcg/mushi-server-go/internal/game/rules"
	"github.com/mushi-tcg/mushi-server-go/internal/game/watchers"
	"go.uber.org/zap"
)

// MatchStatus is the lifecycle state of a match.
type MatchStatus int

const (
	MatchStatusWaiting MatchStatus = iota
	MatchStatusInProgress
	MatchStatusFinished
)

func (s MatchStatus) String() string {
	switch s {
	case MatchStatusWaiting:
		return "WAITING"
	case MatchStatusInProgress:
		return "IN_PROGRESS"
	case MatchStatusFinished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

// EndReason explains how a match ended.
type EndReason string

const (
	ReasonTerritory EndReason = "territory"
	ReasonDeckOut   EndReason = "deck_out"
	ReasonSurrender EndReason = "surrender"
	ReasonForfeit   EndReason = "forfeit"
	ReasonAdmin     EndReason = "admin"
	ReasonAbandoned EndReason = "abandoned"
)

// MaxPlayers is the number of seats in a match.
const MaxPlayers = 2

const noWinner = -1

// StateRecorder receives a snapshot after every accepted state change.
type StateRecorder interface {
	RecordState(matchID string, snapshot *Snapshot)
}

// MatchOption configures a Match.
type MatchOption func(*Match)

// WithLogger sets the match logger.
func WithLogger(logger *zap.Logger) MatchOption {
	return func(m *Match) { m.logger = logger }
}

// WithRand sets the random source used for shuffling and the first player.
func WithRand(rng *rand.Rand) MatchOption {
	return func(m *Match) { m.rng = rng }
}

// WithRecorder records a snapshot after each accepted action.
func WithRecorder(recorder StateRecorder) MatchOption {
	return func(m *Match) { m.recorder = recorder }
}

// Match is the authoritative state of one game. All methods are safe for
// concurrent use; mutations are applied one at a time.
type Match struct {
	mu sync.Mutex

	id         string
	players    []*PlayerState
	turns      *rules.TurnManager
	started    bool
	ended      bool
	winner     int
	endReason  EndReason
	lastAction *Action
	sequence   int

	createdAt time.Time
	startedAt time.Time
	endedAt   time.Time

	events   *rules.EventBus
	watchers *rules.WatcherRegistry
	stats    *watchers.StatsSet
	pending  []rules.Event

	rng      *rand.Rand
	recorder StateRecorder
	logger   *zap.Logger
}

// NewMatch creates an empty match with the given id.
func NewMatch(id string, opts ...MatchOption) *Match {
	m := &Match{
		id:        id,
		players:   make([]*PlayerState, 0, MaxPlayers),
		turns:     rules.RestoreTurnManager(0, 1, rules.PhaseDraw),
		winner:    noWinner,
		createdAt: time.Now(),
		events:    rules.NewEventBus(),
		watchers:  rules.NewWatcherRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.rng == nil {
		m.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	// A fresh registry never rejects the standard set.
	m.stats, _ = watchers.NewStatsSet(m.watchers)
	m.watchers.Attach(m.events)
	return m
}

// ID returns the match code.
func (m *Match) ID() string { return m.id }

// Events exposes the match event bus. Listeners run with the match lock held
// and must not call back into the match.
func (m *Match) Events() *rules.EventBus { return m.events }

// AddPlayer seats a player. It fails once started, when full, or when the
// player is already seated.
func (m *Match) AddPlayer(playerID, username string, deck []catalog.Card) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started || m.ended || len(m.players) >= MaxPlayers {
		return false
	}
	if m.seatOf(playerID) >= 0 {
		return false
	}
	m.players = append(m.players, NewPlayerState(playerID, username, deck))

	if m.logger != nil {
		m.logger.Info("player joined match",
			zap.String("match_id", m.id),
			zap.String("player_id", playerID),
			zap.String("username", username),
			zap.Int("seat", len(m.players)-1),
		)
	}
	return true
}

// Start deals both players in and picks the first player at random.
func (m *Match) Start() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started || m.ended || len(m.players) != MaxPlayers {
		return false
	}
	for _, p := range m.players {
		p.Initialize(m.rng)
	}
	first := m.rng.IntN(MaxPlayers)
	m.turns = rules.NewTurnManager(first)
	m.started = true
	m.startedAt = time.Now()

	evt := rules.NewEvent(rules.EventMatchStarted, m.id, m.players[first].ID)
	evt.Turn = m.turns.Turn()
	m.emit(evt)
	m.commit()

	if m.logger != nil {
		m.logger.Info("match started",
			zap.String("match_id", m.id),
			zap.String("first_player", m.players[first].ID),
		)
	}
	return true
}

// SetReady records a player's ready flag and reports whether both seats are
// filled and ready.
func (m *Match) SetReady(playerID string, ready bool) (bool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seat := m.seatOf(playerID)
	if seat < 0 {
		return false, false
	}
	m.players[seat].IsReady = ready
	if len(m.players) != MaxPlayers {
		return false, true
	}
	return m.players[0].IsReady && m.players[1].IsReady, true
}

// ProcessAction validates and applies one action. A rejected action returns
// an *ActionError and leaves the match unchanged.
func (m *Match) ProcessAction(action Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started || m.ended {
		return reject(ErrInvalidAction, action.Type)
	}
	seat := m.turns.Active()
	actor := m.players[seat]
	if action.PlayerID != actor.ID {
		return reject(ErrNotYourTurn, action.Type)
	}

	var err error
	recorded := action.clone()
	switch action.Type {
	case ActionPlayCard:
		err = m.handlePlayCard(action, actor)
	case ActionSetFood:
		err = m.handleSetFood(action, actor)
	case ActionSkipSetPhase:
		err = m.handleSkipSetPhase(action, actor)
	case ActionAttack:
		err = m.handleAttack(action, seat)
		if err == nil {
			idx := action.Technique()
			recorded.TechniqueIndex = &idx
		}
	case ActionUseTechnique:
		err = m.handleUseTechnique(action, actor)
	case ActionEndTurn:
		m.handleEndTurn(seat)
	case ActionSurrender:
		m.emit(rules.NewEvent(rules.EventSurrendered, m.id, actor.ID))
		m.finish(1-seat, ReasonSurrender)
	default:
		err = reject(ErrInvalidAction, action.Type)
	}

	if err != nil {
		m.pending = m.pending[:0]
		if m.logger != nil {
			m.logger.Debug("action rejected",
				zap.String("match_id", m.id),
				zap.String("player_id", action.PlayerID),
				zap.String("action", string(action.Type)),
				zap.String("error_code", string(Code(err))),
			)
		}
		return err
	}

	m.lastAction = recorded
	m.commit()

	if m.logger != nil {
		m.logger.Debug("action applied",
			zap.String("match_id", m.id),
			zap.String("player_id", action.PlayerID),
			zap.String("action", string(action.Type)),
			zap.String("phase", m.turns.Phase().String()),
			zap.Int("turn", m.turns.Turn()),
		)
	}
	return nil
}

func (m *Match) handlePlayCard(action Action, actor *PlayerState) error {
	if m.turns.Phase() != rules.PhaseMain {
		return reject(ErrInvalidAction, action.Type)
	}
	idx := actor.HandIndex(action.CardID)
	if idx < 0 {
		return reject(ErrCardNotFound, action.Type)
	}
	card, ok := actor.PlayCard(idx)
	if !ok {
		return reject(ErrInsufficientFood, action.Type)
	}

	evt := rules.NewEventWithAmount(rules.EventCardPlayed, m.id, actor.ID, card.ID, "", card.Cost)
	evt.Metadata["category"] = string(card.Category)
	m.emit(evt)
	return nil
}

func (m *Match) handleSetFood(action Action, actor *PlayerState) error {
	if m.turns.Phase() != rules.PhaseSet {
		return reject(ErrInvalidAction, action.Type)
	}
	idx := actor.HandIndex(action.CardID)
	if idx < 0 {
		return reject(ErrCardNotFound, action.Type)
	}
	card, _ := actor.SetFood(idx)
	m.enterMain(actor)
	m.emit(rules.NewEventWithAmount(rules.EventFoodSet, m.id, actor.ID, card.ID, "", actor.CurrentFood))
	return nil
}

func (m *Match) handleSkipSetPhase(action Action, actor *PlayerState) error {
	if m.turns.Phase() != rules.PhaseSet {
		return reject(ErrInvalidAction, action.Type)
	}
	m.enterMain(actor)
	m.emit(rules.NewEventWithAmount(rules.EventSetPhaseSkipped, m.id, actor.ID, "", "", actor.CurrentFood))
	return nil
}

func (m *Match) enterMain(actor *PlayerState) {
	actor.UpdateFood()
	m.turns.EnterMain()
	m.emitPhase(actor.ID, rules.PhaseSet, rules.PhaseMain)
}

func (m *Match) handleAttack(action Action, seat int) error {
	if m.turns.Phase() != rules.PhaseMain {
		return reject(ErrInvalidAction, action.Type)
	}
	actor := m.players[seat]
	opponent := m.players[1-seat]

	attackerIdx := actor.FieldIndex(action.CardID)
	if attackerIdx < 0 {
		return reject(ErrCardNotFound, action.Type)
	}
	techIdx := action.Technique()
	power := actor.AttackPower(attackerIdx, techIdx)
	if power <= 0 {
		return reject(ErrInvalidAction, action.Type)
	}
	attacker := actor.Field[attackerIdx].Card
	tech, _ := attacker.Technique(techIdx)

	if action.TargetID != "" {
		defenderIdx := opponent.FieldIndex(action.TargetID)
		if defenderIdx < 0 {
			return reject(ErrInvalidTarget, action.Type)
		}
		defender := opponent.Field[defenderIdx].Card

		actor.Attack(attackerIdx, techIdx)
		damage := rules.CombatDamage(power, attacker.Element, defender.Element)
		destroyed := opponent.ReceiveDamage(defenderIdx, damage)

		declared := rules.NewEventWithAmount(rules.EventAttackDeclared, m.id, actor.ID, attacker.ID, defender.ID, power)
		declared.Metadata["technique"] = tech.Name
		m.emit(declared)

		dealt := rules.NewEventWithAmount(rules.EventDamageDealt, m.id, actor.ID, attacker.ID, defender.ID, damage)
		dealt.Flag = rules.Beats(attacker.Element, defender.Element)
		dealt.Metadata[watchers.OwnerKey] = opponent.ID
		m.emit(dealt)

		if destroyed {
			gone := rules.NewCardEvent(rules.EventCreatureDestroyed, m.id, actor.ID, attacker.ID, defender.ID)
			gone.Flag = true
			gone.Metadata[watchers.OwnerKey] = opponent.ID
			m.emit(gone)

			if card, ok := opponent.MoveCardFromTerritoryToHand(); ok {
				m.emit(rules.NewCardEvent(rules.EventTerritoryReturned, m.id, opponent.ID, card.ID, ""))
			}
		}
		return nil
	}

	if len(opponent.Field) > 0 {
		return reject(ErrInvalidTarget, action.Type)
	}
	actor.Attack(attackerIdx, techIdx)

	declared := rules.NewEventWithAmount(rules.EventAttackDeclared, m.id, actor.ID, attacker.ID, opponent.ID, power)
	declared.Metadata["technique"] = tech.Name
	m.emit(declared)

	card, ok := opponent.DiscardTerritory()
	direct := rules.NewEventWithAmount(rules.EventDirectAttack, m.id, actor.ID, attacker.ID, opponent.ID, power)
	direct.Flag = !ok
	m.emit(direct)
	if ok {
		lost := rules.NewCardEvent(rules.EventTerritoryLost, m.id, opponent.ID, card.ID, "")
		lost.Metadata["attacker_id"] = actor.ID
		m.emit(lost)
		return nil
	}
	m.finish(seat, ReasonTerritory)
	return nil
}

func (m *Match) handleUseTechnique(action Action, actor *PlayerState) error {
	if m.turns.Phase() != rules.PhaseMain {
		return reject(ErrInvalidAction, action.Type)
	}
	evt := rules.NewCardEvent(rules.EventTechniqueUsed, m.id, actor.ID, action.CardID, action.TargetID)
	evt.Amount = action.Technique()
	m.emit(evt)
	return nil
}

func (m *Match) handleEndTurn(seat int) {
	from := m.turns.Phase()
	for _, p := range m.players {
		p.ResetDamageOnly()
	}
	m.players[seat].ResetAttackFlags()
	m.watchers.ResetWatchersByScope(rules.WatcherScopeTurn)

	ended := rules.NewEvent(rules.EventTurnEnded, m.id, m.players[seat].ID)
	ended.Turn = m.turns.Turn()
	m.emit(ended)
	m.emitPhase(m.players[seat].ID, from, rules.PhaseEnd)

	next := m.turns.EndTurn()
	nextPlayer := m.players[next]
	started := rules.NewEvent(rules.EventTurnStarted, m.id, nextPlayer.ID)
	started.Turn = m.turns.Turn()
	m.emit(started)

	if !m.turns.SkipsOpeningDraw() {
		if card, ok := nextPlayer.DrawCard(); ok {
			m.emit(rules.NewCardEvent(rules.EventCardDrawn, m.id, nextPlayer.ID, card.ID, ""))
		} else {
			m.emit(rules.NewEvent(rules.EventDeckOut, m.id, nextPlayer.ID))
			m.resolveDeckOut()
		}
	}
	m.turns.FinishDraw()
	m.emitPhase(nextPlayer.ID, rules.PhaseDraw, rules.PhaseSet)
}

// resolveDeckOut awards the match to the player with strictly more territory.
func (m *Match) resolveDeckOut() {
	a, b := len(m.players[0].Territory), len(m.players[1].Territory)
	switch {
	case a > b:
		m.finish(0, ReasonDeckOut)
	case b > a:
		m.finish(1, ReasonDeckOut)
	default:
		m.finish(noWinner, ReasonDeckOut)
	}
}

// ForceEnd terminates the match outside normal play, for disconnects and
// admin intervention. An empty or unknown winnerID ends it without a winner.
// It reports false when the match had already ended.
func (m *Match) ForceEnd(winnerID string, reason EndReason) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ended {
		return false
	}
	m.finish(m.seatOf(winnerID), reason)
	m.commit()
	return true
}

func (m *Match) finish(winnerSeat int, reason EndReason) {
	m.ended = true
	m.winner = winnerSeat
	m.endReason = reason
	m.endedAt = time.Now()

	winnerID := ""
	if winnerSeat >= 0 {
		winnerID = m.players[winnerSeat].ID
	}
	evt := rules.NewEvent(rules.EventMatchEnded, m.id, winnerID)
	evt.Turn = m.turns.Turn()
	evt.Metadata["reason"] = string(reason)
	m.emit(evt)

	if m.logger != nil {
		m.logger.Info("match ended",
			zap.String("match_id", m.id),
			zap.String("winner", winnerID),
			zap.String("reason", string(reason)),
			zap.Int("turn", m.turns.Turn()),
		)
	}
}

func (m *Match) emit(evt rules.Event) {
	if evt.Turn == 0 {
		evt.Turn = m.turns.Turn()
	}
	m.pending = append(m.pending, evt)
}

func (m *Match) emitPhase(playerID string, from, to rules.Phase) {
	evt := rules.NewEvent(rules.EventPhaseChanged, m.id, playerID)
	evt.Metadata["from"] = from.String()
	evt.Metadata["to"] = to.String()
	m.emit(evt)
}

// commit publishes pending events and records a snapshot.
func (m *Match) commit() {
	m.sequence++
	events := m.pending
	m.pending = nil
	m.events.PublishBatch(events)
	if m.recorder != nil {
		m.recorder.RecordState(m.id, m.snapshotLocked())
	}
}

func (m *Match) seatOf(playerID string) int {
	if playerID == "" {
		return noWinner
	}
	for i, p := range m.players {
		if p.ID == playerID {
			return i
		}
	}
	return noWinner
}

// HasPlayer reports whether playerID holds a seat.
func (m *Match) HasPlayer(playerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seatOf(playerID) >= 0
}

// PlayerIDs returns the seated player ids in seat order.
func (m *Match) PlayerIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, len(m.players))
	for i, p := range m.players {
		ids[i] = p.ID
	}
	return ids
}

// Opponent returns the other seated player's id.
func (m *Match) Opponent(playerID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seat := m.seatOf(playerID)
	if seat < 0 || len(m.players) != MaxPlayers {
		return "", false
	}
	return m.players[1-seat].ID, true
}

// Username returns the display name of a seated player.
func (m *Match) Username(playerID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if seat := m.seatOf(playerID); seat >= 0 {
		return m.players[seat].Username
	}
	return ""
}

// Status returns the lifecycle state.
func (m *Match) Status() MatchStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

func (m *Match) statusLocked() MatchStatus {
	switch {
	case m.ended:
		return MatchStatusFinished
	case m.started:
		return MatchStatusInProgress
	default:
		return MatchStatusWaiting
	}
}

// Started reports whether the match has been dealt.
func (m *Match) Started() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// Ended reports whether the match is over.
func (m *Match) Ended() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ended
}

// WinnerID returns the winner's id, or "" for no winner.
func (m *Match) WinnerID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.winner < 0 {
		return ""
	}
	return m.players[m.winner].ID
}

// EndReason returns why the match ended.
func (m *Match) EndReason() EndReason {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.endReason
}

// ActivePlayerID returns the player whose turn it is.
func (m *Match) ActivePlayerID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return ""
	}
	return m.players[m.turns.Active()].ID
}

// Phase returns the current phase.
func (m *Match) Phase() rules.Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.turns.Phase()
}

// Turn returns the turn counter.
func (m *Match) Turn() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.turns.Turn()
}

// Stats returns the running stats for a player.
func (m *Match) Stats(playerID string) watchers.PlayerStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats.Stats(playerID)
}

// PlayerSummary is one seat in a Summary.
type PlayerSummary struct {
	ID        string               `json:"id"`
	Username  string               `json:"username"`
	Territory int                  `json:"territory"`
	Stats     watchers.PlayerStats `json:"stats"`
}

// Summary describes a match for results storage and game-over messages.
type Summary struct {
	MatchID   string          `json:"matchId"`
	Status    string          `json:"status"`
	WinnerID  string          `json:"winnerId,omitempty"`
	Winner    string          `json:"winner,omitempty"`
	Reason    EndReason       `json:"reason,omitempty"`
	Turns     int             `json:"turns"`
	Actions   int             `json:"actions"`
	Players   []PlayerSummary `json:"players"`
	CreatedAt time.Time       `json:"createdAt"`
	StartedAt time.Time       `json:"startedAt"`
	EndedAt   time.Time       `json:"endedAt"`
}

// Summary returns the current summary.
func (m *Match) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Summary{
		MatchID:   m.id,
		Status:    m.statusLocked().String(),
		Reason:    m.endReason,
		Turns:     m.turns.Turn(),
		Actions:   m.sequence,
		Players:   make([]PlayerSummary, len(m.players)),
		CreatedAt: m.createdAt,
		StartedAt: m.startedAt,
		EndedAt:   m.endedAt,
	}
	if m.winner >= 0 {
		s.WinnerID = m.players[m.winner].ID
		s.Winner = m.players[m.winner].Username
	}
	for i, p := range m.players {
		s.Players[i] = PlayerSummary{
			ID:        p.ID,
			Username:  p.Username,
			Territory: len(p.Territory),
			Stats:     m.stats.Stats(p.ID),
		}
	}
	return s
}

