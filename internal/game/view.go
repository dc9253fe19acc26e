package game

import (
	"fmt"

	"github.com/mushi-tcg/mushi-server-go/internal/catalog"
	"github.com/mushi-tcg/mushi-server-go/internal/game/rules"
)

// PlayerView is a player as sent to clients.
type PlayerView struct {
	ID          string         `json:"id"`
	Username    string         `json:"username"`
	IsReady     bool           `json:"isReady"`
	Deck        []catalog.Card `json:"deck"`
	Hand        []catalog.Card `json:"hand"`
	Field       []FieldCard    `json:"field"`
	FoodArea    []catalog.Card `json:"foodArea"`
	Territory   []catalog.Card `json:"territory"`
	Graveyard   []catalog.Card `json:"graveyard"`
	CurrentFood int            `json:"currentFood"`
	DeckCount   int            `json:"deckCount"`
	HandCount   int            `json:"handCount"`
}

// View is the serializable projection of a match.
type View struct {
	ID                 string       `json:"id"`
	Players            []PlayerView `json:"players"`
	CurrentPlayerIndex int          `json:"currentPlayerIndex"`
	Phase              rules.Phase  `json:"phase"`
	Turn               int          `json:"turn"`
	Winner             *PlayerView  `json:"winner,omitempty"`
	EndReason          EndReason    `json:"endReason,omitempty"`
	LastAction         *Action      `json:"lastAction,omitempty"`
	Started            bool         `json:"started"`
	Ended              bool         `json:"ended"`
}

// ViewOptions tunes a per-player projection.
type ViewOptions struct {
	// RedactHidden strips the opponent's hand and both decks, keeping counts.
	RedactHidden bool
}

// View returns the full projection in seat order.
func (m *Match) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := m.baseView()
	for _, p := range m.players {
		v.Players = append(v.Players, playerView(p))
	}
	v.CurrentPlayerIndex = m.turns.Active()
	return v
}

// ViewFor returns the projection for one player: that player is always index
// 0 and currentPlayerIndex is remapped to match. It panics when playerID has
// no seat.
func (m *Match) ViewFor(playerID string, opts ViewOptions) View {
	m.mu.Lock()
	defer m.mu.Unlock()

	seat := m.seatOf(playerID)
	if seat < 0 {
		panic(fmt.Sprintf("game: ViewFor unknown player %q in match %s", playerID, m.id))
	}

	v := m.baseView()
	self := playerView(m.players[seat])
	if opts.RedactHidden {
		self.Deck = []catalog.Card{}
	}
	v.Players = append(v.Players, self)

	if len(m.players) == MaxPlayers {
		opp := playerView(m.players[1-seat])
		if opts.RedactHidden {
			opp.Deck = []catalog.Card{}
			opp.Hand = []catalog.Card{}
		}
		v.Players = append(v.Players, opp)
	}

	v.CurrentPlayerIndex = 0
	if m.turns.Active() != seat {
		v.CurrentPlayerIndex = 1
	}
	return v
}

func (m *Match) baseView() View {
	v := View{
		ID:        m.id,
		Players:   make([]PlayerView, 0, MaxPlayers),
		Phase:     m.turns.Phase(),
		Turn:      m.turns.Turn(),
		EndReason: m.endReason,
		Started:   m.started,
		Ended:     m.ended,
	}
	if m.winner >= 0 {
		w := playerView(m.players[m.winner])
		v.Winner = &w
	}
	if m.lastAction != nil {
		v.LastAction = m.lastAction.clone()
	}
	return v
}

func playerView(p *PlayerState) PlayerView {
	c := p.clone()
	return PlayerView{
		ID:          c.ID,
		Username:    c.Username,
		IsReady:     c.IsReady,
		Deck:        c.Deck,
		Hand:        c.Hand,
		Field:       c.Field,
		FoodArea:    c.FoodArea,
		Territory:   c.Territory,
		Graveyard:   c.Graveyard,
		CurrentFood: c.CurrentFood,
		DeckCount:   len(c.Deck),
		HandCount:   len(c.Hand),
	}
}
