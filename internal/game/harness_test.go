package game

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/mushi-tcg/mushi-server-go/internal/catalog"
	"github.com/mushi-tcg/mushi-server-go/internal/game/rules"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func bug(id string, el catalog.Element, cost, hp, attack int) catalog.Card {
	return catalog.Card{
		ID:         id,
		Name:       "Bug " + id,
		Category:   catalog.CategoryCreature,
		Element:    el,
		Cost:       cost,
		Hitpoints:  catalog.IntPtr(hp),
		Techniques: []catalog.Technique{{Name: "Bite", Attack: catalog.IntPtr(attack)}},
	}
}

func filler(id string) catalog.Card {
	return catalog.Card{ID: id, Name: "Filler " + id, Category: catalog.CategoryTechnique, Element: catalog.ElementGreen}
}

func fillerCards(prefix string, n int) []catalog.Card {
	cards := make([]catalog.Card, n)
	for i := range cards {
		cards[i] = filler(fmt.Sprintf("%s-%02d", prefix, i))
	}
	return cards
}

func testDeck(prefix string) []catalog.Card {
	return fillerCards(prefix, catalog.DeckSize)
}

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

// newStartedMatch seats p1 and p2 with 20-card decks and starts the match.
func newStartedMatch(t *testing.T, seed uint64) *Match {
	t.Helper()
	m := NewMatch("1234", WithRand(seeded(seed)), WithLogger(zaptest.NewLogger(t)))
	require.True(t, m.AddPlayer("p1", "alice", testDeck("a")))
	require.True(t, m.AddPlayer("p2", "bob", testDeck("b")))
	require.True(t, m.Start())
	return m
}

// board describes a hand-crafted position for one seat.
type board struct {
	deck      []catalog.Card
	hand      []catalog.Card
	field     []FieldCard
	food      []catalog.Card
	territory []catalog.Card
	current   int
}

// arrange builds a started match with explicit zones, active seat, turn and
// phase. Seat 0 is p1, seat 1 is p2.
func arrange(t *testing.T, active, turn int, phase rules.Phase, seats ...board) *Match {
	t.Helper()
	require.Len(t, seats, MaxPlayers)

	m := NewMatch("4321", WithRand(seeded(7)), WithLogger(zaptest.NewLogger(t)))
	require.True(t, m.AddPlayer("p1", "alice", nil))
	require.True(t, m.AddPlayer("p2", "bob", nil))

	for i, b := range seats {
		p := m.players[i]
		p.Deck = append([]catalog.Card{}, b.deck...)
		p.Hand = append([]catalog.Card{}, b.hand...)
		p.Field = append([]FieldCard{}, b.field...)
		p.FoodArea = append([]catalog.Card{}, b.food...)
		p.Territory = append([]catalog.Card{}, b.territory...)
		p.CurrentFood = b.current
	}
	m.turns = rules.RestoreTurnManager(active, turn, phase)
	m.started = true
	return m
}

func onField(card catalog.Card) FieldCard {
	return FieldCard{Card: card, Enhancements: []catalog.Card{}}
}

func totalCards(m *Match) int {
	n := 0
	for _, p := range m.players {
		n += p.CardCount()
	}
	return n
}

func act(playerID string, kind ActionType) Action {
	return Action{PlayerID: playerID, Type: kind}
}

func attack(playerID, cardID, targetID string) Action {
	return Action{PlayerID: playerID, Type: ActionAttack, CardID: cardID, TargetID: targetID}
}
