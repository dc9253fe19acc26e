package main

import (
	"testing"

	"github.com/mushi-tcg/mushi-server-go/internal/catalog"
	"github.com/mushi-tcg/mushi-server-go/internal/game"
	"github.com/mushi-tcg/mushi-server-go/internal/game/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func creature(id string, cost, hp int, attacks ...int) catalog.Card {
	c := catalog.Card{ID: id, Name: id, Category: catalog.CategoryCreature, Cost: cost, Hitpoints: catalog.IntPtr(hp)}
	for _, a := range attacks {
		c.Techniques = append(c.Techniques, catalog.Technique{Name: id + "-move", Attack: catalog.IntPtr(a)})
	}
	return c
}

func technique(id string, cost int) catalog.Card {
	return catalog.Card{ID: id, Name: id, Category: catalog.CategoryTechnique, Cost: cost}
}

func viewAt(phase rules.Phase, me, opponent game.PlayerView) game.View {
	return game.View{
		Started: true,
		Turn:    1,
		Phase:   phase,
		Players: []game.PlayerView{me, opponent},
	}
}

func TestStrategyWaitsForTurn(t *testing.T) {
	s := newStrategy()
	v := viewAt(rules.PhaseMain, game.PlayerView{}, game.PlayerView{})
	v.CurrentPlayerIndex = 1
	_, ok := s.next(v)
	assert.False(t, ok)

	v.CurrentPlayerIndex = 0
	v.Ended = true
	_, ok = s.next(v)
	assert.False(t, ok)
}

func TestStrategySetPhaseFeedsNonCreature(t *testing.T) {
	s := newStrategy()
	me := game.PlayerView{Hand: []catalog.Card{creature("beetle", 1, 3, 2), technique("lift", 2), technique("dash", 1)}}

	a, ok := s.next(viewAt(rules.PhaseSet, me, game.PlayerView{}))
	require.True(t, ok)
	assert.Equal(t, string(game.ActionSetFood), a.Type)
	assert.Equal(t, "dash", a.CardID)

	s.reject(a)
	a, _ = s.next(viewAt(rules.PhaseSet, me, game.PlayerView{}))
	assert.Equal(t, string(game.ActionSkipSetPhase), a.Type)
}

func TestStrategyMainPhase(t *testing.T) {
	s := newStrategy()
	attacker := creature("mantis", 2, 4, 1, 3)
	me := game.PlayerView{
		CurrentFood: 1,
		Hand:        []catalog.Card{creature("cheap", 1, 2, 1), creature("pricey", 3, 5, 4)},
		Field:       []game.FieldCard{{Card: attacker}},
	}
	opponent := game.PlayerView{Field: []game.FieldCard{
		{Card: creature("tank", 1, 6, 1)},
		{Card: creature("weak", 1, 3, 1), Damage: 2},
	}}
	v := viewAt(rules.PhaseMain, me, opponent)

	a, ok := s.next(v)
	require.True(t, ok)
	assert.Equal(t, string(game.ActionPlayCard), a.Type)
	assert.Equal(t, "cheap", a.CardID)
	s.reject(a)

	a, _ = s.next(v)
	assert.Equal(t, string(game.ActionAttack), a.Type)
	assert.Equal(t, "mantis", a.CardID)
	assert.Equal(t, "weak", a.TargetID)
	require.NotNil(t, a.TechniqueIndex)
	assert.Equal(t, 1, *a.TechniqueIndex)
	s.reject(a)

	a, _ = s.next(v)
	assert.Equal(t, string(game.ActionEndTurn), a.Type)

	// A new turn forgets rejections.
	v.Turn = 2
	a, _ = s.next(v)
	assert.Equal(t, string(game.ActionPlayCard), a.Type)
}

func TestStrategyDirectAttack(t *testing.T) {
	s := newStrategy()
	me := game.PlayerView{Field: []game.FieldCard{{Card: creature("mantis", 2, 4, 2)}, {Card: creature("spent", 1, 1, 5), HasAttacked: true}}}

	a, ok := s.next(viewAt(rules.PhaseMain, me, game.PlayerView{}))
	require.True(t, ok)
	assert.Equal(t, string(game.ActionAttack), a.Type)
	assert.Equal(t, "mantis", a.CardID)
	assert.Empty(t, a.TargetID)
}
