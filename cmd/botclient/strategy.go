package main

import (
	"fmt"

	"github.com/mushi-tcg/mushi-server-go/internal/catalog"
	"github.com/mushi-tcg/mushi-server-go/internal/game"
	"github.com/mushi-tcg/mushi-server-go/internal/game/rules"
	"github.com/mushi-tcg/mushi-server-go/internal/lobby"
)

// strategy picks moves for the bot. Moves the server rejected are remembered
// for the rest of the turn so the bot never loops on them.
type strategy struct {
	turn     int
	rejected map[string]bool
}

func newStrategy() *strategy {
	return &strategy{rejected: make(map[string]bool)}
}

func actionKey(a lobby.ActionRequest) string {
	idx := -1
	if a.TechniqueIndex != nil {
		idx = *a.TechniqueIndex
	}
	return fmt.Sprintf("%s/%s/%s/%d", a.Type, a.CardID, a.TargetID, idx)
}

func (s *strategy) reject(a lobby.ActionRequest) {
	s.rejected[actionKey(a)] = true
}

// next returns the move for view, or false when it is not the bot's turn.
// The bot is always player 0 in its own view.
func (s *strategy) next(view game.View) (lobby.ActionRequest, bool) {
	if !view.Started || view.Ended || view.CurrentPlayerIndex != 0 || len(view.Players) < 2 {
		return lobby.ActionRequest{}, false
	}
	if view.Turn != s.turn {
		s.turn = view.Turn
		clear(s.rejected)
	}

	for _, a := range s.candidates(view.Phase, view.Players[0], view.Players[1]) {
		if !s.rejected[actionKey(a)] {
			return a, true
		}
	}
	return lobby.ActionRequest{Type: string(game.ActionEndTurn)}, true
}

func (s *strategy) candidates(phase rules.Phase, me, opponent game.PlayerView) []lobby.ActionRequest {
	var out []lobby.ActionRequest

	switch phase {
	case rules.PhaseSet:
		// Feed the cheapest non-creature first; creatures are worth more on the field.
		if card, ok := foodCandidate(me.Hand); ok {
			out = append(out, lobby.ActionRequest{Type: string(game.ActionSetFood), CardID: card.ID})
		}
		out = append(out, lobby.ActionRequest{Type: string(game.ActionSkipSetPhase)})

	case rules.PhaseMain:
		for _, card := range me.Hand {
			if card.IsCreature() && card.Cost <= me.CurrentFood {
				out = append(out, lobby.ActionRequest{Type: string(game.ActionPlayCard), CardID: card.ID})
			}
		}
		for _, fc := range me.Field {
			if fc.HasAttacked {
				continue
			}
			tech, ok := strongestTechnique(fc.Card)
			if !ok {
				continue
			}
			attack := lobby.ActionRequest{Type: string(game.ActionAttack), CardID: fc.Card.ID, TechniqueIndex: catalog.IntPtr(tech)}
			if len(opponent.Field) > 0 {
				attack.TargetID = weakestTarget(opponent.Field).ID
			}
			out = append(out, attack)
		}
	}
	return out
}

func foodCandidate(hand []catalog.Card) (catalog.Card, bool) {
	var best catalog.Card
	found := false
	for _, card := range hand {
		if !found || (best.IsCreature() && !card.IsCreature()) ||
			(best.IsCreature() == card.IsCreature() && card.Cost < best.Cost) {
			best, found = card, true
		}
	}
	return best, found
}

func strongestTechnique(card catalog.Card) (int, bool) {
	best, power := -1, 0
	for i, tech := range card.Techniques {
		if tech.Power() > power {
			best, power = i, tech.Power()
		}
	}
	return best, best >= 0
}

func weakestTarget(field []game.FieldCard) catalog.Card {
	target := field[0]
	for _, fc := range field[1:] {
		if fc.Card.HP()-fc.Damage < target.Card.HP()-target.Damage {
			target = fc
		}
	}
	return target.Card
}
