package game

import (
	"math/rand/v2"

	"github.com/mushi-tcg/mushi-server-go/internal/catalog"
)

const (
	// TerritorySize is how many cards are dealt face-down to territory.
	TerritorySize = 6
	// OpeningHandSize is how many cards are drawn at match start.
	OpeningHandSize = 4
)

// FieldCard is a creature in play.
type FieldCard struct {
	Card         catalog.Card   `json:"card"`
	Enhancements []catalog.Card `json:"enhancements"`
	Damage       int            `json:"damage"`
	HasAttacked  bool           `json:"hasAttacked"`
}

// Destroyed reports whether accumulated damage reached the card's hitpoints.
func (fc FieldCard) Destroyed() bool {
	return fc.Damage >= fc.Card.HP()
}

// PlayerState holds one player's zones. It is mutated only by its Match
// while the match lock is held.
type PlayerState struct {
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
}

// NewPlayerState seats a player with the given deck. The deck is copied.
func NewPlayerState(id, username string, deck []catalog.Card) *PlayerState {
	return &PlayerState{
		ID:        id,
		Username:  username,
		Deck:      append([]catalog.Card(nil), deck...),
		Hand:      []catalog.Card{},
		Field:     []FieldCard{},
		FoodArea:  []catalog.Card{},
		Territory: []catalog.Card{},
		Graveyard: []catalog.Card{},
	}
}

// Initialize shuffles the deck, deals territory and draws the opening hand.
func (p *PlayerState) Initialize(rng *rand.Rand) {
	rng.Shuffle(len(p.Deck), func(i, j int) { p.Deck[i], p.Deck[j] = p.Deck[j], p.Deck[i] })

	n := min(TerritorySize, len(p.Deck))
	p.Territory = append(p.Territory, p.Deck[:n]...)
	p.Deck = p.Deck[n:]

	for i := 0; i < OpeningHandSize; i++ {
		if _, ok := p.DrawCard(); !ok {
			break
		}
	}
}

// DrawCard moves the top of the deck to hand. It reports false on an empty deck.
func (p *PlayerState) DrawCard() (catalog.Card, bool) {
	if len(p.Deck) == 0 {
		return catalog.Card{}, false
	}
	card := p.Deck[0]
	p.Deck = p.Deck[1:]
	p.Hand = append(p.Hand, card)
	return card, true
}

// CanPlay reports whether the hand card at index is affordable.
func (p *PlayerState) CanPlay(handIndex int) bool {
	if handIndex < 0 || handIndex >= len(p.Hand) {
		return false
	}
	return p.Hand[handIndex].Cost <= p.CurrentFood
}

// PlayCard spends food and moves a hand card to the field (creatures) or the
// graveyard (techniques and enhancements).
func (p *PlayerState) PlayCard(handIndex int) (catalog.Card, bool) {
	if !p.CanPlay(handIndex) {
		return catalog.Card{}, false
	}
	card := p.Hand[handIndex]
	p.CurrentFood -= card.Cost
	p.Hand = removeCard(p.Hand, handIndex)

	if card.IsCreature() {
		p.Field = append(p.Field, FieldCard{
			Card:         card,
			Enhancements: []catalog.Card{},
		})
	} else {
		p.Graveyard = append(p.Graveyard, card)
	}
	return card, true
}

// SetFood moves a hand card to the food area.
func (p *PlayerState) SetFood(handIndex int) (catalog.Card, bool) {
	if handIndex < 0 || handIndex >= len(p.Hand) {
		return catalog.Card{}, false
	}
	card := p.Hand[handIndex]
	p.Hand = removeCard(p.Hand, handIndex)
	p.FoodArea = append(p.FoodArea, card)
	return card, true
}

// UpdateFood refreshes the spendable food from the food area.
func (p *PlayerState) UpdateFood() {
	p.CurrentFood = len(p.FoodArea)
}

// AttackPower returns what Attack would return without mutating anything.
func (p *PlayerState) AttackPower(fieldIndex, techniqueIndex int) int {
	if fieldIndex < 0 || fieldIndex >= len(p.Field) {
		return 0
	}
	fc := p.Field[fieldIndex]
	if fc.HasAttacked {
		return 0
	}
	tech, ok := fc.Card.Technique(techniqueIndex)
	if !ok {
		return 0
	}
	return tech.Power()
}

// Attack marks the creature as having attacked and returns the technique's
// power. Zero means the attack was rejected or the technique has no attack.
func (p *PlayerState) Attack(fieldIndex, techniqueIndex int) int {
	if fieldIndex < 0 || fieldIndex >= len(p.Field) {
		return 0
	}
	fc := &p.Field[fieldIndex]
	if fc.HasAttacked {
		return 0
	}
	tech, ok := fc.Card.Technique(techniqueIndex)
	if !ok {
		return 0
	}
	fc.HasAttacked = true
	return tech.Power()
}

// ReceiveDamage adds damage to a creature and destroys it at its hitpoints.
func (p *PlayerState) ReceiveDamage(fieldIndex, amount int) bool {
	if fieldIndex < 0 || fieldIndex >= len(p.Field) {
		return false
	}
	fc := &p.Field[fieldIndex]
	fc.Damage += amount
	if !fc.Destroyed() {
		return false
	}

	p.Graveyard = append(p.Graveyard, fc.Card)
	p.Graveyard = append(p.Graveyard, fc.Enhancements...)
	p.Field = append(p.Field[:fieldIndex], p.Field[fieldIndex+1:]...)
	return true
}

// ResetDamageOnly clears damage on every creature.
func (p *PlayerState) ResetDamageOnly() {
	for i := range p.Field {
		p.Field[i].Damage = 0
	}
}

// ResetAttackFlags lets every creature attack again.
func (p *PlayerState) ResetAttackFlags() {
	for i := range p.Field {
		p.Field[i].HasAttacked = false
	}
}

// MoveCardFromTerritoryToHand pops the last territory card into hand.
func (p *PlayerState) MoveCardFromTerritoryToHand() (catalog.Card, bool) {
	card, ok := p.popTerritory()
	if !ok {
		return catalog.Card{}, false
	}
	p.Hand = append(p.Hand, card)
	return card, true
}

// DiscardTerritory pops the last territory card into the graveyard.
func (p *PlayerState) DiscardTerritory() (catalog.Card, bool) {
	card, ok := p.popTerritory()
	if !ok {
		return catalog.Card{}, false
	}
	p.Graveyard = append(p.Graveyard, card)
	return card, true
}

func (p *PlayerState) popTerritory() (catalog.Card, bool) {
	n := len(p.Territory)
	if n == 0 {
		return catalog.Card{}, false
	}
	card := p.Territory[n-1]
	p.Territory = p.Territory[:n-1]
	return card, true
}

// HandIndex finds the first hand card with id, or -1.
func (p *PlayerState) HandIndex(cardID string) int {
	for i, card := range p.Hand {
		if card.ID == cardID {
			return i
		}
	}
	return -1
}

// FieldIndex finds the first creature with id, or -1.
func (p *PlayerState) FieldIndex(cardID string) int {
	for i, fc := range p.Field {
		if fc.Card.ID == cardID {
			return i
		}
	}
	return -1
}

// CardCount is the number of cards the player holds across all zones.
func (p *PlayerState) CardCount() int {
	n := len(p.Deck) + len(p.Hand) + len(p.FoodArea) + len(p.Territory) + len(p.Graveyard)
	for _, fc := range p.Field {
		n += 1 + len(fc.Enhancements)
	}
	return n
}

func (p *PlayerState) clone() *PlayerState {
	c := *p
	c.Deck = append([]catalog.Card{}, p.Deck...)
	c.Hand = append([]catalog.Card{}, p.Hand...)
	c.FoodArea = append([]catalog.Card{}, p.FoodArea...)
	c.Territory = append([]catalog.Card{}, p.Territory...)
	c.Graveyard = append([]catalog.Card{}, p.Graveyard...)
	c.Field = make([]FieldCard, len(p.Field))
	for i, fc := range p.Field {
		fc.Enhancements = append([]catalog.Card{}, fc.Enhancements...)
		c.Field[i] = fc
	}
	return &c
}

func removeCard(cards []catalog.Card, index int) []catalog.Card {
	out := make([]catalog.Card, 0, len(cards)-1)
	out = append(out, cards[:index]...)
	return append(out, cards[index+1:]...)
}
