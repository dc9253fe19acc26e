package catalog

import (
	"fmt"
	"strings"
)

// Catalog is the immutable set of card definitions loaded at startup.
// It is safe for concurrent readers.
type Catalog struct {
	cards []Card
	byID  map[string]int
}

// New builds a catalog, rejecting malformed cards and duplicate ids.
func New(cards []Card) (*Catalog, error) {
	c := &Catalog{
		cards: make([]Card, 0, len(cards)),
		byID:  make(map[string]int, len(cards)),
	}
	for _, card := range cards {
		if err := card.validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byID[card.ID]; dup {
			return nil, fmt.Errorf("duplicate card id %s", card.ID)
		}
		c.byID[card.ID] = len(c.cards)
		c.cards = append(c.cards, card)
	}
	return c, nil
}

// Get looks a card up by id.
func (c *Catalog) Get(id string) (Card, bool) {
	idx, ok := c.byID[id]
	if !ok {
		return Card{}, false
	}
	return c.cards[idx], true
}

// Has reports whether id is a known card.
func (c *Catalog) Has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// All returns every card in insertion order.
func (c *Catalog) All() []Card {
	return append([]Card(nil), c.cards...)
}

// Len returns the number of cards.
func (c *Catalog) Len() int {
	return len(c.cards)
}

// Filter selects cards. Zero-valued fields match everything.
type Filter struct {
	Name     string
	Category Category
	Element  Element
	MinCost  *int
	MaxCost  *int
	Rarity   string
	Set      string
}

func (f Filter) matches(card Card) bool {
	if f.Name != "" && !strings.Contains(strings.ToLower(card.Name), strings.ToLower(f.Name)) {
		return false
	}
	if f.Category != "" && card.Category != f.Category {
		return false
	}
	if f.Element != "" && card.Element != f.Element {
		return false
	}
	if f.MinCost != nil && card.Cost < *f.MinCost {
		return false
	}
	if f.MaxCost != nil && card.Cost > *f.MaxCost {
		return false
	}
	if f.Rarity != "" && !strings.EqualFold(card.Rarity, f.Rarity) {
		return false
	}
	if f.Set != "" && !strings.EqualFold(card.Set, f.Set) {
		return false
	}
	return true
}

// Search returns the cards matching every set field of f, in catalog order.
func (c *Catalog) Search(f Filter) []Card {
	result := make([]Card, 0)
	for _, card := range c.cards {
		if f.matches(card) {
			result = append(result, card)
		}
	}
	return result
}

// SearchByName is shorthand for a name-only search.
func (c *Catalog) SearchByName(name string) []Card {
	return c.Search(Filter{Name: name})
}

// ByCostRange is shorthand for a cost range search (inclusive).
func (c *Catalog) ByCostRange(min, max int) []Card {
	return c.Search(Filter{MinCost: &min, MaxCost: &max})
}
