package catalog

import (
	"fmt"
	"math/rand/v2"
)

const (
	// DeckSize is the exact number of cards in a legal deck.
	DeckSize = 20
	// MaxCopies is how many cards sharing a name a deck may hold.
	MaxCopies = 2
)

// DeckValidation is the outcome of ValidateDeck.
type DeckValidation struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"message,omitempty"`
}

// InvalidDeckError is returned when a deck fails validation at match creation.
type InvalidDeckError struct {
	Reason string
}

func (e *InvalidDeckError) Error() string {
	return "invalid deck: " + e.Reason
}

// ValidateDeck checks size, then copies per name, then that every id is known.
// The first failing rule is reported.
func (c *Catalog) ValidateDeck(cards []Card) DeckValidation {
	if len(cards) != DeckSize {
		return DeckValidation{Reason: fmt.Sprintf("deck must contain exactly %d cards (got %d)", DeckSize, len(cards))}
	}

	counts := make(map[string]int, len(cards))
	for _, card := range cards {
		if card.Name == "" {
			continue
		}
		counts[card.Name]++
		if counts[card.Name] > MaxCopies {
			return DeckValidation{Reason: fmt.Sprintf("card %q may appear at most %d times", card.Name, MaxCopies)}
		}
	}

	for _, card := range cards {
		if !c.Has(card.ID) {
			return DeckValidation{Reason: fmt.Sprintf("unknown card id %q", card.ID)}
		}
	}

	return DeckValidation{Valid: true}
}

// ResolveDeck maps card ids to catalog cards and validates the result.
// Unknown ids survive the mapping as bare cards so that validation reports them
// in rule order.
func (c *Catalog) ResolveDeck(ids []string) ([]Card, error) {
	cards := make([]Card, 0, len(ids))
	for _, id := range ids {
		card, ok := c.Get(id)
		if !ok {
			card = Card{ID: id}
		}
		cards = append(cards, card)
	}
	if v := c.ValidateDeck(cards); !v.Valid {
		return nil, &InvalidDeckError{Reason: v.Reason}
	}
	return cards, nil
}

// GenerateRandomDeck samples up to DeckSize cards honoring MaxCopies per name.
// Every catalog entry is offered at most MaxCopies times, so the loop always
// terminates; a small catalog yields a short deck.
func (c *Catalog) GenerateRandomDeck(rng *rand.Rand) []Card {
	pool := make([]int, 0, len(c.cards)*MaxCopies)
	for i := range c.cards {
		for n := 0; n < MaxCopies; n++ {
			pool = append(pool, i)
		}
	}
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	deck := make([]Card, 0, DeckSize)
	counts := make(map[string]int)
	for _, idx := range pool {
		if len(deck) == DeckSize {
			break
		}
		card := c.cards[idx]
		if counts[card.Name] >= MaxCopies {
			continue
		}
		counts[card.Name]++
		deck = append(deck, card)
	}
	return deck
}

// GenerateLegalDeck retries GenerateRandomDeck until it yields a valid deck.
func (c *Catalog) GenerateLegalDeck(rng *rand.Rand, attempts int) ([]Card, error) {
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		deck := c.GenerateRandomDeck(rng)
		if c.ValidateDeck(deck).Valid {
			return deck, nil
		}
	}
	return nil, &InvalidDeckError{Reason: fmt.Sprintf("could not build a %d-card deck from %d catalog cards", DeckSize, len(c.cards))}
}

// DeckIDs returns the ids of cards in order.
func DeckIDs(cards []Card) []string {
	ids := make([]string, len(cards))
	for i, card := range cards {
		ids[i] = card.ID
	}
	return ids
}
