package catalog

import (
	"fmt"
	"strings"
)

// Category classifies a card. Creatures travel as "bug" on the wire.
type Category string

const (
	CategoryCreature    Category = "bug"
	CategoryEnhancement Category = "enhancement"
	CategoryTechnique   Category = "technique"
)

// ParseCategory accepts the wire value or the English name.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bug", "creature":
		return CategoryCreature, nil
	case "enhancement":
		return CategoryEnhancement, nil
	case "technique":
		return CategoryTechnique, nil
	default:
		return "", fmt.Errorf("unknown card category %q", s)
	}
}

// Element is the card attribute used for combat advantage.
type Element string

const (
	ElementRed   Element = "red"
	ElementBlue  Element = "blue"
	ElementGreen Element = "green"
)

// ParseElement normalizes an element name.
func ParseElement(s string) (Element, error) {
	switch Element(strings.ToLower(strings.TrimSpace(s))) {
	case ElementRed:
		return ElementRed, nil
	case ElementBlue:
		return ElementBlue, nil
	case ElementGreen:
		return ElementGreen, nil
	default:
		return "", fmt.Errorf("unknown element %q", s)
	}
}

// Technique is a named action on a creature. Effect text is informational only.
type Technique struct {
	Name   string `json:"name"`
	Attack *int   `json:"attack,omitempty"`
	Effect string `json:"effect,omitempty"`
}

// Power returns the attack value, 0 when the technique defines none.
func (t Technique) Power() int {
	if t.Attack == nil {
		return 0
	}
	return *t.Attack
}

// Card is an immutable card definition.
type Card struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Category   Category    `json:"type"`
	Element    Element     `json:"attribute"`
	Cost       int         `json:"cost"`
	Hitpoints  *int        `json:"hitpoints,omitempty"`
	Techniques []Technique `json:"techniques"`
	FlavorText string      `json:"flavor_text,omitempty"`
	Rarity     string      `json:"rarity"`
	Set        string      `json:"set"`
	Image      string      `json:"image"`
}

// HP returns the card hitpoints. Cards without hitpoints count as 0,
// so any positive damage destroys them.
func (c Card) HP() int {
	if c.Hitpoints == nil {
		return 0
	}
	return *c.Hitpoints
}

// IsCreature reports whether the card can be put on the field.
func (c Card) IsCreature() bool { return c.Category == CategoryCreature }

// IsTechnique reports whether the card is a one-shot technique card.
func (c Card) IsTechnique() bool { return c.Category == CategoryTechnique }

// IsEnhancement reports whether the card is an enhancement.
func (c Card) IsEnhancement() bool { return c.Category == CategoryEnhancement }

// Technique returns the technique at index, if present.
func (c Card) Technique(index int) (Technique, bool) {
	if index < 0 || index >= len(c.Techniques) {
		return Technique{}, false
	}
	return c.Techniques[index], true
}

func (c Card) validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("card without id")
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("card %s: empty name", c.ID)
	}
	if _, err := ParseCategory(string(c.Category)); err != nil {
		return fmt.Errorf("card %s: %w", c.ID, err)
	}
	if _, err := ParseElement(string(c.Element)); err != nil {
		return fmt.Errorf("card %s: %w", c.ID, err)
	}
	if c.Cost < 0 {
		return fmt.Errorf("card %s: negative cost %d", c.ID, c.Cost)
	}
	if c.Hitpoints != nil && !c.IsCreature() {
		return fmt.Errorf("card %s: hitpoints on non-creature", c.ID)
	}
	return nil
}

// IntPtr is a helper for building cards with optional numeric fields.
func IntPtr(v int) *int {
	return &v
}
