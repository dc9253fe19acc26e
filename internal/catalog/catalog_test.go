package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func creature(id, name string, el Element, cost, hp int, attack int) Card {
	return Card{
		ID:         id,
		Name:       name,
		Category:   CategoryCreature,
		Element:    el,
		Cost:       cost,
		Hitpoints:  IntPtr(hp),
		Techniques: []Technique{{Name: "Strike", Attack: IntPtr(attack)}},
		Rarity:     "common",
		Set:        "test",
	}
}

func TestEmbeddedCatalogLoads(t *testing.T) {
	cat, err := Embedded()
	require.NoError(t, err)
	assert.Greater(t, cat.Len(), 10)

	card, ok := cat.Get("bug-001")
	require.True(t, ok)
	assert.Equal(t, "Rhinoceros Beetle", card.Name)
	assert.True(t, card.IsCreature())
	assert.Equal(t, 5, card.HP())
}

func TestNewRejectsDuplicateIDs(t *testing.T) {
	_, err := New([]Card{
		creature("a", "Ant", ElementRed, 1, 1, 1),
		creature("a", "Other Ant", ElementRed, 1, 1, 1),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestNewRejectsMalformedCards(t *testing.T) {
	_, err := New([]Card{{ID: "x", Name: "X", Category: "dragon", Element: ElementRed}})
	require.Error(t, err)

	_, err = New([]Card{{ID: "y", Name: "Y", Category: CategoryTechnique, Element: ElementRed, Hitpoints: IntPtr(2)}})
	require.Error(t, err)
}

func TestSearchFilters(t *testing.T) {
	cat, err := New([]Card{
		creature("r1", "Fire Ant", ElementRed, 1, 2, 1),
		creature("b1", "Water Strider", ElementBlue, 2, 1, 1),
		creature("g1", "Green Ant", ElementGreen, 3, 3, 2),
		{ID: "t1", Name: "Heat Wave", Category: CategoryTechnique, Element: ElementRed, Cost: 2, Rarity: "rare", Set: "promo"},
	})
	require.NoError(t, err)

	ants := cat.SearchByName("ANT")
	require.Len(t, ants, 2)
	assert.Equal(t, "r1", ants[0].ID)
	assert.Equal(t, "g1", ants[1].ID)

	assert.Len(t, cat.Search(Filter{Category: CategoryTechnique}), 1)
	assert.Len(t, cat.Search(Filter{Element: ElementRed}), 2)
	assert.Len(t, cat.ByCostRange(2, 3), 3)
	assert.Len(t, cat.Search(Filter{Rarity: "RARE"}), 1)
	assert.Len(t, cat.Search(Filter{Set: "test"}), 3)
	assert.Len(t, cat.Search(Filter{Element: ElementRed, Category: CategoryCreature}), 1)
	assert.Empty(t, cat.Search(Filter{Name: "dragon"}))
}

func TestAllReturnsCopy(t *testing.T) {
	cat, err := New([]Card{creature("r1", "Fire Ant", ElementRed, 1, 2, 1)})
	require.NoError(t, err)

	all := cat.All()
	all[0].Name = "mutated"
	card, _ := cat.Get("r1")
	assert.Equal(t, "Fire Ant", card.Name)
}

func TestLoadAcceptsBareArray(t *testing.T) {
	cat, err := Load(strings.NewReader(`[{"id":"a","name":"Ant","type":"bug","attribute":"red","cost":1,"hitpoints":1,"techniques":[{"name":"Bite","attack":1}]}]`))
	require.NoError(t, err)
	card, ok := cat.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, card.Techniques[0].Power())
}

func TestLoadRejectsEmpty(t *testing.T) {
	_, err := Load(strings.NewReader("  "))
	require.Error(t, err)
}

func TestParseHelpers(t *testing.T) {
	c, err := ParseCategory("Creature")
	require.NoError(t, err)
	assert.Equal(t, CategoryCreature, c)

	e, err := ParseElement(" Blue ")
	require.NoError(t, err)
	assert.Equal(t, ElementBlue, e)

	_, err = ParseElement("purple")
	assert.Error(t, err)
}

func TestTechniqueWithoutAttackHasZeroPower(t *testing.T) {
	card := Card{Techniques: []Technique{{Name: "Hide"}}}
	tech, ok := card.Technique(0)
	require.True(t, ok)
	assert.Equal(t, 0, tech.Power())

	_, ok = card.Technique(1)
	assert.False(t, ok)
	_, ok = card.Technique(-1)
	assert.False(t, ok)
}
