package rules

import (
	"testing"

	"github.com/mushi-tcg/mushi-server-go/internal/catalog"
	"github.com/stretchr/testify/assert"
)

func TestElementMultiplierTable(t *testing.T) {
	elements := []catalog.Element{catalog.ElementRed, catalog.ElementBlue, catalog.ElementGreen}
	doubled := map[[2]catalog.Element]bool{
		{catalog.ElementBlue, catalog.ElementRed}:   true,
		{catalog.ElementRed, catalog.ElementGreen}:  true,
		{catalog.ElementGreen, catalog.ElementBlue}: true,
	}

	for _, attacker := range elements {
		for _, defender := range elements {
			want := 1.0
			if doubled[[2]catalog.Element{attacker, defender}] {
				want = 2.0
			}
			assert.Equal(t, want, Multiplier(attacker, defender), "%s vs %s", attacker, defender)
		}
	}
}

func TestCombatDamage(t *testing.T) {
	assert.Equal(t, 4, CombatDamage(2, catalog.ElementBlue, catalog.ElementRed))
	assert.Equal(t, 2, CombatDamage(2, catalog.ElementRed, catalog.ElementBlue))
	assert.Equal(t, 3, CombatDamage(3, catalog.ElementGreen, catalog.ElementGreen))
	assert.Equal(t, 0, CombatDamage(0, catalog.ElementGreen, catalog.ElementBlue))
}

func TestUnknownElementHasNoAdvantage(t *testing.T) {
	assert.False(t, Beats("", catalog.ElementRed))
	assert.Equal(t, 1.0, Multiplier(catalog.ElementRed, ""))
}
