package rules

import (
	"math"

	"github.com/mushi-tcg/mushi-server-go/internal/catalog"
)

// AdvantageMultiplier is applied when the attacker's element beats the defender's.
const AdvantageMultiplier = 2.0

// advantages maps each element to the element it beats.
var advantages = map[catalog.Element]catalog.Element{
	catalog.ElementBlue:  catalog.ElementRed,
	catalog.ElementRed:   catalog.ElementGreen,
	catalog.ElementGreen: catalog.ElementBlue,
}

// Beats reports whether attacker has elemental advantage over defender.
func Beats(attacker, defender catalog.Element) bool {
	beaten, ok := advantages[attacker]
	return ok && beaten == defender
}

// Multiplier returns the damage multiplier for a creature-vs-creature attack.
func Multiplier(attacker, defender catalog.Element) float64 {
	if Beats(attacker, defender) {
		return AdvantageMultiplier
	}
	return 1
}

// CombatDamage is floor(base * multiplier) for an attack on a field creature.
func CombatDamage(base int, attacker, defender catalog.Element) int {
	return int(math.Floor(float64(base) * Multiplier(attacker, defender)))
}
