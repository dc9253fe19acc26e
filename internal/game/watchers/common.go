package watchers

import (
	"github.com/mushi-tcg/mushi-server-go/internal/game/rules"
)

// OwnerKey is the event metadata key naming the player who owned the
// affected card.
const OwnerKey = "owner_id"

// CardsPlayedWatcher tracks cards played from hand.
type CardsPlayedWatcher struct {
	*rules.BaseWatcher
	cardsPlayed map[string][]string // playerID -> card ids
}

// NewCardsPlayedWatcher creates a new cards played watcher.
func NewCardsPlayedWatcher() *CardsPlayedWatcher {
	return &CardsPlayedWatcher{
		BaseWatcher: rules.NewBaseWatcher(rules.WatcherScopeMatch, "CardsPlayedWatcher"),
		cardsPlayed: make(map[string][]string),
	}
}

// Watch implements the Watcher interface.
func (w *CardsPlayedWatcher) Watch(event rules.Event) {
	if event.Type != rules.EventCardPlayed || event.PlayerID == "" || event.SourceID == "" {
		return
	}
	w.cardsPlayed[event.PlayerID] = append(w.cardsPlayed[event.PlayerID], event.SourceID)
	w.SetCondition(true)
}

// Reset clears the watcher's state.
func (w *CardsPlayedWatcher) Reset() {
	w.BaseWatcher.Reset()
	w.cardsPlayed = make(map[string][]string)
}

// GetCardsPlayed returns the ids of cards played by a player, in order.
func (w *CardsPlayedWatcher) GetCardsPlayed(playerID string) []string {
	return w.cardsPlayed[playerID]
}

// GetCount returns the number of cards played by a player.
func (w *CardsPlayedWatcher) GetCount(playerID string) int {
	return len(w.cardsPlayed[playerID])
}

// CreaturesDestroyedWatcher tracks creatures destroyed in combat.
type CreaturesDestroyedWatcher struct {
	*rules.BaseWatcher
	destroyedBy map[string]int // attacker -> count
	lostBy      map[string]int // owner -> count
}

// NewCreaturesDestroyedWatcher creates a new creatures destroyed watcher.
func NewCreaturesDestroyedWatcher() *CreaturesDestroyedWatcher {
	return &CreaturesDestroyedWatcher{
		BaseWatcher: rules.NewBaseWatcher(rules.WatcherScopeMatch, "CreaturesDestroyedWatcher"),
		destroyedBy: make(map[string]int),
		lostBy:      make(map[string]int),
	}
}

// Watch implements the Watcher interface.
func (w *CreaturesDestroyedWatcher) Watch(event rules.Event) {
	if event.Type != rules.EventCreatureDestroyed {
		return
	}
	if event.PlayerID != "" {
		w.destroyedBy[event.PlayerID]++
	}
	if owner := event.Metadata[OwnerKey]; owner != "" {
		w.lostBy[owner]++
	}
	w.SetCondition(true)
}

// Reset clears the watcher's state.
func (w *CreaturesDestroyedWatcher) Reset() {
	w.BaseWatcher.Reset()
	w.destroyedBy = make(map[string]int)
	w.lostBy = make(map[string]int)
}

// GetDestroyedBy returns how many opposing creatures a player destroyed.
func (w *CreaturesDestroyedWatcher) GetDestroyedBy(playerID string) int {
	return w.destroyedBy[playerID]
}

// GetLostBy returns how many creatures a player lost.
func (w *CreaturesDestroyedWatcher) GetLostBy(playerID string) int {
	return w.lostBy[playerID]
}

// GetTotalAmount returns the total number of creatures destroyed.
func (w *CreaturesDestroyedWatcher) GetTotalAmount() int {
	total := 0
	for _, count := range w.destroyedBy {
		total += count
	}
	return total
}

// CardsDrawnWatcher tracks cards drawn by players.
type CardsDrawnWatcher struct {
	*rules.BaseWatcher
	cardsDrawn map[string]int
}

// NewCardsDrawnWatcher creates a new cards drawn watcher.
func NewCardsDrawnWatcher() *CardsDrawnWatcher {
	return &CardsDrawnWatcher{
		BaseWatcher: rules.NewBaseWatcher(rules.WatcherScopeMatch, "CardsDrawnWatcher"),
		cardsDrawn:  make(map[string]int),
	}
}

// Watch implements the Watcher interface.
func (w *CardsDrawnWatcher) Watch(event rules.Event) {
	if event.Type != rules.EventCardDrawn || event.PlayerID == "" {
		return
	}
	w.cardsDrawn[event.PlayerID]++
	w.SetCondition(true)
}

// Reset clears the watcher's state.
func (w *CardsDrawnWatcher) Reset() {
	w.BaseWatcher.Reset()
	w.cardsDrawn = make(map[string]int)
}

// GetCount returns the number of cards drawn by a player.
func (w *CardsDrawnWatcher) GetCount(playerID string) int {
	return w.cardsDrawn[playerID]
}

// DamageDealtWatcher sums combat damage dealt to creatures.
type DamageDealtWatcher struct {
	*rules.BaseWatcher
	dealt map[string]int
}

// NewDamageDealtWatcher creates a new damage dealt watcher.
func NewDamageDealtWatcher() *DamageDealtWatcher {
	return &DamageDealtWatcher{
		BaseWatcher: rules.NewBaseWatcher(rules.WatcherScopeMatch, "DamageDealtWatcher"),
		dealt:       make(map[string]int),
	}
}

// Watch implements the Watcher interface.
func (w *DamageDealtWatcher) Watch(event rules.Event) {
	if event.Type != rules.EventDamageDealt || event.PlayerID == "" {
		return
	}
	w.dealt[event.PlayerID] += event.Amount
	w.SetCondition(true)
}

// Reset clears the watcher's state.
func (w *DamageDealtWatcher) Reset() {
	w.BaseWatcher.Reset()
	w.dealt = make(map[string]int)
}

// GetAmount returns the damage a player has dealt.
func (w *DamageDealtWatcher) GetAmount(playerID string) int {
	return w.dealt[playerID]
}

// TerritoryLostWatcher tracks territory cards a player lost, split between
// cards returned to hand and cards discarded.
type TerritoryLostWatcher struct {
	*rules.BaseWatcher
	returned  map[string]int
	discarded map[string]int
}

// NewTerritoryLostWatcher creates a new territory lost watcher.
func NewTerritoryLostWatcher() *TerritoryLostWatcher {
	return &TerritoryLostWatcher{
		BaseWatcher: rules.NewBaseWatcher(rules.WatcherScopeMatch, "TerritoryLostWatcher"),
		returned:    make(map[string]int),
		discarded:   make(map[string]int),
	}
}

// Watch implements the Watcher interface.
func (w *TerritoryLostWatcher) Watch(event rules.Event) {
	if event.PlayerID == "" {
		return
	}
	switch event.Type {
	case rules.EventTerritoryReturned:
		w.returned[event.PlayerID]++
	case rules.EventTerritoryLost:
		w.discarded[event.PlayerID]++
	default:
		return
	}
	w.SetCondition(true)
}

// Reset clears the watcher's state.
func (w *TerritoryLostWatcher) Reset() {
	w.BaseWatcher.Reset()
	w.returned = make(map[string]int)
	w.discarded = make(map[string]int)
}

// GetReturned returns territory cards of a player moved to hand.
func (w *TerritoryLostWatcher) GetReturned(playerID string) int {
	return w.returned[playerID]
}

// GetDiscarded returns territory cards of a player discarded by direct attacks.
func (w *TerritoryLostWatcher) GetDiscarded(playerID string) int {
	return w.discarded[playerID]
}

// AttacksThisTurnWatcher counts attacks declared during the current turn.
type AttacksThisTurnWatcher struct {
	*rules.BaseWatcher
	attacks map[string]int
}

// NewAttacksThisTurnWatcher creates a new turn-scoped attack watcher.
func NewAttacksThisTurnWatcher() *AttacksThisTurnWatcher {
	return &AttacksThisTurnWatcher{
		BaseWatcher: rules.NewBaseWatcher(rules.WatcherScopeTurn, "AttacksThisTurnWatcher"),
		attacks:     make(map[string]int),
	}
}

// Watch implements the Watcher interface.
func (w *AttacksThisTurnWatcher) Watch(event rules.Event) {
	if event.Type != rules.EventAttackDeclared || event.PlayerID == "" {
		return
	}
	w.attacks[event.PlayerID]++
	w.SetCondition(true)
}

// Reset clears the watcher's state.
func (w *AttacksThisTurnWatcher) Reset() {
	w.BaseWatcher.Reset()
	w.attacks = make(map[string]int)
}

// GetCount returns the attacks a player declared this turn.
func (w *AttacksThisTurnWatcher) GetCount(playerID string) int {
	return w.attacks[playerID]
}
