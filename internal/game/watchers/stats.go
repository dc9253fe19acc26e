package watchers

import (
	"github.com/mushi-tcg/mushi-server-go/internal/game/rules"
)

// PlayerStats is the per-player summary reported when a match ends.
type PlayerStats struct {
	CardsPlayed        int `json:"cardsPlayed"`
	CardsDrawn         int `json:"cardsDrawn"`
	DamageDealt        int `json:"damageDealt"`
	CreaturesDestroyed int `json:"creaturesDestroyed"`
	CreaturesLost      int `json:"creaturesLost"`
	TerritoryReturned  int `json:"territoryReturned"`
	TerritoryDiscarded int `json:"territoryDiscarded"`
	AttacksThisTurn    int `json:"attacksThisTurn"`
}

// StatsSet bundles the watchers every match installs.
type StatsSet struct {
	Played    *CardsPlayedWatcher
	Drawn     *CardsDrawnWatcher
	Damage    *DamageDealtWatcher
	Destroyed *CreaturesDestroyedWatcher
	Territory *TerritoryLostWatcher
	Attacks   *AttacksThisTurnWatcher
}

// NewStatsSet creates the standard watchers and registers them.
func NewStatsSet(registry *rules.WatcherRegistry) (*StatsSet, error) {
	s := &StatsSet{
		Played:    NewCardsPlayedWatcher(),
		Drawn:     NewCardsDrawnWatcher(),
		Damage:    NewDamageDealtWatcher(),
		Destroyed: NewCreaturesDestroyedWatcher(),
		Territory: NewTerritoryLostWatcher(),
		Attacks:   NewAttacksThisTurnWatcher(),
	}
	for _, w := range []rules.Watcher{s.Played, s.Drawn, s.Damage, s.Destroyed, s.Territory, s.Attacks} {
		if err := registry.AddWatcher(w); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Stats summarizes a player.
func (s *StatsSet) Stats(playerID string) PlayerStats {
	return PlayerStats{
		CardsPlayed:        s.Played.GetCount(playerID),
		CardsDrawn:         s.Drawn.GetCount(playerID),
		DamageDealt:        s.Damage.GetAmount(playerID),
		CreaturesDestroyed: s.Destroyed.GetDestroyedBy(playerID),
		CreaturesLost:      s.Destroyed.GetLostBy(playerID),
		TerritoryReturned:  s.Territory.GetReturned(playerID),
		TerritoryDiscarded: s.Territory.GetDiscarded(playerID),
		AttacksThisTurn:    s.Attacks.GetCount(playerID),
	}
}
