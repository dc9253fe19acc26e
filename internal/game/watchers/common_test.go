package watchers

import (
	"testing"

	"github.com/mushi-tcg/mushi-server-go/internal/game/rules"
)

func TestCardsPlayedWatcher(t *testing.T) {
	watcher := NewCardsPlayedWatcher()

	if watcher.ConditionMet() {
		t.Fatal("watcher should not have condition met initially")
	}

	watcher.Watch(rules.NewCardEvent(rules.EventCardPlayed, "1234", "p1", "bug-001", ""))
	watcher.Watch(rules.NewCardEvent(rules.EventCardPlayed, "1234", "p1", "tech-001", ""))
	watcher.Watch(rules.NewCardEvent(rules.EventCardDrawn, "1234", "p1", "bug-002", ""))

	if !watcher.ConditionMet() {
		t.Fatal("watcher should have condition met after a play")
	}
	if watcher.GetCount("p1") != 2 {
		t.Fatalf("expected 2 cards played, got %d", watcher.GetCount("p1"))
	}
	if got := watcher.GetCardsPlayed("p1"); got[0] != "bug-001" || got[1] != "tech-001" {
		t.Fatalf("unexpected play order %v", got)
	}

	watcher.Reset()
	if watcher.ConditionMet() || watcher.GetCount("p1") != 0 {
		t.Fatal("expected cleared watcher after reset")
	}
}

func TestCreaturesDestroyedWatcher(t *testing.T) {
	watcher := NewCreaturesDestroyedWatcher()

	event := rules.NewCardEvent(rules.EventCreatureDestroyed, "1234", "p1", "bug-008", "bug-001")
	event.Metadata[OwnerKey] = "p2"
	watcher.Watch(event)
	watcher.Watch(event)

	if watcher.GetDestroyedBy("p1") != 2 {
		t.Fatalf("expected 2 destroyed by p1, got %d", watcher.GetDestroyedBy("p1"))
	}
	if watcher.GetLostBy("p2") != 2 {
		t.Fatalf("expected 2 lost by p2, got %d", watcher.GetLostBy("p2"))
	}
	if watcher.GetTotalAmount() != 2 {
		t.Fatalf("expected total 2, got %d", watcher.GetTotalAmount())
	}
}

func TestTerritoryLostWatcherSplitsReturnedAndDiscarded(t *testing.T) {
	watcher := NewTerritoryLostWatcher()

	watcher.Watch(rules.NewCardEvent(rules.EventTerritoryReturned, "1234", "p2", "bug-003", ""))
	watcher.Watch(rules.NewCardEvent(rules.EventTerritoryLost, "1234", "p2", "bug-004", ""))
	watcher.Watch(rules.NewCardEvent(rules.EventTerritoryLost, "1234", "p2", "bug-005", ""))

	if watcher.GetReturned("p2") != 1 {
		t.Fatalf("expected 1 returned, got %d", watcher.GetReturned("p2"))
	}
	if watcher.GetDiscarded("p2") != 2 {
		t.Fatalf("expected 2 discarded, got %d", watcher.GetDiscarded("p2"))
	}
}

func TestStatsSetAggregates(t *testing.T) {
	registry := rules.NewWatcherRegistry()
	set, err := NewStatsSet(registry)
	if err != nil {
		t.Fatalf("stats set: %v", err)
	}

	bus := rules.NewEventBus()
	registry.Attach(bus)

	bus.Publish(rules.NewCardEvent(rules.EventCardDrawn, "1234", "p1", "bug-001", ""))
	bus.Publish(rules.NewEventWithAmount(rules.EventDamageDealt, "1234", "p1", "bug-001", "bug-002", 4))
	bus.Publish(rules.NewEventWithAmount(rules.EventDamageDealt, "1234", "p1", "bug-001", "bug-003", 2))
	bus.Publish(rules.NewCardEvent(rules.EventAttackDeclared, "1234", "p1", "bug-001", "bug-002"))

	stats := set.Stats("p1")
	if stats.CardsDrawn != 1 || stats.DamageDealt != 6 || stats.AttacksThisTurn != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	registry.ResetWatchersByScope(rules.WatcherScopeTurn)
	stats = set.Stats("p1")
	if stats.AttacksThisTurn != 0 {
		t.Fatalf("expected turn-scoped attacks reset, got %d", stats.AttacksThisTurn)
	}
	if stats.DamageDealt != 6 {
		t.Fatalf("expected match-scoped damage kept, got %d", stats.DamageDealt)
	}

	if _, err := NewStatsSet(registry); err == nil {
		t.Fatal("expected duplicate watcher registration to fail")
	}
}
