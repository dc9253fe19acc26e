package rules

import (
	"testing"
)

func TestWatcherRegistry(t *testing.T) {
	registry := NewWatcherRegistry()

	testWatcher := &testWatcherImpl{
		BaseWatcher: NewBaseWatcher(WatcherScopeTurn, "TestWatcher"),
	}

	if err := registry.AddWatcher(testWatcher); err != nil {
		t.Fatalf("add watcher: %v", err)
	}
	if err := registry.AddWatcher(testWatcher); err == nil {
		t.Fatal("expected duplicate key to be rejected")
	}

	if registry.GetWatcher("TestWatcher") == nil {
		t.Fatal("should retrieve TestWatcher")
	}

	if n := len(registry.GetWatchersByScope(WatcherScopeTurn)); n != 1 {
		t.Fatalf("expected 1 turn watcher, got %d", n)
	}
	if n := len(registry.GetWatchersByScope(WatcherScopeMatch)); n != 0 {
		t.Fatalf("expected 0 match watchers, got %d", n)
	}

	registry.NotifyWatchers(NewEvent(EventAttackDeclared, "1234", "p1"))
	if !testWatcher.ConditionMet() {
		t.Fatal("testWatcher should have condition met")
	}

	registry.ResetWatchersByScope(WatcherScopeTurn)
	if testWatcher.ConditionMet() {
		t.Fatal("watcher should not have condition met after reset")
	}

	registry.RemoveWatcher("TestWatcher")
	if registry.GetWatcher("TestWatcher") != nil {
		t.Fatal("watcher should be removed")
	}
}

func TestWatcherRegistryAttach(t *testing.T) {
	registry := NewWatcherRegistry()
	w := &testWatcherImpl{BaseWatcher: NewBaseWatcher(WatcherScopeMatch, "w")}
	if err := registry.AddWatcher(w); err != nil {
		t.Fatalf("add watcher: %v", err)
	}

	bus := NewEventBus()
	handle := registry.Attach(bus)
	bus.Publish(NewEvent(EventAttackDeclared, "1234", "p1"))
	if !w.ConditionMet() {
		t.Fatal("expected attached registry to forward events")
	}

	w.Reset()
	bus.Unsubscribe(handle)
	bus.Publish(NewEvent(EventAttackDeclared, "1234", "p1"))
	if w.ConditionMet() {
		t.Fatal("expected detached registry to stop forwarding")
	}
}

func TestWatcherRegistryRejectsInvalid(t *testing.T) {
	registry := NewWatcherRegistry()
	if err := registry.AddWatcher(nil); err == nil {
		t.Fatal("expected nil watcher error")
	}
	if err := registry.AddWatcher(&testWatcherImpl{BaseWatcher: NewBaseWatcher(WatcherScopeMatch, "")}); err == nil {
		t.Fatal("expected missing key error")
	}
}

func TestWatcherScopeString(t *testing.T) {
	if WatcherScopeMatch.String() != "MATCH" || WatcherScopeTurn.String() != "TURN" {
		t.Fatal("unexpected scope names")
	}
	if WatcherScope(9).String() != "UNKNOWN" {
		t.Fatal("expected UNKNOWN for out of range scope")
	}
}

type testWatcherImpl struct {
	*BaseWatcher
}

func (t *testWatcherImpl) Watch(event Event) {
	if event.Type == EventAttackDeclared {
		t.SetCondition(true)
	}
}
