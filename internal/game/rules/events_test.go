package rules

import (
	"testing"
)

func TestEventBusSubscribeTyped(t *testing.T) {
	bus := NewEventBus()

	drawn := 0
	destroyed := 0

	handle1 := bus.SubscribeTyped(EventCardDrawn, func(e Event) {
		drawn++
	})
	handle2 := bus.SubscribeTyped(EventCreatureDestroyed, func(e Event) {
		destroyed++
	})

	bus.Publish(NewCardEvent(EventCardDrawn, "1234", "p1", "bug-001", ""))
	if drawn != 1 {
		t.Fatalf("expected drawn count 1, got %d", drawn)
	}
	if destroyed != 0 {
		t.Fatalf("expected destroyed count 0, got %d", destroyed)
	}

	bus.Publish(NewEventWithAmount(EventCreatureDestroyed, "1234", "p1", "bug-001", "bug-002", 4))
	if destroyed != 1 {
		t.Fatalf("expected destroyed count 1, got %d", destroyed)
	}

	bus.Unsubscribe(handle1)
	bus.Publish(NewCardEvent(EventCardDrawn, "1234", "p1", "bug-003", ""))
	if drawn != 1 {
		t.Fatalf("expected drawn count still 1 after unsubscribe, got %d", drawn)
	}

	bus.Unsubscribe(handle2)
	bus.Publish(NewEvent(EventCreatureDestroyed, "1234", "p2"))
	if destroyed != 1 {
		t.Fatalf("expected destroyed count still 1 after unsubscribe, got %d", destroyed)
	}
}

func TestEventBusSubscribeAll(t *testing.T) {
	bus := NewEventBus()

	count := 0
	handle := bus.Subscribe(func(e Event) {
		count++
	})

	bus.PublishBatch([]Event{
		NewEvent(EventTurnEnded, "1234", "p1"),
		NewEvent(EventTurnStarted, "1234", "p2"),
		NewCardEvent(EventCardDrawn, "1234", "p2", "bug-004", ""),
	})
	if count != 3 {
		t.Fatalf("expected 3 events, got %d", count)
	}

	bus.Unsubscribe(handle)
	bus.Publish(NewEvent(EventMatchEnded, "1234", "p1"))
	if count != 3 {
		t.Fatalf("expected count still 3 after unsubscribe, got %d", count)
	}
}

func TestNilListenersIgnored(t *testing.T) {
	bus := NewEventBus()
	if h := bus.Subscribe(nil); h != -1 {
		t.Fatalf("expected -1 handle, got %d", h)
	}
	if h := bus.SubscribeTyped(EventCardDrawn, nil); h != -1 {
		t.Fatalf("expected -1 handle, got %d", h)
	}
	bus.Publish(NewEvent(EventCardDrawn, "1234", "p1"))
}

func TestNewEventPopulatesFields(t *testing.T) {
	evt := NewEventWithAmount(EventDamageDealt, "4321", "p1", "a", "b", 3)
	if evt.MatchID != "4321" || evt.PlayerID != "p1" || evt.SourceID != "a" || evt.TargetID != "b" || evt.Amount != 3 {
		t.Fatalf("unexpected event %+v", evt)
	}
	if evt.Timestamp.IsZero() {
		t.Fatalf("expected timestamp")
	}
	if evt.Metadata == nil {
		t.Fatalf("expected metadata map")
	}
}
