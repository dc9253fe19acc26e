package rules

import (
	"sync"
	"time"
)

// EventType indicates the category of a match event.
type EventType string

const (
	// Turn events
	EventMatchStarted EventType = "MATCH_STARTED"
	EventPhaseChanged EventType = "PHASE_CHANGED"
	EventTurnEnded    EventType = "TURN_ENDED"
	EventTurnStarted  EventType = "TURN_STARTED"

	// Zone events
	EventCardDrawn         EventType = "CARD_DRAWN"
	EventCardPlayed        EventType = "CARD_PLAYED"
	EventFoodSet           EventType = "FOOD_SET"
	EventSetPhaseSkipped   EventType = "SET_PHASE_SKIPPED"
	EventTerritoryLost     EventType = "TERRITORY_LOST"
	EventTerritoryReturned EventType = "TERRITORY_RETURNED"

	// Combat events
	EventAttackDeclared   EventType = "ATTACK_DECLARED"
	EventDamageDealt      EventType = "DAMAGE_DEALT"
	EventCreatureDestroyed EventType = "CREATURE_DESTROYED"
	EventDirectAttack     EventType = "DIRECT_ATTACK"

	// Technique events
	EventTechniqueUsed EventType = "TECHNIQUE_USED"

	// Terminal events
	EventDeckOut     EventType = "DECK_OUT"
	EventSurrendered EventType = "SURRENDERED"
	EventMatchEnded  EventType = "MATCH_ENDED"
)

// Event represents a state change that other subsystems may react to.
type Event struct {
	Type      EventType
	MatchID   string
	PlayerID  string            // Player the event is about (actor for attacks and plays)
	SourceID  string            // Card that caused the event
	TargetID  string            // Card or player affected
	Amount    int               // Damage, food, counts
	Flag      bool              // Destroyed, elemental advantage, etc.
	Turn      int
	Timestamp time.Time
	Metadata  map[string]string
}

// Listener defines a callback that reacts to incoming events.
type Listener func(Event)

// TypedListener defines a callback that reacts to a specific event type.
type TypedListener struct {
	Handle    int
	EventType EventType
	Callback  func(Event)
}

// EventBus provides a synchronous publish/subscribe implementation with type filtering.
type EventBus struct {
	mu             sync.RWMutex
	listeners      map[int]Listener
	typedListeners map[EventType][]TypedListener
	nextHandle     int
}

// NewEventBus constructs a fresh event bus instance.
func NewEventBus() *EventBus {
	return &EventBus{
		listeners:      make(map[int]Listener),
		typedListeners: make(map[EventType][]TypedListener),
	}
}

// Subscribe registers a listener for all events and returns a handle.
func (bus *EventBus) Subscribe(listener Listener) int {
	if listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.listeners[handle] = listener
	return handle
}

// SubscribeTyped registers a listener for a specific event type.
func (bus *EventBus) SubscribeTyped(eventType EventType, callback func(Event)) int {
	if callback == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.typedListeners[eventType] = append(bus.typedListeners[eventType], TypedListener{
		Handle:    handle,
		EventType: eventType,
		Callback:  callback,
	})
	return handle
}

// Unsubscribe removes the listener identified by handle, typed or not.
func (bus *EventBus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	delete(bus.listeners, handle)
	for eventType, listeners := range bus.typedListeners {
		for i := len(listeners) - 1; i >= 0; i-- {
			if listeners[i].Handle == handle {
				bus.typedListeners[eventType] = append(listeners[:i], listeners[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers the event to all registered listeners synchronously.
// Listeners must not publish on the same bus.
func (bus *EventBus) Publish(event Event) {
	bus.mu.RLock()
	defer bus.mu.RUnlock()

	for _, listener := range bus.listeners {
		listener(event)
	}
	for _, listener := range bus.typedListeners[event.Type] {
		listener.Callback(event)
	}
}

// PublishBatch publishes events in order.
func (bus *EventBus) PublishBatch(events []Event) {
	for _, event := range events {
		bus.Publish(event)
	}
}

// NewEvent creates a new event with common fields populated.
func NewEvent(eventType EventType, matchID, playerID string) Event {
	return Event{
		Type:      eventType,
		MatchID:   matchID,
		PlayerID:  playerID,
		Timestamp: time.Now(),
		Metadata:  make(map[string]string),
	}
}

// NewCardEvent creates an event about a card moving or acting.
func NewCardEvent(eventType EventType, matchID, playerID, sourceID, targetID string) Event {
	evt := NewEvent(eventType, matchID, playerID)
	evt.SourceID = sourceID
	evt.TargetID = targetID
	return evt
}

// NewEventWithAmount creates a card event carrying an amount.
func NewEventWithAmount(eventType EventType, matchID, playerID, sourceID, targetID string, amount int) Event {
	evt := NewCardEvent(eventType, matchID, playerID, sourceID, targetID)
	evt.Amount = amount
	return evt
}
