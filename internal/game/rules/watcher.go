package rules

import (
	"fmt"
	"sync"
)

// WatcherScope defines how long a watcher accumulates before it is reset.
type WatcherScope int

const (
	// WatcherScopeMatch accumulates for the whole match.
	WatcherScopeMatch WatcherScope = iota
	// WatcherScopeTurn is reset at every turn end.
	WatcherScopeTurn
)

// String returns the string representation of the watcher scope.
func (ws WatcherScope) String() string {
	switch ws {
	case WatcherScopeMatch:
		return "MATCH"
	case WatcherScopeTurn:
		return "TURN"
	default:
		return "UNKNOWN"
	}
}

// Watcher observes match events and tracks a condition or a tally.
type Watcher interface {
	// Watch is called for every published event.
	Watch(event Event)

	// Reset clears the accumulated state.
	Reset()

	// ConditionMet reports whether the tracked condition has fired.
	ConditionMet() bool

	// GetScope returns the scope of this watcher.
	GetScope() WatcherScope

	// GetKey returns a unique key for this watcher instance.
	GetKey() string
}

// BaseWatcher provides the bookkeeping shared by watchers.
type BaseWatcher struct {
	scope     WatcherScope
	condition bool
	key       string
}

// NewBaseWatcher creates a base watcher with the given scope and key.
func NewBaseWatcher(scope WatcherScope, key string) *BaseWatcher {
	return &BaseWatcher{scope: scope, key: key}
}

// GetScope returns the watcher's scope.
func (bw *BaseWatcher) GetScope() WatcherScope { return bw.scope }

// ConditionMet returns whether the condition has been met.
func (bw *BaseWatcher) ConditionMet() bool { return bw.condition }

// SetCondition sets the condition flag.
func (bw *BaseWatcher) SetCondition(condition bool) { bw.condition = condition }

// Reset clears the condition.
func (bw *BaseWatcher) Reset() { bw.condition = false }

// GetKey returns the unique key for this watcher.
func (bw *BaseWatcher) GetKey() string { return bw.key }

// WatcherRegistry holds the watchers of one match.
type WatcherRegistry struct {
	mu       sync.RWMutex
	watchers map[string]Watcher
	order    []string
}

// NewWatcherRegistry creates a new watcher registry.
func NewWatcherRegistry() *WatcherRegistry {
	return &WatcherRegistry{
		watchers: make(map[string]Watcher),
	}
}

// AddWatcher registers a watcher. Keys must be unique.
func (wr *WatcherRegistry) AddWatcher(watcher Watcher) error {
	if watcher == nil {
		return fmt.Errorf("nil watcher")
	}
	key := watcher.GetKey()
	if key == "" {
		return fmt.Errorf("watcher without key")
	}

	wr.mu.Lock()
	defer wr.mu.Unlock()
	if _, exists := wr.watchers[key]; exists {
		return fmt.Errorf("watcher %s already registered", key)
	}
	wr.watchers[key] = watcher
	wr.order = append(wr.order, key)
	return nil
}

// RemoveWatcher removes a watcher by key.
func (wr *WatcherRegistry) RemoveWatcher(key string) {
	wr.mu.Lock()
	defer wr.mu.Unlock()
	if _, ok := wr.watchers[key]; !ok {
		return
	}
	delete(wr.watchers, key)
	for i, k := range wr.order {
		if k == key {
			wr.order = append(wr.order[:i], wr.order[i+1:]...)
			break
		}
	}
}

// GetWatcher retrieves a watcher by key.
func (wr *WatcherRegistry) GetWatcher(key string) Watcher {
	wr.mu.RLock()
	defer wr.mu.RUnlock()
	return wr.watchers[key]
}

// GetWatchersByScope returns the watchers of a scope in registration order.
func (wr *WatcherRegistry) GetWatchersByScope(scope WatcherScope) []Watcher {
	wr.mu.RLock()
	defer wr.mu.RUnlock()
	result := make([]Watcher, 0, len(wr.order))
	for _, key := range wr.order {
		if w := wr.watchers[key]; w.GetScope() == scope {
			result = append(result, w)
		}
	}
	return result
}

// ResetWatchersByScope resets every watcher of a scope.
func (wr *WatcherRegistry) ResetWatchersByScope(scope WatcherScope) {
	for _, w := range wr.GetWatchersByScope(scope) {
		w.Reset()
	}
}

// NotifyWatchers forwards an event to every watcher in registration order.
func (wr *WatcherRegistry) NotifyWatchers(event Event) {
	wr.mu.RLock()
	defer wr.mu.RUnlock()
	for _, key := range wr.order {
		wr.watchers[key].Watch(event)
	}
}

// Attach subscribes the registry to a bus and returns the subscription handle.
func (wr *WatcherRegistry) Attach(bus *EventBus) int {
	return bus.Subscribe(wr.NotifyWatchers)
}
