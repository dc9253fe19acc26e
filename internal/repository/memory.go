package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a process-local Store used when no database is configured
// and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	decks   map[string]map[string]DeckRecord // owner -> name -> deck
	results []MatchResult
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{decks: make(map[string]map[string]DeckRecord)}
}

func (s *MemoryStore) SaveDeck(_ context.Context, deck DeckRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	owned, ok := s.decks[deck.Owner]
	if !ok {
		owned = make(map[string]DeckRecord)
		s.decks[deck.Owner] = owned
	}
	now := time.Now().UTC()
	if prev, exists := owned[deck.Name]; exists {
		deck.CreatedAt = prev.CreatedAt
	} else if deck.CreatedAt.IsZero() {
		deck.CreatedAt = now
	}
	deck.LastModified = now
	deck.CardIDs = append([]string(nil), deck.CardIDs...)
	owned[deck.Name] = deck
	return nil
}

func (s *MemoryStore) GetDeck(_ context.Context, owner, name string) (*DeckRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	deck, ok := s.decks[owner][name]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrDeckNotFound, owner, name)
	}
	deck.CardIDs = append([]string(nil), deck.CardIDs...)
	return &deck, nil
}

func (s *MemoryStore) ListDecks(_ context.Context, owner string) ([]DeckRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]DeckRecord, 0, len(s.decks[owner]))
	for _, deck := range s.decks[owner] {
		deck.CardIDs = append([]string(nil), deck.CardIDs...)
		result = append(result, deck)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].LastModified.Equal(result[j].LastModified) {
			return result[i].LastModified.After(result[j].LastModified)
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}

func (s *MemoryStore) DeleteDeck(_ context.Context, owner, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.decks[owner][name]; !ok {
		return fmt.Errorf("%w: %s/%s", ErrDeckNotFound, owner, name)
	}
	delete(s.decks[owner], name)
	return nil
}

func (s *MemoryStore) RenameDeck(_ context.Context, owner, oldName, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	deck, ok := s.decks[owner][oldName]
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrDeckNotFound, owner, oldName)
	}
	if _, taken := s.decks[owner][newName]; taken {
		return fmt.Errorf("%w: %s/%s", ErrDeckExists, owner, newName)
	}
	delete(s.decks[owner], oldName)
	deck.Name = newName
	deck.LastModified = time.Now().UTC()
	s.decks[owner][newName] = deck
	return nil
}

func (s *MemoryStore) CountDecks(_ context.Context, owner string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.decks[owner]), nil
}

func (s *MemoryStore) SaveResult(_ context.Context, result MatchResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	s.results = append(s.results, result)
	return nil
}

func (s *MemoryStore) RecentResults(_ context.Context, limit int) ([]MatchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = len(s.results)
	}
	out := make([]MatchResult, 0, min(limit, len(s.results)))
	for i := len(s.results) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.results[i])
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
