// Package deck manages decks saved by users between matches.
package deck

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mushi-tcg/mushi-server-go/internal/catalog"
	"github.com/mushi-tcg/mushi-server-go/internal/repository"
	"go.uber.org/zap"
)

// MaxNameLength bounds owner and deck names after sanitizing.
const MaxNameLength = 64

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// ErrInvalidName is returned for names that are empty after trimming.
var ErrInvalidName = errors.New("invalid deck name")

// SanitizeName replaces every character outside [A-Za-z0-9_-] with '_'.
func SanitizeName(name string) string {
	return unsafeChars.ReplaceAllString(strings.TrimSpace(name), "_")
}

// Saved is a stored deck with its cards resolved from the catalog.
type Saved struct {
	Name         string         `json:"name"`
	Cards        []catalog.Card `json:"cards"`
	CreatedAt    time.Time      `json:"createdAt"`
	LastModified time.Time      `json:"lastModified"`
}

// Metadata summarizes a stored deck for listings.
type Metadata struct {
	Name         string    `json:"name"`
	CardCount    int       `json:"cardCount"`
	CreatedAt    time.Time `json:"createdAt"`
	LastModified time.Time `json:"lastModified"`
}

// Service validates decks against the catalog and persists them.
type Service struct {
	store   repository.DeckStore
	catalog *catalog.Catalog
	logger  *zap.Logger
}

// NewService creates a deck service.
func NewService(store repository.DeckStore, cat *catalog.Catalog, logger *zap.Logger) *Service {
	return &Service{store: store, catalog: cat, logger: logger}
}

func names(owner, name string) (string, string, error) {
	o, n := SanitizeName(owner), SanitizeName(name)
	if o == "" || n == "" {
		return "", "", fmt.Errorf("%w: owner and name are required", ErrInvalidName)
	}
	if len(o) > MaxNameLength || len(n) > MaxNameLength {
		return "", "", fmt.Errorf("%w: longer than %d characters", ErrInvalidName, MaxNameLength)
	}
	return o, n, nil
}

// Save validates the deck and stores it, replacing any deck of the same name.
func (s *Service) Save(ctx context.Context, owner, name string, cardIDs []string) (*Saved, error) {
	o, n, err := names(owner, name)
	if err != nil {
		return nil, err
	}
	cards, err := s.catalog.ResolveDeck(cardIDs)
	if err != nil {
		return nil, err
	}

	if err := s.store.SaveDeck(ctx, repository.DeckRecord{Owner: o, Name: n, CardIDs: cardIDs}); err != nil {
		return nil, err
	}
	if s.logger != nil {
		s.logger.Info("deck saved", zap.String("owner", o), zap.String("deck", n))
	}

	rec, err := s.store.GetDeck(ctx, o, n)
	if err != nil {
		return nil, err
	}
	return &Saved{Name: n, Cards: cards, CreatedAt: rec.CreatedAt, LastModified: rec.LastModified}, nil
}

// Load returns a saved deck. Card ids no longer in the catalog are dropped,
// so the result may fail validation if the catalog changed.
func (s *Service) Load(ctx context.Context, owner, name string) (*Saved, error) {
	o, n, err := names(owner, name)
	if err != nil {
		return nil, err
	}
	rec, err := s.store.GetDeck(ctx, o, n)
	if err != nil {
		return nil, err
	}

	cards := make([]catalog.Card, 0, len(rec.CardIDs))
	for _, id := range rec.CardIDs {
		card, ok := s.catalog.Get(id)
		if !ok {
			if s.logger != nil {
				s.logger.Warn("saved deck references unknown card",
					zap.String("owner", o), zap.String("deck", n), zap.String("card_id", id))
			}
			continue
		}
		cards = append(cards, card)
	}
	return &Saved{Name: rec.Name, Cards: cards, CreatedAt: rec.CreatedAt, LastModified: rec.LastModified}, nil
}

// LoadIDs returns the card ids of a saved deck as stored.
func (s *Service) LoadIDs(ctx context.Context, owner, name string) ([]string, error) {
	o, n, err := names(owner, name)
	if err != nil {
		return nil, err
	}
	rec, err := s.store.GetDeck(ctx, o, n)
	if err != nil {
		return nil, err
	}
	return rec.CardIDs, nil
}

// List returns the owner's decks, most recently modified first.
func (s *Service) List(ctx context.Context, owner string) ([]Metadata, error) {
	o := SanitizeName(owner)
	if o == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalidName)
	}
	recs, err := s.store.ListDecks(ctx, o)
	if err != nil {
		return nil, err
	}
	out := make([]Metadata, len(recs))
	for i, rec := range recs {
		out[i] = Metadata{
			Name:         rec.Name,
			CardCount:    len(rec.CardIDs),
			CreatedAt:    rec.CreatedAt,
			LastModified: rec.LastModified,
		}
	}
	return out, nil
}

// Delete removes a saved deck.
func (s *Service) Delete(ctx context.Context, owner, name string) error {
	o, n, err := names(owner, name)
	if err != nil {
		return err
	}
	if err := s.store.DeleteDeck(ctx, o, n); err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Info("deck deleted", zap.String("owner", o), zap.String("deck", n))
	}
	return nil
}

// Rename moves a deck to a new name. The target name must be free.
func (s *Service) Rename(ctx context.Context, owner, oldName, newName string) (*Saved, error) {
	o, from, err := names(owner, oldName)
	if err != nil {
		return nil, err
	}
	_, to, err := names(owner, newName)
	if err != nil {
		return nil, err
	}
	if from == to {
		return s.Load(ctx, o, to)
	}
	if err := s.store.RenameDeck(ctx, o, from, to); err != nil {
		return nil, err
	}
	return s.Load(ctx, o, to)
}

// Exists reports whether the deck is stored.
func (s *Service) Exists(ctx context.Context, owner, name string) (bool, error) {
	o, n, err := names(owner, name)
	if err != nil {
		return false, err
	}
	_, err = s.store.GetDeck(ctx, o, n)
	if errors.Is(err, repository.ErrDeckNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Count returns how many decks the owner has saved.
func (s *Service) Count(ctx context.Context, owner string) (int, error) {
	o := SanitizeName(owner)
	if o == "" {
		return 0, fmt.Errorf("%w: owner is required", ErrInvalidName)
	}
	return s.store.CountDecks(ctx, o)
}
