package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mushi-tcg/mushi-server-go/internal/config"
	"go.uber.org/zap"
)

var (
	// ErrDeckNotFound is returned when no deck exists for owner and name.
	ErrDeckNotFound = errors.New("deck not found")
	// ErrDeckExists is returned by RenameDeck when the target name is taken.
	ErrDeckExists = errors.New("deck already exists")
)

// DeckRecord is a saved deck belonging to one user.
type DeckRecord struct {
	Owner        string    `json:"owner"`
	Name         string    `json:"name"`
	CardIDs      []string  `json:"cards"`
	CreatedAt    time.Time `json:"createdAt"`
	LastModified time.Time `json:"lastModified"`
}

// MatchResult is the persisted outcome of a finished match.
type MatchResult struct {
	ID        string    `json:"id"`
	MatchID   string    `json:"matchId"`
	WinnerID  string    `json:"winnerId,omitempty"`
	Winner    string    `json:"winner,omitempty"`
	Reason    string    `json:"reason"`
	Players   []string  `json:"players"`
	Turns     int       `json:"turns"`
	Actions   int       `json:"actions"`
	Checksum  string    `json:"checksum"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`
}

// DeckStore persists user decks. SaveDeck creates or replaces; CreatedAt of
// an existing deck is preserved.
type DeckStore interface {
	SaveDeck(ctx context.Context, deck DeckRecord) error
	GetDeck(ctx context.Context, owner, name string) (*DeckRecord, error)
	ListDecks(ctx context.Context, owner string) ([]DeckRecord, error)
	DeleteDeck(ctx context.Context, owner, name string) error
	RenameDeck(ctx context.Context, owner, oldName, newName string) error
	CountDecks(ctx context.Context, owner string) (int, error)
}

// ResultStore persists match results.
type ResultStore interface {
	SaveResult(ctx context.Context, result MatchResult) error
	RecentResults(ctx context.Context, limit int) ([]MatchResult, error)
}

// Store is a complete persistence backend.
type Store interface {
	DeckStore
	ResultStore
	Close() error
}

// Open builds the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := NewDB(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		store := NewPostgresStore(pool, logger)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil
	case config.DriverSQLite:
		return NewSQLiteStore(cfg.SQLitePath, logger)
	case config.DriverNone, "":
		if logger != nil {
			logger.Warn("no database configured; decks and results are kept in memory")
		}
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
