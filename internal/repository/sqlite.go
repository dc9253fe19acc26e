package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps decks and results in a local SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore opens (or creates) the database at path and migrates it.
// Use ":memory:" for a throwaway database.
func NewSQLiteStore(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Every connection to :memory: would see its own empty database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL: %w", err)
	}
	s := &SQLiteStore{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	if logger != nil {
		logger.Info("sqlite store opened", zap.String("path", path))
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS decks (
			owner         TEXT NOT NULL,
			name          TEXT NOT NULL,
			card_ids      TEXT NOT NULL,
			created_at    DATETIME NOT NULL,
			last_modified DATETIME NOT NULL,
			PRIMARY KEY (owner, name)
		);
		CREATE TABLE IF NOT EXISTS match_results (
			id         TEXT PRIMARY KEY,
			match_id   TEXT NOT NULL,
			winner_id  TEXT NOT NULL DEFAULT '',
			winner     TEXT NOT NULL DEFAULT '',
			reason     TEXT NOT NULL,
			players    TEXT NOT NULL,
			turns      INTEGER NOT NULL,
			actions    INTEGER NOT NULL,
			checksum   TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			ended_at   DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS match_results_ended_at ON match_results (ended_at);
	`)
	return err
}

// SaveDeck upserts a deck.
func (s *SQLiteStore) SaveDeck(ctx context.Context, deck DeckRecord) error {
	ids, err := json.Marshal(deck.CardIDs)
	if err != nil {
		return fmt.Errorf("encode card ids: %w", err)
	}
	now := time.Now().UTC()
	created := deck.CreatedAt.UTC()
	if deck.CreatedAt.IsZero() {
		created = now
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO decks (owner, name, card_ids, created_at, last_modified)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(owner, name) DO UPDATE SET card_ids = excluded.card_ids, last_modified = excluded.last_modified
	`, deck.Owner, deck.Name, string(ids), created, now)
	if err != nil {
		return fmt.Errorf("save deck: %w", err)
	}
	return nil
}

// GetDeck loads one deck.
func (s *SQLiteStore) GetDeck(ctx context.Context, owner, name string) (*DeckRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT owner, name, card_ids, created_at, last_modified FROM decks WHERE owner = ? AND name = ?",
		owner, name,
	)
	deck, err := scanSQLiteDeck(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", ErrDeckNotFound, owner, name)
	}
	return deck, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteDeck(row rowScanner) (*DeckRecord, error) {
	var (
		deck DeckRecord
		ids  string
	)
	if err := row.Scan(&deck.Owner, &deck.Name, &ids, &deck.CreatedAt, &deck.LastModified); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(ids), &deck.CardIDs); err != nil {
		return nil, fmt.Errorf("decode card ids: %w", err)
	}
	return &deck, nil
}

// ListDecks returns an owner's decks, most recently modified first.
func (s *SQLiteStore) ListDecks(ctx context.Context, owner string) ([]DeckRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT owner, name, card_ids, created_at, last_modified FROM decks WHERE owner = ? ORDER BY last_modified DESC, name",
		owner,
	)
	if err != nil {
		return nil, fmt.Errorf("list decks: %w", err)
	}
	defer rows.Close()

	result := []DeckRecord{}
	for rows.Next() {
		deck, err := scanSQLiteDeck(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *deck)
	}
	return result, rows.Err()
}

// DeleteDeck removes a deck.
func (s *SQLiteStore) DeleteDeck(ctx context.Context, owner, name string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM decks WHERE owner = ? AND name = ?", owner, name)
	if err != nil {
		return fmt.Errorf("delete deck: %w", err)
	}
	return expectOne(res, owner, name)
}

// RenameDeck moves a deck to a new name.
func (s *SQLiteStore) RenameDeck(ctx context.Context, owner, oldName, newName string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rename: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM decks WHERE owner = ? AND name = ?", owner, newName).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check deck name: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("%w: %s/%s", ErrDeckExists, owner, newName)
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE decks SET name = ?, last_modified = ? WHERE owner = ? AND name = ?",
		newName, time.Now().UTC(), owner, oldName,
	)
	if err != nil {
		return fmt.Errorf("rename deck: %w", err)
	}
	if err := expectOne(res, owner, oldName); err != nil {
		return err
	}
	return tx.Commit()
}

func expectOne(res sql.Result, owner, name string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s/%s", ErrDeckNotFound, owner, name)
	}
	return nil
}

// CountDecks counts an owner's decks.
func (s *SQLiteStore) CountDecks(ctx context.Context, owner string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM decks WHERE owner = ?", owner).Scan(&n); err != nil {
		return 0, fmt.Errorf("count decks: %w", err)
	}
	return n, nil
}

// SaveResult stores a finished match. An empty ID gets a fresh UUID.
func (s *SQLiteStore) SaveResult(ctx context.Context, result MatchResult) error {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	players, err := json.Marshal(result.Players)
	if err != nil {
		return fmt.Errorf("encode players: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO match_results (id, match_id, winner_id, winner, reason, players, turns, actions, checksum, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, result.ID, result.MatchID, result.WinnerID, result.Winner, result.Reason, string(players),
		result.Turns, result.Actions, result.Checksum, result.StartedAt.UTC(), result.EndedAt.UTC())
	if err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	return nil
}

// RecentResults returns up to limit results, newest first.
func (s *SQLiteStore) RecentResults(ctx context.Context, limit int) ([]MatchResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, match_id, winner_id, winner, reason, players, turns, actions, checksum, started_at, ended_at
		FROM match_results ORDER BY ended_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	results := []MatchResult{}
	for rows.Next() {
		var (
			r       MatchResult
			players string
		)
		if err := rows.Scan(&r.ID, &r.MatchID, &r.WinnerID, &r.Winner, &r.Reason, &players,
			&r.Turns, &r.Actions, &r.Checksum, &r.StartedAt, &r.EndedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(players), &r.Players); err != nil {
			return nil, fmt.Errorf("decode players: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
