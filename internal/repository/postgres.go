package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mushi-tcg/mushi-server-go/internal/catalog"
	"github.com/mushi-tcg/mushi-server-go/internal/config"
	"go.uber.org/zap"
)

// NewDB opens a pgx connection pool and verifies it with a ping.
func NewDB(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}

	connectCtx := ctx
	if cfg.ConnectTTL > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTTL)
		defer cancel()
	}

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if logger != nil {
		stats := pool.Stat()
		logger.Info("database connection pool initialized",
			zap.Int32("total_conns", stats.TotalConns()),
			zap.Int32("idle_conns", stats.IdleConns()),
			zap.Int32("max_conns", poolCfg.MaxConns),
		)
	}
	return pool, nil
}

// PostgresStore keeps decks, results and the card catalog in PostgreSQL.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore wraps an open pool.
func NewPostgresStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, logger: logger}
}

// Pool exposes the underlying pool for tools that batch their own writes.
func (s *PostgresStore) Pool() *pgxpool.Pool { return s.pool }

// Migrate creates the schema when missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS cards (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			card_type   TEXT NOT NULL,
			attribute   TEXT NOT NULL,
			cost        INTEGER NOT NULL DEFAULT 0,
			hitpoints   INTEGER,
			techniques  JSONB NOT NULL DEFAULT '[]',
			flavor_text TEXT NOT NULL DEFAULT '',
			rarity      TEXT NOT NULL DEFAULT '',
			set_code    TEXT NOT NULL DEFAULT '',
			image       TEXT NOT NULL DEFAULT ''
		);
		CREATE TABLE IF NOT EXISTS decks (
			owner         TEXT NOT NULL,
			name          TEXT NOT NULL,
			card_ids      TEXT[] NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL,
			last_modified TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (owner, name)
		);
		CREATE TABLE IF NOT EXISTS match_results (
			id         UUID PRIMARY KEY,
			match_id   TEXT NOT NULL,
			winner_id  TEXT NOT NULL DEFAULT '',
			winner     TEXT NOT NULL DEFAULT '',
			reason     TEXT NOT NULL,
			players    TEXT[] NOT NULL,
			turns      INTEGER NOT NULL,
			actions    INTEGER NOT NULL,
			checksum   TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			ended_at   TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS match_results_ended_at ON match_results (ended_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveDeck(ctx context.Context, deck DeckRecord) error {
	now := time.Now().UTC()
	created := deck.CreatedAt
	if created.IsZero() {
		created = now
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO decks (owner, name, card_ids, created_at, last_modified)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (owner, name) DO UPDATE SET card_ids = EXCLUDED.card_ids, last_modified = EXCLUDED.last_modified
	`, deck.Owner, deck.Name, deck.CardIDs, created, now)
	if err != nil {
		return fmt.Errorf("save deck: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDeck(ctx context.Context, owner, name string) (*DeckRecord, error) {
	var deck DeckRecord
	err := s.pool.QueryRow(ctx,
		"SELECT owner, name, card_ids, created_at, last_modified FROM decks WHERE owner = $1 AND name = $2",
		owner, name,
	).Scan(&deck.Owner, &deck.Name, &deck.CardIDs, &deck.CreatedAt, &deck.LastModified)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", ErrDeckNotFound, owner, name)
	}
	if err != nil {
		return nil, fmt.Errorf("get deck: %w", err)
	}
	return &deck, nil
}

func (s *PostgresStore) ListDecks(ctx context.Context, owner string) ([]DeckRecord, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT owner, name, card_ids, created_at, last_modified FROM decks WHERE owner = $1 ORDER BY last_modified DESC, name",
		owner,
	)
	if err != nil {
		return nil, fmt.Errorf("list decks: %w", err)
	}
	decks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (DeckRecord, error) {
		var deck DeckRecord
		err := row.Scan(&deck.Owner, &deck.Name, &deck.CardIDs, &deck.CreatedAt, &deck.LastModified)
		return deck, err
	})
	if err != nil {
		return nil, fmt.Errorf("list decks: %w", err)
	}
	return decks, nil
}

func (s *PostgresStore) DeleteDeck(ctx context.Context, owner, name string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM decks WHERE owner = $1 AND name = $2", owner, name)
	if err != nil {
		return fmt.Errorf("delete deck: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s/%s", ErrDeckNotFound, owner, name)
	}
	return nil
}

func (s *PostgresStore) RenameDeck(ctx context.Context, owner, oldName, newName string) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE decks SET name = $1, last_modified = $2 WHERE owner = $3 AND name = $4",
		newName, time.Now().UTC(), owner, oldName,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s/%s", ErrDeckExists, owner, newName)
	}
	if err != nil {
		return fmt.Errorf("rename deck: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s/%s", ErrDeckNotFound, owner, oldName)
	}
	return nil
}

func (s *PostgresStore) CountDecks(ctx context.Context, owner string) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM decks WHERE owner = $1", owner).Scan(&n); err != nil {
		return 0, fmt.Errorf("count decks: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) SaveResult(ctx context.Context, result MatchResult) error {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO match_results (id, match_id, winner_id, winner, reason, players, turns, actions, checksum, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, result.ID, result.MatchID, result.WinnerID, result.Winner, result.Reason, result.Players,
		result.Turns, result.Actions, result.Checksum, result.StartedAt, result.EndedAt)
	if err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecentResults(ctx context.Context, limit int) ([]MatchResult, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, match_id, winner_id, winner, reason, players, turns, actions, checksum, started_at, ended_at
		FROM match_results ORDER BY ended_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (MatchResult, error) {
		var r MatchResult
		err := row.Scan(&r.ID, &r.MatchID, &r.WinnerID, &r.Winner, &r.Reason, &r.Players,
			&r.Turns, &r.Actions, &r.Checksum, &r.StartedAt, &r.EndedAt)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	return results, nil
}

// LoadCards reads the card catalog imported by scripts/import_cards.go.
func (s *PostgresStore) LoadCards(ctx context.Context) ([]catalog.Card, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, card_type, attribute, cost, hitpoints, techniques, flavor_text, rarity, set_code, image
		FROM cards ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("load cards: %w", err)
	}
	cards, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.Card, error) {
		var (
			c          catalog.Card
			category   string
			element    string
			techniques []byte
		)
		if err := row.Scan(&c.ID, &c.Name, &category, &element, &c.Cost, &c.Hitpoints,
			&techniques, &c.FlavorText, &c.Rarity, &c.Set, &c.Image); err != nil {
			return c, err
		}
		c.Category = catalog.Category(category)
		c.Element = catalog.Element(element)
		if err := json.Unmarshal(techniques, &c.Techniques); err != nil {
			return c, fmt.Errorf("card %s techniques: %w", c.ID, err)
		}
		return c, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load cards: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("loaded cards from database", zap.Int("count", len(cards)))
	}
	return cards, nil
}

// UpsertCards writes cards in one transaction.
func (s *PostgresStore) UpsertCards(ctx context.Context, cards []catalog.Card) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, c := range cards {
		techniques, err := json.Marshal(c.Techniques)
		if err != nil {
			return fmt.Errorf("card %s techniques: %w", c.ID, err)
		}
		batch.Queue(`
			INSERT INTO cards (id, name, card_type, attribute, cost, hitpoints, techniques, flavor_text, rarity, set_code, image)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name, card_type = EXCLUDED.card_type, attribute = EXCLUDED.attribute,
				cost = EXCLUDED.cost, hitpoints = EXCLUDED.hitpoints, techniques = EXCLUDED.techniques,
				flavor_text = EXCLUDED.flavor_text, rarity = EXCLUDED.rarity, set_code = EXCLUDED.set_code,
				image = EXCLUDED.image
		`, c.ID, c.Name, string(c.Category), string(c.Element), c.Cost, c.Hitpoints,
			techniques, c.FlavorText, c.Rarity, c.Set, c.Image)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert cards: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
