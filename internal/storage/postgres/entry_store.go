// Package postgres provides the Postgres-backed entry store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/robot-leaderboard/internal/leaderboard"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// DefaultTable is the table tracked bots live in.
const DefaultTable = "tracked_bots"

// ErrEntryNotFound is returned by Update and Delete when no row matches.
var ErrEntryNotFound = errors.New("entry not found")

// Config controls the Postgres connection pool used for entry rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	// Migrate creates the table when it does not exist.
	Migrate bool
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// EntryStore reads and writes tracked entries in Postgres.
type EntryStore struct {
	pool  pool
	table string
}

// NewEntryStore creates a Postgres-backed EntryStore using the provided config.
func NewEntryStore(ctx context.Context, cfg Config) (*EntryStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.postgres.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store := &EntryStore{pool: p, table: table}
	if cfg.Migrate {
		if err := store.Migrate(ctx); err != nil {
			p.Close()
			return nil, err
		}
	}
	return store, nil
}

// NewEntryStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewEntryStoreWithPool(p pool, table string) (*EntryStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &EntryStore{pool: p, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = DefaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *EntryStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Migrate creates the entry table if needed.
func (s *EntryStore) Migrate(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id           BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	bot_url      TEXT NOT NULL UNIQUE,
	bot_name     TEXT NOT NULL,
	weight_class TEXT NOT NULL,
	rank         INTEGER NOT NULL,
	total_points DOUBLE PRECISION NOT NULL DEFAULT 0
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

func (s *EntryStore) columns() string {
	return "id::text, bot_url, bot_name, weight_class, rank, total_points"
}

// FindByURL looks an entry up by its source URL.
func (s *EntryStore) FindByURL(ctx context.Context, sourceURL string) (leaderboard.Entry, bool, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE bot_url = $1 ORDER BY id LIMIT 1`, s.columns(), s.table)
	entry, err := scanEntry(s.pool.QueryRow(ctx, query, sourceURL))
	if errors.Is(err, pgx.ErrNoRows) {
		return leaderboard.Entry{}, false, nil
	}
	if err != nil {
		return leaderboard.Entry{}, false, fmt.Errorf("select entry by url: %w", err)
	}
	return entry, true, nil
}

// Insert adds a row. A concurrent insert of the same URL from another
// process lands on the unique constraint and turns into an update.
func (s *EntryStore) Insert(ctx context.Context, sourceURL string, fields leaderboard.Fields) (leaderboard.Entry, error) {
	query := fmt.Sprintf(`
INSERT INTO %s (bot_url, bot_name, weight_class, rank, total_points)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (bot_url) DO UPDATE SET
	bot_name = EXCLUDED.bot_name,
	weight_class = EXCLUDED.weight_class,
	rank = EXCLUDED.rank,
	total_points = EXCLUDED.total_points
RETURNING %s`, s.table, s.columns())
	entry, err := scanEntry(s.pool.QueryRow(ctx, query,
		sourceURL, fields.DisplayName, fields.WeightClass, fields.Rank, fields.TotalScore))
	if err != nil {
		return leaderboard.Entry{}, fmt.Errorf("insert entry: %w", err)
	}
	return entry, nil
}

// Update overwrites the mutable columns of a row.
func (s *EntryStore) Update(ctx context.Context, id string, fields leaderboard.Fields) (leaderboard.Entry, error) {
	query := fmt.Sprintf(`
UPDATE %s SET bot_name = $2, weight_class = $3, rank = $4, total_points = $5
WHERE id = $1::bigint
RETURNING %s`, s.table, s.columns())
	entry, err := scanEntry(s.pool.QueryRow(ctx, query,
		id, fields.DisplayName, fields.WeightClass, fields.Rank, fields.TotalScore))
	if errors.Is(err, pgx.ErrNoRows) {
		return leaderboard.Entry{}, ErrEntryNotFound
	}
	if err != nil {
		return leaderboard.Entry{}, fmt.Errorf("update entry: %w", err)
	}
	return entry, nil
}

// Delete removes a row by ID.
func (s *EntryStore) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1::bigint`, s.table)
	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// List returns every row in insertion order.
func (s *EntryStore) List(ctx context.Context) ([]leaderboard.Entry, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY id`, s.columns(), s.table)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	entries := []leaderboard.Entry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

func scanEntry(row pgx.Row) (leaderboard.Entry, error) {
	var e leaderboard.Entry
	if err := row.Scan(&e.ID, &e.SourceURL, &e.DisplayName, &e.WeightClass, &e.Rank, &e.TotalScore); err != nil {
		return leaderboard.Entry{}, err //nolint:wrapcheck // callers wrap with the statement context
	}
	return e, nil
}
