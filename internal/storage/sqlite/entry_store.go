// Package sqlite provides an embedded SQLite entry store for single-node
// deployments.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/JakeFAU/robot-leaderboard/internal/leaderboard"
)

// ErrEntryNotFound is returned by Update and Delete when no row matches.
var ErrEntryNotFound = errors.New("entry not found")

const schema = `
CREATE TABLE IF NOT EXISTS tracked_bots (
	id           TEXT PRIMARY KEY,
	bot_url      TEXT NOT NULL UNIQUE,
	bot_name     TEXT NOT NULL,
	weight_class TEXT NOT NULL,
	rank         INTEGER NOT NULL,
	total_points REAL NOT NULL DEFAULT 0
)`

const columns = "id, bot_url, bot_name, weight_class, rank, total_points"

// EntryStore keeps tracked entries in a SQLite database.
type EntryStore struct {
	db    *sql.DB
	idGen leaderboard.IDGenerator
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string, idGen leaderboard.IDGenerator) (*EntryStore, error) {
	if path == "" {
		return nil, fmt.Errorf("store.sqlite.path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	store, err := New(ctx, db, idGen)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// New wraps an existing database handle and applies the schema.
func New(ctx context.Context, db *sql.DB, idGen leaderboard.IDGenerator) (*EntryStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if idGen == nil {
		return nil, fmt.Errorf("id generator is required")
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("create tracked_bots: %w", err)
	}
	return &EntryStore{db: db, idGen: idGen}, nil
}

// Close releases the database handle.
func (s *EntryStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}

// FindByURL looks an entry up by its source URL.
func (s *EntryStore) FindByURL(ctx context.Context, sourceURL string) (leaderboard.Entry, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+columns+` FROM tracked_bots WHERE bot_url = ? ORDER BY rowid LIMIT 1`, sourceURL)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return leaderboard.Entry{}, false, nil
	}
	if err != nil {
		return leaderboard.Entry{}, false, fmt.Errorf("select entry by url: %w", err)
	}
	return entry, true, nil
}

// Insert adds a row. Inserting a URL that already exists updates that row
// in place and keeps its ID.
func (s *EntryStore) Insert(ctx context.Context, sourceURL string, fields leaderboard.Fields) (leaderboard.Entry, error) {
	id, err := s.idGen.NewID()
	if err != nil {
		return leaderboard.Entry{}, fmt.Errorf("generate entry id: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `
INSERT INTO tracked_bots (id, bot_url, bot_name, weight_class, rank, total_points)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (bot_url) DO UPDATE SET
	bot_name = excluded.bot_name,
	weight_class = excluded.weight_class,
	rank = excluded.rank,
	total_points = excluded.total_points
RETURNING `+columns,
		id, sourceURL, fields.DisplayName, fields.WeightClass, fields.Rank, fields.TotalScore)
	entry, err := scanEntry(row)
	if err != nil {
		return leaderboard.Entry{}, fmt.Errorf("insert entry: %w", err)
	}
	return entry, nil
}

// Update overwrites the mutable columns of a row.
func (s *EntryStore) Update(ctx context.Context, id string, fields leaderboard.Fields) (leaderboard.Entry, error) {
	row := s.db.QueryRowContext(ctx, `
UPDATE tracked_bots SET bot_name = ?, weight_class = ?, rank = ?, total_points = ?
WHERE id = ?
RETURNING `+columns,
		fields.DisplayName, fields.WeightClass, fields.Rank, fields.TotalScore, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return leaderboard.Entry{}, ErrEntryNotFound
	}
	if err != nil {
		return leaderboard.Entry{}, fmt.Errorf("update entry: %w", err)
	}
	return entry, nil
}

// Delete removes a row by ID.
func (s *EntryStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tracked_bots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if n == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// List returns every row in insertion order.
func (s *EntryStore) List(ctx context.Context) ([]leaderboard.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+columns+` FROM tracked_bots ORDER BY rowid`)
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

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (leaderboard.Entry, error) {
	var e leaderboard.Entry
	if err := row.Scan(&e.ID, &e.SourceURL, &e.DisplayName, &e.WeightClass, &e.Rank, &e.TotalScore); err != nil {
		return leaderboard.Entry{}, err //nolint:wrapcheck // callers wrap with the statement context
	}
	return e, nil
}
