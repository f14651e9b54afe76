package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/amishk599/jobwatch/internal/seenset"
)

// SQLiteStore keeps the seen sets of all sources in one SQLite database.
// Rows are only ever inserted.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures the
// seen_listings table exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	createTable := `CREATE TABLE IF NOT EXISTS seen_listings (
		seq      INTEGER PRIMARY KEY AUTOINCREMENT,
		source   TEXT NOT NULL,
		key      TEXT NOT NULL,
		title    TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		url      TEXT NOT NULL DEFAULT '',
		posted   TEXT NOT NULL DEFAULT '',
		seen_at  TEXT NOT NULL DEFAULT '',
		UNIQUE (source, key)
	)`
	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating seen_listings table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Load returns the seen set for source ordered by posted timestamp, unknown
// timestamps last, ties in insertion order.
func (s *SQLiteStore) Load(ctx context.Context, source string) (*seenset.Set, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, title, location, url, posted, seen_at
		   FROM seen_listings WHERE source = ?
		  ORDER BY posted IN ('', 'Unknown'), posted, seq`, source)
	if err != nil {
		return nil, fmt.Errorf("querying seen listings for %s: %w", source, err)
	}
	defer rows.Close()

	set := seenset.New()
	for rows.Next() {
		var rec seenset.Record
		var seenAt string
		if err := rows.Scan(&rec.Key, &rec.Title, &rec.Location, &rec.URL, &rec.Posted, &seenAt); err != nil {
			set.MarkSkipped(1)
			continue
		}
		if seenAt != "" {
			if t, err := time.Parse(time.RFC3339, seenAt); err == nil {
				rec.SeenAt = t
			}
		}
		set.Add(rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading seen listings for %s: %w", source, err)
	}
	return set, nil
}

// Persist inserts every record of set that is not already stored. Existing
// rows are left untouched.
func (s *SQLiteStore) Persist(ctx context.Context, source string, set *seenset.Set) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning persist for %s: %w", source, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertSeen)
	if err != nil {
		return fmt.Errorf("preparing persist for %s: %w", source, err)
	}
	defer stmt.Close()

	for _, rec := range set.Records() {
		if _, err := stmt.ExecContext(ctx, seenArgs(source, rec)...); err != nil {
			return fmt.Errorf("persisting %s for %s: %w", rec.Key, source, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing persist for %s: %w", source, err)
	}
	return nil
}

// Append records one listing as seen. If it already exists the call is a no-op.
func (s *SQLiteStore) Append(ctx context.Context, source string, rec seenset.Record) error {
	if _, err := s.db.ExecContext(ctx, insertSeen, seenArgs(source, rec)...); err != nil {
		return fmt.Errorf("marking %s as seen for %s: %w", rec.Key, source, err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const insertSeen = `INSERT OR IGNORE INTO seen_listings
	(source, key, title, location, url, posted, seen_at) VALUES (?, ?, ?, ?, ?, ?, ?)`

func seenArgs(source string, rec seenset.Record) []any {
	var seenAt string
	if !rec.SeenAt.IsZero() {
		seenAt = rec.SeenAt.UTC().Format(time.RFC3339)
	}
	return []any{source, rec.Key, rec.Title, rec.Location, rec.URL, rec.Posted, seenAt}
}
