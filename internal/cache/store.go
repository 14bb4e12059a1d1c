// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/searchhub/pkg/types"
)

// Store persists cache entries in SQLite so warm results survive restarts.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates the cache database at path, creating parent
// directories and the schema as needed.
func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS results (
		fingerprint TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		created_at TEXT NOT NULL,
		expires_at TEXT NOT NULL
	)`)
	return err
}

// Get loads an entry by fingerprint. found is false when no row exists;
// expiry is the caller's concern.
func (s *Store) Get(fingerprint string) (results []types.SearchResult, expiresAt time.Time, found bool, err error) {
	var payload, expires string
	row := s.db.QueryRow(
		`SELECT payload, expires_at FROM results WHERE fingerprint = ?`, fingerprint)
	if err := row.Scan(&payload, &expires); err != nil {
		if err == sql.ErrNoRows {
			return nil, time.Time{}, false, nil
		}
		return nil, time.Time{}, false, fmt.Errorf("reading cache entry: %w", err)
	}

	expiresAt, err = time.Parse(time.RFC3339Nano, expires)
	if err != nil {
		return nil, time.Time{}, false, fmt.Errorf("parsing cache expiry: %w", err)
	}
	if err := json.Unmarshal([]byte(payload), &results); err != nil {
		return nil, time.Time{}, false, fmt.Errorf("decoding cache payload: %w", err)
	}
	return results, expiresAt, true, nil
}

// Put upserts an entry.
func (s *Store) Put(fingerprint string, results []types.SearchResult, createdAt, expiresAt time.Time) error {
	payload, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("encoding cache payload: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO results (fingerprint, payload, created_at, expires_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(fingerprint) DO UPDATE SET
		   payload = excluded.payload,
		   created_at = excluded.created_at,
		   expires_at = excluded.expires_at`,
		fingerprint, string(payload),
		createdAt.UTC().Format(time.RFC3339Nano),
		expiresAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

// Evict deletes every entry that expired before now.
func (s *Store) Evict(now time.Time) error {
	_, err := s.db.Exec(`DELETE FROM results WHERE expires_at < ?`,
		now.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("evicting cache entries: %w", err)
	}
	return nil
}
