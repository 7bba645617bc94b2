// Package localstore provides the persistent local media store: binary
// song/cover blobs keyed by song id, plus the persisted player snapshot.
package localstore

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog/log"
)

const (
	// CurrentSchemaVersion is the current database schema version.
	CurrentSchemaVersion = "1"

	// DefaultDBPath is the default path for the media store database.
	DefaultDBPath = "data/mediastore.db"
)

// ErrNotFound indicates the requested key is absent from the store.
var ErrNotFound = errors.New("not found")

// Collection names a blob collection. Song audio and cover images are
// independent collections over the same id space.
type Collection string

const (
	// Songs holds audio blobs.
	Songs Collection = "songs"
	// Covers holds cover image blobs.
	Covers Collection = "covers"
)

// IsValid reports whether the collection is one of the known values.
func (c Collection) IsValid() bool {
	return c == Songs || c == Covers
}

// Store is the SQLite-backed local media store.
type Store struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

// NewStore creates a new store instance. Open must be called before use.
func NewStore(path string) *Store {
	if path == "" {
		path = DefaultDBPath
	}
	return &Store{
		path: path,
	}
}

// Open opens the database and initializes the schema.
func (s *Store) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Ensure directory exists
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite3", s.path+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("failed to open media store: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s.db = db

	if err := s.initSchema(); err != nil {
		s.db.Close()
		s.db = nil
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Info().Str("path", s.path).Msg("Media store opened")
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

func (s *Store) initSchema() error {
	currentVersion := s.getMetaLocked("schema_version")

	if currentVersion == "" {
		if err := s.createSchema(); err != nil {
			return err
		}
		return s.setMetaLocked("schema_version", CurrentSchemaVersion)
	}

	if currentVersion != CurrentSchemaVersion {
		log.Info().
			Str("current", currentVersion).
			Str("target", CurrentSchemaVersion).
			Msg("Migrating media store schema")
		// Add migration logic here when schema changes
		return s.setMetaLocked("schema_version", CurrentSchemaVersion)
	}

	return nil
}

func (s *Store) createSchema() error {
	schema := `
	-- Binary blobs, two collections (songs, covers) over the song id space
	CREATE TABLE IF NOT EXISTS blobs (
		collection TEXT NOT NULL,
		id INTEGER NOT NULL,
		data BLOB NOT NULL,
		content_type TEXT NOT NULL DEFAULT '',
		size INTEGER NOT NULL,
		created_at TEXT DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (collection, id)
	);

	-- Store metadata (schema version, persisted player snapshot)
	CREATE TABLE IF NOT EXISTS store_meta (
		key TEXT PRIMARY KEY,
		value TEXT,
		updated_at TEXT DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_blobs_collection ON blobs(collection);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	log.Info().Msg("Media store schema created")
	return nil
}

// setMetaLocked sets a metadata value. Caller must hold the lock.
func (s *Store) setMetaLocked(key, value string) error {
	now := time.Now().Format(time.RFC3339)
	_, err := s.db.Exec(`
		INSERT INTO store_meta (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = ?, updated_at = ?
	`, key, value, now, value, now)
	return err
}

// getMetaLocked gets a metadata value, empty string when absent.
// Caller must hold the lock.
func (s *Store) getMetaLocked(key string) string {
	var value string
	err := s.db.QueryRow("SELECT value FROM store_meta WHERE key = ?", key).Scan(&value)
	if err != nil {
		return ""
	}
	return value
}

// Stats provides statistics about the local store.
type Stats struct {
	SongCount     int    `json:"songCount"`
	CoverCount    int    `json:"coverCount"`
	TotalBytes    int64  `json:"totalBytes"`
	SchemaVersion string `json:"schemaVersion"`
}

// GetStats returns store statistics.
func (s *Store) GetStats() (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, fmt.Errorf("store not open")
	}

	stats := &Stats{}

	err := s.db.QueryRow("SELECT COUNT(*) FROM blobs WHERE collection = ?", string(Songs)).Scan(&stats.SongCount)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRow("SELECT COUNT(*) FROM blobs WHERE collection = ?", string(Covers)).Scan(&stats.CoverCount)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRow("SELECT COALESCE(SUM(size), 0) FROM blobs").Scan(&stats.TotalBytes)
	if err != nil {
		return nil, err
	}

	stats.SchemaVersion = s.getMetaLocked("schema_version")

	return stats, nil
}

// Clear removes all blobs from the store (but keeps the snapshot and schema).
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return fmt.Errorf("store not open")
	}

	if _, err := s.db.Exec("DELETE FROM blobs"); err != nil {
		return fmt.Errorf("failed to clear blobs: %w", err)
	}

	log.Info().Msg("Media store cleared")
	return nil
}
