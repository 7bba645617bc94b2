package localstore

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Blob is a stored binary object with its content type.
type Blob struct {
	Data        []byte
	ContentType string
}

// Put stores a blob under (collection, id), overwriting any existing entry.
// The write is committed before Put returns.
func (s *Store) Put(col Collection, id int64, data []byte, contentType string) error {
	if !col.IsValid() {
		return fmt.Errorf("unknown collection %q", col)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return fmt.Errorf("store not open")
	}

	_, err := s.db.Exec(`
		INSERT INTO blobs (collection, id, data, content_type, size, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			data = excluded.data,
			content_type = excluded.content_type,
			size = excluded.size,
			created_at = excluded.created_at
	`, string(col), id, data, contentType, len(data), time.Now().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("put %s/%d: %w", col, id, err)
	}

	log.Debug().Str("collection", string(col)).Int64("id", id).Int("size", len(data)).Msg("Blob stored")
	return nil
}

// Get returns the blob stored under (collection, id).
// Returns ErrNotFound when the key is absent.
func (s *Store) Get(col Collection, id int64) (*Blob, error) {
	if !col.IsValid() {
		return nil, fmt.Errorf("unknown collection %q", col)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, fmt.Errorf("store not open")
	}

	var blob Blob
	err := s.db.QueryRow(
		"SELECT data, content_type FROM blobs WHERE collection = ? AND id = ?",
		string(col), id,
	).Scan(&blob.Data, &blob.ContentType)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%d: %w", col, id, err)
	}

	return &blob, nil
}

// Has reports whether a blob exists under (collection, id).
func (s *Store) Has(col Collection, id int64) (bool, error) {
	if !col.IsValid() {
		return false, fmt.Errorf("unknown collection %q", col)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return false, fmt.Errorf("store not open")
	}

	var one int
	err := s.db.QueryRow(
		"SELECT 1 FROM blobs WHERE collection = ? AND id = ?",
		string(col), id,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("has %s/%d: %w", col, id, err)
	}

	return true, nil
}

// Delete removes the blob under (collection, id). Deleting an absent key
// succeeds silently.
func (s *Store) Delete(col Collection, id int64) error {
	if !col.IsValid() {
		return fmt.Errorf("unknown collection %q", col)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return fmt.Errorf("store not open")
	}

	if _, err := s.db.Exec(
		"DELETE FROM blobs WHERE collection = ? AND id = ?",
		string(col), id,
	); err != nil {
		return fmt.Errorf("delete %s/%d: %w", col, id, err)
	}

	return nil
}
