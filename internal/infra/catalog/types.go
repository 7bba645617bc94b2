// Package catalog is the client for the hosted song catalog: metadata rows
// over a PostgREST-style API plus binary assets in object storage.
package catalog

import "errors"

// Common errors
var (
	// ErrRemoteFailure indicates the catalog rejected or failed a request.
	// Callers must treat it as fatal for the single operation only and
	// leave their prior state unchanged.
	ErrRemoteFailure = errors.New("catalog request failed")

	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("row not found")
)

// SongRow is a song metadata row as stored by the catalog.
type SongRow struct {
	ID     int64  `json:"id,omitempty"`
	Name   string `json:"name"`
	Artist string `json:"artist"`
	Length int    `json:"length"` // seconds
	Cover  string `json:"cover,omitempty"`
	URL    string `json:"url,omitempty"`
}

// Bucket names an object storage bucket.
type Bucket string

const (
	// BucketSongs holds uploaded audio files.
	BucketSongs Bucket = "songs"
	// BucketCovers holds uploaded cover images.
	BucketCovers Bucket = "covers"
)
