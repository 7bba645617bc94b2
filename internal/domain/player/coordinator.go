// Package player provides the playback/cache coordinator: the in-memory
// playlist, the playback cursor, loop/shuffle policy, per-song ignore and
// cache state, and the orchestration of downloads against the local store.
package player

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/cadenzalabs/cadenza-playlist-backend/internal/domain/playlist"
	"github.com/cadenzalabs/cadenza-playlist-backend/internal/infra/catalog"
	"github.com/cadenzalabs/cadenza-playlist-backend/internal/infra/localstore"
)

// CatalogGateway is the remote catalog consumed by the coordinator.
type CatalogGateway interface {
	ListSongs(ctx context.Context) ([]catalog.SongRow, error)
	InsertSong(ctx context.Context, row catalog.SongRow) (*catalog.SongRow, error)
	DeleteSong(ctx context.Context, id int64) error
	Remove(ctx context.Context, bucket catalog.Bucket, keys []string) error
}

// BlobStore is the persistent local media store consumed by the coordinator.
type BlobStore interface {
	Put(col localstore.Collection, id int64, data []byte, contentType string) error
	Get(col localstore.Collection, id int64) (*localstore.Blob, error)
	Has(col localstore.Collection, id int64) (bool, error)
	Delete(col localstore.Collection, id int64) error
}

// MediaFetcher downloads media bytes, bypassing intermediate caches.
type MediaFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

// SnapshotStore persists the serialized player snapshot.
type SnapshotStore interface {
	SaveSnapshot(data []byte) error
	LoadSnapshot() ([]byte, error)
}

// Coordinator owns the playback and cache state. All state transitions are
// serialized behind a single mutex; public operations run to completion
// without interleaved mutation of the same fields.
type Coordinator struct {
	gateway   CatalogGateway
	store     BlobStore
	fetcher   MediaFetcher
	snapshots SnapshotStore

	onChange func()
	randFn   func(n int) int

	mu          sync.RWMutex
	songs       []playlist.Song
	currentID   int64 // 0 = no current song
	isPlaying   bool
	isLoading   bool
	isOnline    bool
	volume      float64
	loopMode    playlist.LoopMode
	currentTime float64
	duration    float64
	searchQuery string
	ignored     map[int64]struct{}
	downloading map[int64]struct{}
	cancelBatch bool
	batchActive bool

	onBatchProgress func(BatchProgress)
}

// Option is a functional option for configuring the coordinator
type Option func(*Coordinator)

// WithChangeListener sets a callback invoked after every state change.
func WithChangeListener(fn func()) Option {
	return func(c *Coordinator) {
		c.onChange = fn
	}
}

// WithRandFunc sets the random index source used by shuffle (for testing).
func WithRandFunc(fn func(n int) int) Option {
	return func(c *Coordinator) {
		c.randFn = fn
	}
}

// WithBatchProgress sets a callback receiving batch download progress events.
func WithBatchProgress(fn func(BatchProgress)) Option {
	return func(c *Coordinator) {
		c.onBatchProgress = fn
	}
}

// NewCoordinator creates a coordinator over the given collaborators.
// One coordinator is constructed per process and handed to the transport.
func NewCoordinator(gateway CatalogGateway, store BlobStore, fetcher MediaFetcher, snapshots SnapshotStore, opts ...Option) *Coordinator {
	c := &Coordinator{
		gateway:     gateway,
		store:       store,
		fetcher:     fetcher,
		snapshots:   snapshots,
		randFn:      rand.Intn,
		volume:      1,
		loopMode:    playlist.LoopNone,
		isLoading:   true,
		ignored:     make(map[int64]struct{}),
		downloading: make(map[int64]struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// SetChangeListener replaces the change callback. The transport attaches
// itself here after construction.
func (c *Coordinator) SetChangeListener(fn func()) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// notify invokes the change callback outside the lock.
func (c *Coordinator) notify() {
	c.mu.RLock()
	fn := c.onChange
	c.mu.RUnlock()

	if fn != nil {
		fn()
	}
}

// indexOfLocked returns the playlist index for id, or -1.
// Caller must hold the lock.
func (c *Coordinator) indexOfLocked(id int64) int {
	if id == 0 {
		return -1
	}
	_, idx, _ := lo.FindIndexOf(c.songs, func(s playlist.Song) bool {
		return s.ID == id
	})
	return idx
}

// songFromRow maps a catalog row to a playlist entry and resolves its cache
// status against the local store.
func (c *Coordinator) songFromRow(row catalog.SongRow) playlist.Song {
	song := playlist.Song{
		ID:       row.ID,
		Title:    row.Name,
		Artist:   row.Artist,
		Duration: playlist.FormatDuration(row.Length),
		Cover:    row.Cover,
		URL:      row.URL,
		Status:   playlist.CacheAbsent,
	}

	if has, err := c.store.Has(localstore.Songs, row.ID); err != nil {
		log.Warn().Err(err).Int64("id", row.ID).Msg("Cache lookup failed during fetch")
	} else if has {
		song.Status = playlist.CacheDownloaded
	}

	if has, err := c.store.Has(localstore.Covers, row.ID); err == nil && has {
		song.CoverDownloaded = true
	}

	return song
}

// FetchSongs replaces the in-memory playlist with the catalog contents.
// When offline it is a no-op that preserves the current playlist and clears
// the loading flag. The remote catalog is the source of truth when reachable.
func (c *Coordinator) FetchSongs(ctx context.Context) error {
	c.mu.Lock()
	if !c.isOnline {
		c.isLoading = false
		c.mu.Unlock()
		log.Debug().Msg("Offline, keeping cached playlist")
		c.notify()
		return nil
	}
	c.isLoading = true
	c.mu.Unlock()
	c.notify()

	rows, err := c.gateway.ListSongs(ctx)
	if err != nil {
		c.mu.Lock()
		c.isLoading = false
		c.mu.Unlock()
		c.notify()
		return fmt.Errorf("fetch songs: %w", err)
	}

	songs := make([]playlist.Song, 0, len(rows))
	for _, row := range rows {
		song := c.songFromRow(row)

		c.mu.RLock()
		_, inflight := c.downloading[song.ID]
		c.mu.RUnlock()
		if inflight {
			song.Status = playlist.CacheDownloading
		}

		songs = append(songs, song)
	}

	c.mu.Lock()
	c.songs = songs
	if c.currentID != 0 && c.indexOfLocked(c.currentID) == -1 {
		c.currentID = 0
		c.isPlaying = false
	}
	c.isLoading = false
	c.mu.Unlock()
	c.notify()
	c.persist()

	log.Info().Int("count", len(songs)).Msg("Playlist fetched")
	return nil
}

// AddSong inserts a draft into the catalog and appends the returned song.
// On failure the playlist is left unchanged.
func (c *Coordinator) AddSong(ctx context.Context, draft playlist.Draft) (*playlist.Song, error) {
	length, err := playlist.ParseDuration(draft.Duration)
	if err != nil {
		return nil, fmt.Errorf("add song: %w", err)
	}

	row, err := c.gateway.InsertSong(ctx, catalog.SongRow{
		Name:   draft.Title,
		Artist: draft.Artist,
		Length: length,
		Cover:  draft.Cover,
		URL:    draft.URL,
	})
	if err != nil {
		return nil, fmt.Errorf("add song: %w", err)
	}

	song := playlist.Song{
		ID:       row.ID,
		Title:    draft.Title,
		Artist:   draft.Artist,
		Duration: draft.Duration,
		Cover:    draft.Cover,
		URL:      draft.URL,
		Status:   playlist.CacheAbsent,
	}

	c.mu.Lock()
	if c.indexOfLocked(song.ID) == -1 {
		c.songs = append(c.songs, song)
	}
	c.mu.Unlock()
	c.notify()
	c.persist()

	log.Info().Int64("id", song.ID).Str("title", song.Title).Msg("Song added")
	return &song, nil
}

// AppendSongs appends already-inserted songs to the playlist, skipping
// duplicate ids. Used by bulk upload intake.
func (c *Coordinator) AppendSongs(songs ...playlist.Song) {
	c.mu.Lock()
	for _, song := range songs {
		if c.indexOfLocked(song.ID) == -1 {
			c.songs = append(c.songs, song)
		}
	}
	c.mu.Unlock()
	c.notify()
	c.persist()
}

// DeleteSong deletes the catalog row for id. Only on success does it remove
// the song from the playlist, clear the cursor if it pointed there, and
// best-effort clean up remote assets and local blobs. A gateway failure
// aborts the whole operation with all state untouched.
func (c *Coordinator) DeleteSong(ctx context.Context, id int64) error {
	c.mu.RLock()
	idx := c.indexOfLocked(id)
	var song playlist.Song
	if idx != -1 {
		song = c.songs[idx]
	}
	c.mu.RUnlock()

	if idx == -1 {
		return nil
	}

	if err := c.gateway.DeleteSong(ctx, id); err != nil {
		log.Error().Err(err).Int64("id", id).Msg("Delete song failed")
		return fmt.Errorf("delete song: %w", err)
	}

	// Best-effort cleanup of remote assets and local blobs; failures are
	// logged, the delete is already complete.
	var g errgroup.Group
	if key := objectKeyFromURL(song.URL); key != "" {
		g.Go(func() error {
			if err := c.gateway.Remove(ctx, catalog.BucketSongs, []string{key}); err != nil {
				log.Warn().Err(err).Int64("id", id).Msg("Remote audio cleanup failed")
			}
			return nil
		})
	}
	if key := objectKeyFromURL(song.Cover); key != "" {
		g.Go(func() error {
			if err := c.gateway.Remove(ctx, catalog.BucketCovers, []string{key}); err != nil {
				log.Warn().Err(err).Int64("id", id).Msg("Remote cover cleanup failed")
			}
			return nil
		})
	}
	g.Wait()

	if err := c.store.Delete(localstore.Songs, id); err != nil {
		log.Warn().Err(err).Int64("id", id).Msg("Local audio cleanup failed")
	}
	if err := c.store.Delete(localstore.Covers, id); err != nil {
		log.Warn().Err(err).Int64("id", id).Msg("Local cover cleanup failed")
	}

	c.mu.Lock()
	c.songs = lo.Filter(c.songs, func(s playlist.Song, _ int) bool {
		return s.ID != id
	})
	if c.currentID == id {
		c.currentID = 0
		c.isPlaying = false
	}
	delete(c.ignored, id)
	delete(c.downloading, id)
	c.mu.Unlock()
	c.notify()
	c.persist()

	log.Info().Int64("id", id).Msg("Song deleted")
	return nil
}

// DownloadSong fetches the song's audio and stores it locally. A no-op when
// the song is already downloaded or a download for it is in flight: the
// second caller returns immediately, it does not queue behind the first.
// A cover fetch failure does not fail the song download.
func (c *Coordinator) DownloadSong(ctx context.Context, id int64) error {
	c.mu.Lock()
	idx := c.indexOfLocked(id)
	if idx == -1 {
		c.mu.Unlock()
		return nil
	}
	if c.songs[idx].Status == playlist.CacheDownloaded {
		c.mu.Unlock()
		return nil
	}
	if _, inflight := c.downloading[id]; inflight {
		c.mu.Unlock()
		return nil
	}
	c.downloading[id] = struct{}{}
	c.songs[idx].Status = playlist.CacheDownloading
	url := c.songs[idx].URL
	coverURL := c.songs[idx].Cover
	c.mu.Unlock()
	c.notify()

	fail := func(err error) error {
		c.mu.Lock()
		delete(c.downloading, id)
		if i := c.indexOfLocked(id); i != -1 {
			c.songs[i].Status = playlist.CacheAbsent
		}
		c.mu.Unlock()
		c.notify()
		log.Error().Err(err).Int64("id", id).Msg("Download failed")
		return fmt.Errorf("download song %d: %w", id, err)
	}

	if url == "" {
		return fail(fmt.Errorf("song has no source url"))
	}

	data, contentType, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		return fail(err)
	}
	if err := c.store.Put(localstore.Songs, id, data, contentType); err != nil {
		return fail(err)
	}

	coverOK := false
	if coverURL != "" {
		if cdata, cct, cerr := c.fetcher.Fetch(ctx, coverURL); cerr != nil {
			log.Warn().Err(cerr).Int64("id", id).Msg("Cover download failed")
		} else if perr := c.store.Put(localstore.Covers, id, cdata, cct); perr != nil {
			log.Warn().Err(perr).Int64("id", id).Msg("Cover store failed")
		} else {
			coverOK = true
		}
	}

	c.mu.Lock()
	delete(c.downloading, id)
	if i := c.indexOfLocked(id); i != -1 {
		c.songs[i].Status = playlist.CacheDownloaded
		if coverOK {
			c.songs[i].CoverDownloaded = true
		}
	}
	c.mu.Unlock()
	c.notify()
	c.persist()

	log.Info().Int64("id", id).Int("size", len(data)).Bool("cover", coverOK).Msg("Song downloaded")
	return nil
}

// UndownloadSong removes both local blobs for id and clears the cache flags.
// Idempotent even when nothing is stored.
func (c *Coordinator) UndownloadSong(id int64) error {
	c.mu.RLock()
	idx := c.indexOfLocked(id)
	c.mu.RUnlock()
	if idx == -1 {
		return nil
	}

	if err := c.store.Delete(localstore.Songs, id); err != nil {
		log.Error().Err(err).Int64("id", id).Msg("Undownload failed")
		return fmt.Errorf("undownload song %d: %w", id, err)
	}
	if err := c.store.Delete(localstore.Covers, id); err != nil {
		log.Error().Err(err).Int64("id", id).Msg("Undownload cover failed")
		return fmt.Errorf("undownload song %d: %w", id, err)
	}

	c.mu.Lock()
	if i := c.indexOfLocked(id); i != -1 {
		c.songs[i].Status = playlist.CacheAbsent
		c.songs[i].CoverDownloaded = false
	}
	c.mu.Unlock()
	c.notify()
	c.persist()

	log.Info().Int64("id", id).Msg("Song undownloaded")
	return nil
}

// IsDownloaded reports whether the song's audio blob is cached locally.
func (c *Coordinator) IsDownloaded(id int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	idx := c.indexOfLocked(id)
	return idx != -1 && c.songs[idx].Status == playlist.CacheDownloaded
}

// IsIgnored reports whether the song is excluded from auto-advance.
func (c *Coordinator) IsIgnored(id int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.ignored[id]
	return ok
}

// IgnoreSong excludes a song from next/previous traversal. Idempotent.
func (c *Coordinator) IgnoreSong(id int64) {
	c.mu.Lock()
	c.ignored[id] = struct{}{}
	c.mu.Unlock()
	c.notify()
	c.persist()
}

// UnignoreSong re-includes a song in next/previous traversal. Idempotent.
func (c *Coordinator) UnignoreSong(id int64) {
	c.mu.Lock()
	delete(c.ignored, id)
	c.mu.Unlock()
	c.notify()
	c.persist()
}

// GetDownloadedSongBlob returns the cached audio blob, or nil when absent.
func (c *Coordinator) GetDownloadedSongBlob(id int64) (*localstore.Blob, error) {
	return c.getBlob(localstore.Songs, id)
}

// GetDownloadedCoverBlob returns the cached cover blob, or nil when absent.
func (c *Coordinator) GetDownloadedCoverBlob(id int64) (*localstore.Blob, error) {
	return c.getBlob(localstore.Covers, id)
}

func (c *Coordinator) getBlob(col localstore.Collection, id int64) (*localstore.Blob, error) {
	blob, err := c.store.Get(col, id)
	if err != nil {
		if errors.Is(err, localstore.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return blob, nil
}

// objectKeyFromURL extracts the storage key (last path segment) from a
// public asset URL.
func objectKeyFromURL(url string) string {
	if url == "" {
		return ""
	}
	for i := len(url) - 1; i >= 0; i-- {
		if url[i] == '/' {
			return url[i+1:]
		}
	}
	return url
}
