package player_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/cadenzalabs/cadenza-playlist-backend/internal/domain/player"
	"github.com/cadenzalabs/cadenza-playlist-backend/internal/domain/playlist"
	"github.com/cadenzalabs/cadenza-playlist-backend/internal/infra/catalog"
	"github.com/cadenzalabs/cadenza-playlist-backend/internal/infra/localstore"
)

// fakeGateway is an in-memory catalog.
type fakeGateway struct {
	mu      sync.Mutex
	rows    []catalog.SongRow
	nextID  int64
	listErr error
	insErr  error
	delErr  error
	removed map[catalog.Bucket][]string
}

func newFakeGateway(rows ...catalog.SongRow) *fakeGateway {
	g := &fakeGateway{
		rows:    rows,
		nextID:  1000,
		removed: make(map[catalog.Bucket][]string),
	}
	for _, row := range rows {
		if row.ID >= g.nextID {
			g.nextID = row.ID + 1
		}
	}
	return g
}

func (g *fakeGateway) ListSongs(ctx context.Context) ([]catalog.SongRow, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listErr != nil {
		return nil, g.listErr
	}
	return append([]catalog.SongRow(nil), g.rows...), nil
}

func (g *fakeGateway) InsertSong(ctx context.Context, row catalog.SongRow) (*catalog.SongRow, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.insErr != nil {
		return nil, g.insErr
	}
	row.ID = g.nextID
	g.nextID++
	g.rows = append(g.rows, row)
	return &row, nil
}

func (g *fakeGateway) DeleteSong(ctx context.Context, id int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.delErr != nil {
		return g.delErr
	}
	for i, row := range g.rows {
		if row.ID == id {
			g.rows = append(g.rows[:i], g.rows[i+1:]...)
			break
		}
	}
	return nil
}

func (g *fakeGateway) Remove(ctx context.Context, bucket catalog.Bucket, keys []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removed[bucket] = append(g.removed[bucket], keys...)
	return nil
}

// fakeStore is an in-memory blob store.
type fakeStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
	types map[string]string
	puts  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		blobs: make(map[string][]byte),
		types: make(map[string]string),
	}
}

func blobKey(col localstore.Collection, id int64) string {
	return fmt.Sprintf("%s/%d", col, id)
}

func (s *fakeStore) Put(col localstore.Collection, id int64, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[blobKey(col, id)] = data
	s.types[blobKey(col, id)] = contentType
	s.puts++
	return nil
}

func (s *fakeStore) Get(col localstore.Collection, id int64) (*localstore.Blob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blobs[blobKey(col, id)]
	if !ok {
		return nil, localstore.ErrNotFound
	}
	return &localstore.Blob{Data: data, ContentType: s.types[blobKey(col, id)]}, nil
}

func (s *fakeStore) Has(col localstore.Collection, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blobs[blobKey(col, id)]
	return ok, nil
}

func (s *fakeStore) Delete(col localstore.Collection, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, blobKey(col, id))
	delete(s.types, blobKey(col, id))
	return nil
}

// fakeFetcher serves canned bytes per URL.
type fakeFetcher struct {
	mu      sync.Mutex
	bodies  map[string][]byte
	errs    map[string]error
	fetches int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		bodies: make(map[string][]byte),
		errs:   make(map[string]error),
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if err, ok := f.errs[url]; ok {
		return nil, "", err
	}
	body, ok := f.bodies[url]
	if !ok {
		return nil, "", fmt.Errorf("no body for %s", url)
	}
	return body, "audio/mpeg", nil
}

// fakeSnapshots keeps the latest snapshot in memory.
type fakeSnapshots struct {
	mu    sync.Mutex
	data  []byte
	saves int
}

func (s *fakeSnapshots) SaveSnapshot(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append([]byte(nil), data...)
	s.saves++
	return nil
}

func (s *fakeSnapshots) LoadSnapshot() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return nil, localstore.ErrNotFound
	}
	return append([]byte(nil), s.data...), nil
}

type fixture struct {
	gateway   *fakeGateway
	store     *fakeStore
	fetcher   *fakeFetcher
	snapshots *fakeSnapshots
	player    *player.Coordinator
}

// newFixture builds a coordinator over three catalog songs, online, with
// the playlist already fetched.
func newFixture(opts ...player.Option) *fixture {
	f := &fixture{
		gateway: newFakeGateway(
			catalog.SongRow{ID: 1, Name: "Song A", Artist: "Artist A", Length: 125, URL: "https://cdn.example/audio/a.mp3", Cover: "https://cdn.example/covers/a.jpg"},
			catalog.SongRow{ID: 2, Name: "Song B", Artist: "Artist B", Length: 200, URL: "https://cdn.example/audio/b.mp3"},
			catalog.SongRow{ID: 3, Name: "Song C", Artist: "Artist C", Length: 95, URL: "https://cdn.example/audio/c.mp3"},
		),
		store:     newFakeStore(),
		fetcher:   newFakeFetcher(),
		snapshots: &fakeSnapshots{},
	}
	f.fetcher.bodies["https://cdn.example/audio/a.mp3"] = []byte("audio-a")
	f.fetcher.bodies["https://cdn.example/audio/b.mp3"] = []byte("audio-b")
	f.fetcher.bodies["https://cdn.example/audio/c.mp3"] = []byte("audio-c")
	f.fetcher.bodies["https://cdn.example/covers/a.jpg"] = []byte("cover-a")

	f.player = player.NewCoordinator(f.gateway, f.store, f.fetcher, f.snapshots, opts...)
	f.player.SetOnline(true)
	if err := f.player.FetchSongs(context.Background()); err != nil {
		panic(err)
	}
	return f
}

func songIDs(songs []playlist.Song) []int64 {
	ids := make([]int64, 0, len(songs))
	for _, s := range songs {
		ids = append(ids, s.ID)
	}
	return ids
}
