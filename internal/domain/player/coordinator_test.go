package player_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/cadenzalabs/cadenza-playlist-backend/internal/domain/player"
	"github.com/cadenzalabs/cadenza-playlist-backend/internal/domain/playlist"
	"github.com/cadenzalabs/cadenza-playlist-backend/internal/infra/catalog"
	"github.com/cadenzalabs/cadenza-playlist-backend/internal/infra/localstore"
)

func TestFetchSongs(t *testing.T) {
	f := newFixture()

	songs := f.player.Songs()
	if got := songIDs(songs); len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("unexpected playlist ids %v", got)
	}
	if songs[0].Duration != "2:05" {
		t.Errorf("duration = %q, want 2:05", songs[0].Duration)
	}
	if songs[0].Status != playlist.CacheAbsent {
		t.Errorf("fresh song status = %q, want absent", songs[0].Status)
	}
}

func TestFetchSongsOfflineIsNoOp(t *testing.T) {
	f := newFixture()
	f.player.SetOnline(false)

	f.gateway.mu.Lock()
	f.gateway.rows = nil
	f.gateway.mu.Unlock()

	if err := f.player.FetchSongs(context.Background()); err != nil {
		t.Fatalf("offline fetch should not fail: %v", err)
	}

	if got := len(f.player.Songs()); got != 3 {
		t.Errorf("offline fetch should keep the cached playlist, got %d songs", got)
	}
	if f.player.Snapshot().IsLoading {
		t.Error("offline fetch should clear the loading flag")
	}
}

func TestFetchSongsRemoteFailureKeepsPlaylist(t *testing.T) {
	f := newFixture()

	f.gateway.mu.Lock()
	f.gateway.listErr = catalog.ErrRemoteFailure
	f.gateway.mu.Unlock()

	err := f.player.FetchSongs(context.Background())
	if !errors.Is(err, catalog.ErrRemoteFailure) {
		t.Fatalf("expected remote failure, got %v", err)
	}
	if got := len(f.player.Songs()); got != 3 {
		t.Errorf("failed fetch should keep the playlist, got %d songs", got)
	}
	if f.player.Snapshot().IsLoading {
		t.Error("failed fetch should clear the loading flag")
	}
}

func TestFetchSongsDerivesStatusFromStore(t *testing.T) {
	f := newFixture()

	if err := f.player.DownloadSong(context.Background(), 1); err != nil {
		t.Fatalf("download: %v", err)
	}
	if err := f.player.FetchSongs(context.Background()); err != nil {
		t.Fatalf("refetch: %v", err)
	}

	songs := f.player.Songs()
	if songs[0].Status != playlist.CacheDownloaded {
		t.Errorf("song 1 status = %q, want downloaded", songs[0].Status)
	}
	if !songs[0].CoverDownloaded {
		t.Error("song 1 cover flag should survive a refetch")
	}
	if songs[1].Status != playlist.CacheAbsent {
		t.Errorf("song 2 status = %q, want absent", songs[1].Status)
	}
}

func TestFetchSongsClearsDanglingCursor(t *testing.T) {
	f := newFixture()
	f.player.SetCurrentSong(3)
	f.player.SetPlaying(true)

	f.gateway.mu.Lock()
	f.gateway.rows = f.gateway.rows[:2]
	f.gateway.mu.Unlock()

	if err := f.player.FetchSongs(context.Background()); err != nil {
		t.Fatalf("refetch: %v", err)
	}

	state := f.player.Snapshot()
	if state.CurrentSong != nil {
		t.Errorf("cursor should clear when its song disappears, got %+v", state.CurrentSong)
	}
	if state.IsPlaying {
		t.Error("playback should stop when the current song disappears")
	}
}

func TestAddSong(t *testing.T) {
	f := newFixture()

	song, err := f.player.AddSong(context.Background(), playlist.Draft{
		Title:    "Song D",
		Artist:   "Artist D",
		Duration: "3:21",
		URL:      "https://cdn.example/audio/d.mp3",
	})
	if err != nil {
		t.Fatalf("AddSong failed: %v", err)
	}
	if song.ID == 0 {
		t.Error("added song should carry the catalog id")
	}
	if got := len(f.player.Songs()); got != 4 {
		t.Errorf("playlist length = %d, want 4", got)
	}
}

func TestAddSongInvalidDuration(t *testing.T) {
	f := newFixture()

	_, err := f.player.AddSong(context.Background(), playlist.Draft{Title: "Bad", Duration: "3:7"})
	if err == nil {
		t.Fatal("expected an error for a malformed duration")
	}
	if got := len(f.player.Songs()); got != 3 {
		t.Errorf("playlist should be unchanged, got %d songs", got)
	}
}

func TestAddSongGatewayFailure(t *testing.T) {
	f := newFixture()

	f.gateway.mu.Lock()
	f.gateway.insErr = catalog.ErrRemoteFailure
	f.gateway.mu.Unlock()

	_, err := f.player.AddSong(context.Background(), playlist.Draft{Title: "Song D", Duration: "3:21"})
	if !errors.Is(err, catalog.ErrRemoteFailure) {
		t.Fatalf("expected remote failure, got %v", err)
	}
	if got := len(f.player.Songs()); got != 3 {
		t.Errorf("playlist should be unchanged, got %d songs", got)
	}
}

func TestDeleteSong(t *testing.T) {
	f := newFixture()

	if err := f.player.DownloadSong(context.Background(), 1); err != nil {
		t.Fatalf("download: %v", err)
	}
	f.player.SetCurrentSong(1)
	f.player.SetPlaying(true)

	if err := f.player.DeleteSong(context.Background(), 1); err != nil {
		t.Fatalf("DeleteSong failed: %v", err)
	}

	if got := songIDs(f.player.Songs()); len(got) != 2 || got[0] != 2 {
		t.Errorf("unexpected playlist after delete: %v", got)
	}

	state := f.player.Snapshot()
	if state.CurrentSong != nil || state.IsPlaying {
		t.Error("deleting the current song should clear the cursor and stop playback")
	}

	if has, _ := f.store.Has(localstore.Songs, 1); has {
		t.Error("local audio blob should be cleaned up")
	}
	if has, _ := f.store.Has(localstore.Covers, 1); has {
		t.Error("local cover blob should be cleaned up")
	}

	f.gateway.mu.Lock()
	defer f.gateway.mu.Unlock()
	if got := f.gateway.removed[catalog.BucketSongs]; len(got) != 1 || got[0] != "a.mp3" {
		t.Errorf("remote audio cleanup keys = %v, want [a.mp3]", got)
	}
	if got := f.gateway.removed[catalog.BucketCovers]; len(got) != 1 || got[0] != "a.jpg" {
		t.Errorf("remote cover cleanup keys = %v, want [a.jpg]", got)
	}
}

func TestDeleteSongGatewayFailureLeavesEverything(t *testing.T) {
	f := newFixture()

	if err := f.player.DownloadSong(context.Background(), 1); err != nil {
		t.Fatalf("download: %v", err)
	}
	f.player.SetCurrentSong(1)

	f.gateway.mu.Lock()
	f.gateway.delErr = catalog.ErrRemoteFailure
	f.gateway.mu.Unlock()

	err := f.player.DeleteSong(context.Background(), 1)
	if !errors.Is(err, catalog.ErrRemoteFailure) {
		t.Fatalf("expected remote failure, got %v", err)
	}

	if got := len(f.player.Songs()); got != 3 {
		t.Errorf("playlist should be unchanged, got %d songs", got)
	}
	if f.player.CurrentSong() == nil {
		t.Error("cursor should be unchanged after a failed delete")
	}
	if has, _ := f.store.Has(localstore.Songs, 1); !has {
		t.Error("local blob should be untouched after a failed delete")
	}
}

func TestDeleteSongUnknownIDIsNoOp(t *testing.T) {
	f := newFixture()

	if err := f.player.DeleteSong(context.Background(), 99); err != nil {
		t.Fatalf("deleting an unknown id should be a no-op, got %v", err)
	}
	if got := len(f.player.Songs()); got != 3 {
		t.Errorf("playlist should be unchanged, got %d songs", got)
	}
}

func TestDownloadSong(t *testing.T) {
	f := newFixture()

	if err := f.player.DownloadSong(context.Background(), 1); err != nil {
		t.Fatalf("DownloadSong failed: %v", err)
	}

	if !f.player.IsDownloaded(1) {
		t.Error("song 1 should report downloaded")
	}

	blob, err := f.player.GetDownloadedSongBlob(1)
	if err != nil || blob == nil {
		t.Fatalf("audio blob missing: %v", err)
	}
	if string(blob.Data) != "audio-a" {
		t.Errorf("blob data = %q", blob.Data)
	}

	cover, err := f.player.GetDownloadedCoverBlob(1)
	if err != nil || cover == nil {
		t.Fatalf("cover blob missing: %v", err)
	}

	songs := f.player.Songs()
	if !songs[0].CoverDownloaded {
		t.Error("cover flag should be set")
	}
}

func TestDownloadSongFetchFailure(t *testing.T) {
	f := newFixture()

	f.fetcher.mu.Lock()
	f.fetcher.errs["https://cdn.example/audio/b.mp3"] = errors.New("connection reset")
	f.fetcher.mu.Unlock()

	if err := f.player.DownloadSong(context.Background(), 2); err == nil {
		t.Fatal("expected a download error")
	}

	songs := f.player.Songs()
	if songs[1].Status != playlist.CacheAbsent {
		t.Errorf("failed download should leave status absent, got %q", songs[1].Status)
	}
	if has, _ := f.store.Has(localstore.Songs, 2); has {
		t.Error("no blob should be stored after a failed fetch")
	}
}

func TestDownloadSongCoverFailureIsNotFatal(t *testing.T) {
	f := newFixture()

	f.fetcher.mu.Lock()
	f.fetcher.errs["https://cdn.example/covers/a.jpg"] = errors.New("404")
	f.fetcher.mu.Unlock()

	if err := f.player.DownloadSong(context.Background(), 1); err != nil {
		t.Fatalf("a cover failure must not fail the download: %v", err)
	}

	songs := f.player.Songs()
	if songs[0].Status != playlist.CacheDownloaded {
		t.Errorf("status = %q, want downloaded", songs[0].Status)
	}
	if songs[0].CoverDownloaded {
		t.Error("cover flag should stay false when the cover fetch fails")
	}
}

func TestDownloadSongAlreadyDownloadedIsNoOp(t *testing.T) {
	f := newFixture()

	if err := f.player.DownloadSong(context.Background(), 1); err != nil {
		t.Fatalf("download: %v", err)
	}

	f.fetcher.mu.Lock()
	before := f.fetcher.fetches
	f.fetcher.mu.Unlock()

	if err := f.player.DownloadSong(context.Background(), 1); err != nil {
		t.Fatalf("repeat download: %v", err)
	}

	f.fetcher.mu.Lock()
	after := f.fetcher.fetches
	f.fetcher.mu.Unlock()
	if after != before {
		t.Errorf("repeat download fetched %d more times, want 0", after-before)
	}
}

func TestConcurrentDownloadSingleFlight(t *testing.T) {
	f := newFixture()

	started := make(chan struct{})
	release := make(chan struct{})
	blocking := &blockingFetcher{inner: f.fetcher, started: started, release: release}
	f.player = player.NewCoordinator(f.gateway, f.store, blocking, f.snapshots)
	f.player.SetOnline(true)
	if err := f.player.FetchSongs(context.Background()); err != nil {
		t.Fatalf("fetch: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- f.player.DownloadSong(context.Background(), 2)
	}()
	<-started

	// Second request while the first is in flight: returns immediately,
	// does not queue.
	if err := f.player.DownloadSong(context.Background(), 2); err != nil {
		t.Fatalf("duplicate download should be a silent no-op: %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first download failed: %v", err)
	}

	f.fetcher.mu.Lock()
	defer f.fetcher.mu.Unlock()
	if f.fetcher.fetches != 1 {
		t.Errorf("fetch count = %d, want exactly 1", f.fetcher.fetches)
	}
	if !f.player.IsDownloaded(2) {
		t.Error("song 2 should be downloaded")
	}
}

func TestUndownloadSong(t *testing.T) {
	f := newFixture()

	if err := f.player.DownloadSong(context.Background(), 1); err != nil {
		t.Fatalf("download: %v", err)
	}
	if err := f.player.UndownloadSong(1); err != nil {
		t.Fatalf("UndownloadSong failed: %v", err)
	}

	if f.player.IsDownloaded(1) {
		t.Error("song 1 should no longer report downloaded")
	}
	songs := f.player.Songs()
	if songs[0].Status != playlist.CacheAbsent || songs[0].CoverDownloaded {
		t.Errorf("flags not cleared: %+v", songs[0])
	}
	if blob, _ := f.player.GetDownloadedSongBlob(1); blob != nil {
		t.Error("audio blob should be gone")
	}

	// Idempotent on an already-absent entry.
	if err := f.player.UndownloadSong(1); err != nil {
		t.Errorf("repeat undownload should succeed: %v", err)
	}
}

func TestIgnoreSong(t *testing.T) {
	f := newFixture()

	f.player.IgnoreSong(2)
	f.player.IgnoreSong(2)
	if !f.player.IsIgnored(2) {
		t.Error("song 2 should be ignored")
	}
	if got := f.player.Snapshot().IgnoredSongs; len(got) != 1 || got[0] != 2 {
		t.Errorf("ignored set = %v, want [2]", got)
	}

	f.player.UnignoreSong(2)
	f.player.UnignoreSong(2)
	if f.player.IsIgnored(2) {
		t.Error("song 2 should no longer be ignored")
	}
}

func TestGetBlobAbsentReturnsNil(t *testing.T) {
	f := newFixture()

	blob, err := f.player.GetDownloadedSongBlob(1)
	if err != nil {
		t.Fatalf("absence should not be an error: %v", err)
	}
	if blob != nil {
		t.Errorf("expected nil blob, got %+v", blob)
	}
}

func TestGetBlobWrappedAbsenceReturnsNil(t *testing.T) {
	f := newFixture()

	// Stores may wrap the sentinel; absence must still read as absence.
	wrapped := &wrappingStore{fakeStore: f.store}
	p := player.NewCoordinator(f.gateway, wrapped, f.fetcher, f.snapshots)

	blob, err := p.GetDownloadedSongBlob(1)
	if err != nil {
		t.Fatalf("wrapped absence should not be an error: %v", err)
	}
	if blob != nil {
		t.Errorf("expected nil blob, got %+v", blob)
	}
}

// wrappingStore wraps every error the inner store returns.
type wrappingStore struct {
	*fakeStore
}

func (s *wrappingStore) Get(col localstore.Collection, id int64) (*localstore.Blob, error) {
	blob, err := s.fakeStore.Get(col, id)
	if err != nil {
		return nil, fmt.Errorf("query blob: %w", err)
	}
	return blob, nil
}

// blockingFetcher delegates to inner but holds the first fetch until
// released.
type blockingFetcher struct {
	inner   *fakeFetcher
	started chan struct{}
	release chan struct{}
	once    bool
	mu      sync.Mutex
}

func (b *blockingFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	b.mu.Lock()
	first := !b.once
	b.once = true
	b.mu.Unlock()

	if first {
		close(b.started)
		<-b.release
	}
	return b.inner.Fetch(ctx, url)
}
