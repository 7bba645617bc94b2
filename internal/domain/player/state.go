package player

import (
	"sort"

	"github.com/cadenzalabs/cadenza-playlist-backend/internal/domain/playlist"
)

// State is the full player state pushed to clients.
type State struct {
	Songs         []playlist.Song   `json:"songs"`
	CurrentSong   *playlist.Song    `json:"currentSong"`
	IsPlaying     bool              `json:"isPlaying"`
	IsLoading     bool              `json:"isLoading"`
	IsOnline      bool              `json:"isOnline"`
	Volume        float64           `json:"volume"`
	LoopMode      playlist.LoopMode `json:"loopMode"`
	CurrentTime   float64           `json:"currentTime"`
	Duration      float64           `json:"duration"`
	SearchQuery   string            `json:"searchQuery"`
	IgnoredSongs  []int64           `json:"ignoredSongs"`
	Downloading   []int64           `json:"downloading"`
	TotalDuration string            `json:"totalDuration"`
}

// Snapshot returns a copy of the full player state for pushing to clients.
func (c *Coordinator) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()

	state := State{
		Songs:         append([]playlist.Song(nil), c.songs...),
		IsPlaying:     c.isPlaying,
		IsLoading:     c.isLoading,
		IsOnline:      c.isOnline,
		Volume:        c.volume,
		LoopMode:      c.loopMode,
		CurrentTime:   c.currentTime,
		Duration:      c.duration,
		SearchQuery:   c.searchQuery,
		IgnoredSongs:  sortedIDs(c.ignored),
		Downloading:   sortedIDs(c.downloading),
		TotalDuration: playlist.FormatDuration(playlist.TotalSeconds(c.songs)),
	}

	if idx := c.indexOfLocked(c.currentID); idx != -1 {
		song := c.songs[idx]
		state.CurrentSong = &song
	}

	return state
}

// Songs returns a copy of the current playlist.
func (c *Coordinator) Songs() []playlist.Song {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]playlist.Song(nil), c.songs...)
}

// CurrentSong returns the song under the cursor, or nil.
func (c *Coordinator) CurrentSong() *playlist.Song {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if idx := c.indexOfLocked(c.currentID); idx != -1 {
		song := c.songs[idx]
		return &song
	}
	return nil
}

func sortedIDs(set map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
