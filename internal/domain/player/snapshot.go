package player

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/cadenzalabs/cadenza-playlist-backend/internal/domain/playlist"
	"github.com/cadenzalabs/cadenza-playlist-backend/internal/infra/localstore"
)

// savedState is the durable slice of player state: preferences and cache
// flags only. Playback position, cursor and the playlist itself are not
// persisted; the playlist is re-derived from the catalog and the store.
type savedState struct {
	LoopMode     playlist.LoopMode `json:"loopMode"`
	Volume       float64           `json:"volume"`
	IgnoredSongs []int64           `json:"ignoredSongs"`
	Songs        []savedSong       `json:"songs"`
}

type savedSong struct {
	ID              int64 `json:"id"`
	Downloaded      bool  `json:"downloaded"`
	CoverDownloaded bool  `json:"coverDownloaded"`
}

// persist writes the durable state slice to the snapshot store. Failures
// are logged, not surfaced; persistence never blocks a state transition.
func (c *Coordinator) persist() {
	if c.snapshots == nil {
		return
	}

	c.mu.RLock()
	saved := savedState{
		LoopMode:     c.loopMode,
		Volume:       c.volume,
		IgnoredSongs: sortedIDs(c.ignored),
		Songs:        make([]savedSong, 0, len(c.songs)),
	}
	for _, song := range c.songs {
		saved.Songs = append(saved.Songs, savedSong{
			ID:              song.ID,
			Downloaded:      song.Downloaded(),
			CoverDownloaded: song.CoverDownloaded,
		})
	}
	c.mu.RUnlock()

	data, err := json.Marshal(saved)
	if err != nil {
		log.Error().Err(err).Msg("Snapshot marshal failed")
		return
	}
	if err := c.snapshots.SaveSnapshot(data); err != nil {
		log.Error().Err(err).Msg("Snapshot save failed")
	}
}

// Restore loads the persisted snapshot and applies it. Cache flags applied
// here are provisional: the next fetch re-derives them from the store, so a
// stale snapshot cannot claim blobs that are gone. A missing snapshot is
// not an error.
func (c *Coordinator) Restore() error {
	if c.snapshots == nil {
		return nil
	}

	data, err := c.snapshots.LoadSnapshot()
	if err != nil {
		if errors.Is(err, localstore.ErrNotFound) {
			log.Debug().Msg("No snapshot to restore")
			return nil
		}
		return err
	}

	var saved savedState
	if err := json.Unmarshal(data, &saved); err != nil {
		log.Warn().Err(err).Msg("Discarding unreadable snapshot")
		return nil
	}

	c.mu.Lock()
	if saved.LoopMode.IsValid() {
		c.loopMode = saved.LoopMode
	}
	if saved.Volume >= 0 && saved.Volume <= 1 {
		c.volume = saved.Volume
	}
	c.ignored = make(map[int64]struct{}, len(saved.IgnoredSongs))
	for _, id := range saved.IgnoredSongs {
		c.ignored[id] = struct{}{}
	}
	for _, entry := range saved.Songs {
		if idx := c.indexOfLocked(entry.ID); idx != -1 {
			if entry.Downloaded {
				c.songs[idx].Status = playlist.CacheDownloaded
			}
			c.songs[idx].CoverDownloaded = entry.CoverDownloaded
		}
	}
	c.mu.Unlock()
	c.notify()

	log.Info().
		Str("loopMode", string(saved.LoopMode)).
		Float64("volume", saved.Volume).
		Int("ignored", len(saved.IgnoredSongs)).
		Msg("Snapshot restored")
	return nil
}
