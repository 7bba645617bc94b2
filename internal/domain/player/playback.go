package player

import (
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/cadenzalabs/cadenza-playlist-backend/internal/domain/playlist"
)

// SetCurrentSong moves the cursor to the song with the given id, or clears
// it when id is 0. Ids not present in the playlist are ignored.
func (c *Coordinator) SetCurrentSong(id int64) {
	c.mu.Lock()
	if id == 0 {
		c.currentID = 0
		c.isPlaying = false
	} else if c.indexOfLocked(id) != -1 {
		c.currentID = id
	}
	c.mu.Unlock()
	c.notify()
}

// TogglePlay flips the playing flag.
func (c *Coordinator) TogglePlay() {
	c.mu.Lock()
	c.isPlaying = !c.isPlaying
	c.mu.Unlock()
	c.notify()
}

// SetPlaying sets the playing flag directly.
func (c *Coordinator) SetPlaying(playing bool) {
	c.mu.Lock()
	c.isPlaying = playing
	c.mu.Unlock()
	c.notify()
}

// ResetPlayingState stops playback and rewinds the position, keeping the
// cursor where it is.
func (c *Coordinator) ResetPlayingState() {
	c.mu.Lock()
	c.isPlaying = false
	c.currentTime = 0
	c.mu.Unlock()
	c.notify()
}

// SetVolume clamps the requested volume into [0, 1] and applies it.
func (c *Coordinator) SetVolume(volume float64) {
	if volume < 0 {
		volume = 0
	}
	if volume > 1 {
		volume = 1
	}

	c.mu.Lock()
	c.volume = volume
	c.mu.Unlock()
	c.notify()
	c.persist()
}

// ToggleMute sets the volume to 0 when it is nonzero, and back to full
// when it is 0. The pre-mute level is not remembered.
func (c *Coordinator) ToggleMute() {
	c.mu.Lock()
	if c.volume != 0 {
		c.volume = 0
	} else {
		c.volume = 1
	}
	c.mu.Unlock()
	c.notify()
	c.persist()
}

// SetCurrentTime records the playback position reported by the client.
func (c *Coordinator) SetCurrentTime(seconds float64) {
	c.mu.Lock()
	c.currentTime = seconds
	c.mu.Unlock()
	c.notify()
}

// SetDuration records the duration of the current track.
func (c *Coordinator) SetDuration(seconds float64) {
	c.mu.Lock()
	c.duration = seconds
	c.mu.Unlock()
	c.notify()
}

// SetLoopMode applies a loop mode. Invalid values are dropped.
func (c *Coordinator) SetLoopMode(mode playlist.LoopMode) {
	if !mode.IsValid() {
		log.Warn().Str("mode", string(mode)).Msg("Invalid loop mode ignored")
		return
	}

	c.mu.Lock()
	c.loopMode = mode
	c.mu.Unlock()
	c.notify()
	c.persist()
}

// SetSearchQuery records the current search filter.
func (c *Coordinator) SetSearchQuery(query string) {
	c.mu.Lock()
	c.searchQuery = query
	c.mu.Unlock()
	c.notify()
}

// FilteredSongs returns the playlist entries matching the current search
// query by title or artist, case-insensitively.
func (c *Coordinator) FilteredSongs() []playlist.Song {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.searchQuery == "" {
		return append([]playlist.Song(nil), c.songs...)
	}

	query := strings.ToLower(c.searchQuery)
	return lo.Filter(c.songs, func(s playlist.Song, _ int) bool {
		return strings.Contains(strings.ToLower(s.Title), query) ||
			strings.Contains(strings.ToLower(s.Artist), query)
	})
}

// SetOnline applies a connectivity transition from the network monitor.
func (c *Coordinator) SetOnline(online bool) {
	c.mu.Lock()
	changed := c.isOnline != online
	c.isOnline = online
	c.mu.Unlock()

	if changed {
		c.notify()
	}
}

// Online reports the coordinator's view of connectivity.
func (c *Coordinator) Online() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isOnline
}

// TotalDuration returns the summed playlist duration in M:SS form.
func (c *Coordinator) TotalDuration() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return playlist.FormatDuration(playlist.TotalSeconds(c.songs))
}

// PlayNext advances the cursor to the next non-ignored song, wrapping
// circularly. When the unskipped wraparound lands on index 0 and the loop
// mode is off, playback stops instead of wrapping. When every candidate is
// ignored, the cursor clears and playback stops.
func (c *Coordinator) PlayNext() {
	c.mu.Lock()

	n := len(c.songs)
	if n == 0 {
		c.currentID = 0
		c.isPlaying = false
		c.mu.Unlock()
		c.notify()
		return
	}

	cur := c.indexOfLocked(c.currentID)
	next := (cur + 1) % n

	if next == 0 && c.loopMode == playlist.LoopNone {
		c.currentID = 0
		c.isPlaying = false
		c.mu.Unlock()
		c.notify()
		return
	}

	// The current song stays a candidate: a one-song playlist on loop
	// replays itself, and when everything else is ignored the cursor
	// wraps back to where it was.
	idx := next
	for steps := 0; steps < n; steps++ {
		if _, skip := c.ignored[c.songs[idx].ID]; !skip {
			c.currentID = c.songs[idx].ID
			c.isPlaying = true
			c.mu.Unlock()
			c.notify()
			return
		}
		idx = (idx + 1) % n
	}

	// Every song is ignored.
	c.currentID = 0
	c.isPlaying = false
	c.mu.Unlock()
	c.notify()
}

// PlayPrevious moves the cursor to the previous non-ignored song, always
// wrapping regardless of loop mode. When every candidate is ignored, the
// cursor clears and playback stops.
func (c *Coordinator) PlayPrevious() {
	c.mu.Lock()

	n := len(c.songs)
	if n == 0 {
		c.currentID = 0
		c.isPlaying = false
		c.mu.Unlock()
		c.notify()
		return
	}

	cur := c.indexOfLocked(c.currentID)
	idx := ((cur-1)%n + n) % n

	for steps := 0; steps < n; steps++ {
		if _, skip := c.ignored[c.songs[idx].ID]; !skip {
			c.currentID = c.songs[idx].ID
			c.isPlaying = true
			c.mu.Unlock()
			c.notify()
			return
		}
		idx = ((idx-1)%n + n) % n
	}

	// Every song is ignored.
	c.currentID = 0
	c.isPlaying = false
	c.mu.Unlock()
	c.notify()
}

// ShuffleAndPlay jumps the cursor to a uniformly random song and starts
// playback. Ignored songs are eligible; ignore only governs auto-advance.
func (c *Coordinator) ShuffleAndPlay() {
	c.mu.Lock()

	n := len(c.songs)
	if n == 0 {
		c.mu.Unlock()
		return
	}

	c.currentID = c.songs[c.randFn(n)].ID
	c.isPlaying = true
	c.mu.Unlock()
	c.notify()
}
