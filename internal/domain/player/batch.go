package player

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/cadenzalabs/cadenza-playlist-backend/internal/domain/playlist"
)

// BatchProgress describes one step of a batch download run.
type BatchProgress struct {
	SongID    int64
	Completed int
	Total     int
	Err       error
}

// DownloadAll downloads every song that is not yet cached, sequentially.
// Individual failures are reported through the progress callback and do not
// stop the run. Cancellation is cooperative: CancelDownloads stops the run
// before the next song, the in-flight one completes.
func (c *Coordinator) DownloadAll(ctx context.Context) error {
	c.mu.Lock()
	if c.batchActive {
		c.mu.Unlock()
		return nil
	}
	c.batchActive = true
	c.cancelBatch = false
	pending := make([]int64, 0, len(c.songs))
	for _, song := range c.songs {
		if song.Status != playlist.CacheDownloaded {
			pending = append(pending, song.ID)
		}
	}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.batchActive = false
		c.mu.Unlock()
	}()

	total := len(pending)
	log.Info().Int("pending", total).Msg("Batch download started")

	for i, id := range pending {
		select {
		case <-ctx.Done():
			log.Info().Msg("Batch download cancelled by context")
			return ctx.Err()
		default:
		}

		c.mu.RLock()
		cancelled := c.cancelBatch
		c.mu.RUnlock()
		if cancelled {
			log.Info().Int("completed", i).Int("total", total).Msg("Batch download cancelled")
			return nil
		}

		err := c.DownloadSong(ctx, id)
		if c.onBatchProgress != nil {
			c.onBatchProgress(BatchProgress{
				SongID:    id,
				Completed: i + 1,
				Total:     total,
				Err:       err,
			})
		}
	}

	log.Info().Int("total", total).Msg("Batch download finished")
	return nil
}

// CancelDownloads requests that an in-progress batch download stop before
// its next song. Already-stored blobs are kept.
func (c *Coordinator) CancelDownloads() {
	c.mu.Lock()
	c.cancelBatch = true
	c.mu.Unlock()
	log.Info().Msg("Batch download cancel requested")
}

// BatchActive reports whether a batch download run is in progress.
func (c *Coordinator) BatchActive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.batchActive
}
