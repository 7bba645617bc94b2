// Package playlist defines the song model shared by the coordinator,
// the local media store and the transport layer.
package playlist

// LoopMode is the playback wraparound policy.
type LoopMode string

const (
	// LoopNone stops playback after the last song.
	LoopNone LoopMode = "none"
	// LoopSingle repeats the current song.
	LoopSingle LoopMode = "single"
	// LoopPlaylist wraps from the last song back to the first.
	LoopPlaylist LoopMode = "playlist"
)

// IsValid reports whether the loop mode is one of the known values.
func (m LoopMode) IsValid() bool {
	switch m {
	case LoopNone, LoopSingle, LoopPlaylist:
		return true
	}
	return false
}

// CacheStatus is the local cache membership of a song's audio blob.
//
// Valid transitions:
//
//	Absent -> Downloading -> Downloaded
//	Downloading -> Absent   (failed download)
//	Downloaded -> Absent    (undownload)
type CacheStatus string

const (
	// CacheAbsent means no audio blob is stored locally.
	CacheAbsent CacheStatus = "absent"
	// CacheDownloading means a download for the song is in flight.
	CacheDownloading CacheStatus = "downloading"
	// CacheDownloaded means the audio blob is stored locally.
	CacheDownloaded CacheStatus = "downloaded"
)

// Song is a playlist entry. The identity is the catalog-assigned id;
// it is unique and immutable after creation.
type Song struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Duration string `json:"duration"` // canonical M:SS
	Cover    string `json:"cover,omitempty"`
	URL      string `json:"url,omitempty"`

	// Status reflects actual presence in the local blob store after any
	// completed download/undownload/fetch. It only diverges while a
	// download is in flight.
	Status          CacheStatus `json:"status"`
	CoverDownloaded bool        `json:"coverDownloaded"`
}

// Downloaded reports whether the song's audio blob is cached locally.
func (s Song) Downloaded() bool {
	return s.Status == CacheDownloaded
}

// Draft is a song without an identity, used for catalog inserts.
type Draft struct {
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Duration string `json:"duration"`
	Cover    string `json:"cover,omitempty"`
	URL      string `json:"url,omitempty"`
}
