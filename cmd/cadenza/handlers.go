package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/cadenzalabs/cadenza-playlist-backend/internal/domain/player"
	"github.com/cadenzalabs/cadenza-playlist-backend/internal/domain/playlist"
	"github.com/cadenzalabs/cadenza-playlist-backend/internal/infra/catalog"
	"github.com/cadenzalabs/cadenza-playlist-backend/internal/infra/localstore"
	"github.com/cadenzalabs/cadenza-playlist-backend/internal/infra/media"
	"github.com/cadenzalabs/cadenza-playlist-backend/internal/infra/netmon"
	"github.com/cadenzalabs/cadenza-playlist-backend/internal/infra/recognize"
	"github.com/cadenzalabs/cadenza-playlist-backend/internal/version"
)

// maxRecognizeSample caps the audio sample accepted for recognition.
const maxRecognizeSample = 25 << 20 // 25 MB

// maxUploadSize caps a song upload (audio plus cover).
const maxUploadSize = 100 << 20 // 100 MB

// apiHandlers carries the REST surface: health, version, network status,
// cached blob serving, song upload and song recognition.
type apiHandlers struct {
	player     *player.Coordinator
	store      *localstore.Store
	monitor    *netmon.Monitor
	gateway    *catalog.Client
	recognizer *recognize.Client
}

func (h *apiHandlers) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("GET /api/v1/version", h.version)
	mux.HandleFunc("GET /api/v1/network", h.network)
	mux.HandleFunc("GET /api/v1/state", h.state)
	mux.HandleFunc("GET /api/v1/blob/{collection}/{id}", h.blob)
	mux.HandleFunc("POST /api/v1/songs", h.uploadSong)
	mux.HandleFunc("POST /api/v1/recognize", h.recognizeSong)
}

func (h *apiHandlers) health(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetStats()
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"error","store":"unavailable"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
		"store": map[string]any{
			"songs":  stats.SongCount,
			"covers": stats.CoverCount,
			"bytes":  stats.TotalBytes,
		},
	})
}

func (h *apiHandlers) version(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(version.GetInfo())
}

func (h *apiHandlers) network(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"online": h.monitor.Online(),
	})
}

// state is a REST fallback for clients without a socket connection.
func (h *apiHandlers) state(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.player.Snapshot())
}

// blob streams a cached audio or cover blob for offline playback.
func (h *apiHandlers) blob(w http.ResponseWriter, r *http.Request) {
	col := localstore.Collection(r.PathValue("collection"))
	if !col.IsValid() {
		http.Error(w, "unknown collection", http.StatusBadRequest)
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var blob *localstore.Blob
	if col == localstore.Songs {
		blob, err = h.player.GetDownloadedSongBlob(id)
	} else {
		blob, err = h.player.GetDownloadedCoverBlob(id)
	}
	if err != nil {
		log.Error().Err(err).Int64("id", id).Msg("Blob read failed")
		http.Error(w, "store error", http.StatusInternalServerError)
		return
	}
	if blob == nil {
		http.Error(w, "not cached", http.StatusNotFound)
		return
	}

	contentType := blob.ContentType
	if contentType == "" {
		contentType = media.SniffContentType(blob.Data, "application/octet-stream")
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Write(blob.Data)
}

// uploadSong ingests a new song: the audio file (and optional cover) go
// to remote object storage, the metadata row goes through the coordinator
// so the playlist picks it up immediately. Title and artist fall back to
// the file's embedded tags when the form leaves them blank.
func (h *apiHandlers) uploadSong(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		http.Error(w, "invalid multipart request", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file field required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
	if err != nil {
		http.Error(w, "read failed", http.StatusInternalServerError)
		return
	}
	if len(audio) == 0 {
		http.Error(w, "empty audio file", http.StatusBadRequest)
		return
	}

	duration := r.FormValue("duration")
	if _, err := playlist.ParseDuration(duration); err != nil {
		http.Error(w, "duration must be M:SS", http.StatusBadRequest)
		return
	}

	title := r.FormValue("title")
	artist := r.FormValue("artist")
	if title == "" || artist == "" {
		if tags, err := media.ReadTags(bytes.NewReader(audio)); err == nil {
			if title == "" {
				title = tags.Title
			}
			if artist == "" {
				artist = tags.Artist
			}
		}
	}
	if title == "" {
		http.Error(w, "title required", http.StatusBadRequest)
		return
	}

	audioKey := catalog.NewObjectKey(header.Filename)
	audioType := media.SniffContentType(audio, header.Header.Get("Content-Type"))
	if _, err := h.gateway.Upload(r.Context(), catalog.BucketSongs, audioKey, audio, audioType); err != nil {
		log.Error().Err(err).Str("key", audioKey).Msg("Audio upload failed")
		http.Error(w, "audio upload failed", http.StatusBadGateway)
		return
	}

	coverURL := ""
	coverKeys := []string(nil)
	if cover, coverHeader, err := r.FormFile("cover"); err == nil {
		defer cover.Close()
		coverData, err := io.ReadAll(io.LimitReader(cover, maxUploadSize))
		if err == nil && len(coverData) > 0 {
			coverKey := catalog.NewObjectKey(coverHeader.Filename)
			coverType := media.SniffContentType(coverData, coverHeader.Header.Get("Content-Type"))
			if _, err := h.gateway.Upload(r.Context(), catalog.BucketCovers, coverKey, coverData, coverType); err != nil {
				// The song still goes in, just without a cover.
				log.Warn().Err(err).Str("key", coverKey).Msg("Cover upload failed")
			} else {
				coverURL = h.gateway.PublicURL(catalog.BucketCovers, coverKey)
				coverKeys = []string{coverKey}
			}
		}
	}

	song, err := h.player.AddSong(r.Context(), playlist.Draft{
		Title:    title,
		Artist:   artist,
		Duration: duration,
		Cover:    coverURL,
		URL:      h.gateway.PublicURL(catalog.BucketSongs, audioKey),
	})
	if err != nil {
		// Roll back the objects the row can no longer reference.
		if rerr := h.gateway.Remove(r.Context(), catalog.BucketSongs, []string{audioKey}); rerr != nil {
			log.Warn().Err(rerr).Msg("Upload rollback failed")
		}
		if len(coverKeys) > 0 {
			if rerr := h.gateway.Remove(r.Context(), catalog.BucketCovers, coverKeys); rerr != nil {
				log.Warn().Err(rerr).Msg("Cover rollback failed")
			}
		}
		log.Error().Err(err).Str("title", title).Msg("Song insert failed")
		http.Error(w, "song insert failed", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(song)
}

// recognizeSong identifies an uploaded audio sample. It asks the
// recognition service first and falls back to the file's embedded tags,
// so uploads still get pre-filled metadata without a service token.
func (h *apiHandlers) recognizeSong(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxRecognizeSample); err != nil {
		http.Error(w, "invalid multipart request", http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file field required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	sample, err := io.ReadAll(io.LimitReader(file, maxRecognizeSample))
	if err != nil {
		http.Error(w, "read failed", http.StatusInternalServerError)
		return
	}

	title, artist := "", ""
	if h.recognizer != nil {
		match, err := h.recognizer.Recognize(r.Context(), bytes.NewReader(sample))
		switch {
		case err == nil:
			title, artist = match.Title, match.Artist
		case errors.Is(err, recognize.ErrNoMatch):
			// fall through to tags
		default:
			log.Warn().Err(err).Msg("Recognition service failed, trying tags")
		}
	}

	if title == "" && artist == "" {
		if tags, err := media.ReadTags(bytes.NewReader(sample)); err == nil {
			title, artist = tags.Title, tags.Artist
		}
	}

	if title == "" && artist == "" {
		http.Error(w, "no match", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"title":  title,
		"artist": artist,
	})
}
