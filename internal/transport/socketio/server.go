// Package socketio provides the Socket.io server for client communication.
package socketio

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zishang520/socket.io/servers/socket/v3"
	"github.com/zishang520/socket.io/v3/pkg/types"

	"github.com/cadenzalabs/cadenza-playlist-backend/internal/domain/player"
	"github.com/cadenzalabs/cadenza-playlist-backend/internal/domain/playlist"
)

// DefaultBroadcastWindow collapses change notifications into one push.
const DefaultBroadcastWindow = 50 * time.Millisecond

// Server handles Socket.io connections and events.
type Server struct {
	io        *socket.Server
	player    *player.Coordinator
	limiter   *ConnectionLimiter
	debouncer *BroadcastDebouncer

	mu      sync.RWMutex
	clients map[string]*socket.Socket
}

// NewServer creates a new Socket.io server over the coordinator and hooks
// itself up as the coordinator's change listener.
func NewServer(coordinator *player.Coordinator, maxExternal int) (*Server, error) {
	opts := socket.DefaultServerOptions()
	opts.SetPingTimeout(20 * time.Second)
	opts.SetPingInterval(25 * time.Second)
	opts.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})

	s := &Server{
		io:      socket.NewServer(nil, opts),
		player:  coordinator,
		limiter: NewConnectionLimiter(maxExternal),
		clients: make(map[string]*socket.Socket),
	}
	s.debouncer = NewBroadcastDebouncer(DefaultBroadcastWindow, s.BroadcastState)

	coordinator.SetChangeListener(s.debouncer.Trigger)
	s.setupHandlers()

	return s, nil
}

// setupHandlers registers all Socket.io event handlers.
func (s *Server) setupHandlers() {
	s.io.On("connection", func(clients ...any) {
		client := clients[0].(*socket.Socket)
		clientID := string(client.Id())
		remoteIP := clientIP(client)

		if evicted := s.limiter.Add(clientID, remoteIP); evicted != "" {
			s.mu.RLock()
			old := s.clients[evicted]
			s.mu.RUnlock()
			if old != nil {
				log.Info().Str("id", evicted).Msg("Evicting oldest external client")
				old.Disconnect(true)
			}
		}

		log.Info().Str("id", clientID).Str("ip", remoteIP).Msg("Client connected")

		s.mu.Lock()
		s.clients[clientID] = client
		s.mu.Unlock()

		// Send initial state after small delay
		go func() {
			time.Sleep(100 * time.Millisecond)
			s.pushState(client)
		}()

		client.On("disconnect", func(args ...any) {
			reason := ""
			if len(args) > 0 {
				if r, ok := args[0].(string); ok {
					reason = r
				}
			}
			log.Info().Str("id", clientID).Str("reason", reason).Msg("Client disconnected")

			s.limiter.Remove(clientID)
			s.mu.Lock()
			delete(s.clients, clientID)
			s.mu.Unlock()
		})

		// Player control events
		client.On("getState", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("getState")
			s.pushState(client)
		})

		client.On("togglePlay", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("togglePlay")
			s.player.TogglePlay()
		})

		client.On("play", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("play")
			if id, ok := argID(args); ok {
				s.player.SetCurrentSong(id)
			}
			s.player.SetPlaying(true)
		})

		client.On("pause", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("pause")
			s.player.SetPlaying(false)
		})

		client.On("next", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("next")
			s.player.PlayNext()
		})

		client.On("prev", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("prev")
			s.player.PlayPrevious()
		})

		// Fired by the client when the current track finishes.
		client.On("ended", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("ended")
			s.player.PlayNext()
		})

		client.On("shuffle", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("shuffle")
			s.player.ShuffleAndPlay()
		})

		client.On("setCurrentSong", func(args ...any) {
			if len(args) > 0 && args[0] == nil {
				s.player.SetCurrentSong(0)
				return
			}
			if id, ok := argID(args); ok {
				log.Debug().Str("id", clientID).Int64("song", id).Msg("setCurrentSong")
				s.player.SetCurrentSong(id)
			}
		})

		client.On("setVolume", func(args ...any) {
			if v, ok := argFloat(args); ok {
				s.player.SetVolume(v)
			}
		})

		client.On("toggleMute", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("toggleMute")
			s.player.ToggleMute()
		})

		client.On("setCurrentTime", func(args ...any) {
			if v, ok := argFloat(args); ok {
				s.player.SetCurrentTime(v)
			}
		})

		client.On("setDuration", func(args ...any) {
			if v, ok := argFloat(args); ok {
				s.player.SetDuration(v)
			}
		})

		client.On("setLoopMode", func(args ...any) {
			if mode, ok := argString(args); ok {
				log.Debug().Str("id", clientID).Str("mode", mode).Msg("setLoopMode")
				s.player.SetLoopMode(playlist.LoopMode(mode))
			}
		})

		client.On("search", func(args ...any) {
			if query, ok := argString(args); ok {
				s.player.SetSearchQuery(query)
			}
		})

		// Cache events
		client.On("downloadSong", func(args ...any) {
			if id, ok := argID(args); ok {
				log.Debug().Str("id", clientID).Int64("song", id).Msg("downloadSong")
				go func() {
					if err := s.player.DownloadSong(context.Background(), id); err != nil {
						log.Error().Err(err).Msg("Download failed")
					}
				}()
			}
		})

		client.On("undownloadSong", func(args ...any) {
			if id, ok := argID(args); ok {
				log.Debug().Str("id", clientID).Int64("song", id).Msg("undownloadSong")
				if err := s.player.UndownloadSong(id); err != nil {
					log.Error().Err(err).Msg("Undownload failed")
				}
			}
		})

		client.On("downloadAll", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("downloadAll")
			go func() {
				if err := s.player.DownloadAll(context.Background()); err != nil {
					log.Error().Err(err).Msg("Batch download failed")
				}
			}()
		})

		client.On("cancelDownloads", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("cancelDownloads")
			s.player.CancelDownloads()
		})

		client.On("ignoreSong", func(args ...any) {
			if id, ok := argID(args); ok {
				s.player.IgnoreSong(id)
			}
		})

		client.On("unignoreSong", func(args ...any) {
			if id, ok := argID(args); ok {
				s.player.UnignoreSong(id)
			}
		})

		// Playlist events
		client.On("fetchSongs", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("fetchSongs")
			go func() {
				if err := s.player.FetchSongs(context.Background()); err != nil {
					log.Error().Err(err).Msg("Fetch songs failed")
				}
			}()
		})

		client.On("addSong", func(args ...any) {
			draft, ok := argDraft(args)
			if !ok {
				return
			}
			log.Debug().Str("id", clientID).Str("title", draft.Title).Msg("addSong")
			go func() {
				if _, err := s.player.AddSong(context.Background(), draft); err != nil {
					log.Error().Err(err).Msg("Add song failed")
					client.Emit("addSongFailed", map[string]any{"title": draft.Title, "error": err.Error()})
				}
			}()
		})

		client.On("deleteSong", func(args ...any) {
			if id, ok := argID(args); ok {
				log.Debug().Str("id", clientID).Int64("song", id).Msg("deleteSong")
				go func() {
					if err := s.player.DeleteSong(context.Background(), id); err != nil {
						log.Error().Err(err).Msg("Delete song failed")
						client.Emit("deleteSongFailed", map[string]any{"id": id, "error": err.Error()})
					}
				}()
			}
		})
	})
}

// pushState sends current state to a client.
func (s *Server) pushState(client *socket.Socket) {
	client.Emit("pushState", s.player.Snapshot())
}

// BroadcastState sends state to all connected clients.
func (s *Server) BroadcastState() {
	state := s.player.Snapshot()
	s.io.Emit("pushState", state)

	if log.Debug().Enabled() {
		data, _ := json.Marshal(state)
		s.mu.RLock()
		clientCount := len(s.clients)
		s.mu.RUnlock()
		log.Debug().RawJSON("state", data).Int("clients", clientCount).Msg("Broadcast state")
	}
}

// BroadcastNetworkStatus tells all clients about a connectivity change.
func (s *Server) BroadcastNetworkStatus(online bool) {
	s.io.Emit("pushNetworkStatus", map[string]any{"online": online})
}

// BroadcastDownloadProgress relays batch download progress to all clients.
func (s *Server) BroadcastDownloadProgress(p player.BatchProgress) {
	payload := map[string]any{
		"songId":    p.SongID,
		"completed": p.Completed,
		"total":     p.Total,
	}
	if p.Err != nil {
		payload["error"] = p.Err.Error()
	}
	s.io.Emit("pushDownloadProgress", payload)
}

// HandleNetworkChange applies a connectivity transition: updates the
// coordinator, tells the clients, and refreshes the playlist when the
// network comes back.
func (s *Server) HandleNetworkChange(online bool) {
	s.player.SetOnline(online)
	s.BroadcastNetworkStatus(online)

	if online {
		go func() {
			if err := s.player.FetchSongs(context.Background()); err != nil {
				log.Error().Err(err).Msg("Refresh after reconnect failed")
			}
		}()
	}
}

// ServeHTTP implements http.Handler for the Socket.io server.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.io.ServeHandler(nil).ServeHTTP(w, r)
}

// Close closes the Socket.io server.
func (s *Server) Close() error {
	s.debouncer.Stop()
	s.io.Close(nil)
	return nil
}

// clientIP extracts the remote address from the socket handshake.
func clientIP(client *socket.Socket) string {
	if h := client.Handshake(); h != nil {
		return h.Address
	}
	return ""
}
