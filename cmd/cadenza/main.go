// Package main is the entry point for the Cadenza playlist backend.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cadenzalabs/cadenza-playlist-backend/internal/config"
	"github.com/cadenzalabs/cadenza-playlist-backend/internal/domain/player"
	"github.com/cadenzalabs/cadenza-playlist-backend/internal/infra/catalog"
	"github.com/cadenzalabs/cadenza-playlist-backend/internal/infra/localstore"
	"github.com/cadenzalabs/cadenza-playlist-backend/internal/infra/media"
	"github.com/cadenzalabs/cadenza-playlist-backend/internal/infra/netmon"
	"github.com/cadenzalabs/cadenza-playlist-backend/internal/infra/recognize"
	"github.com/cadenzalabs/cadenza-playlist-backend/internal/transport/socketio"
	"github.com/cadenzalabs/cadenza-playlist-backend/internal/version"
)

// maxExternalClients caps concurrent non-localhost Socket.io connections.
const maxExternalClients = 4

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if err := overrideFromFlags(cfg, os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("Invalid flags")
	}

	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Print startup banner
	versionInfo := version.GetInfo()
	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().Msgf("  %s", versionInfo.String())
	log.Info().Msg("  Offline-First Playlist Backend")
	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().
		Str("port", cfg.Port).
		Str("store", cfg.StorePath).
		Str("catalog", cfg.CatalogURL).
		Bool("recognition", cfg.RecognizeToken != "").
		Msg("Configuration")

	// Open the local media store
	store := localstore.NewStore(cfg.StorePath)
	if err := store.Open(); err != nil {
		log.Fatal().Err(err).Msg("Failed to open media store")
	}
	defer store.Close()

	if stats, err := store.GetStats(); err == nil {
		log.Info().
			Int("songs", stats.SongCount).
			Int("covers", stats.CoverCount).
			Int64("bytes", stats.TotalBytes).
			Msg("Media store opened")
	}

	// Remote catalog and media fetcher
	gateway := catalog.NewClient(cfg.CatalogURL, cfg.CatalogKey)
	fetcher := media.NewFetcher()

	// Coordinator; the batch progress hook is bound to the socket server
	// below, after it exists.
	var socketServer *socketio.Server
	coordinator := player.NewCoordinator(gateway, store, fetcher, store,
		player.WithBatchProgress(func(p player.BatchProgress) {
			if socketServer != nil {
				socketServer.BroadcastDownloadProgress(p)
			}
		}),
	)

	// Restore persisted preferences before anything touches the state.
	if err := coordinator.Restore(); err != nil {
		log.Warn().Err(err).Msg("Snapshot restore failed, starting fresh")
	}

	socketServer, err = socketio.NewServer(coordinator, maxExternalClients)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Socket.io server")
	}
	defer socketServer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connectivity watcher. The initial probe runs synchronously, so the
	// coordinator knows whether it is online before the first fetch.
	monitor := netmon.NewMonitor()
	monitor.Start(ctx, socketServer.HandleNetworkChange)

	if !monitor.Online() {
		// Offline start: run the fetch anyway so the loading flag clears.
		go func() {
			if err := coordinator.FetchSongs(ctx); err != nil {
				log.Error().Err(err).Msg("Initial fetch failed")
			}
		}()
	}

	// Recognition client is optional; without a token the endpoint falls
	// back to embedded tags only.
	var recognizer *recognize.Client
	if cfg.RecognizeToken != "" {
		recognizer = recognize.NewClient(cfg.RecognizeToken)
	}

	// Setup HTTP server
	mux := http.NewServeMux()
	mux.Handle("/socket.io/", socketServer)

	api := &apiHandlers{
		player:     coordinator,
		store:      store,
		monitor:    monitor,
		gateway:    gateway,
		recognizer: recognizer,
	}
	api.register(mux)

	// Serve static files if directory specified (SPA mode)
	if cfg.StaticDir != "" {
		log.Info().Str("dir", cfg.StaticDir).Msg("Serving static files")
		registerSPA(mux, cfg.StaticDir)
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      corsMiddleware(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Info().Msg("Shutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}
	}()

	log.Info().Str("addr", ":"+cfg.Port).Msg("HTTP server listening")
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("HTTP server error")
	}

	log.Info().Msg("Server stopped")
}

// registerSPA serves the frontend bundle, falling back to index.html for
// client-side routes.
func registerSPA(mux *http.ServeMux, dir string) {
	fs := http.FileServer(http.Dir(dir))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		path := dir + r.URL.Path
		if r.URL.Path == "/" {
			path = dir + "/index.html"
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			http.ServeFile(w, r, dir+"/index.html")
			return
		}
		fs.ServeHTTP(w, r)
	})
}
