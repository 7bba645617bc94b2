package main

import (
	"flag"

	"github.com/cadenzalabs/cadenza-playlist-backend/internal/config"
)

// overrideFromFlags layers command line flags over the env-derived
// configuration. Flags the caller does not set leave the config untouched.
func overrideFromFlags(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("cadenza", flag.ContinueOnError)

	port := fs.String("port", cfg.Port, "HTTP server port")
	storePath := fs.String("store", cfg.StorePath, "Path of the local media store")
	staticDir := fs.String("static", cfg.StaticDir, "Directory to serve static files from (optional)")
	debug := fs.Bool("debug", cfg.Debug, "Enable debug logging")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg.Port = *port
	cfg.StorePath = *storePath
	cfg.StaticDir = *staticDir
	cfg.Debug = *debug
	return nil
}
