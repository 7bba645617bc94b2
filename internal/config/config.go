// Package config loads backend configuration from environment variables.
package config

import (
	"github.com/caarlos0/env/v11"
)

// Config holds the backend configuration loaded from environment variables.
// Command line flags in main may override individual fields.
type Config struct {
	// Port is the HTTP listen port.
	Port string `env:"CADENZA_PORT" envDefault:"3001"`

	// StorePath is the path of the local SQLite media store.
	StorePath string `env:"CADENZA_STORE_PATH" envDefault:"data/mediastore.db"`

	// CatalogURL is the base URL of the hosted catalog (Supabase project URL).
	CatalogURL string `env:"CADENZA_CATALOG_URL,notEmpty"`

	// CatalogKey is the API key sent with every catalog request.
	CatalogKey string `env:"CADENZA_CATALOG_KEY,notEmpty"`

	// RecognizeToken is the AudD API token for the song recognition proxy.
	// The /api/v1/recognize endpoint is disabled when empty.
	RecognizeToken string `env:"AUDD_API_TOKEN"`

	// StaticDir serves a frontend build when set (SPA mode).
	StaticDir string `env:"CADENZA_STATIC_DIR"`

	// Debug enables debug logging.
	Debug bool `env:"CADENZA_DEBUG"`
}

// Load loads configuration from environment variables.
// Returns an error if required fields are missing.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
