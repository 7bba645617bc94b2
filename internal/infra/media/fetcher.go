// Package media fetches song/cover bytes over HTTP and inspects media
// payloads (content sniffing, ID3 tag pre-fill).
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultTimeout for media fetch requests
	DefaultTimeout = 60 * time.Second

	// DefaultMaxSize is the maximum payload to download (100MB)
	DefaultMaxSize = 100 * 1024 * 1024
)

// ErrUnavailable indicates the media could not be fetched.
var ErrUnavailable = errors.New("media unavailable")

// Fetcher downloads media bytes. Every call re-retrieves fresh bytes;
// intermediate HTTP caches are bypassed so a download always reflects the
// current remote object.
type Fetcher struct {
	httpClient *http.Client
	maxSize    int64
}

// FetcherOption is a functional option for configuring the fetcher
type FetcherOption func(*Fetcher)

// WithFetchClient sets a custom HTTP client
func WithFetchClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.httpClient = client
	}
}

// WithMaxSize sets the maximum payload size in bytes
func WithMaxSize(n int64) FetcherOption {
	return func(f *Fetcher) {
		f.maxSize = n
	}
}

// NewFetcher creates a new media fetcher.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		maxSize: DefaultMaxSize,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Fetch downloads the bytes at url and returns them with their content type.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}

	// Bypass intermediate caches: each download must see fresh bytes
	req.Header.Set("Cache-Control", "no-cache, no-store")
	req.Header.Set("Pragma", "no-cache")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warn().Str("url", url).Int("status", resp.StatusCode).Msg("Media fetch failed")
		return nil, "", fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize))
	if err != nil {
		return nil, "", fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty body", ErrUnavailable)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = SniffContentType(data, "application/octet-stream")
	}

	log.Debug().Str("url", url).Int("size", len(data)).Str("contentType", contentType).Msg("Media fetched")
	return data, contentType, nil
}
