package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultTimeout for catalog HTTP requests
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize is the maximum response body size to read (10MB)
	MaxResponseSize = 10 * 1024 * 1024
)

// Client talks to the hosted catalog.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option is a functional option for configuring the catalog client
type Option func(*Client)

// WithBaseURL sets a custom base URL (useful for testing)
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// NewClient creates a new catalog client.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Client) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	return req, nil
}

// ListSongs fetches all song metadata rows.
func (c *Client) ListSongs(ctx context.Context) ([]SongRow, error) {
	url := c.baseURL + "/rest/v1/songs?select=*&order=id.asc"

	req, err := c.newRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warn().Int("status", resp.StatusCode).Msg("Catalog list songs failed")
		return nil, fmt.Errorf("%w: unexpected status %d", ErrRemoteFailure, resp.StatusCode)
	}

	var rows []SongRow
	if err := json.NewDecoder(io.LimitReader(resp.Body, MaxResponseSize)).Decode(&rows); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrRemoteFailure, err)
	}

	log.Debug().Int("count", len(rows)).Msg("Catalog songs listed")
	return rows, nil
}

// InsertSong creates a new metadata row and returns it with the assigned id.
func (c *Client) InsertSong(ctx context.Context, row SongRow) (*SongRow, error) {
	url := c.baseURL + "/rest/v1/songs"

	row.ID = 0 // id is assigned by the catalog
	payload, err := json.Marshal([]SongRow{row})
	if err != nil {
		return nil, fmt.Errorf("encode row: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		log.Warn().Int("status", resp.StatusCode).Msg("Catalog insert song failed")
		return nil, fmt.Errorf("%w: unexpected status %d", ErrRemoteFailure, resp.StatusCode)
	}

	var rows []SongRow
	if err := json.NewDecoder(io.LimitReader(resp.Body, MaxResponseSize)).Decode(&rows); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrRemoteFailure, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty insert response", ErrRemoteFailure)
	}

	log.Info().Int64("id", rows[0].ID).Str("name", rows[0].Name).Msg("Catalog song inserted")
	return &rows[0], nil
}

// DeleteSong deletes the metadata row for the given id.
func (c *Client) DeleteSong(ctx context.Context, id int64) error {
	url := fmt.Sprintf("%s/rest/v1/songs?id=eq.%d", c.baseURL, id)

	req, err := c.newRequest(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteFailure, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		log.Info().Int64("id", id).Msg("Catalog song deleted")
		return nil
	case http.StatusNotFound:
		return ErrNotFound
	default:
		log.Warn().Int64("id", id).Int("status", resp.StatusCode).Msg("Catalog delete song failed")
		return fmt.Errorf("%w: unexpected status %d", ErrRemoteFailure, resp.StatusCode)
	}
}
