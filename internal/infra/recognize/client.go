// Package recognize is a client for the AudD song recognition service,
// used to pre-fill title/artist for uploaded audio.
package recognize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultBaseURL is the AudD API endpoint
	DefaultBaseURL = "https://api.audd.io/"

	// DefaultTimeout for recognition requests
	DefaultTimeout = 30 * time.Second
)

// Common errors
var (
	// ErrNoMatch indicates the service recognized nothing in the sample.
	ErrNoMatch = errors.New("no track detected")

	// ErrServiceFailure indicates the recognition service failed.
	ErrServiceFailure = errors.New("recognition service failure")
)

// Match is a recognized song.
type Match struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

// Client talks to the recognition service.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option is a functional option for configuring the client
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

// NewClient creates a new recognition client.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type auddResponse struct {
	Status string `json:"status"`
	Result *Match `json:"result"`
	Error  *struct {
		ErrorMessage string `json:"error_message"`
	} `json:"error"`
}

// Recognize submits an audio sample and returns the matched title/artist.
// Returns ErrNoMatch when the service finds nothing.
func (c *Client) Recognize(ctx context.Context, audio io.Reader) (*Match, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("api_token", c.token); err != nil {
		return nil, fmt.Errorf("write field: %w", err)
	}
	if err := writer.WriteField("return", "apple_music,spotify"); err != nil {
		return nil, fmt.Errorf("write field: %w", err)
	}

	part, err := writer.CreateFormFile("file", "audio.mp3")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return nil, fmt.Errorf("copy audio: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warn().Int("status", resp.StatusCode).Msg("Recognition request failed")
		return nil, fmt.Errorf("%w: unexpected status %d", ErrServiceFailure, resp.StatusCode)
	}

	var parsed auddResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrServiceFailure, err)
	}

	if parsed.Status != "success" {
		msg := "unknown error"
		if parsed.Error != nil && parsed.Error.ErrorMessage != "" {
			msg = parsed.Error.ErrorMessage
		}
		log.Warn().Str("error", msg).Msg("Recognition service error")
		return nil, fmt.Errorf("%w: %s", ErrServiceFailure, msg)
	}

	if parsed.Result == nil {
		log.Debug().Msg("No track detected")
		return nil, ErrNoMatch
	}

	log.Info().Str("title", parsed.Result.Title).Str("artist", parsed.Result.Artist).Msg("Track recognized")
	return parsed.Result, nil
}
