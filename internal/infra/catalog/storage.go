package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// NewObjectKey builds a collision-free storage key for an uploaded file,
// keeping the original extension so public URLs stay recognizable.
func NewObjectKey(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return uuid.NewString() + ext
}

// Upload stores bytes under bucket/key and returns the object path.
func (c *Client) Upload(ctx context.Context, bucket Bucket, key string, data []byte, contentType string) (string, error) {
	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.baseURL, bucket, key)

	req, err := c.newRequest(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRemoteFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		log.Warn().
			Str("bucket", string(bucket)).
			Str("key", key).
			Int("status", resp.StatusCode).
			Msg("Storage upload failed")
		return "", fmt.Errorf("%w: unexpected status %d", ErrRemoteFailure, resp.StatusCode)
	}

	log.Info().
		Str("bucket", string(bucket)).
		Str("key", key).
		Int("size", len(data)).
		Msg("Storage object uploaded")
	return key, nil
}

// PublicURL returns the public URL for an object path.
func (c *Client) PublicURL(bucket Bucket, objectPath string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", c.baseURL, bucket, objectPath)
}

// Remove deletes objects from a bucket. Missing keys are not an error.
func (c *Client) Remove(ctx context.Context, bucket Bucket, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	url := fmt.Sprintf("%s/storage/v1/object/%s", c.baseURL, bucket)

	payload, err := json.Marshal(map[string][]string{"prefixes": keys})
	if err != nil {
		return fmt.Errorf("encode keys: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodDelete, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		log.Warn().
			Str("bucket", string(bucket)).
			Strs("keys", keys).
			Int("status", resp.StatusCode).
			Msg("Storage remove failed")
		return fmt.Errorf("%w: unexpected status %d", ErrRemoteFailure, resp.StatusCode)
	}

	log.Debug().Str("bucket", string(bucket)).Strs("keys", keys).Msg("Storage objects removed")
	return nil
}
