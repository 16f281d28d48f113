package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// ErrNotFound is returned when the referenced object does not exist in the
// bucket. Jobs failing on it are never retried.
var ErrNotFound = errors.New("object not found")

// ErrUploadFailed is returned when the storage service rejects an upload.
var ErrUploadFailed = errors.New("upload failed")

// Client talks to a Supabase storage bucket over its REST API.
type Client struct {
	supabaseURL string
	serviceKey  string
	bucket      string
	httpClient  *http.Client
}

// NewClient creates a storage client for the given bucket.
func NewClient(supabaseURL, serviceKey, bucket string) *Client {
	return &Client{
		supabaseURL: supabaseURL,
		serviceKey:  serviceKey,
		bucket:      bucket,
		httpClient:  &http.Client{},
	}
}

// Upload stores media under a fresh object path and returns the blob
// reference to persist on the job.
func (c *Client) Upload(ctx context.Context, filename string, data []byte, contentType string) (string, error) {
	ext := filepath.Ext(filename)
	path := fmt.Sprintf("uploads/%s%s", uuid.New().String(), ext)
	uploadURL := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.supabaseURL, c.bucket, path)

	req, err := http.NewRequestWithContext(ctx, "POST", uploadURL, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: %s", ErrUploadFailed, string(body))
	}

	return path, nil
}

// Fetch downloads the object behind blobRef into a temporary file and
// returns its path. The caller owns the file and should remove it when done.
func (c *Client) Fetch(ctx context.Context, blobRef string) (string, error) {
	objectURL := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.supabaseURL, c.bucket, blobRef)

	req, err := http.NewRequestWithContext(ctx, "GET", objectURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("%w: %s", ErrNotFound, blobRef)
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("failed to fetch object %s: status %d: %s", blobRef, resp.StatusCode, string(body))
	}

	tmp, err := os.CreateTemp("", "media-*"+filepath.Ext(blobRef))
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write media to disk: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}

	return tmp.Name(), nil
}

// Delete removes the object behind blobRef. Missing objects are not an error.
func (c *Client) Delete(ctx context.Context, blobRef string) error {
	objectURL := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.supabaseURL, c.bucket, blobRef)

	req, err := http.NewRequestWithContext(ctx, "DELETE", objectURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusNotFound {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("failed to delete object %s: status %d: %s", blobRef, resp.StatusCode, string(body))
	}

	return nil
}
