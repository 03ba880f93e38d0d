// Package hub downloads model files from the Hugging Face hub
package hub

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const DefaultBaseURL = "https://huggingface.co"

// Client fetches files for a model repository
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewClient returns a client for the public hub
func NewClient() *Client {
	return &Client{
		BaseURL:    DefaultBaseURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Minute},
	}
}

// Download fetches one file from a model repository into destDir and
// returns the local path. Existing files are kept as-is.
func (c *Client) Download(ctx context.Context, modelID, filename, destDir string) (string, error) {
	dest := filepath.Join(destDir, filename)

	if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
		slog.Info("file already present, skipping download",
			"file", filename, "size", humanize.Bytes(uint64(info.Size())))
		return dest, nil
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", err
	}

	url := c.fileURL(modelID, filename)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	slog.Info("downloading", "file", filename, "url", url)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", filename, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: %s", url, resp.Status)
	}

	tmp, err := os.CreateTemp(destDir, filename+".download*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if err != nil {
		tmp.Close()
		return "", fmt.Errorf("download %s: %w", filename, err)
	}

	if err := tmp.Close(); err != nil {
		return "", err
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", err
	}

	slog.Info("downloaded", "file", filename, "size", humanize.Bytes(uint64(n)))

	return dest, nil
}

// fileURL picks the raw endpoint for text files and the resolve endpoint,
// which follows LFS redirects, for binary ones.
func (c *Client) fileURL(modelID, filename string) string {
	endpoint := "raw"
	if isBinary(filename) {
		endpoint = "resolve"
	}
	return fmt.Sprintf("%s/%s/%s/main/%s", c.BaseURL, modelID, endpoint, filename)
}

func isBinary(filename string) bool {
	for _, suffix := range []string{".safetensors", ".bin", ".gguf", ".h5", ".msgpack"} {
		if strings.HasSuffix(filename, suffix) {
			return true
		}
	}
	return false
}
