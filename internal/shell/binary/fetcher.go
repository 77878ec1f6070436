// Package binary acquires the package-manager binary and keeps it in a
// per-channel cache.
package binary

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

	"github.com/hashicorp/go-retryablehttp"
	"github.com/moby/sys/atomicwriter"

	"github.com/artpar/devstack/internal/core/domain"
)

// DefaultBaseURL is the download host of the package manager.
const DefaultBaseURL = "https://getcomposer.org"

// FileName is the name of the cached binary.
const FileName = "composer.phar"

// =============================================================================
// Configuration
// =============================================================================

// Config configures a Fetcher.
type Config struct {
	BaseURL      string        // download host, DefaultBaseURL when empty
	CacheDir     string        // binaries live under {CacheDir}/composer/{channel}
	RetryMax     int           // retries after the first attempt
	RetryWaitMin time.Duration // backoff floor between attempts
	RetryWaitMax time.Duration // backoff ceiling between attempts
	Timeout      time.Duration // per-attempt HTTP timeout
}

// DefaultConfig returns the download defaults for cacheDir.
func DefaultConfig(cacheDir string) Config {
	return Config{
		BaseURL:      DefaultBaseURL,
		CacheDir:     cacheDir,
		RetryMax:     3,
		RetryWaitMin: 500 * time.Millisecond,
		RetryWaitMax: 5 * time.Second,
		Timeout:      2 * time.Minute,
	}
}

// =============================================================================
// Fetcher
// =============================================================================

// Fetcher downloads the binary of a release channel once and reuses the
// cached copy afterwards.
type Fetcher struct {
	client   *retryablehttp.Client
	baseURL  string
	cacheDir string
	logger   *slog.Logger
}

// NewFetcher creates a fetcher.
func NewFetcher(cfg Config, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "binary")

	client := retryablehttp.NewClient()
	client.RetryMax = cfg.RetryMax
	if cfg.RetryWaitMin > 0 {
		client.RetryWaitMin = cfg.RetryWaitMin
	}
	if cfg.RetryWaitMax > 0 {
		client.RetryWaitMax = cfg.RetryWaitMax
	}
	if cfg.Timeout > 0 {
		client.HTTPClient.Timeout = cfg.Timeout
	}
	client.Logger = logger

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Fetcher{
		client:   client,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		cacheDir: cfg.CacheDir,
		logger:   logger,
	}
}

// URL returns the download URL of a channel ("latest-2.x", "2.2.6", ...).
//
// Example:
//
//	f.URL("latest-2.x") // "https://getcomposer.org/download/latest-2.x/composer.phar"
func (f *Fetcher) URL(channel string) string {
	return fmt.Sprintf("%s/download/%s/%s", f.baseURL, channel, FileName)
}

// Path returns the cache location of a channel's binary.
func (f *Fetcher) Path(channel string) string {
	return filepath.Join(f.cacheDir, "composer", channel, FileName)
}

// Cached reports whether the channel's binary is already in the cache.
func (f *Fetcher) Cached(channel string) bool {
	info, err := os.Stat(f.Path(channel))
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// Fetch returns the cached binary of channel, downloading it first when it is
// missing or force is set. Transient failures are retried; the final failure
// is domain.ErrBinaryAcquisition. The cache file is replaced atomically so an
// interrupted download never leaves a truncated binary behind.
func (f *Fetcher) Fetch(ctx context.Context, channel string, force bool) (string, error) {
	path := f.Path(channel)
	if !force && f.Cached(channel) {
		f.logger.Debug("using cached binary", "channel", channel, "path", path)
		return path, nil
	}

	url := f.URL(channel)
	f.logger.Info("downloading binary", "url", url)

	data, err := f.download(ctx, url)
	if err != nil {
		return "", domain.NewStackError("Fetch", "binary", channel, err.Error(), domain.ErrBinaryAcquisition)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", domain.NewStackError("Fetch", "binary", channel, err.Error(), domain.ErrBinaryAcquisition)
	}
	if err := atomicwriter.WriteFile(path, data, 0o755); err != nil {
		return "", domain.NewStackError("Fetch", "binary", channel, err.Error(), domain.ErrBinaryAcquisition)
	}

	f.logger.Info("binary cached", "channel", channel, "path", path, "bytes", len(data))
	return path, nil
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: unexpected status %s", url, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("GET %s: empty response body", url)
	}
	return data, nil
}
