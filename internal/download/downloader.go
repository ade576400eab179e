package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/steviee/go-mcl/internal/retry"
	"github.com/steviee/go-mcl/internal/state"
)

const (
	// DefaultTimeout is the per-request timeout for file downloads. Asset
	// objects are small but client jars are not, hence the generous value.
	DefaultTimeout = 120 * time.Second

	// UserAgent is the user agent string sent with download requests.
	UserAgent = "go-mcl/dev (https://github.com/steviee/go-mcl)"
)

// Downloader is the single download capability the fetcher depends on.
// The implementation is chosen once at construction time; call sites never
// branch on downloader flavor.
type Downloader interface {
	// Download fetches url into dest. A positive expectedSize is verified
	// after the transfer; zero means the size is unknown.
	Download(ctx context.Context, url, dest string, expectedSize int64) error
}

// HTTPDownloader downloads over HTTP with the shared retry policy.
// Redirects are followed by the underlying client.
type HTTPDownloader struct {
	httpClient *http.Client
	userAgent  string
	policy     retry.Policy
}

// HTTPConfig holds HTTPDownloader configuration.
type HTTPConfig struct {
	Timeout   time.Duration
	UserAgent string
	Retry     retry.Policy
}

// NewHTTPDownloader creates an HTTP downloader.
func NewHTTPDownloader(config *HTTPConfig) *HTTPDownloader {
	if config == nil {
		config = &HTTPConfig{}
	}

	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}

	if config.UserAgent == "" {
		config.UserAgent = UserAgent
	}

	if config.Retry.MaxAttempts == 0 {
		config.Retry = retry.DefaultPolicy()
	}

	return &HTTPDownloader{
		httpClient: &http.Client{Timeout: config.Timeout},
		userAgent:  config.UserAgent,
		policy:     config.Retry,
	}
}

// Download implements Downloader.
func (d *HTTPDownloader) Download(ctx context.Context, url, dest string, expectedSize int64) error {
	if err := state.EnsureDir(filepath.Dir(dest)); err != nil {
		return err
	}

	err := d.policy.Do(ctx, func(ctx context.Context) error {
		return d.downloadOnce(ctx, url, dest, expectedSize)
	})
	if err != nil {
		return err
	}

	// The rename below makes this near-impossible, but a missing file here
	// must never be reported as success.
	if _, statErr := os.Stat(dest); statErr != nil {
		return fmt.Errorf("%w: %s", ErrResourceMissing, dest)
	}

	return nil
}

// downloadOnce performs a single transfer attempt into a temp file that is
// renamed over dest on success, so a failed attempt never leaves a partial
// file that the size check would later mistake for a finished one.
func (d *HTTPDownloader) downloadOnce(ctx context.Context, url, dest string, expectedSize int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return retry.Transient(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to the transfer
	case resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= http.StatusInternalServerError:
		return retry.Transient(&StatusError{StatusCode: resp.StatusCode, URL: url})
	default:
		return &StatusError{StatusCode: resp.StatusCode, URL: url}
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	written, copyErr := io.Copy(tmpFile, resp.Body)
	closeErr := tmpFile.Close()

	if copyErr != nil {
		_ = os.Remove(tmpPath)
		return retry.Transient(copyErr)
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", closeErr)
	}

	if expectedSize > 0 && written != expectedSize {
		_ = os.Remove(tmpPath)
		return retry.Transient(fmt.Errorf("%w: got %d bytes, want %d (%s)",
			ErrSizeMismatch, written, expectedSize, url))
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}

	slog.Debug("downloaded file",
		"url", url,
		"dest", dest,
		"bytes", written)

	return nil
}
