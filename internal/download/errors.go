package download

import (
	"errors"
	"fmt"
)

// Sentinel errors for download operations.
var (
	// ErrResourceMissing is returned when a file that a download step should
	// have produced is absent on disk. Terminal for that item.
	ErrResourceMissing = errors.New("expected file missing after download")

	// ErrSizeMismatch is returned when a downloaded file's size does not
	// match the size the manifest recorded for it.
	ErrSizeMismatch = errors.New("downloaded file size mismatch")
)

// StatusError represents a terminal (non-retryable) HTTP status.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("download failed (status %d): %s", e.StatusCode, e.URL)
}

// ItemError records the failure of one item in a batch fetch.
type ItemError struct {
	Name string
	Err  error
}

func (e ItemError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e ItemError) Unwrap() error {
	return e.Err
}
