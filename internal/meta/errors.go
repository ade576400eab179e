package meta

import (
	"errors"
	"fmt"
)

// Sentinel errors for version metadata operations.
var (
	// ErrVersionNotFound is returned when the requested version id is not in
	// the upstream manifest.
	ErrVersionNotFound = errors.New("version not found in manifest")

	// ErrLoaderNotSupported is returned for a loader name the resolver does
	// not know how to fetch metadata for.
	ErrLoaderNotSupported = errors.New("loader not supported")

	// ErrDescriptorInvalid is returned when a fetched descriptor fails a
	// basic shape check (missing main class, unparseable coordinate, ...).
	ErrDescriptorInvalid = errors.New("invalid version descriptor")
)

// APIError represents an upstream metadata endpoint error with status code.
type APIError struct {
	StatusCode int
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("metadata API error (status %d): %s", e.StatusCode, e.URL)
}

// NewAPIError creates a new APIError.
func NewAPIError(statusCode int, url string) *APIError {
	return &APIError{StatusCode: statusCode, URL: url}
}
