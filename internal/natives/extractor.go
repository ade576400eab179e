// Package natives stages platform binary libraries out of fetched archives.
package natives

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/steviee/go-mcl/internal/meta"
	"github.com/steviee/go-mcl/internal/state"
)

// ErrArchiveInvalid is returned when a native archive cannot be opened,
// typically because an earlier download left it undersized or corrupt.
var ErrArchiveInvalid = errors.New("native archive invalid")

// binarySuffixes are the platform binary file endings worth extracting.
var binarySuffixes = []string{".so", ".dll", ".dylib", ".jnilib"}

// Result aggregates an extraction pass. A failed archive never stops the
// remaining archives; it is recorded here instead.
type Result struct {
	Extracted int
	Skipped   int
	Errors    []ArchiveError
}

// ArchiveError records the failure of one archive.
type ArchiveError struct {
	Coordinate string
	Err        error
}

func (e ArchiveError) Error() string {
	return fmt.Sprintf("%s: %v", e.Coordinate, e.Err)
}

func (e ArchiveError) Unwrap() error {
	return e.Err
}

// Extractor pulls platform binaries out of native library archives into a
// staging directory.
type Extractor struct {
	layout *state.Layout
}

// NewExtractor creates an Extractor over the given layout.
func NewExtractor(layout *state.Layout) *Extractor {
	return &Extractor{layout: layout}
}

// Extract copies every platform binary from the profile's native libraries
// into nativesDir. Files already present in nativesDir are never
// overwritten, so repeated provisioning is idempotent.
func (e *Extractor) Extract(profile *meta.Profile, nativesDir string) (*Result, error) {
	if err := state.EnsureDir(nativesDir); err != nil {
		return nil, err
	}

	result := &Result{}

	for _, lib := range profile.Libraries {
		if !lib.Native {
			continue
		}

		archivePath := e.layout.LibraryPath(lib.Artifact.Path)
		if err := extractArchive(archivePath, nativesDir, result); err != nil {
			slog.Warn("native extraction failed",
				"library", lib.Coordinate.String(),
				"error", err)
			result.Errors = append(result.Errors, ArchiveError{
				Coordinate: lib.Coordinate.String(),
				Err:        err,
			})
		}
	}

	slog.Debug("native extraction complete",
		"dir", nativesDir,
		"extracted", result.Extracted,
		"skipped", result.Skipped,
		"failed", len(result.Errors))

	return result, nil
}

// extractArchive copies the binary entries of one archive into destDir.
func extractArchive(archivePath, destDir string, result *Result) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrArchiveInvalid, err)
	}
	defer func() {
		_ = reader.Close()
	}()

	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() || !isBinaryEntry(entry.Name) {
			continue
		}

		dest := filepath.Join(destDir, filepath.Base(entry.Name))

		if _, err := os.Stat(dest); err == nil {
			result.Skipped++
			continue
		}

		if err := copyEntry(entry, dest); err != nil {
			return err
		}
		result.Extracted++
	}

	return nil
}

// isBinaryEntry reports whether an archive entry looks like a platform
// binary. META-INF bookkeeping is excluded regardless of suffix.
func isBinaryEntry(name string) bool {
	if strings.HasPrefix(name, "META-INF/") {
		return false
	}
	for _, suffix := range binarySuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// copyEntry writes one archive entry to dest.
func copyEntry(entry *zip.File, dest string) error {
	src, err := entry.Open()
	if err != nil {
		return fmt.Errorf("open archive entry %s: %w", entry.Name, err)
	}
	defer func() {
		_ = src.Close()
	}()

	//nolint:gosec // G304: dest is built from the entry base name under our staging dir
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0755)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}

	//nolint:gosec // G110: native archives are size-checked jars, not attacker input
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		_ = os.Remove(dest)
		return fmt.Errorf("extract %s: %w", entry.Name, err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dest, err)
	}

	return nil
}
