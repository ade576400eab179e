package download

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/steviee/go-mcl/internal/meta"
	"github.com/steviee/go-mcl/internal/state"
)

const (
	// AssetBaseURL is the Mojang asset object CDN.
	AssetBaseURL = "https://resources.download.minecraft.net"

	// DefaultConcurrency bounds the download fan-out. Items are independent
	// and idempotent, so no ordering is required across them.
	DefaultConcurrency = 8
)

// Result aggregates the outcome of a batch fetch. A failed item never
// aborts the rest of the batch; it lands in Errors instead.
type Result struct {
	Succeeded int
	Skipped   int
	Errors    []ItemError
}

// Failed reports whether any item failed.
func (r *Result) Failed() bool {
	return len(r.Errors) > 0
}

// Fetcher ensures every file a resolved profile references exists locally.
type Fetcher struct {
	layout       *state.Layout
	downloader   Downloader
	assetBaseURL string
	concurrency  int
}

// FetcherConfig holds Fetcher configuration.
type FetcherConfig struct {
	Layout       *state.Layout
	Downloader   Downloader
	AssetBaseURL string
	Concurrency  int
}

// NewFetcher creates a Fetcher. Layout and Downloader are required.
func NewFetcher(config *FetcherConfig) *Fetcher {
	assetBase := config.AssetBaseURL
	if assetBase == "" {
		assetBase = AssetBaseURL
	}

	concurrency := config.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	return &Fetcher{
		layout:       config.Layout,
		downloader:   config.Downloader,
		assetBaseURL: assetBase,
		concurrency:  concurrency,
	}
}

// item is one unit of work in a batch: a URL, a destination and the size
// the manifest recorded for it (0 when unknown).
type item struct {
	name string
	url  string
	dest string
	size int64
}

// assetIndex is the wire format of assets/indexes/<id>.json.
type assetIndex struct {
	Objects map[string]struct {
		Hash string `json:"hash"`
		Size int64  `json:"size"`
	} `json:"objects"`
}

// FetchAll downloads the version descriptor, the client jar, every library
// artifact, the asset index and every asset object it references. Files
// whose on-disk size already matches the recorded size are skipped, so the
// whole operation is resumable.
func (f *Fetcher) FetchAll(ctx context.Context, profile *meta.Profile) (*Result, error) {
	result := &Result{}

	// The version descriptor was already fetched during resolution; persist
	// it rather than downloading it a second time.
	if len(profile.RawJSON) > 0 {
		jsonPath := f.layout.VersionJSONPath(profile.ID)
		if upToDate(jsonPath, int64(len(profile.RawJSON))) {
			result.Skipped++
		} else {
			if err := state.AtomicWrite(jsonPath, profile.RawJSON, 0644); err != nil {
				return nil, fmt.Errorf("persist version descriptor: %w", err)
			}
			result.Succeeded++
		}
	}

	items := make([]item, 0, len(profile.Libraries)+2)

	if profile.ClientDownload.URL != "" {
		items = append(items, item{
			name: "client:" + profile.ID,
			url:  profile.ClientDownload.URL,
			dest: f.layout.VersionJarPath(profile.ID),
			size: profile.ClientDownload.Size,
		})
	}

	for _, lib := range profile.Libraries {
		items = append(items, item{
			name: "library:" + lib.Coordinate.String(),
			url:  lib.Artifact.URL,
			dest: f.layout.LibraryPath(lib.Artifact.Path),
			size: lib.Artifact.Size,
		})
	}

	f.fetchBatch(ctx, items, result)

	// Asset objects are only known once the index is on disk, so the index
	// is fetched before the object batch.
	if profile.AssetIndex.URL != "" {
		assetItems, err := f.assetItems(ctx, profile, result)
		if err != nil {
			result.Errors = append(result.Errors, ItemError{
				Name: "asset-index:" + profile.AssetIndex.ID,
				Err:  err,
			})
		} else {
			f.fetchBatch(ctx, assetItems, result)
		}
	}

	slog.Info("fetch complete",
		"version", profile.ID,
		"succeeded", result.Succeeded,
		"skipped", result.Skipped,
		"failed", len(result.Errors))

	return result, nil
}

// assetItems downloads and parses the asset index, returning one item per
// referenced asset object.
func (f *Fetcher) assetItems(ctx context.Context, profile *meta.Profile, result *Result) ([]item, error) {
	indexPath := f.layout.AssetIndexPath(profile.AssetIndex.ID)

	if upToDate(indexPath, profile.AssetIndex.Size) {
		result.Skipped++
	} else {
		if err := f.downloader.Download(ctx, profile.AssetIndex.URL, indexPath, profile.AssetIndex.Size); err != nil {
			return nil, err
		}
		result.Succeeded++
	}

	data, err := os.ReadFile(indexPath)
	if err != nil {
		return nil, fmt.Errorf("read asset index: %w", err)
	}

	var index assetIndex
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("parse asset index: %w", err)
	}

	items := make([]item, 0, len(index.Objects))
	for name, obj := range index.Objects {
		if len(obj.Hash) < 2 {
			continue
		}
		items = append(items, item{
			name: "asset:" + name,
			url:  fmt.Sprintf("%s/%s/%s", f.assetBaseURL, obj.Hash[:2], obj.Hash),
			dest: f.layout.AssetObjectPath(obj.Hash),
			size: obj.Size,
		})
	}

	return items, nil
}

// fetchBatch runs the items with bounded concurrency, aggregating per-item
// failures into the result. The group never carries an error: one failed
// item must not cancel its siblings.
func (f *Fetcher) fetchBatch(ctx context.Context, items []item, result *Result) {
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)

	for _, it := range items {
		it := it
		g.Go(func() error {
			if upToDate(it.dest, it.size) {
				mu.Lock()
				result.Skipped++
				mu.Unlock()
				return nil
			}

			err := f.downloader.Download(ctx, it.url, it.dest, it.size)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				slog.Warn("download failed",
					"item", it.name,
					"error", err)
				result.Errors = append(result.Errors, ItemError{Name: it.name, Err: err})
			} else {
				result.Succeeded++
			}
			return nil
		})
	}

	_ = g.Wait()
}

// upToDate reports whether dest already exists with the recorded size.
// Size 0 means the manifest did not record one; existence is enough then.
func upToDate(dest string, size int64) bool {
	info, err := os.Stat(dest)
	if err != nil {
		return false
	}
	if size <= 0 {
		return true
	}
	return info.Size() == size
}
