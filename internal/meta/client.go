package meta

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/steviee/go-mcl/internal/retry"
)

const (
	// VersionManifestURL is the Mojang API endpoint for the version manifest.
	VersionManifestURL = "https://launchermeta.mojang.com/mc/game/version_manifest.json"

	// FabricMetaBaseURL is the Fabric loader metadata endpoint.
	FabricMetaBaseURL = "https://meta.fabricmc.net/v2"

	// DefaultTimeout is the default HTTP client timeout.
	DefaultTimeout = 30 * time.Second

	// UserAgent is the user agent string sent with API requests.
	UserAgent = "go-mcl/dev (https://github.com/steviee/go-mcl)"
)

// VersionManifest represents the Mojang version manifest response.
type VersionManifest struct {
	Latest struct {
		Release  string `json:"release"`
		Snapshot string `json:"snapshot"`
	} `json:"latest"`
	Versions []VersionInfo `json:"versions"`
}

// VersionInfo represents a single version entry in the manifest.
type VersionInfo struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	URL         string `json:"url"`
	Time        string `json:"time"`
	ReleaseTime string `json:"releaseTime"`
}

// Client fetches version and loader metadata.
type Client struct {
	manifestURL   string
	fabricBaseURL string
	httpClient    *http.Client
	userAgent     string
	policy        retry.Policy
}

// Config holds client configuration.
type Config struct {
	ManifestURL   string
	FabricBaseURL string
	Timeout       time.Duration
	UserAgent     string
	Retry         retry.Policy
}

// NewClient creates a new metadata client.
func NewClient(config *Config) *Client {
	if config == nil {
		config = &Config{}
	}

	if config.ManifestURL == "" {
		config.ManifestURL = VersionManifestURL
	}

	if config.FabricBaseURL == "" {
		config.FabricBaseURL = FabricMetaBaseURL
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

	slog.Debug("creating metadata client",
		"manifest_url", config.ManifestURL,
		"timeout", config.Timeout)

	return &Client{
		manifestURL:   config.ManifestURL,
		fabricBaseURL: config.FabricBaseURL,
		httpClient:    &http.Client{Timeout: config.Timeout},
		userAgent:     config.UserAgent,
		policy:        config.Retry,
	}
}

// GetVersionManifest fetches the version manifest.
func (c *Client) GetVersionManifest(ctx context.Context) (*VersionManifest, error) {
	data, err := c.getJSON(ctx, c.manifestURL)
	if err != nil {
		return nil, err
	}

	var manifest VersionManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	slog.Debug("fetched version manifest",
		"total_versions", len(manifest.Versions),
		"latest_release", manifest.Latest.Release)

	return &manifest, nil
}

// ResolveVersionInfo finds a version entry by id. The literal "latest"
// resolves to the latest release.
func (c *Client) ResolveVersionInfo(ctx context.Context, versionID string) (*VersionInfo, error) {
	manifest, err := c.GetVersionManifest(ctx)
	if err != nil {
		return nil, err
	}

	if versionID == "" || versionID == "latest" {
		versionID = manifest.Latest.Release
	}

	for i := range manifest.Versions {
		if manifest.Versions[i].ID == versionID {
			return &manifest.Versions[i], nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrVersionNotFound, versionID)
}

// GetVersionDescriptor fetches a version descriptor by URL. The raw bytes
// are returned alongside the parsed form so provisioning can persist the
// descriptor exactly as the upstream served it.
func (c *Client) GetVersionDescriptor(ctx context.Context, url string) (*Descriptor, []byte, error) {
	data, err := c.getJSON(ctx, url)
	if err != nil {
		return nil, nil, err
	}

	var desc Descriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, nil, fmt.Errorf("decode version descriptor: %w", err)
	}

	if desc.ID == "" {
		return nil, nil, fmt.Errorf("%w: missing id", ErrDescriptorInvalid)
	}

	return &desc, data, nil
}

// GetLoaderProfile fetches a loader descriptor for the given game version.
// Only the Fabric metadata service is supported.
func (c *Client) GetLoaderProfile(ctx context.Context, gameVersion string, loader LoaderSpec) (*Descriptor, error) {
	if loader.Name != "fabric" {
		return nil, fmt.Errorf("%w: %s", ErrLoaderNotSupported, loader.Name)
	}

	loaderVersion := loader.Version
	if loaderVersion == "" || loaderVersion == "latest" {
		v, err := c.latestFabricLoader(ctx, gameVersion)
		if err != nil {
			return nil, err
		}
		loaderVersion = v
	}

	url := fmt.Sprintf("%s/versions/loader/%s/%s/profile/json", c.fabricBaseURL, gameVersion, loaderVersion)
	data, err := c.getJSON(ctx, url)
	if err != nil {
		return nil, err
	}

	var desc Descriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("decode loader descriptor: %w", err)
	}

	slog.Debug("fetched loader profile",
		"game_version", gameVersion,
		"loader_version", loaderVersion,
		"libraries", len(desc.Libraries))

	return &desc, nil
}

// latestFabricLoader queries the loader listing and returns the newest
// stable loader version for the game version.
func (c *Client) latestFabricLoader(ctx context.Context, gameVersion string) (string, error) {
	url := fmt.Sprintf("%s/versions/loader/%s", c.fabricBaseURL, gameVersion)
	data, err := c.getJSON(ctx, url)
	if err != nil {
		return "", err
	}

	var entries []struct {
		Loader struct {
			Version string `json:"version"`
			Stable  bool   `json:"stable"`
		} `json:"loader"`
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return "", fmt.Errorf("decode loader listing: %w", err)
	}

	for _, e := range entries {
		if e.Loader.Stable {
			return e.Loader.Version, nil
		}
	}
	if len(entries) > 0 {
		return entries[0].Loader.Version, nil
	}

	return "", fmt.Errorf("%w: no fabric loader for %s", ErrVersionNotFound, gameVersion)
}

// getJSON performs a GET with the shared retry policy and returns the body.
func (c *Client) getJSON(ctx context.Context, url string) ([]byte, error) {
	var body []byte

	err := c.policy.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retry.Transient(err)
		}
		defer func() {
			_ = resp.Body.Close()
		}()

		switch {
		case resp.StatusCode == http.StatusOK:
			body, err = io.ReadAll(resp.Body)
			if err != nil {
				return retry.Transient(err)
			}
			return nil

		case resp.StatusCode == http.StatusTooManyRequests,
			resp.StatusCode >= http.StatusInternalServerError:
			return retry.Transient(NewAPIError(resp.StatusCode, url))

		default:
			return NewAPIError(resp.StatusCode, url)
		}
	})
	if err != nil {
		return nil, err
	}

	return body, nil
}
