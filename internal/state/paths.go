package state

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// AppDirName is the directory name used under the XDG config and data roots.
	AppDirName = "go-mcl"

	// Subdirectories of the data root.
	VersionsSubdir     = "versions"
	LibrariesSubdir    = "libraries"
	AssetsSubdir       = "assets"
	AssetIndexesSubdir = "indexes"
	AssetObjectsSubdir = "objects"
	NativesSubdir      = "natives"

	// File names under the config root.
	ConfigFileName      = "config.yaml"
	CredentialsFileName = "credentials.json"
	SessionLockFileName = "go-mcl.lock"
	ClientPIDFileName   = "client.pid"
)

// GetConfigDir returns the go-mcl configuration directory,
// ~/.config/go-mcl by default (XDG_CONFIG_HOME aware).
func GetConfigDir() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		configHome = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configHome, AppDirName), nil
}

// GetDataDir returns the go-mcl data directory that holds everything
// provisioning downloads: versions, libraries, assets and staged natives.
// Defaults to ~/.local/share/go-mcl (XDG_DATA_HOME aware).
func GetDataDir() (string, error) {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		dataHome = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataHome, AppDirName), nil
}

// Layout resolves every path the launcher touches relative to one data
// directory. Constructing it explicitly (instead of calling the Get*Dir
// helpers at each use site) keeps tests on temp directories trivial.
type Layout struct {
	ConfigDir string
	DataDir   string
}

// DefaultLayout builds a Layout from the XDG environment.
func DefaultLayout() (*Layout, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return nil, err
	}
	dataDir, err := GetDataDir()
	if err != nil {
		return nil, err
	}
	return &Layout{ConfigDir: configDir, DataDir: dataDir}, nil
}

// VersionDir returns versions/<id>/ for a version identifier.
func (l *Layout) VersionDir(versionID string) string {
	return filepath.Join(l.DataDir, VersionsSubdir, versionID)
}

// VersionJSONPath returns versions/<id>/<id>.json.
func (l *Layout) VersionJSONPath(versionID string) string {
	return filepath.Join(l.VersionDir(versionID), versionID+".json")
}

// VersionJarPath returns versions/<id>/<id>.jar.
func (l *Layout) VersionJarPath(versionID string) string {
	return filepath.Join(l.VersionDir(versionID), versionID+".jar")
}

// LibraryPath returns libraries/<maven path> for a library's relative path.
func (l *Layout) LibraryPath(relative string) string {
	return filepath.Join(l.DataDir, LibrariesSubdir, filepath.FromSlash(relative))
}

// AssetIndexPath returns assets/indexes/<indexID>.json.
func (l *Layout) AssetIndexPath(indexID string) string {
	return filepath.Join(l.DataDir, AssetsSubdir, AssetIndexesSubdir, indexID+".json")
}

// AssetObjectPath returns assets/objects/<2-hex-prefix>/<hash>.
func (l *Layout) AssetObjectPath(hash string) string {
	prefix := hash
	if len(prefix) > 2 {
		prefix = prefix[:2]
	}
	return filepath.Join(l.DataDir, AssetsSubdir, AssetObjectsSubdir, prefix, hash)
}

// AssetsRoot returns the assets/ root directory.
func (l *Layout) AssetsRoot() string {
	return filepath.Join(l.DataDir, AssetsSubdir)
}

// NativesDir returns natives/<versionID>/, the staging directory for
// extracted platform binaries.
func (l *Layout) NativesDir(versionID string) string {
	return filepath.Join(l.DataDir, NativesSubdir, versionID)
}

// CredentialsPath returns the fixed credential file path under the config dir.
func (l *Layout) CredentialsPath() string {
	return filepath.Join(l.ConfigDir, CredentialsFileName)
}

// SessionLockPath returns the path of the single-session lock file.
func (l *Layout) SessionLockPath() string {
	return filepath.Join(l.ConfigDir, SessionLockFileName)
}

// ClientPIDPath returns the path of the persisted client process handle.
func (l *Layout) ClientPIDPath() string {
	return filepath.Join(l.ConfigDir, ClientPIDFileName)
}

// ConfigPath returns the main configuration file path.
func (l *Layout) ConfigPath() string {
	return filepath.Join(l.ConfigDir, ConfigFileName)
}

// InitDirs creates the directory skeleton the launcher expects.
func (l *Layout) InitDirs() error {
	dirs := []string{
		l.ConfigDir,
		filepath.Join(l.DataDir, VersionsSubdir),
		filepath.Join(l.DataDir, LibrariesSubdir),
		filepath.Join(l.DataDir, AssetsSubdir, AssetIndexesSubdir),
		filepath.Join(l.DataDir, AssetsSubdir, AssetObjectsSubdir),
		filepath.Join(l.DataDir, NativesSubdir),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// EnsureDir ensures that a directory exists, creating it if necessary.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to ensure directory %s: %w", path, err)
	}
	return nil
}
