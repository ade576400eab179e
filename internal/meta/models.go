package meta

import (
	"fmt"
	"runtime"
	"strings"
)

// Coordinate is a Maven-style library coordinate.
type Coordinate struct {
	Group      string
	Artifact   string
	Version    string
	Classifier string
}

// ParseCoordinate parses "group:artifact:version[:classifier]".
func ParseCoordinate(s string) (Coordinate, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 3 || len(parts) > 4 {
		return Coordinate{}, fmt.Errorf("invalid library coordinate: %q", s)
	}
	for _, p := range parts[:3] {
		if p == "" {
			return Coordinate{}, fmt.Errorf("invalid library coordinate: %q", s)
		}
	}

	c := Coordinate{
		Group:    parts[0],
		Artifact: parts[1],
		Version:  parts[2],
	}
	if len(parts) == 4 {
		c.Classifier = parts[3]
	}
	return c, nil
}

// String renders the coordinate back to its canonical form.
func (c Coordinate) String() string {
	s := c.Group + ":" + c.Artifact + ":" + c.Version
	if c.Classifier != "" {
		s += ":" + c.Classifier
	}
	return s
}

// Path returns the Maven repository path for the coordinate,
// e.g. "com/google/guava/guava/32.1.2/guava-32.1.2.jar".
func (c Coordinate) Path() string {
	file := c.Artifact + "-" + c.Version
	if c.Classifier != "" {
		file += "-" + c.Classifier
	}
	file += ".jar"

	return strings.ReplaceAll(c.Group, ".", "/") + "/" + c.Artifact + "/" + c.Version + "/" + file
}

// Artifact describes one downloadable file and where it lands on disk.
type Artifact struct {
	URL  string `json:"url"`
	SHA1 string `json:"sha1,omitempty"`
	Size int64  `json:"size,omitempty"`
	Path string `json:"path,omitempty"`
}

// AssetIndexRef points at the asset index a version uses.
type AssetIndexRef struct {
	ID        string `json:"id"`
	SHA1      string `json:"sha1,omitempty"`
	Size      int64  `json:"size,omitempty"`
	TotalSize int64  `json:"totalSize,omitempty"`
	URL       string `json:"url"`
}

// LibraryDownloads holds the artifact plus any platform-classified variants.
type LibraryDownloads struct {
	Artifact    *Artifact           `json:"artifact,omitempty"`
	Classifiers map[string]Artifact `json:"classifiers,omitempty"`
}

// Rule restricts a library to particular operating systems.
type Rule struct {
	Action string  `json:"action"`
	OS     *OSRule `json:"os,omitempty"`
}

// OSRule names an operating system inside a Rule.
type OSRule struct {
	Name string `json:"name"`
}

// Library is a wire-format library entry from a version or loader descriptor.
// Mojang-style entries carry explicit download descriptors; loader entries
// usually carry only a coordinate plus a Maven base URL.
type Library struct {
	Name      string            `json:"name"`
	URL       string            `json:"url,omitempty"`
	Downloads *LibraryDownloads `json:"downloads,omitempty"`
	Natives   map[string]string `json:"natives,omitempty"`
	Rules     []Rule            `json:"rules,omitempty"`
}

// Arguments holds the templated argument lists from a descriptor.
type Arguments struct {
	Game []string `json:"game,omitempty"`
	JVM  []string `json:"jvm,omitempty"`
}

// Descriptor is the wire format of a runtime or loader version descriptor.
type Descriptor struct {
	ID           string              `json:"id"`
	InheritsFrom string              `json:"inheritsFrom,omitempty"`
	Type         string              `json:"type,omitempty"`
	MainClass    string              `json:"mainClass"`
	Arguments    Arguments           `json:"arguments"`
	AssetIndex   *AssetIndexRef      `json:"assetIndex,omitempty"`
	Assets       string              `json:"assets,omitempty"`
	Downloads    map[string]Artifact `json:"downloads,omitempty"`
	Libraries    []Library           `json:"libraries"`
}

// ResolvedLibrary is a library entry after merge: one concrete artifact,
// its native applicability, and the priority the merge computed for it.
type ResolvedLibrary struct {
	Coordinate Coordinate
	Artifact   Artifact
	Native     bool
	Priority   int
}

// Key returns the merge key. Ordinary libraries collapse on group:artifact;
// native entries are keyed by the full coordinate including classifier and
// never collapse with non-native entries of the same group:artifact.
func (l ResolvedLibrary) Key() string {
	if l.Native {
		return "native:" + l.Coordinate.String()
	}
	return l.Coordinate.Group + ":" + l.Coordinate.Artifact
}

// Profile is the merged, resolved description of everything needed to run
// one version of the client. It is a value: never mutated after Resolve.
type Profile struct {
	ID             string
	MainClass      string
	AssetIndex     AssetIndexRef
	ClientDownload Artifact
	Libraries      []ResolvedLibrary
	GameArguments  []string
	JVMArguments   []string

	// RawJSON is the base descriptor exactly as fetched, persisted to
	// versions/<id>/<id>.json during provisioning.
	RawJSON []byte
}

// LoaderSpec selects an optional runtime-modification loader to overlay on
// the base client, e.g. {Name: "fabric", Version: "0.16.9"}.
type LoaderSpec struct {
	Name    string
	Version string
}

// CurrentOS maps runtime.GOOS to the descriptor vocabulary.
func CurrentOS() string {
	switch runtime.GOOS {
	case "darwin":
		return "osx"
	case "windows":
		return "windows"
	default:
		return "linux"
	}
}
