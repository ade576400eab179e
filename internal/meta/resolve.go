package meta

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

const (
	// PinnedASMVersion is the only version of org.ow2.asm:asm a merged
	// profile may carry. Mixed ASM versions on one classpath break the
	// loader's bytecode transformation at runtime, so the merge pins this
	// regardless of which side supplied the entry.
	PinnedASMVersion = "9.7.1"

	// pinnedMavenBaseURL is where a re-pinned artifact is fetched from when
	// neither descriptor carried the pinned version.
	pinnedMavenBaseURL = "https://maven.fabricmc.net/"
)

// priorityFamilies lists the library groups that are conflict-prone enough
// to deserve version-derived merge priority. Everything else merges with
// priority 0 and the already-present entry wins ties.
var priorityFamilies = map[string]bool{
	"org.ow2.asm":      true,
	"com.google.guava": true,
	"net.java.dev.jna": true,
}

// Resolver produces merged, deduplicated version profiles.
type Resolver struct {
	client *Client
}

// NewResolver creates a Resolver on top of a metadata client.
func NewResolver(client *Client) *Resolver {
	return &Resolver{client: client}
}

// Resolve fetches the base descriptor for versionID, overlays the loader
// descriptor when one is requested, and returns a single flattened profile.
// Resolution is pure: identical inputs and identical upstream descriptors
// yield an identical profile.
func (r *Resolver) Resolve(ctx context.Context, versionID string, loader *LoaderSpec) (*Profile, error) {
	info, err := r.client.ResolveVersionInfo(ctx, versionID)
	if err != nil {
		return nil, err
	}

	base, raw, err := r.client.GetVersionDescriptor(ctx, info.URL)
	if err != nil {
		return nil, err
	}

	osName := CurrentOS()

	baseLibs, err := resolveLibraries(base.Libraries, osName)
	if err != nil {
		return nil, err
	}

	profile := &Profile{
		ID:            base.ID,
		MainClass:     base.MainClass,
		Libraries:     baseLibs,
		GameArguments: append([]string(nil), base.Arguments.Game...),
		JVMArguments:  append([]string(nil), base.Arguments.JVM...),
		RawJSON:       raw,
	}
	if base.AssetIndex != nil {
		profile.AssetIndex = *base.AssetIndex
	}
	if client, ok := base.Downloads["client"]; ok {
		profile.ClientDownload = client
	}

	if loader == nil {
		slog.Debug("resolved profile without loader",
			"version", profile.ID,
			"libraries", len(profile.Libraries))
		return profile, nil
	}

	overlay, err := r.client.GetLoaderProfile(ctx, base.ID, *loader)
	if err != nil {
		return nil, err
	}

	if err := mergeOverlay(profile, base, overlay, osName); err != nil {
		return nil, err
	}

	slog.Debug("resolved profile with loader",
		"version", profile.ID,
		"loader", loader.Name,
		"libraries", len(profile.Libraries))

	return profile, nil
}

// mergeOverlay folds a loader descriptor onto the base profile in place.
func mergeOverlay(profile *Profile, base, overlay *Descriptor, osName string) error {
	if overlay.ID != "" {
		profile.ID = overlay.ID
	}
	if overlay.MainClass != "" {
		profile.MainClass = overlay.MainClass
	}

	// Loader descriptors rarely ship their own client download or asset
	// index; inherit the base's when absent.
	if overlay.AssetIndex != nil {
		profile.AssetIndex = *overlay.AssetIndex
	}
	if client, ok := overlay.Downloads["client"]; ok {
		profile.ClientDownload = client
	}

	profile.GameArguments = append(profile.GameArguments, overlay.Arguments.Game...)
	profile.JVMArguments = append(profile.JVMArguments, overlay.Arguments.JVM...)

	overlayLibs, err := resolveLibraries(overlay.Libraries, osName)
	if err != nil {
		return err
	}

	profile.Libraries = mergeLibraries(overlayLibs, profile.Libraries)
	applyPinnedVersions(profile.Libraries)

	return nil
}

// resolveLibraries turns wire-format library entries into resolved entries
// for the current platform. A single wire entry can produce two resolved
// entries: the portable artifact plus a platform-native classifier.
func resolveLibraries(libs []Library, osName string) ([]ResolvedLibrary, error) {
	resolved := make([]ResolvedLibrary, 0, len(libs))

	for _, lib := range libs {
		if !libraryAllowed(lib, osName) {
			continue
		}

		coord, err := ParseCoordinate(lib.Name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDescriptorInvalid, err)
		}

		if artifact := portableArtifact(lib, coord); artifact != nil {
			resolved = append(resolved, ResolvedLibrary{
				Coordinate: coord,
				Artifact:   *artifact,
				Priority:   priorityFor(coord),
			})
		}

		if native := nativeArtifact(lib, coord, osName); native != nil {
			resolved = append(resolved, *native)
		}
	}

	return resolved, nil
}

// portableArtifact returns the non-native artifact for a library, deriving
// one from the Maven base URL when the descriptor carries no explicit
// download block (loader-style entries).
func portableArtifact(lib Library, coord Coordinate) *Artifact {
	if lib.Downloads != nil {
		if lib.Downloads.Artifact == nil {
			return nil
		}
		a := *lib.Downloads.Artifact
		if a.Path == "" {
			a.Path = coord.Path()
		}
		return &a
	}

	base := lib.URL
	if base == "" {
		return nil
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	return &Artifact{
		URL:  base + coord.Path(),
		Path: coord.Path(),
	}
}

// nativeArtifact returns the platform-native classifier entry, if any.
func nativeArtifact(lib Library, coord Coordinate, osName string) *ResolvedLibrary {
	if lib.Natives == nil || lib.Downloads == nil {
		return nil
	}

	classifier, ok := lib.Natives[osName]
	if !ok {
		return nil
	}

	artifact, ok := lib.Downloads.Classifiers[classifier]
	if !ok {
		return nil
	}

	nativeCoord := coord
	nativeCoord.Classifier = classifier
	if artifact.Path == "" {
		artifact.Path = nativeCoord.Path()
	}

	return &ResolvedLibrary{
		Coordinate: nativeCoord,
		Artifact:   artifact,
		Native:     true,
		Priority:   priorityFor(nativeCoord),
	}
}

// libraryAllowed evaluates the entry's OS rules. No rules means allowed.
func libraryAllowed(lib Library, osName string) bool {
	if len(lib.Rules) == 0 {
		return true
	}

	allowed := false
	for _, rule := range lib.Rules {
		matches := rule.OS == nil || rule.OS.Name == osName
		if !matches {
			continue
		}
		switch rule.Action {
		case "allow":
			allowed = true
		case "disallow":
			allowed = false
		}
	}
	return allowed
}

// mergeLibraries merges two resolved lists, overlay entries first so ties
// favor the loader-supplied entry. On key collision the entry with higher
// priority wins; the winner keeps the position of the first occurrence so
// the output order is deterministic.
func mergeLibraries(overlay, base []ResolvedLibrary) []ResolvedLibrary {
	merged := make([]ResolvedLibrary, 0, len(overlay)+len(base))
	index := make(map[string]int, len(overlay)+len(base))

	add := func(lib ResolvedLibrary) {
		key := lib.Key()
		if i, ok := index[key]; ok {
			if lib.Priority > merged[i].Priority {
				merged[i] = lib
			}
			return
		}
		index[key] = len(merged)
		merged = append(merged, lib)
	}

	for _, lib := range overlay {
		add(lib)
	}
	for _, lib := range base {
		add(lib)
	}

	return merged
}

// applyPinnedVersions enforces the fixed post-merge rule: org.ow2.asm:asm
// is retained only at PinnedASMVersion, whatever the priority merge chose.
func applyPinnedVersions(libs []ResolvedLibrary) {
	for i := range libs {
		c := libs[i].Coordinate
		if c.Group != "org.ow2.asm" || c.Artifact != "asm" || c.Classifier != "" {
			continue
		}
		if c.Version == PinnedASMVersion {
			continue
		}

		pinned := Coordinate{Group: c.Group, Artifact: c.Artifact, Version: PinnedASMVersion}
		libs[i] = ResolvedLibrary{
			Coordinate: pinned,
			Artifact: Artifact{
				URL:  pinnedMavenBaseURL + pinned.Path(),
				Path: pinned.Path(),
			},
			Priority: priorityFor(pinned),
		}
	}
}

// priorityFor computes the merge priority of a coordinate. Only the known
// conflict-prone families get a version-derived priority; everything else
// is 0.
func priorityFor(c Coordinate) int {
	if !priorityFamilies[c.Group] {
		return 0
	}
	return versionPriority(c.Version)
}

// versionPriority encodes up to three leading numeric segments of a version
// string into one comparable integer. Non-numeric suffixes are ignored.
func versionPriority(version string) int {
	segments := strings.FieldsFunc(version, func(r rune) bool {
		return r == '.' || r == '-' || r == '+'
	})

	priority := 0
	for i := 0; i < 3; i++ {
		n := 0
		if i < len(segments) {
			n = leadingInt(segments[i])
		}
		priority = priority*1000 + n
	}
	return priority
}

// leadingInt parses the leading digits of s, capped to keep the encoding
// within range.
func leadingInt(s string) int {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil || n > 999 {
		return 999
	}
	return n
}
