package meta

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steviee/go-mcl/internal/retry"
)

func TestVersionPriority(t *testing.T) {
	tests := []struct {
		lower  string
		higher string
	}{
		{"9.6", "9.7.1"},
		{"9.7", "9.7.1"},
		{"31.1-jre", "32.1.2-jre"},
		{"5.13.0", "5.14.0"},
		{"0.15.11", "0.16.9"},
	}

	for _, tt := range tests {
		t.Run(tt.lower+" < "+tt.higher, func(t *testing.T) {
			assert.Less(t, versionPriority(tt.lower), versionPriority(tt.higher))
		})
	}
}

func TestPriorityFor(t *testing.T) {
	asm := Coordinate{Group: "org.ow2.asm", Artifact: "asm", Version: "9.7.1"}
	assert.Positive(t, priorityFor(asm))

	// Outside the conflict-prone families priority stays flat.
	other := Coordinate{Group: "com.mojang", Artifact: "brigadier", Version: "1.2.9"}
	assert.Zero(t, priorityFor(other))
}

func TestLibraryAllowed(t *testing.T) {
	tests := []struct {
		name string
		lib  Library
		os   string
		want bool
	}{
		{name: "no rules", lib: Library{}, os: "linux", want: true},
		{
			name: "allow matching os",
			lib:  Library{Rules: []Rule{{Action: "allow", OS: &OSRule{Name: "linux"}}}},
			os:   "linux",
			want: true,
		},
		{
			name: "allow other os",
			lib:  Library{Rules: []Rule{{Action: "allow", OS: &OSRule{Name: "osx"}}}},
			os:   "linux",
			want: false,
		},
		{
			name: "allow all disallow one",
			lib: Library{Rules: []Rule{
				{Action: "allow"},
				{Action: "disallow", OS: &OSRule{Name: "linux"}},
			}},
			os:   "linux",
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, libraryAllowed(tt.lib, tt.os))
		})
	}
}

func TestMergeLibraries(t *testing.T) {
	lib := func(group, artifact, version string, priority int) ResolvedLibrary {
		return ResolvedLibrary{
			Coordinate: Coordinate{Group: group, Artifact: artifact, Version: version},
			Priority:   priority,
		}
	}

	t.Run("overlay wins ties", func(t *testing.T) {
		overlay := []ResolvedLibrary{lib("com.mojang", "brigadier", "1.3.0", 0)}
		base := []ResolvedLibrary{lib("com.mojang", "brigadier", "1.2.9", 0)}

		merged := mergeLibraries(overlay, base)
		require.Len(t, merged, 1)
		assert.Equal(t, "1.3.0", merged[0].Coordinate.Version)
	})

	t.Run("higher priority wins regardless of side", func(t *testing.T) {
		overlay := []ResolvedLibrary{lib("com.google.guava", "guava", "31.1", versionPriority("31.1"))}
		base := []ResolvedLibrary{lib("com.google.guava", "guava", "32.1.2", versionPriority("32.1.2"))}

		merged := mergeLibraries(overlay, base)
		require.Len(t, merged, 1)
		assert.Equal(t, "32.1.2", merged[0].Coordinate.Version)
	})

	t.Run("winner keeps first occurrence position", func(t *testing.T) {
		overlay := []ResolvedLibrary{
			lib("net.fabricmc", "fabric-loader", "0.16.9", 0),
			lib("com.google.guava", "guava", "31.1", versionPriority("31.1")),
		}
		base := []ResolvedLibrary{
			lib("com.mojang", "brigadier", "1.2.9", 0),
			lib("com.google.guava", "guava", "32.1.2", versionPriority("32.1.2")),
		}

		merged := mergeLibraries(overlay, base)
		require.Len(t, merged, 3)
		assert.Equal(t, "fabric-loader", merged[0].Coordinate.Artifact)
		assert.Equal(t, "guava", merged[1].Coordinate.Artifact)
		assert.Equal(t, "32.1.2", merged[1].Coordinate.Version)
		assert.Equal(t, "brigadier", merged[2].Coordinate.Artifact)
	})

	t.Run("native entries never collapse with portables", func(t *testing.T) {
		portable := lib("org.lwjgl", "lwjgl", "3.3.3", 0)
		native := ResolvedLibrary{
			Coordinate: Coordinate{Group: "org.lwjgl", Artifact: "lwjgl", Version: "3.3.3", Classifier: "natives-linux"},
			Native:     true,
		}

		merged := mergeLibraries(nil, []ResolvedLibrary{portable, native})
		assert.Len(t, merged, 2)
	})
}

func TestApplyPinnedVersions(t *testing.T) {
	libs := []ResolvedLibrary{
		{
			Coordinate: Coordinate{Group: "org.ow2.asm", Artifact: "asm", Version: "9.6"},
			Artifact:   Artifact{URL: "https://example.com/asm-9.6.jar"},
			Priority:   versionPriority("9.6"),
		},
		{
			Coordinate: Coordinate{Group: "org.ow2.asm", Artifact: "asm-tree", Version: "9.6"},
		},
	}

	applyPinnedVersions(libs)

	assert.Equal(t, PinnedASMVersion, libs[0].Coordinate.Version)
	assert.Contains(t, libs[0].Artifact.URL, "asm-9.7.1.jar")
	assert.Equal(t, "org/ow2/asm/asm/9.7.1/asm-9.7.1.jar", libs[0].Artifact.Path)

	// Sibling artifacts in the asm group are untouched.
	assert.Equal(t, "9.6", libs[1].Coordinate.Version)
}

func TestApplyPinnedVersions_AlreadyPinned(t *testing.T) {
	orig := Artifact{URL: "https://example.com/asm-9.7.1.jar", SHA1: "abc"}
	libs := []ResolvedLibrary{
		{
			Coordinate: Coordinate{Group: "org.ow2.asm", Artifact: "asm", Version: PinnedASMVersion},
			Artifact:   orig,
		},
	}

	applyPinnedVersions(libs)

	// The descriptor's own download block survives when already pinned.
	assert.Equal(t, orig, libs[0].Artifact)
}

func TestResolveLibraries(t *testing.T) {
	libs := []Library{
		{
			Name: "com.mojang:brigadier:1.2.9",
			Downloads: &LibraryDownloads{
				Artifact: &Artifact{URL: "https://libraries.example.com/brigadier-1.2.9.jar", Size: 100},
			},
		},
		{
			Name: "org.lwjgl:lwjgl:3.3.3",
			Downloads: &LibraryDownloads{
				Artifact: &Artifact{URL: "https://libraries.example.com/lwjgl-3.3.3.jar", Size: 200},
				Classifiers: map[string]Artifact{
					"natives-linux": {URL: "https://libraries.example.com/lwjgl-natives.jar", Size: 300},
				},
			},
			Natives: map[string]string{"linux": "natives-linux"},
		},
		{
			Name: "net.fabricmc:fabric-loader:0.16.9",
			URL:  "https://maven.fabricmc.net",
		},
		{
			Name:  "ca.weblite:java-objc-bridge:1.1",
			Rules: []Rule{{Action: "allow", OS: &OSRule{Name: "osx"}}},
		},
	}

	resolved, err := resolveLibraries(libs, "linux")
	require.NoError(t, err)
	require.Len(t, resolved, 4)

	assert.Equal(t, "brigadier", resolved[0].Coordinate.Artifact)
	assert.Equal(t, "com/mojang/brigadier/1.2.9/brigadier-1.2.9.jar", resolved[0].Artifact.Path)

	assert.Equal(t, "lwjgl", resolved[1].Coordinate.Artifact)
	assert.False(t, resolved[1].Native)

	assert.True(t, resolved[2].Native)
	assert.Equal(t, "natives-linux", resolved[2].Coordinate.Classifier)

	// Maven-base entries derive their URL from the coordinate path.
	assert.Equal(t, "fabric-loader", resolved[3].Coordinate.Artifact)
	assert.Equal(t, "https://maven.fabricmc.net/net/fabricmc/fabric-loader/0.16.9/fabric-loader-0.16.9.jar", resolved[3].Artifact.URL)
}

func TestResolveLibraries_BadCoordinate(t *testing.T) {
	_, err := resolveLibraries([]Library{{Name: "broken"}}, "linux")
	require.ErrorIs(t, err, ErrDescriptorInvalid)
}

// metaBackend serves a manifest, a version descriptor and a fabric loader
// profile from one httptest server.
func metaBackend(t *testing.T, base, fabric *Descriptor) *Client {
	t.Helper()

	mux := http.NewServeMux()
	var server *httptest.Server

	mux.HandleFunc("/manifest", func(w http.ResponseWriter, r *http.Request) {
		writeMetaJSON(w, map[string]interface{}{
			"latest": map[string]string{"release": base.ID},
			"versions": []map[string]string{
				{"id": base.ID, "type": "release", "url": server.URL + "/version.json"},
			},
		})
	})
	mux.HandleFunc("/version.json", func(w http.ResponseWriter, r *http.Request) {
		writeMetaJSON(w, base)
	})
	mux.HandleFunc("/versions/loader/"+base.ID+"/0.16.9/profile/json", func(w http.ResponseWriter, r *http.Request) {
		writeMetaJSON(w, fabric)
	})
	mux.HandleFunc("/versions/loader/"+base.ID, func(w http.ResponseWriter, r *http.Request) {
		writeMetaJSON(w, []map[string]interface{}{
			{"loader": map[string]interface{}{"version": "0.16.9", "stable": true}},
		})
	})

	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return NewClient(&Config{
		ManifestURL:   server.URL + "/manifest",
		FabricBaseURL: server.URL,
		Retry:         retry.Policy{MaxAttempts: 1, Delay: time.Millisecond},
	})
}

func writeMetaJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func testBaseDescriptor() *Descriptor {
	return &Descriptor{
		ID:        "1.20.4",
		MainClass: "net.minecraft.client.main.Main",
		Arguments: Arguments{
			Game: []string{"--username", "${auth_player_name}"},
			JVM:  []string{"-Djava.library.path=${natives_directory}"},
		},
		AssetIndex: &AssetIndexRef{ID: "16", URL: "https://example.com/16.json"},
		Downloads: map[string]Artifact{
			"client": {URL: "https://example.com/client.jar", Size: 1000},
		},
		Libraries: []Library{
			{
				Name: "com.mojang:brigadier:1.2.9",
				Downloads: &LibraryDownloads{
					Artifact: &Artifact{URL: "https://example.com/brigadier.jar", Size: 100},
				},
			},
			{
				Name: "org.ow2.asm:asm:9.6",
				Downloads: &LibraryDownloads{
					Artifact: &Artifact{URL: "https://example.com/asm-9.6.jar", Size: 100},
				},
			},
			{
				Name: "org.lwjgl:lwjgl:3.3.3",
				Downloads: &LibraryDownloads{
					Artifact: &Artifact{URL: "https://example.com/lwjgl.jar", Size: 200},
					Classifiers: map[string]Artifact{
						"natives-linux": {URL: "https://example.com/lwjgl-natives.jar", Size: 300},
					},
				},
				Natives: map[string]string{"linux": "natives-linux"},
			},
		},
	}
}

func testFabricDescriptor() *Descriptor {
	return &Descriptor{
		ID:           "fabric-loader-0.16.9-1.20.4",
		InheritsFrom: "1.20.4",
		MainClass:    "net.fabricmc.loader.impl.launch.knot.KnotClient",
		Libraries: []Library{
			{Name: "net.fabricmc:fabric-loader:0.16.9", URL: "https://maven.fabricmc.net/"},
			{Name: "org.ow2.asm:asm:9.7.1", URL: "https://maven.fabricmc.net/"},
		},
	}
}

func TestResolver_Resolve_NoLoader(t *testing.T) {
	client := metaBackend(t, testBaseDescriptor(), testFabricDescriptor())
	resolver := NewResolver(client)

	profile, err := resolver.Resolve(context.Background(), "1.20.4", nil)
	require.NoError(t, err)

	assert.Equal(t, "1.20.4", profile.ID)
	assert.Equal(t, "net.minecraft.client.main.Main", profile.MainClass)
	assert.Equal(t, "16", profile.AssetIndex.ID)
	assert.Equal(t, "https://example.com/client.jar", profile.ClientDownload.URL)
	assert.NotEmpty(t, profile.RawJSON)

	// brigadier, asm, lwjgl portable, lwjgl native.
	require.Len(t, profile.Libraries, 4)
	assert.Equal(t, "9.6", profile.Libraries[1].Coordinate.Version)
}

func TestResolver_Resolve_LatestAlias(t *testing.T) {
	client := metaBackend(t, testBaseDescriptor(), testFabricDescriptor())
	resolver := NewResolver(client)

	profile, err := resolver.Resolve(context.Background(), "latest", nil)
	require.NoError(t, err)
	assert.Equal(t, "1.20.4", profile.ID)
}

func TestResolver_Resolve_WithLoader(t *testing.T) {
	client := metaBackend(t, testBaseDescriptor(), testFabricDescriptor())
	resolver := NewResolver(client)

	loader := &LoaderSpec{Name: "fabric", Version: "0.16.9"}
	profile, err := resolver.Resolve(context.Background(), "1.20.4", loader)
	require.NoError(t, err)

	assert.Equal(t, "fabric-loader-0.16.9-1.20.4", profile.ID)
	assert.Equal(t, "net.fabricmc.loader.impl.launch.knot.KnotClient", profile.MainClass)

	// Client download and asset index are inherited from the base.
	assert.Equal(t, "https://example.com/client.jar", profile.ClientDownload.URL)
	assert.Equal(t, "16", profile.AssetIndex.ID)

	asmEntries := 0
	var asm ResolvedLibrary
	natives := 0
	for _, lib := range profile.Libraries {
		if lib.Coordinate.Group == "org.ow2.asm" && lib.Coordinate.Artifact == "asm" {
			asmEntries++
			asm = lib
		}
		if lib.Native {
			natives++
		}
	}

	// Exactly one asm entry survives the merge, at the pinned version.
	assert.Equal(t, 1, asmEntries)
	assert.Equal(t, PinnedASMVersion, asm.Coordinate.Version)

	// The base's native classifier entry is preserved.
	assert.Equal(t, 1, natives)
}

func TestResolver_Resolve_Deterministic(t *testing.T) {
	client := metaBackend(t, testBaseDescriptor(), testFabricDescriptor())
	resolver := NewResolver(client)
	loader := &LoaderSpec{Name: "fabric", Version: "0.16.9"}

	first, err := resolver.Resolve(context.Background(), "1.20.4", loader)
	require.NoError(t, err)
	second, err := resolver.Resolve(context.Background(), "1.20.4", loader)
	require.NoError(t, err)

	assert.Equal(t, first.Libraries, second.Libraries)
	assert.Equal(t, first.GameArguments, second.GameArguments)
	assert.Equal(t, first.JVMArguments, second.JVMArguments)
}

func TestResolver_Resolve_LatestFabricLoader(t *testing.T) {
	client := metaBackend(t, testBaseDescriptor(), testFabricDescriptor())
	resolver := NewResolver(client)

	profile, err := resolver.Resolve(context.Background(), "1.20.4", &LoaderSpec{Name: "fabric"})
	require.NoError(t, err)
	assert.Equal(t, "fabric-loader-0.16.9-1.20.4", profile.ID)
}

func TestResolver_Resolve_UnknownVersion(t *testing.T) {
	client := metaBackend(t, testBaseDescriptor(), testFabricDescriptor())
	resolver := NewResolver(client)

	_, err := resolver.Resolve(context.Background(), "0.0.0", nil)
	require.ErrorIs(t, err, ErrVersionNotFound)
}

func TestResolver_Resolve_UnsupportedLoader(t *testing.T) {
	client := metaBackend(t, testBaseDescriptor(), testFabricDescriptor())
	resolver := NewResolver(client)

	_, err := resolver.Resolve(context.Background(), "1.20.4", &LoaderSpec{Name: "forge"})
	require.ErrorIs(t, err, ErrLoaderNotSupported)
}
