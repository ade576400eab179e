package launch

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steviee/go-mcl/internal/auth"
	"github.com/steviee/go-mcl/internal/meta"
	"github.com/steviee/go-mcl/internal/state"
)

func testLayout(t *testing.T) *state.Layout {
	t.Helper()
	tmp := t.TempDir()
	return &state.Layout{
		ConfigDir: filepath.Join(tmp, "config"),
		DataDir:   filepath.Join(tmp, "data"),
	}
}

func testProfile() *meta.Profile {
	return &meta.Profile{
		ID:         "1.20.4",
		MainClass:  "net.minecraft.client.main.Main",
		AssetIndex: meta.AssetIndexRef{ID: "16"},
		Libraries: []meta.ResolvedLibrary{
			{
				Coordinate: meta.Coordinate{Group: "com.mojang", Artifact: "brigadier", Version: "1.2.9"},
				Artifact:   meta.Artifact{Path: "com/mojang/brigadier/1.2.9/brigadier-1.2.9.jar"},
			},
			{
				Coordinate: meta.Coordinate{Group: "org.lwjgl", Artifact: "lwjgl", Version: "3.3.3"},
				Artifact:   meta.Artifact{Path: "org/lwjgl/lwjgl/3.3.3/lwjgl-3.3.3.jar"},
			},
			{
				Coordinate: meta.Coordinate{Group: "org.lwjgl", Artifact: "lwjgl", Version: "3.3.3", Classifier: "natives-linux"},
				Artifact:   meta.Artifact{Path: "org/lwjgl/lwjgl/3.3.3/lwjgl-3.3.3-natives-linux.jar"},
				Native:     true,
			},
		},
		GameArguments: []string{
			"--username", "${auth_player_name}",
			"--uuid", "${auth_uuid}",
			"--accessToken", "${auth_access_token}",
			"--version", "${version_name}",
			"--assetsDir", "${assets_root}",
			"--assetIndex", "${assets_index_name}",
		},
		JVMArguments: []string{"-Dfabric.development=false"},
	}
}

func testAuthRecord() *auth.Record {
	return &auth.Record{
		AccessToken: "game-token",
		PlayerID:    "069a79f444e94726a5befca90e38aaf5",
		PlayerName:  "Notch",
	}
}

func TestBuildPlan_Substitution(t *testing.T) {
	layout := testLayout(t)

	plan, err := BuildPlan(layout, testProfile(), testAuthRecord(), Options{})
	require.NoError(t, err)

	args := strings.Join(plan.GameArgs, " ")
	assert.Contains(t, args, "--username Notch")
	assert.Contains(t, args, "--uuid 069a79f444e94726a5befca90e38aaf5")
	assert.Contains(t, args, "--accessToken game-token")
	assert.Contains(t, args, "--version 1.20.4")
	assert.Contains(t, args, "--assetsDir "+layout.AssetsRoot())
	assert.Contains(t, args, "--assetIndex 16")
	assert.NotContains(t, args, "${")
}

func TestBuildPlan_UnknownTokenLeftVerbatim(t *testing.T) {
	layout := testLayout(t)
	profile := testProfile()
	profile.GameArguments = append(profile.GameArguments, "--clientId", "${clientid}")

	plan, err := BuildPlan(layout, profile, testAuthRecord(), Options{})
	require.NoError(t, err)

	assert.Contains(t, plan.GameArgs, "${clientid}")
}

func TestBuildPlan_Classpath(t *testing.T) {
	layout := testLayout(t)
	profile := testProfile()

	// A duplicate group:artifact entry must not produce a second classpath
	// entry; the natives classifier must not appear at all.
	profile.Libraries = append(profile.Libraries, meta.ResolvedLibrary{
		Coordinate: meta.Coordinate{Group: "com.mojang", Artifact: "brigadier", Version: "1.3.0"},
		Artifact:   meta.Artifact{Path: "com/mojang/brigadier/1.3.0/brigadier-1.3.0.jar"},
	})

	plan, err := BuildPlan(layout, profile, testAuthRecord(), Options{})
	require.NoError(t, err)

	require.Len(t, plan.Classpath, 3)
	assert.Contains(t, plan.Classpath[0], "brigadier-1.2.9.jar")
	assert.Contains(t, plan.Classpath[1], "lwjgl-3.3.3.jar")
	assert.Equal(t, layout.VersionJarPath("1.20.4"), plan.Classpath[2])

	joined := strings.Join(plan.Classpath, string(os.PathListSeparator))
	assert.NotContains(t, joined, "natives-linux")
}

func TestBuildPlan_JVMArgs(t *testing.T) {
	layout := testLayout(t)

	plan, err := BuildPlan(layout, testProfile(), testAuthRecord(), Options{Memory: "4G"})
	require.NoError(t, err)

	assert.Contains(t, plan.JVMArgs, "-Xmx4096m")
	assert.Contains(t, plan.JVMArgs, "-Xms2048m")
	assert.Contains(t, plan.JVMArgs, "-XX:+UseG1GC")
	assert.Contains(t, plan.JVMArgs, "-Djava.library.path="+layout.NativesDir("1.20.4"))
	assert.Contains(t, plan.JVMArgs, "-Dfabric.development=false")

	// -cp is the trailing pair.
	require.GreaterOrEqual(t, len(plan.JVMArgs), 2)
	assert.Equal(t, "-cp", plan.JVMArgs[len(plan.JVMArgs)-2])
}

func TestBuildPlan_MemoryFloors(t *testing.T) {
	layout := testLayout(t)

	plan, err := BuildPlan(layout, testProfile(), testAuthRecord(), Options{Memory: "256M"})
	require.NoError(t, err)

	assert.Contains(t, plan.JVMArgs, "-Xmx512m")
	assert.Contains(t, plan.JVMArgs, "-Xms256m")
}

func TestBuildPlan_InvalidMemory(t *testing.T) {
	layout := testLayout(t)

	_, err := BuildPlan(layout, testProfile(), testAuthRecord(), Options{Memory: "plenty"})
	require.Error(t, err)
}

func TestBuildPlan_ServerJoin(t *testing.T) {
	layout := testLayout(t)

	t.Run("host and port", func(t *testing.T) {
		plan, err := BuildPlan(layout, testProfile(), testAuthRecord(), Options{
			ServerHost: "play.example.com",
			ServerPort: 25566,
		})
		require.NoError(t, err)

		args := strings.Join(plan.GameArgs, " ")
		assert.Contains(t, args, "--server play.example.com")
		assert.Contains(t, args, "--port 25566")
	})

	t.Run("no host means no join args", func(t *testing.T) {
		plan, err := BuildPlan(layout, testProfile(), testAuthRecord(), Options{ServerPort: 25566})
		require.NoError(t, err)

		args := strings.Join(plan.GameArgs, " ")
		assert.NotContains(t, args, "--server")
		assert.NotContains(t, args, "--port")
	})
}

func TestBuildPlan_Defaults(t *testing.T) {
	layout := testLayout(t)
	profile := testProfile()
	profile.GameArguments = nil

	plan, err := BuildPlan(layout, profile, testAuthRecord(), Options{})
	require.NoError(t, err)

	assert.Equal(t, "java", plan.JavaExecutable)
	assert.Equal(t, layout.DataDir, plan.WorkingDir)

	// Old descriptors without an arguments block get the standard set.
	args := strings.Join(plan.GameArgs, " ")
	assert.Contains(t, args, "--username Notch")
	assert.Contains(t, args, "--gameDir "+layout.DataDir)
}

func TestPlan_CommandLine(t *testing.T) {
	plan := &Plan{
		JVMArgs:   []string{"-Xmx512m", "-cp", "a.jar"},
		MainClass: "net.minecraft.client.main.Main",
		GameArgs:  []string{"--username", "Notch"},
	}

	assert.Equal(t, []string{
		"-Xmx512m", "-cp", "a.jar",
		"net.minecraft.client.main.Main",
		"--username", "Notch",
	}, plan.CommandLine())
}
