package launch

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/docker/go-units"

	"github.com/steviee/go-mcl/internal/auth"
	"github.com/steviee/go-mcl/internal/meta"
	"github.com/steviee/go-mcl/internal/state"
)

// Options are the run-time knobs for one launch.
type Options struct {
	// GameDir is the working directory of the client (worlds, options.txt).
	GameDir string

	// Memory is the heap ceiling, e.g. "4G". Empty means DefaultMemory.
	Memory string

	// ServerHost/ServerPort make the client join a server on startup.
	ServerHost string
	ServerPort int

	// JavaExecutable overrides the configured runtime binary.
	JavaExecutable string
}

// DefaultMemory is the heap ceiling used when Options.Memory is empty.
const DefaultMemory = "2G"

// defaultGameArguments is the templated argument set used when a profile
// carries none of its own (old descriptors predate the arguments block).
var defaultGameArguments = []string{
	"--username", "${auth_player_name}",
	"--uuid", "${auth_uuid}",
	"--accessToken", "${auth_access_token}",
	"--version", "${version_name}",
	"--gameDir", "${game_directory}",
	"--assetsDir", "${assets_root}",
	"--assetIndex", "${assets_index_name}",
}

// BuildPlan combines a resolved profile, the credential record and run-time
// options into a concrete process invocation.
//
// Placeholder substitution covers a fixed, enumerated token set. A token
// outside that set is left verbatim so a misconfigured profile fails loudly
// at process start instead of silently launching with wrong values.
func BuildPlan(layout *state.Layout, profile *meta.Profile, rec *auth.Record, opts Options) (*Plan, error) {
	memory := opts.Memory
	if memory == "" {
		memory = DefaultMemory
	}
	memoryBytes, err := units.RAMInBytes(memory)
	if err != nil {
		return nil, fmt.Errorf("invalid memory value %q: %w", memory, err)
	}

	gameDir := opts.GameDir
	if gameDir == "" {
		gameDir = layout.DataDir
	}

	nativesDir := layout.NativesDir(profile.ID)
	classpath := buildClasspath(layout, profile)

	replacer := strings.NewReplacer(
		"${auth_player_name}", rec.PlayerName,
		"${auth_uuid}", rec.PlayerID,
		"${auth_access_token}", rec.AccessToken,
		"${version_name}", profile.ID,
		"${game_directory}", gameDir,
		"${assets_root}", layout.AssetsRoot(),
		"${assets_index_name}", profile.AssetIndex.ID,
		"${natives_directory}", nativesDir,
		"${classpath}", strings.Join(classpath, string(os.PathListSeparator)),
	)

	gameArgs := profile.GameArguments
	if len(gameArgs) == 0 {
		gameArgs = defaultGameArguments
	}

	plan := &Plan{
		JavaExecutable: opts.JavaExecutable,
		MainClass:      profile.MainClass,
		Classpath:      classpath,
		NativesDir:     nativesDir,
		WorkingDir:     gameDir,
		VersionID:      profile.ID,
	}
	if plan.JavaExecutable == "" {
		plan.JavaExecutable = "java"
	}

	plan.JVMArgs = append(plan.JVMArgs, memoryFlags(memoryBytes)...)
	plan.JVMArgs = append(plan.JVMArgs, "-Djava.library.path="+nativesDir)
	for _, arg := range profile.JVMArguments {
		plan.JVMArgs = append(plan.JVMArgs, replacer.Replace(arg))
	}
	plan.JVMArgs = append(plan.JVMArgs,
		"-cp", strings.Join(classpath, string(os.PathListSeparator)))

	for _, arg := range gameArgs {
		plan.GameArgs = append(plan.GameArgs, replacer.Replace(arg))
	}

	if opts.ServerHost != "" {
		plan.GameArgs = append(plan.GameArgs, "--server", opts.ServerHost)
		if opts.ServerPort > 0 {
			plan.GameArgs = append(plan.GameArgs, "--port", strconv.Itoa(opts.ServerPort))
		}
	}

	return plan, nil
}

// buildClasspath returns the deduplicated library paths plus the client jar.
// One entry per merge key: duplicate group:artifact entries collapse, while
// distinct native classifiers stay out of the classpath entirely (they are
// staged into the natives directory instead).
func buildClasspath(layout *state.Layout, profile *meta.Profile) []string {
	seen := make(map[string]bool, len(profile.Libraries))
	classpath := make([]string, 0, len(profile.Libraries)+1)

	for _, lib := range profile.Libraries {
		if lib.Native {
			continue
		}
		key := lib.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		classpath = append(classpath, layout.LibraryPath(lib.Artifact.Path))
	}

	classpath = append(classpath, layout.VersionJarPath(profile.ID))
	return classpath
}

// memoryFlags returns the fixed, parameterized JVM memory and GC flag set,
// sized from the caller-supplied heap ceiling.
func memoryFlags(memoryBytes int64) []string {
	maxMB := memoryBytes / units.MiB
	if maxMB < 512 {
		maxMB = 512
	}
	minMB := maxMB / 2
	if minMB < 256 {
		minMB = 256
	}

	return []string{
		fmt.Sprintf("-Xms%dm", minMB),
		fmt.Sprintf("-Xmx%dm", maxMB),
		"-XX:+UseG1GC",
		"-XX:G1NewSizePercent=20",
		"-XX:G1ReservePercent=20",
		"-XX:MaxGCPauseMillis=50",
		"-XX:G1HeapRegionSize=32M",
	}
}
