package version

import (
	"encoding/json"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stampBuild sets the ldflags variables the way the release build does and
// restores them afterwards.
func stampBuild(t *testing.T, version, commit, built string) {
	t.Helper()
	savedVersion, savedCommit, savedBuilt := Version, GitCommit, BuildTime
	t.Cleanup(func() {
		Version, GitCommit, BuildTime = savedVersion, savedCommit, savedBuilt
	})
	Version, GitCommit, BuildTime = version, commit, built
}

func TestGet_Unstamped(t *testing.T) {
	stampBuild(t, "dev", "unknown", "unknown")

	info := Get()
	assert.Equal(t, Info{Version: "dev", GitCommit: "unknown", BuildTime: "unknown", GoVersion: runtime.Version()}, info)
	assert.Equal(t, "skillkit dev (unknown)", info.Short())
}

func TestGet_ReflectsLinkerFlags(t *testing.T) {
	stampBuild(t, "0.4.0", "1a2b3c4d5e6f7081", "2026-10-15T09:01:00Z")

	info := Get()
	assert.Equal(t, "0.4.0", info.Version)
	assert.Equal(t, "1a2b3c4d5e6f7081", info.GitCommit)
	assert.Equal(t, "2026-10-15T09:01:00Z", info.BuildTime)
	assert.Equal(t, runtime.Version(), info.GoVersion)
}

func TestInfo_Short(t *testing.T) {
	tests := []struct {
		name     string
		info     Info
		expected string
	}{
		{"full sha is cut", Info{Version: "0.4.0", GitCommit: "1a2b3c4d5e6f7081"}, "skillkit 0.4.0 (1a2b3c4)"},
		{"short sha kept", Info{Version: "0.4.0", GitCommit: "1a2b"}, "skillkit 0.4.0 (1a2b)"},
		{"dirty build", Info{Version: "0.4.0-3-g1a2b3c4-dirty", GitCommit: "unknown"}, "skillkit 0.4.0-3-g1a2b3c4-dirty (unknown)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.info.Short())
		})
	}
}

func TestInfo_String(t *testing.T) {
	info := Info{Version: "0.4.0", GitCommit: "1a2b3c4", BuildTime: "2026-10-15T09:01:00Z", GoVersion: "go1.24.2"}
	assert.Equal(t,
		"Version: 0.4.0, GitCommit: 1a2b3c4, BuildTime: 2026-10-15T09:01:00Z, GoVersion: go1.24.2",
		info.String())
}

func TestInfo_JSON(t *testing.T) {
	stampBuild(t, "0.4.0", "1a2b3c4", "2026-10-15T09:01:00Z")

	out, err := Get().JSON()
	require.NoError(t, err)

	var fields map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &fields))
	assert.Equal(t, map[string]string{
		"version":   "0.4.0",
		"gitCommit": "1a2b3c4",
		"buildTime": "2026-10-15T09:01:00Z",
		"goVersion": runtime.Version(),
	}, fields)
	assert.Contains(t, out, "\n  \"version\": \"0.4.0\"", "output is indented for the terminal")
}
