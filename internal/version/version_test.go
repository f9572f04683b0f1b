package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// restoreBuildVars puts the stamped variables back after a test rewrites them.
func restoreBuildVars(t *testing.T) {
	t.Helper()
	v, r, d := Version, Revision, BuildDate
	t.Cleanup(func() { Version, Revision, BuildDate = v, r, d })
}

func TestCurrent(t *testing.T) {
	restoreBuildVars(t)
	Version, Revision, BuildDate = "1.4.0", "abc123", "2025-06-01T10:00:00Z"

	info := Current()
	assert.Equal(t, AppName, info.App)
	assert.Equal(t, "1.4.0", info.Version)
	assert.Equal(t, "abc123", info.Revision)
	assert.Equal(t, "2025-06-01T10:00:00Z", info.BuildDate)
	assert.Contains(t, info.Platform, "/")
	assert.False(t, info.Dev())

	assert.Equal(t, "1.4.0 (abc123)", Short())
	assert.True(t, strings.HasPrefix(Detailed(), "1.4.0 (abc123; go"))
	assert.True(t, strings.HasSuffix(Detailed(), "; 2025-06-01T10:00:00Z)"))
	assert.Equal(t, AppName+" "+Detailed(), DetailedWithApp())
}

func TestInfoDev(t *testing.T) {
	assert.True(t, Info{Version: devVersion, Revision: "abc"}.Dev())
	assert.True(t, Info{Version: "1.0.0", Revision: "abc-dirty"}.Dev())
	assert.False(t, Info{Version: "1.0.0", Revision: "abc"}.Dev())
}

func TestApplyBuildInfo(t *testing.T) {
	tests := []struct {
		name                                string
		version, revision, buildDate        string
		mainVersion                         string
		settings                            map[string]string
		wantVersion, wantRevision, wantDate string
	}{
		{
			name:    "dev build takes vcs metadata",
			version: devVersion, revision: devRevision,
			mainVersion: "v2.0.1",
			settings: map[string]string{
				"vcs.revision": "f00d",
				"vcs.modified": "true",
				"vcs.time":     "2025-06-01T10:00:00Z",
			},
			wantVersion: "2.0.1", wantRevision: "f00d-dirty", wantDate: "2025-06-01T10:00:00Z",
		},
		{
			name:    "devel module keeps dev version",
			version: devVersion, revision: devRevision,
			mainVersion: "(devel)",
			settings:    map[string]string{"vcs.revision": "f00d"},
			wantVersion: devVersion, wantRevision: "f00d", wantDate: "",
		},
		{
			name:    "stamped values win",
			version: "1.2.3", revision: "beef", buildDate: "stamped",
			mainVersion: "v9.9.9",
			settings: map[string]string{
				"vcs.revision": "f00d",
				"vcs.time":     "2025-06-01T10:00:00Z",
			},
			wantVersion: "1.2.3", wantRevision: "beef", wantDate: "stamped",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restoreBuildVars(t)
			Version, Revision, BuildDate = tt.version, tt.revision, tt.buildDate

			applyBuildInfo(tt.mainVersion, tt.settings)

			assert.Equal(t, tt.wantVersion, Version)
			assert.Equal(t, tt.wantRevision, Revision)
			assert.Equal(t, tt.wantDate, BuildDate)
		})
	}
}

func TestUserAgent(t *testing.T) {
	restoreBuildVars(t)
	Version, Revision = "1.4.0", "abc123"

	ua := UserAgent("client")
	assert.True(t, strings.HasPrefix(ua, AppName+"-client/1.4.0 (abc123; "))
	assert.True(t, strings.HasPrefix(UserAgent(""), AppName+"/1.4.0 "))
}
