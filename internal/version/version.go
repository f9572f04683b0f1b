// Package version reports the build of the syftfiles binaries. Release builds
// stamp the variables below with -ldflags "-X"; other builds fall back to the
// module and VCS metadata embedded by the Go toolchain.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

const (
	devVersion  = "0.1.0-dev"
	devRevision = "HEAD"
)

var (
	AppName   = "SyftFiles"
	Version   = devVersion
	Revision  = devRevision
	BuildDate = ""
)

// Info is a snapshot of the build metadata.
type Info struct {
	App       string `json:"app"`
	Version   string `json:"version"`
	Revision  string `json:"revision"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func Current() Info {
	return Info{
		App:       AppName,
		Version:   Version,
		Revision:  Revision,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// Dev reports whether this is an unstamped development build.
func (i Info) Dev() bool {
	return i.Version == devVersion || strings.HasSuffix(i.Revision, "-dirty")
}

// Short renders `0.1.0 (5e23a4)`.
func Short() string {
	return fmt.Sprintf("%s (%s)", Version, Revision)
}

// Detailed renders `0.1.0 (5e23a4; go1.23.6; linux/amd64; 2025-06-01T10:00:00Z)`,
// shown by `syftfiles version` and `--version`.
func Detailed() string {
	i := Current()
	return fmt.Sprintf("%s (%s; %s; %s; %s)", i.Version, i.Revision, i.GoVersion, i.Platform, i.BuildDate)
}

// DetailedWithApp prefixes Detailed with the app name. The server index page
// serves it.
func DetailedWithApp() string {
	return AppName + " " + Detailed()
}

// UserAgent names a component in store requests:
// `SyftFiles-client/0.1.0 (5e23a4; linux/amd64)`.
func UserAgent(component string) string {
	name := AppName
	if component != "" {
		name += "-" + component
	}
	i := Current()
	return fmt.Sprintf("%s/%s (%s; %s)", name, i.Version, i.Revision, i.Platform)
}

// applyBuildInfo fills the variables left at their dev values from module and
// VCS metadata. Stamped values always win.
func applyBuildInfo(mainVersion string, settings map[string]string) {
	if Version == devVersion || Version == "" {
		if mainVersion != "" && mainVersion != "(devel)" {
			Version = strings.TrimPrefix(mainVersion, "v")
		}
	}

	if Revision == devRevision || Revision == "" {
		if r := settings["vcs.revision"]; r != "" {
			if settings["vcs.modified"] == "true" {
				r += "-dirty"
			}
			Revision = r
		}
	}

	if BuildDate == "" {
		BuildDate = settings["vcs.time"]
	}
}

func init() {
	if info, ok := debug.ReadBuildInfo(); ok && info != nil {
		settings := make(map[string]string, len(info.Settings))
		for _, s := range info.Settings {
			settings[s.Key] = s.Value
		}
		applyBuildInfo(info.Main.Version, settings)
	}
	if BuildDate == "" {
		BuildDate = time.Now().UTC().Format(time.RFC3339)
	}
}
