// Package version reports build metadata. The variables are set with
// -ldflags "-X github.com/wasd845/AVGraphics/internal/version.Version=...".
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

var (
	// Version is the application version, set via ldflags during build.
	Version = "dev"
	// GitCommit is the git commit hash, set via ldflags during build.
	GitCommit = "unknown"
	// BuildDate is the build timestamp, set via ldflags during build.
	BuildDate = "unknown"
	// BuildID is the build identifier, set via ldflags during build.
	BuildID = "unknown"
)

// Info contains version and build metadata.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	BuildID   string `json:"build_id"`
	GoVersion string `json:"go_version"`
	Compiler  string `json:"compiler"`
	Platform  string `json:"platform"`
}

var vcs = sync.OnceValue(func() map[string]string {
	settings := make(map[string]string)
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			settings[s.Key] = s.Value
		}
	}
	return settings
})

// Get returns version and build information. Without ldflags the commit and
// date come from the VCS stamp the go tool embeds.
func Get() Info {
	info := Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		BuildID:   BuildID,
		GoVersion: runtime.Version(),
		Compiler:  runtime.Compiler,
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}

	stamp := vcs()
	if info.GitCommit == "unknown" {
		if rev, ok := stamp["vcs.revision"]; ok {
			info.GitCommit = shortRevision(rev)
			if stamp["vcs.modified"] == "true" {
				info.GitCommit += "-dirty"
			}
		}
	}
	if info.BuildDate == "unknown" {
		if t, ok := stamp["vcs.time"]; ok {
			info.BuildDate = t
		}
	}
	return info
}

// String returns the application version string.
func String() string {
	return Version
}

func shortRevision(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}
