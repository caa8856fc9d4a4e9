package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

// Build information, set via -ldflags "-X" at release time
var (
	Version   = "dev"
	GitCommit = ""
	BuildDate = ""
)

// BuildInfo describes the running binary
type BuildInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Modified  bool   `json:"modified,omitempty"`
}

var (
	once sync.Once
	info BuildInfo
)

// Get returns the build information. Values not injected by ldflags are
// filled from the VCS stamp the Go toolchain embeds.
func Get() BuildInfo {
	once.Do(func() {
		info = BuildInfo{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
			GoVersion: runtime.Version(),
		}
		if bi, ok := debug.ReadBuildInfo(); ok {
			fillFromSettings(&info, bi.Settings)
		}
		if info.GitCommit == "" {
			info.GitCommit = "unknown"
		}
		if info.BuildDate == "" {
			info.BuildDate = "unknown"
		}
	})
	return info
}

func fillFromSettings(info *BuildInfo, settings []debug.BuildSetting) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitCommit == "" {
				info.GitCommit = s.Value
			}
		case "vcs.time":
			if info.BuildDate == "" {
				info.BuildDate = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
}

// GetVersion returns the release version, or dev-<short commit> for
// development builds
func GetVersion() string {
	bi := Get()
	if bi.Version != "dev" {
		return bi.Version
	}
	commit := bi.GitCommit
	if len(commit) > 8 {
		commit = commit[:8]
	}
	return "dev-" + commit
}

// GetFullVersion returns a detailed version string
func GetFullVersion() string {
	bi := Get()
	return fmt.Sprintf("%s (commit: %s, built: %s, go: %s)", GetVersion(), bi.GitCommit, bi.BuildDate, bi.GoVersion)
}
