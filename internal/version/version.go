package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

//nolint:gochecknoglobals // Overridden through -ldflags "-X ...".
var (
	// Version is the semantic version of the build.
	Version = "0.1.0"
	// Commit is the short git SHA embedded at build time (or "none").
	Commit = "none"
	// BuildTime is the UTC build timestamp embedded at build time.
	BuildTime = "unknown"
)

// shortCommitLength is how many characters of a VCS revision are shown.
const shortCommitLength = 7

// Info is the build metadata of the running binary.
type Info struct {
	// Version is the semantic version.
	Version string
	// Commit is the short source revision.
	Commit string
	// BuildTime is when the binary was built.
	BuildTime string
	// GoVersion is the toolchain that built the binary.
	GoVersion string
	// Modified is true when the binary was built from a dirty tree.
	Modified bool
}

// Get returns the build metadata, falling back to the embedded VCS stamp.
func Get() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}

	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}

	for _, setting := range buildInfo.Settings {
		switch setting.Key {
		case "vcs.revision":
			if info.Commit == "none" && setting.Value != "" {
				info.Commit = setting.Value[:min(len(setting.Value), shortCommitLength)]
			}
		case "vcs.time":
			if info.BuildTime == "unknown" && setting.Value != "" {
				info.BuildTime = setting.Value
			}
		case "vcs.modified":
			info.Modified = setting.Value == "true"
		}
	}

	return info
}

// Short returns only the semantic version string.
func Short() string {
	return Version
}

// Full returns a human-readable version string with commit, build time and toolchain.
func Full() string {
	info := Get()

	commit := info.Commit
	if info.Modified {
		commit += "-dirty"
	}

	return fmt.Sprintf("version: %s, commit: %s, built at: %s, go: %s",
		info.Version, commit, info.BuildTime, info.GoVersion)
}
