package buildtime

import (
	_ "embed"
	"runtime/debug"
	"strings"
)

//go:embed VERSION
var version string

func init() {
	version = strings.TrimSpace(version)
}

// version string when this loom has been built.
func VERSION() string {
	return version
}

// GitRevision returns the vcs revision recorded in the build info, or
// "unknown" for builds outside a checkout.
func GitRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return "unknown"
}

func VersionString() string {
	return version + " (commit: " + GitRevision() + ")"
}
