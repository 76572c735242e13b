// Package version holds the build version of the binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	// BuildVersion is set at build time with -ldflags "-X ...version.BuildVersion=v1.2.3"
	BuildVersion = "dev"
	// BuildCommit is the VCS revision, read from build info when not set
	BuildCommit = ""
	// BuildDate is the VCS commit time, read from build info when not set
	BuildDate = ""
)

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if BuildCommit == "" {
				BuildCommit = setting.Value
			}
		case "vcs.time":
			if BuildDate == "" {
				BuildDate = setting.Value
			}
		}
	}
}

// Info is the version information reported by the CLI and the MCP server.
type Info struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Commit    string `json:"vcs_revision,omitempty"`
	Date      string `json:"build_time,omitempty"`
}

// Get returns the version information of the running binary.
func Get() Info {
	return Info{
		Version:   BuildVersion,
		GoVersion: runtime.Version(),
		Commit:    BuildCommit,
		Date:      BuildDate,
	}
}

// String renders the version on one line.
func String() string {
	info := Get()
	s := fmt.Sprintf("osmgender %s (%s)", info.Version, info.GoVersion)
	if info.Commit != "" {
		s += " commit " + info.Commit
	}
	if info.Date != "" {
		s += " built " + info.Date
	}
	return s
}
