// Package docent provides version information for the docent gateway.
package docent

import (
	"fmt"
	"runtime"
)

// Version information, injected at build time via -ldflags.
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// Info contains version information
type Info struct {
	Version   string `json:"version"`
	BuildDate string `json:"build_date"`
	GitCommit string `json:"git_commit"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetVersion returns version information
func GetVersion() Info {
	return Info{
		Version:   Version,
		BuildDate: BuildDate,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// String returns a formatted version string. Build metadata is elided
// when it was not injected.
func (i Info) String() string {
	if i.BuildDate == "unknown" && i.GitCommit == "unknown" {
		return fmt.Sprintf("docent %s (%s %s)", i.Version, i.GoVersion, i.Platform)
	}
	return fmt.Sprintf("docent %s (built %s, commit %s, %s %s)",
		i.Version, i.BuildDate, i.GitCommit, i.GoVersion, i.Platform)
}
