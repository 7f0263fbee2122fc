// Package version reports how the salesdash binaries were built.
package version

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// Set via -ldflags "-X salesdash/internal/version.Version=..."
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// Info describes the running binary
type Info struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	Module    string `json:"module,omitempty"`
	Revision  string `json:"revision,omitempty"`
	Committed string `json:"committed,omitempty"`
	Dirty     bool   `json:"dirty"`
}

// Get returns the ldflags values merged with the embedded build info
func Get() Info {
	info := Info{Version: Version, BuildTime: BuildTime}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	info.GoVersion = bi.GoVersion
	info.Module = bi.Main.Path
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.Revision = s.Value
		case "vcs.time":
			info.Committed = s.Value
		case "vcs.modified":
			info.Dirty = s.Value == "true"
		}
	}
	return info
}

// Short is the version plus an abbreviated revision, e.g. "v1.2.0 (3f2a9c1d)"
func (i Info) Short() string {
	if i.Revision == "" {
		return i.Version
	}
	rev := i.Revision
	if len(rev) > 8 {
		rev = rev[:8]
	}
	if i.Dirty {
		rev += "+dirty"
	}
	return fmt.Sprintf("%s (%s)", i.Version, rev)
}

// String returns a one-line human readable description
func (i Info) String() string {
	parts := []string{"salesdash " + i.Short()}
	if i.BuildTime != "unknown" {
		parts = append(parts, "built "+i.BuildTime)
	}
	if i.GoVersion != "" {
		parts = append(parts, i.GoVersion)
	}
	if i.Committed != "" {
		parts = append(parts, "committed "+i.Committed)
	}
	return strings.Join(parts, ", ")
}

// Warning returns a non-empty message for builds that cannot be traced to a commit
func (i Info) Warning() string {
	switch {
	case i.Dirty:
		return "binary built from a modified source tree"
	case i.Revision == "" && i.Version == "dev":
		return "no version control information (development build)"
	}
	return ""
}
