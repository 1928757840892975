// Package version provides version information for the codepick CLI tool.
package version

import (
	"fmt"
	"runtime"
)

// These variables are populated at build time using -ldflags.
// Example:
// go build -ldflags "-X 'github.com/drengskapur/codepick/pkg/version.Version=1.2.3' -X 'github.com/drengskapur/codepick/pkg/version.Commit=abcdefg'"
var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

// Info contains comprehensive version information.
type Info struct {
	Version   string
	GitCommit string
	BuildTime string
	GoVersion string
	Platform  string
}

// Get returns the current version information.
func Get() Info {
	return Info{
		Version:   Version,
		GitCommit: Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// String renders a single line, e.g.
// codepick 1.2.3 (abcdefg, 2024-04-27T15:04:05Z) go1.24.1 linux/amd64
func (i Info) String() string {
	return fmt.Sprintf("codepick %s (%s, %s) %s %s",
		i.Version, i.GitCommit, i.BuildTime, i.GoVersion, i.Platform)
}
