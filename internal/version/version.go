// Package version reports the build identity of the pulse binary.
package version

import "fmt"

// These variables are set at build time via ldflags:
//
//	go build -ldflags "-X github.com/example/pulse/internal/version.Commit=$(git rev-parse HEAD)"
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// String returns the version line shown by `pulse --version`.
func String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, shortCommit(), BuildTime)
}

func shortCommit() string {
	if len(Commit) > 7 {
		return Commit[:7]
	}
	return Commit
}
