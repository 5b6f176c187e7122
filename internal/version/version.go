// Package version carries build metadata set with -ldflags at link time.
package version

import "fmt"

var (
	// Version is the release version of nblist
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String formats the build metadata for -version output.
func String() string {
	return fmt.Sprintf("nblist %s (%s, built %s)", Version, GitSHA, BuildTime)
}
