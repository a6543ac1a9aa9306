// Package version holds the lidarfusiond build identity, stamped at link
// time via -ldflags.
package version

import "fmt"

var (
	// Version is the lidarfusiond release version.
	Version = "dev"
	// GitSHA is the git commit SHA lidarfusiond was built from.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// String formats the build identity for a daemon startup log line.
func String() string {
	return fmt.Sprintf("lidarfusiond %s (git SHA: %s, built %s)", Version, GitSHA, BuildTime)
}
