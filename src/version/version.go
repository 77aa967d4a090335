// Package version carries build-time version metadata.
package version

import "fmt"

// Set at build time via -ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// String returns the full version line.
func String() string {
	return fmt.Sprintf("forgeline %s (%s, %s)", Version, Commit, BuildDate)
}
