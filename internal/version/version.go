// Package version exposes build metadata stamped by the release pipeline.
package version

// Overridden at build time via -ldflags "-X ...".
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)
