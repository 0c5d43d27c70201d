// Package buildinfo carries release metadata stamped into gfxcheck binaries.
package buildinfo

// These values are injected via ldflags for release binaries.
// They default to empty for local/dev builds.
var (
	Version = ""
	Commit  = ""
	Date    = ""
)
