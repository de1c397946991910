// Package version exposes build metadata for the meetdex binaries.
// All values are stamped at build time:
//
//	go build -ldflags "-X .../internal/version.Version=v1.2.3"
package version

//nolint:revive // Stamped via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)
