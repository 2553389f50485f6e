// Package version holds build information injected at link time.
package version

// Set with -ldflags "-X github.com/safedep/gatekeeper/internal/version.Version=..."
var (
	Version = "dev"
	Commit  = "none"
)
