package version

var (
	// Version is injected at build time.
	Version = "dev"
	// CommitHash is injected at build time.
	CommitHash = "dev"
)
