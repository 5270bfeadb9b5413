package config

// Build metadata, set with -ldflags "-X github.com/edirooss/scriptd/internal/config.Version=...".
var (
	Version   = "dev"
	GitCommit = "none"
	BuildDate = "unknown"
)
