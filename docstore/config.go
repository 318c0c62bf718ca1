package docstore

import "log/slog"

// Config holds configuration for the Client.
type Config struct {
	// Database is the database resource name, the prefix of every document
	// name this client produces.
	// Default: "databases/default"
	Database string

	// Logger receives debug output and warnings about best-effort work,
	// such as rollbacks the retry loop performs on the caller's behalf.
	// Default: slog.Default()
	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults for a single-database deployment.
func DefaultConfig() Config {
	return Config{
		Database: "databases/default",
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.Database == "" {
		c.Database = "databases/default"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
