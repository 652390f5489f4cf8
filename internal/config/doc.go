// Package config loads, normalizes, and validates the TOML configuration
// used by the reelsmith daemon and CLI.
package config
