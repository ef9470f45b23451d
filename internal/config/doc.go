// Package config loads, normalizes, and validates sift's TOML configuration.
package config
