// Package config loads, normalizes, and validates Clipforge's TOML
// configuration. Values are read once at daemon start; a running capture
// session never observes config changes.
package config
