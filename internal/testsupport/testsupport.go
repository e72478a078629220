// Package testsupport provides shared fixtures for package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"clipforge/internal/config"
)

// NewConfig returns a normalized config rooted in a per-test temp
// directory, with all managed directories created.
func NewConfig(t *testing.T) *config.Config {
	t.Helper()

	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.RecordingsDir = filepath.Join(root, "recordings")
	cfg.Paths.ReplaysDir = filepath.Join(root, "replays")
	cfg.Paths.ReplayCacheDir = filepath.Join(root, "cache")
	cfg.Paths.ExportsDir = filepath.Join(root, "exports")
	cfg.Paths.LogDir = filepath.Join(root, "log")
	cfg.Capture.Display = ":0"

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}
