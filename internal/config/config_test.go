package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"clipforge/internal/config"
)

func TestDefaultsApplied(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("DISPLAY", ":1")

	cfg, _, exists, err := config.Load(filepath.Join(home, "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be reported as missing")
	}
	if cfg.Capture.FPS != 60 {
		t.Fatalf("expected default fps 60, got %d", cfg.Capture.FPS)
	}
	if cfg.Capture.Display != ":1" {
		t.Fatalf("expected display from environment, got %q", cfg.Capture.Display)
	}
	if cfg.Replay.CapacitySeconds != 120 || cfg.Replay.SegmentSeconds != 2 {
		t.Fatalf("unexpected replay defaults: %+v", cfg.Replay)
	}
	if got := cfg.DefaultSaveWindow(); got != 30*time.Second {
		t.Fatalf("expected 30s default save window, got %s", got)
	}
	if !strings.HasPrefix(cfg.Paths.RecordingsDir, home) {
		t.Fatalf("expected recordings dir under %s, got %s", home, cfg.Paths.RecordingsDir)
	}
	if cfg.Encoder.Quality != "high" || cfg.Encoder.Container != "mkv" {
		t.Fatalf("unexpected encoder defaults: %+v", cfg.Encoder)
	}
	if want := []string{"vaapi", "nvenc", "qsv", "software"}; len(cfg.Encoder.Order) != len(want) {
		t.Fatalf("unexpected encoder order: %v", cfg.Encoder.Order)
	}
}

func TestLoadParsesAndExpandsPaths(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[paths]
recordings_dir = "~/captures"
replay_cache_dir = "~/cache/replay"

[capture]
fps = 30
audio_enabled = false

[replay]
capacity_seconds = 60
segment_seconds = 3
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != path {
		t.Fatalf("expected resolved path %s, got %s", path, resolved)
	}
	if cfg.Paths.RecordingsDir != filepath.Join(home, "captures") {
		t.Fatalf("expected tilde expansion, got %s", cfg.Paths.RecordingsDir)
	}
	if cfg.Capture.FPS != 30 {
		t.Fatalf("expected fps 30, got %d", cfg.Capture.FPS)
	}
	if cfg.Capture.AudioEnabled {
		t.Fatal("expected audio disabled")
	}
	if got := cfg.ReplayCapacity(); got != time.Minute {
		t.Fatalf("expected 60s capacity, got %s", got)
	}
	if cfg.Replay.DefaultSaveSeconds != 30 {
		t.Fatalf("expected default save seconds to backfill, got %d", cfg.Replay.DefaultSaveSeconds)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "bad capture mode",
			body: "[capture]\nmode = \"window\"\n",
			want: "capture.mode",
		},
		{
			name: "region without geometry",
			body: "[capture]\nmode = \"region\"\n",
			want: "capture.region_width",
		},
		{
			name: "bad quality",
			body: "[encoder]\nquality = \"ultra\"\n",
			want: "encoder.quality",
		},
		{
			name: "bad container",
			body: "[encoder]\ncontainer = \"avi\"\n",
			want: "encoder.container",
		},
		{
			name: "segment exceeds capacity",
			body: "[replay]\ncapacity_seconds = 4\nsegment_seconds = 10\n",
			want: "replay.segment_seconds",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tc.body), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			_, _, _, err := config.Load(path)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestEnsureDirectories(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, _, _, err := config.Load(filepath.Join(home, "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	cfg.Paths.ReplayCacheDir = filepath.Join(home, "shm", "clipforge")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.RecordingsDir, cfg.Paths.ReplaysDir, cfg.Paths.ReplayCacheDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s to exist: %v", dir, err)
		}
	}
	if got := cfg.SocketPath(); filepath.Dir(got) != cfg.Paths.LogDir {
		t.Fatalf("expected socket under log dir, got %s", got)
	}
}
