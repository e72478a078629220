package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"clipforge/internal/config"
	"clipforge/internal/daemon"
	"clipforge/internal/encoder"
	"clipforge/internal/engine"
	"clipforge/internal/events"
	"clipforge/internal/ipc"
	"clipforge/internal/library"
	"clipforge/internal/logging"
)

type stubSelector struct{}

func (stubSelector) Select(context.Context, encoder.Kind) (encoder.Profile, error) {
	return encoder.Profile{}, encoder.ErrNoEncoderAvailable
}

func (stubSelector) SelectExcluding(context.Context, encoder.Kind) (encoder.Profile, error) {
	return encoder.Profile{}, encoder.ErrNoEncoderAvailable
}

func (stubSelector) Probe(context.Context) []encoder.Profile {
	return []encoder.Profile{{Kind: encoder.KindSoftware, Codec: "libx264", Name: "libx264 software encoder", Available: true}}
}

func (stubSelector) Cached() []encoder.Profile {
	return []encoder.Profile{{Kind: encoder.KindSoftware, Codec: "libx264", Name: "libx264 software encoder", Available: true}}
}

type cliTestEnv struct {
	cfg        *config.Config
	store      *library.Store
	daemon     *daemon.Daemon
	server     *ipc.Server
	socketPath string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, base)

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	store, err := library.Open(cfg)
	if err != nil {
		t.Fatalf("library.Open: %v", err)
	}

	logger := logging.NewNop()
	bus := events.NewBus()
	eng := engine.New(logger, cfg, bus, stubSelector{}, nil)

	d, err := daemon.New(cfg, logger, eng, store, bus)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	socketPath := filepath.Join(base, "cli.sock")
	srv, err := ipc.NewServer(ctx, socketPath, d, logger)
	if err != nil {
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	env := &cliTestEnv{
		cfg:        cfg,
		store:      store,
		daemon:     d,
		server:     srv,
		socketPath: socketPath,
		configPath: configPath,
	}

	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Close()
	})

	return env
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path, base string) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
recordings_dir = %q
replays_dir = %q
replay_cache_dir = %q
exports_dir = %q
log_dir = %q

[capture]
display = ":0"
`,
		filepath.Join(base, "recordings"),
		filepath.Join(base, "replays"),
		filepath.Join(base, "cache"),
		filepath.Join(base, "exports"),
		filepath.Join(base, "logs"),
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func insertTestRecording(t *testing.T, env *cliTestEnv, title string) library.Recording {
	t.Helper()
	rec := library.Recording{
		ID:              fmt.Sprintf("%08x-0000-4000-8000-000000000000", time.Now().UnixNano()&0xffffffff),
		Title:           title,
		Path:            filepath.Join(env.cfg.Paths.RecordingsDir, strings.ReplaceAll(title, " ", "_")+".mkv"),
		SizeBytes:       1 << 20,
		DurationSeconds: 42.5,
		Width:           1920,
		Height:          1080,
		FPS:             60,
		Codec:           "h264",
		Container:       "mkv",
		SourceType:      library.SourceRecording,
		CreatedAt:       time.Now().UTC(),
	}
	if err := env.store.Insert(context.Background(), rec); err != nil {
		t.Fatalf("insert recording: %v", err)
	}
	return rec
}

func TestCLIRecordAndReplayStatus(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"record", "status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("record status: %v", err)
	}
	if !strings.Contains(out, "State: idle") {
		t.Fatalf("unexpected record status output: %q", out)
	}

	out, _, err = runCLI(t, []string{"replay", "status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("replay status: %v", err)
	}
	if !strings.Contains(out, "Active: no") {
		t.Fatalf("unexpected replay status output: %q", out)
	}
}

func TestCLIRecordStopWhenIdle(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"record", "stop"}, env.socketPath, env.configPath)
	if err == nil {
		t.Fatal("expected error when stopping with no recording")
	}
	if !strings.Contains(err.Error(), "no recording in progress") {
		t.Fatalf("unexpected error message: %v", err)
	}
}

func TestCLIReplaySaveInactive(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"replay", "save"}, env.socketPath, env.configPath)
	if err == nil {
		t.Fatal("expected error while replay is inactive")
	}
	if !strings.Contains(err.Error(), "clipforge replay on") {
		t.Fatalf("unexpected error message: %v", err)
	}
}

func TestCLILibraryCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	alpha := insertTestRecording(t, env, "Ranked Finals")
	insertTestRecording(t, env, "Casual Warmup")

	out, _, err := runCLI(t, []string{"library", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("library list: %v", err)
	}
	if !strings.Contains(out, "Ranked Finals") || !strings.Contains(out, "Casual Warmup") {
		t.Fatalf("library list missing entries: %q", out)
	}

	out, _, err = runCLI(t, []string{"library", "search", "ranked"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("library search: %v", err)
	}
	if !strings.Contains(out, "Ranked Finals") || strings.Contains(out, "Casual Warmup") {
		t.Fatalf("unexpected search output: %q", out)
	}

	out, _, err = runCLI(t, []string{"library", "rm", alpha.ID[:8]}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("library rm: %v", err)
	}
	if !strings.Contains(out, "Ranked Finals") {
		t.Fatalf("unexpected rm output: %q", out)
	}

	out, _, err = runCLI(t, []string{"library", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("library list after rm: %v", err)
	}
	if strings.Contains(out, "Ranked Finals") {
		t.Fatalf("removed entry still listed: %q", out)
	}

	_, _, err = runCLI(t, []string{"library", "rm", "ffffffff"}, env.socketPath, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "no library entry matches") {
		t.Fatalf("expected prefix miss error, got %v", err)
	}
}

func TestCLIEncodersTable(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"encoders"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("encoders: %v", err)
	}
	if !strings.Contains(out, "libx264") {
		t.Fatalf("unexpected encoders output: %q", out)
	}
}

func TestCLITestNotifyUnconfigured(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"test-notify"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	if !strings.Contains(out, "ntfy topic not configured") {
		t.Fatalf("unexpected test-notify output: %q", out)
	}
}

func TestCLIExportListPresets(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"export", "--list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("export --list: %v", err)
	}
	for _, id := range []string{"shorts", "youtube", "trailer", "high_quality"} {
		if !strings.Contains(out, id) {
			t.Fatalf("preset %s missing from output: %q", id, out)
		}
	}
}

func TestCLIConfigInit(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "config.toml")

	cmd := newRootCommand()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"config", "init", "--path", target})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config not written: %v", err)
	}
	if !strings.Contains(stdout.String(), target) {
		t.Fatalf("unexpected output: %q", stdout.String())
	}

	cmd = newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"config", "init", "--path", target})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error without --overwrite")
	}
}
