package daemonctl

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"clipforge/internal/library"
	"clipforge/internal/testsupport"
)

func TestWaitForClientTimesOut(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "missing.sock")
	start := time.Now()
	if _, err := WaitForClient(socket, 300*time.Millisecond); err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed < 300*time.Millisecond {
		t.Fatalf("returned after %v, before the deadline", elapsed)
	}
}

func TestProcessInfoSocketAbsent(t *testing.T) {
	running, pid, err := ProcessInfo(filepath.Join(t.TempDir(), "missing.sock"))
	if err != nil {
		t.Fatalf("process info: %v", err)
	}
	if running || pid != 0 {
		t.Fatalf("running=%v pid=%d for absent socket", running, pid)
	}
}

func TestStopAndTerminateNotRunning(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "missing.sock")
	if _, err := StopAndTerminate(socket, time.Second); err != ErrDaemonNotRunning {
		t.Fatalf("err = %v, want ErrDaemonNotRunning", err)
	}
}

func TestBuildStatusSnapshotOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	store, err := library.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	rec := library.Recording{
		ID:         "11111111-1111-1111-1111-111111111111",
		Title:      "Offline Clip",
		Path:       filepath.Join(cfg.Paths.RecordingsDir, "offline.mkv"),
		SourceType: library.SourceRecording,
		Container:  "mkv",
		CreatedAt:  time.Now().UTC(),
	}
	if err := store.Insert(context.Background(), rec); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	socket := filepath.Join(t.TempDir(), "missing.sock")
	status, err := BuildStatusSnapshot(context.Background(), socket, cfg)
	if err != nil {
		t.Fatalf("build status: %v", err)
	}
	if status.Running {
		t.Fatal("daemon should be reported offline")
	}
	if status.LibraryCount != 1 {
		t.Fatalf("library count = %d, want 1", status.LibraryCount)
	}
	if status.SocketPath != socket {
		t.Fatalf("socket path = %q", status.SocketPath)
	}
	if status.LibraryDBPath != cfg.LibraryDBPath() {
		t.Fatalf("library db path = %q", status.LibraryDBPath)
	}
}

func TestLaunchRequiresExecutable(t *testing.T) {
	if err := Launch("  ", LaunchOptions{}); err == nil {
		t.Fatal("expected error for empty executable path")
	}
}
