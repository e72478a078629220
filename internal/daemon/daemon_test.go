package daemon

import (
	"context"
	"testing"

	"clipforge/internal/config"
	"clipforge/internal/encoder"
	"clipforge/internal/engine"
	"clipforge/internal/events"
	"clipforge/internal/logging"
	"clipforge/internal/testsupport"
)

func newTestDaemon(t *testing.T, cfg *config.Config) *Daemon {
	t.Helper()
	bus := events.NewBus()
	selector := encoder.NewSelector(logging.NewNop(), encoder.DefaultOrder())
	eng := engine.New(logging.NewNop(), cfg, bus, selector, nil)
	d, err := New(cfg, logging.NewNop(), eng, nil, bus)
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	return d
}

func TestStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newTestDaemon(t, cfg)

	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !d.Status(ctx).Running {
		t.Fatal("expected running status")
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("second start must fail")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected stopped status")
	}
	// Stop is idempotent.
	d.Stop()
}

func TestSingleInstanceLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first := newTestDaemon(t, cfg)
	second := newTestDaemon(t, cfg)

	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first start: %v", err)
	}
	defer first.Stop()

	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("expected lock contention")
	}
}

func TestStatusFields(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newTestDaemon(t, cfg)

	status := d.Status(context.Background())
	if status.Running {
		t.Fatal("daemon not started yet")
	}
	if status.SocketPath != cfg.SocketPath() {
		t.Fatalf("socket path = %s", status.SocketPath)
	}
	if status.LockFilePath == "" || status.LibraryDBPath == "" {
		t.Fatalf("incomplete status %+v", status)
	}
	if status.PID <= 0 {
		t.Fatalf("pid = %d", status.PID)
	}
}

func TestTestNotificationUnconfigured(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newTestDaemon(t, cfg)

	sent, message, err := d.TestNotification(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sent || message == "" {
		t.Fatalf("sent=%v message=%q", sent, message)
	}
}
