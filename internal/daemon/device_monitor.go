package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pilebones/go-udev/netlink"

	"clipforge/internal/logging"
)

// reprobeDebounce batches the burst of uevents a GPU hotplug produces
// into one encoder re-probe.
const reprobeDebounce = 2 * time.Second

// deviceMonitor listens for udev DRM events and re-probes the encoder
// set when a GPU appears or disappears, so a docked eGPU or a reloaded
// driver is picked up without restarting the daemon.
type deviceMonitor struct {
	logger  *slog.Logger
	reprobe func(ctx context.Context)

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	timer   *time.Timer
	running bool
}

func newDeviceMonitor(logger *slog.Logger, reprobe func(ctx context.Context)) *deviceMonitor {
	return &deviceMonitor{
		logger:  logging.NewComponentLogger(logger, "device-monitor"),
		reprobe: reprobe,
	}
}

// Start begins listening for udev netlink events.
func (m *deviceMonitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("failed to connect to netlink socket; GPU hotplug will not trigger re-probes",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldErrorHint, "ensure the daemon has permission to access netlink sockets"),
			logging.String(logging.FieldImpact, "encoder list only refreshes on demand"),
		)
		return nil // Non-fatal: encoders can still be re-probed manually.
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, quit)

	m.logger.Info("device monitor started",
		logging.String(logging.FieldEventType, "device_monitor_started"),
	)
	return nil
}

// Stop shuts down the device monitor.
func (m *deviceMonitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.running = false

	m.logger.Info("device monitor stopped",
		logging.String(logging.FieldEventType, "device_monitor_stopped"),
	)
}

// Running reports whether the monitor is active.
func (m *deviceMonitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *deviceMonitor) monitorLoop(ctx context.Context, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(queue, errs, buildDRMMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(ctx, uevent)
		case err := <-errs:
			m.logger.Warn("device monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "device_monitor_error"),
			)
		}
	}
}

// buildDRMMatcher matches GPU topology changes:
// SUBSYSTEM=drm, ACTION=add|remove|change.
func buildDRMMatcher() netlink.Matcher {
	action := "add|remove|change"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "drm",
		},
	})
	return rules
}

// handleEvent schedules a debounced re-probe for a DRM topology change.
func (m *deviceMonitor) handleEvent(ctx context.Context, uevent netlink.UEvent) {
	m.logger.Debug("drm event",
		logging.String("action", string(uevent.Action)),
		logging.String("kobj", uevent.KObj),
	)

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(reprobeDebounce, func() {
		m.logger.Info("GPU topology changed, re-probing encoders",
			logging.String(logging.FieldEventType, "encoder_reprobe"),
		)
		m.reprobe(ctx)
	})
}
