package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"clipforge/internal/config"
	"clipforge/internal/encoder"
	"clipforge/internal/engine"
	"clipforge/internal/events"
	"clipforge/internal/library"
	"clipforge/internal/logging"
	"clipforge/internal/notifications"
	"clipforge/internal/session"
)

// Daemon coordinates the capture engine, the library store, and the
// notification bridge, and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	engine   *engine.Engine
	store    *library.Store
	bus      *events.Bus
	notifier notifications.Service
	logPath  string

	lockPath string
	lock     *flock.Flock

	monitor *deviceMonitor

	running    atomic.Bool
	ctx        context.Context
	cancel     context.CancelFunc
	bridgeDone chan struct{}
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	Recording     session.StatusSnapshot
	Replay        engine.ReplayStatus
	Encoders      []encoder.Profile
	LibraryCount  int
	LibraryDBPath string
	LockFilePath  string
	SocketPath    string
	PID           int
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, logger *slog.Logger, eng *engine.Engine, store *library.Store, bus *events.Bus) (*Daemon, error) {
	if cfg == nil || logger == nil || eng == nil || bus == nil {
		return nil, errors.New("daemon requires config, logger, engine, and event bus")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "clipforged.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		engine:   eng,
		store:    store,
		bus:      bus,
		notifier: notifications.NewService(cfg),
		logPath:  filepath.Join(cfg.Paths.LogDir, "clipforge.log"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.monitor = newDeviceMonitor(logger, func(ctx context.Context) {
		eng.Reprobe(ctx)
	})
	return d, nil
}

// Start acquires the single-instance lock and brings up the event
// bridge and GPU hotplug monitor.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another clipforge daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.bridgeDone = make(chan struct{})
	go d.bridgeEvents(d.ctx, d.bus.Subscribe(64))

	if err := d.monitor.Start(d.ctx); err != nil {
		d.logger.Warn("device monitor unavailable", logging.Error(err))
	}

	d.running.Store(true)
	d.logger.Info("clipforge daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop tears down the engine and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.monitor.Stop()
	d.engine.Shutdown(context.Background())

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	<-d.bridgeDone

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("clipforge daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// bridgeEvents forwards engine events to logs and optional push
// notifications. Notification failures never propagate.
func (d *Daemon) bridgeEvents(ctx context.Context, sub *events.Subscriber) {
	defer close(d.bridgeDone)
	defer sub.Close()

	var recordingStarted time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			switch event.Kind {
			case events.KindRecordingStateChanged:
				d.logger.Info("recording state changed",
					logging.String("status", event.Status),
					logging.String(logging.FieldEventType, "recording_state"),
				)
				switch event.Status {
				case string(session.StatusRecording):
					recordingStarted = event.At
					if err := d.notifier.NotifyRecordingStarted(ctx); err != nil {
						d.logger.Warn("recording notification failed", logging.Error(err))
					}
				case string(session.StatusIdle):
					if event.Path == "" {
						continue
					}
					elapsed := time.Duration(0)
					if !recordingStarted.IsZero() {
						elapsed = event.At.Sub(recordingStarted)
					}
					if err := d.notifier.NotifyRecordingFinished(ctx, event.Path, elapsed); err != nil {
						d.logger.Warn("recording notification failed", logging.Error(err))
					}
				}
			case events.KindReplayActiveChanged:
				d.logger.Info("instant replay toggled",
					logging.Bool("active", event.Active),
					logging.String(logging.FieldEventType, "replay_toggle"),
				)
			case events.KindReplaySaved:
				if err := d.notifier.NotifyReplaySaved(ctx, event.Path); err != nil {
					d.logger.Warn("replay notification failed", logging.Error(err))
				}
			}
		}
	}
}

// StartRecording begins a manual recording.
func (d *Daemon) StartRecording(ctx context.Context) (string, error) {
	return d.engine.StartRecording(ctx)
}

// StopRecording ends the recording and returns the finished file path.
func (d *Daemon) StopRecording(ctx context.Context) (string, error) {
	return d.engine.StopRecording(ctx)
}

// RecordingStatus returns the recording state machine snapshot.
func (d *Daemon) RecordingStatus() session.StatusSnapshot {
	return d.engine.RecordingStatus()
}

// ToggleReplay flips the instant-replay buffer.
func (d *Daemon) ToggleReplay(ctx context.Context) (bool, error) {
	return d.engine.ToggleReplay(ctx)
}

// SaveReplay writes the trailing replay window to a clip.
func (d *Daemon) SaveReplay(ctx context.Context, window time.Duration) (string, error) {
	return d.engine.SaveReplay(ctx, window)
}

// ReplayStatus returns the replay buffer snapshot.
func (d *Daemon) ReplayStatus() engine.ReplayStatus {
	return d.engine.ReplayStatus()
}

// Encoders returns encoder profiles, optionally re-probing.
func (d *Daemon) Encoders(ctx context.Context, probe bool) []encoder.Profile {
	return d.engine.Encoders(ctx, probe)
}

// LibraryList returns library entries, newest first.
func (d *Daemon) LibraryList(ctx context.Context, limit int) ([]library.Recording, error) {
	if d.store == nil {
		return nil, errors.New("library store unavailable")
	}
	return d.store.List(ctx, limit)
}

// LibrarySearch runs a full-text query over the library.
func (d *Daemon) LibrarySearch(ctx context.Context, query string) ([]library.Recording, error) {
	if d.store == nil {
		return nil, errors.New("library store unavailable")
	}
	return d.store.Search(ctx, query)
}

// LibraryRemove deletes a library entry and optionally its file.
func (d *Daemon) LibraryRemove(ctx context.Context, id string, deleteFile bool) (library.Recording, error) {
	if d.store == nil {
		return library.Recording{}, errors.New("library store unavailable")
	}
	rec, err := d.store.Remove(ctx, id)
	if err != nil {
		return library.Recording{}, err
	}
	if deleteFile {
		if err := os.Remove(rec.Path); err != nil && !os.IsNotExist(err) {
			d.logger.Warn("failed to delete file for removed entry",
				logging.String("path", rec.Path),
				logging.Error(err),
			)
		}
	}
	return rec, nil
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg.Notifications.NtfyTopic == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:       d.running.Load(),
		Recording:     d.engine.RecordingStatus(),
		Replay:        d.engine.ReplayStatus(),
		Encoders:      d.engine.Encoders(ctx, false),
		LibraryDBPath: d.cfg.LibraryDBPath(),
		LockFilePath:  d.lockPath,
		SocketPath:    d.cfg.SocketPath(),
		PID:           os.Getpid(),
	}
	if d.store != nil {
		if count, err := d.store.Count(ctx); err == nil {
			status.LibraryCount = count
		}
	}
	return status
}
