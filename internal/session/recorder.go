package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"clipforge/internal/events"
	"clipforge/internal/logging"
)

// Status is the recorder's externally visible state.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusStarting  Status = "starting"
	StatusRecording Status = "recording"
	StatusStopping  Status = "stopping"
)

// Host provides the capture-side operations the recorder drives. The
// recorder owns ordering and exclusivity; the host owns encoders,
// pipelines, and finalization.
type Host interface {
	// Acquire attaches the session to a running capture pipeline,
	// starting one if needed.
	Acquire(ctx context.Context, s *Session) error
	// Release detaches the session from the pipeline.
	Release(s *Session)
	// Finalize joins the session's segments into the finished recording
	// and returns its path. The host releases the session's segment
	// references once it is done with them.
	Finalize(ctx context.Context, s *Session) (string, error)
}

// Recorder is the recording state machine. Transitions hold the mutex
// only long enough to flip status, so a second start arriving during a
// slow encoder bring-up fails fast instead of queueing.
type Recorder struct {
	logger *slog.Logger
	host   Host
	bus    *events.Bus

	tickInterval time.Duration

	mu      sync.Mutex
	status  Status
	current *Session
	ticker  chan struct{}
}

// StatusSnapshot is a point-in-time view of the recorder.
type StatusSnapshot struct {
	Status    Status
	SessionID string
	Encoder   string
	StartedAt time.Time
	Elapsed   time.Duration
	Segments  int
}

// NewRecorder constructs an idle recorder driving the given host.
func NewRecorder(logger *slog.Logger, host Host, bus *events.Bus) *Recorder {
	return &Recorder{
		logger:       logging.NewComponentLogger(logger, "recorder"),
		host:         host,
		bus:          bus,
		tickInterval: time.Second,
		status:       StatusIdle,
	}
}

// Start begins a new recording. It returns ErrAlreadyRecording when one
// is active and ErrBusy when a transition is still in flight.
func (r *Recorder) Start(ctx context.Context) (string, error) {
	r.mu.Lock()
	switch r.status {
	case StatusRecording:
		r.mu.Unlock()
		return "", ErrAlreadyRecording
	case StatusStarting, StatusStopping:
		r.mu.Unlock()
		return "", ErrBusy
	}
	s := newSession()
	r.status = StatusStarting
	r.current = s
	r.mu.Unlock()

	r.publishState(StatusStarting)
	r.logger.Info("recording starting", logging.String(logging.FieldSessionID, s.ID))

	if err := r.host.Acquire(ctx, s); err != nil {
		r.mu.Lock()
		cleaned := r.current != s
		if !cleaned {
			r.status = StatusIdle
			r.current = nil
		}
		r.mu.Unlock()
		if !cleaned {
			r.publishState(StatusIdle)
		}
		r.logger.Error("recording start failed",
			logging.String(logging.FieldSessionID, s.ID),
			logging.Error(err),
		)
		return "", err
	}

	r.mu.Lock()
	if r.current != s || r.status != StatusStarting {
		// Terminate ran while Acquire was in flight; the recorder is
		// already back in idle and the session's segments are released.
		r.mu.Unlock()
		r.logger.Error("recording start aborted",
			logging.String(logging.FieldSessionID, s.ID),
		)
		return "", fmt.Errorf("%w: session terminated during startup", ErrEncoderLost)
	}
	s.StartedAt = time.Now()
	r.status = StatusRecording
	stop := make(chan struct{})
	r.ticker = stop
	r.mu.Unlock()

	r.publishState(StatusRecording)
	go r.tickElapsed(s, stop)
	r.logger.Info("recording started",
		logging.String(logging.FieldSessionID, s.ID),
		logging.String(logging.FieldEncoder, string(s.Encoder)),
	)
	return s.ID, nil
}

// Stop ends the active recording, finalizes it, and returns the path of
// the finished file.
func (r *Recorder) Stop(ctx context.Context) (string, error) {
	r.mu.Lock()
	switch r.status {
	case StatusIdle:
		r.mu.Unlock()
		return "", ErrNotRecording
	case StatusStarting, StatusStopping:
		r.mu.Unlock()
		return "", ErrBusy
	}
	s := r.current
	r.status = StatusStopping
	r.stopTickerLocked()
	r.mu.Unlock()

	r.publishState(StatusStopping)
	r.logger.Info("recording stopping", logging.String(logging.FieldSessionID, s.ID))

	r.host.Release(s)
	path, err := r.host.Finalize(ctx, s)

	r.mu.Lock()
	r.status = StatusIdle
	r.current = nil
	r.mu.Unlock()
	if r.bus != nil {
		r.bus.Publish(events.Event{
			Kind:   events.KindRecordingStateChanged,
			Status: string(StatusIdle),
			Path:   path,
		})
	}

	if err != nil {
		r.logger.Error("recording finalization failed",
			logging.String(logging.FieldSessionID, s.ID),
			logging.Error(err),
		)
		return "", fmt.Errorf("%w: %w", ErrFinalizationFailed, err)
	}

	r.logger.Info("recording finished",
		logging.String(logging.FieldSessionID, s.ID),
		logging.String("path", path),
	)
	return path, nil
}

// Terminate aborts the active recording without finalizing, dropping the
// session's segments. Used when the capture path fails unrecoverably.
func (r *Recorder) Terminate(cause error) {
	r.mu.Lock()
	if r.current == nil {
		r.mu.Unlock()
		return
	}
	s := r.current
	r.status = StatusIdle
	r.current = nil
	r.stopTickerLocked()
	r.mu.Unlock()

	s.ReleaseAll()
	r.publishState(StatusIdle)
	r.logger.Error("recording terminated",
		logging.String(logging.FieldSessionID, s.ID),
		logging.Error(cause),
	)
}

// Status returns a snapshot of the recorder.
func (r *Recorder) Status() StatusSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := StatusSnapshot{Status: r.status}
	if r.current != nil {
		snapshot.SessionID = r.current.ID
		snapshot.Encoder = string(r.current.Encoder)
		snapshot.StartedAt = r.current.StartedAt
		snapshot.Segments = r.current.SegmentCount()
		if !r.current.StartedAt.IsZero() {
			snapshot.Elapsed = time.Since(r.current.StartedAt)
		}
	}
	return snapshot
}

// Recording reports whether a session is active or transitioning.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status != StatusIdle
}

func (r *Recorder) publishState(status Status) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(events.Event{
		Kind:   events.KindRecordingStateChanged,
		Status: string(status),
	})
}

func (r *Recorder) stopTickerLocked() {
	if r.ticker != nil {
		close(r.ticker)
		r.ticker = nil
	}
}

func (r *Recorder) tickElapsed(s *Session, stop <-chan struct{}) {
	ticker := time.NewTicker(r.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if r.bus != nil {
				r.bus.Publish(events.Event{
					Kind:    events.KindRecordingElapsed,
					Seconds: int64(time.Since(s.StartedAt) / time.Second),
				})
			}
		}
	}
}
