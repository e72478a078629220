// Package engine composes the capture stack: encoder selection, the
// shared ffmpeg pipeline, the segment writer, the recording session, and
// the replay ring. One pipeline runs while at least one consumer is
// active; recording and replay share it without back-pressure on each
// other.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"clipforge/internal/capture"
	"clipforge/internal/config"
	"clipforge/internal/encoder"
	"clipforge/internal/events"
	"clipforge/internal/logging"
	"clipforge/internal/pipeline"
	"clipforge/internal/replay"
	"clipforge/internal/segment"
	"clipforge/internal/session"
)

const recordTimestampLayout = "2006-01-02_15-04-05"

// Indexer records finalized files into the library. Indexing is best
// effort; failures are logged and never fail the recording.
type Indexer interface {
	IndexFile(ctx context.Context, path, sourceType string) error
}

// capturePipeline is the slice of pipeline.Pipeline the engine drives.
type capturePipeline interface {
	Stop(ctx context.Context) error
}

// EncoderSelector is the selection surface the engine drives, satisfied
// by encoder.Selector.
type EncoderSelector interface {
	Select(ctx context.Context, preferred encoder.Kind) (encoder.Profile, error)
	SelectExcluding(ctx context.Context, exclude encoder.Kind) (encoder.Profile, error)
	Probe(ctx context.Context) []encoder.Profile
	Cached() []encoder.Profile
}

// Engine serializes control-surface operations over the shared capture
// pipeline and implements the recorder's host side.
type Engine struct {
	logger   *slog.Logger
	cfg      *config.Config
	bus      *events.Bus
	selector EncoderSelector
	writer   *segment.Writer
	saver    *replay.Saver
	indexer  Indexer

	recorder *session.Recorder

	mu        sync.Mutex
	pipe      capturePipeline
	profile   encoder.Profile
	ring      *replay.Ring
	current   *session.Session
	epoch     int
	recovered bool

	// Test hooks.
	startPipeline func(ctx context.Context, logger *slog.Logger, spec pipeline.CaptureSpec, writer *segment.Writer, onExit func(error)) (capturePipeline, error)
	runCommand    func(ctx context.Context, args []string) error
	resolveSource func(ctx context.Context, cfg *config.Config) (capture.Source, error)
	resolveAudio  func(ctx context.Context, configured string) (string, error)
	now           func() time.Time
}

// New constructs an engine. indexer may be nil.
func New(logger *slog.Logger, cfg *config.Config, bus *events.Bus, selector EncoderSelector, indexer Indexer) *Engine {
	e := &Engine{
		logger:        logging.NewComponentLogger(logger, "engine"),
		cfg:           cfg,
		bus:           bus,
		selector:      selector,
		writer:        segment.NewWriter(),
		indexer:       indexer,
		startPipeline: func(ctx context.Context, logger *slog.Logger, spec pipeline.CaptureSpec, writer *segment.Writer, onExit func(error)) (capturePipeline, error) {
			return pipeline.Start(ctx, logger, spec, writer, onExit)
		},
		runCommand:    pipeline.RunFFmpeg,
		resolveSource: capture.Resolve,
		resolveAudio:  capture.ResolveAudioSource,
		now:           time.Now,
	}
	// The saver shares the engine's command runner so both finalize and
	// clip save go through the same ffmpeg entry point.
	e.saver = replay.NewSaver(logger, cfg.Paths.ReplaysDir, cfg.Paths.ReplayCacheDir,
		func(ctx context.Context, args []string) error {
			return e.runCommand(ctx, args)
		})
	e.recorder = session.NewRecorder(logger, e, bus)
	return e
}

// Recorder returns the recording state machine.
func (e *Engine) Recorder() *session.Recorder { return e.recorder }

// StartRecording begins a manual recording and returns the session id.
func (e *Engine) StartRecording(ctx context.Context) (string, error) {
	return e.recorder.Start(ctx)
}

// StopRecording ends the recording and returns the finished file path.
func (e *Engine) StopRecording(ctx context.Context) (string, error) {
	return e.recorder.Stop(ctx)
}

// RecordingStatus returns a snapshot of the recording state machine.
func (e *Engine) RecordingStatus() session.StatusSnapshot {
	return e.recorder.Status()
}

// Acquire implements session.Host: it ensures the pipeline is running
// and attaches the session as a segment consumer.
func (e *Engine) Acquire(ctx context.Context, s *session.Session) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ensurePipelineLocked(ctx); err != nil {
		return err
	}
	s.Encoder = e.profile.Kind
	e.current = s
	e.writer.Attach(s)
	return nil
}

// Release implements session.Host. When the session is the last
// consumer the pipeline is stopped first so its final segments flush
// into the session before detaching. While the replay buffer stays
// active the pipeline keeps running, so the in-flight partial segment
// lands in the buffer instead of the finalized file.
func (e *Engine) Release(s *session.Session) {
	e.mu.Lock()
	if e.current != s {
		e.mu.Unlock()
		return
	}
	e.current = nil

	if e.ring == nil && e.pipe != nil {
		pipe := e.pipe
		e.pipe = nil
		e.mu.Unlock()
		if err := pipe.Stop(context.Background()); err != nil {
			e.logger.Warn("pipeline stop", logging.Error(err))
		}
		e.mu.Lock()
	}
	e.writer.Detach(s)
	e.mu.Unlock()
}

// Finalize implements session.Host: it joins the session's segments
// into the finished recording, releases them, and trims the replay ring
// past the claimed range.
func (e *Engine) Finalize(ctx context.Context, s *session.Session) (string, error) {
	defer s.ReleaseAll()

	segments := s.Segments()
	if len(segments) == 0 {
		return "", fmt.Errorf("no segments captured")
	}
	lastSeq := s.LastSeq()

	stamp := e.now().Format(recordTimestampLayout)
	name := fmt.Sprintf("recording_%s.%s", stamp, e.cfg.Encoder.Container)
	outPath := filepath.Join(e.cfg.Paths.RecordingsDir, name)
	listPath := filepath.Join(e.cfg.Paths.ReplayCacheDir, fmt.Sprintf("recording_%s.txt", stamp))

	var list strings.Builder
	for _, seg := range segments {
		list.WriteString(pipeline.ConcatEntry(seg.Path))
	}
	if err := os.WriteFile(listPath, []byte(list.String()), 0o644); err != nil {
		return "", fmt.Errorf("write concat list: %w", err)
	}
	defer os.Remove(listPath)

	if err := e.runCommand(ctx, pipeline.BuildConcatArgs(listPath, outPath)); err != nil {
		return "", fmt.Errorf("concat session segments: %w", err)
	}

	e.mu.Lock()
	if e.ring != nil {
		e.ring.DiscardThrough(lastSeq)
	}
	e.mu.Unlock()

	e.index(ctx, outPath, "recording")
	return outPath, nil
}

// ToggleReplay flips the instant-replay buffer and returns the new
// active state.
func (e *Engine) ToggleReplay(ctx context.Context) (bool, error) {
	e.mu.Lock()

	if e.ring != nil {
		ring := e.ring
		e.ring = nil
		e.writer.Detach(ring)
		ring.Shutdown()

		if e.current == nil && e.pipe != nil {
			pipe := e.pipe
			e.pipe = nil
			e.mu.Unlock()
			if err := pipe.Stop(context.Background()); err != nil {
				e.logger.Warn("pipeline stop", logging.Error(err))
			}
		} else {
			e.mu.Unlock()
		}

		e.publishReplayActive(false)
		e.logger.Info("instant replay deactivated")
		return false, nil
	}

	if err := e.ensurePipelineLocked(ctx); err != nil {
		e.mu.Unlock()
		return false, err
	}
	ring := replay.NewRing(e.logger, e.cfg.ReplayCapacity())
	e.ring = ring
	e.writer.Attach(ring)
	e.mu.Unlock()

	e.publishReplayActive(true)
	e.logger.Info("instant replay activated",
		logging.Duration("capacity", e.cfg.ReplayCapacity()),
	)
	return true, nil
}

// SaveReplay writes the trailing window of the replay buffer to a clip.
// window <= 0 uses the configured default. Returns ErrReplayInactive when
// the buffer is off.
func (e *Engine) SaveReplay(ctx context.Context, window time.Duration) (string, error) {
	e.mu.Lock()
	ring := e.ring
	e.mu.Unlock()
	if ring == nil {
		return "", replay.ErrReplayInactive
	}
	if window <= 0 {
		window = e.cfg.DefaultSaveWindow()
	}

	path, err := e.saver.Save(ctx, ring, window)
	if err != nil {
		return "", err
	}

	if e.bus != nil {
		e.bus.Publish(events.Event{Kind: events.KindReplaySaved, Path: path})
	}
	e.index(ctx, path, "replay")
	return path, nil
}

// ReplayStatus describes the replay buffer.
type ReplayStatus struct {
	Active          bool
	Segments        int
	BufferedSeconds float64
	CapacitySeconds float64
}

// ReplayStatus returns a snapshot of the replay buffer.
func (e *Engine) ReplayStatus() ReplayStatus {
	e.mu.Lock()
	ring := e.ring
	e.mu.Unlock()

	status := ReplayStatus{CapacitySeconds: e.cfg.ReplayCapacity().Seconds()}
	if ring != nil {
		status.Active = true
		status.Segments = ring.Len()
		status.BufferedSeconds = ring.TotalDuration().Seconds()
	}
	return status
}

// Encoders returns encoder profiles, re-probing when probe is set.
func (e *Engine) Encoders(ctx context.Context, probe bool) []encoder.Profile {
	if probe {
		return e.selector.Probe(ctx)
	}
	if cached := e.selector.Cached(); cached != nil {
		return cached
	}
	return e.selector.Probe(ctx)
}

// Reprobe refreshes the encoder cache, typically after a GPU change.
func (e *Engine) Reprobe(ctx context.Context) {
	e.selector.Probe(ctx)
}

// Shutdown tears everything down: active recording is terminated without
// finalization, the replay buffer is released, and the pipeline stopped.
func (e *Engine) Shutdown(ctx context.Context) {
	e.recorder.Terminate(fmt.Errorf("daemon shutting down"))

	e.mu.Lock()
	if e.ring != nil {
		ring := e.ring
		e.ring = nil
		e.writer.Detach(ring)
		ring.Shutdown()
	}
	pipe := e.pipe
	e.pipe = nil
	e.mu.Unlock()

	if pipe != nil {
		if err := pipe.Stop(ctx); err != nil {
			e.logger.Warn("pipeline stop", logging.Error(err))
		}
	}
}

// ensurePipelineLocked starts the shared pipeline if it is not running.
// Callers hold e.mu.
func (e *Engine) ensurePipelineLocked(ctx context.Context) error {
	if e.pipe != nil {
		return nil
	}

	var preferred encoder.Kind
	if kind, ok := encoder.ParseKind(e.cfg.Encoder.Preferred); ok {
		preferred = kind
	}
	profile, err := e.selector.Select(ctx, preferred)
	if err != nil {
		return err
	}

	spec, err := e.buildSpec(ctx, profile)
	if err != nil {
		return fmt.Errorf("%w: %w", session.ErrEncoderInitFailed, err)
	}

	pipe, err := e.startPipeline(ctx, e.logger, spec, e.writer, e.onPipelineExit)
	if err != nil {
		return fmt.Errorf("%w: %w", session.ErrEncoderInitFailed, err)
	}
	e.pipe = pipe
	e.profile = profile
	e.recovered = false
	return nil
}

// buildSpec resolves the capture geometry and audio source and bumps the
// segment epoch.
func (e *Engine) buildSpec(ctx context.Context, profile encoder.Profile) (pipeline.CaptureSpec, error) {
	source, err := e.resolveSource(ctx, e.cfg)
	if err != nil {
		return pipeline.CaptureSpec{}, err
	}

	var audio string
	if e.cfg.Capture.AudioEnabled {
		audio, err = e.resolveAudio(ctx, e.cfg.Capture.AudioSource)
		if err != nil {
			e.logger.Warn("audio source unavailable, capturing video only", logging.Error(err))
			audio = ""
		}
	}

	e.epoch++
	return pipeline.CaptureSpec{
		Profile:        profile,
		Source:         source,
		AudioSource:    audio,
		Quality:        e.cfg.Encoder.Quality,
		SegmentSeconds: e.cfg.Replay.SegmentSeconds,
		CacheDir:       e.cfg.Paths.ReplayCacheDir,
		Epoch:          e.epoch,
	}, nil
}

// onPipelineExit handles an unexpected capture process death. One
// re-selection excluding the failed encoder is attempted; a second
// failure in the same generation is fatal for the session and the
// replay buffer.
func (e *Engine) onPipelineExit(cause error) {
	e.mu.Lock()

	if e.pipe == nil {
		e.mu.Unlock()
		return
	}
	failed := e.profile.Kind
	e.pipe = nil

	if e.current == nil && e.ring == nil {
		e.mu.Unlock()
		return
	}

	if e.recovered {
		e.mu.Unlock()
		e.fatal(cause)
		return
	}

	ctx := context.Background()
	profile, err := e.selector.SelectExcluding(ctx, failed)
	if err != nil {
		e.mu.Unlock()
		e.fatal(err)
		return
	}

	spec, err := e.buildSpec(ctx, profile)
	if err == nil {
		var pipe capturePipeline
		pipe, err = e.startPipeline(ctx, e.logger, spec, e.writer, e.onPipelineExit)
		if err == nil {
			e.pipe = pipe
			e.profile = profile
			e.recovered = true
			e.mu.Unlock()
			logging.WarnWithContext(e.logger, "capture pipeline restarted on fallback encoder", "encoder_lost",
				logging.String("failed", string(failed)),
				logging.String(logging.FieldEncoder, profile.Label()),
			)
			return
		}
	}
	e.mu.Unlock()
	e.fatal(err)
}

// fatal tears down consumers after an unrecoverable capture failure.
func (e *Engine) fatal(cause error) {
	logging.ErrorWithContext(e.logger, "capture pipeline lost", "encoder_lost", logging.Error(cause))

	e.mu.Lock()
	s := e.current
	e.current = nil
	ring := e.ring
	e.ring = nil
	if s != nil {
		e.writer.Detach(s)
	}
	if ring != nil {
		e.writer.Detach(ring)
	}
	e.mu.Unlock()

	if ring != nil {
		ring.Shutdown()
		e.publishReplayActive(false)
	}
	if s != nil {
		e.recorder.Terminate(fmt.Errorf("%w: %w", session.ErrEncoderLost, cause))
	}
}

func (e *Engine) publishReplayActive(active bool) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(events.Event{Kind: events.KindReplayActiveChanged, Active: active})
}

func (e *Engine) index(ctx context.Context, path, sourceType string) {
	if e.indexer == nil {
		return
	}
	if err := e.indexer.IndexFile(ctx, path, sourceType); err != nil {
		e.logger.Warn("library indexing failed",
			logging.String("path", path),
			logging.Error(err),
		)
	}
}
