package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
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
	"clipforge/internal/testsupport"
)

type fakeSelector struct {
	mu        sync.Mutex
	profiles  []encoder.Profile
	selectErr error
	excludes  []encoder.Kind
}

func (f *fakeSelector) Select(ctx context.Context, preferred encoder.Kind) (encoder.Profile, error) {
	if f.selectErr != nil {
		return encoder.Profile{}, f.selectErr
	}
	return f.profiles[0], nil
}

func (f *fakeSelector) SelectExcluding(ctx context.Context, exclude encoder.Kind) (encoder.Profile, error) {
	f.mu.Lock()
	f.excludes = append(f.excludes, exclude)
	f.mu.Unlock()
	for _, p := range f.profiles {
		if p.Kind != exclude {
			return p, nil
		}
	}
	return encoder.Profile{}, encoder.ErrNoEncoderAvailable
}

func (f *fakeSelector) Probe(ctx context.Context) []encoder.Profile { return f.profiles }
func (f *fakeSelector) Cached() []encoder.Profile                   { return f.profiles }

type fakePipe struct {
	mu      sync.Mutex
	stopped bool
}

func (p *fakePipe) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	return nil
}

func (p *fakePipe) isStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

type harness struct {
	t   *testing.T
	e   *Engine
	cfg *config.Config
	bus *events.Bus
	sel *fakeSelector

	mu       sync.Mutex
	starts   []pipeline.CaptureSpec
	pipes    []*fakePipe
	exits    []func(error)
	commands [][]string
	startErr error
	next     int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Capture.AudioEnabled = true

	sel := &fakeSelector{profiles: []encoder.Profile{
		{Kind: encoder.KindVAAPI, Codec: "h264_vaapi", Device: "/dev/dri/renderD128", Available: true},
		{Kind: encoder.KindSoftware, Codec: "libx264", Available: true},
	}}
	h := &harness{t: t, cfg: cfg, bus: events.NewBus(), sel: sel}
	h.e = New(logging.NewNop(), cfg, h.bus, sel, nil)

	h.e.startPipeline = func(ctx context.Context, logger *slog.Logger, spec pipeline.CaptureSpec, writer *segment.Writer, onExit func(error)) (capturePipeline, error) {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.startErr != nil {
			return nil, h.startErr
		}
		pipe := &fakePipe{}
		h.starts = append(h.starts, spec)
		h.pipes = append(h.pipes, pipe)
		h.exits = append(h.exits, onExit)
		return pipe, nil
	}
	h.e.resolveSource = func(ctx context.Context, cfg *config.Config) (capture.Source, error) {
		return capture.Source{Display: ":0", Mode: capture.ModeFullscreen, Width: 1920, Height: 1080, FPS: 60}, nil
	}
	h.e.resolveAudio = func(ctx context.Context, configured string) (string, error) {
		return "default.monitor", nil
	}
	h.e.runCommand = func(ctx context.Context, args []string) error {
		h.mu.Lock()
		h.commands = append(h.commands, args)
		h.mu.Unlock()
		return os.WriteFile(args[len(args)-1], []byte("out"), 0o644)
	}
	h.e.now = func() time.Time {
		return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	}
	return h
}

func (h *harness) startCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.starts)
}

// publish simulates the pipeline listing one completed segment.
func (h *harness) publish(d time.Duration) string {
	h.t.Helper()
	path := filepath.Join(h.cfg.Paths.ReplayCacheDir, fmt.Sprintf("seg_%06d.mkv", h.next))
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		h.t.Fatalf("write segment: %v", err)
	}
	start := time.Duration(h.next) * d
	h.next++
	h.e.writer.Publish(path, start, start+d)
	return path
}

func TestRecordLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.e.StartRecording(ctx); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if h.startCount() != 1 {
		t.Fatalf("expected one pipeline start, got %d", h.startCount())
	}
	segs := []string{h.publish(2 * time.Second), h.publish(2 * time.Second)}

	path, err := h.e.StopRecording(ctx)
	if err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
	want := filepath.Join(h.cfg.Paths.RecordingsDir, "recording_2026-08-30_12-00-00.mkv")
	if path != want {
		t.Fatalf("path = %s, want %s", path, want)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected recording on disk: %v", err)
	}
	if !h.pipes[0].isStopped() {
		t.Fatal("expected pipeline stopped when last consumer leaves")
	}
	if h.e.writer.ConsumerCount() != 0 {
		t.Fatalf("expected no consumers, got %d", h.e.writer.ConsumerCount())
	}
	// Session references released, cache segments gone.
	for _, seg := range segs {
		if _, err := os.Stat(seg); err == nil {
			t.Fatalf("expected cache segment %s deleted after finalize", seg)
		}
	}
}

func TestStartRecordingNoEncoder(t *testing.T) {
	h := newHarness(t)
	h.sel.selectErr = encoder.ErrNoEncoderAvailable

	_, err := h.e.StartRecording(context.Background())
	if !errors.Is(err, encoder.ErrNoEncoderAvailable) {
		t.Fatalf("err = %v, want ErrNoEncoderAvailable", err)
	}
	if status := h.e.RecordingStatus(); status.Status != session.StatusIdle {
		t.Fatalf("expected idle, got %s", status.Status)
	}
}

func TestStartRecordingPipelineFailure(t *testing.T) {
	h := newHarness(t)
	h.startErr = errors.New("exec: ffmpeg: not found")

	_, err := h.e.StartRecording(context.Background())
	if !errors.Is(err, session.ErrEncoderInitFailed) {
		t.Fatalf("err = %v, want ErrEncoderInitFailed", err)
	}
	if status := h.e.RecordingStatus(); status.Status != session.StatusIdle {
		t.Fatalf("expected idle, got %s", status.Status)
	}
}

func TestToggleReplay(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	active, err := h.e.ToggleReplay(ctx)
	if err != nil || !active {
		t.Fatalf("toggle on: active=%v err=%v", active, err)
	}
	if h.startCount() != 1 {
		t.Fatalf("expected pipeline start on activation, got %d", h.startCount())
	}

	active, err = h.e.ToggleReplay(ctx)
	if err != nil || active {
		t.Fatalf("toggle off: active=%v err=%v", active, err)
	}
	if !h.pipes[0].isStopped() {
		t.Fatal("expected pipeline stopped on deactivation")
	}
	if status := h.e.ReplayStatus(); status.Active {
		t.Fatal("expected inactive replay status")
	}
}

func TestRecordingAndReplaySharePipeline(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.e.ToggleReplay(ctx); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if _, err := h.e.StartRecording(ctx); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if h.startCount() != 1 {
		t.Fatalf("expected a single shared pipeline, got %d starts", h.startCount())
	}
	h.publish(2 * time.Second)

	if _, err := h.e.StopRecording(ctx); err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
	if h.pipes[0].isStopped() {
		t.Fatal("pipeline must keep running for the replay buffer")
	}

	if _, err := h.e.ToggleReplay(ctx); err != nil {
		t.Fatalf("toggle off: %v", err)
	}
	if !h.pipes[0].isStopped() {
		t.Fatal("expected pipeline stopped after last consumer left")
	}
}

func TestFinalizeTrimsReplayOverlap(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.e.ToggleReplay(ctx); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if _, err := h.e.StartRecording(ctx); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	h.publish(2 * time.Second)
	h.publish(2 * time.Second)

	if _, err := h.e.StopRecording(ctx); err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
	// Segments claimed by the finalized recording leave the buffer.
	if status := h.e.ReplayStatus(); status.Segments != 0 {
		t.Fatalf("expected trimmed buffer, %d segments retained", status.Segments)
	}
}

func TestSaveReplayInactive(t *testing.T) {
	h := newHarness(t)
	_, err := h.e.SaveReplay(context.Background(), 30*time.Second)
	if !errors.Is(err, replay.ErrReplayInactive) {
		t.Fatalf("err = %v, want ErrReplayInactive", err)
	}
}

func TestSaveReplayEmptyBuffer(t *testing.T) {
	h := newHarness(t)
	if _, err := h.e.ToggleReplay(context.Background()); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	_, err := h.e.SaveReplay(context.Background(), 30*time.Second)
	if !errors.Is(err, replay.ErrEmptyBuffer) {
		t.Fatalf("err = %v, want ErrEmptyBuffer", err)
	}
}

func TestSaveReplay(t *testing.T) {
	h := newHarness(t)
	sub := h.bus.Subscribe(16)
	ctx := context.Background()

	if _, err := h.e.ToggleReplay(ctx); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	h.publish(2 * time.Second)
	h.publish(2 * time.Second)

	path, err := h.e.SaveReplay(ctx, 0) // default window from config
	if err != nil {
		t.Fatalf("SaveReplay: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(path), "replay_") {
		t.Fatalf("unexpected clip name %s", path)
	}
	if filepath.Dir(path) != h.cfg.Paths.ReplaysDir {
		t.Fatalf("clip saved outside replays dir: %s", path)
	}
	// The save must go through the engine's command runner, not a real
	// ffmpeg on PATH.
	h.mu.Lock()
	ran := len(h.commands)
	h.mu.Unlock()
	if ran != 1 {
		t.Fatalf("expected one concat command, got %d", ran)
	}

	var saved bool
	for !saved {
		select {
		case event := <-sub.Events():
			if event.Kind == events.KindReplaySaved && event.Path == path {
				saved = true
			}
		default:
			t.Fatal("no replay-saved event published")
		}
	}
}

func TestEncoderLossRestartsOnFallback(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.e.StartRecording(ctx); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}

	h.exits[0](errors.New("exit status 255"))

	if h.startCount() != 2 {
		t.Fatalf("expected restart, got %d starts", h.startCount())
	}
	if got := h.sel.excludes; len(got) != 1 || got[0] != encoder.KindVAAPI {
		t.Fatalf("expected re-selection excluding vaapi, got %v", got)
	}
	if h.starts[1].Profile.Kind != encoder.KindSoftware {
		t.Fatalf("expected fallback encoder, got %s", h.starts[1].Profile.Kind)
	}
	if h.starts[1].Epoch == h.starts[0].Epoch {
		t.Fatal("restart must use a fresh segment epoch")
	}
	if status := h.e.RecordingStatus(); status.Status != session.StatusRecording {
		t.Fatalf("expected recording to survive one encoder loss, got %s", status.Status)
	}

	// The restarted generation produced no segments, so finalization
	// fails but the recorder still lands back in idle.
	if _, err := h.e.StopRecording(ctx); !errors.Is(err, session.ErrFinalizationFailed) {
		t.Fatalf("err = %v, want ErrFinalizationFailed", err)
	}
	if status := h.e.RecordingStatus(); status.Status != session.StatusIdle {
		t.Fatalf("expected idle, got %s", status.Status)
	}
}

func TestEncoderLossSecondFailureIsFatal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.e.ToggleReplay(ctx); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if _, err := h.e.StartRecording(ctx); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	sub := h.bus.Subscribe(16)

	h.exits[0](errors.New("exit status 255"))
	h.exits[1](errors.New("exit status 255"))

	if h.startCount() != 2 {
		t.Fatalf("expected exactly one restart, got %d starts", h.startCount())
	}
	if status := h.e.RecordingStatus(); status.Status != session.StatusIdle {
		t.Fatalf("expected session terminated, got %s", status.Status)
	}
	if status := h.e.ReplayStatus(); status.Active {
		t.Fatal("expected replay deactivated after fatal loss")
	}
	if h.e.writer.ConsumerCount() != 0 {
		t.Fatalf("expected consumers detached, got %d", h.e.writer.ConsumerCount())
	}

	var sawInactive bool
	for {
		select {
		case event := <-sub.Events():
			if event.Kind == events.KindReplayActiveChanged && !event.Active {
				sawInactive = true
			}
			continue
		default:
		}
		break
	}
	if !sawInactive {
		t.Fatal("expected replay deactivation event")
	}
}
