package ipc

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"clipforge/internal/daemon"
	"clipforge/internal/encoder"
	"clipforge/internal/engine"
	"clipforge/internal/events"
	"clipforge/internal/library"
	"clipforge/internal/logging"
	"clipforge/internal/replay"
	"clipforge/internal/session"
	"clipforge/internal/testsupport"
)

func TestCodeForError(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{session.ErrBusy, CodeBusy},
		{session.ErrAlreadyRecording, CodeAlreadyRecording},
		{session.ErrNotRecording, CodeNotRecording},
		{encoder.ErrNoEncoderAvailable, CodeNoEncoderAvailable},
		{fmt.Errorf("start: %w", session.ErrEncoderInitFailed), CodeEncoderInitFailed},
		{session.ErrEncoderLost, CodeEncoderLost},
		{fmt.Errorf("%w: concat failed", session.ErrFinalizationFailed), CodeFinalizationFailed},
		{replay.ErrReplayInactive, CodeReplayInactive},
		{replay.ErrEmptyBuffer, CodeEmptyBuffer},
		{library.ErrNotFound, CodeNotFound},
		{errors.New("disk on fire"), CodeInternal},
	}
	for _, tc := range cases {
		if got := CodeForError(tc.err); got != tc.want {
			t.Fatalf("CodeForError(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

type stubSelector struct {
	profiles []encoder.Profile
}

func (s *stubSelector) Select(context.Context, encoder.Kind) (encoder.Profile, error) {
	if len(s.profiles) == 0 {
		return encoder.Profile{}, encoder.ErrNoEncoderAvailable
	}
	return s.profiles[0], nil
}

func (s *stubSelector) SelectExcluding(context.Context, encoder.Kind) (encoder.Profile, error) {
	return encoder.Profile{}, encoder.ErrNoEncoderAvailable
}

func (s *stubSelector) Probe(context.Context) []encoder.Profile { return s.profiles }
func (s *stubSelector) Cached() []encoder.Profile               { return s.profiles }

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	bus := events.NewBus()
	selector := &stubSelector{profiles: []encoder.Profile{{
		Kind:      encoder.KindSoftware,
		Name:      "Software (x264)",
		Codec:     "libx264",
		Available: true,
	}}}
	eng := engine.New(logging.NewNop(), cfg, bus, selector, nil)
	d, err := daemon.New(cfg, logging.NewNop(), eng, nil, bus)
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}

	socket := filepath.Join(t.TempDir(), "clipforged.sock")
	server, err := NewServer(context.Background(), socket, d, logging.NewNop())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(server.Close)
	server.Serve()
	return server, socket
}

func TestStatusRoundTrip(t *testing.T) {
	_, socket := newTestServer(t)

	client, err := Dial(socket)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	status, err := client.Status()
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Running {
		t.Fatal("daemon was never started")
	}
	if status.Recording.Status != string(session.StatusIdle) {
		t.Fatalf("recording status = %q", status.Recording.Status)
	}
	if status.Replay.Active {
		t.Fatal("replay must start inactive")
	}
	if status.PID <= 0 {
		t.Fatalf("pid = %d", status.PID)
	}
}

func TestRecordStatusRoundTrip(t *testing.T) {
	_, socket := newTestServer(t)

	client, err := Dial(socket)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	resp, err := client.RecordStatus()
	if err != nil {
		t.Fatalf("record status: %v", err)
	}
	if resp.Recording.Status != string(session.StatusIdle) || resp.Recording.SessionID != "" {
		t.Fatalf("unexpected recording status %+v", resp.Recording)
	}
}

func TestReplaySaveInactiveCode(t *testing.T) {
	_, socket := newTestServer(t)

	client, err := Dial(socket)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	resp, err := client.ReplaySave(30)
	if err != nil {
		t.Fatalf("replay save: %v", err)
	}
	if resp.Code != CodeReplayInactive {
		t.Fatalf("code = %q, want %q", resp.Code, CodeReplayInactive)
	}
	if resp.Path != "" {
		t.Fatalf("unexpected path %q", resp.Path)
	}
}

func TestRecordStopWhenIdleCode(t *testing.T) {
	_, socket := newTestServer(t)

	client, err := Dial(socket)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	resp, err := client.RecordStop()
	if err != nil {
		t.Fatalf("record stop: %v", err)
	}
	if resp.Code != CodeNotRecording {
		t.Fatalf("code = %q, want %q", resp.Code, CodeNotRecording)
	}
}

func TestDialMissingSocket(t *testing.T) {
	if _, err := Dial(filepath.Join(t.TempDir(), "missing.sock")); err == nil {
		t.Fatal("expected dial failure")
	}
}
