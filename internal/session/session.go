// Package session tracks a single manual recording from start through
// finalization. The recorder is the state machine that owns exclusivity;
// the session itself is a segment consumer accumulating the encoded
// pieces that finalization will join.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"clipforge/internal/encoder"
	"clipforge/internal/segment"
)

var (
	// ErrBusy indicates a control request arrived while a start or stop
	// transition is still in flight.
	ErrBusy = errors.New("recorder is busy with another transition")
	// ErrAlreadyRecording indicates a start while a recording is active.
	ErrAlreadyRecording = errors.New("a recording is already in progress")
	// ErrNotRecording indicates a stop with no active recording.
	ErrNotRecording = errors.New("no recording in progress")
	// ErrEncoderInitFailed indicates the selected encoder could not be
	// brought up for the session.
	ErrEncoderInitFailed = errors.New("encoder initialization failed")
	// ErrEncoderLost indicates the encoder disappeared mid-session and
	// could not be replaced.
	ErrEncoderLost = errors.New("encoder lost during recording")
	// ErrFinalizationFailed indicates the session's segments could not be
	// joined into the final file.
	ErrFinalizationFailed = errors.New("recording finalization failed")
)

// Session collects the segments of one recording. It is attached as a
// segment consumer for the lifetime of the recording and holds a
// reference on every segment it sees, keeping the files alive past ring
// eviction until finalization releases them.
type Session struct {
	ID        string
	Encoder   encoder.Kind
	StartedAt time.Time

	mu      sync.Mutex
	handles []*segment.Handle
}

func newSession() *Session {
	return &Session{ID: uuid.NewString()}
}

// Name implements segment.Consumer.
func (s *Session) Name() string { return "session-" + s.ID[:8] }

// OnSegment implements segment.Consumer.
func (s *Session) OnSegment(h *segment.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handles = append(s.handles, h)
}

// SegmentCount returns how many segments the session has collected.
func (s *Session) SegmentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

// LastSeq returns the highest collected sequence number, or -1 when the
// session has no segments yet.
func (s *Session) LastSeq() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.handles) == 0 {
		return -1
	}
	return s.handles[len(s.handles)-1].Seq()
}

// Segments returns the collected segments in sequence order.
func (s *Session) Segments() []segment.Segment {
	s.mu.Lock()
	defer s.mu.Unlock()
	segments := make([]segment.Segment, len(s.handles))
	for i, h := range s.handles {
		segments[i] = h.Segment()
	}
	return segments
}

// ReleaseAll drops the session's references on its segments. Called once
// after finalization, or when the session is abandoned.
func (s *Session) ReleaseAll() {
	s.mu.Lock()
	handles := s.handles
	s.handles = nil
	s.mu.Unlock()

	for _, h := range handles {
		h.Release()
	}
}
