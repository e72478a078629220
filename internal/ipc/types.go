package ipc

import (
	"errors"

	"clipforge/internal/encoder"
	"clipforge/internal/library"
	"clipforge/internal/replay"
	"clipforge/internal/session"
)

// Error codes carried in responses so clients can distinguish control
// failures without parsing error strings.
const (
	CodeBusy               = "busy"
	CodeAlreadyRecording   = "already_recording"
	CodeNotRecording       = "not_recording"
	CodeNoEncoderAvailable = "no_encoder_available"
	CodeEncoderInitFailed  = "encoder_init_failed"
	CodeEncoderLost        = "encoder_lost"
	CodeFinalizationFailed = "finalization_failed"
	CodeReplayInactive     = "replay_inactive"
	CodeEmptyBuffer        = "empty_buffer"
	CodeNotFound           = "not_found"
	CodeInternal           = "internal"
)

// CodeForError maps a control-surface error to its wire code.
func CodeForError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, session.ErrBusy):
		return CodeBusy
	case errors.Is(err, session.ErrAlreadyRecording):
		return CodeAlreadyRecording
	case errors.Is(err, session.ErrNotRecording):
		return CodeNotRecording
	case errors.Is(err, encoder.ErrNoEncoderAvailable):
		return CodeNoEncoderAvailable
	case errors.Is(err, session.ErrEncoderInitFailed):
		return CodeEncoderInitFailed
	case errors.Is(err, session.ErrEncoderLost):
		return CodeEncoderLost
	case errors.Is(err, session.ErrFinalizationFailed):
		return CodeFinalizationFailed
	case errors.Is(err, replay.ErrReplayInactive):
		return CodeReplayInactive
	case errors.Is(err, replay.ErrEmptyBuffer):
		return CodeEmptyBuffer
	case errors.Is(err, library.ErrNotFound):
		return CodeNotFound
	default:
		return CodeInternal
	}
}

// EncoderInfo is the wire form of an encoder profile.
type EncoderInfo struct {
	Kind      string
	Name      string
	Codec     string
	Device    string
	Available bool
	Hardware  bool
}

// LibraryItem is the wire form of a library entry.
type LibraryItem struct {
	ID              string
	Title           string
	Path            string
	SizeBytes       int64
	DurationSeconds float64
	Resolution      string
	FPS             int
	Codec           string
	Container       string
	SourceType      string
	CreatedAt       string
}

// RecordingStatus is the wire form of the recorder snapshot.
type RecordingStatus struct {
	Status         string
	SessionID      string
	Encoder        string
	ElapsedSeconds int64
	Segments       int
}

// ReplayStatus is the wire form of the replay buffer snapshot.
type ReplayStatus struct {
	Active          bool
	Segments        int
	BufferedSeconds float64
	CapacitySeconds float64
}

type StatusRequest struct{}

type StatusResponse struct {
	Running       bool
	Recording     RecordingStatus
	Replay        ReplayStatus
	Encoders      []EncoderInfo
	LibraryCount  int
	LibraryDBPath string
	LockPath      string
	SocketPath    string
	PID           int
}

type StopRequest struct{}

type StopResponse struct {
	Stopped bool
}

type RecordStartRequest struct{}

type RecordStartResponse struct {
	SessionID string
	Code      string
	Message   string
}

type RecordStopRequest struct{}

type RecordStopResponse struct {
	Path    string
	Code    string
	Message string
}

type RecordStatusRequest struct{}

type RecordStatusResponse struct {
	Recording RecordingStatus
}

type ReplayToggleRequest struct{}

type ReplayToggleResponse struct {
	Active  bool
	Code    string
	Message string
}

type ReplaySaveRequest struct {
	Seconds int
}

type ReplaySaveResponse struct {
	Path    string
	Code    string
	Message string
}

type ReplayStatusRequest struct{}

type ReplayStatusResponse struct {
	Replay ReplayStatus
}

type EncodersRequest struct {
	Probe bool
}

type EncodersResponse struct {
	Encoders []EncoderInfo
}

type LibraryListRequest struct {
	Limit int
	Query string
}

type LibraryListResponse struct {
	Items []LibraryItem
}

type LibraryRemoveRequest struct {
	ID         string
	DeleteFile bool
}

type LibraryRemoveResponse struct {
	Removed LibraryItem
	Code    string
	Message string
}

type TestNotificationRequest struct{}

type TestNotificationResponse struct {
	Sent    bool
	Message string
}
