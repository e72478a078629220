package library

import (
	"fmt"
	"time"
)

// SourceType distinguishes how a library entry was produced.
type SourceType string

const (
	SourceRecording SourceType = "recording"
	SourceReplay    SourceType = "replay"
	SourceExport    SourceType = "export"
)

// Recording is one finalized file in the library.
type Recording struct {
	ID              string
	Title           string
	Path            string
	SizeBytes       int64
	DurationSeconds float64
	Width           int
	Height          int
	FPS             int
	Codec           string
	Container       string
	SourceType      SourceType
	CreatedAt       time.Time
}

// Resolution renders WxH, or an empty string when unknown.
func (r Recording) Resolution() string {
	if r.Width <= 0 || r.Height <= 0 {
		return ""
	}
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}
