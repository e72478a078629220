// Package capture resolves the display and audio inputs fed to the encode
// pipeline. Display geometry comes from xdpyinfo (xrandr as fallback) and
// audio sources from PulseAudio via pactl.
package capture

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"clipforge/internal/config"
)

// Mode selects fullscreen or region capture.
type Mode string

const (
	ModeFullscreen Mode = "fullscreen"
	ModeRegion     Mode = "region"
)

// ErrNoDisplay indicates no X11 display is configured or present in the
// environment.
var ErrNoDisplay = errors.New("no display available")

// Source describes the display region handed to ffmpeg's x11grab input.
type Source struct {
	Display string
	Mode    Mode
	X       int
	Y       int
	Width   int
	Height  int
	FPS     int
}

// Input returns the x11grab input specifier, e.g. ":0.0+0,0".
func (s Source) Input() string {
	display := s.Display
	if !strings.Contains(display, ".") {
		display += ".0"
	}
	return fmt.Sprintf("%s+%d,%d", display, s.X, s.Y)
}

// Args returns the ffmpeg input arguments for this source.
func (s Source) Args() []string {
	return []string{
		"-f", "x11grab",
		"-framerate", strconv.Itoa(s.FPS),
		"-video_size", fmt.Sprintf("%dx%d", s.Width, s.Height),
		"-i", s.Input(),
	}
}

// Resolve builds a Source from config, detecting screen geometry for
// fullscreen captures.
func Resolve(ctx context.Context, cfg *config.Config) (Source, error) {
	display := strings.TrimSpace(cfg.Capture.Display)
	if display == "" {
		return Source{}, ErrNoDisplay
	}

	source := Source{
		Display: display,
		FPS:     cfg.Capture.FPS,
	}

	switch Mode(cfg.Capture.Mode) {
	case ModeRegion:
		source.Mode = ModeRegion
		source.X = cfg.Capture.RegionX
		source.Y = cfg.Capture.RegionY
		source.Width = cfg.Capture.RegionWidth
		source.Height = cfg.Capture.RegionHeight
	default:
		source.Mode = ModeFullscreen
		width, height, err := ScreenResolution(ctx, display)
		if err != nil {
			return Source{}, fmt.Errorf("detect screen resolution: %w", err)
		}
		source.Width = width
		source.Height = height
	}

	// x11grab rejects odd dimensions with most encoders.
	source.Width -= source.Width % 2
	source.Height -= source.Height % 2
	if source.Width <= 0 || source.Height <= 0 {
		return Source{}, fmt.Errorf("invalid capture geometry %dx%d", source.Width, source.Height)
	}
	return source, nil
}
