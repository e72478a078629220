package capture

import (
	"context"
	"errors"
	"strings"
	"testing"

	"clipforge/internal/config"
)

const xdpyinfoFixture = `name of display:    :0
version number:    11.0
screen #0:
  dimensions:    2560x1440 pixels (677x381 millimeters)
  resolution:    96x96 dots per inch
`

const xrandrFixture = `Screen 0: minimum 320 x 200, current 2560 x 1440, maximum 16384 x 16384
DP-1 connected primary 2560x1440+0+0
   2560x1440     59.95*+  74.97
   1920x1080     60.00
`

func TestParseXdpyinfo(t *testing.T) {
	w, h, ok := parseXdpyinfo(xdpyinfoFixture)
	if !ok || w != 2560 || h != 1440 {
		t.Fatalf("parseXdpyinfo = %d,%d,%v", w, h, ok)
	}
	if _, _, ok := parseXdpyinfo("garbage"); ok {
		t.Fatal("expected failure on garbage input")
	}
}

func TestParseXrandr(t *testing.T) {
	w, h, ok := parseXrandr(xrandrFixture)
	if !ok || w != 2560 || h != 1440 {
		t.Fatalf("parseXrandr = %d,%d,%v", w, h, ok)
	}
}

func TestSourceArgs(t *testing.T) {
	source := Source{Display: ":0", Mode: ModeRegion, X: 100, Y: 50, Width: 1280, Height: 720, FPS: 60}
	args := strings.Join(source.Args(), " ")
	want := "-f x11grab -framerate 60 -video_size 1280x720 -i :0.0+100,50"
	if args != want {
		t.Fatalf("unexpected args:\n got %s\nwant %s", args, want)
	}
}

func TestResolveRegion(t *testing.T) {
	cfg := config.Default()
	cfg.Capture.Display = ":0"
	cfg.Capture.Mode = "region"
	cfg.Capture.RegionX = 10
	cfg.Capture.RegionY = 20
	cfg.Capture.RegionWidth = 1281 // odd widths are trimmed
	cfg.Capture.RegionHeight = 720
	cfg.Capture.FPS = 30

	source, err := Resolve(context.Background(), &cfg)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if source.Width != 1280 || source.Height != 720 {
		t.Fatalf("expected trimmed geometry 1280x720, got %dx%d", source.Width, source.Height)
	}
	if source.Mode != ModeRegion || source.X != 10 || source.Y != 20 {
		t.Fatalf("unexpected source: %+v", source)
	}
}

func TestResolveFullscreenDetectsGeometry(t *testing.T) {
	restore := runDisplayTool
	defer func() { runDisplayTool = restore }()
	runDisplayTool = func(_ context.Context, display, name string, args ...string) (string, error) {
		if display != ":1" {
			t.Fatalf("unexpected display %q", display)
		}
		if name == "xdpyinfo" {
			return "", errors.New("not installed")
		}
		return xrandrFixture, nil
	}

	cfg := config.Default()
	cfg.Capture.Display = ":1"
	cfg.Capture.Mode = "fullscreen"
	cfg.Capture.FPS = 60

	source, err := Resolve(context.Background(), &cfg)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if source.Width != 2560 || source.Height != 1440 {
		t.Fatalf("expected xrandr fallback geometry, got %dx%d", source.Width, source.Height)
	}
}

func TestResolveWithoutDisplay(t *testing.T) {
	cfg := config.Default()
	cfg.Capture.Display = ""
	if _, err := Resolve(context.Background(), &cfg); !errors.Is(err, ErrNoDisplay) {
		t.Fatalf("expected ErrNoDisplay, got %v", err)
	}
}

func TestParsePactlSources(t *testing.T) {
	output := "0\talsa_output.pci-0000_00_1f.3.analog-stereo.monitor\tmodule-alsa-card.c\ts16le 2ch 48000Hz\tIDLE\n" +
		"1\talsa_input.usb-mic.analog-stereo\tmodule-alsa-card.c\ts16le 1ch 44100Hz\tRUNNING\n"
	sources := parsePactlSources(output)
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}
	if !sources[0].Monitor || sources[1].Monitor {
		t.Fatalf("monitor detection wrong: %+v", sources)
	}
}

func TestResolveAudioSource(t *testing.T) {
	restore := runPactl
	defer func() { runPactl = restore }()
	runPactl = func(_ context.Context, args ...string) (string, error) {
		return "alsa_output.pci-0000_00_1f.3.analog-stereo\n", nil
	}

	got, err := ResolveAudioSource(context.Background(), "")
	if err != nil {
		t.Fatalf("ResolveAudioSource: %v", err)
	}
	if got != "alsa_output.pci-0000_00_1f.3.analog-stereo.monitor" {
		t.Fatalf("unexpected source %q", got)
	}

	got, err = ResolveAudioSource(context.Background(), "explicit.source")
	if err != nil || got != "explicit.source" {
		t.Fatalf("expected configured source passthrough, got %q err=%v", got, err)
	}
}
