package capture

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// runDisplayTool is a test hook around exec for xdpyinfo/xrandr.
var runDisplayTool = func(ctx context.Context, display string, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(cmd.Environ(), "DISPLAY="+display)
	output, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return string(output), nil
}

// ScreenResolution returns the root window dimensions of the display.
// xdpyinfo is authoritative; xrandr covers machines without it.
func ScreenResolution(ctx context.Context, display string) (int, int, error) {
	if output, err := runDisplayTool(ctx, display, "xdpyinfo"); err == nil {
		if w, h, ok := parseXdpyinfo(output); ok {
			return w, h, nil
		}
	}
	output, err := runDisplayTool(ctx, display, "xrandr", "--current")
	if err != nil {
		return 0, 0, fmt.Errorf("query display geometry: %w", err)
	}
	if w, h, ok := parseXrandr(output); ok {
		return w, h, nil
	}
	return 0, 0, errors.New("no active display mode found")
}

// parseXdpyinfo extracts "dimensions:    2560x1440 pixels (...)".
func parseXdpyinfo(output string) (int, int, bool) {
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "dimensions:") {
			continue
		}
		fields := strings.Fields(trimmed)
		if len(fields) < 2 {
			continue
		}
		if w, h, ok := parseGeometry(fields[1]); ok {
			return w, h, true
		}
	}
	return 0, 0, false
}

// parseXrandr extracts the active mode, marked with '*', e.g.
// "   2560x1440     59.95*+  74.97".
func parseXrandr(output string) (int, int, bool) {
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "*") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if w, h, ok := parseGeometry(fields[0]); ok {
			return w, h, true
		}
	}
	return 0, 0, false
}

func parseGeometry(value string) (int, int, bool) {
	parts := strings.SplitN(value, "x", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	width, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	height, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	if width <= 0 || height <= 0 {
		return 0, 0, false
	}
	return width, height, true
}
