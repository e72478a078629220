// Package deps reports availability of the external binaries Clipforge
// shells out to for capture, encoding, and diagnostics.
package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement defines an external dependency Clipforge relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements returns the external binaries used by the daemon.
func Requirements() []Requirement {
	return []Requirement{
		{Name: "FFmpeg", Command: "ffmpeg", Description: "display capture and encoding"},
		{Name: "FFprobe", Command: "ffprobe", Description: "media inspection for the library index"},
		{Name: "PulseAudio CLI", Command: "pactl", Description: "audio source discovery", Optional: true},
		{Name: "xdpyinfo", Command: "xdpyinfo", Description: "display resolution detection", Optional: true},
		{Name: "xrandr", Command: "xrandr", Description: "display resolution fallback", Optional: true},
	}
}

// Check evaluates the default requirement set.
func Check() []Status {
	return CheckBinaries(Requirements())
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}
