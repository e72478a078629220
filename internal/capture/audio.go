package capture

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// AudioSource describes a PulseAudio capture source.
type AudioSource struct {
	ID      string
	Name    string
	Monitor bool
}

// runPactl is a test hook around exec for pactl.
var runPactl = func(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "pactl", args...)
	output, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return string(output), nil
}

// ListAudioSources enumerates PulseAudio sources.
func ListAudioSources(ctx context.Context) ([]AudioSource, error) {
	output, err := runPactl(ctx, "list", "short", "sources")
	if err != nil {
		return nil, fmt.Errorf("list audio sources: %w", err)
	}
	return parsePactlSources(output), nil
}

// ResolveAudioSource picks the source for a session. An explicit config
// value wins; otherwise the monitor of the default sink captures desktop
// audio.
func ResolveAudioSource(ctx context.Context, configured string) (string, error) {
	if trimmed := strings.TrimSpace(configured); trimmed != "" {
		return trimmed, nil
	}
	output, err := runPactl(ctx, "get-default-sink")
	if err != nil {
		return "", fmt.Errorf("resolve default sink: %w", err)
	}
	sink := strings.TrimSpace(output)
	if sink == "" {
		return "", errors.New("no default audio sink")
	}
	return sink + ".monitor", nil
}

// parsePactlSources reads `pactl list short sources` output: one source per
// line, tab-separated, name in the second column.
func parsePactlSources(output string) []AudioSource {
	var sources []AudioSource
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		fields := strings.Fields(trimmed)
		if len(fields) < 2 {
			continue
		}
		sources = append(sources, AudioSource{
			ID:      fields[0],
			Name:    fields[1],
			Monitor: strings.HasSuffix(fields[1], ".monitor"),
		})
	}
	return sources
}
