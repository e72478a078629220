// Package doctor runs environment diagnostics: required binaries,
// display and audio availability, encoder probes, and cache disk space.
package doctor

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"clipforge/internal/capture"
	"clipforge/internal/config"
	"clipforge/internal/deps"
	"clipforge/internal/encoder"
)

// Severity grades one check result.
type Severity string

const (
	SeverityPass Severity = "pass"
	SeverityWarn Severity = "warn"
	SeverityFail Severity = "fail"
)

// Result is one diagnostic outcome.
type Result struct {
	Name           string
	Severity       Severity
	Detail         string
	Recommendation string
}

// minCacheBytes is the free-space floor for the segment cache before a
// warning is raised.
const minCacheBytes = 1 << 30

// checker abstracts the encoder selector for tests.
type checker interface {
	Probe(ctx context.Context) []encoder.Profile
}

// Report runs every diagnostic and returns the results in display order.
func Report(ctx context.Context, cfg *config.Config, selector checker) []Result {
	var results []Result
	results = append(results, binaryResults()...)
	results = append(results, displayResult(cfg))
	results = append(results, audioResult(ctx, cfg))
	results = append(results, encoderResult(ctx, selector))
	results = append(results, cacheSpaceResult(cfg.Paths.ReplayCacheDir))
	return results
}

// Failed reports whether any result is a hard failure.
func Failed(results []Result) bool {
	for _, r := range results {
		if r.Severity == SeverityFail {
			return true
		}
	}
	return false
}

func binaryResults() []Result {
	var results []Result
	for _, status := range deps.Check() {
		result := Result{Name: status.Name, Severity: SeverityPass, Detail: status.Description}
		if !status.Available {
			result.Detail = status.Detail
			if status.Optional {
				result.Severity = SeverityWarn
				result.Recommendation = fmt.Sprintf("install %s for %s", status.Command, status.Description)
			} else {
				result.Severity = SeverityFail
				result.Recommendation = fmt.Sprintf("install %s; it is required for %s", status.Command, status.Description)
			}
		}
		results = append(results, result)
	}
	return results
}

func displayResult(cfg *config.Config) Result {
	display := cfg.Capture.Display
	if display == "" {
		display = os.Getenv("DISPLAY")
	}
	if display == "" {
		return Result{
			Name:           "Display",
			Severity:       SeverityFail,
			Detail:         "no display configured and DISPLAY is unset",
			Recommendation: "set capture.display in the config or export DISPLAY",
		}
	}
	return Result{Name: "Display", Severity: SeverityPass, Detail: display}
}

func audioResult(ctx context.Context, cfg *config.Config) Result {
	if !cfg.Capture.AudioEnabled {
		return Result{Name: "Audio capture", Severity: SeverityPass, Detail: "disabled in config"}
	}
	source, err := capture.ResolveAudioSource(ctx, cfg.Capture.AudioSource)
	if err != nil {
		return Result{
			Name:           "Audio capture",
			Severity:       SeverityWarn,
			Detail:         err.Error(),
			Recommendation: "check PulseAudio/PipeWire is running, or set capture.audio_source",
		}
	}
	return Result{Name: "Audio capture", Severity: SeverityPass, Detail: source}
}

func encoderResult(ctx context.Context, selector checker) Result {
	if selector == nil {
		return Result{Name: "Encoders", Severity: SeverityWarn, Detail: "selector unavailable"}
	}
	profiles := selector.Probe(ctx)
	var available, hardware int
	detail := ""
	for _, p := range profiles {
		if !p.Available {
			continue
		}
		available++
		if p.Hardware() {
			hardware++
		}
		if detail != "" {
			detail += ", "
		}
		detail += p.Label()
	}
	switch {
	case available == 0:
		return Result{
			Name:           "Encoders",
			Severity:       SeverityFail,
			Detail:         "no working encoder found",
			Recommendation: "install VA-API/NVENC drivers or an ffmpeg build with libx264",
		}
	case hardware == 0:
		return Result{
			Name:           "Encoders",
			Severity:       SeverityWarn,
			Detail:         detail,
			Recommendation: "only software encoding available; expect higher CPU load",
		}
	default:
		return Result{Name: "Encoders", Severity: SeverityPass, Detail: detail}
	}
}

func cacheSpaceResult(cacheDir string) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(cacheDir, &stat); err != nil {
		return Result{
			Name:           "Replay cache",
			Severity:       SeverityWarn,
			Detail:         fmt.Sprintf("statfs %s: %v", cacheDir, err),
			Recommendation: "create the replay cache directory before starting the daemon",
		}
	}
	free := uint64(stat.Bavail) * uint64(stat.Bsize)
	detail := fmt.Sprintf("%s free at %s", formatBytes(free), cacheDir)
	if free < minCacheBytes {
		return Result{
			Name:           "Replay cache",
			Severity:       SeverityWarn,
			Detail:         detail,
			Recommendation: "long replay windows may not fit; lower replay.capacity_seconds or use a larger tmpfs",
		}
	}
	return Result{Name: "Replay cache", Severity: SeverityPass, Detail: detail}
}

func formatBytes(v uint64) string {
	const unit = 1024
	if v < unit {
		return fmt.Sprintf("%d B", v)
	}
	div, exp := uint64(unit), 0
	for n := v / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(v)/float64(div), "KMGTPE"[exp])
}
