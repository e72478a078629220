// Package export re-encodes a finalized recording or clip with a named
// preset: platform-targeted crop/scale/fps, loudness normalization, and
// a web-ready container.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"clipforge/internal/logging"
	"clipforge/internal/pipeline"
	"clipforge/internal/textutil"
)

// ErrUnknownPreset indicates a preset name with no definition.
var ErrUnknownPreset = errors.New("unknown export preset")

// Preset describes one export target.
type Preset struct {
	ID          string
	Name        string
	Description string
	Width       int // 0 keeps source resolution
	Height      int
	FPS         int // 0 keeps source fps
	Codec       string
	Bitrate     string
	CropAspectW int // 0 disables aspect cropping
	CropAspectH int
	Loudnorm    bool
	Container   string
}

// Presets returns the built-in presets in display order.
func Presets() []Preset {
	return []Preset{
		{
			ID:          "shorts",
			Name:        "TikTok / Shorts",
			Description: "Vertical 9:16 for TikTok, YouTube Shorts, Reels",
			Width:       1080, Height: 1920,
			FPS:   60,
			Codec: "libx264", Bitrate: "8M",
			CropAspectW: 9, CropAspectH: 16,
			Loudnorm:  true,
			Container: "mp4",
		},
		{
			ID:          "youtube",
			Name:        "YouTube 16:9",
			Description: "Standard 16:9 for YouTube",
			Width:       1920, Height: 1080,
			FPS:   60,
			Codec: "libx264", Bitrate: "12M",
			Loudnorm:  true,
			Container: "mp4",
		},
		{
			ID:          "trailer",
			Name:        "Trailer Cut",
			Description: "High quality with intro/outro card slots",
			Width:       1920, Height: 1080,
			FPS:   60,
			Codec: "libx264", Bitrate: "15M",
			Loudnorm:  true,
			Container: "mp4",
		},
		{
			ID:          "high_quality",
			Name:        "High Quality",
			Description: "Source resolution and FPS, high bitrate VBR",
			Codec:       "libx264", Bitrate: "20M",
			Container: "mp4",
		},
	}
}

// FindPreset looks a preset up by id.
func FindPreset(id string) (Preset, error) {
	for _, preset := range Presets() {
		if preset.ID == id {
			return preset, nil
		}
	}
	return Preset{}, fmt.Errorf("%w: %s", ErrUnknownPreset, id)
}

// Job is one export invocation.
type Job struct {
	Input     string
	Output    string
	Preset    Preset
	TrimStart float64 // seconds; 0 means from the beginning
	TrimEnd   float64 // seconds; 0 means to the end
}

// OutputPath derives the destination file for the job's input in dir.
func OutputPath(dir, input string, preset Preset) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	name := textutil.SanitizeFileName(base + "_" + preset.ID)
	return filepath.Join(dir, name+"."+preset.Container)
}

// BuildArgs assembles the ffmpeg invocation for the job. Trim seeking
// happens before the input for fast keyframe seeks; the filter chain
// applies crop, scale, and fps in that order.
func BuildArgs(job Job) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-stats", "-y"}

	if job.TrimStart > 0 {
		args = append(args, "-ss", formatSeconds(job.TrimStart))
	}
	args = append(args, "-i", job.Input)
	if job.TrimEnd > 0 {
		duration := job.TrimEnd - job.TrimStart
		args = append(args, "-t", formatSeconds(duration))
	}

	var filters []string
	if job.Preset.CropAspectW > 0 && job.Preset.CropAspectH > 0 {
		filters = append(filters, fmt.Sprintf("crop=ih*%d/%d:ih", job.Preset.CropAspectW, job.Preset.CropAspectH))
	}
	if job.Preset.Width > 0 && job.Preset.Height > 0 {
		filters = append(filters, fmt.Sprintf("scale=%d:%d:flags=lanczos", job.Preset.Width, job.Preset.Height))
	}
	if job.Preset.FPS > 0 {
		filters = append(filters, fmt.Sprintf("fps=%d", job.Preset.FPS))
	}
	if len(filters) > 0 {
		args = append(args, "-vf", strings.Join(filters, ","))
	}

	args = append(args, "-c:v", job.Preset.Codec)
	if job.Preset.Bitrate != "" {
		args = append(args, "-b:v", job.Preset.Bitrate)
	}

	if job.Preset.Loudnorm {
		args = append(args, "-af", "loudnorm=I=-14:TP=-1:LRA=11")
	}
	args = append(args, "-c:a", "aac", "-b:a", "192k")

	args = append(args,
		"-f", job.Preset.Container,
		"-movflags", "+faststart",
		job.Output,
	)
	return args
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// Run executes the export job.
func Run(ctx context.Context, logger *slog.Logger, job Job) error {
	log := logging.NewComponentLogger(logger, "export")
	log.Info("export started",
		logging.String("input", job.Input),
		logging.String("preset", job.Preset.ID),
	)
	started := time.Now()

	if err := pipeline.RunFFmpeg(ctx, BuildArgs(job)); err != nil {
		return fmt.Errorf("export %s: %w", job.Preset.ID, err)
	}

	log.Info("export completed",
		logging.String("output", job.Output),
		logging.Duration("elapsed", time.Since(started).Round(time.Millisecond)),
	)
	return nil
}
