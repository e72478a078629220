package pipeline

import (
	"fmt"
	"path/filepath"
	"strconv"

	"clipforge/internal/capture"
	"clipforge/internal/encoder"
)

// CaptureSpec describes one capture/encode process invocation. Epoch
// isolates segment and list filenames between process generations so a
// restarted pipeline never overwrites segments still held by the ring.
type CaptureSpec struct {
	Profile        encoder.Profile
	Source         capture.Source
	AudioSource    string
	Quality        string
	SegmentSeconds int
	CacheDir       string
	Epoch          int
}

// ListPath returns the segment list location for this spec.
func (s CaptureSpec) ListPath() string {
	return filepath.Join(s.CacheDir, fmt.Sprintf("segments_%d.csv", s.Epoch))
}

// SegmentPattern returns the muxer output pattern for this spec.
func (s CaptureSpec) SegmentPattern() string {
	return filepath.Join(s.CacheDir, fmt.Sprintf("seg_%d_%%06d.mkv", s.Epoch))
}

// BuildCaptureArgs assembles the ffmpeg invocation for the shared
// capture/encode process: x11grab video, optional pulse audio, the selected
// encoder, and segment-muxer output. The GOP is pinned to one segment so
// every segment starts on a keyframe and concat cuts stay clean.
func BuildCaptureArgs(spec CaptureSpec) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-stats"}

	if spec.Profile.Kind == encoder.KindVAAPI {
		args = append(args, "-vaapi_device", spec.Profile.Device)
	}

	args = append(args, spec.Source.Args()...)

	if spec.AudioSource != "" {
		args = append(args, "-f", "pulse", "-i", spec.AudioSource)
	}

	args = append(args, encoderArgs(spec.Profile, spec.Quality)...)

	gop := spec.Source.FPS * spec.SegmentSeconds
	if gop <= 0 {
		gop = spec.Source.FPS
	}
	args = append(args, "-g", strconv.Itoa(gop))
	if spec.Profile.Kind == encoder.KindSoftware {
		args = append(args, "-sc_threshold", "0")
	}

	if spec.AudioSource != "" {
		args = append(args, "-c:a", "aac", "-b:a", "160k")
	}

	args = append(args,
		"-f", "segment",
		"-segment_time", strconv.Itoa(spec.SegmentSeconds),
		"-segment_format", "matroska",
		"-reset_timestamps", "1",
		"-segment_list", spec.ListPath(),
		"-segment_list_type", "csv",
		spec.SegmentPattern(),
	)
	return args
}

func encoderArgs(profile encoder.Profile, quality string) []string {
	switch profile.Kind {
	case encoder.KindVAAPI:
		return []string{
			"-vf", "format=nv12,hwupload",
			"-c:v", profile.Codec,
			"-qp", strconv.Itoa(qualityQP(quality)),
		}
	case encoder.KindNVENC:
		return []string{
			"-c:v", profile.Codec,
			"-preset", "p4",
			"-cq", strconv.Itoa(qualityQP(quality)),
		}
	case encoder.KindQSV:
		return []string{
			"-c:v", profile.Codec,
			"-global_quality", strconv.Itoa(qualityQP(quality)),
		}
	default:
		return []string{
			"-c:v", profile.Codec,
			"-preset", "veryfast",
			"-crf", strconv.Itoa(qualityCRF(quality)),
		}
	}
}

func qualityQP(quality string) int {
	switch quality {
	case "low":
		return 32
	case "medium":
		return 27
	case "lossless":
		return 1
	default: // high
		return 22
	}
}

func qualityCRF(quality string) int {
	switch quality {
	case "low":
		return 30
	case "medium":
		return 26
	case "lossless":
		return 0
	default: // high
		return 21
	}
}

// BuildConcatArgs assembles a lossless concat of the listed segments into
// output. The list file uses ffmpeg's concat demuxer format.
func BuildConcatArgs(listPath, output string) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "concat", "-safe", "0",
		"-i", listPath,
		"-c", "copy",
		"-y", output,
	}
}

// ConcatEntry renders one concat-demuxer list line.
func ConcatEntry(path string) string {
	return fmt.Sprintf("file '%s'\n", path)
}
