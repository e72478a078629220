package encoder

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

const probeSource = "testsrc=duration=0.1:size=320x240:rate=30"

// probeArgs builds a one-frame test encode for the candidate. The encode
// renders a synthetic source and discards the output; success proves the
// encoder initializes on this machine.
func probeArgs(p Profile) []string {
	args := []string{"-hide_banner", "-v", "error"}
	switch p.Kind {
	case KindVAAPI:
		args = append(args,
			"-init_hw_device", fmt.Sprintf("vaapi=hw:%s", p.Device),
			"-filter_hw_device", "hw",
			"-f", "lavfi", "-i", probeSource,
			"-vf", "format=nv12,hwupload",
			"-c:v", p.Codec,
		)
	case KindQSV:
		args = append(args,
			"-init_hw_device", "qsv=hw",
			"-filter_hw_device", "hw",
			"-f", "lavfi", "-i", probeSource,
			"-vf", "format=nv12,hwupload=extra_hw_frames=16",
			"-c:v", p.Codec,
		)
	default:
		args = append(args,
			"-f", "lavfi", "-i", probeSource,
			"-c:v", p.Codec,
		)
	}
	return append(args, "-frames:v", "1", "-f", "null", "-")
}

func runFFmpegProbe(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(output))
		if detail != "" {
			return fmt.Errorf("%w: %s", err, detail)
		}
		return err
	}
	return nil
}
