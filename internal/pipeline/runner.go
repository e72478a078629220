package pipeline

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// RunFFmpeg executes a one-shot ffmpeg invocation (concat, export) and
// returns stderr detail on failure.
func RunFFmpeg(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(output))
		if detail != "" {
			return fmt.Errorf("ffmpeg: %w: %s", err, detail)
		}
		return fmt.Errorf("ffmpeg: %w", err)
	}
	return nil
}
