package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"clipforge/internal/logging"
)

// gracefulStopTimeout bounds how long a 'q' keypress may take to wind the
// encoder down before the process is killed outright.
const gracefulStopTimeout = 10 * time.Second

// Progress is the most recent encode statistics line from ffmpeg.
type Progress struct {
	Frame int64
	FPS   float64
	Time  time.Duration
	Speed float64
}

// Process wraps a running ffmpeg capture process. Stop is graceful: ffmpeg
// treats 'q' on stdin as a request to finish the current output cleanly,
// which flushes buffered frames and closes the final segment.
type Process struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser

	logger *slog.Logger

	mu       sync.Mutex
	progress Progress
	lastErr  string

	done    chan struct{}
	waitErr error
}

// StartProcess launches ffmpeg with the given arguments.
func StartProcess(ctx context.Context, logger *slog.Logger, args []string) (*Process, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("open ffmpeg stdin: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("open ffmpeg stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	p := &Process{
		cmd:    cmd,
		stdin:  stdin,
		logger: logging.NewComponentLogger(logger, "pipeline"),
		done:   make(chan struct{}),
	}

	go p.consumeStderr(stderr)
	go func() {
		p.waitErr = cmd.Wait()
		close(p.done)
	}()

	return p, nil
}

func (p *Process) consumeStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Split(scanStatsLines)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if progress, ok := ParseProgress(line); ok {
			p.mu.Lock()
			p.progress = progress
			p.mu.Unlock()
			continue
		}
		p.mu.Lock()
		p.lastErr = line
		p.mu.Unlock()
		p.logger.Debug("ffmpeg output", logging.String("line", line))
	}
}

// scanStatsLines splits on newlines and carriage returns; ffmpeg rewrites
// its stats line in place with '\r'.
func scanStatsLines(data []byte, atEOF bool) (int, []byte, error) {
	for i, b := range data {
		if b == '\n' || b == '\r' {
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// Progress returns the latest parsed stats line.
func (p *Process) Progress() Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress
}

// LastOutput returns the most recent non-stats stderr line, useful when the
// process exits unexpectedly.
func (p *Process) LastOutput() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Done is closed when the process exits.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Err returns the process exit error after Done is closed.
func (p *Process) Err() error {
	select {
	case <-p.done:
		return p.waitErr
	default:
		return nil
	}
}

// Running reports whether the process has not yet exited.
func (p *Process) Running() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// StopGraceful asks ffmpeg to finish cleanly and waits for exit, killing
// the process if it overruns the grace period.
func (p *Process) StopGraceful(ctx context.Context) error {
	if !p.Running() {
		return p.waitErr
	}

	if _, err := io.WriteString(p.stdin, "q"); err == nil {
		_ = p.stdin.Close()
	} else {
		// stdin gone; fall through to the timeout path which will kill.
		p.logger.Debug("ffmpeg stdin unavailable during stop", logging.Error(err))
	}

	timer := time.NewTimer(gracefulStopTimeout)
	defer timer.Stop()

	select {
	case <-p.done:
		return nil
	case <-timer.C:
	case <-ctx.Done():
	}

	p.logger.Warn("ffmpeg did not stop gracefully, killing",
		logging.String(logging.FieldEventType, "pipeline_force_kill"),
	)
	p.Kill()
	<-p.done
	return nil
}

// Kill terminates the process immediately.
func (p *Process) Kill() {
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
}

// ParseProgress parses an ffmpeg stats line, e.g.
// "frame=  300 fps= 60 q=23.0 size=    2048KiB time=00:00:05.00 bitrate=3355.4kbits/s speed=1.0x".
func ParseProgress(line string) (Progress, bool) {
	if !strings.HasPrefix(line, "frame=") {
		return Progress{}, false
	}
	fields := splitStatsFields(line)

	var progress Progress
	seen := false
	if v, ok := fields["frame"]; ok {
		if frame, err := strconv.ParseInt(v, 10, 64); err == nil {
			progress.Frame = frame
			seen = true
		}
	}
	if v, ok := fields["fps"]; ok {
		if fps, err := strconv.ParseFloat(v, 64); err == nil {
			progress.FPS = fps
		}
	}
	if v, ok := fields["time"]; ok {
		if d, err := parseClock(v); err == nil {
			progress.Time = d
			seen = true
		}
	}
	if v, ok := fields["speed"]; ok {
		if speed, err := strconv.ParseFloat(strings.TrimSuffix(v, "x"), 64); err == nil {
			progress.Speed = speed
		}
	}
	return progress, seen
}

// splitStatsFields tolerates ffmpeg's padding: "fps= 60" and "frame=  300".
func splitStatsFields(line string) map[string]string {
	fields := make(map[string]string, 8)
	tokens := strings.Fields(line)
	for i := 0; i < len(tokens); i++ {
		token := tokens[i]
		idx := strings.IndexByte(token, '=')
		if idx < 0 {
			continue
		}
		key := token[:idx]
		value := token[idx+1:]
		if value == "" && i+1 < len(tokens) && !strings.ContainsRune(tokens[i+1], '=') {
			i++
			value = tokens[i]
		}
		fields[key] = value
	}
	return fields
}

// parseClock parses ffmpeg's HH:MM:SS.cc timestamps.
func parseClock(value string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("malformed timestamp %q", value)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, err
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, err
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, err
	}
	total := time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds*float64(time.Second))
	return total, nil
}
