package replay

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"clipforge/internal/fileutil"
	"clipforge/internal/logging"
	"clipforge/internal/pipeline"
)

const saveTimestampLayout = "2006-01-02_15-04-05"

// Saver assembles a clip from a ring snapshot: lossless concat into the
// cache, then a verified move out of tmpfs into the replays directory.
// Saving runs entirely off the capture path; the snapshot keeps the
// segment files alive while ffmpeg reads them.
type Saver struct {
	logger     *slog.Logger
	replaysDir string
	cacheDir   string

	// Test hooks.
	runCommand func(ctx context.Context, args []string) error
	moveFile   func(src, dst string) error
	now        func() time.Time
}

// NewSaver constructs a saver writing clips to replaysDir via cacheDir.
// run executes the concat command; nil means ffmpeg on PATH.
func NewSaver(logger *slog.Logger, replaysDir, cacheDir string, run func(ctx context.Context, args []string) error) *Saver {
	if run == nil {
		run = pipeline.RunFFmpeg
	}
	return &Saver{
		logger:     logging.NewComponentLogger(logger, "replay-saver"),
		replaysDir: replaysDir,
		cacheDir:   cacheDir,
		runCommand: run,
		moveFile:   fileutil.MoveFileVerified,
		now:        time.Now,
	}
}

// Save captures the trailing window of the ring into a standalone clip and
// returns its final path. ErrEmptyBuffer is returned when the ring holds
// nothing.
func (s *Saver) Save(ctx context.Context, ring *Ring, window time.Duration) (string, error) {
	snapshot := ring.SnapshotSuffix(window)
	defer snapshot.Release()

	if snapshot.Empty() {
		return "", ErrEmptyBuffer
	}

	stamp := s.now().Format(saveTimestampLayout)
	listPath := filepath.Join(s.cacheDir, fmt.Sprintf("replay_%s.txt", stamp))
	tmpPath := filepath.Join(s.cacheDir, fmt.Sprintf("replay_%s.mkv", stamp))
	outPath := filepath.Join(s.replaysDir, fmt.Sprintf("replay_%s.mkv", stamp))

	var list strings.Builder
	for _, seg := range snapshot.Segments() {
		list.WriteString(pipeline.ConcatEntry(seg.Path))
	}
	if err := os.WriteFile(listPath, []byte(list.String()), 0o644); err != nil {
		return "", fmt.Errorf("write concat list: %w", err)
	}
	defer os.Remove(listPath)

	if err := s.runCommand(ctx, pipeline.BuildConcatArgs(listPath, tmpPath)); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("concat replay segments: %w", err)
	}

	if err := s.moveFile(tmpPath, outPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("move clip out of cache: %w", err)
	}

	s.logger.Info("replay clip saved",
		logging.String("path", outPath),
		logging.Duration("window", snapshot.Duration()),
		logging.Int("segments", len(snapshot.Segments())),
		logging.String(logging.FieldEventType, "replay_saved"),
	)
	return outPath, nil
}
