// Package pipeline owns the shared ffmpeg capture/encode process. It
// builds the invocation, tails the segment list, and publishes each
// completed segment through the segment writer. One pipeline serves both
// the replay ring and the recording session.
package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"clipforge/internal/logging"
	"clipforge/internal/segment"
)

// listPollInterval controls how often the segment list is re-read. The
// muxer appends a row within milliseconds of closing a segment, so a short
// poll keeps visibility latency well under one segment duration.
const listPollInterval = 200 * time.Millisecond

// Pipeline is a running capture/encode process plus the goroutine tailing
// its segment list.
type Pipeline struct {
	logger *slog.Logger
	spec   CaptureSpec
	writer *segment.Writer
	proc   *Process

	published int
	stopping  atomic.Bool
	onExit    func(error)
	loopDone  chan struct{}

	// startProcess is a test hook.
	startProcess func(ctx context.Context, logger *slog.Logger, args []string) (*Process, error)
}

// New prepares a pipeline without starting the process; used by tests and
// by Start.
func New(logger *slog.Logger, spec CaptureSpec, writer *segment.Writer, onExit func(error)) *Pipeline {
	return &Pipeline{
		logger:       logging.NewComponentLogger(logger, "pipeline"),
		spec:         spec,
		writer:       writer,
		onExit:       onExit,
		loopDone:     make(chan struct{}),
		startProcess: StartProcess,
	}
}

// Start launches the capture process and begins tailing its segment list.
// onExit is invoked from the tail goroutine when the process dies without
// Stop being called.
func Start(ctx context.Context, logger *slog.Logger, spec CaptureSpec, writer *segment.Writer, onExit func(error)) (*Pipeline, error) {
	p := New(logger, spec, writer, onExit)
	return p, p.start(ctx)
}

func (p *Pipeline) start(ctx context.Context) error {
	// A stale list from a crashed prior run would replay old segments.
	_ = os.Remove(p.spec.ListPath())

	args := BuildCaptureArgs(p.spec)
	proc, err := p.startProcess(ctx, p.logger, args)
	if err != nil {
		return err
	}
	p.proc = proc

	p.logger.Info("capture pipeline started",
		logging.String(logging.FieldEncoder, p.spec.Profile.Label()),
		logging.String(logging.FieldEventType, "pipeline_started"),
		logging.Int("fps", p.spec.Source.FPS),
		logging.Int("segment_seconds", p.spec.SegmentSeconds),
	)

	go p.tailLoop()
	return nil
}

// Epoch returns the process generation this pipeline was started with.
func (p *Pipeline) Epoch() int {
	return p.spec.Epoch
}

// Progress returns the latest encode statistics.
func (p *Pipeline) Progress() Progress {
	if p.proc == nil {
		return Progress{}
	}
	return p.proc.Progress()
}

// Stop gracefully stops the process and drains the final segments. The
// muxer lists the in-flight segment on clean shutdown, so the last flush
// publishes everything ffmpeg wrote.
func (p *Pipeline) Stop(ctx context.Context) error {
	p.stopping.Store(true)
	err := p.proc.StopGraceful(ctx)
	<-p.loopDone
	p.logger.Info("capture pipeline stopped",
		logging.String(logging.FieldEventType, "pipeline_stopped"),
		logging.Int("segments_published", p.published),
	)
	return err
}

func (p *Pipeline) tailLoop() {
	defer close(p.loopDone)

	ticker := time.NewTicker(listPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.flush()
		case <-p.proc.Done():
			p.flush()
			if !p.stopping.Load() {
				err := p.proc.Err()
				logging.ErrorWithContext(p.logger, "capture process exited unexpectedly", "pipeline_lost",
					logging.Error(err),
					logging.String("ffmpeg_output", p.proc.LastOutput()),
				)
				if p.onExit != nil {
					p.onExit(err)
				}
			}
			return
		}
	}
}

// flush publishes any newly listed segments.
func (p *Pipeline) flush() {
	entries, err := segment.ReadList(p.spec.ListPath())
	if err != nil {
		p.logger.Warn("read segment list", logging.Error(err))
		return
	}
	for _, entry := range entries[min(p.published, len(entries)):] {
		path := entry.Filename
		if !filepath.IsAbs(path) {
			path = filepath.Join(p.spec.CacheDir, path)
		}
		handle := p.writer.Publish(path, entry.Start, entry.End)
		p.published++
		p.logger.Debug("segment published",
			logging.Int64(logging.FieldSegment, handle.Seq()),
			logging.Duration("duration", handle.Segment().Duration),
		)
	}
}
