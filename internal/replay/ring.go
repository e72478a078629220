// Package replay implements the bounded instant-replay window: a FIFO ring
// of encoded segments capped by duration, with snapshot-based reads and
// refcount-deferred deletion, plus the clip saver that turns a snapshot
// into a finished file.
package replay

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"clipforge/internal/logging"
	"clipforge/internal/segment"
)

var (
	// ErrReplayInactive indicates a save was requested while the replay
	// buffer is off.
	ErrReplayInactive = errors.New("instant replay is not active")
	// ErrEmptyBuffer indicates the active buffer has no retained segments
	// yet.
	ErrEmptyBuffer = errors.New("replay buffer is empty")
)

// Ring retains the most recent segments up to a duration capacity. It is a
// segment consumer: the capture path appends, eviction happens inline, and
// control-surface reads go through snapshots taken under the same mutex so
// there are no torn reads. Total retained duration never exceeds capacity
// plus one segment.
type Ring struct {
	logger   *slog.Logger
	capacity time.Duration

	mu       sync.Mutex
	handles  []*segment.Handle
	total    time.Duration
	shutdown bool
}

// NewRing constructs a ring with the given duration capacity.
func NewRing(logger *slog.Logger, capacity time.Duration) *Ring {
	return &Ring{
		logger:   logging.NewComponentLogger(logger, "replay-ring"),
		capacity: capacity,
	}
}

// Name implements segment.Consumer.
func (r *Ring) Name() string { return "replay-ring" }

// OnSegment appends the newest segment and evicts from the front while the
// total exceeds capacity. Eviction releases the ring's reference; files
// still pinned by a snapshot survive until that snapshot is released. A
// delivery that was already in flight when Shutdown ran is released
// immediately so the shut-down ring never retains it.
func (r *Ring) OnSegment(h *segment.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.shutdown {
		h.Release()
		return
	}

	r.handles = append(r.handles, h)
	r.total += h.Segment().Duration

	for len(r.handles) > 0 && r.total > r.capacity {
		oldest := r.handles[0]
		r.handles = r.handles[1:]
		r.total -= oldest.Segment().Duration
		oldest.Release()
	}
}

// Len returns the number of retained segments.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// TotalDuration returns the summed duration of retained segments.
func (r *Ring) TotalDuration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// OldestSeq returns the lowest retained sequence number, or -1 when empty.
func (r *Ring) OldestSeq() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.handles) == 0 {
		return -1
	}
	return r.handles[0].Seq()
}

// SnapshotSuffix returns the minimal trailing run of segments whose
// cumulative duration covers window, or the whole buffer when it is
// shorter. window <= 0 also selects the whole buffer. Each included
// segment is pinned until the snapshot is released.
func (r *Ring) SnapshotSuffix(window time.Duration) *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := 0
	if window > 0 {
		var covered time.Duration
		start = len(r.handles)
		for start > 0 && covered < window {
			start--
			covered += r.handles[start].Segment().Duration
		}
	}

	included := make([]*segment.Handle, len(r.handles)-start)
	copy(included, r.handles[start:])
	for _, h := range included {
		h.Retain()
	}
	return &Snapshot{handles: included}
}

// DiscardThrough drops retained segments with sequence numbers up to and
// including seq. Used when a finalized recording claims segments that were
// also flowing into the buffer.
func (r *Ring) DiscardThrough(seq int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.handles[:0]
	for _, h := range r.handles {
		if h.Seq() <= seq {
			r.total -= h.Segment().Duration
			h.Release()
			continue
		}
		kept = append(kept, h)
	}
	r.handles = kept
}

// Shutdown releases every retained segment. Files pinned by outstanding
// snapshots are deleted when those snapshots release.
func (r *Ring) Shutdown() {
	r.mu.Lock()
	r.shutdown = true
	handles := r.handles
	r.handles = nil
	r.total = 0
	r.mu.Unlock()

	for _, h := range handles {
		h.Release()
	}
	r.logger.Debug("replay ring released", logging.Int("segments", len(handles)))
}

// Snapshot is a stable view over a suffix of the ring. Segments stay on
// disk until Release, even if the ring evicts them meanwhile.
type Snapshot struct {
	mu       sync.Mutex
	handles  []*segment.Handle
	released bool
}

// Empty reports whether the snapshot holds no segments.
func (s *Snapshot) Empty() bool {
	return len(s.handles) == 0
}

// Segments returns the snapshot contents in sequence order.
func (s *Snapshot) Segments() []segment.Segment {
	segments := make([]segment.Segment, len(s.handles))
	for i, h := range s.handles {
		segments[i] = h.Segment()
	}
	return segments
}

// Duration returns the summed duration of the snapshot.
func (s *Snapshot) Duration() time.Duration {
	var total time.Duration
	for _, h := range s.handles {
		total += h.Segment().Duration
	}
	return total
}

// Release unpins the snapshot's segments. Safe to call once; subsequent
// calls are no-ops.
func (s *Snapshot) Release() {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	s.mu.Unlock()

	for _, h := range s.handles {
		h.Release()
	}
}
