// Package segment models the encoded segment stream shared by the replay
// ring buffer and the recording session. The writer assigns gapless
// sequence numbers and fans each completed segment out to every registered
// consumer; refcounted handles defer physical deletion until no consumer
// or snapshot still references a file.
package segment

import (
	"os"
	"sync"
	"time"
)

// Segment is one completed encode segment on disk.
type Segment struct {
	Seq      int64
	Path     string
	Start    time.Duration
	End      time.Duration
	Duration time.Duration
}

// Handle wraps a segment with a reference count. The file is removed once
// every holder releases it; Release is idempotent per holder by convention,
// not enforcement.
type Handle struct {
	seg Segment

	mu      sync.Mutex
	refs    int
	removed bool
	remove  func(string) error
}

// Segment returns the underlying segment value.
func (h *Handle) Segment() Segment {
	return h.seg
}

// Seq returns the segment's sequence number.
func (h *Handle) Seq() int64 {
	return h.seg.Seq
}

// Retain adds a reference, keeping the file on disk.
func (h *Handle) Retain() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.refs++
}

// Release drops a reference. When the count reaches zero the segment file
// is deleted.
func (h *Handle) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.refs > 0 {
		h.refs--
	}
	if h.refs == 0 && !h.removed {
		h.removed = true
		if h.remove != nil {
			_ = h.remove(h.seg.Path)
		}
	}
}

// Removed reports whether the segment file has been deleted.
func (h *Handle) Removed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.removed
}

// Consumer receives completed segments on the capture path. OnSegment must
// stay cheap: append-only bookkeeping, no I/O.
type Consumer interface {
	Name() string
	OnSegment(*Handle)
}

// Writer assigns sequence numbers and fans segments out to consumers.
type Writer struct {
	mu        sync.Mutex
	nextSeq   int64
	consumers []Consumer

	// removeFile is a test hook for physical deletion.
	removeFile func(string) error
}

// NewWriter constructs a writer starting at sequence 0.
func NewWriter() *Writer {
	return &Writer{removeFile: os.Remove}
}

// Attach registers a consumer for subsequent segments.
func (w *Writer) Attach(c Consumer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, existing := range w.consumers {
		if existing == c {
			return
		}
	}
	w.consumers = append(w.consumers, c)
}

// Detach removes a consumer; segments published afterwards are not
// delivered to it.
func (w *Writer) Detach(c Consumer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, existing := range w.consumers {
		if existing == c {
			w.consumers = append(w.consumers[:i], w.consumers[i+1:]...)
			return
		}
	}
}

// ConsumerCount returns the number of attached consumers.
func (w *Writer) ConsumerCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.consumers)
}

// Publish assigns the next sequence number, wraps the segment in a handle
// referenced once per consumer, and delivers it. A segment published with
// no consumers is deleted immediately.
func (w *Writer) Publish(path string, start, end time.Duration) *Handle {
	w.mu.Lock()
	seq := w.nextSeq
	w.nextSeq++
	consumers := append([]Consumer(nil), w.consumers...)
	removeFile := w.removeFile
	w.mu.Unlock()

	duration := end - start
	if duration < 0 {
		duration = 0
	}
	handle := &Handle{
		seg: Segment{
			Seq:      seq,
			Path:     path,
			Start:    start,
			End:      end,
			Duration: duration,
		},
		refs:   len(consumers),
		remove: removeFile,
	}

	if len(consumers) == 0 {
		handle.mu.Lock()
		handle.removed = true
		handle.mu.Unlock()
		if removeFile != nil {
			_ = removeFile(path)
		}
		return handle
	}

	for _, consumer := range consumers {
		consumer.OnSegment(handle)
	}
	return handle
}
