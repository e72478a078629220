package library

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"clipforge/internal/media/ffprobe"
	"clipforge/internal/textutil"
)

// Indexer inspects finalized files with ffprobe and records them in the
// store.
type Indexer struct {
	store         *Store
	ffprobeBinary string

	// Test hooks.
	inspect func(ctx context.Context, binary, path string) (ffprobe.Result, error)
	now     func() time.Time
}

// NewIndexer constructs an indexer over the given store.
func NewIndexer(store *Store, ffprobeBinary string) *Indexer {
	return &Indexer{
		store:         store,
		ffprobeBinary: ffprobeBinary,
		inspect:       ffprobe.Inspect,
		now:           time.Now,
	}
}

// IndexFile probes the file and inserts a library entry for it.
func (ix *Indexer) IndexFile(ctx context.Context, path string, sourceType string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	rec := Recording{
		ID:         uuid.NewString(),
		Title:      textutil.TitleFromFileName(filepath.Base(path)),
		Path:       path,
		SizeBytes:  info.Size(),
		Container:  strings.TrimPrefix(filepath.Ext(path), "."),
		SourceType: SourceType(sourceType),
		CreatedAt:  ix.now(),
	}

	probe, err := ix.inspect(ctx, ix.ffprobeBinary, path)
	if err != nil {
		return fmt.Errorf("probe %s: %w", path, err)
	}
	rec.DurationSeconds = probe.DurationSeconds()
	if video, ok := probe.VideoStream(); ok {
		rec.Codec = video.CodecName
		rec.Width = video.Width
		rec.Height = video.Height
		rec.FPS = video.FPS()
	}

	return ix.store.Insert(ctx, rec)
}
