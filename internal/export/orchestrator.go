// Package export turns a committed slice set into one delivered archive.
package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/heimdex/heimdex-slicer/internal/archive"
	"github.com/heimdex/heimdex-slicer/internal/engine"
	"github.com/heimdex/heimdex-slicer/internal/slicing"
)

// ArchiveName is the suggested filename of every export.
const ArchiveName = "video_slices_export.zip"

// Source is the asset being sliced.
type Source interface {
	Duration() float64
	ContainerExt() string
	Open(ctx context.Context) (io.ReadCloser, error)
}

// ArchiveBuilder packs ordered entries into one file.
type ArchiveBuilder interface {
	Build(ctx context.Context, entries []archive.Entry) ([]byte, error)
}

// Sink receives the finished archive. It is only called after the whole
// export succeeded.
type Sink interface {
	Deliver(ctx context.Context, data []byte, filename string) error
}

// ProgressFunc is called once with done == 0 when an export passes its
// preconditions, then after each successful extraction. Calls after the
// first may come from several goroutines.
type ProgressFunc func(done, total int)

// Result is the outcome of one export. Entries are in sequence order.
type Result struct {
	Entries  []archive.Entry
	Archive  []byte
	Filename string
	Elapsed  time.Duration
}

type Config struct {
	Engine    engine.Engine
	Archiver  ArchiveBuilder
	Precision slicing.Precision
	Logger    *slog.Logger
}

type Orchestrator struct {
	engine    engine.Engine
	archiver  ArchiveBuilder
	precision slicing.Precision
	logger    *slog.Logger
}

func New(cfg Config) *Orchestrator {
	precision := cfg.Precision
	if precision == "" {
		precision = slicing.PrecisionMillisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Orchestrator{
		engine:    cfg.Engine,
		archiver:  cfg.Archiver,
		precision: precision,
		logger:    logger,
	}
}

// EntryPath names a slice inside the archive: "{n}/{start}_to_{end}.{ext}".
func EntryPath(index int, s slicing.Slice, ext string) string {
	return fmt.Sprintf("%d/%s_to_%s.%s", index, slicing.FileStamp(s.Start), slicing.FileStamp(s.End), ext)
}

// Export extracts every slice from src, archives the outputs and hands the
// archive to sink. Either the complete archive reaches the sink or nothing
// does.
func (o *Orchestrator) Export(ctx context.Context, slices []slicing.Slice, src Source, sink Sink, progress ProgressFunc) (*Result, error) {
	if len(slices) == 0 {
		return nil, ErrEmptySliceSet
	}
	if o.engine == nil || !o.engine.Ready() {
		return nil, ErrEngineNotReady
	}
	if src == nil {
		return nil, ErrNoSourceAsset
	}

	start := time.Now()
	ordered := make([]slicing.Slice, len(slices))
	copy(ordered, slices)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Start < ordered[j].Start })
	ext := src.ContainerExt()

	o.logger.Info("export started",
		"slices", len(ordered),
		"container", ext,
		"precision", string(o.precision),
	)
	if progress != nil {
		progress(0, len(ordered))
	}

	stream, err := src.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read source video: %w", err)
	}
	defer stream.Close()

	in, err := o.engine.Stage(ctx, stream, ext)
	if err != nil {
		return nil, fmt.Errorf("failed to stage source video: %w", err)
	}
	defer func() {
		if err := in.Release(); err != nil {
			o.logger.Warn("failed to release engine workspace", "error", err)
		}
	}()

	entries, err := o.extractAll(ctx, in, ordered, ext, progress)
	if err != nil {
		o.logger.Warn("export aborted", "error", err, "duration_ms", time.Since(start).Milliseconds())
		return nil, err
	}

	data, err := o.archiver.Build(ctx, entries)
	if err != nil {
		return nil, &ArchiveError{Err: err}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := sink.Deliver(ctx, data, ArchiveName); err != nil {
		return nil, &DeliveryError{Err: err}
	}

	elapsed := time.Since(start)
	o.logger.Info("export completed",
		"slices", len(entries),
		"archive_bytes", len(data),
		"duration_ms", elapsed.Milliseconds(),
	)

	return &Result{Entries: entries, Archive: data, Filename: ArchiveName, Elapsed: elapsed}, nil
}

// extractAll fans out one extraction per slice. Sequence indexes are fixed
// up front so entry order never depends on completion order. The first
// failure cancels the siblings and every partial output is dropped.
func (o *Orchestrator) extractAll(ctx context.Context, in *engine.Input, slices []slicing.Slice, ext string, progress ProgressFunc) ([]archive.Entry, error) {
	entries := make([]archive.Entry, len(slices))
	var done atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	for i, s := range slices {
		index := i + 1
		g.Go(func() error {
			data, err := o.engine.Extract(gctx, in, engine.Request{
				Index:    index,
				Start:    slicing.SeekTimestamp(s.Start, o.precision),
				Duration: s.Duration(),
			})
			if err != nil {
				return &ExtractionError{Index: index, Slice: s, Err: err}
			}

			entries[i] = archive.Entry{Path: EntryPath(index, s, ext), Data: data}
			n := int(done.Add(1))
			o.logger.Debug("slice extracted", "index", index, "bytes", len(data))
			if progress != nil {
				progress(n, len(slices))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}
