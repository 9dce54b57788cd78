package timeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/heimdex/heimdex-slicer/internal/logging"
	"github.com/heimdex/heimdex-slicer/internal/media"
)

// Follower keeps the timeline in step with the loaded asset's file. A
// change seen while an export runs is applied as soon as the export ends.
type Follower struct {
	tl       *Timeline
	prober   media.Prober
	onUnload func()
	logger   *slog.Logger
}

// NewFollower returns a Follower for tl. onUnload, if set, runs after the
// asset has been dropped because its file went away.
func NewFollower(tl *Timeline, prober media.Prober, onUnload func(), logger *slog.Logger) *Follower {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Follower{tl: tl, prober: prober, onUnload: onUnload, logger: logger}
}

// Modified re-probes path and reloads it, which resets the slices. A file
// that no longer loads is unloaded instead.
func (f *Follower) Modified(ctx context.Context, path string) {
	f.schedule(ctx, path, false)
}

// Removed unloads the asset if it was loaded from path.
func (f *Follower) Removed(ctx context.Context, path string) {
	f.schedule(ctx, path, true)
}

func (f *Follower) schedule(ctx context.Context, path string, removed bool) {
	if f.tl.WhenIdle(func() { f.apply(ctx, path, removed) }) {
		f.logger.Info("source changed during export, reload deferred", "path", logging.SanitizePath(path))
	}
}

func (f *Follower) apply(ctx context.Context, path string, removed bool) {
	if ctx.Err() != nil {
		return
	}
	current := f.tl.Asset()
	if current == nil || current.Path != path {
		return
	}
	log := f.logger.With("path", logging.SanitizePath(path))

	if !removed {
		asset, err := media.Load(ctx, path, f.prober)
		if err == nil {
			if err := f.tl.Load(asset); errors.Is(err, ErrExportInProgress) {
				f.schedule(ctx, path, removed)
				return
			}
			log.Info("source changed, timeline reset", "duration", asset.Duration())
			return
		}
		log.Warn("source changed and can no longer be loaded", "error", err)
	}

	if err := f.tl.Unload(); errors.Is(err, ErrExportInProgress) {
		f.schedule(ctx, path, removed)
		return
	}
	if f.onUnload != nil {
		f.onUnload()
	}
	log.Info("source gone, asset unloaded")
}
