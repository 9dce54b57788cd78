// Package timeline owns the slicing state of the one loaded asset: the
// committed slices, the in-progress session and the asset itself.
package timeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/heimdex/heimdex-slicer/internal/export"
	"github.com/heimdex/heimdex-slicer/internal/media"
	"github.com/heimdex/heimdex-slicer/internal/slicing"
)

var (
	ErrOutOfRange       = errors.New("time is outside the video")
	ErrExportInProgress = errors.New("an export is already running")
	ErrSlicePending     = errors.New("a slice is already in progress")
)

// Exporter runs one export. *export.Orchestrator satisfies it.
type Exporter interface {
	Export(ctx context.Context, slices []slicing.Slice, src export.Source, sink export.Sink, progress export.ProgressFunc) (*export.Result, error)
}

// Timeline serializes every mutation. Reads take the shared lock. While an
// export runs, mutations are refused so the exported set stays the one the
// user saw.
type Timeline struct {
	mu        sync.RWMutex
	store     *slicing.Store
	session   *slicing.Session
	asset     *media.Asset
	exporting bool
	// afterExport runs, in order, once the running export ends.
	afterExport []func()
	logger      *slog.Logger
}

func New(logger *slog.Logger) *Timeline {
	store := slicing.NewStore()
	return &Timeline{
		store:   store,
		session: slicing.NewSession(store),
		logger:  logger,
	}
}

// Load replaces the asset. Slices and any pending start are discarded.
func (t *Timeline) Load(asset *media.Asset) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.exporting {
		return ErrExportInProgress
	}

	dropped := t.store.Len()
	t.asset = asset
	t.store.Reset()
	t.session.Reset()

	if t.logger != nil && asset != nil {
		t.logger.Info("asset loaded",
			"name", asset.Name,
			"duration", asset.Duration(),
			"container", asset.ContainerExt(),
			"dropped_slices", dropped,
		)
	}
	return nil
}

// Unload forgets the asset and everything sliced from it.
func (t *Timeline) Unload() error {
	return t.Load(nil)
}

func (t *Timeline) Asset() *media.Asset {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.asset
}

// Begin starts a slice at sec. It returns false, without error, when a
// slice is already pending or sec lies inside a committed slice.
func (t *Timeline) Begin(sec float64) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkMutable(sec); err != nil {
		return false, err
	}
	return t.session.Begin(sec), nil
}

// Commit closes the pending slice at sec.
func (t *Timeline) Commit(sec float64) (slicing.Slice, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkMutable(sec); err != nil {
		return slicing.Slice{}, err
	}

	s, err := t.session.Commit(sec)
	if err != nil {
		return slicing.Slice{}, err
	}
	if t.logger != nil {
		t.logger.Debug("slice committed", "start", s.Start, "end", s.End, "count", t.store.Len())
	}
	return s, nil
}

// Add commits s in one step: it begins at s.Start and commits at s.End.
// A start inside a committed slice is reported as slicing.ErrOverlap. A
// pending start from Begin is refused with ErrSlicePending. On any error
// the timeline is left as it was.
func (t *Timeline) Add(s slicing.Slice) (slicing.Slice, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkMutable(s.Start); err != nil {
		return slicing.Slice{}, err
	}
	if err := t.checkMutable(s.End); err != nil {
		return slicing.Slice{}, err
	}
	if _, pending := t.session.Provisional(); pending {
		return slicing.Slice{}, ErrSlicePending
	}
	if !t.session.Begin(s.Start) {
		return slicing.Slice{}, slicing.ErrOverlap
	}
	added, err := t.session.Commit(s.End)
	if err != nil {
		t.session.Cancel()
		return slicing.Slice{}, err
	}
	return added, nil
}

// Cancel drops the pending start, if any.
func (t *Timeline) Cancel() (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.exporting {
		return false, ErrExportInProgress
	}
	return t.session.Cancel(), nil
}

// Delete removes the slice containing sec.
func (t *Timeline) Delete(sec float64) (slicing.Slice, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.exporting {
		return slicing.Slice{}, false, ErrExportInProgress
	}
	s, ok := t.store.RemoveContaining(sec)
	return s, ok, nil
}

func (t *Timeline) Query(sec float64) (slicing.Slice, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.store.Query(sec)
}

// Slices returns the committed slices ordered by start.
func (t *Timeline) Slices() []slicing.Slice {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.store.All()
}

func (t *Timeline) Exporting() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.exporting
}

// Export hands the committed slices and asset to exp. Only one export runs
// at a time.
func (t *Timeline) Export(ctx context.Context, exp Exporter, sink export.Sink, progress export.ProgressFunc) (*export.Result, error) {
	t.mu.Lock()
	if t.exporting {
		t.mu.Unlock()
		return nil, ErrExportInProgress
	}
	slices := t.store.All()
	var src export.Source
	if t.asset != nil {
		src = t.asset
	}
	t.exporting = true
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.exporting = false
		deferred := t.afterExport
		t.afterExport = nil
		t.mu.Unlock()
		for _, fn := range deferred {
			fn()
		}
	}()

	return exp.Export(ctx, slices, src, sink, progress)
}

// WhenIdle runs fn now if no export is running, otherwise right after the
// running export ends. fn runs without the timeline lock held and may call
// any Timeline method. It reports whether fn was deferred.
func (t *Timeline) WhenIdle(fn func()) bool {
	t.mu.Lock()
	if t.exporting {
		t.afterExport = append(t.afterExport, fn)
		t.mu.Unlock()
		return true
	}
	t.mu.Unlock()
	fn()
	return false
}

func (t *Timeline) checkMutable(sec float64) error {
	if t.exporting {
		return ErrExportInProgress
	}
	if t.asset == nil {
		return export.ErrNoSourceAsset
	}
	if math.IsNaN(sec) || sec < 0 || sec > t.asset.Duration() {
		return fmt.Errorf("%w: %.3f not in [0, %.3f]", ErrOutOfRange, sec, t.asset.Duration())
	}
	return nil
}
