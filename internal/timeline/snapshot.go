package timeline

import (
	"github.com/heimdex/heimdex-slicer/internal/media"
	"github.com/heimdex/heimdex-slicer/internal/slicing"
)

// AssetInfo describes the loaded asset.
type AssetInfo struct {
	Name      string  `json:"name"`
	Path      string  `json:"path"`
	MIMEType  string  `json:"mime_type"`
	Container string  `json:"container"`
	Duration  float64 `json:"duration"`
	Size      int64   `json:"size"`
	SizeText  string  `json:"size_text"`
}

// SliceView is a slice with its display labels.
type SliceView struct {
	Index    int     `json:"index"`
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Duration float64 `json:"duration"`
	Label    string  `json:"label"`
}

// Snapshot is a consistent read of the whole timeline.
type Snapshot struct {
	Asset       *AssetInfo  `json:"asset"`
	State       string      `json:"state"`
	Provisional *float64    `json:"provisional_start,omitempty"`
	Slices      []SliceView `json:"slices"`
	Exporting   bool        `json:"exporting"`
}

const (
	StateIdle    = "idle"
	StateSlicing = "slicing"
)

func (t *Timeline) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap := Snapshot{
		State:     StateIdle,
		Slices:    Views(t.store.All()),
		Exporting: t.exporting,
	}
	if start, ok := t.session.Provisional(); ok {
		snap.State = StateSlicing
		snap.Provisional = &start
	}
	if t.asset != nil {
		snap.Asset = describe(t.asset)
	}
	return snap
}

// Views numbers slices the way the archive does.
func Views(slices []slicing.Slice) []SliceView {
	views := make([]SliceView, 0, len(slices))
	for i, s := range slices {
		views = append(views, SliceView{
			Index:    i + 1,
			Start:    s.Start,
			End:      s.End,
			Duration: s.Duration(),
			Label:    s.String(),
		})
	}
	return views
}

func describe(a *media.Asset) *AssetInfo {
	return &AssetInfo{
		Name:      a.Name,
		Path:      a.Path,
		MIMEType:  a.MIMEType,
		Container: a.ContainerExt(),
		Duration:  a.Duration(),
		Size:      a.Size,
		SizeText:  media.FormatSize(a.Size),
	}
}
