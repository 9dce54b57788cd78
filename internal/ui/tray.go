// Package ui shows the agent in the system tray.
package ui

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/getlantern/systray"

	"github.com/heimdex/heimdex-slicer/internal/timeline"
)

// StatusSource is polled for the menu labels. *timeline.Timeline satisfies it.
type StatusSource interface {
	Snapshot() timeline.Snapshot
}

type Tray struct {
	source StatusSource
	logger *slog.Logger

	statusItem *systray.MenuItem
	assetItem  *systray.MenuItem
	slicesItem *systray.MenuItem
	saveItem   *systray.MenuItem

	mu       sync.Mutex
	lastSave time.Time

	onExport func(ctx context.Context) (string, error)
	onQuit   func()
	stop     chan struct{}
}

type TrayConfig struct {
	Source StatusSource
	Logger *slog.Logger
	// OnExport saves the current slices and returns the archive path.
	OnExport func(ctx context.Context) (string, error)
	OnQuit   func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		source:   cfg.Source,
		logger:   cfg.Logger,
		onExport: cfg.OnExport,
		onQuit:   cfg.OnQuit,
		stop:     make(chan struct{}),
	}
}

// Run blocks until the tray exits. It must be called from the main goroutine.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Heimdex")
	systray.SetTooltip("Heimdex Slicer")

	t.statusItem = systray.AddMenuItem("Status: No video", "Current slicer status")
	t.statusItem.Disable()

	t.assetItem = systray.AddMenuItem("Video: none", "Loaded source video")
	t.assetItem.Disable()

	t.slicesItem = systray.AddMenuItem("Slices: 0", "Committed slices")
	t.slicesItem.Disable()

	systray.AddSeparator()

	t.saveItem = systray.AddMenuItem("Save Export", "Save the slices as a zip archive")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Heimdex Slicer")

	go t.poll()

	go func() {
		for {
			select {
			case <-t.saveItem.ClickedCh:
				go t.handleExport()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	close(t.stop)
	t.logger.Info("system tray exiting")
}

func (t *Tray) poll() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		t.refresh()
		select {
		case <-ticker.C:
		case <-t.stop:
			return
		}
	}
}

func (t *Tray) refresh() {
	if t.source == nil {
		return
	}
	snap := t.source.Snapshot()
	labels := Labels(snap)

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.lastSave.IsZero() && !snap.Exporting {
		labels.Status += " (saved " + humanize.Time(t.lastSave) + ")"
	}
	t.statusItem.SetTitle("Status: " + labels.Status)
	t.assetItem.SetTitle("Video: " + labels.Asset)
	t.slicesItem.SetTitle(labels.Slices)

	if labels.CanExport {
		t.saveItem.Enable()
	} else {
		t.saveItem.Disable()
	}
}

func (t *Tray) handleExport() {
	if t.onExport == nil {
		return
	}
	path, err := t.onExport(context.Background())
	if err != nil {
		t.logger.Error("tray export failed", "error", err)
		return
	}

	t.mu.Lock()
	t.lastSave = time.Now()
	t.mu.Unlock()
	t.logger.Info("tray export saved", "path", path)
}

func (t *Tray) Quit() {
	systray.Quit()
}

// MenuLabels is what the tray shows for one snapshot.
type MenuLabels struct {
	Status    string
	Asset     string
	Slices    string
	CanExport bool
}

func Labels(snap timeline.Snapshot) MenuLabels {
	l := MenuLabels{
		Status: "No video",
		Asset:  "none",
		Slices: fmt.Sprintf("Slices: %d", len(snap.Slices)),
	}

	if snap.Asset != nil {
		l.Asset = fmt.Sprintf("%s (%s)", snap.Asset.Name, snap.Asset.SizeText)
		switch {
		case snap.Exporting:
			l.Status = "Exporting"
		case snap.State == timeline.StateSlicing && snap.Provisional != nil:
			l.Status = fmt.Sprintf("Slicing from %.1fs", *snap.Provisional)
		default:
			l.Status = "Ready"
		}
	}

	var total float64
	for _, s := range snap.Slices {
		total += s.Duration
	}
	if len(snap.Slices) > 0 {
		l.Slices = fmt.Sprintf("Slices: %d (%s)", len(snap.Slices), formatSeconds(total))
	}

	l.CanExport = snap.Asset != nil && len(snap.Slices) > 0 && !snap.Exporting
	return l
}

func formatSeconds(sec float64) string {
	d := time.Duration(sec * float64(time.Second)).Round(100 * time.Millisecond)
	return d.String()
}
