// Package media loads the source asset a timeline is sliced from.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/heimdex/heimdex-slicer/internal/engine"
)

var (
	ErrNotVideo    = errors.New("file is not a video")
	ErrNoDuration  = errors.New("video has no usable duration")
	ErrAssetClosed = errors.New("source asset is no longer available")
)

// videoTypes maps known container extensions to MIME types.
var videoTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
}

// containerExts maps MIME types to the extension slices are written with.
// Unknown video types fall back to mp4.
var containerExts = map[string]string{
	"video/webm":       "webm",
	"video/mp4":        "mp4",
	"video/quicktime":  "mov",
	"video/x-matroska": "mkv",
	"video/x-msvideo":  "avi",
	"video/avi":        "avi",
}

// Prober reads container metadata. *engine.FFmpeg satisfies it.
type Prober interface {
	Probe(ctx context.Context, path string) (*engine.ProbeResult, error)
}

// Asset is a video file on local disk.
type Asset struct {
	Path     string
	Name     string
	Size     int64
	MIMEType string
	ModTime  time.Time
	Probe    *engine.ProbeResult

	duration float64
	ext      string
}

// Load validates path as a video file and probes its duration.
func Load(ctx context.Context, path string, prober Prober) (*Asset, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("path does not exist: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory")
	}

	mimeType, err := DetectMIME(absPath)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(mimeType, "video/") {
		return nil, fmt.Errorf("%w: %s", ErrNotVideo, mimeType)
	}

	probe, err := prober.Probe(ctx, absPath)
	if err != nil {
		return nil, fmt.Errorf("cannot probe video: %w", err)
	}
	if probe.Duration <= 0 {
		return nil, ErrNoDuration
	}

	return &Asset{
		Path:     absPath,
		Name:     info.Name(),
		Size:     info.Size(),
		MIMEType: mimeType,
		ModTime:  info.ModTime(),
		Probe:    probe,
		duration: probe.Duration,
		ext:      ContainerExt(mimeType),
	}, nil
}

// NewAsset builds an asset without probing, for callers that already know
// the duration.
func NewAsset(path, mimeType string, size int64, duration float64) *Asset {
	return &Asset{
		Path:     path,
		Name:     filepath.Base(path),
		Size:     size,
		MIMEType: mimeType,
		duration: duration,
		ext:      ContainerExt(mimeType),
	}
}

func (a *Asset) Duration() float64 {
	return a.duration
}

func (a *Asset) ContainerExt() string {
	return a.ext
}

// Open returns the asset's byte stream. The caller closes it.
func (a *Asset) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(a.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrAssetClosed
		}
		return nil, fmt.Errorf("failed to open asset: %w", err)
	}
	return f, nil
}

// ContainerExt returns the extension slices of a mimeType source get.
func ContainerExt(mimeType string) string {
	if ext, ok := containerExts[strings.ToLower(mimeType)]; ok {
		return ext
	}
	return "mp4"
}

// DetectMIME resolves a file's MIME type from its extension, sniffing the
// first bytes when the extension is unknown.
func DetectMIME(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := videoTypes[ext]; ok {
		return t, nil
	}
	if t := mime.TypeByExtension(ext); t != "" {
		mt, _, err := mime.ParseMediaType(t)
		if err == nil {
			return mt, nil
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(head[:n]))
	return mt, nil
}

// IsVideoFile reports whether filename has a known video extension.
func IsVideoFile(filename string) bool {
	_, ok := videoTypes[strings.ToLower(filepath.Ext(filename))]
	return ok
}
