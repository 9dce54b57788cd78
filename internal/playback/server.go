// Package playback streams the loaded asset to the preview player.
package playback

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"
)

// Asset is what the preview player needs to know about the source file.
type Asset struct {
	Path     string
	MIMEType string
	ModTime  time.Time
}

type PlaybackService interface {
	ServeAsset(w http.ResponseWriter, r *http.Request, asset Asset) error
}

type Server struct {
	logger *slog.Logger
}

func NewServer(logger *slog.Logger) *Server {
	return &Server{logger: logger}
}

// ServeAsset answers plain and single-range GET and HEAD requests.
func (s *Server) ServeAsset(w http.ResponseWriter, r *http.Request, asset Asset) error {
	file, err := os.Open(asset.Path)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "file not found", http.StatusNotFound)
			return nil
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	size := stat.Size()

	contentType := asset.MIMEType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	modTime := asset.ModTime
	if modTime.IsZero() {
		modTime = stat.ModTime()
	}

	h := w.Header()
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Type", contentType)
	h.Set("Last-Modified", modTime.UTC().Format(http.TimeFormat))
	h.Set("Cache-Control", "no-cache")

	span, partial, err := ParseRange(r.Header.Get("Range"), size)
	switch err {
	case nil:
	case ErrUnsatisfiable:
		h.Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "Range Not Satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	case ErrInvalidRange:
		// Malformed ranges are ignored and the whole file is sent.
		partial = false
	default:
		return err
	}

	if !partial {
		span = ByteRange{Start: 0, End: size - 1}
	}

	h.Set("Content-Length", strconv.FormatInt(span.Length(), 10))
	if partial {
		h.Set("Content-Range", span.Header(size))
		w.WriteHeader(http.StatusPartialContent)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	if r.Method == http.MethodHead || span.Length() <= 0 {
		return nil
	}

	if _, err := file.Seek(span.Start, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}
	if _, err := io.CopyN(w, &ctxReader{ctx: r.Context(), r: file}, span.Length()); err != nil {
		if r.Context().Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to stream asset: %w", err)
	}
	return nil
}

// ctxReader stops a long copy once the player disconnects.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
