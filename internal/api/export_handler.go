package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/heimdex-slicer/internal/cloud"
	"github.com/heimdex/heimdex-slicer/internal/export"
	"github.com/heimdex/heimdex-slicer/internal/history"
	"github.com/heimdex/heimdex-slicer/internal/logging"
)

// attachmentSink streams the finished archive as the HTTP response body.
type attachmentSink struct {
	w     http.ResponseWriter
	wrote bool
}

func (s *attachmentSink) Deliver(ctx context.Context, data []byte, filename string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h := s.w.Header()
	h.Set("Content-Type", "application/zip")
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	h.Set("Content-Length", strconv.Itoa(len(data)))
	s.w.WriteHeader(http.StatusOK)
	s.wrote = true

	_, err := s.w.Write(data)
	return err
}

// runExport drives one export through the timeline and records it in the
// history once the export has actually started. It returns the export id,
// empty when nothing was recorded.
func runExport(ctx context.Context, cfg ServerConfig, sink export.Sink, outputPath func() string) (*export.Result, string, error) {
	if cfg.Exporter == nil {
		return nil, "", export.ErrEngineNotReady
	}

	var tracker *history.Tracker
	if asset := cfg.Timeline.Asset(); asset != nil {
		tracker = cfg.History.Track(ctx, asset.Name, asset.ContainerExt())
	}

	res, err := cfg.Timeline.Export(ctx, cfg.Exporter, sink, tracker.Progress)

	var size int64
	var path string
	if err == nil {
		size = int64(len(res.Archive))
		if outputPath != nil {
			path = outputPath()
		}
	}
	id := tracker.Finish(size, path, err)
	if err == nil && id != "" {
		logging.WithExportID(cfg.Logger, id).Info("export delivered", "slices", len(res.Entries), "archive_bytes", size)
	}
	return res, id, err
}

func exportDownloadHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sink := &attachmentSink{w: w}
		_, id, err := runExport(r.Context(), cfg, sink, nil)
		if err == nil {
			return
		}

		if sink.wrote {
			// Headers are gone; the client sees a truncated body.
			cfg.Logger.Warn("archive delivery interrupted", "export_id", id, "error", err)
			return
		}
		if id != "" {
			w.Header().Set("X-Export-ID", id)
		}
		logExportFailure(cfg.Logger, id, err)
		writeDomainError(w, err)
	}
}

func exportSaveHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sink, err := export.NewDirSink(cfg.OutputDir, cfg.Logger)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "OUTPUT_DIR_UNAVAILABLE")
			return
		}

		res, id, err := runExport(r.Context(), cfg, sink, sink.LastPath)
		if err != nil {
			if id != "" {
				w.Header().Set("X-Export-ID", id)
			}
			logExportFailure(cfg.Logger, id, err)
			writeDomainError(w, err)
			return
		}

		WriteJSON(w, http.StatusCreated, SaveExportResponse{
			ExportID:     id,
			Path:         sink.LastPath(),
			SliceCount:   len(res.Entries),
			ArchiveBytes: len(res.Archive),
			Message:      export.SuccessMessage(len(res.Entries)),
		})
	}
}

const (
	uploadAttempts = 3
	uploadBackoff  = time.Second
)

func exportUploadHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Uploader == nil {
			WriteError(w, http.StatusServiceUnavailable, "cloud upload is not configured", "CLOUD_DISABLED")
			return
		}

		sink := cloud.NewSink(cfg.Uploader, uploadAttempts, uploadBackoff, cfg.Logger)
		lastURL := func() string {
			if res := sink.Last(); res != nil {
				return res.URL
			}
			return ""
		}

		res, id, err := runExport(r.Context(), cfg, sink, lastURL)
		if err != nil {
			if id != "" {
				w.Header().Set("X-Export-ID", id)
			}
			logExportFailure(cfg.Logger, id, err)
			writeDomainError(w, err)
			return
		}

		resp := UploadExportResponse{
			ExportID:     id,
			URL:          lastURL(),
			SliceCount:   len(res.Entries),
			ArchiveBytes: len(res.Archive),
			Message:      export.SuccessMessage(len(res.Entries)),
		}
		if up := sink.Last(); up != nil {
			resp.ArchiveID = up.ArchiveID
		}
		WriteJSON(w, http.StatusCreated, resp)
	}
}

func logExportFailure(logger *slog.Logger, id string, err error) {
	if export.IsPrecondition(err) {
		logger.Info("export refused", "export_id", id, "reason", err)
		return
	}
	if errors.Is(err, context.Canceled) {
		logger.Info("export cancelled", "export_id", id)
		return
	}
	logger.Error("export failed", "export_id", id, "error", err)
}

func edlHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asset := cfg.Timeline.Asset()
		if asset == nil {
			writeDomainError(w, export.ErrNoSourceAsset)
			return
		}
		slices := cfg.Timeline.Slices()
		if len(slices) == 0 {
			writeDomainError(w, export.ErrEmptySliceSet)
			return
		}

		frameRate := 30.0
		if raw := r.URL.Query().Get("fps"); raw != "" {
			fps, err := strconv.ParseFloat(raw, 64)
			if err != nil || fps <= 0 {
				WriteError(w, http.StatusBadRequest, "fps must be a positive number", "BAD_REQUEST")
				return
			}
			frameRate = fps
		}

		base := strings.TrimSuffix(asset.Name, filepath.Ext(asset.Name))
		title := export.SanitizeName(r.URL.Query().Get("title"), 120)
		if title == "" {
			title = export.SanitizeName(base, 120)
		}

		edl := export.GenerateEDL(slices, asset.Path, title, frameRate)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", title+".edl"))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(edl))
	}
}

func listExportsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.History == nil {
			WriteJSON(w, http.StatusOK, ExportsResponse{Exports: []ExportResponse{}})
			return
		}

		limit := 50
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				WriteError(w, http.StatusBadRequest, "limit must be a positive integer", "BAD_REQUEST")
				return
			}
			limit = n
		}

		exports, err := cfg.History.List(r.Context(), limit)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list exports", "INTERNAL_ERROR")
			return
		}

		resp := ExportsResponse{Exports: make([]ExportResponse, len(exports))}
		for i, e := range exports {
			resp.Exports[i] = ExportToResponse(e)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "export id required", "BAD_REQUEST")
			return
		}
		if cfg.History == nil {
			WriteError(w, http.StatusNotFound, "export not found", "NOT_FOUND")
			return
		}

		e, err := cfg.History.Get(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if e == nil {
			WriteError(w, http.StatusNotFound, "export not found", "NOT_FOUND")
			return
		}

		WriteJSON(w, http.StatusOK, ExportToResponse(e))
	}
}
